package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTablesYAML []byte

var partyCodePattern = regexp.MustCompile(`^[A-Z]{3,4}$`)

// Tables holds the static lookup data the extraction pipeline reads. A Tables
// value is built once and must not be mutated after Validate.
type Tables struct {
	Parties                []string          `yaml:"parties"`
	PartyColors            map[string]string `yaml:"party_colors"`
	PartyRenames           map[string]string `yaml:"party_renames"`
	PollsterAliases        map[string]string `yaml:"pollster_aliases"`
	MonthTypos             map[string]string `yaml:"month_typos"`
	HistoryColumns         map[string]string `yaml:"history_columns"`
	HistoryPollsterAliases map[string]string `yaml:"history_pollster_aliases"`

	partySet map[string]struct{}
}

func DefaultTables() (*Tables, error) {
	return ParseTables(defaultTablesYAML)
}

func LoadTablesFile(path string) (*Tables, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tables: %w", err)
	}
	return ParseTables(blob)
}

func ParseTables(blob []byte) (*Tables, error) {
	var t Tables
	dec := yaml.NewDecoder(bytes.NewReader(blob))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("decode tables: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Tables) Validate() error {
	if len(t.Parties) == 0 {
		return errors.New("tables: parties must not be empty")
	}
	t.partySet = make(map[string]struct{}, len(t.Parties))
	for _, p := range t.Parties {
		if !partyCodePattern.MatchString(p) {
			return fmt.Errorf("tables: invalid party code %q", p)
		}
		if _, dup := t.partySet[p]; dup {
			return fmt.Errorf("tables: duplicate party code %q", p)
		}
		t.partySet[p] = struct{}{}
	}
	for from, to := range t.PartyRenames {
		if _, ok := t.partySet[to]; !ok {
			return fmt.Errorf("tables: rename %s -> %s targets unknown party", from, to)
		}
	}
	for from, to := range t.HistoryColumns {
		if _, ok := t.partySet[to]; !ok {
			return fmt.Errorf("tables: history column %s -> %s targets unknown party", from, to)
		}
	}
	return nil
}

// CanonicalParty folds renamed codes and reports whether the result is in the
// party set.
func (t *Tables) CanonicalParty(code string) (string, bool) {
	if renamed, ok := t.PartyRenames[code]; ok {
		code = renamed
	}
	_, ok := t.partySet[code]
	return code, ok
}

func (t *Tables) IsParty(code string) bool {
	_, ok := t.partySet[code]
	return ok
}

func (t *Tables) FixMonth(token string) string {
	if fixed, ok := t.MonthTypos[token]; ok {
		return fixed
	}
	return token
}
