package pipeline

import (
	"fmt"

	"polltrack/internal"
	"polltrack/internal/config"
	"polltrack/internal/util"
)

type ParserOptions struct {
	StrictDuplicateParties bool
}

// Parser turns the lines of one post into typed fields. It only reads its
// tables and is safe for concurrent use.
type Parser struct {
	tables *config.Tables
	opts   ParserOptions
}

func NewParser(tables *config.Tables, opts ParserOptions) *Parser {
	return &Parser{tables: tables, opts: opts}
}

// ParseResultLine parses "PARTY: NN% (+/-C)". The line must already have been
// selected by the result-line pattern.
func (p *Parser) ParseResultLine(line string) (internal.PartyResult, error) {
	m := resultLinePattern.FindStringSubmatch(line)
	if m == nil {
		return internal.PartyResult{}, fmt.Errorf("%w: %q", ErrNotResultLine, line)
	}

	party, ok := p.tables.CanonicalParty(m[1])
	if !ok {
		return internal.PartyResult{}, fmt.Errorf("%w: %q in line %q", ErrUnknownParty, m[1], line)
	}

	perc, err := util.ParseWholeNumber(m[2])
	if err != nil {
		return internal.PartyResult{}, fmt.Errorf("%w: percentage %q in line %q", ErrBadNumber, m[2], line)
	}
	change, err := util.ParseChange(m[3])
	if err != nil {
		return internal.PartyResult{}, fmt.Errorf("%w: change %q in line %q", ErrBadNumber, m[3], line)
	}

	return internal.PartyResult{Party: party, Percentage: perc, Change: change}, nil
}

// ExtractPartyResults parses every result line of a post. A party reported
// twice keeps the later line unless StrictDuplicateParties is set; the
// repeated codes are returned so callers can report them.
func (p *Parser) ExtractPartyResults(lines []string) (map[string]internal.PartyResult, []string, error) {
	classified := ClassifyLines(lines)
	return p.extractResults(classified.Results)
}

func (p *Parser) extractResults(resultLines []string) (map[string]internal.PartyResult, []string, error) {
	out := make(map[string]internal.PartyResult, len(resultLines))
	var repeated []string
	for _, line := range resultLines {
		res, err := p.ParseResultLine(line)
		if err != nil {
			return nil, nil, err
		}
		if _, seen := out[res.Party]; seen {
			if p.opts.StrictDuplicateParties {
				return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateParty, res.Party)
			}
			repeated = append(repeated, res.Party)
		}
		out[res.Party] = res
	}
	return out, repeated, nil
}

// FlattenShares lays results out in party-table order, one share per party.
func (p *Parser) FlattenShares(results map[string]internal.PartyResult) []internal.PartyShare {
	shares := make([]internal.PartyShare, 0, len(p.tables.Parties))
	for _, party := range p.tables.Parties {
		share := internal.PartyShare{Party: party}
		if res, ok := results[party]; ok {
			share.Percentage = util.IntPtr(res.Percentage)
			share.Change = util.IntPtr(res.Change)
		}
		shares = append(shares, share)
	}
	return shares
}
