package pipeline

import (
	"regexp"
	"strings"
)

type LineKind uint8

const (
	LineResult LineKind = 1 << iota
	LineAttribution
	LineChange
)

func (k LineKind) Has(kind LineKind) bool {
	return k&kind != 0
}

var (
	resultLinePattern  = regexp.MustCompile(`^([A-Z]{3,4}): +([0-9]{1,3})% +\((.?[0-9]{0,3})\)$`)
	attributionPattern = regexp.MustCompile(`(?i)(?:^|[^a-z])via\s`)
	changePattern      = regexp.MustCompile(`(?i)chg`)
)

type lineRule struct {
	kind  LineKind
	match func(string) bool
}

// lineRules are evaluated independently, in order, once per line.
var lineRules = []lineRule{
	{kind: LineResult, match: resultLinePattern.MatchString},
	{kind: LineAttribution, match: attributionPattern.MatchString},
	{kind: LineChange, match: changePattern.MatchString},
}

func ClassifyLine(line string) LineKind {
	var kind LineKind
	for _, rule := range lineRules {
		if rule.match(line) {
			kind |= rule.kind
		}
	}
	return kind
}

// ClassifiedLines is a post body split by line role. Attribution and Change
// hold the first matching line only.
type ClassifiedLines struct {
	Results     []string
	Attribution *string
	Change      *string
}

func ClassifyLines(lines []string) ClassifiedLines {
	var out ClassifiedLines
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		kind := ClassifyLine(line)
		if kind.Has(LineResult) {
			out.Results = append(out.Results, line)
		}
		if kind.Has(LineAttribution) && out.Attribution == nil {
			l := line
			out.Attribution = &l
		}
		if kind.Has(LineChange) && out.Change == nil {
			l := line
			out.Change = &l
		}
	}
	return out
}
