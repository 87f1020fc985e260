package pipeline

import (
	"html"
	"regexp"
	"strings"

	"polltrack/internal/util"
)

var changePrefixPattern = regexp.MustCompile(`(?i)^chgs?\.?\s*w/\s*`)

// Attribution is the "via <pollster>, <date range>" line split into its parts.
type Attribution struct {
	Source    *string
	TimeRange *string
}

// ParseAttribution locates the first "via" line and splits it on commas.
// Posts without one yield an empty Attribution.
func (p *Parser) ParseAttribution(lines []string) Attribution {
	return p.parseAttributionLine(ClassifyLines(lines).Attribution)
}

func (p *Parser) parseAttributionLine(line *string) Attribution {
	if line == nil {
		return Attribution{}
	}
	loc := attributionPattern.FindStringIndex(*line)
	if loc == nil {
		return Attribution{}
	}

	segments := strings.Split((*line)[loc[1]:], ",")
	out := Attribution{Source: p.NormalizePollster(segments[0])}
	if len(segments) > 1 {
		if rng := strings.TrimSpace(segments[1]); rng != "" {
			out.TimeRange = &rng
		}
	}
	return out
}

// NormalizePollster folds a raw pollster token to its canonical handle. Known
// variants are looked up verbatim first, then after dropping tracking URLs
// and HTML entities.
func (p *Parser) NormalizePollster(token string) *string {
	token = strings.TrimSpace(token)
	if alias, ok := p.tables.PollsterAliases[token]; ok {
		token = alias
	} else {
		cleaned := util.StripURLs(html.UnescapeString(token))
		if alias, ok := p.tables.PollsterAliases[cleaned]; ok {
			cleaned = alias
		}
		token = cleaned
	}
	token = strings.TrimSpace(strings.TrimPrefix(token, "@"))
	if token == "" {
		return nil
	}
	return &token
}

// ChangeSummary returns the first "chg" line with its "Chgs. w/" prefix removed.
func ChangeSummary(lines []string) *string {
	return changeSummaryFromLine(ClassifyLines(lines).Change)
}

func changeSummaryFromLine(line *string) *string {
	if line == nil {
		return nil
	}
	summary := strings.TrimSpace(changePrefixPattern.ReplaceAllString(*line, ""))
	if summary == "" {
		return nil
	}
	return &summary
}
