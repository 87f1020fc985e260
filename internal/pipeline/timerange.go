package pipeline

import (
	"regexp"
	"strings"

	"polltrack/internal/util"
)

// TimeRange holds fieldwork start and end as "D Mon" descriptors without a year.
type TimeRange struct {
	Start string
	End   string
}

var (
	singleDayPattern  = regexp.MustCompile(`^([0-9]{1,2}) ([A-Z][a-z]{2})$`)
	sameMonthPattern  = regexp.MustCompile(`^([0-9]{1,2}) ?- ?([0-9]{1,2}) ([A-Z][a-z]{2})$`)
	crossMonthPattern = regexp.MustCompile(`^([0-9]{1,2}) ([A-Z][a-z]{2}) ?- ?([0-9]{1,2}) ([A-Z][a-z]{2})$`)

	dashReplacer = strings.NewReplacer("\u2013", "-", "\u2014", "-")
)

// ParseTimeRange accepts "12 Jan", "12 - 14 Jan" and "30 Jan - 2 Feb". Any
// other shape yields nil.
func ParseTimeRange(text string) *TimeRange {
	text = util.NormalizeSpaces(dashReplacer.Replace(text))
	if text == "" {
		return nil
	}

	if m := singleDayPattern.FindStringSubmatch(text); m != nil {
		d := m[1] + " " + m[2]
		return &TimeRange{Start: d, End: d}
	}
	if m := sameMonthPattern.FindStringSubmatch(text); m != nil {
		return &TimeRange{Start: m[1] + " " + m[3], End: m[2] + " " + m[3]}
	}
	if m := crossMonthPattern.FindStringSubmatch(text); m != nil {
		return &TimeRange{Start: m[1] + " " + m[2], End: m[3] + " " + m[4]}
	}
	return nil
}
