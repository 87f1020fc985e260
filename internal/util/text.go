package util

import (
	"regexp"
	"strings"
	"time"
)

var (
	reSpaces = regexp.MustCompile(`\s+`)
	reURL    = regexp.MustCompile(`https?://\S+`)
)

func IntPtr(v int) *int { return &v }

func TimePtr(v time.Time) *time.Time { return &v }

func NormalizeSpaces(input string) string {
	input = strings.ReplaceAll(input, "\u00a0", " ")
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// SplitLines splits on LF or CRLF and keeps blank lines so that line order
// matches the source document.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

func StripURLs(input string) string {
	return NormalizeSpaces(reURL.ReplaceAllString(input, " "))
}

// CompactKey removes spaces and hyphens, used to fold pollster names that
// differ only in punctuation.
func CompactKey(input string) string {
	return strings.NewReplacer(" ", "", "-", "", "\u00a0", "").Replace(input)
}

// NaiveTime keeps the wall-clock fields of t and drops its location.
func NaiveTime(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func DerefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
