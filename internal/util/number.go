package util

import (
	"strconv"
	"strings"
)

// zeroMarkers are the tokens pollsters print instead of a zero change.
var zeroMarkers = map[string]struct{}{
	"-":      {},
	"\u2013": {},
	"\u2014": {},
	"\u2212": {},
	"=":      {},
}

// ParseChange parses a signed integer change token. Dash variants and "="
// denote no change. Typographic minus signs are accepted in front of digits.
func ParseChange(token string) (int, error) {
	token = strings.TrimSpace(token)
	if _, ok := zeroMarkers[token]; ok {
		return 0, nil
	}
	norm := strings.NewReplacer("\u2212", "-", "\u2013", "-", "\u2014", "-").Replace(token)
	return strconv.Atoi(norm)
}

// ParseWholeNumber parses a percentage-style token. A trailing "%" and a
// ".0" fraction are tolerated.
func ParseWholeNumber(token string) (int, error) {
	norm := strings.TrimSuffix(strings.TrimSpace(token), "%")
	if v, err := strconv.Atoi(norm); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(norm, ",", "."), 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, &strconv.NumError{Func: "ParseWholeNumber", Num: token, Err: strconv.ErrSyntax}
	}
	return int(f), nil
}
