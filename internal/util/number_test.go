package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChange(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  int
	}{
		{name: "plus", input: "+3", want: 3},
		{name: "minus", input: "-3", want: -3},
		{name: "bare", input: "2", want: 2},
		{name: "dash", input: "-", want: 0},
		{name: "en dash", input: "\u2013", want: 0},
		{name: "em dash", input: "\u2014", want: 0},
		{name: "equals", input: "=", want: 0},
		{name: "unicode minus digits", input: "\u22124", want: -4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseChange(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	for _, bad := range []string{"", "~3", "+"} {
		_, err := ParseChange(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseWholeNumber(t *testing.T) {
	v, err := ParseWholeNumber("42%")
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = ParseWholeNumber("38.0")
	require.NoError(t, err)
	assert.Equal(t, 38, v)

	_, err = ParseWholeNumber("38.5")
	assert.Error(t, err)
	_, err = ParseWholeNumber("n/a")
	assert.Error(t, err)
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, "a b", NormalizeSpaces("  a \u00a0  b "))
	assert.Equal(t, []string{"a", "", "b"}, SplitLines("a\r\n\nb"))
	assert.Equal(t, "@YouGov", StripURLs("@YouGov https://t.co/z0lyoLiIMv"))
	assert.Equal(t, "RedfieldandWilton", CompactKey("Redfield and Wilton"))
	assert.Equal(t, "ComRes", CompactKey("Com-Res"))

	loc := time.FixedZone("BST", 3600)
	naive := NaiveTime(time.Date(2021, 1, 5, 10, 30, 0, 0, loc))
	assert.Equal(t, time.UTC, naive.Location())
	assert.Equal(t, 10, naive.Hour())
}
