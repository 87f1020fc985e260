package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyLine(t *testing.T) {
	cases := []struct {
		line string
		want LineKind
	}{
		{line: "CON: 40% (+1)", want: LineResult},
		{line: "via @YouGov, 12 - 13 Jan", want: LineAttribution},
		{line: "Fieldwork via Opinium, 3 Jan", want: LineAttribution},
		{line: "Chgs. w/ 10 Jan", want: LineChange},
		{line: "Chgs. w/ 10 Jan, via @YouGov", want: LineChange | LineAttribution},
		{line: "Westminster voting intention:", want: 0},
		{line: "Trivia night results", want: 0},
		{line: "CON: 40%", want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyLine(tc.line))
		})
	}
}

func TestClassifyLinesKeepsFirstMatch(t *testing.T) {
	got := ClassifyLines([]string{
		"  CON: 40% (+1)  ",
		"via @YouGov, 12 - 13 Jan",
		"VIA @Opinium, 1 Feb",
		"Chgs. w/ 10 Jan",
		"chg second",
		"LAB: 38% (-1)",
	})

	assert.Equal(t, []string{"CON: 40% (+1)", "LAB: 38% (-1)"}, got.Results)
	require.NotNil(t, got.Attribution)
	assert.Equal(t, "via @YouGov, 12 - 13 Jan", *got.Attribution)
	require.NotNil(t, got.Change)
	assert.Equal(t, "Chgs. w/ 10 Jan", *got.Change)

	none := ClassifyLines([]string{"nothing", ""})
	assert.Nil(t, none.Attribution)
	assert.Nil(t, none.Change)
	assert.Empty(t, none.Results)
}
