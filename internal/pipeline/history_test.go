package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"polltrack/internal"
)

const historyCSV = `start,end,source,CON,LAB,LD,GREEN,BXP,Other
2019-12-01,2019-12-03,Opinium/Observer,45,32,12,3,2,1
2019-12-01,2019-12-03,Opinium/Observer,45,32,12,3,2,1
,,,,,,,,
2020-01-08,2020-01-09,Redfield and Wilton,44,33,11,4,,2
2020-01-09,2020-01-10,YouGov/Times,43,34,12,4,1,2
2020-01-10,2020-01-11,YouGov/Times,43,34,12,4,1,2
`

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestHistoryLoadCSV(t *testing.T) {
	loader := NewHistoryLoader(testTables(t), day(2020, 1, 10), nil)

	records, err := loader.LoadCSV(strings.NewReader(historyCSV))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, internal.CollectionPollingReport, first.CollectionSource)
	assert.Empty(t, first.PostID)
	assert.Equal(t, day(2019, 12, 3), first.EffectiveDate)
	assert.Equal(t, day(2019, 12, 3), first.ObservedAt)
	require.NotNil(t, first.FieldworkStart)
	assert.Equal(t, day(2019, 12, 1), *first.FieldworkStart)
	require.NotNil(t, first.Source)
	assert.Equal(t, "OpiniumResearch", *first.Source)

	ldem, ok := first.Share("LDEM")
	require.True(t, ok)
	assert.Equal(t, 12, *ldem.Percentage)
	assert.Nil(t, ldem.Change)
	grn, _ := first.Share("GRN")
	assert.Equal(t, 3, *grn.Percentage)
	brex, _ := first.Share("BREX")
	assert.Equal(t, 2, *brex.Percentage)

	second := records[1]
	require.NotNil(t, second.Source)
	assert.Equal(t, "RedfieldWilton", *second.Source)
	brex, _ = second.Share("BREX")
	assert.Nil(t, brex.Percentage)
	ukip, ok := second.Share("UKIP")
	require.True(t, ok)
	assert.Nil(t, ukip.Percentage)
}

func TestHistoryLoadCSVErrors(t *testing.T) {
	loader := NewHistoryLoader(testTables(t), day(2020, 1, 10), nil)

	_, err := loader.LoadCSV(strings.NewReader("start,source,CON\n2019-12-01,YouGov,40\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no end column")

	_, err = loader.LoadCSV(strings.NewReader("end,CON\n2019-12-01,40.5\n"))
	require.ErrorIs(t, err, ErrBadNumber)

	records, err := loader.LoadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHistoryLoadDropsRowsWithoutEndDate(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	loader := NewHistoryLoader(testTables(t), day(2020, 1, 10), zap.New(core))

	csv := `start,end,source,CON,LAB
2019-12-01,2019-12-03,YouGov/Times,43,33
,,Opinium,41,31
2019-12-04,yesterday,Kantar,44,30
someday,2019-12-06,Survation,42,32
`
	records, err := loader.LoadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "YouGov", *records[0].Source)
	assert.Equal(t, "Survation", *records[1].Source)
	assert.Nil(t, records[1].FieldworkStart)
	assert.Equal(t, day(2019, 12, 6), records[1].EffectiveDate)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, []any{3, 4}, logs.All()[0].ContextMap()["rows"])
}

func TestHistoryLoadXLSX(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Start", "End", "Source", "CON", "LAB", "LIB"},
		{"2019-11-20", "2019-11-22", "Deltapoll/Mail on Sunday", 43, 30, 16},
		{"2019-11-25", "2019-11-26", "Kantar", 44, 28, 14},
	})

	loader := NewHistoryLoader(testTables(t), day(2020, 1, 10), nil)
	records, err := loader.LoadXLSX(blob)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "DeltapollUK", *records[0].Source)
	assert.Equal(t, "KantarPublic", *records[1].Source)
	ldem, _ := records[1].Share("LDEM")
	assert.Equal(t, 14, *ldem.Percentage)
}

func TestHistoryLoadFileDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "history.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(historyCSV), 0o644))
	xlsxPath := filepath.Join(dir, "history.xlsx")
	require.NoError(t, os.WriteFile(xlsxPath, mkXLSX([][]any{{"end", "CON"}, {"2019-10-01", 38}}), 0o644))

	loader := NewHistoryLoader(testTables(t), day(2020, 1, 10), nil)

	fromCSV, err := loader.LoadFile(csvPath)
	require.NoError(t, err)
	assert.Len(t, fromCSV, 2)

	fromXLSX, err := loader.LoadFile(xlsxPath)
	require.NoError(t, err)
	require.Len(t, fromXLSX, 1)
	assert.Nil(t, fromXLSX[0].Source)
	assert.Nil(t, fromXLSX[0].FieldworkStart)

	_, err = loader.LoadFile(filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
}

func TestNormalizeHistorySource(t *testing.T) {
	loader := NewHistoryLoader(testTables(t), day(2020, 1, 10), nil)

	cases := map[string]string{
		"Opinium/Observer":    "OpiniumResearch",
		"Redfield and Wilton": "RedfieldWilton",
		"BMG/Independent":     "BMGResearch",
		"Ipsos-MORI":          "IpsosMORI",
		"Survation":           "Survation",
	}
	for raw, want := range cases {
		got := loader.NormalizeSource(raw)
		require.NotNil(t, got, raw)
		assert.Equal(t, want, *got, raw)
	}
	assert.Nil(t, loader.NormalizeSource(""))
}
