package pipeline

import (
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"polltrack/internal"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// RecordHeaders lists the export columns: fixed metadata, then one
// percentage and one change column per party.
func RecordHeaders(parties []string) []string {
	headers := []string{
		"date", "observed_at", "fieldwork_start", "fieldwork_end",
		"source", "change_summary", "collection_source",
	}
	for _, p := range parties {
		headers = append(headers, p, p+"_change")
	}
	return headers
}

// RecordRow renders one record in RecordHeaders order. Absent values are nil.
func RecordRow(r internal.PollRecord, parties []string) []any {
	row := []any{
		r.EffectiveDate.Format(dateLayout),
		r.ObservedAt.Format(dateTimeLayout),
		derefDate(r.FieldworkStart),
		derefDate(r.FieldworkEnd),
		derefString(r.Source),
		derefString(r.ChangeSummary),
		string(r.CollectionSource),
	}
	for _, p := range parties {
		share, _ := r.Share(p)
		row = append(row, derefInt(share.Percentage), derefInt(share.Change))
	}
	return row
}

func ExportRecordsToXLSX(records []internal.PollRecord, parties []string, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range RecordHeaders(parties) {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, rec := range records {
		r := i + 2
		for col, value := range RecordRow(rec, parties) {
			if value == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, r)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func derefDate(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.Format(dateLayout)
}
