package pipeline

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"polltrack/internal"
)

// RenderTable writes records as a terminal table using the export columns.
func RenderTable(w io.Writer, records []internal.PollRecord, parties []string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := table.Row{}
	for _, h := range RecordHeaders(parties) {
		header = append(header, h)
	}
	t.AppendHeader(header)

	for _, rec := range records {
		row := table.Row{}
		for _, v := range RecordRow(rec, parties) {
			if v == nil {
				v = ""
			}
			row = append(row, v)
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{"records", len(records)})

	t.Render()
}

// RenderSummaries writes one row per pollster with its latest shares.
func RenderSummaries(w io.Writer, summaries []SourceSummary, parties []string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := table.Row{"source", "records", "latest"}
	for _, p := range parties {
		header = append(header, p)
	}
	t.AppendHeader(header)

	for _, s := range summaries {
		row := table.Row{s.Source, s.Records, s.Latest.EffectiveDate.Format(dateLayout)}
		for _, p := range parties {
			share, ok := s.Latest.Share(p)
			if !ok || share.Percentage == nil {
				row = append(row, "")
				continue
			}
			row = append(row, *share.Percentage)
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{"pollsters", len(summaries)})

	t.Render()
}
