package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"polltrack/internal"
	"polltrack/internal/config"
	"polltrack/internal/util"
)

var historyDateLayouts = []string{"2006-01-02", "2006/01/02", "2006-01-02 15:04:05", "2006-1-2"}

// HistoryLoader reads the UK Polling Report history file. Rows ending on or
// after Cutoff are dropped so the file does not overlap the extracted posts,
// and so are rows whose end date cannot be read.
type HistoryLoader struct {
	tables *config.Tables
	cutoff time.Time
	logger *zap.Logger
}

func NewHistoryLoader(tables *config.Tables, cutoff time.Time, logger *zap.Logger) *HistoryLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryLoader{tables: tables, cutoff: cutoff, logger: logger}
}

func (l *HistoryLoader) LoadFile(path string) ([]internal.PollRecord, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return l.LoadXLSX(blob)
	default:
		return l.LoadCSV(bytes.NewReader(blob))
	}
}

func (l *HistoryLoader) LoadCSV(r io.Reader) ([]internal.PollRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read history csv: %w", err)
	}
	return l.fromRows(rows)
}

func (l *HistoryLoader) LoadXLSX(content []byte) ([]internal.PollRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	return l.fromRows(rows)
}

type historyColumns struct {
	start, end, source int
	parties            map[int]string
}

func (l *HistoryLoader) inferColumns(header []string) (historyColumns, error) {
	cols := historyColumns{start: -1, end: -1, source: -1, parties: map[int]string{}}
	for i, h := range header {
		name := strings.TrimSpace(h)
		switch strings.ToLower(name) {
		case "start":
			cols.start = i
			continue
		case "end":
			cols.end = i
			continue
		case "source":
			cols.source = i
			continue
		}
		code := strings.ToUpper(name)
		if renamed, ok := l.tables.HistoryColumns[code]; ok {
			code = renamed
		}
		if l.tables.IsParty(code) {
			cols.parties[i] = code
		}
	}
	if cols.end < 0 {
		return cols, fmt.Errorf("history file has no end column")
	}
	return cols, nil
}

func (l *HistoryLoader) fromRows(rows [][]string) ([]internal.PollRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	cols, err := l.inferColumns(rows[0])
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	var undated []int
	out := make([]internal.PollRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNo := i + 2
		cells := normalizeCells(row)
		if isBlankRow(cells) {
			continue
		}

		key := cols.rowKey(cells)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		end, err := parseHistoryDate(pickCell(cells, cols.end))
		if err != nil {
			undated = append(undated, rowNo)
			continue
		}
		if !end.Before(l.cutoff) {
			continue
		}
		rec, err := l.toRecord(cols, cells, end)
		if err != nil {
			return nil, fmt.Errorf("history row %d: %w", rowNo, err)
		}
		out = append(out, rec)
	}
	if len(undated) > 0 {
		l.logger.Warn("history rows without end date dropped", zap.Ints("rows", undated))
	}
	return out, nil
}

func (l *HistoryLoader) toRecord(cols historyColumns, cells []string, end time.Time) (internal.PollRecord, error) {
	rec := internal.PollRecord{
		ObservedAt:       end,
		FieldworkEnd:     util.TimePtr(end),
		EffectiveDate:    end,
		CollectionSource: internal.CollectionPollingReport,
	}
	if start, err := parseHistoryDate(pickCell(cells, cols.start)); err == nil {
		rec.FieldworkStart = util.TimePtr(start)
	}
	rec.Source = l.NormalizeSource(pickCell(cells, cols.source))

	values := map[string]int{}
	for idx, party := range cols.parties {
		raw := pickCell(cells, idx)
		if raw == "" {
			continue
		}
		v, err := util.ParseWholeNumber(raw)
		if err != nil {
			return internal.PollRecord{}, fmt.Errorf("%w: %s=%q", ErrBadNumber, party, raw)
		}
		values[party] = v
	}
	for _, party := range l.tables.Parties {
		share := internal.PartyShare{Party: party}
		if v, ok := values[party]; ok {
			share.Percentage = util.IntPtr(v)
		}
		rec.Shares = append(rec.Shares, share)
	}
	return rec, nil
}

// NormalizeSource keeps the pollster part of "Pollster/Client", drops spaces
// and hyphens, then applies the history alias table.
func (l *HistoryLoader) NormalizeSource(raw string) *string {
	name := strings.SplitN(raw, "/", 2)[0]
	name = util.CompactKey(strings.TrimSpace(name))
	if alias, ok := l.tables.HistoryPollsterAliases[name]; ok {
		name = alias
	}
	if name == "" {
		return nil
	}
	return &name
}

func (c historyColumns) rowKey(cells []string) string {
	parts := []string{pickCell(cells, c.start), pickCell(cells, c.end), pickCell(cells, c.source)}
	for idx := 0; idx < len(cells); idx++ {
		if party, ok := c.parties[idx]; ok {
			parts = append(parts, party+"="+cells[idx])
		}
	}
	return strings.Join(parts, "\x1f")
}

func parseHistoryDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range historyDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, raw)
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, util.NormalizeSpaces(c))
	}
	return out
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

func pickCell(cells []string, idx int) string {
	if idx >= 0 && idx < len(cells) {
		return cells[idx]
	}
	return ""
}
