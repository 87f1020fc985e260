package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"polltrack/internal"
	"polltrack/internal/config"
	"polltrack/internal/storage"
	"polltrack/internal/util"
)

type ProcessingService struct {
	db     *storage.DB
	cfg    config.Config
	tables *config.Tables
	logger *zap.Logger
}

func NewProcessingService(db *storage.DB, cfg config.Config, tables *config.Tables, logger *zap.Logger) *ProcessingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessingService{db: db, cfg: cfg, tables: tables, logger: logger}
}

type ProcessResult struct {
	TraceID string
	Counts  internal.RunCounts
}

// ExtractStored rebuilds the britainelects collection from every stored post.
func (s *ProcessingService) ExtractStored(ctx context.Context) (ProcessResult, error) {
	start := time.Now()

	rows, err := s.db.ListPosts()
	if err != nil {
		return ProcessResult{}, err
	}
	posts := make([]internal.RawPost, 0, len(rows))
	for _, row := range rows {
		post, err := PostRowToRawPost(row)
		if err != nil {
			return ProcessResult{}, err
		}
		posts = append(posts, post)
	}

	assembler := NewAssembler(s.tables, AssemblerOptions{
		Workers:                s.cfg.ExtractWorkers,
		SkipInvalidPosts:       s.cfg.SkipInvalidPosts,
		StrictDuplicateParties: s.cfg.StrictDuplicateParties,
	}, s.logger)
	res, err := assembler.Assemble(ctx, posts)
	if err != nil {
		return ProcessResult{}, err
	}
	records := res.Index.Records()
	if err := s.db.ReplaceRecords(internal.CollectionBritainElects, records); err != nil {
		return ProcessResult{}, err
	}

	counts := CountRecords(records)
	counts.Posts = len(posts)
	counts.Skipped = len(res.Skipped)
	elapsed := float64(time.Since(start).Milliseconds())
	traceID, err := s.db.InsertRun("extract", map[string]float64{"totalMs": elapsed}, counts)
	if err != nil {
		return ProcessResult{}, err
	}

	s.logger.Info("extraction run complete",
		zap.String("trace_id", traceID),
		zap.Int("posts", counts.Posts),
		zap.Int("records", counts.Records),
		zap.Int("skipped", counts.Skipped),
		zap.Float64("elapsed_ms", elapsed),
	)
	return ProcessResult{TraceID: traceID, Counts: counts}, nil
}

// ImportHistory rebuilds the uk_prh collection from the history file.
func (s *ProcessingService) ImportHistory(path string) (ProcessResult, error) {
	start := time.Now()
	loader := NewHistoryLoader(s.tables, s.cfg.HistoryCutoff, s.logger)
	records, err := loader.LoadFile(path)
	if err != nil {
		return ProcessResult{}, err
	}
	records = NewIndex(records).Records()
	if err := s.db.ReplaceRecords(internal.CollectionPollingReport, records); err != nil {
		return ProcessResult{}, err
	}

	counts := CountRecords(records)
	counts.Historic = len(records)
	elapsed := float64(time.Since(start).Milliseconds())
	traceID, err := s.db.InsertRun("history", map[string]float64{"totalMs": elapsed}, counts)
	if err != nil {
		return ProcessResult{}, err
	}

	s.logger.Info("history import complete",
		zap.String("trace_id", traceID),
		zap.String("path", path),
		zap.Int("records", counts.Records),
	)
	return ProcessResult{TraceID: traceID, Counts: counts}, nil
}

func PostRowToRawPost(row internal.PostRow) (internal.RawPost, error) {
	created, err := storage.ParseTimestamp(row.CreatedAt)
	if err != nil {
		return internal.RawPost{}, fmt.Errorf("post %s: bad createdAt %q: %w", row.ID, row.CreatedAt, err)
	}
	return internal.RawPost{ID: row.ID, CreatedAt: created, Body: util.SplitLines(row.Body)}, nil
}

func CountRecords(records []internal.PollRecord) internal.RunCounts {
	counts := internal.RunCounts{Records: len(records)}
	for _, r := range records {
		if r.FieldworkEnd != nil {
			counts.Dated++
		}
		if r.Source != nil {
			counts.Sourced++
		}
	}
	return counts
}
