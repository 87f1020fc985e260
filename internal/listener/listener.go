package listener

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"polltrack/internal"
	"polltrack/internal/config"
	"polltrack/internal/connectors"
	"polltrack/internal/pipeline"
	"polltrack/internal/storage"
)

const (
	lastExtractKey    = "listener.last_extract_trace"
	pendingExtractKey = "listener.pending_extract"
)

// Service polls the configured post source and rebuilds the record
// collection whenever a post is added or edited.
type Service struct {
	db        *storage.DB
	cfg       config.Config
	tables    *config.Tables
	connector connectors.PostConnector
	logger    *zap.Logger
}

type CycleResult struct {
	Fetched   int
	Changed   int
	Extracted bool
	TraceID   string
	Exported  string
}

func NewService(db *storage.DB, cfg config.Config, tables *config.Tables, connector connectors.PostConnector, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, cfg: cfg, tables: tables, connector: connector, logger: logger}
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.WatchIntervalSec) * time.Second
	for {
		if _, err := s.RunCycle(ctx); err != nil {
			s.logger.Error("listener cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// RunCycle imports posts once and re-extracts when anything changed, when an
// earlier extraction is still pending, or when none has been recorded yet.
func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	fetch := connectors.NewFetchService(s.db, s.connector, s.logger)
	fetched, err := fetch.FetchAndStore(s.cfg.PostsKeyword, 0)
	if err != nil {
		return CycleResult{}, err
	}
	res := CycleResult{Fetched: fetched.Fetched, Changed: fetched.Changed}

	// Cleared only once the extraction it asks for has been recorded.
	if fetched.Changed > 0 {
		if err := s.db.SetMetadata(pendingExtractKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return res, err
		}
	}
	pending, err := s.db.GetMetadata(pendingExtractKey)
	if err != nil {
		return res, err
	}
	last, err := s.db.GetMetadata(lastExtractKey)
	if err != nil {
		return res, err
	}
	if pending == nil && last != nil {
		s.logger.Debug("listener cycle idle", zap.Int("fetched", fetched.Fetched))
		return res, nil
	}
	if pending != nil && fetched.Changed == 0 {
		s.logger.Info("retrying pending extraction", zap.String("pending_since", *pending))
	}

	processed, err := pipeline.NewProcessingService(s.db, s.cfg, s.tables, s.logger).ExtractStored(ctx)
	if err != nil {
		return res, err
	}
	res.Extracted = true
	res.TraceID = processed.TraceID
	if err := s.db.SetMetadata(lastExtractKey, processed.TraceID); err != nil {
		return res, err
	}
	if err := s.db.DeleteMetadata(pendingExtractKey); err != nil {
		return res, err
	}

	if s.cfg.WatchAutoExport {
		path, err := s.export()
		if err != nil {
			return res, err
		}
		res.Exported = path
	}

	s.logger.Info("listener cycle done",
		zap.String("trace_id", res.TraceID),
		zap.Int("fetched", res.Fetched),
		zap.Int("changed", res.Changed),
		zap.String("exported", res.Exported),
	)
	return res, nil
}

func (s *Service) export() (string, error) {
	records, err := s.db.ListRecords(internal.RecordFilter{})
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.cfg.OutputDir, "listener", "polls.xlsx")
	if err := pipeline.ExportRecordsToXLSX(records, s.tables.Parties, path); err != nil {
		return "", err
	}
	return path, nil
}
