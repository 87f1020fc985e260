package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"polltrack/internal"
	"polltrack/internal/config"
	"polltrack/internal/util"
)

func RawPostsFromFetched(posts []internal.FetchedPost) []internal.RawPost {
	out := make([]internal.RawPost, 0, len(posts))
	for _, p := range posts {
		out = append(out, internal.RawPost{ID: p.ID, CreatedAt: p.CreatedAt, Body: util.SplitLines(p.Text)})
	}
	return out
}

// RunOnce extracts records from already fetched posts without touching the
// database, merging the history file when historyPath is set.
func RunOnce(ctx context.Context, cfg config.Config, tables *config.Tables, posts []internal.FetchedPost, historyPath string, logger *zap.Logger) (*Index, error) {
	assembler := NewAssembler(tables, AssemblerOptions{
		Workers:                cfg.ExtractWorkers,
		SkipInvalidPosts:       cfg.SkipInvalidPosts,
		StrictDuplicateParties: cfg.StrictDuplicateParties,
	}, logger)
	res, err := assembler.Assemble(ctx, RawPostsFromFetched(posts))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(historyPath) == "" {
		return res.Index, nil
	}

	history, err := NewHistoryLoader(tables, cfg.HistoryCutoff, logger).LoadFile(historyPath)
	if err != nil {
		return nil, err
	}
	return NewIndex(history).Merge(res.Index), nil
}
