package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"polltrack/internal"
	"polltrack/internal/config"
	"polltrack/internal/util"
)

type AssemblerOptions struct {
	Workers                int
	SkipInvalidPosts       bool
	StrictDuplicateParties bool
}

type Assembler struct {
	parser *Parser
	opts   AssemblerOptions
	logger *zap.Logger
}

type AssembleResult struct {
	Index   *Index
	Skipped []*PostError
}

func NewAssembler(tables *config.Tables, opts AssemblerOptions, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Assembler{
		parser: NewParser(tables, ParserOptions{StrictDuplicateParties: opts.StrictDuplicateParties}),
		opts:   opts,
		logger: logger,
	}
}

// BuildRecord derives one record from one post. Fatal failures come back as
// *PostError carrying the post text.
func (a *Assembler) BuildRecord(post internal.RawPost) (internal.PollRecord, error) {
	fail := func(err error) (internal.PollRecord, error) {
		return internal.PollRecord{}, &PostError{PostID: post.ID, Body: post.Body, Err: err}
	}

	observed := util.NaiveTime(post.CreatedAt)
	lines := ClassifyLines(post.Body)

	results, repeated, err := a.parser.extractResults(lines.Results)
	if err != nil {
		return fail(err)
	}
	if len(repeated) > 0 {
		a.logger.Warn("party reported more than once, keeping last line",
			zap.String("post_id", post.ID),
			zap.Strings("parties", repeated),
		)
	}

	attribution := a.parser.parseAttributionLine(lines.Attribution)
	var tr *TimeRange
	if attribution.TimeRange != nil {
		tr = ParseTimeRange(*attribution.TimeRange)
	}
	start, end, err := a.parser.ResolveRange(tr, observed)
	if err != nil {
		return fail(err)
	}

	effective := observed
	if end != nil {
		effective = *end
	}

	return internal.PollRecord{
		PostID:           post.ID,
		ObservedAt:       observed,
		FieldworkStart:   start,
		FieldworkEnd:     end,
		EffectiveDate:    effective,
		Source:           attribution.Source,
		ChangeSummary:    changeSummaryFromLine(lines.Change),
		Shares:           a.parser.FlattenShares(results),
		CollectionSource: internal.CollectionBritainElects,
	}, nil
}

// Assemble builds the full collection. Duplicate ids abort before any record
// is derived. Posts are processed in observed order and the resulting Index is
// identical whatever the worker count.
func (a *Assembler) Assemble(ctx context.Context, posts []internal.RawPost) (AssembleResult, error) {
	if err := checkUniqueIDs(posts); err != nil {
		return AssembleResult{}, err
	}

	ordered := make([]internal.RawPost, len(posts))
	copy(ordered, posts)
	sort.SliceStable(ordered, func(i, j int) bool {
		return util.NaiveTime(ordered[i].CreatedAt).Before(util.NaiveTime(ordered[j].CreatedAt))
	})

	records := make([]internal.PollRecord, len(ordered))
	errs := make([]error, len(ordered))
	if err := a.derive(ctx, ordered, records, errs); err != nil {
		return AssembleResult{}, err
	}

	kept := make([]internal.PollRecord, 0, len(records))
	var skipped []*PostError
	for i, err := range errs {
		if err == nil {
			kept = append(kept, records[i])
			continue
		}
		var postErr *PostError
		if !errors.As(err, &postErr) || !a.opts.SkipInvalidPosts {
			return AssembleResult{}, err
		}
		a.logger.Error("skipping post", zap.String("post_id", postErr.PostID), zap.Error(postErr))
		skipped = append(skipped, postErr)
	}

	return AssembleResult{Index: NewIndex(kept), Skipped: skipped}, nil
}

func (a *Assembler) derive(ctx context.Context, posts []internal.RawPost, records []internal.PollRecord, errs []error) error {
	if a.opts.Workers == 1 || len(posts) < 2 {
		for i, post := range posts {
			if err := ctx.Err(); err != nil {
				return err
			}
			records[i], errs[i] = a.BuildRecord(post)
		}
		return nil
	}

	pool := pond.NewPool(a.opts.Workers, pond.WithQueueSize(len(posts)))
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	for i := range posts {
		i := i // per-iteration copy; module targets go 1.21 (pre-1.22 loopvar semantics)
		group.Submit(func() {
			records[i], errs[i] = a.BuildRecord(posts[i])
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func checkUniqueIDs(posts []internal.RawPost) error {
	seen := make(map[string]int, len(posts))
	for i, post := range posts {
		if first, ok := seen[post.ID]; ok {
			return &PostError{
				PostID: post.ID,
				Body:   post.Body,
				Err:    fmt.Errorf("%w: %q at positions %d and %d", ErrDuplicateID, post.ID, first, i),
			}
		}
		seen[post.ID] = i
	}
	return nil
}
