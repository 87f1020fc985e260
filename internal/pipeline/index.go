package pipeline

import (
	"sort"
	"time"

	"polltrack/internal"
	"polltrack/internal/util"
)

// Index keeps records ordered by effective date. Records sharing a date keep
// the order they were added in.
type Index struct {
	records  []internal.PollRecord
	bySource map[string][]int
}

func NewIndex(records []internal.PollRecord) *Index {
	sorted := make([]internal.PollRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveDate.Before(sorted[j].EffectiveDate)
	})

	idx := &Index{records: sorted, bySource: map[string][]int{}}
	for i, r := range sorted {
		key := util.DerefString(r.Source)
		idx.bySource[key] = append(idx.bySource[key], i)
	}
	return idx
}

func (i *Index) Len() int {
	return len(i.records)
}

func (i *Index) Records() []internal.PollRecord {
	out := make([]internal.PollRecord, len(i.records))
	copy(out, i.records)
	return out
}

// Between returns records whose effective date lies in [from, to].
func (i *Index) Between(from, to time.Time) []internal.PollRecord {
	lo := sort.Search(len(i.records), func(k int) bool {
		return !i.records[k].EffectiveDate.Before(from)
	})
	hi := sort.Search(len(i.records), func(k int) bool {
		return i.records[k].EffectiveDate.After(to)
	})
	if lo >= hi {
		return nil
	}
	out := make([]internal.PollRecord, hi-lo)
	copy(out, i.records[lo:hi])
	return out
}

// BySource returns one pollster's records; "" selects unattributed ones.
func (i *Index) BySource(source string) []internal.PollRecord {
	positions := i.bySource[source]
	out := make([]internal.PollRecord, 0, len(positions))
	for _, pos := range positions {
		out = append(out, i.records[pos])
	}
	return out
}

func (i *Index) Sources() []string {
	out := make([]string, 0, len(i.bySource))
	for s := range i.bySource {
		if s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func (i *Index) Latest() (internal.PollRecord, bool) {
	if len(i.records) == 0 {
		return internal.PollRecord{}, false
	}
	return i.records[len(i.records)-1], true
}

// Merge combines two indexes. On equal dates records of i come first.
func (i *Index) Merge(other *Index) *Index {
	all := make([]internal.PollRecord, 0, i.Len()+other.Len())
	all = append(all, i.records...)
	all = append(all, other.records...)
	return NewIndex(all)
}

// Select applies a record filter the way storage.ListRecords does: bounds
// are inclusive and Limit keeps the earliest records.
func (i *Index) Select(filter internal.RecordFilter) []internal.PollRecord {
	view := i
	if filter.Source != nil {
		view = NewIndex(i.BySource(*filter.Source))
	}

	var out []internal.PollRecord
	if filter.From != nil || filter.To != nil {
		from, to := time.Time{}, time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
		if filter.From != nil {
			from = *filter.From
		}
		if filter.To != nil {
			to = *filter.To
		}
		out = view.Between(from, to)
	} else {
		out = view.Records()
	}

	if filter.Collection != nil {
		kept := out[:0]
		for _, r := range out {
			if r.CollectionSource == *filter.Collection {
				kept = append(kept, r)
			}
		}
		out = kept
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

type SourceSummary struct {
	Source  string
	Records int
	Latest  internal.PollRecord
}

// Summaries reports each attributed pollster with its record count and most
// recent record, ordered by pollster name.
func (i *Index) Summaries() []SourceSummary {
	sources := i.Sources()
	out := make([]SourceSummary, 0, len(sources))
	for _, s := range sources {
		own := NewIndex(i.BySource(s))
		latest, _ := own.Latest()
		out = append(out, SourceSummary{Source: s, Records: own.Len(), Latest: latest})
	}
	return out
}
