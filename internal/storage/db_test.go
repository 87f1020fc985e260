package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polltrack/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func strp(v string) *string { return &v }
func intp(v int) *int       { return &v }

func datep(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestUpsertPost(t *testing.T) {
	db := openTestDB(t)
	created := time.Date(2021, 1, 5, 18, 30, 0, 0, time.UTC)

	row, err := db.UpsertPost(internal.FetchedPost{ID: "p1", CreatedAt: created, Text: "first", RawRef: "a.json"}, "h1")
	require.NoError(t, err)
	assert.Equal(t, "2021-01-05T18:30:00", row.CreatedAt)

	row, err = db.UpsertPost(internal.FetchedPost{ID: "p1", CreatedAt: created, Text: "edited", RawRef: "a.json"}, "h2")
	require.NoError(t, err)
	assert.Equal(t, "edited", row.Body)
	assert.Equal(t, "h2", row.Hash)

	_, err = db.UpsertPost(internal.FetchedPost{ID: "p0", CreatedAt: created.Add(-time.Hour), Text: "earlier"}, "h0")
	require.NoError(t, err)

	rows, err := db.ListPosts()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "p0", rows[0].ID)

	parsed, err := ParseTimestamp(rows[1].CreatedAt)
	require.NoError(t, err)
	assert.Equal(t, created, parsed)

	missing, err := db.GetPost("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReplaceAndListRecords(t *testing.T) {
	db := openTestDB(t)

	posts := []internal.PollRecord{
		{
			PostID:           "p1",
			ObservedAt:       time.Date(2021, 1, 5, 18, 30, 0, 0, time.UTC),
			FieldworkStart:   datep(2020, 12, 28),
			FieldworkEnd:     datep(2020, 12, 30),
			EffectiveDate:    *datep(2020, 12, 30),
			Source:           strp("SomePollster"),
			ChangeSummary:    strp("20 Dec"),
			CollectionSource: internal.CollectionBritainElects,
			Shares: []internal.PartyShare{
				{Party: "GRN"},
				{Party: "LAB", Percentage: intp(38), Change: intp(-1)},
				{Party: "CON", Percentage: intp(40), Change: intp(1)},
			},
		},
		{
			PostID:           "p2",
			ObservedAt:       time.Date(2021, 1, 6, 9, 0, 0, 0, time.UTC),
			EffectiveDate:    time.Date(2021, 1, 6, 9, 0, 0, 0, time.UTC),
			CollectionSource: internal.CollectionBritainElects,
			Shares:           []internal.PartyShare{{Party: "CON", Percentage: intp(41), Change: intp(0)}},
		},
	}
	history := []internal.PollRecord{
		{
			ObservedAt:       *datep(2019, 12, 3),
			FieldworkEnd:     datep(2019, 12, 3),
			EffectiveDate:    *datep(2019, 12, 3),
			Source:           strp("OpiniumResearch"),
			CollectionSource: internal.CollectionPollingReport,
			Shares:           []internal.PartyShare{{Party: "CON", Percentage: intp(45)}},
		},
		{
			ObservedAt:       *datep(2019, 12, 5),
			EffectiveDate:    *datep(2019, 12, 5),
			CollectionSource: internal.CollectionPollingReport,
		},
	}

	require.NoError(t, db.ReplaceRecords(internal.CollectionBritainElects, posts))
	require.NoError(t, db.ReplaceRecords(internal.CollectionPollingReport, history))
	// Replacing a collection leaves the other one alone.
	require.NoError(t, db.ReplaceRecords(internal.CollectionBritainElects, posts))

	all, err := db.ListRecords(internal.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, internal.CollectionPollingReport, all[0].CollectionSource)
	assert.Equal(t, posts[0], all[2])
	assert.Equal(t, posts[1], all[3])
	assert.Nil(t, all[1].Shares)

	be := internal.CollectionBritainElects
	from, to := datep(2020, 12, 1), datep(2020, 12, 31)
	filtered, err := db.ListRecords(internal.RecordFilter{Collection: &be, From: from, To: to})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "p1", filtered[0].PostID)

	bySource, err := db.ListRecords(internal.RecordFilter{Source: strp("OpiniumResearch")})
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	assert.Empty(t, bySource[0].PostID)

	limited, err := db.ListRecords(internal.RecordFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestInsertRunAndMetadata(t *testing.T) {
	db := openTestDB(t)

	traceID, err := db.InsertRun("extract", map[string]float64{"totalMs": 12}, internal.RunCounts{Posts: 3, Records: 3})
	require.NoError(t, err)
	assert.Len(t, traceID, 36)

	other, err := db.InsertRun("extract", nil, internal.RunCounts{})
	require.NoError(t, err)
	assert.NotEqual(t, traceID, other)

	v, err := db.GetMetadata("last_extract")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, db.SetMetadata("last_extract", traceID))
	require.NoError(t, db.SetMetadata("last_extract", other))
	v, err = db.GetMetadata("last_extract")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, other, *v)

	require.NoError(t, db.DeleteMetadata("last_extract"))
	require.NoError(t, db.DeleteMetadata("last_extract"))
	v, err = db.GetMetadata("last_extract")
	require.NoError(t, err)
	assert.Nil(t, v)
}
