package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"polltrack/internal"
)

const (
	timestampLayout = "2006-01-02T15:04:05"
	dateLayout      = "2006-01-02"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS posts (
  id TEXT PRIMARY KEY,
  createdAt TEXT NOT NULL,
  body TEXT NOT NULL,
  hash TEXT NOT NULL,
  rawRef TEXT NOT NULL,
  fetchedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_posts_createdAt ON posts(createdAt);

CREATE TABLE IF NOT EXISTS poll_records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  collection TEXT NOT NULL,
  postId TEXT,
  observedAt TEXT NOT NULL,
  fieldworkStart TEXT,
  fieldworkEnd TEXT,
  effectiveDate TEXT NOT NULL,
  source TEXT,
  changeSummary TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(collection, postId)
);
CREATE INDEX IF NOT EXISTS idx_records_effective ON poll_records(effectiveDate);
CREATE INDEX IF NOT EXISTS idx_records_source ON poll_records(source);

CREATE TABLE IF NOT EXISTS record_shares (
  recordId INTEGER NOT NULL,
  position INTEGER NOT NULL,
  party TEXT NOT NULL,
  percentage INTEGER,
  change INTEGER,
  PRIMARY KEY(recordId, position),
  FOREIGN KEY(recordId) REFERENCES poll_records(id)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  kind TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertPost(post internal.FetchedPost, hash string) (internal.PostRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO posts (id, createdAt, body, hash, rawRef)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  createdAt=excluded.createdAt,
  body=excluded.body,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  fetchedAt=CURRENT_TIMESTAMP
`, post.ID, post.CreatedAt.Format(timestampLayout), post.Text, hash, post.RawRef)
	if err != nil {
		return internal.PostRow{}, err
	}

	row, err := d.GetPost(post.ID)
	if err != nil {
		return internal.PostRow{}, err
	}
	if row == nil {
		return internal.PostRow{}, errors.New("failed to upsert post")
	}
	return *row, nil
}

func (d *DB) GetPost(id string) (*internal.PostRow, error) {
	var row internal.PostRow
	err := d.conn.QueryRow(`
SELECT id, createdAt, body, hash, rawRef FROM posts WHERE id = ?
`, id).Scan(&row.ID, &row.CreatedAt, &row.Body, &row.Hash, &row.RawRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListPosts() ([]internal.PostRow, error) {
	rows, err := d.conn.Query(`
SELECT id, createdAt, body, hash, rawRef FROM posts ORDER BY createdAt ASC, id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.PostRow
	for rows.Next() {
		var row internal.PostRow
		if err := rows.Scan(&row.ID, &row.CreatedAt, &row.Body, &row.Hash, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ReplaceRecords rebuilds one collection in full. Records are inserted in
// slice order, which ListRecords uses to break effective-date ties.
func (d *DB) ReplaceRecords(collection internal.CollectionSource, records []internal.PollRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM record_shares WHERE recordId IN (SELECT id FROM poll_records WHERE collection = ?)`, string(collection)); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM poll_records WHERE collection = ?`, string(collection)); err != nil {
		return err
	}

	recStmt, err := tx.Prepare(`
INSERT INTO poll_records (collection, postId, observedAt, fieldworkStart, fieldworkEnd, effectiveDate, source, changeSummary)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer recStmt.Close()

	shareStmt, err := tx.Prepare(`INSERT INTO record_shares (recordId, position, party, percentage, change) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer shareStmt.Close()

	for _, r := range records {
		var postID *string
		if r.PostID != "" {
			postID = &r.PostID
		}
		res, err := recStmt.Exec(
			string(collection), postID, r.ObservedAt.Format(timestampLayout),
			formatDate(r.FieldworkStart), formatDate(r.FieldworkEnd),
			r.EffectiveDate.Format(timestampLayout), r.Source, r.ChangeSummary,
		)
		if err != nil {
			return err
		}
		recordID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for pos, s := range r.Shares {
			if _, err := shareStmt.Exec(recordID, pos, s.Party, s.Percentage, s.Change); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (d *DB) ListRecords(filter internal.RecordFilter) ([]internal.PollRecord, error) {
	var where []string
	var args []any
	if filter.Collection != nil {
		where = append(where, "collection = ?")
		args = append(args, string(*filter.Collection))
	}
	if filter.From != nil {
		where = append(where, "effectiveDate >= ?")
		args = append(args, filter.From.Format(timestampLayout))
	}
	if filter.To != nil {
		where = append(where, "effectiveDate <= ?")
		args = append(args, filter.To.Format(timestampLayout))
	}
	if filter.Source != nil {
		where = append(where, "source = ?")
		args = append(args, *filter.Source)
	}

	query := `
SELECT id, collection, postId, observedAt, fieldworkStart, fieldworkEnd, effectiveDate, source, changeSummary
FROM poll_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY effectiveDate ASC, id ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	var out []internal.PollRecord
	for rows.Next() {
		var (
			id                       int64
			rec                      internal.PollRecord
			collection               string
			postID                   *string
			observedAt, effective    string
			fieldworkStart, fieldEnd *string
		)
		if err := rows.Scan(&id, &collection, &postID, &observedAt, &fieldworkStart, &fieldEnd, &effective, &rec.Source, &rec.ChangeSummary); err != nil {
			return nil, err
		}
		rec.CollectionSource = internal.CollectionSource(collection)
		if postID != nil {
			rec.PostID = *postID
		}
		if rec.ObservedAt, err = time.Parse(timestampLayout, observedAt); err != nil {
			return nil, err
		}
		if rec.EffectiveDate, err = time.Parse(timestampLayout, effective); err != nil {
			return nil, err
		}
		if rec.FieldworkStart, err = parseDate(fieldworkStart); err != nil {
			return nil, err
		}
		if rec.FieldworkEnd, err = parseDate(fieldEnd); err != nil {
			return nil, err
		}
		ids = append(ids, id)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, id := range ids {
		shares, err := d.listShares(id)
		if err != nil {
			return nil, err
		}
		out[i].Shares = shares
	}
	return out, nil
}

func (d *DB) listShares(recordID int64) ([]internal.PartyShare, error) {
	rows, err := d.conn.Query(`
SELECT party, percentage, change FROM record_shares WHERE recordId = ? ORDER BY position ASC
`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.PartyShare
	for rows.Next() {
		var s internal.PartyShare
		if err := rows.Scan(&s.Party, &s.Percentage, &s.Change); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// InsertRun records one pipeline run and returns its trace id.
func (d *DB) InsertRun(kind string, timings map[string]float64, counts internal.RunCounts) (string, error) {
	traceID := uuid.NewString()
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, kind, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, kind, string(timingsJSON), string(countsJSON))
	if err != nil {
		return "", err
	}
	return traceID, nil
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (d *DB) DeleteMetadata(key string) error {
	_, err := d.conn.Exec(`DELETE FROM metadata WHERE key = ?`, key)
	return err
}

func formatDate(v *time.Time) *string {
	if v == nil {
		return nil
	}
	s := v.Format(dateLayout)
	return &s
}

func parseDate(v *string) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseTimestamp reads a post timestamp as stored by UpsertPost.
func ParseTimestamp(v string) (time.Time, error) {
	return time.Parse(timestampLayout, v)
}
