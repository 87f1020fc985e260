package files

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"polltrack/internal"
	"polltrack/internal/config"
	"polltrack/internal/util"
)

var (
	statusIDPattern  = regexp.MustCompile(`/status(?:es)?/(\d+)`)
	timestampLayouts = []string{time.RubyDate, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}
)

// Connector reads one post per *.json document, and every embedded tweet in
// *.html documents, from a directory.
type Connector struct {
	dir string
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require("POSTS_DIR", cfg.PostsDir); err != nil {
		return nil, err
	}
	return &Connector{dir: cfg.PostsDir}, nil
}

func NewDirConnector(dir string) *Connector {
	return &Connector{dir: dir}
}

func (c *Connector) FetchPosts(keyword string, max int) ([]internal.FetchedPost, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	needle := strings.ToLower(strings.TrimSpace(keyword))
	out := []internal.FetchedPost{}
	for _, name := range names {
		path := filepath.Join(c.dir, name)
		var posts []internal.FetchedPost
		switch strings.ToLower(filepath.Ext(name)) {
		case ".json":
			post, err := readJSONDocument(path)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			posts = []internal.FetchedPost{post}
		case ".html", ".htm":
			posts, err = readHTMLDocument(path)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		default:
			continue
		}

		for _, post := range posts {
			if needle != "" && !strings.Contains(strings.ToLower(post.Text), needle) {
				continue
			}
			out = append(out, post)
			if max > 0 && len(out) >= max {
				return out, nil
			}
		}
	}
	return out, nil
}

type jsonDocument struct {
	ID        json.RawMessage `json:"_id"`
	IDStr     string          `json:"id_str"`
	CreatedAt json.RawMessage `json:"created_at"`
	FullText  string          `json:"full_text"`
	Text      string          `json:"text"`
}

func readJSONDocument(path string) (internal.FetchedPost, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return internal.FetchedPost{}, err
	}
	var doc jsonDocument
	dec := json.NewDecoder(bytes.NewReader(blob))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return internal.FetchedPost{}, err
	}

	id := decodeID(doc.ID)
	if id == "" {
		id = doc.IDStr
	}
	if id == "" {
		return internal.FetchedPost{}, fmt.Errorf("document has no id")
	}

	created, err := decodeTimestamp(doc.CreatedAt)
	if err != nil {
		return internal.FetchedPost{}, err
	}

	text := doc.FullText
	if text == "" {
		text = doc.Text
	}
	return internal.FetchedPost{ID: id, CreatedAt: created, Text: text, RawRef: path}, nil
}

// decodeID accepts a plain string or number, or an extended-JSON {"$oid": ...}.
func decodeID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var oid struct {
		OID string `json:"$oid"`
	}
	if err := json.Unmarshal(raw, &oid); err == nil {
		return oid.OID
	}
	return ""
}

func decodeTimestamp(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseTimestamp(s)
	}
	var wrapped struct {
		Date json.RawMessage `json:"$date"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Date) > 0 {
		var ms int64
		if err := json.Unmarshal(wrapped.Date, &ms); err == nil {
			return util.NaiveTime(time.UnixMilli(ms).UTC()), nil
		}
		return decodeTimestamp(wrapped.Date)
	}
	return time.Time{}, fmt.Errorf("unsupported created_at %s", string(raw))
}

// ParseTimestamp parses a post timestamp and drops its zone, keeping the
// wall-clock fields.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return util.NaiveTime(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %q", s)
}

func readHTMLDocument(path string) ([]internal.FetchedPost, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}

	var out []internal.FetchedPost
	var firstErr error
	doc.Find("blockquote.twitter-tweet").Each(func(i int, bq *goquery.Selection) {
		if firstErr != nil {
			return
		}
		post, err := embedToPost(bq)
		if err != nil {
			firstErr = fmt.Errorf("tweet %d: %w", i+1, err)
			return
		}
		post.RawRef = path
		out = append(out, post)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func embedToPost(bq *goquery.Selection) (internal.FetchedPost, error) {
	p := bq.Find("p").First()
	p.Find("br").ReplaceWithHtml("\n")
	text := strings.TrimSpace(p.Text())

	link := bq.Find("a").Last()
	href, _ := link.Attr("href")
	m := statusIDPattern.FindStringSubmatch(href)
	if m == nil {
		return internal.FetchedPost{}, fmt.Errorf("no status link in embed")
	}

	created, err := time.Parse("January 2, 2006", strings.TrimSpace(link.Text()))
	if err != nil {
		return internal.FetchedPost{}, fmt.Errorf("embed date: %w", err)
	}
	return internal.FetchedPost{ID: m[1], CreatedAt: created, Text: text}, nil
}
