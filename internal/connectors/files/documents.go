package files

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"polltrack/internal"
)

type dumpDocument struct {
	ID        string `json:"_id"`
	CreatedAt string `json:"created_at"`
	FullText  string `json:"full_text"`
}

var idReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")

// WriteDocuments writes each post to <dir>/<id>.json in the layout FetchPosts
// reads back. Existing files for the same id are overwritten.
func WriteDocuments(dir string, posts []internal.FetchedPost) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	written := 0
	for _, post := range posts {
		if strings.TrimSpace(post.ID) == "" {
			return written, fmt.Errorf("post without id")
		}
		blob, err := json.MarshalIndent(dumpDocument{
			ID:        post.ID,
			CreatedAt: post.CreatedAt.Format(time.RubyDate),
			FullText:  post.Text,
		}, "", "    ")
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, idReplacer.Replace(post.ID)+".json")
		if err := os.WriteFile(path, blob, 0o644); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
