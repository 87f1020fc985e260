package connectors

import (
	"crypto/sha256"
	"encoding/hex"

	"polltrack/internal"
	"polltrack/internal/storage"
)

type PostStoreService struct {
	db *storage.DB
}

func NewPostStoreService(db *storage.DB) *PostStoreService {
	return &PostStoreService{db: db}
}

// Store upserts post and reports whether it is new or its text changed.
func (s *PostStoreService) Store(post internal.FetchedPost) (internal.PostRow, bool, error) {
	hashBytes := sha256.Sum256([]byte(post.Text))
	hash := hex.EncodeToString(hashBytes[:])

	existing, err := s.db.GetPost(post.ID)
	if err != nil {
		return internal.PostRow{}, false, err
	}
	row, err := s.db.UpsertPost(post, hash)
	if err != nil {
		return internal.PostRow{}, false, err
	}
	return row, existing == nil || existing.Hash != hash, nil
}
