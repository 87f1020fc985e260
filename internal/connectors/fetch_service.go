package connectors

import (
	"go.uber.org/zap"

	"polltrack/internal/storage"
)

type FetchService struct {
	connector PostConnector
	store     *PostStoreService
	logger    *zap.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
	Changed int
}

func NewFetchService(db *storage.DB, connector PostConnector, logger *zap.Logger) *FetchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FetchService{
		connector: connector,
		store:     NewPostStoreService(db),
		logger:    logger,
	}
}

func (s *FetchService) FetchAndStore(keyword string, max int) (FetchResult, error) {
	posts, err := s.connector.FetchPosts(keyword, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(posts)}
	for _, post := range posts {
		_, changed, err := s.store.Store(post)
		if err != nil {
			return FetchResult{}, err
		}
		res.Stored++
		if changed {
			res.Changed++
		}
	}

	s.logger.Info("posts stored",
		zap.Int("fetched", res.Fetched),
		zap.Int("stored", res.Stored),
		zap.Int("changed", res.Changed),
	)
	return res, nil
}
