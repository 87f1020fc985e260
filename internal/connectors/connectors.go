package connectors

import "polltrack/internal"

type PostConnector interface {
	FetchPosts(keyword string, max int) ([]internal.FetchedPost, error)
}
