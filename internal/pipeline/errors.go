package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotResultLine  = errors.New("not a result line")
	ErrUnknownParty   = errors.New("unknown party code")
	ErrBadNumber      = errors.New("invalid number")
	ErrBadDate        = errors.New("unresolvable date")
	ErrDuplicateID    = errors.New("duplicate post id")
	ErrDuplicateParty = errors.New("party reported twice")
)

// PostError wraps a fatal extraction failure together with the post text it
// came from.
type PostError struct {
	PostID string
	Body   []string
	Err    error
}

func (e *PostError) Error() string {
	return fmt.Sprintf("post %s: %v\n--- post text ---\n%s", e.PostID, e.Err, strings.Join(e.Body, "\n"))
}

func (e *PostError) Unwrap() error {
	return e.Err
}
