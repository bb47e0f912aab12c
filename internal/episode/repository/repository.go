// Package repository persists episodes and comments behind an explicit
// transaction boundary. Every backend exposes the same Store.
package repository

import (
	"context"
	"errors"

	"github.com/castboard/castboard/internal/episode"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrInvalidComment is returned when a comment has no parent episode or author.
	ErrInvalidComment = errors.New("comment requires an episode and an author")
)

// EpisodeRepository defines persistence operations for episodes.
type EpisodeRepository interface {
	// List returns all episodes ordered by ascending id.
	List(ctx context.Context) ([]*episode.Episode, error)
	FindByID(ctx context.Context, id int64) (*episode.Episode, error)
	// FindBySlug returns the lowest-id episode carrying slug.
	FindBySlug(ctx context.Context, slug string) (*episode.Episode, error)
	// Save inserts when e.ID is zero and assigns the new id, otherwise updates.
	Save(ctx context.Context, e *episode.Episode) error
	// Delete removes the episode and its comments.
	Delete(ctx context.Context, id int64) error
}

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	FindByID(ctx context.Context, id int64) (*episode.Comment, error)
	// ListByEpisode returns comments of an episode ordered by ascending id.
	ListByEpisode(ctx context.Context, episodeID int64) ([]*episode.Comment, error)
	// Save inserts a new comment. The parent episode must exist.
	Save(ctx context.Context, c *episode.Comment) error
	Delete(ctx context.Context, id int64) error
}

// Tx is the unit of work handed to WithTx callbacks.
type Tx interface {
	Episodes() EpisodeRepository
	Comments() CommentRepository
}

// Store runs units of work. fn receives the context it must pass to the
// repositories; changes are committed only when fn returns nil.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func validComment(c *episode.Comment) error {
	if c.EpisodeID == 0 || c.AuthorID == "" {
		return ErrInvalidComment
	}
	return nil
}
