package form

import (
	"strings"

	"github.com/castboard/castboard/internal/episode"
)

// EpisodeForm holds the editable fields of an episode.
type EpisodeForm struct {
	Title       string `form:"title" json:"title" binding:"required,max=255,sluggable"`
	Description string `form:"description" json:"description" binding:"max=5000"`
	MediaURL    string `form:"media_url" json:"media_url" binding:"omitempty,url,max=2048"`
}

// NewEpisodeForm returns a form pre-populated from e.
func NewEpisodeForm(e *episode.Episode) *EpisodeForm {
	return &EpisodeForm{Title: e.Title, Description: e.Description, MediaURL: e.MediaURL}
}

func (f *EpisodeForm) normalize() {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.MediaURL = strings.TrimSpace(f.MediaURL)
}

// Apply copies the form onto e. The slug is left to the caller.
func (f *EpisodeForm) Apply(e *episode.Episode) {
	e.Title = f.Title
	e.Description = f.Description
	e.MediaURL = f.MediaURL
}

// CommentForm only carries the body: author and episode are never read from the request.
type CommentForm struct {
	Body string `form:"body" json:"body" binding:"required,max=2000"`
}

func (f *CommentForm) normalize() {
	f.Body = strings.TrimSpace(f.Body)
}
