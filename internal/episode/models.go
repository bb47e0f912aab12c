package episode

import "time"

// Episode is a published podcast/video episode.
// Slug is derived from Title on every save and is not unique.
type Episode struct {
	ID          int64      `json:"id" bson:"_id"`
	Title       string     `json:"title" bson:"title"`
	Slug        string     `json:"slug" bson:"slug"`
	Description string     `json:"description" bson:"description"`
	MediaURL    string     `json:"mediaUrl,omitempty" bson:"mediaUrl,omitempty"`
	MediaKey    string     `json:"mediaKey,omitempty" bson:"mediaKey,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updatedAt"`
	Comments    []*Comment `json:"comments,omitempty" bson:"-"`
}

// Comment belongs to exactly one episode and one author.
// EpisodeID and AuthorID are always assigned by the server.
type Comment struct {
	ID         int64     `json:"id" bson:"_id"`
	EpisodeID  int64     `json:"episodeId" bson:"episodeId"`
	AuthorID   string    `json:"authorId" bson:"authorId"`
	AuthorName string    `json:"authorName" bson:"authorName"`
	Body       string    `json:"body" bson:"body"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}
