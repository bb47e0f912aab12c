package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/castboard/castboard/internal/episode"
)

// MemoryStore keeps episodes and comments in process memory. Transactions
// are serialized and operate on a copy that replaces the live state on commit.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	episodes    map[int64]episode.Episode
	comments    map[int64]episode.Comment
	lastEpisode int64
	lastComment int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		episodes: make(map[int64]episode.Episode),
		comments: make(map[int64]episode.Comment),
	}}
}

func (s *memState) clone() *memState {
	out := &memState{
		episodes:    make(map[int64]episode.Episode, len(s.episodes)),
		comments:    make(map[int64]episode.Comment, len(s.comments)),
		lastEpisode: s.lastEpisode,
		lastComment: s.lastComment,
	}
	for id, e := range s.episodes {
		out.episodes[id] = e
	}
	for id, c := range s.comments {
		out.comments[id] = c
	}
	return out
}

func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(ctx, memTx{work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error  { return nil }
func (m *MemoryStore) Close(ctx context.Context) error { return nil }

type memTx struct{ s *memState }

func (t memTx) Episodes() EpisodeRepository { return memEpisodes(t) }
func (t memTx) Comments() CommentRepository { return memComments(t) }

type memEpisodes struct{ s *memState }

func (r memEpisodes) List(ctx context.Context) ([]*episode.Episode, error) {
	out := make([]*episode.Episode, 0, len(r.s.episodes))
	for _, e := range r.s.episodes {
		e := e
		e.Comments = nil
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memEpisodes) FindByID(ctx context.Context, id int64) (*episode.Episode, error) {
	e, ok := r.s.episodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.Comments = nil
	return &e, nil
}

func (r memEpisodes) FindBySlug(ctx context.Context, slug string) (*episode.Episode, error) {
	var found *episode.Episode
	for _, e := range r.s.episodes {
		if e.Slug != slug || (found != nil && found.ID < e.ID) {
			continue
		}
		e := e
		e.Comments = nil
		found = &e
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (r memEpisodes) Save(ctx context.Context, e *episode.Episode) error {
	now := time.Now().UTC()
	if e.ID == 0 {
		r.s.lastEpisode++
		e.ID = r.s.lastEpisode
		e.CreatedAt = now
	} else {
		prev, ok := r.s.episodes[e.ID]
		if !ok {
			return ErrNotFound
		}
		e.CreatedAt = prev.CreatedAt
	}
	e.UpdatedAt = now
	stored := *e
	stored.Comments = nil
	r.s.episodes[e.ID] = stored
	return nil
}

func (r memEpisodes) Delete(ctx context.Context, id int64) error {
	if _, ok := r.s.episodes[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.episodes, id)
	for cid, c := range r.s.comments {
		if c.EpisodeID == id {
			delete(r.s.comments, cid)
		}
	}
	return nil
}

type memComments struct{ s *memState }

func (r memComments) FindByID(ctx context.Context, id int64) (*episode.Comment, error) {
	c, ok := r.s.comments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r memComments) ListByEpisode(ctx context.Context, episodeID int64) ([]*episode.Comment, error) {
	out := []*episode.Comment{}
	for _, c := range r.s.comments {
		if c.EpisodeID == episodeID {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memComments) Save(ctx context.Context, c *episode.Comment) error {
	if err := validComment(c); err != nil {
		return err
	}
	if _, ok := r.s.episodes[c.EpisodeID]; !ok {
		return ErrNotFound
	}
	if c.ID == 0 {
		r.s.lastComment++
		c.ID = r.s.lastComment
		c.CreatedAt = time.Now().UTC()
	} else if _, ok := r.s.comments[c.ID]; !ok {
		return ErrNotFound
	}
	r.s.comments[c.ID] = *c
	return nil
}

func (r memComments) Delete(ctx context.Context, id int64) error {
	if _, ok := r.s.comments[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.comments, id)
	return nil
}
