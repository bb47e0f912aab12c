package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/castboard/castboard/internal/episode"
)

// SQLiteStore persists to a migrated SQLite database (see database.MigrateSQLite).
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(ctx, sqlTx{tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close(ctx context.Context) error { return s.db.Close() }

type sqlTx struct{ tx *sql.Tx }

func (t sqlTx) Episodes() EpisodeRepository { return sqlEpisodes(t) }
func (t sqlTx) Comments() CommentRepository { return sqlComments(t) }

const episodeColumns = `id, title, slug, description, media_url, media_key, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEpisode(row rowScanner) (*episode.Episode, error) {
	var (
		e                episode.Episode
		created, updated int64
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Slug, &e.Description, &e.MediaURL, &e.MediaKey, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	e.CreatedAt = time.Unix(0, created).UTC()
	e.UpdatedAt = time.Unix(0, updated).UTC()
	return &e, nil
}

type sqlEpisodes struct{ tx *sql.Tx }

func (r sqlEpisodes) List(ctx context.Context) ([]*episode.Episode, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT `+episodeColumns+` FROM episodes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()
	out := []*episode.Episode{}
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r sqlEpisodes) FindByID(ctx context.Context, id int64) (*episode.Episode, error) {
	return scanEpisode(r.tx.QueryRowContext(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id))
}

func (r sqlEpisodes) FindBySlug(ctx context.Context, slug string) (*episode.Episode, error) {
	return scanEpisode(r.tx.QueryRowContext(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE slug = ? ORDER BY id LIMIT 1`, slug))
}

func (r sqlEpisodes) Save(ctx context.Context, e *episode.Episode) error {
	now := time.Now().UTC()
	if e.ID == 0 {
		res, err := r.tx.ExecContext(ctx,
			`INSERT INTO episodes (title, slug, description, media_url, media_key, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.Title, e.Slug, e.Description, e.MediaURL, e.MediaKey, now.UnixNano(), now.UnixNano())
		if err != nil {
			return fmt.Errorf("insert episode: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert episode: %w", err)
		}
		e.ID = id
		e.CreatedAt = now
		e.UpdatedAt = now
		return nil
	}
	res, err := r.tx.ExecContext(ctx,
		`UPDATE episodes SET title = ?, slug = ?, description = ?, media_url = ?, media_key = ?, updated_at = ? WHERE id = ?`,
		e.Title, e.Slug, e.Description, e.MediaURL, e.MediaKey, now.UnixNano(), e.ID)
	if err != nil {
		return fmt.Errorf("update episode: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return err
	}
	e.UpdatedAt = now
	return nil
}

func (r sqlEpisodes) Delete(ctx context.Context, id int64) error {
	// comments go with ON DELETE CASCADE
	res, err := r.tx.ExecContext(ctx, `DELETE FROM episodes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete episode: %w", err)
	}
	return affectedOne(res)
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const commentColumns = `id, episode_id, author_id, author_name, body, created_at`

func scanComment(row rowScanner) (*episode.Comment, error) {
	var (
		c       episode.Comment
		created int64
	)
	if err := row.Scan(&c.ID, &c.EpisodeID, &c.AuthorID, &c.AuthorName, &c.Body, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = time.Unix(0, created).UTC()
	return &c, nil
}

type sqlComments struct{ tx *sql.Tx }

func (r sqlComments) FindByID(ctx context.Context, id int64) (*episode.Comment, error) {
	return scanComment(r.tx.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = ?`, id))
}

func (r sqlComments) ListByEpisode(ctx context.Context, episodeID int64) ([]*episode.Comment, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE episode_id = ? ORDER BY id`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()
	out := []*episode.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r sqlComments) Save(ctx context.Context, c *episode.Comment) error {
	if err := validComment(c); err != nil {
		return err
	}
	var exists int
	if err := r.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM episodes WHERE id = ?`, c.EpisodeID).Scan(&exists); err != nil {
		return fmt.Errorf("check episode: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	if c.ID != 0 {
		res, err := r.tx.ExecContext(ctx, `UPDATE comments SET body = ?, author_name = ? WHERE id = ?`, c.Body, c.AuthorName, c.ID)
		if err != nil {
			return fmt.Errorf("update comment: %w", err)
		}
		return affectedOne(res)
	}
	now := time.Now().UTC()
	res, err := r.tx.ExecContext(ctx,
		`INSERT INTO comments (episode_id, author_id, author_name, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.EpisodeID, c.AuthorID, c.AuthorName, c.Body, now.UnixNano())
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	c.ID = id
	c.CreatedAt = now
	return nil
}

func (r sqlComments) Delete(ctx context.Context, id int64) error {
	res, err := r.tx.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return affectedOne(res)
}
