package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/castboard/castboard/internal/episode"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on MongoDB. Ids are int64 sequences kept in a
// counters collection so URLs stay numeric. Transactions require a replica set.
type MongoStore struct {
	client   *mongo.Client
	episodes *mongo.Collection
	comments *mongo.Collection
	counters *mongo.Collection
}

// NewMongoStore creates the indexes the store relies on.
func NewMongoStore(ctx context.Context, client *mongo.Client, dbName string) (*MongoStore, error) {
	db := client.Database(dbName)
	s := &MongoStore{
		client:   client,
		episodes: db.Collection("episodes"),
		comments: db.Collection("comments"),
		counters: db.Collection("counters"),
	}
	if _, err := s.episodes.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "slug", Value: 1}, {Key: "_id", Value: 1}}}); err != nil {
		return nil, fmt.Errorf("episodes index: %w", err)
	}
	if _, err := s.comments.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "episodeId", Value: 1}, {Key: "_id", Value: 1}}}); err != nil {
		return nil, fmt.Errorf("comments index: %w", err)
	}
	return s, nil
}

func (s *MongoStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, mongoTx{s})
	})
	return err
}

func (s *MongoStore) Ping(ctx context.Context) error { return s.client.Ping(ctx, nil) }

func (s *MongoStore) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

func (s *MongoStore) nextID(ctx context.Context, name string) (int64, error) {
	var out struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := s.counters.FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"seq": int64(1)}}, opts).Decode(&out)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	return out.Seq, nil
}

type mongoTx struct{ s *MongoStore }

func (t mongoTx) Episodes() EpisodeRepository { return mongoEpisodes(t) }
func (t mongoTx) Comments() CommentRepository { return mongoComments(t) }

type mongoEpisodes struct{ s *MongoStore }

func (r mongoEpisodes) List(ctx context.Context) ([]*episode.Episode, error) {
	cur, err := r.s.episodes.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer cur.Close(ctx)
	out := []*episode.Episode{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode episodes: %w", err)
	}
	return out, nil
}

func (r mongoEpisodes) findOne(ctx context.Context, filter bson.M) (*episode.Episode, error) {
	var e episode.Episode
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})
	if err := r.s.episodes.FindOne(ctx, filter, opts).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r mongoEpisodes) FindByID(ctx context.Context, id int64) (*episode.Episode, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r mongoEpisodes) FindBySlug(ctx context.Context, slug string) (*episode.Episode, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

func (r mongoEpisodes) Save(ctx context.Context, e *episode.Episode) error {
	now := time.Now().UTC()
	if e.ID == 0 {
		id, err := r.s.nextID(ctx, "episodes")
		if err != nil {
			return err
		}
		e.ID = id
		e.CreatedAt = now
		e.UpdatedAt = now
		if _, err := r.s.episodes.InsertOne(ctx, e); err != nil {
			e.ID = 0
			return fmt.Errorf("insert episode: %w", err)
		}
		return nil
	}
	res, err := r.s.episodes.UpdateOne(ctx, bson.M{"_id": e.ID}, bson.M{"$set": bson.M{
		"title":       e.Title,
		"slug":        e.Slug,
		"description": e.Description,
		"mediaUrl":    e.MediaURL,
		"mediaKey":    e.MediaKey,
		"updatedAt":   now,
	}})
	if err != nil {
		return fmt.Errorf("update episode: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	e.UpdatedAt = now
	return nil
}

func (r mongoEpisodes) Delete(ctx context.Context, id int64) error {
	res, err := r.s.episodes.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete episode: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	if _, err := r.s.comments.DeleteMany(ctx, bson.M{"episodeId": id}); err != nil {
		return fmt.Errorf("delete episode comments: %w", err)
	}
	return nil
}

type mongoComments struct{ s *MongoStore }

func (r mongoComments) FindByID(ctx context.Context, id int64) (*episode.Comment, error) {
	var c episode.Comment
	if err := r.s.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r mongoComments) ListByEpisode(ctx context.Context, episodeID int64) ([]*episode.Comment, error) {
	cur, err := r.s.comments.Find(ctx, bson.M{"episodeId": episodeID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer cur.Close(ctx)
	out := []*episode.Comment{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	return out, nil
}

func (r mongoComments) Save(ctx context.Context, c *episode.Comment) error {
	if err := validComment(c); err != nil {
		return err
	}
	n, err := r.s.episodes.CountDocuments(ctx, bson.M{"_id": c.EpisodeID})
	if err != nil {
		return fmt.Errorf("check episode: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	if c.ID != 0 {
		res, err := r.s.comments.UpdateOne(ctx, bson.M{"_id": c.ID}, bson.M{"$set": bson.M{"body": c.Body, "authorName": c.AuthorName}})
		if err != nil {
			return fmt.Errorf("update comment: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		return nil
	}
	id, err := r.s.nextID(ctx, "comments")
	if err != nil {
		return err
	}
	c.ID = id
	c.CreatedAt = time.Now().UTC()
	if _, err := r.s.comments.InsertOne(ctx, c); err != nil {
		c.ID = 0
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r mongoComments) Delete(ctx context.Context, id int64) error {
	res, err := r.s.comments.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
