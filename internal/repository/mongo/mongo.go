// Package mongo implements the repository contracts on MongoDB, keeping
// videos, comments and playlists as arrays embedded in each account
// document:
//
//	{ _id, username, ..., videos: [...], comments: [...], playlists: [...] }
//
// Reads unwind the array, filter, and project a flat record joined with
// the owner's username and avatar. Writes address exactly one element with
// the positional operator, or push and pull whole elements.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/watchme/internal/repository"
)

var _ repository.Store = (*Store)(nil)

const accountsCollection = "accounts"

// Store is the MongoDB-backed repository.
type Store struct {
	client    *mongo.Client
	accounts  *mongo.Collection
	videos    embedded[videoRecord]
	comments  embedded[commentRecord]
	playlists embedded[playlistRecord]
}

// Connect dials uri, checks the connection and ensures indexes on the
// accounts collection of the named database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo: connection URI is empty")
	}

	opts := options.Client().ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetConnectTimeout(5 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	s := newStore(client, client.Database(database))
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

func newStore(client *mongo.Client, db *mongo.Database) *Store {
	coll := db.Collection(accountsCollection)
	return &Store{
		client:    client,
		accounts:  coll,
		videos:    embedded[videoRecord]{coll: coll, field: "videos", project: videoProjection},
		comments:  embedded[commentRecord]{coll: coll, field: "comments", project: commentProjection},
		playlists: embedded[playlistRecord]{coll: coll, field: "playlists", project: playlistProjection},
	}
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("username_unique"),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("local_email_unique").
				SetPartialFilterExpression(bson.M{"auth.kind": "local", "email": bson.M{"$gt": ""}}),
		},
		{
			Keys: bson.D{{Key: "auth.provider", Value: 1}, {Key: "auth.providerId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("provider_unique").
				SetPartialFilterExpression(bson.M{"auth.kind": "external"}),
		},
		{Keys: bson.D{{Key: "videos.id", Value: 1}}, Options: options.Index().SetName("videos_id")},
		{Keys: bson.D{{Key: "videos.stat", Value: 1}, {Key: "videos.uploadDate", Value: -1}}, Options: options.Index().SetName("videos_stat_date")},
		{Keys: bson.D{{Key: "comments.id", Value: 1}}, Options: options.Index().SetName("comments_id")},
		{Keys: bson.D{{Key: "comments.videoId", Value: 1}}, Options: options.Index().SetName("comments_video")},
		{Keys: bson.D{{Key: "playlists.id", Value: 1}}, Options: options.Index().SetName("playlists_id")},
	}

	if _, err := s.accounts.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("mongo: creating indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
