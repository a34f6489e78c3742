package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/watchme/internal/apperror"
	"github.com/sakif/watchme/internal/model"
)

func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	account.ID = xid.New().String()

	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	doc := accountToDoc(account)
	// Start with empty arrays so $push and $unwind see the fields.
	_, err := s.accounts.InsertOne(ctx, struct {
		accountDoc `bson:",inline"`
		Videos     []videoDoc    `bson:"videos"`
		Comments   []commentDoc  `bson:"comments"`
		Playlists  []playlistDoc `bson:"playlists"`
	}{doc, []videoDoc{}, []commentDoc{}, []playlistDoc{}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("User already exists")
		}
		return fmt.Errorf("mongo: creating account %q: %w", account.Username, err)
	}

	return nil
}

func (s *Store) getAccountWhere(ctx context.Context, what string, filter bson.M) (*model.Account, error) {
	var doc accountDoc
	err := s.accounts.FindOne(ctx, filter, options.FindOne().SetProjection(accountSummary)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("account", what)
		}
		return nil, fmt.Errorf("mongo: getting account %s: %w", what, err)
	}
	account := doc.toModel()
	return &account, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return s.getAccountWhere(ctx, id, bson.M{"_id": id})
}

func (s *Store) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	return s.getAccountWhere(ctx, username, bson.M{"username": username})
}

func (s *Store) GetAccountByProvider(ctx context.Context, provider string, providerID int64) (*model.Account, error) {
	return s.getAccountWhere(ctx, fmt.Sprintf("%s:%d", provider, providerID), bson.M{
		"auth.kind":       model.AuthExternal,
		"auth.provider":   provider,
		"auth.providerId": providerID,
	})
}

func (s *Store) ListAccounts(ctx context.Context) ([]model.Account, error) {
	opts := options.Find().
		SetProjection(accountSummary).
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.accounts.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []accountDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decoding accounts: %w", err)
	}
	return toModels(docs, (*accountDoc).toModel), nil
}

func (s *Store) CredentialsTaken(ctx context.Context, username, email string) (bool, bool, error) {
	n, err := s.accounts.CountDocuments(ctx, bson.M{"username": username}, options.Count().SetLimit(1))
	if err != nil {
		return false, false, fmt.Errorf("mongo: checking username: %w", err)
	}
	usernameTaken := n > 0

	if email == "" {
		return usernameTaken, false, nil
	}
	n, err = s.accounts.CountDocuments(ctx, bson.M{"email": email}, options.Count().SetLimit(1))
	if err != nil {
		return false, false, fmt.Errorf("mongo: checking email: %w", err)
	}
	return usernameTaken, n > 0, nil
}

func (s *Store) RecordLogin(ctx context.Context, id string, at time.Time, providerToken string) error {
	set := bson.M{
		"lastLoginDate": at.UTC(),
		"updatedAt":     time.Now().UTC(),
	}
	if providerToken != "" {
		set["auth.token"] = providerToken
	}

	res, err := s.accounts.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("mongo: recording login for %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("account", id)
	}
	return nil
}
