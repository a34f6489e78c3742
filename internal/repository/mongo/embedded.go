package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sakif/watchme/internal/apperror"
)

// embedded addresses one array field of the account documents as if it
// were its own collection of T records.
type embedded[T any] struct {
	coll    *mongo.Collection
	field   string
	project bson.M
}

// path returns the dotted path of a key inside the array elements.
func (e embedded[T]) path(key string) string {
	return e.field + "." + key
}

// pipeline filters accounts, unwinds the array, filters elements and
// flattens them. The element filter is applied before the unwind too:
// any account holding a matching element also matches at document level,
// so the first stage only narrows the scan.
func (e embedded[T]) pipeline(match bson.M, sort bson.D) mongo.Pipeline {
	p := mongo.Pipeline{}
	if len(match) > 0 {
		p = append(p, bson.D{{Key: "$match", Value: match}})
	}
	p = append(p, bson.D{{Key: "$unwind", Value: "$" + e.field}})
	if len(match) > 0 {
		p = append(p, bson.D{{Key: "$match", Value: match}})
	}
	p = append(p, bson.D{{Key: "$project", Value: e.project}})
	if len(sort) > 0 {
		p = append(p, bson.D{{Key: "$sort", Value: sort}})
	}
	return p
}

func (e embedded[T]) find(ctx context.Context, match bson.M, sort bson.D) ([]T, error) {
	cursor, err := e.coll.Aggregate(ctx, e.pipeline(match, sort))
	if err != nil {
		return nil, fmt.Errorf("mongo: aggregating %s: %w", e.field, err)
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongo: decoding %s: %w", e.field, err)
	}
	return out, nil
}

// findOne returns the element with the given id. No match is NotFound.
func (e embedded[T]) findOne(ctx context.Context, resource, id string) (*T, error) {
	items, err := e.find(ctx, bson.M{e.path("id"): id}, nil)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperror.NotFound(resource, id)
	}
	return &items[0], nil
}

func (e embedded[T]) count(ctx context.Context, match bson.M) (int, error) {
	p := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$unwind", Value: "$" + e.field}},
		{{Key: "$match", Value: match}},
		{{Key: "$count", Value: "n"}},
	}
	cursor, err := e.coll.Aggregate(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("mongo: counting %s: %w", e.field, err)
	}
	defer cursor.Close(ctx)

	var res []struct {
		N int `bson:"n"`
	}
	if err := cursor.All(ctx, &res); err != nil {
		return 0, fmt.Errorf("mongo: decoding %s count: %w", e.field, err)
	}
	if len(res) == 0 {
		return 0, nil
	}
	return res[0].N, nil
}

// positional prefixes each key with "<field>.$." so an update touches only
// the matched element.
func (e embedded[T]) positional(fields bson.M) bson.M {
	out := make(bson.M, len(fields))
	for k, v := range fields {
		out[e.field+".$."+k] = v
	}
	return out
}

// update applies op (e.g. $set, $inc) to the element with the given id.
func (e embedded[T]) update(ctx context.Context, resource, id, op string, fields bson.M) error {
	res, err := e.coll.UpdateOne(ctx,
		bson.M{e.path("id"): id},
		bson.M{op: e.positional(fields)},
	)
	if err != nil {
		return fmt.Errorf("mongo: updating %s %s: %w", resource, id, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

// push appends item to the array of the owning account.
func (e embedded[T]) push(ctx context.Context, ownerID string, item any) error {
	res, err := e.coll.UpdateOne(ctx,
		bson.M{"_id": ownerID},
		bson.M{"$push": bson.M{e.field: item}},
	)
	if err != nil {
		return fmt.Errorf("mongo: appending to %s of %s: %w", e.field, ownerID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("account", ownerID)
	}
	return nil
}

// pull removes the element with the given id from whichever account holds
// it.
func (e embedded[T]) pull(ctx context.Context, resource, id string) error {
	res, err := e.coll.UpdateOne(ctx,
		bson.M{e.path("id"): id},
		bson.M{"$pull": bson.M{e.field: bson.M{"id": id}}},
	)
	if err != nil {
		return fmt.Errorf("mongo: removing %s %s: %w", resource, id, err)
	}
	if res.ModifiedCount == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
