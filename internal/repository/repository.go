// Package repository is the MongoDB persistence layer. Services depend on
// the I-prefixed interfaces; the unexported implementations talk to Mongo.
package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"greendrake/localboard/internal/db"
	"greendrake/localboard/internal/utils"
)

var (
	// ErrNotFound means no document matched the id and conditions given.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate means a unique index rejected the write.
	ErrDuplicate = db.ErrDuplicate
	// ErrGalleryFull means a listing already holds MaxListingImages images.
	ErrGalleryFull = errors.New("listing gallery is full")
)

// Fields is a set of BSON field names to values for a $set.
type Fields map[string]interface{}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case db.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	}
	return err
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter interface{}) (*T, error) {
	var out T
	if err := coll.FindOne(ctx, filter).Decode(&out); err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts *options.FindOptions) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func findOneAndUpdate[T any](ctx context.Context, coll *mongo.Collection, filter, update interface{}, opts ...*options.FindOneAndUpdateOptions) (*T, error) {
	o := options.FindOneAndUpdate().SetReturnDocument(options.After)
	opts = append([]*options.FindOneAndUpdateOptions{o}, opts...)
	var out T
	if err := coll.FindOneAndUpdate(ctx, filter, update, opts...).Decode(&out); err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

// incCounter adds delta to field, never letting it drop below zero, and
// returns the new value.
func incCounter(ctx context.Context, coll *mongo.Collection, id utils.SixID, field string, delta int64) (int64, error) {
	filter := bson.M{"_id": id}
	if delta < 0 {
		filter[field] = bson.M{"$gte": -delta}
	}
	var out bson.M
	err := coll.FindOneAndUpdate(ctx, filter, bson.M{"$inc": bson.M{field: delta}},
		options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(bson.M{field: 1}),
	).Decode(&out)
	if err != nil {
		return 0, translate(err)
	}
	return toInt64(out[field]), nil
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
