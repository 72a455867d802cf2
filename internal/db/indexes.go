package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// indexSpecs holds the indexes every collection needs. The unique ones back
// the one-per-user rules for flags, likes, pins and poll votes.
var indexSpecs = map[string][]mongo.IndexModel{
	ListingsCollection: {
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "location_slug", Value: 1}, {Key: "category", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}}},
		{Keys: bson.D{{Key: "checkout_session_id", Value: 1}}, Options: options.Index().SetSparse(true)},
	},
	FlagsCollection: {
		{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "reporter_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	CommentsCollection: {
		{Keys: bson.D{{Key: "parent_type", Value: 1}, {Key: "parent_id", Value: 1}, {Key: "created_at", Value: 1}}},
	},
	UpdatesCollection: {
		{Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}}},
	},
	LikesCollection: {
		{Keys: bson.D{{Key: "target_type", Value: 1}, {Key: "target_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	PinsCollection: {
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "update_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	PollVotesCollection: {
		{Keys: bson.D{{Key: "target_type", Value: 1}, {Key: "target_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	JobPostingsCollection: {
		{Keys: bson.D{{Key: "location_slug", Value: 1}, {Key: "active", Value: 1}, {Key: "created_at", Value: -1}}},
	},
	UsersCollection: {
		{Keys: bson.D{{Key: "handle", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
}

// EnsureIndexes creates all indexes. It is safe to run on every start.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	for coll, models := range indexSpecs {
		if _, err := database.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
