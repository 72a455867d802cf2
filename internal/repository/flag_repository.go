package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"greendrake/localboard/internal/db"
	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/utils"
)

// IFlagRepository stores reports. The (listing, reporter) pair is unique.
type IFlagRepository interface {
	Insert(ctx context.Context, flag *models.Flag) error
	Delete(ctx context.Context, id utils.SixID) error
	CountForListing(ctx context.Context, listingID utils.SixID) (int64, error)
}

type flagRepository struct {
	coll *mongo.Collection
}

func NewFlagRepository(database *mongo.Database) IFlagRepository {
	return &flagRepository{coll: database.Collection(db.FlagsCollection)}
}

func (r *flagRepository) Insert(ctx context.Context, flag *models.Flag) error {
	if _, err := r.coll.InsertOne(ctx, flag); err != nil {
		return translate(err)
	}
	return nil
}

func (r *flagRepository) Delete(ctx context.Context, id utils.SixID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete flag %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *flagRepository) CountForListing(ctx context.Context, listingID utils.SixID) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"listing_id": listingID})
	if err != nil {
		return 0, fmt.Errorf("failed to count flags for listing %s: %w", listingID, err)
	}
	return n, nil
}
