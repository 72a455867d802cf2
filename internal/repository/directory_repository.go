package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"greendrake/localboard/internal/db"
	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/utils"
)

// IJobRepository reads company-posted roles.
type IJobRepository interface {
	ListByLocation(ctx context.Context, locationSlug string, limit int) ([]models.JobPosting, error)
}

// IUserRepository reads profiles maintained by the identity provider.
type IUserRepository interface {
	FindByID(ctx context.Context, id utils.SixID) (*models.User, error)
}

type jobRepository struct {
	coll *mongo.Collection
}

func NewJobRepository(database *mongo.Database) IJobRepository {
	return &jobRepository{coll: database.Collection(db.JobPostingsCollection)}
}

func (r *jobRepository) ListByLocation(ctx context.Context, locationSlug string, limit int) ([]models.JobPosting, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	jobs, err := findAll[models.JobPosting](ctx, r.coll, bson.M{"location_slug": locationSlug, "active": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs for %s: %w", locationSlug, err)
	}
	return jobs, nil
}

type userRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(database *mongo.Database) IUserRepository {
	return &userRepository{coll: database.Collection(db.UsersCollection)}
}

func (r *userRepository) FindByID(ctx context.Context, id utils.SixID) (*models.User, error) {
	return findOne[models.User](ctx, r.coll, bson.M{"_id": id})
}
