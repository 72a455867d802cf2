package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"greendrake/localboard/internal/db"
	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/utils"
)

// IEngagementRepository stores per-user edges: likes, pins and poll votes.
// Each edge is unique per (user, target); inserting an existing edge
// reports inserted=false rather than an error.
type IEngagementRepository interface {
	InsertLike(ctx context.Context, like *models.Like) (bool, error)
	DeleteLike(ctx context.Context, target models.Target, userID utils.SixID) (bool, error)
	HasLiked(ctx context.Context, target models.Target, userID utils.SixID) (bool, error)
	LikedAmong(ctx context.Context, userID utils.SixID, targetType models.TargetType, ids []utils.SixID) (map[utils.SixID]bool, error)

	InsertPin(ctx context.Context, pin *models.Pin) (bool, error)
	DeletePin(ctx context.Context, userID, updateID utils.SixID) (bool, error)
	CountPins(ctx context.Context, userID utils.SixID) (int64, error)
	ListPins(ctx context.Context, userID utils.SixID) ([]models.Pin, error)

	InsertVote(ctx context.Context, vote *models.PollVote) (bool, error)
	FindVote(ctx context.Context, target models.Target, userID utils.SixID) (*models.PollVote, error)
	DeleteVote(ctx context.Context, target models.Target, userID utils.SixID) (bool, error)
	VotesAmong(ctx context.Context, userID utils.SixID, targetType models.TargetType, ids []utils.SixID) (map[utils.SixID]string, error)
}

type engagementRepository struct {
	likes *mongo.Collection
	pins  *mongo.Collection
	votes *mongo.Collection
}

func NewEngagementRepository(database *mongo.Database) IEngagementRepository {
	return &engagementRepository{
		likes: database.Collection(db.LikesCollection),
		pins:  database.Collection(db.PinsCollection),
		votes: database.Collection(db.PollVotesCollection),
	}
}

func edgeFilter(target models.Target, userID utils.SixID) bson.M {
	return bson.M{"target_type": target.Type, "target_id": target.ID, "user_id": userID}
}

func insertEdge(ctx context.Context, coll *mongo.Collection, doc interface{}) (bool, error) {
	_, err := coll.InsertOne(ctx, doc)
	if err == nil {
		return true, nil
	}
	if err = translate(err); errors.Is(err, ErrDuplicate) {
		return false, nil
	}
	return false, err
}

func (r *engagementRepository) InsertLike(ctx context.Context, like *models.Like) (bool, error) {
	return insertEdge(ctx, r.likes, like)
}

func (r *engagementRepository) DeleteLike(ctx context.Context, target models.Target, userID utils.SixID) (bool, error) {
	res, err := r.likes.DeleteOne(ctx, edgeFilter(target, userID))
	if err != nil {
		return false, fmt.Errorf("failed to delete like: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *engagementRepository) HasLiked(ctx context.Context, target models.Target, userID utils.SixID) (bool, error) {
	n, err := r.likes.CountDocuments(ctx, edgeFilter(target, userID), options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check like: %w", err)
	}
	return n > 0, nil
}

func (r *engagementRepository) LikedAmong(ctx context.Context, userID utils.SixID, targetType models.TargetType, ids []utils.SixID) (map[utils.SixID]bool, error) {
	out := map[utils.SixID]bool{}
	if userID.IsZero() || len(ids) == 0 {
		return out, nil
	}
	likes, err := findAll[models.Like](ctx, r.likes, bson.M{
		"user_id":     userID,
		"target_type": targetType,
		"target_id":   bson.M{"$in": ids},
	}, options.Find())
	if err != nil {
		return nil, fmt.Errorf("failed to load likes: %w", err)
	}
	for _, l := range likes {
		out[l.Target.ID] = true
	}
	return out, nil
}

func (r *engagementRepository) InsertPin(ctx context.Context, pin *models.Pin) (bool, error) {
	return insertEdge(ctx, r.pins, pin)
}

func (r *engagementRepository) DeletePin(ctx context.Context, userID, updateID utils.SixID) (bool, error) {
	res, err := r.pins.DeleteOne(ctx, bson.M{"user_id": userID, "update_id": updateID})
	if err != nil {
		return false, fmt.Errorf("failed to delete pin: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *engagementRepository) CountPins(ctx context.Context, userID utils.SixID) (int64, error) {
	n, err := r.pins.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to count pins: %w", err)
	}
	return n, nil
}

func (r *engagementRepository) ListPins(ctx context.Context, userID utils.SixID) ([]models.Pin, error) {
	pins, err := findAll[models.Pin](ctx, r.pins, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list pins: %w", err)
	}
	return pins, nil
}

func (r *engagementRepository) InsertVote(ctx context.Context, vote *models.PollVote) (bool, error) {
	return insertEdge(ctx, r.votes, vote)
}

func (r *engagementRepository) FindVote(ctx context.Context, target models.Target, userID utils.SixID) (*models.PollVote, error) {
	return findOne[models.PollVote](ctx, r.votes, edgeFilter(target, userID))
}

func (r *engagementRepository) DeleteVote(ctx context.Context, target models.Target, userID utils.SixID) (bool, error) {
	res, err := r.votes.DeleteOne(ctx, edgeFilter(target, userID))
	if err != nil {
		return false, fmt.Errorf("failed to delete vote: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *engagementRepository) VotesAmong(ctx context.Context, userID utils.SixID, targetType models.TargetType, ids []utils.SixID) (map[utils.SixID]string, error) {
	out := map[utils.SixID]string{}
	if userID.IsZero() || len(ids) == 0 {
		return out, nil
	}
	votes, err := findAll[models.PollVote](ctx, r.votes, bson.M{
		"user_id":     userID,
		"target_type": targetType,
		"target_id":   bson.M{"$in": ids},
	}, options.Find())
	if err != nil {
		return nil, fmt.Errorf("failed to load votes: %w", err)
	}
	for _, v := range votes {
		out[v.Target.ID] = v.OptionID
	}
	return out, nil
}
