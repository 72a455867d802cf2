package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"greendrake/localboard/internal/db"
	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/utils"
)

const (
	FieldLikesCount    = "likes_count"
	FieldCommentsCount = "comments_count"
)

// IUpdateRepository persists feed posts.
type IUpdateRepository interface {
	Insert(ctx context.Context, update *models.Update) error
	FindByID(ctx context.Context, id utils.SixID) (*models.Update, error)
	FindByIDs(ctx context.Context, ids []utils.SixID) ([]models.Update, error)
	IncrementCounter(ctx context.Context, id utils.SixID, field string, delta int64) (int64, error)
	IncrementPollOption(ctx context.Context, id utils.SixID, optionID string) (*models.Poll, error)
}

// ICommentRepository persists comments on updates and listings.
type ICommentRepository interface {
	Insert(ctx context.Context, comment *models.Comment) error
	FindByID(ctx context.Context, id utils.SixID) (*models.Comment, error)
	ListByParent(ctx context.Context, parentType models.ParentType, parentID utils.SixID, limit int) ([]models.Comment, error)
	Update(ctx context.Context, id utils.SixID, set Fields) (*models.Comment, error)
	// UpdateIfPollUnvoted is Update guarded on the poll having no votes.
	UpdateIfPollUnvoted(ctx context.Context, id utils.SixID, set Fields) (*models.Comment, error)
	Delete(ctx context.Context, id utils.SixID) error
	IncrementCounter(ctx context.Context, id utils.SixID, field string, delta int64) (int64, error)
	IncrementPollOption(ctx context.Context, id utils.SixID, optionID string) (*models.Poll, error)
}

// incPollOption bumps one option tally of the embedded poll, provided the
// poll has not expired, and returns the poll after the update.
func incPollOption(ctx context.Context, coll *mongo.Collection, id utils.SixID, optionID string) (*models.Poll, error) {
	filter := bson.M{
		"_id":             id,
		"poll.options.id": optionID,
		"poll.expires_at": bson.M{"$gt": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().
		SetArrayFilters(options.ArrayFilters{Filters: []interface{}{bson.M{"opt.id": optionID}}}).
		SetProjection(bson.M{"poll": 1})
	doc, err := findOneAndUpdate[struct {
		Poll *models.Poll `bson:"poll"`
	}](ctx, coll, filter, bson.M{"$inc": bson.M{"poll.options.$[opt].votes": 1}}, opts)
	if err != nil {
		return nil, err
	}
	if doc.Poll == nil {
		return nil, ErrNotFound
	}
	return doc.Poll, nil
}

type updateRepository struct {
	coll *mongo.Collection
}

func NewUpdateRepository(database *mongo.Database) IUpdateRepository {
	return &updateRepository{coll: database.Collection(db.UpdatesCollection)}
}

func (r *updateRepository) Insert(ctx context.Context, update *models.Update) error {
	if _, err := r.coll.InsertOne(ctx, update); err != nil {
		return translate(err)
	}
	return nil
}

func (r *updateRepository) FindByID(ctx context.Context, id utils.SixID) (*models.Update, error) {
	return findOne[models.Update](ctx, r.coll, bson.M{"_id": id})
}

func (r *updateRepository) FindByIDs(ctx context.Context, ids []utils.SixID) ([]models.Update, error) {
	if len(ids) == 0 {
		return []models.Update{}, nil
	}
	updates, err := findAll[models.Update](ctx, r.coll, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
	if err != nil {
		return nil, fmt.Errorf("failed to load updates: %w", err)
	}
	return updates, nil
}

func (r *updateRepository) IncrementCounter(ctx context.Context, id utils.SixID, field string, delta int64) (int64, error) {
	switch field {
	case FieldLikesCount, FieldCommentsCount:
	default:
		return 0, fmt.Errorf("update counter %q not supported", field)
	}
	return incCounter(ctx, r.coll, id, field, delta)
}

func (r *updateRepository) IncrementPollOption(ctx context.Context, id utils.SixID, optionID string) (*models.Poll, error) {
	return incPollOption(ctx, r.coll, id, optionID)
}

type commentRepository struct {
	coll *mongo.Collection
}

func NewCommentRepository(database *mongo.Database) ICommentRepository {
	return &commentRepository{coll: database.Collection(db.CommentsCollection)}
}

func (r *commentRepository) Insert(ctx context.Context, comment *models.Comment) error {
	if _, err := r.coll.InsertOne(ctx, comment); err != nil {
		return translate(err)
	}
	return nil
}

func (r *commentRepository) FindByID(ctx context.Context, id utils.SixID) (*models.Comment, error) {
	return findOne[models.Comment](ctx, r.coll, bson.M{"_id": id})
}

func (r *commentRepository) ListByParent(ctx context.Context, parentType models.ParentType, parentID utils.SixID, limit int) ([]models.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	comments, err := findAll[models.Comment](ctx, r.coll, bson.M{"parent_type": parentType, "parent_id": parentID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments for %s %s: %w", parentType, parentID, err)
	}
	return comments, nil
}

func (r *commentRepository) Update(ctx context.Context, id utils.SixID, set Fields) (*models.Comment, error) {
	return findOneAndUpdate[models.Comment](ctx, r.coll, bson.M{"_id": id}, bson.M{"$set": bson.M(set)})
}

func (r *commentRepository) UpdateIfPollUnvoted(ctx context.Context, id utils.SixID, set Fields) (*models.Comment, error) {
	filter := bson.M{"_id": id, "poll.options.votes": bson.M{"$not": bson.M{"$gt": 0}}}
	return findOneAndUpdate[models.Comment](ctx, r.coll, filter, bson.M{"$set": bson.M(set)})
}

func (r *commentRepository) Delete(ctx context.Context, id utils.SixID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete comment %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *commentRepository) IncrementCounter(ctx context.Context, id utils.SixID, field string, delta int64) (int64, error) {
	if field != FieldLikesCount {
		return 0, fmt.Errorf("comment counter %q not supported", field)
	}
	return incCounter(ctx, r.coll, id, field, delta)
}

func (r *commentRepository) IncrementPollOption(ctx context.Context, id utils.SixID, optionID string) (*models.Poll, error) {
	return incPollOption(ctx, r.coll, id, optionID)
}
