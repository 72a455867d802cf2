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

// Cursor marks a position in a newest-first listing feed.
type Cursor struct {
	CreatedAt time.Time
	ID        utils.SixID
}

// ListingQuery selects listings. Zero-valued fields do not filter.
type ListingQuery struct {
	Statuses      []models.ListingStatus
	Categories    []models.Category
	LocationSlug  string
	OwnerID       *utils.SixID
	CreatedBefore *time.Time
	After         *Cursor
	Limit         int
	OldestFirst   bool
}

// IListingRepository persists listings.
type IListingRepository interface {
	Insert(ctx context.Context, listing *models.Listing) error
	FindByID(ctx context.Context, id utils.SixID) (*models.Listing, error)
	FindBySlug(ctx context.Context, slug string) (*models.Listing, error)
	FindByCheckoutSession(ctx context.Context, sessionID string) (*models.Listing, error)
	Find(ctx context.Context, q ListingQuery) ([]models.Listing, error)
	// UpdateOwned applies set to a listing owned by ownerID whose status is
	// one of statuses. ErrNotFound if nothing matched.
	UpdateOwned(ctx context.Context, id, ownerID utils.SixID, statuses []models.ListingStatus, set Fields) (*models.Listing, error)
	// Transition moves a listing from one of from to to, applying set in
	// the same write. ErrNotFound if nothing matched.
	Transition(ctx context.Context, id utils.SixID, from []models.ListingStatus, to models.ListingStatus, set Fields) (*models.Listing, error)
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
	IncrementCounter(ctx context.Context, id utils.SixID, field string, delta int64) (int64, error)
	AppendImage(ctx context.Context, id utils.SixID, image models.ListingImage) (*models.Listing, error)
}

const (
	FieldFlagCount    = "flag_count"
	FieldCommentCount = "comment_count"
)

type listingRepository struct {
	coll *mongo.Collection
}

func NewListingRepository(database *mongo.Database) IListingRepository {
	return &listingRepository{coll: database.Collection(db.ListingsCollection)}
}

func (r *listingRepository) Insert(ctx context.Context, listing *models.Listing) error {
	if _, err := r.coll.InsertOne(ctx, listing); err != nil {
		return translate(err)
	}
	return nil
}

func (r *listingRepository) FindByID(ctx context.Context, id utils.SixID) (*models.Listing, error) {
	return findOne[models.Listing](ctx, r.coll, bson.M{"_id": id})
}

func (r *listingRepository) FindBySlug(ctx context.Context, slug string) (*models.Listing, error) {
	return findOne[models.Listing](ctx, r.coll, bson.M{"slug": slug})
}

func (r *listingRepository) FindByCheckoutSession(ctx context.Context, sessionID string) (*models.Listing, error) {
	return findOne[models.Listing](ctx, r.coll, bson.M{"checkout_session_id": sessionID})
}

func (r *listingRepository) Find(ctx context.Context, q ListingQuery) ([]models.Listing, error) {
	filter := bson.M{}
	if len(q.Statuses) > 0 {
		filter["status"] = bson.M{"$in": q.Statuses}
	}
	if len(q.Categories) > 0 {
		filter["category"] = bson.M{"$in": q.Categories}
	}
	if q.LocationSlug != "" {
		filter["location_slug"] = q.LocationSlug
	}
	if q.OwnerID != nil {
		filter["user_id"] = *q.OwnerID
	}
	if q.CreatedBefore != nil {
		filter["created_at"] = bson.M{"$lt": *q.CreatedBefore}
	}

	order := -1
	cmp := "$lt"
	if q.OldestFirst {
		order, cmp = 1, "$gt"
	}
	if q.After != nil {
		// Same timestamp falls back to the id so pages never overlap.
		filter["$or"] = bson.A{
			bson.M{"created_at": bson.M{cmp: q.After.CreatedAt}},
			bson.M{"created_at": q.After.CreatedAt, "_id": bson.M{cmp: q.After.ID}},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: order}, {Key: "_id", Value: order}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	listings, err := findAll[models.Listing](ctx, r.coll, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	return listings, nil
}

func (r *listingRepository) UpdateOwned(ctx context.Context, id, ownerID utils.SixID, statuses []models.ListingStatus, set Fields) (*models.Listing, error) {
	filter := bson.M{"_id": id, "user_id": ownerID, "status": bson.M{"$in": statuses}}
	return findOneAndUpdate[models.Listing](ctx, r.coll, filter, bson.M{"$set": bson.M(set)})
}

func (r *listingRepository) Transition(ctx context.Context, id utils.SixID, from []models.ListingStatus, to models.ListingStatus, set Fields) (*models.Listing, error) {
	fields := bson.M{"status": to}
	for k, v := range set {
		fields[k] = v
	}
	filter := bson.M{"_id": id, "status": bson.M{"$in": from}}
	return findOneAndUpdate[models.Listing](ctx, r.coll, filter, bson.M{"$set": fields})
}

func (r *listingRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"status": models.StatusActive, "expires_at": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"status": models.StatusExpired, "updated_at": now}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire listings: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *listingRepository) IncrementCounter(ctx context.Context, id utils.SixID, field string, delta int64) (int64, error) {
	switch field {
	case FieldFlagCount, FieldCommentCount:
	default:
		return 0, fmt.Errorf("listing counter %q not supported", field)
	}
	return incCounter(ctx, r.coll, id, field, delta)
}

// AppendImage adds image at the end of the gallery. Position is assigned
// from the current gallery size inside the same update. Appending a key
// that is already attached is a no-op; a full gallery is ErrGalleryFull.
// User-supplied strings go through
// $literal since this is an aggregation pipeline.
func (r *listingRepository) AppendImage(ctx context.Context, id utils.SixID, image models.ListingImage) (*models.Listing, error) {
	images := bson.M{"$ifNull": bson.A{"$images", bson.A{}}}
	entry := bson.M{
		"key":      bson.M{"$literal": image.Key},
		"url":      bson.M{"$literal": image.URL},
		"caption":  bson.M{"$literal": image.Caption},
		"position": bson.M{"$size": images},
	}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"images":     bson.M{"$concatArrays": bson.A{images, bson.A{entry}}},
			"updated_at": time.Now().UTC(),
		}}},
	}
	filter := bson.M{
		"_id":        id,
		"status":     bson.M{"$ne": models.StatusRemoved},
		"images.key": bson.M{"$ne": image.Key},
		"$expr":      bson.M{"$lt": bson.A{bson.M{"$size": images}, models.MaxListingImages}},
	}
	listing, err := findOneAndUpdate[models.Listing](ctx, r.coll, filter, pipeline)
	if err == ErrNotFound {
		existing, findErr := r.FindByID(ctx, id)
		if findErr != nil {
			return nil, findErr
		}
		for _, img := range existing.Images {
			if img.Key == image.Key {
				return existing, nil
			}
		}
		if existing.Status != models.StatusRemoved && len(existing.Images) >= models.MaxListingImages {
			return nil, ErrGalleryFull
		}
		return nil, ErrNotFound
	}
	return listing, err
}
