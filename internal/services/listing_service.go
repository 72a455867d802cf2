package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"greendrake/localboard/internal/config"
	"greendrake/localboard/internal/db"
	"greendrake/localboard/internal/metrics"
	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/repository"
	"greendrake/localboard/internal/storage"
	"greendrake/localboard/internal/utils"
)

const MaxListingImages = models.MaxListingImages

const cleanupBatchSize = 500

// ITaskEnqueuer schedules background work triggered by a request.
type ITaskEnqueuer interface {
	EnqueueFlagReview(ctx context.Context, listingID utils.SixID) error
	EnqueueImageProcess(ctx context.Context, listingID utils.SixID, key, caption string) error
}

// IListingService defines the listing lifecycle operations.
type IListingService interface {
	CreateListing(ctx context.Context, ownerID utils.SixID, in CreateListingInput) (*models.Listing, error)
	UpdateListing(ctx context.Context, id, ownerID utils.SixID, in UpdateListingInput) (*models.Listing, error)
	GetListing(ctx context.Context, idOrSlug string, viewerID utils.SixID) (*models.Listing, error)
	ActivateListing(ctx context.Context, id utils.SixID, now time.Time) (*models.Listing, bool, error)
	ForceActivate(ctx context.Context, id utils.SixID, now time.Time) (*ActivationReport, error)
	ListPendingPaid(ctx context.Context) ([]models.Listing, error)
	DeleteListing(ctx context.Context, id, userID utils.SixID) error
	RemoveListing(ctx context.Context, id, moderatorID utils.SixID) (*models.Listing, error)
	ReinstateListing(ctx context.Context, id, moderatorID utils.SixID, now time.Time) (*models.Listing, error)
	ExpireListings(ctx context.Context, now time.Time) (int64, error)
	CleanupStaleDrafts(ctx context.Context, now time.Time, olderThan time.Duration, dryRun bool) (*CleanupResult, error)
	RequestImageUpload(ctx context.Context, id, userID utils.SixID, in ImageUploadInput) (*ImageUpload, error)
	AttachImage(ctx context.Context, id, userID utils.SixID, in AttachImageInput) error
	AddImage(ctx context.Context, id utils.SixID, key, caption string) (*models.Listing, error)
}

type CreateListingInput struct {
	Title        string `json:"title" validate:"required,max=100"`
	Description  string `json:"description" validate:"required,max=5000"`
	Category     string `json:"category" validate:"required"`
	City         string `json:"city" validate:"required,max=100"`
	State        string `json:"state" validate:"required,max=50"`
	ZipCode      string `json:"zipCode" validate:"omitempty,max=10"`
	PriceInCents *int64 `json:"priceInCents" validate:"omitnil,gte=0"`
	ContactEmail string `json:"contactEmail" validate:"omitempty,email,max=254"`
	ContactPhone string `json:"contactPhone" validate:"omitempty,max=30"`
	ContactURL   string `json:"contactUrl" validate:"omitempty,url,max=500"`
}

func (in *CreateListingInput) normalize() {
	for _, p := range []*string{&in.Title, &in.Description, &in.Category, &in.City, &in.State, &in.ZipCode, &in.ContactEmail, &in.ContactPhone, &in.ContactURL} {
		*p = strings.TrimSpace(*p)
	}
}

// UpdateListingInput is a partial update. Nil fields are left alone;
// ClearPrice removes the price.
type UpdateListingInput struct {
	Title        *string `json:"title" validate:"omitnil,min=1,max=100"`
	Description  *string `json:"description" validate:"omitnil,min=1,max=5000"`
	Category     *string `json:"category"`
	City         *string `json:"city" validate:"omitnil,min=1,max=100"`
	State        *string `json:"state" validate:"omitnil,min=1,max=50"`
	ZipCode      *string `json:"zipCode" validate:"omitnil,max=10"`
	PriceInCents *int64  `json:"priceInCents" validate:"omitnil,gte=0"`
	ClearPrice   bool    `json:"clearPrice"`
	ContactEmail *string `json:"contactEmail" validate:"omitnil,max=254"`
	ContactPhone *string `json:"contactPhone" validate:"omitnil,max=30"`
	ContactURL   *string `json:"contactUrl" validate:"omitnil,max=500"`
}

// check validates the struct tags and the contact formats; an empty string clears the field
// and is always allowed.
func (in *UpdateListingInput) check() error {
	if err := validateStruct(in); err != nil {
		return err
	}
	if in.ContactEmail != nil && *in.ContactEmail != "" {
		if err := validate.Var(*in.ContactEmail, "email"); err != nil {
			return invalid("contactEmail", "must be a valid email address")
		}
	}
	if in.ContactURL != nil && *in.ContactURL != "" {
		if err := validate.Var(*in.ContactURL, "url"); err != nil {
			return invalid("contactUrl", "must be a valid URL")
		}
	}
	return nil
}

func (in *UpdateListingInput) normalize() {
	for _, p := range []*string{in.Title, in.Description, in.Category, in.City, in.State, in.ZipCode, in.ContactEmail, in.ContactPhone, in.ContactURL} {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
}

type ImageUploadInput struct {
	Filename    string `json:"filename" validate:"required,max=200"`
	ContentType string `json:"contentType" validate:"required,oneof=image/jpeg image/png image/gif image/webp"`
}

type ImageUpload struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
}

type AttachImageInput struct {
	Key     string `json:"key" validate:"required,max=512"`
	Caption string `json:"caption" validate:"max=200"`
}

// ActivationReport describes a manual activation for the audit trail.
type ActivationReport struct {
	Listing     *models.Listing
	PriorStatus models.ListingStatus
	Activated   bool
}

// CleanupResult holds the outcome of a stale draft sweep.
type CleanupResult struct {
	Cutoff       time.Time `json:"cutoff"`
	TargetCount  int       `json:"targetCount"`
	RemovedCount int       `json:"removedCount"`
	DryRun       bool      `json:"dryRun"`
	ExecutedAt   time.Time `json:"executedAt"`
	RemovedIDs   []string  `json:"removedIds"`
	Errors       []string  `json:"errors,omitempty"`
}

// editableStatuses are the states an owner may still edit.
var editableStatuses = []models.ListingStatus{models.StatusDraft, models.StatusPendingPayment, models.StatusActive, models.StatusExpired}

var unpaidStatuses = []models.ListingStatus{models.StatusDraft, models.StatusPendingPayment}

type listingService struct {
	listings repository.IListingRepository
	storage  storage.IS3Storage
	tasks    ITaskEnqueuer
	cfg      *config.Config
	log      *zap.Logger
}

func NewListingService(listings repository.IListingRepository, store storage.IS3Storage, tasks ITaskEnqueuer, cfg *config.Config, log *zap.Logger) IListingService {
	return &listingService{listings: listings, storage: store, tasks: tasks, cfg: cfg, log: log}
}

// CreateListing persists a new listing. Paid categories start as DRAFT
// and wait for checkout; free categories are published immediately.
func (s *listingService) CreateListing(ctx context.Context, ownerID utils.SixID, in CreateListingInput) (*models.Listing, error) {
	in.normalize()
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	category, err := parseCategory(in.Category)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	listing := &models.Listing{
		UserID:       ownerID,
		Category:     category,
		Status:       models.StatusDraft,
		Title:        in.Title,
		Description:  in.Description,
		PriceInCents: in.PriceInCents,
		ContactEmail: in.ContactEmail,
		ContactPhone: in.ContactPhone,
		ContactURL:   in.ContactURL,
		City:         in.City,
		State:        in.State,
		ZipCode:      in.ZipCode,
		LocationSlug: utils.LocationSlug(in.City, in.State),
		Images:       []models.ListingImage{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !category.RequiresPayment() {
		expires := now.Add(category.Duration())
		listing.Status = models.StatusActive
		listing.ActivatedAt = &now
		listing.ExpiresAt = &expires
	}

	err = db.Try(ctx, func() error {
		listing.ID = utils.NewSixID()
		listing.Slug = listingSlug(listing.Title, listing.ID)
		return s.listings.Insert(ctx, listing)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert listing for user %s (last attempted id %s): %w", ownerID, listing.ID, err)
	}

	metrics.ListingsCreated.WithLabelValues(string(category)).Inc()
	if listing.Status == models.StatusActive {
		metrics.ListingsActivated.WithLabelValues(string(category), "free").Inc()
	}
	s.log.Info("listing created",
		zap.String("listing_id", listing.ID.String()),
		zap.String("category", string(category)),
		zap.String("status", string(listing.Status)),
	)
	return listing, nil
}

func listingSlug(title string, id utils.SixID) string {
	base := utils.Slugify(title)
	suffix := strings.ToLower(id.String())
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

func parseCategory(s string) (models.Category, error) {
	c, err := models.ParseCategory(s)
	if err != nil {
		names := make([]string, len(models.Categories))
		for i, c := range models.Categories {
			names[i] = string(c)
		}
		return "", invalid("category", "must be one of: "+strings.Join(names, ", "))
	}
	return c, nil
}

func (s *listingService) UpdateListing(ctx context.Context, id, ownerID utils.SixID, in UpdateListingInput) (*models.Listing, error) {
	in.normalize()
	if err := in.check(); err != nil {
		return nil, err
	}

	current, err := s.loadOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if !containsStatus(editableStatuses, current.Status) {
		return nil, fmt.Errorf("%w: %s listings cannot be edited", ErrInvalidTransition, current.Status)
	}

	set := repository.Fields{}
	if in.Title != nil {
		set["title"] = *in.Title
	}
	if in.Description != nil {
		set["description"] = *in.Description
	}
	if in.Category != nil {
		category, err := parseCategory(*in.Category)
		if err != nil {
			return nil, err
		}
		if category.RequiresPayment() != current.Category.RequiresPayment() {
			return nil, invalid("category", "cannot move between paid and free categories")
		}
		set["category"] = category
	}
	city, state := current.City, current.State
	if in.City != nil {
		city = *in.City
		set["city"] = city
	}
	if in.State != nil {
		state = *in.State
		set["state"] = state
	}
	if in.City != nil || in.State != nil {
		set["location_slug"] = utils.LocationSlug(city, state)
	}
	if in.ZipCode != nil {
		set["zip_code"] = *in.ZipCode
	}
	switch {
	case in.ClearPrice:
		set["price_in_cents"] = nil
	case in.PriceInCents != nil:
		set["price_in_cents"] = *in.PriceInCents
	}
	if in.ContactEmail != nil {
		set["contact_email"] = *in.ContactEmail
	}
	if in.ContactPhone != nil {
		set["contact_phone"] = *in.ContactPhone
	}
	if in.ContactURL != nil {
		set["contact_url"] = *in.ContactURL
	}
	if len(set) == 0 {
		return current, nil
	}
	set["updated_at"] = time.Now().UTC()

	updated, err := s.listings.UpdateOwned(ctx, id, ownerID, editableStatuses, set)
	if errors.Is(err, repository.ErrNotFound) {
		// Status changed underneath us.
		return nil, fmt.Errorf("%w: listing can no longer be edited", ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update listing %s: %w", id, err)
	}
	return updated, nil
}

// GetListing resolves an id or slug. Only ACTIVE listings are public; the
// owner also sees their own unpublished ones.
func (s *listingService) GetListing(ctx context.Context, idOrSlug string, viewerID utils.SixID) (*models.Listing, error) {
	var listing *models.Listing
	var err error
	if id, perr := utils.ParseSixID(idOrSlug); perr == nil {
		listing, err = s.listings.FindByID(ctx, id)
	} else {
		listing, err = s.listings.FindBySlug(ctx, strings.ToLower(idOrSlug))
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find listing %q: %w", idOrSlug, err)
	}

	if !listing.VisibleTo(viewerID) {
		return nil, ErrNotFound
	}
	return listing, nil
}

func (s *listingService) find(ctx context.Context, id utils.SixID) (*models.Listing, error) {
	listing, err := s.listings.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find listing %s: %w", id, err)
	}
	return listing, nil
}

// loadOwned returns the listing if userID owns it. REMOVED listings are
// reported as missing.
func (s *listingService) loadOwned(ctx context.Context, id, userID utils.SixID) (*models.Listing, error) {
	listing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.Status == models.StatusRemoved {
		return nil, ErrNotFound
	}
	if !listing.IsOwnedBy(userID) {
		return nil, ErrForbidden
	}
	return listing, nil
}

// ActivateListing publishes a paid listing. Activating an ACTIVE listing
// is a no-op that returns it untouched with activated=false.
func (s *listingService) ActivateListing(ctx context.Context, id utils.SixID, now time.Time) (*models.Listing, bool, error) {
	listing, err := s.find(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return s.activate(ctx, listing, now.UTC(), "payment")
}

func (s *listingService) activate(ctx context.Context, listing *models.Listing, now time.Time, source string) (*models.Listing, bool, error) {
	if listing.Status == models.StatusActive {
		metrics.ActivationNoops.Inc()
		s.log.Info("listing already active", zap.String("listing_id", listing.ID.String()), zap.String("source", source))
		return listing, false, nil
	}
	if !containsStatus(unpaidStatuses, listing.Status) {
		return nil, false, fmt.Errorf("%w: cannot activate a %s listing", ErrInvalidTransition, listing.Status)
	}

	expires := now.Add(listing.Category.Duration())
	updated, err := s.listings.Transition(ctx, listing.ID, unpaidStatuses, models.StatusActive, repository.Fields{
		"activated_at": now,
		"expires_at":   expires,
		"updated_at":   now,
	})
	if errors.Is(err, repository.ErrNotFound) {
		// Lost a race; whoever won decides the outcome.
		current, ferr := s.find(ctx, listing.ID)
		if ferr != nil {
			return nil, false, ferr
		}
		if current.Status == models.StatusActive {
			metrics.ActivationNoops.Inc()
			return current, false, nil
		}
		return nil, false, fmt.Errorf("%w: listing is %s", ErrInvalidTransition, current.Status)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to activate listing %s: %w", listing.ID, err)
	}

	metrics.ListingsActivated.WithLabelValues(string(updated.Category), source).Inc()
	s.log.Info("listing activated",
		zap.String("listing_id", updated.ID.String()),
		zap.String("source", source),
		zap.Time("expires_at", expires),
	)
	return updated, true, nil
}

// ForceActivate is the manual override for paid listings whose payment
// confirmation never arrived.
func (s *listingService) ForceActivate(ctx context.Context, id utils.SixID, now time.Time) (*ActivationReport, error) {
	listing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !listing.Category.RequiresPayment() {
		return nil, invalid("category", "only paid listings can be force-activated")
	}
	report := &ActivationReport{Listing: listing, PriorStatus: listing.Status}
	updated, activated, err := s.activate(ctx, listing, now.UTC(), "manual")
	if err != nil {
		return nil, err
	}
	report.Listing = updated
	report.Activated = activated
	return report, nil
}

func paidCategories() []models.Category {
	var out []models.Category
	for _, c := range models.Categories {
		if c.RequiresPayment() {
			out = append(out, c)
		}
	}
	return out
}

func (s *listingService) ListPendingPaid(ctx context.Context) ([]models.Listing, error) {
	listings, err := s.listings.Find(ctx, repository.ListingQuery{
		Statuses:    unpaidStatuses,
		Categories:  paidCategories(),
		OldestFirst: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending paid listings: %w", err)
	}
	return listings, nil
}

func (s *listingService) DeleteListing(ctx context.Context, id, userID utils.SixID) error {
	if _, err := s.loadOwned(ctx, id, userID); err != nil {
		return err
	}
	if _, err := s.remove(ctx, id); err != nil {
		return err
	}
	s.log.Info("listing deleted by owner", zap.String("listing_id", id.String()))
	return nil
}

// RemoveListing takes a listing down for moderation. Removing an already
// removed listing returns it unchanged.
func (s *listingService) RemoveListing(ctx context.Context, id, moderatorID utils.SixID) (*models.Listing, error) {
	listing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.Status == models.StatusRemoved {
		return listing, nil
	}
	removed, err := s.remove(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("listing removed by moderator",
		zap.String("listing_id", id.String()),
		zap.String("moderator_id", moderatorID.String()),
		zap.String("prior_status", string(listing.Status)),
	)
	return removed, nil
}

func (s *listingService) remove(ctx context.Context, id utils.SixID) (*models.Listing, error) {
	now := time.Now().UTC()
	removed, err := s.listings.Transition(ctx, id, models.StatusesFrom(models.StatusRemoved), models.StatusRemoved, repository.Fields{
		"removed_at": now,
		"updated_at": now,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to remove listing %s: %w", id, err)
	}
	return removed, nil
}

// ReinstateListing clears a FLAGGED listing. It returns to ACTIVE with its
// original expiry, or straight to EXPIRED if that has already passed.
func (s *listingService) ReinstateListing(ctx context.Context, id, moderatorID utils.SixID, now time.Time) (*models.Listing, error) {
	listing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.StatusFlagged {
		return nil, fmt.Errorf("%w: only flagged listings can be reinstated", ErrInvalidTransition)
	}

	now = now.UTC()
	next := models.StatusActive
	if listing.ExpiresAt != nil && !now.Before(*listing.ExpiresAt) {
		next = models.StatusExpired
	}
	updated, err := s.listings.Transition(ctx, id, []models.ListingStatus{models.StatusFlagged}, next, repository.Fields{
		"flag_count": 0,
		"updated_at": now,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: listing is no longer flagged", ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reinstate listing %s: %w", id, err)
	}
	s.log.Info("listing reinstated",
		zap.String("listing_id", id.String()),
		zap.String("moderator_id", moderatorID.String()),
		zap.String("status", string(next)),
	)
	return updated, nil
}

func (s *listingService) ExpireListings(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.listings.ExpireDue(ctx, now.UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.ListingsExpired.Add(float64(n))
		s.log.Info("listings expired", zap.Int64("count", n))
	}
	return n, nil
}

// CleanupStaleDrafts removes paid listings that never made it through
// checkout. Listings that change state mid-sweep are skipped.
func (s *listingService) CleanupStaleDrafts(ctx context.Context, now time.Time, olderThan time.Duration, dryRun bool) (*CleanupResult, error) {
	cutoff := now.UTC().Add(-olderThan)
	result := &CleanupResult{
		Cutoff:     cutoff,
		DryRun:     dryRun,
		ExecutedAt: now.UTC(),
		RemovedIDs: []string{},
	}

	stale, err := s.listings.Find(ctx, repository.ListingQuery{
		Statuses:      unpaidStatuses,
		Categories:    paidCategories(),
		CreatedBefore: &cutoff,
		OldestFirst:   true,
		Limit:         cleanupBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find stale drafts: %w", err)
	}
	result.TargetCount = len(stale)

	for _, l := range stale {
		if dryRun {
			result.RemovedIDs = append(result.RemovedIDs, l.ID.String())
			continue
		}
		_, err := s.listings.Transition(ctx, l.ID, unpaidStatuses, models.StatusRemoved, repository.Fields{
			"removed_at": now.UTC(),
			"updated_at": now.UTC(),
		})
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", l.ID, err))
			continue
		}
		result.RemovedCount++
		result.RemovedIDs = append(result.RemovedIDs, l.ID.String())
	}

	if result.RemovedCount > 0 {
		metrics.StaleDraftsRemoved.Add(float64(result.RemovedCount))
	}
	s.log.Info("stale draft cleanup",
		zap.Time("cutoff", cutoff),
		zap.Int("targets", result.TargetCount),
		zap.Int("removed", result.RemovedCount),
		zap.Bool("dry_run", dryRun),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (s *listingService) RequestImageUpload(ctx context.Context, id, userID utils.SixID, in ImageUploadInput) (*ImageUpload, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	listing, err := s.loadOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if len(listing.Images) >= MaxListingImages {
		return nil, invalid("images", fmt.Sprintf("a listing can have at most %d images", MaxListingImages))
	}
	url, key, err := s.storage.GeneratePresignedPutURL(ctx, userID, id, in.Filename, in.ContentType)
	if err != nil {
		return nil, err
	}
	return &ImageUpload{UploadURL: url, Key: key}, nil
}

// AttachImage queues an uploaded object for processing. The key must be
// one issued for this listing and owner.
func (s *listingService) AttachImage(ctx context.Context, id, userID utils.SixID, in AttachImageInput) error {
	in.Key = strings.TrimSpace(in.Key)
	in.Caption = strings.TrimSpace(in.Caption)
	if err := validateStruct(in); err != nil {
		return err
	}
	listing, err := s.loadOwned(ctx, id, userID)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(in.Key, storage.UploadPrefix(userID, id)) || strings.Contains(in.Key, "..") {
		return invalid("key", "was not issued for this listing")
	}
	if len(listing.Images) >= MaxListingImages {
		return invalid("images", fmt.Sprintf("a listing can have at most %d images", MaxListingImages))
	}
	if err := s.tasks.EnqueueImageProcess(ctx, id, in.Key, in.Caption); err != nil {
		return fmt.Errorf("failed to enqueue image processing for %s: %w", id, err)
	}
	return nil
}

// AddImage appends a processed image to the gallery.
func (s *listingService) AddImage(ctx context.Context, id utils.SixID, key, caption string) (*models.Listing, error) {
	image := models.ListingImage{
		Key:     key,
		URL:     strings.TrimRight(s.cfg.ImageBaseS3URL, "/") + "/" + key,
		Caption: caption,
	}
	listing, err := s.listings.AppendImage(ctx, id, image)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if errors.Is(err, repository.ErrGalleryFull) {
		return nil, invalid("images", fmt.Sprintf("a listing can have at most %d images", MaxListingImages))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add image to listing %s: %w", id, err)
	}
	return listing, nil
}

func containsStatus(list []models.ListingStatus, s models.ListingStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
