package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/payments"
	"greendrake/localboard/internal/repository"
	"greendrake/localboard/internal/utils"
)

// --- Repositories ---

type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) Insert(ctx context.Context, listing *models.Listing) error {
	return m.Called(ctx, listing).Error(0)
}

func (m *MockListingRepository) FindByID(ctx context.Context, id utils.SixID) (*models.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingRepository) FindBySlug(ctx context.Context, slug string) (*models.Listing, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingRepository) FindByCheckoutSession(ctx context.Context, sessionID string) (*models.Listing, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingRepository) Find(ctx context.Context, q repository.ListingQuery) ([]models.Listing, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *MockListingRepository) UpdateOwned(ctx context.Context, id, ownerID utils.SixID, statuses []models.ListingStatus, set repository.Fields) (*models.Listing, error) {
	args := m.Called(ctx, id, ownerID, statuses, set)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingRepository) Transition(ctx context.Context, id utils.SixID, from []models.ListingStatus, to models.ListingStatus, set repository.Fields) (*models.Listing, error) {
	args := m.Called(ctx, id, from, to, set)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockListingRepository) IncrementCounter(ctx context.Context, id utils.SixID, field string, delta int64) (int64, error) {
	args := m.Called(ctx, id, field, delta)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockListingRepository) AppendImage(ctx context.Context, id utils.SixID, image models.ListingImage) (*models.Listing, error) {
	args := m.Called(ctx, id, image)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

type MockFlagRepository struct {
	mock.Mock
}

func (m *MockFlagRepository) Insert(ctx context.Context, flag *models.Flag) error {
	return m.Called(ctx, flag).Error(0)
}

func (m *MockFlagRepository) Delete(ctx context.Context, id utils.SixID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockFlagRepository) CountForListing(ctx context.Context, listingID utils.SixID) (int64, error) {
	args := m.Called(ctx, listingID)
	return args.Get(0).(int64), args.Error(1)
}

type MockUpdateRepository struct {
	mock.Mock
}

func (m *MockUpdateRepository) Insert(ctx context.Context, update *models.Update) error {
	return m.Called(ctx, update).Error(0)
}

func (m *MockUpdateRepository) FindByID(ctx context.Context, id utils.SixID) (*models.Update, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Update), args.Error(1)
}

func (m *MockUpdateRepository) FindByIDs(ctx context.Context, ids []utils.SixID) ([]models.Update, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Update), args.Error(1)
}

func (m *MockUpdateRepository) IncrementCounter(ctx context.Context, id utils.SixID, field string, delta int64) (int64, error) {
	args := m.Called(ctx, id, field, delta)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUpdateRepository) IncrementPollOption(ctx context.Context, id utils.SixID, optionID string) (*models.Poll, error) {
	args := m.Called(ctx, id, optionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Poll), args.Error(1)
}

type MockCommentRepository struct {
	mock.Mock
}

func (m *MockCommentRepository) Insert(ctx context.Context, comment *models.Comment) error {
	return m.Called(ctx, comment).Error(0)
}

func (m *MockCommentRepository) FindByID(ctx context.Context, id utils.SixID) (*models.Comment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1)
}

func (m *MockCommentRepository) ListByParent(ctx context.Context, parentType models.ParentType, parentID utils.SixID, limit int) ([]models.Comment, error) {
	args := m.Called(ctx, parentType, parentID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Comment), args.Error(1)
}

func (m *MockCommentRepository) Update(ctx context.Context, id utils.SixID, set repository.Fields) (*models.Comment, error) {
	args := m.Called(ctx, id, set)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1)
}

func (m *MockCommentRepository) UpdateIfPollUnvoted(ctx context.Context, id utils.SixID, set repository.Fields) (*models.Comment, error) {
	args := m.Called(ctx, id, set)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1)
}

func (m *MockCommentRepository) Delete(ctx context.Context, id utils.SixID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCommentRepository) IncrementCounter(ctx context.Context, id utils.SixID, field string, delta int64) (int64, error) {
	args := m.Called(ctx, id, field, delta)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCommentRepository) IncrementPollOption(ctx context.Context, id utils.SixID, optionID string) (*models.Poll, error) {
	args := m.Called(ctx, id, optionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Poll), args.Error(1)
}

type MockEngagementRepository struct {
	mock.Mock
}

func (m *MockEngagementRepository) InsertLike(ctx context.Context, like *models.Like) (bool, error) {
	args := m.Called(ctx, like)
	return args.Bool(0), args.Error(1)
}

func (m *MockEngagementRepository) DeleteLike(ctx context.Context, target models.Target, userID utils.SixID) (bool, error) {
	args := m.Called(ctx, target, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEngagementRepository) HasLiked(ctx context.Context, target models.Target, userID utils.SixID) (bool, error) {
	args := m.Called(ctx, target, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEngagementRepository) LikedAmong(ctx context.Context, userID utils.SixID, targetType models.TargetType, ids []utils.SixID) (map[utils.SixID]bool, error) {
	args := m.Called(ctx, userID, targetType, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[utils.SixID]bool), args.Error(1)
}

func (m *MockEngagementRepository) InsertPin(ctx context.Context, pin *models.Pin) (bool, error) {
	args := m.Called(ctx, pin)
	return args.Bool(0), args.Error(1)
}

func (m *MockEngagementRepository) DeletePin(ctx context.Context, userID, updateID utils.SixID) (bool, error) {
	args := m.Called(ctx, userID, updateID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEngagementRepository) CountPins(ctx context.Context, userID utils.SixID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEngagementRepository) ListPins(ctx context.Context, userID utils.SixID) ([]models.Pin, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Pin), args.Error(1)
}

func (m *MockEngagementRepository) InsertVote(ctx context.Context, vote *models.PollVote) (bool, error) {
	args := m.Called(ctx, vote)
	return args.Bool(0), args.Error(1)
}

func (m *MockEngagementRepository) FindVote(ctx context.Context, target models.Target, userID utils.SixID) (*models.PollVote, error) {
	args := m.Called(ctx, target, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PollVote), args.Error(1)
}

func (m *MockEngagementRepository) DeleteVote(ctx context.Context, target models.Target, userID utils.SixID) (bool, error) {
	args := m.Called(ctx, target, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEngagementRepository) VotesAmong(ctx context.Context, userID utils.SixID, targetType models.TargetType, ids []utils.SixID) (map[utils.SixID]string, error) {
	args := m.Called(ctx, userID, targetType, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[utils.SixID]string), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id utils.SixID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) ListByLocation(ctx context.Context, locationSlug string, limit int) ([]models.JobPosting, error) {
	args := m.Called(ctx, locationSlug, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.JobPosting), args.Error(1)
}

// --- Collaborators ---

type MockTaskEnqueuer struct {
	mock.Mock
}

func (m *MockTaskEnqueuer) EnqueueFlagReview(ctx context.Context, listingID utils.SixID) error {
	return m.Called(ctx, listingID).Error(0)
}

func (m *MockTaskEnqueuer) EnqueueImageProcess(ctx context.Context, listingID utils.SixID, key, caption string) error {
	return m.Called(ctx, listingID, key, caption).Error(0)
}

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) GeneratePresignedPutURL(ctx context.Context, userID, listingID utils.SixID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, userID, listingID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockStorage) Download(ctx context.Context, key string, maxBytes int64) ([]byte, error) {
	args := m.Called(ctx, key, maxBytes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorage) Upload(ctx context.Context, key string, body []byte, contentType string) error {
	return m.Called(ctx, key, body, contentType).Error(0)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.CheckoutSession), args.Error(1)
}

func (m *MockProvider) ParseWebhook(payload []byte, signatureHeader string, now time.Time) (*payments.Event, error) {
	args := m.Called(payload, signatureHeader, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.Event), args.Error(1)
}

// memDeduper is an in-memory IDeduper.
type memDeduper struct {
	seen map[string]bool
}

func newMemDeduper() *memDeduper {
	return &memDeduper{seen: map[string]bool{}}
}

func (d *memDeduper) Claim(_ context.Context, key string) (bool, error) {
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func (d *memDeduper) Release(_ context.Context, key string) error {
	delete(d.seen, key)
	return nil
}
