package handlers_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/services"
	"greendrake/localboard/internal/utils"
)

// --- Mocks ---

// MockListingService
type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) CreateListing(ctx context.Context, ownerID utils.SixID, in services.CreateListingInput) (*models.Listing, error) {
	args := m.Called(ctx, ownerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}
func (m *MockListingService) UpdateListing(ctx context.Context, id, ownerID utils.SixID, in services.UpdateListingInput) (*models.Listing, error) {
	args := m.Called(ctx, id, ownerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}
func (m *MockListingService) GetListing(ctx context.Context, idOrSlug string, viewerID utils.SixID) (*models.Listing, error) {
	args := m.Called(ctx, idOrSlug, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}
func (m *MockListingService) ActivateListing(ctx context.Context, id utils.SixID, now time.Time) (*models.Listing, bool, error) {
	args := m.Called(ctx, id, now)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Listing), args.Bool(1), args.Error(2)
}
func (m *MockListingService) ForceActivate(ctx context.Context, id utils.SixID, now time.Time) (*services.ActivationReport, error) {
	args := m.Called(ctx, id, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ActivationReport), args.Error(1)
}
func (m *MockListingService) ListPendingPaid(ctx context.Context) ([]models.Listing, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}
func (m *MockListingService) DeleteListing(ctx context.Context, id, userID utils.SixID) error {
	return m.Called(ctx, id, userID).Error(0)
}
func (m *MockListingService) RemoveListing(ctx context.Context, id, moderatorID utils.SixID) (*models.Listing, error) {
	args := m.Called(ctx, id, moderatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}
func (m *MockListingService) ReinstateListing(ctx context.Context, id, moderatorID utils.SixID, now time.Time) (*models.Listing, error) {
	args := m.Called(ctx, id, moderatorID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}
func (m *MockListingService) ExpireListings(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockListingService) CleanupStaleDrafts(ctx context.Context, now time.Time, olderThan time.Duration, dryRun bool) (*services.CleanupResult, error) {
	args := m.Called(ctx, now, olderThan, dryRun)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CleanupResult), args.Error(1)
}
func (m *MockListingService) RequestImageUpload(ctx context.Context, id, userID utils.SixID, in services.ImageUploadInput) (*services.ImageUpload, error) {
	args := m.Called(ctx, id, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ImageUpload), args.Error(1)
}
func (m *MockListingService) AttachImage(ctx context.Context, id, userID utils.SixID, in services.AttachImageInput) error {
	return m.Called(ctx, id, userID, in).Error(0)
}
func (m *MockListingService) AddImage(ctx context.Context, id utils.SixID, key, caption string) (*models.Listing, error) {
	args := m.Called(ctx, id, key, caption)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

// MockFeedService
type MockFeedService struct {
	mock.Mock
}

func (m *MockFeedService) ListActive(ctx context.Context, f services.FeedFilter, viewerID utils.SixID) (*services.FeedPage, error) {
	args := m.Called(ctx, f, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.FeedPage), args.Error(1)
}
func (m *MockFeedService) ListOwned(ctx context.Context, ownerID utils.SixID, f services.FeedFilter) (*services.FeedPage, error) {
	args := m.Called(ctx, ownerID, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.FeedPage), args.Error(1)
}

// MockCheckoutService
type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) StartCheckout(ctx context.Context, listingID, ownerID utils.SixID) (*services.CheckoutStart, error) {
	args := m.Called(ctx, listingID, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CheckoutStart), args.Error(1)
}
func (m *MockCheckoutService) HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) (*services.WebhookResult, error) {
	args := m.Called(ctx, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.WebhookResult), args.Error(1)
}

// MockModerationService
type MockModerationService struct {
	mock.Mock
}

func (m *MockModerationService) FileFlag(ctx context.Context, listingID, reporterID utils.SixID, in services.FlagInput) (*models.Flag, error) {
	args := m.Called(ctx, listingID, reporterID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Flag), args.Error(1)
}
func (m *MockModerationService) ReviewFlags(ctx context.Context, listingID utils.SixID) (bool, error) {
	args := m.Called(ctx, listingID)
	return args.Bool(0), args.Error(1)
}

// MockContentService
type MockContentService struct {
	mock.Mock
}

func (m *MockContentService) CreateUpdate(ctx context.Context, authorID utils.SixID, in services.CreateUpdateInput) (*services.UpdateView, error) {
	args := m.Called(ctx, authorID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.UpdateView), args.Error(1)
}
func (m *MockContentService) GetUpdate(ctx context.Context, id, viewerID utils.SixID) (*services.UpdateView, error) {
	args := m.Called(ctx, id, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.UpdateView), args.Error(1)
}
func (m *MockContentService) ListComments(ctx context.Context, parentType models.ParentType, parentID, viewerID utils.SixID) ([]services.CommentView, error) {
	args := m.Called(ctx, parentType, parentID, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]services.CommentView), args.Error(1)
}
func (m *MockContentService) CreateComment(ctx context.Context, authorID utils.SixID, parentType models.ParentType, parentID utils.SixID, in services.CommentInput) (*services.CommentView, error) {
	args := m.Called(ctx, authorID, parentType, parentID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CommentView), args.Error(1)
}
func (m *MockContentService) EditComment(ctx context.Context, id, authorID utils.SixID, in services.EditCommentInput) (*services.CommentView, error) {
	args := m.Called(ctx, id, authorID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CommentView), args.Error(1)
}
func (m *MockContentService) DeleteComment(ctx context.Context, id, authorID utils.SixID) error {
	return m.Called(ctx, id, authorID).Error(0)
}

// MockEngagementService
type MockEngagementService struct {
	mock.Mock
}

func (m *MockEngagementService) ToggleLike(ctx context.Context, userID utils.SixID, target models.Target) (*models.LikeState, error) {
	args := m.Called(ctx, userID, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LikeState), args.Error(1)
}
func (m *MockEngagementService) PinUpdate(ctx context.Context, userID, updateID utils.SixID) error {
	return m.Called(ctx, userID, updateID).Error(0)
}
func (m *MockEngagementService) UnpinUpdate(ctx context.Context, userID, updateID utils.SixID) error {
	return m.Called(ctx, userID, updateID).Error(0)
}
func (m *MockEngagementService) ListPinned(ctx context.Context, userID, viewerID utils.SixID) ([]services.UpdateView, error) {
	args := m.Called(ctx, userID, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]services.UpdateView), args.Error(1)
}
func (m *MockEngagementService) VotePoll(ctx context.Context, userID utils.SixID, target models.Target, optionID string) (*models.PollView, error) {
	args := m.Called(ctx, userID, target, optionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PollView), args.Error(1)
}
