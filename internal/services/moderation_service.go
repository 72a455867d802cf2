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
	"greendrake/localboard/internal/utils"
)

type IModerationService interface {
	FileFlag(ctx context.Context, listingID, reporterID utils.SixID, in FlagInput) (*models.Flag, error)
	// ReviewFlags moves an ACTIVE listing to FLAGGED once its report count
	// reaches the threshold. It reports whether the listing was flagged.
	ReviewFlags(ctx context.Context, listingID utils.SixID) (bool, error)
}

type FlagInput struct {
	Reason      string `json:"reason" validate:"required"`
	Description string `json:"description" validate:"max=500"`
}

type moderationService struct {
	listings repository.IListingRepository
	flags    repository.IFlagRepository
	tasks    ITaskEnqueuer
	cfg      *config.Config
	log      *zap.Logger
}

func NewModerationService(listings repository.IListingRepository, flags repository.IFlagRepository, tasks ITaskEnqueuer, cfg *config.Config, log *zap.Logger) IModerationService {
	return &moderationService{listings: listings, flags: flags, tasks: tasks, cfg: cfg, log: log}
}

func flagReasonNames() string {
	reasons := []models.FlagReason{
		models.FlagReasonSpam,
		models.FlagReasonInappropriate,
		models.FlagReasonScam,
		models.FlagReasonDuplicate,
		models.FlagReasonWrongCategory,
		models.FlagReasonOther,
	}
	names := make([]string, len(reasons))
	for i, r := range reasons {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

// FileFlag records a report. Input is fully validated before anything is
// written; each user may report a listing once.
func (s *moderationService) FileFlag(ctx context.Context, listingID, reporterID utils.SixID, in FlagInput) (*models.Flag, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	in.Description = strings.TrimSpace(in.Description)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	reason, err := models.ParseFlagReason(in.Reason)
	if err != nil {
		return nil, invalid("reason", "must be one of: "+flagReasonNames())
	}

	listing, err := s.listings.FindByID(ctx, listingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find listing %s: %w", listingID, err)
	}
	if listing.Status == models.StatusRemoved {
		return nil, ErrNotFound
	}
	if listing.Status != models.StatusActive && !listing.IsOwnedBy(reporterID) {
		return nil, ErrNotFound
	}

	flag := &models.Flag{
		ListingID:   listingID,
		ReporterID:  reporterID,
		Reason:      reason,
		Description: in.Description,
		CreatedAt:   time.Now().UTC(),
	}
	err = db.WithRetries(ctx, func() error {
		flag.ID = utils.NewSixID()
		return s.flags.Insert(ctx, flag)
	}, db.DefaultMaxRetries, isIDCollision)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, ErrAlreadyFlagged
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert flag for listing %s: %w", listingID, err)
	}
	count, err := s.listings.IncrementCounter(ctx, listingID, repository.FieldFlagCount, 1)
	if err != nil {
		// Drop the report so the reporter can file it again.
		if derr := s.flags.Delete(ctx, flag.ID); derr != nil {
			s.log.Error("failed to roll back uncounted flag", zap.String("flag_id", flag.ID.String()), zap.Error(derr))
		}
		return nil, fmt.Errorf("failed to count flag for listing %s: %w", listingID, err)
	}
	metrics.FlagsFiled.WithLabelValues(string(reason)).Inc()
	s.log.Info("listing flagged",
		zap.String("listing_id", listingID.String()),
		zap.String("reason", string(reason)),
		zap.Int64("flag_count", count),
	)

	if err := s.tasks.EnqueueFlagReview(ctx, listingID); err != nil {
		// The flag is stored; the next report enqueues another review.
		s.log.Warn("failed to enqueue flag review", zap.String("listing_id", listingID.String()), zap.Error(err))
	}
	return flag, nil
}

// isIDCollision retries only when the generated _id collided; a repeat
// report hits the (listing, reporter) index and must not be retried.
func isIDCollision(err error) bool {
	return db.IsDuplicateKeyError(err) && strings.Contains(err.Error(), "_id_")
}

func (s *moderationService) ReviewFlags(ctx context.Context, listingID utils.SixID) (bool, error) {
	listing, err := s.listings.FindByID(ctx, listingID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to find listing %s: %w", listingID, err)
	}
	if listing.Status != models.StatusActive || listing.FlagCount < s.cfg.FlagThreshold {
		return false, nil
	}
	// flag_count is a running counter; the stored reports decide.
	reports, err := s.flags.CountForListing(ctx, listingID)
	if err != nil {
		return false, fmt.Errorf("failed to count reports for listing %s: %w", listingID, err)
	}
	if reports < s.cfg.FlagThreshold {
		s.log.Warn("flag counter ahead of stored reports",
			zap.String("listing_id", listingID.String()),
			zap.Int64("flag_count", listing.FlagCount),
			zap.Int64("reports", reports),
		)
		return false, nil
	}

	_, err = s.listings.Transition(ctx, listingID, []models.ListingStatus{models.StatusActive}, models.StatusFlagged, repository.Fields{
		"updated_at": time.Now().UTC(),
	})
	if errors.Is(err, repository.ErrNotFound) {
		// Expired or removed in the meantime.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to flag listing %s: %w", listingID, err)
	}

	metrics.ListingsFlagged.Inc()
	s.log.Warn("listing hidden pending moderation",
		zap.String("listing_id", listingID.String()),
		zap.Int64("reports", reports),
		zap.Int64("threshold", s.cfg.FlagThreshold),
	)
	return true, nil
}
