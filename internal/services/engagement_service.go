package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"greendrake/localboard/internal/config"
	"greendrake/localboard/internal/metrics"
	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/repository"
	"greendrake/localboard/internal/utils"
)

type IEngagementService interface {
	ToggleLike(ctx context.Context, userID utils.SixID, target models.Target) (*models.LikeState, error)
	PinUpdate(ctx context.Context, userID, updateID utils.SixID) error
	UnpinUpdate(ctx context.Context, userID, updateID utils.SixID) error
	ListPinned(ctx context.Context, userID, viewerID utils.SixID) ([]UpdateView, error)
	VotePoll(ctx context.Context, userID utils.SixID, target models.Target, optionID string) (*models.PollView, error)
}

type engagementService struct {
	updates    repository.IUpdateRepository
	comments   repository.ICommentRepository
	engagement repository.IEngagementRepository
	cfg        *config.Config
	log        *zap.Logger
}

func NewEngagementService(updates repository.IUpdateRepository, comments repository.ICommentRepository, engagement repository.IEngagementRepository, cfg *config.Config, log *zap.Logger) IEngagementService {
	return &engagementService{
		updates:    updates,
		comments:   comments,
		engagement: engagement,
		cfg:        cfg,
		log:        log,
	}
}

// load returns the target's current like count and poll.
func (s *engagementService) load(ctx context.Context, target models.Target) (int64, *models.Poll, error) {
	var likes int64
	var poll *models.Poll
	var err error
	switch target.Type {
	case models.TargetUpdate:
		var u *models.Update
		if u, err = s.updates.FindByID(ctx, target.ID); err == nil {
			likes, poll = u.LikesCount, u.Poll
		}
	case models.TargetComment:
		var c *models.Comment
		if c, err = s.comments.FindByID(ctx, target.ID); err == nil {
			likes, poll = c.LikesCount, c.Poll
		}
	default:
		return 0, nil, invalid("type", "must be update or comment")
	}
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil, ErrNotFound
	}
	if err != nil {
		return 0, nil, fmt.Errorf("failed to find %s %s: %w", target.Type, target.ID, err)
	}
	return likes, poll, nil
}

func (s *engagementService) incLikes(ctx context.Context, target models.Target, delta int64) (int64, error) {
	if target.Type == models.TargetUpdate {
		return s.updates.IncrementCounter(ctx, target.ID, repository.FieldLikesCount, delta)
	}
	return s.comments.IncrementCounter(ctx, target.ID, repository.FieldLikesCount, delta)
}

// ToggleLike flips the caller's like. The returned state is read back
// from the store and is what clients should display.
func (s *engagementService) ToggleLike(ctx context.Context, userID utils.SixID, target models.Target) (*models.LikeState, error) {
	if _, _, err := s.load(ctx, target); err != nil {
		return nil, err
	}

	inserted, err := s.engagement.InsertLike(ctx, &models.Like{Target: target, UserID: userID, CreatedAt: time.Now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("failed to like %s %s: %w", target.Type, target.ID, err)
	}
	if inserted {
		count, err := s.incLikes(ctx, target, 1)
		if err != nil {
			if _, derr := s.engagement.DeleteLike(ctx, target, userID); derr != nil {
				s.log.Error("failed to roll back uncounted like", zap.String("target_id", target.ID.String()), zap.Error(derr))
			}
			return nil, fmt.Errorf("failed to count like on %s %s: %w", target.Type, target.ID, err)
		}
		metrics.LikesToggled.WithLabelValues(string(target.Type), "liked").Inc()
		return &models.LikeState{Liked: true, LikesCount: count}, nil
	}

	removed, err := s.engagement.DeleteLike(ctx, target, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to unlike %s %s: %w", target.Type, target.ID, err)
	}
	if !removed {
		// A concurrent toggle got there first; report what is stored now.
		return s.likeState(ctx, userID, target)
	}
	count, err := s.incLikes(ctx, target, -1)
	if errors.Is(err, repository.ErrNotFound) {
		count, err = 0, nil
	}
	if err != nil {
		if _, ierr := s.engagement.InsertLike(ctx, &models.Like{Target: target, UserID: userID, CreatedAt: time.Now().UTC()}); ierr != nil {
			s.log.Error("failed to restore like after uncount failure", zap.String("target_id", target.ID.String()), zap.Error(ierr))
		}
		return nil, fmt.Errorf("failed to uncount like on %s %s: %w", target.Type, target.ID, err)
	}
	metrics.LikesToggled.WithLabelValues(string(target.Type), "unliked").Inc()
	return &models.LikeState{Liked: false, LikesCount: count}, nil
}

func (s *engagementService) likeState(ctx context.Context, userID utils.SixID, target models.Target) (*models.LikeState, error) {
	count, _, err := s.load(ctx, target)
	if err != nil {
		return nil, err
	}
	liked, err := s.engagement.HasLiked(ctx, target, userID)
	if err != nil {
		return nil, err
	}
	return &models.LikeState{Liked: liked, LikesCount: count}, nil
}

// PinUpdate showcases one of the caller's own updates on their profile.
// Pinning an already pinned update succeeds without changes.
func (s *engagementService) PinUpdate(ctx context.Context, userID, updateID utils.SixID) error {
	update, err := s.updates.FindByID(ctx, updateID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to find update %s: %w", updateID, err)
	}
	if update.AuthorID != userID {
		return ErrForbidden
	}

	count, err := s.engagement.CountPins(ctx, userID)
	if err != nil {
		return err
	}
	if count >= int64(s.cfg.MaxPinnedPosts) {
		pins, err := s.engagement.ListPins(ctx, userID)
		if err != nil {
			return err
		}
		for _, p := range pins {
			if p.UpdateID == updateID {
				return nil
			}
		}
		return invalid("updateId", fmt.Sprintf("at most %d posts can be pinned", s.cfg.MaxPinnedPosts))
	}

	// An existing pin reports inserted=false, which is the idempotent case.
	if _, err := s.engagement.InsertPin(ctx, &models.Pin{UserID: userID, UpdateID: updateID, CreatedAt: time.Now().UTC()}); err != nil {
		return fmt.Errorf("failed to pin update %s: %w", updateID, err)
	}
	return nil
}

func (s *engagementService) UnpinUpdate(ctx context.Context, userID, updateID utils.SixID) error {
	removed, err := s.engagement.DeletePin(ctx, userID, updateID)
	if err != nil {
		return fmt.Errorf("failed to unpin update %s: %w", updateID, err)
	}
	if !removed {
		return ErrNotFound
	}
	return nil
}

// ListPinned returns a user's pinned updates, most recently pinned first.
// Updates deleted since pinning are skipped.
func (s *engagementService) ListPinned(ctx context.Context, userID, viewerID utils.SixID) ([]UpdateView, error) {
	pins, err := s.engagement.ListPins(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(pins) == 0 {
		return []UpdateView{}, nil
	}
	ids := make([]utils.SixID, len(pins))
	for i, p := range pins {
		ids[i] = p.UpdateID
	}
	found, err := s.updates.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[utils.SixID]models.Update, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	ordered := make([]models.Update, 0, len(found))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			ordered = append(ordered, u)
		}
	}
	return loadUpdateViews(ctx, s.engagement, ordered, viewerID)
}

// VotePoll records the caller's single, permanent vote. Voting again
// returns the current view with the original choice.
func (s *engagementService) VotePoll(ctx context.Context, userID utils.SixID, target models.Target, optionID string) (*models.PollView, error) {
	_, poll, err := s.load(ctx, target)
	if err != nil {
		return nil, err
	}
	if poll == nil {
		return nil, ErrNotFound
	}
	if _, ok := poll.Option(optionID); !ok {
		return nil, invalid("optionId", "is not an option of this poll")
	}
	now := time.Now().UTC()
	if poll.IsClosed(now) {
		return nil, ErrPollClosed
	}

	existing, err := s.engagement.FindVote(ctx, target, userID)
	if err == nil {
		view := poll.View(&existing.OptionID, now)
		return &view, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up vote: %w", err)
	}

	inserted, err := s.engagement.InsertVote(ctx, &models.PollVote{Target: target, UserID: userID, OptionID: optionID, CreatedAt: now})
	if err != nil {
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}
	if !inserted {
		existing, err := s.engagement.FindVote(ctx, target, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up vote: %w", err)
		}
		view := poll.View(&existing.OptionID, now)
		return &view, nil
	}

	var updated *models.Poll
	if target.Type == models.TargetUpdate {
		updated, err = s.updates.IncrementPollOption(ctx, target.ID, optionID)
	} else {
		updated, err = s.comments.IncrementPollOption(ctx, target.ID, optionID)
	}
	if err != nil {
		// An uncounted vote must not block the user from voting again.
		if _, derr := s.engagement.DeleteVote(ctx, target, userID); derr != nil {
			s.log.Error("failed to roll back uncounted vote", zap.String("target_id", target.ID.String()), zap.Error(derr))
		}
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("poll closed before tally", zap.String("target_id", target.ID.String()), zap.String("option_id", optionID))
			return nil, ErrPollClosed
		}
		return nil, fmt.Errorf("failed to tally vote: %w", err)
	}

	metrics.PollVotes.WithLabelValues(string(target.Type)).Inc()
	view := updated.View(&optionID, now)
	return &view, nil
}
