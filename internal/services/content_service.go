package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"greendrake/localboard/internal/db"
	"greendrake/localboard/internal/mentions"
	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/repository"
	"greendrake/localboard/internal/utils"
)

const maxThreadSize = 500

type AttachmentsInput struct {
	ImageURL string `json:"imageUrl" validate:"omitempty,url,max=2048"`
	GifURL   string `json:"gifUrl" validate:"omitempty,url,max=2048"`
	VideoURL string `json:"videoUrl" validate:"omitempty,url,max=2048"`
}

func (a AttachmentsInput) model() models.Attachments {
	return models.Attachments{
		ImageURL: strings.TrimSpace(a.ImageURL),
		GifURL:   strings.TrimSpace(a.GifURL),
		VideoURL: strings.TrimSpace(a.VideoURL),
	}
}

type PollInput struct {
	Question  string    `json:"question" validate:"required,max=300"`
	Options   []string  `json:"options" validate:"min=2,max=10,dive,required,max=100"`
	ExpiresAt time.Time `json:"expiresAt" validate:"required"`
}

// build validates the expiry and numbers the options 1..n.
func (in *PollInput) build(now time.Time) (*models.Poll, error) {
	in.Question = strings.TrimSpace(in.Question)
	for i := range in.Options {
		in.Options[i] = strings.TrimSpace(in.Options[i])
	}
	if err := validateStruct(in); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.Field = "poll." + verr.Field
		}
		return nil, err
	}
	if !in.ExpiresAt.After(now) {
		return nil, invalid("poll.expiresAt", "must be in the future")
	}
	poll := &models.Poll{Question: in.Question, ExpiresAt: in.ExpiresAt.UTC()}
	for i, text := range in.Options {
		poll.Options = append(poll.Options, models.PollOption{ID: strconv.Itoa(i + 1), Text: text})
	}
	return poll, nil
}

type CreateUpdateInput struct {
	Content     string           `json:"content" validate:"required,max=2000"`
	Attachments AttachmentsInput `json:"attachments"`
	Poll        *PollInput       `json:"poll"`
}

type CommentInput struct {
	Content     string           `json:"content" validate:"required"`
	Attachments AttachmentsInput `json:"attachments"`
	Poll        *PollInput       `json:"poll"`
}

// EditCommentInput changes a comment. Nil fields are kept; RemovePoll
// drops the poll.
type EditCommentInput struct {
	Content     *string           `json:"content" validate:"omitnil,min=1"`
	Attachments *AttachmentsInput `json:"attachments"`
	Poll        *PollInput        `json:"poll"`
	RemovePoll  bool              `json:"removePoll"`
}

type UpdateView struct {
	*models.Update
	Liked bool             `json:"liked"`
	Poll  *models.PollView `json:"poll,omitempty"`
}

type CommentView struct {
	*models.Comment
	Liked   bool             `json:"liked"`
	CanEdit bool             `json:"canEdit"`
	Poll    *models.PollView `json:"poll,omitempty"`
}

type IContentService interface {
	CreateUpdate(ctx context.Context, authorID utils.SixID, in CreateUpdateInput) (*UpdateView, error)
	GetUpdate(ctx context.Context, id, viewerID utils.SixID) (*UpdateView, error)
	ListComments(ctx context.Context, parentType models.ParentType, parentID, viewerID utils.SixID) ([]CommentView, error)
	CreateComment(ctx context.Context, authorID utils.SixID, parentType models.ParentType, parentID utils.SixID, in CommentInput) (*CommentView, error)
	EditComment(ctx context.Context, id, authorID utils.SixID, in EditCommentInput) (*CommentView, error)
	DeleteComment(ctx context.Context, id, authorID utils.SixID) error
}

type contentService struct {
	updates    repository.IUpdateRepository
	comments   repository.ICommentRepository
	listings   repository.IListingRepository
	users      repository.IUserRepository
	engagement repository.IEngagementRepository
	log        *zap.Logger
}

func NewContentService(updates repository.IUpdateRepository, comments repository.ICommentRepository, listings repository.IListingRepository, users repository.IUserRepository, engagement repository.IEngagementRepository, log *zap.Logger) IContentService {
	return &contentService{
		updates:    updates,
		comments:   comments,
		listings:   listings,
		users:      users,
		engagement: engagement,
		log:        log,
	}
}

func (s *contentService) authorHandle(ctx context.Context, authorID utils.SixID) string {
	user, err := s.users.FindByID(ctx, authorID)
	if err != nil {
		s.log.Warn("author profile unavailable", zap.String("user_id", authorID.String()), zap.Error(err))
		return ""
	}
	return user.Handle
}

func (s *contentService) CreateUpdate(ctx context.Context, authorID utils.SixID, in CreateUpdateInput) (*UpdateView, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	update := &models.Update{
		AuthorID:     authorID,
		AuthorHandle: s.authorHandle(ctx, authorID),
		Content:      in.Content,
		Mentions:     mentions.Handles(in.Content),
		Attachments:  in.Attachments.model(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Poll != nil {
		poll, err := in.Poll.build(now)
		if err != nil {
			return nil, err
		}
		update.Poll = poll
	}

	err := db.Try(ctx, func() error {
		update.ID = utils.NewSixID()
		return s.updates.Insert(ctx, update)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert update for %s: %w", authorID, err)
	}
	views := updateViews([]models.Update{*update}, nil, nil, now)
	return &views[0], nil
}

func (s *contentService) GetUpdate(ctx context.Context, id, viewerID utils.SixID) (*UpdateView, error) {
	update, err := s.updates.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find update %s: %w", id, err)
	}
	views, err := loadUpdateViews(ctx, s.engagement, []models.Update{*update}, viewerID)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// loadUpdateViews attaches the viewer's likes and votes to updates.
func loadUpdateViews(ctx context.Context, engagement repository.IEngagementRepository, updates []models.Update, viewerID utils.SixID) ([]UpdateView, error) {
	ids := make([]utils.SixID, 0, len(updates))
	var pollIDs []utils.SixID
	for _, u := range updates {
		ids = append(ids, u.ID)
		if u.Poll != nil {
			pollIDs = append(pollIDs, u.ID)
		}
	}
	liked, err := engagement.LikedAmong(ctx, viewerID, models.TargetUpdate, ids)
	if err != nil {
		return nil, err
	}
	votes, err := engagement.VotesAmong(ctx, viewerID, models.TargetUpdate, pollIDs)
	if err != nil {
		return nil, err
	}
	return updateViews(updates, liked, votes, time.Now().UTC()), nil
}

func updateViews(updates []models.Update, liked map[utils.SixID]bool, votes map[utils.SixID]string, now time.Time) []UpdateView {
	out := make([]UpdateView, len(updates))
	for i := range updates {
		u := &updates[i]
		out[i] = UpdateView{Update: u, Liked: liked[u.ID]}
		if u.Poll != nil {
			view := u.Poll.View(votedOption(votes, u.ID), now)
			out[i].Poll = &view
		}
	}
	return out
}

func votedOption(votes map[utils.SixID]string, id utils.SixID) *string {
	if opt, ok := votes[id]; ok {
		return &opt
	}
	return nil
}

// parent checks that the thread's parent exists and that viewerID can see
// it. Listing threads follow the listing's own visibility.
func (s *contentService) parent(ctx context.Context, parentType models.ParentType, parentID, viewerID utils.SixID) error {
	var err error
	switch parentType {
	case models.ParentUpdate:
		_, err = s.updates.FindByID(ctx, parentID)
	case models.ParentListing:
		var listing *models.Listing
		listing, err = s.listings.FindByID(ctx, parentID)
		if err == nil && !listing.VisibleTo(viewerID) {
			return ErrNotFound
		}
	default:
		return invalid("parentType", "is not supported")
	}
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to find %s %s: %w", parentType, parentID, err)
	}
	return nil
}

func (s *contentService) bumpParent(ctx context.Context, parentType models.ParentType, parentID utils.SixID, delta int64) error {
	var err error
	switch parentType {
	case models.ParentUpdate:
		_, err = s.updates.IncrementCounter(ctx, parentID, repository.FieldCommentsCount, delta)
	case models.ParentListing:
		_, err = s.listings.IncrementCounter(ctx, parentID, repository.FieldCommentCount, delta)
	}
	if errors.Is(err, repository.ErrNotFound) && delta < 0 {
		// Counter already at zero.
		return nil
	}
	return err
}

func (s *contentService) ListComments(ctx context.Context, parentType models.ParentType, parentID, viewerID utils.SixID) ([]CommentView, error) {
	if err := s.parent(ctx, parentType, parentID, viewerID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByParent(ctx, parentType, parentID, maxThreadSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return s.commentViews(ctx, comments, viewerID)
}

func (s *contentService) commentViews(ctx context.Context, comments []models.Comment, viewerID utils.SixID) ([]CommentView, error) {
	ids := make([]utils.SixID, 0, len(comments))
	var pollIDs []utils.SixID
	for _, c := range comments {
		ids = append(ids, c.ID)
		if c.Poll != nil {
			pollIDs = append(pollIDs, c.ID)
		}
	}
	liked, err := s.engagement.LikedAmong(ctx, viewerID, models.TargetComment, ids)
	if err != nil {
		return nil, err
	}
	votes, err := s.engagement.VotesAmong(ctx, viewerID, models.TargetComment, pollIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]CommentView, len(comments))
	for i := range comments {
		c := &comments[i]
		out[i] = commentView(c, viewerID, liked[c.ID], votedOption(votes, c.ID), now)
	}
	return out, nil
}

func commentView(c *models.Comment, viewerID utils.SixID, liked bool, voted *string, now time.Time) CommentView {
	view := CommentView{
		Comment: c,
		Liked:   liked,
		CanEdit: !viewerID.IsZero() && c.AuthorID == viewerID,
	}
	if c.Poll != nil {
		pv := c.Poll.View(voted, now)
		view.Poll = &pv
	}
	return view
}

func checkCommentLength(parentType models.ParentType, content string) error {
	if limit := parentType.MaxCommentLength(); utf8.RuneCountInString(content) > limit {
		return invalid("content", fmt.Sprintf("must be at most %d characters", limit))
	}
	return nil
}

func (s *contentService) CreateComment(ctx context.Context, authorID utils.SixID, parentType models.ParentType, parentID utils.SixID, in CommentInput) (*CommentView, error) {
	if !parentType.Valid() {
		return nil, invalid("parentType", "is not supported")
	}
	in.Content = strings.TrimSpace(in.Content)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := checkCommentLength(parentType, in.Content); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	comment := &models.Comment{
		ParentType:   parentType,
		ParentID:     parentID,
		AuthorID:     authorID,
		AuthorHandle: s.authorHandle(ctx, authorID),
		Content:      in.Content,
		Mentions:     mentions.Handles(in.Content),
		Attachments:  in.Attachments.model(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Poll != nil {
		poll, err := in.Poll.build(now)
		if err != nil {
			return nil, err
		}
		comment.Poll = poll
	}
	if err := s.parent(ctx, parentType, parentID, authorID); err != nil {
		return nil, err
	}

	err := db.Try(ctx, func() error {
		comment.ID = utils.NewSixID()
		return s.comments.Insert(ctx, comment)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert comment on %s %s: %w", parentType, parentID, err)
	}
	if err := s.bumpParent(ctx, parentType, parentID, 1); err != nil {
		s.log.Warn("failed to bump comment counter", zap.String("parent_id", parentID.String()), zap.Error(err))
	}

	view := commentView(comment, authorID, false, nil, now)
	return &view, nil
}

func (s *contentService) loadOwnComment(ctx context.Context, id, authorID utils.SixID) (*models.Comment, error) {
	comment, err := s.comments.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find comment %s: %w", id, err)
	}
	if comment.AuthorID != authorID {
		return nil, ErrForbidden
	}
	return comment, nil
}

// EditComment rewrites a comment. A poll that already has votes cannot be
// replaced or removed.
func (s *contentService) EditComment(ctx context.Context, id, authorID utils.SixID, in EditCommentInput) (*CommentView, error) {
	if in.Content != nil {
		trimmed := strings.TrimSpace(*in.Content)
		in.Content = &trimmed
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	comment, err := s.loadOwnComment(ctx, id, authorID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	set := repository.Fields{"updated_at": now, "edited_at": now}
	if in.Content != nil {
		if err := checkCommentLength(comment.ParentType, *in.Content); err != nil {
			return nil, err
		}
		set["content"] = *in.Content
		set["mentions"] = mentions.Handles(*in.Content)
	}
	if in.Attachments != nil {
		set["attachments"] = in.Attachments.model()
	}

	touchesPoll := in.Poll != nil || in.RemovePoll
	if touchesPoll {
		if comment.Poll != nil && comment.Poll.HasVotes() {
			return nil, ErrPollLocked
		}
		if in.RemovePoll {
			set["poll"] = nil
		} else {
			poll, err := in.Poll.build(now)
			if err != nil {
				return nil, err
			}
			set["poll"] = poll
		}
	}

	var updated *models.Comment
	if touchesPoll {
		updated, err = s.comments.UpdateIfPollUnvoted(ctx, id, set)
		if errors.Is(err, repository.ErrNotFound) {
			// A vote landed between the read and the write.
			return nil, ErrPollLocked
		}
	} else {
		updated, err = s.comments.Update(ctx, id, set)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to edit comment %s: %w", id, err)
	}

	views, err := s.commentViews(ctx, []models.Comment{*updated}, authorID)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *contentService) DeleteComment(ctx context.Context, id, authorID utils.SixID) error {
	comment, err := s.loadOwnComment(ctx, id, authorID)
	if err != nil {
		return err
	}
	err = s.comments.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete comment %s: %w", id, err)
	}
	if err := s.bumpParent(ctx, comment.ParentType, comment.ParentID, -1); err != nil {
		s.log.Warn("failed to decrement comment counter", zap.String("parent_id", comment.ParentID.String()), zap.Error(err))
	}
	return nil
}
