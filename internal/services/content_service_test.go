package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/repository"
	"greendrake/localboard/internal/utils"
)

type contentFixture struct {
	svc      IContentService
	updates  *memUpdates
	comments *MockCommentRepository
	listings *memListings
	users    *MockUserRepository
}

func newContentFixture(t *testing.T) *contentFixture {
	t.Helper()
	f := &contentFixture{
		updates:  newMemUpdates(),
		comments: &MockCommentRepository{},
		listings: newMemListings(),
		users:    &MockUserRepository{},
	}
	f.users.On("FindByID", mock.Anything, mock.Anything).Return(&models.User{Handle: "maria"}, nil)
	f.svc = NewContentService(f.updates, f.comments, f.listings, f.users, newMemEngagement(), zap.NewNop())
	return f
}

func TestCreateUpdate(t *testing.T) {
	f := newContentFixture(t)
	author := utils.NewSixID()

	view, err := f.svc.CreateUpdate(context.Background(), author, CreateUpdateInput{
		Content:     "  Shout out to @Jo_Dev and @jo_dev, mail me at a@b.com ",
		Attachments: AttachmentsInput{ImageURL: "https://img.example.com/a.png"},
		Poll: &PollInput{
			Question:  "Lunch?",
			Options:   []string{" Tacos ", "Pho"},
			ExpiresAt: time.Now().Add(time.Hour),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "maria", view.AuthorHandle)
	assert.Equal(t, []string{"jo_dev"}, view.Mentions)
	assert.Equal(t, "https://img.example.com/a.png", view.Attachments.ImageURL)
	require.NotNil(t, view.Poll)
	assert.Equal(t, "Tacos", view.Poll.Options[0].Text)
	assert.Equal(t, "1", view.Poll.Options[0].ID)
	assert.Equal(t, "2", view.Poll.Options[1].ID)
	assert.Zero(t, view.Poll.TotalVotes)
	assert.False(t, view.Liked)

	stored, err := f.updates.FindByID(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, author, stored.AuthorID)
}

func TestCreateUpdate_Validation(t *testing.T) {
	f := newContentFixture(t)
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name  string
		in    CreateUpdateInput
		field string
	}{
		{"empty content", CreateUpdateInput{Content: "   "}, "content"},
		{"too long", CreateUpdateInput{Content: strings.Repeat("a", 2001)}, "content"},
		{"bad attachment", CreateUpdateInput{Content: "hi", Attachments: AttachmentsInput{GifURL: "nope"}}, "attachments.gifUrl"},
		{"one option", CreateUpdateInput{Content: "hi", Poll: &PollInput{Question: "Q", Options: []string{"a"}, ExpiresAt: future}}, "poll.options"},
		{"blank option", CreateUpdateInput{Content: "hi", Poll: &PollInput{Question: "Q", Options: []string{"a", "  "}, ExpiresAt: future}}, "poll.options[1]"},
		{"expired poll", CreateUpdateInput{Content: "hi", Poll: &PollInput{Question: "Q", Options: []string{"a", "b"}, ExpiresAt: past}}, "poll.expiresAt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateUpdate(context.Background(), utils.NewSixID(), tt.in)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCreateComment_OnListing(t *testing.T) {
	f := newContentFixture(t)
	listing := seedListing(models.StatusActive, models.CategoryCommunity)
	require.NoError(t, f.listings.Insert(context.Background(), listing))
	author := utils.NewSixID()
	f.comments.On("Insert", mock.Anything, mock.AnythingOfType("*models.Comment")).Return(nil)

	view, err := f.svc.CreateComment(context.Background(), author, models.ParentListing, listing.ID, CommentInput{Content: "Is this still available?"})
	require.NoError(t, err)
	assert.True(t, view.CanEdit)
	assert.Equal(t, models.ParentListing, view.ParentType)
	assert.Equal(t, int64(1), f.listings.get(listing.ID).CommentCount)
}

func TestCreateComment_LengthDependsOnParent(t *testing.T) {
	f := newContentFixture(t)
	listing := seedListing(models.StatusActive, models.CategoryCommunity)
	update := seedUpdate(utils.NewSixID(), nil)
	require.NoError(t, f.listings.Insert(context.Background(), listing))
	require.NoError(t, f.updates.Insert(context.Background(), update))
	f.comments.On("Insert", mock.Anything, mock.Anything).Return(nil)
	content := strings.Repeat("é", 1500)

	_, err := f.svc.CreateComment(context.Background(), utils.NewSixID(), models.ParentListing, listing.ID, CommentInput{Content: content})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CreateComment(context.Background(), utils.NewSixID(), models.ParentUpdate, update.ID, CommentInput{Content: content})
	require.NoError(t, err)
	stored, _ := f.updates.FindByID(context.Background(), update.ID)
	assert.Equal(t, int64(1), stored.CommentsCount)
}

func TestCreateComment_MissingParent(t *testing.T) {
	f := newContentFixture(t)
	removed := seedListing(models.StatusRemoved, models.CategoryCommunity)
	require.NoError(t, f.listings.Insert(context.Background(), removed))

	_, err := f.svc.CreateComment(context.Background(), utils.NewSixID(), models.ParentListing, removed.ID, CommentInput{Content: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.CreateComment(context.Background(), utils.NewSixID(), models.ParentUpdate, utils.NewSixID(), CommentInput{Content: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.CreateComment(context.Background(), utils.NewSixID(), "profile", utils.NewSixID(), CommentInput{Content: "hi"})
	assert.ErrorIs(t, err, ErrValidation)
	f.comments.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestEditComment(t *testing.T) {
	f := newContentFixture(t)
	author := utils.NewSixID()
	comment := &models.Comment{ID: utils.NewSixID(), ParentType: models.ParentUpdate, AuthorID: author, Content: "old"}
	edited := *comment
	edited.Content = "new @sam"
	f.comments.On("FindByID", mock.Anything, comment.ID).Return(comment, nil)
	f.comments.On("Update", mock.Anything, comment.ID, mock.MatchedBy(func(set repository.Fields) bool {
		return set["content"] == "new @sam" && set["edited_at"] != nil
	})).Return(&edited, nil)

	content := " new @sam "
	view, err := f.svc.EditComment(context.Background(), comment.ID, author, EditCommentInput{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, "new @sam", view.Content)
	assert.True(t, view.CanEdit)

	_, err = f.svc.EditComment(context.Background(), comment.ID, utils.NewSixID(), EditCommentInput{Content: &content})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestEditComment_PollLockedOnceVoted(t *testing.T) {
	f := newContentFixture(t)
	author := utils.NewSixID()
	voted := openPoll()
	voted.Options[0].Votes = 1
	comment := &models.Comment{ID: utils.NewSixID(), ParentType: models.ParentUpdate, AuthorID: author, Content: "c", Poll: voted}
	f.comments.On("FindByID", mock.Anything, comment.ID).Return(comment, nil)

	_, err := f.svc.EditComment(context.Background(), comment.ID, author, EditCommentInput{RemovePoll: true})
	assert.ErrorIs(t, err, ErrPollLocked)
	f.comments.AssertNotCalled(t, "UpdateIfPollUnvoted", mock.Anything, mock.Anything, mock.Anything)
}

func TestEditComment_PollVoteRace(t *testing.T) {
	f := newContentFixture(t)
	author := utils.NewSixID()
	comment := &models.Comment{ID: utils.NewSixID(), ParentType: models.ParentUpdate, AuthorID: author, Content: "c", Poll: openPoll()}
	f.comments.On("FindByID", mock.Anything, comment.ID).Return(comment, nil)
	f.comments.On("UpdateIfPollUnvoted", mock.Anything, comment.ID, mock.Anything).Return(nil, repository.ErrNotFound)

	_, err := f.svc.EditComment(context.Background(), comment.ID, author, EditCommentInput{RemovePoll: true})
	assert.ErrorIs(t, err, ErrPollLocked)
}

func TestDeleteComment(t *testing.T) {
	f := newContentFixture(t)
	listing := seedListing(models.StatusActive, models.CategoryCommunity)
	require.NoError(t, f.listings.Insert(context.Background(), listing))
	author := utils.NewSixID()
	comment := &models.Comment{ID: utils.NewSixID(), ParentType: models.ParentListing, ParentID: listing.ID, AuthorID: author}
	f.comments.On("FindByID", mock.Anything, comment.ID).Return(comment, nil)
	f.comments.On("Delete", mock.Anything, comment.ID).Return(nil)

	assert.ErrorIs(t, f.svc.DeleteComment(context.Background(), comment.ID, utils.NewSixID()), ErrForbidden)
	require.NoError(t, f.svc.DeleteComment(context.Background(), comment.ID, author))
	assert.Zero(t, f.listings.get(listing.ID).CommentCount, "counter never drops below zero")
	f.comments.AssertNumberOfCalls(t, "Delete", 1)
}

func TestListingThread_FollowsListingVisibility(t *testing.T) {
	f := newContentFixture(t)
	ctx := context.Background()
	draft := seedListing(models.StatusDraft, models.CategoryServices)
	flagged := seedListing(models.StatusFlagged, models.CategoryCommunity)
	require.NoError(t, f.listings.Insert(ctx, draft))
	require.NoError(t, f.listings.Insert(ctx, flagged))
	f.comments.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.comments.On("ListByParent", mock.Anything, models.ParentListing, mock.Anything, maxThreadSize).Return([]models.Comment{}, nil)
	stranger := utils.NewSixID()

	for _, l := range []*models.Listing{draft, flagged} {
		_, err := f.svc.ListComments(ctx, models.ParentListing, l.ID, stranger)
		assert.ErrorIs(t, err, ErrNotFound, l.Status)
		_, err = f.svc.CreateComment(ctx, stranger, models.ParentListing, l.ID, CommentInput{Content: "hello?"})
		assert.ErrorIs(t, err, ErrNotFound, l.Status)
	}
	f.comments.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)

	_, err := f.svc.ListComments(ctx, models.ParentListing, draft.ID, draft.UserID)
	require.NoError(t, err)
	_, err = f.svc.CreateComment(ctx, draft.UserID, models.ParentListing, draft.ID, CommentInput{Content: "note to self"})
	require.NoError(t, err)
}

func TestListComments(t *testing.T) {
	f := newContentFixture(t)
	update := seedUpdate(utils.NewSixID(), nil)
	require.NoError(t, f.updates.Insert(context.Background(), update))
	viewer := utils.NewSixID()
	thread := []models.Comment{
		{ID: utils.NewSixID(), ParentType: models.ParentUpdate, ParentID: update.ID, AuthorID: viewer, Content: "mine"},
		{ID: utils.NewSixID(), ParentType: models.ParentUpdate, ParentID: update.ID, AuthorID: utils.NewSixID(), Content: "theirs", Poll: openPoll()},
	}
	f.comments.On("ListByParent", mock.Anything, models.ParentUpdate, update.ID, maxThreadSize).Return(thread, nil)

	views, err := f.svc.ListComments(context.Background(), models.ParentUpdate, update.ID, viewer)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.True(t, views[0].CanEdit)
	assert.False(t, views[1].CanEdit)
	require.NotNil(t, views[1].Poll)
	assert.Nil(t, views[1].Poll.VotedOptionID)
}
