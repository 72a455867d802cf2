package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greendrake/localboard/internal/client"
	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/services"
	"greendrake/localboard/internal/utils"
)

// fakeAPI answers from canned values and records what the widget showed
// while each call was pending.
type fakeAPI struct {
	like    *models.LikeState
	poll    *models.PollView
	err     error
	calls   int
	during  func()
	pinned  []utils.SixID
	comment *services.CommentView
	deleted []utils.SixID
	listed  []services.CommentView
}

func (f *fakeAPI) ToggleLike(ctx context.Context, target models.Target) (*models.LikeState, error) {
	f.calls++
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.like, nil
}

func (f *fakeAPI) VotePoll(ctx context.Context, target models.Target, optionID string) (*models.PollView, error) {
	f.calls++
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.poll, nil
}

func (f *fakeAPI) PinUpdate(ctx context.Context, updateID utils.SixID) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.pinned = append(f.pinned, updateID)
	return nil
}

func (f *fakeAPI) UnpinUpdate(ctx context.Context, updateID utils.SixID) error {
	f.calls++
	return f.err
}

func (f *fakeAPI) ListComments(ctx context.Context, parent models.ParentType, id utils.SixID) ([]services.CommentView, error) {
	return f.listed, f.err
}

func (f *fakeAPI) CreateComment(ctx context.Context, parent models.ParentType, id utils.SixID, in services.CommentInput) (*services.CommentView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.comment, nil
}

func (f *fakeAPI) EditComment(ctx context.Context, id utils.SixID, in services.EditCommentInput) (*services.CommentView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.comment, nil
}

func (f *fakeAPI) DeleteComment(ctx context.Context, id utils.SixID) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

var errOffline = &client.APIError{Status: 503, Message: "unavailable"}

func TestLikeButton_ServerWins(t *testing.T) {
	api := &fakeAPI{like: &models.LikeState{Liked: true, LikesCount: 10}}
	b := client.NewLikeButton(api, models.Target{Type: models.TargetUpdate, ID: utils.NewSixID()}, models.LikeState{LikesCount: 4})
	api.during = func() {
		assert.Equal(t, models.LikeState{Liked: true, LikesCount: 5}, b.State(), "flipped before the server answers")
	}

	state, err := b.Toggle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.LikeState{Liked: true, LikesCount: 10}, state)
	assert.Equal(t, state, b.State())
	assert.NoError(t, b.Error())
}

func TestLikeButton_RollsBack(t *testing.T) {
	api := &fakeAPI{err: errOffline}
	initial := models.LikeState{Liked: true, LikesCount: 1}
	b := client.NewLikeButton(api, models.Target{Type: models.TargetComment, ID: utils.NewSixID()}, initial)

	var seen []models.LikeState
	b.OnChange(func(s models.LikeState) { seen = append(seen, s) })

	_, err := b.Toggle(context.Background())
	assert.Error(t, err)
	assert.Equal(t, initial, b.State())
	assert.Equal(t, []models.LikeState{{Liked: false, LikesCount: 0}, initial}, seen)
	assert.Equal(t, err, b.Error())
}

func TestLikeButton_CountNeverNegative(t *testing.T) {
	api := &fakeAPI{err: errOffline}
	b := client.NewLikeButton(api, models.Target{Type: models.TargetUpdate, ID: utils.NewSixID()}, models.LikeState{Liked: true})
	api.during = func() {
		assert.Equal(t, int64(0), b.State().LikesCount)
	}
	_, _ = b.Toggle(context.Background())
}

func openPoll() models.PollView {
	return models.PollView{
		Question:  "Best day?",
		ExpiresAt: time.Now().Add(time.Hour),
		Options: []models.PollOptionResult{
			{ID: "1", Text: "Sat", Votes: 1, Percent: 100, Leading: true},
			{ID: "2", Text: "Sun"},
		},
		TotalVotes: 1,
	}
}

func TestPollWidget_VoteBumpsTallyThenSettles(t *testing.T) {
	voted := "2"
	confirmed := &models.PollView{TotalVotes: 3, VotedOptionID: &voted, ShowResults: true, ExpiresAt: time.Now().Add(time.Hour)}
	api := &fakeAPI{poll: confirmed}
	w := client.NewPollWidget(api, models.Target{Type: models.TargetUpdate, ID: utils.NewSixID()}, openPoll())
	require.True(t, w.CanVote())

	api.during = func() {
		v := w.View()
		assert.False(t, w.CanVote(), "disabled while submitting")
		assert.Equal(t, int64(2), v.TotalVotes)
		assert.Equal(t, 50, v.Options[1].Percent)
		assert.True(t, v.Options[0].Leading)
		assert.True(t, v.Options[1].Leading)
		assert.True(t, v.ShowResults)
	}

	view, err := w.Vote(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, int64(3), view.TotalVotes)
	assert.False(t, w.CanVote(), "one vote per viewer")

	_, err = w.Vote(context.Background(), "1")
	assert.ErrorIs(t, err, client.ErrConflict)
	assert.Equal(t, 1, api.calls)
}

func TestPollWidget_RejectedVoteRestoresSnapshot(t *testing.T) {
	api := &fakeAPI{err: &client.APIError{Status: 409, Message: "Poll is closed"}}
	w := client.NewPollWidget(api, models.Target{Type: models.TargetComment, ID: utils.NewSixID()}, openPoll())

	_, err := w.Vote(context.Background(), "2")
	assert.Error(t, err)
	assert.Equal(t, openPoll().Options, w.View().Options)
	assert.Nil(t, w.View().VotedOptionID)
	assert.True(t, w.CanVote())
}

func TestPollWidget_ExpiredPollShowsResults(t *testing.T) {
	p := openPoll()
	p.ExpiresAt = time.Now().Add(-time.Minute)
	w := client.NewPollWidget(&fakeAPI{}, models.Target{Type: models.TargetUpdate, ID: utils.NewSixID()}, p)

	assert.False(t, w.CanVote())
	assert.True(t, w.View().Closed)
	assert.True(t, w.View().ShowResults)
}

func TestPinControl(t *testing.T) {
	id := utils.NewSixID()
	api := &fakeAPI{}
	p := client.NewPinControl(api, id, false)

	require.NoError(t, p.Pin(context.Background()))
	assert.True(t, p.Pinned())
	assert.Equal(t, []utils.SixID{id}, api.pinned)

	api.err = &client.APIError{Status: 400, Message: "at most 3 posts can be pinned"}
	err := p.Unpin(context.Background())
	assert.ErrorIs(t, err, client.ErrValidation)
	assert.True(t, p.Pinned(), "unpin failure leaves the post pinned")
	assert.Equal(t, "at most 3 posts can be pinned", p.Message())
}

func TestPinControl_FailureKeepsStateAndShowsMessage(t *testing.T) {
	api := &fakeAPI{err: &client.APIError{Status: 400, Message: "at most 3 posts can be pinned"}}
	p := client.NewPinControl(api, utils.NewSixID(), false)

	err := p.Pin(context.Background())
	assert.Error(t, err)
	assert.False(t, p.Pinned())
	assert.NotEmpty(t, p.Message())

	api.err = nil
	require.NoError(t, p.Pin(context.Background()))
	assert.True(t, p.Pinned())
	assert.Empty(t, p.Message())
}

func TestDeleteGate(t *testing.T) {
	fired := 0
	g := client.NewDeleteGate(func(ctx context.Context) error {
		fired++
		return nil
	})
	assert.Equal(t, "Delete", g.Label())

	ran, err := g.Press(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, "Are you sure?", g.Label())

	g.Cancel()
	assert.False(t, g.Armed())
	ran, _ = g.Press(context.Background())
	assert.False(t, ran, "cancel resets the gate")

	ran, err = g.Press(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, fired)
	assert.Equal(t, "Delete", g.Label())
}

func TestCommentThread(t *testing.T) {
	viewer := utils.NewSixID()
	other := utils.NewSixID()
	mine := services.CommentView{Comment: &models.Comment{ID: utils.NewSixID(), AuthorID: viewer, Content: "mine"}}
	theirs := services.CommentView{Comment: &models.Comment{ID: utils.NewSixID(), AuthorID: other, Content: "theirs"}}
	api := &fakeAPI{listed: []services.CommentView{mine, theirs}}

	th := client.NewCommentThread(api, models.ParentUpdate, utils.NewSixID(), viewer, 2)
	require.NoError(t, th.Load(context.Background()))
	assert.True(t, th.CanModify(mine))
	assert.False(t, th.CanModify(theirs))

	posted := services.CommentView{Comment: &models.Comment{ID: utils.NewSixID(), AuthorID: viewer, Content: "new"}}
	api.comment = &posted
	_, err := th.Post(context.Background(), services.CommentInput{Content: "new"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), th.Count())
	assert.Len(t, th.Comments(), 3)

	assert.ErrorIs(t, th.Delete(context.Background(), theirs.ID), client.ErrAuthorization)
	_, err = th.Edit(context.Background(), theirs.ID, services.EditCommentInput{})
	assert.ErrorIs(t, err, client.ErrAuthorization)

	edited := services.CommentView{Comment: &models.Comment{ID: mine.ID, AuthorID: viewer, Content: "edited"}}
	api.comment = &edited
	_, err = th.Edit(context.Background(), mine.ID, services.EditCommentInput{})
	require.NoError(t, err)
	assert.Equal(t, "edited", th.Comments()[0].Content)

	require.NoError(t, th.Delete(context.Background(), mine.ID))
	assert.Equal(t, int64(2), th.Count())
	assert.Equal(t, []utils.SixID{mine.ID}, api.deleted)
}

func TestCommentThread_FailedPostLeavesListAlone(t *testing.T) {
	api := &fakeAPI{err: errOffline}
	th := client.NewCommentThread(api, models.ParentListing, utils.NewSixID(), utils.NewSixID(), 0)

	_, err := th.Post(context.Background(), services.CommentInput{Content: "hi"})
	assert.Error(t, err)
	assert.Equal(t, int64(0), th.Count())
	assert.Empty(t, th.Comments())
}
