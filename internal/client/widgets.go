package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/optimistic"
	"greendrake/localboard/internal/utils"
)

// IEngagementAPI is the slice of Client the widgets need.
type IEngagementAPI interface {
	ToggleLike(ctx context.Context, target models.Target) (*models.LikeState, error)
	VotePoll(ctx context.Context, target models.Target, optionID string) (*models.PollView, error)
	PinUpdate(ctx context.Context, updateID utils.SixID) error
	UnpinUpdate(ctx context.Context, updateID utils.SixID) error
}

// --- Like ---

// LikeButton flips immediately and settles on the server's answer. A
// failed toggle rolls back silently; Error holds the reason until the
// next toggle.
type LikeButton struct {
	api    IEngagementAPI
	target models.Target
	state  *optimistic.Cell[models.LikeState]

	mu  sync.Mutex
	err error
}

func NewLikeButton(api IEngagementAPI, target models.Target, initial models.LikeState) *LikeButton {
	return &LikeButton{api: api, target: target, state: optimistic.NewCell(initial)}
}

func (b *LikeButton) State() models.LikeState {
	return b.state.Get()
}

// OnChange is called with every rendered state, speculative ones included.
func (b *LikeButton) OnChange(fn func(models.LikeState)) {
	b.state.OnChange(fn)
}

// Refresh adopts a state read from the server.
func (b *LikeButton) Refresh(s models.LikeState) {
	b.state.Set(s)
}

func (b *LikeButton) Toggle(ctx context.Context) (models.LikeState, error) {
	state, err := b.state.Mutate(ctx, flipLike, func(ctx context.Context, _ models.LikeState) (models.LikeState, error) {
		res, err := b.api.ToggleLike(ctx, b.target)
		if err != nil {
			return models.LikeState{}, err
		}
		return *res, nil
	})
	if errors.Is(err, optimistic.ErrInFlight) {
		return state, err
	}
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
	return state, err
}

func (b *LikeButton) Error() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func flipLike(s models.LikeState) models.LikeState {
	if s.Liked {
		s.Liked = false
		if s.LikesCount > 0 {
			s.LikesCount--
		}
	} else {
		s.Liked = true
		s.LikesCount++
	}
	return s
}

// --- Poll ---

// PollWidget tracks one viewer's view of a poll. Voting is allowed once;
// the tally is bumped locally and rolled back if the server refuses.
type PollWidget struct {
	api    IEngagementAPI
	target models.Target
	view   *optimistic.Cell[models.PollView]
	now    func() time.Time
}

func NewPollWidget(api IEngagementAPI, target models.Target, initial models.PollView) *PollWidget {
	return &PollWidget{api: api, target: target, view: optimistic.NewCell(initial), now: time.Now}
}

func (w *PollWidget) View() models.PollView {
	v := w.view.Get()
	if !v.Closed && !w.now().Before(v.ExpiresAt) {
		v.Closed = true
		v.ShowResults = true
	}
	return v
}

func (w *PollWidget) OnChange(fn func(models.PollView)) {
	w.view.OnChange(fn)
}

// CanVote is false once the viewer has voted, when the poll has closed,
// or while a vote is being submitted.
func (w *PollWidget) CanVote() bool {
	if w.view.InFlight() {
		return false
	}
	v := w.View()
	return v.VotedOptionID == nil && !v.Closed
}

func (w *PollWidget) Vote(ctx context.Context, optionID string) (models.PollView, error) {
	if !w.CanVote() {
		return w.View(), ErrConflict
	}
	return w.view.Mutate(ctx,
		func(v models.PollView) models.PollView { return v.WithVote(optionID) },
		func(ctx context.Context, _ models.PollView) (models.PollView, error) {
			res, err := w.api.VotePoll(ctx, w.target, optionID)
			if err != nil {
				return models.PollView{}, err
			}
			return *res, nil
		})
}

// --- Pin ---

// PinControl is not optimistic: the pinned flag only changes once the
// server agrees, and a failure leaves a message for the user.
type PinControl struct {
	api      IEngagementAPI
	updateID utils.SixID

	mu      sync.Mutex
	pinned  bool
	busy    bool
	message string
}

func NewPinControl(api IEngagementAPI, updateID utils.SixID, pinned bool) *PinControl {
	return &PinControl{api: api, updateID: updateID, pinned: pinned}
}

func (p *PinControl) Pinned() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pinned
}

// Message is the last failure text, "" after a success.
func (p *PinControl) Message() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.message
}

func (p *PinControl) Pin(ctx context.Context) error {
	return p.set(ctx, true)
}

func (p *PinControl) Unpin(ctx context.Context) error {
	return p.set(ctx, false)
}

func (p *PinControl) set(ctx context.Context, pinned bool) error {
	p.mu.Lock()
	if p.busy {
		p.mu.Unlock()
		return optimistic.ErrInFlight
	}
	p.busy = true
	p.mu.Unlock()

	var err error
	if pinned {
		err = p.api.PinUpdate(ctx, p.updateID)
	} else {
		err = p.api.UnpinUpdate(ctx, p.updateID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.busy = false
	if err != nil {
		p.message = UserMessage(err)
		return err
	}
	p.pinned = pinned
	p.message = ""
	return nil
}

// --- Delete confirmation ---

// DeleteGate needs two presses to fire. The first arms it and changes the
// label; Cancel disarms.
type DeleteGate struct {
	mu    sync.Mutex
	armed bool
	fire  func(ctx context.Context) error
}

func NewDeleteGate(fire func(ctx context.Context) error) *DeleteGate {
	return &DeleteGate{fire: fire}
}

func (g *DeleteGate) Label() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.armed {
		return "Are you sure?"
	}
	return "Delete"
}

func (g *DeleteGate) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.armed
}

// Press arms the gate, or runs the delete if already armed. fired reports
// whether the delete ran.
func (g *DeleteGate) Press(ctx context.Context) (fired bool, err error) {
	g.mu.Lock()
	if !g.armed {
		g.armed = true
		g.mu.Unlock()
		return false, nil
	}
	g.armed = false
	g.mu.Unlock()
	return true, g.fire(ctx)
}

func (g *DeleteGate) Cancel() {
	g.mu.Lock()
	g.armed = false
	g.mu.Unlock()
}
