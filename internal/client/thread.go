package client

import (
	"context"
	"sync"

	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/services"
	"greendrake/localboard/internal/utils"
)

type ICommentAPI interface {
	ListComments(ctx context.Context, parent models.ParentType, id utils.SixID) ([]services.CommentView, error)
	CreateComment(ctx context.Context, parent models.ParentType, id utils.SixID, in services.CommentInput) (*services.CommentView, error)
	EditComment(ctx context.Context, id utils.SixID, in services.EditCommentInput) (*services.CommentView, error)
	DeleteComment(ctx context.Context, id utils.SixID) error
}

// CommentThread is the in-memory list under a listing or an update. The
// displayed count starts from the parent's own counter and moves with
// local posts and deletes.
type CommentThread struct {
	api      ICommentAPI
	parent   models.ParentType
	parentID utils.SixID
	viewerID utils.SixID

	mu       sync.Mutex
	comments []services.CommentView
	count    int64
}

func NewCommentThread(api ICommentAPI, parent models.ParentType, parentID, viewerID utils.SixID, count int64) *CommentThread {
	return &CommentThread{api: api, parent: parent, parentID: parentID, viewerID: viewerID, count: count}
}

func (t *CommentThread) Load(ctx context.Context) error {
	comments, err := t.api.ListComments(ctx, t.parent, t.parentID)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.comments = comments
	if n := int64(len(comments)); n > t.count {
		t.count = n
	}
	t.mu.Unlock()
	return nil
}

func (t *CommentThread) Comments() []services.CommentView {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]services.CommentView, len(t.comments))
	copy(out, t.comments)
	return out
}

func (t *CommentThread) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// CanModify reports whether the edit and delete controls are shown. The
// server makes the real decision.
func (t *CommentThread) CanModify(c services.CommentView) bool {
	return !t.viewerID.IsZero() && c.Comment != nil && c.AuthorID == t.viewerID
}

func (t *CommentThread) Post(ctx context.Context, in services.CommentInput) (*services.CommentView, error) {
	view, err := t.api.CreateComment(ctx, t.parent, t.parentID, in)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.comments = append(t.comments, *view)
	t.count++
	t.mu.Unlock()
	return view, nil
}

func (t *CommentThread) Edit(ctx context.Context, id utils.SixID, in services.EditCommentInput) (*services.CommentView, error) {
	i, ok := t.own(id)
	if !ok {
		return nil, ErrAuthorization
	}
	view, err := t.api.EditComment(ctx, id, in)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	if i < len(t.comments) && t.comments[i].ID == id {
		t.comments[i] = *view
	}
	t.mu.Unlock()
	return view, nil
}

func (t *CommentThread) Delete(ctx context.Context, id utils.SixID) error {
	if _, ok := t.own(id); !ok {
		return ErrAuthorization
	}
	if err := t.api.DeleteComment(ctx, id); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.comments {
		if t.comments[i].ID == id {
			t.comments = append(t.comments[:i], t.comments[i+1:]...)
			break
		}
	}
	if t.count > 0 {
		t.count--
	}
	return nil
}

func (t *CommentThread) own(id utils.SixID) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, c := range t.comments {
		if c.Comment != nil && c.ID == id {
			return i, t.CanModify(c)
		}
	}
	return -1, false
}
