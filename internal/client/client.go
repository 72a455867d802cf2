// Package client is a typed Go client for the listings API plus the
// presentation state that sits on top of it: like buttons, poll widgets,
// pin controls, delete confirmation and comment threads.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"resty.dev/v3"

	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/services"
	"greendrake/localboard/internal/utils"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field"`
}

type Client struct {
	client *resty.Client
}

// NewClient talks to baseURL. token may be empty for anonymous reads.
func NewClient(baseURL, token string) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &Client{client: client}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) r(ctx context.Context) *resty.Request {
	return c.client.R().WithContext(ctx)
}

// send runs one request. result may be nil for empty responses.
func (c *Client) send(req *resty.Request, method, path string, body, result any) error {
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	req.SetError(&errorBody{})

	var (
		res *resty.Response
		err error
	)
	switch method {
	case http.MethodGet:
		res, err = req.Get(path)
	case http.MethodPost:
		res, err = req.Post(path)
	case http.MethodPatch:
		res, err = req.Patch(path)
	case http.MethodDelete:
		res, err = req.Delete(path)
	default:
		return fmt.Errorf("unsupported method %s", method)
	}
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransient, method, path, err)
	}
	if res.IsError() {
		apiErr := &APIError{Status: res.StatusCode(), Message: res.Status()}
		if eb, ok := res.Error().(*errorBody); ok && eb.Error != "" {
			apiErr.Message = eb.Error
			apiErr.Field = eb.Field
		}
		return apiErr
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	return c.send(c.r(ctx), method, path, body, result)
}

// --- Listings ---

type ListQuery struct {
	Location string
	Category string
	Mine     bool
	Cursor   string
	Limit    int
}

func (c *Client) ListListings(ctx context.Context, q ListQuery) (*services.FeedPage, error) {
	req := c.r(ctx)
	for k, v := range map[string]string{"location": q.Location, "category": q.Category, "cursor": q.Cursor} {
		if v != "" {
			req.SetQueryParam(k, v)
		}
	}
	if q.Mine {
		req.SetQueryParam("mine", "1")
	}
	if q.Limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(q.Limit))
	}
	var page services.FeedPage
	if err := c.send(req, http.MethodGet, "/api/local-listings", nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) CreateListing(ctx context.Context, in services.CreateListingInput) (*models.Listing, error) {
	var listing models.Listing
	if err := c.do(ctx, http.MethodPost, "/api/local-listings", in, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

func (c *Client) GetListing(ctx context.Context, idOrSlug string) (*models.Listing, error) {
	var listing models.Listing
	if err := c.do(ctx, http.MethodGet, "/api/local-listings/"+idOrSlug, nil, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

func (c *Client) UpdateListing(ctx context.Context, id utils.SixID, in services.UpdateListingInput) (*models.Listing, error) {
	var listing models.Listing
	if err := c.do(ctx, http.MethodPatch, "/api/local-listings/"+id.String(), in, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

func (c *Client) DeleteListing(ctx context.Context, id utils.SixID) error {
	return c.do(ctx, http.MethodDelete, "/api/local-listings/"+id.String(), nil, nil)
}

// StartCheckout returns the provider URL to redirect to.
func (c *Client) StartCheckout(ctx context.Context, id utils.SixID) (string, error) {
	var start services.CheckoutStart
	if err := c.do(ctx, http.MethodPost, "/api/local-listings/"+id.String()+"/checkout", nil, &start); err != nil {
		return "", err
	}
	return start.URL, nil
}

func (c *Client) FlagListing(ctx context.Context, id utils.SixID, in services.FlagInput) (*models.Flag, error) {
	var flag models.Flag
	if err := c.do(ctx, http.MethodPost, "/api/local-listings/"+id.String()+"/flag", in, &flag); err != nil {
		return nil, err
	}
	return &flag, nil
}

func (c *Client) RequestImageUpload(ctx context.Context, id utils.SixID, in services.ImageUploadInput) (*services.ImageUpload, error) {
	var upload services.ImageUpload
	if err := c.do(ctx, http.MethodPost, "/api/local-listings/"+id.String()+"/images/upload-url", in, &upload); err != nil {
		return nil, err
	}
	return &upload, nil
}

func (c *Client) AttachImage(ctx context.Context, id utils.SixID, in services.AttachImageInput) error {
	return c.do(ctx, http.MethodPost, "/api/local-listings/"+id.String()+"/images", in, nil)
}

// --- Updates and comments ---

func (c *Client) CreateUpdate(ctx context.Context, in services.CreateUpdateInput) (*services.UpdateView, error) {
	var view services.UpdateView
	if err := c.do(ctx, http.MethodPost, "/api/updates", in, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) GetUpdate(ctx context.Context, id utils.SixID) (*services.UpdateView, error) {
	var view services.UpdateView
	if err := c.do(ctx, http.MethodGet, "/api/updates/"+id.String(), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func threadPath(parent models.ParentType, id utils.SixID) (string, error) {
	switch parent {
	case models.ParentListing:
		return "/api/local-listings/" + id.String() + "/comments", nil
	case models.ParentUpdate:
		return "/api/updates/" + id.String() + "/comments", nil
	}
	return "", &APIError{Status: http.StatusBadRequest, Field: "parentType", Message: "unknown parent type"}
}

func (c *Client) ListComments(ctx context.Context, parent models.ParentType, id utils.SixID) ([]services.CommentView, error) {
	path, err := threadPath(parent, id)
	if err != nil {
		return nil, err
	}
	var out struct {
		Comments []services.CommentView `json:"comments"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Comments, nil
}

func (c *Client) CreateComment(ctx context.Context, parent models.ParentType, id utils.SixID, in services.CommentInput) (*services.CommentView, error) {
	path, err := threadPath(parent, id)
	if err != nil {
		return nil, err
	}
	var view services.CommentView
	if err := c.do(ctx, http.MethodPost, path, in, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) EditComment(ctx context.Context, id utils.SixID, in services.EditCommentInput) (*services.CommentView, error) {
	var view services.CommentView
	if err := c.do(ctx, http.MethodPatch, "/api/update-comments/"+id.String(), in, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) DeleteComment(ctx context.Context, id utils.SixID) error {
	return c.do(ctx, http.MethodDelete, "/api/update-comments/"+id.String(), nil, nil)
}

// --- Engagement ---

// ToggleLike flips the caller's like on an update or a comment.
func (c *Client) ToggleLike(ctx context.Context, target models.Target) (*models.LikeState, error) {
	var path string
	switch target.Type {
	case models.TargetUpdate:
		path = "/api/updates/" + target.ID.String() + "/like"
	case models.TargetComment:
		path = "/api/update-comments/" + target.ID.String() + "/like"
	default:
		return nil, &APIError{Status: http.StatusBadRequest, Field: "type", Message: "unknown like target"}
	}
	var state models.LikeState
	if err := c.do(ctx, http.MethodPost, path, nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// VotePoll casts the caller's vote on the poll attached to target.
func (c *Client) VotePoll(ctx context.Context, target models.Target, optionID string) (*models.PollView, error) {
	var (
		path string
		body = map[string]string{"optionId": optionID}
	)
	switch target.Type {
	case models.TargetUpdate:
		path = "/api/updates/" + target.ID.String() + "/vote"
	case models.TargetComment:
		path = "/api/comment-polls/" + target.ID.String() + "/vote"
		body["type"] = string(models.TargetComment)
	default:
		return nil, &APIError{Status: http.StatusBadRequest, Field: "type", Message: "unknown poll target"}
	}
	var view models.PollView
	if err := c.do(ctx, http.MethodPost, path, body, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) PinUpdate(ctx context.Context, updateID utils.SixID) error {
	return c.do(ctx, http.MethodPost, "/api/pinned-posts", map[string]string{"updateId": updateID.String()}, nil)
}

func (c *Client) UnpinUpdate(ctx context.Context, updateID utils.SixID) error {
	req := c.r(ctx).SetQueryParam("updateId", updateID.String())
	return c.send(req, http.MethodDelete, "/api/pinned-posts", nil, nil)
}

func (c *Client) ListPinned(ctx context.Context, userID utils.SixID) ([]services.UpdateView, error) {
	var out struct {
		Posts []services.UpdateView `json:"posts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/users/"+userID.String()+"/pinned-posts", nil, &out); err != nil {
		return nil, err
	}
	return out.Posts, nil
}

// --- Admin ---

type ActivationResult struct {
	Listing     *models.Listing      `json:"listing"`
	PriorStatus models.ListingStatus `json:"priorStatus"`
	Activated   bool                 `json:"activated"`
}

func (c *Client) ForceActivate(ctx context.Context, id utils.SixID) (*ActivationResult, error) {
	var out ActivationResult
	if err := c.do(ctx, http.MethodPost, "/api/admin/local-listings/"+id.String()+"/activate", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveListing(ctx context.Context, id utils.SixID) (*models.Listing, error) {
	var listing models.Listing
	if err := c.do(ctx, http.MethodPost, "/api/admin/local-listings/"+id.String()+"/remove", nil, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

func (c *Client) ReinstateListing(ctx context.Context, id utils.SixID) (*models.Listing, error) {
	var listing models.Listing
	if err := c.do(ctx, http.MethodPost, "/api/admin/local-listings/"+id.String()+"/reinstate", nil, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}
