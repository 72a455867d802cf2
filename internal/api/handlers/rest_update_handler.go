package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"greendrake/localboard/internal/api/middleware"
	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/services"
	"greendrake/localboard/internal/utils"
)

// RestUpdateHandler serves feed posts, comment threads and their
// engagement: likes, poll votes and pins.
type RestUpdateHandler struct {
	content    services.IContentService
	engagement services.IEngagementService
}

func NewRestUpdateHandler(content services.IContentService, engagement services.IEngagementService) *RestUpdateHandler {
	return &RestUpdateHandler{content: content, engagement: engagement}
}

type voteRequest struct {
	OptionID string `json:"optionId" binding:"required"`
	Type     string `json:"type"`
}

type pinRequest struct {
	UpdateID utils.SixID `json:"updateId" binding:"required"`
}

// CreateUpdate handles POST /api/updates.
func (h *RestUpdateHandler) CreateUpdate(c *gin.Context) {
	var in services.CreateUpdateInput
	if !bindJSON(c, &in) {
		return
	}
	view, err := h.content.CreateUpdate(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		respondError(c, err, "Failed to create update")
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetUpdate handles GET /api/updates/:id.
func (h *RestUpdateHandler) GetUpdate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.content.GetUpdate(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to retrieve update")
		return
	}
	c.JSON(http.StatusOK, view)
}

// LikeUpdate handles POST /api/updates/:id/like.
func (h *RestUpdateHandler) LikeUpdate(c *gin.Context) {
	h.toggleLike(c, models.TargetUpdate)
}

// LikeComment handles POST /api/update-comments/:id/like.
func (h *RestUpdateHandler) LikeComment(c *gin.Context) {
	h.toggleLike(c, models.TargetComment)
}

func (h *RestUpdateHandler) toggleLike(c *gin.Context, kind models.TargetType) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	state, err := h.engagement.ToggleLike(c.Request.Context(), middleware.UserID(c), models.Target{Type: kind, ID: id})
	if err != nil {
		respondError(c, err, "Failed to update like")
		return
	}
	c.JSON(http.StatusOK, state)
}

// VoteUpdatePoll handles POST /api/updates/:id/vote.
func (h *RestUpdateHandler) VoteUpdatePoll(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req voteRequest
	if !bindJSON(c, &req) {
		return
	}
	h.vote(c, models.Target{Type: models.TargetUpdate, ID: id}, req.OptionID)
}

// VoteCommentPoll handles POST /api/comment-polls/:commentId/vote. The
// optional type names the poll's owner and must be "comment" here.
func (h *RestUpdateHandler) VoteCommentPoll(c *gin.Context) {
	id, ok := pathID(c, "commentId")
	if !ok {
		return
	}
	var req voteRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Type != "" && models.TargetType(req.Type) != models.TargetComment {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be comment", "field": "type"})
		return
	}
	h.vote(c, models.Target{Type: models.TargetComment, ID: id}, req.OptionID)
}

func (h *RestUpdateHandler) vote(c *gin.Context, target models.Target, optionID string) {
	view, err := h.engagement.VotePoll(c.Request.Context(), middleware.UserID(c), target, optionID)
	if err != nil {
		respondError(c, err, "Failed to record vote")
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListComments returns the handler for GET on a parent's thread.
func (h *RestUpdateHandler) ListComments(parent models.ParentType) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		views, err := h.content.ListComments(c.Request.Context(), parent, id, middleware.UserID(c))
		if err != nil {
			respondError(c, err, "Failed to load comments")
			return
		}
		c.JSON(http.StatusOK, gin.H{"comments": views})
	}
}

// CreateComment returns the handler for POST on a parent's thread.
func (h *RestUpdateHandler) CreateComment(parent models.ParentType) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var in services.CommentInput
		if !bindJSON(c, &in) {
			return
		}
		view, err := h.content.CreateComment(c.Request.Context(), middleware.UserID(c), parent, id, in)
		if err != nil {
			respondError(c, err, "Failed to post comment")
			return
		}
		c.JSON(http.StatusCreated, view)
	}
}

// EditComment handles PATCH /api/update-comments/:id.
func (h *RestUpdateHandler) EditComment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.EditCommentInput
	if !bindJSON(c, &in) {
		return
	}
	view, err := h.content.EditComment(c.Request.Context(), id, middleware.UserID(c), in)
	if err != nil {
		respondError(c, err, "Failed to edit comment")
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteComment handles DELETE /api/update-comments/:id.
func (h *RestUpdateHandler) DeleteComment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.content.DeleteComment(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		respondError(c, err, "Failed to delete comment")
		return
	}
	c.Status(http.StatusNoContent)
}

// PinUpdate handles POST /api/pinned-posts.
func (h *RestUpdateHandler) PinUpdate(c *gin.Context) {
	var req pinRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.engagement.PinUpdate(c.Request.Context(), middleware.UserID(c), req.UpdateID); err != nil {
		respondError(c, err, "Failed to pin post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"pinned": true, "updateId": req.UpdateID})
}

// UnpinUpdate handles DELETE /api/pinned-posts. The update id comes from
// the body or the updateId query parameter.
func (h *RestUpdateHandler) UnpinUpdate(c *gin.Context) {
	var req pinRequest
	if raw := c.Query("updateId"); raw != "" {
		id, err := utils.ParseSixID(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid updateId format"})
			return
		}
		req.UpdateID = id
	} else if !bindJSON(c, &req) {
		return
	}
	if err := h.engagement.UnpinUpdate(c.Request.Context(), middleware.UserID(c), req.UpdateID); err != nil {
		respondError(c, err, "Failed to unpin post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"pinned": false, "updateId": req.UpdateID})
}

// ListPinned handles GET /api/users/:id/pinned-posts.
func (h *RestUpdateHandler) ListPinned(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	views, err := h.engagement.ListPinned(c.Request.Context(), userID, middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to load pinned posts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": views})
}
