package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"greendrake/localboard/internal/api/middleware"
	"greendrake/localboard/internal/services"
)

// RestListingHandler serves the local listings routes.
type RestListingHandler struct {
	listings   services.IListingService
	feed       services.IFeedService
	checkout   services.ICheckoutService
	moderation services.IModerationService
}

func NewRestListingHandler(listings services.IListingService, feed services.IFeedService, checkout services.ICheckoutService, moderation services.IModerationService) *RestListingHandler {
	return &RestListingHandler{
		listings:   listings,
		feed:       feed,
		checkout:   checkout,
		moderation: moderation,
	}
}

// ListListings handles GET /api/local-listings. With mine=1 it returns the
// caller's own dashboard instead of the public feed.
func (h *RestListingHandler) ListListings(c *gin.Context) {
	filter := services.FeedFilter{
		Location: c.Query("location"),
		Category: c.Query("category"),
		Cursor:   c.Query("cursor"),
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
			return
		}
		filter.Limit = limit
	}

	viewer := middleware.UserID(c)
	var (
		page *services.FeedPage
		err  error
	)
	if c.Query("mine") == "1" {
		if viewer.IsZero() {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		page, err = h.feed.ListOwned(c.Request.Context(), viewer, filter)
	} else {
		page, err = h.feed.ListActive(c.Request.Context(), filter, viewer)
	}
	if err != nil {
		respondError(c, err, "Failed to load listings")
		return
	}
	c.JSON(http.StatusOK, page)
}

// CreateListing handles POST /api/local-listings.
func (h *RestListingHandler) CreateListing(c *gin.Context) {
	var in services.CreateListingInput
	if !bindJSON(c, &in) {
		return
	}
	listing, err := h.listings.CreateListing(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		respondError(c, err, "Failed to create listing")
		return
	}
	c.JSON(http.StatusCreated, listing)
}

// GetListing handles GET /api/local-listings/:id, where id may be a slug.
func (h *RestListingHandler) GetListing(c *gin.Context) {
	listing, err := h.listings.GetListing(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to retrieve listing")
		return
	}
	c.JSON(http.StatusOK, listing)
}

// UpdateListing handles PATCH /api/local-listings/:id.
func (h *RestListingHandler) UpdateListing(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.UpdateListingInput
	if !bindJSON(c, &in) {
		return
	}
	listing, err := h.listings.UpdateListing(c.Request.Context(), id, middleware.UserID(c), in)
	if err != nil {
		respondError(c, err, "Failed to update listing")
		return
	}
	c.JSON(http.StatusOK, listing)
}

// DeleteListing handles DELETE /api/local-listings/:id.
func (h *RestListingHandler) DeleteListing(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.listings.DeleteListing(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		respondError(c, err, "Failed to delete listing")
		return
	}
	c.Status(http.StatusNoContent)
}

// StartCheckout handles POST /api/local-listings/:id/checkout.
func (h *RestListingHandler) StartCheckout(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	start, err := h.checkout.StartCheckout(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to start checkout")
		return
	}
	c.JSON(http.StatusOK, start)
}

// FlagListing handles POST /api/local-listings/:id/flag.
func (h *RestListingHandler) FlagListing(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.FlagInput
	if !bindJSON(c, &in) {
		return
	}
	flag, err := h.moderation.FileFlag(c.Request.Context(), id, middleware.UserID(c), in)
	if err != nil {
		respondError(c, err, "Failed to report listing")
		return
	}
	c.JSON(http.StatusCreated, flag)
}

// RequestImageUpload handles POST /api/local-listings/:id/images/upload-url.
func (h *RestListingHandler) RequestImageUpload(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.ImageUploadInput
	if !bindJSON(c, &in) {
		return
	}
	upload, err := h.listings.RequestImageUpload(c.Request.Context(), id, middleware.UserID(c), in)
	if err != nil {
		respondError(c, err, "Failed to prepare image upload")
		return
	}
	c.JSON(http.StatusOK, upload)
}

// AttachImage handles POST /api/local-listings/:id/images. Processing
// happens in the background.
func (h *RestListingHandler) AttachImage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.AttachImageInput
	if !bindJSON(c, &in) {
		return
	}
	if err := h.listings.AttachImage(c.Request.Context(), id, middleware.UserID(c), in); err != nil {
		respondError(c, err, "Failed to attach image")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "processing", "key": in.Key})
}

// --- Admin ---

// ForceActivate handles POST /api/admin/local-listings/:id/activate.
func (h *RestListingHandler) ForceActivate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	report, err := h.listings.ForceActivate(c.Request.Context(), id, time.Now())
	if err != nil {
		respondError(c, err, "Failed to activate listing")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"listing":     report.Listing,
		"priorStatus": report.PriorStatus,
		"activated":   report.Activated,
	})
}

// RemoveListing handles POST /api/admin/local-listings/:id/remove.
func (h *RestListingHandler) RemoveListing(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	listing, err := h.listings.RemoveListing(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to remove listing")
		return
	}
	c.JSON(http.StatusOK, listing)
}

// ReinstateListing handles POST /api/admin/local-listings/:id/reinstate.
func (h *RestListingHandler) ReinstateListing(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	listing, err := h.listings.ReinstateListing(c.Request.Context(), id, middleware.UserID(c), time.Now())
	if err != nil {
		respondError(c, err, "Failed to reinstate listing")
		return
	}
	c.JSON(http.StatusOK, listing)
}
