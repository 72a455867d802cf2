package models

import (
	"fmt"
	"strings"
	"time"

	"greendrake/localboard/internal/utils"
)

// Category classifies a listing and decides its activation path.
type Category string

const (
	CategoryCommunity        Category = "COMMUNITY"
	CategoryServices         Category = "SERVICES"
	CategoryDiscussion       Category = "DISCUSSION"
	CategoryCoworkingHousing Category = "COWORKING_HOUSING"
	CategoryForSale          Category = "FOR_SALE"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryCommunity,
	CategoryServices,
	CategoryDiscussion,
	CategoryCoworkingHousing,
	CategoryForSale,
}

const (
	PaidListingDuration = 90 * 24 * time.Hour
	FreeListingDuration = 30 * 24 * time.Hour
)

// MaxListingImages caps a listing's gallery.
const MaxListingImages = 10

// ParseCategory accepts the enum value case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

func (c Category) Valid() bool {
	switch c {
	case CategoryCommunity, CategoryServices, CategoryDiscussion, CategoryCoworkingHousing, CategoryForSale:
		return true
	}
	return false
}

// RequiresPayment reports whether listings in c stay unpublished until paid.
func (c Category) RequiresPayment() bool {
	switch c {
	case CategoryServices:
		return true
	case CategoryCommunity, CategoryDiscussion, CategoryCoworkingHousing, CategoryForSale:
		return false
	default:
		panic(fmt.Sprintf("unhandled category %q", string(c)))
	}
}

// Duration is how long a listing in c stays ACTIVE once activated.
func (c Category) Duration() time.Duration {
	switch c {
	case CategoryServices:
		return PaidListingDuration
	case CategoryCommunity, CategoryDiscussion, CategoryCoworkingHousing, CategoryForSale:
		return FreeListingDuration
	default:
		panic(fmt.Sprintf("unhandled category %q", string(c)))
	}
}

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	StatusDraft          ListingStatus = "DRAFT"
	StatusPendingPayment ListingStatus = "PENDING_PAYMENT"
	StatusActive         ListingStatus = "ACTIVE"
	StatusExpired        ListingStatus = "EXPIRED"
	StatusFlagged        ListingStatus = "FLAGGED"
	StatusRemoved        ListingStatus = "REMOVED"
)

// OwnerVisibleStatuses are shown on the owner's dashboard.
var OwnerVisibleStatuses = []ListingStatus{StatusActive, StatusDraft, StatusPendingPayment, StatusExpired}

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle step. REMOVED is terminal.
func (s ListingStatus) CanTransitionTo(next ListingStatus) bool {
	switch s {
	case StatusDraft:
		return next == StatusPendingPayment || next == StatusActive || next == StatusRemoved
	case StatusPendingPayment:
		return next == StatusActive || next == StatusDraft || next == StatusRemoved
	case StatusActive:
		return next == StatusExpired || next == StatusFlagged || next == StatusRemoved
	case StatusExpired:
		return next == StatusRemoved
	case StatusFlagged:
		return next == StatusActive || next == StatusExpired || next == StatusRemoved
	case StatusRemoved:
		return false
	default:
		panic(fmt.Sprintf("unhandled listing status %q", string(s)))
	}
}

// StatusesFrom returns every status that may move to next.
func StatusesFrom(next ListingStatus) []ListingStatus {
	var out []ListingStatus
	for _, s := range []ListingStatus{StatusDraft, StatusPendingPayment, StatusActive, StatusExpired, StatusFlagged, StatusRemoved} {
		if s.CanTransitionTo(next) {
			out = append(out, s)
		}
	}
	return out
}

// ListingImage is one entry of a listing's ordered gallery.
type ListingImage struct {
	Key      string `bson:"key" json:"-"`
	URL      string `bson:"url" json:"url"`
	Caption  string `bson:"caption,omitempty" json:"caption,omitempty"`
	Position int    `bson:"position" json:"position"`
}

// Listing is a local classified post.
type Listing struct {
	ID                utils.SixID    `bson:"_id" json:"id"`
	Slug              string         `bson:"slug" json:"slug"`
	UserID            utils.SixID    `bson:"user_id" json:"userId"`
	Category          Category       `bson:"category" json:"category"`
	Status            ListingStatus  `bson:"status" json:"status"`
	Title             string         `bson:"title" json:"title"`
	Description       string         `bson:"description" json:"description"`
	PriceInCents      *int64         `bson:"price_in_cents" json:"priceInCents"`
	ContactEmail      string         `bson:"contact_email,omitempty" json:"contactEmail,omitempty"`
	ContactPhone      string         `bson:"contact_phone,omitempty" json:"contactPhone,omitempty"`
	ContactURL        string         `bson:"contact_url,omitempty" json:"contactUrl,omitempty"`
	City              string         `bson:"city" json:"city"`
	State             string         `bson:"state" json:"state"`
	ZipCode           string         `bson:"zip_code,omitempty" json:"zipCode,omitempty"`
	LocationSlug      string         `bson:"location_slug" json:"locationSlug"`
	Images            []ListingImage `bson:"images" json:"images"`
	CheckoutSessionID string         `bson:"checkout_session_id,omitempty" json:"-"`
	CommentCount      int64          `bson:"comment_count" json:"commentCount"`
	FlagCount         int64          `bson:"flag_count" json:"-"`
	CreatedAt         time.Time      `bson:"created_at" json:"createdAt"`
	UpdatedAt         time.Time      `bson:"updated_at" json:"updatedAt"`
	ActivatedAt       *time.Time     `bson:"activated_at" json:"activatedAt"`
	ExpiresAt         *time.Time     `bson:"expires_at" json:"expiresAt"`
	RemovedAt         *time.Time     `bson:"removed_at,omitempty" json:"-"`
}

// IsOwnedBy reports whether userID owns the listing.
func (l *Listing) IsOwnedBy(userID utils.SixID) bool {
	return !userID.IsZero() && l.UserID == userID
}

// VisibleTo reports whether viewerID may see the listing: anyone sees
// ACTIVE listings, owners also see their unpublished ones.
func (l *Listing) VisibleTo(viewerID utils.SixID) bool {
	switch {
	case l.Status == StatusActive:
		return true
	case l.Status != StatusRemoved && l.IsOwnedBy(viewerID):
		return true
	}
	return false
}

// PublicPath is the canonical page for the listing.
func (l *Listing) PublicPath() string {
	return "/local/" + l.LocationSlug + "/" + l.Slug
}
