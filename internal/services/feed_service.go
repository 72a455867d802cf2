package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"greendrake/localboard/internal/config"
	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/repository"
	"greendrake/localboard/internal/utils"
)

// CategoryJobs selects job postings instead of listings. It is a feed
// filter only, never a listing category.
const CategoryJobs = "jobs"

const maxFeedPageSize = 100

// Card actions offered to the owner.
const (
	ActionView   = "view"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

type FeedFilter struct {
	Location string
	Category string
	Cursor   string
	Limit    int
}

// ListingCard is a listing as rendered in a feed.
type ListingCard struct {
	*models.Listing
	URL     string   `json:"url"`
	Actions []string `json:"actions,omitempty"`
}

type FeedPage struct {
	Listings   []ListingCard       `json:"listings"`
	Jobs       []models.JobPosting `json:"jobs,omitempty"`
	NextCursor string              `json:"nextCursor,omitempty"`
}

type IFeedService interface {
	ListActive(ctx context.Context, f FeedFilter, viewerID utils.SixID) (*FeedPage, error)
	ListOwned(ctx context.Context, ownerID utils.SixID, f FeedFilter) (*FeedPage, error)
}

type feedService struct {
	listings repository.IListingRepository
	jobs     repository.IJobRepository
	cfg      *config.Config
}

func NewFeedService(listings repository.IListingRepository, jobs repository.IJobRepository, cfg *config.Config) IFeedService {
	return &feedService{listings: listings, jobs: jobs, cfg: cfg}
}

// ListActive is the public feed: ACTIVE listings, newest first.
func (s *feedService) ListActive(ctx context.Context, f FeedFilter, viewerID utils.SixID) (*FeedPage, error) {
	if strings.EqualFold(strings.TrimSpace(f.Category), CategoryJobs) {
		return s.listJobs(ctx, f)
	}
	q, err := s.query(f)
	if err != nil {
		return nil, err
	}
	q.Statuses = []models.ListingStatus{models.StatusActive}
	return s.page(ctx, q, viewerID)
}

// ListOwned is the owner's dashboard.
func (s *feedService) ListOwned(ctx context.Context, ownerID utils.SixID, f FeedFilter) (*FeedPage, error) {
	if strings.EqualFold(strings.TrimSpace(f.Category), CategoryJobs) {
		return nil, invalid("category", "jobs cannot be combined with mine")
	}
	q, err := s.query(f)
	if err != nil {
		return nil, err
	}
	q.Statuses = models.OwnerVisibleStatuses
	q.OwnerID = &ownerID
	return s.page(ctx, q, ownerID)
}

func (s *feedService) limit(n int) (int, error) {
	switch {
	case n < 0:
		return 0, invalid("limit", "must be 0 or greater")
	case n == 0:
		n = s.cfg.FeedPageSize
	}
	if n < 1 {
		n = 1
	}
	if n > maxFeedPageSize {
		n = maxFeedPageSize
	}
	return n, nil
}

func (s *feedService) query(f FeedFilter) (repository.ListingQuery, error) {
	var q repository.ListingQuery
	limit, err := s.limit(f.Limit)
	if err != nil {
		return q, err
	}
	q.Limit = limit + 1
	q.LocationSlug = utils.Slugify(f.Location)

	if c := strings.TrimSpace(f.Category); c != "" {
		category, err := models.ParseCategory(c)
		if err != nil {
			return q, invalid("category", "is not a known category")
		}
		q.Categories = []models.Category{category}
	}
	if f.Cursor != "" {
		cursor, err := DecodeCursor(f.Cursor)
		if err != nil {
			return q, invalid("cursor", "is invalid")
		}
		q.After = cursor
	}
	return q, nil
}

func (s *feedService) page(ctx context.Context, q repository.ListingQuery, viewerID utils.SixID) (*FeedPage, error) {
	listings, err := s.listings.Find(ctx, q)
	if err != nil {
		return nil, err
	}

	out := &FeedPage{Listings: []ListingCard{}}
	pageSize := q.Limit - 1
	if len(listings) > pageSize {
		listings = listings[:pageSize]
		last := listings[pageSize-1]
		out.NextCursor = EncodeCursor(repository.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	for i := range listings {
		out.Listings = append(out.Listings, Card(&listings[i], viewerID))
	}
	return out, nil
}

func (s *feedService) listJobs(ctx context.Context, f FeedFilter) (*FeedPage, error) {
	location := utils.Slugify(f.Location)
	if location == "" {
		return nil, invalid("location", "is required for jobs")
	}
	limit, err := s.limit(f.Limit)
	if err != nil {
		return nil, err
	}
	jobs, err := s.jobs.ListByLocation(ctx, location, limit)
	if err != nil {
		return nil, err
	}
	return &FeedPage{Listings: []ListingCard{}, Jobs: jobs}, nil
}

// Card wraps a listing with its public URL, adding the owner actions when
// the viewer owns it.
func Card(l *models.Listing, viewerID utils.SixID) ListingCard {
	card := ListingCard{Listing: l, URL: l.PublicPath()}
	if l.IsOwnedBy(viewerID) {
		card.Actions = []string{ActionView, ActionEdit, ActionDelete}
	}
	return card
}

// EncodeCursor renders a feed position as "<unixnano>_<id>".
func EncodeCursor(c repository.Cursor) string {
	return strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + "_" + c.ID.String()
}

func DecodeCursor(s string) (*repository.Cursor, error) {
	ts, id, ok := strings.Cut(s, "_")
	if !ok {
		return nil, fmt.Errorf("malformed cursor %q", s)
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor time: %w", err)
	}
	sixID, err := utils.ParseSixID(id)
	if err != nil {
		return nil, err
	}
	return &repository.Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: sixID}, nil
}
