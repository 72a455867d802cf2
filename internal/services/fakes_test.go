package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/repository"
	"greendrake/localboard/internal/utils"
)

// memListings is an in-memory IListingRepository with the same matching
// rules as the Mongo one.
type memListings struct {
	mu   sync.Mutex
	byID map[utils.SixID]*models.Listing
}

func newMemListings(seed ...*models.Listing) *memListings {
	m := &memListings{byID: map[utils.SixID]*models.Listing{}}
	for _, l := range seed {
		cp := *l
		m.byID[l.ID] = &cp
	}
	return m
}

func (m *memListings) get(id utils.SixID) *models.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byID[id]
	if !ok {
		return nil
	}
	cp := *l
	return &cp
}

func (m *memListings) Insert(_ context.Context, listing *models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[listing.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, l := range m.byID {
		if l.Slug == listing.Slug {
			return repository.ErrDuplicate
		}
	}
	cp := *listing
	m.byID[listing.ID] = &cp
	return nil
}

func (m *memListings) FindByID(_ context.Context, id utils.SixID) (*models.Listing, error) {
	if l := m.get(id); l != nil {
		return l, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memListings) findBy(match func(*models.Listing) bool) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.byID {
		if match(l) {
			cp := *l
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memListings) FindBySlug(_ context.Context, slug string) (*models.Listing, error) {
	return m.findBy(func(l *models.Listing) bool { return l.Slug == slug })
}

func (m *memListings) FindByCheckoutSession(_ context.Context, sessionID string) (*models.Listing, error) {
	return m.findBy(func(l *models.Listing) bool { return l.CheckoutSessionID == sessionID })
}

func (m *memListings) Find(_ context.Context, q repository.ListingQuery) ([]models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Listing{}
	for _, l := range m.byID {
		if len(q.Statuses) > 0 && !containsStatus(q.Statuses, l.Status) {
			continue
		}
		if len(q.Categories) > 0 && !containsCategory(q.Categories, l.Category) {
			continue
		}
		if q.LocationSlug != "" && l.LocationSlug != q.LocationSlug {
			continue
		}
		if q.OwnerID != nil && l.UserID != *q.OwnerID {
			continue
		}
		if q.CreatedBefore != nil && !l.CreatedAt.Before(*q.CreatedBefore) {
			continue
		}
		out = append(out, *l)
	}
	less := func(a, b models.Listing) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	}
	sort.Slice(out, func(i, j int) bool {
		if q.OldestFirst {
			return less(out[i], out[j])
		}
		return less(out[j], out[i])
	})
	if q.After != nil {
		ref := models.Listing{CreatedAt: q.After.CreatedAt, ID: q.After.ID}
		filtered := out[:0]
		for _, l := range out {
			if (q.OldestFirst && less(ref, l)) || (!q.OldestFirst && less(l, ref)) {
				filtered = append(filtered, l)
			}
		}
		out = filtered
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func containsCategory(list []models.Category, c models.Category) bool {
	for _, v := range list {
		if v == c {
			return true
		}
	}
	return false
}

func (m *memListings) update(id utils.SixID, match func(*models.Listing) bool, set repository.Fields) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byID[id]
	if !ok || !match(l) {
		return nil, repository.ErrNotFound
	}
	if err := applySet(l, set); err != nil {
		return nil, err
	}
	cp := *l
	return &cp, nil
}

func (m *memListings) UpdateOwned(_ context.Context, id, ownerID utils.SixID, statuses []models.ListingStatus, set repository.Fields) (*models.Listing, error) {
	return m.update(id, func(l *models.Listing) bool {
		return l.UserID == ownerID && containsStatus(statuses, l.Status)
	}, set)
}

func (m *memListings) Transition(_ context.Context, id utils.SixID, from []models.ListingStatus, to models.ListingStatus, set repository.Fields) (*models.Listing, error) {
	fields := repository.Fields{"status": to}
	for k, v := range set {
		fields[k] = v
	}
	return m.update(id, func(l *models.Listing) bool { return containsStatus(from, l.Status) }, fields)
}

func (m *memListings) ExpireDue(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, l := range m.byID {
		if l.Status == models.StatusActive && l.ExpiresAt != nil && !l.ExpiresAt.After(now) {
			l.Status = models.StatusExpired
			l.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *memListings) IncrementCounter(_ context.Context, id utils.SixID, field string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byID[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	var p *int64
	switch field {
	case repository.FieldFlagCount:
		p = &l.FlagCount
	case repository.FieldCommentCount:
		p = &l.CommentCount
	default:
		return 0, fmt.Errorf("listing counter %q not supported", field)
	}
	if *p+delta < 0 {
		return 0, repository.ErrNotFound
	}
	*p += delta
	return *p, nil
}

func (m *memListings) AppendImage(_ context.Context, id utils.SixID, image models.ListingImage) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byID[id]
	if !ok || l.Status == models.StatusRemoved {
		return nil, repository.ErrNotFound
	}
	for _, img := range l.Images {
		if img.Key == image.Key {
			cp := *l
			return &cp, nil
		}
	}
	if len(l.Images) >= models.MaxListingImages {
		return nil, repository.ErrGalleryFull
	}
	image.Position = len(l.Images)
	l.Images = append(l.Images, image)
	cp := *l
	return &cp, nil
}

func applySet(l *models.Listing, set repository.Fields) error {
	for k, v := range set {
		switch k {
		case "status":
			l.Status = v.(models.ListingStatus)
		case "title":
			l.Title = v.(string)
		case "description":
			l.Description = v.(string)
		case "category":
			l.Category = v.(models.Category)
		case "city":
			l.City = v.(string)
		case "state":
			l.State = v.(string)
		case "zip_code":
			l.ZipCode = v.(string)
		case "location_slug":
			l.LocationSlug = v.(string)
		case "contact_email":
			l.ContactEmail = v.(string)
		case "contact_phone":
			l.ContactPhone = v.(string)
		case "contact_url":
			l.ContactURL = v.(string)
		case "price_in_cents":
			if v == nil {
				l.PriceInCents = nil
			} else {
				p := v.(int64)
				l.PriceInCents = &p
			}
		case "checkout_session_id":
			l.CheckoutSessionID = v.(string)
		case "flag_count":
			l.FlagCount = int64(v.(int))
		case "updated_at":
			l.UpdatedAt = v.(time.Time)
		case "activated_at":
			t := v.(time.Time)
			l.ActivatedAt = &t
		case "expires_at":
			t := v.(time.Time)
			l.ExpiresAt = &t
		case "removed_at":
			t := v.(time.Time)
			l.RemovedAt = &t
		default:
			return fmt.Errorf("unexpected field %q", k)
		}
	}
	return nil
}

// fakeTasks records enqueued work.
type fakeTasks struct {
	mu      sync.Mutex
	reviews []utils.SixID
	images  []string
	err     error
}

func (f *fakeTasks) EnqueueFlagReview(_ context.Context, listingID utils.SixID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews = append(f.reviews, listingID)
	return f.err
}

func (f *fakeTasks) EnqueueImageProcess(_ context.Context, listingID utils.SixID, key, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images = append(f.images, key)
	return f.err
}

// memUpdates is an in-memory IUpdateRepository.
type memUpdates struct {
	mu   sync.Mutex
	byID map[utils.SixID]*models.Update
}

func newMemUpdates(seed ...*models.Update) *memUpdates {
	m := &memUpdates{byID: map[utils.SixID]*models.Update{}}
	for _, u := range seed {
		cp := *u
		m.byID[u.ID] = &cp
	}
	return m
}

func (m *memUpdates) Insert(_ context.Context, update *models.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[update.ID]; ok {
		return repository.ErrDuplicate
	}
	cp := *update
	m.byID[update.ID] = &cp
	return nil
}

func (m *memUpdates) FindByID(_ context.Context, id utils.SixID) (*models.Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUpdates) FindByIDs(_ context.Context, ids []utils.SixID) ([]models.Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Update{}
	for _, id := range ids {
		if u, ok := m.byID[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUpdates) IncrementCounter(_ context.Context, id utils.SixID, field string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	var p *int64
	switch field {
	case repository.FieldLikesCount:
		p = &u.LikesCount
	case repository.FieldCommentsCount:
		p = &u.CommentsCount
	default:
		return 0, fmt.Errorf("update counter %q not supported", field)
	}
	if *p+delta < 0 {
		return 0, repository.ErrNotFound
	}
	*p += delta
	return *p, nil
}

func (m *memUpdates) IncrementPollOption(_ context.Context, id utils.SixID, optionID string) (*models.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || u.Poll == nil || u.Poll.IsClosed(time.Now()) {
		return nil, repository.ErrNotFound
	}
	opt, ok := u.Poll.Option(optionID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	opt.Votes++
	poll := *u.Poll
	poll.Options = append([]models.PollOption(nil), u.Poll.Options...)
	return &poll, nil
}

type edgeKey struct {
	target models.Target
	user   utils.SixID
}

// memEngagement is an in-memory IEngagementRepository.
type memEngagement struct {
	mu    sync.Mutex
	likes map[edgeKey]bool
	votes map[edgeKey]string
	pins  []models.Pin
}

func newMemEngagement() *memEngagement {
	return &memEngagement{likes: map[edgeKey]bool{}, votes: map[edgeKey]string{}}
}

func (m *memEngagement) InsertLike(_ context.Context, like *models.Like) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := edgeKey{like.Target, like.UserID}
	if m.likes[k] {
		return false, nil
	}
	m.likes[k] = true
	return true, nil
}

func (m *memEngagement) DeleteLike(_ context.Context, target models.Target, userID utils.SixID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := edgeKey{target, userID}
	if !m.likes[k] {
		return false, nil
	}
	delete(m.likes, k)
	return true, nil
}

func (m *memEngagement) HasLiked(_ context.Context, target models.Target, userID utils.SixID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.likes[edgeKey{target, userID}], nil
}

func (m *memEngagement) LikedAmong(_ context.Context, userID utils.SixID, targetType models.TargetType, ids []utils.SixID) (map[utils.SixID]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[utils.SixID]bool{}
	for _, id := range ids {
		if m.likes[edgeKey{models.Target{Type: targetType, ID: id}, userID}] {
			out[id] = true
		}
	}
	return out, nil
}

func (m *memEngagement) InsertPin(_ context.Context, pin *models.Pin) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pins {
		if p.UserID == pin.UserID && p.UpdateID == pin.UpdateID {
			return false, nil
		}
	}
	m.pins = append(m.pins, *pin)
	return true, nil
}

func (m *memEngagement) DeletePin(_ context.Context, userID, updateID utils.SixID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.pins {
		if p.UserID == userID && p.UpdateID == updateID {
			m.pins = append(m.pins[:i], m.pins[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memEngagement) CountPins(ctx context.Context, userID utils.SixID) (int64, error) {
	pins, _ := m.ListPins(ctx, userID)
	return int64(len(pins)), nil
}

// ListPins returns the most recently pinned first.
func (m *memEngagement) ListPins(_ context.Context, userID utils.SixID) ([]models.Pin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Pin{}
	for i := len(m.pins) - 1; i >= 0; i-- {
		if m.pins[i].UserID == userID {
			out = append(out, m.pins[i])
		}
	}
	return out, nil
}

func (m *memEngagement) InsertVote(_ context.Context, vote *models.PollVote) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := edgeKey{vote.Target, vote.UserID}
	if _, ok := m.votes[k]; ok {
		return false, nil
	}
	m.votes[k] = vote.OptionID
	return true, nil
}

func (m *memEngagement) FindVote(_ context.Context, target models.Target, userID utils.SixID) (*models.PollVote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	opt, ok := m.votes[edgeKey{target, userID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &models.PollVote{Target: target, UserID: userID, OptionID: opt}, nil
}

func (m *memEngagement) DeleteVote(_ context.Context, target models.Target, userID utils.SixID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := edgeKey{target, userID}
	if _, ok := m.votes[k]; !ok {
		return false, nil
	}
	delete(m.votes, k)
	return true, nil
}

func (m *memEngagement) VotesAmong(_ context.Context, userID utils.SixID, targetType models.TargetType, ids []utils.SixID) (map[utils.SixID]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[utils.SixID]string{}
	for _, id := range ids {
		if opt, ok := m.votes[edgeKey{models.Target{Type: targetType, ID: id}, userID}]; ok {
			out[id] = opt
		}
	}
	return out, nil
}

// failingUpdates wraps memUpdates and fails the next counter or tally
// writes with the queued errors.
type failingUpdates struct {
	*memUpdates
	counterErrs []error
	tallyErrs   []error
}

func (f *failingUpdates) IncrementCounter(ctx context.Context, id utils.SixID, field string, delta int64) (int64, error) {
	if len(f.counterErrs) > 0 {
		err := f.counterErrs[0]
		f.counterErrs = f.counterErrs[1:]
		return 0, err
	}
	return f.memUpdates.IncrementCounter(ctx, id, field, delta)
}

func (f *failingUpdates) IncrementPollOption(ctx context.Context, id utils.SixID, optionID string) (*models.Poll, error) {
	if len(f.tallyErrs) > 0 {
		err := f.tallyErrs[0]
		f.tallyErrs = f.tallyErrs[1:]
		return nil, err
	}
	return f.memUpdates.IncrementPollOption(ctx, id, optionID)
}
