package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"greendrake/localboard/internal/config"
	"greendrake/localboard/internal/metrics"
	"greendrake/localboard/internal/models"
	"greendrake/localboard/internal/payments"
	"greendrake/localboard/internal/repository"
	"greendrake/localboard/internal/utils"
)

const listingIDPlaceholder = "{LISTING_ID}"

// IDeduper remembers which deliveries have already been handled.
type IDeduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type ICheckoutService interface {
	StartCheckout(ctx context.Context, listingID, ownerID utils.SixID) (*CheckoutStart, error)
	HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error)
}

type CheckoutStart struct {
	URL string `json:"url"`
}

// Webhook outcomes.
const (
	WebhookIgnored   = "ignored"
	WebhookDuplicate = "duplicate"
	WebhookActivated = "activated"
	WebhookNoop      = "noop"
	WebhookRejected  = "rejected"
	WebhookFailed    = "failed"
)

type WebhookResult struct {
	EventID   string `json:"eventId"`
	Outcome   string `json:"outcome"`
	ListingID string `json:"listingId,omitempty"`
}

type checkoutService struct {
	listings  repository.IListingRepository
	lifecycle IListingService
	provider  payments.IProvider
	dedup     IDeduper
	cfg       *config.Config
	log       *zap.Logger
}

func NewCheckoutService(listings repository.IListingRepository, lifecycle IListingService, provider payments.IProvider, dedup IDeduper, cfg *config.Config, log *zap.Logger) ICheckoutService {
	return &checkoutService{
		listings:  listings,
		lifecycle: lifecycle,
		provider:  provider,
		dedup:     dedup,
		cfg:       cfg,
		log:       log,
	}
}

// StartCheckout opens a payment session for an unpaid listing and parks
// it in PENDING_PAYMENT. If the provider call fails the listing is left
// as it was.
func (s *checkoutService) StartCheckout(ctx context.Context, listingID, ownerID utils.SixID) (*CheckoutStart, error) {
	listing, err := s.listings.FindByID(ctx, listingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find listing %s: %w", listingID, err)
	}
	if listing.Status == models.StatusRemoved {
		return nil, ErrNotFound
	}
	if !listing.IsOwnedBy(ownerID) {
		return nil, ErrForbidden
	}
	if !listing.Category.RequiresPayment() {
		return nil, invalid("category", "does not require payment")
	}
	if !containsStatus(unpaidStatuses, listing.Status) {
		return nil, fmt.Errorf("%w: %s listings cannot be checked out", ErrInvalidTransition, listing.Status)
	}

	id := listingID.String()
	session, err := s.provider.CreateCheckoutSession(ctx, payments.CheckoutRequest{
		ListingID:   id,
		ProductName: productName(listing),
		AmountCents: s.cfg.ServicesListingFeeCents,
		Currency:    s.cfg.ListingCurrency,
		SuccessURL:  strings.ReplaceAll(s.cfg.CheckoutSuccessURL, listingIDPlaceholder, id),
		CancelURL:   strings.ReplaceAll(s.cfg.CheckoutCancelURL, listingIDPlaceholder, id),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session for listing %s: %w", id, err)
	}

	_, err = s.listings.Transition(ctx, listingID, unpaidStatuses, models.StatusPendingPayment, repository.Fields{
		"checkout_session_id": session.ID,
		"updated_at":          time.Now().UTC(),
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: listing is no longer awaiting payment", ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record checkout session for listing %s: %w", id, err)
	}

	s.log.Info("checkout started", zap.String("listing_id", id), zap.String("session_id", session.ID))
	return &CheckoutStart{URL: session.URL}, nil
}

func productName(l *models.Listing) string {
	name := "Listing: " + l.Title
	if r := []rune(name); len(r) > 120 {
		name = string(r[:120])
	}
	return name
}

// HandlePaymentWebhook activates the listing behind a completed checkout.
// Deliveries are deduplicated by event id; a failed activation releases
// the claim so the provider's retry is processed.
func (s *checkoutService) HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	now := time.Now().UTC()
	event, err := s.provider.ParseWebhook(payload, signature, now)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(WebhookRejected).Inc()
		s.log.Warn("payment webhook rejected", zap.Error(err))
		return nil, invalid("signature", "is invalid")
	}

	result := &WebhookResult{EventID: event.ID, Outcome: WebhookIgnored}
	defer func() {
		metrics.WebhookEvents.WithLabelValues(result.Outcome).Inc()
	}()

	object := event.Data.Object
	if event.Type != payments.EventCheckoutCompleted || object.PaymentStatus != payments.PaymentStatusPaid {
		return result, nil
	}
	listingID, err := s.listingForSession(ctx, object)
	if err != nil {
		result.Outcome = WebhookFailed
		return nil, err
	}
	if listingID.IsZero() {
		s.log.Warn("payment webhook without a usable listing id",
			zap.String("event_id", event.ID),
			zap.String("session_id", object.ID),
		)
		return result, nil
	}
	result.ListingID = listingID.String()

	claimed, err := s.dedup.Claim(ctx, event.ID)
	if err != nil {
		result.Outcome = WebhookFailed
		return nil, err
	}
	if !claimed {
		result.Outcome = WebhookDuplicate
		return result, nil
	}

	_, activated, err := s.lifecycle.ActivateListing(ctx, listingID, now)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		// Permanent; keep the claim so retries stop here too.
		s.log.Error("paid listing could not be activated",
			zap.String("event_id", event.ID),
			zap.String("listing_id", result.ListingID),
			zap.Error(err),
		)
		return result, nil
	case err != nil:
		result.Outcome = WebhookFailed
		if rerr := s.dedup.Release(ctx, event.ID); rerr != nil {
			s.log.Warn("failed to release webhook claim", zap.String("event_id", event.ID), zap.Error(rerr))
		}
		return nil, err
	}

	result.Outcome = WebhookNoop
	if activated {
		result.Outcome = WebhookActivated
	}
	return result, nil
}

// listingForSession resolves the listing a session paid for, falling back
// to the session id stored at checkout when the event carries no listing
// id. A zero id means no listing matches.
func (s *checkoutService) listingForSession(ctx context.Context, object payments.SessionObject) (utils.SixID, error) {
	if id, err := utils.ParseSixID(object.ListingID()); err == nil {
		return id, nil
	}
	if object.ID == "" {
		return utils.SixID{}, nil
	}
	listing, err := s.listings.FindByCheckoutSession(ctx, object.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return utils.SixID{}, nil
	}
	if err != nil {
		return utils.SixID{}, fmt.Errorf("failed to find listing for session %s: %w", object.ID, err)
	}
	return listing.ID, nil
}
