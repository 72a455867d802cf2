package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ListingsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localboard_listings_created_total",
		Help: "Listings created, by category",
	}, []string{"category"})

	ListingsActivated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localboard_listings_activated_total",
		Help: "Listing activations, by category and source (free, payment, manual)",
	}, []string{"category", "source"})

	ActivationNoops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "localboard_listing_activation_noops_total",
		Help: "Activation requests for listings that were already active",
	})

	ListingsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "localboard_listings_expired_total",
		Help: "Listings moved to EXPIRED by the sweep",
	})

	ListingsFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "localboard_listings_flagged_total",
		Help: "Listings moved to FLAGGED after crossing the report threshold",
	})

	StaleDraftsRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "localboard_stale_drafts_removed_total",
		Help: "Unpaid drafts removed by the cleanup job",
	})

	FlagsFiled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localboard_flags_filed_total",
		Help: "Reports filed, by reason",
	}, []string{"reason"})

	LikesToggled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localboard_likes_toggled_total",
		Help: "Like toggles, by target type and resulting state",
	}, []string{"target", "state"})

	PollVotes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localboard_poll_votes_total",
		Help: "Poll votes recorded, by target type",
	}, []string{"target"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localboard_payment_webhook_events_total",
		Help: "Payment webhook deliveries, by outcome",
	}, []string{"outcome"})

	ImagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localboard_images_processed_total",
		Help: "Listing images processed, by result",
	}, []string{"result"})
)
