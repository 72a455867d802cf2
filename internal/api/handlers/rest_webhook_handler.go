package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"greendrake/localboard/internal/payments"
	"greendrake/localboard/internal/services"
)

const maxWebhookBytes = 1 << 20

// RestWebhookHandler receives payment provider callbacks.
type RestWebhookHandler struct {
	checkout services.ICheckoutService
	log      *zap.Logger
}

func NewRestWebhookHandler(checkout services.ICheckoutService, log *zap.Logger) *RestWebhookHandler {
	return &RestWebhookHandler{checkout: checkout, log: log}
}

// HandlePayment handles POST /api/webhooks/payments. The signature covers
// the raw body, so it is read before any decoding. A 5xx asks the provider
// to deliver again.
func (h *RestWebhookHandler) HandlePayment(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes)
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Payload too large"})
		return
	}

	result, err := h.checkout.HandlePaymentWebhook(c.Request.Context(), payload, c.GetHeader(payments.HeaderSignature))
	if err != nil {
		respondError(c, err, "Webhook processing failed")
		return
	}
	h.log.Info("payment webhook handled",
		zap.String("event_id", result.EventID),
		zap.String("outcome", result.Outcome),
		zap.String("listing_id", result.ListingID),
	)
	c.JSON(http.StatusOK, result)
}
