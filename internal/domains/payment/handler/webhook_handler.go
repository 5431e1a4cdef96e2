package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"casanova-portal/internal/domains/payment/model"
	"casanova-portal/internal/domains/payment/service"
)

// maxWebhookBody caps the raw body read; Stripe events are small.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	service service.PaymentService
	logger  zerolog.Logger
}

func NewWebhookHandler(svc service.PaymentService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: svc,
		logger:  logger.With().Str("handler", "webhook").Logger(),
	}
}

// HandleStripe handles POST /stripe/webhook. The endpoint is unauthenticated;
// trust comes entirely from the signature over the raw body, which must be
// read before any JSON binding touches it.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.WebhookAck{Ok: false, Code: model.ErrCodeInvalidPayload})
		return
	}

	result := h.service.ProcessStripeWebhook(c.Request.Context(), body, c.GetHeader("Stripe-Signature"))

	if !result.Ack.Ok {
		h.logger.Warn().
			Int("http_status", result.HTTPStatus).
			Str("code", result.Ack.Code).
			Msg("Webhook rejected")
	}
	c.JSON(result.HTTPStatus, result.Ack)
}
