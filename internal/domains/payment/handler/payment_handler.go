package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"casanova-portal/internal/domains/payment/model"
	"casanova-portal/internal/domains/payment/service"
	"casanova-portal/internal/shared/middleware"
	"casanova-portal/internal/shared/response"
)

type PaymentHandler struct {
	service service.PaymentService
	logger  zerolog.Logger
}

func NewPaymentHandler(svc service.PaymentService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: svc,
		logger:  logger.With().Str("handler", "payment").Logger(),
	}
}

// =====================================================
// ROUTES
// =====================================================

// GetMethods handles GET /payments/methods
func (h *PaymentHandler) GetMethods(c *gin.Context) {
	response.OK(c, http.StatusOK, gin.H{"methods": h.service.AvailableMethods()})
}

// GetContext handles GET /payments/context/:expediente_id
func (h *PaymentHandler) GetContext(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Unauthorized(c, "Missing authentication")
		return
	}

	folderID, err := strconv.ParseInt(c.Param("expediente_id"), 10, 64)
	if err != nil || folderID <= 0 {
		response.BadRequest(c, model.ErrCodeInvalidExpediente, "Invalid expediente id")
		return
	}

	pctx, err := h.service.DescribeForUser(c.Request.Context(), actor, folderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, http.StatusOK, pctx)
}

// StartRedirect handles POST /payments/intent
func (h *PaymentHandler) StartRedirect(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Unauthorized(c, "Missing authentication")
		return
	}

	var req model.StartPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, model.ErrCodeInvalidPayload, "Invalid request body")
		return
	}

	redirectURL, err := h.service.StartRedirectPayment(c.Request.Context(), actor, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"redirect_url": redirectURL})
}

// StartBankTransfer handles POST /payments/stripe/bank-transfer
func (h *PaymentHandler) StartBankTransfer(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Unauthorized(c, "Missing authentication")
		return
	}

	var req model.StartPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, model.ErrCodeInvalidPayload, "Invalid request body")
		return
	}

	result, err := h.service.StartBankTransfer(c.Request.Context(), actor, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, http.StatusCreated, result)
}

// GetIntent handles GET /payments/intents/:token
func (h *PaymentHandler) GetIntent(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Unauthorized(c, "Missing authentication")
		return
	}

	result, err := h.service.GetIntentByToken(c.Request.Context(), actor, c.Param("token"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, http.StatusOK, result)
}

// =====================================================
// ERROR MAPPING
// =====================================================

// respondError translates domain error codes to HTTP statuses. Unknown
// errors stay opaque to the client.
func (h *PaymentHandler) respondError(c *gin.Context, err error) {
	var payErr *model.PaymentError
	if !errors.As(err, &payErr) {
		h.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Unhandled payment error")
		response.InternalServerError(c, "internal_error", "Internal server error")
		return
	}

	status := mapPaymentError(payErr.Code)
	if status >= 500 {
		h.logger.Error().Err(payErr).Str("code", payErr.Code).Msg("Payment operation failed")
	}
	response.Fail(c, status, payErr.Code, payErr.Message)
}

func mapPaymentError(code string) int {
	switch code {
	case model.ErrCodePermissions,
		model.ErrCodeDepositNotAllowed,
		model.ErrCodeBalanceNotAllowed:
		return http.StatusForbidden
	case model.ErrCodeIntentNotFound:
		return http.StatusNotFound
	case model.ErrCodeStripeError,
		model.ErrCodeStripeNoSecret,
		model.ErrCodeLedgerUnavailable,
		model.ErrCodeReservationsError,
		model.ErrCodeCalcFailed:
		return http.StatusBadGateway
	case model.ErrCodeStripeMissing,
		model.ErrCodeIntentCreateFailed,
		model.ErrCodeIntentLookupFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
