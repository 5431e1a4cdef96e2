package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// =====================================================
// ACTOR
// =====================================================
// Actor is the authenticated principal threaded explicitly through every
// service call. There is no ambient "current user" state.
type Actor struct {
	UserID   int64
	ClientID int64
}

// =====================================================
// START PAYMENT REQUEST
// =====================================================
// Shared body of POST /payments/intent and POST /payments/stripe/bank-transfer.
type StartPaymentRequest struct {
	ExpedienteID int64  `json:"expediente_id"`
	Type         string `json:"type"`
}

func (req StartPaymentRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.ExpedienteID, validation.Required, validation.Min(int64(1))),
		validation.Field(&req.Type, validation.Required, validation.In(PayTypeDeposit, PayTypeBalance)),
	)
}

// =====================================================
// PAYMENT CONTEXT
// =====================================================
// Ephemeral read model of a folder's payment state, computed per request and
// never persisted. All amounts are rounded to 2 decimals on the way out.
type PaymentAction struct {
	Allowed bool            `json:"allowed"`
	Amount  decimal.Decimal `json:"amount"`
}

type PaymentContext struct {
	UserID       int64 `json:"user_id"`
	ClientID     int64 `json:"id_cliente"`
	ExpedienteID int64 `json:"id_expediente"`

	Total    decimal.Decimal `json:"total"`
	Paid     decimal.Decimal `json:"paid"`
	Pending  decimal.Decimal `json:"pending"`
	Currency string          `json:"currency"`

	CanPay bool   `json:"can_pay"`
	PayURL string `json:"pay_url"`

	Actions map[string]PaymentAction `json:"actions"`
}

// =====================================================
// RESPONSES
// =====================================================

type BankTransferResponse struct {
	Token        string                   `json:"token"`
	IntentID     int64                    `json:"intent_id"`
	Provider     string                   `json:"provider"`
	Method       string                   `json:"method"`
	Status       string                   `json:"status"`
	Amount       decimal.Decimal          `json:"amount"`
	Currency     string                   `json:"currency"`
	Instructions BankTransferInstructions `json:"instructions"`
}

type IntentStatusResponse struct {
	Token        string                    `json:"token"`
	Provider     string                    `json:"provider"`
	Method       string                    `json:"method"`
	Status       string                    `json:"status"`
	Amount       decimal.Decimal           `json:"amount"`
	Currency     string                    `json:"currency"`
	Instructions *BankTransferInstructions `json:"instructions,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

type PaymentMethod struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Provider string `json:"provider"`
}

// =====================================================
// WEBHOOK RESULT
// =====================================================
// The webhook handler always answers with a deterministic JSON body; the
// provider's redelivery behavior is driven purely by the HTTP status.
type WebhookAck struct {
	Ok     bool   `json:"ok"`
	Status string `json:"status,omitempty"`
	Code   string `json:"code,omitempty"`
}

type WebhookResult struct {
	HTTPStatus int
	Ack        WebhookAck
}

func WebhookOK(status string) *WebhookResult {
	return &WebhookResult{HTTPStatus: 200, Ack: WebhookAck{Ok: true, Status: status}}
}

func WebhookFail(httpStatus int, code string) *WebhookResult {
	return &WebhookResult{HTTPStatus: httpStatus, Ack: WebhookAck{Ok: false, Code: code}}
}
