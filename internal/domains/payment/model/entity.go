package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// =====================================================
// PAYMENT INTENT ENTITY
// =====================================================
// One attempt to pay some amount via some provider/method. Rows are an
// append-only audit trail for finance: intents are never deleted, failed
// attempts included.
type PaymentIntent struct {
	// Internal numeric identifier, owned exclusively by the intent store.
	// Never exposed as a lookup key.
	ID int64 `json:"id" db:"id"`

	// Opaque unique token, the only external-facing identifier.
	Token string `json:"token" db:"token"`

	// Who is paying and for what booking folder (expediente).
	UserID   int64 `json:"user_id" db:"user_id"`
	ClientID int64 `json:"client_id" db:"client_id"`
	FolderID int64 `json:"folder_id" db:"folder_id"`

	// Immutable once created.
	Amount   decimal.Decimal `json:"amount" db:"amount"`
	Currency string          `json:"currency" db:"currency"`

	Status string `json:"status" db:"status"`

	// Provider-specific reconciliation snapshot. Always replaced wholesale on
	// update; callers read-modify-write the full struct.
	Payload IntentPayload `json:"payload" db:"payload"`

	// Set once the collection has been recorded in the GIAV ledger.
	CollectionRecordedAt *time.Time `json:"collection_recorded_at,omitempty" db:"collection_recorded_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the intent has reached a final status.
func (p *PaymentIntent) IsTerminal() bool {
	return p.Status == IntentStatusPaid || p.Status == IntentStatusFailed
}

// NeedsCollection reports whether the paid intent still has to be written
// back to the external ledger.
func (p *PaymentIntent) NeedsCollection() bool {
	return p.Status == IntentStatusPaid && p.CollectionRecordedAt == nil
}

// =====================================================
// INTENT PAYLOAD
// =====================================================
// Typed form of the provider snapshot stored as JSONB. StripeEventLastID is
// the only field carrying history: it is the per-intent webhook dedupe key.
type IntentPayload struct {
	Provider string `json:"provider"`
	Method   string `json:"method"`
	Mode     string `json:"mode"`

	// Set when provider-side creation failed; kept for support diagnosis.
	Error string `json:"error,omitempty"`

	StripePaymentIntentID     string `json:"stripe_payment_intent_id,omitempty"`
	StripePaymentIntentStatus string `json:"stripe_payment_intent_status,omitempty"`
	StripeEventLastID         string `json:"stripe_event_last_id,omitempty"`

	Instructions *BankTransferInstructions `json:"instructions,omitempty"`
}

// BankTransferInstructions is what the customer needs to execute a SEPA
// transfer, extracted from the Stripe PaymentIntent next_action block.
type BankTransferInstructions struct {
	IBAN          string `json:"iban"`
	BIC           string `json:"bic"`
	Beneficiary   string `json:"beneficiary"`
	BankName      string `json:"bank_name"`
	Reference     string `json:"reference"`
	ReferenceType string `json:"reference_type"`
}
