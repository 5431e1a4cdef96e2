package model

import "github.com/shopspring/decimal"

// =====================================================
// INTENT STATUS
// =====================================================
// Forward-only lifecycle: created -> pending -> paid | failed.
// Terminal states never transition back.
const (
	IntentStatusCreated = "created"
	IntentStatusPending = "pending"
	IntentStatusPaid    = "paid"
	IntentStatusFailed  = "failed"
)

// =====================================================
// PROVIDERS & METHODS
// =====================================================
const (
	ProviderStripe = "stripe"
	ProviderRedsys = "redsys"

	MethodBankTransfer = "bank_transfer"
	MethodCard         = "card"
)

// Payment action types a customer can request for a folder.
const (
	PayTypeDeposit = "deposit"
	PayTypeBalance = "balance"
)

// Redirect-rail mode query values. The redirect rail uses "full" where the
// intent payload uses "balance".
const (
	ModeDeposit = "deposit"
	ModeFull    = "full"
)

const DefaultCurrency = "EUR"

// Stripe event type that triggers reconciliation. Every other event type is
// acknowledged and ignored.
const StripeEventPaymentSucceeded = "payment_intent.succeeded"

// =====================================================
// ERROR CODES
// =====================================================
// Stable machine-readable codes surfaced across the payments endpoints.
const (
	ErrCodeInvalidExpediente  = "invalid_expediente"
	ErrCodeInvalidType        = "invalid_type"
	ErrCodeNoClient           = "no_client"
	ErrCodePermissions        = "permissions"
	ErrCodeReservationsError  = "reservas_error"
	ErrCodeReservationsEmpty  = "reservas_empty"
	ErrCodeCalcFailed         = "calc_failed"
	ErrCodeDepositNotAllowed  = "deposit_not_allowed"
	ErrCodeBalanceNotAllowed  = "balance_not_allowed"
	ErrCodeNoRedirect         = "no_redirect"
	ErrCodeInvalidAmount      = "invalid_amount"
	ErrCodeIntentMissing      = "intent_missing"
	ErrCodeIntentCreateFailed = "intent_create_failed"
	ErrCodeStripeMissing      = "stripe_missing"
	ErrCodeStripeNoSecret     = "stripe_no_secret"
	ErrCodeStripeError        = "stripe_error"
	ErrCodeInvalidSignature   = "invalid_signature"
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeNoObject           = "no_object"
	ErrCodeNoToken            = "no_token"
	ErrCodeIntentNotFound     = "intent_not_found"
	ErrCodeIntentLookupFailed = "intent_lookup_failed"
	ErrCodeLedgerUnavailable  = "ledger_unavailable"
)

// AmountEpsilon absorbs floating-point noise in money comparisons. Amounts are
// never compared with strict equality.
var AmountEpsilon = decimal.NewFromFloat(0.01)

// ValidPayTypes lists the accepted values for the "type" request field.
var ValidPayTypes = []string{PayTypeDeposit, PayTypeBalance}
