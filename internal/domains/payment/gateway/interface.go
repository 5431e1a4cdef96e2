package gateway

import (
	"context"

	"casanova-portal/internal/domains/payment/model"
)

// =====================================================
// GATEWAY INTERFACES
// =====================================================

// StripeGateway integrates the Stripe REST API for SEPA bank transfers.
type StripeGateway interface {
	// IsConfigured reports whether a secret key is set. The bank-transfer rail
	// is only offered when it is.
	IsConfigured() bool

	// CreateBankTransferIntent creates a provider-side PaymentIntent for a
	// customer-balance bank transfer and returns the payable instructions.
	CreateBankTransferIntent(ctx context.Context, req BankTransferIntentRequest) (*BankTransferIntentResponse, error)

	// VerifyWebhookSignature checks the stripe-signature header over the raw
	// body. Returns false when no webhook secret is configured.
	VerifyWebhookSignature(payload []byte, sigHeader string) bool

	// WebhookConfigured reports whether a webhook secret is set. The endpoint
	// distinguishes a misconfigured receiver from a bad signature.
	WebhookConfigured() bool
}

// RedsysGateway covers the redirect rail. Payment confirmation happens
// out-of-band through the provider's redirect-back mechanism, which is an
// external collaborator; only URL construction lives here.
type RedsysGateway interface {
	// FolderPayURL builds the provider-agnostic pay URL for a folder. Empty
	// when the rail is not configured.
	FolderPayURL(folderID int64) string
}

// =====================================================
// REQUEST/RESPONSE TYPES
// =====================================================

type BankTransferIntentRequest struct {
	AmountCents int64             // amount in minor units
	Currency    string            // lowercase ISO code, e.g. "eur"
	Description string            // shown on the Stripe dashboard
	Metadata    map[string]string // must include the intent token
}

type BankTransferIntentResponse struct {
	ID           string // Stripe PaymentIntent id
	Status       string // Stripe-side status
	Instructions model.BankTransferInstructions
	Raw          map[string]interface{} // full response for audit
}
