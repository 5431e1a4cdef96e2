package service

import (
	"context"

	"casanova-portal/internal/domains/payment/model"
)

// CollectionEnqueuer schedules a background retry of the ledger write-back.
// Implemented by the queue client; nil-able so the worker process can run the
// service without an enqueue loop back into itself.
type CollectionEnqueuer interface {
	EnqueueRecordCollection(ctx context.Context, intentID int64) error
}

// PaymentService is the use-case layer of the payments domain. Every call
// that acts on behalf of a customer takes the authenticated Actor explicitly.
type PaymentService interface {
	// DescribeForUser computes the ephemeral payment context of a folder for
	// the acting customer: totals, pending balance and the allowed actions.
	DescribeForUser(ctx context.Context, actor model.Actor, folderID int64) (*model.PaymentContext, error)

	// StartRedirectPayment authorizes a redirect-rail payment and returns the
	// URL to send the customer to. No intent row is created for this rail;
	// confirmation arrives through the provider's own callback channel.
	StartRedirectPayment(ctx context.Context, actor model.Actor, req model.StartPaymentRequest) (string, error)

	// StartBankTransfer creates a local intent, then a Stripe bank-transfer
	// PaymentIntent, and returns the transfer instructions for the customer.
	StartBankTransfer(ctx context.Context, actor model.Actor, req model.StartPaymentRequest) (*model.BankTransferResponse, error)

	// GetIntentByToken returns the status of one of the actor's own intents.
	// Foreign tokens resolve to not-found, never to a permission error.
	GetIntentByToken(ctx context.Context, actor model.Actor, tok string) (*model.IntentStatusResponse, error)

	// AvailableMethods lists the payment methods usable in this deployment.
	AvailableMethods() []model.PaymentMethod

	// ProcessStripeWebhook verifies, parses and reconciles one webhook
	// delivery. It always produces a result; it never panics the request and
	// never blocks the acknowledgment on the ledger write-back.
	ProcessStripeWebhook(ctx context.Context, body []byte, sigHeader string) *model.WebhookResult

	// RecordCollection writes one paid intent back to the booking ledger,
	// deduplicating on the intent token. Safe to retry.
	RecordCollection(ctx context.Context, intentID int64) error

	// SweepPendingCollections retries the ledger write-back for paid intents
	// that are still unrecorded. Returns how many were recorded.
	SweepPendingCollections(ctx context.Context, limit int) (int, error)
}
