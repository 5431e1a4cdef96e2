package repository

import (
	"context"

	"casanova-portal/internal/domains/payment/model"
)

// IntentUpdate carries a partial update. Nil fields are left untouched; a
// non-nil Payload replaces the stored payload wholesale (callers
// read-modify-write the full snapshot, never deltas).
type IntentUpdate struct {
	Status  *string
	Payload *model.IntentPayload
}

// IntentRepository is the durable store of payment attempts. Append-only:
// there is no delete.
type IntentRepository interface {
	// Create assigns the internal id and persists the intent.
	Create(ctx context.Context, intent *model.PaymentIntent) error

	// Update applies a partial merge to an existing intent.
	Update(ctx context.Context, id int64, upd IntentUpdate) error

	// GetByToken resolves the sole external lookup key.
	// Returns model.ErrIntentNotFound when no row matches.
	GetByToken(ctx context.Context, token string) (*model.PaymentIntent, error)

	GetByID(ctx context.Context, id int64) (*model.PaymentIntent, error)

	// MarkPaid performs the conditional paid transition: it only succeeds when
	// the intent is not already terminal, so concurrent webhook deliveries
	// cannot double-apply it. Returns false when no transition happened.
	MarkPaid(ctx context.Context, id int64, payload model.IntentPayload) (bool, error)

	// ListPaidPendingCollection returns paid intents whose collection has not
	// been recorded in the external ledger yet, oldest first.
	ListPaidPendingCollection(ctx context.Context, limit int) ([]*model.PaymentIntent, error)

	// MarkCollectionRecorded stamps the ledger write-back as done.
	MarkCollectionRecorded(ctx context.Context, id int64) error
}
