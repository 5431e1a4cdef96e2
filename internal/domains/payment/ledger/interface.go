package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =====================================================
// LEDGER CAPABILITY INTERFACES
// =====================================================
// The GIAV back office is reached only through these interfaces. Environments
// without the integration inject Unavailable instead of a real client, so the
// service degrades to typed errors rather than crashing.

// Reservation is one booked service inside an expediente.
type Reservation struct {
	ID        int64
	Service   string
	StartDate time.Time
	Amount    decimal.Decimal
	Status    string
}

// PaymentCalc is the ledger's own payment calculation for a folder. The
// fully-paid flag is derived by the ledger, never recomputed locally.
type PaymentCalc struct {
	Total     decimal.Decimal
	Paid      decimal.Decimal
	Pending   decimal.Decimal
	FullyPaid bool
}

// CollectionRecord is a completed payment to be written back into the ledger
// as a cobro against the folder.
type CollectionRecord struct {
	IntentToken string
	FolderID    int64
	ClientID    int64
	Amount      decimal.Decimal
	Currency    string
	Provider    string
	Method      string
	PaidAt      time.Time
}

// Ledger is the external booking system.
type Ledger interface {
	// FolderBelongsToClient authorizes access: client ownership of the folder
	// as recorded in the back office.
	FolderBelongsToClient(ctx context.Context, folderID, clientID int64) (bool, error)

	// ReservationsForFolder fetches the folder's reservations.
	ReservationsForFolder(ctx context.Context, folderID, clientID int64) ([]Reservation, error)

	// CalcFolderPayment runs the ledger's payment-calculation routine.
	CalcFolderPayment(ctx context.Context, folderID, clientID int64, reservations []Reservation) (*PaymentCalc, error)

	// HasCollection reports whether a cobro referencing the intent token
	// already exists. This is the write-back dedupe key.
	HasCollection(ctx context.Context, token string) (bool, error)

	// RecordCollection writes the cobro into the ledger.
	RecordCollection(ctx context.Context, rec CollectionRecord) error
}

// DepositPolicy decides whether an advance payment is offered and how much.
type DepositPolicy interface {
	DepositAllowed(reservations []Reservation) bool
	DepositAmount(pending decimal.Decimal, folderID int64) decimal.Decimal
}
