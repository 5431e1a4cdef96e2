package ledger

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by Unavailable for every operation.
var ErrUnavailable = errors.New("booking ledger is not configured")

// Unavailable is the injected stand-in when no GIAV integration is
// configured. Every call fails with a typed error instead of crashing.
type Unavailable struct{}

func (Unavailable) FolderBelongsToClient(ctx context.Context, folderID, clientID int64) (bool, error) {
	return false, ErrUnavailable
}

func (Unavailable) ReservationsForFolder(ctx context.Context, folderID, clientID int64) ([]Reservation, error) {
	return nil, ErrUnavailable
}

func (Unavailable) CalcFolderPayment(ctx context.Context, folderID, clientID int64, reservations []Reservation) (*PaymentCalc, error) {
	return nil, ErrUnavailable
}

func (Unavailable) HasCollection(ctx context.Context, token string) (bool, error) {
	return false, ErrUnavailable
}

func (Unavailable) RecordCollection(ctx context.Context, rec CollectionRecord) error {
	return ErrUnavailable
}
