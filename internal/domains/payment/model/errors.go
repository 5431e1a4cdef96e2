package model

import (
	"errors"
	"fmt"
)

// =====================================================
// PREDEFINED ERRORS
// =====================================================

var (
	ErrIntentNotFound    = errors.New("payment intent not found")
	ErrNoClient          = errors.New("account is not linked to a client")
	ErrInvalidFolder     = errors.New("invalid expediente")
	ErrPermissions       = errors.New("not authorized for this expediente")
	ErrNoReservations    = errors.New("no reservations found for this expediente")
	ErrDepositNotAllowed = errors.New("deposit is not available for this expediente")
	ErrBalanceNotAllowed = errors.New("no pending amount to pay")
	ErrInvalidPayType    = errors.New("invalid payment type")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrStripeMissing     = errors.New("stripe is not configured")
	ErrLedgerUnavailable = errors.New("booking ledger unavailable")
	ErrIntentNotPaid     = errors.New("intent is not in paid status")
)

// =====================================================
// TYPED PAYMENT ERROR
// =====================================================
// Every failure crosses component boundaries as a value carrying a stable
// machine code; handlers map codes to HTTP statuses.
type PaymentError struct {
	Code    string
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

func NewPaymentError(code, message string, err error) *PaymentError {
	return &PaymentError{Code: code, Message: message, Err: err}
}

// =====================================================
// ERROR CONSTRUCTORS
// =====================================================

func NewNoClientError() *PaymentError {
	return NewPaymentError(ErrCodeNoClient, "Account is not linked to a casanova client", ErrNoClient)
}

func NewInvalidFolderError(folderID int64) *PaymentError {
	return NewPaymentError(ErrCodeInvalidExpediente, fmt.Sprintf("Invalid expediente: %d", folderID), ErrInvalidFolder)
}

func NewPermissionsError(folderID int64) *PaymentError {
	return NewPaymentError(ErrCodePermissions, fmt.Sprintf("Not authorized for expediente %d", folderID), ErrPermissions)
}

func NewNoReservationsError() *PaymentError {
	return NewPaymentError(ErrCodeReservationsEmpty, "No reservations found for this expediente", ErrNoReservations)
}

func NewActionNotAllowedError(payType string) *PaymentError {
	if payType == PayTypeDeposit {
		return NewPaymentError(ErrCodeDepositNotAllowed, "Deposit is not available for this expediente", ErrDepositNotAllowed)
	}
	return NewPaymentError(ErrCodeBalanceNotAllowed, "No pending amount to pay", ErrBalanceNotAllowed)
}

func NewInvalidPayTypeError(payType string) *PaymentError {
	return NewPaymentError(ErrCodeInvalidType, fmt.Sprintf("Invalid payment type: %s", payType), ErrInvalidPayType)
}

func NewStripeMissingError() *PaymentError {
	return NewPaymentError(ErrCodeStripeMissing, "Stripe is not available", ErrStripeMissing)
}

func NewStripeError(err error) *PaymentError {
	return NewPaymentError(ErrCodeStripeError, fmt.Sprintf("Stripe error: %v", err), err)
}

func NewIntentNotFoundError(token string) *PaymentError {
	return NewPaymentError(ErrCodeIntentNotFound, fmt.Sprintf("Payment intent not found: %s", token), ErrIntentNotFound)
}

func NewLedgerError(code string, err error) *PaymentError {
	return NewPaymentError(code, fmt.Sprintf("Ledger error: %v", err), err)
}
