// internal/domain/payment/gateway.go
package payment

import (
	"context"
	"errors"
)

// Gateway charges stored payment profiles. Implementations must be safe for
// concurrent use.
type Gateway interface {
	// DefaultPaymentMethod resolves the default stored payment method for a
	// gateway customer, or ErrNoPaymentMethod when none is on file.
	DefaultPaymentMethod(ctx context.Context, customerRef string) (string, error)

	// CreateStoredCharge charges a stored payment method off-session and
	// returns the gateway reference on success.
	CreateStoredCharge(ctx context.Context, req *StoredChargeRequest) (*ChargeResult, error)
}

// Gateway sentinel errors
var (
	ErrNoPaymentMethod = errors.New("customer has no stored payment method")
	ErrChargeDeclined  = errors.New("charge was declined")
)

// StoredChargeRequest describes one off-session charge attempt
type StoredChargeRequest struct {
	CustomerRef     string // gateway customer identifier
	PaymentMethodID string // stored payment method to charge
	Amount          int64  // in cents
	Currency        string
	Description     string
	IdempotencyKey  string
}

// ChargeResult is the gateway outcome for a successful charge
type ChargeResult struct {
	Reference string // gateway charge / intent identifier
	Status    string
}
