// internal/domain/replenishment/errors.go
package replenishment

import "errors"

// Guard sentinel errors, surfaced to trigger callers as retryable rejections
var (
	ErrLockHeld         = errors.New("auto-order processing already in progress")
	ErrDuplicateRequest = errors.New("duplicate auto-order request")
)

// PolicyRejection is a policy decision, not a system failure. It is recorded
// against the client and notified, never retried within the same run.
type PolicyRejection struct {
	Reason  string
	Message string
}

func (r *PolicyRejection) Error() string {
	return r.Message
}
