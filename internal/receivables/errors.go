package receivables

import "errors"

var (
	// ErrNotFound indicates an unknown client or account.
	ErrNotFound = errors.New("receivables: not found")

	// Payment rejections.
	ErrInvalidAmount  = errors.New("receivables: payment amount must be positive")
	ErrOverpayment    = errors.New("receivables: payment exceeds current balance")
	ErrAccountClosed  = errors.New("receivables: account is already paid")
	ErrDuplicateEntry = errors.New("receivables: payment already submitted")

	// Record validation.
	ErrBusinessNameRequired = errors.New("receivables: business name required")
	ErrNegativeCreditLimit  = errors.New("receivables: credit limit cannot be negative")
	ErrClientRequired       = errors.New("receivables: client ID required")
	ErrOriginalAmount       = errors.New("receivables: original amount must be positive")
	ErrDueDateRequired      = errors.New("receivables: due date required")
	ErrInvalidMethod        = errors.New("receivables: unknown payment method")
)

// RejectionReason returns a short label for payment rejections, used by metrics.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrOverpayment):
		return "overpayment"
	case errors.Is(err, ErrAccountClosed):
		return "account_closed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateEntry):
		return "duplicate"
	case errors.Is(err, ErrInvalidMethod):
		return "invalid_method"
	default:
		return "error"
	}
}
