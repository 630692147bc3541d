package receivables

import (
	"strings"
	"time"
)

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewAccount validates the input and builds a PENDING account.
func NewAccount(input AccountInput, now time.Time) (Account, error) {
	if input.ClientID == 0 {
		return Account{}, ErrClientRequired
	}
	if input.OriginalAmount <= 0 {
		return Account{}, ErrOriginalAmount
	}
	if input.DueDate.IsZero() {
		return Account{}, ErrDueDateRequired
	}
	return Account{
		ClientID:       input.ClientID,
		Reference:      strings.TrimSpace(input.Reference),
		OriginalAmount: input.OriginalAmount,
		CurrentBalance: input.OriginalAmount,
		DueDate:        DateOf(input.DueDate),
		Phase:          AccountPending,
		Status:         AccountPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ApplyPayment reduces the balance by amount and advances the phase. paidAt is
// when the money was received and now is the commit time.
// A rejected payment leaves the account untouched.
func (a *Account) ApplyPayment(amount Money, paidAt, now time.Time) error {
	if a.Phase == AccountPaid {
		return ErrAccountClosed
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > a.CurrentBalance {
		return ErrOverpayment
	}
	a.CurrentBalance -= amount
	a.Phase = phaseFor(a.CurrentBalance, a.OriginalAmount)
	if a.Phase == AccountPaid {
		at := paidAt
		a.PaidAt = &at
	}
	a.UpdatedAt = now
	a.Status = a.StatusAt(now)
	return nil
}

// IsOverdue reports whether the account has an unpaid balance past its due date.
func (a Account) IsOverdue(now time.Time) bool {
	return a.CurrentBalance > 0 && DateOf(now).After(a.DueDate)
}

// StatusAt evaluates the display status at now.
func (a Account) StatusAt(now time.Time) AccountStatus {
	if a.Phase == AccountPaid {
		return AccountPaid
	}
	if a.IsOverdue(now) {
		return AccountOverdue
	}
	return a.Phase
}

// Evaluate returns a copy with Status computed at now.
func (a Account) Evaluate(now time.Time) Account {
	a.Status = a.StatusAt(now)
	return a
}

func phaseFor(balance, original Money) AccountStatus {
	switch {
	case balance == 0:
		return AccountPaid
	case balance == original:
		return AccountPending
	default:
		return AccountPartial
	}
}
