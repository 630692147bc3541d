package receivables

import (
	"strings"
	"time"
)

// NewClient validates the input and builds an ACTIVE client with no debt.
func NewClient(input ClientInput, now time.Time) (Client, error) {
	name := strings.TrimSpace(input.BusinessName)
	if name == "" {
		return Client{}, ErrBusinessNameRequired
	}
	if input.CreditLimit < 0 {
		return Client{}, ErrNegativeCreditLimit
	}
	return Client{
		BusinessName: name,
		CreditLimit:  input.CreditLimit,
		Status:       ClientActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Apply merges the update into the client record. Debt and status are not
// touched here; callers recompute them afterwards.
func (u ClientUpdate) Apply(c *Client) error {
	if u.BusinessName != nil {
		name := strings.TrimSpace(*u.BusinessName)
		if name == "" {
			return ErrBusinessNameRequired
		}
		c.BusinessName = name
	}
	if u.CreditLimit != nil {
		if *u.CreditLimit < 0 {
			return ErrNegativeCreditLimit
		}
		c.CreditLimit = *u.CreditLimit
	}
	if u.Inactive != nil {
		c.Inactive = *u.Inactive
	}
	return nil
}

// RecomputeDebt derives the client's debt and status from its accounts as of now.
// Accounts that belong to other clients are ignored.
func RecomputeDebt(client Client, accounts []Account, now time.Time) Client {
	var debt Money
	overdue := false
	for _, acct := range accounts {
		if acct.ClientID != client.ID || acct.Phase == AccountPaid {
			continue
		}
		debt += acct.CurrentBalance
		if acct.IsOverdue(now) {
			overdue = true
		}
	}
	client.CurrentDebt = debt
	switch {
	case overdue:
		client.Status = ClientDelinquent
	case client.Inactive:
		client.Status = ClientInactive
	default:
		client.Status = ClientActive
	}
	return client
}

// DecideCredit evaluates whether a new sale of amount may be extended to client.
func DecideCredit(client Client, amount Money) CreditDecision {
	available := client.CreditLimit - client.CurrentDebt
	if available < 0 {
		available = 0
	}
	d := CreditDecision{
		ClientID:    client.ID,
		Requested:   amount,
		CreditLimit: client.CreditLimit,
		CurrentDebt: client.CurrentDebt,
		Available:   available,
		Status:      client.Status,
		OverLimit:   client.CurrentDebt+amount > client.CreditLimit,
		Delinquent:  client.Status == ClientDelinquent,
	}
	d.Allow = !d.OverLimit && !d.Delinquent && client.Status != ClientInactive
	return d
}
