package receivables

import (
	"time"
)

// Money is an amount in minor currency units. Arithmetic stays integral.
type Money int64

// ClientStatus enumerates client credit statuses.
type ClientStatus string

const (
	ClientActive     ClientStatus = "ACTIVE"
	ClientDelinquent ClientStatus = "DELINQUENT"
	ClientInactive   ClientStatus = "INACTIVE"
)

// AccountStatus enumerates receivable account statuses.
type AccountStatus string

const (
	AccountPending AccountStatus = "PENDING"
	AccountPartial AccountStatus = "PARTIAL"
	AccountPaid    AccountStatus = "PAID"
	AccountOverdue AccountStatus = "OVERDUE"
)

// Valid reports whether the status is a known value.
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountPending, AccountPartial, AccountPaid, AccountOverdue:
		return true
	}
	return false
}

// RiskTier buckets clients by how long their oldest debt is overdue.
type RiskTier string

const (
	RiskNone   RiskTier = "NONE"
	RiskLow    RiskTier = "LOW"
	RiskMedium RiskTier = "MEDIUM"
	RiskHigh   RiskTier = "HIGH"
)

// PaymentMethod identifies how a payment was collected.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "CASH"
	MethodTransfer PaymentMethod = "TRANSFER"
	MethodCard     PaymentMethod = "CARD"
	MethodCheck    PaymentMethod = "CHECK"
)

// Client is the ledger record for a customer buying on credit.
// CurrentDebt and Status are derived from the client's accounts.
type Client struct {
	ID           int64        `json:"id"`
	BusinessName string       `json:"business_name"`
	CreditLimit  Money        `json:"credit_limit"`
	CurrentDebt  Money        `json:"current_debt"`
	Status       ClientStatus `json:"status"`
	Inactive     bool         `json:"inactive"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Account is a single receivable obligation owed by a client.
//
// Phase holds the balance fact (PENDING, PARTIAL or PAID) and is what gets
// stored. Status is the display status evaluated against a point in time, where
// OVERDUE overrides PENDING and PARTIAL once the due date has passed.
type Account struct {
	ID             int64         `json:"id"`
	ClientID       int64         `json:"client_id"`
	Reference      string        `json:"reference,omitempty"`
	OriginalAmount Money         `json:"original_amount"`
	CurrentBalance Money         `json:"current_balance"`
	DueDate        time.Time     `json:"due_date"`
	Phase          AccountStatus `json:"phase"`
	Status         AccountStatus `json:"status"`
	PaidAt         *time.Time    `json:"paid_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Payment is an applied payment event. It is never altered once recorded.
type Payment struct {
	ID        string        `json:"id"`
	AccountID int64         `json:"account_id"`
	Amount    Money         `json:"amount"`
	Method    PaymentMethod `json:"method"`
	Timestamp time.Time     `json:"timestamp"`
}

// DelinquencySummary is the per-client collection rollup.
type DelinquencySummary struct {
	ClientID      int64    `json:"client_id"`
	BusinessName  string   `json:"business_name"`
	OverdueAmount Money    `json:"overdue_amount"`
	OverdueDays   int      `json:"overdue_days"`
	OverdueCount  int      `json:"overdue_count"`
	RiskTier      RiskTier `json:"risk_tier"`
}

// DelinquencyReport wraps the ranked summaries for an as-of date.
type DelinquencyReport struct {
	AsOf         time.Time            `json:"as_of"`
	Summaries    []DelinquencySummary `json:"summaries"`
	TotalOverdue Money                `json:"total_overdue"`
}

// AgingBucket totals open balances that fall in one risk tier.
type AgingBucket struct {
	Tier   RiskTier `json:"tier"`
	Amount Money    `json:"amount"`
	Count  int      `json:"count"`
}

// AgingReport summarises the whole open book by tier. NONE holds current balances.
type AgingReport struct {
	AsOf    time.Time     `json:"as_of"`
	Buckets []AgingBucket `json:"buckets"`
	Total   Money         `json:"total"`
}

// CreditDecision answers whether a new credit sale may be extended.
type CreditDecision struct {
	ClientID    int64        `json:"client_id"`
	Requested   Money        `json:"requested"`
	CreditLimit Money        `json:"credit_limit"`
	CurrentDebt Money        `json:"current_debt"`
	Available   Money        `json:"available"`
	Status      ClientStatus `json:"status"`
	OverLimit   bool         `json:"over_limit"`
	Delinquent  bool         `json:"delinquent"`
	Allow       bool         `json:"allow"`
}

// ClientInput registers a new client.
type ClientInput struct {
	BusinessName string
	CreditLimit  Money
}

// ClientUpdate changes the externally owned parts of a client record.
// Nil fields are left untouched.
type ClientUpdate struct {
	BusinessName *string
	CreditLimit  *Money
	Inactive     *bool
}

// AccountInput issues a receivable account from a credit sale or invoice.
type AccountInput struct {
	ClientID       int64
	Reference      string
	OriginalAmount Money
	DueDate        time.Time
}

// PaymentInput submits a payment against an account.
type PaymentInput struct {
	AccountID      int64
	Amount         Money
	Method         PaymentMethod
	Timestamp      time.Time
	IdempotencyKey string
}

// AccountFilter scopes account listings.
type AccountFilter struct {
	ClientID int64
	Status   AccountStatus
}

// PaymentApplied is emitted after a payment commits, for the movements log.
type PaymentApplied struct {
	EventID      string        `json:"event_id"`
	PaymentID    string        `json:"payment_id"`
	AccountID    int64         `json:"account_id"`
	ClientID     int64         `json:"client_id"`
	Amount       Money         `json:"amount"`
	Method       PaymentMethod `json:"method"`
	BalanceAfter Money         `json:"balance_after"`
	Status       AccountStatus `json:"status"`
	ClientDebt   Money         `json:"client_debt"`
	ClientStatus ClientStatus  `json:"client_status"`
	OccurredAt   time.Time     `json:"occurred_at"`
}

// Snapshot is a consistent copy of every client and account.
type Snapshot struct {
	Clients  []Client
	Accounts []Account
}
