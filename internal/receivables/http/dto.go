package receivableshttp

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-receivables/internal/receivables"
)

type createClientRequest struct {
	BusinessName string `json:"business_name" validate:"required,max=200"`
	CreditLimit  int64  `json:"credit_limit" validate:"gte=0"`
}

func (r createClientRequest) input() receivables.ClientInput {
	return receivables.ClientInput{BusinessName: r.BusinessName, CreditLimit: receivables.Money(r.CreditLimit)}
}

type updateClientRequest struct {
	BusinessName *string `json:"business_name" validate:"omitempty,max=200"`
	CreditLimit  *int64  `json:"credit_limit" validate:"omitempty,gte=0"`
	Inactive     *bool   `json:"inactive"`
}

func (r updateClientRequest) update() receivables.ClientUpdate {
	u := receivables.ClientUpdate{BusinessName: r.BusinessName, Inactive: r.Inactive}
	if r.CreditLimit != nil {
		limit := receivables.Money(*r.CreditLimit)
		u.CreditLimit = &limit
	}
	return u
}

type issueAccountRequest struct {
	ClientID       int64  `json:"client_id" validate:"required,gt=0"`
	Reference      string `json:"reference" validate:"max=64"`
	OriginalAmount int64  `json:"original_amount" validate:"required,gt=0"`
	DueDate        string `json:"due_date" validate:"required,datetime=2006-01-02"`
}

func (r issueAccountRequest) input() (receivables.AccountInput, error) {
	due, err := time.Parse(time.DateOnly, r.DueDate)
	if err != nil {
		return receivables.AccountInput{}, err
	}
	return receivables.AccountInput{
		ClientID:       r.ClientID,
		Reference:      r.Reference,
		OriginalAmount: receivables.Money(r.OriginalAmount),
		DueDate:        due,
	}, nil
}

// Amount sign and balance are checked by the account state machine.
type paymentRequest struct {
	Amount int64      `json:"amount"`
	Method string     `json:"method" validate:"omitempty,oneof=CASH TRANSFER CARD CHECK"`
	PaidAt *time.Time `json:"paid_at"`
}

func (r paymentRequest) input(accountID int64, idempotencyKey string) receivables.PaymentInput {
	in := receivables.PaymentInput{
		AccountID:      accountID,
		Amount:         receivables.Money(r.Amount),
		Method:         receivables.PaymentMethod(r.Method),
		IdempotencyKey: idempotencyKey,
	}
	if r.PaidAt != nil {
		in.Timestamp = r.PaidAt.UTC()
	}
	return in
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}

// describeValidation flattens validator errors into "field: tag" pairs.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
