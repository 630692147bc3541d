package receivables

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

func newTestAccount(t *testing.T, amount Money, due time.Time) Account {
	t.Helper()
	acct, err := NewAccount(AccountInput{ClientID: 1, OriginalAmount: amount, DueDate: due}, testNow)
	require.NoError(t, err)
	return acct
}

func TestNewAccountStartsPending(t *testing.T) {
	due := time.Date(2026, 4, 1, 17, 45, 0, 0, time.FixedZone("WIB", 7*3600))
	acct := newTestAccount(t, 1000, due)

	require.Equal(t, AccountPending, acct.Phase)
	require.Equal(t, Money(1000), acct.CurrentBalance)
	require.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), acct.DueDate)
}

func TestNewAccountValidation(t *testing.T) {
	_, err := NewAccount(AccountInput{OriginalAmount: 10, DueDate: testNow}, testNow)
	require.ErrorIs(t, err, ErrClientRequired)

	_, err = NewAccount(AccountInput{ClientID: 1, OriginalAmount: 0, DueDate: testNow}, testNow)
	require.ErrorIs(t, err, ErrOriginalAmount)

	_, err = NewAccount(AccountInput{ClientID: 1, OriginalAmount: 10}, testNow)
	require.ErrorIs(t, err, ErrDueDateRequired)
}

func TestApplyPaymentPartialThenPaid(t *testing.T) {
	acct := newTestAccount(t, 1000, testNow.AddDate(0, 0, 10))

	require.NoError(t, acct.ApplyPayment(400, testNow, testNow))
	require.Equal(t, Money(600), acct.CurrentBalance)
	require.Equal(t, AccountPartial, acct.Phase)
	require.Equal(t, AccountPartial, acct.StatusAt(testNow))
	require.Nil(t, acct.PaidAt)

	require.NoError(t, acct.ApplyPayment(600, testNow, testNow))
	require.Equal(t, Money(0), acct.CurrentBalance)
	require.Equal(t, AccountPaid, acct.Phase)
	require.NotNil(t, acct.PaidAt)

	require.ErrorIs(t, acct.ApplyPayment(1, testNow, testNow), ErrAccountClosed)
	require.ErrorIs(t, acct.ApplyPayment(0, testNow, testNow), ErrAccountClosed)
}

func TestApplyPaymentRejectionsLeaveBalance(t *testing.T) {
	acct := newTestAccount(t, 1000, testNow.AddDate(0, 0, 10))
	require.NoError(t, acct.ApplyPayment(400, testNow, testNow))

	require.ErrorIs(t, acct.ApplyPayment(700, testNow, testNow), ErrOverpayment)
	require.ErrorIs(t, acct.ApplyPayment(0, testNow, testNow), ErrInvalidAmount)
	require.ErrorIs(t, acct.ApplyPayment(-5, testNow, testNow), ErrInvalidAmount)

	require.Equal(t, Money(600), acct.CurrentBalance)
	require.Equal(t, AccountPartial, acct.Phase)
}

func TestApplyPaymentBackdatedKeepsCommitTime(t *testing.T) {
	acct := newTestAccount(t, 1000, testNow.AddDate(0, 0, 10))
	receivedAt := testNow.AddDate(0, 0, -3)

	require.NoError(t, acct.ApplyPayment(1000, receivedAt, testNow))
	require.Equal(t, testNow, acct.UpdatedAt)
	require.NotNil(t, acct.PaidAt)
	require.Equal(t, receivedAt, *acct.PaidAt)
}

func TestStatusAtOverridesWithOverdue(t *testing.T) {
	acct := newTestAccount(t, 1000, testNow.AddDate(0, 0, -1))
	require.Equal(t, AccountOverdue, acct.StatusAt(testNow))
	require.Equal(t, AccountPending, acct.Phase)

	require.NoError(t, acct.ApplyPayment(250, testNow, testNow))
	require.Equal(t, AccountOverdue, acct.StatusAt(testNow))
	require.Equal(t, AccountPartial, acct.Phase)

	require.NoError(t, acct.ApplyPayment(750, testNow, testNow))
	require.Equal(t, AccountPaid, acct.StatusAt(testNow))
}

func TestDueDateItselfIsNotOverdue(t *testing.T) {
	acct := newTestAccount(t, 500, testNow)
	require.False(t, acct.IsOverdue(testNow))
	require.False(t, acct.IsOverdue(DateOf(testNow).Add(23*time.Hour+59*time.Minute)))
	require.True(t, acct.IsOverdue(DateOf(testNow).AddDate(0, 0, 1)))
}

func TestAccountStatusValid(t *testing.T) {
	for _, s := range []AccountStatus{AccountPending, AccountPartial, AccountPaid, AccountOverdue} {
		require.True(t, s.Valid(), s)
	}
	require.False(t, AccountStatus("VOID").Valid())
	require.False(t, AccountStatus("").Valid())
}
