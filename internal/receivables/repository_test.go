package receivables

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-receivables/internal/platform/db"
	"github.com/odyssey-erp/odyssey-receivables/migrations"
)

// testDSNEnv points the repository tests at a disposable Postgres database.
const testDSNEnv = "RECEIVABLES_TEST_PG_DSN"

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, dsn, 16)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = migrations.Up(ctx, pool, nil)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `TRUNCATE receivable_movements, receivable_payments, receivable_accounts, receivable_clients RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

func requireStoredRollup(t *testing.T, pool *pgxpool.Pool, clientID int64) {
	t.Helper()
	var debt, sum int64
	err := pool.QueryRow(context.Background(), `
SELECT c.current_debt, COALESCE(SUM(a.current_balance) FILTER (WHERE a.phase <> 'PAID'), 0)
FROM receivable_clients c LEFT JOIN receivable_accounts a ON a.client_id = c.id
WHERE c.id = $1 GROUP BY c.current_debt`, clientID).Scan(&debt, &sum)
	require.NoError(t, err)
	require.Equal(t, sum, debt)
}

func TestRepositorySiblingPaymentsAllCommit(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	now := time.Now().UTC()
	svc := NewService(NewRepository(pool), ServiceConfig{Clock: func() time.Time { return now }})

	client, err := svc.RegisterClient(ctx, ClientInput{BusinessName: "Toko Sejahtera", CreditLimit: 100000})
	require.NoError(t, err)
	var accounts []*Account
	for i := 0; i < 4; i++ {
		acct, err := svc.IssueAccount(ctx, AccountInput{ClientID: client.ID, OriginalAmount: 1000, DueDate: now.AddDate(0, 0, 10)})
		require.NoError(t, err)
		accounts = append(accounts, acct)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(accounts)*2)
	for _, acct := range accounts {
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				_, err := svc.ApplyPayment(ctx, PaymentInput{AccountID: id, Amount: 250})
				errs <- err
			}(acct.ID)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := svc.GetClient(ctx, client.ID)
	require.NoError(t, err)
	require.Equal(t, Money(2000), got.CurrentDebt)
	requireStoredRollup(t, pool, client.ID)
}

func TestRepositoryRejectedPaymentLeavesNoTrace(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	now := time.Now().UTC()
	repo := NewRepository(pool)
	svc := NewService(repo, ServiceConfig{Clock: func() time.Time { return now }})

	client, err := svc.RegisterClient(ctx, ClientInput{BusinessName: "CV Lancar", CreditLimit: 5000})
	require.NoError(t, err)
	acct, err := svc.IssueAccount(ctx, AccountInput{ClientID: client.ID, OriginalAmount: 1000, DueDate: now.AddDate(0, 0, -5)})
	require.NoError(t, err)

	_, err = svc.ApplyPayment(ctx, PaymentInput{AccountID: acct.ID, Amount: 1500})
	require.ErrorIs(t, err, ErrOverpayment)

	stored, err := repo.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, Money(1000), stored.CurrentBalance)
	payments, err := repo.ListPayments(ctx, acct.ID)
	require.NoError(t, err)
	require.Empty(t, payments)

	paid, err := svc.ApplyPayment(ctx, PaymentInput{AccountID: acct.ID, Amount: 1000})
	require.NoError(t, err)
	require.Equal(t, AccountPaid, paid.Status)
	_, err = svc.ApplyPayment(ctx, PaymentInput{AccountID: acct.ID, Amount: 1})
	require.ErrorIs(t, err, ErrAccountClosed)

	got, err := svc.GetClient(ctx, client.ID)
	require.NoError(t, err)
	require.Equal(t, Money(0), got.CurrentDebt)
	require.Equal(t, ClientActive, got.Status)
	requireStoredRollup(t, pool, client.ID)
}

func TestRepositoryRecordMovementOncePerPayment(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	repo := NewRepository(pool)

	event := PaymentApplied{
		EventID:    "0b7e8a4e-2f0c-4d7e-9a53-4d7a5c1f0c01",
		PaymentID:  "6f1f6a52-8b1e-4e43-9b8e-2d8f2b6c3a10",
		AccountID:  1,
		ClientID:   1,
		Amount:     100,
		Method:     MethodCash,
		Status:     AccountPartial,
		OccurredAt: time.Now().UTC(),
	}
	require.NoError(t, repo.RecordMovement(ctx, event))
	event.EventID = "1c2d3e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f"
	require.NoError(t, repo.RecordMovement(ctx, event))

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM receivable_movements`).Scan(&count))
	require.Equal(t, 1, count)
}
