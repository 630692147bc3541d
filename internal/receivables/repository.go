package receivables

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-receivables/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for receivables.
//
// Writes lock the client row before the account row so that concurrent
// payments against sibling accounts serialise on the debt rollup.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanClient(row rowScanner) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.BusinessName, &c.CreditLimit, &c.CurrentDebt, &c.Status, &c.Inactive, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	return c, err
}

func scanAccount(row rowScanner) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.ClientID, &a.Reference, &a.OriginalAmount, &a.CurrentBalance, &a.DueDate, &a.Phase, &a.PaidAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	a.DueDate = DateOf(a.DueDate)
	a.Status = a.Phase
	return a, err
}

func queryAccounts(ctx context.Context, q querier, sql string, args ...any) ([]Account, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

// CreateClient inserts a client record.
func (r *Repository) CreateClient(ctx context.Context, client Client) (*Client, error) {
	created, err := scanClient(r.pool.QueryRow(ctx, insertClientSQL, client.BusinessName, client.CreditLimit, ClientActive, client.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("receivables: insert client: %w", err)
	}
	return &created, nil
}

// UpdateClient applies fn to the locked client and refreshes its rollup.
func (r *Repository) UpdateClient(ctx context.Context, id int64, now time.Time, fn func(*Client) error) (*Client, error) {
	var out Client
	err := db.WithWriteTx(ctx, r.pool, func(tx pgx.Tx) error {
		client, err := scanClient(tx.QueryRow(ctx, selectClientForUpdateSQL, id))
		if err != nil {
			return err
		}
		if err := fn(&client); err != nil {
			return err
		}
		accounts, err := queryAccounts(ctx, tx, listClientAccountsSQL, id)
		if err != nil {
			return err
		}
		out = RecomputeDebt(client, accounts, now)
		out.UpdatedAt = now
		_, err = tx.Exec(ctx, updateClientSQL, out.ID, out.BusinessName, out.CreditLimit, out.Inactive, out.CurrentDebt, out.Status, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetClientAccounts reads a client and its accounts from one snapshot.
func (r *Repository) GetClientAccounts(ctx context.Context, clientID int64) (*Client, []Account, error) {
	var (
		client   Client
		accounts []Account
	)
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		client, err = scanClient(tx.QueryRow(ctx, selectClientSQL, clientID))
		if err != nil {
			return err
		}
		accounts, err = queryAccounts(ctx, tx, listClientAccountsSQL, clientID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &client, accounts, nil
}

// CreateAccount inserts an account and refreshes the client's rollup.
func (r *Repository) CreateAccount(ctx context.Context, account Account, now time.Time) (*Account, *Client, error) {
	var (
		created Account
		rolled  Client
	)
	err := db.WithWriteTx(ctx, r.pool, func(tx pgx.Tx) error {
		client, err := scanClient(tx.QueryRow(ctx, selectClientForUpdateSQL, account.ClientID))
		if err != nil {
			return err
		}
		created, err = scanAccount(tx.QueryRow(ctx, insertAccountSQL,
			account.ClientID, account.Reference, account.OriginalAmount, account.DueDate, account.Phase, now))
		if err != nil {
			return fmt.Errorf("receivables: insert account: %w", err)
		}
		rolled, err = r.refreshDebt(ctx, tx, client, now)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &created, &rolled, nil
}

// GetAccount fetches one account.
func (r *Repository) GetAccount(ctx context.Context, id int64) (*Account, error) {
	acct, err := scanAccount(r.pool.QueryRow(ctx, selectAccountSQL, id))
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// ListAccounts lists accounts, optionally for one client.
func (r *Repository) ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error) {
	if filter.ClientID != 0 {
		return queryAccounts(ctx, r.pool, listClientAccountsSQL, filter.ClientID)
	}
	return queryAccounts(ctx, r.pool, listAccountsSQL)
}

// ApplyPayment runs the state machine on the locked account, records the payment
// and refreshes the client's rollup inside one transaction.
func (r *Repository) ApplyPayment(ctx context.Context, payment Payment, now time.Time) (*Account, *Client, error) {
	var (
		acct   Account
		rolled Client
	)
	err := db.WithWriteTx(ctx, r.pool, func(tx pgx.Tx) error {
		var clientID int64
		if err := tx.QueryRow(ctx, selectAccountClientSQL, payment.AccountID).Scan(&clientID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		client, err := scanClient(tx.QueryRow(ctx, selectClientForUpdateSQL, clientID))
		if err != nil {
			return err
		}
		acct, err = scanAccount(tx.QueryRow(ctx, selectAccountForUpdateSQL, payment.AccountID))
		if err != nil {
			return err
		}
		if err := acct.ApplyPayment(payment.Amount, payment.Timestamp, now); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, updateAccountBalanceSQL, acct.ID, acct.CurrentBalance, acct.Phase, acct.PaidAt, acct.UpdatedAt); err != nil {
			return fmt.Errorf("receivables: update account: %w", err)
		}
		if _, err := tx.Exec(ctx, insertPaymentSQL, payment.ID, payment.AccountID, payment.Amount, payment.Method, payment.Timestamp, now); err != nil {
			return fmt.Errorf("receivables: insert payment: %w", err)
		}
		rolled, err = r.refreshDebt(ctx, tx, client, now)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	acct = acct.Evaluate(now)
	return &acct, &rolled, nil
}

// ListPayments returns an account's payments in the order they were made.
func (r *Repository) ListPayments(ctx context.Context, accountID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, listPaymentsSQL, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.AccountID, &p.Amount, &p.Method, &p.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Snapshot reads every client and account inside one repeatable-read transaction.
func (r *Repository) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, listClientsSQL)
		if err != nil {
			return err
		}
		for rows.Next() {
			c, err := scanClient(rows)
			if err != nil {
				rows.Close()
				return err
			}
			snap.Clients = append(snap.Clients, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		snap.Accounts, err = queryAccounts(ctx, tx, listAccountsSQL)
		return err
	})
	return snap, err
}

// RecordMovement appends a payment event to the movements log. Replays of the
// same payment are ignored.
func (r *Repository) RecordMovement(ctx context.Context, event PaymentApplied) error {
	_, err := r.pool.Exec(ctx, insertMovementSQL,
		event.EventID, event.PaymentID, event.AccountID, event.ClientID, event.Amount, event.Method,
		event.BalanceAfter, event.Status, event.ClientDebt, event.ClientStatus, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("receivables: record movement: %w", err)
	}
	return nil
}

func (r *Repository) refreshDebt(ctx context.Context, tx pgx.Tx, client Client, now time.Time) (Client, error) {
	accounts, err := queryAccounts(ctx, tx, listClientAccountsSQL, client.ID)
	if err != nil {
		return Client{}, err
	}
	rolled := RecomputeDebt(client, accounts, now)
	rolled.UpdatedAt = now
	if _, err := tx.Exec(ctx, updateClientDebtSQL, rolled.ID, rolled.CurrentDebt, rolled.Status, now); err != nil {
		return Client{}, fmt.Errorf("receivables: update client debt: %w", err)
	}
	return rolled, nil
}
