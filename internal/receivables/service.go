package receivables

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-receivables/internal/shared"
)

// RepositoryPort defines data access methods for receivables. Implementations
// must apply each write together with the owning client's debt recomputation.
type RepositoryPort interface {
	CreateClient(ctx context.Context, client Client) (*Client, error)
	UpdateClient(ctx context.Context, id int64, now time.Time, fn func(*Client) error) (*Client, error)
	// GetClientAccounts returns the client and its accounts read together.
	GetClientAccounts(ctx context.Context, clientID int64) (*Client, []Account, error)
	CreateAccount(ctx context.Context, account Account, now time.Time) (*Account, *Client, error)
	GetAccount(ctx context.Context, id int64) (*Account, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error)
	// ApplyPayment locks the account, runs the state machine, records the payment
	// and recomputes the client's debt in one unit.
	ApplyPayment(ctx context.Context, payment Payment, now time.Time) (*Account, *Client, error)
	ListPayments(ctx context.Context, accountID int64) ([]Payment, error)
	Snapshot(ctx context.Context) (Snapshot, error)
}

// EventPublisher forwards payment events to the movements log.
type EventPublisher interface {
	PublishPaymentApplied(ctx context.Context, event PaymentApplied) error
}

// IdempotencyGuard rejects repeated submission keys.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// MetricsRecorder receives payment outcomes.
type MetricsRecorder interface {
	ObservePayment(method string, amount float64)
	ObserveRejection(reason string)
}

// ServiceConfig carries optional collaborators. A nil Locker, Idempotency,
// Logger or Clock falls back to an in-process default; a nil Cache, Events or
// Metrics disables that concern.
type ServiceConfig struct {
	Locker      Locker
	Cache       *ReportCache
	Events      EventPublisher
	Idempotency IdempotencyGuard
	Metrics     MetricsRecorder
	Logger      *slog.Logger
	Clock       func() time.Time
}

const idempotencyModule = "receivables.payment"

// Service handles receivables business logic.
type Service struct {
	repo        RepositoryPort
	locker      Locker
	cache       *ReportCache
	events      EventPublisher
	idempotency IdempotencyGuard
	metrics     MetricsRecorder
	logger      *slog.Logger
	clock       func() time.Time
	reports     singleflight.Group
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, cfg ServiceConfig) *Service {
	s := &Service{
		repo:        repo,
		locker:      cfg.Locker,
		cache:       cfg.Cache,
		events:      cfg.Events,
		idempotency: cfg.Idempotency,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		clock:       cfg.Clock,
	}
	if s.locker == nil {
		s.locker = NewLocalLocker()
	}
	if s.idempotency == nil {
		s.idempotency = shared.NewMemoryIdempotencyStore()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Now returns the service clock reading.
func (s *Service) Now() time.Time {
	return s.clock()
}

// RegisterClient creates a client record.
func (s *Service) RegisterClient(ctx context.Context, input ClientInput) (*Client, error) {
	client, err := NewClient(input, s.clock())
	if err != nil {
		return nil, err
	}
	created, err := s.repo.CreateClient(ctx, client)
	if err != nil {
		return nil, err
	}
	s.bumpCache(ctx)
	return created, nil
}

// UpdateClient changes the business name, credit limit or inactive flag.
func (s *Service) UpdateClient(ctx context.Context, id int64, update ClientUpdate) (*Client, error) {
	updated, err := s.repo.UpdateClient(ctx, id, s.clock(), update.Apply)
	if err != nil {
		return nil, err
	}
	s.bumpCache(ctx)
	return updated, nil
}

// GetClient returns the client with debt and status derived at the current time.
func (s *Service) GetClient(ctx context.Context, id int64) (*Client, error) {
	client, accounts, err := s.repo.GetClientAccounts(ctx, id)
	if err != nil {
		return nil, err
	}
	rolled := RecomputeDebt(*client, accounts, s.clock())
	return &rolled, nil
}

// CheckCredit tells a sale-entry flow whether a new credit sale may go ahead.
func (s *Service) CheckCredit(ctx context.Context, clientID int64, amount Money) (CreditDecision, error) {
	if amount < 0 {
		return CreditDecision{}, ErrInvalidAmount
	}
	client, err := s.GetClient(ctx, clientID)
	if err != nil {
		return CreditDecision{}, err
	}
	return DecideCredit(*client, amount), nil
}

// IssueAccount opens a PENDING receivable account for a credit sale or invoice.
func (s *Service) IssueAccount(ctx context.Context, input AccountInput) (*Account, error) {
	now := s.clock()
	account, err := NewAccount(input, now)
	if err != nil {
		return nil, err
	}
	created, client, err := s.repo.CreateAccount(ctx, account, now)
	if err != nil {
		return nil, err
	}
	s.logger.Info("receivable account issued",
		slog.Int64("account_id", created.ID),
		slog.Int64("client_id", client.ID),
		slog.Int64("amount", int64(created.OriginalAmount)),
		slog.String("client_status", string(client.Status)),
	)
	s.bumpCache(ctx)
	evaluated := created.Evaluate(now)
	return &evaluated, nil
}

// GetAccount returns an account with its status evaluated now.
func (s *Service) GetAccount(ctx context.Context, id int64) (*Account, error) {
	acct, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	evaluated := acct.Evaluate(s.clock())
	return &evaluated, nil
}

// ListAccounts lists accounts, filtering on the status evaluated now.
func (s *Service) ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("receivables: unknown status %q", filter.Status)
	}
	accounts, err := s.repo.ListAccounts(ctx, AccountFilter{ClientID: filter.ClientID})
	if err != nil {
		return nil, err
	}
	now := s.clock()
	out := make([]Account, 0, len(accounts))
	for _, acct := range accounts {
		acct = acct.Evaluate(now)
		if filter.Status != "" && acct.Status != filter.Status {
			continue
		}
		out = append(out, acct)
	}
	return out, nil
}

// ListPayments returns the payment history of an account.
func (s *Service) ListPayments(ctx context.Context, accountID int64) ([]Payment, error) {
	if _, err := s.repo.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, accountID)
}

// ApplyPayment applies a payment to an account. Only one payment per account is
// in flight at a time; a second caller blocks until the first commits.
func (s *Service) ApplyPayment(ctx context.Context, input PaymentInput) (*Account, error) {
	acct, err := s.applyPayment(ctx, input)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveRejection(RejectionReason(err))
		}
		return nil, err
	}
	return acct, nil
}

func (s *Service) applyPayment(ctx context.Context, input PaymentInput) (*Account, error) {
	if input.AccountID == 0 {
		return nil, ErrNotFound
	}
	if input.Method == "" {
		input.Method = MethodCash
	}
	if !validMethod(input.Method) {
		return nil, ErrInvalidMethod
	}
	now := s.clock()
	if input.Timestamp.IsZero() {
		input.Timestamp = now
	}

	if input.IdempotencyKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil, ErrDuplicateEntry
			}
			return nil, fmt.Errorf("receivables: idempotency check: %w", err)
		}
	}

	unlock, err := s.locker.Lock(ctx, input.AccountID)
	if err != nil {
		s.releaseKey(ctx, input.IdempotencyKey)
		return nil, err
	}
	payment := Payment{
		ID:        uuid.NewString(),
		AccountID: input.AccountID,
		Amount:    input.Amount,
		Method:    input.Method,
		Timestamp: input.Timestamp,
	}
	acct, client, err := s.repo.ApplyPayment(ctx, payment, now)
	unlock()
	if err != nil {
		s.releaseKey(ctx, input.IdempotencyKey)
		return nil, err
	}

	s.logger.Info("payment applied",
		slog.String("payment_id", payment.ID),
		slog.Int64("account_id", acct.ID),
		slog.Int64("client_id", client.ID),
		slog.Int64("amount", int64(payment.Amount)),
		slog.Int64("balance", int64(acct.CurrentBalance)),
		slog.String("status", string(acct.Status)),
	)
	if s.metrics != nil {
		s.metrics.ObservePayment(string(payment.Method), float64(payment.Amount))
	}
	s.bumpCache(ctx)
	s.publish(ctx, PaymentApplied{
		EventID:      uuid.NewString(),
		PaymentID:    payment.ID,
		AccountID:    acct.ID,
		ClientID:     client.ID,
		Amount:       payment.Amount,
		Method:       payment.Method,
		BalanceAfter: acct.CurrentBalance,
		Status:       acct.Status,
		ClientDebt:   client.CurrentDebt,
		ClientStatus: client.Status,
		OccurredAt:   payment.Timestamp,
	})
	return acct, nil
}

// DelinquencyReport ranks delinquent clients as of asOf. A zero asOf means now.
// Concurrent requests for the same date share one build, which runs detached
// from the first caller's cancellation.
func (s *Service) DelinquencyReport(ctx context.Context, asOf time.Time) (DelinquencyReport, error) {
	if asOf.IsZero() {
		asOf = s.clock()
	}
	date := DateOf(asOf).Format(time.DateOnly)
	v, err, _ := s.reports.Do("delinquency:"+date, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		key, err := s.cache.BuildKey(ctx, "receivables", "delinquency", date)
		if err != nil {
			return nil, err
		}
		var report DelinquencyReport
		err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (any, error) {
			snap, err := s.repo.Snapshot(ctx)
			if err != nil {
				return nil, err
			}
			return BuildDelinquencyReport(snap, asOf), nil
		})
		return report, err
	})
	if err != nil {
		return DelinquencyReport{}, err
	}
	return v.(DelinquencyReport), nil
}

// AgingReport totals the open book per risk tier as of asOf.
func (s *Service) AgingReport(ctx context.Context, asOf time.Time) (AgingReport, error) {
	if asOf.IsZero() {
		asOf = s.clock()
	}
	date := DateOf(asOf).Format(time.DateOnly)
	v, err, _ := s.reports.Do("aging:"+date, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		key, err := s.cache.BuildKey(ctx, "receivables", "aging", date)
		if err != nil {
			return nil, err
		}
		var report AgingReport
		err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (any, error) {
			snap, err := s.repo.Snapshot(ctx)
			if err != nil {
				return nil, err
			}
			return BuildAgingReport(snap.Accounts, asOf), nil
		})
		return report, err
	})
	if err != nil {
		return AgingReport{}, err
	}
	return v.(AgingReport), nil
}

func (s *Service) publish(ctx context.Context, event PaymentApplied) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishPaymentApplied(ctx, event); err != nil {
		s.logger.Warn("publish payment applied",
			slog.String("payment_id", event.PaymentID),
			slog.Any("error", err),
		)
	}
}

func (s *Service) bumpCache(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump report cache", slog.Any("error", err))
	}
}

func (s *Service) releaseKey(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.idempotency.Delete(ctx, key); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

func validMethod(m PaymentMethod) bool {
	switch m {
	case MethodCash, MethodTransfer, MethodCard, MethodCheck:
		return true
	}
	return false
}
