package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/odyssey-receivables/internal/jobs"
	"github.com/odyssey-erp/odyssey-receivables/internal/receivables"
	"github.com/odyssey-erp/odyssey-receivables/internal/shared"
)

var scanNow = time.Date(2026, 3, 15, 2, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type auditSpy struct {
	entries []shared.AuditLog
	err     error
}

func (a *auditSpy) Record(_ context.Context, log shared.AuditLog) error {
	a.entries = append(a.entries, log)
	return a.err
}

type failingStore struct{}

func (failingStore) RecordMovement(context.Context, receivables.PaymentApplied) error {
	return errors.New("db down")
}

func paymentEvent(id string) receivables.PaymentApplied {
	return receivables.PaymentApplied{
		EventID:      "evt-" + id,
		PaymentID:    id,
		AccountID:    7,
		ClientID:     3,
		Amount:       250,
		Method:       receivables.MethodTransfer,
		BalanceAfter: 750,
		Status:       receivables.AccountPartial,
		OccurredAt:   scanNow,
	}
}

func TestPaymentAppliedTaskCarriesEvent(t *testing.T) {
	task, err := NewPaymentAppliedTask(paymentEvent("p-1"))
	require.NoError(t, err)
	require.Equal(t, TaskPaymentApplied, task.Type())

	var decoded receivables.PaymentApplied
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	require.Equal(t, "p-1", decoded.PaymentID)
	require.Equal(t, receivables.Money(750), decoded.BalanceAfter)
}

func TestMovementJobRecordsOncePerPayment(t *testing.T) {
	store := receivables.NewMemoryStore()
	audit := &auditSpy{}
	job := NewMovementJob(store, audit, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewPaymentAppliedTask(paymentEvent("p-1"))
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, store.Movements(), 1)
	require.Len(t, audit.entries, 2)
	require.Equal(t, "7", audit.entries[0].EntityID)
	require.Equal(t, "payment.applied", audit.entries[0].Action)
	require.Equal(t, scanNow, audit.entries[0].At)
}

func TestMovementJobAuditFailureDoesNotRetry(t *testing.T) {
	store := receivables.NewMemoryStore()
	job := NewMovementJob(store, &auditSpy{err: errors.New("audit down")}, quietLogger(), nil)

	task, err := NewPaymentAppliedTask(paymentEvent("p-2"))
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, store.Movements(), 1)
}

func TestMovementJobErrors(t *testing.T) {
	job := NewMovementJob(failingStore{}, nil, quietLogger(), nil)
	task, err := NewPaymentAppliedTask(paymentEvent("p-3"))
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	require.False(t, errors.Is(err, asynq.SkipRetry))

	bad := asynq.NewTask(TaskPaymentApplied, []byte("{"))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)

	empty := asynq.NewTask(TaskPaymentApplied, []byte(`{}`))
	require.ErrorIs(t, job.Handle(context.Background(), empty), asynq.SkipRetry)
}

type gaugeSpy struct {
	overdue    map[string]float64
	delinquent int
}

func (g *gaugeSpy) SetOverdue(tier string, amount float64) { g.overdue[tier] = amount }
func (g *gaugeSpy) SetDelinquentClients(n int) { g.delinquent = n }

func seedBook(t *testing.T) *receivables.Service {
	t.Helper()
	svc := receivables.NewService(receivables.NewMemoryStore(), receivables.ServiceConfig{
		Logger: quietLogger(),
		Clock:  func() time.Time { return scanNow },
	})
	ctx := context.Background()
	book := []struct {
		name    string
		amount  receivables.Money
		pastDue int
	}{
		{"Toko Lama", 900, 75},
		{"Toko Sedang", 400, 40},
		{"Toko Baru", 300, -10},
	}
	for _, entry := range book {
		c, err := svc.RegisterClient(ctx, receivables.ClientInput{BusinessName: entry.name, CreditLimit: 10000})
		require.NoError(t, err)
		_, err = svc.IssueAccount(ctx, receivables.AccountInput{
			ClientID:       c.ID,
			OriginalAmount: entry.amount,
			DueDate:        scanNow.AddDate(0, 0, -entry.pastDue),
		})
		require.NoError(t, err)
	}
	return svc
}

func TestDelinquencyScanSetsGauges(t *testing.T) {
	gauges := &gaugeSpy{overdue: map[string]float64{}}
	job := NewDelinquencyScanJob(seedBook(t), gauges, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	result, err := job.Run(context.Background(), scanNow)
	require.NoError(t, err)
	require.Equal(t, 2, result.Delinquent)
	require.Equal(t, receivables.Money(1300), result.TotalOverdue)
	require.Equal(t, 1, result.ByTier[receivables.RiskHigh])
	require.Equal(t, 1, result.ByTier[receivables.RiskMedium])

	require.Equal(t, 2, gauges.delinquent)
	require.Equal(t, float64(900), gauges.overdue["HIGH"])
	require.Equal(t, float64(400), gauges.overdue["MEDIUM"])
	require.Equal(t, float64(0), gauges.overdue["LOW"])
	require.NotContains(t, gauges.overdue, "NONE")
}

func TestDelinquencyScanHandlePayload(t *testing.T) {
	gauges := &gaugeSpy{overdue: map[string]float64{}}
	job := NewDelinquencyScanJob(seedBook(t), gauges, quietLogger(), nil)
	job.clock = func() time.Time { return scanNow }

	// 50 days earlier only the oldest account is past due
	task, err := NewDelinquencyScanTask(scanNow.AddDate(0, 0, -50))
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, gauges.delinquent)
	require.Equal(t, float64(900), gauges.overdue["LOW"])

	today, err := NewDelinquencyScanTask(time.Time{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), today))
	require.Equal(t, 2, gauges.delinquent)

	bad := asynq.NewTask(TaskDelinquencyScan, []byte(`{"as_of":"15-03-2026"}`))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
}

type enqueueSpy struct {
	tasks []*asynq.Task
	err   error
}

func (e *enqueueSpy) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	e.tasks = append(e.tasks, task)
	if e.err != nil {
		return nil, e.err
	}
	return &asynq.TaskInfo{Type: task.Type(), Queue: QueueDefault}, nil
}

func (e *enqueueSpy) Close() error { return nil }

func TestClientPublishPaymentApplied(t *testing.T) {
	spy := &enqueueSpy{}
	client := &Client{client: spy}
	require.NoError(t, client.PublishPaymentApplied(context.Background(), paymentEvent("p-9")))
	require.Len(t, spy.tasks, 1)
	require.Equal(t, TaskPaymentApplied, spy.tasks[0].Type())

	spy.err = asynq.ErrTaskIDConflict
	require.NoError(t, client.PublishPaymentApplied(context.Background(), paymentEvent("p-9")))

	spy.err = errors.New("redis unavailable")
	require.Error(t, client.PublishPaymentApplied(context.Background(), paymentEvent("p-10")))
}

func TestClientEnqueueDelinquencyScan(t *testing.T) {
	spy := &enqueueSpy{}
	client := &Client{client: spy}
	_, err := client.EnqueueDelinquencyScan(context.Background(), time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, spy.tasks, 1)
	require.Equal(t, TaskDelinquencyScan, spy.tasks[0].Type())

	var payload DelinquencyScanPayload
	require.NoError(t, json.Unmarshal(spy.tasks[0].Payload(), &payload))
	require.Equal(t, "2026-03-01", payload.AsOf)
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, quietLogger()).MountRoutes)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0}`, rr.Body.String())
}

type purgerSpy struct {
	olderThan time.Duration
	err       error
}

func (p *purgerSpy) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	p.olderThan = olderThan
	return 3, p.err
}

func TestIdempotencyCleanupJob(t *testing.T) {
	spy := &purgerSpy{}
	job := &IdempotencyCleanupJob{Keys: spy, Logger: quietLogger()}
	require.NoError(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
	require.Equal(t, 72*time.Hour, spy.olderThan)

	spy.err = errors.New("db down")
	require.Error(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))

	var unset *IdempotencyCleanupJob
	require.Error(t, unset.Handle(context.Background(), NewIdempotencyCleanupTask()))
}
