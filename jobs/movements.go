package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-receivables/internal/jobs"
	"github.com/odyssey-erp/odyssey-receivables/internal/receivables"
	"github.com/odyssey-erp/odyssey-receivables/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const movementActor = "receivables-worker"

// MovementStore appends payment events to the movements log.
type MovementStore interface {
	RecordMovement(ctx context.Context, event receivables.PaymentApplied) error
}

// AuditRecorder writes audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MovementJob consumes payment events published by the receivables service.
type MovementJob struct {
	Store   MovementStore
	Audit   AuditRecorder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewMovementJob wires the movements log handler. audit may be nil.
func NewMovementJob(store MovementStore, audit AuditRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *MovementJob {
	return &MovementJob{Store: store, Audit: audit, Logger: logger, Metrics: metrics}
}

// Handle records one payment movement.
func (j *MovementJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("payment movement: handler not configured")
	}
	var event receivables.PaymentApplied
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return fmt.Errorf("payment movement: decode: %v: %w", err, asynq.SkipRetry)
	}
	if event.PaymentID == "" || event.AccountID == 0 {
		return fmt.Errorf("payment movement: incomplete event: %w", asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskPaymentApplied)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.String("payment_id", event.PaymentID),
		slog.Int64("account_id", event.AccountID),
	)
	if err := j.Store.RecordMovement(ctx, event); err != nil {
		resultErr = err
		logger.Error("record movement", slog.Any("error", err))
		return resultErr
	}
	if j.Audit != nil {
		entry := shared.AuditLog{
			Actor:    movementActor,
			Action:   "payment.applied",
			Entity:   "receivable_account",
			EntityID: strconv.FormatInt(event.AccountID, 10),
			Meta: map[string]any{
				"payment_id":    event.PaymentID,
				"client_id":     event.ClientID,
				"amount":        int64(event.Amount),
				"method":        string(event.Method),
				"balance_after": int64(event.BalanceAfter),
				"status":        string(event.Status),
			},
			At: event.OccurredAt,
		}
		// audit failures never fail the task
		if err := j.Audit.Record(ctx, entry); err != nil {
			logger.Warn("audit payment movement", slog.Any("error", err))
		}
	}
	logger.Debug("movement recorded", slog.String("status", string(event.Status)))
	return resultErr
}

func (j *MovementJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPaymentApplied))
	}
	return slog.Default().With(slog.String("job", TaskPaymentApplied))
}

func (j *MovementJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
