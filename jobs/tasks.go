package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-receivables/internal/receivables"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPaymentApplied appends an applied payment to the movements log.
	TaskPaymentApplied = "receivables:payment_applied"
	// TaskDelinquencyScan rebuilds delinquency gauges and flags high-risk clients.
	TaskDelinquencyScan = "receivables:delinquency_scan"
)

// DelinquencyScanPayload selects the scan date. An empty AsOf scans today.
type DelinquencyScanPayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// NewPaymentAppliedTask wraps a payment event. The payment ID doubles as the
// task ID so a duplicate publish is dropped by the queue.
func NewPaymentAppliedTask(event receivables.PaymentApplied) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentApplied, data,
		asynq.TaskID("payment:"+event.PaymentID),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(10),
	), nil
}

// NewDelinquencyScanTask builds a scan task for asOf. A zero asOf scans the
// day the task runs.
func NewDelinquencyScanTask(asOf time.Time) (*asynq.Task, error) {
	payload := DelinquencyScanPayload{}
	if !asOf.IsZero() {
		payload.AsOf = asOf.Format(time.DateOnly)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDelinquencyScan, data, asynq.Queue(QueueDefault)), nil
}
