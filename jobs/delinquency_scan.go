package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/odyssey-erp/odyssey-receivables/internal/jobs"
	"github.com/odyssey-erp/odyssey-receivables/internal/receivables"
)

// ReportSource builds the receivables reports a scan summarises.
type ReportSource interface {
	DelinquencyReport(ctx context.Context, asOf time.Time) (receivables.DelinquencyReport, error)
	AgingReport(ctx context.Context, asOf time.Time) (receivables.AgingReport, error)
}

// DelinquencyGauges receives the scan results.
type DelinquencyGauges interface {
	SetOverdue(tier string, amount float64)
	SetDelinquentClients(n int)
}

// DelinquencyScanJob refreshes delinquency gauges and logs high-risk clients.
type DelinquencyScanJob struct {
	Reports ReportSource
	Gauges  DelinquencyGauges
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// ScanResult summarises one scan run.
type ScanResult struct {
	AsOf         time.Time
	Delinquent   int
	TotalOverdue receivables.Money
	ByTier       map[receivables.RiskTier]int
}

// NewDelinquencyScanJob initialises the scan handler. gauges may be nil.
func NewDelinquencyScanJob(reports ReportSource, gauges DelinquencyGauges, logger *slog.Logger, metrics *jobmetrics.Metrics) *DelinquencyScanJob {
	return &DelinquencyScanJob{
		Reports: reports,
		Gauges:  gauges,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes a scan task.
func (j *DelinquencyScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("delinquency scan: handler not configured")
	}
	var payload DelinquencyScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("delinquency scan: decode: %v: %w", err, asynq.SkipRetry)
		}
	}
	asOf := j.now()
	if payload.AsOf != "" {
		parsed, err := time.Parse(time.DateOnly, payload.AsOf)
		if err != nil {
			return fmt.Errorf("delinquency scan: as_of: %v: %w", err, asynq.SkipRetry)
		}
		asOf = parsed
	}
	_, err := j.Run(ctx, asOf)
	return err
}

// Run scans the book as of asOf.
func (j *DelinquencyScanJob) Run(ctx context.Context, asOf time.Time) (result ScanResult, resultErr error) {
	if j.Reports == nil {
		return ScanResult{}, errors.New("delinquency scan: reports not configured")
	}
	start := time.Now()
	tracker := j.metrics().Track(TaskDelinquencyScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("as_of", receivables.DateOf(asOf).Format(time.DateOnly)))
	logger.Info("starting delinquency scan")

	var (
		delinquency receivables.DelinquencyReport
		aging       receivables.AgingReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		delinquency, err = j.Reports.DelinquencyReport(gctx, asOf)
		return err
	})
	g.Go(func() error {
		var err error
		aging, err = j.Reports.AgingReport(gctx, asOf)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return ScanResult{}, err
	}

	result = ScanResult{
		AsOf:         delinquency.AsOf,
		Delinquent:   len(delinquency.Summaries),
		TotalOverdue: delinquency.TotalOverdue,
		ByTier:       make(map[receivables.RiskTier]int),
	}
	for _, s := range delinquency.Summaries {
		result.ByTier[s.RiskTier]++
		if s.RiskTier == receivables.RiskHigh {
			logger.Warn("high risk client",
				slog.Int64("client_id", s.ClientID),
				slog.String("business_name", s.BusinessName),
				slog.Int64("overdue_amount", int64(s.OverdueAmount)),
				slog.Int("overdue_days", s.OverdueDays),
			)
		}
	}
	for tier, n := range result.ByTier {
		j.metrics().AddFlagged(string(tier), n)
	}
	if j.Gauges != nil {
		for _, b := range aging.Buckets {
			if b.Tier == receivables.RiskNone {
				continue
			}
			j.Gauges.SetOverdue(string(b.Tier), float64(b.Amount))
		}
		j.Gauges.SetDelinquentClients(result.Delinquent)
	}

	logger.Info("completed delinquency scan",
		slog.Int("delinquent_clients", result.Delinquent),
		slog.Int64("total_overdue", int64(result.TotalOverdue)),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (j *DelinquencyScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDelinquencyScan))
	}
	return slog.Default().With(slog.String("job", TaskDelinquencyScan))
}

func (j *DelinquencyScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *DelinquencyScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
