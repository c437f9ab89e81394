package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"settle/internal/core"
	"settle/internal/log"
	"settle/internal/report"
	"settle/internal/settlement"
	"settle/internal/sheets"
)

// Publisher sends the payment requests of a report somewhere.
type Publisher interface {
	PublishReport(ctx context.Context, r report.Report) (int, error)
}

// ErrNoPublisher is returned by Publish when no AMQP client is configured.
var ErrNoPublisher = errors.New("no payment-request publisher configured")

// SettleService reads a period's ledger, settles it and formats the result.
type SettleService struct {
	source    sheets.Source
	formatter report.Formatter
	publisher Publisher
	metrics   *Metrics
	logger    *log.Logger
}

// NewSettleService wires a service. publisher may be nil; metrics and logger
// default to unregistered collectors and a discarding logger.
func NewSettleService(source sheets.Source, formatter report.Formatter, publisher Publisher, metrics *Metrics, logger *log.Logger) *SettleService {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SettleService{
		source:    source,
		formatter: formatter,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.WithComponent(log.ComponentSettlement),
	}
}

func (s *SettleService) observe(op string, start time.Time) {
	s.metrics.SourceDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Periods lists the periods available in the source, ascending.
func (s *SettleService) Periods(ctx context.Context) ([]core.Period, error) {
	defer s.observe(log.OpList, time.Now())
	periods, err := s.source.ListPeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	return periods, nil
}

// ResolvePeriod returns requested, or the latest period when requested is 0.
func (s *SettleService) ResolvePeriod(ctx context.Context, requested core.Period) (core.Period, error) {
	if requested != 0 {
		return requested, requested.Validate()
	}
	periods, err := s.Periods(ctx)
	if err != nil {
		return 0, err
	}
	return sheets.Latest(periods)
}

// Run settles one period (0 means latest) and returns the report.
func (s *SettleService) Run(ctx context.Context, requested core.Period) (report.Report, error) {
	period, err := s.ResolvePeriod(ctx, requested)
	if err != nil {
		return report.Report{}, s.fail(ctx, requested, err)
	}

	ledger, err := s.readLedger(ctx, period)
	if err != nil {
		return report.Report{}, s.fail(ctx, period, err)
	}

	txs, err := settlement.Settle(ledger)
	if err != nil {
		return report.Report{}, s.fail(ctx, period, err)
	}

	handles, err := s.readHandles(ctx)
	if err != nil {
		// handles only decorate the output
		s.logger.WarnContext(ctx, "Reading payment handles failed, continuing without them",
			log.NewFields().WithError(err, classify(err)).ToSlice()...)
		handles = nil
	}

	r := s.formatter.Build(period, txs, handles)
	s.metrics.Runs.WithLabelValues(OutcomeOK).Inc()
	s.metrics.Transactions.Add(float64(len(txs)))
	s.logger.InfoContext(ctx, "Settlement completed",
		log.NewFields().
			WithRunID(r.RunID).
			WithLedger(period, ledger).
			WithTransactions(len(txs)).
			WithOperation(log.OpSettle).
			ToSlice()...)
	return r, nil
}

func (s *SettleService) readLedger(ctx context.Context, period core.Period) (core.Ledger, error) {
	defer s.observe(log.OpRead, time.Now())
	ledger, err := s.source.ReadLedger(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("read ledger for period %d: %w", period, err)
	}
	return ledger, nil
}

func (s *SettleService) readHandles(ctx context.Context) (map[string]string, error) {
	defer s.observe("read_handles", time.Now())
	return s.source.ReadHandles(ctx)
}

// Publish sends r's payment requests through the configured publisher.
func (s *SettleService) Publish(ctx context.Context, r report.Report) (int, error) {
	if s.publisher == nil {
		return 0, ErrNoPublisher
	}
	n, err := s.publisher.PublishReport(ctx, r)
	s.metrics.Published.Add(float64(n))
	if err != nil {
		s.logger.ErrorContext(ctx, "Publishing payment requests failed",
			log.NewFields().WithRunID(r.RunID).WithError(err, log.ErrorTypeNetwork).WithOperation(log.OpPublish).ToSlice()...)
		return n, fmt.Errorf("publish payment requests: %w", err)
	}
	return n, nil
}

func (s *SettleService) fail(ctx context.Context, period core.Period, err error) error {
	s.metrics.Runs.WithLabelValues(Outcome(err)).Inc()
	fields := log.NewFields().WithError(err, classify(err)).WithOperation(log.OpSettle)
	fields[log.FieldPeriod] = int(period)
	if errors.Is(err, settlement.ErrUnsettledLedger) {
		s.logger.ErrorContext(ctx, "Settlement left balances open", fields.ToSlice()...)
	} else {
		s.logger.WarnContext(ctx, "Settlement failed", fields.ToSlice()...)
	}
	return err
}

// Outcome maps a Run error to its settle_runs_total label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, settlement.ErrImbalancedLedger):
		return OutcomeImbalanced
	case errors.Is(err, sheets.ErrPeriodNotFound), errors.Is(err, core.ErrInvalidPeriod):
		return OutcomeNotFound
	case errors.Is(err, settlement.ErrUnsettledLedger):
		return OutcomeUnsettled
	default:
		return OutcomeSourceError
	}
}

func classify(err error) string {
	switch Outcome(err) {
	case OutcomeImbalanced:
		return log.ErrorTypeValidation
	case OutcomeNotFound:
		return log.ErrorTypeNotFound
	case OutcomeUnsettled:
		return log.ErrorTypeInternal
	default:
		return log.ErrorTypeNetwork
	}
}
