package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"settle/internal/log"
	"settle/internal/sheets"
)

// Syncer copies a whole source into local storage and reports how many
// periods it wrote. *storage.SQLiteRepository implements it.
type Syncer interface {
	SyncFrom(ctx context.Context, src sheets.Source) (int, error)
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often the spreadsheet is mirrored (default: 5m)
	PollInterval time.Duration

	// MaxRetries is how many consecutive failures are logged as warnings
	// before escalating to errors (default: 3)
	MaxRetries int
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 5 * time.Minute,
		MaxRetries:   3,
	}
}

// SyncProcessor periodically mirrors a remote ledger source into local
// storage.
type SyncProcessor struct {
	target   Syncer
	source   sheets.Source
	config   SyncProcessorConfig
	logger   *log.Logger
	onSynced func(periods int)

	mu       sync.Mutex
	running  bool
	failures int
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSyncProcessor creates a new sync processor. onSynced, when non-nil,
// runs after every successful pass.
func NewSyncProcessor(target Syncer, source sheets.Source, config SyncProcessorConfig, logger *log.Logger, onSynced func(periods int)) *SyncProcessor {
	if logger == nil {
		logger = log.Discard()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	return &SyncProcessor{
		target:   target,
		source:   source,
		config:   config,
		logger:   logger.WithComponent(log.ComponentStorage),
		onSynced: onSynced,
	}
}

// RunOnce performs a single sync pass.
func (p *SyncProcessor) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := p.target.SyncFrom(ctx, p.source)

	p.mu.Lock()
	if err != nil {
		p.failures++
	} else {
		p.failures = 0
	}
	failures := p.failures
	p.mu.Unlock()

	if err != nil {
		fields := log.NewFields().WithError(err, log.ErrorTypeNetwork).WithOperation(log.OpSync)
		if failures > p.config.MaxRetries {
			p.logger.ErrorContext(ctx, "Sync keeps failing", append(fields.ToSlice(), "consecutive_failures", failures)...)
		} else {
			p.logger.WarnContext(ctx, "Sync failed", append(fields.ToSlice(), "consecutive_failures", failures)...)
		}
		return n, fmt.Errorf("sync: %w", err)
	}

	p.logger.InfoContext(ctx, "Sync completed",
		"periods", n,
		log.FieldDuration, time.Since(start).Milliseconds())
	if p.onSynced != nil {
		p.onSynced(n)
	}
	return n, nil
}

// Start begins the polling loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Sync processor started", "poll_interval", p.config.PollInterval)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// first pass runs immediately
	p.RunOnce(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}
