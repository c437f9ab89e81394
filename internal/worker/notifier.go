// Package worker holds the consumers that act on published payment
// requests.
package worker

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"settle/internal/amqp"
	"settle/internal/cache"
	"settle/internal/core"
	"settle/internal/log"
	"settle/internal/report"
)

// Notifier writes one line per payment request and suppresses redelivered
// duplicates for a while.
type Notifier struct {
	mu        sync.Mutex
	out       io.Writer
	formatter report.Formatter
	seen      *cache.LRUCache[string, struct{}]
	logger    *log.Logger
}

// NewNotifier remembers up to dedupeSize delivered requests for dedupeTTL.
func NewNotifier(out io.Writer, formatter report.Formatter, dedupeSize int, dedupeTTL time.Duration, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.Discard()
	}
	return &Notifier{
		out:       out,
		formatter: formatter,
		seen:      cache.NewLRUCache[string, struct{}](dedupeSize, dedupeTTL),
		logger:    logger.WithComponent(log.ComponentAMQP),
	}
}

func dedupeKey(msg *amqp.PaymentRequestMessage) string {
	return strings.Join([]string{msg.RunID, msg.Payee, msg.Payer}, "\x00")
}

// HandlePaymentRequest matches the handler signature of
// amqp.Client.ConsumePaymentRequests. Invalid requests are logged and
// acknowledged; write failures are returned so the message is requeued.
func (n *Notifier) HandlePaymentRequest(ctx context.Context, msg *amqp.PaymentRequestMessage) error {
	tx := core.Transaction{Payee: msg.Payee, Payer: msg.Payer, Amount: core.Cents(msg.AmountCents)}
	if err := tx.Validate(); err != nil {
		n.logger.WarnContext(ctx, "Dropping invalid payment request",
			log.NewFields().WithRunID(msg.RunID).WithError(err, log.ErrorTypeValidation).ToSlice()...)
		return nil
	}

	key := dedupeKey(msg)
	if _, dup := n.seen.Get(key); dup {
		n.logger.DebugContext(ctx, "Skipping duplicate payment request", log.FieldRunID, msg.RunID)
		return nil
	}

	line := msg.Message
	if line == "" {
		line = n.formatter.Line(tx, msg.Handle)
	}

	n.mu.Lock()
	_, err := fmt.Fprintln(n.out, line)
	n.mu.Unlock()
	if err != nil {
		return fmt.Errorf("write payment request: %w", err)
	}

	n.seen.Set(key, struct{}{})
	n.logger.InfoContext(ctx, "Payment request delivered",
		log.FieldRunID, msg.RunID,
		log.FieldPeriod, int(msg.Period),
		"payer", msg.Payer)
	return nil
}
