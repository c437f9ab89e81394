// Package report turns settlement results into human-readable lines and a
// JSON-serialisable summary.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"settle/internal/core"
	"settle/internal/settlement"
)

// Formatter renders transactions as payment requests.
type Formatter struct {
	// Symbol is printed before every amount, e.g. "$".
	Symbol string
}

func NewFormatter(symbol string) Formatter {
	return Formatter{Symbol: symbol}
}

// Line renders one payment request. An empty handle degrades to the plain
// name form.
func (f Formatter) Line(tx core.Transaction, handle string) string {
	if handle != "" {
		return fmt.Sprintf("%s requests %s%s from %s (@%s)", tx.Payee, f.Symbol, tx.Amount, tx.Payer, handle)
	}
	return fmt.Sprintf("%s requests %s%s from %s", tx.Payee, f.Symbol, tx.Amount, tx.Payer)
}

// Payment is one transaction with its display fields resolved.
type Payment struct {
	Payee       string `json:"payee"`
	Payer       string `json:"payer"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	PayerHandle string `json:"payer_handle,omitempty"`
	Message     string `json:"message"`
}

// Report is the outcome of one settlement run.
type Report struct {
	RunID       string      `json:"run_id"`
	Period      core.Period `json:"period"`
	GeneratedAt time.Time   `json:"generated_at"`
	Payments    []Payment   `json:"payments"`
	TotalCents  int64       `json:"total_cents"`
	// Balances is each participant's net position reconstructed from the
	// payments; it equals the settled ledger.
	Balances core.Ledger `json:"balances"`
}

// Build assembles a report for txs, looking up each payer's handle.
func (f Formatter) Build(period core.Period, txs []core.Transaction, handles map[string]string) Report {
	r := Report{
		RunID:       uuid.NewString(),
		Period:      period,
		GeneratedAt: time.Now().UTC(),
		Payments:    make([]Payment, 0, len(txs)),
		Balances:    settlement.Summary(txs),
	}
	for _, tx := range txs {
		handle := handles[tx.Payer]
		r.Payments = append(r.Payments, Payment{
			Payee:       tx.Payee,
			Payer:       tx.Payer,
			AmountCents: int64(tx.Amount),
			Amount:      tx.Amount.String(),
			PayerHandle: handle,
			Message:     f.Line(tx, handle),
		})
		r.TotalCents += int64(tx.Amount)
	}
	return r
}

// WriteLines prints one message per payment.
func (r Report) WriteLines(w io.Writer) error {
	for _, p := range r.Payments {
		if _, err := fmt.Fprintln(w, p.Message); err != nil {
			return err
		}
	}
	return nil
}
