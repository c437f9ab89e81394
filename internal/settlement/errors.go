package settlement

import (
	"errors"
	"fmt"
	"strings"

	"settle/internal/core"
)

var (
	// ErrImbalancedLedger matches any *ImbalancedLedgerError.
	ErrImbalancedLedger = errors.New("imbalanced ledger")
	// ErrUnsettledLedger matches any *UnsettledLedgerError.
	ErrUnsettledLedger = errors.New("unsettled ledger")
)

// ImbalancedLedgerError reports an input ledger whose balances do not sum
// to zero. It is an upstream data problem and should not be retried.
type ImbalancedLedgerError struct {
	Total core.Cents
}

func (e *ImbalancedLedgerError) Error() string {
	return fmt.Sprintf("imbalanced ledger: balances sum to %s, want 0.00", e.Total)
}

func (e *ImbalancedLedgerError) Is(target error) bool {
	return target == ErrImbalancedLedger
}

// UnsettledLedgerError reports claims left over after matching a balanced
// ledger. Reaching it means the engine itself is broken.
type UnsettledLedgerError struct {
	Remaining map[string]core.Cents
}

func (e *UnsettledLedgerError) Error() string {
	names := core.Ledger(e.Remaining).Names()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%s", name, e.Remaining[name]))
	}
	return "unsettled ledger: claims remain after matching: " + strings.Join(parts, ", ")
}

func (e *UnsettledLedgerError) Is(target error) bool {
	return target == ErrUnsettledLedger
}
