package sheets

import (
	"context"
	"errors"

	"settle/internal/core"
)

// ErrPeriodNotFound is returned by LedgerReader when the requested period
// has no ledger in the source.
var ErrPeriodNotFound = errors.New("period not found")

// Ports for outbound adapters.
type (
	// LedgerReader returns the ledger for one period. Blank cells read as
	// zero and rows whose net balance is exactly zero are dropped.
	LedgerReader interface {
		ReadLedger(ctx context.Context, period core.Period) (core.Ledger, error)
	}

	// PeriodLister lists the periods available in the source, ascending.
	PeriodLister interface {
		ListPeriods(ctx context.Context) ([]core.Period, error)
	}

	// HandleReader returns payment-app handles keyed by participant name.
	// A participant without a handle is simply absent from the map.
	HandleReader interface {
		ReadHandles(ctx context.Context) (map[string]string, error)
	}

	// Source bundles everything a settlement run reads.
	Source interface {
		LedgerReader
		PeriodLister
		HandleReader
	}
)

// Latest returns the highest period in periods, or ErrPeriodNotFound when
// the list is empty.
func Latest(periods []core.Period) (core.Period, error) {
	if len(periods) == 0 {
		return 0, ErrPeriodNotFound
	}
	latest := periods[0]
	for _, p := range periods[1:] {
		if p > latest {
			latest = p
		}
	}
	return latest, nil
}
