package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type (
	// Period identifies one settlement window, e.g. the N in a "Week N" sheet.
	Period int

	// Ledger maps a participant name to their net balance for one period.
	// Positive balances are owed money, negative balances owe money.
	Ledger map[string]Cents

	// Transaction is a single payment instruction: Payer pays Payee Amount.
	Transaction struct {
		Payee  string
		Payer  string
		Amount Cents
	}
)

var (
	ErrEmptyName      = errors.New("empty participant name")
	ErrInvalidPeriod  = errors.New("invalid period")
	ErrNonPositivePay = errors.New("transaction amount must be positive")
)

// Total returns the sum of all balances.
func (l Ledger) Total() Cents {
	var total Cents
	for _, v := range l {
		total += v
	}
	return total
}

// Validate checks participant names. It does not check the zero-sum
// invariant; that is the settlement engine's job.
func (l Ledger) Validate() error {
	for name := range l {
		if strings.TrimSpace(name) == "" {
			return ErrEmptyName
		}
	}
	return nil
}

// Names returns participant names in ascending order.
func (l Ledger) Names() []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithoutZero returns a copy of l without exactly-zero balances.
func (l Ledger) WithoutZero() Ledger {
	out := make(Ledger, len(l))
	for name, v := range l {
		if v != 0 {
			out[name] = v
		}
	}
	return out
}

// Add accumulates amount onto name, trimming the name first.
func (l Ledger) Add(name string, amount Cents) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	l[name] += amount
	return nil
}

func (p Period) Validate() error {
	if p < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPeriod, int(p))
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Payee) == "" || strings.TrimSpace(t.Payer) == "" {
		return ErrEmptyName
	}
	if t.Amount <= 0 {
		return ErrNonPositivePay
	}
	return nil
}

// Less orders transactions by (Payee, Payer, Amount).
func (t Transaction) Less(o Transaction) bool {
	if t.Payee != o.Payee {
		return t.Payee < o.Payee
	}
	if t.Payer != o.Payer {
		return t.Payer < o.Payer
	}
	return t.Amount < o.Amount
}
