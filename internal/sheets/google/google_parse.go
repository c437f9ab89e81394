package google

import (
	"fmt"
	"strconv"
	"strings"

	"settle/internal/core"
)

// ledgerDataOffset is the index of the first participant row in a period
// tab. Rows 2 and 3 hold buy-in totals and notes.
const ledgerDataOffset = 3

// parsePeriodTitle extracts N from a tab titled "<prefix>N" or "<prefix> N".
func parsePeriodTitle(title, prefix string) (core.Period, bool) {
	title = strings.TrimSpace(title)
	if !strings.HasPrefix(title, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(title, prefix)))
	if err != nil || n < 1 {
		return 0, false
	}
	return core.Period(n), true
}

// parseLedgerSheet converts a period tab (as returned by the Sheets API)
// into a ledger.
//
// The header row names the input columns; participant rows carry one extra
// trailing cell, the computed net result. Rows of any other width or with an
// empty name are skipped, blank cells count as zero, and participants whose
// net is exactly zero are dropped.
func parseLedgerSheet(values [][]interface{}) (core.Ledger, error) {
	ledger := core.Ledger{}
	if len(values) == 0 {
		return ledger, nil
	}
	width := len(values[0]) + 1
	for i := ledgerDataOffset; i < len(values); i++ {
		row := values[i]
		if len(row) != width {
			continue
		}
		name := strings.TrimSpace(fmt.Sprint(row[0]))
		if name == "" {
			continue
		}
		amount, err := cellAmount(row[width-1])
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i+1, name, err)
		}
		if amount == 0 {
			continue
		}
		if err := ledger.Add(name, amount); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	for name, v := range ledger {
		if v == 0 {
			delete(ledger, name)
		}
	}
	return ledger, nil
}

// parseHandleSheet reads (name, handle) pairs below the header row.
// A leading "@" on the handle is dropped.
func parseHandleSheet(values [][]interface{}) map[string]string {
	out := make(map[string]string)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if len(row) < 2 {
			continue
		}
		name := row[0]
		handle := strings.TrimPrefix(row[1], "@")
		if name == "" || handle == "" {
			continue
		}
		out[name] = handle
	}
	return out
}

func cellAmount(v interface{}) (core.Cents, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return core.FromFloat(x)
	case string:
		return core.ParseAmount(x)
	default:
		return core.ParseAmount(fmt.Sprint(x))
	}
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
