package google

import (
	"errors"
	"reflect"
	"testing"

	"settle/internal/core"
)

func TestParsePeriodTitle(t *testing.T) {
	cases := []struct {
		title string
		want  core.Period
		ok    bool
	}{
		{"Week1", 1, true},
		{"Week 12", 12, true},
		{" Week7 ", 7, true},
		{"Week", 0, false},
		{"Week0", 0, false},
		{"Weekly", 0, false},
		{"Venmo", 0, false},
		{"week3", 0, false},
	}
	for _, tc := range cases {
		got, ok := parsePeriodTitle(tc.title, "Week")
		if ok != tc.ok || got != tc.want {
			t.Errorf("parsePeriodTitle(%q) = %d,%v want %d,%v", tc.title, got, ok, tc.want, tc.ok)
		}
	}
}

// Mirrors a real weekly tab: header, two summary rows, then one row per
// player with the computed PnL appended as the last cell.
func TestParseLedgerSheet_Week(t *testing.T) {
	values := [][]interface{}{
		{"Player", "Buy-in", "Cash-out"},
		{"Total", "120", "120"},
		{"", "", ""},
		{"Alice", "20", "30", "10.00"},
		{"Bob", "40", "36", "-4"},
		{"Carol", "40", "34", "-6.00"},
		{"Dan", "20", "20", "0"},          // zero net, dropped
		{"", "10", "10", ""},              // no name
		{"Eve", "10", "12"},               // short row (no PnL yet)
		{"Frank", " ", "  ", "   "},       // blank cells are zero
		{"Gus", "5", "5", "0.00", "note"}, // too wide
	}
	got, err := parseLedgerSheet(values)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	want := core.Ledger{"Alice": 1000, "Bob": -400, "Carol": -600}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ledger = %v, want %v", got, want)
	}
}

func TestParseLedgerSheet_UnformattedNumbers(t *testing.T) {
	values := [][]interface{}{
		{"Name", "In"},
		{},
		{},
		{"A", 10.0, 7.005},
		{"B", 10.0, -7.005},
	}
	got, err := parseLedgerSheet(values)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if got["A"] != 701 || got["B"] != -701 {
		t.Fatalf("unexpected ledger: %v", got)
	}
}

func TestParseLedgerSheet_DuplicateNamesAccumulate(t *testing.T) {
	values := [][]interface{}{
		{"Name", "In"},
		{},
		{},
		{"A", "1", "5"},
		{"A", "1", "-5"},
		{"B", "1", "2.50"},
		{"C", "1", "-2.50"},
	}
	got, err := parseLedgerSheet(values)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	want := core.Ledger{"B": 250, "C": -250}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ledger = %v, want %v", got, want)
	}
}

func TestParseLedgerSheet_BadAmount(t *testing.T) {
	values := [][]interface{}{
		{"Name", "In"},
		{},
		{},
		{"A", "1", "#REF!"},
	}
	_, err := parseLedgerSheet(values)
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestParseLedgerSheet_Empty(t *testing.T) {
	got, err := parseLedgerSheet(nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty ledger, got %v (err=%v)", got, err)
	}
}

func TestParseHandleSheet(t *testing.T) {
	values := [][]interface{}{
		{"Name", "Venmo"},
		{"Alice", "@alice-w"},
		{"Bob", "bobby"},
		{"Carol"},
		{"", "ghost"},
		{"Dan", " "},
	}
	got := parseHandleSheet(values)
	want := map[string]string{"Alice": "alice-w", "Bob": "bobby"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("handles = %v, want %v", got, want)
	}
}

func TestQuoteSheetName(t *testing.T) {
	cases := map[string]string{
		"Week1":    "Week1",
		"Week 1":   "'Week 1'",
		"Bob's":    "'Bob''s'",
		"Handles!": "'Handles!'",
	}
	for in, want := range cases {
		if got := quoteSheetName(in); got != want {
			t.Errorf("quoteSheetName(%q) = %q, want %q", in, got, want)
		}
	}
}
