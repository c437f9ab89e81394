package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"settle/internal/core"
	ports "settle/internal/sheets"
)

// Store is an in-process ledger source, seeded from CSV files or built
// directly in tests.
type Store struct {
	mu      sync.Mutex
	ledgers map[core.Period]core.Ledger
	handles map[string]string
}

var _ ports.Source = (*Store)(nil)

func New() *Store {
	return &Store{
		ledgers: make(map[core.Period]core.Ledger),
		handles: make(map[string]string),
	}
}

// NewFromFiles seeds a store from base/ledger.csv (period,name,amount) and
// base/handles.csv (name,handle). Missing files yield an empty store.
func NewFromFiles(base string) (*Store, error) {
	s := New()
	if err := s.loadLedgers(filepath.Join(base, "ledger.csv")); err != nil {
		return nil, err
	}
	if err := s.LoadHandles(filepath.Join(base, "handles.csv")); err != nil {
		return nil, err
	}
	return s, nil
}

// SetLedger replaces the ledger for period. Zero balances are dropped.
func (s *Store) SetLedger(period core.Period, l core.Ledger) error {
	if err := period.Validate(); err != nil {
		return err
	}
	if err := l.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers[period] = l.WithoutZero()
	return nil
}

// SetHandle records a payment handle for name.
func (s *Store) SetHandle(name, handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[strings.TrimSpace(name)] = strings.TrimPrefix(strings.TrimSpace(handle), "@")
}

// ListPeriods implements ports.PeriodLister.
func (s *Store) ListPeriods(_ context.Context) ([]core.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Period, 0, len(s.ledgers))
	for p := range s.ledgers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ReadLedger implements ports.LedgerReader. The returned ledger is a copy.
func (s *Store) ReadLedger(_ context.Context, period core.Period) (core.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[period]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ports.ErrPeriodNotFound, int(period))
	}
	return l.WithoutZero(), nil
}

// ReadHandles implements ports.HandleReader.
func (s *Store) ReadHandles(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.handles))
	for k, v := range s.handles {
		out[k] = v
	}
	return out, nil
}

func (s *Store) loadLedgers(path string) error {
	rows, err := readCSV(path)
	if err != nil {
		return err
	}
	ledgers := make(map[core.Period]core.Ledger)
	for i, row := range rows {
		if len(row) < 3 {
			return fmt.Errorf("%s:%d: want period,name,amount", path, i+1)
		}
		n, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			// header row
			if i == 0 {
				continue
			}
			return fmt.Errorf("%s:%d: invalid period %q", path, i+1, row[0])
		}
		amount, err := core.ParseAmount(row[2])
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
		p := core.Period(n)
		if ledgers[p] == nil {
			ledgers[p] = core.Ledger{}
		}
		if err := ledgers[p].Add(row[1], amount); err != nil {
			return fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
	}
	for p, l := range ledgers {
		if err := s.SetLedger(p, l); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// LoadHandles merges name,handle records from path into the store. A header
// row and rows with an empty handle are skipped.
func (s *Store) LoadHandles(path string) error {
	rows, err := readCSV(path)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if len(row) < 2 {
			continue
		}
		if i == 0 && strings.EqualFold(strings.TrimSpace(row[0]), "name") {
			continue
		}
		if strings.TrimSpace(row[0]) == "" || strings.TrimSpace(row[1]) == "" {
			continue
		}
		s.SetHandle(row[0], row[1])
	}
	return nil
}

// ParseLedgerCSV reads a single-period ledger of name,amount records. A
// header row, "#" comments and repeated names (which accumulate) are
// accepted. Zero balances are dropped.
func ParseLedgerCSV(r io.Reader) (core.Ledger, error) {
	rows, err := newCSVReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read ledger csv: %w", err)
	}
	l := core.Ledger{}
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("line %d: want name,amount", i+1)
		}
		amount, err := core.ParseAmount(row[1])
		if err != nil {
			if i == 0 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if err := l.Add(row[0], amount); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return l.WithoutZero(), nil
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

// readCSV returns all records of path, skipping "#" comment lines. A missing
// file is not an error.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := newCSVReader(f)
	var out [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
