package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"settle/internal/core"
	ports "settle/internal/sheets"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ ports.Source = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListPeriods implements sheets.PeriodLister
func (r *SQLiteRepository) ListPeriods(ctx context.Context) ([]core.Period, error) {
	rows, err := r.queries.ListPeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	periods := make([]core.Period, len(rows))
	for i, p := range rows {
		periods[i] = core.Period(p)
	}
	return periods, nil
}

// ReadLedger implements sheets.LedgerReader
func (r *SQLiteRepository) ReadLedger(ctx context.Context, period core.Period) (core.Ledger, error) {
	exists, err := r.queries.PeriodExists(ctx, int64(period))
	if err != nil {
		return nil, fmt.Errorf("check period: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %d", ports.ErrPeriodNotFound, int(period))
	}
	entries, err := r.queries.GetLedgerEntries(ctx, int64(period))
	if err != nil {
		return nil, fmt.Errorf("get ledger entries: %w", err)
	}
	ledger := make(core.Ledger, len(entries))
	for _, e := range entries {
		if e.AmountCents == 0 {
			continue
		}
		ledger[e.Name] = core.Cents(e.AmountCents)
	}
	return ledger, nil
}

// ReadHandles implements sheets.HandleReader
func (r *SQLiteRepository) ReadHandles(ctx context.Context) (map[string]string, error) {
	rows, err := r.queries.ListHandles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list handles: %w", err)
	}
	handles := make(map[string]string, len(rows))
	for _, h := range rows {
		handles[h.Name] = h.Handle
	}
	return handles, nil
}

// ImportLedger replaces the stored ledger for period in a single
// transaction. Zero balances are not stored, but the period itself is, so
// a period where everyone broke even still lists and reads back empty.
func (r *SQLiteRepository) ImportLedger(ctx context.Context, period core.Period, ledger core.Ledger) error {
	if err := period.Validate(); err != nil {
		return err
	}
	if err := ledger.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.UpsertPeriod(ctx, int64(period)); err != nil {
		return fmt.Errorf("record period: %w", err)
	}
	if err := q.DeleteLedgerEntries(ctx, int64(period)); err != nil {
		return fmt.Errorf("delete ledger entries: %w", err)
	}
	nonzero := ledger.WithoutZero()
	for _, name := range nonzero.Names() {
		err := q.InsertLedgerEntry(ctx, LedgerEntry{
			Period:      int64(period),
			Name:        strings.TrimSpace(name),
			AmountCents: int64(nonzero[name]),
		})
		if err != nil {
			return fmt.Errorf("insert ledger entry %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Ledger saved to SQLite",
		"period", int(period),
		"participants", len(nonzero),
		"total_cents", int64(nonzero.Total()))
	return nil
}

// UpsertHandle records or replaces the payment handle for name.
func (r *SQLiteRepository) UpsertHandle(ctx context.Context, name, handle string) error {
	name = strings.TrimSpace(name)
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if name == "" {
		return core.ErrEmptyName
	}
	if err := r.queries.UpsertHandle(ctx, Handle{Name: name, Handle: handle}); err != nil {
		return fmt.Errorf("upsert handle: %w", err)
	}
	return nil
}

// SyncFrom mirrors every period and handle of src into the repository,
// e.g. to keep an offline copy of the spreadsheet.
func (r *SQLiteRepository) SyncFrom(ctx context.Context, src ports.Source) (int, error) {
	periods, err := src.ListPeriods(ctx)
	if err != nil {
		return 0, fmt.Errorf("list source periods: %w", err)
	}
	for _, p := range periods {
		ledger, err := src.ReadLedger(ctx, p)
		if err != nil {
			return 0, fmt.Errorf("read source period %d: %w", int(p), err)
		}
		if err := r.ImportLedger(ctx, p, ledger); err != nil {
			return 0, fmt.Errorf("import period %d: %w", int(p), err)
		}
	}
	handles, err := src.ReadHandles(ctx)
	if err != nil {
		return 0, fmt.Errorf("read source handles: %w", err)
	}
	for name, handle := range handles {
		if err := r.UpsertHandle(ctx, name, handle); err != nil {
			return 0, err
		}
	}
	return len(periods), nil
}
