package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type LedgerEntry struct {
	Period      int64
	Name        string
	AmountCents int64
}

const listPeriods = `SELECT period FROM periods ORDER BY period`

func (q *Queries) ListPeriods(ctx context.Context) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listPeriods)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []int64
	for rows.Next() {
		var period int64
		if err := rows.Scan(&period); err != nil {
			return nil, err
		}
		items = append(items, period)
	}
	return items, rows.Err()
}

const periodExists = `SELECT EXISTS(SELECT 1 FROM periods WHERE period = ?)`

func (q *Queries) PeriodExists(ctx context.Context, period int64) (bool, error) {
	row := q.db.QueryRowContext(ctx, periodExists, period)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const upsertPeriod = `INSERT INTO periods (period) VALUES (?)
ON CONFLICT(period) DO UPDATE SET imported_at = CURRENT_TIMESTAMP`

func (q *Queries) UpsertPeriod(ctx context.Context, period int64) error {
	_, err := q.db.ExecContext(ctx, upsertPeriod, period)
	return err
}

const getLedgerEntries = `SELECT period, name, amount_cents FROM ledger_entries WHERE period = ? ORDER BY name`

func (q *Queries) GetLedgerEntries(ctx context.Context, period int64) ([]LedgerEntry, error) {
	rows, err := q.db.QueryContext(ctx, getLedgerEntries, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LedgerEntry
	for rows.Next() {
		var i LedgerEntry
		if err := rows.Scan(&i.Period, &i.Name, &i.AmountCents); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const deleteLedgerEntries = `DELETE FROM ledger_entries WHERE period = ?`

func (q *Queries) DeleteLedgerEntries(ctx context.Context, period int64) error {
	_, err := q.db.ExecContext(ctx, deleteLedgerEntries, period)
	return err
}

const insertLedgerEntry = `INSERT INTO ledger_entries (period, name, amount_cents) VALUES (?, ?, ?)`

func (q *Queries) InsertLedgerEntry(ctx context.Context, arg LedgerEntry) error {
	_, err := q.db.ExecContext(ctx, insertLedgerEntry, arg.Period, arg.Name, arg.AmountCents)
	return err
}

type Handle struct {
	Name   string
	Handle string
}

const listHandles = `SELECT name, handle FROM handles ORDER BY name`

func (q *Queries) ListHandles(ctx context.Context) ([]Handle, error) {
	rows, err := q.db.QueryContext(ctx, listHandles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Handle
	for rows.Next() {
		var i Handle
		if err := rows.Scan(&i.Name, &i.Handle); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertHandle = `INSERT INTO handles (name, handle) VALUES (?, ?)
ON CONFLICT(name) DO UPDATE SET handle = excluded.handle, updated_at = CURRENT_TIMESTAMP`

func (q *Queries) UpsertHandle(ctx context.Context, arg Handle) error {
	_, err := q.db.ExecContext(ctx, upsertHandle, arg.Name, arg.Handle)
	return err
}
