package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultTable holds every store's records, partitioned by store_id.
const DefaultTable = "import_records"

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Postgres stores records in a single table with UNIQUE (store_id, dedup_key),
// so concurrent importers in different processes still cannot insert the same
// key twice.
type Postgres struct {
	db    DBTX
	table string
	sq    squirrel.StatementBuilderType
}

// NewPostgres creates a store over db using DefaultTable.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{
		db:    db,
		table: DefaultTable,
		sq:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Table returns the backing table name.
func (p *Postgres) Table() string { return p.table }

// EnsureSchema creates the table and its indexes if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + p.table + ` (
			id         UUID PRIMARY KEY,
			store_id   TEXT NOT NULL,
			dedup_key  TEXT NOT NULL,
			run_id     TEXT NOT NULL,
			kind       TEXT NOT NULL,
			data       JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (store_id, dedup_key)
		)`,
		`CREATE INDEX IF NOT EXISTS ` + p.table + `_run_idx ON ` + p.table + ` (store_id, run_id)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// FindOne implements core.Store.
func (p *Postgres) FindOne(ctx context.Context, storeID, key string) (core.StoredRecord, bool, error) {
	query, args, err := p.selectRecords().
		Where(squirrel.Eq{"store_id": storeID, "dedup_key": key}).
		Limit(1).
		ToSql()
	if err != nil {
		return core.StoredRecord{}, false, fmt.Errorf("build find: %w", err)
	}

	rec, err := scanRecord(p.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.StoredRecord{}, false, nil
	}
	if err != nil {
		return core.StoredRecord{}, false, fmt.Errorf("find %s: %w", storeID, err)
	}
	return rec, true, nil
}

// Insert implements core.Store. A unique violation is reported as core.ErrDuplicate.
func (p *Postgres) Insert(ctx context.Context, storeID string, rec core.StoredRecord) (string, error) {
	rec = prepare(rec)

	data, err := json.Marshal(rec.Fields)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}

	query, args, err := p.sq.Insert(p.table).
		Columns("id", "store_id", "dedup_key", "run_id", "kind", "data", "created_at").
		Values(rec.ID, storeID, rec.Key, rec.RunID, string(rec.Kind), data, rec.CreatedAt).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert: %w", err)
	}

	if _, err := p.db.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", fmt.Errorf("%s %q: %w", storeID, rec.Key, core.ErrDuplicate)
		}
		return "", fmt.Errorf("insert %s: %w", storeID, err)
	}
	return rec.ID, nil
}

// DeleteByRun implements core.Store.
func (p *Postgres) DeleteByRun(ctx context.Context, storeID, runID string) (int64, error) {
	query, args, err := p.sq.Delete(p.table).
		Where(squirrel.Eq{"store_id": storeID, "run_id": runID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	tag, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete run %s from %s: %w", runID, storeID, err)
	}
	return tag.RowsAffected(), nil
}

// List returns the records of one store ordered by creation time.
func (p *Postgres) List(ctx context.Context, storeID string) ([]core.StoredRecord, error) {
	query, args, err := p.selectRecords().
		Where(squirrel.Eq{"store_id": storeID}).
		OrderBy("created_at", "dedup_key").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", storeID, err)
	}
	defer rows.Close()

	var out []core.StoredRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", storeID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", storeID, err)
	}
	return out, nil
}

func (p *Postgres) selectRecords() squirrel.SelectBuilder {
	return p.sq.Select("id::text", "dedup_key", "run_id", "kind", "data", "created_at").From(p.table)
}

func scanRecord(row pgx.Row) (core.StoredRecord, error) {
	var (
		rec       core.StoredRecord
		kind      string
		data      []byte
		createdAt time.Time
	)
	if err := row.Scan(&rec.ID, &rec.Key, &rec.RunID, &kind, &data, &createdAt); err != nil {
		return core.StoredRecord{}, err
	}
	if err := json.Unmarshal(data, &rec.Fields); err != nil {
		return core.StoredRecord{}, fmt.Errorf("decode fields: %w", err)
	}
	rec.Kind = core.Kind(kind)
	rec.CreatedAt = createdAt.UTC()
	return rec, nil
}
