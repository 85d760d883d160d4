package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const recordColumns = `id, created_at, request, response, total_cash_distributed,
	bit_total, remaining_in_register, payees, transfers, exported_at`

type SQLiteRepository struct {
	db            *sql.DB
	schemaVersion uint
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection queues writes instead of
	// failing them with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, schemaVersion: version}, nil
}

// SchemaVersion is the migration version the database was brought to.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schemaVersion
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Save(ctx context.Context, rec DistributionRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO distributions (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.CreatedAt.UTC().UnixNano(),
		string(rec.Request),
		string(rec.Response),
		rec.TotalCashDistributed,
		rec.BitTotal,
		rec.RemainingInRegister,
		rec.Payees,
		rec.Transfers,
		nullableTime(rec.ExportedAt),
	)
	if err != nil {
		return fmt.Errorf("insert distribution %s: %w", rec.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (DistributionRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM distributions WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return DistributionRecord{}, ErrNotFound
	}
	if err != nil {
		return DistributionRecord{}, fmt.Errorf("get distribution %s: %w", id, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]DistributionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM distributions ORDER BY created_at DESC, id DESC`
	return r.query(ctx, "list distributions", query, limit)
}

func (r *SQLiteRepository) ListPendingExport(ctx context.Context, limit int) ([]DistributionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM distributions
		WHERE exported_at IS NULL ORDER BY created_at ASC, id ASC`
	return r.query(ctx, "list pending exports", query, limit)
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE distributions SET exported_at = ?, export_claimed_at = NULL WHERE id = ?`, at.UTC().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("mark distribution %s exported: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark distribution %s exported: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimExport is a single conditional UPDATE, so two exporters racing for
// the same record cannot both win.
func (r *SQLiteRepository) ClaimExport(ctx context.Context, id string, at, staleBefore time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE distributions SET export_claimed_at = ?
		WHERE id = ? AND exported_at IS NULL
		AND (export_claimed_at IS NULL OR export_claimed_at < ?)`,
		at.UTC().UnixNano(), id, staleBefore.UTC().UnixNano())
	if err != nil {
		return false, fmt.Errorf("claim distribution %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim distribution %s: %w", id, err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) ReleaseExport(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE distributions SET export_claimed_at = NULL WHERE id = ? AND exported_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("release distribution %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, op, query string, limit int) ([]DistributionRecord, error) {
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var records []DistributionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (DistributionRecord, error) {
	var (
		rec        DistributionRecord
		createdAt  int64
		request    string
		response   string
		exportedAt sql.NullInt64
	)
	err := s.Scan(
		&rec.ID,
		&createdAt,
		&request,
		&response,
		&rec.TotalCashDistributed,
		&rec.BitTotal,
		&rec.RemainingInRegister,
		&rec.Payees,
		&rec.Transfers,
		&exportedAt,
	)
	if err != nil {
		return DistributionRecord{}, err
	}

	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.Request = []byte(request)
	rec.Response = []byte(response)
	if exportedAt.Valid {
		t := time.Unix(0, exportedAt.Int64).UTC()
		rec.ExportedAt = &t
	}
	return rec, nil
}

func nullableTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().UnixNano(), Valid: true}
}
