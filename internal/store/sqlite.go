package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/exceptions-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for local
// development and single-operator runs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS invoice_exceptions (
	vendor_account TEXT NOT NULL,
	invoice_number TEXT NOT NULL,
	exception_type TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'open',
	ship_to        TEXT NOT NULL DEFAULT '',
	po_num         TEXT NOT NULL DEFAULT '',
	invoice_total  REAL NOT NULL DEFAULT 0,
	po_total       REAL NOT NULL DEFAULT 0,
	document_name  TEXT NOT NULL DEFAULT '',
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (vendor_account, invoice_number)
);

CREATE INDEX IF NOT EXISTS idx_invoice_exceptions_type_status ON invoice_exceptions(exception_type, status);

CREATE TABLE IF NOT EXISTS analysis_results (
	run_id         TEXT NOT NULL,
	document_id    TEXT NOT NULL,
	exception_type TEXT NOT NULL,
	diagnosis      TEXT NOT NULL,
	suggested_fix  TEXT,
	snapshot       TEXT NOT NULL,
	created_at     DATETIME NOT NULL,
	PRIMARY KEY (run_id, document_id)
);

CREATE TABLE IF NOT EXISTS update_stats (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	stats       TEXT NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_update_stats_finished_at ON update_stats(finished_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) QueryExceptions(ctx context.Context, filter Filter) ([]model.ExceptionRecord, error) {
	query := `SELECT vendor_account, invoice_number, exception_type, status, ship_to, po_num, invoice_total, po_total, document_name
	          FROM invoice_exceptions WHERE true`
	args := []any{}

	if filter.ExceptionType != "" {
		query += ` AND exception_type = ?`
		args = append(args, string(filter.ExceptionType))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.VendorAccount != "" {
		query += ` AND vendor_account = ?`
		args = append(args, filter.VendorAccount)
	}
	query += ` ORDER BY vendor_account, invoice_number LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query exceptions")
	}
	defer rows.Close()

	var records []model.ExceptionRecord
	for rows.Next() {
		var r model.ExceptionRecord
		if err := rows.Scan(&r.VendorAccount, &r.InvoiceNumber, &r.ExceptionType, &r.Status,
			&r.ShipTo, &r.PONumber, &r.InvoiceTotal, &r.POTotal, &r.DocumentName); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan exception")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: query exceptions iterate")
}

func (s *SQLiteStore) ImportExceptions(ctx context.Context, records []model.ExceptionRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO invoice_exceptions (vendor_account, invoice_number, exception_type, status, ship_to, po_num, invoice_total, po_total, document_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (vendor_account, invoice_number) DO UPDATE SET
		   exception_type = excluded.exception_type, status = excluded.status,
		   ship_to = excluded.ship_to, po_num = excluded.po_num,
		   invoice_total = excluded.invoice_total, po_total = excluded.po_total,
		   document_name = excluded.document_name, updated_at = datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import prepare")
	}
	defer stmt.Close()

	var total int64
	for _, r := range records {
		res, err := stmt.ExecContext(ctx,
			r.VendorAccount, r.InvoiceNumber, string(r.ExceptionType), r.Status,
			r.ShipTo, r.PONumber, r.InvoiceTotal, r.POTotal, r.DocumentName,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import %s/%s", r.VendorAccount, r.InvoiceNumber)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import commit")
	}
	return total, nil
}

func (s *SQLiteStore) ApplyCorrection(ctx context.Context, w CorrectionWrite) (int64, int64, error) {
	col, err := columnFor(w.Field)
	if err != nil {
		return 0, 0, err
	}

	// Same guard semantics as the Postgres driver; IS NOT is SQLite's
	// null-safe inequality.
	updateSQL := fmt.Sprintf(
		`UPDATE invoice_exceptions SET %s = ?, updated_at = datetime('now')
		 WHERE vendor_account = ? AND invoice_number = ?
		   AND exception_type = ? AND status = ?
		   AND (%s = '' OR %s = ?)
		   AND %s IS NOT ?`,
		col, col, col, col,
	)
	res, err := s.db.ExecContext(ctx, updateSQL,
		w.NewValue, w.VendorAccount, w.InvoiceNumber, string(w.ExceptionType), w.Status, w.SnapshotValue, w.NewValue,
	)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "sqlite: apply correction %s/%s", w.VendorAccount, w.InvoiceNumber)
	}
	modified, err := res.RowsAffected()
	if err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: rows affected")
	}
	if modified > 0 {
		return modified, modified, nil
	}

	countSQL := fmt.Sprintf(
		`SELECT COUNT(*) FROM invoice_exceptions
		 WHERE vendor_account = ? AND invoice_number = ?
		   AND exception_type = ? AND status = ?
		   AND (%s = '' OR %s = ?)`,
		col, col,
	)
	var matched int64
	err = s.db.QueryRowContext(ctx, countSQL,
		w.VendorAccount, w.InvoiceNumber, string(w.ExceptionType), w.Status, w.SnapshotValue,
	).Scan(&matched)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "sqlite: classify correction %s/%s", w.VendorAccount, w.InvoiceNumber)
	}
	return matched, 0, nil
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, res model.AnalysisResult) error {
	var fixJSON []byte
	if res.Fix != nil {
		b, err := json.Marshal(res.Fix)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal suggested fix")
		}
		fixJSON = b
	}
	snapJSON, err := json.Marshal(res.Snapshot)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal snapshot")
	}

	var fix any
	if fixJSON != nil {
		fix = string(fixJSON)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_results (run_id, document_id, exception_type, diagnosis, suggested_fix, snapshot, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, document_id) DO UPDATE SET
		   exception_type = excluded.exception_type, diagnosis = excluded.diagnosis,
		   suggested_fix = excluded.suggested_fix, snapshot = excluded.snapshot,
		   created_at = excluded.created_at`,
		res.RunID, res.DocumentID, string(res.ExceptionType), res.Diagnosis, fix, string(snapJSON), res.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save analysis %s", res.DocumentID)
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, runID string) ([]model.AnalysisResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, document_id, exception_type, diagnosis, suggested_fix, snapshot, created_at
		 FROM analysis_results WHERE run_id = ? ORDER BY created_at ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close()

	var results []model.AnalysisResult
	for rows.Next() {
		var r model.AnalysisResult
		var fixJSON sql.NullString
		var snapJSON string
		var createdAt time.Time
		if err := rows.Scan(&r.RunID, &r.DocumentID, &r.ExceptionType, &r.Diagnosis, &fixJSON, &snapJSON, &createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analysis")
		}
		r.CreatedAt = createdAt
		if fixJSON.Valid && fixJSON.String != "" {
			r.Fix = &model.SuggestedFix{}
			if err := json.Unmarshal([]byte(fixJSON.String), r.Fix); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal suggested fix")
			}
		}
		if err := json.Unmarshal([]byte(snapJSON), &r.Snapshot); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal snapshot")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list analyses iterate")
}

func (s *SQLiteStore) SaveUpdateStats(ctx context.Context, stats model.UpdateStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal update stats")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO update_stats (id, run_id, stats, finished_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), stats.RunID, string(statsJSON), stats.FinishedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: save update stats")
}

func (s *SQLiteStore) LatestUpdateStats(ctx context.Context) (*model.UpdateStats, error) {
	var statsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT stats FROM update_stats ORDER BY finished_at DESC LIMIT 1`,
	).Scan(&statsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: latest update stats")
	}

	var stats model.UpdateStats
	if err := json.Unmarshal([]byte(statsJSON), &stats); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal update stats")
	}
	return &stats, nil
}
