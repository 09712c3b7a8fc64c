package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/exceptions-cli/internal/db"
	"github.com/sells-group/exceptions-cli/internal/model"
	"github.com/sells-group/exceptions-cli/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"save_analysis": `INSERT INTO analysis_results (run_id, document_id, exception_type, diagnosis, suggested_fix, snapshot, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (run_id, document_id) DO UPDATE SET
		   exception_type = $3, diagnosis = $4, suggested_fix = $5, snapshot = $6, created_at = $7`,
	"list_analyses": `SELECT run_id, document_id, exception_type, diagnosis, suggested_fix, snapshot, created_at FROM analysis_results WHERE run_id = $1 ORDER BY created_at ASC`,
	"insert_stats":  `INSERT INTO update_stats (id, run_id, stats, finished_at) VALUES ($1, $2, $3, $4)`,
	"latest_stats":  `SELECT stats FROM update_stats ORDER BY finished_at DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	ping := func(ctx context.Context) error { return pool.Ping(ctx) }
	policy := resilience.DefaultPolicy()
	policy.OnRetry = resilience.RetryLogger("postgres", "ping")
	if err := resilience.Do(ctx, policy, ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS invoice_exceptions (
	vendor_account TEXT NOT NULL,
	invoice_number TEXT NOT NULL,
	exception_type TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'open',
	ship_to        TEXT NOT NULL DEFAULT '',
	po_num         TEXT NOT NULL DEFAULT '',
	invoice_total  DOUBLE PRECISION NOT NULL DEFAULT 0,
	po_total       DOUBLE PRECISION NOT NULL DEFAULT 0,
	document_name  TEXT NOT NULL DEFAULT '',
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (vendor_account, invoice_number)
);

CREATE INDEX IF NOT EXISTS idx_invoice_exceptions_type_status ON invoice_exceptions(exception_type, status);

CREATE TABLE IF NOT EXISTS analysis_results (
	run_id         TEXT NOT NULL,
	document_id    TEXT NOT NULL,
	exception_type TEXT NOT NULL,
	diagnosis      TEXT NOT NULL,
	suggested_fix  JSONB,
	snapshot       JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, document_id)
);

CREATE INDEX IF NOT EXISTS idx_analysis_results_created_at ON analysis_results(created_at);

CREATE TABLE IF NOT EXISTS update_stats (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	stats       JSONB NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_update_stats_finished_at ON update_stats(finished_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) QueryExceptions(ctx context.Context, filter Filter) ([]model.ExceptionRecord, error) {
	query := `SELECT vendor_account, invoice_number, exception_type, status, ship_to, po_num, invoice_total, po_total, document_name
	          FROM invoice_exceptions WHERE true`
	args := []any{}
	argIdx := 1

	if filter.ExceptionType != "" {
		query += fmt.Sprintf(` AND exception_type = $%d`, argIdx)
		args = append(args, string(filter.ExceptionType))
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.VendorAccount != "" {
		query += fmt.Sprintf(` AND vendor_account = $%d`, argIdx)
		args = append(args, filter.VendorAccount)
		argIdx++
	}
	query += ` ORDER BY vendor_account, invoice_number`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query exceptions")
	}
	defer rows.Close()

	var records []model.ExceptionRecord
	for rows.Next() {
		var r model.ExceptionRecord
		if err := rows.Scan(&r.VendorAccount, &r.InvoiceNumber, &r.ExceptionType, &r.Status,
			&r.ShipTo, &r.PONumber, &r.InvoiceTotal, &r.POTotal, &r.DocumentName); err != nil {
			return nil, eris.Wrap(err, "postgres: scan exception")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: query exceptions iterate")
}

var exceptionColumns = []string{
	"vendor_account", "invoice_number", "exception_type", "status",
	"ship_to", "po_num", "invoice_total", "po_total", "document_name",
}

func (s *PostgresStore) ImportExceptions(ctx context.Context, records []model.ExceptionRecord) (int64, error) {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{
			r.VendorAccount, r.InvoiceNumber, string(r.ExceptionType), r.Status,
			r.ShipTo, r.PONumber, r.InvoiceTotal, r.POTotal, r.DocumentName,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "invoice_exceptions",
		Columns:      exceptionColumns,
		ConflictKeys: []string{"vendor_account", "invoice_number"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import exceptions")
	}
	return n, nil
}

func (s *PostgresStore) ApplyCorrection(ctx context.Context, w CorrectionWrite) (int64, int64, error) {
	col, err := columnFor(w.Field)
	if err != nil {
		return 0, 0, err
	}

	// The guard filter re-checks identity, exception type, and status, and only
	// touches rows whose target field is empty or still holds the snapshot
	// value. The final predicate keeps already-correct rows unmodified so they
	// can be classified as noops.
	updateSQL := fmt.Sprintf(
		`UPDATE invoice_exceptions SET %s = $1, updated_at = now()
		 WHERE vendor_account = $2 AND invoice_number = $3
		   AND exception_type = $4 AND status = $5
		   AND (%s = '' OR %s = $6)
		   AND %s IS DISTINCT FROM $1`,
		col, col, col, col,
	)
	tag, err := s.pool.Exec(ctx, updateSQL,
		w.NewValue, w.VendorAccount, w.InvoiceNumber, string(w.ExceptionType), w.Status, w.SnapshotValue,
	)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "postgres: apply correction %s/%s", w.VendorAccount, w.InvoiceNumber)
	}
	modified := tag.RowsAffected()
	if modified > 0 {
		return modified, modified, nil
	}

	// Nothing changed. Re-run the guard filter without the distinctness check
	// to tell a noop (row matched, value already in place) from a record that
	// drifted since analysis.
	countSQL := fmt.Sprintf(
		`SELECT COUNT(*) FROM invoice_exceptions
		 WHERE vendor_account = $1 AND invoice_number = $2
		   AND exception_type = $3 AND status = $4
		   AND (%s = '' OR %s = $5)`,
		col, col,
	)
	var matched int64
	err = s.pool.QueryRow(ctx, countSQL,
		w.VendorAccount, w.InvoiceNumber, string(w.ExceptionType), w.Status, w.SnapshotValue,
	).Scan(&matched)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "postgres: classify correction %s/%s", w.VendorAccount, w.InvoiceNumber)
	}
	return matched, 0, nil
}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, res model.AnalysisResult) error {
	var fixJSON []byte
	if res.Fix != nil {
		b, err := json.Marshal(res.Fix)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal suggested fix")
		}
		fixJSON = b
	}
	snapJSON, err := json.Marshal(res.Snapshot)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal snapshot")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analysis_results (run_id, document_id, exception_type, diagnosis, suggested_fix, snapshot, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (run_id, document_id) DO UPDATE SET
		   exception_type = $3, diagnosis = $4, suggested_fix = $5, snapshot = $6, created_at = $7`,
		res.RunID, res.DocumentID, string(res.ExceptionType), res.Diagnosis, fixJSON, snapJSON, res.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: save analysis %s", res.DocumentID)
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, runID string) ([]model.AnalysisResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, document_id, exception_type, diagnosis, suggested_fix, snapshot, created_at
		 FROM analysis_results WHERE run_id = $1 ORDER BY created_at ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var results []model.AnalysisResult
	for rows.Next() {
		var r model.AnalysisResult
		var fixJSON, snapJSON []byte
		if err := rows.Scan(&r.RunID, &r.DocumentID, &r.ExceptionType, &r.Diagnosis, &fixJSON, &snapJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis")
		}
		if len(fixJSON) > 0 {
			r.Fix = &model.SuggestedFix{}
			if err := json.Unmarshal(fixJSON, r.Fix); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal suggested fix")
			}
		}
		if err := json.Unmarshal(snapJSON, &r.Snapshot); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal snapshot")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list analyses iterate")
}

func (s *PostgresStore) SaveUpdateStats(ctx context.Context, stats model.UpdateStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal update stats")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO update_stats (id, run_id, stats, finished_at) VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), stats.RunID, statsJSON, stats.FinishedAt,
	)
	return eris.Wrap(err, "postgres: save update stats")
}

func (s *PostgresStore) LatestUpdateStats(ctx context.Context) (*model.UpdateStats, error) {
	var statsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT stats FROM update_stats ORDER BY finished_at DESC LIMIT 1`,
	).Scan(&statsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: latest update stats")
	}

	var stats model.UpdateStats
	if err := json.Unmarshal(statsJSON, &stats); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal update stats")
	}
	return &stats, nil
}
