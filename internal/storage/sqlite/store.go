package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/louisbranch/combatsim/internal/platform/errors"
	sqlitemigrate "github.com/louisbranch/combatsim/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/combatsim/internal/storage"
	"github.com/louisbranch/combatsim/internal/storage/cursor"
	"github.com/louisbranch/combatsim/internal/storage/filter"
	"github.com/louisbranch/combatsim/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed batch and job persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if _, err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// PutBatch persists one batch result.
func (s *Store) PutBatch(ctx context.Context, batch storage.BatchRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	batch.ID = strings.TrimSpace(batch.ID)
	if batch.ID == "" {
		return fmt.Errorf("batch id is required")
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}
	volleys, err := json.Marshal(nonNil(batch.Volleys))
	if err != nil {
		return fmt.Errorf("encode volleys: %w", err)
	}
	tus, err := json.Marshal(nonNil(batch.TUs))
	if err != nil {
		return fmt.Errorf("encode tus: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO batches (
	id,
	name,
	defender,
	requested,
	trials,
	corruption_kills,
	exceeded,
	cancelled,
	volleys,
	tus,
	config,
	created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		batch.ID,
		batch.Name,
		batch.Defender,
		batch.Requested,
		batch.Trials,
		batch.CorruptionKills,
		boolInt(batch.ExceededMaxVolleys),
		boolInt(batch.Cancelled),
		string(volleys),
		string(tus),
		string(batch.Config),
		batch.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put batch: %w", err)
	}
	return nil
}

func nonNil(m map[int]int) map[int]int {
	if m == nil {
		return map[int]int{}
	}
	return m
}

const batchColumns = `
	seq,
	id,
	name,
	defender,
	requested,
	trials,
	corruption_kills,
	exceeded,
	cancelled,
	volleys,
	tus,
	config,
	created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (storage.BatchRecord, int64, error) {
	var (
		record             storage.BatchRecord
		seq                int64
		exceeded           int
		cancelled          int
		volleys, tus, conf string
		createdAt          int64
	)
	if err := row.Scan(
		&seq,
		&record.ID,
		&record.Name,
		&record.Defender,
		&record.Requested,
		&record.Trials,
		&record.CorruptionKills,
		&exceeded,
		&cancelled,
		&volleys,
		&tus,
		&conf,
		&createdAt,
	); err != nil {
		return storage.BatchRecord{}, 0, err
	}
	record.ExceededMaxVolleys = exceeded != 0
	record.Cancelled = cancelled != 0
	if err := json.Unmarshal([]byte(volleys), &record.Volleys); err != nil {
		return storage.BatchRecord{}, 0, fmt.Errorf("decode volleys: %w", err)
	}
	if err := json.Unmarshal([]byte(tus), &record.TUs); err != nil {
		return storage.BatchRecord{}, 0, fmt.Errorf("decode tus: %w", err)
	}
	if conf != "" {
		record.Config = []byte(conf)
	}
	record.CreatedAt = time.UnixMilli(createdAt).UTC()
	return record, seq, nil
}

// GetBatch loads one batch by id.
func (s *Store) GetBatch(ctx context.Context, id string) (storage.BatchRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.BatchRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, "SELECT"+batchColumns+"\nFROM batches WHERE id = ?", strings.TrimSpace(id))
	record, _, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.BatchRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.BatchRecord{}, fmt.Errorf("get batch: %w", err)
	}
	return record, nil
}

// ListBatches lists batches newest first.
func (s *Store) ListBatches(ctx context.Context, query storage.BatchQuery) (storage.BatchPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.BatchPage{}, err
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = storage.DefaultPageSize
	}
	pageSize = min(pageSize, storage.MaxPageSize)

	cond, err := filter.ParseBatchFilter(query.Filter)
	if err != nil {
		return storage.BatchPage{}, apperrors.Wrap(apperrors.CodeInvalidFilter, err.Error(), err)
	}
	var (
		clauses []string
		params  []any
	)
	if cond.Clause != "" {
		clauses = append(clauses, cond.Clause)
		params = append(params, cond.Params...)
	}
	if query.PageToken != "" {
		c, err := cursor.Decode(query.PageToken)
		if err != nil {
			return storage.BatchPage{}, apperrors.Wrap(apperrors.CodeInvalidFilter, fmt.Sprintf("page token: %v", err), err)
		}
		if err := cursor.ValidateFilterHash(c, query.Filter); err != nil {
			return storage.BatchPage{}, apperrors.Wrap(apperrors.CodeInvalidFilter, err.Error(), err)
		}
		clauses = append(clauses, "seq < ?")
		params = append(params, c.Seq)
	}

	sqlText := "SELECT" + batchColumns + "\nFROM batches"
	if len(clauses) > 0 {
		sqlText += "\nWHERE " + strings.Join(clauses, " AND ")
	}
	// One extra row tells whether another page exists.
	sqlText += "\nORDER BY seq DESC\nLIMIT ?"
	params = append(params, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return storage.BatchPage{}, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var (
		page    storage.BatchPage
		lastSeq int64
	)
	for rows.Next() {
		record, seq, err := scanBatch(rows)
		if err != nil {
			return storage.BatchPage{}, fmt.Errorf("scan batch: %w", err)
		}
		if len(page.Batches) == pageSize {
			token, err := cursor.Encode(cursor.New(lastSeq, query.Filter))
			if err != nil {
				return storage.BatchPage{}, err
			}
			page.NextPageToken = token
			break
		}
		page.Batches = append(page.Batches, record)
		lastSeq = seq
	}
	if err := rows.Err(); err != nil {
		return storage.BatchPage{}, fmt.Errorf("iterate batches: %w", err)
	}
	return page, nil
}

// EnqueueJob adds a queued job.
func (s *Store) EnqueueJob(ctx context.Context, job storage.JobRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	job.ID = strings.TrimSpace(job.ID)
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	if len(job.Config) == 0 {
		return fmt.Errorf("job config is required")
	}
	if job.Status == "" {
		job.Status = storage.JobQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO jobs (id, config, status, error, batch_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		job.ID,
		string(job.Config),
		string(job.Status),
		job.Error,
		job.BatchID,
		job.CreatedAt.UTC().UnixMilli(),
		job.UpdatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// ClaimNextJob claims the oldest queued job inside one transaction.
func (s *Store) ClaimNextJob(ctx context.Context, now time.Time, start storage.ClaimFunc) (storage.JobRecord, bool, error) {
	if err := s.ready(ctx); err != nil {
		return storage.JobRecord{}, false, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.JobRecord{}, false, fmt.Errorf("begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	job, err := scanJob(tx.QueryRowContext(ctx, `
SELECT id, config, status, error, batch_id, created_at, updated_at
FROM jobs
WHERE status = ?
ORDER BY seq
LIMIT 1
`, string(storage.JobQueued)))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.JobRecord{}, false, nil
	}
	if err != nil {
		return storage.JobRecord{}, false, fmt.Errorf("select queued job: %w", err)
	}

	if start == nil {
		job.Status = storage.JobRunning
	} else if job, err = start(job); err != nil {
		return storage.JobRecord{}, false, err
	}
	job.UpdatedAt = now.UTC().Truncate(time.Millisecond)
	if _, err := tx.ExecContext(ctx, `UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		string(job.Status), job.UpdatedAt.UnixMilli(), job.ID); err != nil {
		return storage.JobRecord{}, false, fmt.Errorf("claim job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return storage.JobRecord{}, false, fmt.Errorf("commit claim: %w", err)
	}
	return job, true, nil
}

// UpdateJob stores a job's status, error and batch id.
func (s *Store) UpdateJob(ctx context.Context, job storage.JobRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = time.Now().UTC()
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE jobs SET status = ?, error = ?, batch_id = ?, updated_at = ?
WHERE id = ?
`,
		string(job.Status),
		job.Error,
		job.BatchID,
		job.UpdatedAt.UTC().UnixMilli(),
		strings.TrimSpace(job.ID),
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetJob loads one job by id.
func (s *Store) GetJob(ctx context.Context, id string) (storage.JobRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.JobRecord{}, err
	}
	job, err := scanJob(s.sqlDB.QueryRowContext(ctx, `
SELECT id, config, status, error, batch_id, created_at, updated_at
FROM jobs
WHERE id = ?
`, strings.TrimSpace(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.JobRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.JobRecord{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func scanJob(row rowScanner) (storage.JobRecord, error) {
	var (
		job                  storage.JobRecord
		config, status       string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&job.ID, &config, &status, &job.Error, &job.BatchID, &createdAt, &updatedAt); err != nil {
		return storage.JobRecord{}, err
	}
	job.Config = []byte(config)
	job.Status = storage.JobStatus(status)
	job.CreatedAt = time.UnixMilli(createdAt).UTC()
	job.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return job, nil
}

var (
	_ storage.BatchStore = (*Store)(nil)
	_ storage.JobStore   = (*Store)(nil)
)
