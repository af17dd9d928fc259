package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/ticketchain/service/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed sql/schema.sql
var schemaSQL string

// ErrNotFound is returned when a submission does not exist.
var ErrNotFound = errors.New("submission not found")

// Store provides database operations for the service.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If metrics is nil, no metrics will be recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		metrics: m,
	}
}

// Submission is a transaction accepted by the network and tracked until it is final.
type Submission struct {
	Hash        string    `json:"hash"`
	Signer      string    `json:"signer"`
	Status      string    `json:"status"`
	Error       *string   `json:"error,omitempty"`
	Ledger      *int64    `json:"ledger,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RecordSubmissionParams contains the parameters for recording a submission.
type RecordSubmissionParams struct {
	Hash   string
	Signer string
	Status string
}

// UpdateSubmissionStatusParams contains the final state of a submission.
type UpdateSubmissionStatusParams struct {
	Hash   string
	Status string
	Error  *string
	Ledger *int64
}

// ListSubmissionsParams contains filter and pagination parameters.
// An empty Signer lists every submission.
type ListSubmissionsParams struct {
	Signer string
	Limit  int32
	Offset int32
}

// Migrate applies the schema. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const submissionColumns = "hash, signer, status, error, ledger, submitted_at, updated_at"

// RecordSubmission inserts a submission. Re-recording the same hash keeps the
// original row and refreshes its status, unless the row already holds a final
// status (SUCCESS, FAILED, TIMEOUT), in which case the stored row is returned.
func (s *Store) RecordSubmission(ctx context.Context, params RecordSubmissionParams) (sub *Submission, err error) {
	defer s.observe("record_submission", time.Now(), &err)

	row := s.pool.QueryRow(ctx, `
		INSERT INTO submissions (hash, signer, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (hash) DO UPDATE SET status = EXCLUDED.status, updated_at = now()
		WHERE submissions.status NOT IN ('SUCCESS', 'FAILED', 'TIMEOUT')
		RETURNING `+submissionColumns,
		params.Hash, params.Signer, params.Status,
	)
	sub, err = scanSubmission(row)
	if !errors.Is(err, ErrNotFound) {
		return sub, err
	}

	// The conflict guard skipped the update; the row is final.
	row = s.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE hash = $1`, params.Hash)
	return scanSubmission(row)
}

// UpdateSubmissionStatus stores the final status of a submission.
func (s *Store) UpdateSubmissionStatus(ctx context.Context, params UpdateSubmissionStatusParams) (sub *Submission, err error) {
	defer s.observe("update_submission_status", time.Now(), &err)

	row := s.pool.QueryRow(ctx, `
		UPDATE submissions
		SET status = $2, error = $3, ledger = $4, updated_at = now()
		WHERE hash = $1
		RETURNING `+submissionColumns,
		params.Hash, params.Status, pgtextFromStringPtr(params.Error), pgint8FromInt64Ptr(params.Ledger),
	)
	return scanSubmission(row)
}

// GetSubmission retrieves a submission by hash.
func (s *Store) GetSubmission(ctx context.Context, hash string) (sub *Submission, err error) {
	defer s.observe("get_submission", time.Now(), &err)

	row := s.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE hash = $1`, hash)
	return scanSubmission(row)
}

// ListSubmissions returns submissions, newest first.
func (s *Store) ListSubmissions(ctx context.Context, params ListSubmissionsParams) (subs []*Submission, err error) {
	defer s.observe("list_submissions", time.Now(), &err)

	if params.Limit <= 0 {
		params.Limit = 50
	}

	var rows pgx.Rows
	if params.Signer == "" {
		rows, err = s.pool.Query(ctx, `
			SELECT `+submissionColumns+` FROM submissions
			ORDER BY submitted_at DESC
			LIMIT $1 OFFSET $2`,
			params.Limit, params.Offset,
		)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT `+submissionColumns+` FROM submissions
			WHERE signer = $1
			ORDER BY submitted_at DESC
			LIMIT $2 OFFSET $3`,
			params.Signer, params.Limit, params.Offset,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	submissions := make([]*Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, sub)
	}
	return submissions, rows.Err()
}

func scanSubmission(row pgx.Row) (*Submission, error) {
	var (
		sub    Submission
		errMsg pgtype.Text
		ledger pgtype.Int8
	)
	err := row.Scan(&sub.Hash, &sub.Signer, &sub.Status, &errMsg, &ledger, &sub.SubmittedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	sub.Error = stringPtrFromPgtext(errMsg)
	sub.Ledger = int64PtrFromPgint8(ledger)
	return &sub, nil
}

func (s *Store) observe(operation string, start time.Time, err *error) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery(operation, "submissions", time.Since(start).Seconds(), *err)
	}
}

// Helper functions for type conversion

func pgtextFromStringPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func stringPtrFromPgtext(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func pgint8FromInt64Ptr(i *int64) pgtype.Int8 {
	if i == nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: *i, Valid: true}
}

func int64PtrFromPgint8(i pgtype.Int8) *int64 {
	if !i.Valid {
		return nil
	}
	return &i.Int64
}
