package job

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the
	// expected state.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidJob is returned when a job is missing required fields.
	ErrInvalidJob = errors.New("invalid job")
)

// Store defines the interface for job persistence.
type Store interface {
	// Enqueue creates a new pending job.
	Enqueue(ctx context.Context, j *Job) (*Job, error)

	// NextPending atomically claims the oldest pending job, marking it
	// running. Returns nil with no error when the queue is empty.
	NextPending(ctx context.Context) (*Job, error)

	// Complete marks a running job completed.
	Complete(ctx context.Context, id string) error

	// Fail marks a running job failed with the given reason.
	Fail(ctx context.Context, id, reason string) error

	// Requeue returns a running job to pending, for jobs whose resource
	// lock could not be acquired in time.
	Requeue(ctx context.Context, id string) error

	// GetByID retrieves a job by ID.
	GetByID(ctx context.Context, id string) (*Job, error)
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateSchema creates the jobs table if it does not exist.
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			id         text PRIMARY KEY,
			resource   text NOT NULL,
			payload    jsonb,
			status     text NOT NULL,
			attempts   integer NOT NULL DEFAULT 0,
			last_error text,
			created_at timestamptz NOT NULL,
			updated_at timestamptz NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create jobs table: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS jobs_status_created_at_idx
		ON jobs (status, created_at)
	`)
	if err != nil {
		return fmt.Errorf("create jobs index: %w", err)
	}
	return nil
}

// Enqueue creates a new pending job in the database.
func (s *PostgresStore) Enqueue(ctx context.Context, j *Job) (*Job, error) {
	if j == nil || j.Resource == "" {
		return nil, ErrInvalidJob
	}

	if j.ID == "" {
		j.ID = uuid.New().String()
	}

	now := time.Now()
	j.Status = StatusPending
	j.CreatedAt = now
	j.UpdatedAt = now

	_, err := s.db.Exec(ctx, `
		INSERT INTO jobs (id, resource, payload, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, j.ID, j.Resource, []byte(j.Payload), j.Status, j.Attempts, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return j, nil
}

// NextPending claims the oldest pending job. FOR UPDATE SKIP LOCKED keeps
// concurrent workers from claiming the same row.
func (s *PostgresStore) NextPending(ctx context.Context) (*Job, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE jobs
		SET status = $1, attempts = attempts + 1, updated_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = $2
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, resource, payload, status, attempts, last_error, created_at, updated_at
	`, StatusRunning, StatusPending)

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim pending job: %w", err)
	}
	return j, nil
}

// Complete marks a running job completed.
func (s *PostgresStore) Complete(ctx context.Context, id string) error {
	return s.transition(ctx, id, StatusRunning, StatusCompleted, "")
}

// Fail marks a running job failed with the given reason.
func (s *PostgresStore) Fail(ctx context.Context, id, reason string) error {
	return s.transition(ctx, id, StatusRunning, StatusFailed, reason)
}

// Requeue returns a running job to pending.
func (s *PostgresStore) Requeue(ctx context.Context, id string) error {
	return s.transition(ctx, id, StatusRunning, StatusPending, "")
}

func (s *PostgresStore) transition(ctx context.Context, id string, from, to Status, reason string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs
		SET status = $1, last_error = NULLIF($2, ''), updated_at = now()
		WHERE id = $3 AND status = $4
	`, to, reason, id, from)
	if err != nil {
		return fmt.Errorf("update job %s to %s: %w", id, to, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// GetByID retrieves a job by ID.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, resource, payload, status, attempts, last_error, created_at, updated_at
		FROM jobs WHERE id = $1
	`, id)

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("query job %s: %w", id, err)
	}
	return j, nil
}

func scanJob(row pgx.Row) (*Job, error) {
	j := &Job{}
	var payload []byte
	var lastError *string

	if err := row.Scan(
		&j.ID, &j.Resource, &payload, &j.Status, &j.Attempts,
		&lastError, &j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		return nil, err
	}

	j.Payload = payload
	if lastError != nil {
		j.LastError = *lastError
	}
	return j, nil
}

// InMemoryStore is an in-memory implementation of Store for testing.
type InMemoryStore struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	counter int64
}

// NewInMemoryStore creates a new in-memory job store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{jobs: make(map[string]*Job)}
}

// Enqueue creates a new pending job in memory.
func (s *InMemoryStore) Enqueue(ctx context.Context, j *Job) (*Job, error) {
	if j == nil || j.Resource == "" {
		return nil, ErrInvalidJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if j.ID == "" {
		s.counter++
		j.ID = fmt.Sprintf("job-%d", s.counter)
	}

	now := time.Now()
	j.Status = StatusPending
	j.CreatedAt = now
	j.UpdatedAt = now

	stored := *j
	s.jobs[j.ID] = &stored

	return j, nil
}

// NextPending claims the oldest pending job.
func (s *InMemoryStore) NextPending(ctx context.Context) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*Job
	for _, j := range s.jobs {
		if j.Status == StatusPending {
			pending = append(pending, j)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	sort.Slice(pending, func(i, k int) bool {
		if pending[i].CreatedAt.Equal(pending[k].CreatedAt) {
			return pending[i].ID < pending[k].ID
		}
		return pending[i].CreatedAt.Before(pending[k].CreatedAt)
	})

	claimed := pending[0]
	claimed.Status = StatusRunning
	claimed.Attempts++
	claimed.UpdatedAt = time.Now()

	copied := *claimed
	return &copied, nil
}

// Complete marks a running job completed.
func (s *InMemoryStore) Complete(ctx context.Context, id string) error {
	return s.transition(id, StatusRunning, StatusCompleted, "")
}

// Fail marks a running job failed with the given reason.
func (s *InMemoryStore) Fail(ctx context.Context, id, reason string) error {
	return s.transition(id, StatusRunning, StatusFailed, reason)
}

// Requeue returns a running job to pending.
func (s *InMemoryStore) Requeue(ctx context.Context, id string) error {
	return s.transition(id, StatusRunning, StatusPending, "")
}

func (s *InMemoryStore) transition(id string, from, to Status, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.Status != from {
		return ErrJobNotFound
	}
	j.Status = to
	j.LastError = reason
	j.UpdatedAt = time.Now()
	return nil
}

// GetByID retrieves a job by ID.
func (s *InMemoryStore) GetByID(ctx context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	copied := *j
	return &copied, nil
}

// Ensure interfaces are implemented
var _ Store = (*PostgresStore)(nil)
var _ Store = (*InMemoryStore)(nil)
