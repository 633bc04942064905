package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/voidwalk/webgen/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists attempt outcomes to PostgreSQL. The journal is how
// selector-profile rot gets noticed: a provider whose failure rate climbs
// needs its locators re-recorded.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("history"),
	}, nil
}

const insertAttemptSQL = `
    INSERT INTO attempts (id, task, provider, url, ok, error_kind, error_detail, elapsed_ms, screenshot, created_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`

// Record journals one attempt outcome. Recording is advisory: a failed
// insert is logged and swallowed so a database hiccup never fails a
// generation that already produced an artifact.
func (s *Store) Record(ctx context.Context, outcome schemas.AttemptOutcome) {
	var kind, detail string
	if outcome.Err != nil {
		kind = string(outcome.Err.Kind)
		detail = outcome.Err.Detail
	}

	_, err := s.pool.Exec(ctx, insertAttemptSQL,
		uuid.NewString(),
		string(outcome.Task),
		outcome.Provider,
		outcome.URL,
		outcome.OK(),
		kind,
		detail,
		outcome.Elapsed.Milliseconds(),
		outcome.ScreenshotPath,
		outcome.StartedAt.UTC(),
	)
	if err != nil {
		s.log.Error("Failed to record attempt", zap.Error(err),
			zap.String("provider", outcome.Provider))
	}
}

// FailureCount summarizes recent failures for one provider.
type FailureCount struct {
	Provider string
	Kind     schemas.ErrorKind
	Count    int64
}

// RecentFailures aggregates failures per provider and error kind since the
// given cutoff, most frequent first.
func (s *Store) RecentFailures(ctx context.Context, since time.Time) ([]FailureCount, error) {
	query := `
        SELECT provider, error_kind, COUNT(*)
        FROM attempts
        WHERE ok = FALSE AND created_at >= $1
        GROUP BY provider, error_kind
        ORDER BY COUNT(*) DESC;
    `
	rows, err := s.pool.Query(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query attempt failures: %w", err)
	}
	defer rows.Close()

	var counts []FailureCount
	for rows.Next() {
		var fc FailureCount
		var kindStr string
		if err := rows.Scan(&fc.Provider, &kindStr, &fc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan failure row: %w", err)
		}
		fc.Kind = schemas.ErrorKind(kindStr)
		counts = append(counts, fc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return counts, nil
}
