package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

var _ Store = (*PostgresStore)(nil)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pgTx
	pool *pgxpool.Pool
}

// NewPostgresStore creates a progress store on an existing pool. The tables
// are created by database.Migrate.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pgTx: pgTx{q: pool}, pool: pool}, nil
}

// WithinTx runs fn in a transaction holding an advisory lock on the
// (userID, contentID) pair until commit or rollback.
func (s *PostgresStore) WithinTx(ctx context.Context, userID, contentID string, fn func(Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended($1::text || ':' || $2::text, 0))`,
			userID, contentID,
		); err != nil {
			return fmt.Errorf("lock progress pair: %w", err)
		}
		return fn(pgTx{q: tx})
	})
}

func (s *PostgresStore) WatchProgressFor(ctx context.Context, userID string, contentIDs []string) (map[string]WatchProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT user_id, content_id, watched_duration, total_duration, is_completed, updated_at
		 FROM watch_progress
		 WHERE user_id = $1 AND content_id = ANY($2)`,
		userID, contentIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("query watch progress: %w", err)
	}
	list, err := collectWatches(rows)
	if err != nil {
		return nil, err
	}

	out := make(map[string]WatchProgress, len(list))
	for _, p := range list {
		out[p.ContentID] = p
	}
	return out, nil
}

func (s *PostgresStore) AttemptSummariesFor(ctx context.Context, userID string, contentIDs []string) (map[string]AttemptSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT content_id, COUNT(*), BOOL_OR(is_successful)
		 FROM challenge_attempts
		 WHERE user_id = $1 AND content_id = ANY($2)
		 GROUP BY content_id`,
		userID, contentIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("query attempt summaries: %w", err)
	}
	defer rows.Close()

	out := make(map[string]AttemptSummary)
	for rows.Next() {
		var contentID string
		var sum AttemptSummary
		if err := rows.Scan(&contentID, &sum.Count, &sum.Succeeded); err != nil {
			return nil, fmt.Errorf("scan attempt summary: %w", err)
		}
		out[contentID] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempt summaries: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ActivityFor(ctx context.Context, contentIDs []string) (Activity, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT user_id, content_id, watched_duration, total_duration, is_completed, updated_at
		 FROM watch_progress
		 WHERE content_id = ANY($1)
		 ORDER BY user_id, content_id`,
		contentIDs,
	)
	if err != nil {
		return Activity{}, fmt.Errorf("query watch activity: %w", err)
	}
	watches, err := collectWatches(rows)
	if err != nil {
		return Activity{}, err
	}

	rows, err = s.pool.Query(ctx,
		`SELECT id::text, user_id, content_id, attempt_number, is_successful, submitted_at
		 FROM challenge_attempts
		 WHERE content_id = ANY($1)
		 ORDER BY user_id, content_id, attempt_number`,
		contentIDs,
	)
	if err != nil {
		return Activity{}, fmt.Errorf("query attempt activity: %w", err)
	}
	defer rows.Close()

	act := Activity{Watches: watches}
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.ContentID, &a.AttemptNumber, &a.IsSuccessful, &a.SubmittedAt); err != nil {
			return Activity{}, fmt.Errorf("scan attempt: %w", err)
		}
		act.Attempts = append(act.Attempts, a)
	}
	if err := rows.Err(); err != nil {
		return Activity{}, fmt.Errorf("iterate attempts: %w", err)
	}
	return act, nil
}

// pgTx runs record operations on a pool or inside a transaction.
type pgTx struct {
	q querier
}

func (t pgTx) GetWatchProgress(ctx context.Context, userID, contentID string) (WatchProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	p := WatchProgress{UserID: userID, ContentID: contentID}
	err := t.q.QueryRow(ctx,
		`SELECT watched_duration, total_duration, is_completed, updated_at
		 FROM watch_progress
		 WHERE user_id = $1 AND content_id = $2`,
		userID, contentID,
	).Scan(&p.WatchedDuration, &p.TotalDuration, &p.IsCompleted, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WatchProgress{}, ErrNotFound
		}
		return WatchProgress{}, fmt.Errorf("get watch progress: %w", err)
	}
	return p, nil
}

func (t pgTx) SaveWatchProgress(ctx context.Context, p WatchProgress) (WatchProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if p.UserID == "" || p.ContentID == "" {
		return WatchProgress{}, fmt.Errorf("user_id and content_id are required")
	}

	err := t.q.QueryRow(ctx,
		`INSERT INTO watch_progress (user_id, content_id, watched_duration, total_duration, is_completed, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (user_id, content_id) DO UPDATE
		 SET watched_duration = EXCLUDED.watched_duration,
		     total_duration = EXCLUDED.total_duration,
		     is_completed = EXCLUDED.is_completed,
		     updated_at = EXCLUDED.updated_at
		 RETURNING updated_at`,
		p.UserID, p.ContentID, p.WatchedDuration, p.TotalDuration, p.IsCompleted,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return WatchProgress{}, fmt.Errorf("save watch progress: %w", err)
	}
	return p, nil
}

func (t pgTx) ResetWatchProgress(ctx context.Context, userID, contentID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := t.q.Exec(ctx,
		`UPDATE watch_progress
		 SET watched_duration = 0, is_completed = FALSE, updated_at = NOW()
		 WHERE user_id = $1 AND content_id = $2`,
		userID, contentID,
	)
	if err != nil {
		return false, fmt.Errorf("reset watch progress: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (t pgTx) CountAttempts(ctx context.Context, userID, contentID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var n int
	if err := t.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM challenge_attempts WHERE user_id = $1 AND content_id = $2`,
		userID, contentID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return n, nil
}

func (t pgTx) HasSuccessfulAttempt(ctx context.Context, userID, contentID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var ok bool
	if err := t.q.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM challenge_attempts
		   WHERE user_id = $1 AND content_id = $2 AND is_successful
		 )`,
		userID, contentID,
	).Scan(&ok); err != nil {
		return false, fmt.Errorf("check successful attempt: %w", err)
	}
	return ok, nil
}

func (t pgTx) CreateAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if a.UserID == "" || a.ContentID == "" {
		return Attempt{}, fmt.Errorf("user_id and content_id are required")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = time.Now()
	}

	cmd, err := t.q.Exec(ctx,
		`INSERT INTO challenge_attempts (id, user_id, content_id, attempt_number, is_successful, submitted_at)
		 SELECT $1::uuid, $2::text, $3::text, $4::int, $5::boolean, $6::timestamptz
		 WHERE (SELECT COUNT(*) FROM challenge_attempts WHERE user_id = $2 AND content_id = $3) = $4::int - 1`,
		a.ID, a.UserID, a.ContentID, a.AttemptNumber, a.IsSuccessful, a.SubmittedAt,
	)
	if err != nil {
		return Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return Attempt{}, fmt.Errorf("attempt_number %d out of sequence", a.AttemptNumber)
	}
	return a, nil
}

func (t pgTx) DeleteAttempts(ctx context.Context, userID, contentID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := t.q.Exec(ctx,
		`DELETE FROM challenge_attempts WHERE user_id = $1 AND content_id = $2`,
		userID, contentID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete attempts: %w", err)
	}
	return int(cmd.RowsAffected()), nil
}

func collectWatches(rows pgx.Rows) ([]WatchProgress, error) {
	defer rows.Close()

	var out []WatchProgress
	for rows.Next() {
		var p WatchProgress
		if err := rows.Scan(&p.UserID, &p.ContentID, &p.WatchedDuration, &p.TotalDuration, &p.IsCompleted, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan watch progress: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watch progress: %w", err)
	}
	return out, nil
}
