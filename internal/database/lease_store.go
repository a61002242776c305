package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Saiid2001/login-security-landscape/internal/domain"
)

// candidateColumns must match the Scan order in scanCandidate.
const candidateColumns = `
	s.id, s.name, s.status_id, s.locked, s.verified, s.verify_type,
	s.experiment, s.unlock_time, s.update_time,
	a.id, w.id, w.site, w.origin, w.landing_page, w.t_rank, w.c_bucket, w.created_at`

const candidateJoins = `
	FROM sessions s
	JOIN accounts a ON a.session_id = s.id
	JOIN websites w ON w.id = a.website_id
	JOIN session_statuses st ON st.id = s.status_id`

// sessionColumns must match the Scan order in scanSession.
const sessionColumns = `id, name, status_id, locked, verified, verify_type, experiment, unlock_time, update_time`

// unlockSessionSQL performs the release transition described in the data
// model: clear the lease, reset verification, mark the session expired.
const unlockSessionSQL = `
	UPDATE sessions
	SET locked = FALSE,
	    verified = FALSE,
	    verify_type = 'no',
	    experiment = NULL,
	    status_id = (SELECT id FROM session_statuses WHERE name = 'expired'),
	    unlock_time = $2
	WHERE id = $1`

const insertValidateTaskSQL = `
	INSERT INTO validate_tasks (session_id, task_type, created_at)
	VALUES ($1, 'auto', $2)`

// LeaseStore implements domain.LeaseStore backed by PostgreSQL.
type LeaseStore struct {
	pool *pgxpool.Pool
}

func NewLeaseStore(pool *pgxpool.Pool) *LeaseStore {
	return &LeaseStore{pool: pool}
}

func scanCandidate(rows pgx.Rows) (domain.Candidate, error) {
	var c domain.Candidate
	err := rows.Scan(
		&c.Session.ID, &c.Session.Name, &c.Session.StatusID, &c.Session.Locked,
		&c.Session.Verified, &c.Session.VerifyType, &c.Session.Experiment,
		&c.Session.UnlockTime, &c.Session.UpdateTime,
		&c.AccountID, &c.Website.ID, &c.Website.Site, &c.Website.Origin,
		&c.Website.LandingPage, &c.Website.TrancoRank, &c.Website.CruxBucket,
		&c.Website.CreatedAt,
	)
	return c, err
}

func (s *LeaseStore) queryCandidates(ctx context.Context, query string, args ...any) ([]domain.Candidate, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []domain.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (s *LeaseStore) ListEligible(ctx context.Context) ([]domain.Candidate, error) {
	candidates, err := s.queryCandidates(ctx, `
		SELECT `+candidateColumns+candidateJoins+`
		WHERE st.active AND NOT s.locked AND s.verified
		ORDER BY s.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible sessions: %w", err)
	}
	return candidates, nil
}

func (s *LeaseStore) ListExpiredLeases(ctx context.Context, now time.Time) ([]domain.Candidate, error) {
	candidates, err := s.queryCandidates(ctx, `
		SELECT `+candidateColumns+candidateJoins+`
		WHERE s.locked AND s.unlock_time <= $1
		ORDER BY s.id`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired leases: %w", err)
	}
	return candidates, nil
}

func (s *LeaseStore) Unlock(ctx context.Context, sessionID int64, now time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	tag, err := tx.Exec(ctx, unlockSessionSQL, sessionID, now)
	if err != nil {
		return fmt.Errorf("failed to unlock session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}

	if _, err := tx.Exec(ctx, insertValidateTaskSQL, sessionID, now); err != nil {
		return fmt.Errorf("failed to enqueue validation task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *LeaseStore) LockSessions(ctx context.Context, experiment string, until time.Time, grants []domain.LockGrant) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	for _, grant := range grants {
		// Conditional on the session still being unlocked: a concurrent
		// worker that got there first aborts the whole batch.
		tag, err := tx.Exec(ctx, `
			UPDATE sessions
			SET locked = TRUE, experiment = $1, unlock_time = $2
			WHERE id = $3 AND NOT locked`,
			experiment, until, grant.SessionID)
		if err != nil {
			return fmt.Errorf("failed to lock session %d: %w", grant.SessionID, err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNoSessionAvailable
		}

		if grant.RecordHistory {
			if _, err := tx.Exec(ctx, `
				INSERT INTO experiment_websites (experiment, website_id, session_id)
				VALUES ($1, $2, $3)`,
				experiment, grant.WebsiteID, grant.SessionID); err != nil {
				return fmt.Errorf("failed to record allocation: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *LeaseStore) UsedWebsites(ctx context.Context, experiment string) (map[int64]struct{}, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT website_id FROM experiment_websites WHERE experiment = $1`, experiment)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation history: %w", err)
	}
	defer rows.Close()

	used := make(map[int64]struct{})
	for rows.Next() {
		var websiteID int64
		if err := rows.Scan(&websiteID); err != nil {
			return nil, err
		}
		used[websiteID] = struct{}{}
	}
	return used, rows.Err()
}

func (s *LeaseStore) SessionByNameAndExperiment(ctx context.Context, name, experiment string) (*domain.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE name = $1 AND experiment = $2`, name, experiment)

	var session domain.Session
	err := row.Scan(
		&session.ID, &session.Name, &session.StatusID, &session.Locked,
		&session.Verified, &session.VerifyType, &session.Experiment,
		&session.UnlockTime, &session.UpdateTime,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (s *LeaseStore) ForceReleaseAll(ctx context.Context, now time.Time) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	tag, err := tx.Exec(ctx, `
		WITH released AS (
			UPDATE sessions
			SET locked = FALSE,
			    verified = FALSE,
			    verify_type = 'no',
			    experiment = NULL,
			    status_id = (SELECT id FROM session_statuses WHERE name = 'expired'),
			    unlock_time = $1
			WHERE experiment IS NOT NULL
			RETURNING id
		)
		INSERT INTO validate_tasks (session_id, task_type, created_at)
		SELECT id, 'auto', $1 FROM released`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to release sessions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
