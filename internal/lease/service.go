package lease

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Saiid2001/login-security-landscape/internal/domain"
	"github.com/Saiid2001/login-security-landscape/internal/metrics"
)

// Grant is one leased session together with everything the experiment
// needs to use it: the stored cookie/local-storage blob and the
// best-matching login form, when the catalog has one.
type Grant struct {
	Session     domain.Session
	Site        string
	SessionData json.RawMessage
	LoginForm   *domain.LoginForm
}

// BatchGrant is a quorum of grants, all for the same website.
type BatchGrant struct {
	Site   string
	Grants []Grant
}

// Service owns a single request's path through reconciliation,
// allocation, and the store transaction. It is not safe for concurrent
// use; the server serializes access through its dispatcher.
type Service struct {
	store      domain.LeaseStore
	forms      domain.FormCatalog
	blobs      domain.SessionDataStore
	reconciler *Reconciler
	clock      clockwork.Clock
	leaseTTL   time.Duration
}

func NewService(
	store domain.LeaseStore,
	forms domain.FormCatalog,
	blobs domain.SessionDataStore,
	reconciler *Reconciler,
	clock clockwork.Clock,
	leaseTTL time.Duration,
) *Service {
	return &Service{
		store:      store,
		forms:      forms,
		blobs:      blobs,
		reconciler: reconciler,
		clock:      clock,
		leaseTTL:   leaseTTL,
	}
}

// Acquire leases a single session to the experiment. With a site pin the
// per-experiment website history is bypassed; otherwise websites already
// granted to the experiment are excluded and the grant is recorded.
func (s *Service) Acquire(ctx context.Context, experiment, site string) (*Grant, error) {
	slog.Info("get session", "experiment", experiment, "site", site)

	candidates, err := s.reconcile(ctx)
	if err != nil {
		return nil, err
	}

	if site != "" {
		candidates = pinSite(candidates, site)
	} else {
		used, err := s.store.UsedWebsites(ctx, experiment)
		if err != nil {
			return nil, fmt.Errorf("failed to load allocation history: %w", err)
		}
		candidates = excludeUsed(candidates, used)
	}

	if len(candidates) == 0 {
		return nil, domain.ErrNoSessionAvailable
	}
	chosen := candidates[0]

	// Load the grant payload before locking so a missing blob never
	// leaves a session locked behind a failed request.
	grant, err := s.buildGrant(ctx, chosen)
	if err != nil {
		return nil, err
	}

	until := s.clock.Now().Add(s.leaseTTL)
	lock := domain.LockGrant{
		SessionID:     chosen.Session.ID,
		WebsiteID:     chosen.Website.ID,
		RecordHistory: site == "",
	}
	if err := s.store.LockSessions(ctx, experiment, until, []domain.LockGrant{lock}); err != nil {
		return nil, err
	}

	applyLease(&grant.Session, experiment, until)
	metrics.LeasesGranted.WithLabelValues("single").Inc()
	return grant, nil
}

// AcquireBatch leases k sessions from distinct accounts of one website.
// Quorum is all-or-nothing: websites with fewer than k eligible sessions
// are never offered and no partial batch is returned.
func (s *Service) AcquireBatch(ctx context.Context, experiment string, k int, site string) (*BatchGrant, error) {
	slog.Info("get sessions", "experiment", experiment, "site", site, "k", k)

	if k < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", k)
	}

	candidates, err := s.reconcile(ctx)
	if err != nil {
		return nil, err
	}

	groups := batchGroups(candidates, k)

	var used map[int64]struct{}
	if site == "" {
		if used, err = s.store.UsedWebsites(ctx, experiment); err != nil {
			return nil, fmt.Errorf("failed to load allocation history: %w", err)
		}
	}

	group, ok := selectBatchGroup(groups, site, used)
	if !ok {
		return nil, domain.ErrNoSessionAvailable
	}

	grants := make([]Grant, 0, len(group.Members))
	locks := make([]domain.LockGrant, 0, len(group.Members))
	for _, member := range group.Members {
		grant, err := s.buildGrant(ctx, member)
		if err != nil {
			return nil, err
		}
		grants = append(grants, *grant)
		locks = append(locks, domain.LockGrant{
			SessionID:     member.Session.ID,
			WebsiteID:     member.Website.ID,
			RecordHistory: site == "",
		})
	}

	until := s.clock.Now().Add(s.leaseTTL)
	if err := s.store.LockSessions(ctx, experiment, until, locks); err != nil {
		return nil, err
	}

	for i := range grants {
		applyLease(&grants[i].Session, experiment, until)
	}
	metrics.LeasesGranted.WithLabelValues("batch").Add(float64(len(grants)))
	return &BatchGrant{Site: group.Website.Site, Grants: grants}, nil
}

// Release unlocks a session the experiment currently holds. A repeated
// release reports ErrSessionNotFound because the first one already
// cleared the ownership.
func (s *Service) Release(ctx context.Context, experiment, sessionID string) (err error) {
	slog.Info("unlock session", "experiment", experiment, "session", sessionID)

	session, err := s.store.SessionByNameAndExperiment(ctx, sessionID, experiment)
	if err != nil {
		return err
	}

	if err := s.store.Unlock(ctx, session.ID, s.clock.Now()); err != nil {
		return fmt.Errorf("failed to unlock session %s: %w", sessionID, err)
	}
	metrics.SessionsReleased.Inc()
	return nil
}

// reconcile runs both sweeps in the mandated order: TTL reclaim first
// and unconditionally, freshness reclaim second and only over the
// eligibility-filtered candidates.
func (s *Service) reconcile(ctx context.Context) ([]domain.Candidate, error) {
	if err := s.reconciler.ReclaimExpired(ctx); err != nil {
		return nil, err
	}

	candidates, err := s.store.ListEligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible sessions: %w", err)
	}

	return s.reconciler.FilterFresh(ctx, candidates)
}

func (s *Service) buildGrant(ctx context.Context, c domain.Candidate) (*Grant, error) {
	data, err := s.blobs.Load(ctx, c.Session.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to load session data for %s: %w", c.Session.Name, err)
	}

	form, err := s.forms.BestLoginForm(ctx, c.Website.Site)
	if err != nil {
		return nil, fmt.Errorf("failed to look up login form for %s: %w", c.Website.Site, err)
	}

	return &Grant{
		Session:     c.Session,
		Site:        c.Website.Site,
		SessionData: data,
		LoginForm:   form,
	}, nil
}

// applyLease mirrors the lock transition on the in-memory copy so the
// reply shows the session in its leased state.
func applyLease(session *domain.Session, experiment string, until time.Time) {
	session.Locked = true
	session.Experiment = &experiment
	session.UnlockTime = until
}
