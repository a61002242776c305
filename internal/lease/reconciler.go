package lease

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Saiid2001/login-security-landscape/internal/domain"
	"github.com/Saiid2001/login-security-landscape/internal/metrics"
)

// Reconciler reclaims leases whose TTL elapsed and force-expires
// sessions that sat unused past their freshness window. It runs on the
// critical path of every request; there is no background timer.
type Reconciler struct {
	store        domain.LeaseStore
	clock        clockwork.Clock
	autoWindow   time.Duration
	manualWindow time.Duration
}

func NewReconciler(store domain.LeaseStore, clock clockwork.Clock, autoWindow, manualWindow time.Duration) *Reconciler {
	return &Reconciler{
		store:        store,
		clock:        clock,
		autoWindow:   autoWindow,
		manualWindow: manualWindow,
	}
}

// ReclaimExpired unlocks every session whose lease deadline has passed,
// whether or not any client asked for it. This recovers leases abandoned
// by crashed or misbehaving experiments.
func (r *Reconciler) ReclaimExpired(ctx context.Context) error {
	now := r.clock.Now()

	expired, err := r.store.ListExpiredLeases(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list expired leases: %w", err)
	}

	for _, c := range expired {
		experiment := ""
		if c.Session.Experiment != nil {
			experiment = *c.Session.Experiment
		}
		slog.Warn("lease not released in time, reclaiming",
			"experiment", experiment,
			"session", c.Session.Name,
			"site", c.Website.Site,
			"overdue", now.Sub(c.Session.UnlockTime))

		if err := r.store.Unlock(ctx, c.Session.ID, now); err != nil {
			return fmt.Errorf("failed to reclaim session %s: %w", c.Session.Name, err)
		}
		metrics.SessionsReclaimed.WithLabelValues("ttl").Inc()
	}

	return nil
}

// FilterFresh returns the candidates still inside their freshness
// window. Over-age candidates are unlocked (forcing re-verification)
// and dropped. A candidate with an unrecognized verify_type is dropped
// without side effects: bad verification metadata on one row must not
// take the service down.
func (r *Reconciler) FilterFresh(ctx context.Context, candidates []domain.Candidate) ([]domain.Candidate, error) {
	now := r.clock.Now()

	usable := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		window, err := r.window(c.Session.VerifyType)
		if err != nil {
			slog.Error("session has invalid verify_type, excluding from pool",
				"session", c.Session.Name,
				"site", c.Website.Site,
				"verify_type", string(c.Session.VerifyType))
			metrics.InvalidVerifyTypes.Inc()
			continue
		}

		if now.Sub(c.Session.UpdateTime) > window {
			slog.Info("session expired before use, scheduling re-validation",
				"session", c.Session.Name,
				"site", c.Website.Site,
				"age", now.Sub(c.Session.UpdateTime))

			if err := r.store.Unlock(ctx, c.Session.ID, now); err != nil {
				return nil, fmt.Errorf("failed to expire session %s: %w", c.Session.Name, err)
			}
			metrics.SessionsReclaimed.WithLabelValues("freshness").Inc()
			continue
		}

		usable = append(usable, c)
	}

	return usable, nil
}

func (r *Reconciler) window(vt domain.VerifyType) (time.Duration, error) {
	switch vt {
	case domain.VerifyAuto:
		return r.autoWindow, nil
	case domain.VerifyManual:
		return r.manualWindow, nil
	default:
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidVerifyType, string(vt))
	}
}
