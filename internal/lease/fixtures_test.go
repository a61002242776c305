package lease

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Saiid2001/login-security-landscape/internal/domain"
)

// Status ids mirroring the seeded lookup table.
const (
	statusActive  int64 = 1
	statusExpired int64 = 2
)

// fakeStore is an in-memory domain.LeaseStore with the same transition
// semantics as the Postgres implementation.
type fakeStore struct {
	candidates    []domain.Candidate
	history       map[string]map[int64]struct{}
	validateTasks map[int64]int
	lockErr       error
}

func newFakeStore(candidates ...domain.Candidate) *fakeStore {
	return &fakeStore{
		candidates:    candidates,
		history:       make(map[string]map[int64]struct{}),
		validateTasks: make(map[int64]int),
	}
}

func (f *fakeStore) ListEligible(context.Context) ([]domain.Candidate, error) {
	var eligible []domain.Candidate
	for _, c := range f.candidates {
		if c.Session.StatusID == statusActive && !c.Session.Locked && c.Session.Verified {
			eligible = append(eligible, c)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Session.ID < eligible[j].Session.ID })
	return eligible, nil
}

func (f *fakeStore) ListExpiredLeases(_ context.Context, now time.Time) ([]domain.Candidate, error) {
	var expired []domain.Candidate
	for _, c := range f.candidates {
		if c.Session.Locked && !c.Session.UnlockTime.After(now) {
			expired = append(expired, c)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].Session.ID < expired[j].Session.ID })
	return expired, nil
}

func (f *fakeStore) Unlock(_ context.Context, sessionID int64, now time.Time) error {
	c := f.find(sessionID)
	if c == nil {
		return domain.ErrSessionNotFound
	}
	c.Session.Locked = false
	c.Session.Verified = false
	c.Session.VerifyType = domain.VerifyNone
	c.Session.Experiment = nil
	c.Session.StatusID = statusExpired
	c.Session.UnlockTime = now
	f.validateTasks[sessionID]++
	return nil
}

func (f *fakeStore) LockSessions(_ context.Context, experiment string, until time.Time, grants []domain.LockGrant) error {
	if f.lockErr != nil {
		return f.lockErr
	}
	for _, grant := range grants {
		c := f.find(grant.SessionID)
		if c == nil || c.Session.Locked {
			return domain.ErrNoSessionAvailable
		}
		exp := experiment
		c.Session.Locked = true
		c.Session.Experiment = &exp
		c.Session.UnlockTime = until
		if grant.RecordHistory {
			if f.history[experiment] == nil {
				f.history[experiment] = make(map[int64]struct{})
			}
			f.history[experiment][grant.WebsiteID] = struct{}{}
		}
	}
	return nil
}

func (f *fakeStore) UsedWebsites(_ context.Context, experiment string) (map[int64]struct{}, error) {
	used := make(map[int64]struct{})
	for id := range f.history[experiment] {
		used[id] = struct{}{}
	}
	return used, nil
}

func (f *fakeStore) SessionByNameAndExperiment(_ context.Context, name, experiment string) (*domain.Session, error) {
	for i := range f.candidates {
		s := &f.candidates[i].Session
		if s.Name == name && s.Experiment != nil && *s.Experiment == experiment {
			copied := *s
			return &copied, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

func (f *fakeStore) ForceReleaseAll(ctx context.Context, now time.Time) (int, error) {
	released := 0
	for i := range f.candidates {
		if f.candidates[i].Session.Experiment != nil {
			if err := f.Unlock(ctx, f.candidates[i].Session.ID, now); err != nil {
				return released, err
			}
			released++
		}
	}
	return released, nil
}

func (f *fakeStore) find(sessionID int64) *domain.Candidate {
	for i := range f.candidates {
		if f.candidates[i].Session.ID == sessionID {
			return &f.candidates[i]
		}
	}
	return nil
}

// requireLeaseInvariant asserts that every locked session names its
// holder and deadline.
func (f *fakeStore) requireLeaseInvariant(t *testing.T) {
	t.Helper()
	for _, c := range f.candidates {
		if c.Session.Locked {
			require.NotNil(t, c.Session.Experiment, "locked session %s has no experiment", c.Session.Name)
			require.False(t, c.Session.UnlockTime.IsZero(), "locked session %s has no unlock time", c.Session.Name)
		}
	}
}

// fakeBlobs serves session data from memory.
type fakeBlobs struct {
	data map[string]json.RawMessage
}

func newFakeBlobs(names ...string) *fakeBlobs {
	f := &fakeBlobs{data: make(map[string]json.RawMessage)}
	for _, name := range names {
		f.data[name] = json.RawMessage(fmt.Sprintf(`{"cookies":[],"origin":%q}`, name))
	}
	return f
}

func (f *fakeBlobs) Load(_ context.Context, name string) (json.RawMessage, error) {
	blob, ok := f.data[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionDataMissing, name)
	}
	return blob, nil
}

// fakeForms serves the catalog lookup with the real preference order.
type fakeForms struct {
	forms []domain.LoginForm
}

func (f *fakeForms) BestLoginForm(_ context.Context, site string) (*domain.LoginForm, error) {
	var fallback *domain.LoginForm
	for i := range f.forms {
		form := f.forms[i]
		if form.Site != site {
			continue
		}
		if form.Success {
			return &form, nil
		}
		if fallback == nil {
			fallback = &form
		}
	}
	return fallback, nil
}

type candidateOpt func(*domain.Candidate)

func locked(experiment string, until time.Time) candidateOpt {
	return func(c *domain.Candidate) {
		c.Session.Locked = true
		c.Session.Experiment = &experiment
		c.Session.UnlockTime = until
	}
}

func verifiedAt(vt domain.VerifyType, updateTime time.Time) candidateOpt {
	return func(c *domain.Candidate) {
		c.Session.VerifyType = vt
		c.Session.UpdateTime = updateTime
	}
}

func unverified() candidateOpt {
	return func(c *domain.Candidate) {
		c.Session.Verified = false
		c.Session.VerifyType = domain.VerifyNone
	}
}

func withStatus(statusID int64) candidateOpt {
	return func(c *domain.Candidate) { c.Session.StatusID = statusID }
}

// newCandidate builds an eligible, freshly verified candidate unless
// options say otherwise.
func newCandidate(sessionID, accountID, websiteID int64, site string, now time.Time, opts ...candidateOpt) domain.Candidate {
	c := domain.Candidate{
		Session: domain.Session{
			ID:         sessionID,
			Name:       fmt.Sprintf("session-%d", sessionID),
			StatusID:   statusActive,
			Verified:   true,
			VerifyType: domain.VerifyAuto,
			UnlockTime: now,
			UpdateTime: now,
		},
		AccountID: accountID,
		Website: domain.Website{
			ID:          websiteID,
			Site:        site,
			Origin:      "https://" + site,
			LandingPage: "https://" + site + "/",
		},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
