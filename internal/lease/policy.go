package lease

import (
	"sort"

	"github.com/Saiid2001/login-security-landscape/internal/domain"
)

// The allocation policy is pure: it only rearranges candidate slices the
// reconciler already vetted. All ordering is deterministic so repeated
// requests against the same pool state pick the same sessions.

// pinSite keeps at most one candidate for the named site, preserving the
// stable iteration order of the input.
func pinSite(candidates []domain.Candidate, site string) []domain.Candidate {
	for _, c := range candidates {
		if c.Website.Site == site {
			return []domain.Candidate{c}
		}
	}
	return nil
}

// excludeUsed drops candidates whose website was already handed to the
// experiment through a non-pinned grant.
func excludeUsed(candidates []domain.Candidate, used map[int64]struct{}) []domain.Candidate {
	kept := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := used[c.Website.ID]; ok {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// siteGroup is one website's share of the eligible pool, already
// truncated to the batch quorum.
type siteGroup struct {
	Website domain.Website
	Members []domain.Candidate
}

// batchGroups groups candidates by website and keeps only websites with
// at least k sessions from distinct accounts. Each qualifying group is
// truncated to k members by ascending account id; groups are ordered by
// ascending website id.
func batchGroups(candidates []domain.Candidate, k int) []siteGroup {
	byWebsite := make(map[int64][]domain.Candidate)
	websites := make(map[int64]domain.Website)
	for _, c := range candidates {
		byWebsite[c.Website.ID] = append(byWebsite[c.Website.ID], c)
		websites[c.Website.ID] = c.Website
	}

	groups := make([]siteGroup, 0, len(byWebsite))
	for id, members := range byWebsite {
		members = distinctAccounts(members)
		if len(members) < k {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].AccountID < members[j].AccountID })
		groups = append(groups, siteGroup{Website: websites[id], Members: members[:k]})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Website.ID < groups[j].Website.ID })
	return groups
}

// distinctAccounts keeps the first candidate seen per account. Accounts
// hold at most one session, so this is a safety net against duplicate
// join rows rather than an expected path.
func distinctAccounts(members []domain.Candidate) []domain.Candidate {
	seen := make(map[int64]struct{}, len(members))
	kept := make([]domain.Candidate, 0, len(members))
	for _, c := range members {
		if _, ok := seen[c.AccountID]; ok {
			continue
		}
		seen[c.AccountID] = struct{}{}
		kept = append(kept, c)
	}
	return kept
}

// selectBatchGroup applies the site pin or the per-experiment history
// filter and returns the first remaining group. Quorum is all-or-nothing:
// a pinned site that does not qualify yields no partial result.
func selectBatchGroup(groups []siteGroup, site string, used map[int64]struct{}) (siteGroup, bool) {
	if site != "" {
		for _, g := range groups {
			if g.Website.Site == site {
				return g, true
			}
		}
		return siteGroup{}, false
	}

	for _, g := range groups {
		if _, ok := used[g.Website.ID]; ok {
			continue
		}
		return g, true
	}
	return siteGroup{}, false
}
