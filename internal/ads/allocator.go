package ads

import (
	"sort"
)

// SlotRatio is the placement policy: at most one ad slot per this many
// calendar events.
const SlotRatio = 10

// Place returns the ads that fill a calendar view: at most
// eventCount/SlotRatio of the active ads whose every targeting criterion is
// satisfied by the viewer's interests. A criterion key absent from the
// interests is a non-match, not a wildcard.
//
// The result is deterministic for identical inputs: candidates are ordered
// earliest-created-first with ascending ID as the final tie-break, then
// truncated to the slot quota.
func Place(cal Calendar, catalog []Ad) []Ad {
	maxAds := cal.EventCount / SlotRatio
	if maxAds <= 0 {
		return nil
	}

	seen := make(map[string]bool, len(catalog))
	var candidates []Ad
	for _, ad := range catalog {
		if !ad.Active || seen[ad.ID] {
			continue
		}
		if !matches(ad.TargetCriteria, cal.UserInterests) {
			continue
		}
		seen[ad.ID] = true
		candidates = append(candidates, ad)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	if len(candidates) > maxAds {
		candidates = candidates[:maxAds]
	}
	return candidates
}

// matches reports whether every required criterion is present and equal in
// the viewer's interests.
func matches(criteria, interests map[string]string) bool {
	for key, want := range criteria {
		got, ok := interests[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}
