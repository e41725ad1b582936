// Package selector implements C8: a stable descending sort by score, a
// primary pick, and an optional secondary pick at a computed lower
// resolution tier.
package selector

import (
	"sort"

	"github.com/autostream/gateway/internal/model"
)

// Result is the output of Select.
type Result struct {
	Primary          *model.Candidate
	Secondary        *model.Candidate
	Sorted           []model.Candidate
}

// nextTier maps a resolution to the target tier for the secondary pick
// (spec §4.9): 2160->1080, 1080->720, 720->480, <=480->none.
func nextTier(resolution int) int {
	switch {
	case resolution > 1080:
		return 1080
	case resolution > 720:
		return 720
	case resolution > 480:
		return 480
	default:
		return 0
	}
}

// Select sorts candidates by descending score (stable on ties, preserving
// insertion order), picks the primary, and always attempts to pick a
// secondary so that hiding it later is a pure display-layer slice rather
// than a different code path (spec §4.9: "this keeps behavior
// deterministic when the toggle flips").
func Select(candidates []model.Candidate) Result {
	sorted := make([]model.Candidate, len(candidates))
	copy(sorted, candidates)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	if len(sorted) == 0 {
		return Result{Sorted: sorted}
	}

	primary := &sorted[0]
	res := Result{Primary: primary, Sorted: sorted}

	if nextTier(primary.Features.Resolution) == 0 {
		return res
	}
	target := nextTier(primary.Features.Resolution)
	for i := 1; i < len(sorted); i++ {
		cand := &sorted[i]
		if cand.Features.Resolution != target {
			continue
		}
		if cand.Identity() == primary.Identity() {
			continue
		}
		res.Secondary = cand
		break
	}
	return res
}
