package personalize

import "github.com/mkurosawa/kaiji/internal/event"

// DefaultCategoryWeights is the preference weight table used when a
// profile has no override for a category. Weights span 0.5–1.5: above
// 1.0 adds relevance points, below subtracts. A weight of 1.4 or more
// marks a category as critical and upgrades medium impact regardless
// of score.
var DefaultCategoryWeights = map[event.Category]float64{
	event.CategoryIncident:       1.4,
	event.CategoryUpwardRevision: 1.3,
	event.CategoryCapitalPolicy:  1.2,
	event.CategoryEarnings:       1.2,
	event.CategoryGuidance:       1.1,
	event.CategoryOrderWin:       1.1,
	event.CategoryRegulation:     1.0,
	event.CategoryPartnership:    1.0,
	event.CategoryNewProduct:     0.9,
	event.CategoryOther:          0.7,
}

// CategoryWeight resolves the effective preference weight for a
// category: profile override first, then the default table, then 1.0.
func CategoryWeight(p *event.UserProfile, cat event.Category) float64 {
	if p != nil && p.CategoryWeights != nil {
		if w, ok := p.CategoryWeights[cat]; ok {
			return w
		}
	}
	if w, ok := DefaultCategoryWeights[cat]; ok {
		return w
	}
	return 1.0
}
