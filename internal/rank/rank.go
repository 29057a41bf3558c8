package rank

import (
	"sort"
	"time"

	"github.com/mkurosawa/kaiji/internal/event"
)

// RecencyScore maps event age relative to referenceTime onto 0–100.
// This is an intentional staircase, not a smoothed decay: feed display
// only needs coarse freshness bands, and the fixed steps make ordering
// reproducible in tests. Negative age (clock skew between sources)
// counts as brand new.
func RecencyScore(publishedAt, referenceTime time.Time) int {
	age := referenceTime.Sub(publishedAt).Hours()
	switch {
	case age < 0:
		return 100
	case age < 1:
		return 100
	case age < 6:
		return 90
	case age < 24:
		return 70
	case age < 48:
		return 40
	case age < 168:
		return 20
	default:
		return 0
	}
}

// CompositeScore combines relevance, recency, and personal impact under
// the given weights, applies the multi-source boost, and clamps to
// [0,100].
func CompositeScore(e event.PersonalizedEvent, cfg event.RankingConfig, referenceTime time.Time) float64 {
	score := float64(e.Relevance)*cfg.RelevanceWeight +
		float64(RecencyScore(e.PublishedAt, referenceTime))*cfg.RecencyWeight +
		float64(e.PersonalImpact.Score())*cfg.ImpactWeight

	if len(e.Sources) >= 2 {
		score *= cfg.MultiSourceBoost
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Rank orders events by descending composite score. The input is not
// mutated; the sort is stable, so equal-score events keep their
// relative input order.
func Rank(events []event.PersonalizedEvent, cfg event.RankingConfig, referenceTime time.Time) []event.PersonalizedEvent {
	ranked := make([]event.PersonalizedEvent, len(events))
	copy(ranked, events)

	scores := make([]float64, len(ranked))
	for i, e := range ranked {
		scores[i] = CompositeScore(e, cfg, referenceTime)
	}

	idx := make([]int, len(ranked))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	out := make([]event.PersonalizedEvent, len(ranked))
	for i, j := range idx {
		out[i] = ranked[j]
	}
	return out
}

// RankWithTierPriority ranks base-impact-strong events ahead of
// everything else, regardless of score. Each partition is ranked
// independently with the same config, so tier-A-backed disclosures
// always precede lower-tier coverage while ordinary scoring still
// applies within each partition.
func RankWithTierPriority(events []event.PersonalizedEvent, cfg event.RankingConfig, referenceTime time.Time) []event.PersonalizedEvent {
	var strong, rest []event.PersonalizedEvent
	for _, e := range events {
		if e.Impact == event.ImpactStrong {
			strong = append(strong, e)
		} else {
			rest = append(rest, e)
		}
	}
	return append(Rank(strong, cfg, referenceTime), Rank(rest, cfg, referenceTime)...)
}

// TickerGroup is a per-ticker slice of ranked events.
type TickerGroup struct {
	Ticker string
	Events []event.PersonalizedEvent
}

// GroupAndRankByTicker partitions events by primary ticker, preserving
// first-appearance order of tickers, and ranks within each group.
func GroupAndRankByTicker(events []event.PersonalizedEvent, cfg event.RankingConfig, referenceTime time.Time) []TickerGroup {
	byTicker := make(map[string][]event.PersonalizedEvent)
	var order []string
	for _, e := range events {
		if _, ok := byTicker[e.PrimaryTicker]; !ok {
			order = append(order, e.PrimaryTicker)
		}
		byTicker[e.PrimaryTicker] = append(byTicker[e.PrimaryTicker], e)
	}

	groups := make([]TickerGroup, 0, len(order))
	for _, t := range order {
		groups = append(groups, TickerGroup{
			Ticker: t,
			Events: Rank(byTicker[t], cfg, referenceTime),
		})
	}
	return groups
}

// TopN returns the n highest-ranked events.
func TopN(events []event.PersonalizedEvent, cfg event.RankingConfig, referenceTime time.Time, n int) []event.PersonalizedEvent {
	ranked := Rank(events, cfg, referenceTime)
	if n < 0 {
		n = 0
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}
