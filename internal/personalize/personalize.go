package personalize

import (
	"fmt"
	"math"
	"strings"

	"github.com/mkurosawa/kaiji/internal/event"
)

const (
	baseMatchPoints    = 30
	portfolioMaxPoints = 20
	categoryScale      = 15
	impactScale        = 0.2
	multiSourcePoints  = 10

	weakUpgradeScore   = 70
	mediumUpgradeScore = 85
	criticalWeight     = 1.4
)

// ReasonNoMatch is the score reason for clusters that touch nothing on
// the watchlist.
const ReasonNoMatch = "no matching ticker"

// Score computes a user-specific relevance score in [0,100] for a
// cluster, with a human-readable reason per triggered contribution in
// computation order. A cluster with no watchlist overlap scores
// exactly 0.
func Score(c event.ClusteredEvent, p *event.UserProfile) (int, []string) {
	matched := matchedTickers(c, p)
	if len(matched) == 0 {
		return 0, []string{ReasonNoMatch}
	}

	score := float64(baseMatchPoints)
	reasons := []string{fmt.Sprintf("watchlist match (%s): +%d", strings.Join(matched, ","), baseMatchPoints)}

	if pts := portfolioPoints(matched, p); pts > 0 {
		score += pts
		reasons = append(reasons, fmt.Sprintf("portfolio weighting: +%.1f", pts))
	}

	weight := CategoryWeight(p, c.Category)
	if boost := (weight - 1.0) * categoryScale; boost != 0 {
		score += boost
		reasons = append(reasons, fmt.Sprintf("category preference %.1f: %+.1f", weight, boost))
	}

	// Base impact always contributes a floor, never subtracts.
	impactPts := float64(c.Impact.Score()) * impactScale
	score += impactPts
	reasons = append(reasons, fmt.Sprintf("base impact %s: +%.0f", c.Impact, impactPts))

	if len(c.Sources) >= 2 {
		score += multiSourcePoints
		reasons = append(reasons, fmt.Sprintf("multiple sources: +%d", multiSourcePoints))
	}

	return clamp(score), reasons
}

func matchedTickers(c event.ClusteredEvent, p *event.UserProfile) []string {
	if p == nil {
		return nil
	}
	var matched []string
	for _, t := range c.AllTickers {
		if p.Watches(t) {
			matched = append(matched, t)
		}
	}
	return matched
}

// portfolioPoints awards up to portfolioMaxPoints proportional to the
// fraction of total declared position value held in matched tickers.
// Profiles without positions get nothing here.
func portfolioPoints(matched []string, p *event.UserProfile) float64 {
	if p == nil || len(p.Positions) == 0 {
		return 0
	}
	var total, held float64
	for _, v := range p.Positions {
		total += v
	}
	if total <= 0 {
		return 0
	}
	for _, t := range matched {
		held += p.Positions[t]
	}
	return portfolioMaxPoints * held / total
}

// PersonalImpact adjusts the base impact for one user. Upgrades only,
// never downgrades: strong stays strong; weak becomes medium at a
// relevance score of 70 or more; medium becomes strong at 85 or more,
// or whenever the category is critical for this user (weight >= 1.4)
// regardless of score.
func PersonalImpact(base event.Impact, score int, categoryWeight float64) event.Impact {
	switch base {
	case event.ImpactStrong:
		return event.ImpactStrong
	case event.ImpactMedium:
		if score >= mediumUpgradeScore || categoryWeight >= criticalWeight {
			return event.ImpactStrong
		}
		return event.ImpactMedium
	case event.ImpactWeak:
		if score >= weakUpgradeScore {
			return event.ImpactMedium
		}
		return event.ImpactWeak
	}
	return base
}

// Personalize scores one cluster against a profile. Zero-relevance
// results are still returned here; PersonalizeAll filters them.
func Personalize(c event.ClusteredEvent, p *event.UserProfile) event.PersonalizedEvent {
	score, reasons := Score(c, p)
	return event.PersonalizedEvent{
		ClusteredEvent: c,
		Relevance:      score,
		PersonalImpact: PersonalImpact(c.Impact, score, CategoryWeight(p, c.Category)),
		Reasons:        reasons,
	}
}

// PersonalizeAll personalizes every cluster and drops zero-relevance
// results. This is the feed relevance gate.
func PersonalizeAll(clusters []event.ClusteredEvent, p *event.UserProfile) []event.PersonalizedEvent {
	var out []event.PersonalizedEvent
	for _, c := range clusters {
		pe := Personalize(c, p)
		if pe.Relevance == 0 {
			continue
		}
		out = append(out, pe)
	}
	return out
}

// FilterUnread keeps events the user has not read. An event counts as
// read if its cluster id or any member event id is in the read set;
// the dual check is needed because reads may be recorded against
// either granularity.
func FilterUnread(events []event.PersonalizedEvent, p *event.UserProfile) []event.PersonalizedEvent {
	if p == nil || len(p.ReadIDs) == 0 {
		return events
	}
	var unread []event.PersonalizedEvent
	for _, e := range events {
		if isRead(e, p) {
			continue
		}
		unread = append(unread, e)
	}
	return unread
}

func isRead(e event.PersonalizedEvent, p *event.UserProfile) bool {
	if p.ReadIDs[e.ID] {
		return true
	}
	for _, m := range e.Members {
		if p.ReadIDs[m.ID] {
			return true
		}
	}
	return false
}

// MarkEventsRead records the given events' cluster ids in the
// profile's read set.
func MarkEventsRead(p *event.UserProfile, events ...event.PersonalizedEvent) {
	for _, e := range events {
		p.MarkRead(e.ID)
	}
}

func clamp(score float64) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(math.Round(score))
}
