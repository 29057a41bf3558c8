package cluster

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mkurosawa/kaiji/internal/event"
)

const (
	DefaultWindow              = 30 * time.Minute
	DefaultSimilarityThreshold = 0.70
	DefaultCooldown            = 30 * time.Minute
)

// Config tunes clustering. Values are internal knobs; callers are
// responsible for supplying sane ones.
type Config struct {
	Window              time.Duration
	SimilarityThreshold float64
	Cooldown            time.Duration
}

// DefaultConfig returns the standard clustering configuration.
func DefaultConfig() Config {
	return Config{
		Window:              DefaultWindow,
		SimilarityThreshold: DefaultSimilarityThreshold,
		Cooldown:            DefaultCooldown,
	}
}

// Cluster groups normalized events that describe the same disclosure:
// events within the time window of an anchor that share at least one
// ticker and whose headline similarity meets the threshold.
//
// This is single-pass greedy clustering anchored at the newest
// unassigned event, not a globally optimal partition. Similarity is
// not transitive, so an anchor can pull in two events that are not
// similar to each other; that is an accepted approximation of
// connected-components grouping, not a bug.
//
// Never fails for well-formed input; empty input yields empty output.
func Cluster(events []event.NormalizedEvent, cfg Config) []event.ClusteredEvent {
	if len(events) == 0 {
		return nil
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}

	// Newest first, id as tie-break, so grouping anchors on the most
	// recent event and reruns over the same batch are deterministic.
	sorted := make([]event.NormalizedEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].PublishedAt.Equal(sorted[j].PublishedAt) {
			return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	assigned := make([]bool, len(sorted))
	var clusters []event.ClusteredEvent

	for i := range sorted {
		if assigned[i] {
			continue
		}
		anchor := sorted[i]
		members := []event.NormalizedEvent{anchor}
		assigned[i] = true

		for j := i + 1; j < len(sorted); j++ {
			if assigned[j] {
				continue
			}
			if !belongsTogether(anchor, sorted[j], cfg) {
				continue
			}
			members = append(members, sorted[j])
			assigned[j] = true
		}

		clusters = append(clusters, build(members))
	}

	return clusters
}

func belongsTogether(anchor, other event.NormalizedEvent, cfg Config) bool {
	delta := anchor.PublishedAt.Sub(other.PublishedAt)
	if delta < 0 {
		delta = -delta
	}
	if delta > cfg.Window {
		return false
	}
	if !sharesTicker(anchor.Tickers, other.Tickers) {
		return false
	}
	return Similarity(anchor.Title, other.Title) >= cfg.SimilarityThreshold
}

func sharesTicker(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// build assembles a ClusteredEvent from its members. Members are
// ordered most-trusted tier first, then most recent first; the top
// member supplies the representative title, category, and primary
// ticker.
func build(members []event.NormalizedEvent) event.ClusteredEvent {
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Tier.Rank() != members[j].Tier.Rank() {
			return members[i].Tier.Rank() < members[j].Tier.Rank()
		}
		if !members[i].PublishedAt.Equal(members[j].PublishedAt) {
			return members[i].PublishedAt.After(members[j].PublishedAt)
		}
		return members[i].ID < members[j].ID
	})

	top := members[0]

	primary := ""
	if len(top.Tickers) > 0 {
		primary = top.Tickers[0]
	}

	tickerSet := make(map[string]bool)
	earliest := members[0].PublishedAt
	var sources []string
	for _, m := range members {
		for _, t := range m.Tickers {
			tickerSet[t] = true
		}
		if m.PublishedAt.Before(earliest) {
			earliest = m.PublishedAt
		}
		if m.SourceName != "" && len(sources) < 2 && !contains(sources, m.SourceName) {
			sources = append(sources, m.SourceName)
		}
	}

	allTickers := make([]string, 0, len(tickerSet))
	for t := range tickerSet {
		allTickers = append(allTickers, t)
	}
	sort.Strings(allTickers)

	return event.ClusteredEvent{
		ID:            clusterID(members, primary, earliest),
		Members:       members,
		PrimaryTicker: primary,
		AllTickers:    allTickers,
		Title:         top.Title,
		Category:      top.Category,
		Impact:        impactFromTiers(members),
		PublishedAt:   earliest,
		Sources:       sources,
	}
}

// impactFromTiers derives the base impact purely from source-tier
// composition. This rule also drives delivery gating and must not be
// weakened downstream; the personalizer may only upgrade it.
func impactFromTiers(members []event.NormalizedEvent) event.Impact {
	tierA, tierB := 0, 0
	for _, m := range members {
		switch m.Tier {
		case event.TierA:
			tierA++
		case event.TierB:
			tierB++
		}
	}
	switch {
	case tierA >= 1 || tierB >= 2:
		return event.ImpactStrong
	case tierB == 1:
		return event.ImpactMedium
	default:
		return event.ImpactWeak
	}
}

// ShouldDeliver reports whether a cluster is strong enough to alert
// on: at least one tier-A member or at least two tier-B members. This
// is the impact "strong" condition restated as an independent gate.
func ShouldDeliver(c event.ClusteredEvent) bool {
	return impactFromTiers(c.Members) == event.ImpactStrong
}

// ApplyCooldown repeatedly merges clusters that share the same primary
// ticker and category and whose publish times fall within the cooldown
// window. Same theme within the window collapses to one deliverable,
// preventing duplicate alerts for a single unfolding story. A merge
// rebuilds a fresh cluster (new id) from the union of members; inputs
// are never mutated.
func ApplyCooldown(clusters []event.ClusteredEvent, window time.Duration) []event.ClusteredEvent {
	if window <= 0 {
		window = DefaultCooldown
	}

	merged := make([]event.ClusteredEvent, len(clusters))
	copy(merged, clusters)

	for {
		i, j, found := findMergeable(merged, window)
		if !found {
			return merged
		}
		union := append([]event.NormalizedEvent{}, merged[i].Members...)
		union = append(union, merged[j].Members...)
		merged[i] = build(union)
		merged = append(merged[:j], merged[j+1:]...)
	}
}

func findMergeable(clusters []event.ClusteredEvent, window time.Duration) (int, int, bool) {
	for i := 0; i < len(clusters); i++ {
		for j := i + 1; j < len(clusters); j++ {
			if clusters[i].PrimaryTicker == "" || clusters[i].PrimaryTicker != clusters[j].PrimaryTicker {
				continue
			}
			if clusters[i].Category != clusters[j].Category {
				continue
			}
			delta := clusters[i].PublishedAt.Sub(clusters[j].PublishedAt)
			if delta < 0 {
				delta = -delta
			}
			if delta <= window {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// clusterID derives a stable id from the sorted member ids, the
// primary ticker, and the earliest publish time. Re-clustering the
// same batch yields the same id, so repeated ingestion cycles do not
// look like new clusters.
func clusterID(members []event.NormalizedEvent, primary string, published time.Time) string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	sort.Strings(ids)

	h := sha256.Sum256([]byte(strings.Join(ids, ",") + "|" + primary + "|" + fmt.Sprintf("%d", published.Unix())))
	return hex.EncodeToString(h[:])[:16]
}

// IdempotencyKey is the externally-facing delivery key. It folds in
// the impact level and a version counter so that an impact change on
// the same underlying cluster counts as a distinct deliverable.
func IdempotencyKey(c event.ClusteredEvent, version int) string {
	return fmt.Sprintf("%s:%s:v%d", c.ID, c.Impact, version)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
