package cluster

import (
	"testing"
	"time"

	"github.com/mkurosawa/kaiji/internal/event"
)

var baseTime = time.Date(2026, 2, 6, 9, 0, 0, 0, time.UTC)

func ev(id, title, ticker string, tier event.Tier, offset time.Duration) event.NormalizedEvent {
	return event.NormalizedEvent{
		ID:          id,
		SourceID:    "src-" + id,
		SourceName:  "Source " + id,
		Tier:        tier,
		Title:       title,
		URL:         "https://example.com/" + id,
		PublishedAt: baseTime.Add(offset),
		Tickers:     []string{ticker},
		Category:    event.CategoryUpwardRevision,
	}
}

func TestClusterEmptyInput(t *testing.T) {
	if got := Cluster(nil, DefaultConfig()); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestClusterGroupsSameDisclosure(t *testing.T) {
	events := []event.NormalizedEvent{
		ev("a", "トヨタ自動車 業績予想の上方修正に関するお知らせ", "7203", event.TierA, 0),
		ev("b", "トヨタ自動車 業績予想の上方修正に関するお知らせについて", "7203", event.TierB, 10*time.Minute),
		ev("c", "ソニーグループ 新型カメラを発表", "6758", event.TierC, 5*time.Minute),
	}

	clusters := Cluster(events, DefaultConfig())
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
}

func TestClusterRequiresSharedTicker(t *testing.T) {
	// Identical titles but different tickers must not merge.
	events := []event.NormalizedEvent{
		ev("a", "業績予想の上方修正に関するお知らせ", "7203", event.TierB, 0),
		ev("b", "業績予想の上方修正に関するお知らせ", "6758", event.TierB, 5*time.Minute),
	}
	clusters := Cluster(events, DefaultConfig())
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
}

func TestClusterRespectsWindow(t *testing.T) {
	events := []event.NormalizedEvent{
		ev("a", "トヨタ自動車 業績予想の上方修正に関するお知らせ", "7203", event.TierA, 0),
		ev("b", "トヨタ自動車 業績予想の上方修正に関するお知らせ", "7203", event.TierB, 45*time.Minute),
	}
	clusters := Cluster(events, DefaultConfig())
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters outside window, got %d", len(clusters))
	}
}

func TestClusterDeterministic(t *testing.T) {
	events := []event.NormalizedEvent{
		ev("b", "トヨタ自動車 業績予想の上方修正に関するお知らせ", "7203", event.TierB, 10*time.Minute),
		ev("a", "トヨタ自動車 業績予想の上方修正を発表", "7203", event.TierA, 0),
		ev("c", "トヨタ自動車 業績予想の上方修正について", "7203", event.TierB, 10*time.Minute),
	}

	first := Cluster(events, DefaultConfig())
	// Different input order, same batch.
	reordered := []event.NormalizedEvent{events[2], events[0], events[1]}
	second := Cluster(reordered, DefaultConfig())

	if len(first) != len(second) {
		t.Fatalf("cluster counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("cluster %d id differs: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestClusterRepresentativeFromTopTier(t *testing.T) {
	events := []event.NormalizedEvent{
		ev("c1", "トヨタ 業績上方修正（報道）", "7203", event.TierC, 20*time.Minute),
		ev("a1", "トヨタ 業績上方修正のお知らせ", "7203", event.TierA, 0),
	}
	// Force merge with a permissive threshold.
	cfg := Config{Window: 30 * time.Minute, SimilarityThreshold: 0.3}
	clusters := Cluster(events, cfg)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	c := clusters[0]
	if c.Title != "トヨタ 業績上方修正のお知らせ" {
		t.Errorf("expected tier-A title, got %q", c.Title)
	}
	if !c.PublishedAt.Equal(baseTime) {
		t.Errorf("expected earliest publish time, got %v", c.PublishedAt)
	}
	if c.PrimaryTicker != "7203" {
		t.Errorf("expected primary 7203, got %q", c.PrimaryTicker)
	}
}

func TestImpactFromTierComposition(t *testing.T) {
	tests := []struct {
		name  string
		tiers []event.Tier
		want  event.Impact
	}{
		{"single A", []event.Tier{event.TierA}, event.ImpactStrong},
		{"A plus C", []event.Tier{event.TierA, event.TierC}, event.ImpactStrong},
		{"two B", []event.Tier{event.TierB, event.TierB}, event.ImpactStrong},
		{"one B", []event.Tier{event.TierB}, event.ImpactMedium},
		{"B plus C", []event.Tier{event.TierB, event.TierC}, event.ImpactMedium},
		{"single C", []event.Tier{event.TierC}, event.ImpactWeak},
		{"three C", []event.Tier{event.TierC, event.TierC, event.TierC}, event.ImpactWeak},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var members []event.NormalizedEvent
			for i, tier := range tt.tiers {
				members = append(members, ev(string(rune('a'+i)), "タイトル", "7203", tier, 0))
			}
			if got := impactFromTiers(members); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestShouldDeliverMatchesStrongCondition(t *testing.T) {
	strong := build([]event.NormalizedEvent{ev("a", "t", "7203", event.TierA, 0)})
	if !ShouldDeliver(strong) {
		t.Error("tier-A cluster should deliver")
	}
	weak := build([]event.NormalizedEvent{ev("c", "t", "7203", event.TierC, 0)})
	if ShouldDeliver(weak) {
		t.Error("tier-C-only cluster should not deliver")
	}
	medium := build([]event.NormalizedEvent{ev("b", "t", "7203", event.TierB, 0)})
	if ShouldDeliver(medium) {
		t.Error("single tier-B cluster should not deliver")
	}
}

func TestApplyCooldownMergesSameTheme(t *testing.T) {
	c1 := build([]event.NormalizedEvent{ev("a", "トヨタ 上方修正", "7203", event.TierA, 0)})
	c2 := build([]event.NormalizedEvent{ev("b", "トヨタ 続報", "7203", event.TierB, 15*time.Minute)})
	c2.Category = c1.Category

	merged := ApplyCooldown([]event.ClusteredEvent{c1, c2}, DefaultCooldown)
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged cluster, got %d", len(merged))
	}
	if len(merged[0].Members) != 2 {
		t.Errorf("expected 2 members after merge, got %d", len(merged[0].Members))
	}
	if merged[0].ID == c1.ID || merged[0].ID == c2.ID {
		t.Error("merged cluster must get a fresh id")
	}
	if merged[0].Impact != event.ImpactStrong {
		t.Errorf("expected strong impact after merge, got %s", merged[0].Impact)
	}
}

func TestApplyCooldownKeepsDistinctThemes(t *testing.T) {
	c1 := build([]event.NormalizedEvent{ev("a", "トヨタ 上方修正", "7203", event.TierA, 0)})
	c2 := build([]event.NormalizedEvent{ev("b", "ソニー 上方修正", "6758", event.TierA, 10*time.Minute)})
	c3 := build([]event.NormalizedEvent{ev("c", "トヨタ 続報", "7203", event.TierB, 2*time.Hour)})

	merged := ApplyCooldown([]event.ClusteredEvent{c1, c2, c3}, DefaultCooldown)
	if len(merged) != 3 {
		t.Errorf("expected 3 clusters untouched, got %d", len(merged))
	}
}

func TestClusterIDStable(t *testing.T) {
	members := []event.NormalizedEvent{
		ev("a", "タイトル", "7203", event.TierA, 0),
		ev("b", "タイトル", "7203", event.TierB, 5*time.Minute),
	}
	c1 := build(append([]event.NormalizedEvent{}, members...))
	c2 := build([]event.NormalizedEvent{members[1], members[0]})
	if c1.ID != c2.ID {
		t.Errorf("expected stable id, got %s vs %s", c1.ID, c2.ID)
	}
	if len(c1.ID) != 16 {
		t.Errorf("expected 16-char id, got %d chars", len(c1.ID))
	}
}

func TestIdempotencyKeyFoldsImpactAndVersion(t *testing.T) {
	c := build([]event.NormalizedEvent{ev("a", "タイトル", "7203", event.TierA, 0)})
	key := IdempotencyKey(c, 1)
	want := c.ID + ":strong:v1"
	if key != want {
		t.Errorf("expected %q, got %q", want, key)
	}
	if IdempotencyKey(c, 2) == key {
		t.Error("version bump must change the key")
	}
}
