package rank

import (
	"testing"
	"time"

	"github.com/mkurosawa/kaiji/internal/event"
)

var refTime = time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)

func pe(id string, relevance int, personal, base event.Impact, age time.Duration, sources ...string) event.PersonalizedEvent {
	return event.PersonalizedEvent{
		ClusteredEvent: event.ClusteredEvent{
			ID:            id,
			PrimaryTicker: "7203",
			Title:         "タイトル " + id,
			Impact:        base,
			PublishedAt:   refTime.Add(-age),
			Sources:       sources,
		},
		Relevance:      relevance,
		PersonalImpact: personal,
	}
}

func TestRecencyScoreStaircase(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want int
	}{
		{-10 * time.Minute, 100},
		{30 * time.Minute, 100},
		{3 * time.Hour, 90},
		{12 * time.Hour, 70},
		{30 * time.Hour, 40},
		{100 * time.Hour, 20},
		{200 * time.Hour, 0},
	}
	for _, tt := range tests {
		got := RecencyScore(refTime.Add(-tt.age), refTime)
		if got != tt.want {
			t.Errorf("age %v: expected %d, got %d", tt.age, tt.want, got)
		}
	}
}

func TestRecencyScoreBoundaries(t *testing.T) {
	// Exactly 1h falls into the next band down.
	if got := RecencyScore(refTime.Add(-time.Hour), refTime); got != 90 {
		t.Errorf("expected 90 at exactly 1h, got %d", got)
	}
	if got := RecencyScore(refTime.Add(-24*time.Hour), refTime); got != 40 {
		t.Errorf("expected 40 at exactly 24h, got %d", got)
	}
	if got := RecencyScore(refTime.Add(-168*time.Hour), refTime); got != 0 {
		t.Errorf("expected 0 at exactly 168h, got %d", got)
	}
}

func TestCompositeScoreMultiSourceBoost(t *testing.T) {
	cfg := DefaultConfig()
	single := pe("a", 50, event.ImpactMedium, event.ImpactMedium, 30*time.Minute, "EDINET")
	double := pe("b", 50, event.ImpactMedium, event.ImpactMedium, 30*time.Minute, "EDINET", "TDnet")

	s1 := CompositeScore(single, cfg, refTime)
	s2 := CompositeScore(double, cfg, refTime)
	if s2 <= s1 {
		t.Errorf("expected multi-source boost: %f vs %f", s1, s2)
	}
	want := s1 * cfg.MultiSourceBoost
	if s2 != want {
		t.Errorf("expected %f, got %f", want, s2)
	}
}

func TestCompositeScoreClamped(t *testing.T) {
	cfg := event.RankingConfig{RelevanceWeight: 1, RecencyWeight: 1, ImpactWeight: 1, MultiSourceBoost: 2}
	e := pe("a", 100, event.ImpactStrong, event.ImpactStrong, 0, "EDINET", "TDnet")
	if got := CompositeScore(e, cfg, refTime); got != 100 {
		t.Errorf("expected clamp at 100, got %f", got)
	}
}

func TestRankPresetChangesOrder(t *testing.T) {
	// Older but highly relevant and strong, vs brand-new but marginal.
	important := pe("important", 90, event.ImpactStrong, event.ImpactStrong, 30*time.Hour, "EDINET")
	fresh := pe("fresh", 60, event.ImpactWeak, event.ImpactWeak, 30*time.Minute, "Nikkei")
	events := []event.PersonalizedEvent{fresh, important}

	byDefault := Rank(events, DefaultConfig(), refTime)
	if byDefault[0].ID != "important" {
		t.Errorf("default preset: expected important first, got %s", byDefault[0].ID)
	}

	byLive := Rank(events, LiveFeedConfig(), refTime)
	if byLive[0].ID != "fresh" {
		t.Errorf("live-feed preset: expected fresh first, got %s", byLive[0].ID)
	}
}

func TestRankStableOnTies(t *testing.T) {
	a := pe("a", 50, event.ImpactMedium, event.ImpactMedium, time.Hour, "EDINET")
	b := pe("b", 50, event.ImpactMedium, event.ImpactMedium, time.Hour, "TDnet")
	ranked := Rank([]event.PersonalizedEvent{a, b}, DefaultConfig(), refTime)
	if ranked[0].ID != "a" || ranked[1].ID != "b" {
		t.Errorf("expected input order preserved on tie, got %s, %s", ranked[0].ID, ranked[1].ID)
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	a := pe("a", 10, event.ImpactWeak, event.ImpactWeak, time.Hour, "EDINET")
	b := pe("b", 90, event.ImpactStrong, event.ImpactStrong, time.Hour, "TDnet")
	events := []event.PersonalizedEvent{a, b}

	Rank(events, DefaultConfig(), refTime)
	if events[0].ID != "a" || events[1].ID != "b" {
		t.Error("input slice was reordered")
	}
}

func TestRankWithTierPriority(t *testing.T) {
	// Weak base impact with a huge score still ranks behind strong ones.
	weak := pe("weak", 100, event.ImpactMedium, event.ImpactWeak, 10*time.Minute, "Nikkei", "Kyodo")
	strong := pe("strong", 31, event.ImpactStrong, event.ImpactStrong, 40*time.Hour, "EDINET")

	ranked := RankWithTierPriority([]event.PersonalizedEvent{weak, strong}, DefaultConfig(), refTime)
	if ranked[0].ID != "strong" {
		t.Errorf("expected strong partition first, got %s", ranked[0].ID)
	}
}

func TestGroupAndRankByTicker(t *testing.T) {
	a := pe("a", 50, event.ImpactMedium, event.ImpactMedium, time.Hour, "EDINET")
	b := pe("b", 90, event.ImpactStrong, event.ImpactStrong, time.Hour, "EDINET")
	c := pe("c", 70, event.ImpactMedium, event.ImpactMedium, time.Hour, "TDnet")
	c.PrimaryTicker = "6758"

	groups := GroupAndRankByTicker([]event.PersonalizedEvent{a, c, b}, DefaultConfig(), refTime)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Ticker != "7203" || groups[1].Ticker != "6758" {
		t.Errorf("expected first-appearance order, got %s, %s", groups[0].Ticker, groups[1].Ticker)
	}
	if groups[0].Events[0].ID != "b" {
		t.Errorf("expected b ranked first within 7203, got %s", groups[0].Events[0].ID)
	}
}

func TestTopN(t *testing.T) {
	a := pe("a", 10, event.ImpactWeak, event.ImpactWeak, time.Hour, "EDINET")
	b := pe("b", 90, event.ImpactStrong, event.ImpactStrong, time.Hour, "TDnet")
	events := []event.PersonalizedEvent{a, b}

	top := TopN(events, DefaultConfig(), refTime, 1)
	if len(top) != 1 || top[0].ID != "b" {
		t.Errorf("expected top event b, got %v", top)
	}
	if got := TopN(events, DefaultConfig(), refTime, 10); len(got) != 2 {
		t.Errorf("expected all events when n exceeds length, got %d", len(got))
	}
	if got := TopN(events, DefaultConfig(), refTime, -1); len(got) != 0 {
		t.Errorf("expected empty for negative n, got %d", len(got))
	}
}

func TestPresetLookup(t *testing.T) {
	tests := []struct {
		name string
		want event.RankingConfig
	}{
		{"morning-digest", MorningDigestConfig()},
		{"live-feed", LiveFeedConfig()},
		{"impact-first", ImpactFirstConfig()},
		{"", DefaultConfig()},
		{"unknown", DefaultConfig()},
	}
	for _, tt := range tests {
		if got := Preset(tt.name); got != tt.want {
			t.Errorf("Preset(%q) = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}
