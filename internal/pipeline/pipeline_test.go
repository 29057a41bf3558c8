package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mkurosawa/kaiji/internal/config"
	"github.com/mkurosawa/kaiji/internal/database"
	"github.com/mkurosawa/kaiji/internal/event"
	"github.com/mkurosawa/kaiji/internal/notify"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Clustering: config.Clustering{
			WindowMinutes:       30,
			SimilarityThreshold: 0.7,
			CooldownMinutes:     30,
		},
		Ranking: config.Ranking{Preset: "default"},
	}
}

var publishBase = time.Date(2026, 2, 6, 9, 0, 0, 0, time.UTC)

// seedDisclosure stores one raw record for the test period.
func seedDisclosure(t *testing.T, db *database.DB, id, sourceID, sourceName string, tier event.Tier, title string, offset time.Duration) {
	t.Helper()
	ok, err := db.InsertRecord(event.RawRecord{
		ID:          id,
		SourceID:    sourceID,
		SourceName:  sourceName,
		Tier:        tier,
		Title:       title,
		URL:         "https://example.com/" + id,
		PublishedAt: publishBase.Add(offset),
		FetchedAt:   publishBase.Add(offset),
	}, "2026-02-06")
	if err != nil || !ok {
		t.Fatalf("seeding record %s: ok=%v err=%v", id, ok, err)
	}
}

type recordingSender struct {
	sent []string
}

func (s *recordingSender) Send(_ context.Context, text string) error {
	s.sent = append(s.sent, text)
	return nil
}

// One regulatory filing plus two wire stories about the same Toyota
// upward revision, minutes apart, must surface as a single strong
// deliverable event in the personalized feed.
func TestFeedFromMultiSourceDisclosure(t *testing.T) {
	db := openTestDB(t)
	db.AddWatch("7203", 0)

	seedDisclosure(t, db, "r1", "edinet", "EDINET", event.TierA,
		"トヨタ自動車（7203）業績予想の上方修正に関するお知らせ", 0)
	seedDisclosure(t, db, "r2", "prtimes", "PR TIMES", event.TierB,
		"トヨタ自動車、業績予想の上方修正を発表", 10*time.Minute)
	seedDisclosure(t, db, "r3", "kyodo-pr", "共同通信PRワイヤー", event.TierB,
		"トヨタ自動車が業績予想を上方修正", 20*time.Minute)

	p := New(testConfig(), db, nil)
	now := publishBase.Add(time.Hour)

	feed, err := p.BuildFeed("2026-02-06", "", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(feed) != 1 {
		t.Fatalf("expected 1 feed event, got %d", len(feed))
	}

	e := feed[0]
	if len(e.Members) != 3 {
		t.Errorf("expected 3 members, got %d", len(e.Members))
	}
	if e.PrimaryTicker != "7203" {
		t.Errorf("expected primary 7203, got %q", e.PrimaryTicker)
	}
	if e.Impact != event.ImpactStrong || e.PersonalImpact != event.ImpactStrong {
		t.Errorf("expected strong impact, got %s/%s", e.Impact, e.PersonalImpact)
	}
	if e.Category != event.CategoryUpwardRevision {
		t.Errorf("expected upward-revision, got %s", e.Category)
	}
	if e.Relevance <= 30 {
		t.Errorf("expected relevance above base, got %d", e.Relevance)
	}
	if len(e.Sources) != 2 {
		t.Errorf("expected 2 distinct sources listed, got %v", e.Sources)
	}
}

func TestFeedExcludesUnwatchedTickers(t *testing.T) {
	db := openTestDB(t)
	db.AddWatch("6758", 0)

	seedDisclosure(t, db, "r1", "edinet", "EDINET", event.TierA,
		"トヨタ自動車（7203）業績予想の上方修正に関するお知らせ", 0)

	p := New(testConfig(), db, nil)
	feed, err := p.BuildFeed("2026-02-06", "", publishBase.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(feed) != 0 {
		t.Errorf("expected empty feed, got %d events", len(feed))
	}
}

func TestFeedFiltersReadEvents(t *testing.T) {
	db := openTestDB(t)
	db.AddWatch("7203", 0)
	seedDisclosure(t, db, "r1", "edinet", "EDINET", event.TierA,
		"トヨタ自動車（7203）業績予想の上方修正に関するお知らせ", 0)

	p := New(testConfig(), db, nil)
	now := publishBase.Add(time.Hour)

	feed, err := p.BuildFeed("2026-02-06", "", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(feed) != 1 {
		t.Fatalf("expected 1 event before reading, got %d", len(feed))
	}

	db.MarkRead(feed[0].ID)
	feed, _ = p.BuildFeed("2026-02-06", "", now)
	if len(feed) != 0 {
		t.Errorf("expected empty feed after marking read, got %d", len(feed))
	}
}

func TestDeliveryIdempotentAcrossRuns(t *testing.T) {
	db := openTestDB(t)
	db.AddWatch("7203", 0)
	seedDisclosure(t, db, "r1", "edinet", "EDINET", event.TierA,
		"トヨタ自動車（7203）業績予想の上方修正に関するお知らせ", 0)

	p := New(testConfig(), db, nil)
	clusters, step := p.runCluster("2026-02-06")
	if step.Err != nil {
		t.Fatalf("clustering failed: %v", step.Err)
	}

	sender := &recordingSender{}
	n := notify.New(db, sender, deliveryVersion)

	first := n.Deliver(context.Background(), clusters)
	if first.Sent != 1 {
		t.Fatalf("expected 1 alert on first run, got %+v", first)
	}
	second := n.Deliver(context.Background(), clusters)
	if second.Sent != 0 || second.Suppressed != 1 {
		t.Errorf("expected second run suppressed, got %+v", second)
	}
	if len(sender.sent) != 1 {
		t.Errorf("expected exactly 1 alert total, got %d", len(sender.sent))
	}
}

func TestDryRunTouchesNothing(t *testing.T) {
	db := openTestDB(t)
	seedDisclosure(t, db, "r1", "edinet", "EDINET", event.TierA,
		"トヨタ自動車（7203）業績予想の上方修正に関するお知らせ", 0)

	p := New(testConfig(), db, nil)
	result := p.DryRun("2026-02-06")

	if len(result.Steps) == 0 {
		t.Fatal("expected dry-run steps")
	}
	for _, step := range result.Steps {
		if step.Err != nil {
			t.Errorf("dry-run step %s errored: %v", step.Name, step.Err)
		}
	}

	if d, _ := db.GetDigest("2026-02-06"); d != nil {
		t.Error("dry run must not compose a digest")
	}
	if stats, _ := db.GetStats(); stats.DeliveredKeys != 0 {
		t.Error("dry run must not deliver")
	}
}
