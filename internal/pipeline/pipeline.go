package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mkurosawa/kaiji/internal/cluster"
	"github.com/mkurosawa/kaiji/internal/collect"
	"github.com/mkurosawa/kaiji/internal/config"
	"github.com/mkurosawa/kaiji/internal/database"
	"github.com/mkurosawa/kaiji/internal/digest"
	"github.com/mkurosawa/kaiji/internal/event"
	"github.com/mkurosawa/kaiji/internal/fetch"
	"github.com/mkurosawa/kaiji/internal/normalize"
	"github.com/mkurosawa/kaiji/internal/notify"
	"github.com/mkurosawa/kaiji/internal/personalize"
	"github.com/mkurosawa/kaiji/internal/rank"
)

// deliveryVersion is folded into idempotency keys. Bump when the
// delivery semantics change and previously delivered clusters should
// alert again.
const deliveryVersion = 1

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	PeriodID string
	Steps    []StepResult
	Feed     []event.PersonalizedEvent
}

// Pipeline orchestrates the 6-step feed generation run: collect,
// fetch excerpts, normalize+cluster, personalize+rank, notify, digest.
// The pipeline owns wall-clock time and passes it down explicitly;
// every stage below it is deterministic.
type Pipeline struct {
	cfg        *config.Config
	db         *database.DB
	normalizer *normalize.Normalizer
	sender     notify.Sender
}

// New creates a new pipeline. A nil sender logs alerts.
func New(cfg *config.Config, db *database.DB, sender notify.Sender) *Pipeline {
	companies := make(map[string]string, len(normalize.DefaultCompanies)+len(cfg.Companies))
	for name, code := range normalize.DefaultCompanies {
		companies[name] = code
	}
	for name, code := range cfg.Companies {
		companies[name] = code
	}

	return &Pipeline{
		cfg:        cfg,
		db:         db,
		normalizer: normalize.New(companies, nil),
		sender:     sender,
	}
}

// Run executes the full pipeline for a period. now is the reference
// time used for recency scoring and collection cutoffs.
func (p *Pipeline) Run(ctx context.Context, periodID string, daysBack int, now time.Time) *Result {
	r := &Result{PeriodID: periodID}

	step := p.runCollect(daysBack, now)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	step = p.runFetch(periodID)
	r.Steps = append(r.Steps, step)

	clusters, step := p.runCluster(periodID)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	feed, step := p.runPersonalize(clusters, now)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}
	r.Feed = feed

	step = p.runNotify(ctx, clusters)
	r.Steps = append(r.Steps, step)

	step = p.runDigest(periodID, feed)
	r.Steps = append(r.Steps, step)

	return r
}

// BuildFeed produces the ranked personalized feed for a period from
// records already stored, without collecting, delivering, or composing
// a digest. An empty preset falls back to the configured one.
func (p *Pipeline) BuildFeed(periodID, preset string, now time.Time) ([]event.PersonalizedEvent, error) {
	if preset == "" {
		preset = p.cfg.Ranking.Preset
	}

	records, err := p.db.GetRecordsForPeriod(periodID)
	if err != nil {
		return nil, err
	}
	profile, err := p.db.LoadProfile()
	if err != nil {
		return nil, err
	}

	events := p.normalizer.NormalizeAll(records)
	clusters := cluster.Cluster(events, cluster.Config{
		Window:              p.cfg.Clustering.Window(),
		SimilarityThreshold: p.cfg.Clustering.SimilarityThreshold,
	})
	clusters = cluster.ApplyCooldown(clusters, p.cfg.Clustering.CooldownWindow())

	personalized := personalize.PersonalizeAll(clusters, profile)
	unread := personalize.FilterUnread(personalized, profile)
	return rank.Rank(unread, rank.Preset(preset), now), nil
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun(periodID string) *Result {
	r := &Result{PeriodID: periodID}

	records, _ := p.db.GetRecordsForPeriod(periodID)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("[dry-run] %d records already in DB for %s", len(records), periodID),
	})

	needing, _ := p.db.GetRecordsNeedingExcerpt(periodID)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("[dry-run] %d records need excerpt fetching", len(needing)),
	})

	r.Steps = append(r.Steps, StepResult{
		Name:    "Cluster",
		Summary: fmt.Sprintf("[dry-run] %d records to normalize and cluster", len(records)),
	})

	profile, _ := p.db.LoadProfile()
	watching := 0
	if profile != nil {
		watching = len(profile.Watchlist)
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Personalize",
		Summary: fmt.Sprintf("[dry-run] profile watches %d tickers", watching),
	})

	d, _ := p.db.GetDigest(periodID)
	if d != nil {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Digest",
			Summary: fmt.Sprintf("[dry-run] Digest already exists for %s", periodID),
		})
	} else {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Digest",
			Summary: fmt.Sprintf("[dry-run] Would compose digest for %s", periodID),
		})
	}

	return r
}

func (p *Pipeline) runCollect(daysBack int, now time.Time) StepResult {
	log.Println("Step 1/6: Collecting records...")
	collector := collect.NewCollector(p.cfg, p.db, daysBack)
	result := collector.Collect(now)
	return StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("Found %d new records (%d total, %d duplicates)", result.NewRecords, result.TotalFound, result.Duplicates),
	}
}

func (p *Pipeline) runFetch(periodID string) StepResult {
	log.Println("Step 2/6: Fetching excerpts...")
	fetcher := fetch.NewExcerptFetcher(p.db, 15*time.Second)
	result := fetcher.FetchMissingExcerpts(periodID)
	return StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("Fetched %d excerpts, %d failed", result.Fetched, result.Failed),
	}
}

func (p *Pipeline) runCluster(periodID string) ([]event.ClusteredEvent, StepResult) {
	log.Println("Step 3/6: Normalizing and clustering...")
	records, err := p.db.GetRecordsForPeriod(periodID)
	if err != nil {
		return nil, StepResult{Name: "Cluster", Err: err}
	}

	events := p.normalizer.NormalizeAll(records)
	ccfg := cluster.Config{
		Window:              p.cfg.Clustering.Window(),
		SimilarityThreshold: p.cfg.Clustering.SimilarityThreshold,
	}
	clusters := cluster.Cluster(events, ccfg)
	clusters = cluster.ApplyCooldown(clusters, p.cfg.Clustering.CooldownWindow())

	return clusters, StepResult{
		Name:    "Cluster",
		Summary: fmt.Sprintf("Built %d clusters from %d records", len(clusters), len(records)),
	}
}

func (p *Pipeline) runPersonalize(clusters []event.ClusteredEvent, now time.Time) ([]event.PersonalizedEvent, StepResult) {
	log.Println("Step 4/6: Personalizing and ranking...")
	profile, err := p.db.LoadProfile()
	if err != nil {
		return nil, StepResult{Name: "Personalize", Err: err}
	}

	personalized := personalize.PersonalizeAll(clusters, profile)
	unread := personalize.FilterUnread(personalized, profile)
	feed := rank.Rank(unread, rank.Preset(p.cfg.Ranking.Preset), now)

	return feed, StepResult{
		Name:    "Personalize",
		Summary: fmt.Sprintf("%d relevant clusters, %d unread after ranking", len(personalized), len(feed)),
	}
}

func (p *Pipeline) runNotify(ctx context.Context, clusters []event.ClusteredEvent) StepResult {
	log.Println("Step 5/6: Delivering alerts...")
	notifier := notify.New(p.db, p.sender, deliveryVersion)
	result := notifier.Deliver(ctx, clusters)
	return StepResult{
		Name:    "Notify",
		Summary: fmt.Sprintf("%d eligible, %d sent, %d suppressed", result.Eligible, result.Sent, result.Suppressed),
	}
}

func (p *Pipeline) runDigest(periodID string, feed []event.PersonalizedEvent) StepResult {
	log.Println("Step 6/6: Composing digest...")
	comp := digest.NewComposer(p.db)
	d, err := comp.ComposeDigest(periodID, feed)
	if err != nil {
		return StepResult{Name: "Digest", Err: err}
	}
	return StepResult{
		Name:    "Digest",
		Summary: fmt.Sprintf("Digest composed: %d clusters, %d reports", d.ClusterCount, d.EventCount),
	}
}
