package collect

import (
	"log"
	"time"

	"github.com/mkurosawa/kaiji/internal/config"
	"github.com/mkurosawa/kaiji/internal/database"
	"github.com/mkurosawa/kaiji/internal/event"
)

// Result holds the results of a collection run.
type Result struct {
	TotalFound int
	NewRecords int
	Duplicates int
	Sources    map[string]int
}

// Collector pulls raw records from the configured disclosure and
// press-release feeds and stores them. Tier assignment and retry
// concerns live here, outside the processing core.
type Collector struct {
	db         *database.DB
	feedParser *FeedParser
	daysBack   int
}

// NewCollector creates a new record collector.
func NewCollector(cfg *config.Config, db *database.DB, daysBack int) *Collector {
	c := &Collector{db: db, daysBack: daysBack}

	if len(cfg.Sources.Feeds) > 0 {
		feeds := make([]FeedConfig, len(cfg.Sources.Feeds))
		for i, f := range cfg.Sources.Feeds {
			feeds[i] = FeedConfig{
				ID:   f.ID,
				Name: f.Name,
				URL:  f.URL,
				Tier: event.Tier(f.Tier),
			}
		}
		c.feedParser = NewFeedParser(feeds)
	}

	return c
}

// Collect fetches all configured feeds and stores new records, keyed
// to the period of their publish date. Duplicate ids or URLs are
// counted and skipped.
func (c *Collector) Collect(now time.Time) *Result {
	r := &Result{Sources: make(map[string]int)}
	if c.feedParser == nil {
		log.Println("No feeds configured")
		return r
	}

	log.Println("Collecting from disclosure feeds...")
	records := c.feedParser.ParseAll(c.daysBack, now)
	r.TotalFound = len(records)

	for _, rec := range records {
		inserted, err := c.db.InsertRecord(rec, database.PeriodOf(rec.PublishedAt))
		if err != nil {
			log.Printf("Error storing record %s: %v", rec.ID, err)
			continue
		}
		if inserted {
			r.NewRecords++
			r.Sources[rec.SourceName]++
		} else {
			r.Duplicates++
		}
	}

	log.Printf("Collection complete: %d found, %d new, %d duplicates", r.TotalFound, r.NewRecords, r.Duplicates)
	return r
}
