package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/mkurosawa/kaiji/internal/config"
	"github.com/mkurosawa/kaiji/internal/database"
	"github.com/mkurosawa/kaiji/internal/notify"
	"github.com/mkurosawa/kaiji/internal/pipeline"
)

// Scheduler runs the pipeline on the configured digest schedule. The
// processing core never sees a clock; this is where wall-clock timing
// lives.
type Scheduler struct {
	cron   *cron.Cron
	cfg    *config.Config
	db     *database.DB
	sender notify.Sender
	ctx    context.Context
}

// New creates a new Scheduler.
func New(ctx context.Context, cfg *config.Config, db *database.DB, sender notify.Sender) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		cfg:    cfg,
		db:     db,
		sender: sender,
		ctx:    ctx,
	}
}

// RegisterAll registers the scheduled digest tasks. Empty cron specs
// disable the corresponding task.
func (s *Scheduler) RegisterAll() error {
	if spec := s.cfg.Schedule.MorningDigest; spec != "" {
		if _, err := s.cron.AddFunc(spec, func() { s.runDigest("morning-digest") }); err != nil {
			return fmt.Errorf("register morning digest: %w", err)
		}
	}
	if spec := s.cfg.Schedule.EveningDigest; spec != "" {
		if _, err := s.cron.AddFunc(spec, func() { s.runDigest("morning-digest") }); err != nil {
			return fmt.Errorf("register evening digest: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("scheduler started")
}

// Stop stops the cron scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("scheduler stopped")
}

func (s *Scheduler) runDigest(preset string) {
	periodID := database.GetToday()
	log.Printf("running scheduled digest for %s", periodID)

	// Digest runs over-weight relevance rather than the live-feed
	// preset the interactive run uses.
	cfg := *s.cfg
	cfg.Ranking.Preset = preset

	p := pipeline.New(&cfg, s.db, s.sender)
	result := p.Run(s.ctx, periodID, 1, timeNow())
	for _, step := range result.Steps {
		if step.Err != nil {
			log.Printf("scheduled digest step %s failed: %v", step.Name, step.Err)
		}
	}
}
