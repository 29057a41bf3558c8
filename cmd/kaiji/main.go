package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkurosawa/kaiji/internal/collect"
	"github.com/mkurosawa/kaiji/internal/config"
	"github.com/mkurosawa/kaiji/internal/database"
	"github.com/mkurosawa/kaiji/internal/event"
	"github.com/mkurosawa/kaiji/internal/normalize"
	"github.com/mkurosawa/kaiji/internal/pipeline"
	"github.com/mkurosawa/kaiji/internal/scheduler"
	"github.com/mkurosawa/kaiji/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "kaiji",
	Short:   "Personalized Japanese corporate disclosure feed",
	Long:    "kaiji collects, clusters, and ranks Japanese corporate disclosures into a personalized feed and daily digests.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(readCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("kaiji", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/kaiji/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure feeds, clustering, and the digest schedule.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		today := database.GetToday()
		fmt.Printf("Today: %s\n\n", today)
		fmt.Println("Records:")
		fmt.Printf("  Total collected: %d\n", stats.TotalRecords)
		fmt.Printf("  Days with data: %d\n", stats.PeriodsWithRecords)
		fmt.Println("\nProfile:")
		fmt.Printf("  Watched tickers: %d\n", stats.WatchedTickers)
		fmt.Printf("  Read events: %d\n", stats.ReadEvents)
		fmt.Println("\nOutput:")
		fmt.Printf("  Delivered alerts: %d\n", stats.DeliveredKeys)
		fmt.Printf("  Digests: %d\n", stats.Digests)
		return nil
	},
}

// --- collect command ---

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect disclosure records from configured feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Println("Collecting records from feeds...")

		collector := collect.NewCollector(cfg, db, 1)
		result := collector.Collect(time.Now())

		fmt.Println("\nCollection complete:")
		fmt.Printf("  Total found: %d\n", result.TotalFound)
		fmt.Printf("  New records: %d\n", result.NewRecords)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)

		if len(result.Sources) > 0 {
			fmt.Println("\nRecords by source:")
			// Sort sources by count descending
			type kv struct {
				key string
				val int
			}
			var sorted []kv
			for k, v := range result.Sources {
				sorted = append(sorted, kv{k, v})
			}
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].val > sorted[j].val })
			for _, s := range sorted {
				fmt.Printf("  %s: %d\n", s.key, s.val)
			}
		}
		return nil
	},
}

// --- run command ---

var (
	dryRun   bool
	daysBack int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: collect -> fetch -> cluster -> personalize -> notify -> digest",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		today := database.GetToday()
		periodID, effectiveDaysBack, err := resolvePeriod(db, today, daysBack)
		if err != nil {
			return err
		}

		pipe := pipeline.New(cfg, db, nil)
		ctx := context.Background()

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun(periodID)
		} else {
			result = pipe.Run(ctx, periodID, effectiveDaysBack, time.Now())
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/6: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if !dryRun {
			fmt.Println("\nPipeline complete! Run 'kaiji feed' or 'kaiji serve' to view results.")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
	runCmd.Flags().IntVar(&daysBack, "days-back", 0, "Override lookback window (days)")
}

// resolvePeriod determines the period ID and effective days back based on
// explicit --days-back, catch-up detection, or daily run.
func resolvePeriod(db *database.DB, today string, explicitDaysBack int) (periodID string, effectiveDaysBack int, err error) {
	if explicitDaysBack > 0 {
		if explicitDaysBack == 1 {
			periodID = today
		} else {
			todayDate, _ := time.Parse("2006-01-02", today)
			start := todayDate.AddDate(0, 0, -(explicitDaysBack - 1)).Format("2006-01-02")
			periodID = database.MakePeriodID(start, today)
		}
		fmt.Printf("Collecting %d day(s) of records (%s).\n", explicitDaysBack, periodID)
		return periodID, explicitDaysBack, nil
	}

	lastRun, _ := db.GetLastRunDate()
	if lastRun == "" {
		fmt.Println("First run detected - collecting today's records.")
		return today, 1, nil
	}

	lastDate, _ := time.Parse("2006-01-02", lastRun)
	todayDate, _ := time.Parse("2006-01-02", today)
	missedDays := int(todayDate.Sub(lastDate).Hours() / 24)

	if missedDays <= 0 {
		fmt.Printf("Already ran today (%s). Re-running pipeline.\n", today)
		return today, 1, nil
	}

	if missedDays == 1 {
		fmt.Printf("Daily run for %s.\n", today)
		return today, 1, nil
	}

	// Catch-up: missed multiple days
	startDate := lastDate.AddDate(0, 0, 1).Format("2006-01-02")
	periodID = database.MakePeriodID(startDate, today)

	if missedDays > 5 {
		fmt.Printf("Last run was %d days ago (%s).\n", missedDays, lastRun)
		fmt.Printf("Catch up %d days (%s)? [y/N]: ", missedDays, periodID)

		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			return "", 0, fmt.Errorf("aborted")
		}
	} else {
		fmt.Printf("Catching up %d days (%s).\n", missedDays, periodID)
	}

	return periodID, missedDays, nil
}

// --- feed command ---

var (
	feedPreset string
	feedDate   string
	feedLimit  int
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Print the ranked personalized feed for a period",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		periodID := feedDate
		if periodID == "" {
			periodID = database.GetToday()
		}

		pipe := pipeline.New(cfg, db, nil)
		feed, err := pipe.BuildFeed(periodID, feedPreset, time.Now())
		if err != nil {
			return err
		}

		if len(feed) == 0 {
			fmt.Printf("No unread events for %s.\n", periodID)
			return nil
		}

		if feedLimit > 0 && len(feed) > feedLimit {
			feed = feed[:feedLimit]
		}

		for i, e := range feed {
			ticker := e.PrimaryTicker
			if ticker == "" {
				ticker = "----"
			}
			fmt.Printf("%2d. [%s] %s %s\n", i+1, strings.ToUpper(string(e.PersonalImpact)), ticker, e.Title)
			fmt.Printf("    %s | relevance %d | %s | %s\n",
				e.Category, e.Relevance, e.PublishedAt.Local().Format("15:04"), strings.Join(e.Sources, ", "))
			if verbose {
				for _, reason := range e.Reasons {
					fmt.Printf("      %s\n", reason)
				}
			}
		}
		return nil
	},
}

func init() {
	feedCmd.Flags().StringVar(&feedPreset, "preset", "", "Ranking preset (default, morning-digest, live-feed, impact-first)")
	feedCmd.Flags().StringVar(&feedDate, "date", "", "Period to rank (YYYY-MM-DD, default today)")
	feedCmd.Flags().IntVarP(&feedLimit, "limit", "n", 0, "Show at most N events")
}

// --- digest command ---

var digestCmd = &cobra.Command{
	Use:   "digest [date]",
	Short: "Print the stored digest for a date (default today)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		periodID := database.GetToday()
		if len(args) > 0 {
			periodID = args[0]
		}

		d, err := db.GetDigest(periodID)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("no digest for %s; run 'kaiji run' first", periodID)
		}

		fmt.Printf("# %s\n\n", database.FormatPeriodDisplay(d.PeriodID))
		fmt.Println("## TL;DR")
		fmt.Println()
		fmt.Println(d.TLDR)
		fmt.Println()
		fmt.Println(d.BodyMarkdown)
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(cfg, db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- schedule command ---

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run scheduled digests until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sched := scheduler.New(ctx, cfg, db, nil)
		if err := sched.RegisterAll(); err != nil {
			return err
		}

		sched.Start()
		fmt.Printf("Scheduler running (morning %q, evening %q). Press Ctrl+C to stop.\n",
			cfg.Schedule.MorningDigest, cfg.Schedule.EveningDigest)

		<-ctx.Done()
		sched.Stop()
		return nil
	},
}

// --- watch command ---

var watchPosition float64

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage the watchlist and category preferences",
}

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched tickers and category weights",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		profile, err := db.LoadProfile()
		if err != nil {
			return err
		}

		if len(profile.Watchlist) == 0 {
			fmt.Println("No tickers watched. Add one with: kaiji watch add 7203")
			return nil
		}

		fmt.Println("Watchlist:")
		for _, t := range profile.Watchlist {
			if pos, ok := profile.Positions[t]; ok {
				fmt.Printf("  %s (position %.2f)\n", t, pos)
			} else {
				fmt.Printf("  %s\n", t)
			}
		}

		if len(profile.CategoryWeights) > 0 {
			fmt.Println("\nCategory weights:")
			for _, cat := range event.Categories {
				if w, ok := profile.CategoryWeights[cat]; ok {
					fmt.Printf("  %s: %.2f\n", cat, w)
				}
			}
		}
		return nil
	},
}

var watchAddCmd = &cobra.Command{
	Use:   "add [ticker]",
	Short: "Add a ticker to the watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		code, ok := normalize.ValidTicker(args[0])
		if !ok {
			return fmt.Errorf("invalid ticker code: %s", args[0])
		}

		if err := db.AddWatch(code, watchPosition); err != nil {
			return err
		}
		if watchPosition > 0 {
			fmt.Printf("Watching %s (position %.2f)\n", code, watchPosition)
		} else {
			fmt.Printf("Watching %s\n", code)
		}
		return nil
	},
}

var watchRemoveCmd = &cobra.Command{
	Use:   "remove [ticker]",
	Short: "Remove a ticker from the watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.RemoveWatch(args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

var watchWeightCmd = &cobra.Command{
	Use:   "weight [category] [weight]",
	Short: "Set a category preference weight (e.g. incident 1.5)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		cat := event.Category(args[0])
		known := false
		for _, c := range event.Categories {
			if c == cat {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown category: %s", args[0])
		}

		weight, err := strconv.ParseFloat(args[1], 64)
		if err != nil || weight < 0 {
			return fmt.Errorf("invalid weight: %s", args[1])
		}

		if err := db.SetCategoryWeight(cat, weight); err != nil {
			return err
		}
		fmt.Printf("Set %s weight to %.2f\n", cat, weight)
		return nil
	},
}

func init() {
	watchAddCmd.Flags().Float64Var(&watchPosition, "position", 0, "Portfolio position size (fraction)")

	watchCmd.AddCommand(watchListCmd)
	watchCmd.AddCommand(watchAddCmd)
	watchCmd.AddCommand(watchRemoveCmd)
	watchCmd.AddCommand(watchWeightCmd)
}

// --- read command ---

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Manage read history",
}

var readMarkCmd = &cobra.Command{
	Use:   "mark [id...]",
	Short: "Mark event or cluster ids as read",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.MarkRead(args...); err != nil {
			return err
		}
		fmt.Printf("Marked %d id(s) as read\n", len(args))
		return nil
	},
}

var readResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the read history",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.ResetReads(); err != nil {
			return err
		}
		fmt.Println("Read history cleared")
		return nil
	},
}

func init() {
	readCmd.AddCommand(readMarkCmd)
	readCmd.AddCommand(readResetCmd)
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "kaiji.db")
	return database.Open(dbPath)
}
