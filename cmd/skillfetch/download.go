package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillfetch/pkg/bundle"
	"github.com/jingkaihe/skillfetch/pkg/catalog"
	"github.com/jingkaihe/skillfetch/pkg/history"
	"github.com/jingkaihe/skillfetch/pkg/logger"
	"github.com/jingkaihe/skillfetch/pkg/materialize"
	"github.com/jingkaihe/skillfetch/pkg/orchestrator"
	"github.com/jingkaihe/skillfetch/pkg/presenter"
)

// RunConfig is the download run configuration, resolved from flags, config
// file, and SKILLFETCH_* environment variables via viper.
type RunConfig struct {
	All      bool   `mapstructure:"all"`
	Top      int    `mapstructure:"top"`
	MinStars int    `mapstructure:"min_stars"`
	Workers  int    `mapstructure:"workers"`
	Retry    int    `mapstructure:"retry"`
	Organize bool   `mapstructure:"organize"`
	Dir      string `mapstructure:"dir"`
}

func init() {
	rootCmd.Flags().Bool("all", false, "Download every skill above the star floor")
	rootCmd.Flags().Int("top", 0, "Download the top N skills by stars")
	rootCmd.Flags().Int("min-stars", 0, "Minimum star count")
	rootCmd.Flags().Int("workers", orchestrator.DefaultWorkers, "Number of parallel download workers")
	rootCmd.Flags().Int("retry", 3, "Number of retries for transient download failures")
	rootCmd.Flags().Bool("organize", false, "Sort skills into topic directories inferred from their description")
	rootCmd.Flags().String("dir", "", "Destination directory (default ~/.claude/skills)")

	viper.BindPFlag("all", rootCmd.Flags().Lookup("all"))
	viper.BindPFlag("top", rootCmd.Flags().Lookup("top"))
	viper.BindPFlag("min_stars", rootCmd.Flags().Lookup("min-stars"))
	viper.BindPFlag("workers", rootCmd.Flags().Lookup("workers"))
	viper.BindPFlag("retry", rootCmd.Flags().Lookup("retry"))
	viper.BindPFlag("organize", rootCmd.Flags().Lookup("organize"))
	viper.BindPFlag("dir", rootCmd.Flags().Lookup("dir"))
}

func getRunConfig() (*RunConfig, error) {
	cfg := &RunConfig{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal configuration")
	}
	return cfg, nil
}

// buildListRequest resolves the query mode from flags and positional args.
// The second positional arg overrides --min-stars, matching the classic
// "skillfetch SEO 1000" invocation.
func buildListRequest(cfg *RunConfig, args []string) (catalog.ListRequest, error) {
	req := catalog.ListRequest{MinStars: cfg.MinStars}

	if len(args) > 1 {
		stars, err := strconv.Atoi(args[1])
		if err != nil {
			return req, errors.Errorf("min-stars argument must be an integer, got %q", args[1])
		}
		req.MinStars = stars
	}

	switch {
	case cfg.All:
		req.Mode = catalog.ModeAll
	case cfg.Top > 0:
		req.Mode = catalog.ModeTop
		req.TopN = cfg.Top
	case len(args) > 0 && args[0] != "":
		req.Mode = catalog.ModeSearch
		req.Query = args[0]
	default:
		return req, errors.New("provide a search query, --all, or --top N")
	}

	return req, nil
}

func defaultSkillsDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user home directory")
	}
	return filepath.Join(homeDir, ".claude", "skills"), nil
}

func runDownload(ctx context.Context, args []string) error {
	cfg, err := getRunConfig()
	if err != nil {
		return err
	}

	req, err := buildListRequest(cfg, args)
	if err != nil {
		return err
	}

	// Missing credentials are a startup failure, not a per-skill one.
	token := viper.GetString("api_token")
	client, err := catalog.NewClient(ctx, token)
	if err != nil {
		return errors.Wrap(err, "set SKILLFETCH_API_TOKEN")
	}

	dir := cfg.Dir
	if dir == "" {
		if dir, err = defaultSkillsDir(); err != nil {
			return err
		}
	}

	presenter.Section(fmt.Sprintf("Listing skills (mode=%s, min stars=%d)", req.Mode, req.MinStars))
	skills, err := client.List(ctx, req)
	if err != nil {
		return errors.Wrap(err, "marketplace listing failed")
	}
	if len(skills) == 0 {
		presenter.Info("No skills matched. Nothing to do.")
		return nil
	}

	for _, skill := range skills {
		presenter.Info(fmt.Sprintf("  • %s by %s - %d stars", skill.Name, skill.Author, skill.Stars))
	}
	presenter.Separator()

	writer := materialize.New(dir, cfg.Organize)
	existing := writer.CountExisting()

	fetcher := bundle.NewFetcher(
		bundle.WithMaxRetries(cfg.Retry),
		bundle.WithAuthToken(viper.GetString("github_token")),
	)

	presenter.Section(fmt.Sprintf("Downloading %d skills with %d workers to %s", len(skills), cfg.Workers, dir))

	orch := orchestrator.New(fetcher, writer, orchestrator.Config{
		Workers:  cfg.Workers,
		Organize: cfg.Organize,
	})
	summary := orch.Run(ctx, skills)

	recordRun(ctx, req, summary)
	presenter.Summary(summaryStats(summary, existing))
	if summary.Failed > 0 {
		presenter.Warning(fmt.Sprintf("%d skills failed, rerun to retry them", summary.Failed))
	} else {
		presenter.Success("All skills up to date")
	}

	// Per-skill failures are reported in the summary; the run itself
	// completed, so the exit status stays zero.
	return nil
}

func summaryStats(summary *orchestrator.Summary, existing int) *presenter.RunStats {
	stats := &presenter.RunStats{
		Total:     summary.Total,
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		Skipped:   summary.Skipped,
		Existing:  existing,
	}
	for _, f := range summary.Failures {
		stats.Failures = append(stats.Failures, presenter.FailureLine{Name: f.Name, Reason: f.Reason})
	}
	return stats
}

// recordRun persists the run to history. Best effort: a history failure never
// fails the run.
func recordRun(ctx context.Context, req catalog.ListRequest, summary *orchestrator.Summary) {
	dbPath, err := historyDBPath()
	if err != nil {
		logger.G(ctx).WithError(err).Debug("skipping run history")
		return
	}

	store, err := history.NewStore(ctx, dbPath)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to open run history")
		return
	}
	defer store.Close()

	rec := &history.Record{
		ID:         summary.RunID,
		Mode:       string(req.Mode),
		Query:      req.Query,
		MinStars:   req.MinStars,
		Total:      summary.Total,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		Skipped:    summary.Skipped,
		DurationMS: summary.Duration.Milliseconds(),
		StartedAt:  time.Now().UTC().Add(-summary.Duration),
	}
	if err := store.RecordRun(ctx, rec); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to record run history")
	}
}

func historyDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user home directory")
	}
	return filepath.Join(homeDir, ".skillfetch", "history.db"), nil
}
