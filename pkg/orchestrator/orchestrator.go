// Package orchestrator runs the concurrent download pipeline: a bounded pool
// of workers, each handling one skill end to end (classify, fetch, write),
// with per-item outcomes aggregated by a single collector into a run summary.
// One skill's failure never aborts or blocks the others.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillfetch/pkg/bundle"
	"github.com/jingkaihe/skillfetch/pkg/catalog"
	"github.com/jingkaihe/skillfetch/pkg/logger"
	"github.com/jingkaihe/skillfetch/pkg/materialize"
	"github.com/jingkaihe/skillfetch/pkg/taxonomy"
	"github.com/jingkaihe/skillfetch/pkg/telemetry"
)

// DefaultWorkers is the worker pool size used when none is configured
const DefaultWorkers = 5

// Fetcher retrieves a skill's complete bundle
type Fetcher interface {
	Fetch(ctx context.Context, ref bundle.Ref) ([]bundle.FileBlob, error)
}

// Writer persists bundles and answers the resume skip-check
type Writer interface {
	Exists(name string, category taxonomy.CategoryPath) bool
	Materialize(name string, blobs []bundle.FileBlob, category taxonomy.CategoryPath) (materialize.Status, error)
}

// Config holds the orchestration knobs
type Config struct {
	// Workers bounds how many skills are processed concurrently
	Workers int
	// Organize nests skills under their classified topic path
	Organize bool
}

// Orchestrator fans skills out over the worker pool
type Orchestrator struct {
	fetcher  Fetcher
	writer   Writer
	classify func(string) taxonomy.CategoryPath
	workers  int
	organize bool
}

// New creates an Orchestrator. A non-positive worker count falls back to
// DefaultWorkers.
func New(fetcher Fetcher, writer Writer, cfg Config) *Orchestrator {
	workers := cfg.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Orchestrator{
		fetcher:  fetcher,
		writer:   writer,
		classify: taxonomy.Classify,
		workers:  workers,
		organize: cfg.Organize,
	}
}

// Run downloads every listed skill and returns the aggregated summary.
// Every input skill yields exactly one outcome: duplicates by name are
// reported as failures without dispatch (destination directories are keyed
// by name, so two entries with the same name would race), and cancellation
// converts undispatched skills into failures while in-flight ones finish or
// clean up.
func (o *Orchestrator) Run(ctx context.Context, skills []catalog.Skill) *Summary {
	start := time.Now()
	runID := uuid.NewString()
	ctx = logger.WithLogger(ctx, logger.G(ctx).WithField("run_id", runID))

	unique, duplicates := catalog.DedupeByName(skills)

	jobs := make(chan catalog.Skill)
	results := make(chan Outcome)

	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for skill := range jobs {
				results <- o.process(ctx, skill)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		undispatched := o.dispatch(ctx, jobs, unique)
		for _, skill := range undispatched {
			results <- Outcome{
				SkillID: skill.ID,
				Name:    skill.Name,
				Status:  StatusFailed,
				Reason:  "run cancelled before dispatch",
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// Single collector: the summary is only ever mutated here.
	summary := &Summary{RunID: runID, Total: len(skills)}
	for _, dup := range duplicates {
		summary.record(Outcome{
			SkillID: dup.ID,
			Name:    dup.Name,
			Status:  StatusFailed,
			Reason:  "duplicate skill name in listing",
		})
	}
	for outcome := range results {
		summary.record(outcome)
	}

	summary.Duration = time.Since(start)
	logger.G(ctx).WithField("total", summary.Total).
		WithField("succeeded", summary.Succeeded).
		WithField("failed", summary.Failed).
		WithField("skipped", summary.Skipped).
		Info("run complete")
	return summary
}

// dispatch feeds the jobs channel until the input is drained or the context
// is cancelled, returning the skills that were never dispatched.
func (o *Orchestrator) dispatch(ctx context.Context, jobs chan<- catalog.Skill, skills []catalog.Skill) []catalog.Skill {
	defer close(jobs)
	for i, skill := range skills {
		select {
		case jobs <- skill:
		case <-ctx.Done():
			return skills[i:]
		}
	}
	return nil
}

// process handles one skill completely: classify (when organizing), skip
// check, fetch, write. It never blocks on other skills.
func (o *Orchestrator) process(ctx context.Context, skill catalog.Skill) Outcome {
	log := logger.G(ctx).WithField("skill", skill.Name)
	outcome := Outcome{SkillID: skill.ID, Name: skill.Name}

	var category taxonomy.CategoryPath
	if o.organize {
		category = o.classify(skill.Description)
	}

	err := telemetry.WithSpan(ctx, "skillfetch.download", func(ctx context.Context) error {
		if o.organize {
			telemetry.SetAttributes(ctx, attribute.String("skill.category", category.String()))
		}

		// Resume check before any network traffic.
		if o.writer.Exists(skill.Name, category) {
			outcome.Status = StatusSkipped
			log.Debug("already downloaded, skipping")
			return nil
		}

		ref, err := bundle.RefFromGitHubURL(skill.GitHubURL, skill.Files)
		if err != nil {
			return err
		}

		blobs, err := o.fetcher.Fetch(ctx, ref)
		if err != nil {
			return errors.Wrap(err, "fetch failed")
		}

		status, err := o.writer.Materialize(skill.Name, blobs, category)
		if err != nil {
			return errors.Wrap(err, "write failed")
		}

		if status == materialize.Skipped {
			outcome.Status = StatusSkipped
			return nil
		}

		outcome.Status = StatusSuccess
		log.WithField("stars", skill.Stars).WithField("category", category.String()).Info("downloaded skill")
		return nil
	}, attribute.String("skill.name", skill.Name), attribute.Int("skill.stars", skill.Stars))

	if err != nil {
		outcome.Status = StatusFailed
		outcome.Reason = err.Error()
		log.WithError(err).Warn("skill download failed")
	}
	return outcome
}
