package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillfetch/pkg/bundle"
	"github.com/jingkaihe/skillfetch/pkg/catalog"
	"github.com/jingkaihe/skillfetch/pkg/materialize"
	"github.com/jingkaihe/skillfetch/pkg/taxonomy"
)

const testSkillMD = `---
name: test
description: test skill
---
body
`

type fakeFetcher struct {
	mu       sync.Mutex
	calls    int
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
	failFor  map[string]error // keyed on RawBaseURL suffix
}

func (f *fakeFetcher) Fetch(ctx context.Context, ref bundle.Ref) ([]bundle.FileBlob, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxSeen.Load()
		if cur <= max || f.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	for suffix, err := range f.failFor {
		if ref.RawBaseURL == "https://raw.githubusercontent.com/org/repo/main/skills/"+suffix {
			return nil, err
		}
	}
	return []bundle.FileBlob{{Path: bundle.SkillFileName, Content: []byte(testSkillMD)}}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func someSkills(n int) []catalog.Skill {
	skills := make([]catalog.Skill, n)
	for i := range skills {
		name := fmt.Sprintf("skill-%d", i)
		skills[i] = catalog.Skill{
			ID:        name,
			Name:      name,
			Stars:     1000 - i,
			GitHubURL: "https://github.com/org/repo/tree/main/skills/" + name,
		}
	}
	return skills
}

func newTestOrchestrator(t *testing.T, fetcher Fetcher, cfg Config) (*Orchestrator, *materialize.Materializer) {
	t.Helper()
	writer := materialize.New(t.TempDir(), cfg.Organize)
	return New(fetcher, writer, cfg), writer
}

func TestRunDownloadsEverything(t *testing.T) {
	fetcher := &fakeFetcher{}
	o, writer := newTestOrchestrator(t, fetcher, Config{Workers: 3})

	summary := o.Run(context.Background(), someSkills(8))

	assert.Equal(t, 8, summary.Total)
	assert.Equal(t, 8, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Zero(t, summary.Skipped)
	assert.Len(t, summary.Outcomes, 8)
	assert.NoError(t, summary.Err())
	assert.NotEmpty(t, summary.RunID)
	assert.True(t, writer.Exists("skill-0", taxonomy.CategoryPath{}))
}

func TestRunFaultIsolation(t *testing.T) {
	fetcher := &fakeFetcher{failFor: map[string]error{
		"skill-3": errors.New("vanished upstream"),
	}}
	o, _ := newTestOrchestrator(t, fetcher, Config{Workers: 4})

	summary := o.Run(context.Background(), someSkills(10))

	assert.Equal(t, 10, summary.Total)
	assert.Equal(t, 9, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, summary.Outcomes, 10)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "skill-3", summary.Failures[0].Name)
	assert.Contains(t, summary.Failures[0].Reason, "vanished upstream")
	assert.Error(t, summary.Err())
}

func TestRunBoundedConcurrency(t *testing.T) {
	fetcher := &fakeFetcher{delay: 20 * time.Millisecond}
	o, _ := newTestOrchestrator(t, fetcher, Config{Workers: 3})

	summary := o.Run(context.Background(), someSkills(12))

	assert.Equal(t, 12, summary.Succeeded)
	assert.LessOrEqual(t, fetcher.maxSeen.Load(), int32(3), "never more than Workers fetches in flight")
	assert.Greater(t, fetcher.maxSeen.Load(), int32(1), "pool actually runs concurrently")
}

func TestRunSecondRunSkipsWithoutFetching(t *testing.T) {
	fetcher := &fakeFetcher{}
	o, _ := newTestOrchestrator(t, fetcher, Config{Workers: 2})
	skills := someSkills(5)

	first := o.Run(context.Background(), skills)
	require.Equal(t, 5, first.Succeeded)
	fetchedOnFirstRun := fetcher.callCount()

	second := o.Run(context.Background(), skills)

	assert.Equal(t, 5, second.Skipped)
	assert.Zero(t, second.Succeeded)
	assert.Zero(t, second.Failed)
	assert.Equal(t, fetchedOnFirstRun, fetcher.callCount(), "skip check happens before any fetch")
}

func TestRunDuplicateNamesAreNotDispatched(t *testing.T) {
	fetcher := &fakeFetcher{}
	o, _ := newTestOrchestrator(t, fetcher, Config{Workers: 2})

	skills := someSkills(3)
	skills = append(skills, catalog.Skill{
		ID:        "dup",
		Name:      "skill-1",
		GitHubURL: "https://github.com/org/repo/tree/main/skills/skill-1",
	})

	summary := o.Run(context.Background(), skills)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Contains(t, summary.Failures[0].Reason, "duplicate")
	assert.Equal(t, 3, fetcher.callCount())
}

func TestRunOrganizeClassifiesDestinations(t *testing.T) {
	fetcher := &fakeFetcher{}
	writer := materialize.New(t.TempDir(), true)
	o := New(fetcher, writer, Config{Workers: 2, Organize: true})

	skills := []catalog.Skill{{
		ID:          "react",
		Name:        "react",
		Description: "A React component library for building responsive UIs",
		GitHubURL:   "https://github.com/org/repo/tree/main/skills/react",
	}}

	summary := o.Run(context.Background(), skills)

	require.Equal(t, 1, summary.Succeeded)
	assert.True(t, writer.Exists("react", taxonomy.CategoryPath{Primary: "development", Secondary: "frontend"}))
}

func TestRunCancelledBeforeDispatchStillYieldsOutcomes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{}
	o, _ := newTestOrchestrator(t, fetcher, Config{Workers: 2})

	summary := o.Run(ctx, someSkills(6))

	assert.Equal(t, 6, summary.Total)
	assert.Len(t, summary.Outcomes, 6, "every skill yields an outcome even under cancellation")
	assert.Equal(t, summary.Total, summary.Succeeded+summary.Failed+summary.Skipped)
}

func TestRunInvalidGitHubURLFailsThatSkillOnly(t *testing.T) {
	fetcher := &fakeFetcher{}
	o, _ := newTestOrchestrator(t, fetcher, Config{Workers: 2})

	skills := someSkills(2)
	skills = append(skills, catalog.Skill{ID: "bad", Name: "bad", GitHubURL: ""})

	summary := o.Run(context.Background(), skills)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
}

func TestSummaryErrAggregatesFailures(t *testing.T) {
	s := &Summary{}
	s.record(Outcome{Name: "a", Status: StatusFailed, Reason: "boom"})
	s.record(Outcome{Name: "b", Status: StatusFailed, Reason: "bust"})
	s.record(Outcome{Name: "c", Status: StatusSuccess})

	err := s.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: boom")
	assert.Contains(t, err.Error(), "b: bust")
}
