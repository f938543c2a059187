package presenter

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func newTestPresenter() (*TerminalPresenter, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return NewWithOptions(out, errOut, ColorNever), out, errOut
}

func TestError(t *testing.T) {
	t.Run("with context", func(t *testing.T) {
		p, out, errOut := newTestPresenter()
		p.Error(errors.New("boom"), "Failed to list skills")
		assert.Empty(t, out.String())
		assert.Contains(t, errOut.String(), "[ERROR] Failed to list skills: boom")
	})

	t.Run("nil error is a no-op", func(t *testing.T) {
		p, _, errOut := newTestPresenter()
		p.Error(nil, "context")
		assert.Empty(t, errOut.String())
	})

	t.Run("errors ignore quiet mode", func(t *testing.T) {
		p, _, errOut := newTestPresenter()
		p.SetQuiet(true)
		p.Error(errors.New("boom"), "")
		assert.Contains(t, errOut.String(), "boom")
	})
}

func TestMessages(t *testing.T) {
	p, out, _ := newTestPresenter()

	p.Success("installed react")
	p.Warning("duplicate name")
	p.Info("fetching page 2")
	p.Section("All skills found")

	combined := out.String()
	assert.Contains(t, combined, "✓ installed react")
	assert.Contains(t, combined, "⚠ duplicate name")
	assert.Contains(t, combined, "fetching page 2")
	assert.Contains(t, combined, "All skills found")
	assert.Contains(t, combined, "----------------")
}

func TestQuietSuppressesMessages(t *testing.T) {
	p, out, _ := newTestPresenter()
	p.SetQuiet(true)
	assert.True(t, p.IsQuiet())

	p.Success("hidden")
	p.Warning("hidden")
	p.Info("hidden")
	p.Section("hidden")
	p.Separator()

	assert.Empty(t, out.String())
}

func TestSummary(t *testing.T) {
	t.Run("renders counts and failures", func(t *testing.T) {
		p, out, _ := newTestPresenter()
		p.Summary(&RunStats{
			Total:     10,
			Succeeded: 7,
			Skipped:   2,
			Failed:    1,
			Existing:  4,
			Failures: []FailureLine{
				{Name: "seo-audit", Reason: "fetch failed after 3 attempts"},
			},
		})

		combined := out.String()
		assert.Contains(t, combined, "Download complete: 7/10 succeeded | 2 skipped | 1 failed")
		assert.Contains(t, combined, "Already downloaded before this run: 4 skills")
		assert.Contains(t, combined, "✗ seo-audit: fetch failed after 3 attempts")
	})

	t.Run("nil stats is a no-op", func(t *testing.T) {
		p, out, _ := newTestPresenter()
		p.Summary(nil)
		assert.Empty(t, out.String())
	})
}
