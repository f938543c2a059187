// Package materialize writes fetched skill bundles to the destination
// directory tree. Writes are resumable: a destination already holding a
// SKILL.md is skipped, and a failed write removes the partial destination so
// the skip rule can never mistake it for a complete bundle.
package materialize

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillfetch/pkg/bundle"
	"github.com/jingkaihe/skillfetch/pkg/taxonomy"
)

// Status is the outcome of one materialization
type Status int

const (
	// Written means the bundle was written to the destination
	Written Status = iota
	// Skipped means the destination already held a complete bundle
	Skipped
)

// Materializer writes bundles under a root directory. Workers write to
// disjoint per-skill subdirectories, so no locking is needed between them.
type Materializer struct {
	root     string
	organize bool
}

// New creates a Materializer rooted at root. When organize is true, skills
// nest under their classified topic path instead of a flat list.
func New(root string, organize bool) *Materializer {
	return &Materializer{root: root, organize: organize}
}

// Dest computes the destination directory for a skill
func (m *Materializer) Dest(name string, category taxonomy.CategoryPath) string {
	if !m.organize {
		return filepath.Join(m.root, name)
	}
	if category.Secondary == "" {
		return filepath.Join(m.root, category.Primary, name)
	}
	return filepath.Join(m.root, category.Primary, category.Secondary, name)
}

// Exists reports whether the skill's destination already holds a complete
// bundle. SKILL.md presence is the completeness signal: a merely existing or
// half-written directory does not count.
func (m *Materializer) Exists(name string, category taxonomy.CategoryPath) bool {
	if !filepath.IsLocal(name) {
		return false
	}
	_, err := os.Stat(filepath.Join(m.Dest(name, category), bundle.SkillFileName))
	return err == nil
}

// Materialize writes every blob of the bundle under the skill's destination
// directory. Returns Skipped without touching the filesystem when the
// destination already holds a complete bundle. If any write fails partway,
// the destination is removed before the error is returned.
func (m *Materializer) Materialize(name string, blobs []bundle.FileBlob, category taxonomy.CategoryPath) (Status, error) {
	// Catalog names are trusted but still must not traverse out of the root.
	if !filepath.IsLocal(name) {
		return Written, errors.Errorf("skill name escapes destination root: %s", name)
	}
	if m.Exists(name, category) {
		return Skipped, nil
	}

	dest := m.Dest(name, category)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return Written, errors.Wrap(err, "failed to create destination directory")
	}

	if err := m.writeBlobs(dest, blobs); err != nil {
		// A half-written directory must never satisfy the skip rule.
		os.RemoveAll(dest)
		return Written, err
	}
	return Written, nil
}

func (m *Materializer) writeBlobs(dest string, blobs []bundle.FileBlob) error {
	for _, blob := range blobs {
		rel := filepath.FromSlash(blob.Path)
		if !filepath.IsLocal(rel) {
			return errors.Errorf("bundle file path escapes destination: %s", blob.Path)
		}

		target := filepath.Join(dest, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory for %s", blob.Path)
		}
		if err := os.WriteFile(target, blob.Content, 0o644); err != nil {
			return errors.Wrapf(err, "failed to write %s", blob.Path)
		}
	}
	return nil
}

// CountExisting walks the root and counts complete bundles already on disk,
// in both flat and organized layouts. Used for the pre-run "already
// downloaded" accounting in the summary. A directory holding a SKILL.md is
// one bundle; its subtree is not descended into, so a stray SKILL.md nested
// inside a bundle never counts twice. Hidden directories below the root are
// ignored, but the root itself may live under a dot directory (the default
// root is ~/.claude/skills).
func (m *Materializer) CountExisting() int {
	count := 0
	_ = filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(m.root, path)
		if relErr != nil {
			return nil
		}
		if rel != "." && hasHiddenSegment(rel) {
			return filepath.SkipDir
		}
		if _, statErr := os.Stat(filepath.Join(path, bundle.SkillFileName)); statErr == nil {
			count++
			return filepath.SkipDir
		}
		return nil
	})
	return count
}

func hasHiddenSegment(rel string) bool {
	for _, seg := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
