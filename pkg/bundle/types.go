// Package bundle fetches a skill's file bundle from raw GitHub content.
// A bundle is the set of files belonging to one skill, rooted at a SKILL.md
// file. Fetching is all-or-nothing: a partial bundle is never returned.
package bundle

import (
	"strings"

	"github.com/pkg/errors"
)

// SkillFileName is the canonical root file of every bundle. Upstream repos
// use both skill.md and SKILL.md; the fetcher normalizes to this name.
const SkillFileName = "SKILL.md"

// FileBlob is one named file in a bundle. Path is relative to the bundle
// root and case-sensitive.
type FileBlob struct {
	Path    string
	Content []byte
}

// Ref locates a skill's bundle. The orchestrator treats it as opaque.
type Ref struct {
	RawBaseURL string   // raw content URL of the skill directory
	Files      []string // bundle files beyond the root SKILL.md, relative paths
}

// Metadata is the YAML frontmatter every SKILL.md must carry
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// RefFromGitHubURL converts a marketplace githubUrl into a raw-content Ref.
//
// Example conversion:
//
//	https://github.com/user/repo/tree/main/path/to/skill
//	-> https://raw.githubusercontent.com/user/repo/main/path/to/skill
func RefFromGitHubURL(githubURL string, extraFiles []string) (Ref, error) {
	if githubURL == "" {
		return Ref{}, errors.New("skill has no github URL")
	}
	if !strings.Contains(githubURL, "github.com") {
		return Ref{}, errors.Errorf("unsupported bundle URL: %s", githubURL)
	}

	raw := strings.Replace(githubURL, "github.com", "raw.githubusercontent.com", 1)
	raw = strings.Replace(raw, "/tree/", "/", 1)
	raw = strings.TrimRight(raw, "/")

	return Ref{RawBaseURL: raw, Files: extraFiles}, nil
}
