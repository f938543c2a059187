// Package catalog implements the SkillsMP marketplace client. It lists
// candidate skills by keyword search, top-N, or full listing, always sorted
// by descending stars, and exposes the filtering helpers applied before
// skills are handed to the orchestrator.
package catalog

// Skill is one marketplace entry. Immutable once listed; every downstream
// component consumes it read-only.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Author      string   `json:"author"`
	Stars       int      `json:"stars"`
	Description string   `json:"description"`
	GitHubURL   string   `json:"githubUrl"`
	Files       []string `json:"files,omitempty"` // bundle files beyond SKILL.md, relative to the skill directory
}

// Mode selects how the marketplace is queried
type Mode string

const (
	// ModeSearch lists skills matching a keyword query
	ModeSearch Mode = "search"
	// ModeTop lists the top N skills by stars
	ModeTop Mode = "top"
	// ModeAll lists every skill above the star floor
	ModeAll Mode = "all"
)

// ListRequest describes one catalog listing
type ListRequest struct {
	Mode     Mode
	Query    string // keyword for ModeSearch
	TopN     int    // item count for ModeTop
	MinStars int    // star floor, applied in every mode
}
