// Package taxonomy assigns skills a two-level topic category from their
// marketplace description. Classification is a pure function over a static,
// ordered keyword rule table so results are reproducible and auditable;
// declared table order is the only tie-break.
package taxonomy

import "strings"

// Uncategorized is the primary category for descriptions no rule matches.
const Uncategorized = "uncategorized"

// CategoryPath is a computed (primary, secondary) topic path. Secondary is
// empty when only a primary-level rule (or no rule) matched.
type CategoryPath struct {
	Primary   string
	Secondary string
}

// IsUncategorized reports whether no rule matched the description.
func (c CategoryPath) IsUncategorized() bool {
	return c.Primary == Uncategorized
}

func (c CategoryPath) String() string {
	if c.Secondary == "" {
		return c.Primary
	}
	return c.Primary + "/" + c.Secondary
}

type secondaryRule struct {
	name     string
	keywords []string
}

type primaryRule struct {
	name        string
	keywords    []string // broad fallback tokens, checked after all secondaries
	secondaries []secondaryRule
}

// ruleTable declares every category and its keywords. Order matters: when a
// description matches several rules, the one declared first wins. All tokens
// are matched case-insensitively as substrings, so they must be distinctive
// enough not to fire inside unrelated words.
var ruleTable = []primaryRule{
	{
		name:     "development",
		keywords: []string{"programming", "developer", "coding", "software engineering", "code review", "refactor", "debugging"},
		secondaries: []secondaryRule{
			{name: "frontend", keywords: []string{"react", "vue", "angular", "svelte", "css", "html", "frontend", "front-end", "ui component", "web component"}},
			{name: "backend", keywords: []string{"backend", "back-end", "server-side", "rest api", "graphql", "microservice", "grpc"}},
			{name: "mobile", keywords: []string{"ios app", "android", "flutter", "react native", "mobile app", "swiftui", "kotlin"}},
			{name: "devops", keywords: []string{"docker", "kubernetes", "terraform", "ci/cd", "deployment pipeline", "infrastructure as code", "helm chart"}},
			{name: "testing", keywords: []string{"unit test", "integration test", "test automation", "end-to-end test", "e2e test", "pytest", "jest"}},
		},
	},
	{
		name:     "data",
		keywords: []string{"data pipeline", "dataset", "data engineering", "etl"},
		secondaries: []secondaryRule{
			{name: "machine-learning", keywords: []string{"machine learning", "deep learning", "neural network", "model training", "pytorch", "tensorflow", "llm", "fine-tun"}},
			{name: "analytics", keywords: []string{"analytics", "data visualization", "dashboard", "business intelligence", "metrics report"}},
			{name: "databases", keywords: []string{"sql quer", "postgres", "mysql", "mongodb", "redis", "database migration", "database schema"}},
		},
	},
	{
		name:     "content",
		keywords: []string{"content creation", "blog", "newsletter"},
		secondaries: []secondaryRule{
			{name: "writing", keywords: []string{"copywriting", "creative writing", "proofread", "grammar", "editing", "storytelling"}},
			{name: "seo", keywords: []string{"seo", "search engine optimization", "keyword research", "backlink", "serp"}},
			{name: "documentation", keywords: []string{"documentation", "technical writing", "readme", "api docs", "changelog"}},
		},
	},
	{
		name:     "design",
		keywords: []string{"design system", "designer"},
		secondaries: []secondaryRule{
			{name: "ui-ux", keywords: []string{"user interface", "user experience", "ui design", "ux design", "wireframe", "figma", "prototype", "responsive ui"}},
			{name: "graphics", keywords: []string{"logo", "illustration", "icon set", "graphic design", "image generation"}},
		},
	},
	{
		name:     "productivity",
		keywords: []string{"productivity", "time management", "note-taking"},
		secondaries: []secondaryRule{
			{name: "automation", keywords: []string{"automation", "automate", "scheduled task", "cron", "batch process"}},
			{name: "project-management", keywords: []string{"project management", "kanban", "scrum", "sprint planning", "roadmap", "task tracking"}},
		},
	},
	{
		name:     "business",
		keywords: []string{"business plan", "startup", "entrepreneur"},
		secondaries: []secondaryRule{
			{name: "marketing", keywords: []string{"marketing", "social media", "ad campaign", "branding", "growth hacking"}},
			{name: "finance", keywords: []string{"finance", "accounting", "invoice", "budgeting", "tax", "bookkeeping"}},
			{name: "sales", keywords: []string{"sales pipeline", "crm", "lead generation", "cold outreach", "sales email"}},
		},
	},
	{
		name:     "research",
		keywords: []string{"research assistant", "knowledge base"},
		secondaries: []secondaryRule{
			{name: "academic", keywords: []string{"academic", "citation", "literature review", "research paper", "arxiv", "bibliography"}},
			{name: "science", keywords: []string{"scientific", "experiment design", "lab notebook", "bioinformatics", "chemistry", "physics"}},
		},
	},
	{
		name:     "security",
		keywords: []string{"security", "privacy"},
		secondaries: []secondaryRule{
			{name: "appsec", keywords: []string{"vulnerability", "penetration test", "owasp", "security audit", "threat model", "cve"}},
			{name: "cryptography", keywords: []string{"encryption", "cryptograph", "tls certificate", "key management", "secrets management"}},
		},
	},
}

// Classify maps a skill description to its CategoryPath. It is deterministic
// and total: any input, including the empty string, yields a valid path.
// Secondary rules are scanned first across the whole table in declared order;
// primary-level keywords act as a broader fallback, scanned in the same order.
func Classify(description string) CategoryPath {
	desc := strings.ToLower(description)

	for _, primary := range ruleTable {
		for _, secondary := range primary.secondaries {
			if matchesAny(desc, secondary.keywords) {
				return CategoryPath{Primary: primary.name, Secondary: secondary.name}
			}
		}
	}

	for _, primary := range ruleTable {
		if matchesAny(desc, primary.keywords) {
			return CategoryPath{Primary: primary.name}
		}
	}

	return CategoryPath{Primary: Uncategorized}
}

func matchesAny(desc string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(desc, kw) {
			return true
		}
	}
	return false
}

// Primaries returns every primary category name in declared order, excluding
// Uncategorized.
func Primaries() []string {
	names := make([]string, 0, len(ruleTable))
	for _, primary := range ruleTable {
		names = append(names, primary.name)
	}
	return names
}
