package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultProject ResultType = "project"
	ResultSkill   ResultType = "skill"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type       ResultType `json:"type"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	CategoryID string     `json:"categoryId,omitempty"`
	Category   string     `json:"category,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ProjectRecord is the data we index for a project.
type ProjectRecord struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Date       string   `json:"date"`
	CategoryID string   `json:"categoryId"`
	Skills     []string `json:"skills"`
	Enabled    bool     `json:"enabled"`
}

// SkillRecord is the data we index for a skill.
type SkillRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}
