package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across projects and skills using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultProject {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'project'::text AS type, p.id, p.name AS title,
				ts_headline('english', coalesce(p.date, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				p.category_id, ''::text AS category,
				ts_rank(p.fts, %s) AS rank
			FROM projects p
			WHERE p.enabled AND p.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultSkill {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'skill'::text AS type, s.id, s.name AS title,
				ts_headline('english', coalesce(s.category, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS category_id, s.category,
				ts_rank(s.fts, %s) AS rank
			FROM skills s
			WHERE s.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, category_id, category
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.CategoryID, &r.Category); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ProjectRecord, []SkillRecord, error) {
	projectRows, err := p.db.QueryContext(ctx, `
		SELECT id, name, date, category_id, enabled
		FROM projects
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load projects: %w", err)
	}
	defer projectRows.Close()

	projects := make([]ProjectRecord, 0)
	for projectRows.Next() {
		var pr ProjectRecord
		if err := projectRows.Scan(&pr.ID, &pr.Name, &pr.Date, &pr.CategoryID, &pr.Enabled); err != nil {
			return nil, nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, pr)
	}
	if err := projectRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate projects: %w", err)
	}

	skillRows, err := p.db.QueryContext(ctx, `
		SELECT id, name, category
		FROM skills
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load skills: %w", err)
	}
	defer skillRows.Close()

	skills := make([]SkillRecord, 0)
	for skillRows.Next() {
		var sr SkillRecord
		if err := skillRows.Scan(&sr.ID, &sr.Name, &sr.Category); err != nil {
			return nil, nil, fmt.Errorf("scan skill: %w", err)
		}
		skills = append(skills, sr)
	}
	if err := skillRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate skills: %w", err)
	}

	return projects, skills, nil
}
