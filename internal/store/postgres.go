package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"portfolio/api/internal/ordering"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Mutator is the view of the store that compound ordering operations run
// against. Outside a transaction the PostgresStore itself is the Mutator;
// inside InTx every call goes through the transaction.
type Mutator interface {
	SkillOrders() ordering.Store
	TimelineOrders() ordering.Store
	ProjectOrders() ordering.Store
	CategoryOrders() ordering.Store

	ListSkills(ctx context.Context) ([]Skill, error)
	GetSkill(ctx context.Context, id string) (Skill, error)
	FindSkillByNameCategory(ctx context.Context, name, category string) (Skill, error)
	InsertSkill(ctx context.Context, skill Skill) error
	UpdateSkill(ctx context.Context, skill Skill) error
	DeleteSkill(ctx context.Context, id string) error

	ListTimelines(ctx context.Context) ([]Timeline, error)
	GetTimeline(ctx context.Context, id string) (Timeline, error)
	FindTimelineByHeaderDate(ctx context.Context, header, date string) (Timeline, error)
	InsertTimeline(ctx context.Context, timeline Timeline) error
	UpdateTimeline(ctx context.Context, timeline Timeline) error
	DeleteTimeline(ctx context.Context, id string) error

	ListProjects(ctx context.Context) ([]Project, error)
	ListProjectsByCategory(ctx context.Context, categoryID string) ([]Project, error)
	GetProject(ctx context.Context, id string) (Project, error)
	InsertProject(ctx context.Context, project Project) error
	UpdateProject(ctx context.Context, project Project) error
	DeleteProject(ctx context.Context, id string) error
	SetProjectPlacement(ctx context.Context, id, categoryID string, displayOrder int) error

	ListProjectCategories(ctx context.Context) ([]ProjectCategory, error)
	GetProjectCategory(ctx context.Context, id string) (ProjectCategory, error)
	FindProjectCategoryByName(ctx context.Context, name string) (ProjectCategory, error)
	InsertProjectCategory(ctx context.Context, category ProjectCategory) error
	UpdateProjectCategory(ctx context.Context, category ProjectCategory) error
	DeleteProjectCategory(ctx context.Context, id string) error
}

type view struct {
	q querier
}

type PostgresStore struct {
	view
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{view: view{q: db}, db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn against a transaction-bound Mutator, committing on success.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Mutator) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&view{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- Skills ---

const skillColumns = `id, name, category, display_order, hover_color_primary, hover_color_secondary, logo_url, created_at, updated_at`

func scanSkill(row interface{ Scan(...any) error }) (Skill, error) {
	var skill Skill
	err := row.Scan(&skill.ID, &skill.Name, &skill.Category, &skill.DisplayOrder,
		&skill.HoverColorPrimary, &skill.HoverColorSecondary, &skill.LogoURL,
		&skill.CreatedAt, &skill.UpdatedAt)
	return skill, err
}

func (v *view) ListSkills(ctx context.Context) ([]Skill, error) {
	rows, err := v.q.QueryContext(ctx, `SELECT `+skillColumns+` FROM skills ORDER BY category ASC, display_order ASC`)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	defer rows.Close()

	skills := make([]Skill, 0)
	for rows.Next() {
		skill, err := scanSkill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		skills = append(skills, skill)
	}
	return skills, rows.Err()
}

func (v *view) GetSkill(ctx context.Context, id string) (Skill, error) {
	return scanSkill(v.q.QueryRowContext(ctx, `SELECT `+skillColumns+` FROM skills WHERE id=$1`, id))
}

func (v *view) FindSkillByNameCategory(ctx context.Context, name, category string) (Skill, error) {
	return scanSkill(v.q.QueryRowContext(ctx,
		`SELECT `+skillColumns+` FROM skills WHERE name=$1 AND category=$2`, name, category))
}

func (v *view) InsertSkill(ctx context.Context, skill Skill) error {
	_, err := v.q.ExecContext(ctx, `
		INSERT INTO skills (id, name, category, display_order, hover_color_primary, hover_color_secondary, logo_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, skill.ID, skill.Name, skill.Category, skill.DisplayOrder,
		skill.HoverColorPrimary, skill.HoverColorSecondary, skill.LogoURL)
	if err != nil {
		return fmt.Errorf("insert skill: %w", err)
	}
	return nil
}

func (v *view) UpdateSkill(ctx context.Context, skill Skill) error {
	result, err := v.q.ExecContext(ctx, `
		UPDATE skills
		SET name=$2, category=$3, display_order=$4, hover_color_primary=$5, hover_color_secondary=$6, logo_url=$7, updated_at=NOW()
		WHERE id=$1
	`, skill.ID, skill.Name, skill.Category, skill.DisplayOrder,
		skill.HoverColorPrimary, skill.HoverColorSecondary, skill.LogoURL)
	if err != nil {
		return fmt.Errorf("update skill: %w", err)
	}
	return requireRow(result)
}

func (v *view) DeleteSkill(ctx context.Context, id string) error {
	result, err := v.q.ExecContext(ctx, `DELETE FROM skills WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete skill: %w", err)
	}
	return requireRow(result)
}

// --- Timelines ---

const timelineColumns = `id, header, subheader, date, description, display_order, logo_url, created_at, updated_at`

func scanTimeline(row interface{ Scan(...any) error }) (Timeline, error) {
	var timeline Timeline
	err := row.Scan(&timeline.ID, &timeline.Header, &timeline.Subheader, &timeline.Date,
		&timeline.Description, &timeline.DisplayOrder, &timeline.LogoURL,
		&timeline.CreatedAt, &timeline.UpdatedAt)
	return timeline, err
}

func (v *view) ListTimelines(ctx context.Context) ([]Timeline, error) {
	rows, err := v.q.QueryContext(ctx, `SELECT `+timelineColumns+` FROM timelines ORDER BY display_order ASC`)
	if err != nil {
		return nil, fmt.Errorf("list timelines: %w", err)
	}
	defer rows.Close()

	timelines := make([]Timeline, 0)
	for rows.Next() {
		timeline, err := scanTimeline(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timeline: %w", err)
		}
		timelines = append(timelines, timeline)
	}
	return timelines, rows.Err()
}

func (v *view) GetTimeline(ctx context.Context, id string) (Timeline, error) {
	return scanTimeline(v.q.QueryRowContext(ctx, `SELECT `+timelineColumns+` FROM timelines WHERE id=$1`, id))
}

func (v *view) FindTimelineByHeaderDate(ctx context.Context, header, date string) (Timeline, error) {
	return scanTimeline(v.q.QueryRowContext(ctx,
		`SELECT `+timelineColumns+` FROM timelines WHERE header=$1 AND date=$2`, header, date))
}

func (v *view) InsertTimeline(ctx context.Context, timeline Timeline) error {
	_, err := v.q.ExecContext(ctx, `
		INSERT INTO timelines (id, header, subheader, date, description, display_order, logo_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, timeline.ID, timeline.Header, timeline.Subheader, timeline.Date,
		timeline.Description, timeline.DisplayOrder, timeline.LogoURL)
	if err != nil {
		return fmt.Errorf("insert timeline: %w", err)
	}
	return nil
}

func (v *view) UpdateTimeline(ctx context.Context, timeline Timeline) error {
	result, err := v.q.ExecContext(ctx, `
		UPDATE timelines
		SET header=$2, subheader=$3, date=$4, description=$5, display_order=$6, logo_url=$7, updated_at=NOW()
		WHERE id=$1
	`, timeline.ID, timeline.Header, timeline.Subheader, timeline.Date,
		timeline.Description, timeline.DisplayOrder, timeline.LogoURL)
	if err != nil {
		return fmt.Errorf("update timeline: %w", err)
	}
	return requireRow(result)
}

func (v *view) DeleteTimeline(ctx context.Context, id string) error {
	result, err := v.q.ExecContext(ctx, `DELETE FROM timelines WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete timeline: %w", err)
	}
	return requireRow(result)
}

// --- Projects ---

const projectColumns = `id, name, category_id, display_order, difficulty, date, github_url, demo_url, skills, enabled, image_url, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (Project, error) {
	var project Project
	var skillsJSON []byte
	err := row.Scan(&project.ID, &project.Name, &project.CategoryID, &project.DisplayOrder,
		&project.Difficulty, &project.Date, &project.GithubURL, &project.DemoURL,
		&skillsJSON, &project.Enabled, &project.ImageURL, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	if len(skillsJSON) > 0 {
		if err := json.Unmarshal(skillsJSON, &project.Skills); err != nil {
			return Project{}, fmt.Errorf("decode project skills: %w", err)
		}
	}
	return project, nil
}

func encodeSkills(skills []string) ([]byte, error) {
	if skills == nil {
		skills = []string{}
	}
	return json.Marshal(skills)
}

func (v *view) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := v.q.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY category_id ASC, display_order ASC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	return collectProjects(rows)
}

func (v *view) ListProjectsByCategory(ctx context.Context, categoryID string) ([]Project, error) {
	rows, err := v.q.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE category_id=$1 ORDER BY display_order ASC`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list projects by category: %w", err)
	}
	defer rows.Close()
	return collectProjects(rows)
}

func collectProjects(rows *sql.Rows) ([]Project, error) {
	projects := make([]Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (v *view) GetProject(ctx context.Context, id string) (Project, error) {
	return scanProject(v.q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, id))
}

func (v *view) InsertProject(ctx context.Context, project Project) error {
	skillsJSON, err := encodeSkills(project.Skills)
	if err != nil {
		return fmt.Errorf("encode project skills: %w", err)
	}
	_, err = v.q.ExecContext(ctx, `
		INSERT INTO projects (id, name, category_id, display_order, difficulty, date, github_url, demo_url, skills, enabled, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, project.ID, project.Name, project.CategoryID, project.DisplayOrder, project.Difficulty,
		project.Date, project.GithubURL, project.DemoURL, skillsJSON, project.Enabled, project.ImageURL)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (v *view) UpdateProject(ctx context.Context, project Project) error {
	skillsJSON, err := encodeSkills(project.Skills)
	if err != nil {
		return fmt.Errorf("encode project skills: %w", err)
	}
	result, err := v.q.ExecContext(ctx, `
		UPDATE projects
		SET name=$2, category_id=$3, display_order=$4, difficulty=$5, date=$6, github_url=$7, demo_url=$8, skills=$9, enabled=$10, image_url=$11, updated_at=NOW()
		WHERE id=$1
	`, project.ID, project.Name, project.CategoryID, project.DisplayOrder, project.Difficulty,
		project.Date, project.GithubURL, project.DemoURL, skillsJSON, project.Enabled, project.ImageURL)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return requireRow(result)
}

func (v *view) DeleteProject(ctx context.Context, id string) error {
	result, err := v.q.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return requireRow(result)
}

// SetProjectPlacement moves one project to a new category and slot. Used by
// the category-deletion migration, one row at a time in original order.
func (v *view) SetProjectPlacement(ctx context.Context, id, categoryID string, displayOrder int) error {
	result, err := v.q.ExecContext(ctx, `
		UPDATE projects SET category_id=$2, display_order=$3, updated_at=NOW() WHERE id=$1
	`, id, categoryID, displayOrder)
	if err != nil {
		return fmt.Errorf("set project placement: %w", err)
	}
	return requireRow(result)
}

// --- Project categories ---

const categoryColumns = `id, name, description, display_order, enabled, image_url, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (ProjectCategory, error) {
	var category ProjectCategory
	err := row.Scan(&category.ID, &category.Name, &category.Description, &category.DisplayOrder,
		&category.Enabled, &category.ImageURL, &category.CreatedAt, &category.UpdatedAt)
	return category, err
}

func (v *view) ListProjectCategories(ctx context.Context) ([]ProjectCategory, error) {
	rows, err := v.q.QueryContext(ctx, `SELECT `+categoryColumns+` FROM project_categories ORDER BY display_order ASC`)
	if err != nil {
		return nil, fmt.Errorf("list project categories: %w", err)
	}
	defer rows.Close()

	categories := make([]ProjectCategory, 0)
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project category: %w", err)
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (v *view) GetProjectCategory(ctx context.Context, id string) (ProjectCategory, error) {
	return scanCategory(v.q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM project_categories WHERE id=$1`, id))
}

func (v *view) FindProjectCategoryByName(ctx context.Context, name string) (ProjectCategory, error) {
	return scanCategory(v.q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM project_categories WHERE LOWER(name)=LOWER($1)`, name))
}

func (v *view) InsertProjectCategory(ctx context.Context, category ProjectCategory) error {
	_, err := v.q.ExecContext(ctx, `
		INSERT INTO project_categories (id, name, description, display_order, enabled, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, category.ID, category.Name, category.Description, category.DisplayOrder,
		category.Enabled, category.ImageURL)
	if err != nil {
		return fmt.Errorf("insert project category: %w", err)
	}
	return nil
}

func (v *view) UpdateProjectCategory(ctx context.Context, category ProjectCategory) error {
	result, err := v.q.ExecContext(ctx, `
		UPDATE project_categories
		SET name=$2, description=$3, display_order=$4, enabled=$5, image_url=$6, updated_at=NOW()
		WHERE id=$1
	`, category.ID, category.Name, category.Description, category.DisplayOrder,
		category.Enabled, category.ImageURL)
	if err != nil {
		return fmt.Errorf("update project category: %w", err)
	}
	return requireRow(result)
}

func (v *view) DeleteProjectCategory(ctx context.Context, id string) error {
	result, err := v.q.ExecContext(ctx, `DELETE FROM project_categories WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete project category: %w", err)
	}
	return requireRow(result)
}

// --- Profile (single row) ---

func (s *PostgresStore) GetProfile(ctx context.Context) (Profile, error) {
	var profile Profile
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT image_url, image_enabled, COALESCE(data, 'null'::jsonb), updated_at FROM profile WHERE id='profile'`,
	).Scan(&profile.ImageURL, &profile.ImageEnabled, &data, &profile.UpdatedAt)
	if err == sql.ErrNoRows {
		return Profile{}, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	if string(data) != "null" {
		profile.Data = data
	}
	return profile, nil
}

func (s *PostgresStore) SetProfileImage(ctx context.Context, imageURL string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profile (id, image_url, image_enabled) VALUES ('profile', $1, TRUE)
		ON CONFLICT (id) DO UPDATE SET image_url=EXCLUDED.image_url, image_enabled=TRUE, updated_at=NOW()
	`, imageURL)
	if err != nil {
		return fmt.Errorf("set profile image: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClearProfileImage(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profile SET image_url='', image_enabled=FALSE, updated_at=NOW() WHERE id='profile'`)
	if err != nil {
		return fmt.Errorf("clear profile image: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetProfileData(ctx context.Context, data json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profile (id, data) VALUES ('profile', $1)
		ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, updated_at=NOW()
	`, []byte(data))
	if err != nil {
		return fmt.Errorf("set profile data: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClearProfileData(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE profile SET data=NULL, updated_at=NOW() WHERE id='profile'`)
	if err != nil {
		return fmt.Errorf("clear profile data: %w", err)
	}
	return nil
}

// --- Profile stats cache ---

func (s *PostgresStore) GetProfileStats(ctx context.Context) (ProfileStats, error) {
	var stats ProfileStats
	var leetcode, codeforces, github []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(leetcode, 'null'::jsonb), COALESCE(codeforces, 'null'::jsonb), COALESCE(github, 'null'::jsonb), last_updated
		FROM profile_stats WHERE id='stats'
	`).Scan(&leetcode, &codeforces, &github, &stats.LastUpdated)
	if err == sql.ErrNoRows {
		return ProfileStats{}, nil
	}
	if err != nil {
		return ProfileStats{}, fmt.Errorf("get profile stats: %w", err)
	}
	stats.LeetCode = nullableJSON(leetcode)
	stats.Codeforces = nullableJSON(codeforces)
	stats.GitHub = nullableJSON(github)
	return stats, nil
}

func (s *PostgresStore) UpsertProfileStats(ctx context.Context, stats ProfileStats) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profile_stats (id, leetcode, codeforces, github, last_updated)
		VALUES ('stats', $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			leetcode=COALESCE(EXCLUDED.leetcode, profile_stats.leetcode),
			codeforces=COALESCE(EXCLUDED.codeforces, profile_stats.codeforces),
			github=COALESCE(EXCLUDED.github, profile_stats.github),
			last_updated=EXCLUDED.last_updated
	`, emptyToNil(stats.LeetCode), emptyToNil(stats.Codeforces), emptyToNil(stats.GitHub), stats.LastUpdated)
	if err != nil {
		return fmt.Errorf("upsert profile stats: %w", err)
	}
	return nil
}

func nullableJSON(raw []byte) json.RawMessage {
	if string(raw) == "null" {
		return nil
	}
	return raw
}

func emptyToNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// --- Admins ---

func (s *PostgresStore) GetAdminByEmail(ctx context.Context, email string) (Admin, error) {
	var admin Admin
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at, updated_at FROM admins WHERE LOWER(email)=LOWER($1)`, email,
	).Scan(&admin.ID, &admin.Email, &admin.PasswordHash, &admin.CreatedAt, &admin.UpdatedAt)
	return admin, err
}

func (s *PostgresStore) GetAdminByID(ctx context.Context, id string) (Admin, error) {
	var admin Admin
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at, updated_at FROM admins WHERE id=$1`, id,
	).Scan(&admin.ID, &admin.Email, &admin.PasswordHash, &admin.CreatedAt, &admin.UpdatedAt)
	return admin, err
}

func (s *PostgresStore) EnsureAdmin(ctx context.Context, admin Admin) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admins (id, email, password_hash) VALUES ($1, $2, $3)
		ON CONFLICT (email) DO NOTHING
	`, admin.ID, admin.Email, admin.PasswordHash)
	if err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateAdminPassword(ctx context.Context, id, passwordHash string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE admins SET password_hash=$2, updated_at=NOW() WHERE id=$1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update admin password: %w", err)
	}
	return requireRow(result)
}

// --- Password reset OTPs ---

func (s *PostgresStore) InsertPasswordOTP(ctx context.Context, otp PasswordOTP) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_otps (email, code, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (email, code) DO UPDATE SET expires_at=EXCLUDED.expires_at
	`, otp.Email, otp.Code, otp.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert password otp: %w", err)
	}
	return nil
}

func (s *PostgresStore) ConsumePasswordOTP(ctx context.Context, email, code string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM password_otps WHERE LOWER(email)=LOWER($1) AND code=$2 AND expires_at > $3`,
		email, code, time.Now())
	if err != nil {
		return false, fmt.Errorf("consume password otp: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume password otp: %w", err)
	}
	return affected > 0, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
