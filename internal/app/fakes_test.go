package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"portfolio/api/internal/config"
	"portfolio/api/internal/ordering"
	"portfolio/api/internal/session"
	"portfolio/api/internal/store"
)

// memStore is an in-memory dataStore. InTx simply runs the callback against
// the store itself; tests do not model rollback.
type memStore struct {
	mu         sync.Mutex
	skills     map[string]store.Skill
	timelines  map[string]store.Timeline
	projects   map[string]store.Project
	categories map[string]store.ProjectCategory
	profile    store.Profile
	stats      store.ProfileStats
	admins     map[string]store.Admin
	shiftCalls int
}

func newMemStore() *memStore {
	return &memStore{
		skills:     make(map[string]store.Skill),
		timelines:  make(map[string]store.Timeline),
		projects:   make(map[string]store.Project),
		categories: make(map[string]store.ProjectCategory),
		admins:     make(map[string]store.Admin),
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(store.Mutator) error) error {
	return fn(m)
}

func (m *memStore) Ping(ctx context.Context) error { return nil }

// --- ordering adapters ---

type orderRow struct {
	id    string
	order int
}

type memOrders struct {
	rows  func(scope ordering.Scope) []orderRow
	shift func(scope ordering.Scope, fromOrder int)
}

func (o memOrders) MaxOrder(ctx context.Context, scope ordering.Scope) (int, bool, error) {
	max, ok := 0, false
	for _, row := range o.rows(scope) {
		if !ok || row.order > max {
			max, ok = row.order, true
		}
	}
	return max, ok, nil
}

func (o memOrders) ShiftFrom(ctx context.Context, scope ordering.Scope, fromOrder int) error {
	o.shift(scope, fromOrder)
	return nil
}

func (o memOrders) ListIDsByOrder(ctx context.Context, scope ordering.Scope) ([]string, error) {
	rows := o.rows(scope)
	sort.Slice(rows, func(i, j int) bool { return rows[i].order < rows[j].order })
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.id
	}
	return ids, nil
}

func (m *memStore) SkillOrders() ordering.Store {
	return memOrders{
		rows: func(scope ordering.Scope) []orderRow {
			var rows []orderRow
			for _, skill := range m.skills {
				if skill.Category == scope.Key {
					rows = append(rows, orderRow{skill.ID, skill.DisplayOrder})
				}
			}
			return rows
		},
		shift: func(scope ordering.Scope, fromOrder int) {
			m.shiftCalls++
			for id, skill := range m.skills {
				if skill.Category == scope.Key && skill.DisplayOrder >= fromOrder {
					skill.DisplayOrder++
					m.skills[id] = skill
				}
			}
		},
	}
}

func (m *memStore) TimelineOrders() ordering.Store {
	return memOrders{
		rows: func(ordering.Scope) []orderRow {
			var rows []orderRow
			for _, timeline := range m.timelines {
				rows = append(rows, orderRow{timeline.ID, timeline.DisplayOrder})
			}
			return rows
		},
		shift: func(_ ordering.Scope, fromOrder int) {
			m.shiftCalls++
			for id, timeline := range m.timelines {
				if timeline.DisplayOrder >= fromOrder {
					timeline.DisplayOrder++
					m.timelines[id] = timeline
				}
			}
		},
	}
}

func (m *memStore) ProjectOrders() ordering.Store {
	return memOrders{
		rows: func(scope ordering.Scope) []orderRow {
			var rows []orderRow
			for _, project := range m.projects {
				if project.CategoryID == scope.Key {
					rows = append(rows, orderRow{project.ID, project.DisplayOrder})
				}
			}
			return rows
		},
		shift: func(scope ordering.Scope, fromOrder int) {
			m.shiftCalls++
			for id, project := range m.projects {
				if project.CategoryID == scope.Key && project.DisplayOrder >= fromOrder {
					project.DisplayOrder++
					m.projects[id] = project
				}
			}
		},
	}
}

func (m *memStore) CategoryOrders() ordering.Store {
	return memOrders{
		rows: func(ordering.Scope) []orderRow {
			var rows []orderRow
			for _, category := range m.categories {
				rows = append(rows, orderRow{category.ID, category.DisplayOrder})
			}
			return rows
		},
		shift: func(_ ordering.Scope, fromOrder int) {
			m.shiftCalls++
			for id, category := range m.categories {
				if category.DisplayOrder >= fromOrder {
					category.DisplayOrder++
					m.categories[id] = category
				}
			}
		},
	}
}

// --- skills ---

func (m *memStore) ListSkills(ctx context.Context) ([]store.Skill, error) {
	skills := make([]store.Skill, 0, len(m.skills))
	for _, skill := range m.skills {
		skills = append(skills, skill)
	}
	sort.Slice(skills, func(i, j int) bool {
		if skills[i].Category != skills[j].Category {
			return skills[i].Category < skills[j].Category
		}
		return skills[i].DisplayOrder < skills[j].DisplayOrder
	})
	return skills, nil
}

func (m *memStore) GetSkill(ctx context.Context, id string) (store.Skill, error) {
	skill, ok := m.skills[id]
	if !ok {
		return store.Skill{}, sql.ErrNoRows
	}
	return skill, nil
}

func (m *memStore) FindSkillByNameCategory(ctx context.Context, name, category string) (store.Skill, error) {
	for _, skill := range m.skills {
		if skill.Name == name && skill.Category == category {
			return skill, nil
		}
	}
	return store.Skill{}, sql.ErrNoRows
}

func (m *memStore) InsertSkill(ctx context.Context, skill store.Skill) error {
	m.skills[skill.ID] = skill
	return nil
}

func (m *memStore) UpdateSkill(ctx context.Context, skill store.Skill) error {
	if _, ok := m.skills[skill.ID]; !ok {
		return sql.ErrNoRows
	}
	m.skills[skill.ID] = skill
	return nil
}

func (m *memStore) DeleteSkill(ctx context.Context, id string) error {
	if _, ok := m.skills[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.skills, id)
	return nil
}

// --- timelines ---

func (m *memStore) ListTimelines(ctx context.Context) ([]store.Timeline, error) {
	timelines := make([]store.Timeline, 0, len(m.timelines))
	for _, timeline := range m.timelines {
		timelines = append(timelines, timeline)
	}
	sort.Slice(timelines, func(i, j int) bool { return timelines[i].DisplayOrder < timelines[j].DisplayOrder })
	return timelines, nil
}

func (m *memStore) GetTimeline(ctx context.Context, id string) (store.Timeline, error) {
	timeline, ok := m.timelines[id]
	if !ok {
		return store.Timeline{}, sql.ErrNoRows
	}
	return timeline, nil
}

func (m *memStore) FindTimelineByHeaderDate(ctx context.Context, header, date string) (store.Timeline, error) {
	for _, timeline := range m.timelines {
		if timeline.Header == header && timeline.Date == date {
			return timeline, nil
		}
	}
	return store.Timeline{}, sql.ErrNoRows
}

func (m *memStore) InsertTimeline(ctx context.Context, timeline store.Timeline) error {
	m.timelines[timeline.ID] = timeline
	return nil
}

func (m *memStore) UpdateTimeline(ctx context.Context, timeline store.Timeline) error {
	if _, ok := m.timelines[timeline.ID]; !ok {
		return sql.ErrNoRows
	}
	m.timelines[timeline.ID] = timeline
	return nil
}

func (m *memStore) DeleteTimeline(ctx context.Context, id string) error {
	if _, ok := m.timelines[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.timelines, id)
	return nil
}

// --- projects ---

func (m *memStore) ListProjects(ctx context.Context) ([]store.Project, error) {
	projects := make([]store.Project, 0, len(m.projects))
	for _, project := range m.projects {
		projects = append(projects, project)
	}
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].CategoryID != projects[j].CategoryID {
			return projects[i].CategoryID < projects[j].CategoryID
		}
		return projects[i].DisplayOrder < projects[j].DisplayOrder
	})
	return projects, nil
}

func (m *memStore) ListProjectsByCategory(ctx context.Context, categoryID string) ([]store.Project, error) {
	var projects []store.Project
	for _, project := range m.projects {
		if project.CategoryID == categoryID {
			projects = append(projects, project)
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].DisplayOrder < projects[j].DisplayOrder })
	return projects, nil
}

func (m *memStore) GetProject(ctx context.Context, id string) (store.Project, error) {
	project, ok := m.projects[id]
	if !ok {
		return store.Project{}, sql.ErrNoRows
	}
	return project, nil
}

func (m *memStore) InsertProject(ctx context.Context, project store.Project) error {
	m.projects[project.ID] = project
	return nil
}

func (m *memStore) UpdateProject(ctx context.Context, project store.Project) error {
	if _, ok := m.projects[project.ID]; !ok {
		return sql.ErrNoRows
	}
	m.projects[project.ID] = project
	return nil
}

func (m *memStore) DeleteProject(ctx context.Context, id string) error {
	if _, ok := m.projects[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.projects, id)
	return nil
}

func (m *memStore) SetProjectPlacement(ctx context.Context, id, categoryID string, displayOrder int) error {
	project, ok := m.projects[id]
	if !ok {
		return sql.ErrNoRows
	}
	project.CategoryID = categoryID
	project.DisplayOrder = displayOrder
	m.projects[id] = project
	return nil
}

// --- categories ---

func (m *memStore) ListProjectCategories(ctx context.Context) ([]store.ProjectCategory, error) {
	categories := make([]store.ProjectCategory, 0, len(m.categories))
	for _, category := range m.categories {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].DisplayOrder < categories[j].DisplayOrder })
	return categories, nil
}

func (m *memStore) GetProjectCategory(ctx context.Context, id string) (store.ProjectCategory, error) {
	category, ok := m.categories[id]
	if !ok {
		return store.ProjectCategory{}, sql.ErrNoRows
	}
	return category, nil
}

func (m *memStore) FindProjectCategoryByName(ctx context.Context, name string) (store.ProjectCategory, error) {
	for _, category := range m.categories {
		if strings.EqualFold(category.Name, name) {
			return category, nil
		}
	}
	return store.ProjectCategory{}, sql.ErrNoRows
}

func (m *memStore) InsertProjectCategory(ctx context.Context, category store.ProjectCategory) error {
	m.categories[category.ID] = category
	return nil
}

func (m *memStore) UpdateProjectCategory(ctx context.Context, category store.ProjectCategory) error {
	if _, ok := m.categories[category.ID]; !ok {
		return sql.ErrNoRows
	}
	m.categories[category.ID] = category
	return nil
}

func (m *memStore) DeleteProjectCategory(ctx context.Context, id string) error {
	if _, ok := m.categories[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.categories, id)
	return nil
}

// --- profile, stats, admins ---

func (m *memStore) GetProfile(ctx context.Context) (store.Profile, error) {
	return m.profile, nil
}

func (m *memStore) SetProfileImage(ctx context.Context, imageURL string) error {
	m.profile.ImageURL = imageURL
	m.profile.ImageEnabled = true
	return nil
}

func (m *memStore) ClearProfileImage(ctx context.Context) error {
	m.profile.ImageURL = ""
	m.profile.ImageEnabled = false
	return nil
}

func (m *memStore) SetProfileData(ctx context.Context, data json.RawMessage) error {
	m.profile.Data = data
	return nil
}

func (m *memStore) ClearProfileData(ctx context.Context) error {
	m.profile.Data = nil
	return nil
}

func (m *memStore) GetProfileStats(ctx context.Context) (store.ProfileStats, error) {
	return m.stats, nil
}

func (m *memStore) EnsureAdmin(ctx context.Context, admin store.Admin) error {
	for _, existing := range m.admins {
		if existing.Email == admin.Email {
			return nil
		}
	}
	m.admins[admin.ID] = admin
	return nil
}

func (m *memStore) GetAdminByID(ctx context.Context, id string) (store.Admin, error) {
	admin, ok := m.admins[id]
	if !ok {
		return store.Admin{}, sql.ErrNoRows
	}
	return admin, nil
}

// fakeSessions keeps refresh tokens in a map keyed by hash.
type fakeSessions struct {
	mu     sync.Mutex
	tokens map[string]session.RefreshData
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{tokens: make(map[string]session.RefreshData)}
}

func (f *fakeSessions) SaveRefreshToken(ctx context.Context, tokenHash, adminID, email string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[tokenHash] = session.RefreshData{AdminID: adminID, Email: email, CreatedAt: time.Now()}
	return nil
}

func (f *fakeSessions) LookupRefreshToken(ctx context.Context, tokenHash string) (session.RefreshData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.tokens[tokenHash]
	if !ok {
		return session.RefreshData{}, session.ErrNotFound
	}
	return data, nil
}

func (f *fakeSessions) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, tokenHash)
	return nil
}

func (f *fakeSessions) Ping(ctx context.Context) error { return nil }

type fakePasswords struct {
	signInFn         func(ctx context.Context, email, password string) (store.Admin, error)
	changePasswordFn func(ctx context.Context, adminID, current, next string) error
	requestResetFn   func(ctx context.Context, email string) error
	verifyResetFn    func(ctx context.Context, email, code, newPassword string) error
}

func (f *fakePasswords) SignIn(ctx context.Context, email, password string) (store.Admin, error) {
	if f.signInFn != nil {
		return f.signInFn(ctx, email, password)
	}
	return store.Admin{}, sql.ErrNoRows
}

func (f *fakePasswords) ChangePassword(ctx context.Context, adminID, current, next string) error {
	if f.changePasswordFn != nil {
		return f.changePasswordFn(ctx, adminID, current, next)
	}
	return nil
}

func (f *fakePasswords) RequestPasswordReset(ctx context.Context, email string) error {
	if f.requestResetFn != nil {
		return f.requestResetFn(ctx, email)
	}
	return nil
}

func (f *fakePasswords) VerifyReset(ctx context.Context, email, code, newPassword string) error {
	if f.verifyResetFn != nil {
		return f.verifyResetFn(ctx, email, code, newPassword)
	}
	return nil
}

func newTestService(st *memStore) *Service {
	return &Service{
		cfg: config.Config{
			JWTSecret:     "test-secret",
			AccessTTL:     time.Hour,
			RefreshTTL:    24 * time.Hour,
			AdminEmail:    "admin@example.com",
			AdminPassword: "changeme-admin",
		},
		store:     st,
		sessions:  newFakeSessions(),
		locks:     ordering.NewScopeLocks(),
		passwords: &fakePasswords{},
	}
}

func seedCategory(st *memStore, id, name string, order int) {
	st.categories[id] = store.ProjectCategory{
		ID:           id,
		Name:         name,
		DisplayOrder: order,
		Enabled:      true,
	}
}
