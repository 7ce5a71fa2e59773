package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"portfolio/api/internal/store"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetProfile(ctx context.Context) (store.Profile, error)
	ListSkills(ctx context.Context) ([]store.Skill, error)
	ListTimelines(ctx context.Context) ([]store.Timeline, error)
}

// Service provides resume export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// profileData is the subset of the stored profile document the resume needs.
type profileData struct {
	Name     string `json:"name"`
	Headline string `json:"headline"`
	Email    string `json:"email"`
	About    string `json:"about"`
}

// ExportResume renders the profile, skills, and timeline into a PDF.
func (s *Service) ExportResume(ctx context.Context) (*Result, error) {
	profile, err := s.store.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	var pd profileData
	if len(profile.Data) > 0 {
		if err := json.Unmarshal(profile.Data, &pd); err != nil {
			return nil, fmt.Errorf("decode profile data: %w", err)
		}
	}
	if pd.Name == "" {
		pd.Name = "Resume"
	}

	skills, err := s.store.ListSkills(ctx)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}

	timelines, err := s.store.ListTimelines(ctx)
	if err != nil {
		return nil, fmt.Errorf("list timelines: %w", err)
	}

	data := ResumeData{
		Name:        pd.Name,
		Headline:    pd.Headline,
		Email:       pd.Email,
		About:       pd.About,
		GeneratedAt: time.Now(),
		SkillGroups: groupSkills(skills),
	}
	for _, t := range timelines {
		data.Timeline = append(data.Timeline, TimelineEntry{
			Header:      t.Header,
			Subheader:   t.Subheader,
			Date:        t.Date,
			Description: t.Description,
		})
	}

	html, err := RenderResumeHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	return printToPDF(html, pd.Name)
}

// groupSkills buckets skills by category, keeping the incoming order
// within each group and the fixed category order across groups.
func groupSkills(skills []store.Skill) []SkillGroup {
	byCategory := make(map[string][]string)
	for _, sk := range skills {
		byCategory[sk.Category] = append(byCategory[sk.Category], sk.Name)
	}

	var groups []SkillGroup
	for _, category := range store.SkillCategories {
		if names, ok := byCategory[category]; ok {
			groups = append(groups, SkillGroup{Category: category, Skills: names})
			delete(byCategory, category)
		}
	}
	// Anything outside the fixed list still gets a group.
	for _, sk := range skills {
		if names, ok := byCategory[sk.Category]; ok {
			groups = append(groups, SkillGroup{Category: sk.Category, Skills: names})
			delete(byCategory, sk.Category)
		}
	}
	return groups
}
