package app

import (
	"context"
	"log"
	"time"

	"portfolio/api/internal/ordering"
	"portfolio/api/internal/search"
	"portfolio/api/internal/store"
)

func skillScope(category string) ordering.Scope {
	return ordering.Scope{Collection: "skills", Key: category}
}

func timelineScope() ordering.Scope {
	return ordering.Scope{Collection: "timelines"}
}

func projectScope(categoryID string) ordering.Scope {
	return ordering.Scope{Collection: "projects", Key: categoryID}
}

func categoryScope() ordering.Scope {
	return ordering.Scope{Collection: "project_categories"}
}

// removeBlob deletes an uploaded object referenced by url, best effort.
// External URLs and unconfigured storage are skipped silently.
func (s *Service) removeBlob(url string) {
	if s.blobs == nil || url == "" {
		return
	}
	key := s.blobs.KeyFromURL(url)
	if key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.blobs.Remove(ctx, key); err != nil {
		log.Printf("remove blob %s: %v", key, err)
	}
}

func (s *Service) indexSkill(skill store.Skill) {
	if s.search == nil {
		return
	}
	s.search.IndexSkill(search.SkillRecord{
		ID:       skill.ID,
		Name:     skill.Name,
		Category: skill.Category,
	})
}

func (s *Service) indexProject(project store.Project) {
	if s.search == nil {
		return
	}
	s.search.IndexProject(search.ProjectRecord{
		ID:         project.ID,
		Name:       project.Name,
		Date:       project.Date,
		CategoryID: project.CategoryID,
		Skills:     project.Skills,
		Enabled:    project.Enabled,
	})
}
