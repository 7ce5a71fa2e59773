package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"portfolio/api/internal/ordering"
	"portfolio/api/internal/store"
	"portfolio/api/internal/util"
)

type ProjectInput struct {
	Name       string   `json:"name"`
	CategoryID string   `json:"categoryId"`
	Order      *int     `json:"order"`
	Difficulty int      `json:"difficulty"`
	Date       string   `json:"date"`
	GithubURL  string   `json:"githubUrl"`
	DemoURL    string   `json:"demoUrl"`
	Skills     []string `json:"skills"`
	Enabled    *bool    `json:"enabled"`
	ImageURL   string   `json:"imageUrl"`
}

func (s *Service) ListProjects(ctx context.Context) ([]store.Project, error) {
	return s.store.ListProjects(ctx)
}

func (s *Service) CreateProject(ctx context.Context, input ProjectInput) (store.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return store.Project{}, invalidArgument("name is required")
	}
	categoryID := strings.TrimSpace(input.CategoryID)
	if categoryID == "" {
		return store.Project{}, invalidArgument("categoryId is required")
	}
	if _, err := s.store.GetProjectCategory(ctx, categoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Project{}, invalidArgument("unknown project category")
		}
		return store.Project{}, err
	}

	project := store.Project{
		ID:         util.NewID("prj"),
		Name:       name,
		CategoryID: categoryID,
		Difficulty: input.Difficulty,
		Date:       input.Date,
		GithubURL:  input.GithubURL,
		DemoURL:    input.DemoURL,
		Skills:     input.Skills,
		Enabled:    true,
		ImageURL:   input.ImageURL,
	}
	if input.Enabled != nil {
		project.Enabled = *input.Enabled
	}

	scope := projectScope(categoryID)
	unlock := s.locks.LockPair(scope, scope)
	defer unlock()

	err := s.store.InTx(ctx, func(mut store.Mutator) error {
		req := ordering.Request{Scope: scope}
		if input.Order != nil {
			req.Order = *input.Order
			req.HasOrder = true
		}
		placement, err := ordering.Resolve(ctx, mut.ProjectOrders(), req)
		if err != nil {
			return err
		}
		project.DisplayOrder = placement.Order
		return mut.InsertProject(ctx, project)
	})
	if err != nil {
		if errors.Is(err, ordering.ErrInvalidOrder) {
			return store.Project{}, invalidArgument(err.Error())
		}
		return store.Project{}, err
	}

	s.indexProject(project)
	return project, nil
}

func (s *Service) UpdateProject(ctx context.Context, id string, input ProjectInput) (store.Project, error) {
	existing, err := s.store.GetProject(ctx, id)
	if err != nil {
		return store.Project{}, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = existing.Name
	}
	categoryID := strings.TrimSpace(input.CategoryID)
	if categoryID == "" {
		categoryID = existing.CategoryID
	}
	if categoryID != existing.CategoryID {
		if _, err := s.store.GetProjectCategory(ctx, categoryID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.Project{}, invalidArgument("unknown project category")
			}
			return store.Project{}, err
		}
	}

	updated := existing
	updated.Name = name
	updated.CategoryID = categoryID
	if input.Difficulty != 0 {
		updated.Difficulty = input.Difficulty
	}
	if input.Date != "" {
		updated.Date = input.Date
	}
	if input.GithubURL != "" {
		updated.GithubURL = input.GithubURL
	}
	if input.DemoURL != "" {
		updated.DemoURL = input.DemoURL
	}
	if input.Skills != nil {
		updated.Skills = input.Skills
	}
	if input.Enabled != nil {
		updated.Enabled = *input.Enabled
	}
	if input.ImageURL != "" {
		updated.ImageURL = input.ImageURL
	}

	oldScope := projectScope(existing.CategoryID)
	newScope := projectScope(categoryID)
	unlock := s.locks.LockPair(oldScope, newScope)
	defer unlock()

	err = s.store.InTx(ctx, func(mut store.Mutator) error {
		req := ordering.Request{
			Scope: newScope,
			Current: ordering.Current{
				Exists: true,
				Scope:  oldScope,
				Order:  existing.DisplayOrder,
			},
		}
		if input.Order != nil {
			req.Order = *input.Order
			req.HasOrder = true
		} else if newScope == oldScope {
			req.Order = existing.DisplayOrder
			req.HasOrder = true
		}
		placement, err := ordering.Resolve(ctx, mut.ProjectOrders(), req)
		if err != nil {
			return err
		}
		updated.DisplayOrder = placement.Order
		return mut.UpdateProject(ctx, updated)
	})
	if err != nil {
		if errors.Is(err, ordering.ErrInvalidOrder) {
			return store.Project{}, invalidArgument(err.Error())
		}
		return store.Project{}, err
	}

	if updated.ImageURL != existing.ImageURL {
		s.removeBlob(existing.ImageURL)
	}
	s.indexProject(updated)
	return updated, nil
}

func (s *Service) DeleteProject(ctx context.Context, id string) error {
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.removeBlob(project.ImageURL)
	if s.search != nil {
		s.search.DeleteProject(id)
	}
	return nil
}
