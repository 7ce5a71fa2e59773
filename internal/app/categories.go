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

type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Order       *int   `json:"order"`
	Enabled     *bool  `json:"enabled"`
	ImageURL    string `json:"imageUrl"`
}

func (s *Service) ListProjectCategories(ctx context.Context) ([]store.ProjectCategory, error) {
	return s.store.ListProjectCategories(ctx)
}

// ListCategoriesWithProjects returns every category with its projects in
// display order. With enabledOnly set, disabled categories and disabled
// projects are dropped.
func (s *Service) ListCategoriesWithProjects(ctx context.Context, enabledOnly bool) ([]store.CategoryWithProjects, error) {
	categories, err := s.store.ListProjectCategories(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string][]store.Project, len(categories))
	for _, project := range projects {
		if enabledOnly && !project.Enabled {
			continue
		}
		byCategory[project.CategoryID] = append(byCategory[project.CategoryID], project)
	}

	result := make([]store.CategoryWithProjects, 0, len(categories))
	for _, category := range categories {
		if enabledOnly && !category.Enabled {
			continue
		}
		members := byCategory[category.ID]
		if members == nil {
			members = []store.Project{}
		}
		result = append(result, store.CategoryWithProjects{
			ProjectCategory: category,
			Projects:        members,
		})
	}
	return result, nil
}

func (s *Service) CreateProjectCategory(ctx context.Context, input CategoryInput) (store.ProjectCategory, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return store.ProjectCategory{}, invalidArgument("name is required")
	}

	scope := categoryScope()
	unlock := s.locks.LockPair(scope, scope)
	defer unlock()

	if _, err := s.store.FindProjectCategoryByName(ctx, name); err == nil {
		return store.ProjectCategory{}, conflict("a category with this name already exists", nil)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.ProjectCategory{}, err
	}

	category := store.ProjectCategory{
		ID:          util.NewID("cat"),
		Name:        name,
		Description: input.Description,
		Enabled:     true,
		ImageURL:    input.ImageURL,
	}
	if input.Enabled != nil {
		category.Enabled = *input.Enabled
	}

	err := s.store.InTx(ctx, func(mut store.Mutator) error {
		req := ordering.Request{Scope: scope}
		if input.Order != nil {
			req.Order = *input.Order
			req.HasOrder = true
		}
		placement, err := ordering.Resolve(ctx, mut.CategoryOrders(), req)
		if err != nil {
			return err
		}
		category.DisplayOrder = placement.Order
		return mut.InsertProjectCategory(ctx, category)
	})
	if err != nil {
		if errors.Is(err, ordering.ErrInvalidOrder) {
			return store.ProjectCategory{}, invalidArgument(err.Error())
		}
		return store.ProjectCategory{}, err
	}
	return category, nil
}

func (s *Service) UpdateProjectCategory(ctx context.Context, id string, input CategoryInput) (store.ProjectCategory, error) {
	existing, err := s.store.GetProjectCategory(ctx, id)
	if err != nil {
		return store.ProjectCategory{}, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = existing.Name
	}
	if strings.EqualFold(existing.Name, fallbackCategoryName) && !strings.EqualFold(name, fallbackCategoryName) {
		return store.ProjectCategory{}, invalidArgument("the fallback category cannot be renamed")
	}

	scope := categoryScope()
	unlock := s.locks.LockPair(scope, scope)
	defer unlock()

	if !strings.EqualFold(name, existing.Name) {
		if found, err := s.store.FindProjectCategoryByName(ctx, name); err == nil {
			if found.ID != id {
				return store.ProjectCategory{}, conflict("a category with this name already exists", nil)
			}
		} else if !errors.Is(err, sql.ErrNoRows) {
			return store.ProjectCategory{}, err
		}
	}

	updated := existing
	updated.Name = name
	if input.Description != "" {
		updated.Description = input.Description
	}
	if input.Enabled != nil {
		updated.Enabled = *input.Enabled
	}
	if input.ImageURL != "" {
		updated.ImageURL = input.ImageURL
	}

	err = s.store.InTx(ctx, func(mut store.Mutator) error {
		req := ordering.Request{
			Scope:    scope,
			Order:    existing.DisplayOrder,
			HasOrder: true,
			Current: ordering.Current{
				Exists: true,
				Scope:  scope,
				Order:  existing.DisplayOrder,
			},
		}
		if input.Order != nil {
			req.Order = *input.Order
		}
		placement, err := ordering.Resolve(ctx, mut.CategoryOrders(), req)
		if err != nil {
			return err
		}
		updated.DisplayOrder = placement.Order
		return mut.UpdateProjectCategory(ctx, updated)
	})
	if err != nil {
		if errors.Is(err, ordering.ErrInvalidOrder) {
			return store.ProjectCategory{}, invalidArgument(err.Error())
		}
		return store.ProjectCategory{}, err
	}

	if updated.ImageURL != existing.ImageURL {
		s.removeBlob(existing.ImageURL)
	}
	return updated, nil
}

// DeleteProjectCategory deletes a category after migrating its projects
// into the fallback category. The migrated projects keep their relative
// order and are appended after the fallback's current maximum. Everything
// runs in one transaction under both scope locks, so a failure partway
// leaves the category (and its projects) untouched.
func (s *Service) DeleteProjectCategory(ctx context.Context, id string) (int, error) {
	category, err := s.store.GetProjectCategory(ctx, id)
	if err != nil {
		return 0, err
	}
	if strings.EqualFold(category.Name, fallbackCategoryName) {
		return 0, invalidArgument("the fallback category cannot be deleted")
	}

	fallback, err := s.store.FindProjectCategoryByName(ctx, fallbackCategoryName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, configError("fallback category is missing")
		}
		return 0, err
	}

	from := projectScope(category.ID)
	to := projectScope(fallback.ID)
	unlock := s.locks.LockPair(from, to)
	defer unlock()

	migrated := 0
	err = s.store.InTx(ctx, func(mut store.Mutator) error {
		moves, err := ordering.MigrationPlan(ctx, mut.ProjectOrders(), from, to)
		if err != nil {
			return err
		}
		for _, move := range moves {
			if err := mut.SetProjectPlacement(ctx, move.ID, fallback.ID, move.Order); err != nil {
				return err
			}
		}
		migrated = len(moves)
		return mut.DeleteProjectCategory(ctx, id)
	})
	if err != nil {
		return 0, err
	}

	s.removeBlob(category.ImageURL)
	if s.search != nil {
		// Re-parented projects carry a new category id in the index.
		if projects, err := s.store.ListProjectsByCategory(ctx, fallback.ID); err == nil {
			for _, project := range projects {
				s.indexProject(project)
			}
		}
	}
	return migrated, nil
}
