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

type SkillInput struct {
	Name                string `json:"name"`
	Category            string `json:"category"`
	Order               *int   `json:"order"`
	HoverColorPrimary   string `json:"hoverColorPrimary"`
	HoverColorSecondary string `json:"hoverColorSecondary"`
	LogoURL             string `json:"logoUrl"`
}

func (s *Service) ListSkills(ctx context.Context) ([]store.Skill, error) {
	return s.store.ListSkills(ctx)
}

func (s *Service) SkillCategories() []string {
	return store.SkillCategories
}

func validSkillCategory(category string) bool {
	for _, known := range store.SkillCategories {
		if known == category {
			return true
		}
	}
	return false
}

func (s *Service) CreateSkill(ctx context.Context, input SkillInput) (store.Skill, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return store.Skill{}, invalidArgument("name is required")
	}
	category := strings.TrimSpace(input.Category)
	if !validSkillCategory(category) {
		return store.Skill{}, invalidArgument("unknown skill category")
	}

	scope := skillScope(category)
	unlock := s.locks.LockPair(scope, scope)
	defer unlock()

	if _, err := s.store.FindSkillByNameCategory(ctx, name, category); err == nil {
		return store.Skill{}, conflict("a skill with this name already exists in the category", nil)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.Skill{}, err
	}

	skill := store.Skill{
		ID:                  util.NewID("skl"),
		Name:                name,
		Category:            category,
		HoverColorPrimary:   input.HoverColorPrimary,
		HoverColorSecondary: input.HoverColorSecondary,
		LogoURL:             input.LogoURL,
	}

	err := s.store.InTx(ctx, func(mut store.Mutator) error {
		req := ordering.Request{Scope: scope}
		if input.Order != nil {
			req.Order = *input.Order
			req.HasOrder = true
		}
		placement, err := ordering.Resolve(ctx, mut.SkillOrders(), req)
		if err != nil {
			return err
		}
		skill.DisplayOrder = placement.Order
		return mut.InsertSkill(ctx, skill)
	})
	if err != nil {
		if errors.Is(err, ordering.ErrInvalidOrder) {
			return store.Skill{}, invalidArgument(err.Error())
		}
		return store.Skill{}, err
	}

	s.indexSkill(skill)
	return skill, nil
}

func (s *Service) UpdateSkill(ctx context.Context, id string, input SkillInput) (store.Skill, error) {
	existing, err := s.store.GetSkill(ctx, id)
	if err != nil {
		return store.Skill{}, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = existing.Name
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		category = existing.Category
	}
	if !validSkillCategory(category) {
		return store.Skill{}, invalidArgument("unknown skill category")
	}

	oldScope := skillScope(existing.Category)
	newScope := skillScope(category)
	unlock := s.locks.LockPair(oldScope, newScope)
	defer unlock()

	if name != existing.Name || category != existing.Category {
		if found, err := s.store.FindSkillByNameCategory(ctx, name, category); err == nil {
			if found.ID != id {
				return store.Skill{}, conflict("a skill with this name already exists in the category", nil)
			}
		} else if !errors.Is(err, sql.ErrNoRows) {
			return store.Skill{}, err
		}
	}

	updated := existing
	updated.Name = name
	updated.Category = category
	if input.HoverColorPrimary != "" {
		updated.HoverColorPrimary = input.HoverColorPrimary
	}
	if input.HoverColorSecondary != "" {
		updated.HoverColorSecondary = input.HoverColorSecondary
	}
	if input.LogoURL != "" {
		updated.LogoURL = input.LogoURL
	}

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
		placement, err := ordering.Resolve(ctx, mut.SkillOrders(), req)
		if err != nil {
			return err
		}
		updated.DisplayOrder = placement.Order
		return mut.UpdateSkill(ctx, updated)
	})
	if err != nil {
		if errors.Is(err, ordering.ErrInvalidOrder) {
			return store.Skill{}, invalidArgument(err.Error())
		}
		return store.Skill{}, err
	}

	if updated.LogoURL != existing.LogoURL {
		s.removeBlob(existing.LogoURL)
	}
	s.indexSkill(updated)
	return updated, nil
}

// DeleteSkill removes the skill and leaves a gap in its category's
// sequence; siblings are never renumbered.
func (s *Service) DeleteSkill(ctx context.Context, id string) error {
	skill, err := s.store.GetSkill(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSkill(ctx, id); err != nil {
		return err
	}
	s.removeBlob(skill.LogoURL)
	if s.search != nil {
		s.search.DeleteSkill(id)
	}
	return nil
}
