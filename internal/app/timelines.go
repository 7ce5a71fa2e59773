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

type TimelineInput struct {
	Header      string `json:"header"`
	Subheader   string `json:"subheader"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Order       *int   `json:"order"`
	LogoURL     string `json:"logoUrl"`
}

func (s *Service) ListTimelines(ctx context.Context) ([]store.Timeline, error) {
	return s.store.ListTimelines(ctx)
}

func (s *Service) CreateTimeline(ctx context.Context, input TimelineInput) (store.Timeline, error) {
	header := strings.TrimSpace(input.Header)
	if header == "" {
		return store.Timeline{}, invalidArgument("header is required")
	}
	date := strings.TrimSpace(input.Date)
	if date == "" {
		return store.Timeline{}, invalidArgument("date is required")
	}

	scope := timelineScope()
	unlock := s.locks.LockPair(scope, scope)
	defer unlock()

	if _, err := s.store.FindTimelineByHeaderDate(ctx, header, date); err == nil {
		return store.Timeline{}, conflict("a timeline entry with this header and date already exists", nil)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.Timeline{}, err
	}

	timeline := store.Timeline{
		ID:          util.NewID("tml"),
		Header:      header,
		Subheader:   input.Subheader,
		Date:        date,
		Description: input.Description,
		LogoURL:     input.LogoURL,
	}

	err := s.store.InTx(ctx, func(mut store.Mutator) error {
		req := ordering.Request{Scope: scope}
		if input.Order != nil {
			req.Order = *input.Order
			req.HasOrder = true
		}
		placement, err := ordering.Resolve(ctx, mut.TimelineOrders(), req)
		if err != nil {
			return err
		}
		timeline.DisplayOrder = placement.Order
		return mut.InsertTimeline(ctx, timeline)
	})
	if err != nil {
		if errors.Is(err, ordering.ErrInvalidOrder) {
			return store.Timeline{}, invalidArgument(err.Error())
		}
		return store.Timeline{}, err
	}
	return timeline, nil
}

func (s *Service) UpdateTimeline(ctx context.Context, id string, input TimelineInput) (store.Timeline, error) {
	existing, err := s.store.GetTimeline(ctx, id)
	if err != nil {
		return store.Timeline{}, err
	}

	header := strings.TrimSpace(input.Header)
	if header == "" {
		header = existing.Header
	}
	date := strings.TrimSpace(input.Date)
	if date == "" {
		date = existing.Date
	}

	scope := timelineScope()
	unlock := s.locks.LockPair(scope, scope)
	defer unlock()

	if header != existing.Header || date != existing.Date {
		if found, err := s.store.FindTimelineByHeaderDate(ctx, header, date); err == nil {
			if found.ID != id {
				return store.Timeline{}, conflict("a timeline entry with this header and date already exists", nil)
			}
		} else if !errors.Is(err, sql.ErrNoRows) {
			return store.Timeline{}, err
		}
	}

	updated := existing
	updated.Header = header
	updated.Date = date
	if input.Subheader != "" {
		updated.Subheader = input.Subheader
	}
	if input.Description != "" {
		updated.Description = input.Description
	}
	if input.LogoURL != "" {
		updated.LogoURL = input.LogoURL
	}

	err = s.store.InTx(ctx, func(mut store.Mutator) error {
		req := ordering.Request{
			Scope: scope,
			Order: existing.DisplayOrder,
			// Unchanged order resolves to a no-op rather than a shift.
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
		placement, err := ordering.Resolve(ctx, mut.TimelineOrders(), req)
		if err != nil {
			return err
		}
		updated.DisplayOrder = placement.Order
		return mut.UpdateTimeline(ctx, updated)
	})
	if err != nil {
		if errors.Is(err, ordering.ErrInvalidOrder) {
			return store.Timeline{}, invalidArgument(err.Error())
		}
		return store.Timeline{}, err
	}

	if updated.LogoURL != existing.LogoURL {
		s.removeBlob(existing.LogoURL)
	}
	return updated, nil
}

func (s *Service) DeleteTimeline(ctx context.Context, id string) error {
	timeline, err := s.store.GetTimeline(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTimeline(ctx, id); err != nil {
		return err
	}
	s.removeBlob(timeline.LogoURL)
	return nil
}
