// Package ordering maintains dense per-scope display sequences for the
// orderable collections (skills, timelines, projects). It owns the shared
// shift-then-place algorithm; per-table adapters live in the store package.
package ordering

import (
	"context"
	"errors"
	"fmt"
)

// Scope identifies the grouping within which a display order must be unique:
// a skill category, a project category id, or a whole collection when Key is
// empty (timelines are globally ordered).
type Scope struct {
	Collection string
	Key        string
}

func (s Scope) String() string {
	if s.Key == "" {
		return s.Collection
	}
	return s.Collection + "/" + s.Key
}

// Store is the persistence surface the ordering core depends on. Adapters
// are expected to bind MaxOrder and ShiftFrom to single statements so the
// race window stays bounded to the gap between shift and place.
type Store interface {
	// MaxOrder reports the highest display order in scope. ok is false when
	// the scope holds no entities.
	MaxOrder(ctx context.Context, scope Scope) (max int, ok bool, err error)
	// ShiftFrom increments the display order of every entity in scope whose
	// order is >= fromOrder, opening a slot at fromOrder.
	ShiftFrom(ctx context.Context, scope Scope, fromOrder int) error
	// ListIDsByOrder returns the ids of all entities in scope, ascending by
	// display order.
	ListIDsByOrder(ctx context.Context, scope Scope) ([]string, error)
}

var ErrInvalidOrder = errors.New("display order must be >= 1")

/// AppendOrder computes the order for an entity appended at the end of scope:
// max+1, or 1 for an empty scope.
func AppendOrder(ctx context.Context, st Store, scope Scope) (int, error) {
	max, ok, err := st.MaxOrder(ctx, scope)
	if err != nil {
		return 0, fmt.Errorf("max order in %s: %w", scope, err)
	}
	if !ok {
		return 1, nil
	}
	return max + 1, nil
}

// Current describes the slot an entity already occupies. The zero value
// means the entity is new.
type Current struct {
	Exists bool
	Scope  Scope
	Order  int
}

// Request asks for a placement in Scope. When HasOrder is false the entity
// is appended after the scope's maximum; otherwise siblings at or above
// Order are shifted up to open the slot.
type Request struct {
	Scope    Scope
	Order    int
	HasOrder bool
	Current  Current
}

// Placement is the resolved slot. Shifted reports whether sibling rows were
// moved; a request that re-targets an entity's own current slot is a no-op
// and performs zero writes.
type Placement struct {
	Order   int
	Shifted bool
}

// Resolve computes where the entity lands and issues the sibling shift when
// one is needed. The caller persists the entity at the returned order; gaps
// left behind at the entity's previous slot are never compacted.
func Resolve(ctx context.Context, st Store, req Request) (Placement, error) {
	if !req.HasOrder {
		order, err := AppendOrder(ctx, st, req.Scope)
		if err != nil {
			return Placement{}, err
		}
		return Placement{Order: order}, nil
	}
	if req.Order < 1 {
		return Placement{}, ErrInvalidOrder
	}
	if req.Current.Exists && req.Current.Scope == req.Scope && req.Current.Order == req.Order {
		return Placement{Order: req.Order}, nil
	}
	if err := st.ShiftFrom(ctx, req.Scope, req.Order); err != nil {
		return Placement{}, fmt.Errorf("shift %s from %d: %w", req.Scope, req.Order, err)
	}
	return Placement{Order: req.Order, Shifted: true}, nil
}

// Move assigns an entity a new slot in the migration target scope.
type Move struct {
	ID    string
	Order int
}

// MigrationPlan renumbers every entity in from so it can be appended after
// the current maximum of to, preserving relative order. Re-planning a scope
// that was already drained yields an empty plan.
func MigrationPlan(ctx context.Context, st Store, from, to Scope) ([]Move, error) {
	ids, err := st.ListIDsByOrder(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", from, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	start, err := AppendOrder(ctx, st, to)
	if err != nil {
		return nil, err
	}
	moves := make([]Move, len(ids))
	for i, id := range ids {
		moves[i] = Move{ID: id, Order: start + i}
	}
	return moves, nil
}
