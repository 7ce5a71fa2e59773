package store

import (
	"context"
	"database/sql"
	"fmt"

	"portfolio/api/internal/ordering"
)

// The ordering adapters bind the ordering core to one table each. Every
// shift is a single UPDATE so sibling rows move in one statement; scope
// resolution maps ordering.Scope.Key to the table's scope column.

type skillOrders struct{ q querier }

func (v *view) SkillOrders() ordering.Store { return skillOrders{q: v.q} }

func (o skillOrders) MaxOrder(ctx context.Context, scope ordering.Scope) (int, bool, error) {
	return maxOrder(ctx, o.q, `SELECT MAX(display_order) FROM skills WHERE category=$1`, scope.Key)
}

func (o skillOrders) ShiftFrom(ctx context.Context, scope ordering.Scope, fromOrder int) error {
	_, err := o.q.ExecContext(ctx,
		`UPDATE skills SET display_order = display_order + 1, updated_at=NOW() WHERE category=$1 AND display_order >= $2`,
		scope.Key, fromOrder)
	if err != nil {
		return fmt.Errorf("shift skills: %w", err)
	}
	return nil
}

func (o skillOrders) ListIDsByOrder(ctx context.Context, scope ordering.Scope) ([]string, error) {
	return listIDs(ctx, o.q, `SELECT id FROM skills WHERE category=$1 ORDER BY display_order ASC`, scope.Key)
}

type timelineOrders struct{ q querier }

func (v *view) TimelineOrders() ordering.Store { return timelineOrders{q: v.q} }

func (o timelineOrders) MaxOrder(ctx context.Context, _ ordering.Scope) (int, bool, error) {
	return maxOrder(ctx, o.q, `SELECT MAX(display_order) FROM timelines`)
}

func (o timelineOrders) ShiftFrom(ctx context.Context, _ ordering.Scope, fromOrder int) error {
	_, err := o.q.ExecContext(ctx,
		`UPDATE timelines SET display_order = display_order + 1, updated_at=NOW() WHERE display_order >= $1`,
		fromOrder)
	if err != nil {
		return fmt.Errorf("shift timelines: %w", err)
	}
	return nil
}

func (o timelineOrders) ListIDsByOrder(ctx context.Context, _ ordering.Scope) ([]string, error) {
	return listIDs(ctx, o.q, `SELECT id FROM timelines ORDER BY display_order ASC`)
}

type projectOrders struct{ q querier }

func (v *view) ProjectOrders() ordering.Store { return projectOrders{q: v.q} }

func (o projectOrders) MaxOrder(ctx context.Context, scope ordering.Scope) (int, bool, error) {
	return maxOrder(ctx, o.q, `SELECT MAX(display_order) FROM projects WHERE category_id=$1`, scope.Key)
}

func (o projectOrders) ShiftFrom(ctx context.Context, scope ordering.Scope, fromOrder int) error {
	_, err := o.q.ExecContext(ctx,
		`UPDATE projects SET display_order = display_order + 1, updated_at=NOW() WHERE category_id=$1 AND display_order >= $2`,
		scope.Key, fromOrder)
	if err != nil {
		return fmt.Errorf("shift projects: %w", err)
	}
	return nil
}

func (o projectOrders) ListIDsByOrder(ctx context.Context, scope ordering.Scope) ([]string, error) {
	return listIDs(ctx, o.q, `SELECT id FROM projects WHERE category_id=$1 ORDER BY display_order ASC`, scope.Key)
}

type categoryOrders struct{ q querier }

func (v *view) CategoryOrders() ordering.Store { return categoryOrders{q: v.q} }

func (o categoryOrders) MaxOrder(ctx context.Context, _ ordering.Scope) (int, bool, error) {
	return maxOrder(ctx, o.q, `SELECT MAX(display_order) FROM project_categories`)
}

func (o categoryOrders) ShiftFrom(ctx context.Context, _ ordering.Scope, fromOrder int) error {
	_, err := o.q.ExecContext(ctx,
		`UPDATE project_categories SET display_order = display_order + 1, updated_at=NOW() WHERE display_order >= $1`,
		fromOrder)
	if err != nil {
		return fmt.Errorf("shift project categories: %w", err)
	}
	return nil
}

func (o categoryOrders) ListIDsByOrder(ctx context.Context, _ ordering.Scope) ([]string, error) {
	return listIDs(ctx, o.q, `SELECT id FROM project_categories ORDER BY display_order ASC`)
}

func maxOrder(ctx context.Context, q querier, query string, args ...any) (int, bool, error) {
	var max sql.NullInt64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&max); err != nil {
		return 0, false, fmt.Errorf("max order: %w", err)
	}
	if !max.Valid {
		return 0, false, nil
	}
	return int(max.Int64), true, nil
}

func listIDs(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
