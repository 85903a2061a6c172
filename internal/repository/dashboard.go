package repository

import (
	"context"
	"fmt"

	"plantops.io/mis/internal/domain"
)

// AssetCounts returns total and active assets.
func (q *Queries) AssetCounts(ctx context.Context) (domain.AssetStats, error) {
	var s domain.AssetStats
	err := q.db.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE asset_status = 'active')
		FROM asset_master`).Scan(&s.Total, &s.Active)
	if err != nil {
		return s, fmt.Errorf("count assets: %w", err)
	}
	return s, nil
}

// PMCounts derives overdue and due-this-week from dates rather than the
// stored status, so results are correct between sweeps.
func (q *Queries) PMCounts(ctx context.Context, today domain.Date) (domain.PMStats, error) {
	var s domain.PMStats
	err := q.db.QueryRow(ctx, `
		SELECT count(*),
			count(*) FILTER (WHERE status <> 'completed' AND next_pm_date < $1::date),
			count(*) FILTER (WHERE status <> 'completed' AND next_pm_date BETWEEN $1::date AND $1::date + 7)
		FROM pm_schedule`, today).Scan(&s.Total, &s.Overdue, &s.DueWeek)
	if err != nil {
		return s, fmt.Errorf("count pm schedules: %w", err)
	}
	return s, nil
}

// BreakdownCounts counts open and in-progress breakdowns and those closed today.
func (q *Queries) BreakdownCounts(ctx context.Context, today domain.Date) (domain.BreakdownStats, error) {
	var s domain.BreakdownStats
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FILTER (WHERE bd_status IN ('open', 'acknowledged')),
			count(*) FILTER (WHERE bd_status = 'in_progress'),
			count(*) FILTER (WHERE bd_status IN ('resolved', 'closed') AND updated_at::date = $1::date)
		FROM bd_entry_operator`, today).Scan(&s.Open, &s.InProgress, &s.ClosedToday)
	if err != nil {
		return s, fmt.Errorf("count breakdowns: %w", err)
	}
	return s, nil
}

// SpareCounts summarises inventory size, low stock and stock value.
func (q *Queries) SpareCounts(ctx context.Context) (domain.SpareStats, error) {
	var s domain.SpareStats
	err := q.db.QueryRow(ctx, `
		SELECT count(*),
			count(*) FILTER (WHERE current_stock <= reorder_level),
			COALESCE(sum(current_stock * unit_cost), 0)
		FROM spare_parts_inventory`).Scan(&s.TotalParts, &s.LowStock, &s.StockValue)
	if err != nil {
		return s, fmt.Errorf("count spare parts: %w", err)
	}
	s.StockValue = s.StockValue.Round(2)
	return s, nil
}

// UtilityCounts counts meters that reported in the last day and their readings.
func (q *Queries) UtilityCounts(ctx context.Context) (domain.UtilityStats, error) {
	var s domain.UtilityStats
	err := q.db.QueryRow(ctx, `
		SELECT count(DISTINCT meter_point), count(*)
		FROM utility_logs
		WHERE "timestamp" >= now() - interval '24 hours'`).Scan(&s.ActiveMeters, &s.ReadingsToday)
	if err != nil {
		return s, fmt.Errorf("count utility logs: %w", err)
	}
	return s, nil
}
