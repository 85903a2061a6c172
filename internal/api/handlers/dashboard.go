package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"plantops.io/mis/internal/domain"
	apperrors "plantops.io/mis/internal/pkg/errors"
)

const defaultKPIWindowDays = 30

// GetDashboardStats handles GET /api/dashboard/stats. The five counts run
// concurrently on the general worker pool.
func (s *Server) GetDashboardStats(c *gin.Context) {
	var (
		stats domain.DashboardStats
		today = s.today()
	)
	fns := []func(ctx context.Context) error{
		func(ctx context.Context) (err error) {
			stats.Assets, err = s.store.AssetCounts(ctx)
			return err
		},
		func(ctx context.Context) (err error) {
			stats.PreventiveMaintenance, err = s.store.PMCounts(ctx, today)
			return err
		},
		func(ctx context.Context) (err error) {
			stats.BreakdownMaintenance, err = s.store.BreakdownCounts(ctx, today)
			return err
		},
		func(ctx context.Context) (err error) {
			stats.SpareInventory, err = s.store.SpareCounts(ctx)
			return err
		},
		func(ctx context.Context) (err error) {
			stats.UtilitiesMonitoring, err = s.store.UtilityCounts(ctx)
			return err
		},
	}

	if err := s.runAll(c.Request.Context(), fns...); err != nil {
		_ = c.Error(storeError(err, nil, nil))
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) runAll(ctx context.Context, fns ...func(ctx context.Context) error) error {
	if s.pool != nil {
		return s.pool.Group(ctx, fns...)
	}
	for _, fn := range fns {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// GetKPI handles GET /api/kpi. The window defaults to the last 30 days and
// ends at the current time when to is today.
func (s *Server) GetKPI(c *gin.Context) {
	now := s.now().UTC()
	to := domain.NewDate(now)
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		d, err := domain.ParseDate("to", raw)
		if err != nil {
			_ = c.Error(err)
			return
		}
		to = d
	}
	from := to.AddDays(-(defaultKPIWindowDays - 1))
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		d, err := domain.ParseDate("from", raw)
		if err != nil {
			_ = c.Error(err)
			return
		}
		from = d
	}
	if to.Before(from) {
		_ = c.Error(apperrors.Validation("from", "from must not be after to"))
		return
	}
	var planned time.Duration
	if raw := strings.TrimSpace(c.Query("planned_downtime_hours")); raw != "" {
		h, err := strconv.ParseFloat(raw, 64)
		if err != nil || h < 0 {
			_ = c.Error(apperrors.Validation("planned_downtime_hours", "planned_downtime_hours must be a non-negative number"))
			return
		}
		planned = time.Duration(h * float64(time.Hour))
	}

	windowEnd := to.AddDays(1).Time
	if windowEnd.After(now) && !now.Before(from.Time) {
		windowEnd = now
	}

	ctx := c.Request.Context()
	var (
		assets  domain.AssetStats
		records []domain.RepairRecord
	)
	err := s.runAll(ctx,
		func(ctx context.Context) (err error) {
			assets, err = s.store.AssetCounts(ctx)
			return err
		},
		func(ctx context.Context) (err error) {
			records, err = s.store.ListKPIRecords(ctx, from, to)
			return err
		},
	)
	if err != nil {
		_ = c.Error(storeError(err, nil, nil))
		return
	}

	report := domain.ComputeKPI(domain.KPIInput{
		From:              from.Time,
		To:                windowEnd,
		AssetCount:        assets.Active,
		PlannedDowntime:   planned,
		PerformanceFactor: s.kpi.PerformanceFactor,
		QualityFactor:     s.kpi.QualityFactor,
		Records:           records,
	})
	report.To = to
	c.JSON(http.StatusOK, report)
}
