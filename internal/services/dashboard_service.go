package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"rtadmin/internal/core"
	applog "rtadmin/internal/log"
)

// Overview is the dashboard's data.
type Overview struct {
	Summary core.MonthlySummary
	Houses  core.HouseStats
}

type DashboardService struct {
	reports reportAPI
	houses  lister[core.House]
	logger  *applog.Logger
}

func NewDashboardService(reports reportAPI, houses lister[core.House], logger *applog.Logger) *DashboardService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentDashboard)
	}
	return &DashboardService{reports: reports, houses: houses, logger: logger}
}

// Overview fetches the monthly summary and the house list concurrently.
func (s *DashboardService) Overview(ctx context.Context) (Overview, error) {
	var out Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := s.reports.MonthlySummary(gctx)
		if err != nil {
			return fmt.Errorf("monthly summary: %w", err)
		}
		out.Summary = summary
		return nil
	})
	g.Go(func() error {
		houses, err := s.houses.List(gctx)
		if err != nil {
			return fmt.Errorf("list houses: %w", err)
		}
		out.Houses = core.ComputeHouseStats(houses)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Overview{}, fmt.Errorf("dashboard overview: %w", err)
	}
	s.logger.DebugContext(ctx, "Dashboard overview loaded",
		"months", len(out.Summary.Monthly),
		"houses", out.Houses.Total)
	return out, nil
}
