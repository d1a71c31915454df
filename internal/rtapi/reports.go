package rtapi

import (
	"context"
	"fmt"

	"rtadmin/internal/core"
)

// ReportsAPI exposes the backend-computed reports.
type ReportsAPI struct {
	c *Client
}

// MonthlySummary fetches GET /report/monthly-summary.
func (r *ReportsAPI) MonthlySummary(ctx context.Context) (core.MonthlySummary, error) {
	var out core.MonthlySummary
	raw, err := r.c.get(ctx, "/report/monthly-summary")
	if err != nil {
		return out, fmt.Errorf("monthly summary: %w", err)
	}
	if err := decodeOne(raw, &out); err != nil {
		return out, fmt.Errorf("monthly summary: %w", err)
	}
	if out.Monthly == nil {
		out.Monthly = []core.MonthlyRow{}
	}
	return out, nil
}
