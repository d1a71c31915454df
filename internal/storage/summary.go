package storage

import (
	"context"
	"fmt"
	"sort"

	"rtadmin/internal/core"
)

// MonthlySummary sums paid payments (income) and expenses (spending) per
// YYYY-MM, oldest month first.
func (r *SQLiteRepository) MonthlySummary(ctx context.Context) (core.MonthlySummary, error) {
	months := make(map[string]*core.MonthlyRow)
	row := func(month string) *core.MonthlyRow {
		m, ok := months[month]
		if !ok {
			m = &core.MonthlyRow{Month: month}
			months[month] = m
		}
		return m
	}

	if err := r.sumByMonth(ctx, `
SELECT substr(payment_date, 1, 7), SUM(total_amount) FROM payments
WHERE status = ? GROUP BY 1`, func(month string, total core.Rupiah) {
		row(month).Income = total
	}, string(core.PaymentPaid)); err != nil {
		return core.MonthlySummary{}, err
	}
	if err := r.sumByMonth(ctx, `
SELECT substr(date, 1, 7), SUM(amount) FROM expenses GROUP BY 1`, func(month string, total core.Rupiah) {
		row(month).Spending = total
	}); err != nil {
		return core.MonthlySummary{}, err
	}

	summary := core.MonthlySummary{Monthly: make([]core.MonthlyRow, 0, len(months))}
	for _, m := range months {
		m.Balance = m.Income - m.Spending
		summary.Monthly = append(summary.Monthly, *m)
		summary.Total.Income += m.Income
		summary.Total.Spending += m.Spending
	}
	sort.Slice(summary.Monthly, func(i, j int) bool {
		return summary.Monthly[i].Month < summary.Monthly[j].Month
	})
	summary.Total.Balance = summary.Total.Income - summary.Total.Spending

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT resident_id) FROM inhabitant_histories WHERE end_date IS NULL`).
		Scan(&summary.TotalResidents); err != nil {
		return core.MonthlySummary{}, fmt.Errorf("count residents: %w", err)
	}
	return summary, nil
}

func (r *SQLiteRepository) sumByMonth(ctx context.Context, query string, fn func(string, core.Rupiah), args ...any) error {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("monthly totals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			month string
			total int64
		)
		if err := rows.Scan(&month, &total); err != nil {
			return fmt.Errorf("scan monthly total: %w", err)
		}
		fn(month, core.Rupiah(total))
	}
	return rows.Err()
}
