package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rtadmin/internal/core"
)

const expenseSelect = `SELECT id, name, amount, date FROM expenses`

func scanExpense(sc interface{ Scan(...any) error }) (core.Expense, error) {
	var e core.Expense
	err := sc.Scan(&e.ID, &e.Name, &e.Amount, &e.Date)
	return e, err
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, expenseSelect+` ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx, expenseSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return e, fmt.Errorf("expense %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return e, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	in.Normalize()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (name, amount, date) VALUES (?, ?, ?)`, in.Name, int64(in.Amount), in.Date.String())
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, err
	}
	r.logger.InfoContext(ctx, "Expense created", "id", id, "amount", int64(in.Amount))
	return r.GetExpense(ctx, id)
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, id int64, in core.ExpenseInput) (core.Expense, error) {
	in.Normalize()
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET name = ?, amount = ?, date = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		in.Name, int64(in.Amount), in.Date.String(), id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}
	if err := mustAffect(res); err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, err)
	}
	return r.GetExpense(ctx, id)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	if err := mustAffect(res); err != nil {
		return fmt.Errorf("expense %d: %w", id, err)
	}
	return nil
}
