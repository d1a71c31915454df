package services

import (
	"context"
	"fmt"

	"rtadmin/internal/amqp"
	"rtadmin/internal/core"
)

// ExpenseService validates expenses and forwards them to the backend.
type ExpenseService struct {
	api      crudAPI[core.Expense]
	notifier notifier
}

func NewExpenseService(api crudAPI[core.Expense], n notifier) *ExpenseService {
	return &ExpenseService{api: api, notifier: n.ready()}
}

// List returns the expenses matching f.
func (s *ExpenseService) List(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error) {
	expenses, err := s.api.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return core.FilterExpenses(expenses, f), nil
}

func (s *ExpenseService) Get(ctx context.Context, id int64) (core.Expense, error) {
	e, err := s.api.Get(ctx, id)
	if err != nil {
		return e, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

func (s *ExpenseService) Create(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	in.Normalize()
	if errs := in.Validate(); len(errs) > 0 {
		return core.Expense{}, invalid(errs)
	}
	created, err := s.api.Create(ctx, in)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", remote(err))
	}
	s.notifier.publish(ctx, amqp.EntityExpense, amqp.ActionCreated, created.ID)
	return created, nil
}

func (s *ExpenseService) Update(ctx context.Context, id int64, in core.ExpenseInput) (core.Expense, error) {
	in.Normalize()
	if errs := in.Validate(); len(errs) > 0 {
		return core.Expense{}, invalid(errs)
	}
	updated, err := s.api.Update(ctx, id, in)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, remote(err))
	}
	s.notifier.publish(ctx, amqp.EntityExpense, amqp.ActionUpdated, id)
	return updated, nil
}

func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	if err := s.api.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	s.notifier.publish(ctx, amqp.EntityExpense, amqp.ActionDeleted, id)
	return nil
}
