// Package worker mirrors payments and expenses into the spreadsheet ledger.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"golang.org/x/sync/errgroup"

	"rtadmin/internal/amqp"
	"rtadmin/internal/core"
	applog "rtadmin/internal/log"
	"rtadmin/internal/rtapi"
	"rtadmin/internal/sheets"
)

// Source reads one entity collection from the backend. The rtapi resources
// satisfy it.
type Source[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id int64) (T, error)
}

// LedgerWorker applies mutation events to the ledger. The backend stays the
// source of truth: every upsert re-reads the record instead of trusting the
// event.
type LedgerWorker struct {
	payments Source[core.Payment]
	expenses Source[core.Expense]
	ledger   sheets.Ledger
	logger   *applog.Logger
}

func NewLedgerWorker(payments Source[core.Payment], expenses Source[core.Expense], ledger sheets.Ledger, logger *applog.Logger) *LedgerWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &LedgerWorker{
		payments: payments,
		expenses: expenses,
		ledger:   ledger,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleMutation is the amqp.Handler of the ledger worker.
func (w *LedgerWorker) HandleMutation(ctx context.Context, msg *amqp.MutationMessage) error {
	w.logger.InfoContext(ctx, "Processing mutation",
		applog.FieldOperation, applog.OpSync,
		applog.FieldEntity, msg.Entity,
		applog.FieldAction, msg.Action,
		applog.FieldEntityID, msg.EntityID)

	var err error
	switch msg.Entity {
	case amqp.EntityPayment:
		err = w.syncPayment(ctx, msg.Action, msg.EntityID)
	case amqp.EntityExpense:
		err = w.syncExpense(ctx, msg.Action, msg.EntityID)
	case amqp.EntityResident, amqp.EntityHouse, amqp.EntityOccupancy:
		// payment rows show resident names and house numbers
		err = w.reconcilePayments(ctx)
	default:
		w.logger.WarnContext(ctx, "Ignoring mutation for unknown entity", applog.FieldEntity, msg.Entity)
	}
	if errors.Is(err, sheets.ErrInvalidRow) {
		return amqp.Permanent(err)
	}
	return err
}

func (w *LedgerWorker) syncPayment(ctx context.Context, action string, id int64) error {
	if action == amqp.ActionDeleted {
		return w.remove(ctx, sheets.KindPayment, id)
	}
	p, err := w.payments.Get(ctx, id)
	if errors.Is(err, rtapi.ErrNotFound) && isGone(err) {
		return w.remove(ctx, sheets.KindPayment, id)
	}
	if err != nil {
		return fmt.Errorf("get payment %d: %w", id, err)
	}
	return w.upsert(ctx, sheets.PaymentRow(p))
}

func (w *LedgerWorker) syncExpense(ctx context.Context, action string, id int64) error {
	if action == amqp.ActionDeleted {
		return w.remove(ctx, sheets.KindExpense, id)
	}
	e, err := w.expenses.Get(ctx, id)
	if errors.Is(err, rtapi.ErrNotFound) && isGone(err) {
		return w.remove(ctx, sheets.KindExpense, id)
	}
	if err != nil {
		return fmt.Errorf("get expense %d: %w", id, err)
	}
	return w.upsert(ctx, sheets.ExpenseRow(e))
}

// isGone distinguishes a real 404 from the other failures Get also reports
// as not found; only a 404 means the record was deleted since the event.
func isGone(err error) bool {
	var apiErr *rtapi.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return true
}

func (w *LedgerWorker) upsert(ctx context.Context, row sheets.LedgerRow) error {
	if err := w.ledger.Upsert(ctx, row); err != nil {
		return fmt.Errorf("upsert %s %d: %w", row.Kind, row.ID, err)
	}
	w.logger.InfoContext(ctx, "Ledger row written", applog.FieldEntity, row.Kind, applog.FieldEntityID, row.ID)
	return nil
}

func (w *LedgerWorker) remove(ctx context.Context, kind string, id int64) error {
	if err := w.ledger.Delete(ctx, kind, id); err != nil {
		return fmt.Errorf("delete %s %d: %w", kind, id, err)
	}
	w.logger.InfoContext(ctx, "Ledger row removed", applog.FieldEntity, kind, applog.FieldEntityID, id)
	return nil
}

// Reconcile rewrites both sheets from the backend and drops rows whose
// record no longer exists. It recovers from lost or failed messages.
func (w *LedgerWorker) Reconcile(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.reconcilePayments(ctx) })
	g.Go(func() error { return w.reconcileExpenses(ctx) })
	return g.Wait()
}

func (w *LedgerWorker) reconcilePayments(ctx context.Context) error {
	payments, err := w.payments.List(ctx)
	if err != nil {
		return fmt.Errorf("list payments: %w", err)
	}
	rows := make([]sheets.LedgerRow, 0, len(payments))
	for _, p := range payments {
		rows = append(rows, sheets.PaymentRow(p))
	}
	return w.reconcile(ctx, sheets.KindPayment, rows)
}

func (w *LedgerWorker) reconcileExpenses(ctx context.Context) error {
	expenses, err := w.expenses.List(ctx)
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	rows := make([]sheets.LedgerRow, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, sheets.ExpenseRow(e))
	}
	return w.reconcile(ctx, sheets.KindExpense, rows)
}

func (w *LedgerWorker) reconcile(ctx context.Context, kind string, want []sheets.LedgerRow) error {
	have, err := w.ledger.Rows(ctx, kind)
	if err != nil {
		return fmt.Errorf("read %s ledger: %w", kind, err)
	}
	current := make(map[int64]sheets.LedgerRow, len(have))
	for _, row := range have {
		current[row.ID] = row
	}

	written := 0
	for _, row := range want {
		if old, ok := current[row.ID]; ok && slices.Equal(old.Cells, row.Cells) {
			delete(current, row.ID)
			continue
		}
		delete(current, row.ID)
		if err := w.ledger.Upsert(ctx, row); err != nil {
			return fmt.Errorf("upsert %s %d: %w", kind, row.ID, err)
		}
		written++
	}
	for id := range current {
		if err := w.ledger.Delete(ctx, kind, id); err != nil {
			return fmt.Errorf("delete stale %s %d: %w", kind, id, err)
		}
	}

	w.logger.InfoContext(ctx, "Ledger reconciled",
		applog.FieldOperation, applog.OpSync,
		applog.FieldEntity, kind,
		"rows", len(want),
		"written", written,
		"removed", len(current))
	return nil
}
