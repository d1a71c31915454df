package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtadmin/internal/amqp"
	"rtadmin/internal/core"
	"rtadmin/internal/rtapi"
	"rtadmin/internal/sheets"
	"rtadmin/internal/sheets/memory"
)

type fakeSource[T any] struct {
	mu     sync.Mutex
	items  map[int64]T
	order  []int64
	getErr error
	lists  int
}

func newFakeSource[T any]() *fakeSource[T] {
	return &fakeSource[T]{items: make(map[int64]T)}
}

func (f *fakeSource[T]) put(id int64, v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		f.order = append(f.order, id)
	}
	f.items[id] = v
}

func (f *fakeSource[T]) List(context.Context) ([]T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	out := make([]T, 0, len(f.order))
	for _, id := range f.order {
		if v, ok := f.items[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeSource[T]) Get(_ context.Context, id int64) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var zero T
	if f.getErr != nil {
		return zero, f.getErr
	}
	v, ok := f.items[id]
	if !ok {
		return zero, fmt.Errorf("get %d: %w", id, &rtapi.APIError{StatusCode: http.StatusNotFound})
	}
	return v, nil
}

func newTestWorker() (*LedgerWorker, *fakeSource[core.Payment], *fakeSource[core.Expense], *memory.Store) {
	payments := newFakeSource[core.Payment]()
	expenses := newFakeSource[core.Expense]()
	ledger := memory.New()
	return NewLedgerWorker(payments, expenses, ledger, nil), payments, expenses, ledger
}

func msg(entity, action string, id int64) *amqp.MutationMessage {
	return amqp.NewMutationMessage(entity, action, id)
}

func TestHandleMutation_UpsertsExpense(t *testing.T) {
	ctx := context.Background()
	w, _, expenses, ledger := newTestWorker()
	expenses.put(1, core.Expense{ID: 1, Name: "Sapu", Amount: 20000, Date: "2024-01-10"})

	require.NoError(t, w.HandleMutation(ctx, msg(amqp.EntityExpense, amqp.ActionCreated, 1)))

	expenses.put(1, core.Expense{ID: 1, Name: "Sapu Lidi", Amount: 25000, Date: "2024-01-10"})
	require.NoError(t, w.HandleMutation(ctx, msg(amqp.EntityExpense, amqp.ActionUpdated, 1)))

	rows, err := ledger.Rows(ctx, sheets.KindExpense)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"1", "2024-01-10", "Sapu Lidi", "25000"}, rows[0].Cells)
}

func TestHandleMutation_DeleteAndVanishedRecord(t *testing.T) {
	ctx := context.Background()
	w, payments, _, ledger := newTestWorker()
	require.NoError(t, ledger.Upsert(ctx, sheets.LedgerRow{Kind: sheets.KindPayment, ID: 4, Cells: []string{"4"}}))
	require.NoError(t, ledger.Upsert(ctx, sheets.LedgerRow{Kind: sheets.KindPayment, ID: 5, Cells: []string{"5"}}))

	require.NoError(t, w.HandleMutation(ctx, msg(amqp.EntityPayment, amqp.ActionDeleted, 4)))
	// updated, then deleted before the worker got to it
	require.NoError(t, w.HandleMutation(ctx, msg(amqp.EntityPayment, amqp.ActionUpdated, 5)))

	rows, err := ledger.Rows(ctx, sheets.KindPayment)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, payments.lists)
}

func TestHandleMutation_BackendFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	w, payments, _, ledger := newTestWorker()
	require.NoError(t, ledger.Upsert(ctx, sheets.LedgerRow{Kind: sheets.KindPayment, ID: 7, Cells: []string{"7"}}))
	payments.getErr = fmt.Errorf("get: %w: %w", rtapi.ErrNotFound, &rtapi.APIError{StatusCode: http.StatusBadGateway})

	err := w.HandleMutation(ctx, msg(amqp.EntityPayment, amqp.ActionUpdated, 7))
	require.Error(t, err)
	assert.True(t, errors.Is(err, rtapi.ErrNotFound))

	rows, _ := ledger.Rows(ctx, sheets.KindPayment)
	assert.Len(t, rows, 1, "a 5xx must not delete the ledger row")
	assert.NotErrorIs(t, err, amqp.ErrPermanent)
}

// rejectingLedger refuses every write the way a spreadsheet answers a
// malformed request.
type rejectingLedger struct{ *memory.Store }

func (rejectingLedger) Upsert(_ context.Context, row sheets.LedgerRow) error {
	return fmt.Errorf("append Pembayaran!A:A: %w", sheets.ErrInvalidRow)
}

func TestHandleMutation_RejectedRowIsNotRetried(t *testing.T) {
	ctx := context.Background()
	payments := newFakeSource[core.Payment]()
	payments.put(8, core.Payment{ID: 8, HouseID: 1})
	w := NewLedgerWorker(payments, newFakeSource[core.Expense](), rejectingLedger{memory.New()}, nil)

	err := w.HandleMutation(ctx, msg(amqp.EntityPayment, amqp.ActionCreated, 8))
	require.ErrorIs(t, err, amqp.ErrPermanent)
	assert.ErrorIs(t, err, sheets.ErrInvalidRow)
}

func TestHandleMutation_ResidentChangeRefreshesPayments(t *testing.T) {
	ctx := context.Background()
	w, payments, _, ledger := newTestWorker()
	payments.put(1, core.Payment{
		ID: 1, ResidentID: 3, Resident: &core.Resident{Name: "Budi"}, Status: "Lunas",
		PaymentDate: "2024-01-10", TotalAmount: 100000,
	})

	require.NoError(t, w.HandleMutation(ctx, msg(amqp.EntityResident, amqp.ActionUpdated, 3)))

	rows, err := ledger.Rows(ctx, sheets.KindPayment)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Budi", rows[0].Cells[2])
	assert.Equal(t, 1, payments.lists)
}

func TestReconcile_WritesMissingAndDropsStale(t *testing.T) {
	ctx := context.Background()
	w, payments, expenses, ledger := newTestWorker()
	expenses.put(1, core.Expense{ID: 1, Name: "Sapu", Amount: 20000, Date: "2024-01-10"})
	expenses.put(2, core.Expense{ID: 2, Name: "Lampu", Amount: 35000, Date: "2024-01-12"})
	payments.put(9, core.Payment{ID: 9, Status: "Belum Lunas", PaymentDate: "2024-02-01", TotalAmount: 50000})

	require.NoError(t, ledger.Upsert(ctx, sheets.ExpenseRow(core.Expense{ID: 1, Name: "Sapu", Amount: 20000, Date: "2024-01-10"})))
	require.NoError(t, ledger.Upsert(ctx, sheets.LedgerRow{Kind: sheets.KindExpense, ID: 3, Cells: []string{"3", "2023-12-01", "Lama", "1"}}))

	require.NoError(t, w.Reconcile(ctx))

	rows, err := ledger.Rows(ctx, sheets.KindExpense)
	require.NoError(t, err)
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{1, 2}, ids)

	paymentRows, err := ledger.Rows(ctx, sheets.KindPayment)
	require.NoError(t, err)
	require.Len(t, paymentRows, 1)
	assert.Equal(t, "Belum Lunas", paymentRows[0].Cells[4])
}

type countingTarget struct {
	mu    sync.Mutex
	calls int
}

func (c *countingTarget) Reconcile(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

func (c *countingTarget) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestDefaultReconcilerConfig(t *testing.T) {
	config := DefaultReconcilerConfig()
	if config.Interval != 15*time.Minute {
		t.Errorf("expected Interval 15m, got %v", config.Interval)
	}
	if !config.OnStart {
		t.Error("expected OnStart to be true")
	}
}

func TestReconciler_StartStop(t *testing.T) {
	target := &countingTarget{}
	r := NewReconciler(target, ReconcilerConfig{Interval: 10 * time.Millisecond, OnStart: true}, nil)

	if r.IsRunning() {
		t.Fatal("reconciler should not be running initially")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start(ctx); err == nil {
		t.Error("expected error when starting a running reconciler")
	}

	deadline := time.Now().Add(time.Second)
	for target.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if target.count() < 3 {
		t.Fatalf("expected at least 3 runs, got %d", target.count())
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := r.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if r.IsRunning() {
		t.Error("reconciler should not be running after Stop")
	}
	runs, lastErr := r.Runs()
	if runs < 3 || lastErr != nil {
		t.Errorf("Runs() = %d, %v", runs, lastErr)
	}
}

func TestReconciler_StopNotRunning(t *testing.T) {
	r := NewReconciler(&countingTarget{}, ReconcilerConfig{}, nil)
	if err := r.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
	if r.config.Interval != 15*time.Minute {
		t.Errorf("zero interval should default to 15m, got %v", r.config.Interval)
	}
}
