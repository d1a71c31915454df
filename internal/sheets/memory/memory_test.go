package memory

import (
	"context"
	"testing"

	"rtadmin/internal/core"
	ports "rtadmin/internal/sheets"
)

func TestStoreUpsertReplacesByID(t *testing.T) {
	s := New()
	ctx := context.Background()

	exp := core.Expense{ID: 2, Name: "Sapu", Amount: 25000, Date: "2024-02-01"}
	if err := s.Upsert(ctx, ports.ExpenseRow(exp)); err != nil {
		t.Fatal(err)
	}
	exp.Amount = 30000
	if err := s.Upsert(ctx, ports.ExpenseRow(exp)); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, ports.ExpenseRow(core.Expense{ID: 1, Name: "Lampu"})); err != nil {
		t.Fatal(err)
	}

	rows, err := s.Rows(ctx, ports.KindExpense)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].ID != 1 || rows[1].ID != 2 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if rows[1].Cells[3] != "30000" {
		t.Errorf("amount cell = %q, want 30000", rows[1].Cells[3])
	}
}

func TestStoreDeleteAndKindsAreSeparate(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.Upsert(ctx, ports.ExpenseRow(core.Expense{ID: 1}))
	_ = s.Upsert(ctx, ports.PaymentRow(core.Payment{ID: 1, Status: core.PaymentPaid}))

	if err := s.Delete(ctx, ports.KindExpense, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, ports.KindExpense, 42); err != nil {
		t.Fatalf("deleting a missing row should be a no-op: %v", err)
	}

	expenses, _ := s.Rows(ctx, ports.KindExpense)
	payments, _ := s.Rows(ctx, ports.KindPayment)
	if len(expenses) != 0 || len(payments) != 1 {
		t.Fatalf("expenses=%v payments=%v", expenses, payments)
	}
}

func TestStoreRejectsRowsWithoutID(t *testing.T) {
	if err := New().Upsert(context.Background(), ports.LedgerRow{Kind: ports.KindExpense}); err == nil {
		t.Error("expected an error for a row without id")
	}
}
