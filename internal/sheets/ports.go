package sheets

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"rtadmin/internal/core"
)

// Ledger kinds, one sheet each.
const (
	KindPayment = "payment"
	KindExpense = "expense"
)

// ErrInvalidRow is returned (wrapped) when a ledger refuses a row outright,
// e.g. an unknown kind or a request the spreadsheet rejects as malformed.
var ErrInvalidRow = errors.New("invalid ledger row")

// LedgerRow is one record mirrored into a spreadsheet. Cells[0] is always
// the record id.
type LedgerRow struct {
	Kind  string
	ID    int64
	Cells []string
}

// Ports for outbound ledger adapters.
type (
	LedgerWriter interface {
		// Upsert replaces the row with the same id or appends a new one.
		Upsert(ctx context.Context, row LedgerRow) error
		// Delete removes the row with the id; a missing row is not an error.
		Delete(ctx context.Context, kind string, id int64) error
	}

	LedgerReader interface {
		Rows(ctx context.Context, kind string) ([]LedgerRow, error)
	}

	Ledger interface {
		LedgerWriter
		LedgerReader
	}
)

var headers = map[string][]string{
	KindPayment: {"ID", "Tanggal", "Penghuni", "Rumah", "Status", "Total", "Rincian", "Catatan"},
	KindExpense: {"ID", "Tanggal", "Nama", "Nominal"},
}

// Header returns the column titles for a kind.
func Header(kind string) []string {
	return append([]string(nil), headers[kind]...)
}

// PaymentRow flattens a payment; items become "satpam 100000 (2024-01-01..2024-01-31)" joined by "; ".
func PaymentRow(p core.Payment) LedgerRow {
	items := make([]string, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, string(it.Type)+" "+strconv.FormatInt(it.Amount.Int64(), 10)+
			" ("+it.StartDate.String()+".."+it.EndDate.String()+")")
	}
	return LedgerRow{
		Kind: KindPayment,
		ID:   p.ID,
		Cells: []string{
			strconv.FormatInt(p.ID, 10),
			p.PaymentDate.String(),
			p.ResidentName(),
			p.HouseNumber(),
			p.Status.Normalize().Label(),
			strconv.FormatInt(p.TotalAmount.Int64(), 10),
			strings.Join(items, "; "),
			p.Note,
		},
	}
}

func ExpenseRow(e core.Expense) LedgerRow {
	return LedgerRow{
		Kind: KindExpense,
		ID:   e.ID,
		Cells: []string{
			strconv.FormatInt(e.ID, 10),
			e.Date.String(),
			e.Name,
			strconv.FormatInt(e.Amount.Int64(), 10),
		},
	}
}
