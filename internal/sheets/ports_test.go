package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rtadmin/internal/core"
)

func TestPaymentRow(t *testing.T) {
	p := core.Payment{
		ID:          9,
		Resident:    &core.Resident{Name: "Budi"},
		House:       &core.House{HouseNumber: "A-01"},
		TotalAmount: 150000,
		Status:      core.PaymentPaid,
		PaymentDate: "2024-01-10",
		Note:        "Januari",
		Items: []core.PaymentItem{
			{Type: core.ItemSatpam, Amount: 100000, StartDate: "2024-01-01", EndDate: "2024-01-31"},
			{Type: core.ItemKebersihan, Amount: 50000, StartDate: "2024-01-01", EndDate: "2024-01-31"},
		},
	}
	row := PaymentRow(p)

	assert.Equal(t, KindPayment, row.Kind)
	assert.Equal(t, int64(9), row.ID)
	assert.Len(t, row.Cells, len(Header(KindPayment)))
	assert.Equal(t, "9", row.Cells[0])
	assert.Equal(t, "Budi", row.Cells[2])
	assert.Equal(t, "A-01", row.Cells[3])
	assert.Equal(t, "150000", row.Cells[5])
	assert.Equal(t, "satpam 100000 (2024-01-01..2024-01-31); kebersihan 50000 (2024-01-01..2024-01-31)", row.Cells[6])
}

func TestExpenseRow(t *testing.T) {
	row := ExpenseRow(core.Expense{ID: 3, Name: "Lampu", Amount: 75000, Date: "2024-03-02"})
	assert.Equal(t, []string{"3", "2024-03-02", "Lampu", "75000"}, row.Cells)
	assert.Len(t, row.Cells, len(Header(KindExpense)))
}
