package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtadmin/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "rt.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedResident(t *testing.T, repo *SQLiteRepository, name string) core.Resident {
	t.Helper()
	res, err := repo.CreateResident(context.Background(), ResidentRecord{
		Name: name, Status: core.StatusTetap, Phone: "0812", KTPPhoto: "ktp/" + name + ".jpg",
	})
	require.NoError(t, err)
	return res
}

func seedHouse(t *testing.T, repo *SQLiteRepository, number string) core.House {
	t.Helper()
	h, err := repo.CreateHouse(context.Background(), HouseRecord{HouseNumber: number})
	require.NoError(t, err)
	return h
}

func TestHistories_KeepHouseFlagInSync(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	budi := seedResident(t, repo, "Budi")
	house := seedHouse(t, repo, "A1")

	hist, err := repo.CreateHistory(ctx, core.InhabitantHistory{ResidentID: budi.ID, HouseID: house.ID, StartDate: "2024-01-01"})
	require.NoError(t, err)
	assert.True(t, hist.IsOpen())
	assert.Equal(t, "Budi", hist.ResidentName())

	got, err := repo.GetHouse(ctx, house.ID)
	require.NoError(t, err)
	assert.True(t, bool(got.IsOccupied))
	assert.True(t, got.FlagConsistent())
	assert.Len(t, got.Histories, 1)

	end := core.Date("2024-06-30")
	hist.EndDate = &end
	_, err = repo.UpdateHistory(ctx, hist.ID, hist)
	require.NoError(t, err)

	got, err = repo.GetHouse(ctx, house.ID)
	require.NoError(t, err)
	assert.False(t, bool(got.IsOccupied))
	assert.Equal(t, core.LabelVacant, got.OccupancyLabel())
}

func TestHistories_RejectSecondOpenRow(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	budi := seedResident(t, repo, "Budi")
	sari := seedResident(t, repo, "Sari")
	a1 := seedHouse(t, repo, "A1")
	a2 := seedHouse(t, repo, "A2")

	_, err := repo.CreateHistory(ctx, core.InhabitantHistory{ResidentID: budi.ID, HouseID: a1.ID, StartDate: "2024-01-01"})
	require.NoError(t, err)

	_, err = repo.CreateHistory(ctx, core.InhabitantHistory{ResidentID: sari.ID, HouseID: a1.ID, StartDate: "2024-02-01"})
	assert.ErrorIs(t, err, core.ErrOccupancyConflict)
	assert.Equal(t, core.FieldErrors{"house_id": "Rumah ini masih dihuni penghuni lain"}, core.ConflictFields(err))

	_, err = repo.CreateHistory(ctx, core.InhabitantHistory{ResidentID: budi.ID, HouseID: a2.ID, StartDate: "2024-02-01"})
	assert.ErrorIs(t, err, core.ErrOccupancyConflict)

	end := core.Date("2023-12-31")
	_, err = repo.CreateHistory(ctx, core.InhabitantHistory{ResidentID: sari.ID, HouseID: a1.ID, StartDate: "2023-01-01", EndDate: &end})
	assert.NoError(t, err, "closed rows never conflict")
}

func TestResidents_MoveHouseClosesOpenRow(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	a1 := seedHouse(t, repo, "A1")
	a2 := seedHouse(t, repo, "A2")

	res, err := repo.CreateResident(ctx, ResidentRecord{
		Name: "Budi", Status: core.StatusKontrak, Phone: "0812", HouseID: &a1.ID, StartDate: "2024-01-01",
	})
	require.NoError(t, err)
	require.NotNil(t, res.HouseID)
	assert.Equal(t, a1.ID, *res.HouseID)

	res, err = repo.UpdateResident(ctx, res.ID, ResidentRecord{
		Name: "Budi", Status: core.StatusKontrak, Phone: "0812", HouseID: &a2.ID, StartDate: "2024-05-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "A2", res.HouseNumber())

	first, err := repo.GetHouse(ctx, a1.ID)
	require.NoError(t, err)
	assert.False(t, bool(first.IsOccupied))
	require.Len(t, first.Histories, 1)
	assert.Equal(t, "2024-01-01 – 2024-05-01", first.Histories[0].PeriodLabel())

	active, err := repo.ListActiveResidents(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Budi", active[0].Name)

	photo, err := repo.KTPPhotoPath(ctx, res.ID)
	require.NoError(t, err)
	assert.Empty(t, photo)

	require.NoError(t, repo.DeleteResident(ctx, res.ID))
	second, err := repo.GetHouse(ctx, a2.ID)
	require.NoError(t, err)
	assert.False(t, bool(second.IsOccupied))
	assert.Empty(t, second.Histories)
}

func TestResidents_BackdatedMoveKeepsPeriodsOrdered(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	a1 := seedHouse(t, repo, "A1")
	a2 := seedHouse(t, repo, "A2")

	res, err := repo.CreateResident(ctx, ResidentRecord{
		Name: "Sari", Status: core.StatusTetap, Phone: "0813", HouseID: &a1.ID, StartDate: "2024-06-01",
	})
	require.NoError(t, err)

	_, err = repo.UpdateResident(ctx, res.ID, ResidentRecord{
		Name: "Sari", Status: core.StatusTetap, Phone: "0813", HouseID: &a2.ID, StartDate: "2024-02-01",
	})
	require.NoError(t, err)

	first, err := repo.GetHouse(ctx, a1.ID)
	require.NoError(t, err)
	require.Len(t, first.Histories, 1)
	closed := first.Histories[0]
	require.NotNil(t, closed.EndDate)
	assert.False(t, closed.EndDate.Before(closed.StartDate), "end %s before start %s", *closed.EndDate, closed.StartDate)

	second, err := repo.GetHouse(ctx, a2.ID)
	require.NoError(t, err)
	require.Len(t, second.Histories, 1)
	assert.Equal(t, core.Date("2024-06-01"), second.Histories[0].StartDate)
	assert.True(t, bool(second.IsOccupied))
}

func TestPayments_TotalFollowsItems(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	budi := seedResident(t, repo, "Budi")
	a1 := seedHouse(t, repo, "A1")
	_, err := repo.CreateHistory(ctx, core.InhabitantHistory{ResidentID: budi.ID, HouseID: a1.ID, StartDate: "2024-01-01"})
	require.NoError(t, err)

	draft := core.PaymentDraft{
		ResidentID:  budi.ID,
		TotalAmount: 1,
		Status:      "Lunas",
		PaymentDate: "2024-01-10",
		Items: []core.PaymentItemDraft{
			{Type: core.ItemSatpam, Amount: 100000, StartDate: "2024-01-01", EndDate: "2024-01-31"},
			{Type: core.ItemKebersihan, Amount: 50000, StartDate: "2024-01-01", EndDate: "2024-01-31"},
		},
	}
	p, err := repo.CreatePayment(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, core.Rupiah(150000), p.TotalAmount)
	assert.Equal(t, core.PaymentStatus("Lunas"), p.Status)
	assert.Equal(t, a1.ID, p.HouseID)
	assert.Equal(t, "A1", p.HouseNumber())
	require.Len(t, p.Items, 2)

	draft.Items = draft.Items[:1]
	draft.Status = core.PaymentUnpaid
	p, err = repo.UpdatePayment(ctx, p.ID, draft)
	require.NoError(t, err)
	assert.Equal(t, core.Rupiah(100000), p.TotalAmount)
	assert.Equal(t, core.PaymentStatus("Belum Lunas"), p.Status)
	assert.Len(t, p.Items, 1)

	house, err := repo.GetHouse(ctx, a1.ID)
	require.NoError(t, err)
	assert.Len(t, house.Payments, 1)

	require.NoError(t, repo.DeletePayment(ctx, p.ID))
	_, err = repo.GetPayment(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMonthlySummary(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	budi := seedResident(t, repo, "Budi")
	a1 := seedHouse(t, repo, "A1")
	_, err := repo.CreateHistory(ctx, core.InhabitantHistory{ResidentID: budi.ID, HouseID: a1.ID, StartDate: "2024-01-01"})
	require.NoError(t, err)

	pay := func(date core.Date, amount core.Rupiah, status core.PaymentStatus) {
		_, err := repo.CreatePayment(ctx, core.PaymentDraft{
			ResidentID: budi.ID, Status: status, PaymentDate: date,
			Items: []core.PaymentItemDraft{{Type: core.ItemSatpam, Amount: amount, StartDate: date, EndDate: date}},
		})
		require.NoError(t, err)
	}
	pay("2024-01-05", 100000, core.PaymentPaid)
	pay("2024-01-20", 50000, core.PaymentPaid)
	pay("2024-02-03", 70000, core.PaymentUnpaid)

	_, err = repo.CreateExpense(ctx, core.ExpenseInput{Name: "Alat Kebersihan", Amount: 30000, Date: "2024-02-10"})
	require.NoError(t, err)

	summary, err := repo.MonthlySummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.MonthlyRow{
		{Month: "2024-01", Income: 150000, Spending: 0, Balance: 150000},
		{Month: "2024-02", Income: 0, Spending: 30000, Balance: -30000},
	}, summary.Monthly)
	assert.Equal(t, core.SummaryTotal{Income: 150000, Spending: 30000, Balance: 120000}, summary.Total)
	assert.Equal(t, 1, summary.TotalResidents)
}

func TestHouses_DuplicateNumber(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	seedHouse(t, repo, "A1")

	_, err := repo.CreateHouse(ctx, HouseRecord{HouseNumber: "A1"})
	assert.True(t, errors.Is(err, ErrDuplicateHouse))

	err = repo.DeleteHouse(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpenses_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	e, err := repo.CreateExpense(ctx, core.ExpenseInput{Name: " Alat Kebersihan ", Amount: 150000, Date: "2024-01-10T00:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, core.Expense{ID: e.ID, Name: "Alat Kebersihan", Amount: 150000, Date: "2024-01-10"}, e)

	e, err = repo.UpdateExpense(ctx, e.ID, core.ExpenseInput{Name: "Sapu", Amount: 20000, Date: "2024-01-11"})
	require.NoError(t, err)
	assert.Equal(t, "Sapu", e.Name)

	list, err := repo.ListExpenses(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.DeleteExpense(ctx, e.ID))
	_, err = repo.UpdateExpense(ctx, e.ID, core.ExpenseInput{Name: "x", Amount: 1, Date: "2024-01-11"})
	assert.ErrorIs(t, err, ErrNotFound)
}
