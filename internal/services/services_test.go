package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtadmin/internal/amqp"
	"rtadmin/internal/core"
	"rtadmin/internal/rtapi"
)

func endDate(s string) *core.Date {
	d := core.Date(s)
	return &d
}

func TestPaymentService_SubmitsSumOfItems(t *testing.T) {
	api := &fakeCRUD[core.Payment]{result: core.Payment{ID: 12}}
	pub := &recordingPublisher{}
	svc := NewPaymentService(api, fakeActive{}, notifier{pub: pub})

	d := core.NewPaymentDraft()
	d.SetItem(0, core.PaymentItemDraft{Type: core.ItemSatpam, Amount: 100000, StartDate: "2024-01-01", EndDate: "2024-01-31"})
	d.AddItem()
	d.SetItem(1, core.PaymentItemDraft{Type: core.ItemKebersihan, Amount: 50000, StartDate: "2024-01-01", EndDate: "2024-01-31"})
	d.ResidentID = 3
	d.PaymentDate = "2024-01-05"
	d.TotalAmount = 1

	created, err := svc.Create(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, int64(12), created.ID)

	require.Len(t, api.created, 1)
	sent := api.created[0].(core.PaymentDraft)
	assert.Equal(t, core.Rupiah(150000), sent.TotalAmount)
	assert.Equal(t, core.PaymentPaid, sent.Status)
	assert.Equal(t, []published{{amqp.EntityPayment, amqp.ActionCreated, 12}}, pub.events)
}

func TestPaymentService_ValidatesEachItem(t *testing.T) {
	api := &fakeCRUD[core.Payment]{}
	svc := NewPaymentService(api, fakeActive{}, notifier{})

	d := core.NewPaymentDraft()
	d.ResidentID = 3
	d.PaymentDate = "2024-01-05"
	d.SetItem(0, core.PaymentItemDraft{Type: core.ItemSatpam, Amount: 0, StartDate: "2024-01-01"})

	_, err := svc.Create(context.Background(), d)
	require.ErrorIs(t, err, ErrValidation)
	fields := FieldErrorsOf(err)
	assert.Equal(t, "Nominal harus lebih dari 0", fields.Get("items.0.amount"))
	assert.Equal(t, "Tanggal akhir wajib diisi", fields.Get("items.0.end_date"))
	assert.Zero(t, api.calls, "no backend call on local validation failure")
}

func TestExpenseService_MergesBackendFieldErrors(t *testing.T) {
	api := &fakeCRUD[core.Expense]{writeErr: &rtapi.APIError{
		StatusCode: 422,
		Message:    "The given data was invalid.",
		Fields:     map[string][]string{"name": {"Nama sudah ada.", "Coba lagi."}},
	}}
	svc := NewExpenseService(api, notifier{})

	_, err := svc.Create(context.Background(), core.ExpenseInput{Name: "Alat Kebersihan", Amount: 150000, Date: "2024-01-10"})

	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Nama sudah ada. Coba lagi.", FieldErrorsOf(err).Get("name"))
}

func TestExpenseService_OtherBackendErrorsPassThrough(t *testing.T) {
	api := &fakeCRUD[core.Expense]{writeErr: &rtapi.APIError{StatusCode: 500, Message: "boom"}}
	svc := NewExpenseService(api, notifier{})

	_, err := svc.Create(context.Background(), core.ExpenseInput{Name: "Sapu", Amount: 1, Date: "2024-01-10"})

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrValidation))
	var apiErr *rtapi.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.StatusCode)
}

func TestExpenseService_ListFiltersByMonth(t *testing.T) {
	api := &fakeCRUD[core.Expense]{items: []core.Expense{
		{ID: 1, Name: "Lampu", Date: "2024-01-10"},
		{ID: 2, Name: "Sapu", Date: "2024-02-01"},
	}}
	svc := NewExpenseService(api, notifier{})

	got, err := svc.List(context.Background(), core.ExpenseFilter{Month: "02"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	api := &fakeCRUD[core.Expense]{}
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewExpenseService(api, notifier{pub: pub})

	require.NoError(t, svc.Delete(context.Background(), 9))
	assert.Equal(t, []int64{9}, api.deleted)
	assert.Len(t, pub.events, 1)
}

func newHouseFixture() (*fakeCRUD[core.House], *fakeCRUD[core.InhabitantHistory], *HouseService) {
	houses := &fakeCRUD[core.House]{byID: map[int64]core.House{
		1: {ID: 1, HouseNumber: "A-01", IsOccupied: true},
		2: {ID: 2, HouseNumber: "A-02"},
	}}
	histories := &fakeCRUD[core.InhabitantHistory]{items: []core.InhabitantHistory{
		{ID: 10, ResidentID: 100, HouseID: 1, StartDate: "2023-01-01"},
		{ID: 11, ResidentID: 101, HouseID: 1, StartDate: "2022-01-01", EndDate: endDate("2022-12-31")},
	}}
	payments := &fakeCRUD[core.Payment]{items: []core.Payment{
		{ID: 50, HouseID: 1}, {ID: 51, HouseID: 2},
	}}
	residents := &fakeCRUD[core.Resident]{items: []core.Resident{
		{ID: 100, Name: "Budi"}, {ID: 101, Name: "Sari"}, {ID: 102, Name: "Joko"},
	}}
	return houses, histories, NewHouseService(houses, histories, payments, residents, notifier{})
}

func TestHouseService_DetailFetchesMissingCollections(t *testing.T) {
	_, _, svc := newHouseFixture()

	detail, err := svc.Detail(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, detail.Histories, 2)
	assert.Equal(t, "Budi", detail.Histories[0].ResidentName())
	assert.Equal(t, "Sari", detail.Histories[1].ResidentName())
	require.Len(t, detail.Payments, 1)
	assert.Equal(t, int64(50), detail.Payments[0].ID)
	assert.Equal(t, core.LabelOccupied, detail.House.OccupancyLabel())
	assert.Equal(t, "Budi", detail.House.CurrentResidentName())
}

func TestHouseService_DetailNotFound(t *testing.T) {
	_, _, svc := newHouseFixture()

	_, err := svc.Detail(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOccupancyService_AddOccupant(t *testing.T) {
	_, histories, houses := newHouseFixture()
	pub := &recordingPublisher{}
	svc := NewOccupancyService(histories, houses, notifier{pub: pub})
	histories.result = core.InhabitantHistory{ID: 12}

	t.Run("second open row for the house is rejected", func(t *testing.T) {
		_, err := svc.AddOccupant(context.Background(), 1, core.OccupancyInput{ResidentID: 102, StartDate: "2024-01-01"})
		require.ErrorIs(t, err, ErrValidation)
		require.ErrorIs(t, err, core.ErrOccupancyConflict)
		assert.Equal(t, "Rumah ini masih dihuni penghuni lain", FieldErrorsOf(err).Get("house_id"))
	})

	t.Run("resident housed elsewhere is rejected", func(t *testing.T) {
		_, err := svc.AddOccupant(context.Background(), 2, core.OccupancyInput{ResidentID: 100, StartDate: "2024-01-01"})
		require.ErrorIs(t, err, core.ErrOccupancyConflict)
		assert.True(t, FieldErrorsOf(err).Has("resident_id"))
	})

	t.Run("vacant house accepts a new occupant", func(t *testing.T) {
		detail, err := svc.AddOccupant(context.Background(), 2, core.OccupancyInput{ResidentID: 102, StartDate: "2024-01-01"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), detail.House.ID)

		sent := histories.created[len(histories.created)-1].(core.OccupancyInput)
		assert.Equal(t, int64(2), sent.HouseID)
		assert.Nil(t, sent.EndDate)
		assert.Equal(t, []published{{amqp.EntityOccupancy, amqp.ActionCreated, 12}}, pub.events)
	})

	t.Run("failed reload still reports the saved row", func(t *testing.T) {
		_, err := svc.AddOccupant(context.Background(), 3, core.OccupancyInput{ResidentID: 102, StartDate: "2024-01-01"})
		require.ErrorIs(t, err, ErrRefetch)
		assert.NotErrorIs(t, err, ErrValidation)

		sent := histories.created[len(histories.created)-1].(core.OccupancyInput)
		assert.Equal(t, int64(3), sent.HouseID)
	})
}

func TestOccupancyService_UpdateIgnoresItsOwnRow(t *testing.T) {
	_, histories, houses := newHouseFixture()
	svc := NewOccupancyService(histories, houses, notifier{})

	_, err := svc.Update(context.Background(), 10, core.OccupancyInput{ResidentID: 100, HouseID: 1, StartDate: "2023-02-01", EndDate: endDate("")})
	require.NoError(t, err)

	sent := histories.updated[10].(core.OccupancyInput)
	assert.Nil(t, sent.EndDate, "empty end date is sent as null")
}

func TestOccupancyService_UpdateRejectsEndBeforeStart(t *testing.T) {
	_, histories, houses := newHouseFixture()
	svc := NewOccupancyService(histories, houses, notifier{})

	_, err := svc.Update(context.Background(), 10, core.OccupancyInput{ResidentID: 100, HouseID: 1, StartDate: "2023-02-01", EndDate: endDate("2023-01-01")})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Tanggal keluar tidak boleh sebelum tanggal masuk", FieldErrorsOf(err).Get("end_date"))
}

func TestDashboardService_Overview(t *testing.T) {
	reports := fakeReports{summary: core.MonthlySummary{
		Monthly:        []core.MonthlyRow{{Month: "2024-01", Income: 150000, Spending: 50000, Balance: 100000}},
		TotalResidents: 4,
	}}
	houses := &fakeCRUD[core.House]{items: []core.House{{ID: 1, IsOccupied: true}, {ID: 2}, {ID: 3}}}
	svc := NewDashboardService(reports, houses, nil)

	ov, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, ov.Summary.TotalResidents)
	assert.Equal(t, core.HouseStats{Total: 3, Occupied: 1, Vacant: 2}, ov.Houses)
}

func TestDashboardService_OverviewPropagatesErrors(t *testing.T) {
	svc := NewDashboardService(fakeReports{err: errors.New("down")}, &fakeCRUD[core.House]{}, nil)

	_, err := svc.Overview(context.Background())
	assert.ErrorContains(t, err, "monthly summary")
}
