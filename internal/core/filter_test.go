package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleResidents() []Resident {
	return []Resident{
		{ID: 1, Name: "Budi Santoso", Status: StatusTetap},
		{ID: 2, Name: "Siti Aminah", Status: StatusKontrak},
		{ID: 3, Name: "budiman", Status: StatusKontrak},
	}
}

func TestFilterResidents(t *testing.T) {
	rs := sampleResidents()

	t.Run("empty search returns everything", func(t *testing.T) {
		assert.Equal(t, rs, FilterResidents(rs, ResidentFilter{}))
		assert.Equal(t, rs, FilterResidents(rs, ResidentFilter{Status: FilterAll}))
	})

	t.Run("case-insensitive substring keeps order", func(t *testing.T) {
		got := FilterResidents(rs, ResidentFilter{Query: "BUDI"})
		assert.Equal(t, []int64{1, 3}, residentIDs(got))
	})

	t.Run("status narrows the result", func(t *testing.T) {
		got := FilterResidents(rs, ResidentFilter{Query: "budi", Status: "kontrak"})
		assert.Equal(t, []int64{3}, residentIDs(got))
	})

	t.Run("unknown status yields nothing", func(t *testing.T) {
		assert.Empty(t, FilterResidents(rs, ResidentFilter{Status: "pensiun"}))
	})
}

func TestFilterHouses(t *testing.T) {
	houses := []House{
		{ID: 1, HouseNumber: "A-01", Histories: []InhabitantHistory{{StartDate: "2024-01-01"}}},
		{ID: 2, HouseNumber: "A-02", Histories: []InhabitantHistory{}},
		{ID: 3, HouseNumber: "B-01", IsOccupied: true},
	}

	assert.Len(t, FilterHouses(houses, HouseFilter{}), 3)
	assert.Len(t, FilterHouses(houses, HouseFilter{Query: "a-0"}), 2)

	occupied := FilterHouses(houses, HouseFilter{Occupancy: OccupancyOccupied})
	assert.Equal(t, []int64{1, 3}, houseIDs(occupied))

	vacant := FilterHouses(houses, HouseFilter{Occupancy: OccupancyVacant})
	assert.Equal(t, []int64{2}, houseIDs(vacant))

	assert.Empty(t, FilterHouses(houses, HouseFilter{Occupancy: "renovasi"}))
}

func TestFilterExpenses(t *testing.T) {
	expenses := []Expense{
		{ID: 1, Name: "Alat Kebersihan", Amount: 150000, Date: "2024-01-10"},
		{ID: 2, Name: "Gaji Satpam", Amount: 1500000, Date: "2024-02-01"},
		{ID: 3, Name: "Lampu Jalan", Amount: 250000, Date: "2024-01-25"},
	}

	assert.Equal(t, expenses, FilterExpenses(expenses, ExpenseFilter{}))
	assert.Equal(t, []int64{1, 3}, expenseIDs(FilterExpenses(expenses, ExpenseFilter{Month: "01"})))
	assert.Equal(t, []int64{2}, expenseIDs(FilterExpenses(expenses, ExpenseFilter{Query: "satpam"})))
	assert.Empty(t, FilterExpenses(expenses, ExpenseFilter{Month: "13"}))
	assert.Empty(t, FilterExpenses(expenses, ExpenseFilter{Query: "listrik"}))
}

func TestFilterEmptyCollections(t *testing.T) {
	assert.NotNil(t, FilterResidents(nil, ResidentFilter{}))
	assert.Empty(t, FilterHouses(nil, HouseFilter{Occupancy: OccupancyVacant}))
}

func residentIDs(rs []Resident) []int64 {
	out := make([]int64, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func houseIDs(hs []House) []int64 {
	out := make([]int64, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.ID)
	}
	return out
}

func expenseIDs(es []Expense) []int64 {
	out := make([]int64, 0, len(es))
	for _, e := range es {
		out = append(out, e.ID)
	}
	return out
}
