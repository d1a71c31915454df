package core

import (
	"strings"

	"golang.org/x/text/cases"
)

// FilterAll is the categorical value that disables a filter.
const FilterAll = "all"

const (
	OccupancyOccupied = "occupied"
	OccupancyVacant   = "vacant"
)

type (
	ResidentFilter struct {
		Query  string
		Status string
	}

	HouseFilter struct {
		Query     string
		Occupancy string
	}

	ExpenseFilter struct {
		Query string
		Month string
	}
)

// FilterResidents keeps residents whose name contains the query (case-insensitive)
// and whose status matches. Backend order is preserved.
func FilterResidents(residents []Resident, f ResidentFilter) []Resident {
	match := containsFold(f.Query)
	out := make([]Resident, 0, len(residents))
	for _, r := range residents {
		if !match(r.Name) {
			continue
		}
		if !isAll(f.Status) && string(r.Status) != f.Status {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FilterHouses matches on house number and derived occupancy.
func FilterHouses(houses []House, f HouseFilter) []House {
	match := containsFold(f.Query)
	out := make([]House, 0, len(houses))
	for _, h := range houses {
		if !match(h.HouseNumber) {
			continue
		}
		switch {
		case isAll(f.Occupancy):
		case f.Occupancy == OccupancyOccupied && h.Occupied():
		case f.Occupancy == OccupancyVacant && !h.Occupied():
		default:
			continue
		}
		out = append(out, h)
	}
	return out
}

// FilterExpenses matches on name and the two-digit month of the expense date.
func FilterExpenses(expenses []Expense, f ExpenseFilter) []Expense {
	match := containsFold(f.Query)
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if !match(e.Name) {
			continue
		}
		if !isAll(f.Month) && e.Date.Month() != f.Month {
			continue
		}
		out = append(out, e)
	}
	return out
}

func isAll(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == FilterAll
}

// containsFold returns a case-insensitive substring predicate. A Caser keeps
// state, so each call gets its own.
func containsFold(query string) func(string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return func(string) bool { return true }
	}
	fold := cases.Fold()
	needle := fold.String(query)
	return func(s string) bool {
		return strings.Contains(fold.String(s), needle)
	}
}
