package core

import (
	"errors"
	"fmt"
)

// ErrOccupancyConflict is matched by every *OccupancyConflict.
var ErrOccupancyConflict = errors.New("occupancy conflict")

// OccupancyConflict reports an open history row that blocks a new one.
type OccupancyConflict struct {
	Field    string
	Message  string
	Existing InhabitantHistory
}

func (e *OccupancyConflict) Error() string {
	return fmt.Sprintf("occupancy conflict on %s with history %d: %s", e.Field, e.Existing.ID, e.Message)
}

func (e *OccupancyConflict) Is(target error) bool {
	return target == ErrOccupancyConflict
}

const (
	msgHouseOccupied   = "Rumah ini masih dihuni penghuni lain"
	msgResidentHoused  = "Penghuni masih tercatat menghuni rumah lain"
	msgResidentSameOne = "Penghuni sudah tercatat menghuni rumah ini"
)

// CheckOccupancy enforces that a house has at most one open row and a
// resident has at most one open row across all houses. The candidate's own
// row (same ID) is ignored so edits can be checked against the full list.
// Closed candidates never conflict.
func CheckOccupancy(existing []InhabitantHistory, candidate InhabitantHistory) error {
	if !candidate.IsOpen() {
		return nil
	}
	for _, h := range existing {
		if !h.IsOpen() || (candidate.ID != 0 && h.ID == candidate.ID) {
			continue
		}
		if h.ResidentID == candidate.ResidentID {
			msg := msgResidentHoused
			if h.HouseID == candidate.HouseID {
				msg = msgResidentSameOne
			}
			return &OccupancyConflict{Field: "resident_id", Message: msg, Existing: h}
		}
		if h.HouseID == candidate.HouseID {
			return &OccupancyConflict{Field: "house_id", Message: msgHouseOccupied, Existing: h}
		}
	}
	return nil
}

// ConflictFields converts a conflict into form errors; nil for other errors.
func ConflictFields(err error) FieldErrors {
	var c *OccupancyConflict
	if !errors.As(err, &c) {
		return nil
	}
	return FieldErrors{c.Field: c.Message}
}

// ActiveResidentIDs returns the residents that have an open row.
func ActiveResidentIDs(histories []InhabitantHistory) map[int64]int64 {
	out := make(map[int64]int64)
	for _, h := range histories {
		if h.IsOpen() {
			out[h.ResidentID] = h.HouseID
		}
	}
	return out
}

// HistoriesForHouse keeps the rows of one house, preserving order.
func HistoriesForHouse(histories []InhabitantHistory, houseID int64) []InhabitantHistory {
	out := make([]InhabitantHistory, 0)
	for _, h := range histories {
		if h.HouseID == houseID {
			out = append(out, h)
		}
	}
	return out
}

// PaymentsForHouse keeps the payments booked against one house.
func PaymentsForHouse(payments []Payment, houseID int64) []Payment {
	out := make([]Payment, 0)
	for _, p := range payments {
		if p.HouseID == houseID {
			out = append(out, p)
		}
	}
	return out
}
