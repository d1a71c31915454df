package core

const (
	LabelOccupied = "Dihuni"
	LabelVacant   = "Kosong"
)

// HouseStats is the summary shown above the houses grid.
type HouseStats struct {
	Total    int
	Occupied int
	Vacant   int
}

// Occupied derives occupancy from the loaded history rows. The stored
// is_occupied flag is only consulted when no histories were loaded.
func (h House) Occupied() bool {
	if h.Histories == nil {
		return bool(h.IsOccupied)
	}
	return h.hasOpenHistory()
}

// FlagConsistent reports whether the stored flag agrees with the history rows.
func (h House) FlagConsistent() bool {
	if h.Histories == nil {
		return true
	}
	return bool(h.IsOccupied) == h.hasOpenHistory()
}

func (h House) OccupancyLabel() string {
	if h.Occupied() {
		return LabelOccupied
	}
	return LabelVacant
}

// CurrentHistory returns the open history row, if any.
func (h House) CurrentHistory() (InhabitantHistory, bool) {
	for _, hist := range h.Histories {
		if hist.IsOpen() {
			return hist, true
		}
	}
	return InhabitantHistory{}, false
}

// CurrentResidentName is the occupant of the open row, or "-".
func (h House) CurrentResidentName() string {
	if hist, ok := h.CurrentHistory(); ok {
		return hist.ResidentName()
	}
	return "-"
}

func (h House) hasOpenHistory() bool {
	_, ok := h.CurrentHistory()
	return ok
}

// ComputeHouseStats counts houses by derived occupancy.
func ComputeHouseStats(houses []House) HouseStats {
	stats := HouseStats{Total: len(houses)}
	for _, h := range houses {
		if h.Occupied() {
			stats.Occupied++
		}
	}
	stats.Vacant = stats.Total - stats.Occupied
	return stats
}
