package core

import (
	"errors"
	"strings"
)

const (
	StatusTetap   ResidentStatus = "tetap"
	StatusKontrak ResidentStatus = "kontrak"

	PaymentPaid   PaymentStatus = "lunas"
	PaymentUnpaid PaymentStatus = "belum lunas"

	ItemSatpam     PaymentItemType = "satpam"
	ItemKebersihan PaymentItemType = "kebersihan"
)

type (
	ResidentStatus  string
	PaymentStatus   string
	PaymentItemType string

	Resident struct {
		ID        int64          `json:"id"`
		Name      string         `json:"name"`
		KTPPhoto  string         `json:"ktp_photo"`
		Status    ResidentStatus `json:"status"`
		Phone     string         `json:"phone"`
		IsMarried Flag           `json:"is_married"`
		HouseID   *int64         `json:"house_id,omitempty"`
		House     *House         `json:"house,omitempty"`
		StartDate *Date          `json:"start_date,omitempty"`
	}

	House struct {
		ID          int64               `json:"id"`
		HouseNumber string              `json:"house_number"`
		IsOccupied  Flag                `json:"is_occupied"`
		Payments    []Payment           `json:"payments,omitempty"`
		Histories   []InhabitantHistory `json:"inhabitant_histories,omitempty"`
	}

	// InhabitantHistory links a resident to a house for [StartDate, EndDate].
	// A nil EndDate marks the row as the current occupancy.
	InhabitantHistory struct {
		ID         int64     `json:"id"`
		ResidentID int64     `json:"resident_id"`
		Resident   *Resident `json:"resident,omitempty"`
		HouseID    int64     `json:"house_id"`
		House      *House    `json:"house,omitempty"`
		StartDate  Date      `json:"start_date"`
		EndDate    *Date     `json:"end_date"`
	}

	Payment struct {
		ID          int64         `json:"id"`
		ResidentID  int64         `json:"resident_id"`
		Resident    *Resident     `json:"resident,omitempty"`
		HouseID     int64         `json:"house_id"`
		House       *House        `json:"house,omitempty"`
		TotalAmount Rupiah        `json:"total_amount"`
		Note        string        `json:"note"`
		Status      PaymentStatus `json:"status"`
		PaymentDate Date          `json:"payment_date"`
		Items       []PaymentItem `json:"payment_items"`
	}

	PaymentItem struct {
		ID        int64           `json:"id"`
		Type      PaymentItemType `json:"type"`
		Amount    Rupiah          `json:"amount"`
		StartDate Date            `json:"start_date"`
		EndDate   Date            `json:"end_date"`
	}

	Expense struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		Amount Rupiah `json:"amount"`
		Date   Date   `json:"date"`
	}
)

var (
	ErrInvalidStatus   = errors.New("invalid resident status")
	ErrInvalidItemType = errors.New("invalid payment item type")
)

func (s ResidentStatus) Valid() bool {
	return s == StatusTetap || s == StatusKontrak
}

// Label is the display form used in badges.
func (s ResidentStatus) Label() string {
	switch s {
	case StatusTetap:
		return "Tetap"
	case StatusKontrak:
		return "Kontrak"
	default:
		return string(s)
	}
}

// Normalize lower-cases the status; the backend reads "Lunas" but writes expect "lunas".
func (s PaymentStatus) Normalize() PaymentStatus {
	return PaymentStatus(strings.ToLower(strings.TrimSpace(string(s))))
}

func (s PaymentStatus) Paid() bool {
	return s.Normalize() == PaymentPaid
}

func (s PaymentStatus) Label() string {
	switch s.Normalize() {
	case PaymentPaid:
		return "Lunas"
	case PaymentUnpaid:
		return "Belum Lunas"
	default:
		return string(s)
	}
}

func (t PaymentItemType) Valid() bool {
	return t == ItemSatpam || t == ItemKebersihan
}

func (t PaymentItemType) Label() string {
	switch t {
	case ItemSatpam:
		return "Satpam"
	case ItemKebersihan:
		return "Kebersihan"
	default:
		return string(t)
	}
}

// MaritalLabel renders the is_married flag.
func (r Resident) MaritalLabel() string {
	if r.IsMarried {
		return "Menikah"
	}
	return "Belum Menikah"
}

// HouseNumber returns the number of the resident's current house, or "-".
func (r Resident) HouseNumber() string {
	if r.House == nil || r.House.HouseNumber == "" {
		return "-"
	}
	return r.House.HouseNumber
}

// IsOpen reports whether the row describes a current occupancy.
func (h InhabitantHistory) IsOpen() bool {
	return h.EndDate == nil || h.EndDate.IsZero()
}

// PeriodLabel renders "start – end", using "Sekarang" for open rows.
func (h InhabitantHistory) PeriodLabel() string {
	end := "Sekarang"
	if !h.IsOpen() {
		end = h.EndDate.String()
	}
	return h.StartDate.String() + " – " + end
}

// ResidentName returns the linked resident's name, or "-".
func (h InhabitantHistory) ResidentName() string {
	if h.Resident == nil {
		return "-"
	}
	return h.Resident.Name
}

func (p Payment) ResidentName() string {
	if p.Resident == nil {
		return "-"
	}
	return p.Resident.Name
}

func (p Payment) HouseNumber() string {
	if p.House == nil || p.House.HouseNumber == "" {
		return "-"
	}
	return p.House.HouseNumber
}

// ItemsTotal sums the payment's line items.
func (p Payment) ItemsTotal() Rupiah {
	var total Rupiah
	for _, it := range p.Items {
		total += it.Amount
	}
	return total
}
