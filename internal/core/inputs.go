package core

import "strings"

// Upload is a file received from a form.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type (
	// ResidentInput is the resident form. KTP is required on create only.
	ResidentInput struct {
		Creating  bool           `form:"-" json:"-"`
		Name      string         `form:"name" validate:"required"`
		Status    ResidentStatus `form:"status" validate:"oneof=tetap kontrak"`
		Phone     string         `form:"phone" validate:"required"`
		IsMarried bool           `form:"is_married"`
		HouseID   *int64         `form:"house_id"`
		KTP       *Upload        `form:"ktp_photo_file" validate:"required_if=Creating true"`
	}

	HouseInput struct {
		HouseNumber string `json:"house_number" validate:"required"`
		IsOccupied  bool   `json:"is_occupied"`
	}

	ExpenseInput struct {
		Name   string `json:"name" validate:"required"`
		Amount Rupiah `json:"amount" validate:"gt=0"`
		Date   Date   `json:"date" validate:"required"`
	}

	// OccupancyInput creates or edits an inhabitant history row.
	OccupancyInput struct {
		ResidentID int64 `json:"resident_id" validate:"gt=0"`
		HouseID    int64 `json:"house_id" validate:"gt=0"`
		StartDate  Date  `json:"start_date" validate:"required"`
		EndDate    *Date `json:"end_date"`
	}
)

var (
	residentMessages = Messages{
		"name":           "Nama wajib diisi",
		"phone":          "Nomor telepon wajib diisi",
		"status":         "Status wajib dipilih",
		"ktp_photo_file": "Foto KTP wajib diunggah",
	}
	houseMessages = Messages{
		"house_number": "Nomor rumah wajib diisi.",
	}
	expenseMessages = Messages{
		"name":   "Nama wajib diisi",
		"amount": "Nominal wajib lebih dari 0",
		"date":   "Tanggal wajib diisi",
	}
	occupancyMessages = Messages{
		"resident_id": "Penghuni wajib dipilih",
		"house_id":    "Rumah wajib dipilih",
		"start_date":  "Tanggal masuk wajib diisi",
	}
)

const msgEndBeforeStart = "Tanggal keluar tidak boleh sebelum tanggal masuk"

// Normalize trims free-text fields.
func (in *ResidentInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Status = ResidentStatus(strings.ToLower(strings.TrimSpace(string(in.Status))))
	if in.KTP != nil && len(in.KTP.Data) == 0 {
		in.KTP = nil
	}
	if in.HouseID != nil && *in.HouseID <= 0 {
		in.HouseID = nil
	}
}

func (in ResidentInput) Validate() FieldErrors {
	in.Normalize()
	return validateStruct(in, residentMessages)
}

func (in *HouseInput) Normalize() {
	in.HouseNumber = strings.TrimSpace(in.HouseNumber)
}

func (in HouseInput) Validate() FieldErrors {
	in.Normalize()
	return validateStruct(in, houseMessages)
}

func (in *ExpenseInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Date = NewDateString(string(in.Date))
}

func (in ExpenseInput) Validate() FieldErrors {
	in.Normalize()
	return validateStruct(in, expenseMessages)
}

func (in *OccupancyInput) Normalize() {
	in.StartDate = NewDateString(string(in.StartDate))
	if in.EndDate != nil {
		in.EndDate = DatePtr(string(*in.EndDate))
	}
}

func (in OccupancyInput) Validate() FieldErrors {
	in.Normalize()
	errs := validateStruct(in, occupancyMessages)
	if in.EndDate != nil && !in.StartDate.IsZero() && in.EndDate.Before(in.StartDate) {
		errs.Add("end_date", msgEndBeforeStart)
	}
	return errs
}

// History builds the row the input describes.
func (in OccupancyInput) History(id int64) InhabitantHistory {
	return InhabitantHistory{
		ID:         id,
		ResidentID: in.ResidentID,
		HouseID:    in.HouseID,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
	}
}
