package core

import "strings"

// PaymentItemDraft is one editable line of a payment.
type PaymentItemDraft struct {
	Type      PaymentItemType `json:"type" validate:"oneof=satpam kebersihan"`
	Amount    Rupiah          `json:"amount" validate:"gt=0"`
	StartDate Date            `json:"start_date" validate:"required"`
	EndDate   Date            `json:"end_date" validate:"required"`
}

// PaymentDraft is the payment editor state and, once finalized, the request
// payload. TotalAmount is never edited directly: it is always the sum of Items.
type PaymentDraft struct {
	ResidentID  int64              `json:"resident_id" validate:"gt=0"`
	TotalAmount Rupiah             `json:"total_amount"`
	Note        string             `json:"note"`
	Status      PaymentStatus      `json:"status"`
	PaymentDate Date               `json:"payment_date" validate:"required"`
	Items       []PaymentItemDraft `json:"items" validate:"min=1,dive"`
}

var paymentMessages = Messages{
	"resident_id":  "Penghuni wajib dipilih",
	"payment_date": "Tanggal wajib diisi",
	"items":        "Minimal 1 item pembayaran",
	"amount":       "Nominal harus lebih dari 0",
	"start_date":   "Tanggal mulai wajib diisi",
	"end_date":     "Tanggal akhir wajib diisi",
	"type":         "Jenis pembayaran tidak valid",
}

// NewPaymentDraft returns the create-form defaults: paid, one satpam line.
func NewPaymentDraft() PaymentDraft {
	d := PaymentDraft{Status: PaymentPaid}
	d.AddItem()
	return d
}

// DraftFromPayment seeds the editor from a stored payment.
func DraftFromPayment(p Payment) PaymentDraft {
	d := PaymentDraft{
		ResidentID:  p.ResidentID,
		Note:        p.Note,
		Status:      p.Status.Normalize(),
		PaymentDate: p.PaymentDate,
		Items:       make([]PaymentItemDraft, 0, len(p.Items)),
	}
	for _, it := range p.Items {
		d.Items = append(d.Items, PaymentItemDraft{
			Type:      it.Type,
			Amount:    it.Amount,
			StartDate: it.StartDate,
			EndDate:   it.EndDate,
		})
	}
	d.TotalAmount = d.Total()
	return d
}

// AddItem appends a blank line. The first line is a security fee, later
// ones default to cleaning.
func (d *PaymentDraft) AddItem() {
	typ := ItemKebersihan
	if len(d.Items) == 0 {
		typ = ItemSatpam
	}
	d.Items = append(d.Items, PaymentItemDraft{Type: typ})
	d.TotalAmount = d.Total()
}

// RemoveItem drops line i; out-of-range indexes are ignored.
func (d *PaymentDraft) RemoveItem(i int) {
	if i < 0 || i >= len(d.Items) {
		return
	}
	d.Items = append(d.Items[:i:i], d.Items[i+1:]...)
	d.TotalAmount = d.Total()
}

// SetItem replaces line i; out-of-range indexes are ignored.
func (d *PaymentDraft) SetItem(i int, item PaymentItemDraft) {
	if i < 0 || i >= len(d.Items) {
		return
	}
	d.Items[i] = item
	d.TotalAmount = d.Total()
}

// Total is the sum of the line amounts.
func (d PaymentDraft) Total() Rupiah {
	var total Rupiah
	for _, it := range d.Items {
		total += it.Amount
	}
	return total
}

// Finalize normalizes the draft and recomputes the total for submission.
func (d PaymentDraft) Finalize() PaymentDraft {
	d.Note = strings.TrimSpace(d.Note)
	d.Status = d.Status.Normalize()
	if d.Status == "" {
		d.Status = PaymentPaid
	}
	d.PaymentDate = NewDateString(string(d.PaymentDate))
	items := make([]PaymentItemDraft, len(d.Items))
	for i, it := range d.Items {
		it.StartDate = NewDateString(string(it.StartDate))
		it.EndDate = NewDateString(string(it.EndDate))
		items[i] = it
	}
	d.Items = items
	d.TotalAmount = d.Total()
	return d
}

// Validate checks the payment and each line independently.
func (d PaymentDraft) Validate() FieldErrors {
	d = d.Finalize()
	return validateStruct(d, paymentMessages)
}
