package devapi

import (
	"net/http"

	"rtadmin/internal/core"
	applog "rtadmin/internal/log"
	"rtadmin/internal/storage"
)

func (s *Server) listHouses(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListHouses(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	writeData(w, http.StatusOK, "", list)
}

func (s *Server) getHouse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h, err := s.store.GetHouse(r.Context(), id)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	writeData(w, http.StatusOK, "", h)
}

func (s *Server) houseInput(w http.ResponseWriter, r *http.Request) (storage.HouseRecord, bool) {
	var in struct {
		HouseNumber string    `json:"house_number"`
		IsOccupied  core.Flag `json:"is_occupied"`
	}
	if !decodeJSON(w, r, &in) {
		return storage.HouseRecord{}, false
	}
	form := core.HouseInput{HouseNumber: in.HouseNumber, IsOccupied: bool(in.IsOccupied)}
	form.Normalize()
	if errs := form.Validate(); len(errs) > 0 {
		writeInvalid(w, errs)
		return storage.HouseRecord{}, false
	}
	return storage.HouseRecord{HouseNumber: form.HouseNumber, IsOccupied: form.IsOccupied}, true
}

func (s *Server) createHouse(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.houseInput(w, r)
	if !ok {
		return
	}
	h, err := s.store.CreateHouse(r.Context(), rec)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	writeData(w, http.StatusCreated, "Rumah berhasil ditambahkan", h)
}

func (s *Server) updateHouse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, ok := s.houseInput(w, r)
	if !ok {
		return
	}
	h, err := s.store.UpdateHouse(r.Context(), id, rec)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	writeData(w, http.StatusOK, "Rumah berhasil diperbarui", h)
}

func (s *Server) deleteHouse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteHouse(r.Context(), id); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	writeData(w, http.StatusOK, "Rumah berhasil dihapus", nil)
}

func (s *Server) listHistories(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListHistories(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	writeData(w, http.StatusOK, "", list)
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h, err := s.store.GetHistory(r.Context(), id)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	writeData(w, http.StatusOK, "", h)
}

func historyInput(w http.ResponseWriter, r *http.Request) (core.OccupancyInput, bool) {
	var in core.OccupancyInput
	if !decodeJSON(w, r, &in) {
		return in, false
	}
	in.Normalize()
	if errs := in.Validate(); len(errs) > 0 {
		writeInvalid(w, errs)
		return in, false
	}
	return in, true
}

func (s *Server) createHistory(w http.ResponseWriter, r *http.Request) {
	in, ok := historyInput(w, r)
	if !ok {
		return
	}
	h, err := s.store.CreateHistory(r.Context(), in.History(0))
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	writeData(w, http.StatusCreated, "Riwayat penghuni berhasil ditambahkan", h)
}

func (s *Server) updateHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	in, ok := historyInput(w, r)
	if !ok {
		return
	}
	h, err := s.store.UpdateHistory(r.Context(), id, in.History(id))
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	writeData(w, http.StatusOK, "Riwayat penghuni berhasil diperbarui", h)
}

func (s *Server) deleteHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteHistory(r.Context(), id); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	writeData(w, http.StatusOK, "Riwayat penghuni berhasil dihapus", nil)
}

func (s *Server) listPayments(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListPayments(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	writeData(w, http.StatusOK, "", list)
}

func (s *Server) getPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := s.store.GetPayment(r.Context(), id)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	writeData(w, http.StatusOK, "", p)
}

// paymentInput decodes the payment; total_amount in the body is ignored in
// favour of the item sum.
func paymentInput(w http.ResponseWriter, r *http.Request) (core.PaymentDraft, bool) {
	var d core.PaymentDraft
	if !decodeJSON(w, r, &d) {
		return d, false
	}
	d = d.Finalize()
	errs := d.Validate()
	if d.Status != core.PaymentPaid && d.Status != core.PaymentUnpaid {
		errs.Add("status", "Status pembayaran tidak valid")
	}
	if len(errs) > 0 {
		writeInvalid(w, errs)
		return d, false
	}
	return d, true
}

func (s *Server) createPayment(w http.ResponseWriter, r *http.Request) {
	d, ok := paymentInput(w, r)
	if !ok {
		return
	}
	p, err := s.store.CreatePayment(r.Context(), d)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	writeData(w, http.StatusCreated, "Pembayaran berhasil ditambahkan", p)
}

func (s *Server) updatePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, ok := paymentInput(w, r)
	if !ok {
		return
	}
	p, err := s.store.UpdatePayment(r.Context(), id, d)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	writeData(w, http.StatusOK, "Pembayaran berhasil diperbarui", p)
}

func (s *Server) deletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeletePayment(r.Context(), id); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	writeData(w, http.StatusOK, "Pembayaran berhasil dihapus", nil)
}

func (s *Server) listExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListExpenses(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	writeData(w, http.StatusOK, "", list)
}

func (s *Server) getExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := s.store.GetExpense(r.Context(), id)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	writeData(w, http.StatusOK, "", e)
}

func expenseInput(w http.ResponseWriter, r *http.Request) (core.ExpenseInput, bool) {
	var in core.ExpenseInput
	if !decodeJSON(w, r, &in) {
		return in, false
	}
	in.Normalize()
	if errs := in.Validate(); len(errs) > 0 {
		writeInvalid(w, errs)
		return in, false
	}
	return in, true
}

func (s *Server) createExpense(w http.ResponseWriter, r *http.Request) {
	in, ok := expenseInput(w, r)
	if !ok {
		return
	}
	e, err := s.store.CreateExpense(r.Context(), in)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	writeData(w, http.StatusCreated, "Pengeluaran berhasil ditambahkan", e)
}

func (s *Server) updateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	in, ok := expenseInput(w, r)
	if !ok {
		return
	}
	e, err := s.store.UpdateExpense(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	writeData(w, http.StatusOK, "Pengeluaran berhasil diperbarui", e)
}

func (s *Server) deleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteExpense(r.Context(), id); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	writeData(w, http.StatusOK, "Pengeluaran berhasil dihapus", nil)
}

func (s *Server) monthlySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.MonthlySummary(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	writeData(w, http.StatusOK, "", summary)
}
