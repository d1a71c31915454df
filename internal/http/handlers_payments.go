package http

import (
	"context"
	"net/http"

	"rtadmin/internal/core"
	applog "rtadmin/internal/log"
)

// paymentEditor feeds the "payment_items" partial.
type paymentEditor struct {
	Draft  core.PaymentDraft
	Errors core.FieldErrors
}

type paymentForm struct {
	ID        int64
	Editor    paymentEditor
	Residents []core.Resident
}

func (s *Server) handlePayments(w http.ResponseWriter, r *http.Request) {
	payments, err := s.svc.Payments.List(r.Context())
	if isHTMX(r) {
		if err != nil {
			s.logBackendError(r, "Payment list failed", applog.ComponentPayment, applog.OpList, err)
			NewHTMXResponse().
				Status(http.StatusBadGateway).
				Reswap("none").
				TriggerErrorNotification("Gagal memuat data pembayaran").
				Write(w)
			return
		}
		s.views.partial(w, r, http.StatusOK, "payments_table", payments)
		return
	}

	v := view{Title: "Pembayaran", Nav: "payments", Data: payments}
	status := http.StatusOK
	if err != nil {
		s.logBackendError(r, "Payment list failed", applog.ComponentPayment, applog.OpList, err)
		v.Alert = "Gagal memuat data pembayaran"
		status = http.StatusBadGateway
	}
	s.views.page(w, r, status, "payments", v)
}

func (s *Server) handleNewPayment(w http.ResponseWriter, r *http.Request) {
	form := paymentForm{Editor: paymentEditor{Draft: core.NewPaymentDraft()}}
	s.renderPaymentForm(w, r, http.StatusOK, form, nil, "")
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	draft := ParsePaymentDraft(r.PostForm)

	created, err := s.svc.Payments.Create(r.Context(), draft)
	if err != nil {
		s.paymentSaveFailed(w, r, paymentForm{Editor: paymentEditor{Draft: draft}}, nil, err)
		return
	}

	s.countMutation()
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Payment created",
		applog.FieldComponent, applog.ComponentPayment,
		applog.FieldEntityID, created.ID,
		applog.FieldResidentID, created.ResidentID,
		applog.FieldAmount, created.TotalAmount.Int64())
	redirect(w, r, "/payments", successFlash("Pembayaran berhasil ditambahkan"))
}

// handlePaymentDraft applies one editor op (add, remove or recalc) to the
// posted form and returns the refreshed item list. Nothing is saved.
func (s *Server) handlePaymentDraft(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	draft := ParsePaymentDraft(r.PostForm)
	ParseDraftOp(r.PostForm).Apply(&draft)
	s.views.partial(w, r, http.StatusOK, "payment_items", paymentEditor{Draft: draft})
}

func (s *Server) handleEditPayment(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	payment, err := s.svc.Payments.Get(r.Context(), id)
	if err != nil {
		s.logBackendError(r, "Payment load failed", applog.ComponentPayment, applog.OpRead, err)
		redirect(w, r, "/payments", errorFlash("Pembayaran tidak ditemukan"))
		return
	}
	form := paymentForm{ID: id, Editor: paymentEditor{Draft: core.DraftFromPayment(payment)}}
	s.renderPaymentForm(w, r, http.StatusOK, form, payment.Resident, "")
}

func (s *Server) handleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	draft := ParsePaymentDraft(r.PostForm)

	if _, err := s.svc.Payments.Update(r.Context(), id, draft); err != nil {
		var payer *core.Resident
		if current, getErr := s.svc.Payments.Get(r.Context(), id); getErr == nil {
			payer = current.Resident
		}
		s.paymentSaveFailed(w, r, paymentForm{ID: id, Editor: paymentEditor{Draft: draft}}, payer, err)
		return
	}

	s.countMutation()
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Payment updated",
		applog.FieldComponent, applog.ComponentPayment,
		applog.FieldEntityID, id)
	redirect(w, r, "/payments", successFlash("Pembayaran berhasil diperbarui"))
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	s.deleteRow(w, r, applog.ComponentPayment,
		func(ctx context.Context) error { return s.svc.Payments.Delete(ctx, id) },
		"Pembayaran berhasil dihapus", "Gagal menghapus pembayaran")
}

func (s *Server) paymentSaveFailed(w http.ResponseWriter, r *http.Request, form paymentForm, payer *core.Resident, err error) {
	if fields, ok := s.formErrors(r, applog.ComponentPayment, err); ok {
		form.Editor.Errors = fields
		s.renderPaymentForm(w, r, http.StatusUnprocessableEntity, form, payer, "")
		return
	}
	s.renderPaymentForm(w, r, http.StatusBadGateway, form, payer, "Gagal menyimpan pembayaran")
}

// renderPaymentForm offers the active residents. When editing a payment of
// a resident who has since moved out, that resident is kept selectable.
func (s *Server) renderPaymentForm(w http.ResponseWriter, r *http.Request, status int, form paymentForm, payer *core.Resident, alert string) {
	residents, err := s.svc.Payments.ActiveResidents(r.Context())
	if err != nil {
		s.logBackendError(r, "Active residents load failed", applog.ComponentPayment, applog.OpList, err)
	}
	if payer != nil && !containsResident(residents, payer.ID) {
		residents = append(residents, *payer)
	}
	form.Residents = residents

	title := "Tambah Pembayaran"
	if form.ID != 0 {
		title = "Ubah Pembayaran"
	}
	s.views.page(w, r, status, "payment_form", view{
		Title: title,
		Nav:   "payments",
		Alert: alert,
		Data:  form,
	})
}

func containsResident(residents []core.Resident, id int64) bool {
	for _, r := range residents {
		if r.ID == id {
			return true
		}
	}
	return false
}
