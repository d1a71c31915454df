package http

import (
	"context"
	"net/http"

	"rtadmin/internal/core"
	applog "rtadmin/internal/log"
)

type expenseForm struct {
	ID     int64
	Input  core.ExpenseInput
	Errors core.FieldErrors
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	filter := ParseExpenseFilter(r.URL.Query())
	expenses, err := s.svc.Expenses.List(r.Context(), filter)

	if isHTMX(r) {
		if err != nil {
			s.logBackendError(r, "Expense list failed", applog.ComponentExpense, applog.OpList, err)
			NewHTMXResponse().
				Status(http.StatusBadGateway).
				Reswap("none").
				TriggerErrorNotification("Gagal memuat data pengeluaran").
				Write(w)
			return
		}
		s.views.partial(w, r, http.StatusOK, "expenses_table", expenses)
		return
	}

	v := view{Title: "Pengeluaran", Nav: "expenses"}
	status := http.StatusOK
	if err != nil {
		s.logBackendError(r, "Expense list failed", applog.ComponentExpense, applog.OpList, err)
		v.Alert = "Gagal memuat data pengeluaran"
		status = http.StatusBadGateway
	}
	v.Data = struct {
		Filter   core.ExpenseFilter
		Months   []core.MonthOption
		Expenses []core.Expense
	}{filter, core.MonthOptions(), expenses}
	s.views.page(w, r, status, "expenses", v)
}

func (s *Server) handleNewExpense(w http.ResponseWriter, r *http.Request) {
	s.renderExpenseForm(w, r, http.StatusOK, expenseForm{}, "")
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	in := ParseExpenseForm(r.PostForm)

	created, err := s.svc.Expenses.Create(r.Context(), in)
	if err != nil {
		s.expenseSaveFailed(w, r, expenseForm{Input: in}, err)
		return
	}

	s.countMutation()
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Expense created",
		applog.FieldComponent, applog.ComponentExpense,
		applog.FieldEntityID, created.ID,
		applog.FieldAmount, created.Amount.Int64())
	redirect(w, r, "/expenses", successFlash("Pengeluaran berhasil ditambahkan"))
}

func (s *Server) handleEditExpense(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	expense, err := s.svc.Expenses.Get(r.Context(), id)
	if err != nil {
		s.logBackendError(r, "Expense load failed", applog.ComponentExpense, applog.OpRead, err)
		redirect(w, r, "/expenses", errorFlash("Pengeluaran tidak ditemukan"))
		return
	}
	form := expenseForm{
		ID: id,
		Input: core.ExpenseInput{
			Name:   expense.Name,
			Amount: expense.Amount,
			Date:   expense.Date,
		},
	}
	s.renderExpenseForm(w, r, http.StatusOK, form, "")
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	in := ParseExpenseForm(r.PostForm)

	if _, err := s.svc.Expenses.Update(r.Context(), id, in); err != nil {
		s.expenseSaveFailed(w, r, expenseForm{ID: id, Input: in}, err)
		return
	}

	s.countMutation()
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Expense updated",
		applog.FieldComponent, applog.ComponentExpense,
		applog.FieldEntityID, id)
	redirect(w, r, "/expenses", successFlash("Pengeluaran berhasil diperbarui"))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	s.deleteRow(w, r, applog.ComponentExpense,
		func(ctx context.Context) error { return s.svc.Expenses.Delete(ctx, id) },
		"Pengeluaran berhasil dihapus", "Gagal menghapus pengeluaran")
}

func (s *Server) expenseSaveFailed(w http.ResponseWriter, r *http.Request, form expenseForm, err error) {
	if fields, ok := s.formErrors(r, applog.ComponentExpense, err); ok {
		form.Errors = fields
		s.renderExpenseForm(w, r, http.StatusUnprocessableEntity, form, "")
		return
	}
	s.renderExpenseForm(w, r, http.StatusBadGateway, form, "Gagal menyimpan pengeluaran")
}

func (s *Server) renderExpenseForm(w http.ResponseWriter, r *http.Request, status int, form expenseForm, alert string) {
	title := "Tambah Pengeluaran"
	if form.ID != 0 {
		title = "Ubah Pengeluaran"
	}
	s.views.page(w, r, status, "expense_form", view{Title: title, Nav: "expenses", Alert: alert, Data: form})
}
