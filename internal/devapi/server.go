// Package devapi serves the RT REST contract from the sqlite store, for
// local development and end-to-end tests of the console.
package devapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"rtadmin/internal/core"
	applog "rtadmin/internal/log"
	"rtadmin/internal/storage"
)

// Store is the persistence the API needs; *storage.SQLiteRepository implements it.
type Store interface {
	ListResidents(ctx context.Context) ([]core.Resident, error)
	ListActiveResidents(ctx context.Context) ([]core.Resident, error)
	GetResident(ctx context.Context, id int64) (core.Resident, error)
	CreateResident(ctx context.Context, rec storage.ResidentRecord) (core.Resident, error)
	UpdateResident(ctx context.Context, id int64, rec storage.ResidentRecord) (core.Resident, error)
	DeleteResident(ctx context.Context, id int64) error
	KTPPhotoPath(ctx context.Context, id int64) (string, error)

	ListHouses(ctx context.Context) ([]core.House, error)
	GetHouse(ctx context.Context, id int64) (core.House, error)
	CreateHouse(ctx context.Context, rec storage.HouseRecord) (core.House, error)
	UpdateHouse(ctx context.Context, id int64, rec storage.HouseRecord) (core.House, error)
	DeleteHouse(ctx context.Context, id int64) error

	ListHistories(ctx context.Context) ([]core.InhabitantHistory, error)
	GetHistory(ctx context.Context, id int64) (core.InhabitantHistory, error)
	CreateHistory(ctx context.Context, h core.InhabitantHistory) (core.InhabitantHistory, error)
	UpdateHistory(ctx context.Context, id int64, h core.InhabitantHistory) (core.InhabitantHistory, error)
	DeleteHistory(ctx context.Context, id int64) error

	ListPayments(ctx context.Context) ([]core.Payment, error)
	GetPayment(ctx context.Context, id int64) (core.Payment, error)
	CreatePayment(ctx context.Context, d core.PaymentDraft) (core.Payment, error)
	UpdatePayment(ctx context.Context, id int64, d core.PaymentDraft) (core.Payment, error)
	DeletePayment(ctx context.Context, id int64) error

	ListExpenses(ctx context.Context) ([]core.Expense, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	CreateExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error)
	UpdateExpense(ctx context.Context, id int64, in core.ExpenseInput) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error

	MonthlySummary(ctx context.Context) (core.MonthlySummary, error)
}

const (
	msgNotFound       = "Data tidak ditemukan"
	msgInvalid        = "Data yang diberikan tidak valid."
	msgServerError    = "Terjadi kesalahan pada server"
	msgDuplicateHouse = "Nomor rumah sudah digunakan."
	maxUploadBytes    = 8 << 20
)

// Server is the dev backend's http.Handler. API routes live under /api and
// uploaded files under /storage/.
type Server struct {
	store  Store
	files  *FileStore
	logger *applog.Logger
	mux    *http.ServeMux
}

// New builds the handler. storageDir holds uploaded KTP photos.
func New(store Store, storageDir string, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	s := &Server{
		store:  store,
		files:  NewFileStore(storageDir),
		logger: logger.WithComponent(applog.ComponentDevAPI),
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/residents", s.listResidents)
	s.mux.HandleFunc("GET /api/residents/{id}", s.getResident)
	s.mux.HandleFunc("GET /api/active-residents", s.listActiveResidents)
	s.mux.HandleFunc("POST /api/residents", s.createResident)
	s.mux.HandleFunc("POST /api/residents/{id}", s.updateResident)
	s.mux.HandleFunc("DELETE /api/residents/{id}", s.deleteResident)

	s.mux.HandleFunc("GET /api/houses", s.listHouses)
	s.mux.HandleFunc("GET /api/houses/{id}", s.getHouse)
	s.mux.HandleFunc("POST /api/houses", s.createHouse)
	s.mux.HandleFunc("PUT /api/houses/{id}", s.updateHouse)
	s.mux.HandleFunc("DELETE /api/houses/{id}", s.deleteHouse)

	s.mux.HandleFunc("GET /api/inhabitant-histories", s.listHistories)
	s.mux.HandleFunc("GET /api/inhabitant-histories/{id}", s.getHistory)
	s.mux.HandleFunc("POST /api/inhabitant-histories", s.createHistory)
	s.mux.HandleFunc("PUT /api/inhabitant-histories/{id}", s.updateHistory)
	s.mux.HandleFunc("DELETE /api/inhabitant-histories/{id}", s.deleteHistory)

	s.mux.HandleFunc("GET /api/payments", s.listPayments)
	s.mux.HandleFunc("GET /api/payments/{id}", s.getPayment)
	s.mux.HandleFunc("POST /api/payments", s.createPayment)
	s.mux.HandleFunc("PUT /api/payments/{id}", s.updatePayment)
	s.mux.HandleFunc("DELETE /api/payments/{id}", s.deletePayment)

	s.mux.HandleFunc("GET /api/expenses", s.listExpenses)
	s.mux.HandleFunc("GET /api/expenses/{id}", s.getExpense)
	s.mux.HandleFunc("POST /api/expenses", s.createExpense)
	s.mux.HandleFunc("PUT /api/expenses/{id}", s.updateExpense)
	s.mux.HandleFunc("DELETE /api/expenses/{id}", s.deleteExpense)

	s.mux.HandleFunc("GET /api/report/monthly-summary", s.monthlySummary)

	s.mux.Handle("GET /storage/", http.StripPrefix("/storage/", s.files.Handler()))
}

type envelope struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

type errorBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, envelope{Message: msg, Data: data})
}

func writeInvalid(w http.ResponseWriter, fields core.FieldErrors) {
	writeJSON(w, http.StatusUnprocessableEntity, errorBody{Message: msgInvalid, Errors: fields.ToMap()})
}

// fail maps store errors onto the REST error shapes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Message: msgNotFound})
	case errors.Is(err, core.ErrOccupancyConflict):
		writeInvalid(w, core.ConflictFields(err))
	case errors.Is(err, storage.ErrDuplicateHouse):
		writeInvalid(w, core.FieldErrors{"house_number": msgDuplicateHouse})
	default:
		s.logger.ErrorContext(r.Context(), "Request failed",
			applog.FieldOperation, op,
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: msgServerError})
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := core.ParseID(r.PathValue("id"))
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusNotFound, errorBody{Message: msgNotFound})
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "Body JSON tidak valid: " + strings.TrimSpace(err.Error())})
		return false
	}
	return true
}
