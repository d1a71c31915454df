package http

import (
	"context"
	"errors"
	"net/http"

	"rtadmin/internal/core"
	applog "rtadmin/internal/log"
	"rtadmin/internal/services"
)

type houseForm struct {
	ID     int64
	Input  core.HouseInput
	Errors core.FieldErrors
}

// occupancyView feeds the "occupancy" partial on the house detail page.
type occupancyView struct {
	Detail    services.HouseDetail
	Residents []core.Resident
	Input     core.OccupancyInput
	Errors    core.FieldErrors
}

type historyForm struct {
	ID        int64
	Input     core.OccupancyInput
	Errors    core.FieldErrors
	Residents []core.Resident
	Houses    []core.House
}

func (s *Server) handleHouses(w http.ResponseWriter, r *http.Request) {
	filter := ParseHouseFilter(r.URL.Query())
	houses, stats, err := s.svc.Houses.List(r.Context(), filter)
	grid := struct {
		Stats  core.HouseStats
		Houses []core.House
	}{stats, houses}

	if isHTMX(r) {
		if err != nil {
			s.logBackendError(r, "House list failed", applog.ComponentHouse, applog.OpList, err)
			NewHTMXResponse().
				Status(http.StatusBadGateway).
				Reswap("none").
				TriggerErrorNotification("Gagal memuat data rumah").
				Write(w)
			return
		}
		s.views.partial(w, r, http.StatusOK, "houses_grid", grid)
		return
	}

	v := view{Title: "Rumah", Nav: "houses"}
	status := http.StatusOK
	if err != nil {
		s.logBackendError(r, "House list failed", applog.ComponentHouse, applog.OpList, err)
		v.Alert = "Gagal memuat data rumah"
		status = http.StatusBadGateway
	}
	v.Data = struct {
		Filter core.HouseFilter
		Stats  core.HouseStats
		Houses []core.House
	}{filter, grid.Stats, grid.Houses}
	s.views.page(w, r, status, "houses", v)
}

func (s *Server) handleNewHouse(w http.ResponseWriter, r *http.Request) {
	s.renderHouseForm(w, r, http.StatusOK, houseForm{}, "")
}

func (s *Server) handleCreateHouse(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	in := ParseHouseForm(r.PostForm)

	created, err := s.svc.Houses.Create(r.Context(), in)
	if err != nil {
		s.houseSaveFailed(w, r, houseForm{Input: in}, err)
		return
	}

	s.countMutation()
	applog.FromContext(r.Context()).InfoContext(r.Context(), "House created",
		applog.FieldComponent, applog.ComponentHouse,
		applog.FieldHouseID, created.ID)
	redirect(w, r, "/houses", successFlash("Rumah berhasil ditambahkan"))
}

func (s *Server) handleHouseDetail(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	detail, err := s.svc.Houses.Detail(r.Context(), id)
	if err != nil {
		s.logBackendError(r, "House detail failed", applog.ComponentHouse, applog.OpRead, err)
		redirect(w, r, "/houses", errorFlash("Rumah tidak ditemukan"))
		return
	}

	tab := r.URL.Query().Get("tab")
	if tab != "payments" {
		tab = "info"
	}
	s.views.page(w, r, http.StatusOK, "house_detail", view{
		Title: "Rumah " + detail.House.HouseNumber,
		Nav:   "houses",
		Data: struct {
			Tab       string
			Occupancy occupancyView
		}{tab, s.occupancyView(r, detail, core.OccupancyInput{}, nil)},
	})
}

func (s *Server) handleEditHouse(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	house, err := s.svc.Houses.Get(r.Context(), id)
	if err != nil {
		s.logBackendError(r, "House load failed", applog.ComponentHouse, applog.OpRead, err)
		redirect(w, r, "/houses", errorFlash("Rumah tidak ditemukan"))
		return
	}
	form := houseForm{
		ID: id,
		Input: core.HouseInput{
			HouseNumber: house.HouseNumber,
			IsOccupied:  bool(house.IsOccupied),
		},
	}
	s.renderHouseForm(w, r, http.StatusOK, form, "")
}

func (s *Server) handleUpdateHouse(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	in := ParseHouseForm(r.PostForm)

	if _, err := s.svc.Houses.Update(r.Context(), id, in); err != nil {
		s.houseSaveFailed(w, r, houseForm{ID: id, Input: in}, err)
		return
	}

	s.countMutation()
	applog.FromContext(r.Context()).InfoContext(r.Context(), "House updated",
		applog.FieldComponent, applog.ComponentHouse,
		applog.FieldHouseID, id)
	redirect(w, r, "/houses", successFlash("Data rumah berhasil diperbarui"))
}

func (s *Server) handleDeleteHouse(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	s.deleteRow(w, r, applog.ComponentHouse,
		func(ctx context.Context) error { return s.svc.Houses.Delete(ctx, id) },
		"Rumah berhasil dihapus", "Gagal menghapus rumah")
}

// handleAddOccupant opens an inhabitant history row and re-renders the
// occupancy section, with field errors when the input is rejected.
func (s *Server) handleAddOccupant(w http.ResponseWriter, r *http.Request) {
	houseID := pathID(r)
	in, err := ParseOccupancyInput(NewRequestBodyParser(r))
	if err != nil {
		BadRequestError("Format permintaan tidak valid").Write(w)
		return
	}

	detail, err := s.svc.Occupancy.AddOccupant(r.Context(), houseID, in)
	if errors.Is(err, services.ErrRefetch) {
		s.countMutation()
		s.logBackendError(r, "House detail failed after adding occupant", applog.ComponentHouse, applog.OpRead, err)
		NewHTMXResponse().
			Redirect("/houses/" + idString(houseID)).
			TriggerSuccessNotification("Penghuni berhasil ditambahkan").
			Write(w)
		return
	}
	if err == nil {
		s.countMutation()
		NewHTMXResponse().
			TriggerChanged(applog.ComponentOccupancy).
			TriggerSuccessNotification("Penghuni berhasil ditambahkan").
			ApplyHeaders(w)
		s.views.partial(w, r, http.StatusOK, "occupancy", s.occupancyView(r, detail, core.OccupancyInput{}, nil))
		return
	}

	fields, ok := s.formErrors(r, applog.ComponentOccupancy, err)
	if !ok {
		NewHTMXResponse().
			Status(http.StatusBadGateway).
			Reswap("none").
			TriggerErrorNotification("Gagal menambahkan penghuni").
			Write(w)
		return
	}
	detail, err = s.svc.Houses.Detail(r.Context(), houseID)
	if err != nil {
		s.logBackendError(r, "House detail failed", applog.ComponentHouse, applog.OpRead, err)
		NewHTMXResponse().
			Status(http.StatusBadGateway).
			Reswap("none").
			TriggerErrorNotification("Gagal memuat data rumah").
			Write(w)
		return
	}
	s.views.partial(w, r, http.StatusOK, "occupancy", s.occupancyView(r, detail, in, fields))
}

func (s *Server) handleEditHistory(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	row, err := s.svc.Occupancy.Get(r.Context(), id)
	if err != nil {
		s.logBackendError(r, "Inhabitant history load failed", applog.ComponentOccupancy, applog.OpRead, err)
		redirect(w, r, "/houses", errorFlash("Riwayat penghuni tidak ditemukan"))
		return
	}
	form := historyForm{
		ID: id,
		Input: core.OccupancyInput{
			ResidentID: row.ResidentID,
			HouseID:    row.HouseID,
			StartDate:  row.StartDate,
			EndDate:    row.EndDate,
		},
	}
	s.renderHistoryForm(w, r, http.StatusOK, form, "")
}

func (s *Server) handleUpdateHistory(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	in, err := ParseOccupancyInput(NewRequestBodyParser(r))
	if err != nil {
		BadRequestError("Format permintaan tidak valid").Write(w)
		return
	}

	if _, err := s.svc.Occupancy.Update(r.Context(), id, in); err != nil {
		form := historyForm{ID: id, Input: in}
		if fields, ok := s.formErrors(r, applog.ComponentOccupancy, err); ok {
			form.Errors = fields
			s.renderHistoryForm(w, r, http.StatusUnprocessableEntity, form, fields.Get("_error"))
			return
		}
		s.renderHistoryForm(w, r, http.StatusBadGateway, form, "Gagal menyimpan riwayat penghuni")
		return
	}

	s.countMutation()
	redirect(w, r, "/houses/"+idString(in.HouseID), successFlash("Riwayat penghuni berhasil diperbarui"))
}

// handleDeleteHistory removes a row and swaps in the refreshed occupancy
// section of its house.
func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	houseID, err := s.svc.Occupancy.Delete(r.Context(), id)
	if err != nil {
		s.logBackendError(r, "Delete failed", applog.ComponentOccupancy, applog.OpDelete, err)
		status := http.StatusBadGateway
		if errors.Is(err, services.ErrNotFound) {
			status = http.StatusNotFound
		}
		NewHTMXResponse().
			Status(status).
			Reswap("none").
			TriggerErrorNotification("Gagal menghapus riwayat penghuni").
			Write(w)
		return
	}
	s.countMutation()

	detail, err := s.svc.Houses.Detail(r.Context(), houseID)
	if err != nil {
		s.logBackendError(r, "House detail failed", applog.ComponentHouse, applog.OpRead, err)
		NewHTMXResponse().
			Redirect("/houses/" + idString(houseID)).
			TriggerSuccessNotification("Riwayat penghuni berhasil dihapus").
			Write(w)
		return
	}
	NewHTMXResponse().
		TriggerChanged(applog.ComponentOccupancy).
		TriggerSuccessNotification("Riwayat penghuni berhasil dihapus").
		ApplyHeaders(w)
	s.views.partial(w, r, http.StatusOK, "occupancy", s.occupancyView(r, detail, core.OccupancyInput{}, nil))
}

func (s *Server) occupancyView(r *http.Request, detail services.HouseDetail, in core.OccupancyInput, errs core.FieldErrors) occupancyView {
	return occupancyView{
		Detail:    detail,
		Residents: s.residentOptions(r),
		Input:     in,
		Errors:    errs,
	}
}

// residentOptions lists every resident for a select.
func (s *Server) residentOptions(r *http.Request) []core.Resident {
	residents, err := s.svc.Residents.List(r.Context(), core.ResidentFilter{Status: core.FilterAll})
	if err != nil {
		s.logBackendError(r, "Resident options load failed", applog.ComponentResident, applog.OpList, err)
		return nil
	}
	return residents
}

func (s *Server) houseSaveFailed(w http.ResponseWriter, r *http.Request, form houseForm, err error) {
	if fields, ok := s.formErrors(r, applog.ComponentHouse, err); ok {
		form.Errors = fields
		s.renderHouseForm(w, r, http.StatusUnprocessableEntity, form, "")
		return
	}
	s.renderHouseForm(w, r, http.StatusBadGateway, form, "Gagal menyimpan data rumah")
}

func (s *Server) renderHouseForm(w http.ResponseWriter, r *http.Request, status int, form houseForm, alert string) {
	title := "Tambah Rumah"
	if form.ID != 0 {
		title = "Ubah Rumah"
	}
	s.views.page(w, r, status, "house_form", view{Title: title, Nav: "houses", Alert: alert, Data: form})
}

func (s *Server) renderHistoryForm(w http.ResponseWriter, r *http.Request, status int, form historyForm, alert string) {
	form.Residents = s.residentOptions(r)
	form.Houses = s.houseOptions(r)
	s.views.page(w, r, status, "history_form", view{
		Title: "Ubah Riwayat Penghuni",
		Nav:   "houses",
		Alert: alert,
		Data:  form,
	})
}
