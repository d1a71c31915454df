package http

import (
	"context"
	"net/http"

	"rtadmin/internal/core"
	applog "rtadmin/internal/log"
)

type residentForm struct {
	ID            int64
	Input         core.ResidentInput
	Errors        core.FieldErrors
	Houses        []core.House
	SelectedHouse int64
	CurrentPhoto  string
}

func (s *Server) handleResidents(w http.ResponseWriter, r *http.Request) {
	filter := ParseResidentFilter(r.URL.Query())
	residents, err := s.svc.Residents.List(r.Context(), filter)

	if isHTMX(r) {
		if err != nil {
			s.logBackendError(r, "Resident list failed", applog.ComponentResident, applog.OpList, err)
			NewHTMXResponse().
				Status(http.StatusBadGateway).
				Reswap("none").
				TriggerErrorNotification("Gagal memuat data penghuni").
				Write(w)
			return
		}
		s.views.partial(w, r, http.StatusOK, "residents_table", residents)
		return
	}

	v := view{Title: "Penghuni", Nav: "residents"}
	status := http.StatusOK
	if err != nil {
		s.logBackendError(r, "Resident list failed", applog.ComponentResident, applog.OpList, err)
		v.Alert = "Gagal memuat data penghuni"
		status = http.StatusBadGateway
	}
	v.Data = struct {
		Filter    core.ResidentFilter
		Residents []core.Resident
	}{filter, residents}
	s.views.page(w, r, status, "residents", v)
}

func (s *Server) handleNewResident(w http.ResponseWriter, r *http.Request) {
	form := residentForm{
		Input:  core.ResidentInput{Status: core.StatusTetap},
		Houses: s.houseOptions(r),
	}
	s.renderResidentForm(w, r, http.StatusOK, form, "")
}

func (s *Server) handleCreateResident(w http.ResponseWriter, r *http.Request) {
	in, err := ParseResidentForm(w, r)
	if err != nil {
		s.rejectUpload(w, r, 0, in, err)
		return
	}

	created, err := s.svc.Residents.Create(r.Context(), in)
	if err != nil {
		form := residentForm{Input: in, Houses: s.houseOptions(r), SelectedHouse: deref(in.HouseID)}
		s.residentSaveFailed(w, r, form, err)
		return
	}

	s.countMutation()
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Resident created",
		applog.FieldComponent, applog.ComponentResident,
		applog.FieldEntityID, created.ID)
	redirect(w, r, "/residents", successFlash("Penghuni berhasil ditambahkan"))
}

func (s *Server) handleEditResident(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	resident, err := s.svc.Residents.Get(r.Context(), id)
	if err != nil {
		s.logBackendError(r, "Resident load failed", applog.ComponentResident, applog.OpRead, err)
		redirect(w, r, "/residents", errorFlash("Penghuni tidak ditemukan"))
		return
	}

	form := residentForm{
		ID: id,
		Input: core.ResidentInput{
			Name:      resident.Name,
			Status:    resident.Status,
			Phone:     resident.Phone,
			IsMarried: bool(resident.IsMarried),
			HouseID:   resident.HouseID,
		},
		Houses:        s.houseOptions(r),
		SelectedHouse: residentHouseID(resident),
		CurrentPhoto:  resident.KTPPhoto,
	}
	s.renderResidentForm(w, r, http.StatusOK, form, "")
}

func (s *Server) handleUpdateResident(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	in, err := ParseResidentForm(w, r)
	if err != nil {
		s.rejectUpload(w, r, id, in, err)
		return
	}

	if _, err := s.svc.Residents.Update(r.Context(), id, in); err != nil {
		form := residentForm{
			ID:            id,
			Input:         in,
			Houses:        s.houseOptions(r),
			SelectedHouse: deref(in.HouseID),
		}
		if current, getErr := s.svc.Residents.Get(r.Context(), id); getErr == nil {
			form.CurrentPhoto = current.KTPPhoto
		}
		s.residentSaveFailed(w, r, form, err)
		return
	}

	s.countMutation()
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Resident updated",
		applog.FieldComponent, applog.ComponentResident,
		applog.FieldEntityID, id)
	redirect(w, r, "/residents", successFlash("Data penghuni berhasil diperbarui"))
}

func (s *Server) handleDeleteResident(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	s.deleteRow(w, r, applog.ComponentResident,
		func(ctx context.Context) error { return s.svc.Residents.Delete(ctx, id) },
		"Penghuni berhasil dihapus", "Gagal menghapus penghuni")
}

func (s *Server) residentSaveFailed(w http.ResponseWriter, r *http.Request, form residentForm, err error) {
	if fields, ok := s.formErrors(r, applog.ComponentResident, err); ok {
		form.Errors = fields
		s.renderResidentForm(w, r, http.StatusUnprocessableEntity, form, "")
		return
	}
	s.renderResidentForm(w, r, http.StatusBadGateway, form, "Gagal menyimpan data penghuni")
}

// rejectUpload answers a multipart body that could not be read, usually an
// oversized photo.
func (s *Server) rejectUpload(w http.ResponseWriter, r *http.Request, id int64, in core.ResidentInput, err error) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Resident form unreadable",
		applog.FieldComponent, applog.ComponentResident,
		applog.FieldError, err.Error())
	form := residentForm{
		ID:            id,
		Input:         in,
		Houses:        s.houseOptions(r),
		SelectedHouse: deref(in.HouseID),
		Errors:        core.FieldErrors{"ktp_photo_file": "Berkas terlalu besar atau tidak dapat dibaca"},
	}
	s.renderResidentForm(w, r, http.StatusBadRequest, form, "")
}

func (s *Server) renderResidentForm(w http.ResponseWriter, r *http.Request, status int, form residentForm, alert string) {
	title := "Tambah Penghuni"
	if form.ID != 0 {
		title = "Ubah Penghuni"
	}
	s.views.page(w, r, status, "resident_form", view{
		Title: title,
		Nav:   "residents",
		Alert: alert,
		Data:  form,
	})
}

// houseOptions lists every house for a select. A failed load leaves the
// select empty rather than failing the page.
func (s *Server) houseOptions(r *http.Request) []core.House {
	houses, _, err := s.svc.Houses.List(r.Context(), core.HouseFilter{Occupancy: core.FilterAll})
	if err != nil {
		s.logBackendError(r, "House options load failed", applog.ComponentHouse, applog.OpList, err)
		return nil
	}
	return houses
}

func residentHouseID(res core.Resident) int64 {
	if res.HouseID != nil {
		return *res.HouseID
	}
	if res.House != nil {
		return res.House.ID
	}
	return 0
}
