package devapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"rtadmin/internal/core"
	applog "rtadmin/internal/log"
	"rtadmin/internal/storage"
)

func (s *Server) listResidents(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListResidents(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	writeData(w, http.StatusOK, "", list)
}

func (s *Server) listActiveResidents(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListActiveResidents(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	writeData(w, http.StatusOK, "", list)
}

func (s *Server) getResident(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := s.store.GetResident(r.Context(), id)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	writeData(w, http.StatusOK, "", res)
}

func (s *Server) createResident(w http.ResponseWriter, r *http.Request) {
	in, rec, ok := s.residentForm(w, r, true)
	if !ok {
		return
	}
	path, err := s.files.SaveKTP(*in.KTP)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	rec.KTPPhoto = path

	created, err := s.store.CreateResident(r.Context(), rec)
	if err != nil {
		_ = s.files.Remove(path)
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	writeData(w, http.StatusCreated, "Penghuni berhasil ditambahkan", created)
}

// updateResident handles POST /residents/{id}?_method=PUT, the multipart
// form of an update.
func (s *Server) updateResident(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !parseMultipart(w, r) {
		return
	}
	if !isPutOverride(r) {
		w.Header().Set("Allow", "GET, DELETE")
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Message: "Gunakan _method=PUT untuk memperbarui penghuni"})
		return
	}
	in, rec, ok := s.residentForm(w, r, false)
	if !ok {
		return
	}

	old, err := s.store.KTPPhotoPath(r.Context(), id)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	if in.KTP != nil {
		if rec.KTPPhoto, err = s.files.SaveKTP(*in.KTP); err != nil {
			s.fail(w, r, applog.OpUpdate, err)
			return
		}
	}

	updated, err := s.store.UpdateResident(r.Context(), id, rec)
	if err != nil {
		_ = s.files.Remove(rec.KTPPhoto)
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	if rec.KTPPhoto != "" && old != rec.KTPPhoto {
		if err := s.files.Remove(old); err != nil {
			s.logger.WarnContext(r.Context(), "Failed to remove replaced KTP photo", applog.FieldError, err)
		}
	}
	writeData(w, http.StatusOK, "Penghuni berhasil diperbarui", updated)
}

func (s *Server) deleteResident(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	photo, err := s.store.KTPPhotoPath(r.Context(), id)
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	if err := s.store.DeleteResident(r.Context(), id); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	if err := s.files.Remove(photo); err != nil {
		s.logger.WarnContext(r.Context(), "Failed to remove KTP photo", applog.FieldError, err)
	}
	writeData(w, http.StatusOK, "Penghuni berhasil dihapus", nil)
}

// parseMultipart reads the form once; later calls are no-ops.
func parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	if r.MultipartForm != nil {
		return true
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "Form tidak valid"})
		return false
	}
	return true
}

// isPutOverride reports a _method=PUT in the query or the parsed form.
func isPutOverride(r *http.Request) bool {
	m := r.URL.Query().Get("_method")
	if m == "" {
		m = r.PostFormValue("_method")
	}
	return strings.EqualFold(m, http.MethodPut)
}

// residentForm parses and validates the multipart resident form. It writes
// the error response itself and reports false when the request is done.
func (s *Server) residentForm(w http.ResponseWriter, r *http.Request, creating bool) (core.ResidentInput, storage.ResidentRecord, bool) {
	var (
		in  core.ResidentInput
		rec storage.ResidentRecord
	)
	if !parseMultipart(w, r) {
		return in, rec, false
	}

	in = core.ResidentInput{
		Creating:  creating,
		Name:      r.FormValue("name"),
		Status:    core.ResidentStatus(r.FormValue("status")),
		Phone:     r.FormValue("phone"),
		IsMarried: bool(core.ParseFlag(r.FormValue("is_married"))),
	}
	if id, err := core.ParseID(r.FormValue("house_id")); err == nil && id > 0 {
		in.HouseID = &id
	}
	if file, hdr, err := r.FormFile("ktp_photo"); err == nil {
		data, readErr := io.ReadAll(file)
		file.Close()
		if readErr != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Message: "Gagal membaca foto KTP"})
			return in, rec, false
		}
		in.KTP = &core.Upload{Filename: hdr.Filename, ContentType: hdr.Header.Get("Content-Type"), Data: data}
	}

	in.Normalize()
	if errs := in.Validate(); len(errs) > 0 {
		// the backend names the file field ktp_photo
		if msg, ok := errs["ktp_photo_file"]; ok {
			delete(errs, "ktp_photo_file")
			errs["ktp_photo"] = msg
		}
		writeInvalid(w, errs)
		return in, rec, false
	}

	rec = storage.ResidentRecord{
		Name:      in.Name,
		Status:    in.Status,
		Phone:     in.Phone,
		IsMarried: in.IsMarried,
		HouseID:   in.HouseID,
		StartDate: core.NewDateString(r.FormValue("start_date")),
	}
	return in, rec, true
}
