package rtapi

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"rtadmin/internal/core"
)

// ResidentsAPI adds the multipart create/update and the active list to the
// generic resource.
type ResidentsAPI struct {
	Resource[core.Resident]
}

// ListActive returns residents that currently occupy a house.
func (r *ResidentsAPI) ListActive(ctx context.Context) ([]core.Resident, error) {
	raw, err := r.c.get(ctx, "/active-residents")
	if err != nil {
		return nil, fmt.Errorf("list active residents: %w", err)
	}
	out, err := decodeList[core.Resident](raw)
	if err != nil {
		return nil, fmt.Errorf("list active residents: %w", err)
	}
	return out, nil
}

// Create sends the resident form as multipart with the KTP photo attached.
func (r *ResidentsAPI) Create(ctx context.Context, in core.ResidentInput) (core.Resident, error) {
	return r.submit(ctx, r.path, in)
}

// Update uses POST with ?_method=PUT so the backend accepts multipart.
func (r *ResidentsAPI) Update(ctx context.Context, id int64, in core.ResidentInput) (core.Resident, error) {
	return r.submit(ctx, r.itemPath(id)+"?_method=PUT", in)
}

func (r *ResidentsAPI) submit(ctx context.Context, path string, in core.ResidentInput) (core.Resident, error) {
	var out core.Resident
	body, contentType, err := EncodeResidentForm(in)
	if err != nil {
		return out, fmt.Errorf("encode resident form: %w", err)
	}
	raw, err := r.c.roundTrip(ctx, http.MethodPost, path, body, contentType)
	if err != nil {
		return out, fmt.Errorf("submit %s: %w", path, err)
	}
	if err := decodeOne(raw, &out); err != nil {
		return out, fmt.Errorf("submit %s: %w", path, err)
	}
	return out, nil
}

// EncodeResidentForm writes the multipart body the backend expects:
// is_married as 1/0, house_id only when set, the photo as "ktp_photo".
func EncodeResidentForm(in core.ResidentInput) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	married := "0"
	if in.IsMarried {
		married = "1"
	}
	fields := [][2]string{
		{"name", in.Name},
		{"status", string(in.Status)},
		{"phone", in.Phone},
		{"is_married", married},
	}
	if in.HouseID != nil {
		fields = append(fields, [2]string{"house_id", strconv.FormatInt(*in.HouseID, 10)})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	if in.KTP != nil && len(in.KTP.Data) > 0 {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="ktp_photo"; filename=%q`, in.KTP.Filename))
		ct := in.KTP.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(in.KTP.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
