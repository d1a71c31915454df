package services

import (
	"context"
	"errors"
	"fmt"

	"rtadmin/internal/amqp"
	"rtadmin/internal/core"
	applog "rtadmin/internal/log"
)

type ResidentService struct {
	api      residentAPI
	photos   PhotoProcessor
	notifier notifier
}

func NewResidentService(api residentAPI, photos PhotoProcessor, n notifier) *ResidentService {
	return &ResidentService{api: api, photos: photos, notifier: n.ready()}
}

// List returns the residents matching f in backend order.
func (s *ResidentService) List(ctx context.Context, f core.ResidentFilter) ([]core.Resident, error) {
	residents, err := s.api.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list residents: %w", err)
	}
	return core.FilterResidents(residents, f), nil
}

// ListActive returns residents that currently occupy a house.
func (s *ResidentService) ListActive(ctx context.Context) ([]core.Resident, error) {
	residents, err := s.api.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active residents: %w", err)
	}
	return residents, nil
}

func (s *ResidentService) Get(ctx context.Context, id int64) (core.Resident, error) {
	r, err := s.api.Get(ctx, id)
	if err != nil {
		return r, fmt.Errorf("get resident %d: %w", id, err)
	}
	return r, nil
}

// Create validates the form, including the mandatory KTP photo, before any
// backend call.
func (s *ResidentService) Create(ctx context.Context, in core.ResidentInput) (core.Resident, error) {
	in.Creating = true
	in, err := s.prepare(ctx, in)
	if err != nil {
		return core.Resident{}, err
	}
	created, err := s.api.Create(ctx, in)
	if err != nil {
		return core.Resident{}, fmt.Errorf("create resident: %w", remote(err))
	}
	s.notifier.publish(ctx, amqp.EntityResident, amqp.ActionCreated, created.ID)
	return created, nil
}

// Update replaces the resident; the KTP photo is only sent when a new one
// was uploaded.
func (s *ResidentService) Update(ctx context.Context, id int64, in core.ResidentInput) (core.Resident, error) {
	in.Creating = false
	in, err := s.prepare(ctx, in)
	if err != nil {
		return core.Resident{}, err
	}
	updated, err := s.api.Update(ctx, id, in)
	if err != nil {
		return core.Resident{}, fmt.Errorf("update resident %d: %w", id, remote(err))
	}
	if updated.ID == 0 {
		updated.ID = id
	}
	s.notifier.publish(ctx, amqp.EntityResident, amqp.ActionUpdated, id)
	return updated, nil
}

func (s *ResidentService) Delete(ctx context.Context, id int64) error {
	if err := s.api.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete resident %d: %w", id, err)
	}
	s.notifier.publish(ctx, amqp.EntityResident, amqp.ActionDeleted, id)
	return nil
}

func (s *ResidentService) prepare(ctx context.Context, in core.ResidentInput) (core.ResidentInput, error) {
	in.Normalize()
	errs := in.Validate()
	if in.KTP != nil {
		photo, err := s.photos.Process(*in.KTP)
		switch {
		case errors.Is(err, ErrUnsupportedImage):
			errs.Add("ktp_photo_file", msgKTPFormat)
		case err != nil:
			return in, fmt.Errorf("process ktp photo: %w", err)
		default:
			in.KTP = &photo
		}
	}
	if len(errs) > 0 {
		s.notifier.logger.DebugContext(ctx, "Resident form rejected", applog.FieldOperation, applog.OpValidate, applog.FieldFields, errs.Fields())
		return in, invalid(errs)
	}
	return in, nil
}
