package services

import (
	"context"
	"errors"
	"fmt"

	"rtadmin/internal/amqp"
	"rtadmin/internal/core"
	applog "rtadmin/internal/log"
)

// OccupancyService manages inhabitant history rows. It refuses a second open
// row for the same house or the same resident before calling the backend.
type OccupancyService struct {
	api      crudAPI[core.InhabitantHistory]
	houses   *HouseService
	notifier notifier
}

func NewOccupancyService(api crudAPI[core.InhabitantHistory], houses *HouseService, n notifier) *OccupancyService {
	return &OccupancyService{api: api, houses: houses, notifier: n.ready()}
}

func (s *OccupancyService) Get(ctx context.Context, id int64) (core.InhabitantHistory, error) {
	h, err := s.api.Get(ctx, id)
	if err != nil {
		return h, fmt.Errorf("get inhabitant history %d: %w", id, err)
	}
	return h, nil
}

// AddOccupant opens a row for houseID and returns the refetched house. When
// only the refetch fails the error matches ErrRefetch; the row exists.
func (s *OccupancyService) AddOccupant(ctx context.Context, houseID int64, in core.OccupancyInput) (HouseDetail, error) {
	in.HouseID = houseID
	in.Normalize()
	if err := s.check(ctx, 0, in); err != nil {
		return HouseDetail{}, err
	}
	created, err := s.api.Create(ctx, in)
	if err != nil {
		return HouseDetail{}, fmt.Errorf("add occupant to house %d: %w", houseID, remote(err))
	}
	s.notifier.publish(ctx, amqp.EntityOccupancy, amqp.ActionCreated, created.ID)
	detail, err := s.houses.Detail(ctx, houseID)
	if err != nil {
		return HouseDetail{}, fmt.Errorf("%w: house %d: %w", ErrRefetch, houseID, err)
	}
	return detail, nil
}

// Update replaces a row; an empty end date is sent as null.
func (s *OccupancyService) Update(ctx context.Context, id int64, in core.OccupancyInput) (core.InhabitantHistory, error) {
	in.Normalize()
	if err := s.check(ctx, id, in); err != nil {
		return core.InhabitantHistory{}, err
	}
	updated, err := s.api.Update(ctx, id, in)
	if err != nil {
		return core.InhabitantHistory{}, fmt.Errorf("update inhabitant history %d: %w", id, remote(err))
	}
	if updated.ID == 0 {
		updated = in.History(id)
	}
	s.notifier.publish(ctx, amqp.EntityOccupancy, amqp.ActionUpdated, id)
	return updated, nil
}

// Delete removes the row and returns the house it belonged to.
func (s *OccupancyService) Delete(ctx context.Context, id int64) (int64, error) {
	row, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := s.api.Delete(ctx, id); err != nil {
		return row.HouseID, fmt.Errorf("delete inhabitant history %d: %w", id, err)
	}
	s.notifier.publish(ctx, amqp.EntityOccupancy, amqp.ActionDeleted, id)
	return row.HouseID, nil
}

func (s *OccupancyService) check(ctx context.Context, id int64, in core.OccupancyInput) error {
	errs := in.Validate()
	if len(errs) > 0 {
		return invalid(errs)
	}
	existing, err := s.api.List(ctx)
	if err != nil {
		return fmt.Errorf("list inhabitant histories: %w", err)
	}
	if err := core.CheckOccupancy(existing, in.History(id)); err != nil {
		var conflict *core.OccupancyConflict
		if errors.As(err, &conflict) {
			s.notifier.logger.DebugContext(ctx, "Occupancy conflict",
				applog.FieldHouseID, in.HouseID,
				applog.FieldResidentID, in.ResidentID,
				"existing_history_id", conflict.Existing.ID)
		}
		return fmt.Errorf("%w: %w", invalid(core.ConflictFields(err)), err)
	}
	return nil
}
