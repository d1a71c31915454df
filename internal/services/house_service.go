package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"rtadmin/internal/amqp"
	"rtadmin/internal/core"
)

// HouseDetail is everything the house page shows.
type HouseDetail struct {
	House     core.House
	Histories []core.InhabitantHistory
	Payments  []core.Payment
}

type HouseService struct {
	api       crudAPI[core.House]
	histories lister[core.InhabitantHistory]
	payments  lister[core.Payment]
	residents lister[core.Resident]
	notifier  notifier
}

func NewHouseService(
	api crudAPI[core.House],
	histories lister[core.InhabitantHistory],
	payments lister[core.Payment],
	residents lister[core.Resident],
	n notifier,
) *HouseService {
	return &HouseService{api: api, histories: histories, payments: payments, residents: residents, notifier: n.ready()}
}

// List returns the houses matching f and the stats of the whole collection.
func (s *HouseService) List(ctx context.Context, f core.HouseFilter) ([]core.House, core.HouseStats, error) {
	houses, err := s.api.List(ctx)
	if err != nil {
		return nil, core.HouseStats{}, fmt.Errorf("list houses: %w", err)
	}
	return core.FilterHouses(houses, f), core.ComputeHouseStats(houses), nil
}

func (s *HouseService) Get(ctx context.Context, id int64) (core.House, error) {
	h, err := s.api.Get(ctx, id)
	if err != nil {
		return h, fmt.Errorf("get house %d: %w", id, err)
	}
	return h, nil
}

// Detail loads a house with its occupancy rows and payments. Collections the
// backend did not embed are fetched concurrently and filtered by house.
func (s *HouseService) Detail(ctx context.Context, id int64) (HouseDetail, error) {
	house, err := s.Get(ctx, id)
	if err != nil {
		return HouseDetail{}, err
	}

	var (
		histories      = house.Histories
		payments       = house.Payments
		residents      []core.Resident
		fetchResidents = needsResidents(house.Histories)
	)
	g, gctx := errgroup.WithContext(ctx)
	if histories == nil {
		g.Go(func() error {
			all, err := s.histories.List(gctx)
			if err != nil {
				return fmt.Errorf("list histories: %w", err)
			}
			histories = core.HistoriesForHouse(all, id)
			return nil
		})
	}
	if payments == nil {
		g.Go(func() error {
			all, err := s.payments.List(gctx)
			if err != nil {
				return fmt.Errorf("list payments: %w", err)
			}
			payments = core.PaymentsForHouse(all, id)
			return nil
		})
	}
	if fetchResidents {
		g.Go(func() error {
			all, err := s.residents.List(gctx)
			if err != nil {
				return fmt.Errorf("list residents: %w", err)
			}
			residents = all
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return HouseDetail{}, fmt.Errorf("house %d detail: %w", id, err)
	}

	histories = attachResidents(histories, residents)
	house.Histories = histories
	house.Payments = payments
	return HouseDetail{House: house, Histories: histories, Payments: payments}, nil
}

// needsResidents is true when rows are still unknown or lack resident names.
func needsResidents(histories []core.InhabitantHistory) bool {
	if histories == nil {
		return true
	}
	for _, h := range histories {
		if h.Resident == nil {
			return true
		}
	}
	return false
}

func attachResidents(histories []core.InhabitantHistory, residents []core.Resident) []core.InhabitantHistory {
	if len(residents) == 0 {
		return histories
	}
	byID := make(map[int64]core.Resident, len(residents))
	for _, r := range residents {
		byID[r.ID] = r
	}
	out := make([]core.InhabitantHistory, len(histories))
	for i, h := range histories {
		if h.Resident == nil {
			if r, ok := byID[h.ResidentID]; ok {
				h.Resident = &r
			}
		}
		out[i] = h
	}
	return out
}

func (s *HouseService) Create(ctx context.Context, in core.HouseInput) (core.House, error) {
	in.Normalize()
	if errs := in.Validate(); len(errs) > 0 {
		return core.House{}, invalid(errs)
	}
	created, err := s.api.Create(ctx, in)
	if err != nil {
		return core.House{}, fmt.Errorf("create house: %w", remote(err))
	}
	s.notifier.publish(ctx, amqp.EntityHouse, amqp.ActionCreated, created.ID)
	return created, nil
}

func (s *HouseService) Update(ctx context.Context, id int64, in core.HouseInput) (core.House, error) {
	in.Normalize()
	if errs := in.Validate(); len(errs) > 0 {
		return core.House{}, invalid(errs)
	}
	updated, err := s.api.Update(ctx, id, in)
	if err != nil {
		return core.House{}, fmt.Errorf("update house %d: %w", id, remote(err))
	}
	s.notifier.publish(ctx, amqp.EntityHouse, amqp.ActionUpdated, id)
	return updated, nil
}

func (s *HouseService) Delete(ctx context.Context, id int64) error {
	if err := s.api.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete house %d: %w", id, err)
	}
	s.notifier.publish(ctx, amqp.EntityHouse, amqp.ActionDeleted, id)
	return nil
}
