// Package services holds one service per entity. Each service validates its
// input locally, calls the backend through rtapi and announces successful
// mutations to an optional Publisher.
package services

import (
	"context"

	"rtadmin/internal/core"
	applog "rtadmin/internal/log"
	"rtadmin/internal/rtapi"
)

// crudAPI is the slice of rtapi.Resource a service needs.
type crudAPI[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id int64) (T, error)
	Create(ctx context.Context, payload any) (T, error)
	Update(ctx context.Context, id int64, payload any) (T, error)
	Delete(ctx context.Context, id int64) error
}

type lister[T any] interface {
	List(ctx context.Context) ([]T, error)
}

type residentAPI interface {
	List(ctx context.Context) ([]core.Resident, error)
	ListActive(ctx context.Context) ([]core.Resident, error)
	Get(ctx context.Context, id int64) (core.Resident, error)
	Create(ctx context.Context, in core.ResidentInput) (core.Resident, error)
	Update(ctx context.Context, id int64, in core.ResidentInput) (core.Resident, error)
	Delete(ctx context.Context, id int64) error
}

type reportAPI interface {
	MonthlySummary(ctx context.Context) (core.MonthlySummary, error)
}

// Publisher announces mutations, e.g. to the ledger queue.
type Publisher interface {
	Publish(ctx context.Context, entity, action string, id int64) error
}

// Options tunes the services built by New.
type Options struct {
	Publisher Publisher
	Logger    *applog.Logger
	KTP       PhotoProcessor
}

// Services bundles every entity service over one API client.
type Services struct {
	Residents *ResidentService
	Houses    *HouseService
	Occupancy *OccupancyService
	Payments  *PaymentService
	Expenses  *ExpenseService
	Dashboard *DashboardService
}

func New(api *rtapi.Client, opts Options) *Services {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	n := notifier{pub: opts.Publisher, logger: logger}

	houses := NewHouseService(api.Houses, api.Histories, api.Payments, api.Residents, n.withLogger(applog.ComponentHouse))
	return &Services{
		Residents: NewResidentService(api.Residents, opts.KTP, n.withLogger(applog.ComponentResident)),
		Houses:    houses,
		Occupancy: NewOccupancyService(api.Histories, houses, n.withLogger(applog.ComponentOccupancy)),
		Payments:  NewPaymentService(api.Payments, api.Residents, n.withLogger(applog.ComponentPayment)),
		Expenses:  NewExpenseService(api.Expenses, n.withLogger(applog.ComponentExpense)),
		Dashboard: NewDashboardService(api.Reports, api.Houses, logger.WithComponent(applog.ComponentDashboard)),
	}
}

// notifier publishes mutation events. Publishing is best effort: the backend
// write already succeeded, so a failure is only logged.
type notifier struct {
	pub    Publisher
	logger *applog.Logger
}

func (n notifier) withLogger(component string) notifier {
	n = n.ready()
	n.logger = n.logger.WithComponent(component)
	return n
}

func (n notifier) ready() notifier {
	if n.logger == nil {
		n.logger = applog.New(applog.DefaultConfig())
	}
	return n
}

func (n notifier) publish(ctx context.Context, entity, action string, id int64) {
	n.logger.InfoContext(ctx, "Mutation completed",
		applog.FieldEntity, entity,
		applog.FieldAction, action,
		applog.FieldEntityID, id)
	if n.pub == nil {
		return
	}
	if err := n.pub.Publish(ctx, entity, action, id); err != nil {
		n.logger.WarnContext(ctx, "Failed to publish mutation event",
			applog.FieldEntity, entity,
			applog.FieldEntityID, id,
			applog.FieldError, err)
	}
}
