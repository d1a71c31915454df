package services

import (
	"context"
	"fmt"

	"rtadmin/internal/amqp"
	"rtadmin/internal/core"
	applog "rtadmin/internal/log"
)

type activeResidents interface {
	ListActive(ctx context.Context) ([]core.Resident, error)
}

// PaymentService submits payment drafts. The submitted total is always the
// sum of the draft's items.
type PaymentService struct {
	api       crudAPI[core.Payment]
	residents activeResidents
	notifier  notifier
}

func NewPaymentService(api crudAPI[core.Payment], residents activeResidents, n notifier) *PaymentService {
	return &PaymentService{api: api, residents: residents, notifier: n.ready()}
}

func (s *PaymentService) List(ctx context.Context) ([]core.Payment, error) {
	payments, err := s.api.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

func (s *PaymentService) Get(ctx context.Context, id int64) (core.Payment, error) {
	p, err := s.api.Get(ctx, id)
	if err != nil {
		return p, fmt.Errorf("get payment %d: %w", id, err)
	}
	return p, nil
}

// ActiveResidents feeds the resident dropdown of the payment form.
func (s *PaymentService) ActiveResidents(ctx context.Context) ([]core.Resident, error) {
	residents, err := s.residents.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active residents: %w", err)
	}
	return residents, nil
}

func (s *PaymentService) Create(ctx context.Context, d core.PaymentDraft) (core.Payment, error) {
	d, err := s.prepare(ctx, d)
	if err != nil {
		return core.Payment{}, err
	}
	created, err := s.api.Create(ctx, d)
	if err != nil {
		return core.Payment{}, fmt.Errorf("create payment: %w", remote(err))
	}
	s.notifier.publish(ctx, amqp.EntityPayment, amqp.ActionCreated, created.ID)
	return created, nil
}

func (s *PaymentService) Update(ctx context.Context, id int64, d core.PaymentDraft) (core.Payment, error) {
	d, err := s.prepare(ctx, d)
	if err != nil {
		return core.Payment{}, err
	}
	updated, err := s.api.Update(ctx, id, d)
	if err != nil {
		return core.Payment{}, fmt.Errorf("update payment %d: %w", id, remote(err))
	}
	s.notifier.publish(ctx, amqp.EntityPayment, amqp.ActionUpdated, id)
	return updated, nil
}

func (s *PaymentService) Delete(ctx context.Context, id int64) error {
	if err := s.api.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete payment %d: %w", id, err)
	}
	s.notifier.publish(ctx, amqp.EntityPayment, amqp.ActionDeleted, id)
	return nil
}

func (s *PaymentService) prepare(ctx context.Context, d core.PaymentDraft) (core.PaymentDraft, error) {
	d = d.Finalize()
	if errs := d.Validate(); len(errs) > 0 {
		s.notifier.logger.DebugContext(ctx, "Payment draft rejected", applog.FieldOperation, applog.OpValidate, applog.FieldFields, errs.Fields())
		return d, invalid(errs)
	}
	return d, nil
}
