package services

import (
	"context"
	"sync"

	"rtadmin/internal/core"
	"rtadmin/internal/rtapi"
)

// fakeCRUD records calls and serves canned data.
type fakeCRUD[T any] struct {
	mu       sync.Mutex
	items    []T
	byID     map[int64]T
	created  []any
	updated  map[int64]any
	deleted  []int64
	listErr  error
	writeErr error
	result   T
	calls    int
}

func (f *fakeCRUD[T]) List(context.Context) ([]T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.items, f.listErr
}

func (f *fakeCRUD[T]) Get(_ context.Context, id int64) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	v, ok := f.byID[id]
	if !ok {
		var zero T
		return zero, &rtapi.APIError{StatusCode: 404}
	}
	return v, nil
}

func (f *fakeCRUD[T]) Create(_ context.Context, payload any) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.created = append(f.created, payload)
	return f.result, f.writeErr
}

func (f *fakeCRUD[T]) Update(_ context.Context, id int64, payload any) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.updated == nil {
		f.updated = map[int64]any{}
	}
	f.updated[id] = payload
	return f.result, f.writeErr
}

func (f *fakeCRUD[T]) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.deleted = append(f.deleted, id)
	return f.writeErr
}

type fakeReports struct {
	summary core.MonthlySummary
	err     error
}

func (f fakeReports) MonthlySummary(context.Context) (core.MonthlySummary, error) {
	return f.summary, f.err
}

type fakeActive []core.Resident

func (f fakeActive) ListActive(context.Context) ([]core.Resident, error) { return f, nil }

type published struct {
	entity, action string
	id             int64
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, entity, action string, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{entity, action, id})
	return p.err
}
