package rtapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Resource is the list/get/create/update/delete contract shared by every
// entity endpoint. Create and Update return the decoded record when the
// backend sends one and the zero value when the body is empty.
type Resource[T any] struct {
	c    *Client
	path string
}

func (r *Resource[T]) itemPath(id int64) string {
	return r.path + "/" + strconv.FormatInt(id, 10)
}

// List fetches the full collection in backend order.
func (r *Resource[T]) List(ctx context.Context) ([]T, error) {
	raw, err := r.c.get(ctx, r.path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.path, err)
	}
	out, err := decodeList[T](raw)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.path, err)
	}
	if out == nil {
		out = make([]T, 0)
	}
	return out, nil
}

// Get fetches one record. Any non-2xx response satisfies errors.Is(err, ErrNotFound).
func (r *Resource[T]) Get(ctx context.Context, id int64) (T, error) {
	var zero T
	raw, err := r.c.get(ctx, r.itemPath(id))
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode != http.StatusNotFound {
			return zero, fmt.Errorf("get %s: %w: %w", r.itemPath(id), ErrNotFound, err)
		}
		return zero, fmt.Errorf("get %s: %w", r.itemPath(id), err)
	}
	var out T
	if err := decodeOne(raw, &out); err != nil {
		return zero, fmt.Errorf("get %s: %w", r.itemPath(id), err)
	}
	return out, nil
}

// Create POSTs a JSON payload.
func (r *Resource[T]) Create(ctx context.Context, payload any) (T, error) {
	var out T
	raw, err := r.c.sendJSON(ctx, http.MethodPost, r.path, payload)
	if err != nil {
		return out, fmt.Errorf("create %s: %w", r.path, err)
	}
	if err := decodeOne(raw, &out); err != nil {
		return out, fmt.Errorf("create %s: %w", r.path, err)
	}
	return out, nil
}

// Update PUTs a full replacement.
func (r *Resource[T]) Update(ctx context.Context, id int64, payload any) (T, error) {
	var out T
	raw, err := r.c.sendJSON(ctx, http.MethodPut, r.itemPath(id), payload)
	if err != nil {
		return out, fmt.Errorf("update %s: %w", r.itemPath(id), err)
	}
	if err := decodeOne(raw, &out); err != nil {
		return out, fmt.Errorf("update %s: %w", r.itemPath(id), err)
	}
	return out, nil
}

// Delete removes the record; there is no undo.
func (r *Resource[T]) Delete(ctx context.Context, id int64) error {
	if _, err := r.c.roundTrip(ctx, http.MethodDelete, r.itemPath(id), nil, ""); err != nil {
		return fmt.Errorf("delete %s: %w", r.itemPath(id), err)
	}
	return nil
}
