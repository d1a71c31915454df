package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rtadmin/internal/core"
)

const paymentSelect = `
SELECT p.id, p.resident_id, p.house_id, p.total_amount, p.note, p.status, p.payment_date,
       r.name, r.status, r.phone, h.house_number
FROM payments p
JOIN residents r ON r.id = p.resident_id
LEFT JOIN houses h ON h.id = p.house_id`

const paymentOrder = ` ORDER BY p.payment_date DESC, p.id DESC`

func scanPayment(sc interface{ Scan(...any) error }) (core.Payment, error) {
	var (
		p           core.Payment
		houseID     sql.NullInt64
		status      string
		res         core.Resident
		houseNumber sql.NullString
	)
	if err := sc.Scan(&p.ID, &p.ResidentID, &houseID, &p.TotalAmount, &p.Note, &status, &p.PaymentDate,
		&res.Name, &res.Status, &res.Phone, &houseNumber); err != nil {
		return p, err
	}
	// stored lower-case, read back in display form
	p.Status = core.PaymentStatus(core.PaymentStatus(status).Label())
	res.ID = p.ResidentID
	p.Resident = &res
	if houseID.Valid {
		p.HouseID = houseID.Int64
		p.House = &core.House{ID: houseID.Int64, HouseNumber: houseNumber.String}
	}
	return p, nil
}

func (r *SQLiteRepository) queryPayments(ctx context.Context, query string, args ...any) ([]core.Payment, error) {
	return queryPayments(ctx, r.db, query, args...)
}

func queryPayments(ctx context.Context, q queryer, query string, args ...any) ([]core.Payment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	out := make([]core.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// items are loaded after the payment cursor is closed: the pool has one connection
	for i := range out {
		items, err := paymentItems(ctx, q, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func paymentItems(ctx context.Context, q queryer, paymentID int64) ([]core.PaymentItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, type, amount, start_date, end_date FROM payment_items WHERE payment_id = ? ORDER BY id`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("query payment items: %w", err)
	}
	defer rows.Close()

	items := make([]core.PaymentItem, 0)
	for rows.Next() {
		var it core.PaymentItem
		if err := rows.Scan(&it.ID, &it.Type, &it.Amount, &it.StartDate, &it.EndDate); err != nil {
			return nil, fmt.Errorf("scan payment item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *SQLiteRepository) ListPayments(ctx context.Context) ([]core.Payment, error) {
	return r.queryPayments(ctx, paymentSelect+paymentOrder)
}

func (r *SQLiteRepository) GetPayment(ctx context.Context, id int64) (core.Payment, error) {
	return getPayment(ctx, r.db, id)
}

func getPayment(ctx context.Context, q queryer, id int64) (core.Payment, error) {
	list, err := queryPayments(ctx, q, paymentSelect+` WHERE p.id = ?`, id)
	if err != nil {
		return core.Payment{}, fmt.Errorf("get payment %d: %w", id, err)
	}
	if len(list) == 0 {
		return core.Payment{}, fmt.Errorf("payment %d: %w", id, ErrNotFound)
	}
	return list[0], nil
}

// CreatePayment stores the payment and its items. The total is recomputed
// from the items and the house is the resident's current one.
func (r *SQLiteRepository) CreatePayment(ctx context.Context, d core.PaymentDraft) (core.Payment, error) {
	d = d.Finalize()
	var created core.Payment
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		houseID, err := currentHouse(ctx, tx, d.ResidentID)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
INSERT INTO payments (resident_id, house_id, total_amount, note, status, payment_date)
VALUES (?, ?, ?, ?, ?, ?)`,
			d.ResidentID, houseID, d.TotalAmount, d.Note, string(d.Status), d.PaymentDate.String())
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if err := insertItems(ctx, tx, id, d.Items); err != nil {
			return err
		}
		created, err = getPayment(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.Payment{}, err
	}
	r.logger.InfoContext(ctx, "Payment created", "id", created.ID, "total", int64(created.TotalAmount))
	return created, nil
}

// UpdatePayment replaces the payment and all of its items.
func (r *SQLiteRepository) UpdatePayment(ctx context.Context, id int64, d core.PaymentDraft) (core.Payment, error) {
	d = d.Finalize()
	var updated core.Payment
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		houseID, err := currentHouse(ctx, tx, d.ResidentID)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
UPDATE payments
SET resident_id = ?, house_id = COALESCE(?, house_id), total_amount = ?, note = ?, status = ?,
    payment_date = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`,
			d.ResidentID, houseID, d.TotalAmount, d.Note, string(d.Status), d.PaymentDate.String(), id)
		if err != nil {
			return fmt.Errorf("update payment %d: %w", id, err)
		}
		if err := mustAffect(res); err != nil {
			return fmt.Errorf("payment %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM payment_items WHERE payment_id = ?`, id); err != nil {
			return fmt.Errorf("clear payment items: %w", err)
		}
		if err := insertItems(ctx, tx, id, d.Items); err != nil {
			return err
		}
		updated, err = getPayment(ctx, tx, id)
		return err
	})
	return updated, err
}

func (r *SQLiteRepository) DeletePayment(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete payment %d: %w", id, err)
	}
	if err := mustAffect(res); err != nil {
		return fmt.Errorf("payment %d: %w", id, err)
	}
	return nil
}

func insertItems(ctx context.Context, tx *sql.Tx, paymentID int64, items []core.PaymentItemDraft) error {
	for _, it := range items {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO payment_items (payment_id, type, amount, start_date, end_date) VALUES (?, ?, ?, ?, ?)`,
			paymentID, string(it.Type), int64(it.Amount), it.StartDate.String(), it.EndDate.String()); err != nil {
			return fmt.Errorf("insert payment item: %w", err)
		}
	}
	return nil
}

// currentHouse returns the resident's open house as a nullable argument.
func currentHouse(ctx context.Context, q queryer, residentID int64) (any, error) {
	if err := q.QueryRowContext(ctx, `SELECT id FROM residents WHERE id = ?`, residentID).Scan(new(int64)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("resident %d: %w", residentID, ErrNotFound)
		}
		return nil, err
	}
	var houseID int64
	err := q.QueryRowContext(ctx,
		`SELECT house_id FROM inhabitant_histories WHERE resident_id = ? AND end_date IS NULL`, residentID).Scan(&houseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find resident house: %w", err)
	}
	return houseID, nil
}
