package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rtadmin/internal/core"
)

// HouseRecord is the writable part of a house.
type HouseRecord struct {
	HouseNumber string
	IsOccupied  bool
}

const houseSelect = `SELECT id, house_number, is_occupied FROM houses`

func scanHouse(sc interface{ Scan(...any) error }) (core.House, error) {
	var (
		h        core.House
		occupied int64
	)
	if err := sc.Scan(&h.ID, &h.HouseNumber, &occupied); err != nil {
		return h, err
	}
	h.IsOccupied = occupied != 0
	return h, nil
}

// ListHouses returns every house with its history rows, so the occupancy
// shown in lists is derived from the same rows as the detail page.
func (r *SQLiteRepository) ListHouses(ctx context.Context) ([]core.House, error) {
	rows, err := r.db.QueryContext(ctx, houseSelect+` ORDER BY house_number, id`)
	if err != nil {
		return nil, fmt.Errorf("query houses: %w", err)
	}
	defer rows.Close()

	houses := make([]core.House, 0)
	for rows.Next() {
		h, err := scanHouse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan house: %w", err)
		}
		houses = append(houses, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	histories, err := queryHistories(ctx, r.db, historySelect+historyOrder)
	if err != nil {
		return nil, err
	}
	for i := range houses {
		houses[i].Histories = core.HistoriesForHouse(histories, houses[i].ID)
	}
	return houses, nil
}

// GetHouse returns the house with its histories and payments.
func (r *SQLiteRepository) GetHouse(ctx context.Context, id int64) (core.House, error) {
	h, err := getHouse(ctx, r.db, id)
	if err != nil {
		return h, err
	}
	if h.Histories, err = queryHistories(ctx, r.db, historySelect+` WHERE ih.house_id = ?`+historyOrder, id); err != nil {
		return h, err
	}
	if h.Payments, err = r.queryPayments(ctx, paymentSelect+` WHERE p.house_id = ?`+paymentOrder, id); err != nil {
		return h, err
	}
	return h, nil
}

func getHouse(ctx context.Context, q queryer, id int64) (core.House, error) {
	h, err := scanHouse(q.QueryRowContext(ctx, houseSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return h, fmt.Errorf("house %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return h, fmt.Errorf("get house %d: %w", id, err)
	}
	return h, nil
}

func (r *SQLiteRepository) CreateHouse(ctx context.Context, rec HouseRecord) (core.House, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO houses (house_number, is_occupied) VALUES (?, ?)`, rec.HouseNumber, boolInt(rec.IsOccupied))
	if isUniqueViolation(err, "houses.house_number") {
		return core.House{}, ErrDuplicateHouse
	}
	if err != nil {
		return core.House{}, fmt.Errorf("insert house: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.House{}, err
	}
	r.logger.InfoContext(ctx, "House created", "id", id, "house_number", rec.HouseNumber)
	return getHouse(ctx, r.db, id)
}

// UpdateHouse writes the number and flag. A flag that contradicts the
// history rows is corrected from them.
func (r *SQLiteRepository) UpdateHouse(ctx context.Context, id int64, rec HouseRecord) (core.House, error) {
	var updated core.House
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE houses SET house_number = ?, is_occupied = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			rec.HouseNumber, boolInt(rec.IsOccupied), id)
		if isUniqueViolation(err, "houses.house_number") {
			return ErrDuplicateHouse
		}
		if err != nil {
			return fmt.Errorf("update house %d: %w", id, err)
		}
		if err := mustAffect(res); err != nil {
			return fmt.Errorf("house %d: %w", id, err)
		}
		var histories int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM inhabitant_histories WHERE house_id = ?`, id).Scan(&histories); err != nil {
			return err
		}
		if histories > 0 {
			if err := syncHouseFlag(ctx, tx, id); err != nil {
				return err
			}
		}
		updated, err = getHouse(ctx, tx, id)
		return err
	})
	return updated, err
}

func (r *SQLiteRepository) DeleteHouse(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM houses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete house %d: %w", id, err)
	}
	if err := mustAffect(res); err != nil {
		return fmt.Errorf("house %d: %w", id, err)
	}
	return nil
}
