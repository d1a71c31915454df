package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rtadmin/internal/core"
)

const historySelect = `
SELECT ih.id, ih.resident_id, ih.house_id, ih.start_date, ih.end_date,
       r.name, r.status, r.phone, h.house_number, h.is_occupied
FROM inhabitant_histories ih
JOIN residents r ON r.id = ih.resident_id
JOIN houses h ON h.id = ih.house_id`

const historyOrder = ` ORDER BY ih.start_date DESC, ih.id DESC`

func scanHistory(sc interface{ Scan(...any) error }) (core.InhabitantHistory, error) {
	var (
		h        core.InhabitantHistory
		end      sql.NullString
		res      core.Resident
		house    core.House
		occupied int64
	)
	if err := sc.Scan(&h.ID, &h.ResidentID, &h.HouseID, &h.StartDate, &end,
		&res.Name, &res.Status, &res.Phone, &house.HouseNumber, &occupied); err != nil {
		return h, err
	}
	h.EndDate = scanEndDate(end)
	res.ID = h.ResidentID
	house.ID = h.HouseID
	house.IsOccupied = occupied != 0
	h.Resident = &res
	h.House = &house
	return h, nil
}

func queryHistories(ctx context.Context, q queryer, query string, args ...any) ([]core.InhabitantHistory, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query histories: %w", err)
	}
	defer rows.Close()

	out := make([]core.InhabitantHistory, 0)
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListHistories(ctx context.Context) ([]core.InhabitantHistory, error) {
	return queryHistories(ctx, r.db, historySelect+historyOrder)
}

func (r *SQLiteRepository) GetHistory(ctx context.Context, id int64) (core.InhabitantHistory, error) {
	return getHistory(ctx, r.db, id)
}

func getHistory(ctx context.Context, q queryer, id int64) (core.InhabitantHistory, error) {
	h, err := scanHistory(q.QueryRowContext(ctx, historySelect+` WHERE ih.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return h, fmt.Errorf("inhabitant history %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return h, fmt.Errorf("get inhabitant history %d: %w", id, err)
	}
	return h, nil
}

// CreateHistory inserts a row and updates the house flag in one transaction.
// A second open row for the same house or resident fails with a
// *core.OccupancyConflict.
func (r *SQLiteRepository) CreateHistory(ctx context.Context, h core.InhabitantHistory) (core.InhabitantHistory, error) {
	var created core.InhabitantHistory
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		id, err := insertHistory(ctx, tx, h)
		if err != nil {
			return err
		}
		created, err = getHistory(ctx, tx, id)
		return err
	})
	return created, err
}

func (r *SQLiteRepository) UpdateHistory(ctx context.Context, id int64, h core.InhabitantHistory) (core.InhabitantHistory, error) {
	var updated core.InhabitantHistory
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		before, err := getHistory(ctx, tx, id)
		if err != nil {
			return err
		}
		h.ID = id
		if err := checkOccupancy(ctx, tx, h); err != nil {
			return err
		}
		if err := ensureRefs(ctx, tx, h.ResidentID, h.HouseID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE inhabitant_histories
SET resident_id = ?, house_id = ?, start_date = ?, end_date = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`, h.ResidentID, h.HouseID, h.StartDate.String(), endDateArg(h.EndDate), id); err != nil {
			return fmt.Errorf("update inhabitant history %d: %w", id, err)
		}
		if err := syncHouseFlag(ctx, tx, h.HouseID); err != nil {
			return err
		}
		if before.HouseID != h.HouseID {
			if err := syncHouseFlag(ctx, tx, before.HouseID); err != nil {
				return err
			}
		}
		updated, err = getHistory(ctx, tx, id)
		return err
	})
	return updated, err
}

func (r *SQLiteRepository) DeleteHistory(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		before, err := getHistory(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM inhabitant_histories WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete inhabitant history %d: %w", id, err)
		}
		return syncHouseFlag(ctx, tx, before.HouseID)
	})
}

func insertHistory(ctx context.Context, tx *sql.Tx, h core.InhabitantHistory) (int64, error) {
	h.ID = 0
	if err := checkOccupancy(ctx, tx, h); err != nil {
		return 0, err
	}
	if err := ensureRefs(ctx, tx, h.ResidentID, h.HouseID); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO inhabitant_histories (resident_id, house_id, start_date, end_date) VALUES (?, ?, ?, ?)`,
		h.ResidentID, h.HouseID, h.StartDate.String(), endDateArg(h.EndDate))
	if err != nil {
		return 0, fmt.Errorf("insert inhabitant history: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, syncHouseFlag(ctx, tx, h.HouseID)
}

func checkOccupancy(ctx context.Context, q queryer, h core.InhabitantHistory) error {
	open, err := queryHistories(ctx, q, historySelect+` WHERE ih.end_date IS NULL`)
	if err != nil {
		return err
	}
	return core.CheckOccupancy(open, h)
}

// ensureRefs reports a missing resident or house as ErrNotFound.
func ensureRefs(ctx context.Context, q queryer, residentID, houseID int64) error {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM residents WHERE id = ?`, residentID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("resident %d: %w", residentID, ErrNotFound)
	}
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM houses WHERE id = ?`, houseID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("house %d: %w", houseID, ErrNotFound)
	}
	return nil
}

// syncHouseFlag sets is_occupied from the house's open rows.
func syncHouseFlag(ctx context.Context, q queryer, houseID int64) error {
	_, err := q.ExecContext(ctx, `
UPDATE houses
SET is_occupied = EXISTS (SELECT 1 FROM inhabitant_histories WHERE house_id = ? AND end_date IS NULL),
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?`, houseID, houseID)
	if err != nil {
		return fmt.Errorf("sync house %d occupancy: %w", houseID, err)
	}
	return nil
}
