package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rtadmin/internal/core"
)

// ResidentRecord is the writable part of a resident.
type ResidentRecord struct {
	Name      string
	Status    core.ResidentStatus
	Phone     string
	IsMarried bool
	// KTPPhoto is the stored photo path; empty keeps the current one on update.
	KTPPhoto string
	// HouseID, when set, moves the resident into that house from StartDate
	// (today when empty).
	HouseID   *int64
	StartDate core.Date
}

const residentSelect = `
SELECT r.id, r.name, r.ktp_photo, r.status, r.phone, r.is_married,
       h.id, h.house_number, h.is_occupied, ih.start_date
FROM residents r
LEFT JOIN inhabitant_histories ih ON ih.resident_id = r.id AND ih.end_date IS NULL
LEFT JOIN houses h ON h.id = ih.house_id`

func scanResident(sc interface{ Scan(...any) error }) (core.Resident, error) {
	var (
		r           core.Resident
		married     int64
		houseID     sql.NullInt64
		houseNumber sql.NullString
		occupied    sql.NullInt64
		startDate   sql.NullString
	)
	if err := sc.Scan(&r.ID, &r.Name, &r.KTPPhoto, &r.Status, &r.Phone, &married,
		&houseID, &houseNumber, &occupied, &startDate); err != nil {
		return r, err
	}
	r.IsMarried = married != 0
	if houseID.Valid {
		id := houseID.Int64
		r.HouseID = &id
		r.House = &core.House{ID: id, HouseNumber: houseNumber.String, IsOccupied: occupied.Int64 != 0}
		r.StartDate = core.DatePtr(startDate.String)
	}
	return r, nil
}

func (r *SQLiteRepository) ListResidents(ctx context.Context) ([]core.Resident, error) {
	return queryResidents(ctx, r.db, residentSelect+` ORDER BY r.id`)
}

// ListActiveResidents returns residents with an open occupancy row.
func (r *SQLiteRepository) ListActiveResidents(ctx context.Context) ([]core.Resident, error) {
	return queryResidents(ctx, r.db, residentSelect+` WHERE ih.id IS NOT NULL ORDER BY r.name, r.id`)
}

func (r *SQLiteRepository) GetResident(ctx context.Context, id int64) (core.Resident, error) {
	return getResident(ctx, r.db, id)
}

func getResident(ctx context.Context, q queryer, id int64) (core.Resident, error) {
	res, err := scanResident(q.QueryRowContext(ctx, residentSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return res, fmt.Errorf("resident %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return res, fmt.Errorf("get resident %d: %w", id, err)
	}
	return res, nil
}

func queryResidents(ctx context.Context, q queryer, query string, args ...any) ([]core.Resident, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query residents: %w", err)
	}
	defer rows.Close()

	out := make([]core.Resident, 0)
	for rows.Next() {
		res, err := scanResident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resident: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateResident(ctx context.Context, rec ResidentRecord) (core.Resident, error) {
	var created core.Resident
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO residents (name, ktp_photo, status, phone, is_married) VALUES (?, ?, ?, ?, ?)`,
			rec.Name, rec.KTPPhoto, rec.Status, rec.Phone, boolInt(rec.IsMarried))
		if err != nil {
			return fmt.Errorf("insert resident: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if rec.HouseID != nil {
			if err := moveResident(ctx, tx, id, *rec.HouseID, rec.StartDate); err != nil {
				return err
			}
		}
		created, err = getResident(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.Resident{}, err
	}
	r.logger.InfoContext(ctx, "Resident created", "id", created.ID)
	return created, nil
}

func (r *SQLiteRepository) UpdateResident(ctx context.Context, id int64, rec ResidentRecord) (core.Resident, error) {
	var updated core.Resident
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE residents
SET name = ?, status = ?, phone = ?, is_married = ?,
    ktp_photo = CASE WHEN ? = '' THEN ktp_photo ELSE ? END,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?`,
			rec.Name, rec.Status, rec.Phone, boolInt(rec.IsMarried), rec.KTPPhoto, rec.KTPPhoto, id)
		if err != nil {
			return fmt.Errorf("update resident %d: %w", id, err)
		}
		if err := mustAffect(res); err != nil {
			return fmt.Errorf("resident %d: %w", id, err)
		}
		if rec.HouseID != nil {
			if err := moveResident(ctx, tx, id, *rec.HouseID, rec.StartDate); err != nil {
				return err
			}
		}
		updated, err = getResident(ctx, tx, id)
		return err
	})
	return updated, err
}

// DeleteResident removes the resident with its histories and payments, and
// frees the house it occupied.
func (r *SQLiteRepository) DeleteResident(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var houseID sql.NullInt64
		err := tx.QueryRowContext(ctx,
			`SELECT house_id FROM inhabitant_histories WHERE resident_id = ? AND end_date IS NULL`, id).Scan(&houseID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("find open history: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM residents WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete resident %d: %w", id, err)
		}
		if err := mustAffect(res); err != nil {
			return fmt.Errorf("resident %d: %w", id, err)
		}
		if houseID.Valid {
			return syncHouseFlag(ctx, tx, houseID.Int64)
		}
		return nil
	})
}

// KTPPhotoPath returns the stored photo path of a resident.
func (r *SQLiteRepository) KTPPhotoPath(ctx context.Context, id int64) (string, error) {
	var path string
	err := r.db.QueryRowContext(ctx, `SELECT ktp_photo FROM residents WHERE id = ?`, id).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("resident %d: %w", id, ErrNotFound)
	}
	return path, err
}

// moveResident closes the resident's open row (if it is in another house)
// and opens one in houseID.
func moveResident(ctx context.Context, tx *sql.Tx, residentID, houseID int64, start core.Date) error {
	if start.IsZero() {
		start = core.DateOf(time.Now())
	}
	var (
		current     sql.NullInt64
		currentFrom string
	)
	err := tx.QueryRowContext(ctx,
		`SELECT house_id, start_date FROM inhabitant_histories WHERE resident_id = ? AND end_date IS NULL`,
		residentID).Scan(&current, &currentFrom)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("find open history: %w", err)
	}
	if current.Valid && current.Int64 == houseID {
		return nil
	}
	if current.Valid {
		// The closed row may not end before it began; a backdated move
		// starts the new row on the day the old one started.
		if from := core.Date(currentFrom); start.Before(from) {
			start = from
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE inhabitant_histories SET end_date = ?, updated_at = CURRENT_TIMESTAMP
WHERE resident_id = ? AND end_date IS NULL`, start.String(), residentID); err != nil {
			return fmt.Errorf("close open history: %w", err)
		}
		if err := syncHouseFlag(ctx, tx, current.Int64); err != nil {
			return err
		}
	}
	_, err = insertHistory(ctx, tx, core.InhabitantHistory{ResidentID: residentID, HouseID: houseID, StartDate: start})
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
