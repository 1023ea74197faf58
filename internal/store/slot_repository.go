package store

import (
	"context"
	"fmt"
	"strings"

	"interview-scheduler/internal/model"
)

const slotColumns = `id, employer_id, to_char(date, 'YYYY-MM-DD'), start_time, end_time, timezone,
	is_available, max_candidates, current_bookings, created_at`

type SlotRepository struct {
	db DB
}

func NewSlotRepository(db DB) *SlotRepository {
	return &SlotRepository{db: db}
}

func scanSlot(row scanner) (*model.Slot, error) {
	var s model.Slot
	err := row.Scan(&s.ID, &s.EmployerID, &s.Date, &s.StartTime, &s.EndTime, &s.Timezone,
		&s.IsAvailable, &s.MaxCandidates, &s.CurrentBookings, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ReplaceRange deletes every slot of the employer dated within [from, to] and
// inserts slots in the same transaction.
func (r *SlotRepository) ReplaceRange(ctx context.Context, employerID, from, to string, slots []model.Slot) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM slots WHERE employer_id = $1 AND date BETWEEN $2::date AND $3::date`,
		employerID, from, to,
	); err != nil {
		return fmt.Errorf("delete slots: %w", err)
	}

	insertQ := `INSERT INTO slots
		(id, employer_id, date, start_time, end_time, timezone, is_available, max_candidates, current_bookings)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, 0)`
	for _, s := range slots {
		if _, err := tx.Exec(ctx, insertQ,
			s.ID, employerID, s.Date, s.StartTime, s.EndTime, s.Timezone, s.IsAvailable, s.MaxCandidates,
		); err != nil {
			return fmt.Errorf("insert slot %s %s: %w", s.Date, s.StartTime, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SlotRepository) Get(ctx context.Context, id string) (*model.Slot, error) {
	row := r.db.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id)
	s, err := scanSlot(row)
	if err != nil {
		return nil, notFound(err, "slot")
	}
	return s, nil
}

// ListAvailable compares current_bookings to max_candidates in SQL, so only
// slots with spare capacity leave the database.
func (r *SlotRepository) ListAvailable(ctx context.Context, filter model.SlotFilter) ([]model.Slot, error) {
	where := []string{"is_available", "current_bookings < max_candidates"}
	where, args := appendSlotFilter(where, nil, filter)
	return r.list(ctx, where, args)
}

// ListRange returns every slot of the employer in the range, booked or not.
func (r *SlotRepository) ListRange(ctx context.Context, employerID string, rng model.DateRange) ([]model.Slot, error) {
	where, args := appendSlotFilter(nil, nil, model.SlotFilter{EmployerID: employerID, Range: rng})
	return r.list(ctx, where, args)
}

func appendSlotFilter(where []string, args []any, filter model.SlotFilter) ([]string, []any) {
	if filter.EmployerID != "" {
		args = append(args, filter.EmployerID)
		where = append(where, fmt.Sprintf("employer_id = $%d", len(args)))
	}
	if filter.Range.From != "" {
		args = append(args, filter.Range.From)
		where = append(where, fmt.Sprintf("date >= $%d::date", len(args)))
	}
	if filter.Range.To != "" {
		args = append(args, filter.Range.To)
		where = append(where, fmt.Sprintf("date <= $%d::date", len(args)))
	}
	return where, args
}

func (r *SlotRepository) list(ctx context.Context, where []string, args []any) ([]model.Slot, error) {
	q := `SELECT ` + slotColumns + ` FROM slots`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY date, start_time`

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var out []model.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return out, nil
}
