package attendance

import (
	"context"
	"fmt"

	"hrms/internal/store"
	"hrms/internal/validation"
)

// Repository persists attendance records. It runs against a *sql.DB or a *sql.Tx.
type Repository struct {
	q store.Querier
}

// NewRepository creates a repo.
func NewRepository(q store.Querier) *Repository {
	return &Repository{q: q}
}

// CheckNotDuplicate fails with a conflict when employeeID already has a record for d.
func (r *Repository) CheckNotDuplicate(ctx context.Context, employeeID int64, d Date) error {
	var found bool
	row := r.q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM attendance WHERE employee_id = $1 AND date = $2)
	`, employeeID, d)
	if err := row.Scan(&found); err != nil {
		return fmt.Errorf("check duplicate attendance: %w", err)
	}
	if found {
		return validation.Conflict("date", MsgDuplicate)
	}
	return nil
}

// Insert writes a new record. The (employee, date) unique index turns a lost
// race into the duplicate conflict; a vanished employee becomes an invalid reference.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	row := r.q.QueryRowContext(ctx, `
		INSERT INTO attendance (employee_id, date, status)
		VALUES ($1, $2, $3)
		RETURNING id
	`, rec.EmployeeID, rec.Date, string(rec.Status))
	if err := row.Scan(&rec.ID); err != nil {
		if _, ok := store.UniqueViolation(err); ok {
			return Record{}, validation.Conflict("date", MsgDuplicate)
		}
		if store.ForeignKeyViolation(err) {
			return Record{}, unknownEmployee(rec.EmployeeID)
		}
		return Record{}, fmt.Errorf("insert attendance: %w", err)
	}
	return rec, nil
}

// ListByEmployee returns the employee's records, most recent first.
func (r *Repository) ListByEmployee(ctx context.Context, employeeID int64) ([]Record, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, employee_id, date, status
		FROM attendance
		WHERE employee_id = $1
		ORDER BY date DESC, id DESC
	`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EmployeeID, &rec.Date, &rec.Status); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
