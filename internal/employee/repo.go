package employee

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"hrms/internal/store"
	"hrms/internal/validation"
)

// Repository persists employees. It runs against a *sql.DB or a *sql.Tx.
type Repository struct {
	q store.Querier
}

// NewRepository creates a repo.
func NewRepository(q store.Querier) *Repository {
	return &Repository{q: q}
}

const employeeColumns = `id, employee_id, full_name, email, department`

// List returns all employees ordered by full name.
func (r *Repository) List(ctx context.Context) ([]Employee, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY full_name, id`)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	employees := []Employee{}
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.EmployeeID, &e.FullName, &e.Email, &e.Department); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// Get returns the employee with the given surrogate id, or nil when absent.
func (r *Repository) Get(ctx context.Context, id int64) (*Employee, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id)
	var e Employee
	if err := row.Scan(&e.ID, &e.EmployeeID, &e.FullName, &e.Email, &e.Department); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get employee %d: %w", id, err)
	}
	return &e, nil
}

// CheckEmployeeIDAvailable fails with a conflict when another row already uses candidate.
// excluding is a row id to ignore; 0 excludes nothing.
func (r *Repository) CheckEmployeeIDAvailable(ctx context.Context, candidate string, excluding int64) error {
	taken, err := r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM employees WHERE employee_id = $1 AND id <> $2)`, candidate, excluding)
	if err != nil {
		return fmt.Errorf("check employee_id: %w", err)
	}
	if taken {
		return validation.Conflict("employee_id", MsgEmployeeIDTaken)
	}
	return nil
}

// CheckEmailAvailable fails with a conflict when another row already uses candidate.
func (r *Repository) CheckEmailAvailable(ctx context.Context, candidate string, excluding int64) error {
	taken, err := r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM employees WHERE email = $1 AND id <> $2)`, candidate, excluding)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken {
		return validation.Conflict("email", MsgEmailTaken)
	}
	return nil
}

func (r *Repository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var found bool
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

// Insert writes a new employee. A unique constraint failure becomes the same
// conflict the availability checks report.
func (r *Repository) Insert(ctx context.Context, reg Registration) (Employee, error) {
	e := Employee{
		EmployeeID: reg.EmployeeID,
		FullName:   reg.FullName,
		Email:      reg.Email,
		Department: reg.Department,
	}
	row := r.q.QueryRowContext(ctx, `
		INSERT INTO employees (employee_id, full_name, email, department)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, e.EmployeeID, e.FullName, e.Email, e.Department)
	if err := row.Scan(&e.ID); err != nil {
		if detail, ok := store.UniqueViolation(err); ok {
			return Employee{}, conflictFor(detail)
		}
		return Employee{}, fmt.Errorf("insert employee: %w", err)
	}
	return e, nil
}

func conflictFor(detail string) error {
	if strings.Contains(detail, "email") {
		return validation.Conflict("email", MsgEmailTaken)
	}
	return validation.Conflict("employee_id", MsgEmployeeIDTaken)
}

// Delete removes the employee and its attendance rows. Callers wrap it in a
// transaction so both statements land together.
func (r *Repository) Delete(ctx context.Context, id int64) (int64, error) {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM attendance WHERE employee_id = $1`, id); err != nil {
		return 0, fmt.Errorf("delete attendance of %d: %w", id, err)
	}
	res, err := r.q.ExecContext(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete employee %d: %w", id, err)
	}
	return res.RowsAffected()
}
