package attendance

import (
	"context"
	"database/sql"
	"time"

	"hrms/internal/employee"
	"hrms/internal/store"
	"hrms/internal/validation"
)

// Marked is the outcome of a successful Mark call.
type Marked struct {
	Record   Record
	Employee employee.Employee
}

// History is an employee's attendance, most recent first.
type History struct {
	Employee employee.Employee
	Records  []Record
}

// Service coordinates attendance marking and history lookups.
type Service struct {
	db  *store.DB
	now func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the source of "today". The date is taken in the returned time's location.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a service backed by db.
func NewService(db *store.DB, opts ...Option) *Service {
	s := &Service{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mark records attendance for one employee and day. Checks run in order: the
// employee must exist, the date must not be in the future, and the day must not
// already be marked. The insert shares the checks' transaction.
func (s *Service) Mark(ctx context.Context, m Mark) (Marked, error) {
	day, err := m.Validate()
	if err != nil {
		return Marked{}, err
	}

	var out Marked
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		emp, err := employee.NewRepository(tx).Get(ctx, m.Employee)
		if err != nil {
			return err
		}
		if emp == nil {
			return unknownEmployee(m.Employee)
		}
		if err := CheckDateNotFuture(day, DateOf(s.now())); err != nil {
			return err
		}
		repo := NewRepository(tx)
		if err := repo.CheckNotDuplicate(ctx, emp.ID, day); err != nil {
			return err
		}
		rec, err := repo.Insert(ctx, Record{EmployeeID: emp.ID, Date: day, Status: Status(m.Status)})
		if err != nil {
			return err
		}
		out = Marked{Record: rec, Employee: *emp}
		return nil
	})
	if err != nil {
		return Marked{}, err
	}
	return out, nil
}

// History returns every record for the employee, or a not-found failure when
// the employee does not exist. Both reads share one snapshot so a concurrent
// delete is seen entirely or not at all.
func (s *Service) History(ctx context.Context, employeeID int64) (History, error) {
	var out History
	err := s.db.InReadTx(ctx, func(tx *sql.Tx) error {
		emp, err := employee.NewRepository(tx).Get(ctx, employeeID)
		if err != nil {
			return err
		}
		if emp == nil {
			return validation.NotFound(employee.MsgNotFound)
		}
		records, err := NewRepository(tx).ListByEmployee(ctx, emp.ID)
		if err != nil {
			return err
		}
		out = History{Employee: *emp, Records: records}
		return nil
	})
	if err != nil {
		return History{}, err
	}
	return out, nil
}
