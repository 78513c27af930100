package employee

import (
	"context"
	"database/sql"

	"hrms/internal/store"
	"hrms/internal/validation"
)

// Service coordinates employee registration and removal.
type Service struct {
	db *store.DB
}

// NewService creates a service backed by db.
func NewService(db *store.DB) *Service {
	return &Service{db: db}
}

// List returns every employee.
func (s *Service) List(ctx context.Context) ([]Employee, error) {
	return NewRepository(s.db.Client).List(ctx)
}

// Get returns the employee or a not-found failure.
func (s *Service) Get(ctx context.Context, id int64) (Employee, error) {
	e, err := NewRepository(s.db.Client).Get(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	if e == nil {
		return Employee{}, validation.NotFound(MsgNotFound)
	}
	return *e, nil
}

// Register validates reg and inserts it. The availability checks and the insert
// share one transaction; the unique indexes decide any race the checks miss.
func (s *Service) Register(ctx context.Context, reg Registration) (Employee, error) {
	if err := reg.Validate(); err != nil {
		return Employee{}, err
	}

	var created Employee
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		repo := NewRepository(tx)
		if err := repo.CheckEmployeeIDAvailable(ctx, reg.EmployeeID, 0); err != nil {
			return err
		}
		if err := repo.CheckEmailAvailable(ctx, reg.Email, 0); err != nil {
			return err
		}
		var err error
		created, err = repo.Insert(ctx, reg)
		return err
	})
	if err != nil {
		return Employee{}, err
	}
	return created, nil
}

// Delete removes the employee and all of its attendance in one transaction and
// returns the removed record.
func (s *Service) Delete(ctx context.Context, id int64) (Employee, error) {
	var removed Employee
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		repo := NewRepository(tx)
		e, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if e == nil {
			return validation.NotFound(MsgNotFound)
		}
		n, err := repo.Delete(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return validation.NotFound(MsgNotFound)
		}
		removed = *e
		return nil
	})
	if err != nil {
		return Employee{}, err
	}
	return removed, nil
}
