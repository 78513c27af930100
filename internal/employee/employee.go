package employee

import (
	"fmt"
	"strings"

	"hrms/internal/validation"
)

// Messages surfaced to API callers.
const (
	MsgEmployeeIDTaken = "Employee ID already exists"
	MsgEmailTaken      = "Email already in use"
	MsgNotFound        = "Employee not found."
)

// Employee represents a registered employee.
type Employee struct {
	ID         int64  `json:"id"`
	EmployeeID string `json:"employee_id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Department string `json:"department"`
}

// String renders "Full Name (EMPLOYEE_ID)".
func (e Employee) String() string {
	return fmt.Sprintf("%s (%s)", e.FullName, e.EmployeeID)
}

// Registration is the payload accepted when creating an employee.
type Registration struct {
	EmployeeID string `json:"employee_id" validate:"required,max=50"`
	FullName   string `json:"full_name" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,max=254,email"`
	Department string `json:"department" validate:"required,max=100"`
}

// Normalize trims surrounding whitespace from every field.
func (r *Registration) Normalize() {
	r.EmployeeID = strings.TrimSpace(r.EmployeeID)
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.TrimSpace(r.Email)
	r.Department = strings.TrimSpace(r.Department)
}

// Validate normalizes r and checks field syntax. Uniqueness is checked against the store separately.
func (r *Registration) Validate() error {
	r.Normalize()
	return validation.Struct(r)
}
