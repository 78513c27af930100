package attendance

import (
	"fmt"
	"strings"

	"hrms/internal/validation"
)

// Status is the daily attendance outcome.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
)

// Messages surfaced to API callers.
const (
	MsgFutureDate = "Future dates are not allowed for attendance marking."
	MsgDuplicate  = "Attendance for this date is already marked. You cannot mark it again."
)

// Record is one employee's attendance for one day.
type Record struct {
	ID         int64  `json:"id"`
	EmployeeID int64  `json:"-"`
	Date       Date   `json:"date"`
	Status     Status `json:"status"`
}

// Mark is the payload accepted when marking attendance.
type Mark struct {
	Employee int64  `json:"employee" validate:"required,gt=0"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Status   string `json:"status" validate:"required,oneof=Present Absent"`
}

// Validate normalizes m and checks field syntax, returning the parsed date.
func (m *Mark) Validate() (Date, error) {
	m.Date = strings.TrimSpace(m.Date)
	m.Status = strings.TrimSpace(m.Status)
	if err := validation.Struct(m); err != nil {
		return Date{}, err
	}
	d, err := ParseDate(m.Date)
	if err != nil {
		return Date{}, validation.Invalid("date", "Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
	}
	return d, nil
}

// CheckDateNotFuture rejects dates strictly after today.
func CheckDateNotFuture(d, today Date) error {
	if d.After(today) {
		return validation.Invalid("date", MsgFutureDate)
	}
	return nil
}

func unknownEmployee(id int64) error {
	return validation.Invalid("employee", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
}
