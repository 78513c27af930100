package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hrms/internal/attendance"
	"hrms/internal/employee"
	"hrms/internal/metrics"
	"hrms/internal/store"
)

// Handler serves the employee and attendance endpoints.
type Handler struct {
	employees  *employee.Service
	attendance *attendance.Service
	db         *store.DB
	redis      *store.Redis // nil when redis is not configured
	log        *zap.Logger
}

// NewHandler wires the services behind the HTTP surface.
func NewHandler(db *store.DB, redis *store.Redis, employees *employee.Service, att *attendance.Service, log *zap.Logger) *Handler {
	return &Handler{employees: employees, attendance: att, db: db, redis: redis, log: log}
}

// ---------- Health ----------

// Healthz reports database and redis reachability; 503 when either is down.
func (h *Handler) Healthz(c *gin.Context) {
	ctx := c.Request.Context()
	dbHealthy := h.db.Healthy(ctx)
	body := gin.H{"status": "ok", "db": dbHealthy}
	healthy := dbHealthy
	if h.redis != nil {
		redisHealthy := h.redis.Healthy(ctx)
		body["redis"] = redisHealthy
		healthy = healthy && redisHealthy
	}
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}

// ---------- Employees ----------

// ListEmployees returns every employee ordered by name.
func (h *Handler) ListEmployees(c *gin.Context) {
	list, err := h.employees.List(c.Request.Context())
	if err != nil {
		h.fail(c, err, detailed)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": list, "count": len(list)})
}

// CreateEmployee registers an employee. Failures carry per-field errors.
func (h *Handler) CreateEmployee(c *gin.Context) {
	var req employee.Registration
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, detailed)
		return
	}

	created, err := h.employees.Register(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, detailed)
		return
	}

	metrics.RecordsCreated.WithLabelValues("employee").Inc()
	h.log.Info("employee registered", zap.Int64("id", created.ID), zap.String("employee_id", created.EmployeeID))
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Employee created successfully",
		"data":    created,
	})
}

// DeleteEmployee removes an employee together with its attendance.
func (h *Handler) DeleteEmployee(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		notFound(c)
		return
	}

	removed, err := h.employees.Delete(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, firstMessage)
		return
	}

	metrics.RecordsDeleted.Inc()
	h.log.Info("employee deleted", zap.Int64("id", removed.ID), zap.String("employee_id", removed.EmployeeID))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Employee %s deleted successfully", removed),
	})
}

// ---------- Attendance ----------

// MarkAttendance records Present or Absent for one employee and day.
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req attendance.Mark
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, firstMessage)
		return
	}

	out, err := h.attendance.Mark(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, firstMessage)
		return
	}

	metrics.RecordsCreated.WithLabelValues("attendance").Inc()
	h.log.Info("attendance marked",
		zap.Int64("employee", out.Employee.ID),
		zap.Stringer("date", out.Record.Date),
		zap.String("status", string(out.Record.Status)))
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": fmt.Sprintf("Attendance marked for %s on %s", out.Employee.FullName, out.Record.Date),
		"data":    out.Record,
	})
}

// EmployeeAttendance returns the employee and its records, most recent first.
func (h *Handler) EmployeeAttendance(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		notFound(c)
		return
	}

	history, err := h.attendance.History(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, firstMessage)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"employee":           history.Employee,
		"attendance_records": history.Records,
		"total_records":      len(history.Records),
	})
}
