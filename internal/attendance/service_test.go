package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrms/internal/employee"
	"hrms/internal/store"
	"hrms/internal/store/storetest"
	"hrms/internal/validation"
)

var fixedNow = time.Date(2025, time.January, 10, 15, 30, 0, 0, time.Local)

type fixture struct {
	db        *store.DB
	svc       *Service
	employees *employee.Service
	ann       employee.Employee
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := storetest.New(t)
	employees := employee.NewService(db)
	ann, err := employees.Register(context.Background(), employee.Registration{
		EmployeeID: "E1", FullName: "Ann Lee", Email: "ann@x.com", Department: "Eng",
	})
	require.NoError(t, err)
	return fixture{
		db:        db,
		svc:       NewService(db, WithClock(func() time.Time { return fixedNow })),
		employees: employees,
		ann:       ann,
	}
}

func (f fixture) count(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.Client.QueryRow(`SELECT COUNT(*) FROM attendance`).Scan(&n))
	return n
}

func requireFailure(t *testing.T, err error, kind validation.Kind, field, msg string) {
	t.Helper()
	var ve *validation.Error
	require.True(t, errors.As(err, &ve), "want validation error, got %v", err)
	assert.Equal(t, kind, ve.Kind)
	assert.Equal(t, field, ve.Field)
	assert.Equal(t, msg, ve.Message)
}

func TestMarkStoresRecord(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Mark(context.Background(), Mark{Employee: f.ann.ID, Date: "2025-01-01", Status: "Present"})
	require.NoError(t, err)
	assert.NotZero(t, out.Record.ID)
	assert.Equal(t, Date{2025, time.January, 1}, out.Record.Date)
	assert.Equal(t, StatusPresent, out.Record.Status)
	assert.Equal(t, f.ann, out.Employee)
	assert.Equal(t, 1, f.count(t))
}

func TestMarkTodayAllowed(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Mark(context.Background(), Mark{Employee: f.ann.ID, Date: "2025-01-10", Status: "Absent"})
	require.NoError(t, err)
}

func TestMarkRejectsFutureDate(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Mark(context.Background(), Mark{Employee: f.ann.ID, Date: "2025-01-11", Status: "Present"})
	requireFailure(t, err, validation.KindInvalid, "date", MsgFutureDate)
	assert.Zero(t, f.count(t))
}

func TestMarkRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := Mark{Employee: f.ann.ID, Date: "2025-01-01", Status: "Present"}

	_, err := f.svc.Mark(ctx, m)
	require.NoError(t, err)

	m.Status = "Absent"
	_, err = f.svc.Mark(ctx, m)
	requireFailure(t, err, validation.KindConflict, "date", MsgDuplicate)
	assert.Equal(t, 1, f.count(t))
}

func TestMarkUnknownEmployee(t *testing.T) {
	f := newFixture(t)

	// the employee check runs before the date check
	_, err := f.svc.Mark(context.Background(), Mark{Employee: 999, Date: "2030-01-01", Status: "Present"})
	requireFailure(t, err, validation.KindInvalid, "employee", `Invalid pk "999" - object does not exist.`)
}

func TestMarkFieldValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Mark(context.Background(), Mark{Employee: f.ann.ID, Date: "01/02/2025", Status: "Late"})
	var fe validation.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "Date has wrong format. Use one of these formats instead: YYYY-MM-DD.", fe.First())
	assert.Equal(t, []string{`"Late" is not a valid choice.`}, fe.Map()["status"])

	_, err = f.svc.Mark(context.Background(), Mark{})
	require.True(t, errors.As(err, &fe))
	assert.Len(t, fe, 3)
}

func TestInsertBackstopsDuplicate(t *testing.T) {
	f := newFixture(t)
	repo := NewRepository(f.db.Client)
	ctx := context.Background()
	rec := Record{EmployeeID: f.ann.ID, Date: Date{2025, time.January, 3}, Status: StatusPresent}

	_, err := repo.Insert(ctx, rec)
	require.NoError(t, err)
	_, err = repo.Insert(ctx, rec)
	requireFailure(t, err, validation.KindConflict, "date", MsgDuplicate)

	rec.EmployeeID = 404
	_, err = repo.Insert(ctx, rec)
	requireFailure(t, err, validation.KindInvalid, "employee", `Invalid pk "404" - object does not exist.`)
}

func TestConcurrentMarkSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Mark(ctx, Mark{Employee: f.ann.ID, Date: "2025-01-05", Status: "Present"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case validation.KindOf(err) == validation.KindConflict:
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, others)
	assert.Equal(t, 1, successes)
	assert.Equal(t, writers-1, conflicts)
	assert.Equal(t, 1, f.count(t))
}

func TestHistoryOrderedMostRecentFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, d := range []string{"2025-01-01", "2025-01-03", "2025-01-02"} {
		_, err := f.svc.Mark(ctx, Mark{Employee: f.ann.ID, Date: d, Status: "Present"})
		require.NoError(t, err)
	}

	h, err := f.svc.History(ctx, f.ann.ID)
	require.NoError(t, err)
	assert.Equal(t, f.ann, h.Employee)
	require.Len(t, h.Records, 3)
	assert.Equal(t, "2025-01-03", h.Records[0].Date.String())
	assert.Equal(t, "2025-01-02", h.Records[1].Date.String())
	assert.Equal(t, "2025-01-01", h.Records[2].Date.String())
}

func TestHistoryEmptyAndMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h, err := f.svc.History(ctx, f.ann.ID)
	require.NoError(t, err)
	assert.NotNil(t, h.Records)
	assert.Empty(t, h.Records)

	_, err = f.svc.History(ctx, 12345)
	assert.Equal(t, validation.KindNotFound, validation.KindOf(err))
}

func TestHistoryAfterDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Mark(ctx, Mark{Employee: f.ann.ID, Date: "2025-01-01", Status: "Present"})
	require.NoError(t, err)
	_, err = f.employees.Delete(ctx, f.ann.ID)
	require.NoError(t, err)

	_, err = f.svc.History(ctx, f.ann.ID)
	assert.Equal(t, validation.KindNotFound, validation.KindOf(err))
	assert.Zero(t, f.count(t))
}

func TestHistoryNeverSeesHalfDeletedEmployee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, d := range []string{"2025-01-01", "2025-01-02"} {
		_, err := f.svc.Mark(ctx, Mark{Employee: f.ann.ID, Date: d, Status: "Present"})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.employees.Delete(ctx, f.ann.ID)
		assert.NoError(t, err)
	}()

	for i := 0; i < 50; i++ {
		h, err := f.svc.History(ctx, f.ann.ID)
		if err != nil {
			require.Equal(t, validation.KindNotFound, validation.KindOf(err))
			continue
		}
		assert.Len(t, h.Records, 2)
	}
	wg.Wait()
}
