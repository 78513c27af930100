package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrms/internal/store"
	"hrms/internal/store/storetest"
)

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := store.Open(context.Background(), "mysql://root@localhost/hrms", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database url")
}

func TestOpenIsIdempotent(t *testing.T) {
	url := "sqlite://" + filepath.Join(t.TempDir(), "nested", "hrms.db")
	ctx := context.Background()

	first, err := store.Open(ctx, url, 2)
	require.NoError(t, err)
	assert.Equal(t, store.SQLite, first.Dialect)
	require.NoError(t, first.Close())

	second, err := store.Open(ctx, url, 2)
	require.NoError(t, err)
	defer second.Close()
	assert.True(t, second.Healthy(ctx))
}

func TestUniqueViolationDetected(t *testing.T) {
	db := storetest.New(t)
	ctx := context.Background()

	insert := `INSERT INTO employees (employee_id, full_name, email, department) VALUES ($1, $2, $3, $4)`
	_, err := db.Client.ExecContext(ctx, insert, "E1", "Ann Lee", "ann@x.com", "Eng")
	require.NoError(t, err)

	_, err = db.Client.ExecContext(ctx, insert, "E2", "Ann Twin", "ann@x.com", "Eng")
	require.Error(t, err)
	detail, ok := store.UniqueViolation(err)
	require.True(t, ok)
	assert.Contains(t, detail, "email")
	assert.False(t, store.ForeignKeyViolation(err))
}

func TestForeignKeyViolationDetected(t *testing.T) {
	db := storetest.New(t)

	_, err := db.Client.ExecContext(context.Background(),
		`INSERT INTO attendance (employee_id, date, status) VALUES ($1, $2, $3)`, 99, "2025-01-01", "Present")
	require.Error(t, err)
	assert.True(t, store.ForeignKeyViolation(err))
	_, unique := store.UniqueViolation(err)
	assert.False(t, unique)
}

func TestInTxRollsBackOnError(t *testing.T) {
	db := storetest.New(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO employees (employee_id, full_name, email, department) VALUES ($1, $2, $3, $4)`,
			"E1", "Ann Lee", "ann@x.com", "Eng")
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.Client.QueryRowContext(ctx, `SELECT COUNT(*) FROM employees`).Scan(&count))
	assert.Zero(t, count)
}

func TestRedisHealthy(t *testing.T) {
	assert.Nil(t, store.NewRedis(""))

	mr := miniredis.RunT(t)
	r := store.NewRedis(mr.Addr())
	defer r.Close()
	assert.True(t, r.Healthy(context.Background()))

	mr.Close()
	assert.False(t, r.Healthy(context.Background()))
}

func TestInReadTxSeesOneSnapshot(t *testing.T) {
	db := storetest.New(t)
	ctx := context.Background()
	count := func(q store.Querier) int {
		var n int
		require.NoError(t, q.QueryRowContext(ctx, `SELECT COUNT(*) FROM employees`).Scan(&n))
		return n
	}

	writeErr := make(chan error, 1)
	err := db.InReadTx(ctx, func(tx *sql.Tx) error {
		before := count(tx)
		go func() {
			_, err := db.Client.ExecContext(ctx,
				`INSERT INTO employees (employee_id, full_name, email, department) VALUES ($1, $2, $3, $4)`,
				"E1", "Ann Lee", "ann@x.com", "Eng")
			writeErr <- err
		}()
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, before, count(tx))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, <-writeErr)
	assert.Equal(t, 1, count(db.Client))
}

func TestPostgresConstraintErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantDetail string
		wantUnique bool
		wantFK     bool
	}{
		{"unique email", &pgconn.PgError{Code: "23505", ConstraintName: "employees_email_key"}, "employees_email_key", true, false},
		{"wrapped unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "attendance_employee_date_key"}), "attendance_employee_date_key", true, false},
		{"foreign key", &pgconn.PgError{Code: "23503", ConstraintName: "attendance_employee_id_fkey"}, "", false, true},
		{"check", &pgconn.PgError{Code: "23514"}, "", false, false},
		{"plain", errors.New("connection reset"), "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detail, unique := store.UniqueViolation(tt.err)
			assert.Equal(t, tt.wantUnique, unique)
			assert.Equal(t, tt.wantDetail, detail)
			assert.Equal(t, tt.wantFK, store.ForeignKeyViolation(tt.err))
		})
	}
}
