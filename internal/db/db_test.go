package db_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nurpe/koshtorys/internal/config"
	"github.com/nurpe/koshtorys/internal/db"
	"github.com/nurpe/koshtorys/internal/db/dbtest"
)

func TestMigrateIsIdempotent(t *testing.T) {
	database := dbtest.Open(t)
	require.NoError(t, db.Migrate(database))

	for _, table := range []string{"budgets", "kekv", "contracts", "specifications", "usage_records", "vehicles", "vehicle_contracts"} {
		assert.True(t, database.Migrator().HasTable(table), table)
	}
}

func TestSchemaRejectsOverdrawnKEKV(t *testing.T) {
	database := dbtest.Open(t)

	err := database.Exec(`INSERT INTO budgets (id, owner_id, name, year, date, total_amount, used_amount, created_at, updated_at)
		VALUES ('b1', 'o1', 'B', 2025, '2025-01-01', 100, 101, '2025-01-01 00:00:00', '2025-01-01 00:00:00')`).Error
	assert.Error(t, err)
}

func TestNewWithSQLite(t *testing.T) {
	cfg := &config.Config{
		Environment: "test",
		DB: config.DBConfig{
			Driver:          config.DriverSQLite,
			DSN:             dbtest.DSN(),
			ConnMaxLifetime: "1m",
		},
	}
	database, err := db.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, database.Migrator().HasTable("budgets"))

	cfg.DB.ConnMaxLifetime = "soon"
	_, err = db.New(cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "DB_CONN_MAX_LIFETIME")
}

func TestDialectRejectsUnknownDriver(t *testing.T) {
	_, err := db.Dialect("oracle", "x")
	assert.Error(t, err)
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", fmt.Errorf("exec: %w", driver.ErrBadConn), true},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"connection exception", &pgconn.PgError{Code: "08006"}, true},
		{"check violation", &pgconn.PgError{Code: "23514"}, false},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"cancelled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, db.IsTransient(tc.err))
		})
	}
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, db.IsDuplicateKey(&pgconn.PgError{Code: "23505"}))
	assert.True(t, db.IsDuplicateKey(errors.New("UNIQUE constraint failed: vehicles.vin")))
	assert.False(t, db.IsDuplicateKey(errors.New("boom")))
}

func TestTransactorRetriesTransientFailures(t *testing.T) {
	tx := db.NewTransactor(dbtest.Open(t), 2, zerolog.Nop())

	calls := 0
	err := tx.Do(context.Background(), func(*gorm.DB) error {
		calls++
		if calls < 3 {
			return driver.ErrBadConn
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestTransactorGivesUpWithStorageUnavailable(t *testing.T) {
	tx := db.NewTransactor(dbtest.Open(t), 1, zerolog.Nop())

	calls := 0
	err := tx.Do(context.Background(), func(*gorm.DB) error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})
	assert.ErrorIs(t, err, db.ErrStorageUnavailable)
	assert.Equal(t, 2, calls)
}

func TestTransactorDoesNotRetryBusinessErrors(t *testing.T) {
	tx := db.NewTransactor(dbtest.Open(t), 3, zerolog.Nop())
	rule := errors.New("rule broken")

	calls := 0
	err := tx.Do(context.Background(), func(*gorm.DB) error {
		calls++
		return fmt.Errorf("wrapped: %w", rule)
	})
	assert.ErrorIs(t, err, rule)
	assert.NotErrorIs(t, err, db.ErrStorageUnavailable)
	assert.Equal(t, 1, calls)
}

func TestTransactorRollsBack(t *testing.T) {
	database := dbtest.Open(t)
	tx := db.NewTransactor(database, 0, zerolog.Nop())

	err := tx.Do(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Exec(`INSERT INTO vehicles (id, owner_id, vin, created_at, updated_at)
			VALUES ('v1', 'o1', 'VIN1', '2025-01-01 00:00:00', '2025-01-01 00:00:00')`).Error; err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, database.Table("vehicles").Count(&count).Error)
	assert.Zero(t, count)
}
