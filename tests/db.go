//go:build integration
// +build integration

package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/maktab-uz/maktab/storage/database"
)

// PrepareDB starts a disposable PostgreSQL container and returns a migrated connection to it.
// The container is terminated when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	pg, err := postgres.RunContainer(ctx,
		tc.WithImage("postgres:17-alpine"),
		postgres.WithDatabase("maktab_test"),
		postgres.WithUsername("maktab"),
		postgres.WithPassword("maktab"),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Ping(ctx, db); err != nil {
		t.Fatalf("pinging database: %v", err)
	}
	if err = database.Migrate(ctx, db.DB, "up"); err != nil {
		t.Fatalf("migrating database: %v", err)
	}
	return db
}

// ResetDB empties every table of db.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	if _, err := db.Exec(`TRUNCATE "user", profile, parent, parent_student CASCADE`); err != nil {
		t.Fatalf("resetting database: %v", err)
	}
}
