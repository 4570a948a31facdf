//go:build integration
// +build integration

package sqlxrepos_test

import (
	"testing"

	sqlxrepos "github.com/maktab-uz/maktab/storage/database/sqlx"
	"github.com/maktab-uz/maktab/tests"
)

func TestUserRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	testutil.RunRepositoryTests(t, sqlxrepos.NewUserRepository(db), func() { testutil.ResetDB(t, db) })
}

func TestParentRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	testutil.RunParentRepositoryTests(t, sqlxrepos.NewParentRepository(db), sqlxrepos.NewUserRepository(db), func() { testutil.ResetDB(t, db) })
}
