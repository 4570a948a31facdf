package inmemdb_test

import (
	"testing"

	inmemdb "github.com/maktab-uz/maktab/storage/database/inmem"
	"github.com/maktab-uz/maktab/tests"
)

func TestUserRepository(t *testing.T) {
	db := inmemdb.Open()
	testutil.RunRepositoryTests(t, inmemdb.NewUserRepository(db), db.Reset)
}

func TestParentRepository(t *testing.T) {
	db := inmemdb.Open()
	testutil.RunParentRepositoryTests(t, inmemdb.NewParentRepository(db), inmemdb.NewUserRepository(db), db.Reset)
}
