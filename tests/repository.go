package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/parent"
	"github.com/maktab-uz/maktab/core/user"
)

// RunRepositoryTests checks the behaviour every user.Repository implementation must share.
// reset must empty the storage of repo.
func RunRepositoryTests(t *testing.T, repo user.Repository, reset func()) {
	tests := []struct {
		name string
		fn   func(t *testing.T, repo user.Repository)
	}{
		{"users", testUsers},
		{"query users", testQueryUsers},
		{"profiles", testProfiles},
	}
	for _, tt := range tests {
		reset()
		t.Run(tt.name, func(t *testing.T) { tt.fn(t, repo) })
	}
}

func ids(users []user.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func testUsers(t *testing.T, repo user.Repository) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	usr := CreateUser(t, repo, "Alisher", "+998901234567", "Tashkent#2024", user.NewRoles(user.RoleTeacher), true, now)
	other := CreateUser(t, repo, "Bobur", "+998907654321", "", nil, true, now)
	require.NotEmpty(t, usr.ID)

	t.Run("duplicate phone", func(t *testing.T) {
		_, err := repo.CreateUser(ctx, user.User{Phone: usr.Phone, PasswordHash: []byte("x"), CreatedAt: now, UpdatedAt: now})
		assert.Equal(t, user.ErrPhoneExists, errors.Cause(err))

		assert.Equal(t, user.ErrPhoneExists, errors.Cause(repo.CheckPhoneUniqueness(ctx, usr.Phone, nil)))
		assert.NoError(t, repo.CheckPhoneUniqueness(ctx, usr.Phone, []user.User{usr}))
		assert.NoError(t, repo.CheckPhoneUniqueness(ctx, "+998900000000", nil))
	})

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
		require.NoError(t, err)
		assert.Equal(t, usr.Phone, got.Phone)
		assert.Equal(t, usr.FullName, got.FullName)
		assert.Equal(t, usr.Roles, got.Roles)
		assert.True(t, usr.CreatedAt.Equal(got.CreatedAt))
		assert.False(t, got.LastLogin.Valid)
		assert.NoError(t, got.CheckPassword("Tashkent#2024"))

		got, err = repo.GetUser(ctx, user.GetFilter{Phone: other.Phone})
		require.NoError(t, err)
		assert.Equal(t, other.ID, got.ID)
		assert.Empty(t, got.Roles)

		for _, filter := range []user.GetFilter{{}, {ID: "lol"}, {ID: uuid.New().String()}, {Phone: "+998900000000"}} {
			_, err = repo.GetUser(ctx, filter)
			assert.Equal(t, user.ErrNotFound, errors.Cause(err), "filter %+v", filter)
		}
	})

	t.Run("update", func(t *testing.T) {
		upd := usr
		upd.FullName = "Alisher Navoiy"
		upd.Roles = user.NewRoles(user.RoleTeacher, user.RoleAdmin)
		upd.IsActive = false
		upd.LastLogin.SetValid(now)
		_, err := repo.UpdateUser(ctx, upd)
		require.NoError(t, err)

		got, err := repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
		require.NoError(t, err)
		assert.Equal(t, "Alisher Navoiy", got.FullName)
		assert.Equal(t, user.Roles{user.RoleAdmin, user.RoleTeacher}, got.Roles)
		assert.False(t, got.IsActive)
		assert.True(t, got.LastLogin.Valid)
		assert.True(t, now.Equal(got.LastLogin.Time))

		upd.Phone = other.Phone
		_, err = repo.UpdateUser(ctx, upd)
		assert.Equal(t, user.ErrPhoneExists, errors.Cause(err))

		ghost := usr
		ghost.ID = uuid.New().String()
		ghost.Phone = "+998900000000"
		_, err = repo.UpdateUser(ctx, ghost)
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})

	t.Run("set last login", func(t *testing.T) {
		at := now.Add(time.Hour)
		require.NoError(t, repo.SetLastLogin(ctx, other.ID, at))

		got, err := repo.GetUser(ctx, user.GetFilter{ID: other.ID})
		require.NoError(t, err)
		assert.True(t, got.LastLogin.Valid)
		assert.True(t, at.Equal(got.LastLogin.Time))
		assert.Equal(t, other.FullName, got.FullName)
		assert.Equal(t, other.IsActive, got.IsActive)

		assert.Equal(t, user.ErrNotFound, errors.Cause(repo.SetLastLogin(ctx, uuid.New().String(), at)))
	})

	t.Run("delete", func(t *testing.T) {
		cnt, err := repo.DeleteUsersByID(ctx, []string{usr.ID, other.ID, uuid.New().String()})
		require.NoError(t, err)
		assert.Equal(t, 2, cnt)

		_, err = repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})
}

func testQueryUsers(t *testing.T, repo user.Repository) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	admin := CreateUser(t, repo, "Admin", "+998900000001", "", user.NewRoles(user.RoleAdmin), true, now.Add(-4*time.Hour))
	teacher := CreateUser(t, repo, "Master Yoda", "+998900000002", "", user.NewRoles(user.RoleTeacher, user.RoleStaff), true, now.Add(-3*time.Hour))
	student := CreateUser(t, repo, "Luke", "+998900000003", "", user.NewRoles(user.RoleStudent), true, now.Add(-2*time.Hour))
	inactive := CreateUser(t, repo, "Vader", "+998900000004", "", user.NewRoles(user.RoleStudent), false, now.Add(-1*time.Hour))

	bPtr := func(b bool) *bool { return &b }

	tests := []struct {
		name     string
		filter   *user.QueryFilter
		ordering []core.DBOrdering
		page     *core.Page
		want     []user.User
		count    int
	}{
		{name: "all, newest first", want: []user.User{inactive, student, teacher, admin}, count: 4},
		{name: "search is case-insensitive", filter: &user.QueryFilter{Search: "yOdA"}, want: []user.User{teacher}, count: 1},
		{name: "search by phone", filter: &user.QueryFilter{Search: "0000003"}, want: []user.User{student}, count: 1},
		{name: "any role", filter: &user.QueryFilter{Roles: []user.Role{user.RoleStaff, user.RoleAdmin}}, want: []user.User{teacher, admin}, count: 2},
		{name: "inactive", filter: &user.QueryFilter{IsActive: bPtr(false)}, want: []user.User{inactive}, count: 1},
		{
			name: "created range", filter: &user.QueryFilter{CreatedFrom: now.Add(-3 * time.Hour), CreatedTo: now.Add(-2 * time.Hour)},
			want: []user.User{student, teacher}, count: 2,
		},
		{
			name: "filters are ANDed", filter: &user.QueryFilter{Roles: []user.Role{user.RoleStudent}, IsActive: bPtr(true)},
			want: []user.User{student}, count: 1,
		},
		{name: "ordering", ordering: []core.DBOrdering{{Field: "full_name", Ascending: true}}, want: []user.User{admin, student, teacher, inactive}, count: 4},
		{name: "unknown ordering", ordering: []core.DBOrdering{{Field: "password_hash"}}, want: []user.User{inactive, student, teacher, admin}, count: 4},
		{name: "page", page: &core.Page{Number: 2, Size: 3}, want: []user.User{admin}, count: 4},
		{name: "page out of range", page: &core.Page{Number: 3, Size: 3}, want: []user.User{}, count: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, count, err := repo.QueryUsers(ctx, tt.filter, tt.ordering, tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.count, count)
			assert.Equal(t, ids(tt.want), ids(users))
		})
	}
}

func testProfiles(t *testing.T, repo user.Repository) {
	ctx := context.Background()

	student := CreateProfile(t, repo, user.KindStudent, "Luke", "+998900000001", "7B")
	teacher := CreateProfile(t, repo, user.KindTeacher, "Yoda", "+998900000002", "")
	require.NotEmpty(t, student.ID)
	assert.Equal(t, student.User.ID, student.UserID)

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetProfile(ctx, user.ProfileFilter{Kind: user.KindStudent, ID: student.ID})
		require.NoError(t, err)
		assert.Equal(t, student.UserID, got.OwnerID())
		assert.Equal(t, "Luke", got.User.FullName)
		assert.Equal(t, "7B", got.Description.String)

		got, err = repo.GetProfile(ctx, user.ProfileFilter{Kind: user.KindTeacher, UserID: teacher.UserID})
		require.NoError(t, err)
		assert.Equal(t, teacher.ID, got.ID)
		assert.False(t, got.Description.Valid)

		for _, filter := range []user.ProfileFilter{
			{Kind: user.KindStudent},
			{Kind: user.KindTeacher, ID: student.ID},
			{Kind: user.KindStudent, UserID: teacher.UserID},
			{Kind: user.KindStudent, ID: "lol"},
		} {
			_, err = repo.GetProfile(ctx, filter)
			assert.Equal(t, user.ErrProfileNotFound, errors.Cause(err), "filter %+v", filter)
		}
	})

	t.Run("create is atomic", func(t *testing.T) {
		now := time.Now().UTC()
		_, err := repo.CreateProfile(ctx,
			user.User{Phone: student.User.Phone, PasswordHash: []byte("x"), CreatedAt: now, UpdatedAt: now},
			user.Profile{Kind: user.KindTeacher, CreatedAt: now, UpdatedAt: now},
		)
		assert.Equal(t, user.ErrPhoneExists, errors.Cause(err))

		profs, count, err := repo.QueryProfiles(ctx, user.KindTeacher, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Len(t, profs, 1)
	})

	t.Run("update", func(t *testing.T) {
		upd := student
		upd.Description.SetValid("8A")
		_, err := repo.UpdateProfile(ctx, upd)
		require.NoError(t, err)

		got, err := repo.GetProfile(ctx, user.ProfileFilter{Kind: user.KindStudent, ID: student.ID})
		require.NoError(t, err)
		assert.Equal(t, "8A", got.Description.String)

		upd.ID = uuid.New().String()
		_, err = repo.UpdateProfile(ctx, upd)
		assert.Equal(t, user.ErrProfileNotFound, errors.Cause(err))
	})

	t.Run("by ids", func(t *testing.T) {
		other := CreateProfile(t, repo, user.KindStudent, "Leia", "+998900000003", "")
		got, err := repo.GetProfilesByIDs(ctx, user.KindStudent, []string{student.ID, teacher.ID, "lol", uuid.New().String(), student.ID, other.ID})
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, prof := range got {
			assert.Equal(t, user.KindStudent, prof.Kind)
			assert.NotEmpty(t, prof.User.FullName)
		}
		assert.ElementsMatch(t, []string{student.ID, other.ID}, []string{got[0].ID, got[1].ID})

		got, err = repo.GetProfilesByIDs(ctx, user.KindTeacher, []string{student.ID})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("deleted with their user", func(t *testing.T) {
		_, err := repo.DeleteUsersByID(ctx, []string{student.UserID})
		require.NoError(t, err)
		_, err = repo.GetProfile(ctx, user.ProfileFilter{Kind: user.KindStudent, ID: student.ID})
		assert.Equal(t, user.ErrProfileNotFound, errors.Cause(err))
	})
}

// RunParentRepositoryTests checks the behaviour every parent.Repository implementation must share.
// users must share the storage of parents, reset must empty it.
func RunParentRepositoryTests(t *testing.T, parents parent.Repository, users user.Repository, reset func()) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	reset()

	luke := CreateProfile(t, users, user.KindStudent, "Luke", "+998900000001", "")
	leia := CreateProfile(t, users, user.KindStudent, "Leia", "+998900000002", "")
	yoda := CreateProfile(t, users, user.KindTeacher, "Yoda", "+998900000003", "")

	padme := CreateParent(t, parents, "Padme", "+998900000010", now.Add(-time.Hour), luke.ID, leia.ID)
	require.NotEmpty(t, padme.ID)
	shmi := CreateParent(t, parents, "Shmi", "+998900000011", now)

	t.Run("check students", func(t *testing.T) {
		assert.NoError(t, parents.CheckStudents(ctx, []string{luke.ID, leia.ID}))
		for _, ids := range [][]string{
			{luke.ID, yoda.ID},
			{luke.ID, uuid.New().String()},
			{"lol"},
		} {
			assert.Equal(t, parent.ErrUnknownStudents, errors.Cause(parents.CheckStudents(ctx, ids)), "ids %v", ids)
		}
	})

	t.Run("get", func(t *testing.T) {
		got, err := parents.GetParent(ctx, padme.ID)
		require.NoError(t, err)
		assert.Equal(t, "Padme", got.Name)
		assert.Equal(t, padme.Phone, got.Phone)
		assert.Equal(t, parent.NormalizeIDs([]string{luke.ID, leia.ID}), got.StudentIDs)
		assert.True(t, padme.CreatedAt.Equal(got.CreatedAt))

		got, err = parents.GetParent(ctx, shmi.ID)
		require.NoError(t, err)
		assert.Empty(t, got.StudentIDs)

		for _, id := range []string{"", "lol", uuid.New().String()} {
			_, err = parents.GetParent(ctx, id)
			assert.Equal(t, parent.ErrNotFound, errors.Cause(err), "id %q", id)
		}
	})

	t.Run("query", func(t *testing.T) {
		got, count, err := parents.QueryParents(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		require.Len(t, got, 2)
		assert.Equal(t, shmi.ID, got[0].ID)
		assert.Equal(t, padme.ID, got[1].ID)
		assert.Len(t, got[1].StudentIDs, 2)

		got, count, err = parents.QueryParents(ctx, &core.Page{Number: 2, Size: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		require.Len(t, got, 1)
		assert.Equal(t, padme.ID, got[0].ID)
	})

	t.Run("update", func(t *testing.T) {
		upd := padme
		upd.Surname = "Amidala"
		upd.Description.SetValid("senator")
		upd.StudentIDs = []string{leia.ID}
		upd.UpdatedAt = now.Add(time.Minute)
		_, err := parents.UpdateParent(ctx, upd)
		require.NoError(t, err)

		got, err := parents.GetParent(ctx, padme.ID)
		require.NoError(t, err)
		assert.Equal(t, "Amidala", got.Surname)
		assert.Equal(t, "senator", got.Description.String)
		assert.Equal(t, []string{leia.ID}, got.StudentIDs)

		upd.ID = uuid.New().String()
		_, err = parents.UpdateParent(ctx, upd)
		assert.Equal(t, parent.ErrNotFound, errors.Cause(err))
	})

	t.Run("unlinked from deleted students", func(t *testing.T) {
		_, err := users.DeleteUsersByID(ctx, []string{leia.UserID})
		require.NoError(t, err)

		got, err := parents.GetParent(ctx, padme.ID)
		require.NoError(t, err)
		assert.Empty(t, got.StudentIDs)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, parents.DeleteParent(ctx, shmi.ID))
		_, err := parents.GetParent(ctx, shmi.ID)
		assert.Equal(t, parent.ErrNotFound, errors.Cause(err))
		assert.Equal(t, parent.ErrNotFound, errors.Cause(parents.DeleteParent(ctx, shmi.ID)))
		assert.Equal(t, parent.ErrNotFound, errors.Cause(parents.DeleteParent(ctx, "lol")))

		// the children stay
		_, err = users.GetProfile(ctx, user.ProfileFilter{Kind: user.KindStudent, ID: luke.ID})
		assert.NoError(t, err)
	})
}
