package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

// NewUserRepository returns a user.Repository over db. Executors passed to its methods are ignored.
func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) CheckPhoneUniqueness(_ context.Context, phone string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.query() {
		if usr.Phone == phone && !isExcluded(usr, excludedUsers) {
			return user.ErrPhoneExists
		}
	}
	return nil
}

func (repo *userRepository) createUser(usr user.User) (user.User, error) {
	for _, u := range repo.db.users {
		if u.Phone == usr.Phone {
			return user.User{}, user.ErrPhoneExists
		}
	}
	usr.ID = uuid.New().String()
	usr.Roles = usr.Roles.Normalize()
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	return repo.createUser(usr)
}

func matches(usr user.User, filter *user.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" {
		kw := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(usr.FullName), kw) && !strings.Contains(usr.Phone, kw) {
			return false
		}
	}
	if len(filter.Roles) > 0 && !usr.Roles.HasAny(filter.Roles...) {
		return false
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

var orderable = map[string]bool{
	"phone": true, "full_name": true, "is_active": true, "created_at": true, "updated_at": true, "last_login": true,
}

// less compares a and b on field, returning ok=false when they are equal on it.
func less(a, b user.User, field string) (isLess, ok bool) {
	switch field {
	case "phone":
		return a.Phone < b.Phone, a.Phone != b.Phone
	case "full_name":
		return a.FullName < b.FullName, a.FullName != b.FullName
	case "is_active":
		return !a.IsActive && b.IsActive, a.IsActive != b.IsActive
	case "created_at":
		return a.CreatedAt.Before(b.CreatedAt), !a.CreatedAt.Equal(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Before(b.UpdatedAt), !a.UpdatedAt.Equal(b.UpdatedAt)
	case "last_login":
		return a.LastLogin.Time.Before(b.LastLogin.Time), !a.LastLogin.Time.Equal(b.LastLogin.Time)
	}
	return false, false
}

func sortUsers(users []user.User, ordering []core.DBOrdering) {
	known := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if orderable[ord.Field] {
			known = append(known, ord)
		}
	}
	if len(known) == 0 {
		known = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range known {
			isLess, ok := less(users[i], users[j], ord.Field)
			if !ok {
				continue
			}
			if ord.Ascending {
				return isLess
			}
			return !isLess
		}
		return users[i].ID < users[j].ID
	})
}

func paginate(n int, page *core.Page) (start, end int) {
	if page == nil {
		return 0, n
	}
	start, end = page.Offset(), page.Offset()+page.Limit()
	if start > n {
		start = n
	}
	if end > n {
		end = n
	}
	return start, end
}

func (repo *userRepository) QueryUsers(
	_ context.Context,
	filter *user.QueryFilter,
	ordering []core.DBOrdering,
	page *core.Page,
	_ ...core.DBExecutor,
) ([]user.User, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0)
	for _, usr := range repo.query() {
		if matches(usr, filter) {
			users = append(users, usr)
		}
	}
	sortUsers(users, ordering)

	start, end := paginate(len(users), page)
	return users[start:end], len(users), nil
}

func (repo *userRepository) getUser(filter user.GetFilter) (user.User, error) {
	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return *usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.Phone != "" {
		for _, usr := range repo.db.users {
			if usr.Phone == filter.Phone {
				return *usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.getUser(filter)
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	for id, u := range repo.db.users {
		if id != usr.ID && u.Phone == usr.Phone {
			return user.User{}, user.ErrPhoneExists
		}
	}
	usr.Roles = usr.Roles.Normalize()
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) SetLastLogin(_ context.Context, id string, at time.Time, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.LastLogin.SetValid(at)
	return nil
}

// DeleteUsersByID also deletes the profiles of the deleted users and their links to parents.
func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.users[id]; !ok {
			continue
		}
		delete(repo.db.users, id)
		cnt++
		for pid, prof := range repo.db.profiles {
			if prof.UserID == id {
				delete(repo.db.profiles, pid)
				repo.db.unlinkStudent(pid)
			}
		}
	}
	return cnt, nil
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, u := range excludedUsers {
		if u.ID == usr.ID {
			return true
		}
	}
	return false
}
