package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/user"
)

const (
	userColumns     = "id, phone, full_name, is_active, roles, password_hash, created_at, updated_at, last_login"
	uniqueViolation = "23505"
)

// orderable maps the ordering fields accepted from clients to their column.
var orderable = map[string]string{
	"phone":      "phone",
	"full_name":  "full_name",
	"is_active":  "is_active",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"last_login": "last_login",
}

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps a duplicate phone to user.ErrPhoneExists
func trapUniqueErr(err error, msg string) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation && pqErr.Constraint == "user_phone_key" {
		return user.ErrPhoneExists
	}
	return errors.Wrap(err, msg)
}

func userIDs(users []user.User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

func (repo userRepository) CheckPhoneUniqueness(ctx context.Context, phone string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM "user" WHERE phone = $1 AND NOT (id::text = ANY($2::text[])))`
	if err := repo.getExec(exec).GetContext(ctx, &exists, q, phone, pq.Array(userIDs(excludedUsers))); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if exists {
		return user.ErrPhoneExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	if usr.Roles == nil {
		usr.Roles = user.Roles{}
	}
	if usr.PasswordHash == nil {
		usr.PasswordHash = []byte{} // unusable password
	}
	q := `INSERT INTO "user" (` + userColumns + `)
		VALUES (:id, :phone, :full_name, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, usr); err != nil {
		return user.User{}, trapUniqueErr(err, "inserting user")
	}
	return usr, nil
}

// where builds the WHERE clause of filter with `?` bind vars.
func (repo userRepository) where(filter *user.QueryFilter) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}
	var (
		conds []string
		args  []interface{}
	)
	// users with FullName or Phone matching the search keyword
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		conds = append(conds, "(full_name ILIKE ? OR phone ILIKE ?)")
		args = append(args, val, val)
	}
	// users holding any of the provided roles
	if len(filter.Roles) > 0 {
		conds = append(conds, "roles && ?::text[]")
		args = append(args, pq.Array(user.Roles(filter.Roles).Strings()))
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = ?")
		args = append(args, *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, filter.CreatedTo.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderBy(ordering []core.DBOrdering) string {
	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if col, ok := orderable[ord.Field]; ok {
			ord.Field = col
			orderList = append(orderList, ord.String())
		}
	}
	if len(orderList) == 0 {
		orderList = append(orderList, "created_at DESC")
	}
	orderList = append(orderList, "id ASC") // stable pages
	return " ORDER BY " + strings.Join(orderList, ", ")
}

func (repo userRepository) QueryUsers(
	ctx context.Context,
	filter *user.QueryFilter,
	ordering []core.DBOrdering,
	page *core.Page,
	exec ...core.DBExecutor,
) ([]user.User, int, error) {
	exe := repo.getExec(exec)
	where, args := repo.where(filter)

	var count int
	if err := exe.GetContext(ctx, &count, exe.Rebind(`SELECT COUNT(*) FROM "user"`+where), args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting users")
	}

	q := `SELECT ` + userColumns + ` FROM "user"` + where + orderBy(ordering)
	if page != nil {
		q += " LIMIT ? OFFSET ?"
		args = append(args, page.Limit(), page.Offset())
	}

	users := make([]user.User, 0)
	if err := exe.SelectContext(ctx, &users, exe.Rebind(q), args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying users")
	}
	return users, count, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var (
		usr  user.User
		cond string
		arg  string
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		cond, arg = "id = $1", filter.ID
	case filter.Phone != "":
		cond, arg = "phone = $1", filter.Phone
	default:
		return user.User{}, user.ErrNotFound
	}

	q := `SELECT ` + userColumns + ` FROM "user" WHERE ` + cond
	if err := repo.getExec(exec).GetContext(ctx, &usr, q, arg); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return usr, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.Roles == nil {
		usr.Roles = user.Roles{}
	}
	if usr.PasswordHash == nil {
		usr.PasswordHash = []byte{}
	}
	q := `UPDATE "user" SET
			phone = :phone,
			full_name = :full_name,
			is_active = :is_active,
			roles = :roles,
			password_hash = :password_hash,
			updated_at = :updated_at,
			last_login = :last_login
		WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, usr)
	if err != nil {
		return user.User{}, trapUniqueErr(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) SetLastLogin(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error {
	if _, err := uuid.Parse(id); err != nil {
		return user.ErrNotFound
	}
	res, err := repo.getExec(exec).ExecContext(ctx, `UPDATE "user" SET last_login = $1 WHERE id = $2`, at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "setting last login")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM "user" WHERE id::text = ANY($1::text[])`, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting deleted users")
	}
	return int(cnt), nil
}
