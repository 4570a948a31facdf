package sqlxrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/user"
)

const profileColumns = "p.id, p.kind, p.user_id, p.description, p.created_at, p.updated_at"

// profileRow is a profile joined with its owner, owner columns are aliased "user.<column>".
type profileRow struct {
	user.Profile
	Owner user.User `db:"user"`
}

func (r profileRow) toProfile() user.Profile {
	prof := r.Profile
	prof.User = r.Owner
	return prof
}

var profileSelect = func() string {
	cols := strings.Split(userColumns, ", ")
	aliased := make([]string, 0, len(cols))
	for _, col := range cols {
		aliased = append(aliased, fmt.Sprintf(`u.%s AS "user.%s"`, col, col))
	}
	return `SELECT ` + profileColumns + `, ` + strings.Join(aliased, ", ") +
		` FROM profile p JOIN "user" u ON u.id = p.user_id`
}()

// CreateProfile inserts usr and prof in a single transaction.
func (repo userRepository) CreateProfile(ctx context.Context, usr user.User, prof user.Profile) (user.Profile, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return user.Profile{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }() // no-op once committed

	usr, err = repo.CreateUser(ctx, usr, tx)
	if err != nil {
		return user.Profile{}, err
	}

	prof.ID = uuid.New().String()
	prof.UserID = usr.ID
	q := `INSERT INTO profile (id, kind, user_id, description, created_at, updated_at)
		VALUES (:id, :kind, :user_id, :description, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, q, prof); err != nil {
		return user.Profile{}, errors.Wrap(err, "inserting profile")
	}

	if err = tx.Commit(); err != nil {
		return user.Profile{}, errors.Wrap(err, "committing transaction")
	}
	prof.User = usr
	return prof, nil
}

func (repo userRepository) GetProfile(ctx context.Context, filter user.ProfileFilter, exec ...core.DBExecutor) (user.Profile, error) {
	var (
		row  profileRow
		cond string
		arg  string
	)
	switch {
	case filter.ID != "":
		cond, arg = "p.id = $2", filter.ID
	case filter.UserID != "":
		cond, arg = "p.user_id = $2", filter.UserID
	default:
		return user.Profile{}, user.ErrProfileNotFound
	}
	if _, err := uuid.Parse(arg); err != nil {
		return user.Profile{}, user.ErrProfileNotFound
	}

	q := profileSelect + ` WHERE p.kind = $1 AND ` + cond
	if err := repo.getExec(exec).GetContext(ctx, &row, q, filter.Kind, arg); err != nil {
		return user.Profile{}, trapNoRowsErr(err, user.ErrProfileNotFound, "finding profile")
	}
	return row.toProfile(), nil
}

func (repo userRepository) QueryProfiles(ctx context.Context, kind user.ProfileKind, page *core.Page, exec ...core.DBExecutor) ([]user.Profile, int, error) {
	exe := repo.getExec(exec)

	var count int
	if err := exe.GetContext(ctx, &count, `SELECT COUNT(*) FROM profile WHERE kind = $1`, kind); err != nil {
		return nil, 0, errors.Wrap(err, "counting profiles")
	}

	q := profileSelect + ` WHERE p.kind = $1 ORDER BY p.created_at DESC, p.id ASC`
	args := []interface{}{kind}
	if page != nil {
		q += " LIMIT $2 OFFSET $3"
		args = append(args, page.Limit(), page.Offset())
	}

	var rows []profileRow
	if err := exe.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying profiles")
	}
	profs := make([]user.Profile, 0, len(rows))
	for _, r := range rows {
		profs = append(profs, r.toProfile())
	}
	return profs, count, nil
}

func (repo userRepository) GetProfilesByIDs(ctx context.Context, kind user.ProfileKind, ids []string, exec ...core.DBExecutor) ([]user.Profile, error) {
	q := profileSelect + ` WHERE p.kind = $1 AND p.id::text = ANY($2::text[]) ORDER BY p.created_at DESC, p.id ASC`
	var rows []profileRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows, q, kind, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "finding profiles by IDs")
	}
	profs := make([]user.Profile, 0, len(rows))
	for _, r := range rows {
		profs = append(profs, r.toProfile())
	}
	return profs, nil
}

func (repo userRepository) UpdateProfile(ctx context.Context, prof user.Profile, exec ...core.DBExecutor) (user.Profile, error) {
	q := `UPDATE profile SET description = :description, updated_at = :updated_at WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, prof)
	if err != nil {
		return user.Profile{}, errors.Wrap(err, "updating profile")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.Profile{}, user.ErrProfileNotFound
	}
	return prof, nil
}
