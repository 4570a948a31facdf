package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/parent"
	"github.com/maktab-uz/maktab/core/user"
)

const parentColumns = "id, name, surname, phone, address, description, created_at, updated_at"

type parentRepository struct {
	db core.DB
}

var _ parent.Repository = (*parentRepository)(nil) // interface compliance check

func NewParentRepository(db core.DB) *parentRepository {
	return &parentRepository{db: db}
}

type parentStudent struct {
	ParentID  string `db:"parent_id"`
	StudentID string `db:"student_id"`
}

// loadStudents fills the StudentIDs of parents.
func (repo parentRepository) loadStudents(ctx context.Context, exec core.DBExecutor, parents []parent.Parent) error {
	if len(parents) == 0 {
		return nil
	}
	ids := make([]string, 0, len(parents))
	byID := make(map[string]*parent.Parent, len(parents))
	for i := range parents {
		parents[i].StudentIDs = []string{}
		ids = append(ids, parents[i].ID)
		byID[parents[i].ID] = &parents[i]
	}

	var links []parentStudent
	q := `SELECT parent_id, student_id FROM parent_student WHERE parent_id::text = ANY($1::text[]) ORDER BY student_id::text`
	if err := exec.SelectContext(ctx, &links, q, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "querying parent students")
	}
	for _, link := range links {
		if p, ok := byID[link.ParentID]; ok {
			p.StudentIDs = append(p.StudentIDs, link.StudentID)
		}
	}
	return nil
}

func (repo parentRepository) linkStudents(ctx context.Context, exec core.DBExecutor, p parent.Parent) error {
	if _, err := exec.ExecContext(ctx, `DELETE FROM parent_student WHERE parent_id = $1`, p.ID); err != nil {
		return errors.Wrap(err, "unlinking students")
	}
	if len(p.StudentIDs) == 0 {
		return nil
	}
	q := `INSERT INTO parent_student (parent_id, student_id) SELECT $1, unnest($2::uuid[])`
	if _, err := exec.ExecContext(ctx, q, p.ID, pq.Array(p.StudentIDs)); err != nil {
		return errors.Wrap(err, "linking students")
	}
	return nil
}

func (repo parentRepository) CreateParent(ctx context.Context, p parent.Parent) (parent.Parent, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return parent.Parent{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }() // no-op once committed

	p.ID = uuid.New().String()
	q := `INSERT INTO parent (` + parentColumns + `)
		VALUES (:id, :name, :surname, :phone, :address, :description, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, q, p); err != nil {
		return parent.Parent{}, errors.Wrap(err, "inserting parent")
	}
	if err = repo.linkStudents(ctx, tx, p); err != nil {
		return parent.Parent{}, err
	}
	if err = tx.Commit(); err != nil {
		return parent.Parent{}, errors.Wrap(err, "committing transaction")
	}
	if p.StudentIDs == nil {
		p.StudentIDs = []string{}
	}
	return p, nil
}

func (repo parentRepository) QueryParents(ctx context.Context, page *core.Page) ([]parent.Parent, int, error) {
	var count int
	if err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM parent`); err != nil {
		return nil, 0, errors.Wrap(err, "counting parents")
	}

	q := `SELECT ` + parentColumns + ` FROM parent ORDER BY created_at DESC, id ASC`
	var args []interface{}
	if page != nil {
		q += " LIMIT $1 OFFSET $2"
		args = append(args, page.Limit(), page.Offset())
	}
	parents := make([]parent.Parent, 0)
	if err := repo.db.SelectContext(ctx, &parents, q, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying parents")
	}
	if err := repo.loadStudents(ctx, repo.db, parents); err != nil {
		return nil, 0, err
	}
	return parents, count, nil
}

func (repo parentRepository) GetParent(ctx context.Context, id string) (parent.Parent, error) {
	if _, err := uuid.Parse(id); err != nil {
		return parent.Parent{}, parent.ErrNotFound
	}
	var p parent.Parent
	if err := repo.db.GetContext(ctx, &p, `SELECT `+parentColumns+` FROM parent WHERE id = $1`, id); err != nil {
		return parent.Parent{}, trapNoRowsErr(err, parent.ErrNotFound, "finding parent")
	}
	parents := []parent.Parent{p}
	if err := repo.loadStudents(ctx, repo.db, parents); err != nil {
		return parent.Parent{}, err
	}
	return parents[0], nil
}

func (repo parentRepository) UpdateParent(ctx context.Context, p parent.Parent) (parent.Parent, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return parent.Parent{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }() // no-op once committed

	q := `UPDATE parent SET
			name = :name,
			surname = :surname,
			phone = :phone,
			address = :address,
			description = :description,
			updated_at = :updated_at
		WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, q, p)
	if err != nil {
		return parent.Parent{}, errors.Wrap(err, "updating parent")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return parent.Parent{}, parent.ErrNotFound
	}
	if err = repo.linkStudents(ctx, tx, p); err != nil {
		return parent.Parent{}, err
	}
	if err = tx.Commit(); err != nil {
		return parent.Parent{}, errors.Wrap(err, "committing transaction")
	}
	if p.StudentIDs == nil {
		p.StudentIDs = []string{}
	}
	return p, nil
}

func (repo parentRepository) DeleteParent(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return parent.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM parent WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting parent")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return parent.ErrNotFound
	}
	return nil
}

func (repo parentRepository) CheckStudents(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	var found int
	q := `SELECT COUNT(DISTINCT id) FROM profile WHERE kind = $1 AND id::text = ANY($2::text[])`
	if err := repo.db.GetContext(ctx, &found, q, user.KindStudent, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "checking students")
	}
	if found != len(parent.NormalizeIDs(ids)) {
		return parent.ErrUnknownStudents
	}
	return nil
}
