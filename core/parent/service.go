package parent

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/maktab-uz/maktab/core"
)

var (
	// errors
	ErrNotFound        = errors.New("parent not found")
	ErrUnknownStudents = errors.New("some of the students do not exist")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CreateParent saves p along with its links to p.StudentIDs.
		CreateParent(ctx context.Context, p Parent) (Parent, error)
		QueryParents(ctx context.Context, page *core.Page) ([]Parent, int, error)
		GetParent(ctx context.Context, id string) (Parent, error)
		// UpdateParent saves p and replaces its student links with p.StudentIDs.
		UpdateParent(ctx context.Context, p Parent) (Parent, error)
		DeleteParent(ctx context.Context, id string) error
		// CheckStudents returns ErrUnknownStudents unless every id is the ID of a student profile.
		CheckStudents(ctx context.Context, ids []string) error
	}

	Service interface {
		CheckStudents(ctx context.Context, ids []string) error
		Create(ctx context.Context, np NewParent) (Parent, error)
		Query(ctx context.Context, page *core.Page) ([]Parent, int, error)
		GetByID(ctx context.Context, id string) (Parent, error)
		Update(ctx context.Context, p Parent, up UpdateParent) (Parent, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// CheckStudents reports unknown student ids as a validation error on the `students` field.
func (svc *service) CheckStudents(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := svc.repo.CheckStudents(ctx, ids); err != nil {
		if errors.Cause(err) == ErrUnknownStudents {
			return core.NewValidationError(err, core.FieldError{Field: "students", Error: err.Error()})
		}
		return errors.Wrap(err, "checking students")
	}
	return nil
}

// Create saves a new Parent. np must have been validated.
func (svc *service) Create(ctx context.Context, np NewParent) (Parent, error) {
	now := NowFunc().UTC()
	p := Parent{
		Name:        np.Name,
		Surname:     np.Surname,
		Phone:       np.Phone,
		Address:     np.Address,
		Description: null.NewString(np.Description, np.Description != ""),
		StudentIDs:  NormalizeIDs(np.Students),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	p, err := svc.repo.CreateParent(ctx, p)
	return p, errors.Wrap(err, "creating parent")
}

func (svc *service) Query(ctx context.Context, page *core.Page) ([]Parent, int, error) {
	if page == nil {
		page = new(core.Page)
	}
	page.Clean()
	parents, count, err := svc.repo.QueryParents(ctx, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying parents")
	}
	return parents, count, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Parent, error) {
	return svc.repo.GetParent(ctx, id)
}

// Update saves the changes of up to p. up must have been validated.
func (svc *service) Update(ctx context.Context, p Parent, up UpdateParent) (Parent, error) {
	if up.Name != nil {
		p.Name = *up.Name
	}
	if up.Surname != nil {
		p.Surname = *up.Surname
	}
	if up.Phone != nil {
		p.Phone = *up.Phone
	}
	if up.Address != nil {
		p.Address = *up.Address
	}
	if up.Description != nil {
		p.Description = null.NewString(*up.Description, *up.Description != "")
	}
	if up.Students != nil {
		p.StudentIDs = NormalizeIDs(*up.Students)
	}
	p.UpdatedAt = NowFunc().UTC()
	p, err := svc.repo.UpdateParent(ctx, p)
	return p, errors.Wrap(err, "updating parent")
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return errors.Wrap(svc.repo.DeleteParent(ctx, id), "deleting parent")
}
