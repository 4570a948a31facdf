package parent

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/maktab-uz/maktab/core"
)

// Parent is a guardian of one or more students. Parents do not sign in.
type Parent struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Surname     string      `json:"surname" db:"surname"`
	Phone       string      `json:"phone" db:"phone"`
	Address     string      `json:"address" db:"address"`
	Description null.String `json:"description" db:"description"`
	// StudentIDs are the IDs of the student profiles of the Parent's children, sorted.
	StudentIDs []string  `json:"students" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// NormalizeIDs drops blank and duplicate ids and sorts the rest.
func NormalizeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = core.CleanString(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// NewParent contains information needed to create a new Parent.
type NewParent struct {
	Name        string   `json:"name" validate:"required,max=50"`
	Surname     string   `json:"surname" validate:"required,max=50"`
	Phone       string   `json:"phone" validate:"required,phone"`
	Address     string   `json:"address" validate:"required,max=50"`
	Description string   `json:"description"`
	Students    []string `json:"students"`
}

func (np *NewParent) Clean() {
	np.Name = core.CleanString(np.Name)
	np.Surname = core.CleanString(np.Surname)
	np.Phone = core.CleanPhone(np.Phone)
	np.Address = core.CleanString(np.Address)
	np.Description = core.CleanString(np.Description)
	np.Students = NormalizeIDs(np.Students)
}

func (np *NewParent) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	np.Clean()
	if err := validate.Struct(np); err != nil {
		return err
	}
	return svc.CheckStudents(ctx, np.Students)
}

// UpdateParent defines what information may be provided to modify an existing Parent.
// Nil fields are left unchanged.
type UpdateParent struct {
	Name        *string   `json:"name" validate:"omitempty,notblank,max=50"`
	Surname     *string   `json:"surname" validate:"omitempty,notblank,max=50"`
	Phone       *string   `json:"phone" validate:"omitempty,phone"`
	Address     *string   `json:"address" validate:"omitempty,notblank,max=50"`
	Description *string   `json:"description"`
	Students    *[]string `json:"students"`
}

func cleanPtr(s *string, clean func(string) string) {
	if s != nil {
		*s = clean(*s)
	}
}

func (up *UpdateParent) Clean() {
	trim := func(s string) string { return core.CleanString(s) }
	cleanPtr(up.Name, trim)
	cleanPtr(up.Surname, trim)
	cleanPtr(up.Phone, core.CleanPhone)
	cleanPtr(up.Address, trim)
	cleanPtr(up.Description, trim)
	if up.Students != nil {
		ids := NormalizeIDs(*up.Students)
		up.Students = &ids
	}
}

func (up *UpdateParent) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	up.Clean()
	if err := validate.Struct(up); err != nil {
		return err
	}
	if up.Students == nil {
		return nil
	}
	return svc.CheckStudents(ctx, *up.Students)
}
