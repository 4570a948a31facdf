package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/maktab-uz/maktab/core"
)

// ProfileKind is the kind of role-profile linked to a User during onboarding.
type ProfileKind string

const (
	KindStudent ProfileKind = "student"
	KindTeacher ProfileKind = "teacher"
)

// Role returns the Role granted to the owner of a profile of this kind.
func (k ProfileKind) Role() Role {
	if k == KindTeacher {
		return RoleTeacher
	}
	return RoleStudent
}

// Profile is the role-specific record of a student or a teacher. It is deleted along with its User.
type Profile struct {
	ID          string      `json:"id" db:"id"`
	Kind        ProfileKind `json:"kind" db:"kind"`
	UserID      string      `json:"-" db:"user_id"`
	User        User        `json:"user" db:"-"`
	Description null.String `json:"description" db:"description"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

// OwnerID returns the ID of the User owning the profile.
func (p Profile) OwnerID() string { return p.UserID }

// NewProfile contains information needed to onboard a student or a teacher.
type NewProfile struct {
	User        NewUser `json:"user"`
	Description string  `json:"description"`
}

func (np *NewProfile) Clean() {
	np.User.Clean()
	np.Description = core.CleanString(np.Description)
}

func (np *NewProfile) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	np.Description = core.CleanString(np.Description)
	return np.User.Validate(ctx, validate, svc)
}

type UpdateProfile struct {
	Description *string `json:"description"`
}
