package user

import (
	"context"
	"database/sql/driver"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/maktab-uz/maktab/core"
)

// Role is one category of access granted to a User. A User may hold several.
type Role string

// Roles
const (
	RoleAdmin   Role = "admin"
	RoleStaff   Role = "staff"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

var (
	AllRoles = Roles{RoleAdmin, RoleStaff, RoleTeacher, RoleStudent}

	RoleChoices = []RoleChoice{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Staff", Value: RoleStaff},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

type RoleChoice struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

// Roles is a set of Role, kept sorted and without duplicates by Normalize.
type Roles []Role

func NewRoles(roles ...Role) Roles {
	return Roles(roles).Normalize()
}

func (rs Roles) Has(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// HasAny reports whether at least one of roles is in the set.
func (rs Roles) HasAny(roles ...Role) bool {
	for _, role := range roles {
		if rs.Has(role) {
			return true
		}
	}
	return false
}

func (rs Roles) Add(roles ...Role) Roles {
	return append(append(Roles{}, rs...), roles...).Normalize()
}

func (rs Roles) Normalize() Roles {
	set := make(map[Role]struct{}, len(rs))
	out := make(Roles, 0, len(rs))
	for _, r := range rs {
		if _, ok := set[r]; ok {
			continue
		}
		set[r] = struct{}{}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (rs Roles) Strings() []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, string(r))
	}
	return out
}

// Value implements driver.Valuer, roles are stored in a postgres text[] column.
func (rs Roles) Value() (driver.Value, error) {
	return pq.StringArray(rs.Strings()).Value()
}

// Scan implements sql.Scanner.
func (rs *Roles) Scan(src interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	roles := make(Roles, 0, len(arr))
	for _, r := range arr {
		roles = append(roles, Role(r))
	}
	*rs = roles.Normalize()
	return nil
}

type User struct {
	ID           string    `json:"id" db:"id"`
	Phone        string    `json:"phone" db:"phone"`
	FullName     string    `json:"full_name" db:"full_name"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	Roles        Roles     `json:"roles" db:"roles"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
	LastLogin    null.Time `json:"last_login" db:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsAdmin() bool   { return u.Roles.Has(RoleAdmin) }
func (u User) IsStaff() bool   { return u.Roles.Has(RoleStaff) }
func (u User) IsTeacher() bool { return u.Roles.Has(RoleTeacher) }
func (u User) IsStudent() bool { return u.Roles.Has(RoleStudent) }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Phone           string `json:"phone" validate:"required,phone"`
	FullName        string `json:"full_name" validate:"max=50"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           Roles  `json:"roles" validate:"omitempty,roles"`
	IsActive        *bool  `json:"is_active"`
}

func (nu *NewUser) Clean() {
	nu.Phone = core.CleanPhone(nu.Phone)
	nu.FullName = core.CleanString(nu.FullName)
	nu.Roles = nu.Roles.Normalize()
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Clean()
	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Phone)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Phone           string `json:"phone" validate:"omitempty,phone"`
	FullName        string `json:"full_name" validate:"max=50"`
	IsActive        *bool  `json:"is_active"`
	Roles           Roles  `json:"roles" validate:"omitempty,roles"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

// Clean fills the blank fields of uu with the values of origUsr.
func (uu *UpdateUser) Clean(origUsr User) {
	if phone := core.CleanPhone(uu.Phone); phone != "" {
		uu.Phone = phone
	} else {
		uu.Phone = origUsr.Phone
	}
	if name := core.CleanString(uu.FullName); name != "" {
		uu.FullName = name
	} else {
		uu.FullName = origUsr.FullName
	}
	if uu.Roles != nil {
		uu.Roles = uu.Roles.Normalize()
	}
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	uu.Clean(origUsr)
	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Phone, origUsr)
}

// ChangePassword is submitted by an authenticated User to replace their own password.
type ChangePassword struct {
	OldPassword     string `json:"old_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

func (cp ChangePassword) Validate(validate *validator.Validate) error { return validate.Struct(cp) }

// SetNewPassword is submitted after an OTP verification to reset a forgotten password.
type SetNewPassword struct {
	Phone           string `json:"phone" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

func (snp *SetNewPassword) Validate(validate *validator.Validate) error {
	snp.Phone = core.CleanPhone(snp.Phone)
	return validate.Struct(snp)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []Role    `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter selects a single User, by ID or by phone.
type GetFilter struct {
	ID    string
	Phone string
}
