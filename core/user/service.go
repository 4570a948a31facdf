package user

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/maktab-uz/maktab/core"
)

var (
	// errors
	ErrNotFound        = errors.New("user not found")
	ErrProfileNotFound = errors.New("profile not found")
	ErrPhoneExists     = errors.New("a user with this phone number already exists")
	ErrInvalidPassword = errors.New("your old password was entered incorrectly")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CheckPhoneUniqueness(ctx context.Context, phone string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields and returns the requested page
		// along with the total count of matching users.
		// QueryFilter.Search does a case-insensitive match on one of User.FullName or User.Phone.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Page, exec ...core.DBExecutor) ([]User, int, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// SetLastLogin only writes the last_login column of the User of id.
		SetLastLogin(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		// CreateProfile saves usr and prof atomically. prof.UserID is set to the new User's ID.
		CreateProfile(ctx context.Context, usr User, prof Profile) (Profile, error)
		GetProfile(ctx context.Context, filter ProfileFilter, exec ...core.DBExecutor) (Profile, error)
		QueryProfiles(ctx context.Context, kind ProfileKind, page *core.Page, exec ...core.DBExecutor) ([]Profile, int, error)
		// GetProfilesByIDs returns the profiles of kind among ids, unknown ids are skipped.
		GetProfilesByIDs(ctx context.Context, kind ProfileKind, ids []string, exec ...core.DBExecutor) ([]Profile, error)
		UpdateProfile(ctx context.Context, prof Profile, exec ...core.DBExecutor) (Profile, error)
	}

	// ProfileFilter selects a single Profile of Kind, by ID or by owner.
	ProfileFilter struct {
		Kind   ProfileKind
		ID     string
		UserID string
	}

	Service interface {
		CheckUniqueness(ctx context.Context, phone string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Page) ([]User, int, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByPhone(ctx context.Context, phone string) (User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		SetPassword(ctx context.Context, usr User, pwd string) (User, error)
		ChangePassword(ctx context.Context, usr User, cp ChangePassword) (User, error)
		Delete(ctx context.Context, ids ...string) (int, error)

		Register(ctx context.Context, kind ProfileKind, np NewProfile) (Profile, error)
		GetProfile(ctx context.Context, kind ProfileKind, id string) (Profile, error)
		GetProfileByUser(ctx context.Context, kind ProfileKind, userID string) (Profile, error)
		QueryProfiles(ctx context.Context, kind ProfileKind, page *core.Page) ([]Profile, int, error)
		GetProfilesByIDs(ctx context.Context, kind ProfileKind, ids []string) ([]Profile, error)
		UpdateProfile(ctx context.Context, prof Profile, up UpdateProfile) (Profile, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CheckUniqueness(ctx context.Context, phone string, exclUsers ...User) error {
	if err := svc.repo.CheckPhoneUniqueness(ctx, phone, exclUsers); err != nil {
		if errors.Cause(err) == ErrPhoneExists {
			return core.NewValidationError(ErrPhoneExists, core.FieldError{Field: "phone", Error: ErrPhoneExists.Error()})
		}
		return errors.Wrap(err, "checking phone uniqueness")
	}
	return nil
}

func (svc *service) newUser(nu NewUser) (User, error) {
	now := NowFunc().UTC()
	usr := User{
		Phone:     nu.Phone,
		FullName:  nu.FullName,
		IsActive:  true,
		Roles:     nu.Roles.Normalize(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nu.IsActive != nil {
		usr.IsActive = *nu.IsActive
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return usr, nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	usr, err := svc.newUser(nu)
	if err != nil {
		return User{}, err
	}
	usr, err = svc.repo.CreateUser(ctx, usr)
	return usr, errors.Wrap(err, "creating user")
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Page) ([]User, int, error) {
	if filter != nil && filter.IsEmpty() {
		filter = nil
	}
	if page == nil {
		page = new(core.Page)
	}
	page.Clean()
	users, count, err := svc.repo.QueryUsers(ctx, filter, ordering, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying users")
	}
	return users, count, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByPhone(ctx context.Context, phone string) (User, error) {
	phone = core.CleanPhone(phone)
	if phone == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{Phone: phone})
}

// Update saves the changes of uu to usr. uu must have been validated against usr.
func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Phone = uu.Phone
	usr.FullName = uu.FullName
	if uu.Roles != nil {
		usr.Roles = uu.Roles.Normalize()
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = NowFunc().UTC()
	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

// SetLastLogin stamps the login time of usr without writing back any other field.
func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := NowFunc().UTC()
	if err := svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, errors.Wrap(err, "setting last login")
	}
	usr.LastLogin.SetValid(now)
	return usr, nil
}

func (svc *service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = NowFunc().UTC()
	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "saving password")
}

// ChangePassword replaces the password of usr after checking their current one. cp must have been validated.
func (svc *service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) (User, error) {
	if err := usr.CheckPassword(cp.OldPassword); err != nil {
		return User{}, core.NewValidationError(ErrInvalidPassword, core.FieldError{Field: "old_password", Error: ErrInvalidPassword.Error()})
	}
	return svc.SetPassword(ctx, usr, cp.NewPassword)
}

func (svc *service) Delete(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	cnt, err := svc.repo.DeleteUsersByID(ctx, ids)
	return cnt, errors.Wrap(err, "deleting users")
}

// Register onboards a new User along with their profile of kind. The User is granted the role matching kind.
func (svc *service) Register(ctx context.Context, kind ProfileKind, np NewProfile) (Profile, error) {
	np.User.Roles = np.User.Roles.Add(kind.Role())
	usr, err := svc.newUser(np.User)
	if err != nil {
		return Profile{}, err
	}

	now := usr.CreatedAt
	prof := Profile{
		Kind:      kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if np.Description != "" {
		prof.Description.SetValid(np.Description)
	}

	prof, err = svc.repo.CreateProfile(ctx, usr, prof)
	return prof, errors.Wrapf(err, "registering %s", kind)
}

func (svc *service) GetProfile(ctx context.Context, kind ProfileKind, id string) (Profile, error) {
	return svc.repo.GetProfile(ctx, ProfileFilter{Kind: kind, ID: id})
}

func (svc *service) GetProfileByUser(ctx context.Context, kind ProfileKind, userID string) (Profile, error) {
	return svc.repo.GetProfile(ctx, ProfileFilter{Kind: kind, UserID: userID})
}

func (svc *service) QueryProfiles(ctx context.Context, kind ProfileKind, page *core.Page) ([]Profile, int, error) {
	if page == nil {
		page = new(core.Page)
	}
	page.Clean()
	profs, count, err := svc.repo.QueryProfiles(ctx, kind, page)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "querying %s profiles", kind)
	}
	return profs, count, nil
}

func (svc *service) GetProfilesByIDs(ctx context.Context, kind ProfileKind, ids []string) ([]Profile, error) {
	if len(ids) == 0 {
		return []Profile{}, nil
	}
	profs, err := svc.repo.GetProfilesByIDs(ctx, kind, ids)
	if err != nil {
		return nil, errors.Wrapf(err, "finding %s profiles by IDs", kind)
	}
	return profs, nil
}

func (svc *service) UpdateProfile(ctx context.Context, prof Profile, up UpdateProfile) (Profile, error) {
	if up.Description != nil {
		desc := core.CleanString(*up.Description)
		prof.Description = null.NewString(desc, desc != "")
	}
	prof.UpdatedAt = NowFunc().UTC()
	prof, err := svc.repo.UpdateProfile(ctx, prof)
	return prof, errors.Wrap(err, "updating profile")
}
