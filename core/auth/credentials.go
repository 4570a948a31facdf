package auth

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/user"
)

var (
	dummyHash     []byte
	dummyHashOnce sync.Once
)

// compareDummy burns the time of one bcrypt comparison so unknown phones answer as slowly as wrong passwords.
func compareDummy(pwd string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("maktab-dummy-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(pwd))
}

// Authenticator verifies phone/password credentials and opens sessions.
type Authenticator struct {
	users  user.Service
	tokens *TokenService
}

func NewAuthenticator(users user.Service, tokens *TokenService) *Authenticator {
	return &Authenticator{users: users, tokens: tokens}
}

// Authenticate returns the active User owning phone and pwd.
// Any mismatch yields ErrAuthenticationFailed, whatever its reason.
func (a *Authenticator) Authenticate(ctx context.Context, phone, pwd string) (user.User, error) {
	usr, err := a.users.GetByPhone(ctx, core.CleanPhone(phone))
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			compareDummy(pwd)
			return user.User{}, ErrAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by phone")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, ErrAuthenticationFailed
	}
	if !usr.IsActive {
		return user.User{}, ErrAuthenticationFailed
	}
	return usr, nil
}

// Login authenticates the credentials, records the login time and issues a fresh token pair.
func (a *Authenticator) Login(ctx context.Context, phone, pwd string) (TokenPair, user.User, error) {
	usr, err := a.Authenticate(ctx, phone, pwd)
	if err != nil {
		return TokenPair{}, user.User{}, err
	}
	usr, err = a.users.SetLastLogin(ctx, usr)
	if err != nil {
		return TokenPair{}, user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	pair, err := a.tokens.Issue(usr)
	if err != nil {
		return TokenPair{}, user.User{}, errors.Wrap(err, "issuing tokens")
	}
	return pair, usr, nil
}
