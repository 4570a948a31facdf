package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/user"
	logsvc "github.com/maktab-uz/maktab/services/logger"
	smssvc "github.com/maktab-uz/maktab/services/sms"
	"github.com/maktab-uz/maktab/storage/cache"
	inmemdb "github.com/maktab-uz/maktab/storage/database/inmem"
)

type env struct {
	conf   *core.Config
	repo   user.Repository
	users  user.Service
	kv     *cache.InMemory
	sms    *smssvc.ConsoleServiceMock
	tokens *TokenService
	authn  *Authenticator
	otp    *OTPService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	conf := core.NewConfig()
	conf.TestMode = true
	conf.SecretKey = "test-secret"

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	e := &env{
		conf: conf,
		repo: inmemdb.NewUserRepository(inmemdb.Open()),
		kv:   cache.NewInMemory(),
		sms:  smssvc.NewConsoleServiceMock(),
	}
	e.users = user.NewService(e.repo)
	e.tokens = NewTokenService(conf, e.kv, e.users)
	e.authn = NewAuthenticator(e.users, e.tokens)
	e.otp = NewOTPService(conf, e.kv, e.users, e.sms, logsvc.NewRollbarLogger(zap.NewNop().Sugar(), conf), validate)
	return e
}

func (e *env) createUser(t *testing.T, phone, pwd string, isActive bool, roles ...user.Role) user.User {
	t.Helper()
	usr := user.User{
		Phone:     phone,
		FullName:  "Test User",
		IsActive:  isActive,
		Roles:     user.NewRoles(roles...),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, usr.SetPassword(pwd))
	usr, err := e.repo.CreateUser(context.Background(), usr)
	require.NoError(t, err)
	return usr
}

// freezeTime sets every mockable clock to now until the test ends.
func freezeTime(t *testing.T, now time.Time) {
	t.Helper()
	NowFunc = func() time.Time { return now }
	cache.NowFunc = func() time.Time { return now }
	t.Cleanup(func() {
		NowFunc = time.Now
		cache.NowFunc = time.Now
	})
}
