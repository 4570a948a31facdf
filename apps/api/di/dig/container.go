package dig_container

import (
	"context"
	"fmt"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/maktab-uz/maktab/apps/api/echo"
	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/auth"
	"github.com/maktab-uz/maktab/core/parent"
	"github.com/maktab-uz/maktab/core/user"
	logsvc "github.com/maktab-uz/maktab/services/logger"
	smssvc "github.com/maktab-uz/maktab/services/sms"
	"github.com/maktab-uz/maktab/storage/cache"
	"github.com/maktab-uz/maktab/storage/database"
	sqlxrepos "github.com/maktab-uz/maktab/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newZap(conf *core.Config) *zap.SugaredLogger {
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("building zap logger: %v", err)
	}
	return zl
}

func newLogger(conf *core.Config, zl *zap.SugaredLogger) core.Logger {
	return logsvc.NewRollbarLogger(zl.Named("api"), conf)
}

func newDBLogger(conf *core.Config, zl *zap.SugaredLogger) core.Logger {
	return logsvc.NewRollbarLogger(zl.Named("db"), conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	db, err := database.Setup(context.Background(), conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

// newCache connects to Redis when it is configured, the in-memory cache is used otherwise.
func newCache(conf *core.Config, logger core.Logger) core.Cache {
	if conf.Redis.Addr == "" {
		logger.Info("Redis not configured, using the in-memory cache")
		return cache.NewInMemory()
	}
	kv, err := cache.OpenRedis(context.Background(), conf.Redis)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
	}
	return kv
}

func newSMSService(conf *core.Config, logger core.Logger) core.SMSService {
	if conf.Debug || conf.SMS.TwilioAccountSID == "" {
		return smssvc.NewConsoleService(logger)
	}
	return smssvc.NewTwilioService(conf.SMS)
}

type depsParam struct {
	dig.In
	Conf          *core.Config
	Logger        core.Logger
	UserSvc       user.Service
	ParentSvc     parent.Service
	Tokens        *auth.TokenService
	Authenticator *auth.Authenticator
	OTP           *auth.OTPService
	Validate      *validator.Validate
	Translator    ut.Translator
}

func newDeps(p depsParam) *echoapi.Deps {
	return &echoapi.Deps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		UserSvc:       p.UserSvc,
		ParentSvc:     p.ParentSvc,
		Tokens:        p.Tokens,
		Authenticator: p.Authenticator,
		OTP:           p.OTP,
		Validate:      p.Validate,
		Translator:    p.Translator,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newZap))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newCache))
	must(c.Provide(newSMSService))
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewParentRepository, dig.As(new(parent.Repository))))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(parent.NewService))
	must(c.Provide(auth.NewTokenService))
	must(c.Provide(auth.NewAuthenticator))
	must(c.Provide(auth.NewOTPService))
	must(c.Provide(newDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
