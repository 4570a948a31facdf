package main

import (
	"context"
	"os"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/user"
	logsvc "github.com/maktab-uz/maktab/services/logger"
	"github.com/maktab-uz/maktab/storage/database"
	sqlxrepos "github.com/maktab-uz/maktab/storage/database/sqlx"
)

var logger *zap.SugaredLogger

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		panic(err)
	}
	logger = zl.Named("admin")
	defer func() { _ = logger.Sync() }()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()
	errAndDie(database.Ping(context.Background(), db))

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		conf:       conf,
		db:         db.DB,
		usrSvc:     user.NewService(sqlxrepos.NewUserRepository(db)),
		validate:   validate,
		translator: translator,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Errorf("error: %s", err)
		}
		_ = logger.Sync()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
