package main

import (
	"context"

	"github.com/maktab-uz/maktab/storage/database"
)

var (
	migrateFunc  = database.Migrate          // mockable
	createDBFunc = database.CreateIfNotExist // mockable
)

func (cli *commandLine) migrate(args []string) error {
	return migrateFunc(context.Background(), cli.db, args[0], args[1:]...)
}

func (cli *commandLine) createDB() error {
	return createDBFunc(context.Background(), cli.conf)
}
