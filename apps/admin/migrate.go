package main

import (
	"context"

	"github.com/pressly/goose/v3"

	"github.com/trezcool/trackle/storage/database"
)

var gooseRunFunc = goose.RunContext // mockable

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	dir, err := database.MigrationsDir(cli.db)
	if err != nil {
		return err
	}
	return gooseRunFunc(ctx, args[0], cli.db.DB, dir, args[1:]...)
}
