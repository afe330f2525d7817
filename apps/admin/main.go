package main

import (
	"context"
	"os"

	"github.com/trezcool/trackle/core"
	"github.com/trezcool/trackle/core/user"
	logsvc "github.com/trezcool/trackle/services/logger"
	"github.com/trezcool/trackle/storage/database"
	sqlxrepos "github.com/trezcool/trackle/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(logsvc.NewZerolog(conf.Log, os.Stdout).With().Str("app", "admin").Logger(), conf)
	logger.Enable(!conf.Debug && !conf.TestMode)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("setting up database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	// start CLI
	cli := commandLine{
		db:     db,
		usrSvc: user.NewService(sqlxrepos.NewUserRepository(db)),
	}
	err = cli.run(context.Background(), os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}
