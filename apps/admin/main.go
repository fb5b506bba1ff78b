package main

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	dig_container "github.com/trezcool/shule/apps/api/di/dig"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/role"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/storage/database"
)

func openDB(conf *core.Config) (*sqlx.DB, error) {
	return database.Open(context.Background(), conf)
}

func main() {
	c := dig_container.NewBase()
	if err := c.Provide(openDB); err != nil {
		log.Fatal(err)
	}

	var code int
	err := c.Invoke(func(
		logger core.Logger,
		db *sqlx.DB,
		validate *validator.Validate,
		translator ut.Translator,
		usrSvc *user.Service,
		roleSvc *role.Service,
	) {
		defer func() { _ = db.Close() }()

		core.InitValidators(validate, translator)
		user.InitValidators(validate, translator)
		user.LoadCommonPasswords(logger)

		cli := commandLine{
			db:       db,
			usrSvc:   usrSvc,
			roleSvc:  roleSvc,
			validate: validate,
		}
		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
			}
			code = 1
		}
	})
	if err != nil {
		log.Fatal(err)
	}
	os.Exit(code)
}
