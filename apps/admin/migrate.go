package main

import (
	"github.com/spf13/cobra"

	"github.com/trezcool/shule/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose command on the embedded migrations",
		Long: `Run a goose command on the embedded migrations.
Commands: up, up-by-one, up-to VERSION, down, down-to VERSION, redo, reset, status, version, fix.`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return errHelp
			}
			return gooseRunFunc(cmd.Context(), cli.db, args[0], args[1:]...)
		},
	}
}
