package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/shule/core/role"
	"github.com/trezcool/shule/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sqlx.DB
	usrSvc   *user.Service
	roleSvc  *role.Service
	validate *validator.Validate
	out      io.Writer
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	out := cli.out
	if out == nil {
		out = os.Stdout
	}
	_, _ = fmt.Fprintf(out, format, args...)
}

// promptPassword reads a password without echoing it.
func (cli *commandLine) promptPassword(prompt string) (string, error) {
	cli.printf("%s", prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.printf("\n")
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) rootCmd(ctx context.Context) *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Shule administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	if cli.out != nil {
		root.SetOut(cli.out)
		root.SetErr(cli.out)
	}
	root.SetContext(ctx)

	root.AddCommand(
		cli.migrateCmd(),
		cli.addUserCmd(),
		cli.grantRoleCmd(),
		cli.resetPasswordCmd(),
	)
	return root
}

// run runs the command named by args[1:]. args[0] is the program name.
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd(context.Background())
	if len(args) > 1 {
		root.SetArgs(args[1:])
	} else {
		root.SetArgs([]string{})
	}
	return root.Execute()
}
