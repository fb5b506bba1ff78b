package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/shule/core/role"
	"github.com/trezcool/shule/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var name, email, r string
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, optionally holding a role. The password is prompted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" || email == "" {
				_ = cmd.Help()
				return errHelp
			}
			if r != "" && !role.Role(r).IsValid() {
				return errors.Errorf("%q is not a valid role", r)
			}
			pwd, err := cli.promptPassword("Enter password:")
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			nu := user.NewUser{Name: name, Email: email, Password: pwd, PasswordConfirm: pwd}
			if err = nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
				return err
			}
			usr, err := cli.usrSvc.Create(ctx, nu)
			if err != nil {
				return err
			}
			if r != "" {
				if _, err = cli.roleSvc.Grant(ctx, usr.ID, role.Role(r)); err != nil {
					return err
				}
			}
			cli.printf("user %s created\n", usr.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "the user's full name")
	cmd.Flags().StringVarP(&email, "email", "e", "", "the user's email")
	cmd.Flags().StringVarP(&r, "role", "r", "", "one of: visitor, student, teacher, admin")
	return cmd
}
