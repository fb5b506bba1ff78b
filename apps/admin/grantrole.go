package main

import (
	"github.com/spf13/cobra"

	"github.com/trezcool/shule/core/role"
)

func (cli *commandLine) grantRoleCmd() *cobra.Command {
	var email, r string
	cmd := &cobra.Command{
		Use:   "grantrole",
		Short: "Grant a role to a user, out of the request workflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" || r == "" {
				_ = cmd.Help()
				return errHelp
			}
			usr, err := cli.usrSvc.GetByEmail(cmd.Context(), email)
			if err != nil {
				return err
			}
			grant, err := cli.roleSvc.Grant(cmd.Context(), usr.ID, role.Role(r))
			if err != nil {
				return err
			}
			cli.printf("%s is now %s\n", usr.Email, grant.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "the user's email")
	cmd.Flags().StringVarP(&r, "role", "r", "", "one of: visitor, student, teacher, admin")
	return cmd
}
