package main

import (
	"github.com/spf13/cobra"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The password is prompted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				_ = cmd.Help()
				return errHelp
			}
			pwd, err := cli.promptPassword("Enter password:")
			if err != nil {
				return err
			}
			if pwd == "" {
				_ = cmd.Help()
				return errHelp
			}

			usr, err := cli.usrSvc.SetPassword(cmd.Context(), email, pwd)
			if err != nil {
				return err
			}
			cli.printf("password of %s reset\n", usr.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "the user's email")
	return cmd
}
