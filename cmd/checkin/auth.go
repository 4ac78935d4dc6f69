package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/celerix-checkin/pkg/schema"
)

var passwordFlag string

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in with email and password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := client.Login(args[0], passwordFlag)
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s (%s)\n", sess.User.FullName, sess.User.Role)
		return nil
	},
}

var demoCmd = &cobra.Command{
	Use:       "demo <employee|admin>",
	Short:     "Sign in as the first active user with a role",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(schema.RoleEmployee), string(schema.RoleAdmin)},
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := client.DemoLogin(schema.Role(args[0]))
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s (%s)\n", sess.User.FullName, sess.User.Role)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.Logout(); err != nil {
			return err
		}
		fmt.Println("Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := client.GetSession()
		if err != nil {
			return err
		}
		if sess == nil {
			fmt.Println("Not signed in")
			return nil
		}
		printJSON(sess.User)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&passwordFlag, "password", "p", "", "password")
	loginCmd.MarkFlagRequired("password")
}
