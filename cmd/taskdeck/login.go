package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <email> [password]",
	Short: "Authenticate and store a session",
	Long:  "Authenticates against the backend and persists the bearer token. The password may be given as the second argument or via TASKDECK_PASSWORD.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		password := os.Getenv("TASKDECK_PASSWORD")
		if len(args) == 2 {
			password = args[1]
		}
		if password == "" {
			return fmt.Errorf("no password given (argument or TASKDECK_PASSWORD)")
		}

		if err := a.authStore.Login(cmd.Context(), args[0], password); err != nil {
			return err
		}

		u := a.authStore.CurrentUser()
		fmt.Printf("logged in as %s <%s> (%s)\n", u.Name, u.Email, u.Role)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register <name> <email> <password>",
	Short: "Create an account and log in",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.authStore.Register(cmd.Context(), args[0], args[1], args[2]); err != nil {
			return err
		}
		u := a.authStore.CurrentUser()
		fmt.Printf("registered and logged in as %s <%s>\n", u.Name, u.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.authStore.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}
		u := a.authStore.CurrentUser()
		if jsonOut {
			return printJSON(u)
		}
		fmt.Printf("%s <%s> role=%s id=%s\n", u.Name, u.Email, u.Role, u.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}
