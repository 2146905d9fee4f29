package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tmarchal/taskdeck/internal/auth"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users (admin)",
}

var (
	userName     string
	userEmail    string
	userPassword string
	userRole     string
)

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the user directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}

		users := a.authStore.LoadUsers(cmd.Context())
		if jsonOut {
			return printJSON(users)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role)
		}
		return w.Flush()
	},
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}

		in := auth.CreateUserInput{
			Name:     userName,
			Email:    userEmail,
			Password: userPassword,
			Role:     auth.Role(userRole),
		}
		if err := a.authStore.CreateUser(cmd.Context(), in); err != nil {
			return err
		}
		fmt.Printf("created user %s\n", userEmail)
		return nil
	},
}

var usersUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a user's fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}
		id, err := parseIDArg(args[0])
		if err != nil {
			return err
		}

		var in auth.UpdateUserInput
		if cmd.Flags().Changed("name") {
			in.Name = &userName
		}
		if cmd.Flags().Changed("email") {
			in.Email = &userEmail
		}
		if cmd.Flags().Changed("password") {
			in.Password = &userPassword
		}
		if cmd.Flags().Changed("role") {
			role := auth.Role(userRole)
			in.Role = &role
		}

		if err := a.authStore.UpdateUser(cmd.Context(), id, in); err != nil {
			return err
		}
		fmt.Printf("updated user %s\n", id)
		return nil
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}
		id, err := parseIDArg(args[0])
		if err != nil {
			return err
		}
		if err := a.authStore.DeleteUser(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("deleted user %s\n", id)
		return nil
	},
}

var usersPromoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Grant the ADMIN role",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return changeRole(cmd, args[0], true) },
}

var usersDemoteCmd = &cobra.Command{
	Use:   "demote <email>",
	Short: "Revoke the ADMIN role",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return changeRole(cmd, args[0], false) },
}

func changeRole(cmd *cobra.Command, email string, promote bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireAuth(cmd.Context()); err != nil {
		return err
	}

	// Role changes resolve the email against the directory, so load it first.
	a.authStore.LoadUsers(cmd.Context())

	if promote {
		if err := a.authStore.PromoteToAdmin(cmd.Context(), email); err != nil {
			return err
		}
		fmt.Printf("%s is now an admin\n", email)
		return nil
	}
	if err := a.authStore.DemoteToMember(cmd.Context(), email); err != nil {
		return err
	}
	fmt.Printf("%s is now a member\n", email)
	return nil
}

func init() {
	for _, c := range []*cobra.Command{usersCreateCmd, usersUpdateCmd} {
		c.Flags().StringVar(&userName, "name", "", "user name")
		c.Flags().StringVar(&userEmail, "email", "", "user email")
		c.Flags().StringVar(&userPassword, "password", "", "user password")
		c.Flags().StringVar(&userRole, "role", "", "ADMIN | MEMBER")
	}

	usersCmd.AddCommand(usersListCmd, usersCreateCmd, usersUpdateCmd, usersDeleteCmd,
		usersPromoteCmd, usersDemoteCmd)
	rootCmd.AddCommand(usersCmd)
}
