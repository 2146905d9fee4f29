package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tmarchal/taskdeck/internal/auth"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your profile",
}

var (
	profileName   string
	profileBio    string
	profileAvatar string
)

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update profile fields",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}

		var in auth.ProfileUpdate
		if cmd.Flags().Changed("name") {
			in.Name = &profileName
		}
		if cmd.Flags().Changed("bio") {
			in.Bio = &profileBio
		}
		if cmd.Flags().Changed("avatar") {
			in.Avatar = &profileAvatar
		}

		if err := a.authStore.UpdateProfile(cmd.Context(), in); err != nil {
			return err
		}
		fmt.Println("profile updated")
		return nil
	},
}

var profilePasswordCmd = &cobra.Command{
	Use:   "password <current> <new>",
	Short: "Change your password",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}
		if err := a.authStore.UpdatePassword(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Println("password updated")
		return nil
	},
}

func init() {
	profileUpdateCmd.Flags().StringVar(&profileName, "name", "", "display name")
	profileUpdateCmd.Flags().StringVar(&profileBio, "bio", "", "bio text")
	profileUpdateCmd.Flags().StringVar(&profileAvatar, "avatar", "", "avatar URL")

	profileCmd.AddCommand(profileUpdateCmd, profilePasswordCmd)
	rootCmd.AddCommand(profileCmd)
}
