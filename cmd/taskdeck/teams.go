package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tmarchal/taskdeck/internal/team"
)

var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "Manage teams",
}

var (
	teamName        string
	teamDescription string
	teamMembers     string
	teamsForce      bool
)

var teamsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List teams",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}

		teams := a.teamStore.Fetch(cmd.Context(), teamsForce)
		if err := a.teamStore.Err(); err != nil {
			return err
		}

		if jsonOut {
			return printJSON(teams)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tMEMBERS\tDESCRIPTION")
		for _, t := range teams {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", t.ID, t.Name, len(t.Members), t.Description)
		}
		return w.Flush()
	},
}

var teamsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one team with its members",
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

		t, err := a.teamStore.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		if t == nil {
			fmt.Printf("team %s not found\n", id)
			return nil
		}
		if jsonOut {
			return printJSON(t)
		}
		fmt.Printf("%s (%s)\n%s\n", t.Name, t.ID, t.Description)
		for _, m := range t.Members {
			fmt.Printf("  - %s <%s>\n", m.Name, m.Email)
		}
		return nil
	},
}

var teamsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a team",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}

		in := team.CreateTeamInput{Name: teamName, Description: teamDescription}
		if teamMembers != "" {
			if in.MemberIDs, err = parseIDList([]string{teamMembers}); err != nil {
				return err
			}
		}

		created, err := a.teamStore.Create(cmd.Context(), in)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(created)
		}
		fmt.Printf("created team %s: %s (%d members)\n", created.ID, created.Name, len(created.Members))
		return nil
	},
}

var teamsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a team's name or description",
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

		var in team.UpdateTeamInput
		if cmd.Flags().Changed("name") {
			in.Name = &teamName
		}
		if cmd.Flags().Changed("description") {
			in.Description = &teamDescription
		}

		updated, err := a.teamStore.Update(cmd.Context(), id, in)
		if err != nil {
			return err
		}
		if updated == nil {
			fmt.Printf("updated team %s\n", id)
			return nil
		}
		if jsonOut {
			return printJSON(updated)
		}
		fmt.Printf("updated team %s: %s\n", updated.ID, updated.Name)
		return nil
	},
}

var teamsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a team",
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
		if err := a.teamStore.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("deleted team %s\n", id)
		return nil
	},
}

var teamsAddMembersCmd = &cobra.Command{
	Use:   "add-members <id> <userId>[,userId...]",
	Short: "Add users to a team",
	Args:  cobra.MinimumNArgs(2),
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
		userIDs, err := parseIDList(args[1:])
		if err != nil {
			return err
		}

		t, err := a.teamStore.AddMembers(cmd.Context(), id, userIDs)
		if err != nil {
			return err
		}
		fmt.Printf("team %s now has %d member(s)\n", t.ID, len(t.Members))
		return nil
	},
}

var teamsRemoveMemberCmd = &cobra.Command{
	Use:   "remove-member <id> <userId>",
	Short: "Remove a user from a team",
	Args:  cobra.ExactArgs(2),
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
		userID, err := parseIDArg(args[1])
		if err != nil {
			return err
		}

		t, err := a.teamStore.RemoveMember(cmd.Context(), id, userID)
		if err != nil {
			return err
		}
		fmt.Printf("team %s now has %d member(s)\n", t.ID, len(t.Members))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{teamsCreateCmd, teamsUpdateCmd} {
		c.Flags().StringVar(&teamName, "name", "", "team name")
		c.Flags().StringVar(&teamDescription, "description", "", "team description")
	}
	teamsCreateCmd.Flags().StringVar(&teamMembers, "members", "", "comma-separated member user ids")
	teamsListCmd.Flags().BoolVar(&teamsForce, "force", false, "bypass the cache and refetch")

	teamsCmd.AddCommand(teamsListCmd, teamsGetCmd, teamsCreateCmd, teamsUpdateCmd,
		teamsDeleteCmd, teamsAddMembersCmd, teamsRemoveMemberCmd)
	rootCmd.AddCommand(teamsCmd)
}
