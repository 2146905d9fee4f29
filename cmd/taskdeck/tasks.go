package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tmarchal/taskdeck/internal/task"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage tasks",
}

var (
	taskTitle       string
	taskDescription string
	taskStatus      string
	taskPriority    string
	taskDue         string
	taskTeam        string
	taskAssignees   string
	filterTeam      string
	filterUser      string
)

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, optionally filtered by team or assignee",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}

		tasks := a.taskStore.Fetch(cmd.Context())
		if err := a.taskStore.Err(); err != nil {
			return err
		}

		if filterTeam != "" {
			id, err := parseIDArg(filterTeam)
			if err != nil {
				return err
			}
			tasks = a.taskStore.ForTeam(id)
		} else if filterUser != "" {
			id, err := parseIDArg(filterUser)
			if err != nil {
				return err
			}
			tasks = a.taskStore.ForUser(id)
		}

		if jsonOut {
			return printJSON(tasks)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tTEAM\tASSIGNEES\tDUE")
		for _, t := range tasks {
			due := "-"
			if t.DueDate != nil {
				due = t.DueDate.Format("2006-01-02")
			}
			teamName := "-"
			if t.Team != nil {
				teamName = t.Team.Name
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				t.ID, t.Title, t.Status, t.Priority, teamName, len(t.AssignedTo), due)
		}
		return w.Flush()
	},
}

var tasksCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a task",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}

		in := task.CreateTaskInput{
			Title:       taskTitle,
			Description: taskDescription,
			Status:      task.Status(taskStatus),
			Priority:    task.Priority(taskPriority),
		}
		if in.Status != "" && !in.Status.Valid() {
			return fmt.Errorf("unknown status %q", taskStatus)
		}
		if in.Priority != "" && !in.Priority.Valid() {
			return fmt.Errorf("unknown priority %q", taskPriority)
		}
		if taskDue != "" {
			due, err := time.Parse("2006-01-02", taskDue)
			if err != nil {
				return fmt.Errorf("invalid due date %q (want YYYY-MM-DD)", taskDue)
			}
			in.DueDate = &due
		}
		if taskTeam != "" {
			if in.TeamID, err = parseIDArg(taskTeam); err != nil {
				return err
			}
		}
		if taskAssignees != "" {
			if in.AssignedTo, err = parseIDList([]string{taskAssignees}); err != nil {
				return err
			}
		}

		created, err := a.taskStore.Create(cmd.Context(), in)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(created)
		}
		fmt.Printf("created task %s: %s\n", created.ID, created.Title)
		return nil
	},
}

var tasksUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a task's fields",
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

		var in task.UpdateTaskInput
		if cmd.Flags().Changed("title") {
			in.Title = &taskTitle
		}
		if cmd.Flags().Changed("description") {
			in.Description = &taskDescription
		}
		if cmd.Flags().Changed("status") {
			st := task.Status(taskStatus)
			if !st.Valid() {
				return fmt.Errorf("unknown status %q", taskStatus)
			}
			in.Status = &st
		}
		if cmd.Flags().Changed("priority") {
			pr := task.Priority(taskPriority)
			if !pr.Valid() {
				return fmt.Errorf("unknown priority %q", taskPriority)
			}
			in.Priority = &pr
		}
		if cmd.Flags().Changed("due") {
			due, err := time.Parse("2006-01-02", taskDue)
			if err != nil {
				return fmt.Errorf("invalid due date %q (want YYYY-MM-DD)", taskDue)
			}
			in.DueDate = &due
		}
		if cmd.Flags().Changed("team") {
			teamID, err := parseIDArg(taskTeam)
			if err != nil {
				return err
			}
			in.TeamID = &teamID
		}

		// Fetch first so the cache has the entry to replace.
		a.taskStore.Fetch(cmd.Context())
		updated, err := a.taskStore.Update(cmd.Context(), id, in)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(updated)
		}
		fmt.Printf("updated task %s\n", updated.ID)
		return nil
	},
}

var tasksDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task",
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
		if err := a.taskStore.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("deleted task %s\n", id)
		return nil
	},
}

var tasksAssignCmd = &cobra.Command{
	Use:   "assign <id> <userId>[,userId...]",
	Short: "Replace a task's assignees",
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

		a.taskStore.Fetch(cmd.Context())
		updated, err := a.taskStore.Assign(cmd.Context(), id, userIDs)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(updated)
		}
		fmt.Printf("task %s now has %d assignee(s)\n", updated.ID, len(updated.AssignedTo))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{tasksCreateCmd, tasksUpdateCmd} {
		c.Flags().StringVar(&taskTitle, "title", "", "task title")
		c.Flags().StringVar(&taskDescription, "description", "", "task description")
		c.Flags().StringVar(&taskStatus, "status", "", "PENDING | IN_PROGRESS | COMPLETED | BLOCKED")
		c.Flags().StringVar(&taskPriority, "priority", "", "LOW | MEDIUM | HIGH")
		c.Flags().StringVar(&taskDue, "due", "", "due date (YYYY-MM-DD)")
		c.Flags().StringVar(&taskTeam, "team", "", "team id")
	}
	tasksCreateCmd.Flags().StringVar(&taskAssignees, "assign", "", "comma-separated assignee ids")

	tasksListCmd.Flags().StringVar(&filterTeam, "team", "", "only tasks for this team id")
	tasksListCmd.Flags().StringVar(&filterUser, "user", "", "only tasks assigned to this user id")

	tasksCmd.AddCommand(tasksListCmd, tasksCreateCmd, tasksUpdateCmd, tasksDeleteCmd, tasksAssignCmd)
	rootCmd.AddCommand(tasksCmd)
}
