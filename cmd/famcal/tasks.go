package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/famboard/famcal"
)

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage the shared task list",
	}
	cmd.AddCommand(
		newTasksListCmd(),
		newTasksAddCmd(),
		newTasksDoneCmd(),
		newTasksAssignCmd(),
		newTasksRmCmd(),
	)
	return cmd
}

// taskApp is newApp plus the check that a task list is configured.
func taskApp(ctx context.Context) (*app, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}
	if a.board == nil {
		return nil, fmt.Errorf("no task_list configured")
	}
	return a, nil
}

func findTask(ctx context.Context, a *app, id string) (famcal.Task, error) {
	tasks, err := a.board.Tasks(ctx)
	if err != nil {
		return famcal.Task{}, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return famcal.Task{}, fmt.Errorf("task %s not found", id)
}

func printTask(cmd *cobra.Command, t famcal.Task) {
	mark := " "
	if t.Status == famcal.TaskCompleted {
		mark = "x"
	}
	line := fmt.Sprintf("[%s] %s", mark, t.Title)
	if who := t.Meta[famcal.MetaAssignee]; who != "" {
		line += fmt.Sprintf(" (%s)", who)
	}
	if !t.Due.IsZero() {
		line += fmt.Sprintf(" due %s", t.Due.Format("2006-01-02"))
	}
	cmd.Printf("%s  [%s]\n", line, t.ID)
}

func newTasksListCmd() *cobra.Command {
	var assignee string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the task board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := taskApp(cmd.Context())
			if err != nil {
				return err
			}
			var tasks []famcal.Task
			if assignee != "" {
				tasks, err = a.board.TasksFor(cmd.Context(), assignee)
			} else {
				tasks, err = a.board.Tasks(cmd.Context())
			}
			if err != nil {
				return err
			}
			for _, t := range tasks {
				printTask(cmd, t)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&assignee, "for", "", "only tasks assigned to this family member")
	return cmd
}

func newTasksAddCmd() *cobra.Command {
	var (
		notes    string
		dueArg   string
		assignee string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := taskApp(cmd.Context())
			if err != nil {
				return err
			}
			var due time.Time
			if dueArg != "" {
				due, err = time.ParseInLocation("2006-01-02", dueArg, a.cfg.Location())
				if err != nil {
					return fmt.Errorf("bad --due %q, want YYYY-MM-DD", dueArg)
				}
			}
			t, err := a.board.AddTask(cmd.Context(), args[0], notes, due, assignee)
			if err != nil {
				return err
			}
			printTask(cmd, t)
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	cmd.Flags().StringVar(&dueArg, "due", "", "due date, YYYY-MM-DD")
	cmd.Flags().StringVar(&assignee, "for", "", "assign to a family member")
	return cmd
}

func newTasksDoneCmd() *cobra.Command {
	var reopen bool

	cmd := &cobra.Command{
		Use:   "done <task-id>",
		Short: "Mark a task completed (or reopen it)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := taskApp(cmd.Context())
			if err != nil {
				return err
			}
			t, err := findTask(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			if reopen {
				t, err = a.board.Reopen(cmd.Context(), t)
			} else {
				t, err = a.board.Complete(cmd.Context(), t)
			}
			if err != nil {
				return err
			}
			printTask(cmd, t)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reopen, "undo", false, "reopen instead of completing")
	return cmd
}

func newTasksAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <task-id> <family-member>",
		Short: "Assign a task to a family member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := taskApp(cmd.Context())
			if err != nil {
				return err
			}
			t, err := findTask(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			t, err = a.board.Assign(cmd.Context(), t, args[1])
			if err != nil {
				return err
			}
			printTask(cmd, t)
			return nil
		},
	}
}

func newTasksRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := taskApp(cmd.Context())
			if err != nil {
				return err
			}
			t, err := findTask(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			if err := a.board.DeleteTask(cmd.Context(), t); err != nil {
				return err
			}
			cmd.Printf("deleted %s\n", t.Title)
			return nil
		},
	}
}
