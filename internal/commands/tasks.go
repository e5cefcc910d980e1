package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"taskdeck/internal/gateway"
	"taskdeck/internal/models"
)

var (
	listCompleted bool
	listPending   bool

	addDescription string
	addPriority    string
	addTags        []string
	addDue         string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, newest first",
	Args:  cobra.NoArgs,
	Run: withApp(func(a *app, args []string) error {
		tasks, err := a.tasks.Load(context.Background())
		if err != nil {
			return err
		}

		switch {
		case listCompleted:
			tasks = a.tasks.Completed()
		case listPending:
			tasks = a.tasks.Incomplete()
		}

		if len(tasks) == 0 {
			fmt.Println("No tasks.")
			return nil
		}
		for _, t := range tasks {
			printTask(t)
		}
		return nil
	}),
}

var addCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Create a task",
	Args:  cobra.MinimumNArgs(1),
	Run: withApp(func(a *app, args []string) error {
		draft := models.TaskDraft{
			Title:       strings.Join(args, " "),
			Description: addDescription,
			Priority:    models.Priority(addPriority),
			Tags:        addTags,
		}
		if addDue != "" {
			due, err := time.Parse("2006-01-02", addDue)
			if err != nil {
				return fmt.Errorf("invalid due date %q, want YYYY-MM-DD", addDue)
			}
			draft.DueDate = &due
		}

		task, err := a.tasks.Create(context.Background(), draft)
		if err != nil {
			if task.Pending {
				fmt.Printf("Service unreachable; saved locally as %s. Run 'taskdeck sync' later.\n", task.ID)
				return nil
			}
			return err
		}
		fmt.Printf("Created task %s: %s\n", task.ID, task.Title)
		return nil
	}),
}

var doneCmd = &cobra.Command{
	Use:   "done [task-id]",
	Short: "Toggle a task's completed state",
	Args:  cobra.ExactArgs(1),
	Run: withApp(func(a *app, args []string) error {
		if err := loadQuiet(a); err != nil {
			return err
		}
		task, err := a.tasks.ToggleComplete(context.Background(), args[0])
		if err != nil {
			if keptLocally(err, task.ID) {
				fmt.Printf("Service unreachable; change kept locally for %s.\n", task.ID)
				return nil
			}
			return err
		}
		if task.Completed {
			fmt.Printf("Marked done: %s\n", task.Title)
		} else {
			fmt.Printf("Marked not done: %s\n", task.Title)
		}
		return nil
	}),
}

var delayCmd = &cobra.Command{
	Use:   "delay [task-id] [minutes]",
	Short: "Push a task's scheduled time forward",
	Args:  cobra.ExactArgs(2),
	Run: withApp(func(a *app, args []string) error {
		minutes, err := strconv.Atoi(args[1])
		if err != nil || minutes <= 0 {
			return fmt.Errorf("invalid minutes %q", args[1])
		}
		if err := loadQuiet(a); err != nil {
			return err
		}
		task, err := a.tasks.Delay(context.Background(), args[0], minutes)
		if err != nil {
			return err
		}
		if task.ScheduledTime != nil {
			fmt.Printf("Rescheduled %s to %s\n", task.Title, task.ScheduledTime.Local().Format("Jan 2 15:04"))
		} else {
			fmt.Printf("Rescheduled %s\n", task.Title)
		}
		return nil
	}),
}

var rmCmd = &cobra.Command{
	Use:   "rm [task-id]",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	Run: withApp(func(a *app, args []string) error {
		if err := loadQuiet(a); err != nil {
			return err
		}
		if err := a.tasks.Delete(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Println("Deleted.")
		return nil
	}),
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push tasks created while offline to the service",
	Args:  cobra.NoArgs,
	Run: withApp(func(a *app, args []string) error {
		if err := loadQuiet(a); err != nil {
			return err
		}
		flushed, err := a.tasks.FlushPending(context.Background())
		if flushed > 0 {
			fmt.Printf("Synced %d task(s).\n", flushed)
		}
		if err != nil {
			return err
		}
		if flushed == 0 {
			fmt.Println("Nothing to sync.")
		}
		return nil
	}),
}

// loadQuiet primes the coordinator's visible list so id lookups work,
// tolerating offline starts.
func loadQuiet(a *app) error {
	_, err := a.tasks.Load(context.Background())
	return err
}

// keptLocally reports whether a failed mutation left usable local state
// worth reporting instead of the error: the service was unreachable or
// failing, and the optimistic copy is identified. Rejections (404,
// validation) surface as errors.
func keptLocally(err error, id string) bool {
	return gateway.IsOffline(err) && id != ""
}

// printTask renders one task line plus indented details.
func printTask(t models.Task) {
	mark := "[ ]"
	if t.Completed {
		mark = "[x]"
	}
	suffix := ""
	if t.Pending {
		suffix = " (not synced)"
	}
	fmt.Printf("%s %s  %s%s\n", mark, t.ID, t.Title, suffix)
	if t.DueDate != nil {
		fmt.Printf("      due %s\n", t.DueDate.Local().Format("Jan 2 2006"))
	}
	if t.ScheduledTime != nil {
		fmt.Printf("      scheduled %s\n", t.ScheduledTime.Local().Format("Jan 2 15:04"))
	}
	if len(t.Tags) > 0 {
		fmt.Printf("      tags: %s\n", strings.Join(t.Tags, ", "))
	}
}

func init() {
	listCmd.Flags().BoolVar(&listCompleted, "completed", false, "only completed tasks")
	listCmd.Flags().BoolVar(&listPending, "pending", false, "only unfinished tasks")

	addCmd.Flags().StringVarP(&addDescription, "desc", "D", "", "task description")
	addCmd.Flags().StringVarP(&addPriority, "priority", "p", "", "priority: low, medium, high")
	addCmd.Flags().StringSliceVarP(&addTags, "tag", "t", nil, "tag (repeatable)")
	addCmd.Flags().StringVar(&addDue, "due", "", "due date (YYYY-MM-DD)")
}
