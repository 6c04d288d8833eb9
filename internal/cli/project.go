package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rpggio/hq/internal/app"
	"github.com/rpggio/hq/internal/domain/project"
	"github.com/spf13/cobra"
)

// projectSummary is the list view of a project.
type projectSummary struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Status   project.Status `json:"status"`
	Deadline *time.Time     `json:"deadline,omitempty"`
	Progress int            `json:"progress"`
	Tasks    int            `json:"tasks"`
}

func summarize(p *project.Project) projectSummary {
	return projectSummary{
		ID:       p.ID,
		Name:     p.Name,
		Status:   p.Status,
		Deadline: p.Deadline,
		Progress: project.CalcProgress(p),
		Tasks:    len(p.Tasks),
	}
}

func (r *root) addProject(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"p"},
		Short:   "Manage projects with stages, tasks, notes and links.",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects, active ones first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.run(cmd, func(_ context.Context, a *app.App) error {
				active, other := project.Active(a.Projects.List())
				out := make([]projectSummary, 0, len(active)+len(other))
				for _, p := range append(active, other...) {
					out = append(out, summarize(p))
				}
				return r.emit(cmd, out, func(w io.Writer) {
					printProjects(w, out)
				})
			})
		},
	}

	var (
		description, deadline, colorName string
	)
	add := &cobra.Command{
		Use:   "add <name...>",
		Short: "Create a project.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			due, err := parseDay(deadline)
			if err != nil {
				return err
			}
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Projects.AddProject(ctx, project.CreateRequest{
					Name:        strings.Join(args, " "),
					Description: description,
					Deadline:    due,
					Color:       colorName,
				})
				if err != nil {
					return err
				}
				return r.emit(cmd, p, func(w io.Writer) {
					fmt.Fprintf(w, "created %s %s\n", bold(p.Name), faint(p.ID))
				})
			})
		},
	}
	add.Flags().StringVarP(&description, "description", "d", "", "Project description.")
	add.Flags().StringVar(&deadline, "deadline", "", "Deadline as YYYY-MM-DD.")
	add.Flags().StringVar(&colorName, "color", "", "Display color.")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project with its stages and tasks.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(_ context.Context, a *app.App) error {
				p, err := a.Projects.Get(args[0])
				if err != nil {
					return err
				}
				return r.emit(cmd, p, func(w io.Writer) {
					printProject(w, p)
				})
			})
		},
	}

	status := &cobra.Command{
		Use:   "status <id> <active|frozen|done>",
		Short: "Change the status of a project.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := project.Status(args[1])
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Projects.UpdateProject(ctx, args[0], project.UpdateRequest{Status: &st}); err != nil {
					return err
				}
				p, err := a.Projects.Get(args[0])
				if err != nil {
					return err
				}
				return r.emit(cmd, summarize(p), func(w io.Writer) {
					fmt.Fprintf(w, "%s is now %s\n", bold(p.Name), p.Status)
				})
			})
		},
	}

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a project and everything in it.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				if _, err := a.Projects.Get(args[0]); err != nil {
					return err
				}
				if err := a.Projects.DeleteProject(ctx, args[0]); err != nil {
					return err
				}
				return r.emit(cmd, map[string]any{"id": args[0], "deleted": true}, func(w io.Writer) {
					fmt.Fprintln(w, "deleted")
				})
			})
		},
	}

	rename := &cobra.Command{
		Use:   "rename <id> <name...>",
		Short: "Rename a project.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args[1:], " ")
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				if _, err := a.Projects.Get(args[0]); err != nil {
					return err
				}
				if err := a.Projects.UpdateProject(ctx, args[0], project.UpdateRequest{Name: &name}); err != nil {
					return err
				}
				p, err := a.Projects.Get(args[0])
				if err != nil {
					return err
				}
				return r.emit(cmd, summarize(p), func(w io.Writer) {
					fmt.Fprintf(w, "renamed to %s\n", bold(p.Name))
				})
			})
		},
	}

	cmd.AddCommand(list, add, show, status, rename, rm, r.stageCommand(), r.taskCommand(), r.noteCommand(), r.linkCommand())
	parent.AddCommand(cmd)
}

func (r *root) taskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Add and complete project tasks.",
	}

	var stageID, deadline string
	add := &cobra.Command{
		Use:   "add <project-id> <title...>",
		Short: "Add a task, optionally inside a stage.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			due, err := parseDay(deadline)
			if err != nil {
				return err
			}
			var stage *string
			if stageID != "" {
				stage = &stageID
			}
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				t, err := a.Projects.AddTask(ctx, args[0], stage, strings.Join(args[1:], " "), due)
				if err != nil {
					return err
				}
				return r.emit(cmd, t, func(w io.Writer) {
					fmt.Fprintf(w, "added task %s\n", faint(t.ID))
				})
			})
		},
	}
	add.Flags().StringVar(&stageID, "stage", "", "Stage id to put the task in.")
	add.Flags().StringVar(&deadline, "deadline", "", "Deadline as YYYY-MM-DD.")

	toggle := &cobra.Command{
		Use:   "toggle <project-id> <task-id>",
		Short: "Flip a task between done and open.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Projects.Get(args[0])
				if err != nil {
					return err
				}
				var current *project.Task
				for _, t := range p.Tasks {
					if t.ID == args[1] {
						current = t
					}
				}
				if current == nil {
					return fmt.Errorf("task %s: %w", args[1], errNotFound)
				}
				if err := a.Projects.ToggleTask(ctx, p.ID, current.ID, current.Done); err != nil {
					return err
				}
				progress := 0
				if p, err = a.Projects.Get(p.ID); err == nil {
					progress = project.CalcProgress(p)
				}
				state := map[string]any{"id": current.ID, "done": !current.Done, "progress": progress}
				return r.emit(cmd, state, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s  %s\n", check(!current.Done), current.Title, bar(progress))
				})
			})
		},
	}

	rm := &cobra.Command{
		Use:     "rm <project-id> <task-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task.",
		Args:    cobra.ExactArgs(2),
		RunE: r.childRemover("task", func(p *project.Project, id string) bool {
			return containsID(p.Tasks, id)
		}, func(ctx context.Context, a *app.App, pid, id string) error {
			return a.Projects.DeleteTask(ctx, pid, id)
		}),
	}

	cmd.AddCommand(add, toggle, rm)
	return cmd
}

func (r *root) stageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Add, update and remove project stages.",
	}

	add := &cobra.Command{
		Use:   "add <project-id> <name...>",
		Short: "Add a stage to a project.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				s, err := a.Projects.AddStage(ctx, args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				return r.emit(cmd, s, func(w io.Writer) {
					fmt.Fprintf(w, "added stage %d %s\n", s.Order+1, faint(s.ID))
				})
			})
		},
	}

	status := &cobra.Command{
		Use:   "status <project-id> <stage-id> <todo|in_progress|done>",
		Short: "Change the status of a stage.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := project.StageStatus(args[2])
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Projects.Get(args[0])
				if err != nil {
					return err
				}
				if !containsID(p.Stages, args[1]) {
					return fmt.Errorf("stage %s: %w", args[1], errNotFound)
				}
				if err := a.Projects.UpdateStage(ctx, p.ID, args[1], project.StageUpdate{Status: &st}); err != nil {
					return err
				}
				state := map[string]any{"id": args[1], "status": st}
				return r.emit(cmd, state, func(w io.Writer) {
					fmt.Fprintf(w, "stage is now %s\n", st)
				})
			})
		},
	}

	rm := &cobra.Command{
		Use:     "rm <project-id> <stage-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a stage. Its tasks become free tasks.",
		Args:    cobra.ExactArgs(2),
		RunE: r.childRemover("stage", func(p *project.Project, id string) bool {
			return containsID(p.Stages, id)
		}, func(ctx context.Context, a *app.App, pid, id string) error {
			return a.Projects.DeleteStage(ctx, pid, id)
		}),
	}

	cmd.AddCommand(add, status, rm)
	return cmd
}

func (r *root) noteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note",
		Short: "Add and remove project notes.",
	}

	add := &cobra.Command{
		Use:   "add <project-id> <content...>",
		Short: "Add a note to a project.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Projects.AddNote(ctx, args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				return r.emit(cmd, n, func(w io.Writer) {
					fmt.Fprintf(w, "added note %s\n", faint(n.ID))
				})
			})
		},
	}

	rm := &cobra.Command{
		Use:     "rm <project-id> <note-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a note.",
		Args:    cobra.ExactArgs(2),
		RunE: r.childRemover("note", func(p *project.Project, id string) bool {
			return containsID(p.Notes, id)
		}, func(ctx context.Context, a *app.App, pid, id string) error {
			return a.Projects.DeleteNote(ctx, pid, id)
		}),
	}

	cmd.AddCommand(add, rm)
	return cmd
}

func (r *root) linkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Attach and remove project links.",
	}

	add := &cobra.Command{
		Use:   "add <project-id> <url> [title...]",
		Short: "Attach a link to a project.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			linkTitle := strings.Join(args[2:], " ")
			if linkTitle == "" {
				linkTitle = args[1]
			}
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				l, err := a.Projects.AddLink(ctx, args[0], linkTitle, args[1])
				if err != nil {
					return err
				}
				return r.emit(cmd, l, func(w io.Writer) {
					fmt.Fprintf(w, "added link %s\n", faint(l.ID))
				})
			})
		},
	}

	rm := &cobra.Command{
		Use:     "rm <project-id> <link-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a link.",
		Args:    cobra.ExactArgs(2),
		RunE: r.childRemover("link", func(p *project.Project, id string) bool {
			return containsID(p.Links, id)
		}, func(ctx context.Context, a *app.App, pid, id string) error {
			return a.Projects.DeleteLink(ctx, pid, id)
		}),
	}

	cmd.AddCommand(add, rm)
	return cmd
}

// childRemover builds the RunE of a "<kind> rm <project-id> <id>" command.
func (r *root) childRemover(kind string, has func(*project.Project, string) bool, del func(context.Context, *app.App, string, string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return r.run(cmd, func(ctx context.Context, a *app.App) error {
			p, err := a.Projects.Get(args[0])
			if err != nil {
				return err
			}
			if !has(p, args[1]) {
				return fmt.Errorf("%s %s: %w", kind, args[1], errNotFound)
			}
			if err := del(ctx, a, p.ID, args[1]); err != nil {
				return err
			}
			return r.emit(cmd, map[string]any{"id": args[1], "deleted": true}, func(w io.Writer) {
				fmt.Fprintf(w, "deleted %s\n", kind)
			})
		})
	}
}

func containsID[T interface{ GetID() string }](items []T, id string) bool {
	for _, it := range items {
		if it.GetID() == id {
			return true
		}
	}
	return false
}

func parseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
	}
	return &t, nil
}

func printProjects(w io.Writer, items []projectSummary) {
	if len(items) == 0 {
		none(w)
		return
	}
	tbl := newTable("ID", "NAME", "STATUS", "DEADLINE", "PROGRESS")
	for _, p := range items {
		status := string(p.Status)
		if p.Status == project.StatusActive {
			status = green(status)
		} else {
			status = faint(status)
		}
		tbl.AddRow(faint(p.ID), p.Name, status, optionalDate(p.Deadline), bar(p.Progress))
	}
	printTable(w, tbl)
}

func printProject(w io.Writer, p *project.Project) {
	title(w, p.Name)
	if p.Description != "" {
		fmt.Fprintln(w, p.Description)
	}
	fmt.Fprintf(w, "%s  %s", p.Status, bar(project.CalcProgress(p)))
	if p.Deadline != nil {
		fmt.Fprintf(w, "  due %s", shortDate(*p.Deadline))
	}
	fmt.Fprintln(w)

	for _, s := range p.Stages {
		fmt.Fprintf(w, "\n%s %s  %s %s\n", bold(fmt.Sprintf("%d.", s.Order+1)), s.Name, string(s.Status), faint(s.ID))
		printTasks(w, project.StageTasks(p, s.ID))
	}
	if free := project.FreeTasks(p); len(free) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Tasks"))
		printTasks(w, free)
	}
	if len(p.Notes) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Notes"))
		for _, n := range p.Notes {
			fmt.Fprintf(w, "  - %s %s\n", n.Content, faint(n.ID))
		}
	}
	if len(p.Links) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Links"))
		for _, l := range p.Links {
			fmt.Fprintf(w, "  - %s %s %s\n", l.Title, l.URL, faint(l.ID))
		}
	}
}

func printTasks(w io.Writer, tasks []*project.Task) {
	for _, t := range tasks {
		fmt.Fprintf(w, "  %s %s %s", check(t.Done), t.Title, faint(t.ID))
		if t.Deadline != nil {
			fmt.Fprintf(w, "  due %s", shortDate(*t.Deadline))
		}
		fmt.Fprintln(w)
	}
}
