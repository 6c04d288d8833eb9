package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rpggio/hq/internal/app"
	"github.com/rpggio/hq/internal/domain/thought"
	"github.com/spf13/cobra"
)

func (r *root) addThought(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:     "thought",
		Aliases: []string{"t"},
		Short:   "Capture and browse thoughts.",
	}

	add := &cobra.Command{
		Use:   "add <content...>",
		Short: "Add a thought. #hashtags become tags.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				t, err := a.Thoughts.Add(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return r.emit(cmd, t, func(w io.Writer) {
					fmt.Fprintf(w, "added %s\n", faint(t.ID))
				})
			})
		},
	}

	var window, tag string
	list := &cobra.Command{
		Use:   "list",
		Short: "List thoughts, pinned first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := thought.Window(window)
			switch w {
			case thought.WindowAll, thought.WindowToday, thought.WindowWeek:
			default:
				return fmt.Errorf("unknown window %q: use all, today or week", window)
			}
			return r.run(cmd, func(_ context.Context, a *app.App) error {
				items := a.Thoughts.Filter(w, strings.TrimPrefix(tag, "#"), time.Now())
				return r.emit(cmd, items, func(out io.Writer) {
					printThoughts(out, items)
				})
			})
		},
	}
	list.Flags().StringVarP(&window, "window", "w", string(thought.WindowAll), "Time window: all, today or week.")
	list.Flags().StringVar(&tag, "tag", "", "Only thoughts with this tag.")

	pin := &cobra.Command{
		Use:   "pin <id>",
		Short: "Toggle the pinned flag of a thought.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				current, err := findThought(a, args[0])
				if err != nil {
					return err
				}
				if err := a.Thoughts.TogglePin(ctx, current.ID, current.Pinned); err != nil {
					return err
				}
				state := map[string]any{"id": current.ID, "pinned": !current.Pinned}
				return r.emit(cmd, state, func(w io.Writer) {
					if current.Pinned {
						fmt.Fprintln(w, "unpinned")
					} else {
						fmt.Fprintln(w, "pinned")
					}
				})
			})
		},
	}

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a thought.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				if _, err := findThought(a, args[0]); err != nil {
					return err
				}
				if err := a.Thoughts.Remove(ctx, args[0]); err != nil {
					return err
				}
				return r.emit(cmd, map[string]any{"id": args[0], "deleted": true}, func(w io.Writer) {
					fmt.Fprintln(w, "deleted")
				})
			})
		},
	}

	tags := &cobra.Command{
		Use:   "tags",
		Short: "List every tag in use.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.run(cmd, func(_ context.Context, a *app.App) error {
				all := a.Thoughts.Tags()
				return r.emit(cmd, all, func(w io.Writer) {
					for _, t := range all {
						fmt.Fprintf(w, "#%s\n", t)
					}
				})
			})
		},
	}

	cmd.AddCommand(add, list, pin, rm, tags)
	parent.AddCommand(cmd)
}

func findThought(a *app.App, id string) (*thought.Thought, error) {
	for _, t := range a.Thoughts.List() {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("thought %s: %w", id, errNotFound)
}

func printThoughts(w io.Writer, items []*thought.Thought) {
	if len(items) == 0 {
		none(w)
		return
	}
	tbl := newTable("ID", "", "CREATED", "CONTENT")
	for _, t := range items {
		mark := ""
		if t.Pinned {
			mark = yellow("*")
		}
		tbl.AddRow(faint(t.ID), mark, t.CreatedAt.Local().Format("2006-01-02 15:04"), t.Content)
	}
	printTable(w, tbl)
}
