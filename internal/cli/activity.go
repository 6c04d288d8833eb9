package cli

import (
	"context"
	"io"

	"github.com/rpggio/hq/internal/app"
	"github.com/rpggio/hq/internal/domain/activity"
	"github.com/spf13/cobra"
)

func (r *root) addActivity(parent *cobra.Command) {
	var opts activity.ListOptions
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent remote writes and their outcome.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				entries, err := a.Journal.List(ctx, opts)
				if err != nil {
					return err
				}
				return r.emit(cmd, entries, func(w io.Writer) {
					printActivity(w, entries)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&opts.FailedOnly, "failed", false, "Only failed writes.")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum entries.")
	cmd.Flags().StringVar(&opts.Collection, "collection", "", "Only writes to this collection.")
	parent.AddCommand(cmd)
}

func printActivity(w io.Writer, entries []activity.Entry) {
	if len(entries) == 0 {
		none(w)
		return
	}
	tbl := newTable("WHEN", "OP", "COLLECTION", "ID", "RESULT")
	for _, e := range entries {
		result := green("ok")
		if e.Failed() {
			result = red(e.Error)
		}
		tbl.AddRow(e.CreatedAt.Local().Format("2006-01-02 15:04:05"), string(e.Op), e.Collection, faint(e.RecordID), result)
	}
	printTable(w, tbl)
}
