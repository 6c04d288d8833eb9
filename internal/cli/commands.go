// Package cli implements the hq command line client.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rpggio/hq/internal/app"
	"github.com/rpggio/hq/internal/config"
	"github.com/rpggio/hq/internal/logging"
	"github.com/spf13/cobra"
)

// Build describes the binary for the version command.
type Build struct {
	Version string
	Commit  string
	Date    string
}

// Opener builds a client. The default reads config from the environment.
type Opener func(ctx context.Context, errOut io.Writer) (*app.App, error)

type root struct {
	build  Build
	open   Opener
	json   bool
	config string
}

// New creates the hq root command. A nil open uses the environment config.
func New(build Build, open Opener) *cobra.Command {
	r := &root{build: build, open: open}
	if r.open == nil {
		r.open = r.openFromConfig
	}

	cmd := &cobra.Command{
		Use:           "hq",
		Short:         "Thoughts, projects and budget from the command line.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().BoolVar(&r.json, "json", false, "Output as JSON.")
	cmd.PersistentFlags().StringVar(&r.config, "config", "", "Path to a YAML config file (overrides HQ_CONFIG_PATH).")

	r.addThought(cmd)
	r.addProject(cmd)
	r.addBudget(cmd)
	r.addActivity(cmd)
	r.addMCP(cmd)
	r.addVersion(cmd)
	return cmd
}

func (r *root) openFromConfig(ctx context.Context, errOut io.Writer) (*app.App, error) {
	getenv := os.Getenv
	if r.config != "" {
		getenv = func(k string) string {
			if k == "HQ_CONFIG_PATH" {
				return r.config
			}
			return os.Getenv(k)
		}
	}
	cfg, err := config.LoadEnv(getenv)
	if err != nil {
		return nil, err
	}
	// Logs go to stderr so stdout stays clean for output and MCP stdio.
	logger, _, err := logging.New(cfg.Log.Level, "", errOut)
	if err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg, logger, app.Options{})
}

// run opens and loads the client, then calls fn. Load failures are reported
// but do not stop fn: stores stay usable with what they have.
func (r *root) run(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	return r.runContext(commandContext(cmd), cmd, fn)
}

func (r *root) runContext(ctx context.Context, cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	a, err := r.open(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Load(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	return fn(ctx, a)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// emit prints v as JSON with --json, otherwise calls pretty.
func (r *root) emit(cmd *cobra.Command, v any, pretty func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if r.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	pretty(w)
	return nil
}

var errNotFound = errors.New("not found")
