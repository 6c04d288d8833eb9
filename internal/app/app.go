// Package app wires the configured remote store, the owner identity and the
// three stores into one client.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mitchellh/go-homedir"
	"github.com/rpggio/hq/internal/config"
	"github.com/rpggio/hq/internal/domain/activity"
	"github.com/rpggio/hq/internal/domain/budget"
	"github.com/rpggio/hq/internal/domain/project"
	"github.com/rpggio/hq/internal/domain/thought"
	"github.com/rpggio/hq/internal/identity"
	"github.com/rpggio/hq/internal/mcp"
	"github.com/rpggio/hq/internal/postgres"
	"github.com/rpggio/hq/internal/remote"
	"github.com/rpggio/hq/internal/rpcstore"
	"github.com/rpggio/hq/internal/sqlite"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// journalFile holds the write journal when the backend is not sqlite.
const journalFile = "journal.db"

// App is a loaded client for one owner.
type App struct {
	OwnerID  string
	Remote   remote.Store
	Journal  activity.Journal
	Thoughts *thought.Store
	Projects *project.Store
	Budget   *budget.Store

	logger  *slog.Logger
	closers []func() error
}

// Options override parts of the wiring. Zero values use cfg.
type Options struct {
	// OwnerID skips identity resolution.
	OwnerID string
	// Remote replaces the configured backend.
	Remote remote.Store
	// Journal replaces the persisted journal.
	Journal activity.Journal
}

// Open builds an App from cfg. Stores are empty until Load.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &App{logger: logger}

	ownerID := opts.OwnerID
	if ownerID == "" {
		resolver, err := identity.New(cfg.DataDir, logger)
		if err != nil {
			return nil, err
		}
		if ownerID, err = resolver.OwnerID(); err != nil {
			return nil, fmt.Errorf("resolving owner: %w", err)
		}
	}
	a.OwnerID = ownerID

	a.Remote, a.Journal = opts.Remote, opts.Journal
	if a.Remote == nil {
		if err := a.openBackend(ctx, cfg); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	if a.Journal == nil {
		journal, err := a.openJournal(cfg)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Journal = journal
	}

	loc, err := cfg.Location()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Thoughts = thought.NewStore(a.Remote, ownerID, a.Journal, logger)
	a.Projects = project.NewStore(a.Remote, ownerID, a.Journal, logger)
	a.Budget = budget.NewStore(a.Remote, ownerID, a.Journal, logger).WithLocation(loc)

	logger.Debug("client ready", "backend", cfg.Backend, "owner_id", ownerID)
	return a, nil
}

func (a *App) openBackend(ctx context.Context, cfg config.Config) error {
	switch strings.ToLower(cfg.Backend) {
	case config.BackendSQLite:
		db, err := OpenSQLite(cfg.DB.Path)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)
		a.Remote = sqlite.NewStore(db)
		if a.Journal == nil {
			a.Journal = sqlite.NewActivityLog(db, 0, a.logger)
		}
	case config.BackendPostgres:
		store, err := postgres.Open(cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, store.Close)
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		a.Remote = store
	case config.BackendRPC:
		a.Remote = rpcstore.New(cfg.RPC.URL, cfg.RPC.Token)
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	return nil
}

func (a *App) openJournal(cfg config.Config) (activity.Journal, error) {
	dir, err := homedir.Expand(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("expanding data dir: %w", err)
	}
	db, err := OpenSQLite(filepath.Join(dir, journalFile))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	return sqlite.NewActivityLog(db, 0, a.logger), nil
}

// OpenSQLite opens path, creating its directory and the schema.
func OpenSQLite(path string) (*sqlite.DB, error) {
	if err := ensureDBDir(path); err != nil {
		return nil, fmt.Errorf("failed to prepare database path: %w", err)
	}
	db, err := sqlite.New(path)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load fetches all three stores concurrently. A failing store keeps its
// previous contents and does not affect the others.
func (a *App) Load(ctx context.Context) error {
	loaders := []func(context.Context) error{a.Thoughts.Load, a.Projects.Load, a.Budget.Load}
	errs := make([]error, len(loaders))

	var wg sync.WaitGroup
	for i, load := range loaders {
		wg.Add(1)
		go func(i int, load func(context.Context) error) {
			defer wg.Done()
			errs[i] = load(ctx)
		}(i, load)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// MCPServer exposes the stores as MCP tools.
func (a *App) MCPServer(version string) *sdkmcp.Server {
	return mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Thoughts: a.Thoughts,
			Projects: a.Projects,
			Budget:   a.Budget,
			Activity: a.Journal,
		},
		OwnerID: a.OwnerID,
		Version: version,
		Logger:  a.logger,
	})
}

// Close releases every backend the App opened, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
