package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/rpggio/hq/internal/domain/activity"
	"github.com/rpggio/hq/internal/domain/budget"
	"github.com/rpggio/hq/internal/domain/project"
	"github.com/rpggio/hq/internal/domain/thought"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"
)

// ThoughtStore defines thought operations needed by MCP.
type ThoughtStore interface {
	List() []*thought.Thought
	Filter(window thought.Window, tag string, now time.Time) []*thought.Thought
	Add(ctx context.Context, content string) (*thought.Thought, error)
	TogglePin(ctx context.Context, id string, currentPinned bool) error
	Remove(ctx context.Context, id string) error
}

// ProjectStore defines project operations needed by MCP.
type ProjectStore interface {
	List() []*project.Project
	Get(id string) (*project.Project, error)
	AddProject(ctx context.Context, req project.CreateRequest) (*project.Project, error)
	AddStage(ctx context.Context, projectID, name string) (*project.Stage, error)
	AddTask(ctx context.Context, projectID string, stageID *string, title string, deadline *time.Time) (*project.Task, error)
	ToggleTask(ctx context.Context, projectID, taskID string, currentDone bool) error
	UpdateStage(ctx context.Context, projectID, stageID string, req project.StageUpdate) error
	DeleteStage(ctx context.Context, projectID, stageID string) error
	DeleteTask(ctx context.Context, projectID, taskID string) error
	AddNote(ctx context.Context, projectID, content string) (*project.Note, error)
	DeleteNote(ctx context.Context, projectID, noteID string) error
	AddLink(ctx context.Context, projectID, title, url string) (*project.Link, error)
	DeleteLink(ctx context.Context, projectID, linkID string) error
}

// BudgetStore defines ledger operations needed by MCP.
type BudgetStore interface {
	AddTransaction(ctx context.Context, in budget.Input) (*budget.Transaction, error)
	SetLimit(ctx context.Context, category string, amount decimal.Decimal) error
	Report(year, month0, topN int) budget.Report
	Location() *time.Location
}

// ActivityLog defines journal operations needed by MCP.
type ActivityLog interface {
	List(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error)
}

// Services contains all stores needed by MCP.
type Services struct {
	Thoughts ThoughtStore
	Projects ProjectStore
	Budget   BudgetStore
	Activity ActivityLog
}

// Config contains server configuration.
type Config struct {
	Services Services
	OwnerID  string
	Version  string
	Logger   *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "hq",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	server.AddReceivingMiddleware(ownerMiddleware(cfg.OwnerID))
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	registerTools(server, cfg.Services, now)

	return server
}
