package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/hq/internal/domain/activity"
	"github.com/rpggio/hq/internal/domain/budget"
	"github.com/rpggio/hq/internal/domain/project"
	"github.com/rpggio/hq/internal/domain/thought"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	errInvalidArgument = errors.New("invalid argument")
	errUnknownID       = errors.New("not found")
)

func registerTools(server *sdkmcp.Server, svc Services, now func() time.Time) {
	if svc.Thoughts != nil {
		registerThoughtTools(server, svc.Thoughts, now)
	}
	if svc.Projects != nil {
		registerProjectTools(server, svc.Projects)
	}
	if svc.Budget != nil {
		registerBudgetTools(server, svc.Budget, now)
	}
	if svc.Activity != nil {
		registerActivityTools(server, svc.Activity)
	}
}

// Thoughts

type listThoughtsArgs struct {
	Window string `json:"window,omitempty" jsonschema:"all, today or week (default all)"`
	Tag    string `json:"tag,omitempty" jsonschema:"only thoughts carrying this tag, without the #"`
}

type addThoughtArgs struct {
	Content string `json:"content" jsonschema:"thought text; #words become tags"`
}

type thoughtIDArgs struct {
	ID string `json:"id" jsonschema:"thought id"`
}

func registerThoughtTools(server *sdkmcp.Server, store ThoughtStore, now func() time.Time) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_thoughts",
		Description: "List thoughts, pinned first then newest first, optionally filtered by age window and tag",
	}, func(_ context.Context, _ *sdkmcp.CallToolRequest, args listThoughtsArgs) (*sdkmcp.CallToolResult, any, error) {
		window := thought.Window(strings.ToLower(strings.TrimSpace(args.Window)))
		switch window {
		case "":
			window = thought.WindowAll
		case thought.WindowAll, thought.WindowToday, thought.WindowWeek:
		default:
			return errorResult(fmt.Errorf("%w: window %q", errInvalidArgument, args.Window))
		}
		return jsonResult(store.Filter(window, strings.TrimPrefix(args.Tag, "#"), now()))
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "add_thought",
		Description: "Capture a thought; #hashtags in the content are stored as tags",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, args addThoughtArgs) (*sdkmcp.CallToolResult, any, error) {
		t, err := store.Add(ctx, args.Content)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(t)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "toggle_pin",
		Description: "Pin or unpin a thought",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, args thoughtIDArgs) (*sdkmcp.CallToolResult, any, error) {
		current, ok := findThought(store.List(), args.ID)
		if !ok {
			return errorResult(fmt.Errorf("%w: thought %q", errUnknownID, args.ID))
		}
		if err := store.TogglePin(ctx, args.ID, current.Pinned); err != nil {
			return errorResult(err)
		}
		return jsonResult(map[string]any{"id": args.ID, "pinned": !current.Pinned})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "delete_thought",
		Description: "Delete a thought",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, args thoughtIDArgs) (*sdkmcp.CallToolResult, any, error) {
		if err := store.Remove(ctx, args.ID); err != nil {
			return errorResult(err)
		}
		return jsonResult(map[string]any{"id": args.ID, "deleted": true})
	})
}

func findThought(list []*thought.Thought, id string) (*thought.Thought, bool) {
	for _, t := range list {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// Projects

type createProjectArgs struct {
	Name        string `json:"name" jsonschema:"project name"`
	Description string `json:"description,omitempty" jsonschema:"project description"`
	Deadline    string `json:"deadline,omitempty" jsonschema:"deadline as YYYY-MM-DD or RFC3339"`
	Color       string `json:"color,omitempty" jsonschema:"hex color such as #6366f1"`
}

type addStageArgs struct {
	ProjectID string `json:"project_id" jsonschema:"project id"`
	Name      string `json:"name" jsonschema:"stage name"`
}

type addTaskArgs struct {
	ProjectID string `json:"project_id" jsonschema:"project id"`
	Title     string `json:"title" jsonschema:"task title"`
	StageID   string `json:"stage_id,omitempty" jsonschema:"stage id; omit for a free task"`
	Deadline  string `json:"deadline,omitempty" jsonschema:"deadline as YYYY-MM-DD or RFC3339"`
}

type toggleTaskArgs struct {
	ProjectID string `json:"project_id" jsonschema:"project id"`
	TaskID    string `json:"task_id" jsonschema:"task id"`
}

type updateStageArgs struct {
	ProjectID string `json:"project_id" jsonschema:"project id"`
	StageID   string `json:"stage_id" jsonschema:"stage id"`
	Name      string `json:"name,omitempty" jsonschema:"new stage name"`
	Status    string `json:"status,omitempty" jsonschema:"todo, in_progress or done"`
}

type addNoteArgs struct {
	ProjectID string `json:"project_id" jsonschema:"project id"`
	Content   string `json:"content" jsonschema:"note text"`
}

type addLinkArgs struct {
	ProjectID string `json:"project_id" jsonschema:"project id"`
	URL       string `json:"url" jsonschema:"link target"`
	Title     string `json:"title,omitempty" jsonschema:"link title (default the url)"`
}

type childIDArgs struct {
	ProjectID string `json:"project_id" jsonschema:"project id"`
	ID        string `json:"id" jsonschema:"id of the stage, task, note or link"`
}

type projectIDArgs struct {
	ProjectID string `json:"project_id" jsonschema:"project id"`
}

type projectSummary struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Status   project.Status `json:"status"`
	Progress int            `json:"progress"`
	Stages   int            `json:"stages"`
	Tasks    int            `json:"tasks"`
	Deadline *time.Time     `json:"deadline,omitempty"`
}

type stageProgress struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Status   project.StageStatus `json:"status"`
	Progress int                 `json:"progress"`
	Tasks    int                 `json:"tasks"`
}

type progressReport struct {
	ProjectID string          `json:"project_id"`
	Progress  int             `json:"progress"`
	Stages    []stageProgress `json:"stages"`
	FreeTasks int             `json:"free_tasks"`
}

func registerProjectTools(server *sdkmcp.Server, store ProjectStore) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_projects",
		Description: "List projects with their progress, active projects first",
	}, func(_ context.Context, _ *sdkmcp.CallToolRequest, _ struct{}) (*sdkmcp.CallToolResult, any, error) {
		active, other := project.Active(store.List())
		out := make([]projectSummary, 0, len(active)+len(other))
		for _, p := range append(active, other...) {
			out = append(out, projectSummary{
				ID:       p.ID,
				Name:     p.Name,
				Status:   p.Status,
				Progress: project.CalcProgress(p),
				Stages:   len(p.Stages),
				Tasks:    len(p.Tasks),
				Deadline: p.Deadline,
			})
		}
		return jsonResult(out)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_project",
		Description: "Create an empty active project",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, args createProjectArgs) (*sdkmcp.CallToolResult, any, error) {
		deadline, err := parseDate(args.Deadline, time.Local)
		if err != nil {
			return errorResult(err)
		}
		p, err := store.AddProject(ctx, project.CreateRequest{
			Name:        args.Name,
			Description: args.Description,
			Deadline:    deadline,
			Color:       args.Color,
		})
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(p)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "add_stage",
		Description: "Append a stage to a project",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, args addStageArgs) (*sdkmcp.CallToolResult, any, error) {
		stage, err := store.AddStage(ctx, args.ProjectID, args.Name)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(stage)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "add_task",
		Description: "Add a task to a project, inside a stage or free",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, args addTaskArgs) (*sdkmcp.CallToolResult, any, error) {
		deadline, err := parseDate(args.Deadline, time.Local)
		if err != nil {
			return errorResult(err)
		}
		var stageID *string
		if s := strings.TrimSpace(args.StageID); s != "" {
			stageID = &s
		}
		task, err := store.AddTask(ctx, args.ProjectID, stageID, args.Title, deadline)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(task)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "toggle_task",
		Description: "Flip a task between done and not done",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, args toggleTaskArgs) (*sdkmcp.CallToolResult, any, error) {
		p, err := store.Get(args.ProjectID)
		if err != nil {
			return errorResult(err)
		}
		var task *project.Task
		for _, t := range p.Tasks {
			if t.ID == args.TaskID {
				task = t
				break
			}
		}
		if task == nil {
			return errorResult(fmt.Errorf("%w: task %q", errUnknownID, args.TaskID))
		}
		if err := store.ToggleTask(ctx, args.ProjectID, args.TaskID, task.Done); err != nil {
			return errorResult(err)
		}
		updated, err := store.Get(args.ProjectID)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(map[string]any{
			"task_id":  args.TaskID,
			"done":     !task.Done,
			"progress": project.CalcProgress(updated),
		})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "update_stage",
		Description: "Rename a stage or change its status",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, args updateStageArgs) (*sdkmcp.CallToolResult, any, error) {
		p, err := store.Get(args.ProjectID)
		if err != nil {
			return errorResult(err)
		}
		if !hasChild(p.Stages, args.StageID) {
			return errorResult(fmt.Errorf("%w: stage %q", errUnknownID, args.StageID))
		}
		var req project.StageUpdate
		if args.Name != "" {
			req.Name = &args.Name
		}
		if args.Status != "" {
			status := project.StageStatus(args.Status)
			req.Status = &status
		}
		if err := store.UpdateStage(ctx, p.ID, args.StageID, req); err != nil {
			return errorResult(err)
		}
		updated, err := store.Get(p.ID)
		if err != nil {
			return errorResult(err)
		}
		for _, st := range updated.Stages {
			if st.ID == args.StageID {
				return jsonResult(st)
			}
		}
		return errorResult(fmt.Errorf("%w: stage %q", errUnknownID, args.StageID))
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "add_note",
		Description: "Add a note to a project",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, args addNoteArgs) (*sdkmcp.CallToolResult, any, error) {
		note, err := store.AddNote(ctx, args.ProjectID, args.Content)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(note)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "add_link",
		Description: "Attach a link to a project",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, args addLinkArgs) (*sdkmcp.CallToolResult, any, error) {
		title := args.Title
		if strings.TrimSpace(title) == "" {
			title = args.URL
		}
		link, err := store.AddLink(ctx, args.ProjectID, title, args.URL)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(link)
	})

	addRemoveTool(server, store, "delete_stage", "Delete a stage; its tasks become free tasks",
		func(p *project.Project, id string) bool { return hasChild(p.Stages, id) }, store.DeleteStage)
	addRemoveTool(server, store, "delete_task", "Delete a task from a project",
		func(p *project.Project, id string) bool { return hasChild(p.Tasks, id) }, store.DeleteTask)
	addRemoveTool(server, store, "delete_note", "Delete a note from a project",
		func(p *project.Project, id string) bool { return hasChild(p.Notes, id) }, store.DeleteNote)
	addRemoveTool(server, store, "delete_link", "Delete a link from a project",
		func(p *project.Project, id string) bool { return hasChild(p.Links, id) }, store.DeleteLink)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "project_progress",
		Description: "Show overall and per-stage progress of a project",
	}, func(_ context.Context, _ *sdkmcp.CallToolRequest, args projectIDArgs) (*sdkmcp.CallToolResult, any, error) {
		p, err := store.Get(args.ProjectID)
		if err != nil {
			return errorResult(err)
		}
		report := progressReport{
			ProjectID: p.ID,
			Progress:  project.CalcProgress(p),
			Stages:    make([]stageProgress, 0, len(p.Stages)),
			FreeTasks: len(project.FreeTasks(p)),
		}
		for _, s := range p.Stages {
			report.Stages = append(report.Stages, stageProgress{
				ID:       s.ID,
				Name:     s.Name,
				Status:   s.Status,
				Progress: project.StageProgress(p, s.ID),
				Tasks:    len(project.StageTasks(p, s.ID)),
			})
		}
		return jsonResult(report)
	})
}

func addRemoveTool(server *sdkmcp.Server, store ProjectStore, name, description string, has func(*project.Project, string) bool, del func(context.Context, string, string) error) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        name,
		Description: description,
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, args childIDArgs) (*sdkmcp.CallToolResult, any, error) {
		p, err := store.Get(args.ProjectID)
		if err != nil {
			return errorResult(err)
		}
		if !has(p, args.ID) {
			return errorResult(fmt.Errorf("%w: %q", errUnknownID, args.ID))
		}
		if err := del(ctx, p.ID, args.ID); err != nil {
			return errorResult(err)
		}
		return jsonResult(map[string]any{"id": args.ID, "deleted": true})
	})
}

func hasChild[T interface{ GetID() string }](items []T, id string) bool {
	for _, it := range items {
		if it.GetID() == id {
			return true
		}
	}
	return false
}

// Budget

type addTransactionArgs struct {
	Amount   string `json:"amount" jsonschema:"positive decimal amount such as 1000 or 12.50"`
	Type     string `json:"type" jsonschema:"income or expense"`
	Category string `json:"category" jsonschema:"category id from the hq://budget/categories resource"`
	Comment  string `json:"comment,omitempty" jsonschema:"optional comment"`
	Date     string `json:"date,omitempty" jsonschema:"date as YYYY-MM-DD or RFC3339 (default now)"`
}

type monthStatsArgs struct {
	Year  int `json:"year,omitempty" jsonschema:"calendar year (default current)"`
	Month int `json:"month,omitempty" jsonschema:"month 1-12 (default current)"`
	Top   int `json:"top,omitempty" jsonschema:"size of the top expense list (default 5)"`
}

type setLimitArgs struct {
	Category string `json:"category" jsonschema:"expense category id"`
	Amount   string `json:"amount" jsonschema:"positive monthly limit"`
}

func registerBudgetTools(server *sdkmcp.Server, store BudgetStore, now func() time.Time) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "add_transaction",
		Description: "Record an income or expense",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, args addTransactionArgs) (*sdkmcp.CallToolResult, any, error) {
		amount, err := budget.ParseAmount(args.Amount)
		if err != nil {
			return errorResult(err)
		}
		date, err := parseDate(args.Date, store.Location())
		if err != nil {
			return errorResult(err)
		}
		tx, err := store.AddTransaction(ctx, budget.Input{
			Amount:   amount,
			Type:     budget.Type(strings.ToLower(args.Type)),
			Category: args.Category,
			Comment:  args.Comment,
			Date:     date,
		})
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(tx)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "month_stats",
		Description: "Income, expense, balance, category spend, limits and top expenses for a month",
	}, func(_ context.Context, _ *sdkmcp.CallToolRequest, args monthStatsArgs) (*sdkmcp.CallToolResult, any, error) {
		current := now().In(store.Location())
		year, month := args.Year, args.Month
		if year == 0 {
			year = current.Year()
		}
		if month == 0 {
			month = int(current.Month())
		}
		if month < 1 || month > 12 {
			return errorResult(fmt.Errorf("%w: month %d", errInvalidArgument, month))
		}
		return jsonResult(store.Report(year, month-1, args.Top))
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "set_limit",
		Description: "Set the monthly limit of an expense category",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, args setLimitArgs) (*sdkmcp.CallToolResult, any, error) {
		amount, err := budget.ParseAmount(args.Amount)
		if err != nil {
			return errorResult(err)
		}
		if err := store.SetLimit(ctx, args.Category, amount); err != nil {
			return errorResult(err)
		}
		return jsonResult(map[string]any{"category": args.Category, "amount": amount})
	})
}

// Activity

type recentActivityArgs struct {
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum entries (default 20)"`
	FailedOnly bool   `json:"failed_only,omitempty" jsonschema:"only writes that failed remotely"`
	Collection string `json:"collection,omitempty" jsonschema:"only this collection"`
}

func registerActivityTools(server *sdkmcp.Server, log ActivityLog) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "recent_activity",
		Description: "Recent remote writes, newest first; failed writes mean the local view diverged",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, args recentActivityArgs) (*sdkmcp.CallToolResult, any, error) {
		limit := args.Limit
		if limit <= 0 {
			limit = 20
		}
		entries, err := log.List(ctx, activity.ListOptions{
			Collection: args.Collection,
			FailedOnly: args.FailedOnly,
			Limit:      limit,
		})
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(entries)
	})
}

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// parseDate reads an optional date. Bare dates are midnight in loc.
func parseDate(s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: date %q", errInvalidArgument, s)
}

func jsonResult(v any) (*sdkmcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func errorResult(err error) (*sdkmcp.CallToolResult, any, error) {
	apiErr := MapError(err)
	data, _ := json.Marshal(apiErr)
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil, nil
}
