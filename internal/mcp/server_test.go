package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rpggio/hq/internal/domain/activity"
	"github.com/rpggio/hq/internal/domain/budget"
	"github.com/rpggio/hq/internal/domain/project"
	"github.com/rpggio/hq/internal/domain/thought"
	"github.com/rpggio/hq/internal/sqlite"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.March, 20, 12, 0, 0, 0, time.UTC)

type testSession struct {
	session *sdkmcp.ClientSession
}

func newTestSession(t *testing.T) *testSession {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { _ = db.Close() })

	rs := sqlite.NewStore(db)
	journal := activity.NewService(0, nil)
	ledger := budget.NewStore(rs, "owner1", journal, nil).WithLocation(time.UTC)
	ledger.SetClock(func() time.Time { return fixedNow })

	server := NewServer(Config{
		Services: Services{
			Thoughts: thought.NewStore(rs, "owner1", journal, nil),
			Projects: project.NewStore(rs, "owner1", journal, nil),
			Budget:   ledger,
			Activity: journal,
		},
		OwnerID: "owner1",
		Now:     func() time.Time { return fixedNow },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return &testSession{session: session}
}

func (s *testSession) call(t *testing.T, name string, args map[string]any) (*sdkmcp.CallToolResult, string) {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	result, err := s.session.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err, "CallTool %s", name)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	return result, text.Text
}

func (s *testSession) callOK(t *testing.T, name string, args map[string]any, out any) {
	t.Helper()
	result, text := s.call(t, name, args)
	require.False(t, result.IsError, "tool %s failed: %s", name, text)
	if out != nil {
		require.NoError(t, json.Unmarshal([]byte(text), out))
	}
}

func (s *testSession) callErr(t *testing.T, name string, args map[string]any) APIError {
	t.Helper()
	result, text := s.call(t, name, args)
	require.True(t, result.IsError, "tool %s should fail", name)
	var apiErr APIError
	require.NoError(t, json.Unmarshal([]byte(text), &apiErr))
	return apiErr
}

func TestServer_ListsTools(t *testing.T) {
	s := newTestSession(t)
	res, err := s.session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{
		"list_thoughts", "add_thought", "toggle_pin", "delete_thought",
		"list_projects", "create_project", "add_stage", "add_task", "toggle_task", "project_progress",
		"update_stage", "delete_stage", "delete_task", "add_note", "delete_note", "add_link", "delete_link",
		"add_transaction", "month_stats", "set_limit", "recent_activity",
	}, names)
}

func TestServer_ThoughtTools(t *testing.T) {
	s := newTestSession(t)

	var created thought.Thought
	s.callOK(t, "add_thought", map[string]any{"content": "buy milk #errand #home"}, &created)
	require.Equal(t, []string{"errand", "home"}, created.Tags)

	var other thought.Thought
	s.callOK(t, "add_thought", map[string]any{"content": "call the bank"}, &other)

	var pinned map[string]any
	s.callOK(t, "toggle_pin", map[string]any{"id": created.ID}, &pinned)
	require.Equal(t, true, pinned["pinned"])

	var list []thought.Thought
	s.callOK(t, "list_thoughts", nil, &list)
	require.Len(t, list, 2)
	require.Equal(t, created.ID, list[0].ID)

	s.callOK(t, "list_thoughts", map[string]any{"tag": "#errand"}, &list)
	require.Len(t, list, 1)

	require.Equal(t, "EMPTY_CONTENT", s.callErr(t, "add_thought", map[string]any{"content": "  "}).Code)
	require.Equal(t, "NOT_FOUND", s.callErr(t, "toggle_pin", map[string]any{"id": "missing"}).Code)
	require.Equal(t, "INVALID_INPUT", s.callErr(t, "list_thoughts", map[string]any{"window": "year"}).Code)

	s.callOK(t, "delete_thought", map[string]any{"id": other.ID}, nil)
	s.callOK(t, "list_thoughts", nil, &list)
	require.Len(t, list, 1)
}

func TestServer_ProjectTools(t *testing.T) {
	s := newTestSession(t)

	var p project.Project
	s.callOK(t, "create_project", map[string]any{"name": "Launch", "deadline": "2024-06-01"}, &p)
	require.Equal(t, project.StatusActive, p.Status)

	var stage project.Stage
	s.callOK(t, "add_stage", map[string]any{"project_id": p.ID, "name": "Build"}, &stage)
	require.Equal(t, 0, stage.Order)

	var free, staged project.Task
	s.callOK(t, "add_task", map[string]any{"project_id": p.ID, "title": "X"}, &free)
	require.Nil(t, free.StageID)
	s.callOK(t, "add_task", map[string]any{"project_id": p.ID, "title": "Y", "stage_id": stage.ID}, &staged)

	var toggled map[string]any
	s.callOK(t, "toggle_task", map[string]any{"project_id": p.ID, "task_id": free.ID}, &toggled)
	require.Equal(t, true, toggled["done"])
	require.EqualValues(t, 50, toggled["progress"])

	var progress progressReport
	s.callOK(t, "project_progress", map[string]any{"project_id": p.ID}, &progress)
	require.Equal(t, 50, progress.Progress)
	require.Equal(t, 1, progress.FreeTasks)
	require.Len(t, progress.Stages, 1)
	require.Equal(t, 0, progress.Stages[0].Progress)

	var summaries []projectSummary
	s.callOK(t, "list_projects", nil, &summaries)
	require.Len(t, summaries, 1)
	require.Equal(t, 2, summaries[0].Tasks)

	require.Equal(t, "NOT_FOUND", s.callErr(t, "add_stage", map[string]any{"project_id": "nope", "name": "S"}).Code)
	require.Equal(t, "NOT_FOUND", s.callErr(t, "toggle_task", map[string]any{"project_id": p.ID, "task_id": "nope"}).Code)
}

func TestServer_ProjectChildTools(t *testing.T) {
	s := newTestSession(t)

	var p project.Project
	s.callOK(t, "create_project", map[string]any{"name": "Launch"}, &p)
	var stage project.Stage
	s.callOK(t, "add_stage", map[string]any{"project_id": p.ID, "name": "Build"}, &stage)
	var task project.Task
	s.callOK(t, "add_task", map[string]any{"project_id": p.ID, "title": "X", "stage_id": stage.ID}, &task)

	var updated project.Stage
	s.callOK(t, "update_stage", map[string]any{"project_id": p.ID, "stage_id": stage.ID, "status": "in_progress"}, &updated)
	require.Equal(t, project.StageInProgress, updated.Status)
	require.Equal(t, "Build", updated.Name)
	require.Equal(t, "INVALID_INPUT", s.callErr(t, "update_stage", map[string]any{"project_id": p.ID, "stage_id": stage.ID, "status": "later"}).Code)
	require.Equal(t, "NOT_FOUND", s.callErr(t, "update_stage", map[string]any{"project_id": p.ID, "stage_id": "nope", "name": "Z"}).Code)

	var note project.Note
	s.callOK(t, "add_note", map[string]any{"project_id": p.ID, "content": "ship it"}, &note)
	require.Equal(t, "ship it", note.Content)
	var link project.Link
	s.callOK(t, "add_link", map[string]any{"project_id": p.ID, "url": "https://example.com"}, &link)
	require.Equal(t, "https://example.com", link.Title)

	var deleted map[string]any
	s.callOK(t, "delete_note", map[string]any{"project_id": p.ID, "id": note.ID}, &deleted)
	require.Equal(t, true, deleted["deleted"])
	s.callOK(t, "delete_link", map[string]any{"project_id": p.ID, "id": link.ID}, nil)
	s.callOK(t, "delete_stage", map[string]any{"project_id": p.ID, "id": stage.ID}, nil)

	var progress progressReport
	s.callOK(t, "project_progress", map[string]any{"project_id": p.ID}, &progress)
	require.Empty(t, progress.Stages)
	require.Equal(t, 1, progress.FreeTasks)

	s.callOK(t, "delete_task", map[string]any{"project_id": p.ID, "id": task.ID}, nil)
	s.callOK(t, "project_progress", map[string]any{"project_id": p.ID}, &progress)
	require.Equal(t, 0, progress.FreeTasks)

	require.Equal(t, "NOT_FOUND", s.callErr(t, "delete_task", map[string]any{"project_id": p.ID, "id": task.ID}).Code)
	require.Equal(t, "NOT_FOUND", s.callErr(t, "delete_note", map[string]any{"project_id": "nope", "id": note.ID}).Code)
}

func TestServer_BudgetTools(t *testing.T) {
	s := newTestSession(t)

	s.callOK(t, "set_limit", map[string]any{"category": "food", "amount": "5000"}, nil)
	s.callOK(t, "add_transaction", map[string]any{"amount": "6000", "type": "expense", "category": "food"}, nil)
	s.callOK(t, "add_transaction", map[string]any{"amount": "10000", "type": "income", "category": "salary", "date": "2024-03-01"}, nil)

	var report budget.Report
	s.callOK(t, "month_stats", map[string]any{"year": 2024, "month": 3}, &report)
	require.Equal(t, "6000", report.Stats.Expense.String())
	require.Equal(t, "4000", report.Stats.Balance.String())
	require.Equal(t, 60.0, report.BudgetUsed)
	require.Len(t, report.Limits, 1)
	require.True(t, report.Limits[0].Over)

	var defaulted budget.Report
	s.callOK(t, "month_stats", nil, &defaulted)
	require.Equal(t, 2, defaulted.Month)

	require.Equal(t, "INVALID_AMOUNT", s.callErr(t, "add_transaction", map[string]any{"amount": "lots", "type": "expense", "category": "food"}).Code)
	require.Equal(t, "INVALID_INPUT", s.callErr(t, "add_transaction", map[string]any{"amount": "1", "type": "expense", "category": "salary"}).Code)
	require.Equal(t, "INVALID_LIMIT", s.callErr(t, "set_limit", map[string]any{"category": "food", "amount": "0"}).Code)
	require.Equal(t, "INVALID_INPUT", s.callErr(t, "month_stats", map[string]any{"month": 13}).Code)
}

func TestServer_RecentActivity(t *testing.T) {
	s := newTestSession(t)
	s.callOK(t, "add_thought", map[string]any{"content": "one"}, nil)
	s.callOK(t, "add_thought", map[string]any{"content": "two"}, nil)

	var entries []activity.Entry
	s.callOK(t, "recent_activity", map[string]any{"limit": 1}, &entries)
	require.Len(t, entries, 1)

	s.callOK(t, "recent_activity", map[string]any{"failed_only": true}, &entries)
	require.Empty(t, entries)
}

func TestServer_CategoriesResource(t *testing.T) {
	s := newTestSession(t)
	res, err := s.session.ReadResource(context.Background(), &sdkmcp.ReadResourceParams{URI: categoriesURI})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	require.Contains(t, res.Contents[0].Text, `"food"`)
	require.Contains(t, res.Contents[0].Text, `"other_inc"`)
}

func TestMapError(t *testing.T) {
	require.Nil(t, MapError(nil))
	require.Equal(t, "NOT_FOUND", MapError(project.ErrProjectNotFound).Code)
	require.Equal(t, "INVALID_AMOUNT", MapError(budget.ErrInvalidAmount).Code)
	require.Equal(t, "REMOTE_ERROR", MapError(context.DeadlineExceeded).Code)
}
