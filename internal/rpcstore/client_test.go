package rpcstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/hq/internal/remote"
	"github.com/rpggio/hq/internal/rpcstore"
	"github.com/rpggio/hq/internal/testserver"
	"github.com/rpggio/hq/internal/transport"
	"github.com/stretchr/testify/require"
)

func TestClient_RoundTrip(t *testing.T) {
	ts := testserver.New(t, "token", "owner1")
	client := rpcstore.New(ts.URL(), ts.Token)
	ctx := context.Background()

	row, err := client.Insert(ctx, remote.Thoughts, remote.Row{"content": "hi #go", "tags": []string{"go"}})
	require.NoError(t, err)
	require.Equal(t, "owner1", row["owner_id"])
	require.Equal(t, []any{"go"}, row["tags"])
	require.IsType(t, time.Time{}, row["created_at"])

	id := row["id"].(string)
	require.NoError(t, client.Update(ctx, remote.Thoughts, id, remote.Row{"pinned": true}))

	rows, err := client.Select(ctx, remote.Thoughts, remote.Query{}.OrderBy("created_at", true))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, true, rows[0]["pinned"])

	require.NoError(t, client.Delete(ctx, remote.Thoughts, id))
	require.ErrorIs(t, client.Delete(ctx, remote.Thoughts, id), remote.ErrNotFound)
}

func TestClient_ExpandRestoresChildren(t *testing.T) {
	ts := testserver.New(t, "token", "owner1")
	client := rpcstore.New(ts.URL(), ts.Token)
	ctx := context.Background()

	p, err := client.Insert(ctx, remote.Projects, remote.Row{"name": "P", "status": "active", "color": "#6366f1"})
	require.NoError(t, err)
	_, err = client.Insert(ctx, remote.ProjectStages, remote.Row{"project_id": p["id"], "name": "S", "status": "todo", "order": 0})
	require.NoError(t, err)
	_, err = client.Insert(ctx, remote.ProjectTasks, remote.Row{"project_id": p["id"], "title": "T", "done": false})
	require.NoError(t, err)

	rows, err := client.Select(ctx, remote.Projects, remote.Query{}.
		With("stages", remote.ProjectStages, "project_id").
		With("tasks", remote.ProjectTasks, "project_id").
		With("notes", remote.ProjectNotes, "project_id"))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	stages := rows[0]["stages"].([]remote.Row)
	require.Len(t, stages, 1)
	require.Equal(t, int64(0), stages[0]["order"])

	tasks := rows[0]["tasks"].([]remote.Row)
	require.Len(t, tasks, 1)
	require.Equal(t, false, tasks[0]["done"])

	require.Empty(t, rows[0]["notes"])
}

func TestClient_UpsertAndDecimal(t *testing.T) {
	ts := testserver.New(t, "token", "owner1")
	client := rpcstore.New(ts.URL(), ts.Token)
	ctx := context.Background()
	key := []string{"owner_id", "category"}

	first, err := client.Upsert(ctx, remote.BudgetLimits, remote.Row{"category": "food", "amount": "5000.50"}, key)
	require.NoError(t, err)
	second, err := client.Upsert(ctx, remote.BudgetLimits, remote.Row{"category": "food", "amount": "6000"}, key)
	require.NoError(t, err)
	require.Equal(t, first["id"], second["id"])
	require.Equal(t, "6000", second["amount"])
	require.Equal(t, "5000.5", first["amount"])
}

func TestClient_ErrorsMapToSentinels(t *testing.T) {
	ts := testserver.New(t, "token", "owner1")
	client := rpcstore.New(ts.URL(), ts.Token)
	ctx := context.Background()

	_, err := client.Select(ctx, remote.Thoughts, remote.Query{}.Where("nope", 1))
	require.ErrorIs(t, err, remote.ErrUnknownField)

	_, err = client.Insert(ctx, remote.ProjectNotes, remote.Row{"project_id": "missing", "content": "x"})
	require.ErrorIs(t, err, remote.ErrForeignKeyViolation)

	err = client.Update(ctx, remote.Thoughts, "missing", remote.Row{"pinned": true})
	require.ErrorIs(t, err, remote.ErrNotFound)
}

func TestClient_Unauthorized(t *testing.T) {
	ts := testserver.New(t, "token", "owner1")
	client := rpcstore.New(ts.URL(), "wrong")

	_, err := client.Select(context.Background(), remote.Thoughts, remote.Query{})
	require.ErrorIs(t, err, transport.ErrUnauthorized)
}

func TestClient_NoURL(t *testing.T) {
	client := rpcstore.New("", "")
	_, err := client.Select(context.Background(), remote.Thoughts, remote.Query{})
	require.ErrorIs(t, err, rpcstore.ErrNoURL)
}
