package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/hq/internal/remote"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(NewTestDB(t))
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return store
}

func TestStore_InsertReturnsCanonicalRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	row, err := store.Insert(ctx, remote.Thoughts, remote.Row{
		"owner_id": "owner1",
		"content":  "buy milk #errand",
		"tags":     []string{"errand"},
		"pinned":   false,
	})
	require.NoError(t, err)
	require.NotEmpty(t, row["id"])
	require.Equal(t, "owner1", row["owner_id"])
	require.Equal(t, []any{"errand"}, row["tags"])
	require.Equal(t, false, row["pinned"])
	require.IsType(t, time.Time{}, row["created_at"])
}

func TestStore_SelectFiltersAndOrders(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		_, err := store.Insert(ctx, remote.Thoughts, remote.Row{"owner_id": "owner1", "content": content, "tags": []string{}})
		require.NoError(t, err)
	}
	_, err := store.Insert(ctx, remote.Thoughts, remote.Row{"owner_id": "owner2", "content": "other", "tags": []string{}})
	require.NoError(t, err)

	rows, err := store.Select(ctx, remote.Thoughts, remote.Query{}.
		Where("owner_id", "owner1").
		OrderBy("created_at", true))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "third", rows[0]["content"])
	require.Equal(t, "first", rows[2]["content"])
}

func TestStore_SelectRejectsUnknownField(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Select(context.Background(), remote.Thoughts, remote.Query{}.Where("1=1; --", "x"))
	require.ErrorIs(t, err, remote.ErrUnknownField)

	_, err = store.Select(context.Background(), "users", remote.Query{})
	require.ErrorIs(t, err, remote.ErrUnknownCollection)
}

func TestStore_UpdateAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	row, err := store.Insert(ctx, remote.Thoughts, remote.Row{"owner_id": "owner1", "content": "x", "tags": []string{}})
	require.NoError(t, err)
	id := row["id"].(string)

	require.NoError(t, store.Update(ctx, remote.Thoughts, id, remote.Row{"pinned": true}))

	rows, err := store.Select(ctx, remote.Thoughts, remote.Query{}.Where("pinned", true))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.ErrorIs(t, store.Update(ctx, remote.Thoughts, "missing", remote.Row{"pinned": true}), remote.ErrNotFound)

	require.NoError(t, store.Delete(ctx, remote.Thoughts, id))
	require.ErrorIs(t, store.Delete(ctx, remote.Thoughts, id), remote.ErrNotFound)
}

func TestStore_ExpandChildren(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p1, err := store.Insert(ctx, remote.Projects, remote.Row{"owner_id": "owner1", "name": "A", "status": "active"})
	require.NoError(t, err)
	p2, err := store.Insert(ctx, remote.Projects, remote.Row{"owner_id": "owner1", "name": "B", "status": "active"})
	require.NoError(t, err)

	_, err = store.Insert(ctx, remote.ProjectTasks, remote.Row{"project_id": p1["id"], "title": "t1", "done": false})
	require.NoError(t, err)
	_, err = store.Insert(ctx, remote.ProjectTasks, remote.Row{"project_id": p1["id"], "title": "t2", "done": true})
	require.NoError(t, err)

	rows, err := store.Select(ctx, remote.Projects, remote.Query{}.
		Where("owner_id", "owner1").
		OrderBy("created_at", true).
		With("tasks", remote.ProjectTasks, "project_id").
		With("stages", remote.ProjectStages, "project_id"))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, p2["id"], rows[0]["id"])
	require.Empty(t, rows[0]["tasks"])
	require.NotNil(t, rows[0]["tasks"])

	tasks := rows[1]["tasks"].([]remote.Row)
	require.Len(t, tasks, 2)
	require.Equal(t, "t1", tasks[0]["title"])
	require.Equal(t, true, tasks[1]["done"])
	require.Empty(t, rows[1]["stages"])
}

func TestStore_ForeignKeyViolation(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Insert(context.Background(), remote.ProjectStages, remote.Row{"project_id": "missing", "name": "s", "status": "todo", "order": 0})
	require.ErrorIs(t, err, remote.ErrForeignKeyViolation)
}

func TestStore_UpsertByUniqueKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := []string{"owner_id", "category"}

	first, err := store.Upsert(ctx, remote.BudgetLimits, remote.Row{"owner_id": "owner1", "category": "food", "amount": "5000"}, key)
	require.NoError(t, err)
	require.Equal(t, "5000", first["amount"])

	second, err := store.Upsert(ctx, remote.BudgetLimits, remote.Row{"owner_id": "owner1", "category": "food", "amount": "7000"}, key)
	require.NoError(t, err)
	require.Equal(t, first["id"], second["id"])
	require.Equal(t, "7000", second["amount"])

	rows, err := store.Select(ctx, remote.BudgetLimits, remote.Query{}.Where("owner_id", "owner1"))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = store.Upsert(ctx, remote.BudgetLimits, remote.Row{"owner_id": "owner1", "category": "food", "amount": "1"}, []string{"category"})
	require.ErrorIs(t, err, remote.ErrInvalidInput)
}

func TestStore_DeleteProjectCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p, err := store.Insert(ctx, remote.Projects, remote.Row{"owner_id": "owner1", "name": "A", "status": "active"})
	require.NoError(t, err)
	_, err = store.Insert(ctx, remote.ProjectNotes, remote.Row{"project_id": p["id"], "content": "n"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, remote.Projects, p["id"].(string)))

	rows, err := store.Select(ctx, remote.ProjectNotes, remote.Query{}.Where("project_id", p["id"]))
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestStore_DecimalRoundTrip(t *testing.T) {
	store := newTestStore(t)
	row, err := store.Insert(context.Background(), remote.Transactions, remote.Row{
		"owner_id": "owner1",
		"amount":   "1000.25",
		"type":     "expense",
		"category": "food",
		"date":     time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, "1000.25", row["amount"])
	require.Nil(t, row["comment"])
	require.True(t, time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC).Equal(row["date"].(time.Time)))
}
