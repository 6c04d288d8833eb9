package project_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpggio/hq/internal/domain/activity"
	"github.com/rpggio/hq/internal/domain/project"
	"github.com/rpggio/hq/internal/remote"
	"github.com/rpggio/hq/internal/remote/mocks"
	"github.com/rpggio/hq/internal/sqlite"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *project.Store {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { _ = db.Close() })

	store := project.NewStore(sqlite.NewStore(db), "owner1", nil, nil)
	require.NoError(t, store.Load(context.Background()))
	return store
}

func mustAdd(t *testing.T, store *project.Store, name string) *project.Project {
	t.Helper()
	p, err := store.AddProject(context.Background(), project.CreateRequest{Name: name})
	require.NoError(t, err)
	return p
}

func current(t *testing.T, store *project.Store, id string) *project.Project {
	t.Helper()
	p, err := store.Get(id)
	require.NoError(t, err)
	return p
}

func TestStore_AddProjectDefaults(t *testing.T) {
	store := newSQLiteStore(t)

	first := mustAdd(t, store, "First")
	second := mustAdd(t, store, "Second")

	require.Equal(t, project.StatusActive, first.Status)
	require.Equal(t, project.DefaultColor, first.Color)
	require.Equal(t, "owner1", first.OwnerID)
	require.NotNil(t, first.Stages)
	require.NotNil(t, first.Tasks)
	require.NotNil(t, first.Notes)
	require.NotNil(t, first.Links)

	list := store.List()
	require.Len(t, list, 2)
	require.Same(t, second, list[0])
	require.Same(t, first, list[1])
}

func TestStore_AddProjectValidation(t *testing.T) {
	rs := &mocks.Store{}
	store := project.NewStore(rs, "owner1", nil, nil)
	ctx := context.Background()

	_, err := store.AddProject(ctx, project.CreateRequest{Name: "  "})
	require.ErrorIs(t, err, project.ErrInvalidInput)

	_, err = store.AddProject(ctx, project.CreateRequest{Name: "x", Status: "archived"})
	require.ErrorIs(t, err, project.ErrInvalidInput)

	_, err = store.AddStage(ctx, "p1", "")
	require.ErrorIs(t, err, project.ErrInvalidInput)

	_, err = store.AddLink(ctx, "p1", "docs", " ")
	require.ErrorIs(t, err, project.ErrInvalidInput)

	_, err = store.AddStage(ctx, "missing", "Stage")
	require.ErrorIs(t, err, project.ErrProjectNotFound)

	require.ErrorIs(t, store.UpdateProject(ctx, "p1", project.UpdateRequest{}), project.ErrInvalidInput)

	rs.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
	rs.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStore_FreeTaskToggleProgress(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	p := mustAdd(t, store, "P")

	task, err := store.AddTask(ctx, p.ID, nil, "X", nil)
	require.NoError(t, err)
	require.False(t, task.Done)
	require.Nil(t, task.StageID)
	require.Equal(t, 0, project.CalcProgress(current(t, store, p.ID)))

	require.NoError(t, store.ToggleTask(ctx, p.ID, task.ID, false))
	require.Equal(t, 100, project.CalcProgress(current(t, store, p.ID)))
	require.Len(t, project.FreeTasks(current(t, store, p.ID)), 1)
}

func TestStore_DeleteStageKeepsTasks(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	p := mustAdd(t, store, "P")

	stage, err := store.AddStage(ctx, p.ID, "Design")
	require.NoError(t, err)
	for _, title := range []string{"a", "b"} {
		_, err := store.AddTask(ctx, p.ID, &stage.ID, title, nil)
		require.NoError(t, err)
	}

	before := current(t, store, p.ID)
	require.NoError(t, store.DeleteStage(ctx, p.ID, stage.ID))
	after := current(t, store, p.ID)

	require.Empty(t, after.Stages)
	require.Len(t, after.Tasks, 2)
	require.Equal(t, before.Tasks, after.Tasks)
	require.NotSame(t, before, after)
}

func TestStore_StageOrderIsCount(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	p := mustAdd(t, store, "P")

	s0, err := store.AddStage(ctx, p.ID, "zero")
	require.NoError(t, err)
	s1, err := store.AddStage(ctx, p.ID, "one")
	require.NoError(t, err)
	require.Equal(t, 0, s0.Order)
	require.Equal(t, 1, s1.Order)
	require.Equal(t, project.StageTodo, s0.Status)

	require.NoError(t, store.DeleteStage(ctx, p.ID, s0.ID))
	s2, err := store.AddStage(ctx, p.ID, "two")
	require.NoError(t, err)
	require.Equal(t, 1, s2.Order)
}

func TestStore_NestedPatchIsolation(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	a := mustAdd(t, store, "A")
	b := mustAdd(t, store, "B")

	bBefore := current(t, store, b.ID)
	aBefore := current(t, store, a.ID)

	_, err := store.AddNote(ctx, a.ID, "note")
	require.NoError(t, err)
	_, err = store.AddLink(ctx, a.ID, "docs", "https://example.com")
	require.NoError(t, err)
	stage, err := store.AddStage(ctx, a.ID, "S")
	require.NoError(t, err)
	status := project.StageInProgress
	require.NoError(t, store.UpdateStage(ctx, a.ID, stage.ID, project.StageUpdate{Status: &status}))

	require.Same(t, bBefore, current(t, store, b.ID))
	require.Empty(t, bBefore.Notes)
	require.Empty(t, bBefore.Links)

	aAfter := current(t, store, a.ID)
	require.NotSame(t, aBefore, aAfter)
	require.Empty(t, aBefore.Notes)
	require.Len(t, aAfter.Notes, 1)
	require.Len(t, aAfter.Links, 1)
	require.Equal(t, project.StageInProgress, aAfter.Stages[0].Status)
	require.Equal(t, project.StageTodo, stage.Status)
}

func TestStore_UpdateProjectMergesPartial(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	deadline := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	p, err := store.AddProject(ctx, project.CreateRequest{Name: "P", Description: "desc", Deadline: &deadline})
	require.NoError(t, err)
	_, err = store.AddTask(ctx, p.ID, nil, "t", nil)
	require.NoError(t, err)

	status := project.StatusFrozen
	require.NoError(t, store.UpdateProject(ctx, p.ID, project.UpdateRequest{Status: &status}))

	got := current(t, store, p.ID)
	require.Equal(t, project.StatusFrozen, got.Status)
	require.Equal(t, "P", got.Name)
	require.Equal(t, "desc", got.Description)
	require.True(t, deadline.Equal(*got.Deadline))
	require.Len(t, got.Tasks, 1)

	require.NoError(t, store.UpdateProject(ctx, p.ID, project.UpdateRequest{ClearDeadline: true}))
	require.Nil(t, current(t, store, p.ID).Deadline)
}

func TestStore_LoadExpandsChildren(t *testing.T) {
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	writer := project.NewStore(sqlite.NewStore(db), "owner1", nil, nil)
	require.NoError(t, writer.Load(ctx))
	p := mustAdd(t, writer, "P")
	stage, err := writer.AddStage(ctx, p.ID, "S")
	require.NoError(t, err)
	_, err = writer.AddTask(ctx, p.ID, &stage.ID, "staged", nil)
	require.NoError(t, err)
	_, err = writer.AddTask(ctx, p.ID, nil, "free", nil)
	require.NoError(t, err)
	_, err = writer.AddNote(ctx, p.ID, "n")
	require.NoError(t, err)
	mustAdd(t, writer, "Empty")

	reader := project.NewStore(sqlite.NewStore(db), "owner1", nil, nil)
	require.NoError(t, reader.Load(ctx))
	list := reader.List()
	require.Len(t, list, 2)
	require.Equal(t, "Empty", list[0].Name)
	require.NotNil(t, list[0].Stages)
	require.Empty(t, list[0].Tasks)

	loaded := list[1]
	require.Len(t, loaded.Stages, 1)
	require.Len(t, loaded.Tasks, 2)
	require.Len(t, loaded.Notes, 1)
	require.Empty(t, loaded.Links)
	require.Len(t, project.StageTasks(loaded, stage.ID), 1)
	require.Len(t, project.FreeTasks(loaded), 1)
}

func TestStore_RemoteFailures(t *testing.T) {
	ctx := context.Background()
	rs := &mocks.Store{}
	journal := activity.NewService(0, nil)
	store := project.NewStore(rs, "owner1", journal, nil)

	rs.On("Select", mock.Anything, remote.Projects, mock.Anything).Return([]remote.Row{
		{"id": "p1", "owner_id": "owner1", "name": "A", "status": "active", "color": "#fff", "created_at": time.Now(),
			"stages": []remote.Row{}, "tasks": []remote.Row{{"id": "t1", "project_id": "p1", "title": "t", "done": false}},
			"notes": []remote.Row{}, "links": []remote.Row{}},
	}, nil)
	require.NoError(t, store.Load(ctx))

	offline := errors.New("offline")
	rs.On("Update", mock.Anything, remote.ProjectTasks, "t1", remote.Row{"done": true}).Return(offline)
	rs.On("Insert", mock.Anything, remote.ProjectNotes, mock.Anything).Return(nil, offline)
	rs.On("Delete", mock.Anything, remote.Projects, "p1").Return(offline)

	err := store.ToggleTask(ctx, "p1", "t1", false)
	require.ErrorIs(t, err, offline)
	require.Equal(t, 100, project.CalcProgress(current(t, store, "p1")))

	_, err = store.AddNote(ctx, "p1", "n")
	require.ErrorIs(t, err, offline)
	require.Empty(t, current(t, store, "p1").Notes)

	require.ErrorIs(t, store.DeleteProject(ctx, "p1"), offline)
	require.Empty(t, store.List())

	require.Len(t, journal.Recent(activity.ListOptions{FailedOnly: true}), 3)
}

func TestStore_DeleteChildren(t *testing.T) {
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	store := project.NewStore(sqlite.NewStore(db), "owner1", nil, nil)
	require.NoError(t, store.Load(ctx))
	a := mustAdd(t, store, "A")
	b := mustAdd(t, store, "B")

	stage, err := store.AddStage(ctx, a.ID, "S")
	require.NoError(t, err)
	task, err := store.AddTask(ctx, a.ID, nil, "t", nil)
	require.NoError(t, err)
	keptTask, err := store.AddTask(ctx, a.ID, nil, "kept", nil)
	require.NoError(t, err)
	note, err := store.AddNote(ctx, a.ID, "n")
	require.NoError(t, err)
	link, err := store.AddLink(ctx, a.ID, "docs", "https://example.com")
	require.NoError(t, err)
	bBefore := current(t, store, b.ID)

	before := current(t, store, a.ID)
	require.NoError(t, store.DeleteTask(ctx, a.ID, task.ID))
	after := current(t, store, a.ID)
	require.NotSame(t, before, after)
	require.Len(t, before.Tasks, 2)
	require.Len(t, after.Tasks, 1)
	require.Same(t, before.Tasks[1], after.Tasks[0])
	require.Equal(t, keptTask.ID, after.Tasks[0].ID)
	require.Same(t, before.Stages[0], after.Stages[0])
	require.Same(t, before.Notes[0], after.Notes[0])
	require.Same(t, before.Links[0], after.Links[0])

	before = after
	require.NoError(t, store.DeleteNote(ctx, a.ID, note.ID))
	after = current(t, store, a.ID)
	require.Empty(t, after.Notes)
	require.Len(t, before.Notes, 1)
	require.Same(t, before.Tasks[0], after.Tasks[0])
	require.Same(t, before.Links[0], after.Links[0])

	before = after
	require.NoError(t, store.DeleteLink(ctx, a.ID, link.ID))
	after = current(t, store, a.ID)
	require.Empty(t, after.Links)
	require.Len(t, before.Links, 1)
	require.Same(t, before.Stages[0], after.Stages[0])

	staged, err := store.AddTask(ctx, a.ID, &stage.ID, "staged", nil)
	require.NoError(t, err)
	before = current(t, store, a.ID)
	require.NoError(t, store.DeleteStage(ctx, a.ID, stage.ID))
	after = current(t, store, a.ID)
	require.Empty(t, after.Stages)
	require.Len(t, after.Tasks, 2)
	require.Same(t, before.Tasks[0], after.Tasks[0])
	require.Equal(t, staged.ID, after.Tasks[1].ID)
	require.Nil(t, after.Tasks[1].StageID)
	require.NotNil(t, before.Tasks[1].StageID)
	require.Same(t, bBefore, current(t, store, b.ID))

	reloaded := project.NewStore(sqlite.NewStore(db), "owner1", nil, nil)
	require.NoError(t, reloaded.Load(ctx))
	persisted := current(t, reloaded, a.ID)
	require.Empty(t, persisted.Stages)
	require.Empty(t, persisted.Notes)
	require.Empty(t, persisted.Links)
	require.Len(t, persisted.Tasks, 2)
	ids := make([]string, 0, len(persisted.Tasks))
	for _, pt := range persisted.Tasks {
		ids = append(ids, pt.ID)
		require.Nil(t, pt.StageID)
	}
	require.ElementsMatch(t, []string{keptTask.ID, staged.ID}, ids)
}

func TestStore_DeleteChildrenOnRemoteFailure(t *testing.T) {
	ctx := context.Background()
	rs := &mocks.Store{}
	journal := activity.NewService(0, nil)
	store := project.NewStore(rs, "owner1", journal, nil)

	rs.On("Select", mock.Anything, remote.Projects, mock.Anything).Return([]remote.Row{
		{"id": "p1", "owner_id": "owner1", "name": "A", "status": "active", "color": "#fff", "created_at": time.Now(),
			"stages": []remote.Row{{"id": "s1", "project_id": "p1", "name": "S", "status": "todo", "order": 0}},
			"tasks":  []remote.Row{{"id": "t1", "project_id": "p1", "title": "t", "done": false}},
			"notes":  []remote.Row{{"id": "n1", "project_id": "p1", "content": "n"}},
			"links":  []remote.Row{{"id": "l1", "project_id": "p1", "title": "l", "url": "https://example.com"}}},
		{"id": "p2", "owner_id": "owner1", "name": "B", "status": "active", "color": "#fff", "created_at": time.Now(),
			"stages": []remote.Row{}, "tasks": []remote.Row{}, "notes": []remote.Row{}, "links": []remote.Row{}},
	}, nil)
	require.NoError(t, store.Load(ctx))
	sibling := current(t, store, "p2")

	offline := errors.New("offline")
	rs.On("Delete", mock.Anything, remote.ProjectTasks, "t1").Return(offline)
	rs.On("Delete", mock.Anything, remote.ProjectNotes, "n1").Return(offline)
	rs.On("Delete", mock.Anything, remote.ProjectLinks, "l1").Return(offline)
	rs.On("Delete", mock.Anything, remote.ProjectStages, "s1").Return(offline)

	require.ErrorIs(t, store.DeleteTask(ctx, "p1", "t1"), offline)
	require.ErrorIs(t, store.DeleteNote(ctx, "p1", "n1"), offline)
	require.ErrorIs(t, store.DeleteLink(ctx, "p1", "l1"), offline)
	require.ErrorIs(t, store.DeleteStage(ctx, "p1", "s1"), offline)

	p := current(t, store, "p1")
	require.Empty(t, p.Tasks)
	require.Empty(t, p.Notes)
	require.Empty(t, p.Links)
	require.Empty(t, p.Stages)
	require.Same(t, sibling, current(t, store, "p2"))

	failed := journal.Recent(activity.ListOptions{FailedOnly: true})
	require.Len(t, failed, 4)
	rs.AssertExpectations(t)
}
