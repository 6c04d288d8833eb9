package project

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rpggio/hq/internal/collection"
	"github.com/rpggio/hq/internal/domain/activity"
	"github.com/rpggio/hq/internal/remote"
)

// Store mirrors the owner's projects together with their stages, tasks,
// notes and links.
//
// Every child mutation replaces the touched project with a shallow copy
// carrying one new child list. Other projects keep their identity.
type Store struct {
	remote  remote.Store
	ownerID string
	items   *collection.Collection[*Project]
	seq     *collection.Sequencer
	track   activity.Tracker
}

// NewStore creates a Store for ownerID. recorder and logger may be nil.
func NewStore(rs remote.Store, ownerID string, recorder activity.Recorder, logger *slog.Logger) *Store {
	return &Store{
		remote:  rs,
		ownerID: ownerID,
		items:   collection.New[*Project](),
		seq:     collection.NewSequencer(),
		track:   activity.NewTracker(recorder, logger),
	}
}

// Load fetches all projects newest first with their children.
func (s *Store) Load(ctx context.Context) error {
	err := s.items.Load(ctx, func(ctx context.Context) ([]*Project, error) {
		rows, err := s.remote.Select(ctx, remote.Projects, remote.Query{}.
			Where("owner_id", s.ownerID).
			OrderBy("created_at", true).
			With("stages", remote.ProjectStages, "project_id").
			With("tasks", remote.ProjectTasks, "project_id").
			With("notes", remote.ProjectNotes, "project_id").
			With("links", remote.ProjectLinks, "project_id"))
		if err != nil {
			return nil, err
		}
		projects, err := remote.DecodeAll[*Project](rows)
		if err != nil {
			return nil, err
		}
		for _, p := range projects {
			ensureChildren(p)
		}
		return projects, nil
	})
	if err != nil {
		return s.track.Fetch(remote.Projects, fmt.Errorf("loading projects: %w", err))
	}
	return nil
}

// List returns the current snapshot.
func (s *Store) List() []*Project {
	return s.items.Snapshot()
}

// Loading reports whether a Load is in flight.
func (s *Store) Loading() bool {
	return s.items.Loading()
}

// Subscribe registers fn for every new snapshot.
func (s *Store) Subscribe(fn func([]*Project)) (cancel func()) {
	return s.items.Subscribe(fn)
}

// Get returns a project from the local list.
func (s *Store) Get(id string) (*Project, error) {
	p, ok := s.items.Find(id)
	if !ok {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

// AddProject creates an empty project and puts it first.
func (s *Store) AddProject(ctx context.Context, req CreateRequest) (*Project, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	status := req.Status
	if status == "" {
		status = StatusActive
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	color := req.Color
	if color == "" {
		color = DefaultColor
	}

	fields := remote.Row{
		"owner_id": s.ownerID,
		"name":     req.Name,
		"status":   string(status),
		"color":    color,
	}
	if req.Description != "" {
		fields["description"] = req.Description
	}
	if req.Deadline != nil {
		fields["deadline"] = *req.Deadline
	}

	row, err := s.remote.Insert(ctx, remote.Projects, fields)
	if err != nil {
		return nil, s.track.Write(ctx, remote.Projects, activity.OpInsert, "", fmt.Errorf("creating project: %w", err))
	}
	p, err := remote.Decode[*Project](row)
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	ensureChildren(p)
	_ = s.track.Write(ctx, remote.Projects, activity.OpInsert, p.ID, nil)

	s.items.Patch(collection.Prepend(p))
	return p, nil
}

// UpdateProject applies a partial update. Child lists are carried over.
func (s *Store) UpdateProject(ctx context.Context, id string, req UpdateRequest) error {
	fields := remote.Row{}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.ClearDeadline {
		fields["deadline"] = nil
	} else if req.Deadline != nil {
		fields["deadline"] = *req.Deadline
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *req.Status)
		}
		fields["status"] = string(*req.Status)
	}
	if req.Color != nil {
		fields["color"] = *req.Color
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}

	return s.seq.Do(id, func() error {
		err := s.remote.Update(ctx, remote.Projects, id, fields)
		s.patch(id, func(p *Project) {
			if req.Name != nil {
				p.Name = *req.Name
			}
			if req.Description != nil {
				p.Description = *req.Description
			}
			if req.ClearDeadline {
				p.Deadline = nil
			} else if req.Deadline != nil {
				d := *req.Deadline
				p.Deadline = &d
			}
			if req.Status != nil {
				p.Status = *req.Status
			}
			if req.Color != nil {
				p.Color = *req.Color
			}
		})
		return s.written(ctx, remote.Projects, activity.OpUpdate, id, "updating project", err)
	})
}

// DeleteProject removes a project. Children are left to the remote store.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.seq.Do(id, func() error {
		err := s.remote.Delete(ctx, remote.Projects, id)
		s.items.Patch(collection.RemoveByID[*Project](id))
		return s.written(ctx, remote.Projects, activity.OpDelete, id, "deleting project", err)
	})
}

// AddStage appends a stage whose order is the project's current stage
// count. Orders are never renumbered, so they can repeat after deletes.
func (s *Store) AddStage(ctx context.Context, projectID, name string) (*Stage, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: stage name is required", ErrInvalidInput)
	}

	var stage *Stage
	err := s.addChild(ctx, projectID, remote.ProjectStages, "creating stage", func(p *Project) remote.Row {
		return remote.Row{
			"project_id": projectID,
			"name":       name,
			"status":     string(StageTodo),
			"order":      len(p.Stages),
		}
	}, func(row remote.Row) (string, error) {
		var err error
		if stage, err = remote.Decode[*Stage](row); err != nil {
			return "", err
		}
		s.patch(projectID, func(p *Project) {
			p.Stages = collection.Append(stage)(p.Stages)
		})
		return stage.ID, nil
	})
	if err != nil {
		return nil, err
	}
	return stage, nil
}

// UpdateStage applies a partial update to one stage.
func (s *Store) UpdateStage(ctx context.Context, projectID, stageID string, req StageUpdate) error {
	fields := remote.Row{}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return fmt.Errorf("%w: stage name is required", ErrInvalidInput)
		}
		fields["name"] = *req.Name
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return fmt.Errorf("%w: unknown stage status %q", ErrInvalidInput, *req.Status)
		}
		fields["status"] = string(*req.Status)
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}

	return s.seq.Do(projectID, func() error {
		err := s.remote.Update(ctx, remote.ProjectStages, stageID, fields)
		s.patch(projectID, func(p *Project) {
			p.Stages = collection.ReplaceByID(stageID, func(st *Stage) *Stage {
				cp := *st
				if req.Name != nil {
					cp.Name = *req.Name
				}
				if req.Status != nil {
					cp.Status = *req.Status
				}
				return &cp
			})(p.Stages)
		})
		return s.written(ctx, remote.ProjectStages, activity.OpUpdate, stageID, "updating stage", err)
	})
}

// DeleteStage removes a stage. Its tasks stay in the project.
func (s *Store) DeleteStage(ctx context.Context, projectID, stageID string) error {
	return s.seq.Do(projectID, func() error {
		err := s.remote.Delete(ctx, remote.ProjectStages, stageID)
		s.patch(projectID, func(p *Project) {
			p.Stages = collection.RemoveByID[*Stage](stageID)(p.Stages)
			p.Tasks = releaseStage(p.Tasks, stageID)
		})
		return s.written(ctx, remote.ProjectStages, activity.OpDelete, stageID, "deleting stage", err)
	})
}

// releaseStage turns the tasks of a deleted stage into free tasks, as the
// stage_id foreign key does on the backend. Other tasks keep their pointers.
func releaseStage(tasks []*Task, stageID string) []*Task {
	out := make([]*Task, len(tasks))
	for i, t := range tasks {
		if t.StageID != nil && *t.StageID == stageID {
			cp := *t
			cp.StageID = nil
			t = &cp
		}
		out[i] = t
	}
	return out
}

// AddTask appends an open task. A nil stageID creates a free task.
func (s *Store) AddTask(ctx context.Context, projectID string, stageID *string, title string, deadline *time.Time) (*Task, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: task title is required", ErrInvalidInput)
	}
	fields := remote.Row{
		"project_id": projectID,
		"stage_id":   nil,
		"title":      title,
		"done":       false,
		"deadline":   nil,
	}
	if stageID != nil {
		fields["stage_id"] = *stageID
	}
	if deadline != nil {
		fields["deadline"] = *deadline
	}

	var task *Task
	err := s.addChild(ctx, projectID, remote.ProjectTasks, "creating task", func(*Project) remote.Row { return fields }, func(row remote.Row) (string, error) {
		var err error
		if task, err = remote.Decode[*Task](row); err != nil {
			return "", err
		}
		s.patch(projectID, func(p *Project) {
			p.Tasks = collection.Append(task)(p.Tasks)
		})
		return task.ID, nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ToggleTask flips done from currentDone.
func (s *Store) ToggleTask(ctx context.Context, projectID, taskID string, currentDone bool) error {
	done := !currentDone
	return s.seq.Do(projectID, func() error {
		err := s.remote.Update(ctx, remote.ProjectTasks, taskID, remote.Row{"done": done})
		s.patch(projectID, func(p *Project) {
			p.Tasks = collection.ReplaceByID(taskID, func(t *Task) *Task {
				cp := *t
				cp.Done = done
				return &cp
			})(p.Tasks)
		})
		return s.written(ctx, remote.ProjectTasks, activity.OpUpdate, taskID, "updating task", err)
	})
}

func (s *Store) DeleteTask(ctx context.Context, projectID, taskID string) error {
	return s.seq.Do(projectID, func() error {
		err := s.remote.Delete(ctx, remote.ProjectTasks, taskID)
		s.patch(projectID, func(p *Project) {
			p.Tasks = collection.RemoveByID[*Task](taskID)(p.Tasks)
		})
		return s.written(ctx, remote.ProjectTasks, activity.OpDelete, taskID, "deleting task", err)
	})
}

func (s *Store) AddNote(ctx context.Context, projectID, content string) (*Note, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: note content is required", ErrInvalidInput)
	}

	var note *Note
	err := s.addChild(ctx, projectID, remote.ProjectNotes, "creating note", func(*Project) remote.Row {
		return remote.Row{"project_id": projectID, "content": content}
	}, func(row remote.Row) (string, error) {
		var err error
		if note, err = remote.Decode[*Note](row); err != nil {
			return "", err
		}
		s.patch(projectID, func(p *Project) {
			p.Notes = collection.Append(note)(p.Notes)
		})
		return note.ID, nil
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (s *Store) DeleteNote(ctx context.Context, projectID, noteID string) error {
	return s.seq.Do(projectID, func() error {
		err := s.remote.Delete(ctx, remote.ProjectNotes, noteID)
		s.patch(projectID, func(p *Project) {
			p.Notes = collection.RemoveByID[*Note](noteID)(p.Notes)
		})
		return s.written(ctx, remote.ProjectNotes, activity.OpDelete, noteID, "deleting note", err)
	})
}

func (s *Store) AddLink(ctx context.Context, projectID, title, url string) (*Link, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("%w: link title and url are required", ErrInvalidInput)
	}

	var link *Link
	err := s.addChild(ctx, projectID, remote.ProjectLinks, "creating link", func(*Project) remote.Row {
		return remote.Row{"project_id": projectID, "title": title, "url": url}
	}, func(row remote.Row) (string, error) {
		var err error
		if link, err = remote.Decode[*Link](row); err != nil {
			return "", err
		}
		s.patch(projectID, func(p *Project) {
			p.Links = collection.Append(link)(p.Links)
		})
		return link.ID, nil
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (s *Store) DeleteLink(ctx context.Context, projectID, linkID string) error {
	return s.seq.Do(projectID, func() error {
		err := s.remote.Delete(ctx, remote.ProjectLinks, linkID)
		s.patch(projectID, func(p *Project) {
			p.Links = collection.RemoveByID[*Link](linkID)(p.Links)
		})
		return s.written(ctx, remote.ProjectLinks, activity.OpDelete, linkID, "deleting link", err)
	})
}

// addChild inserts the row built by fields under projectID and hands the
// canonical row to apply, which patches the project and returns the new id.
// The project must be in the local list.
func (s *Store) addChild(ctx context.Context, projectID, coll, action string, fields func(*Project) remote.Row, apply func(remote.Row) (string, error)) error {
	return s.seq.Do(projectID, func() error {
		p, err := s.Get(projectID)
		if err != nil {
			return err
		}
		row, err := s.remote.Insert(ctx, coll, fields(p))
		if err != nil {
			return s.written(ctx, coll, activity.OpInsert, "", action, err)
		}
		id, err := apply(row)
		if err != nil {
			return fmt.Errorf("%s: %w", action, err)
		}
		return s.written(ctx, coll, activity.OpInsert, id, "", nil)
	})
}

// patch replaces project id with a shallow copy changed by fn.
func (s *Store) patch(id string, fn func(*Project)) {
	s.items.Patch(collection.ReplaceByID(id, func(p *Project) *Project {
		cp := *p
		fn(&cp)
		return &cp
	}))
}

func (s *Store) written(ctx context.Context, coll string, op activity.Op, id, action string, err error) error {
	if err != nil {
		err = fmt.Errorf("%s: %w", action, err)
	}
	return s.track.Write(ctx, coll, op, id, err)
}

func ensureChildren(p *Project) {
	if p.Stages == nil {
		p.Stages = []*Stage{}
	}
	if p.Tasks == nil {
		p.Tasks = []*Task{}
	}
	if p.Notes == nil {
		p.Notes = []*Note{}
	}
	if p.Links == nil {
		p.Links = []*Link{}
	}
}
