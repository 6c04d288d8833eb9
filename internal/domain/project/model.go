package project

import "time"

// Status is the lifecycle state of a project.
type Status string

const (
	StatusActive Status = "active"
	StatusFrozen Status = "frozen"
	StatusDone   Status = "done"
)

// Valid reports whether s is a known project status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusFrozen, StatusDone:
		return true
	}
	return false
}

// StageStatus is the state of a stage. Any status may follow any other.
type StageStatus string

const (
	StageTodo       StageStatus = "todo"
	StageInProgress StageStatus = "in_progress"
	StageDone       StageStatus = "done"
)

// Valid reports whether s is a known stage status.
func (s StageStatus) Valid() bool {
	switch s {
	case StageTodo, StageInProgress, StageDone:
		return true
	}
	return false
}

// DefaultColor is used when a project is created without one.
const DefaultColor = "#6366f1"

// Project is the aggregate root. Its four child lists are replaced, never
// modified in place.
type Project struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Status      Status     `json:"status"`
	Color       string     `json:"color"`
	CreatedAt   time.Time  `json:"created_at"`

	Stages []*Stage `json:"stages"`
	Tasks  []*Task  `json:"tasks"`
	Notes  []*Note  `json:"notes"`
	Links  []*Link  `json:"links"`
}

func (p *Project) GetID() string { return p.ID }

// Stage groups tasks. Order is the stage count at creation time.
type Stage struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"project_id"`
	Name      string      `json:"name"`
	Status    StageStatus `json:"status"`
	Order     int         `json:"order"`
	CreatedAt time.Time   `json:"created_at"`
}

func (s *Stage) GetID() string { return s.ID }

// Task is a checklist item. A nil StageID is a free task.
type Task struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	StageID   *string    `json:"stage_id"`
	Title     string     `json:"title"`
	Done      bool       `json:"done"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (t *Task) GetID() string { return t.ID }

type Note struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (n *Note) GetID() string { return n.ID }

type Link struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

func (l *Link) GetID() string { return l.ID }

// CreateRequest defines project creation inputs. Empty Status and Color
// take their defaults.
type CreateRequest struct {
	Name        string
	Description string
	Deadline    *time.Time
	Status      Status
	Color       string
}

// UpdateRequest is a partial update. Nil fields are left alone.
type UpdateRequest struct {
	Name          *string
	Description   *string
	Deadline      *time.Time
	ClearDeadline bool
	Status        *Status
	Color         *string
}

// StageUpdate is a partial stage update.
type StageUpdate struct {
	Name   *string
	Status *StageStatus
}
