package project

import "math"

// CalcProgress is the rounded percentage of done tasks across the whole
// project. A project without tasks is at 0.
func CalcProgress(p *Project) int {
	return percentDone(p.Tasks)
}

// StageProgress is CalcProgress restricted to one stage.
func StageProgress(p *Project, stageID string) int {
	return percentDone(StageTasks(p, stageID))
}

// StageTasks lists the tasks bound to stageID.
func StageTasks(p *Project, stageID string) []*Task {
	var out []*Task
	for _, t := range p.Tasks {
		if t.StageID != nil && *t.StageID == stageID {
			out = append(out, t)
		}
	}
	return out
}

// FreeTasks lists tasks not bound to any stage.
func FreeTasks(p *Project) []*Task {
	var out []*Task
	for _, t := range p.Tasks {
		if t.StageID == nil {
			out = append(out, t)
		}
	}
	return out
}

// Active splits out projects with status active, keeping order.
func Active(projects []*Project) (active, other []*Project) {
	for _, p := range projects {
		if p.Status == StatusActive {
			active = append(active, p)
		} else {
			other = append(other, p)
		}
	}
	return active, other
}

func percentDone(tasks []*Task) int {
	if len(tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range tasks {
		if t.Done {
			done++
		}
	}
	return int(math.Round(float64(done) * 100 / float64(len(tasks))))
}
