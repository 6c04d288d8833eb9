package thought

import (
	"sort"
	"time"
)

// Window limits thoughts by age.
type Window string

const (
	WindowAll   Window = "all"
	WindowToday Window = "today"
	WindowWeek  Window = "week"
)

// SortThoughts returns a stably sorted copy: pinned first, newest first.
func SortThoughts(thoughts []*Thought) []*Thought {
	out := make([]*Thought, len(thoughts))
	copy(out, thoughts)
	sort.SliceStable(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// Filter keeps thoughts inside window that carry tag. An empty tag matches
// everything. "today" is the calendar day of now in now's location; "week"
// is the last seven days.
func Filter(thoughts []*Thought, window Window, tag string, now time.Time) []*Thought {
	weekAgo := now.Add(-7 * 24 * time.Hour)
	y, m, d := now.Date()

	out := make([]*Thought, 0, len(thoughts))
	for _, t := range thoughts {
		switch window {
		case WindowToday:
			ty, tm, td := t.CreatedAt.In(now.Location()).Date()
			if ty != y || tm != m || td != d {
				continue
			}
		case WindowWeek:
			if t.CreatedAt.Before(weekAgo) {
				continue
			}
		}
		if tag != "" && !hasTag(t, tag) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// AllTags lists distinct tags in first-seen order.
func AllTags(thoughts []*Thought) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, t := range thoughts {
		for _, tag := range t.Tags {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

func hasTag(t *Thought, tag string) bool {
	for _, have := range t.Tags {
		if have == tag {
			return true
		}
	}
	return false
}
