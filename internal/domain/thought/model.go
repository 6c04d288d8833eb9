package thought

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// ErrEmptyContent is returned by Add for blank content.
var ErrEmptyContent = errors.New("thought content is empty")

// Thought is a short tagged note.
type Thought struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
}

func (t *Thought) GetID() string { return t.ID }

// A tag is '#' followed by ASCII word characters or Cyrillic letters.
var tagPattern = regexp.MustCompile(`#[\w\x{0400}-\x{04FF}]+`)

// ParseTags extracts lower-cased tags in order of appearance. Repeats are
// kept.
func ParseTags(content string) []string {
	matches := tagPattern.FindAllString(content, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, strings.ToLower(m[1:]))
	}
	return tags
}

// Less orders pinned thoughts first, then newest first.
func Less(a, b *Thought) bool {
	if a.Pinned != b.Pinned {
		return a.Pinned
	}
	return a.CreatedAt.After(b.CreatedAt)
}
