// Package memory keeps the small cross-session memory the consejero builds
// about each user: durable facts and preferences extracted from normal-mode
// exchanges, persisted as JSON on disk.
package memory

import (
	"strings"
	"time"

	"github.com/morispolanco/criba/internal/prompts"
)

// MaxEntries caps both lists.
const MaxEntries = 12

type UserMemory struct {
	Facts       []string  `json:"facts"`
	Preferences []string  `json:"preferences"`
	LastUpdated time.Time `json:"last_updated"`
}

func (m UserMemory) IsEmpty() bool {
	return len(m.Facts) == 0 && len(m.Preferences) == 0
}

// Prompt converts the memory into the shape the prompt builder renders.
func (m UserMemory) Prompt() prompts.Memory {
	return prompts.Memory{Facts: m.Facts, Preferences: m.Preferences}
}

func (m UserMemory) clone() UserMemory {
	return UserMemory{
		Facts:       append([]string(nil), m.Facts...),
		Preferences: append([]string(nil), m.Preferences...),
		LastUpdated: m.LastUpdated,
	}
}

// Merge returns existing followed by the unseen entries of incoming, keeping
// only the newest MaxEntries. Entries are trimmed, blanks are dropped and
// duplicates are detected case-insensitively; the first spelling wins.
func Merge(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, entry := range list {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			key := strings.ToLower(entry)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, entry)
		}
	}
	if len(out) > MaxEntries {
		out = out[len(out)-MaxEntries:]
	}
	return out
}
