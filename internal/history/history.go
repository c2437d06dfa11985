// Package history records what was said during a tutoring session: every
// tutor line and every learner answer, with the verdict the answer earned.
//
// A [Recorder] is best-effort. The dialogue engine logs a failed Record and
// carries on, so a broken store never interrupts a lesson.
package history

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// Role identifies who spoke an entry.
type Role string

const (
	RoleTutor   Role = "tutor"
	RoleLearner Role = "learner"
)

// Entry is one line of a session transcript.
type Entry struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`

	// Turn is the zero-based lesson turn the line belongs to. Welcome and
	// farewell lines use -1.
	Turn int `json:"turn"`

	// Attempt is the zero-based attempt within the turn.
	Attempt int `json:"attempt"`

	Role Role   `json:"role"`
	Text string `json:"text"`

	// Verdict is the oracle verdict for a learner entry, empty otherwise.
	Verdict string `json:"verdict,omitempty"`

	At time.Time `json:"at"`
}

// Recorder persists transcript entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Reader lists the entries of one session in the order they were recorded.
type Reader interface {
	Entries(ctx context.Context, sessionID string) ([]Entry, error)
}

// SearchOpts narrows a [Searcher] query. Zero fields do not filter.
type SearchOpts struct {
	SessionID string
	Role      Role

	// Limit caps the number of entries returned. Zero means no cap.
	Limit int
}

// Searcher finds recorded lines by their text.
type Searcher interface {
	Search(ctx context.Context, query string, opts SearchOpts) ([]Entry, error)
}

// Memory is an in-process Recorder, Reader and Searcher. The zero value is ready to use.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

var (
	_ Recorder = (*Memory)(nil)
	_ Reader   = (*Memory)(nil)
	_ Searcher = (*Memory)(nil)
)

// Record implements Recorder. A zero At is set to the current time.
func (m *Memory) Record(_ context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

// Entries implements Reader. An empty sessionID returns every entry.
func (m *Memory) Entries(_ context.Context, sessionID string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sessionID == "" {
		return slices.Clone(m.entries), nil
	}
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Len returns the number of recorded entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Search implements Searcher. An entry matches when its text contains every
// word of query, ignoring case.
func (m *Memory) Search(_ context.Context, query string, opts SearchOpts) ([]Entry, error) {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if opts.SessionID != "" && e.SessionID != opts.SessionID {
			continue
		}
		if opts.Role != "" && e.Role != opts.Role {
			continue
		}
		text := strings.ToLower(e.Text)
		if !containsAll(text, words) {
			continue
		}
		out = append(out, e)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func containsAll(text string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(text, w) {
			return false
		}
	}
	return true
}
