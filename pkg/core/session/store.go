// Package session holds the in-memory conversation state: one ordered,
// append-only message history per mode, the snippet registry, and the
// active-snippet selection. State lives for the process lifetime.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vango-go/universe/pkg/core/types"
)

// Store is the conversation/session store. All methods are safe for
// concurrent use.
type Store struct {
	mu sync.Mutex

	mode    types.Mode
	modeSet bool

	histories map[types.Mode][]types.Message

	// snippets is kept newest-first, the required display order.
	snippets        []types.CodeSnippet
	activeSnippetID string
}

// NewStore creates a store with one empty history per mode and no mode
// selected.
func NewStore() *Store {
	histories := make(map[types.Mode][]types.Message, len(types.AllModes))
	for _, m := range types.AllModes {
		histories[m] = nil
	}
	return &Store{histories: histories}
}

// newID returns a ULID: unique across the store and ordered by generation
// time.
func newID() string {
	return ulid.Make().String()
}

// SelectMode activates a mode. Prior histories are preserved.
func (s *Store) SelectMode(mode types.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	s.modeSet = true
}

// LeaveMode returns the store to the mode-selection state without
// discarding any history.
func (s *Store) LeaveMode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modeSet = false
}

// Mode returns the active mode, if one is selected.
func (s *Store) Mode() (types.Mode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode, s.modeSet
}

// AppendMessage appends a message to the given mode's history, assigning an
// ID and timestamp when absent, and returns the stored message. Histories
// are append-only; stored messages are never mutated.
func (s *Store) AppendMessage(mode types.Mode, msg types.Message) types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = newID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.Kind == "" {
		msg.Kind = types.KindText
	}
	s.histories[mode] = append(s.histories[mode], msg)
	return msg
}

// History returns a copy of the given mode's ordered message history.
func (s *Store) History(mode types.Mode) []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Message, len(s.histories[mode]))
	copy(out, s.histories[mode])
	return out
}

// ClearHistory empties the given mode's history. Other modes are untouched.
func (s *Store) ClearHistory(mode types.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[mode] = nil
}

// AddSnippet registers a new snippet from html and returns it. The display
// name is derived from the snippet count at creation time, so names may
// repeat after deletions; identity is the ID.
func (s *Store) AddSnippet(html string) types.CodeSnippet {
	s.mu.Lock()
	defer s.mu.Unlock()
	snippet := types.CodeSnippet{
		ID:        newID(),
		Name:      fmt.Sprintf("Snippet %d", len(s.snippets)+1),
		HTML:      html,
		Timestamp: time.Now(),
	}
	s.snippets = append([]types.CodeSnippet{snippet}, s.snippets...)
	return snippet
}

// RemoveSnippet deletes a snippet by ID. Removing the active snippet clears
// the active selection. Unknown IDs are ignored.
func (s *Store) RemoveSnippet(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, snip := range s.snippets {
		if snip.ID == id {
			s.snippets = append(s.snippets[:i], s.snippets[i+1:]...)
			break
		}
	}
	if s.activeSnippetID == id {
		s.activeSnippetID = ""
	}
}

// SelectSnippet marks a snippet as active. An empty id clears the selection.
func (s *Store) SelectSnippet(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeSnippetID = id
}

// ActiveSnippet resolves the active selection. A selection that no longer
// resolves against the registry is treated as absent.
func (s *Store) ActiveSnippet() (types.CodeSnippet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeSnippetID == "" {
		return types.CodeSnippet{}, false
	}
	for _, snip := range s.snippets {
		if snip.ID == s.activeSnippetID {
			return snip, true
		}
	}
	return types.CodeSnippet{}, false
}

// Snippets returns a copy of the snippet registry, newest first.
func (s *Store) Snippets() []types.CodeSnippet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.CodeSnippet, len(s.snippets))
	copy(out, s.snippets)
	return out
}
