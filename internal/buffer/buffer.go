// Package buffer holds the editable documents behind the editor.
//
// A Set is a small ordered collection of named text buffers with exactly one
// active at a time. Buffers are client-only: the only persistence is the
// best-effort snapshot written by AutoSaver.
package buffer

import (
	"sync"

	"github.com/rs/xid"
)

// DefaultName is the name of the buffer every new session starts with.
const DefaultName = "untitled"

// Buffer is one open document.
type Buffer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// NewBufferID returns a fresh buffer id.
func NewBufferID() string {
	return xid.New().String()
}

// Set is safe for concurrent use.
type Set struct {
	mu       sync.RWMutex
	buffers  []Buffer
	activeID string
	newID    func() string
}

// NewSet starts a session with one empty default buffer.
func NewSet() *Set {
	s := &Set{newID: NewBufferID}
	b := Buffer{ID: s.newID(), Name: DefaultName}
	s.buffers = []Buffer{b}
	s.activeID = b.ID
	return s
}

// Create appends an empty buffer named after its id and makes it active.
func (s *Set) Create() Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	b := Buffer{ID: id, Name: DefaultName + "-" + id}
	s.buffers = append(s.buffers, b)
	s.activeID = id
	return b
}

// Update replaces the content of buffer id. It reports false, and changes
// nothing, when no such buffer exists.
func (s *Set) Update(id, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.buffers {
		if s.buffers[i].ID == id {
			s.buffers[i].Content = content
			return true
		}
	}
	return false
}

// Active returns the active buffer, or the first buffer when the active id
// no longer resolves.
func (s *Set) Active() Buffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked()
}

func (s *Set) activeLocked() Buffer {
	for _, b := range s.buffers {
		if b.ID == s.activeID {
			return b
		}
	}
	if len(s.buffers) > 0 {
		return s.buffers[0]
	}
	return Buffer{}
}

// ActiveID returns the id of the buffer Active would return.
func (s *Set) ActiveID() string {
	return s.Active().ID
}

// SetActive switches the active buffer. Unknown ids are ignored.
func (s *Set) SetActive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.buffers {
		if b.ID == id {
			s.activeID = id
			return true
		}
	}
	return false
}

// Get returns the buffer with id.
func (s *Set) Get(id string) (Buffer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.buffers {
		if b.ID == id {
			return b, true
		}
	}
	return Buffer{}, false
}

// Replace discards every buffer and installs b as the only, active one.
// A missing id is generated.
func (s *Set) Replace(b Buffer) Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == "" {
		b.ID = s.newID()
	}
	if b.Name == "" {
		b.Name = DefaultName
	}
	s.buffers = []Buffer{b}
	s.activeID = b.ID
	return b
}

// Rename sets the display name of buffer id.
func (s *Set) Rename(id, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.buffers {
		if s.buffers[i].ID == id {
			s.buffers[i].Name = name
			return true
		}
	}
	return false
}

// All returns a copy of the buffers in creation order.
func (s *Set) All() []Buffer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Buffer, len(s.buffers))
	copy(out, s.buffers)
	return out
}

// Len returns the number of open buffers.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buffers)
}

// restore installs a snapshot. The active id falls back to the first buffer.
func (s *Set) restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffers = append([]Buffer(nil), snap.Buffers...)
	s.activeID = snap.ActiveID
	if _, ok := s.findLocked(s.activeID); !ok && len(s.buffers) > 0 {
		s.activeID = s.buffers[0].ID
	}
}

func (s *Set) findLocked(id string) (int, bool) {
	for i, b := range s.buffers {
		if b.ID == id {
			return i, true
		}
	}
	return -1, false
}
