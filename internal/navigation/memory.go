package navigation

// MarkerKind says which overlay to return to.
type MarkerKind string

// Marker kinds.
const (
	ReturnToList            MarkerKind = "list"
	ReturnToListFromFilters MarkerKind = "list_after_drawer"
)

// Marker is a pending "reopen the list at this offset" note.
type Marker struct {
	Kind         MarkerKind `json:"kind"`
	ScrollOffset int        `json:"scroll_offset"`
}

// Memory is session-scoped UI memory holding at most one marker. Take is
// read-once: a returned marker is cleared.
type Memory interface {
	Put(m Marker)
	Take(kind MarkerKind) (Marker, bool)
	Peek() (Marker, bool)
}

// SessionMemory is the in-process Memory for one UI session.
type SessionMemory struct {
	marker *Marker
}

// NewSessionMemory returns empty session memory.
func NewSessionMemory() *SessionMemory {
	return &SessionMemory{}
}

// Put replaces any pending marker.
func (s *SessionMemory) Put(m Marker) {
	s.marker = &m
}

// Take consumes the pending marker if it has the given kind.
func (s *SessionMemory) Take(kind MarkerKind) (Marker, bool) {
	if s.marker == nil || s.marker.Kind != kind {
		return Marker{}, false
	}
	m := *s.marker
	s.marker = nil
	return m, true
}

// Peek returns the pending marker without clearing it.
func (s *SessionMemory) Peek() (Marker, bool) {
	if s.marker == nil {
		return Marker{}, false
	}
	return *s.marker, true
}
