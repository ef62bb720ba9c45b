package route

import "github.com/rs/xid"

// NewSessionID allocates an identifier for a fresh, unsaved editor session.
//
// xid ids embed a timestamp, a machine id, the pid and a counter, so two
// sessions opened by the same process never collide and collisions across
// machines need matching machine ids inside the same second.
func NewSessionID() string {
	return xid.New().String()
}
