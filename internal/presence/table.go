// Package presence tracks which users currently hold an active connection.
// The Table is the single source of truth for "who is online": it maps a
// user id to the connection handle bound at handshake time. It is an
// explicitly-owned component injected into the router, the broadcaster, and
// the connection lifecycle handlers rather than package-level state, so it
// can be replaced with a fake in tests. It is in-memory only; a process
// restart resets presence to empty.
package presence

import (
	"sort"
	"sync"
)

// Conn is the transport handle stored in the table. It is the minimal
// surface the presence subsystem needs to address a live connection.
type Conn interface {
	WriteMessage(data []byte) error
}

// Table maps user ids to their active connection handle. At most one
// connection per user: a second registration for the same user silently
// replaces the first.
type Table struct {
	mu     sync.RWMutex
	byUser map[string]Conn
}

// NewTable creates an empty presence table.
func NewTable() *Table {
	return &Table{byUser: make(map[string]Conn)}
}

// Register binds userID to conn, unconditionally overwriting any existing
// mapping. It cannot fail. Returns true if an existing mapping for userID
// was replaced (a reconnect from another device or tab).
func (t *Table) Register(userID string, conn Conn) bool {
	t.mu.Lock()
	_, replaced := t.byUser[userID]
	t.byUser[userID] = conn
	t.mu.Unlock()
	return replaced
}

// Unregister removes the entry whose handle equals conn. Disconnects report
// the handle, not the user, so this is a reverse lookup. It returns the
// userID that was bound to the handle and true, or "" and false when the
// handle is not in the table (a connection that closed before completing
// handshake, or one whose entry was already replaced by a newer connection).
func (t *Table) Unregister(conn Conn) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for userID, c := range t.byUser {
		if c == conn {
			delete(t.byUser, userID)
			return userID, true
		}
	}
	return "", false
}

// Lookup returns the active connection handle for userID, or nil when the
// user is not online.
func (t *Table) Lookup(userID string) Conn {
	t.mu.RLock()
	conn := t.byUser[userID]
	t.mu.RUnlock()
	return conn
}

// Roster returns a snapshot of the currently online user ids, sorted so
// that broadcasts are deterministic.
func (t *Table) Roster() []string {
	t.mu.RLock()
	users := make([]string, 0, len(t.byUser))
	for userID := range t.byUser {
		users = append(users, userID)
	}
	t.mu.RUnlock()

	sort.Strings(users)
	return users
}

// Conns returns a snapshot of all registered connection handles. The
// returned slice is safe to iterate without holding the lock.
func (t *Table) Conns() []Conn {
	t.mu.RLock()
	conns := make([]Conn, 0, len(t.byUser))
	for _, c := range t.byUser {
		conns = append(conns, c)
	}
	t.mu.RUnlock()
	return conns
}

// Count returns the number of users currently online.
func (t *Table) Count() int {
	t.mu.RLock()
	n := len(t.byUser)
	t.mu.RUnlock()
	return n
}
