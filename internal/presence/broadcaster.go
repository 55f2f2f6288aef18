package presence

import (
	"log"
	"time"

	"github.com/bolt/chat-server/internal/protocol"
)

// Broadcaster emits presence-change notifications to every registered
// connection. It always broadcasts the full current roster, not a delta;
// the payload grows with the number of active sessions, which is acceptable
// at the target scale. A broadcast reflects a consistent table snapshot at
// build time; a later broadcast supersedes a stale one.
type Broadcaster struct {
	table *Table
}

// NewBroadcaster creates a Broadcaster over the given table.
func NewBroadcaster(table *Table) *Broadcaster {
	return &Broadcaster{table: table}
}

// BroadcastRoster sends a users:online event with the full current roster
// to all registered connections. Per-connection write errors are ignored;
// failed connections are cleaned up by the transport layer on their next
// read. It returns the roster that was broadcast.
func (b *Broadcaster) BroadcastRoster() []string {
	roster := b.table.Roster()

	data, err := protocol.NewServerMessage(protocol.TypeUsersOnline, protocol.UsersOnlineMsg{
		Online: roster,
	})
	if err != nil {
		log.Printf("presence: failed to build users:online: %v", err)
		return roster
	}

	b.send(data)
	return roster
}

// BroadcastOffline sends a user:offline event carrying the user's last-seen
// timestamp to all registered connections.
func (b *Broadcaster) BroadcastOffline(userID string, lastSeen time.Time) {
	data, err := protocol.NewServerMessage(protocol.TypeUserOffline, protocol.UserOfflineMsg{
		UserID:   userID,
		LastSeen: lastSeen,
	})
	if err != nil {
		log.Printf("presence: failed to build user:offline for %s: %v", userID, err)
		return
	}

	b.send(data)
}

func (b *Broadcaster) send(data []byte) {
	for _, conn := range b.table.Conns() {
		_ = conn.WriteMessage(data)
	}
}
