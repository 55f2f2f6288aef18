package messaging

// PresenceEvent is the payload published to presence.changed: a full roster
// snapshot taken at broadcast time.
type PresenceEvent struct {
	Online []string `json:"online"`
	Server string   `json:"server"`
	Ts     int64    `json:"ts"`
}

// OfflineEvent is the payload published to presence.offline.
type OfflineEvent struct {
	UserID   string `json:"userId"`
	LastSeen int64  `json:"lastSeen"`
	Server   string `json:"server"`
}

// PersistedEvent is the payload published to message.persisted after a
// message reaches durable storage.
type PersistedEvent struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Ts         int64  `json:"ts"`
}
