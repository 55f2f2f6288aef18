// Package session keeps a durable record of each live connection in Redis:
// session id, the user identity bound at handshake, and which server
// instance holds the connection. It backs operational introspection and
// rate limiting, not presence; the in-memory presence table is the source
// of truth for who is online.
package session
