// Package relay contains the event types exchanged between ingest adapters
// and the router, the bounded mailbox between them, and the router itself.
package relay

// Event is the closed set of things an ingest adapter can observe. The
// router's handling is a total switch over the implementations; adding a
// variant (e.g. a Discord-originated event for a future reverse path) means
// adding one case there.
type Event interface {
	// EventHost returns the IRC server host the event originated from.
	EventHost() string
}

// PrivateMessage is one chat line from an IRC server. For direct messages
// Channel carries the sender's nick, so DMs route (and provision) like a
// personal channel.
type PrivateMessage struct {
	Host    string
	From    string
	Channel string
	Message string
}

// ServerLog is any protocol line that is not chat: joins, notices, numerics,
// errors. It is relayed verbatim to the server's Discord log channel.
type ServerLog struct {
	Host    string
	Message string
}

func (e PrivateMessage) EventHost() string { return e.Host }
func (e ServerLog) EventHost() string      { return e.Host }
