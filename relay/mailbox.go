package relay

import (
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/onnwee/ircord/telemetry"
)

// DefaultMailboxSize bounds the queue between all ingest adapters and the
// router when RELAY_MAILBOX_SIZE is not set.
const DefaultMailboxSize = 100

// Mailbox is the bounded queue all ingest adapters push into and the single
// router goroutine drains. Pushes never block: an adapter stuck behind a slow
// Discord call would otherwise stop reading its IRC connection and miss
// server pings, so over capacity we drop the event and count it instead.
//
// At shutdown the mailbox is sealed after all producers have stopped; a
// sealed mailbox rejects and counts any late push, and the router exits once
// the remaining queue is drained.
type Mailbox struct {
	mu     sync.Mutex
	sealed bool
	ch     chan Event
}

// NewMailbox sizes the queue from RELAY_MAILBOX_SIZE (default 100).
func NewMailbox() *Mailbox {
	size := DefaultMailboxSize
	if s := os.Getenv("RELAY_MAILBOX_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			size = n
		}
	}
	return &Mailbox{ch: make(chan Event, size)}
}

// Push enqueues ev without blocking. It reports whether the event was
// accepted; on a full or sealed mailbox the event is dropped and counted.
func (m *Mailbox) Push(ev Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sealed {
		telemetry.Inc(telemetry.EventsDropped)
		slog.Warn("mailbox sealed, dropping event", slog.String("host", ev.EventHost()))
		return false
	}
	select {
	case m.ch <- ev:
		telemetry.SetMailboxDepth(len(m.ch))
		return true
	default:
		telemetry.Inc(telemetry.EventsDropped)
		slog.Warn("mailbox full, dropping event", slog.String("host", ev.EventHost()))
		return false
	}
}

// Seal stops accepting pushes and closes the queue. Call only after every
// producer has stopped; the router drains what is left and then exits.
func (m *Mailbox) Seal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sealed {
		return
	}
	m.sealed = true
	close(m.ch)
}

// TryPop dequeues the next event without blocking.
func (m *Mailbox) TryPop() (Event, bool) {
	select {
	case ev, ok := <-m.ch:
		if !ok {
			return nil, false
		}
		return ev, true
	default:
		return nil, false
	}
}

// Depth returns the current number of queued events.
func (m *Mailbox) Depth() int { return len(m.ch) }
