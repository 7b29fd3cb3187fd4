// Package transport implements the concrete Stream endpoints (serial ports,
// TCP client/server sockets, file sinks/sources, NTRIP casters) behind the
// Stream collaborator contract the router consumes. The core only ever sees
// the Stream interface; this package owns all blocking I/O and runs it on
// its own goroutines.
package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/oinkzwurgl/streammux/gnssmsg"
)

// Mode describes a Stream's derived read/write capability.
type Mode int

const (
	RO Mode = iota
	WO
	RW
)

func (m Mode) String() string {
	switch m {
	case RO:
		return "RO"
	case WO:
		return "WO"
	case RW:
		return "RW"
	default:
		return "?"
	}
}

// State is a transport's connection lifecycle state.
type State int

const (
	CLOSED State = iota
	CONNECTING
	CONNECTED
)

func (s State) String() string {
	switch s {
	case CLOSED:
		return "CLOSED"
	case CONNECTING:
		return "CONNECTING"
	case CONNECTED:
		return "CONNECTED"
	default:
		return "?"
	}
}

// Type identifies the concrete endpoint kind. The router only ever special-
// cases FILEIN (to suppress the unexpected-close alarm).
type Type int

const (
	TCPSVR Type = iota
	TCPCLI
	FILEOUT
	FILEIN
	NTRIPCLI
	SERIAL
)

func (t Type) String() string {
	switch t {
	case TCPSVR:
		return "TCPSVR"
	case TCPCLI:
		return "TCPCLI"
	case FILEOUT:
		return "FILEOUT"
	case FILEIN:
		return "FILEIN"
	case NTRIPCLI:
		return "NTRIPCLI"
	case SERIAL:
		return "SERIAL"
	default:
		return "?"
	}
}

// StateObserver is invoked on every state transition.
type StateObserver func(old, new State, errStr, info string)

// ReadObserver is invoked whenever new readable data may be present.
type ReadObserver func()

// Stream is the collaborator contract the router depends on. Concrete
// endpoints in this package implement it; the router never type-asserts
// down to a specific endpoint.
type Stream interface {
	// Start begins background I/O. Idempotent: calling Start twice has no
	// additional effect.
	Start() error
	// Stop ends background I/O and releases the underlying resource.
	// Idempotent.
	Stop()

	// Read non-blockingly returns the next framed message, if any.
	Read() (gnssmsg.Message, bool)
	// Write attempts to send raw bytes to the endpoint; false means the
	// write failed (caller counts this as an error, never blocks).
	Write(data []byte) bool

	GetState() State
	GetError() string
	GetInfo() string
	GetType() Type
	GetMode() Mode

	AddReadObserver(ReadObserver)
	AddStateObserver(StateObserver)
}

// base implements the bookkeeping shared by every concrete endpoint: state
// storage, observer registries, and dispatch. Concrete endpoints embed base
// and call its helpers from their own goroutines.
type base struct {
	typ  Type
	mode Mode

	mu        sync.RWMutex
	state     State
	errStr    string
	info      string
	readObs   []ReadObserver
	stateObs  []StateObserver
	framer    gnssmsg.Framer
	framerMu  sync.Mutex
	pending   []gnssmsg.Message
}

func newBase(typ Type, mode Mode, framer gnssmsg.Framer) base {
	return base{typ: typ, mode: mode, framer: framer}
}

func (b *base) GetType() Type { return b.typ }
func (b *base) GetMode() Mode { return b.mode }

func (b *base) GetState() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *base) GetError() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.errStr
}

func (b *base) GetInfo() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.info
}

func (b *base) AddReadObserver(fn ReadObserver) {
	b.mu.Lock()
	b.readObs = append(b.readObs, fn)
	b.mu.Unlock()
}

func (b *base) AddStateObserver(fn StateObserver) {
	b.mu.Lock()
	b.stateObs = append(b.stateObs, fn)
	b.mu.Unlock()
}

// setState transitions state, updates error/info and notifies observers.
// Called from the endpoint's own I/O goroutine.
func (b *base) setState(new State, errStr, info string) {
	b.mu.Lock()
	old := b.state
	b.state = new
	b.errStr = errStr
	b.info = info
	obs := append([]StateObserver(nil), b.stateObs...)
	b.mu.Unlock()

	for _, fn := range obs {
		fn(old, new, errStr, info)
	}
}

// notifyRead fires all registered read observers. Called after feeding new
// bytes to the framer.
func (b *base) notifyRead() {
	b.mu.RLock()
	obs := append([]ReadObserver(nil), b.readObs...)
	b.mu.RUnlock()
	for _, fn := range obs {
		fn()
	}
}

// feed appends raw bytes to the framer and drains every complete message it
// now holds into the pending queue, then notifies read observers once.
func (b *base) feed(data []byte) {
	b.framerMu.Lock()
	b.framer.Feed(data)
	for {
		msg, ok := b.framer.Next()
		if !ok {
			break
		}
		b.pending = append(b.pending, msg)
	}
	b.framerMu.Unlock()
	b.notifyRead()
}

// Read implements Stream.Read by popping the oldest buffered message.
func (b *base) Read() (gnssmsg.Message, bool) {
	b.framerMu.Lock()
	defer b.framerMu.Unlock()
	if len(b.pending) == 0 {
		return gnssmsg.Message{}, false
	}
	msg := b.pending[0]
	b.pending = b.pending[1:]
	return msg, true
}

// ParseError reports a malformed stream spec.
type ParseError struct {
	Spec   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("transport: invalid stream spec %q: %s", e.Spec, e.Reason)
}

// dialTimeout bounds TCP/NTRIP connection attempts so a dead peer cannot
// wedge Start() forever.
const dialTimeout = 5 * time.Second

// reconnectDelay is how long tcpcli/ntripcli/serial endpoints wait before
// retrying a failed connection attempt.
const reconnectDelay = 2 * time.Second
