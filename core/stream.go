// Package core implements the Stream and Mux data model: construction from
// CLI specs, name resolution, validation, and the atomically-mutable
// enable/filter/connection state the router reads and writes.
package core

import (
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oinkzwurgl/streammux/filter"
	"github.com/oinkzwurgl/streammux/stats"
	"github.com/oinkzwurgl/streammux/transport"
)

// nameRE matches the unique-name grammar shared by Streams and Muxes.
var nameRE = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,9}$`)

const stateHistoryCap = 5

// Stream wraps a transport.Stream with the core's enable flags, filters,
// connection tracking and stats. Everything here except the embedded
// transport is owned by core; the transport owns its own I/O goroutines.
type Stream struct {
	Name string
	T    transport.Stream

	CanRead, CanWrite bool

	enaRead  atomic.Bool
	enaWrite atomic.Bool

	FilterRead  filter.Filter
	FilterWrite filter.Filter

	connected atomic.Bool

	historyMu sync.Mutex
	history   []string

	StatsRead  stats.Stats
	StatsWrite stats.Stats
}

// NewStream builds a Stream around an already-constructed transport, with
// read/write enabled by default. Exported for tests that need to inject a
// fake transport.Stream directly; BuildStream is the path used for
// CLI-parsed specs.
func NewStream(name string, t transport.Stream, fr, fw filter.Filter) *Stream {
	mode := t.GetMode()
	s := &Stream{
		Name:       name,
		T:          t,
		CanRead:    mode != transport.WO,
		CanWrite:   mode != transport.RO,
		FilterRead: fr,
		FilterWrite: fw,
	}
	s.enaRead.Store(true)
	s.enaWrite.Store(true)
	return s
}

func (s *Stream) EnaRead() bool     { return s.enaRead.Load() }
func (s *Stream) SetEnaRead(v bool) { s.enaRead.Store(v) }

func (s *Stream) EnaWrite() bool     { return s.enaWrite.Load() }
func (s *Stream) SetEnaWrite(v bool) { s.enaWrite.Store(v) }

func (s *Stream) Connected() bool { return s.connected.Load() }

// History returns a snapshot copy of the bounded state-transition log.
func (s *Stream) History() []string {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

// ObserveState is the state-observer callback the router wires up at
// construction time (see router.Router.WireObservers): it maintains
// connected and the bounded history. The fatal-on-unexpected-close decision
// itself is the router's, not core's, since it needs access to the abort
// flag.
func (s *Stream) ObserveState(old, new transport.State, errStr, info string) {
	s.connected.Store(new == transport.CONNECTED)

	line := fmt.Sprintf("%s %s", time.Now().Format("15:04:05.0"), new)
	if errStr != "" {
		line += " [" + errStr + "]"
	}
	if info != "" {
		line += " (" + info + ")"
	}

	s.historyMu.Lock()
	s.history = append(s.history, line)
	if len(s.history) > stateHistoryCap {
		s.history = s.history[len(s.history)-stateHistoryCap:]
	}
	s.historyMu.Unlock()
}

// ValidationError reports a configuration problem detected while building
// streams/muxes from CLI specs; the process must exit before starting any
// stream.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "config: " + e.Reason }
