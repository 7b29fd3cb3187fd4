// Package router implements the single cooperative loop that drains framed
// messages from every Stream and delivers them to the Streams on the other
// end of every Mux that references them.
package router

import (
	"sync/atomic"
	"time"

	"github.com/oinkzwurgl/streammux/core"
	"github.com/oinkzwurgl/streammux/filter"
	"github.com/oinkzwurgl/streammux/gnssmsg"
	"github.com/oinkzwurgl/streammux/logger"
	"github.com/oinkzwurgl/streammux/stats"
	"github.com/oinkzwurgl/streammux/transport"
)

// maxMsgsPerStream is the fairness bound: once a Stream has delivered this
// many messages within one loop iteration, the router moves on to the next
// stream rather than let one chatty source starve the others.
const maxMsgsPerStream = 10

// waitTimeout bounds how long an unproductive iteration sleeps before
// re-scanning every stream, in case a read observer's wakeup was missed.
const waitTimeout = 1000 * time.Millisecond

// Router owns the main read-route loop. It does not construct Streams or
// Muxes — those come from a *core.Collection built by the config layer —
// and it does not know about the HTTP API or the status publisher beyond
// the two hooks it is given at construction.
type Router struct {
	coll *core.Collection
	log  *logger.Logger

	wake chan struct{}

	abort    atomic.Bool
	fatalErr atomic.Value // string

	onFatal func(streamName string)
}

// New builds a Router over coll. onFatal, if non-nil, is invoked when a
// non-FILEIN stream transitions to CLOSED unexpectedly, after the abort flag
// has been set; it runs on the goroutine that reported the state change
// (the stream's transport goroutine), not on the router's loop.
func New(coll *core.Collection, log *logger.Logger, onFatal func(streamName string)) *Router {
	r := &Router{
		coll:    coll,
		log:     log,
		wake:    make(chan struct{}, 1),
		onFatal: onFatal,
	}
	return r
}

// WireObservers registers the read/state observers on every Stream's
// transport. Must be called before Start.
func (r *Router) WireObservers() {
	for _, s := range r.coll.Streams {
		stream := s
		stream.T.AddReadObserver(func() { r.signal() })
		stream.T.AddStateObserver(func(old, new transport.State, errStr, info string) {
			stream.ObserveState(old, new, errStr, info)
			if old != new && new == transport.CLOSED && !r.abort.Load() && stream.T.GetType() != transport.FILEIN {
				r.log.Warningf("Stream %s has closed unexpectedly", stream.Name)
				r.triggerFatal(stream.Name)
			}
		})
	}
}

func (r *Router) triggerFatal(streamName string) {
	r.fatalErr.CompareAndSwap(nil, streamName)
	r.abort.Store(true)
	r.signal()
	if r.onFatal != nil {
		r.onFatal(streamName)
	}
}

func (r *Router) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Abort requests a graceful shutdown; the loop exits after finishing its
// current iteration.
func (r *Router) Abort() {
	r.abort.Store(true)
	r.signal()
}

// FatalReason returns the name of the stream whose unexpected close caused a
// fatal shutdown, or "" if the router stopped for another reason.
func (r *Router) FatalReason() string {
	v := r.fatalErr.Load()
	if v == nil {
		return ""
	}
	return v.(string)
}

// StopStreams calls Stop on every Stream's transport in declaration order.
// Callers stop the status publisher and control API first.
func (r *Router) StopStreams() {
	for _, s := range r.coll.Streams {
		s.T.Stop()
	}
}

// Run executes the main loop until Abort is called or a fatal condition is
// triggered. It returns when the loop exits; it does not stop streams or
// other subsystems — callers own shutdown ordering.
func (r *Router) Run() {
	for !r.abort.Load() {
		progress := r.Step()
		if !progress && !r.abort.Load() {
			select {
			case <-r.wake:
			case <-time.After(waitTimeout):
			}
		}
	}
}

// Step performs one pass over every Stream, draining up to
// maxMsgsPerStream messages each and routing them through every Mux that
// references that stream as src or dst. It returns whether any message was
// routed. Exported so tests can drive the loop deterministically without
// racing a timer-driven Run.
func (r *Router) Step() bool {
	progress := false
	for _, s := range r.coll.Streams {
		n := 0
		for s.CanRead && s.Connected() && n < maxMsgsPerStream {
			msg, ok := s.T.Read()
			if !ok {
				break
			}
			n++
			if !s.EnaRead() {
				continue
			}
			if !s.FilterRead.Pass(msg.Name) {
				s.StatsRead.Filt(len(msg.Data))
				continue
			}
			s.StatsRead.Update(msg)

			for _, m := range r.coll.Muxes {
				switch {
				case m.Src == s && m.EnaFwd():
					r.deliver(msg, m.FilterFwd, &m.StatsFwd, m.Dst)
				case m.Dst == s && m.EnaRev():
					r.deliver(msg, m.FilterRev, &m.StatsRev, m.Src)
				}
			}
			progress = true
		}
	}
	return progress
}

// deliver applies the mux-direction filter, then — if the true destination
// peer is reachable — the peer's write-side filter and write, crediting
// counters at each gate. peer is the Stream on the OTHER end of the mux from
// the one that produced msg: for a forward delivery that is Dst, for a
// reverse delivery it is Src. Checking peer's own can_write/ena_write/
// connected state (not the source's) is the fix for the reverse-path bug
// recorded in DESIGN.md's Open Question decisions.
func (r *Router) deliver(msg gnssmsg.Message, muxFilter filter.Filter, muxStats *stats.Stats, peer *core.Stream) {
	if !muxFilter.Pass(msg.Name) {
		muxStats.Filt(len(msg.Data))
		return
	}

	if peer.CanWrite && peer.EnaWrite() && peer.Connected() {
		if peer.FilterWrite.Pass(msg.Name) {
			if peer.T.Write(msg.Data) {
				peer.StatsWrite.Update(msg)
			} else {
				peer.StatsWrite.Err()
			}
		} else {
			peer.StatsWrite.Filt(len(msg.Data))
		}
	}

	// The mux always counts what it forwarded past its own filter,
	// regardless of whether the peer was actually reachable.
	muxStats.Update(msg)
}
