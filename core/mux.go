package core

import (
	"sync/atomic"

	"github.com/oinkzwurgl/streammux/filter"
	"github.com/oinkzwurgl/streammux/stats"
)

// Mux is a directed connection between two distinct Streams. CanFwd/CanRev
// are always true (kept for symmetry with Stream.CanRead/CanWrite) and are
// not settable at runtime.
type Mux struct {
	Name string
	Src  *Stream
	Dst  *Stream

	enaFwd atomic.Bool
	enaRev atomic.Bool

	FilterFwd filter.Filter
	FilterRev filter.Filter

	StatsFwd stats.Stats
	StatsRev stats.Stats
}

const (
	CanFwd = true
	CanRev = true
)

// NewMux builds a Mux directly; exported for tests. BuildMux is the path
// used for CLI-parsed specs.
func NewMux(name string, src, dst *Stream, ff, fr filter.Filter) *Mux {
	m := &Mux{Name: name, Src: src, Dst: dst, FilterFwd: ff, FilterRev: fr}
	m.enaFwd.Store(true)
	m.enaRev.Store(true)
	return m
}

func (m *Mux) EnaFwd() bool     { return m.enaFwd.Load() }
func (m *Mux) SetEnaFwd(v bool) { m.enaFwd.Store(v) }

func (m *Mux) EnaRev() bool     { return m.enaRev.Load() }
func (m *Mux) SetEnaRev(v bool) { m.enaRev.Store(v) }
