// Package status implements the 1 Hz snapshot publisher: it samples
// process stats, builds the status JSON report, hands it to the control
// API's broadcast hook, and atomically rewrites the optional report file.
package status

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/oinkzwurgl/streammux/core"
	"github.com/oinkzwurgl/streammux/logger"
	"github.com/oinkzwurgl/streammux/procstats"
	"github.com/oinkzwurgl/streammux/stats"
)

// tickInterval is how often the publisher samples and re-publishes.
const tickInterval = 1 * time.Second

// ProcSnapshot is the "proc" object of a status report.
type ProcSnapshot struct {
	Time    int64   `json:"time"`
	MemCurr uint64  `json:"mem_curr"`
	MemPeak uint64  `json:"mem_peak"`
	CPUCurr float64 `json:"cpu_curr"`
	CPUAvg  float64 `json:"cpu_avg"`
	CPUPeak float64 `json:"cpu_peak"`
	Uptime  float64 `json:"uptime"`
	PID     int     `json:"pid"`
}

// StreamSnapshot mirrors one element of the "strs" array.
type StreamSnapshot struct {
	Name      string           `json:"name"`
	Type      string           `json:"type"`
	Mode      string           `json:"mode"`
	State     string           `json:"state"`
	StateStrs []string         `json:"statestrs"`
	Error     string           `json:"error"`
	Info      string           `json:"info"`
	Filter    [2]string        `json:"filter"`
	Stats     [2]stats.Snapshot `json:"stats"`
	Can       [2]bool          `json:"can"`
	Ena       [2]bool          `json:"ena"`
}

// MuxSnapshot mirrors one element of the "muxs" array.
type MuxSnapshot struct {
	Name   string            `json:"name"`
	Can    [2]bool           `json:"can"`
	Ena    [2]bool           `json:"ena"`
	Src    string            `json:"src"`
	Dst    string            `json:"dst"`
	Filter [2]string         `json:"filter"`
	Stats  [2]stats.Snapshot `json:"stats"`
}

// Snapshot is the full report document. Api carries the same "api"
// discriminator field as every other control-API message.
type Snapshot struct {
	Api   string           `json:"api"`
	Proc  ProcSnapshot     `json:"proc"`
	Strs  []StreamSnapshot `json:"strs"`
	Muxes []MuxSnapshot    `json:"muxs"`
}

func build(coll *core.Collection, sampler *procstats.Sampler) (Snapshot, error) {
	sample, err := sampler.Sample()
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Api: "status",
		Proc: ProcSnapshot{
			Time:    sample.Time.Unix(),
			MemCurr: sample.MemCurr,
			MemPeak: sample.MemPeak,
			CPUCurr: sample.CPUCurr,
			CPUAvg:  sample.CPUAvg,
			CPUPeak: sample.CPUPeak,
			Uptime:  sample.Uptime.Seconds(),
			PID:     sample.PID,
		},
	}

	for _, s := range coll.Streams {
		snap.Strs = append(snap.Strs, StreamSnapshot{
			Name:      s.Name,
			Type:      s.T.GetType().String(),
			Mode:      modeString(s.CanRead, s.CanWrite),
			State:     s.T.GetState().String(),
			StateStrs: s.History(),
			Error:     s.T.GetError(),
			Info:      s.T.GetInfo(),
			Filter:    [2]string{s.FilterRead.String(), s.FilterWrite.String()},
			Stats:     [2]stats.Snapshot{s.StatsRead.Snapshot(), s.StatsWrite.Snapshot()},
			Can:       [2]bool{s.CanRead, s.CanWrite},
			Ena:       [2]bool{s.EnaRead(), s.EnaWrite()},
		})
	}

	for _, m := range coll.Muxes {
		snap.Muxes = append(snap.Muxes, MuxSnapshot{
			Name:   m.Name,
			Can:    [2]bool{core.CanFwd, core.CanRev},
			Ena:    [2]bool{m.EnaFwd(), m.EnaRev()},
			Src:    m.Src.Name,
			Dst:    m.Dst.Name,
			Filter: [2]string{m.FilterFwd.String(), m.FilterRev.String()},
			Stats:  [2]stats.Snapshot{m.StatsFwd.Snapshot(), m.StatsRev.Snapshot()},
		})
	}

	return snap, nil
}

func modeString(canRead, canWrite bool) string {
	switch {
	case canRead && canWrite:
		return "RW"
	case canRead:
		return "RO"
	case canWrite:
		return "WO"
	default:
		return "?"
	}
}

// Publisher runs the 1 Hz status snapshot tick.
type Publisher struct {
	coll       *core.Collection
	log        *logger.Logger
	sampler    *procstats.Sampler
	reportPath string
	broadcast  func(Snapshot)
	prettyJSON func() bool

	mu       sync.RWMutex
	latest   Snapshot
	hasOne   bool

	reportDisabled bool

	tickInterval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New builds a Publisher. reportPath may be empty to disable the report
// file. broadcast, if non-nil, is called with every new snapshot (wired to
// the control API's websocket hub). prettyJSON, if non-nil, is consulted
// each tick to decide whether the report file is indented (debug-only
// pretty-printing).
func New(coll *core.Collection, log *logger.Logger, reportPath string, broadcast func(Snapshot), prettyJSON func() bool) *Publisher {
	return &Publisher{
		coll:         coll,
		log:          log,
		sampler:      procstats.NewSampler(),
		reportPath:   reportPath,
		broadcast:    broadcast,
		prettyJSON:   prettyJSON,
		tickInterval: tickInterval,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// SetTickIntervalForTest overrides the publish period; must be called
// before Start. The production interval is fixed at 1 Hz.
func (p *Publisher) SetTickIntervalForTest(d time.Duration) {
	p.tickInterval = d
}

// Start begins the ticking goroutine.
func (p *Publisher) Start() {
	go p.run()
}

func (p *Publisher) run() {
	defer close(p.doneCh)
	t := time.NewTicker(p.tickInterval)
	defer t.Stop()
	for {
		p.tick()
		select {
		case <-p.stopCh:
			p.cleanup()
			return
		case <-t.C:
		}
	}
}

func (p *Publisher) tick() {
	snap, err := build(p.coll, p.sampler)
	if err != nil {
		p.log.Warningf("status: failed to sample process stats: %v", err)
		return
	}

	p.mu.Lock()
	p.latest = snap
	p.hasOne = true
	p.mu.Unlock()

	if p.broadcast != nil {
		p.broadcast(snap)
	}

	p.writeReport(snap)
}

func (p *Publisher) writeReport(snap Snapshot) {
	if p.reportPath == "" {
		return
	}
	p.mu.RLock()
	disabled := p.reportDisabled
	p.mu.RUnlock()
	if disabled {
		return
	}

	pretty := p.prettyJSON != nil && p.prettyJSON()
	var data []byte
	var err error
	if pretty {
		data, err = json.MarshalIndent(snap, "", "    ")
	} else {
		data, err = json.Marshal(snap)
	}
	if err != nil {
		p.disableReport(err)
		return
	}

	tmp := p.reportPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec
		p.disableReport(err)
		return
	}
	if err := os.Rename(tmp, p.reportPath); err != nil {
		p.disableReport(err)
		return
	}
}

func (p *Publisher) disableReport(err error) {
	p.log.Warningf("status: report file write failed, disabling further writes: %v", err)
	p.mu.Lock()
	p.reportDisabled = true
	p.mu.Unlock()
	os.Remove(p.reportPath) //nolint:errcheck
}

func (p *Publisher) cleanup() {
	if p.reportPath == "" {
		return
	}
	os.Remove(p.reportPath + ".tmp") //nolint:errcheck
	os.Remove(p.reportPath)          //nolint:errcheck
}

// Latest returns the most recently published snapshot and whether at least
// one tick has occurred yet.
func (p *Publisher) Latest() (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.hasOne
}

// Stop ends the ticking goroutine and removes any report files, blocking
// until cleanup has run.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.doneCh
}
