// Package stats implements the fixed per-direction counter set maintained
// for every Stream and Mux side. Counters are lock-free atomics: they are
// written only by the Router and read only by the Status publisher, which
// may observe a momentarily inconsistent combination of fields. This is
// acceptable because counters are monotone and used only for display.
package stats

import (
	"sync/atomic"

	"github.com/oinkzwurgl/streammux/gnssmsg"
)

// Stats holds one direction's counters (e.g. a Stream's stats_read, or a
// Mux's stats_fwd). All fields are accessed exclusively through atomic
// operations.
type Stats struct {
	nMsgs uint64
	sMsgs uint64

	nFPA uint64
	sFPA uint64
	nFPB uint64
	sFPB uint64
	nNMEA uint64
	sNMEA uint64
	nUBX uint64
	sUBX uint64
	nRTCM3 uint64
	sRTCM3 uint64
	nUNIB uint64
	sUNIB uint64
	nNOVB uint64
	sNOVB uint64
	nSPARTN uint64
	sSPARTN uint64
	nOther uint64
	sOther uint64

	nErr  uint64
	nFilt uint64
	sFilt uint64
}

// Update records a successfully-admitted message: it increments the generic
// totals plus the bucket matching msg.Proto.
func (s *Stats) Update(msg gnssmsg.Message) {
	n := uint64(len(msg.Data))
	atomic.AddUint64(&s.nMsgs, 1)
	atomic.AddUint64(&s.sMsgs, n)

	switch msg.Proto {
	case gnssmsg.ProtoFPA:
		atomic.AddUint64(&s.nFPA, 1)
		atomic.AddUint64(&s.sFPA, n)
	case gnssmsg.ProtoFPB:
		atomic.AddUint64(&s.nFPB, 1)
		atomic.AddUint64(&s.sFPB, n)
	case gnssmsg.ProtoNMEA:
		atomic.AddUint64(&s.nNMEA, 1)
		atomic.AddUint64(&s.sNMEA, n)
	case gnssmsg.ProtoUBX:
		atomic.AddUint64(&s.nUBX, 1)
		atomic.AddUint64(&s.sUBX, n)
	case gnssmsg.ProtoRTCM3:
		atomic.AddUint64(&s.nRTCM3, 1)
		atomic.AddUint64(&s.sRTCM3, n)
	case gnssmsg.ProtoUNIB:
		atomic.AddUint64(&s.nUNIB, 1)
		atomic.AddUint64(&s.sUNIB, n)
	case gnssmsg.ProtoNOVB:
		atomic.AddUint64(&s.nNOVB, 1)
		atomic.AddUint64(&s.sNOVB, n)
	case gnssmsg.ProtoSPARTN:
		atomic.AddUint64(&s.nSPARTN, 1)
		atomic.AddUint64(&s.sSPARTN, n)
	default:
		atomic.AddUint64(&s.nOther, 1)
		atomic.AddUint64(&s.sOther, n)
	}
}

// Err increments the error counter (e.g. a failed Write).
func (s *Stats) Err() { atomic.AddUint64(&s.nErr, 1) }

// Filt increments the filter-drop counters for a message of byte length n.
func (s *Stats) Filt(n int) {
	atomic.AddUint64(&s.nFilt, 1)
	atomic.AddUint64(&s.sFilt, uint64(n))
}

// Snapshot is a point-in-time, JSON-serializable copy of a Stats instance.
type Snapshot struct {
	NMsgs uint64 `json:"n_msgs"`
	SMsgs uint64 `json:"s_msgs"`

	NFpa    uint64 `json:"n_fpa"`
	SFpa    uint64 `json:"s_fpa"`
	NFpb    uint64 `json:"n_fpb"`
	SFpb    uint64 `json:"s_fpb"`
	NNmea   uint64 `json:"n_nmea"`
	SNmea   uint64 `json:"s_nmea"`
	NUbx    uint64 `json:"n_ubx"`
	SUbx    uint64 `json:"s_ubx"`
	NRtcm3  uint64 `json:"n_rtcm3"`
	SRtcm3  uint64 `json:"s_rtcm3"`
	NUnib   uint64 `json:"n_unib"`
	SUnib   uint64 `json:"s_unib"`
	NNovb   uint64 `json:"n_novb"`
	SNovb   uint64 `json:"s_novb"`
	NSpartn uint64 `json:"n_spartn"`
	SSpartn uint64 `json:"s_spartn"`
	NOther  uint64 `json:"n_other"`
	SOther  uint64 `json:"s_other"`

	NErr  uint64 `json:"n_err"`
	NFilt uint64 `json:"n_filt"`
	SFilt uint64 `json:"s_filt"`
}

// Snapshot takes a lock-free, possibly-torn read of every counter. Torn
// reads are acceptable: see package doc.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		NMsgs:   atomic.LoadUint64(&s.nMsgs),
		SMsgs:   atomic.LoadUint64(&s.sMsgs),
		NFpa:    atomic.LoadUint64(&s.nFPA),
		SFpa:    atomic.LoadUint64(&s.sFPA),
		NFpb:    atomic.LoadUint64(&s.nFPB),
		SFpb:    atomic.LoadUint64(&s.sFPB),
		NNmea:   atomic.LoadUint64(&s.nNMEA),
		SNmea:   atomic.LoadUint64(&s.sNMEA),
		NUbx:    atomic.LoadUint64(&s.nUBX),
		SUbx:    atomic.LoadUint64(&s.sUBX),
		NRtcm3:  atomic.LoadUint64(&s.nRTCM3),
		SRtcm3:  atomic.LoadUint64(&s.sRTCM3),
		NUnib:   atomic.LoadUint64(&s.nUNIB),
		SUnib:   atomic.LoadUint64(&s.sUNIB),
		NNovb:   atomic.LoadUint64(&s.nNOVB),
		SNovb:   atomic.LoadUint64(&s.sNOVB),
		NSpartn: atomic.LoadUint64(&s.nSPARTN),
		SSpartn: atomic.LoadUint64(&s.sSPARTN),
		NOther:  atomic.LoadUint64(&s.nOther),
		SOther:  atomic.LoadUint64(&s.sOther),
		NErr:    atomic.LoadUint64(&s.nErr),
		NFilt:   atomic.LoadUint64(&s.nFilt),
		SFilt:   atomic.LoadUint64(&s.sFilt),
	}
}
