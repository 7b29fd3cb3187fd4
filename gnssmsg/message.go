// Package gnssmsg defines the opaque framed-message type the router
// consumes from a transport.Stream, plus a minimal framer that recognizes
// NMEA sentence boundaries. It is deliberately not a full GNSS protocol
// decoder: per spec, the core never inspects message content beyond the
// name prefix and protocol tag, and full UBX/RTCM3/etc. decoding is a
// non-goal.
package gnssmsg

import "strings"

// Proto identifies which stats bucket a Message belongs to.
type Proto int

const (
	ProtoOther Proto = iota
	ProtoFPA
	ProtoFPB
	ProtoNMEA
	ProtoUBX
	ProtoRTCM3
	ProtoUNIB
	ProtoNOVB
	ProtoSPARTN
)

// Message is a single framed, self-delimited unit as produced by a
// transport's framer. Data is the raw bytes including framing, exactly what
// a peer's Write consumes. Name is a short string whose prefix identifies
// the message type (e.g. "UBX-NAV-PVT", "NMEA-GN-GGA"); only its prefix is
// ever inspected, never its payload.
type Message struct {
	Name  string
	Data  []byte
	Proto Proto
}

// Framer incrementally extracts Messages from a byte stream. Implementations
// are not required to be thread-safe; each transport.Stream owns exactly one
// Framer.
type Framer interface {
	// Feed appends newly-read bytes to the framer's internal buffer.
	Feed(b []byte)
	// Next extracts and returns the next complete Message, if any, along
	// with true. It returns false if no complete message is currently
	// buffered.
	Next() (Message, bool)
}

// NMEAFramer recognizes NMEA 0183 sentences ("$...*hh\r\n" or "\n") and
// falls back to splitting unrecognized input into bounded OTHER chunks so
// that no input, however malformed, stalls the pipeline forever.
type NMEAFramer struct {
	buf []byte
}

// NewNMEAFramer returns a ready-to-use NMEAFramer.
func NewNMEAFramer() *NMEAFramer { return &NMEAFramer{} }

func (f *NMEAFramer) Feed(b []byte) { f.buf = append(f.buf, b...) }

// maxOtherChunk bounds how much unrecognized input is coalesced into a
// single OTHER message before it is flushed, so a stream that never sends a
// newline cannot grow the buffer without bound forever.
const maxOtherChunk = 4096

func (f *NMEAFramer) Next() (Message, bool) {
	if len(f.buf) == 0 {
		return Message{}, false
	}

	if f.buf[0] == '$' {
		if end := nmeaEnd(f.buf); end >= 0 {
			frame := f.buf[:end]
			f.buf = f.buf[end:]
			return Message{Name: nmeaName(frame), Data: cloneBytes(frame), Proto: ProtoNMEA}, true
		}
		// Incomplete sentence buffered so far; wait for more data unless
		// it has grown unreasonably (garbage claiming to be NMEA).
		if len(f.buf) < maxOtherChunk {
			return Message{}, false
		}
	}

	// Fall back: anything up to (and including) the next newline, or up to
	// maxOtherChunk bytes, is an OTHER message.
	if idx := indexByte(f.buf, '\n'); idx >= 0 && idx < maxOtherChunk {
		frame := f.buf[:idx+1]
		f.buf = f.buf[idx+1:]
		return Message{Name: "OTHER", Data: cloneBytes(frame), Proto: ProtoOther}, true
	}
	if len(f.buf) >= maxOtherChunk {
		frame := f.buf[:maxOtherChunk]
		f.buf = f.buf[maxOtherChunk:]
		return Message{Name: "OTHER", Data: cloneBytes(frame), Proto: ProtoOther}, true
	}
	return Message{}, false
}

// nmeaEnd returns the index just past the terminating "\r\n" (or bare "\n")
// of a sentence starting at buf[0], or -1 if not yet complete.
func nmeaEnd(buf []byte) int {
	idx := indexByte(buf, '\n')
	if idx < 0 {
		return -1
	}
	return idx + 1
}

// nmeaName derives "NMEA-<talker>-<type>" from a raw sentence such as
// "$GNGGA,...*47\r\n": the two-letter talker ID and three-letter sentence
// type that follow the '$'.
func nmeaName(frame []byte) string {
	s := strings.TrimRight(string(frame), "\r\n")
	s = strings.TrimPrefix(s, "$")
	body, _, _ := strings.Cut(s, ",")
	if len(body) < 5 {
		return "NMEA-UNKNOWN"
	}
	talker, sentence := body[:2], body[2:]
	return "NMEA-" + talker + "-" + sentence
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
