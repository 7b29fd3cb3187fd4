package gnssmsg_test

import (
	"testing"

	"github.com/oinkzwurgl/streammux/gnssmsg"
)

func TestNMEAFramerExtractsName(t *testing.T) {
	f := gnssmsg.NewNMEAFramer()
	f.Feed([]byte("$GNGGA,123519,4807.038,N*47\r\n"))

	msg, ok := f.Next()
	if !ok {
		t.Fatal("expected a message")
	}
	if msg.Name != "NMEA-GN-GGA" {
		t.Errorf("Name = %q, want NMEA-GN-GGA", msg.Name)
	}
	if msg.Proto != gnssmsg.ProtoNMEA {
		t.Errorf("Proto = %v, want ProtoNMEA", msg.Proto)
	}
	if _, ok := f.Next(); ok {
		t.Error("expected no further message after a single sentence")
	}
}

func TestNMEAFramerMultipleSentences(t *testing.T) {
	f := gnssmsg.NewNMEAFramer()
	f.Feed([]byte("$GNGGA,1*47\r\n$GNRMC,2*11\r\n"))

	msg1, ok := f.Next()
	if !ok || msg1.Name != "NMEA-GN-GGA" {
		t.Fatalf("first message = %+v, ok=%v", msg1, ok)
	}
	msg2, ok := f.Next()
	if !ok || msg2.Name != "NMEA-GN-RMC" {
		t.Fatalf("second message = %+v, ok=%v", msg2, ok)
	}
}

func TestNMEAFramerIncompleteSentenceWaits(t *testing.T) {
	f := gnssmsg.NewNMEAFramer()
	f.Feed([]byte("$GNGGA,partial"))
	if _, ok := f.Next(); ok {
		t.Fatal("expected no message until sentence is terminated")
	}
	f.Feed([]byte("-rest*00\r\n"))
	msg, ok := f.Next()
	if !ok {
		t.Fatal("expected a message once terminated")
	}
	if msg.Name != "NMEA-GN-GGA" {
		t.Errorf("Name = %q, want NMEA-GN-GGA", msg.Name)
	}
}

func TestOtherFallback(t *testing.T) {
	f := gnssmsg.NewNMEAFramer()
	f.Feed([]byte("some unrelated protocol bytes\n"))
	msg, ok := f.Next()
	if !ok {
		t.Fatal("expected a fallback message")
	}
	if msg.Name != "OTHER" || msg.Proto != gnssmsg.ProtoOther {
		t.Errorf("got %+v, want OTHER/ProtoOther", msg)
	}
}

func TestDataIsCopiedNotAliased(t *testing.T) {
	f := gnssmsg.NewNMEAFramer()
	f.Feed([]byte("$GNGGA,1*47\r\n"))
	msg, ok := f.Next()
	if !ok {
		t.Fatal("expected a message")
	}
	msg.Data[0] = 'X'
	f.Feed([]byte("$GNGGA,2*11\r\n"))
	msg2, ok := f.Next()
	if !ok {
		t.Fatal("expected a second message")
	}
	if msg2.Data[0] != '$' {
		t.Error("mutating a previously returned message's Data corrupted the framer's buffer")
	}
}
