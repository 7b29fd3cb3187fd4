package router_test

import (
	"testing"

	"github.com/oinkzwurgl/streammux/core"
	"github.com/oinkzwurgl/streammux/filter"
	"github.com/oinkzwurgl/streammux/gnssmsg"
	"github.com/oinkzwurgl/streammux/logger"
	"github.com/oinkzwurgl/streammux/router"
	"github.com/oinkzwurgl/streammux/transport"
)

func noopLogger() *logger.Logger { return logger.New(logger.LevelFatal) }

func buildPair(t *testing.T) (*core.Collection, *fakeStream, *fakeStream) {
	t.Helper()
	a := newFake(transport.TCPSVR, transport.RW)
	b := newFake(transport.TCPCLI, transport.RW)

	sa := core.NewStream("a", a, filter.Filter{}, filter.Filter{})
	sb := core.NewStream("b", b, filter.Filter{}, filter.Filter{})
	m := core.NewMux("mux1", sa, sb, filter.Filter{}, filter.Filter{})

	return &core.Collection{Streams: []*core.Stream{sa, sb}, Muxes: []*core.Mux{m}}, a, b
}

func TestForwardDeliveryWhenBothConnected(t *testing.T) {
	coll, a, b := buildPair(t)
	r := router.New(coll, noopLogger(), nil)
	r.WireObservers()

	a.setConnected()
	b.setConnected()
	a.push(gnssmsg.Message{Name: "NMEA-GN-GGA", Data: []byte("hello"), Proto: gnssmsg.ProtoNMEA})

	r.Step()

	if b.writeCount() != 1 {
		t.Fatalf("b received %d writes, want 1", b.writeCount())
	}
	if coll.Streams[0].StatsRead.Snapshot().NMsgs != 1 {
		t.Error("a.stats_read.n_msgs should be 1")
	}
	if coll.Muxes[0].StatsFwd.Snapshot().NMsgs != 1 {
		t.Error("mux.stats_fwd.n_msgs should be 1")
	}
	if coll.Streams[1].StatsWrite.Snapshot().NMsgs != 1 {
		t.Error("b.stats_write.n_msgs should be 1")
	}
}

func TestReverseDeliveryChecksPeerNotSource(t *testing.T) {
	// Regression test for the reverse-path bug: a reverse delivery (b -> a)
	// must gate on a's (the true destination) capability/enable/connected
	// state, not b's.
	coll, a, b := buildPair(t)
	r := router.New(coll, noopLogger(), nil)
	r.WireObservers()

	b.setConnected()
	// a (the reverse peer / true destination) is NOT connected.
	b.push(gnssmsg.Message{Name: "UBX-NAV-PVT", Data: []byte("x"), Proto: gnssmsg.ProtoUBX})

	r.Step()

	if a.writeCount() != 0 {
		t.Fatalf("a should not receive a write while disconnected, got %d", a.writeCount())
	}
	// The mux still counts what it forwarded past its own filter,
	// regardless of peer reachability.
	if coll.Muxes[0].StatsRev.Snapshot().NMsgs != 1 {
		t.Error("mux.stats_rev.n_msgs should be 1 even though peer was unreachable")
	}
}

func TestReverseDeliverySucceedsWhenDestConnected(t *testing.T) {
	coll, a, b := buildPair(t)
	r := router.New(coll, noopLogger(), nil)
	r.WireObservers()

	a.setConnected()
	b.setConnected()
	b.push(gnssmsg.Message{Name: "UBX-NAV-PVT", Data: []byte("x"), Proto: gnssmsg.ProtoUBX})

	r.Step()

	if a.writeCount() != 1 {
		t.Fatalf("a should receive 1 write, got %d", a.writeCount())
	}
}

func TestEnaReadFalseSilentlyDiscards(t *testing.T) {
	coll, a, b := buildPair(t)
	coll.Streams[0].SetEnaRead(false)
	r := router.New(coll, noopLogger(), nil)
	r.WireObservers()

	a.setConnected()
	b.setConnected()
	a.push(gnssmsg.Message{Name: "NMEA-GN-GGA", Data: []byte("x"), Proto: gnssmsg.ProtoNMEA})

	r.Step()

	if b.writeCount() != 0 {
		t.Error("disabled read should not forward anything")
	}
	if coll.Streams[0].StatsRead.Snapshot().NMsgs != 0 {
		t.Error("disabled read should not update stats_read either")
	}
}

func TestFilterReadDropsBeforeMux(t *testing.T) {
	coll, a, b := buildPair(t)
	fr, err := filter.Parse("!NMEA-GN/*")
	if err != nil {
		t.Fatal(err)
	}
	coll.Streams[0].FilterRead = fr
	r := router.New(coll, noopLogger(), nil)
	r.WireObservers()

	a.setConnected()
	b.setConnected()
	a.push(gnssmsg.Message{Name: "NMEA-GN-GGA", Data: []byte("x"), Proto: gnssmsg.ProtoNMEA})

	r.Step()

	if b.writeCount() != 0 {
		t.Error("filtered read should not reach the peer")
	}
	if coll.Streams[0].StatsRead.Snapshot().NFilt != 1 {
		t.Error("stats_read.n_filt should be 1")
	}
}

func TestMuxFilterDropsCountsOnMuxOnly(t *testing.T) {
	coll, a, b := buildPair(t)
	ff, err := filter.Parse("!*")
	if err != nil {
		t.Fatal(err)
	}
	coll.Muxes[0].FilterFwd = ff
	r := router.New(coll, noopLogger(), nil)
	r.WireObservers()

	a.setConnected()
	b.setConnected()
	a.push(gnssmsg.Message{Name: "NMEA-GN-GGA", Data: []byte("x"), Proto: gnssmsg.ProtoNMEA})

	r.Step()

	if b.writeCount() != 0 {
		t.Error("mux-filtered message should not reach peer")
	}
	if coll.Muxes[0].StatsFwd.Snapshot().NFilt != 1 {
		t.Error("mux.stats_fwd.n_filt should be 1")
	}
	if coll.Streams[1].StatsWrite.Snapshot().NFilt != 0 {
		t.Error("peer write-filter stats should be untouched by a mux-level drop")
	}
}

func TestWriteFailureCountsPeerError(t *testing.T) {
	coll, a, b := buildPair(t)
	b.setWriteOK(false)
	r := router.New(coll, noopLogger(), nil)
	r.WireObservers()

	a.setConnected()
	b.setConnected()
	a.push(gnssmsg.Message{Name: "NMEA-GN-GGA", Data: []byte("x"), Proto: gnssmsg.ProtoNMEA})

	r.Step()

	if coll.Streams[1].StatsWrite.Snapshot().NErr != 1 {
		t.Error("b.stats_write.n_err should be 1 after a failed write")
	}
	if coll.Muxes[0].StatsFwd.Snapshot().NMsgs != 1 {
		t.Error("mux still counts the would-have-forwarded message")
	}
}

func TestDisabledMuxDirectionBlocksDelivery(t *testing.T) {
	coll, a, b := buildPair(t)
	coll.Muxes[0].SetEnaFwd(false)
	r := router.New(coll, noopLogger(), nil)
	r.WireObservers()

	a.setConnected()
	b.setConnected()
	a.push(gnssmsg.Message{Name: "NMEA-GN-GGA", Data: []byte("x"), Proto: gnssmsg.ProtoNMEA})

	r.Step()

	if b.writeCount() != 0 {
		t.Error("disabled mux direction should block delivery entirely")
	}
}

func TestUnexpectedCloseTriggersFatal(t *testing.T) {
	coll, a, b := buildPair(t)
	var fatalStream string
	r := router.New(coll, noopLogger(), func(name string) { fatalStream = name })
	r.WireObservers()

	a.setConnected()
	a.setClosed("connection reset")

	if fatalStream != "a" {
		t.Fatalf("expected fatal callback for stream a, got %q", fatalStream)
	}

	_ = b
}

func TestFileinUnexpectedCloseIsNotFatal(t *testing.T) {
	a := newFake(transport.FILEIN, transport.RO)
	b := newFake(transport.TCPCLI, transport.RW)
	sa := core.NewStream("a", a, filter.Filter{}, filter.Filter{})
	sb := core.NewStream("b", b, filter.Filter{}, filter.Filter{})
	m := core.NewMux("mux1", sa, sb, filter.Filter{}, filter.Filter{})
	coll := &core.Collection{Streams: []*core.Stream{sa, sb}, Muxes: []*core.Mux{m}}

	called := false
	r := router.New(coll, noopLogger(), func(name string) { called = true })
	r.WireObservers()

	a.setConnected()
	a.setClosed("end of file")

	if called {
		t.Error("FILEIN closing should never trigger a fatal condition")
	}
}

func TestFairnessBoundStopsDrainingOneStream(t *testing.T) {
	coll, a, b := buildPair(t)
	r := router.New(coll, noopLogger(), nil)
	r.WireObservers()

	a.setConnected()
	b.setConnected()
	for i := 0; i < 25; i++ {
		a.push(gnssmsg.Message{Name: "NMEA-GN-GGA", Data: []byte("x"), Proto: gnssmsg.ProtoNMEA})
	}

	r.Step()

	if got := b.writeCount(); got != 10 {
		t.Errorf("expected exactly maxMsgsPerStream=10 drained in one Step, got %d", got)
	}
}
