package core_test

import (
	"testing"

	"github.com/oinkzwurgl/streammux/core"
)

func TestBuildSimpleMux(t *testing.T) {
	c, err := core.Build(
		[]string{"tcpsvr://:12345,N=a", "tcpcli://localhost:12346,N=b"},
		[]string{"a=b"},
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(c.Streams) != 2 || len(c.Muxes) != 1 {
		t.Fatalf("got %d streams, %d muxes", len(c.Streams), len(c.Muxes))
	}
	m := c.Muxes[0]
	if m.Name != "mux1" {
		t.Errorf("default mux name = %q, want mux1", m.Name)
	}
	if m.Src.Name != "a" || m.Dst.Name != "b" {
		t.Errorf("src=%q dst=%q, want a/b", m.Src.Name, m.Dst.Name)
	}
	if !m.EnaFwd() || !m.EnaRev() {
		t.Error("mux should default enabled both directions")
	}
}

func TestBuildByNumericIndex(t *testing.T) {
	c, err := core.Build(
		[]string{"tcpsvr://:12345", "tcpcli://localhost:12346"},
		[]string{"1=2,N=link"},
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.Muxes[0].Src != c.Streams[0] || c.Muxes[0].Dst != c.Streams[1] {
		t.Error("numeric src/dst did not resolve to declaration order")
	}
}

func TestDefaultStreamNameDerivedFromType(t *testing.T) {
	c, err := core.Build(
		[]string{"tcpsvr://:12345", "tcpcli://localhost:12346"},
		[]string{"1=2"},
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.Streams[0].Name != "tcpsvr1" {
		t.Errorf("default name = %q, want tcpsvr1", c.Streams[0].Name)
	}
}

func TestDuplicateStreamNameRejected(t *testing.T) {
	_, err := core.Build(
		[]string{"tcpsvr://:12345,N=a", "tcpcli://localhost:12346,N=a"},
		[]string{"a=a"},
	)
	if err == nil {
		t.Fatal("expected duplicate-name error")
	}
}

func TestSameSrcDstRejected(t *testing.T) {
	_, err := core.Build(
		[]string{"tcpsvr://:12345,N=a", "tcpcli://localhost:12346,N=b"},
		[]string{"a=a"},
	)
	if err == nil {
		t.Fatal("expected src==dst error")
	}
}

func TestUnusedStreamRejected(t *testing.T) {
	_, err := core.Build(
		[]string{"tcpsvr://:12345,N=a", "tcpcli://localhost:12346,N=b", "tcpcli://localhost:12347,N=c"},
		[]string{"a=b"},
	)
	if err == nil {
		t.Fatal("expected unused-stream error")
	}
}

func TestNoStreamsOrMuxesRejected(t *testing.T) {
	if _, err := core.Build(nil, nil); err == nil {
		t.Fatal("expected error for zero streams/muxes")
	}
	if _, err := core.Build([]string{"tcpsvr://:12345,N=a"}, nil); err == nil {
		t.Fatal("expected error for zero muxes")
	}
}

func TestStreamEnableOptionsAndFilters(t *testing.T) {
	c, err := core.Build(
		[]string{
			"tcpsvr://:12345,N=a,ER=off,FW=UBX-NAV/*",
			"tcpcli://localhost:12346,N=b",
		},
		[]string{"a=b"},
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	a := c.FindStream("a")
	if a.EnaRead() {
		t.Error("ER=off should disable read")
	}
	if !a.EnaWrite() {
		t.Error("EW defaults to on")
	}
	if a.FilterWrite.Len() != 2 {
		t.Errorf("FilterWrite.Len() = %d, want 2", a.FilterWrite.Len())
	}
}

func TestBadFilterOptionRejected(t *testing.T) {
	_, err := core.Build(
		[]string{"tcpsvr://:12345,N=a,FR=!", "tcpcli://localhost:12346,N=b"},
		[]string{"a=b"},
	)
	if err == nil {
		t.Fatal("expected bad FR option error")
	}
}

func TestUnresolvedMuxEndpointRejected(t *testing.T) {
	_, err := core.Build(
		[]string{"tcpsvr://:12345,N=a", "tcpcli://localhost:12346,N=b"},
		[]string{"a=nosuch"},
	)
	if err == nil {
		t.Fatal("expected unresolved dst error")
	}
}

func TestFindStreamAndMuxByNameOrIndex(t *testing.T) {
	c, err := core.Build(
		[]string{"tcpsvr://:12345,N=a", "tcpcli://localhost:12346,N=b"},
		[]string{"a=b,N=link"},
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.FindStream("1") != c.Streams[0] {
		t.Error("FindStream(\"1\") mismatch")
	}
	if c.FindMux("link") != c.Muxes[0] {
		t.Error("FindMux(\"link\") mismatch")
	}
	if c.FindMux("1") != c.Muxes[0] {
		t.Error("FindMux(\"1\") mismatch")
	}
	if c.FindStream("nosuch") != nil {
		t.Error("FindStream(\"nosuch\") should be nil")
	}
}
