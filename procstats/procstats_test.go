package procstats_test

import (
	"os"
	"testing"
	"time"

	"github.com/oinkzwurgl/streammux/procstats"
)

func TestSampleReturnsPlausibleValues(t *testing.T) {
	if _, err := os.Stat("/proc/self/status"); err != nil {
		t.Skip("no /proc filesystem available on this platform")
	}

	s := procstats.NewSampler()
	sample, err := s.Sample()
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if sample.MemCurr == 0 {
		t.Error("MemCurr should be non-zero for a running process")
	}
	if sample.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", sample.PID, os.Getpid())
	}
	if sample.Uptime < 0 {
		t.Error("Uptime should not be negative")
	}
}

func TestSecondSampleComputesCPUDelta(t *testing.T) {
	if _, err := os.Stat("/proc/self/status"); err != nil {
		t.Skip("no /proc filesystem available on this platform")
	}

	s := procstats.NewSampler()
	if _, err := s.Sample(); err != nil {
		t.Fatalf("first Sample: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	sample, err := s.Sample()
	if err != nil {
		t.Fatalf("second Sample: %v", err)
	}
	if sample.CPUCurr < 0 {
		t.Error("CPUCurr should never be negative")
	}
	if sample.CPUPeak < sample.CPUCurr {
		t.Error("CPUPeak should be at least the latest CPUCurr")
	}
}
