// Package procstats samples this process's own memory and CPU usage from
// /proc, in the style of a hand-rolled Linux-only sampler rather than a
// cross-platform library (none of the example repos in the retrieval pack
// pull in one for this purpose).
package procstats

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// clockTicksPerSec is sysconf(_SC_CLK_TCK); 100 on every Linux platform Go
// supports.
const clockTicksPerSec = 100

// Sample is one point-in-time reading.
type Sample struct {
	Time     time.Time
	MemCurr  uint64  // RSS, bytes
	MemPeak  uint64  // peak RSS, bytes
	CPUCurr  float64 // % CPU since the previous sample
	CPUAvg   float64 // % CPU averaged since process start
	CPUPeak  float64 // highest CPUCurr observed so far
	Uptime   time.Duration
	PID      int
}

// Sampler tracks the deltas needed to compute instantaneous vs. average CPU
// percentages across successive Sample calls.
type Sampler struct {
	startTime   time.Time
	lastTime    time.Time
	lastCPUTime time.Duration
	totalCPU0   time.Duration
	cpuPeak     float64
	pid         int
}

// NewSampler creates a Sampler anchored to the current time and this
// process's PID.
func NewSampler() *Sampler {
	now := time.Now()
	return &Sampler{startTime: now, lastTime: now, pid: os.Getpid()}
}

// Sample reads /proc/self/status and /proc/self/stat and returns a new
// Sample. Returns an error if either file cannot be read or parsed; callers
// should treat that as "stats temporarily unavailable", not fatal.
func (s *Sampler) Sample() (Sample, error) {
	now := time.Now()

	memCurr, memPeak, err := readMem()
	if err != nil {
		return Sample{}, err
	}

	cpuTime, err := readCPUTime()
	if err != nil {
		return Sample{}, err
	}

	var cpuCurr float64
	elapsed := now.Sub(s.lastTime)
	if elapsed > 0 {
		cpuCurr = 100 * (cpuTime - s.lastCPUTime).Seconds() / elapsed.Seconds()
	}
	uptime := now.Sub(s.startTime)
	var cpuAvg float64
	if uptime > 0 {
		cpuAvg = 100 * cpuTime.Seconds() / uptime.Seconds()
	}
	if cpuCurr > s.cpuPeak {
		s.cpuPeak = cpuCurr
	}

	s.lastTime = now
	s.lastCPUTime = cpuTime

	return Sample{
		Time:    now,
		MemCurr: memCurr,
		MemPeak: memPeak,
		CPUCurr: cpuCurr,
		CPUAvg:  cpuAvg,
		CPUPeak: s.cpuPeak,
		Uptime:  uptime,
		PID:     s.pid,
	}, nil
}

// readMem parses VmRSS and VmHWM (peak RSS) from /proc/self/status, both
// reported in kB by the kernel.
func readMem() (curr, peak uint64, err error) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "VmRSS:"):
			curr, err = parseKBField(line)
			if err != nil {
				return 0, 0, err
			}
		case strings.HasPrefix(line, "VmHWM:"):
			peak, err = parseKBField(line)
			if err != nil {
				return 0, 0, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return 0, 0, err
	}
	return curr * 1024, peak * 1024, nil
}

func parseKBField(line string) (uint64, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, fmt.Errorf("procstats: malformed line %q", line)
	}
	return strconv.ParseUint(fields[1], 10, 64)
}

// readCPUTime parses utime+stime (fields 14 and 15, 1-based) from
// /proc/self/stat and converts clock ticks to a time.Duration.
func readCPUTime() (time.Duration, error) {
	data, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		return 0, err
	}
	// Field 2 (comm) may itself contain spaces inside parentheses; skip
	// past the closing paren before splitting the remaining whitespace-
	// separated fields.
	line := string(data)
	parenEnd := strings.LastIndexByte(line, ')')
	if parenEnd < 0 {
		return 0, fmt.Errorf("procstats: malformed /proc/self/stat")
	}
	fields := strings.Fields(line[parenEnd+1:])
	// fields[0] is field 3 (state); utime is field 14 => fields[11],
	// stime is field 15 => fields[12].
	if len(fields) < 13 {
		return 0, fmt.Errorf("procstats: too few fields in /proc/self/stat")
	}
	utime, err := strconv.ParseUint(fields[11], 10, 64)
	if err != nil {
		return 0, err
	}
	stime, err := strconv.ParseUint(fields[12], 10, 64)
	if err != nil {
		return 0, err
	}
	ticks := utime + stime
	return time.Duration(ticks) * time.Second / clockTicksPerSec, nil
}
