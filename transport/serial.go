package transport

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/oinkzwurgl/streammux/gnssmsg"
)

// defaultBaud is used when a serial spec omits ":baudrate".
const defaultBaud = 115200

// serialPort reads and writes a local serial device, reopening it after an
// error (e.g. a USB GNSS receiver unplugged). Each error is reported as a
// transition to CLOSED, which the router treats as an unexpected close
// unless shutdown is already under way.
type serialPort struct {
	base
	device string
	baud   int

	mu     sync.Mutex
	port   serial.Port
	closed bool

	startOnce sync.Once
}

func newSerial(addr string, _ options) (Stream, error) {
	device, baudStr, hasBaud := strings.Cut(addr, ":")
	baud := defaultBaud
	if hasBaud {
		n, err := strconv.Atoi(baudStr)
		if err != nil {
			return nil, &ParseError{Spec: addr, Reason: "invalid baud rate"}
		}
		baud = n
	}
	return &serialPort{base: newBase(SERIAL, RW, gnssmsg.NewNMEAFramer()), device: device, baud: baud}, nil
}

// Start is idempotent: calling it more than once does not spawn a second
// connect loop.
func (s *serialPort) Start() error {
	s.startOnce.Do(func() { go s.connectLoop() })
	return nil
}

func (s *serialPort) connectLoop() {
	for {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}

		s.setState(CONNECTING, "", s.device)
		mode := &serial.Mode{BaudRate: s.baud}
		port, err := serial.Open(s.device, mode)
		if err != nil {
			s.setState(CLOSED, err.Error(), "")
			time.Sleep(reconnectDelay)
			continue
		}

		s.mu.Lock()
		s.port = port
		s.mu.Unlock()
		s.setState(CONNECTED, "", s.device)
		s.readLoop(port)

		s.mu.Lock()
		closed = s.closed
		s.mu.Unlock()
		if closed {
			return
		}
		time.Sleep(reconnectDelay)
	}
}

func (s *serialPort) readLoop(port serial.Port) {
	buf := make([]byte, 4096)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			s.feed(buf[:n])
		}
		if err != nil {
			s.mu.Lock()
			current := s.port == port
			s.mu.Unlock()
			if current {
				s.setState(CLOSED, err.Error(), "")
			}
			return
		}
	}
}

func (s *serialPort) Write(data []byte) bool {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return false
	}
	_, err := port.Write(data)
	return err == nil
}

func (s *serialPort) Stop() {
	s.mu.Lock()
	s.closed = true
	port := s.port
	s.mu.Unlock()
	if port != nil {
		port.Close()
	}
	s.setState(CLOSED, "", "stopped")
}
