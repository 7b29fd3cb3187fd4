package transport

import (
	"net"
	"sync"
	"time"

	"github.com/oinkzwurgl/streammux/gnssmsg"
)

// tcpServer serves one client connection at a time on addr. The next
// pending connection is accepted only after the current one has dropped;
// the drop itself is reported as a transition to CLOSED.
type tcpServer struct {
	base
	addr string

	mu       sync.Mutex
	ln       net.Listener
	conn     net.Conn
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newTCPServer(addr string, _ options) (Stream, error) {
	s := &tcpServer{base: newBase(TCPSVR, RW, gnssmsg.NewNMEAFramer()), addr: addr}
	return s, nil
}

func (s *tcpServer) Start() error {
	s.mu.Lock()
	started := s.ln != nil
	s.mu.Unlock()
	if started {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.setState(CLOSED, err.Error(), "")
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.setState(CONNECTING, "", "listening on "+s.addr)
	go s.acceptLoop()
	return nil
}

func (s *tcpServer) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
			}
			s.setState(CLOSED, err.Error(), "")
			return
		}
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.conn = conn
		s.mu.Unlock()
		s.setState(CONNECTED, "", conn.RemoteAddr().String())
		s.readLoop(conn)
	}
}

func (s *tcpServer) readLoop(conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.feed(buf[:n])
		}
		if err != nil {
			s.mu.Lock()
			current := s.conn == conn
			s.mu.Unlock()
			if current {
				s.setState(CLOSED, err.Error(), "")
			}
			return
		}
	}
}

// Addr returns the listener's bound address, valid after Start returns
// successfully. Not part of the Stream interface; useful for tests and
// specs that bind to port 0.
func (s *tcpServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *tcpServer) Write(data []byte) bool {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return false
	}
	_, err := conn.Write(data)
	return err == nil
}

func (s *tcpServer) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		if s.stopCh != nil {
			close(s.stopCh)
		}
		if s.ln != nil {
			s.ln.Close()
		}
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
		s.setState(CLOSED, "", "stopped")
	})
}

// tcpClient dials addr and reconnects on disconnect until Stop is called.
type tcpClient struct {
	base
	addr string

	mu     sync.Mutex
	conn   net.Conn
	closed bool

	startOnce sync.Once
}

func newTCPClient(addr string, _ options) (Stream, error) {
	return &tcpClient{base: newBase(TCPCLI, RW, gnssmsg.NewNMEAFramer()), addr: addr}, nil
}

// Start is idempotent: calling it more than once does not spawn a second
// connect loop.
func (c *tcpClient) Start() error {
	c.startOnce.Do(func() { go c.connectLoop() })
	return nil
}

func (c *tcpClient) connectLoop() {
	for {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		c.setState(CONNECTING, "", "dialing "+c.addr)
		conn, err := net.DialTimeout("tcp", c.addr, dialTimeout)
		if err != nil {
			c.setState(CLOSED, err.Error(), "")
			time.Sleep(reconnectDelay)
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.setState(CONNECTED, "", c.addr)
		c.readLoop(conn)

		c.mu.Lock()
		closed = c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		time.Sleep(reconnectDelay)
	}
}

func (c *tcpClient) readLoop(conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			c.feed(buf[:n])
		}
		if err != nil {
			c.mu.Lock()
			current := c.conn == conn
			c.mu.Unlock()
			if current {
				c.setState(CLOSED, err.Error(), "")
			}
			return
		}
	}
}

func (c *tcpClient) Write(data []byte) bool {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return false
	}
	_, err := conn.Write(data)
	return err == nil
}

func (c *tcpClient) Stop() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	c.setState(CLOSED, "", "stopped")
}
