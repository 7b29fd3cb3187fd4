package transport

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/oinkzwurgl/streammux/gnssmsg"
)

// ntripClient fetches an NTRIP mountpoint's raw correction stream. NTRIP is
// plain HTTP/1.1 over TCP, so this issues a handwritten GET request (with
// optional Basic-Auth) over a raw dial rather than pulling in net/http —
// NTRIP casters generally don't speak HTTP/2 and the GNSS stream that
// follows the header is not well-formed HTTP body framing an http.Client
// would want to own.
type ntripClient struct {
	base
	host       string
	mountpoint string
	user, pass string

	mu     sync.Mutex
	conn   net.Conn
	closed bool

	startOnce sync.Once
}

// newNtripClient parses "user:pass@host/mountpoint" (user:pass@ optional).
func newNtripClient(addr string, _ options) (Stream, error) {
	userinfo := ""
	rest := addr
	if i := strings.Index(addr, "@"); i >= 0 {
		userinfo, rest = addr[:i], addr[i+1:]
	}
	host, mountpoint, ok := strings.Cut(rest, "/")
	if !ok {
		return nil, &ParseError{Spec: addr, Reason: "missing /mountpoint"}
	}
	user, pass := "", ""
	if userinfo != "" {
		user, pass, _ = strings.Cut(userinfo, ":")
	}
	return &ntripClient{
		base:       newBase(NTRIPCLI, RO, gnssmsg.NewNMEAFramer()),
		host:       host,
		mountpoint: mountpoint,
		user:       user,
		pass:       pass,
	}, nil
}

// Start is idempotent: calling it more than once does not spawn a second
// connect loop.
func (n *ntripClient) Start() error {
	n.startOnce.Do(func() { go n.connectLoop() })
	return nil
}

func (n *ntripClient) connectLoop() {
	for {
		n.mu.Lock()
		closed := n.closed
		n.mu.Unlock()
		if closed {
			return
		}

		n.setState(CONNECTING, "", "dialing "+n.host)
		if err := n.connectOnce(); err != nil {
			n.setState(CLOSED, err.Error(), "")
			time.Sleep(reconnectDelay)
			continue
		}

		n.mu.Lock()
		closed = n.closed
		n.mu.Unlock()
		if closed {
			return
		}
		time.Sleep(reconnectDelay)
	}
}

func (n *ntripClient) connectOnce() error {
	conn, err := net.DialTimeout("tcp", n.host, dialTimeout)
	if err != nil {
		return err
	}

	req := fmt.Sprintf("GET /%s HTTP/1.1\r\nHost: %s\r\nUser-Agent: NTRIP streammux\r\n",
		n.mountpoint, n.host)
	if n.user != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(n.user + ":" + n.pass))
		req += "Authorization: Basic " + cred + "\r\n"
	}
	req += "\r\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		conn.Close()
		return err
	}

	r := bufio.NewReader(conn)
	status, err := r.ReadString('\n')
	if err != nil {
		conn.Close()
		return err
	}
	if !strings.Contains(status, "200") && !strings.Contains(status, "ICY 200") {
		conn.Close()
		return fmt.Errorf("ntrip: unexpected status line %q", strings.TrimSpace(status))
	}
	// Drain the remaining header lines up to the blank line separating
	// headers from the correction stream body.
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			conn.Close()
			return err
		}
		if strings.TrimSpace(line) == "" {
			break
		}
	}

	n.mu.Lock()
	n.conn = conn
	n.mu.Unlock()
	n.setState(CONNECTED, "", n.host+"/"+n.mountpoint)
	n.readLoop(conn, r)
	return nil
}

func (n *ntripClient) readLoop(conn net.Conn, r *bufio.Reader) {
	buf := make([]byte, 4096)
	for {
		sz, err := r.Read(buf)
		if sz > 0 {
			n.feed(buf[:sz])
		}
		if err != nil {
			n.mu.Lock()
			current := n.conn == conn
			n.mu.Unlock()
			if current {
				n.setState(CLOSED, err.Error(), "")
			}
			return
		}
	}
}

func (n *ntripClient) Write(data []byte) bool { return false }

func (n *ntripClient) Stop() {
	n.mu.Lock()
	n.closed = true
	conn := n.conn
	n.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	n.setState(CLOSED, "", "stopped")
}
