// Package udp is datagram transport for the simulator link.
package udp

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/openvario/ovsim/log2"
)

const (
	DefaultReadTimeout = 500 * time.Millisecond
	// max UDP payload over IPv4
	DefaultReadLimit = 65507
)

var (
	ErrNotOpen = errors.New("udp socket not open")
	ErrClosed  = errors.New("udp socket closed")
)

type Options struct {
	Log         *log2.Log
	ReadTimeout time.Duration
	ReadLimit   int
}

// Socket is reusable: Open/Bind/Close may be repeated.
type Socket struct {
	opt  Options
	mu   sync.Mutex
	conn *net.UDPConn
	open bool
	buf  []byte
}

func NewSocket(opt Options) *Socket {
	if opt.ReadTimeout <= 0 {
		opt.ReadTimeout = DefaultReadTimeout
	}
	if opt.ReadLimit <= 0 {
		opt.ReadLimit = DefaultReadLimit
	}
	return &Socket{opt: opt}
}

func (s *Socket) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return errors.AlreadyExistsf("udp socket open")
	}
	s.open = true
	s.buf = make([]byte, s.opt.ReadLimit)
	return nil
}

// Bind starts listening on host:port. Empty host means all interfaces, port 0 picks free port.
func (s *Socket) Bind(host string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	if s.conn != nil {
		return errors.AlreadyExistsf("udp socket bound to %s", s.conn.LocalAddr())
	}
	laddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return errors.Annotatef(err, "udp resolve bind host=%s port=%d", host, port)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return errors.Annotatef(err, "udp bind %s", laddr)
	}
	s.conn = conn
	s.opt.Log.Debugf("udp bound %s", conn.LocalAddr())
	return nil
}

// LocalAddr is nil until Bind.
func (s *Socket) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	s.open = false
	conn := s.conn
	s.conn = nil
	if conn == nil {
		return nil
	}
	return errors.Annotate(conn.Close(), "udp close")
}

func (s *Socket) SendTo(addr string, b []byte) error {
	conn, err := s.bound()
	if err != nil {
		return err
	}
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return errors.Annotatef(err, "udp resolve addr=%s", addr)
	}
	if _, err = conn.WriteToUDP(b, raddr); err != nil {
		return errors.Annotatef(err, "udp send addr=%s", addr)
	}
	return nil
}

// RecvFrom waits up to ReadTimeout for one datagram.
// No data in time returns error satisfying errors.IsTimeout.
// Concurrent Close unblocks it with ErrClosed.
func (s *Socket) RecvFrom() ([]byte, net.Addr, error) {
	conn, err := s.bound()
	if err != nil {
		return nil, nil, err
	}
	if err = conn.SetReadDeadline(time.Now().Add(s.opt.ReadTimeout)); err != nil {
		return nil, nil, errors.Annotate(err, "udp set deadline")
	}
	n, from, err := conn.ReadFromUDP(s.buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil, errors.Timeoutf("udp recv within %v", s.opt.ReadTimeout)
		}
		if s.closed(conn) {
			return nil, nil, ErrClosed
		}
		return nil, nil, errors.Annotate(err, "udp recv")
	}
	b := make([]byte, n)
	copy(b, s.buf[:n])
	return b, from, nil
}

func (s *Socket) closed(conn *net.UDPConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != conn
}

func (s *Socket) bound() (*net.UDPConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, ErrNotOpen
	}
	if s.conn == nil {
		return nil, errors.Annotate(ErrNotOpen, "not bound")
	}
	return s.conn, nil
}
