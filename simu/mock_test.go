package simu

import (
	"encoding/hex"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/openvario/ovsim/wire"
	"github.com/stretchr/testify/require"
)

const testWait = 2 * time.Second

var errMockClosed = errors.New("mock transport closed")

// recv items: nil is receive timeout, mockSync only proves loop is back in RecvFrom
type mockItem []byte

var mockSync = mockItem("sync")

type mockTransport struct {
	t     testing.TB
	inbox chan mockItem
	sent  chan []byte

	mu      sync.Mutex
	open    bool
	closed  chan struct{}
	opens   int
	closes  int
	openErr error
	bindErr error
	sendErr error
}

func newMockTransport(t testing.TB) *mockTransport {
	return &mockTransport{
		t:      t,
		inbox:  make(chan mockItem),
		sent:   make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (m *mockTransport) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return m.openErr
	}
	m.open = true
	m.opens++
	m.closed = make(chan struct{})
	return nil
}

func (m *mockTransport) Bind(host string, port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bindErr
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return errMockClosed
	}
	m.open = false
	m.closes++
	close(m.closed)
	return nil
}

func (m *mockTransport) SendTo(addr string, b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	if !m.open {
		return errMockClosed
	}
	m.sent <- append([]byte(nil), b...)
	return nil
}

func (m *mockTransport) RecvFrom() ([]byte, net.Addr, error) {
	m.mu.Lock()
	closed := m.closed
	open := m.open
	m.mu.Unlock()
	if !open {
		return nil, nil, errMockClosed
	}
	for {
		select {
		case item := <-m.inbox:
			if item == nil {
				return nil, nil, errors.Timeoutf("mock recv")
			}
			if string(item) == string(mockSync) {
				continue
			}
			return item, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: DefaultTargetPort}, nil
		case <-closed:
			return nil, nil, errMockClosed
		}
	}
}

func (m *mockTransport) push(item mockItem) {
	m.t.Helper()
	select {
	case m.inbox <- item:
	case <-time.After(testWait):
		m.t.Fatal("receive loop not reading")
	}
}

// tick simulates n receive timeouts
func (m *mockTransport) tick(n int) {
	m.t.Helper()
	for i := 0; i < n; i++ {
		m.push(nil)
	}
}

// sync returns after previous item is fully processed, callbacks included
func (m *mockTransport) sync() {
	m.t.Helper()
	m.push(mockSync)
}

func (m *mockTransport) pushResponse(r wire.Response) {
	m.t.Helper()
	b, err := wire.EncodeResponse(r)
	require.NoError(m.t, err)
	m.push(b)
}

func (m *mockTransport) expectSent(expectHex string) {
	m.t.Helper()
	select {
	case b := <-m.sent:
		require.Equal(m.t, expectHex, hex.EncodeToString(b))
	case <-time.After(testWait):
		m.t.Fatalf("expected send %s", expectHex)
	}
}

func (m *mockTransport) expectNothingSent() {
	m.t.Helper()
	select {
	case b := <-m.sent:
		m.t.Fatalf("unexpected send %x", b)
	default:
	}
}

func (m *mockTransport) setSendErr(err error) {
	m.mu.Lock()
	m.sendErr = err
	m.mu.Unlock()
}

func (m *mockTransport) counts() (opens, closes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens, m.closes
}

type listEvent struct {
	sensors []SensorDescriptor
	err     error
}

type updateEvent struct {
	success bool
	err     error
}

type valueEvent struct {
	kind   string
	values map[string]SensorValue
}

type recordListener struct {
	t       testing.TB
	connect chan bool
	close   chan struct{}
	list    chan listEvent
	update  chan updateEvent
	value   chan valueEvent
	// optional hooks run inside callbacks
	onConnect func(bool)
	onClose   func()
}

func newRecordListener(t testing.TB) *recordListener {
	return &recordListener{
		t:       t,
		connect: make(chan bool, 16),
		close:   make(chan struct{}, 16),
		list:    make(chan listEvent, 16),
		update:  make(chan updateEvent, 16),
		value:   make(chan valueEvent, 16),
	}
}

func (r *recordListener) OnConnect(success bool) {
	if r.onConnect != nil {
		r.onConnect(success)
	}
	r.connect <- success
}

func (r *recordListener) OnClose() {
	if r.onClose != nil {
		r.onClose()
	}
	r.close <- struct{}{}
}

func (r *recordListener) OnSensorsList(sensors []SensorDescriptor, err error) {
	r.list <- listEvent{sensors, err}
}

func (r *recordListener) OnUpdateSensor(success bool, err error) {
	r.update <- updateEvent{success, err}
}

func (r *recordListener) OnValue(kind string, values map[string]SensorValue) {
	r.value <- valueEvent{kind, values}
}

func (r *recordListener) expectConnect() bool {
	r.t.Helper()
	select {
	case x := <-r.connect:
		return x
	case <-time.After(testWait):
		r.t.Fatal("expected OnConnect")
	}
	return false
}

func (r *recordListener) expectClose() {
	r.t.Helper()
	select {
	case <-r.close:
	case <-time.After(testWait):
		r.t.Fatal("expected OnClose")
	}
}

func (r *recordListener) expectList() listEvent {
	r.t.Helper()
	select {
	case e := <-r.list:
		return e
	case <-time.After(testWait):
		r.t.Fatal("expected OnSensorsList")
	}
	return listEvent{}
}

func (r *recordListener) expectUpdate() updateEvent {
	r.t.Helper()
	select {
	case e := <-r.update:
		return e
	case <-time.After(testWait):
		r.t.Fatal("expected OnUpdateSensor")
	}
	return updateEvent{}
}

// expectQuiet checks no callback happened so far
func (r *recordListener) expectQuiet() {
	r.t.Helper()
	require.Len(r.t, r.connect, 0)
	require.Len(r.t, r.close, 0)
	require.Len(r.t, r.list, 0)
	require.Len(r.t, r.update, 0)
	require.Len(r.t, r.value, 0)
}
