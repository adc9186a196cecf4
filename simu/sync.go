package simu

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/openvario/ovsim/helpers"
)

const DefaultSyncTimeout = time.Second

type ValueFunc func(kind string, values map[string]SensorValue)

type listResult struct {
	sensors []SensorDescriptor
	err     error
}

type updateResult struct {
	success bool
	err     error
}

// SyncProtocol turns Protocol exchanges into blocking calls.
// One call at a time, concurrent calls get ErrRequestPending.
type SyncProtocol struct {
	NopListener
	p         *Protocol
	listener  Listener
	onValue   ValueFunc
	timeout   time.Duration
	connected uint32

	mu      sync.Mutex
	waiting waitKind
	future  *helpers.Future
}

var _ Listener = &SyncProtocol{}

// NewSyncProtocol takes ownership of p listener. onValue may be nil,
// it only receives values when p was created with DispatchNotifications.
// timeout<=0 means DefaultSyncTimeout, it applies on top of context deadline.
func NewSyncProtocol(p *Protocol, timeout time.Duration, onValue ValueFunc) *SyncProtocol {
	if timeout <= 0 {
		timeout = DefaultSyncTimeout
	}
	s := &SyncProtocol{p: p, timeout: timeout, onValue: onValue}
	s.listener = s
	return s
}

// Wrap installs wrap(s) as the Protocol listener on next Connect.
// The wrapper must forward every event to s.
func (s *SyncProtocol) Wrap(wrap func(Listener) Listener) {
	s.mu.Lock()
	s.listener = wrap(s)
	s.mu.Unlock()
}

func (s *SyncProtocol) Protocol() *Protocol { return s.p }
func (s *SyncProtocol) Connected() bool     { return atomic.LoadUint32(&s.connected) == 1 }

type waitKind int

const (
	waitNone waitKind = iota
	waitConnect
	waitList
	waitUpdate
)

func (w waitKind) String() string {
	switch w {
	case waitConnect:
		return "connect"
	case waitList:
		return "list_sensors"
	case waitUpdate:
		return "update_sensor"
	}
	return "none"
}

// Connect returns nil only after simulator accepted connection.
// If no answer arrives in time the connect attempt is abandoned.
func (s *SyncProtocol) Connect(ctx context.Context) error {
	f, err := s.expect(waitConnect)
	if err != nil {
		return err
	}
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if err = s.p.Connect(listener); err != nil {
		s.release(f)
		return err
	}
	r, err := s.wait(ctx, f)
	if err != nil {
		_ = s.Close()
		return errors.Annotatef(ErrConnectFailed, "%v", err)
	}
	if !r.(bool) {
		return ErrConnectFailed
	}
	return nil
}

func (s *SyncProtocol) Close() error {
	err := s.p.Close()
	atomic.StoreUint32(&s.connected, 0)
	return err
}

// ListSensors error is ErrNoResponse when simulator did not answer
// within engine timeouts, or timeout error (errors.IsTimeout) when wait expired first.
func (s *SyncProtocol) ListSensors(ctx context.Context) ([]SensorDescriptor, error) {
	f, err := s.expect(waitList)
	if err != nil {
		return nil, err
	}
	if err = s.p.ListSensors(); err != nil {
		s.release(f)
		return nil, err
	}
	r, err := s.wait(ctx, f)
	if err != nil {
		return nil, err
	}
	lr := r.(listResult)
	return lr.sensors, lr.err
}

func (s *SyncProtocol) UpdateSensor(ctx context.Context, id uint32, value SensorValue) (bool, error) {
	f, err := s.expect(waitUpdate)
	if err != nil {
		return false, err
	}
	if err = s.p.UpdateSensor(id, value); err != nil {
		s.release(f)
		return false, err
	}
	r, err := s.wait(ctx, f)
	if err != nil {
		return false, err
	}
	ur := r.(updateResult)
	return ur.success, ur.err
}

func (s *SyncProtocol) OnConnect(success bool) {
	if !success {
		s.complete(waitConnect, false)
		return
	}
	atomic.StoreUint32(&s.connected, 1)
	if !s.complete(waitConnect, true) {
		// accepted after Connect gave up, session is already closed
		atomic.StoreUint32(&s.connected, 0)
	}
}

func (s *SyncProtocol) OnClose() {
	atomic.StoreUint32(&s.connected, 0)
	s.mu.Lock()
	f := s.future
	s.mu.Unlock()
	if f != nil {
		f.Cancel(nil)
	}
}

func (s *SyncProtocol) OnSensorsList(sensors []SensorDescriptor, err error) {
	s.complete(waitList, listResult{sensors, err})
}

func (s *SyncProtocol) OnUpdateSensor(success bool, err error) {
	s.complete(waitUpdate, updateResult{success, err})
}

func (s *SyncProtocol) OnValue(kind string, values map[string]SensorValue) {
	if s.onValue != nil {
		s.onValue(kind, values)
	}
}

func (s *SyncProtocol) expect(kind waitKind) (*helpers.Future, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.future != nil {
		return nil, errors.Annotatef(ErrRequestPending, "waiting=%s", s.waiting)
	}
	s.waiting = kind
	s.future = helpers.NewFuture()
	return s.future, nil
}

func (s *SyncProtocol) release(f *helpers.Future) {
	s.mu.Lock()
	if s.future == f {
		s.future = nil
		s.waiting = waitNone
	}
	s.mu.Unlock()
}

// complete reports whether a waiter of kind received result.
func (s *SyncProtocol) complete(kind waitKind, result interface{}) bool {
	s.mu.Lock()
	f := s.future
	ok := f != nil && s.waiting == kind
	s.mu.Unlock()
	return ok && f.Complete(result)
}

func (s *SyncProtocol) wait(ctx context.Context, f *helpers.Future) (interface{}, error) {
	s.mu.Lock()
	what := s.waiting
	s.mu.Unlock()
	defer s.release(f)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	r, err := f.Wait(ctx)
	switch {
	case err == nil:
		return r, nil
	case err == helpers.ErrFutureCancelled:
		return nil, errors.Annotatef(ErrNotConnected, "simu %s", what)
	case err == context.DeadlineExceeded:
		return nil, errors.Timeoutf("simu %s response", what)
	}
	return nil, errors.Annotatef(err, "simu %s", what)
}
