// Package simu is the client side of the simulator link.
// Protocol keeps a session with one simulated device over datagram Transport:
// connect handshake, sensor list and update exchanges, keepalive pings.
// Results are delivered asynchronously to Listener.
package simu

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/openvario/ovsim/log2"
	"github.com/openvario/ovsim/wire"
	"github.com/temoto/alive/v2"
	"github.com/temoto/atomic_clock"
)

const (
	DefaultTargetHost  = "127.0.0.1"
	DefaultTargetPort  = 45678
	DefaultBindPort    = 45679
	DefaultMaxTimeouts = 2
)

// Transport is datagram socket. RecvFrom must return within bounded time,
// error satisfying errors.IsTimeout means no data. Close must unblock RecvFrom.
type Transport interface {
	Open() error
	Bind(host string, port int) error
	Close() error
	SendTo(addr string, b []byte) error
	RecvFrom() ([]byte, net.Addr, error)
}

type Options struct {
	Log        *log2.Log
	TargetHost string
	TargetPort int
	BindHost   string
	BindPort   int
	// Receive timeouts in a row tolerated before acting.
	MaxTimeouts int
	// Deliver notification frames to Listener.OnValue.
	// Off by default, notifications are decoded and discarded.
	DispatchNotifications bool
}

func (o *Options) fillDefaults() {
	if o.TargetHost == "" {
		o.TargetHost = DefaultTargetHost
	}
	if o.TargetPort == 0 {
		o.TargetPort = DefaultTargetPort
	}
	if o.BindPort == 0 {
		o.BindPort = DefaultBindPort
	}
	if o.MaxTimeouts <= 0 {
		o.MaxTimeouts = DefaultMaxTimeouts
	}
}

// one receive loop per successful Connect
type loop struct {
	alive *alive.Alive
	// guarded by Protocol.mu, set while loop runs listener callback
	dispatching bool
}

type Protocol struct {
	opt       Options
	log       *log2.Log
	target    string
	transport Transport
	stat      Stat
	lastRecv  atomic_clock.Clock

	mu         sync.Mutex
	state      ConnectionState
	pending    PendingKind
	pingNumber uint32
	timeouts   int
	listener   Listener
	loop       *loop
}

func NewProtocol(opt Options, transport Transport) *Protocol {
	opt.fillDefaults()
	return &Protocol{
		opt:       opt,
		log:       opt.Log,
		target:    net.JoinHostPort(opt.TargetHost, strconv.Itoa(opt.TargetPort)),
		transport: transport,
	}
}

func (p *Protocol) Target() string { return p.target }
func (p *Protocol) Stat() *Stat    { return &p.stat }

// SinceLastRecv is zero before first datagram.
func (p *Protocol) SinceLastRecv() time.Duration {
	if p.lastRecv.IsZero() {
		return 0
	}
	return atomic_clock.Since(&p.lastRecv)
}

func (p *Protocol) State() ConnectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Protocol) Pending() PendingKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

func (p *Protocol) PingNumber() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pingNumber
}

// Connect starts handshake. Success means only that connect request was sent,
// outcome arrives in listener.OnConnect.
func (p *Protocol) Connect(listener Listener) error {
	if listener == nil {
		return ErrNilListener
	}
	if err := p.lockDisconnected(); err != nil {
		return err
	}
	defer p.mu.Unlock()

	if err := p.transport.Open(); err != nil {
		return errors.Annotate(err, "simu connect open")
	}
	if err := p.transport.Bind(p.opt.BindHost, p.opt.BindPort); err != nil {
		_ = p.transport.Close()
		return errors.Annotatef(err, "simu connect bind port=%d", p.opt.BindPort)
	}
	if err := p.sendLocked(&wire.ConnectRequest{}); err != nil {
		_ = p.transport.Close()
		return errors.Annotate(err, "simu connect")
	}

	l := &loop{alive: alive.NewAlive()}
	l.alive.Add(1)
	p.listener = listener
	p.pending = PendingNone
	p.timeouts = 0
	p.state = StateConnecting
	p.loop = l
	p.log.Infof("simu connecting target=%s", p.target)
	go p.worker(l, listener)
	return nil
}

// lockDisconnected returns with p.mu held when state is Disconnected
// and previous receive loop can no longer touch transport.
func (p *Protocol) lockDisconnected() error {
	for {
		p.mu.Lock()
		if p.state != StateDisconnected {
			p.mu.Unlock()
			return ErrAlreadyConnected
		}
		prev := p.loop
		// dispatching loop exits right after callback, before next RecvFrom
		if prev == nil || prev.dispatching || prev.alive.IsFinished() {
			return nil
		}
		p.mu.Unlock()
		prev.alive.Stop()
		prev.alive.Wait()
	}
}

// Close sends best-effort disconnect and closes transport.
// Returns transport close error.
func (p *Protocol) Close() error {
	p.mu.Lock()
	if p.state == StateDisconnected {
		p.mu.Unlock()
		return ErrNotConnected
	}
	err := p.closeLocked()
	l := p.loop
	join := !l.dispatching
	p.mu.Unlock()

	if join {
		l.alive.Stop()
		l.alive.Wait()
	}
	return err
}

func (p *Protocol) closeLocked() error {
	if err := p.sendLocked(&wire.DisconnectRequest{}); err != nil {
		p.log.Debugf("simu disconnect request err=%v", err)
	}
	p.state = StateDisconnected
	p.pending = PendingNone
	p.log.Infof("simu closed target=%s", p.target)
	return errors.Annotate(p.transport.Close(), "simu close")
}

func (p *Protocol) ListSensors() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkIdleLocked(); err != nil {
		return err
	}
	if err := p.sendLocked(&wire.ListSensorsRequest{}); err != nil {
		return errors.Annotate(err, "simu list_sensors")
	}
	p.timeouts = 0
	p.pending = PendingListSensors
	return nil
}

func (p *Protocol) UpdateSensor(id uint32, value SensorValue) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkIdleLocked(); err != nil {
		return err
	}
	wv, err := value.toWire()
	if err != nil {
		return errors.Annotatef(err, "simu update_sensor id=%d", id)
	}
	if err = p.sendLocked(&wire.UpdateSensorRequest{ID: id, Value: wv}); err != nil {
		return errors.Annotatef(err, "simu update_sensor id=%d", id)
	}
	p.timeouts = 0
	p.pending = PendingUpdateSensor
	return nil
}

// ping in flight does not block user requests
func (p *Protocol) checkIdleLocked() error {
	if p.state != StateConnected {
		return ErrNotConnected
	}
	if p.pending != PendingNone && p.pending != PendingPing {
		return errors.Annotatef(ErrRequestPending, "pending=%s", p.pending)
	}
	return nil
}

func (p *Protocol) sendLocked(r wire.Request) error {
	b, err := wire.MarshalRequest(r)
	if err != nil {
		return err
	}
	if err = p.transport.SendTo(p.target, b); err != nil {
		p.log.Errorf("simu send %s err=%v", r, err)
		return err
	}
	p.stat.Sent.Add(1)
	return nil
}

// stale loop must not touch session anymore
func (p *Protocol) staleLocked(l *loop) bool {
	return p.loop != l || p.state == StateDisconnected
}

func (p *Protocol) worker(l *loop, listener Listener) {
	defer l.alive.Done()
	for {
		b, from, err := p.transport.RecvFrom()

		p.mu.Lock()
		if p.staleLocked(l) {
			p.mu.Unlock()
			return
		}
		var notify func()
		if err == nil {
			notify = p.onDatagramLocked(b, from, listener)
		} else {
			if !errors.IsTimeout(err) {
				p.log.Debugf("simu recv err=%v", err)
			}
			notify = p.onTimeoutLocked(listener)
		}
		if notify == nil {
			p.mu.Unlock()
			continue
		}
		l.dispatching = true
		p.mu.Unlock()

		notify()

		p.mu.Lock()
		l.dispatching = false
		stale := p.staleLocked(l)
		p.mu.Unlock()
		if stale {
			return
		}
	}
}

func (p *Protocol) onDatagramLocked(b []byte, from net.Addr, listener Listener) func() {
	p.timeouts = 0
	p.lastRecv.SetNow()
	p.stat.Received.Add(1)

	f, err := wire.Decode(b)
	if err != nil {
		p.stat.Dropped.Add(1)
		p.log.Debugf("simu drop from=%v len=%d err=%v", from, len(b), err)
		return nil
	}
	if f.Notification != nil {
		p.stat.Notifications.Add(1)
		if !p.opt.DispatchNotifications || p.state != StateConnected {
			return nil
		}
		kind := f.Notification.Type
		values := make(map[string]SensorValue, len(f.Notification.Values))
		for k, v := range f.Notification.Values {
			values[k] = valueFromWire(v)
		}
		return func() { listener.OnValue(kind, values) }
	}

	if p.state == StateConnecting {
		if c, ok := f.Response.(*wire.ConnectResponse); ok && c.Accept {
			p.state = StateConnected
			p.pending = PendingNone
			p.log.Infof("simu connected target=%s", p.target)
			return func() { listener.OnConnect(true) }
		}
		return p.ignoreLocked(f)
	}

	switch r := f.Response.(type) {
	case *wire.DisconnectResponse:
		p.log.Infof("simu disconnect by peer")
		_ = p.closeLocked()
		return listener.OnClose

	case *wire.ListSensorsResponse:
		if p.pending != PendingListSensors {
			return p.ignoreLocked(f)
		}
		p.pending = PendingNone
		sensors := descriptorsFromWire(r.Sensors)
		return func() { listener.OnSensorsList(sensors, nil) }

	case *wire.UpdateSensorResponse:
		if p.pending != PendingUpdateSensor {
			return p.ignoreLocked(f)
		}
		p.pending = PendingNone
		success := r.Success
		return func() { listener.OnUpdateSensor(success, nil) }

	case *wire.PingResponse:
		if p.pending != PendingPing || r.Number != p.pingNumber {
			return p.ignoreLocked(f)
		}
		p.pending = PendingNone
		p.stat.Pongs.Add(1)
		p.log.Debugf("simu pong number=%d", r.Number)
		return nil
	}
	return p.ignoreLocked(f)
}

func (p *Protocol) ignoreLocked(f *wire.Frame) func() {
	p.stat.Ignored.Add(1)
	p.log.Debugf("simu ignore %s state=%s pending=%s", f, p.state, p.pending)
	return nil
}

func (p *Protocol) onTimeoutLocked(listener Listener) func() {
	p.timeouts++
	if p.timeouts <= p.opt.MaxTimeouts {
		return nil
	}
	p.stat.Timeouts.Add(1)

	switch p.state {
	case StateConnecting:
		p.log.Infof("simu connect timeout target=%s", p.target)
		_ = p.closeLocked()
		return func() { listener.OnConnect(false) }

	case StateConnected:
		p.timeouts = 0
		switch p.pending {
		case PendingNone:
			p.pingNumber++
			if err := p.sendLocked(&wire.PingRequest{Number: p.pingNumber}); err != nil {
				// number stays consumed, next probe after another timeout round
				p.log.Debugf("simu ping number=%d not sent", p.pingNumber)
				return nil
			}
			p.pending = PendingPing
			p.stat.Pings.Add(1)
			p.log.Debugf("simu ping number=%d", p.pingNumber)
			return nil

		case PendingListSensors:
			p.pending = PendingNone
			return func() { listener.OnSensorsList(nil, ErrNoResponse) }

		case PendingUpdateSensor:
			p.pending = PendingNone
			return func() { listener.OnUpdateSensor(false, ErrNoResponse) }

		case PendingPing:
			p.log.Infof("simu ping timeout number=%d", p.pingNumber)
			_ = p.closeLocked()
			return listener.OnClose
		}
	}
	return nil
}
