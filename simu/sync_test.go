package simu

import (
	"context"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/openvario/ovsim/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serve answers requests like simulator until stop is closed. reply returning nil stays silent.
func (m *mockTransport) serve(stop <-chan struct{}, reply func(wire.Request) wire.Response) {
	for {
		select {
		case b := <-m.sent:
			r, err := wire.UnmarshalRequest(b)
			if err != nil || r == nil {
				continue
			}
			resp := reply(r)
			if resp == nil {
				continue
			}
			out, err := wire.EncodeResponse(resp)
			if err != nil {
				continue
			}
			select {
			case m.inbox <- out:
			case <-stop:
				return
			}
		case <-stop:
			return
		}
	}
}

func healthySimulator(r wire.Request) wire.Response {
	switch r := r.(type) {
	case *wire.ConnectRequest:
		return &wire.ConnectResponse{Accept: true}
	case *wire.ListSensorsRequest:
		return &wire.ListSensorsResponse{Sensors: []wire.Sensor{
			{ID: 2, Name: "temp", Type: 2, ValueType: 2},
			{ID: 3, Name: "baro", Type: 1, ValueType: 1},
		}}
	case *wire.UpdateSensorRequest:
		return &wire.UpdateSensorResponse{Success: r.ID == 3}
	case *wire.PingRequest:
		return &wire.PingResponse{Number: r.Number}
	}
	return nil
}

func TestSyncSession(t *testing.T) {
	t.Parallel()

	p, m := newTestProtocol(t, Options{})
	stop := make(chan struct{})
	defer close(stop)
	go m.serve(stop, healthySimulator)

	ctx := context.Background()
	s := NewSyncProtocol(p, 0, nil)
	assert.Equal(t, DefaultSyncTimeout, s.timeout)
	assert.False(t, s.Connected())
	require.NoError(t, s.Connect(ctx))
	assert.True(t, s.Connected())
	assert.Equal(t, StateConnected, p.State())

	sensors, err := s.ListSensors(ctx)
	require.NoError(t, err)
	require.Len(t, sensors, 2)
	assert.Equal(t, "baro", sensors[1].Name)

	ok, err := s.UpdateSensor(ctx, 3, Uint(100000))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.UpdateSensor(ctx, 9, Uint(1))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Close())
	assert.False(t, s.Connected())
	assert.Equal(t, StateDisconnected, p.State())
}

func TestSyncConnectFailed(t *testing.T) {
	t.Parallel()

	p, m := newTestProtocol(t, Options{})
	s := NewSyncProtocol(p, 50*time.Millisecond, nil)
	err := s.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, ErrConnectFailed, errors.Cause(err))
	assert.False(t, s.Connected())
	assert.Equal(t, StateDisconnected, p.State())
	m.expectSent(hexConnect)
	m.expectSent(hexDisconnect)

	// engine error is returned as is
	m.sendErr = errors.New("unreachable")
	err = s.Connect(context.Background())
	require.Error(t, err)
	assert.NotEqual(t, ErrConnectFailed, errors.Cause(err))
}

func TestSyncWaitTimeout(t *testing.T) {
	t.Parallel()

	p, m := newTestProtocol(t, Options{})
	s := NewSyncProtocol(p, 50*time.Millisecond, nil)
	errch := make(chan error, 1)
	go func() { errch <- s.Connect(context.Background()) }()
	m.expectSent(hexConnect)
	m.pushResponse(&wire.ConnectResponse{Accept: true})
	require.NoError(t, <-errch)
	defer s.Close()

	_, err := s.ListSensors(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err), "err=%v", err)
	m.expectSent(hexList)

	// engine still waits for list response
	_, err = s.UpdateSensor(context.Background(), 3, Uint(1))
	assert.Equal(t, ErrRequestPending, errors.Cause(err))
}

func TestSyncBusy(t *testing.T) {
	t.Parallel()

	p, _ := newTestProtocol(t, Options{})
	s := NewSyncProtocol(p, 0, nil)
	f, err := s.expect(waitList)
	require.NoError(t, err)
	_, err = s.ListSensors(context.Background())
	assert.Equal(t, ErrRequestPending, errors.Cause(err))
	assert.Equal(t, ErrRequestPending, errors.Cause(s.Connect(context.Background())))
	s.release(f)
	_, err = s.ListSensors(context.Background())
	assert.Equal(t, ErrNotConnected, err)
}

func TestSyncClosedByPeer(t *testing.T) {
	t.Parallel()

	p, m := newTestProtocol(t, Options{})
	s := NewSyncProtocol(p, testWait, nil)
	errch := make(chan error, 1)
	go func() { errch <- s.Connect(context.Background()) }()
	m.expectSent(hexConnect)
	m.pushResponse(&wire.ConnectResponse{Accept: true})
	require.NoError(t, <-errch)

	go func() {
		_, err := s.ListSensors(context.Background())
		errch <- err
	}()
	m.expectSent(hexList)
	m.pushResponse(&wire.DisconnectResponse{})
	err := <-errch
	assert.Equal(t, ErrNotConnected, errors.Cause(err))
	assert.False(t, s.Connected())
}

func TestSyncValues(t *testing.T) {
	t.Parallel()

	p, m := newTestProtocol(t, Options{DispatchNotifications: true})
	values := make(chan valueEvent, 1)
	s := NewSyncProtocol(p, testWait, func(kind string, v map[string]SensorValue) {
		values <- valueEvent{kind, v}
	})
	errch := make(chan error, 1)
	go func() { errch <- s.Connect(context.Background()) }()
	m.expectSent(hexConnect)
	m.pushResponse(&wire.ConnectResponse{Accept: true})
	require.NoError(t, <-errch)
	defer s.Close()

	n, err := wire.EncodeNotification(&wire.Notification{Type: "temp", Values: map[string]wire.Value{"t": wire.IntValue(-200)}})
	require.NoError(t, err)
	m.push(n)
	m.sync()
	e := <-values
	assert.Equal(t, "temp", e.kind)
	assert.Equal(t, Int(-200), e.values["t"])
}

type connectCounter struct {
	Listener
	connects chan bool
}

func (c *connectCounter) OnConnect(success bool) {
	c.connects <- success
	c.Listener.OnConnect(success)
}

func TestSyncWrap(t *testing.T) {
	t.Parallel()

	p, m := newTestProtocol(t, Options{})
	stop := make(chan struct{})
	defer close(stop)
	go m.serve(stop, healthySimulator)

	s := NewSyncProtocol(p, testWait, nil)
	cc := &connectCounter{connects: make(chan bool, 1)}
	s.Wrap(func(next Listener) Listener {
		cc.Listener = next
		return cc
	})
	require.NoError(t, s.Connect(context.Background()))
	assert.True(t, <-cc.connects)
	assert.True(t, s.Connected())
	require.NoError(t, s.Close())
}

type lateConnect struct {
	Listener
	release chan struct{}
	done    chan struct{}
}

func (l *lateConnect) OnConnect(success bool) {
	<-l.release
	l.Listener.OnConnect(success)
	close(l.done)
}

func TestSyncConnectAcceptedLate(t *testing.T) {
	t.Parallel()

	p, m := newTestProtocol(t, Options{})
	s := NewSyncProtocol(p, 50*time.Millisecond, nil)
	late := &lateConnect{release: make(chan struct{}), done: make(chan struct{})}
	s.Wrap(func(next Listener) Listener {
		late.Listener = next
		return late
	})
	errch := make(chan error, 1)
	go func() { errch <- s.Connect(context.Background()) }()
	m.expectSent(hexConnect)
	m.pushResponse(&wire.ConnectResponse{Accept: true})

	err := <-errch
	assert.Equal(t, ErrConnectFailed, errors.Cause(err))
	m.expectSent(hexDisconnect)
	close(late.release)
	select {
	case <-late.done:
	case <-time.After(testWait):
		t.Fatal("late OnConnect not delivered")
	}
	assert.False(t, s.Connected())
	assert.Equal(t, StateDisconnected, p.State())
}
