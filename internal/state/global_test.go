package state

import (
	"context"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/openvario/ovsim/internal/config"
	"github.com/openvario/ovsim/internal/tele"
	"github.com/openvario/ovsim/log2"
	"github.com/openvario/ovsim/simu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }

type topicRecorder struct {
	sync.Mutex
	topics []string
}

func (r *topicRecorder) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	r.Lock()
	r.topics = append(r.topics, topic)
	r.Unlock()
	return doneToken{}
}

func TestContext(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { NewContext(nil) })
	assert.Panics(t, func() { GetGlobal(context.Background()) })
	assert.Panics(t, func() { GetGlobal(context.WithValue(context.Background(), ContextKey, "junk")) })

	ctx, g := NewContext(log2.NewTest(t, log2.LDebug))
	assert.Equal(t, g, GetGlobal(ctx))
}

func TestInit(t *testing.T) {
	t.Parallel()

	ctx, g := NewContext(log2.NewTest(t, log2.LDebug))
	defer g.Stop()
	cfg := config.Default()
	require.NoError(t, g.Init(ctx, cfg))
	require.NotNil(t, g.Protocol)
	require.NotNil(t, g.Socket)
	assert.Nil(t, g.Publisher)
	assert.Equal(t, "127.0.0.1:45678", g.Protocol.Target())
	assert.Equal(t, simu.StateDisconnected, g.Protocol.State())

	err := g.Init(ctx, cfg)
	assert.True(t, errors.IsAlreadyExists(err), "err=%v", err)

	// tele disabled, listener passes through
	next := simu.NopListener{}
	assert.Equal(t, next, g.Listener(next))
	assert.NoError(t, g.Shutdown())
}

func TestInitInvalid(t *testing.T) {
	t.Parallel()

	ctx, g := NewContext(log2.NewTest(t, log2.LDebug))
	cfg := config.Default()
	cfg.Target.Port = 70000
	err := g.Init(ctx, cfg)
	require.Error(t, err)
	assert.True(t, errors.IsNotValid(errors.Cause(err)), "err=%v", err)
	assert.Nil(t, g.Protocol)
}

func TestListenerMirror(t *testing.T) {
	t.Parallel()

	ctx, g := NewContext(log2.NewTest(t, log2.LDebug))
	defer g.Stop()
	cfg := config.Default()
	cfg.Tele.TopicPrefix = "glider"
	require.NoError(t, g.Init(ctx, cfg))
	rec := &topicRecorder{}
	g.Publisher = rec

	l := g.Listener(simu.NopListener{})
	_, ok := l.(*tele.Mirror)
	require.True(t, ok)
	l.OnConnect(true)
	l.OnClose()
	require.NoError(t, g.Shutdown())
	rec.Lock()
	defer rec.Unlock()
	assert.Equal(t, []string{"glider/connect", "glider/close"}, rec.topics)
}

func TestStopWait(t *testing.T) {
	t.Parallel()

	_, g := NewContext(log2.NewTest(t, log2.LDebug))
	require.True(t, g.Alive.Add(1))
	assert.False(t, g.StopWait(10*time.Millisecond))
	g.Alive.Done()
	assert.True(t, g.StopWait(time.Second))
}
