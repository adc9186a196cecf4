package state

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/openvario/ovsim/helpers"
	"github.com/openvario/ovsim/internal/config"
	"github.com/openvario/ovsim/internal/tele"
	"github.com/openvario/ovsim/log2"
	"github.com/openvario/ovsim/simu"
	"github.com/openvario/ovsim/udp"
	"github.com/temoto/alive/v2"
)

// Global holds everything one ovsim process runs.
type Global struct {
	Alive    *alive.Alive
	Config   *config.Config
	Log      *log2.Log
	Protocol *simu.Protocol
	Socket   *udp.Socket

	// nil unless tele.enable
	Publisher tele.Publisher

	mqtt    mqtt.Client
	mu      sync.Mutex
	mirrors []*tele.Mirror
	inited  bool
}

const ContextKey = "run/state-global"

func NewContext(log *log2.Log) (context.Context, *Global) {
	if log == nil {
		panic("code error NewContext() log=nil")
	}
	g := &Global{
		Alive: alive.NewAlive(),
		Log:   log,
	}
	ctx := context.WithValue(context.Background(), ContextKey, g)
	return ctx, g
}

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

// If `Init` fails, consider `Global` is in broken state.
func (g *Global) Init(ctx context.Context, cfg *config.Config) error {
	if g.inited {
		return errors.AlreadyExistsf("state init")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Annotate(err, "config")
	}
	g.Config = cfg
	g.Log.Debugf("config target=%s:%d bind=%s:%d", cfg.Target.Host, cfg.Target.Port, cfg.BindHost, cfg.BindPort)

	if cfg.Tele.Enable {
		client, err := tele.Dial(g.Log.Clone(log2.LInfo), cfg.Tele)
		if err != nil {
			return errors.Annotate(err, "tele init")
		}
		g.mqtt = client
		g.Publisher = client
	}

	g.Socket = udp.NewSocket(cfg.UDPOptions(g.Log))
	g.Protocol = simu.NewProtocol(cfg.Options(g.Log), g.Socket)
	g.inited = true

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigch:
			g.Log.Infof("signal=%v stopping", sig)
			g.Stop()
		case <-g.Alive.StopChan():
		}
		signal.Stop(sigch)
	}()
	return nil
}

func (g *Global) MustInit(ctx context.Context, cfg *config.Config) {
	if err := g.Init(ctx, cfg); err != nil {
		g.Fatal(err)
	}
}

// Listener returns next wrapped in tele mirror when telemetry is enabled.
func (g *Global) Listener(next simu.Listener) simu.Listener {
	if g.Publisher == nil {
		return next
	}
	m := tele.NewMirror(tele.MirrorOptions{
		Log:         g.Log,
		TopicPrefix: g.Config.Tele.TopicPrefix,
		QoS:         byte(g.Config.Tele.QoS),
	}, g.Publisher, next)
	g.mu.Lock()
	g.mirrors = append(g.mirrors, m)
	g.mu.Unlock()
	return m
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.Log.Error(errors.ErrorStack(err))
	}
}

func (g *Global) Fatal(err error, args ...interface{}) {
	if err != nil {
		g.Error(err, args...)
		g.StopWait(5 * time.Second)
		g.Log.Fatal(err)
		os.Exit(1)
	}
}

func (g *Global) Stop() {
	g.Alive.Stop()
}

func (g *Global) StopWait(timeout time.Duration) bool {
	g.Alive.Stop()
	select {
	case <-g.Alive.WaitChan():
		return true
	case <-time.After(timeout):
		return false
	}
}

// Shutdown closes simulator session, flushes telemetry and disconnects broker.
func (g *Global) Shutdown() error {
	var errs []error
	if g.Protocol != nil && g.Protocol.State() != simu.StateDisconnected {
		if err := g.Protocol.Close(); err != nil && errors.Cause(err) != simu.ErrNotConnected {
			errs = append(errs, errors.Annotate(err, "simu close"))
		}
	}
	g.mu.Lock()
	mirrors := g.mirrors
	g.mirrors = nil
	g.mu.Unlock()
	for _, m := range mirrors {
		m.Close()
	}
	if g.mqtt != nil {
		g.mqtt.Disconnect(uint(time.Second / time.Millisecond))
		g.mqtt = nil
	}
	return helpers.FoldErrors(errs...)
}
