package demo

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/openvario/ovsim/cmd/ovsim/subcmd"
	"github.com/openvario/ovsim/helpers"
	"github.com/openvario/ovsim/internal/config"
	"github.com/openvario/ovsim/internal/state"
	"github.com/openvario/ovsim/simu"
)

const modName = "demo"

var Mod = subcmd.Mod{Name: modName, Usage: "connect and sweep configured sensor values", Main: Main}

func Main(ctx context.Context, config *config.Config) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)

	r, err := newRunner(g, subcmd.SdNotify)
	if err != nil {
		return errors.Annotate(err, "demo")
	}
	g.Protocol.Stat().Publish("simu")
	g.Log.Debugf("demo init complete, running")
	err = r.run(ctx)
	subcmd.SdNotify(daemon.SdNotifyStopping)
	return helpers.FoldErrors(err, g.Shutdown())
}

type runner struct {
	g       *state.Global
	sync    *simu.SyncProtocol
	sweeps  []*sweep
	period  time.Duration
	backoff helpers.Backoff
	notify  func(string) bool
	next    int
	ready   bool
}

func newRunner(g *state.Global, notify func(string) bool) (*runner, error) {
	sweeps, err := newSweeps(g.Config.Demo.Sensors)
	if err != nil {
		return nil, err
	}
	retry := helpers.MillisecondDefault(g.Config.Demo.RetryMs, config.DefaultDemoRetry)
	r := &runner{
		g:      g,
		sweeps: sweeps,
		period: helpers.MillisecondDefault(g.Config.Demo.PeriodMs, config.DefaultDemoPeriod),
		backoff: helpers.Backoff{
			Min: retry,
			Max: 30 * retry,
			K:   2,
		},
		notify: notify,
	}
	r.sync = simu.NewSyncProtocol(g.Protocol, 0, func(kind string, values map[string]simu.SensorValue) {
		g.Log.Infof("value [%s] %v", kind, values)
	})
	r.sync.Wrap(g.Listener)
	return r, nil
}

// run alternates sensor updates until g.Alive is stopped.
// Lost or refused session is reopened with backoff.
func (r *runner) run(ctx context.Context) error {
	g := r.g
	if !g.Alive.Add(1) {
		return nil
	}
	defer g.Alive.Done()
	stopch := g.Alive.StopChan()

	for g.Alive.IsRunning() {
		if !r.sync.Connected() {
			if !sleep(stopch, r.backoff.DelayBefore()) {
				break
			}
			err := r.session(ctx)
			r.backoff.Update(err == nil)
			if err != nil {
				g.Log.Errorf("demo session target=%s err=%v", g.Protocol.Target(), err)
				continue
			}
			if !r.ready {
				r.ready = true
				r.notify(daemon.SdNotifyReady)
			}
		}

		if !sleep(stopch, r.period) {
			break
		}
		r.tick(ctx)
	}
	if r.sync.Connected() {
		return errors.Annotate(r.sync.Close(), "demo close")
	}
	return nil
}

func (r *runner) session(ctx context.Context) error {
	g := r.g
	g.Log.Infof("demo connect target=%s", g.Protocol.Target())
	if err := r.sync.Connect(ctx); err != nil {
		return err
	}
	sensors, err := r.sync.ListSensors(ctx)
	if err != nil {
		_ = r.sync.Close()
		return errors.Annotate(err, "list sensors")
	}
	known := make(map[uint32]bool, len(sensors))
	for _, s := range sensors {
		g.Log.Infof("demo %s", s.String())
		known[s.ID] = true
	}
	for _, s := range r.sweeps {
		if !known[s.id] {
			g.Log.Errorf("demo sensor=%s id=%d not listed by simulator", s.name, s.id)
		}
	}
	return nil
}

func (r *runner) tick(ctx context.Context) {
	g := r.g
	s := r.sweeps[r.next%len(r.sweeps)]
	r.next++
	v := s.Next()
	ok, err := r.sync.UpdateSensor(ctx, s.id, v)
	switch {
	case err == nil && !ok:
		g.Log.Infof("demo update sensor=%s value=%s denied", s.name, v.String())
	case err == nil:
		g.Log.Debugf("demo update sensor=%s value=%s", s.name, v.String())
	case errors.Cause(err) == simu.ErrNotConnected:
		g.Log.Infof("demo connection closed")
	default:
		g.Log.Errorf("demo update sensor=%s err=%v", s.name, err)
	}
}

// sleep returns false if stop closed first.
func sleep(stop <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-stop:
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-stop:
		return false
	}
}
