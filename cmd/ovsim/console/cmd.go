package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/openvario/ovsim/cmd/ovsim/subcmd"
	"github.com/openvario/ovsim/helpers/cli"
	"github.com/openvario/ovsim/internal/config"
	"github.com/openvario/ovsim/internal/state"
	"github.com/openvario/ovsim/log2"
	"github.com/openvario/ovsim/simu"
)

const usage = `syntax: one command per line
(session)
- connect               open session with simulator
- close                 close session
- list                  request sensors list
- update ID TYPE VALUE  update sensor, TYPE is uint|int|float|double|string|bool
- stat                  show session state and counters
- sN                    pause N milliseconds

(meta)
- log=yes  enable debug logging
- log=no   disable debug logging
- help     show this text
`

const modName = "cli"

var Mod = subcmd.Mod{Name: modName, Usage: "interactive simulator session", Main: Main}

func Main(ctx context.Context, config *config.Config) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)
	g.Log.Debugf("cli init complete, running")

	cli.MainLoop("ovsim", newExecutor(ctx), cli.Completer(suggests))
	return g.Shutdown()
}

var suggests = []prompt.Suggest{
	{Text: "connect", Description: "open session"},
	{Text: "close", Description: "close session"},
	{Text: "list", Description: "request sensors list"},
	{Text: "update", Description: "update ID TYPE VALUE"},
	{Text: "stat", Description: "session state and counters"},
	{Text: "sN", Description: "pause for N ms"},
	{Text: "log=yes", Description: "enable debug logging"},
	{Text: "log=no", Description: "disable debug logging"},
	{Text: "help", Description: "show usage"},
}

type command struct {
	name string
	do   func(ctx context.Context) error
}

type listenerKey struct{}

// withListener makes every connect in this session reuse one listener,
// so telemetry mirror is created once.
func withListener(ctx context.Context) context.Context {
	g := state.GetGlobal(ctx)
	return context.WithValue(ctx, listenerKey{}, g.Listener(&eventLog{log: g.Log}))
}

func sessionListener(ctx context.Context) simu.Listener {
	if l, ok := ctx.Value(listenerKey{}).(simu.Listener); ok {
		return l
	}
	g := state.GetGlobal(ctx)
	return g.Listener(&eventLog{log: g.Log})
}

func newExecutor(ctx context.Context) func(string) {
	g := state.GetGlobal(ctx)
	ctx = withListener(ctx)
	return func(line string) {
		c, err := parseLine(line)
		if err != nil {
			g.Log.Errorf(errors.ErrorStack(err))
			return
		}
		if err = c.do(ctx); err != nil {
			g.Log.Errorf("%s err=%v", c.name, err)
		}
	}
}

func parseLine(line string) (command, error) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return command{}, errors.NotValidf("empty line")
	}
	name, args := words[0], words[1:]
	argc := func(n int) error {
		if len(args) != n {
			return errors.NotValidf("%s expects %d arguments, got %d", name, n, len(args))
		}
		return nil
	}

	switch name {
	case "connect":
		return command{name, doConnect}, argc(0)
	case "close":
		return command{name, doClose}, argc(0)
	case "list":
		return command{name, doList}, argc(0)
	case "stat":
		return command{name, doStat}, argc(0)
	case "help":
		return command{name, doHelp}, nil
	case "log=yes":
		return command{name, doLogLevel(log2.LDebug)}, argc(0)
	case "log=no":
		return command{name, doLogLevel(log2.LInfo)}, argc(0)
	case "update":
		if err := argc(3); err != nil {
			return command{}, err
		}
		return parseUpdate(args[0], args[1], args[2])
	}

	if name[0] == 's' {
		ms, err := strconv.ParseUint(name[1:], 10, 32)
		if err != nil {
			return command{}, errors.NotValidf("pause=%s", name)
		}
		d := time.Duration(ms) * time.Millisecond
		return command{name, func(context.Context) error {
			time.Sleep(d)
			return nil
		}}, argc(0)
	}
	return command{}, errors.NotValidf("command=%s", name)
}

func parseUpdate(sid, stype, svalue string) (command, error) {
	id, err := strconv.ParseUint(sid, 10, 32)
	if err != nil {
		return command{}, errors.NotValidf("sensor id=%s", sid)
	}
	vt, err := simu.ParseValueType(stype)
	if err != nil {
		return command{}, err
	}
	v, err := simu.ParseValue(vt, svalue)
	if err != nil {
		return command{}, err
	}
	name := fmt.Sprintf("update id=%d value=%s", id, v.String())
	return command{name, func(ctx context.Context) error {
		g := state.GetGlobal(ctx)
		return g.Protocol.UpdateSensor(uint32(id), v)
	}}, nil
}

func doConnect(ctx context.Context) error {
	g := state.GetGlobal(ctx)
	g.Log.Infof("connect target=%s", g.Protocol.Target())
	return g.Protocol.Connect(sessionListener(ctx))
}

func doClose(ctx context.Context) error {
	return state.GetGlobal(ctx).Protocol.Close()
}

func doList(ctx context.Context) error {
	return state.GetGlobal(ctx).Protocol.ListSensors()
}

func doStat(ctx context.Context) error {
	g := state.GetGlobal(ctx)
	p := g.Protocol
	g.Log.Infof("state=%s pending=%s ping=%d since_recv=%v stat=%s",
		p.State(), p.Pending(), p.PingNumber(), p.SinceLastRecv(), p.Stat().String())
	return nil
}

func doHelp(ctx context.Context) error {
	state.GetGlobal(ctx).Log.Infof(usage)
	return nil
}

func doLogLevel(level log2.Level) func(context.Context) error {
	return func(ctx context.Context) error {
		state.GetGlobal(ctx).Log.SetLevel(level)
		return nil
	}
}
