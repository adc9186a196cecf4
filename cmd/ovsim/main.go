package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/openvario/ovsim/cmd/ovsim/console"
	"github.com/openvario/ovsim/cmd/ovsim/demo"
	"github.com/openvario/ovsim/cmd/ovsim/subcmd"
	"github.com/openvario/ovsim/internal/config"
	"github.com/openvario/ovsim/internal/state"
	"github.com/openvario/ovsim/log2"
)

var modules = []subcmd.Mod{
	console.Mod,
	demo.Mod,
}

var log = log2.NewStderr(log2.LDebug)

func main() {
	flagset := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := flagset.String("config", "", "HCL config path, built-in defaults when empty")
	flagset.Usage = func() {
		fmt.Fprintf(flagset.Output(), "usage: %s [-config path] command\n\ncommands:\n%s\nflags:\n", os.Args[0], subcmd.Usage(modules))
		flagset.PrintDefaults()
	}
	_ = flagset.Parse(os.Args[1:])

	log.SetFlags(log2.LInteractiveFlags)
	if subcmd.SdNotify("start") {
		// under systemd journal, no timestamps
		log.SetFlags(log2.LServiceFlags)
	}

	mod, err := subcmd.Parse(flagset.Arg(0), modules)
	if err != nil {
		flagset.Usage()
		log.Fatal(err)
	}
	config, err := config.ReadConfig(log, *configPath)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	if !config.Log.Debug {
		log.SetLevel(log2.LInfo)
	}

	ctx, g := state.NewContext(log)
	if err := mod.Main(ctx, config); err != nil {
		g.Fatal(err)
	}
	g.StopWait(config.ReceiveTimeout() * 4)
}
