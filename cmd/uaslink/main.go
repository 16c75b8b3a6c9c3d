package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/temoto/uaslink/cmd/uaslink/console"
	"github.com/temoto/uaslink/cmd/uaslink/decode"
	"github.com/temoto/uaslink/cmd/uaslink/run"
	"github.com/temoto/uaslink/cmd/uaslink/subcmd"
	"github.com/temoto/uaslink/config"
	"github.com/temoto/uaslink/internal/app"
	"github.com/temoto/uaslink/log2"
)

var BuildVersion string = "unknown" // set by ldflags -X

const defaultConfigPath = "uaslink.hcl"

var modules = []subcmd.Mod{
	run.Mod,
	console.Mod,
	decode.Mod,
}

func main() {
	flagConfig := flag.String("config", defaultConfigPath, "")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-config=%s] command\nCommands:\n", os.Args[0], defaultConfigPath)
		for _, m := range modules {
			fmt.Fprintf(flag.CommandLine.Output(), "  %-8s %s\n", m.Name, m.Usage)
		}
		flag.PrintDefaults()
	}
	flag.Parse()

	log := log2.NewStderr(log2.LDebug)
	if subcmd.SdNotify(log, "start") {
		// we're under systemd, assume systemd journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}

	mod, err := subcmd.Parse(flag.Arg(0), modules)
	if err != nil {
		flag.Usage()
		log.Fatal(err)
	}

	cfg, err := config.ReadConfigFile(*flagConfig, log)
	if err != nil {
		if !(os.IsNotExist(errors.Cause(err)) && *flagConfig == defaultConfigPath) {
			log.Fatal(errors.ErrorStack(err))
		}
		log.Infof("config file %s not found, using defaults", *flagConfig)
		cfg = config.Default()
	}
	if !cfg.LogDebug {
		log.SetLevel(log2.LInfo)
	}

	g := app.NewGlobal(log, BuildVersion)
	ctx := app.ContextWithGlobal(context.Background(), g)
	if err := mod.Main(ctx, cfg); err != nil {
		g.Fatal(err)
	}
}
