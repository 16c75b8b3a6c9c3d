package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/uaslink/cmd/uaslink/subcmd"
	"github.com/temoto/uaslink/config"
	"github.com/temoto/uaslink/helpers"
	"github.com/temoto/uaslink/helpers/cli"
	"github.com/temoto/uaslink/internal/app"
	"github.com/temoto/uaslink/mavlink"
)

const modName = "console"

var Mod = subcmd.Mod{Name: modName, Usage: "interactive link shell", Main: Main}

var suggests = []prompt.Suggest{
	{Text: "hb", Description: "send heartbeat now"},
	{Text: "send", Description: "send <msgid> <hex payload>"},
	{Text: "mode", Description: "mode <base_mode> <custom_mode>"},
	{Text: "status", Description: "status <system_status>"},
	{Text: "stat", Description: "show counters"},
	{Text: "beat", Description: "start periodic heartbeat"},
}

func Main(ctx context.Context, cfg *config.Config) error {
	g := app.GetGlobal(ctx)
	if err := g.Init(ctx, cfg); err != nil {
		return errors.Annotate(err, modName)
	}
	defer g.Close()
	g.Link.Subscribe(func(p *mavlink.Packet) { g.Log.Infof("recv %s", p.String()) })

	g.Log.Debugf("console init complete, running")
	return cli.MainLoop(modName, newExecutor(g), cli.PrefixCompleter(suggests), g.Alive.StopChan())
}

func newExecutor(g *app.Global) cli.Executor {
	return func(line string) {
		out, err := execute(g, line)
		if err != nil {
			g.Log.Errorf("%s: %v", line, err)
			return
		}
		if out != "" {
			g.Log.Info(out)
		}
	}
}

func execute(g *app.Global, line string) (string, error) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return "", nil
	}
	args := words[1:]
	switch words[0] {
	case "hb":
		hb := g.Vehicle.Heartbeat()
		return "", g.Link.SendMessage(&hb)

	case "beat":
		return "heartbeat started", g.Link.BeginHeartbeatLoop(g.Vehicle)

	case "send":
		if len(args) != 2 {
			return "", errors.NotValidf("usage: send <msgid> <hex payload>")
		}
		msgid, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			return "", errors.Annotate(err, "msgid")
		}
		if _, ok := mavlink.CRCExtra(uint8(msgid)); !ok {
			return "", errors.NotFoundf("msgid=%d", msgid)
		}
		payload, err := helpers.HexFields(args[1])
		if err != nil {
			return "", errors.Annotate(err, "payload")
		}
		return "", g.Link.SendMessage(&mavlink.Raw{ID: uint8(msgid), Payload: payload})

	case "mode":
		if len(args) != 2 {
			return "", errors.NotValidf("usage: mode <base_mode> <custom_mode>")
		}
		base, err := strconv.ParseUint(args[0], 0, 8)
		if err != nil {
			return "", errors.Annotate(err, "base_mode")
		}
		custom, err := strconv.ParseUint(args[1], 0, 32)
		if err != nil {
			return "", errors.Annotate(err, "custom_mode")
		}
		g.Vehicle.SetMode(uint8(base), uint32(custom))
		return g.Vehicle.String(), nil

	case "status":
		if len(args) != 1 {
			return "", errors.NotValidf("usage: status <system_status>")
		}
		s, err := strconv.ParseUint(args[0], 0, 8)
		if err != nil {
			return "", errors.Annotate(err, "system_status")
		}
		g.Vehicle.SetSystemStatus(uint8(s))
		return g.Vehicle.String(), nil

	case "stat":
		s := fmt.Sprintf("link=%s codec=%s", g.Link.Stat().String(), g.Codec.Stat().String())
		if g.Bridge != nil {
			s += " bridge=" + g.Bridge.Stat().String()
		}
		if err := g.FirstFault(); err != nil {
			s += " first_fault=" + err.Error()
		}
		return s, nil
	}
	return "", errors.NotFoundf("command %q", words[0])
}
