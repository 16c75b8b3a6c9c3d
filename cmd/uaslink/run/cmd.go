package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/uaslink/cmd/uaslink/subcmd"
	"github.com/temoto/uaslink/config"
	"github.com/temoto/uaslink/internal/app"
	"github.com/temoto/uaslink/mavlink"
)

const modName = "run"

var Mod = subcmd.Mod{Name: modName, Usage: "run link service with heartbeat until SIGINT/SIGTERM", Main: Main}

func Main(ctx context.Context, cfg *config.Config) error {
	g := app.GetGlobal(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := g.Init(ctx, cfg); err != nil {
		return errors.Annotate(err, modName)
	}
	g.Link.Subscribe(func(p *mavlink.Packet) {
		if m, err := p.Message(); err == nil {
			g.Log.Debugf("recv sys=%d comp=%d seq=%d %v", p.SysID, p.CompID, p.Seq, m)
		} else {
			g.Log.Debugf("recv %s err=%v", p.String(), err)
		}
	})
	if err := g.Link.BeginHeartbeatLoop(g.Vehicle); err != nil {
		return errors.Annotate(err, modName)
	}
	subcmd.SdNotify(g.Log, daemon.SdNotifyReady)
	g.Log.Infof("link running, %s", g.Vehicle.String())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	select {
	case s := <-sigs:
		g.Log.Infof("signal=%v, stopping", s)
	case <-g.Alive.StopChan():
	}

	subcmd.SdNotify(g.Log, daemon.SdNotifyStopping)
	g.Alive.Stop()
	err := g.Close()
	g.Log.Infof("stopped stat=%s", g.Link.Stat().String())
	return err
}
