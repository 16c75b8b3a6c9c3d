package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/uaslink/bridge"
	"github.com/temoto/uaslink/config"
	"github.com/temoto/uaslink/helpers"
	"github.com/temoto/uaslink/link"
	"github.com/temoto/uaslink/log2"
	"github.com/temoto/uaslink/mavlink"
	"github.com/temoto/uaslink/state"
)

const ContextKey = "run/app-global"

// Global wires link, vehicle state and optional bridge for one process.
type Global struct {
	Alive        *alive.Alive
	BuildVersion string
	Config       *config.Config
	Log          *log2.Log
	Codec        *mavlink.Codec
	Link         *link.Transport
	Vehicle      *state.Vehicle
	Bridge       *bridge.Bridge // nil when disabled

	firstFault helpers.FirstError
}

// NewGlobal hooks log errors into FirstFault, loggers cloned from log later keep the hook.
func NewGlobal(log *log2.Log, buildVersion string) *Global {
	g := &Global{
		Alive:        alive.NewAlive(),
		BuildVersion: buildVersion,
		Log:          log,
	}
	log.SetErrorFunc(g.onFault)
	return g
}

func ContextWithGlobal(ctx context.Context, g *Global) context.Context {
	ctx = context.WithValue(ctx, log2.ContextKey, g.Log)
	return context.WithValue(ctx, ContextKey, g)
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

// Init binds link socket and starts workers. Heartbeat is started separately.
// If `Init` fails, consider `Global` is in broken state.
func (g *Global) Init(ctx context.Context, cfg *config.Config) error {
	g.Config = cfg
	g.Log.Infof("build version=%s", g.BuildVersion)

	var err error
	g.Codec, err = mavlink.NewCodec(mavlink.CodecOptions{
		Log:    g.Log.Clone(log2.LInfo),
		Secret: []byte(cfg.Link.Secret),
	})
	if err != nil {
		return errors.Annotate(err, "codec")
	}
	g.Vehicle = state.NewVehicle(cfg.Vehicle)

	g.Link, err = link.NewTransport(link.Options{
		Config:  cfg.Link,
		Codec:   g.Codec,
		Log:     g.Log,
		OnFault: g.onFault,
	})
	if err != nil {
		return errors.Annotate(err, "link")
	}

	if cfg.Bridge.Enable {
		g.Bridge, err = bridge.New(cfg.Bridge, g.Log.Clone(log2.LInfo))
		if err != nil {
			return errors.Annotate(err, "bridge")
		}
		if err = g.Bridge.Start(); err != nil {
			return errors.Annotate(err, "bridge")
		}
		g.Link.Subscribe(g.Bridge.OnPacket)
	}

	if err = g.Link.Init(ctx); err != nil {
		return errors.Annotate(err, "link init")
	}
	g.Log.Infof("link local=%s remote=%s:%d", g.Link.LocalAddr(), cfg.Link.RemoteAddr, cfg.Link.RemotePort)
	return nil
}

func (g *Global) MustInit(ctx context.Context, cfg *config.Config) {
	if err := g.Init(ctx, cfg); err != nil {
		g.Fatal(err)
	}
}

// FirstFault returns first link fault or logged error since start, for status display.
func (g *Global) FirstFault() error { return g.firstFault.Load() }

func (g *Global) onFault(err error) { g.firstFault.Store(err) }

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.Log.Error(err)
	}
}

func (g *Global) Fatal(err error, args ...interface{}) {
	if err != nil {
		g.Error(err, args...)
		g.StopWait(5 * time.Second)
		g.Log.Fatal(errors.ErrorStack(err))
		os.Exit(1)
	}
}

func (g *Global) Stop() { g.Alive.Stop() }

// StopWait stops and closes everything, returns false on timeout.
func (g *Global) StopWait(timeout time.Duration) bool {
	g.Alive.Stop()
	done := make(chan struct{})
	go func() {
		if err := g.Close(); err != nil {
			g.Log.Error(errors.Annotate(err, "close"))
		}
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Close stops bridge after link, so packets already dispatched are published.
func (g *Global) Close() error {
	var errs []error
	if g.Link != nil {
		errs = append(errs, g.Link.Close())
	}
	if g.Bridge != nil {
		g.Bridge.Close()
	}
	return helpers.FoldErrors(errs...)
}
