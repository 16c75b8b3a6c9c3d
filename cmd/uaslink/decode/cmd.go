package decode

import (
	"context"

	"github.com/juju/errors"
	"github.com/temoto/uaslink/cmd/uaslink/subcmd"
	"github.com/temoto/uaslink/config"
	"github.com/temoto/uaslink/helpers"
	"github.com/temoto/uaslink/helpers/cli"
	"github.com/temoto/uaslink/internal/app"
	"github.com/temoto/uaslink/log2"
	"github.com/temoto/uaslink/mavlink"
)

const modName = "decode"

var Mod = subcmd.Mod{Name: modName, Usage: "decode hex frames from stdin", Main: Main}

func Main(ctx context.Context, cfg *config.Config) error {
	g := app.GetGlobal(ctx)
	log := log2.ContextValueLogger(ctx)
	codec, err := mavlink.NewCodec(mavlink.CodecOptions{
		Log:    log,
		Secret: []byte(cfg.Link.Secret),
	})
	if err != nil {
		return errors.Annotate(err, modName)
	}
	err = cli.MainLoop(modName, newExecutor(codec, log), nil, g.Alive.StopChan())
	log.Debugf("codec stat=%s", codec.Stat().String())
	return err
}

func newExecutor(codec *mavlink.Codec, log *log2.Log) cli.Executor {
	return func(line string) {
		// odd length: mosquitto_sub strips leading zero in hex format
		b, err := helpers.HexFields(line)
		if err != nil {
			log.Errorf("hex.Decode err=%v", err)
			return
		}
		for _, p := range codec.Decode(b) {
			m, err := p.Message()
			if err != nil {
				log.Errorf("%s err=%v", p.String(), err)
				continue
			}
			log.Infof("sys=%d comp=%d seq=%d signed=%t %v", p.SysID, p.CompID, p.Seq, p.Signed, m)
		}
	}
}
