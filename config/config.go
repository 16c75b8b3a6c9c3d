package config

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/uaslink/bridge"
	"github.com/temoto/uaslink/link"
	"github.com/temoto/uaslink/log2"
	"github.com/temoto/uaslink/state"
)

type Config struct {
	Link     link.Config         `hcl:"link"`
	Vehicle  state.VehicleConfig `hcl:"vehicle"`
	Bridge   bridge.Config       `hcl:"bridge"`
	LogDebug bool                `hcl:"log_debug"`
}

func Default() *Config {
	return &Config{
		Link:    link.DefaultConfig(),
		Vehicle: state.DefaultVehicleConfig(),
		Bridge: bridge.Config{
			Broker:      "tcp://127.0.0.1:1883",
			TopicPrefix: "uas",
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Link.Validate(); err != nil {
		return errors.Annotate(err, "config link")
	}
	if err := c.Vehicle.Validate(); err != nil {
		return errors.Annotate(err, "config vehicle")
	}
	if err := c.Bridge.Validate(); err != nil {
		return errors.Annotate(err, "config bridge")
	}
	return nil
}

// ReadConfig decodes HCL over defaults. Keys absent from input keep default values.
func ReadConfig(r io.Reader, log *log2.Log) (*Config, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Annotate(err, "config read")
	}
	c := Default()
	if err = hcl.Unmarshal(b, c); err != nil {
		return nil, errors.Annotate(err, "config parse")
	}
	c.Link = c.Link.WithDefaults()
	if err = c.Validate(); err != nil {
		return nil, err
	}
	log.Debugf("config link %s", c.Link.String())
	return c, nil
}

func ReadConfigFile(path string, log *log2.Log) (*Config, error) {
	if pathAbs, err := filepath.Abs(path); err != nil {
		log.Errorf("filepath.Abs(%s) error=%v", path, err)
	} else {
		path = pathAbs
	}
	log.Debugf("reading config file %s", path)

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotate(err, "config")
	}
	defer f.Close()
	return ReadConfig(f, log)
}

func MustReadConfigFile(path string, log *log2.Log) *Config {
	c, err := ReadConfigFile(path, log)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
