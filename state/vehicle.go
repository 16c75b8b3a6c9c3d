// Package state holds local liveness data advertised by heartbeat.
package state

import (
	"fmt"
	"math"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/uaslink/mavlink"
)

type VehicleConfig struct {
	Type         int `hcl:"type"`
	Autopilot    int `hcl:"autopilot"`
	BaseMode     int `hcl:"base_mode"`
	CustomMode   int `hcl:"custom_mode"`
	SystemStatus int `hcl:"system_status"`
}

func DefaultVehicleConfig() VehicleConfig {
	return VehicleConfig{
		Type:         int(mavlink.MavTypeGCS),
		Autopilot:    int(mavlink.MavAutopilotInvalid),
		SystemStatus: int(mavlink.MavStateActive),
	}
}

func (c *VehicleConfig) Validate() error {
	for _, f := range []struct {
		name  string
		value int
	}{
		{"type", c.Type},
		{"autopilot", c.Autopilot},
		{"base_mode", c.BaseMode},
		{"system_status", c.SystemStatus},
	} {
		if f.value < 0 || f.value > math.MaxUint8 {
			return errors.NotValidf("vehicle %s=%d", f.name, f.value)
		}
	}
	if c.CustomMode < 0 || int64(c.CustomMode) > math.MaxUint32 {
		return errors.NotValidf("vehicle custom_mode=%d", c.CustomMode)
	}
	return nil
}

// Vehicle is safe for concurrent use.
// Implements link.HeartbeatSource.
type Vehicle struct {
	mu    sync.Mutex
	hb    mavlink.Heartbeat
	extra []func() mavlink.Message
}

func NewVehicle(c VehicleConfig) *Vehicle {
	return &Vehicle{hb: mavlink.Heartbeat{
		Type:           uint8(c.Type),
		Autopilot:      uint8(c.Autopilot),
		BaseMode:       uint8(c.BaseMode),
		CustomMode:     uint32(c.CustomMode),
		SystemStatus:   uint8(c.SystemStatus),
		MavlinkVersion: mavlink.MavlinkProtocolV1,
	}}
}

func (v *Vehicle) SetMode(base uint8, custom uint32) {
	v.mu.Lock()
	v.hb.BaseMode = base
	v.hb.CustomMode = custom
	v.mu.Unlock()
}

func (v *Vehicle) SetSystemStatus(s uint8) {
	v.mu.Lock()
	v.hb.SystemStatus = s
	v.mu.Unlock()
}

// AddLiveness registers f to contribute one more message every heartbeat tick.
// f returning nil is skipped.
func (v *Vehicle) AddLiveness(f func() mavlink.Message) {
	v.mu.Lock()
	v.extra = append(v.extra, f)
	v.mu.Unlock()
}

// Heartbeat returns snapshot copy.
func (v *Vehicle) Heartbeat() mavlink.Heartbeat {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hb
}

// HeartbeatPayloads returns heartbeat snapshot followed by registered liveness messages.
func (v *Vehicle) HeartbeatPayloads() []mavlink.Message {
	v.mu.Lock()
	hb := v.hb
	extra := v.extra
	v.mu.Unlock()

	ms := make([]mavlink.Message, 0, 1+len(extra))
	ms = append(ms, &hb)
	for _, f := range extra {
		if m := f(); m != nil {
			ms = append(ms, m)
		}
	}
	return ms
}

func (v *Vehicle) String() string {
	hb := v.Heartbeat()
	return fmt.Sprintf("vehicle%s", hb.String()[len("HEARTBEAT"):])
}
