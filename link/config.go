package link

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/uaslink/mavlink"
)

const (
	DefaultListenPort        = 14551
	DefaultRemoteAddr        = "127.0.0.1"
	DefaultRemotePort        = 14550
	DefaultSystemID          = 200
	DefaultComponentID       = 1
	DefaultHeartbeatInterval = 1000 * time.Millisecond
	DefaultSendRetry         = 2
	DefaultRetryDelay        = 100 * time.Millisecond
	DefaultReadBuffer        = 256 << 10
)

// Config is copied into Transport on construction,
// later changes to caller's value have no effect.
type Config struct {
	ListenPort          int    `hcl:"listen_port"`
	RemoteAddr          string `hcl:"remote_addr"`
	RemotePort          int    `hcl:"remote_port"`
	SystemID            int    `hcl:"system_id"`
	ComponentID         int    `hcl:"component_id"`
	HeartbeatIntervalMs int    `hcl:"heartbeat_interval_ms"`
	Sign                bool   `hcl:"sign"`
	Secret              string `hcl:"secret"`
	QueueCapacity       int    `hcl:"queue_capacity"`
	QueueOverflow       string `hcl:"queue_overflow"` // unbounded|reject|drop-oldest
	InboundPersistPath  string `hcl:"inbound_persist_path"`
	SendRetry           int    `hcl:"send_retry"`
	RetryDelayMs        int    `hcl:"retry_delay_ms"`
	ReadBuffer          int    `hcl:"read_buffer"`
}

func DefaultConfig() Config {
	return Config{
		ListenPort:          DefaultListenPort,
		RemoteAddr:          DefaultRemoteAddr,
		RemotePort:          DefaultRemotePort,
		SystemID:            DefaultSystemID,
		ComponentID:         DefaultComponentID,
		HeartbeatIntervalMs: int(DefaultHeartbeatInterval / time.Millisecond),
		QueueOverflow:       OverflowUnbounded.String(),
		SendRetry:           DefaultSendRetry,
		RetryDelayMs:        int(DefaultRetryDelay / time.Millisecond),
		ReadBuffer:          DefaultReadBuffer,
	}
}

// WithDefaults fills zero fields from DefaultConfig, except SendRetry where zero is meaningful.
// Zero ListenPort means default port here, use Config literal for ephemeral port.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.ListenPort == 0 {
		c.ListenPort = d.ListenPort
	}
	if c.RemoteAddr == "" {
		c.RemoteAddr = d.RemoteAddr
	}
	if c.RemotePort == 0 {
		c.RemotePort = d.RemotePort
	}
	if c.SystemID == 0 {
		c.SystemID = d.SystemID
	}
	if c.ComponentID == 0 {
		c.ComponentID = d.ComponentID
	}
	if c.HeartbeatIntervalMs == 0 {
		c.HeartbeatIntervalMs = d.HeartbeatIntervalMs
	}
	if c.QueueOverflow == "" {
		c.QueueOverflow = d.QueueOverflow
	}
	if c.RetryDelayMs == 0 {
		c.RetryDelayMs = d.RetryDelayMs
	}
	if c.ReadBuffer == 0 {
		c.ReadBuffer = d.ReadBuffer
	}
	return c
}

func (c *Config) Validate() error {
	if c.ListenPort < 0 || c.ListenPort > math.MaxUint16 {
		return errors.NotValidf("listen_port=%d", c.ListenPort)
	}
	if c.RemotePort <= 0 || c.RemotePort > math.MaxUint16 {
		return errors.NotValidf("remote_port=%d", c.RemotePort)
	}
	if c.RemoteAddr == "" {
		return errors.NotValidf("remote_addr empty")
	}
	if c.SystemID < 0 || c.SystemID > math.MaxUint8 {
		return errors.NotValidf("system_id=%d", c.SystemID)
	}
	if c.ComponentID < 0 || c.ComponentID > math.MaxUint8 {
		return errors.NotValidf("component_id=%d", c.ComponentID)
	}
	if c.HeartbeatIntervalMs <= 0 {
		return errors.NotValidf("heartbeat_interval_ms=%d", c.HeartbeatIntervalMs)
	}
	if c.Sign && c.Secret == "" {
		return errors.NotValidf("sign=true with empty secret")
	}
	if c.Secret != "" && len(c.Secret) < mavlink.AuthMinSecret {
		return errors.NotValidf("secret shorter than %d bytes", mavlink.AuthMinSecret)
	}
	if c.QueueCapacity < 0 {
		return errors.NotValidf("queue_capacity=%d", c.QueueCapacity)
	}
	policy, err := ParseOverflowPolicy(c.QueueOverflow)
	if err != nil {
		return err
	}
	if policy != OverflowUnbounded && c.QueueCapacity == 0 {
		return errors.NotValidf("queue_overflow=%s requires queue_capacity > 0", policy)
	}
	if c.SendRetry < 0 {
		return errors.NotValidf("send_retry=%d", c.SendRetry)
	}
	if c.RetryDelayMs < 0 {
		return errors.NotValidf("retry_delay_ms=%d", c.RetryDelayMs)
	}
	if c.ReadBuffer < 0 {
		return errors.NotValidf("read_buffer=%d", c.ReadBuffer)
	}
	return nil
}

func (c *Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.ListenPort)
}

func (c *Config) RemoteUDPAddr() (*net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(c.RemoteAddr, strconv.Itoa(c.RemotePort)))
	return addr, errors.Annotatef(err, "remote=%s:%d", c.RemoteAddr, c.RemotePort)
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMs) * time.Millisecond
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

func (c *Config) String() string {
	secret := ""
	if c.Secret != "" {
		secret = "***"
	}
	return fmt.Sprintf("listen=%s remote=%s:%d sys=%d comp=%d hb=%v sign=%t secret=%s queue=%d/%s persist=%q",
		c.ListenAddr(), c.RemoteAddr, c.RemotePort, c.SystemID, c.ComponentID, c.HeartbeatInterval(),
		c.Sign, secret, c.QueueCapacity, c.QueueOverflow, c.InboundPersistPath)
}
