// Package bridge republishes decoded link packets to MQTT broker.
package bridge

import (
	"expvar"
	"fmt"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/uaslink/helpers"
	"github.com/temoto/uaslink/log2"
	"github.com/temoto/uaslink/mavlink"
)

const (
	defaultNetworkTimeout = 5 * time.Second
	defaultQueueSize      = 256
	defaultTopicPrefix    = "uas"

	payloadOnline  = "online"
	payloadOffline = "offline"
)

type Config struct {
	Enable            bool   `hcl:"enable"`
	Broker            string `hcl:"broker"`
	ClientID          string `hcl:"client_id"`
	Password          string `hcl:"password"` // secret
	TopicPrefix       string `hcl:"topic_prefix"`
	QoS               int    `hcl:"qos"`
	NetworkTimeoutSec int    `hcl:"network_timeout_sec"`
	QueueSize         int    `hcl:"queue_size"`
	LogDebug          bool   `hcl:"log_debug"`
}

func (c *Config) Validate() error {
	if !c.Enable {
		return nil
	}
	if c.Broker == "" {
		return errors.NotValidf("bridge broker empty")
	}
	if c.QoS < 0 || c.QoS > 2 {
		return errors.NotValidf("bridge qos=%d", c.QoS)
	}
	if c.QueueSize < 0 {
		return errors.NotValidf("bridge queue_size=%d", c.QueueSize)
	}
	return nil
}

func (c *Config) networkTimeout() time.Duration {
	if c.NetworkTimeoutSec <= 0 {
		return defaultNetworkTimeout
	}
	return time.Duration(c.NetworkTimeoutSec) * time.Second
}

// publisher is the part of MQTT client used by Bridge.
type publisher interface {
	Connect() error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Disconnect()
}

type Stat struct {
	Published expvar.Int
	Dropped   expvar.Int // queue full
	Errors    expvar.Int
}

func (s *Stat) String() string {
	return fmt.Sprintf(`{"published":%d,"dropped":%d,"errors":%d}`,
		s.Published.Value(), s.Dropped.Value(), s.Errors.Value())
}

// Bridge OnPacket never blocks, packets are published by own worker.
// When broker is slow and queue is full, packets are dropped and counted.
type Bridge struct {
	config     Config
	log        *log2.Log
	pub        publisher
	alive      *alive.Alive
	ch         chan *mavlink.Packet
	prefix     string
	topicState string
	stat       Stat
}

func newBridge(c Config, log *log2.Log, pub publisher) *Bridge {
	prefix := c.TopicPrefix
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	size := c.QueueSize
	if size == 0 {
		size = defaultQueueSize
	}
	return &Bridge{
		config:     c,
		log:        log,
		pub:        pub,
		alive:      alive.NewAlive(),
		ch:         make(chan *mavlink.Packet, size),
		prefix:     prefix,
		topicState: StateTopic(prefix),
	}
}

func StateTopic(prefix string) string { return prefix + "/link/state" }

// PacketTopic returns <prefix>/<sysid>/<compid>/<msgid>
func PacketTopic(prefix string, p *mavlink.Packet) string {
	return fmt.Sprintf("%s/%d/%d/%d", prefix, p.SysID, p.CompID, p.MsgID)
}

// Start connects in background and begins publishing.
func (b *Bridge) Start() error {
	if !b.alive.Add(1) {
		return errors.New("bridge is stopped")
	}
	go b.run()
	return nil
}

// OnPacket is link subscriber.
func (b *Bridge) OnPacket(p *mavlink.Packet) {
	select {
	case b.ch <- p:
	default:
		b.stat.Dropped.Add(1)
		b.log.Debugf("bridge: queue full, dropped %s", p.String())
	}
}

func (b *Bridge) Stat() *Stat { return &b.stat }

// Close publishes offline state, disconnects and waits for worker.
func (b *Bridge) Close() {
	b.alive.Stop()
	b.alive.Wait()
}

func (b *Bridge) run() {
	defer b.alive.Done()
	stopch := b.alive.StopChan()
	backoff := helpers.Backoff{
		Min: 100 * time.Millisecond,
		Max: b.config.networkTimeout(),
		K:   2,
	}
	for {
		err := b.pub.Connect()
		if err == nil {
			backoff.Success()
			break
		}
		b.stat.Errors.Add(1)
		b.log.Errorf("bridge: connect broker=%s err=%v", b.config.Broker, err)
		backoff.Failure()
		if !backoff.Sleep(stopch) {
			return
		}
	}
	defer b.pub.Disconnect()
	b.publish(b.topicState, true, []byte(payloadOnline))

	for {
		select {
		case p := <-b.ch:
			b.publish(PacketTopic(b.prefix, p), false, p.Payload)
		case <-stopch:
			b.drain()
			b.publish(b.topicState, true, []byte(payloadOffline))
			return
		}
	}
}

func (b *Bridge) drain() {
	for {
		select {
		case p := <-b.ch:
			b.publish(PacketTopic(b.prefix, p), false, p.Payload)
		default:
			return
		}
	}
}

func (b *Bridge) publish(topic string, retained bool, payload []byte) {
	if err := b.pub.Publish(topic, byte(b.config.QoS), retained, payload); err != nil {
		b.stat.Errors.Add(1)
		b.log.Errorf("bridge: publish topic=%s err=%v", topic, err)
		return
	}
	b.stat.Published.Add(1)
}
