package bridge

import (
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/uaslink/log2"
)

// New creates Bridge backed by paho MQTT client. Call Start() to connect.
func New(c Config, log *log2.Log) (*Bridge, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	mqttLog := log.Clone(log2.LDebug)
	mqttLog.SetPrefix("bridge.mqtt: ")
	mqtt.CRITICAL = mqttLog
	mqtt.ERROR = mqttLog
	mqtt.WARN = mqttLog
	if c.LogDebug {
		mqtt.DEBUG = mqttLog
	}

	clientID := c.ClientID
	if clientID == "" {
		host, _ := os.Hostname()
		clientID = fmt.Sprintf("uaslink-%s-%d", host, os.Getpid())
	}
	prefix := c.TopicPrefix
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	networkTimeout := c.networkTimeout()
	connectTimeout := networkTimeout * 3

	mopt := mqtt.NewClientOptions().
		AddBroker(c.Broker).
		SetAutoReconnect(true).
		SetBinaryWill(StateTopic(prefix), []byte(payloadOffline), 1, true).
		SetCleanSession(true).
		SetClientID(clientID).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(networkTimeout * 2).
		SetMaxReconnectInterval(connectTimeout).
		SetOrderMatters(true).
		SetPingTimeout(networkTimeout).
		SetWriteTimeout(networkTimeout)
	if c.Password != "" {
		mopt.SetUsername(clientID).SetPassword(c.Password)
	}
	pub := &mqttPublisher{
		m:       mqtt.NewClient(mopt),
		timeout: networkTimeout,
	}
	return newBridge(c, log, pub), nil
}

type mqttPublisher struct {
	m       mqtt.Client
	timeout time.Duration
}

func (p *mqttPublisher) Connect() error {
	return tokenWait(p.m.Connect(), p.timeout*3, "connect")
}

func (p *mqttPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	return tokenWait(p.m.Publish(topic, qos, retained, payload), p.timeout, "publish "+topic)
}

func (p *mqttPublisher) Disconnect() {
	p.m.Disconnect(uint(p.timeout / time.Millisecond))
}

func tokenWait(t mqtt.Token, timeout time.Duration, tag string) error {
	if !t.WaitTimeout(timeout) {
		return errors.Errorf("%s timeout", tag)
	}
	return errors.Annotate(t.Error(), tag)
}
