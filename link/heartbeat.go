package link

import (
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/uaslink/mavlink"
)

// HeartbeatSource supplies liveness messages for each heartbeat tick.
type HeartbeatSource interface {
	HeartbeatPayloads() []mavlink.Message
}

type HeartbeatSourceFunc func() []mavlink.Message

func (f HeartbeatSourceFunc) HeartbeatPayloads() []mavlink.Message { return f() }

// BeginHeartbeatLoop starts periodic liveness broadcast.
// Each interval: sleep, then query src and SendMessage every payload.
// Period is soft, processing time is not compensated.
func (t *Transport) BeginHeartbeatLoop(src HeartbeatSource) error {
	if src == nil {
		return errors.NotValidf("heartbeat source nil")
	}
	if !atomic.CompareAndSwapUint32(&t.hbState, 0, 1) {
		return ErrHeartbeatBusy
	}
	if !t.alive.Add(1) {
		return ErrClosing
	}
	go t.heartbeatLoop(src)
	return nil
}

func (t *Transport) heartbeatLoop(src HeartbeatSource) {
	defer t.alive.Done()
	stopch := t.alive.StopChan()
	interval := t.config.HeartbeatInterval()
	for {
		if !sleepStop(interval, stopch) {
			return
		}
		t.heartbeatTick(src)
	}
}

// heartbeatTick returns number of enqueued messages.
func (t *Transport) heartbeatTick(src HeartbeatSource) int {
	t.stat.HeartbeatTicks.Add(1)
	n := 0
	for _, msg := range src.HeartbeatPayloads() {
		err := t.SendMessage(msg)
		switch errors.Cause(err) {
		case nil:
			n++
		case ErrClosing:
			return n
		default:
			t.fault(errors.Annotate(err, "heartbeat"))
		}
	}
	return n
}
