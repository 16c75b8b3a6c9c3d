package link

import (
	"time"

	"github.com/juju/errors"
	"github.com/temoto/uaslink/mavlink"
)

func (t *Transport) send(conn packetConn) {
	defer t.alive.Done()
	stopch := t.alive.StopChan()
	for {
		msg, ok := t.outbound.Pop()
		if !ok {
			if !t.outSignal.WaitStop(stopch) {
				return
			}
			continue
		}
		if !t.sendOne(conn, msg) {
			return
		}
	}
}

// sendOne returns false when transport is stopping.
func (t *Transport) sendOne(conn packetConn, msg mavlink.Message) bool {
	b, err := t.codec.Encode(msg, uint8(t.config.SystemID), uint8(t.config.ComponentID), t.config.Sign)
	if err != nil {
		t.stat.EncodeErrors.Add(1)
		t.fault(errors.Annotatef(err, "encode msgid=%d", msg.MsgID()))
		return true
	}

	for attempt := 0; ; attempt++ {
		_, err = conn.WriteTo(b, t.remote)
		if err == nil {
			t.stat.Send.Register(len(b))
			return true
		}
		if !t.alive.IsRunning() {
			return false
		}
		t.fault(errors.Annotatef(err, "send remote=%s attempt=%d", t.remote, attempt+1))
		if attempt >= t.config.SendRetry {
			t.fault(errors.Annotatef(ErrSendDropped, "msgid=%d len=%d", msg.MsgID(), len(b)))
			return true
		}
		if !sleepStop(t.config.RetryDelay(), t.alive.StopChan()) {
			return false
		}
	}
}

func sleepStop(d time.Duration, stopch <-chan struct{}) bool {
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-tmr.C:
		return true
	case <-stopch:
		return false
	}
}
