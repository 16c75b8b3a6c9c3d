package link

import (
	"time"

	"github.com/juju/errors"
	"github.com/temoto/uaslink/helpers"
)

const maxDatagramSize = 64 << 10

func (t *Transport) listen(conn packetConn) {
	defer t.alive.Done()
	stopch := t.alive.StopChan()
	backoff := helpers.Backoff{
		Min: 10 * time.Millisecond,
		Max: time.Second,
		K:   2,
	}
	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			// socket is closed only by Close() after stop
			if !t.alive.IsRunning() {
				return
			}
			t.fault(errors.Annotate(err, "receive"))
			backoff.Failure()
			if !backoff.Sleep(stopch) {
				return
			}
			continue
		}
		backoff.Success()
		t.stat.Recv.Register(n)
		t.stat.lastRecv.SetNow()

		b := make([]byte, n)
		copy(b, buf[:n])
		if err = t.inbound.Push(b); err != nil {
			switch errors.Cause(err) {
			case ErrQueueOverflow:
				t.stat.Overflow.Add(1)
				t.fault(errors.Annotatef(err, "inbound from=%s", from))
			case ErrQueueFull:
				t.stat.Overflow.Add(1)
				t.fault(errors.Annotatef(err, "inbound from=%s", from))
				continue
			case ErrQueueClosed:
				return
			default:
				t.fault(errors.Annotatef(err, "inbound from=%s", from))
				continue
			}
		}
		t.inSignal.Set()
	}
}
