package link

// Counters are read and modified atomically, but not consistently,
// i.e. it is possible to read RecvDatagrams=1 RecvBytes=0 because bytes have not updated yet.

import (
	"expvar"
	"fmt"
	"time"

	"github.com/temoto/uaslink/helpers/atomic_clock"
)

type Stat struct {
	Recv           CountSizePair
	Send           CountSizePair
	Packets        expvar.Int // decoded by codec
	EncodeErrors   expvar.Int
	Faults         expvar.Int
	Overflow       expvar.Int // rejected or dropped by bounded queues
	HeartbeatTicks expvar.Int

	lastRecv atomic_clock.Clock
}

// SinceLastRecv returns 0 if nothing was received yet.
func (s *Stat) SinceLastRecv() time.Duration { return atomic_clock.Since(&s.lastRecv) }

func (s *Stat) String() string {
	return fmt.Sprintf(`{"recv":%s,"send":%s,"packets":%d,"encode_errors":%d,"faults":%d,"overflow":%d,"heartbeat_ticks":%d,"since_last_recv":"%v"}`,
		s.Recv.String(), s.Send.String(),
		s.Packets.Value(), s.EncodeErrors.Value(), s.Faults.Value(), s.Overflow.Value(), s.HeartbeatTicks.Value(),
		s.SinceLastRecv().Truncate(time.Millisecond))
}

type CountSizePair struct {
	Count expvar.Int
	Size  expvar.Int
}

func (csp *CountSizePair) Register(size int) {
	csp.Count.Add(1)
	csp.Size.Add(int64(size))
}

func (csp *CountSizePair) String() string {
	return fmt.Sprintf(`{"count":%d,"size":%d}`, csp.Count.Value(), csp.Size.Value())
}
