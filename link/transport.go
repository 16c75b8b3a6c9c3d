// Package link moves framed messages between ground station and vehicle over UDP.
//
// Pipeline:
// listener -> inbound queue -> dispatcher -> Codec.Decode -> subscribers
// SendMessage, heartbeat -> outbound queue -> sender -> Codec.Encode -> remote
package link

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/uaslink/helpers"
	"github.com/temoto/uaslink/helpers/msync"
	"github.com/temoto/uaslink/log2"
	"github.com/temoto/uaslink/mavlink"
)

var (
	ErrClosing       = fmt.Errorf("link is closing")
	ErrAlreadyInit   = fmt.Errorf("link Init() called twice")
	ErrHeartbeatBusy = fmt.Errorf("heartbeat loop already started")
	ErrSendDropped   = fmt.Errorf("send retries exhausted, datagram dropped")
)

// Codec converts between datagram bytes and messages.
// Decode must tolerate partial, duplicate and malformed input.
type Codec interface {
	Decode(b []byte) []*mavlink.Packet
	Encode(msg mavlink.Message, sysid, compid uint8, sign bool) ([]byte, error)
}

// packetConn is the part of net.PacketConn used by workers.
type packetConn interface {
	ReadFrom(b []byte) (int, net.Addr, error)
	WriteTo(b []byte, addr net.Addr) (int, error)
	LocalAddr() net.Addr
	Close() error
}

var _ packetConn = &net.UDPConn{}

type Options struct {
	Config Config
	Codec  Codec
	Log    *log2.Log
	// OnFault receives transport errors which are not returned to any caller.
	// Called from worker goroutines, must not block.
	OnFault func(error)
}

type Transport struct {
	config  Config
	remote  *net.UDPAddr
	codec   Codec
	log     *log2.Log
	onFault func(error)
	alive   *alive.Alive
	stat    Stat

	inbound   datagramQueue
	outbound  *Queue[mavlink.Message]
	inSignal  msync.Signal
	outSignal msync.Signal

	mu        sync.Mutex // protects conn
	conn      packetConn
	initState uint32
	hbState   uint32
	closeOnce sync.Once
	closeErr  error

	subs subscribers
}

func NewTransport(opt Options) (*Transport, error) {
	config := opt.Config
	if err := config.Validate(); err != nil {
		return nil, errors.Annotate(err, "link config")
	}
	if opt.Codec == nil {
		return nil, errors.NotValidf("link codec nil")
	}
	remote, err := config.RemoteUDPAddr()
	if err != nil {
		return nil, err
	}
	policy, _ := ParseOverflowPolicy(config.QueueOverflow) // checked by Validate

	t := &Transport{
		config:    config,
		remote:    remote,
		codec:     opt.Codec,
		log:       opt.Log,
		onFault:   opt.OnFault,
		alive:     alive.NewAlive(),
		outbound:  NewQueue[mavlink.Message](config.QueueCapacity, policy),
		inSignal:  msync.NewSignal(),
		outSignal: msync.NewSignal(),
	}
	if config.InboundPersistPath != "" {
		sq, err := openSpqQueue(config.InboundPersistPath, config.QueueCapacity, policy, t.fault)
		if err != nil {
			return nil, err
		}
		if n := sq.Len(); n != 0 {
			t.log.Infof("link: inbound queue recovered %d datagrams", n)
			t.inSignal.Set()
		}
		t.inbound = sq
	} else {
		t.inbound = NewQueue[[]byte](config.QueueCapacity, policy)
	}
	return t, nil
}

// Init binds local socket and starts listener, dispatcher and sender.
// Cancelling ctx closes transport.
func (t *Transport) Init(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&t.initState, 0, 1) {
		return ErrAlreadyInit
	}
	if !t.alive.IsRunning() {
		return ErrClosing
	}

	lc := net.ListenConfig{Control: socketControl(t.config.ReadBuffer)}
	pc, err := lc.ListenPacket(ctx, "udp", t.config.ListenAddr())
	if err != nil {
		return errors.Annotatef(err, "link listen %s", t.config.ListenAddr())
	}
	t.log.Debugf("link: %s local=%s", t.config.String(), pc.LocalAddr())
	return t.start(ctx, pc)
}

// start runs workers over conn. Close closes conn.
func (t *Transport) start(ctx context.Context, conn packetConn) error {
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	if !t.alive.Add(3) {
		_ = conn.Close()
		return ErrClosing
	}
	go t.listen(conn)
	go t.dispatch()
	go t.send(conn)

	go func() {
		select {
		case <-ctx.Done():
			t.log.Debugf("link: context done, closing")
			_ = t.Close()
		case <-t.alive.StopChan():
		}
	}()
	return nil
}

// SendMessage enqueues msg for sending and returns immediately.
// Thread-safe. Message is owned by transport after successful return.
func (t *Transport) SendMessage(msg mavlink.Message) error {
	if msg == nil {
		return errors.NotValidf("message nil")
	}
	if !t.alive.IsRunning() {
		return ErrClosing
	}
	err := t.outbound.Push(msg)
	switch errors.Cause(err) {
	case nil:
	case ErrQueueOverflow:
		t.stat.Overflow.Add(1)
		t.fault(errors.Annotate(err, "outbound"))
	case ErrQueueFull:
		t.stat.Overflow.Add(1)
		return errors.Annotate(err, "outbound")
	case ErrQueueClosed:
		return ErrClosing
	default:
		return errors.Annotate(err, "outbound")
	}
	t.outSignal.Set()
	return nil
}

// Subscribe registers fn to receive every decoded packet.
// fn is called from dispatcher goroutine, in receive order.
// Returned function removes subscription, safe to call many times.
func (t *Transport) Subscribe(fn func(*mavlink.Packet)) (unsubscribe func()) {
	return t.subs.add(fn)
}

// Close stops all workers, closes socket and waits for workers to finish.
// Messages still queued for sending are discarded,
// so are received datagrams not yet dispatched unless inbound queue is persistent.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		var errs []error
		t.alive.Stop()
		t.mu.Lock()
		if t.conn != nil {
			if err := t.conn.Close(); err != nil {
				errs = append(errs, errors.Annotate(err, "socket close"))
			}
		}
		t.mu.Unlock()
		t.alive.Wait()
		inbound, outbound := t.inbound.Len(), t.outbound.Len()
		if t.config.InboundPersistPath != "" {
			inbound = 0 // stays on disk for next run
		}
		if inbound != 0 || outbound != 0 {
			t.log.Debugf("link: close discarded inbound=%d outbound=%d", inbound, outbound)
		}
		if err := t.inbound.Close(); err != nil {
			errs = append(errs, errors.Annotate(err, "inbound queue close"))
		}
		if err := t.outbound.Close(); err != nil {
			errs = append(errs, errors.Annotate(err, "outbound queue close"))
		}
		t.closeErr = helpers.FoldErrors(errs...)
	})
	return t.closeErr
}

func (t *Transport) Stat() *Stat { return &t.stat }

// LocalAddr returns bound socket address, nil before Init.
func (t *Transport) LocalAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}

func (t *Transport) Config() Config { return t.config }

func (t *Transport) fault(err error) {
	t.stat.Faults.Add(1)
	t.log.Error(errors.Annotate(err, "link"))
	if t.onFault != nil {
		t.onFault(err)
	}
}
