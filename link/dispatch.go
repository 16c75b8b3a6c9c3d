package link

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/temoto/uaslink/mavlink"
)

func (t *Transport) dispatch() {
	defer t.alive.Done()
	stopch := t.alive.StopChan()
	for {
		b, ok := t.inbound.Pop()
		if !ok {
			// signal may be stale, queue is checked again after wake up
			if !t.inSignal.WaitStop(stopch) {
				return
			}
			continue
		}
		for _, p := range t.codec.Decode(b) {
			t.stat.Packets.Add(1)
			t.subs.deliver(p, t.fault)
		}
	}
}

type subscriber struct {
	id uint64
	fn func(*mavlink.Packet)
}

// subscribers is copy-on-write list, deliver does not take lock.
type subscribers struct {
	mu   sync.Mutex
	next uint64
	list atomic.Value // []subscriber
}

func (s *subscribers) load() []subscriber {
	list, _ := s.list.Load().([]subscriber)
	return list
}

func (s *subscribers) add(fn func(*mavlink.Packet)) func() {
	s.mu.Lock()
	s.next++
	id := s.next
	old := s.load()
	list := make([]subscriber, len(old), len(old)+1)
	copy(list, old)
	s.list.Store(append(list, subscriber{id: id, fn: fn}))
	s.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { s.remove(id) }) }
}

func (s *subscribers) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.load()
	list := make([]subscriber, 0, len(old))
	for _, sub := range old {
		if sub.id != id {
			list = append(list, sub)
		}
	}
	s.list.Store(list)
}

func (s *subscribers) Len() int { return len(s.load()) }

func (s *subscribers) deliver(p *mavlink.Packet, fault func(error)) {
	for _, sub := range s.load() {
		callSubscriber(sub, p, fault)
	}
}

func callSubscriber(sub subscriber, p *mavlink.Packet, fault func(error)) {
	defer func() {
		if x := recover(); x != nil {
			fault(fmt.Errorf("subscriber=%d panic=%v packet=%s", sub.id, x, p.String()))
		}
	}()
	sub.fn(p)
}
