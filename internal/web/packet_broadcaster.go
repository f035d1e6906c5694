package web

import "sync"

// PacketBroadcaster fans encoded packets out to live listeners such as
// websocket clients. It keeps the most recent packet so a new subscriber gets
// an immediate sample. Slow subscribers drop packets rather than block the
// sender.
type PacketBroadcaster struct {
	mu     sync.RWMutex
	subs   map[int]chan []byte
	nextID int
	last   []byte
}

func NewPacketBroadcaster() *PacketBroadcaster {
	return &PacketBroadcaster{subs: make(map[int]chan []byte)}
}

func (b *PacketBroadcaster) Name() string { return "websocket" }

func (b *PacketBroadcaster) Subscribe(buffer int) (int, <-chan []byte) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan []byte, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	if b.last != nil {
		ch <- b.last
	}
	b.mu.Unlock()
	return id, ch
}

func (b *PacketBroadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *PacketBroadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Send implements the bridge sink contract. It never fails.
func (b *PacketBroadcaster) Send(packet []byte) error {
	cp := append([]byte(nil), packet...)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = cp
	for _, ch := range b.subs {
		select {
		case ch <- cp:
		default:
		}
	}
	return nil
}
