package catalog

import (
	"time"

	"drumkits/internal/kit"
)

// Subscribe registers for catalog updates. Each subscriber holds at most one
// pending update; a newer update replaces an unread one. Call cancel to
// unsubscribe; the channel is closed afterwards.
func (s *Store) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 1)
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once bool
	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if once {
			return
		}
		once = true
		delete(s.subs, id)
		close(ch)
	}
	return ch, cancel
}

func (s *Store) broadcast(kits []kit.Kit, stamp time.Time) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		out := make([]kit.Kit, len(kits))
		copy(out, kits)
		u := Update{Kits: out, Timestamp: stamp}
		select {
		case ch <- u:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}
