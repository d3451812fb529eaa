package room

import (
	"context"
	"sync"
	"time"
)

// timerHandle is the pointer identity a fired timer compares itself against:
// arming a new timer under the same key replaces the handle, so a callback
// that fires after being superseded can detect it is stale and no-op. This
// lets several independently-keyed timers run concurrently per room -- the
// 1-second countdown tick and the 20-second hint-reveal interval both run
// throughout a drawing phase.
type timerHandle struct {
	cancel context.CancelFunc
}

// timerManager implements round.Timers. Every fired callback is handed to
// post, which the Room wires to its own serial inbox so the callback body
// always runs on the event loop goroutine, never on the timer's own
// goroutine.
type timerManager struct {
	mu     sync.Mutex
	timers map[string]*timerHandle
	post   func(fn func())
}

func newTimerManager(post func(fn func())) *timerManager {
	return &timerManager{timers: make(map[string]*timerHandle), post: post}
}

func (m *timerManager) Arm(key string, d time.Duration, fn func()) {
	m.mu.Lock()
	if h, ok := m.timers[key]; ok {
		h.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &timerHandle{cancel: cancel}
	m.timers[key] = h
	m.mu.Unlock()

	go func() {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.mu.Lock()
			current, ok := m.timers[key]
			m.mu.Unlock()
			if !ok || current != h {
				return
			}
			m.post(fn)
		}
	}()
}

func (m *timerManager) Cancel(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.timers[key]; ok {
		h.cancel()
		delete(m.timers, key)
	}
}

func (m *timerManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, h := range m.timers {
		h.cancel()
		delete(m.timers, k)
	}
}
