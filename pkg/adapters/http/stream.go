package http

import "sync"

// streamBuffer is the per-subscriber backlog; slower clients drop messages.
const streamBuffer = 10

// StreamManager fans tree-change messages out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // TreeID -> Set of Channels
	dropped     func(treeID string)
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

// Subscribe registers a channel for treeID. The returned func unsubscribes and closes it.
func (sm *StreamManager) Subscribe(treeID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, streamBuffer)
	if _, ok := sm.subscribers[treeID]; !ok {
		sm.subscribers[treeID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[treeID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[treeID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, treeID)
				}
			}
		})
	}
}

// Broadcast sends msg to every subscriber of treeID without blocking.
func (sm *StreamManager) Broadcast(treeID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[treeID] {
		select {
		case ch <- msg:
		default:
			if sm.dropped != nil {
				sm.dropped(treeID)
			}
		}
	}
}

// Subscribers returns the number of live subscriptions for treeID.
func (sm *StreamManager) Subscribers(treeID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[treeID])
}
