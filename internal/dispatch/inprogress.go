// Package dispatch implements the dispatcher (C6): the consumer loop that
// owns ack/nack decisions, the retry/DLQ policy, and duplicate-delivery
// suppression.
package dispatch

import "sync"

// inProgressSet tracks task ids currently being processed by this
// worker process, so a redelivery of the same message while the first
// delivery is still in flight is dropped rather than run twice.
type inProgressSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newInProgressSet() *inProgressSet {
	return &inProgressSet{ids: make(map[string]struct{})}
}

// add reports whether task_id was newly added (true) or was already
// present (false, meaning this is a duplicate delivery).
func (s *inProgressSet) add(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ids[taskID]; exists {
		return false
	}
	s.ids[taskID] = struct{}{}
	return true
}

func (s *inProgressSet) remove(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, taskID)
}
