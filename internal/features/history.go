package features

import "sync"

// History is a bounded FIFO of recent raw values for one source.
type History struct {
	buf []float64
	max int
	mu  sync.RWMutex
}

func NewHistory(n int) *History {
	if n <= 0 {
		n = 1
	}
	return &History{max: n}
}

func (h *History) Add(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buf) == h.max {
		h.buf = h.buf[1:]
	}
	h.buf = append(h.buf, v)
}

// Values returns a copy ordered oldest first.
func (h *History) Values() []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]float64, len(h.buf))
	copy(out, h.buf)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.buf)
}

func (h *History) Cap() int { return h.max }

// HistoryStore owns one History per source, created on first observation.
type HistoryStore struct {
	size     int
	bySource map[string]*History
	mu       sync.RWMutex
}

func NewHistoryStore(windowSize int) *HistoryStore {
	if windowSize <= 0 {
		windowSize = 1
	}
	return &HistoryStore{size: windowSize, bySource: make(map[string]*History)}
}

func (s *HistoryStore) get(source string) *History {
	s.mu.RLock()
	h, ok := s.bySource[source]
	s.mu.RUnlock()
	if ok {
		return h
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.bySource[source]; ok {
		return h
	}
	h = NewHistory(s.size)
	s.bySource[source] = h
	return h
}

// Push appends v to the source's window, evicting the oldest value when full.
func (s *HistoryStore) Push(source string, v float64) {
	s.get(source).Add(v)
}

// Values returns the source's window oldest first, or nil for an unseen source.
func (s *HistoryStore) Values(source string) []float64 {
	s.mu.RLock()
	h, ok := s.bySource[source]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return h.Values()
}

func (s *HistoryStore) Len(source string) int {
	s.mu.RLock()
	h, ok := s.bySource[source]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return h.Len()
}

func (s *HistoryStore) WindowSize() int { return s.size }
