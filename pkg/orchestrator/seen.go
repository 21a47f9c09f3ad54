package orchestrator

// seenSet records payloads already written when deduplication is on.
// It is owned by the consumer goroutine and is not safe for concurrent use.
type seenSet struct {
	entries map[string]struct{}
}

func newSeenSet() *seenSet {
	return &seenSet{entries: make(map[string]struct{})}
}

// Add records payload and reports whether it was seen for the first time
func (s *seenSet) Add(payload string) bool {
	if _, exists := s.entries[payload]; exists {
		return false
	}
	s.entries[payload] = struct{}{}
	return true
}

// Size returns the number of distinct payloads recorded
func (s *seenSet) Size() int {
	return len(s.entries)
}
