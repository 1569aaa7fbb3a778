package state

// HeldLocks returns the number of per-path locks the store tracks.
func HeldLocks(s *Store) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
