package params

// Bootstrap installs protocol parameters decoded from a snapshot or
// genesis file directly, seeding both current and previous the same way
// New does, for use after construction rather than at construction time.
func (s *State) Bootstrap(p Protocol) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = p
	s.previous = p
}
