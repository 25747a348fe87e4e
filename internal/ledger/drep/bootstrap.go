package drep

import "github.com/input-output-hk/acropolis/internal/common"

// Bootstrap installs a DRep registration directly, for snapshot and
// genesis replay rather than certificate application.
func (s *State) Bootstrap(cred common.StakeCredential, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered[cred] = entry
}
