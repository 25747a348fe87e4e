package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyUpdateTracksPreviousAndCurrent(t *testing.T) {
	genesis := Protocol{KeyDeposit: 2_000_000, PoolDeposit: 500_000_000}
	s := New(genesis)
	assert.Equal(t, genesis, s.Current())

	next := genesis
	next.KeyDeposit = 3_000_000
	s.ApplyUpdate(next)

	assert.Equal(t, next, s.Current())
	assert.Equal(t, genesis, s.previous)
}
