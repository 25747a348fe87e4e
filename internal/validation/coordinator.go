// Package validation implements the Phase 1 validation coordinator of
// spec.md §4.3: for every proposed block it collects a Go/NoGo vote from
// each configured domain and surfaces a single verdict.
package validation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/logging"
)

// TopicBlockProposed mirrors consensus.TopicBlockProposed; kept as a
// separate constant so this package has no import-cycle dependency on
// internal/consensus.
const TopicBlockProposed = "consensus.block_proposed"

// TopicVerdict is where the coordinator publishes the final Go/NoGo
// verdict for each block it has collected votes for.
const TopicVerdict = "validation.verdict"

// Vote is what a domain publishes in response to a block proposal.
type Vote struct {
	Block  common.BlockHash
	Domain string
	Go     bool
	Reason *common.NoGoReason
}

// Verdict is the coordinator's final answer for a block.
type Verdict struct {
	Block common.BlockHash
	Go    bool
	NoGos []Vote
}

// voteTopic returns the per-domain vote topic name, per spec.md §4.3
// "validation.<domain>(hash, Go|NoGo{reason})".
func voteTopic(domain string) string {
	return fmt.Sprintf("validation.%s", domain)
}

// Coordinator joins per-domain votes by block hash and emits the overall
// verdict once every configured domain has voted, or the deadline elapses.
type Coordinator struct {
	bus      *bus.Bus
	domains  []string
	deadline time.Duration

	mu      sync.Mutex
	pending map[common.BlockHash]*pendingBlock
}

type pendingBlock struct {
	votes  map[string]Vote
	cancel context.CancelFunc
}

// New constructs a coordinator over the given domains (spec.md §4.3: UTXO,
// SPO, accounts, governance, KES, VRF, script), using deadline as the
// per-block vote-collection timeout.
func New(b *bus.Bus, domains []string, deadline time.Duration) *Coordinator {
	return &Coordinator{
		bus:      b,
		domains:  domains,
		deadline: deadline,
		pending:  make(map[common.BlockHash]*pendingBlock),
	}
}

// Propose registers a new block for validation, publishing
// block.proposed(hash) and starting the per-block vote-collection
// deadline. Missing votes at the deadline become NoGo("timeout").
func (c *Coordinator) Propose(ctx context.Context, hash common.BlockHash) {
	c.mu.Lock()
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	c.pending[hash] = &pendingBlock{
		votes:  make(map[string]Vote),
		cancel: cancel,
	}
	c.mu.Unlock()

	c.bus.Publish(TopicBlockProposed, hash)

	go func() {
		<-ctx.Done()
		c.finalizeOnTimeout(hash)
	}()
}

// Vote records a domain's vote for a block, finalising the verdict once
// every configured domain has voted.
func (c *Coordinator) Vote(v Vote) {
	c.mu.Lock()
	pb, ok := c.pending[v.Block]
	if !ok {
		c.mu.Unlock()
		return
	}
	pb.votes[v.Domain] = v
	complete := len(pb.votes) >= len(c.domains)
	c.mu.Unlock()

	if complete {
		c.finalize(v.Block)
	}
}

func (c *Coordinator) finalizeOnTimeout(hash common.BlockHash) {
	c.mu.Lock()
	pb, ok := c.pending[hash]
	if !ok {
		c.mu.Unlock()
		return
	}
	for _, d := range c.domains {
		if _, voted := pb.votes[d]; !voted {
			pb.votes[d] = Vote{
				Block:  hash,
				Domain: d,
				Go:     false,
				Reason: &common.NoGoReason{Code: "timeout", Fields: common.Fields{"domain": d}},
			}
		}
	}
	c.mu.Unlock()
	c.finalize(hash)
}

func (c *Coordinator) finalize(hash common.BlockHash) {
	c.mu.Lock()
	pb, ok := c.pending[hash]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, hash)
	pb.cancel()
	votes := make([]Vote, 0, len(pb.votes))
	for _, v := range pb.votes {
		votes = append(votes, v)
	}
	c.mu.Unlock()

	verdict := Verdict{Block: hash, Go: true}
	for _, v := range votes {
		if !v.Go {
			verdict.Go = false
			verdict.NoGos = append(verdict.NoGos, v)
		}
	}
	if !verdict.Go {
		logging.Component("validation").Warn(
			"block verdict NoGo",
			"block", hash.String(),
			"failed_domains", len(verdict.NoGos),
		)
	}
	c.bus.Publish(TopicVerdict, verdict)
}
