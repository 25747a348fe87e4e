// Package consensus implements the chain-fork tree of spec.md §4.2: every
// viable fork within the security parameter is tracked, the favoured
// chain is selected by longest-chain-with-maxvalid-tie-break, and
// rollback/block_proposed events are emitted on the message fabric as the
// favoured chain changes.
//
// It generalises the teacher's (blinklabs-io/shai) chainsyncClientState
// rolling-window-plus-rollback idiom (internal/node/chainsync.go) from a
// single fixed-depth recent-blocks slice into a full fork tree.
package consensus

import (
	"fmt"
	"sync"

	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/logging"
)

// Status is a block's lifecycle state within the tree.
type Status int

const (
	Offered Status = iota
	Wanted
	Fetched
	Validated
	Rejected
)

func (s Status) String() string {
	switch s {
	case Offered:
		return "Offered"
	case Wanted:
		return "Wanted"
	case Fetched:
		return "Fetched"
	case Validated:
		return "Validated"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// TreeBlock is a node in the fork tree, per spec.md §3.
type TreeBlock struct {
	Hash     common.BlockHash
	Parent   *common.BlockHash
	Number   uint64
	Slot     uint64
	Children []common.BlockHash
	Body     []byte
	Status   Status
}

// Topics published by the tree.
const (
	TopicRollback       = "consensus.rollback"
	TopicBlockProposed  = "consensus.block_proposed"
	TopicBlockRejected  = "consensus.block_rejected"
)

// RollbackEvent is published on TopicRollback.
type RollbackEvent struct {
	CommonAncestor uint64
}

// BlockProposedEvent is published on TopicBlockProposed.
type BlockProposedEvent struct {
	Hash common.BlockHash
	Body []byte
}

// BlockRejectedEvent is published on TopicBlockRejected.
type BlockRejectedEvent struct {
	Hash   common.BlockHash
	Reason error
}

// Tree is the chain-fork tree. The zero value is not usable; use New.
type Tree struct {
	mu          sync.Mutex
	bus         *bus.Bus
	k           uint64
	blocks      map[common.BlockHash]*TreeBlock
	root        common.BlockHash
	favouredTip common.BlockHash
	hasRoot     bool
}

// New constructs an empty tree rooted at the given genesis/snapshot-tip
// block, with the given security parameter k.
func New(b *bus.Bus, k uint64, rootHash common.BlockHash, rootNumber uint64) *Tree {
	root := &TreeBlock{
		Hash:   rootHash,
		Number: rootNumber,
		Status: Validated,
	}
	t := &Tree{
		bus:         b,
		k:           k,
		blocks:      map[common.BlockHash]*TreeBlock{rootHash: root},
		root:        rootHash,
		favouredTip: rootHash,
		hasRoot:     true,
	}
	return t
}

// CheckBlockWanted adds a shell block to the tree (spec.md §4.2). It
// returns the hashes that should now be fetched: the offered block itself,
// plus any previously unfetched blocks on the newly favoured chain.
func (t *Tree) CheckBlockWanted(
	hash, parentHash common.BlockHash,
	number, slot uint64,
) ([]common.BlockHash, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.blocks[parentHash]
	if !ok {
		return nil, fmt.Errorf("consensus: unknown parent %s for block %s", parentHash, hash)
	}
	if number != parent.Number+1 {
		return nil, fmt.Errorf(
			"consensus: block %s has number %d, expected %d (parent %s is %d)",
			hash, number, parent.Number+1, parentHash, parent.Number,
		)
	}
	if existing, ok := t.blocks[hash]; ok {
		// Already known (e.g. re-offered); no-op besides returning it if
		// still unfetched.
		if existing.Status == Offered || existing.Status == Wanted {
			return []common.BlockHash{hash}, nil
		}
		return nil, nil
	}

	block := &TreeBlock{
		Hash:   hash,
		Parent: &parentHash,
		Number: number,
		Slot:   slot,
		Status: Wanted,
	}
	t.blocks[hash] = block
	parent.Children = append(parent.Children, hash)

	if depth := t.chainDepthFromRoot(block); depth > int(t.k) {
		delete(t.blocks, hash)
		parent.Children = parent.Children[:len(parent.Children)-1]
		return nil, fmt.Errorf(
			"consensus: block %s exceeds security parameter k=%d depth from root",
			hash, t.k,
		)
	}

	wanted := []common.BlockHash{hash}
	wanted = append(wanted, t.maybeSwitchFavouredChain()...)
	return wanted, nil
}

// AddBlock attaches a fetched body to a known block (spec.md §4.2). If all
// of its ancestors back to the root are Fetched, it and any subsequent
// Fetched descendants on the favoured chain are proposed for validation.
func (t *Tree) AddBlock(hash common.BlockHash, body []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	block, ok := t.blocks[hash]
	if !ok {
		return fmt.Errorf("consensus: add_block for unknown block %s", hash)
	}
	block.Body = body
	block.Status = Fetched

	if !t.ancestorsFetched(block) {
		return nil
	}
	t.proposeForwardFrom(block)
	return nil
}

// RemoveBlock drops a block and all its descendants (peer rollback), and
// re-runs favoured-chain selection exactly as CheckBlockWanted does.
func (t *Tree) RemoveBlock(hash common.BlockHash) []common.BlockHash {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeSubtree(hash)
	return t.maybeSwitchFavouredChain()
}

func (t *Tree) removeSubtree(hash common.BlockHash) {
	block, ok := t.blocks[hash]
	if !ok {
		return
	}
	for _, child := range block.Children {
		t.removeSubtree(child)
	}
	if block.Parent != nil {
		if parent, ok := t.blocks[*block.Parent]; ok {
			parent.Children = removeHash(parent.Children, hash)
		}
	}
	delete(t.blocks, hash)
}

// MarkValidated marks a block as validated.
func (t *Tree) MarkValidated(hash common.BlockHash) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	block, ok := t.blocks[hash]
	if !ok {
		return fmt.Errorf("consensus: mark_validated for unknown block %s", hash)
	}
	block.Status = Validated
	return nil
}

// MarkRejected marks a block rejected, fires block_rejected, and removes
// the block (and its subtree) from the tree.
func (t *Tree) MarkRejected(hash common.BlockHash, reason error) {
	t.mu.Lock()
	block, ok := t.blocks[hash]
	if ok {
		block.Status = Rejected
	}
	t.mu.Unlock()

	if t.bus != nil {
		t.bus.Publish(TopicBlockRejected, BlockRejectedEvent{Hash: hash, Reason: reason})
	}
	t.RemoveBlock(hash)
}

// Prune drops everything older than favoured_tip.number - k, advancing the
// root to the block at that depth on the favoured chain.
func (t *Tree) Prune() {
	t.mu.Lock()
	defer t.mu.Unlock()

	tip, ok := t.blocks[t.favouredTip]
	if !ok {
		return
	}
	if tip.Number < t.k {
		return
	}
	newRootNumber := tip.Number - t.k
	// Walk from tip back to the block at newRootNumber.
	cur := tip
	for cur.Number > newRootNumber {
		if cur.Parent == nil {
			return
		}
		parent, ok := t.blocks[*cur.Parent]
		if !ok {
			return
		}
		cur = parent
	}
	newRoot := cur
	// Collect everything reachable from newRoot; everything else is pruned.
	keep := map[common.BlockHash]bool{newRoot.Hash: true}
	var walk func(common.BlockHash)
	walk = func(h common.BlockHash) {
		b, ok := t.blocks[h]
		if !ok {
			return
		}
		for _, c := range b.Children {
			keep[c] = true
			walk(c)
		}
	}
	walk(newRoot.Hash)
	for h := range t.blocks {
		if !keep[h] {
			delete(t.blocks, h)
		}
	}
	newRoot.Parent = nil
	t.root = newRoot.Hash
}

// FavouredTip returns the hash of the current favoured chain's tip.
func (t *Tree) FavouredTip() common.BlockHash {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.favouredTip
}

// Block returns a copy of the tree's view of hash, if known.
func (t *Tree) Block(hash common.BlockHash) (TreeBlock, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.blocks[hash]
	if !ok {
		return TreeBlock{}, false
	}
	return *b, true
}

func removeHash(s []common.BlockHash, h common.BlockHash) []common.BlockHash {
	out := s[:0]
	for _, v := range s {
		if v != h {
			out = append(out, v)
		}
	}
	return out
}

func (t *Tree) chainDepthFromRoot(block *TreeBlock) int {
	depth := 0
	cur := block
	for cur.Parent != nil {
		parent, ok := t.blocks[*cur.Parent]
		if !ok {
			break
		}
		cur = parent
		depth++
	}
	return depth
}

func (t *Tree) ancestorsFetched(block *TreeBlock) bool {
	cur := block
	for cur.Hash != t.root {
		if cur.Status != Fetched && cur.Status != Validated {
			return false
		}
		if cur.Parent == nil {
			return false
		}
		parent, ok := t.blocks[*cur.Parent]
		if !ok {
			return false
		}
		cur = parent
	}
	return true
}

// proposeForwardFrom publishes block_proposed for `block` and, walking
// forward on the favoured chain, for each subsequent Fetched descendant
// until an unfetched one, per spec.md §4.2.
func (t *Tree) proposeForwardFrom(block *TreeBlock) {
	cur := block
	for {
		if t.bus != nil {
			t.bus.Publish(TopicBlockProposed, BlockProposedEvent{Hash: cur.Hash, Body: cur.Body})
		}
		next := t.favouredChild(cur)
		if next == nil || (next.Status != Fetched && next.Status != Validated) {
			break
		}
		cur = next
	}
}

// favouredChild returns block's child that lies on the favoured chain, if
// any.
func (t *Tree) favouredChild(block *TreeBlock) *TreeBlock {
	tip, ok := t.blocks[t.favouredTip]
	if !ok {
		return nil
	}
	// Walk the favoured chain from tip back to block, recording the path.
	path := map[common.BlockHash]common.BlockHash{} // child -> parent
	cur := tip
	for cur.Hash != block.Hash {
		if cur.Parent == nil {
			return nil
		}
		parent, ok := t.blocks[*cur.Parent]
		if !ok {
			return nil
		}
		path[parent.Hash] = cur.Hash
		cur = parent
		if cur.Hash == block.Hash {
			break
		}
	}
	childHash, ok := path[block.Hash]
	if !ok {
		return nil
	}
	return t.blocks[childHash]
}

// maybeSwitchFavouredChain recomputes the favoured chain and, if it
// changed, emits rollback + block_proposed for the newly favoured blocks,
// returning the still-unfetched blocks on the new chain.
func (t *Tree) maybeSwitchFavouredChain() []common.BlockHash {
	newTip := t.longestChainFromRoot()
	if newTip == t.favouredTip {
		return nil
	}

	oldTip := t.favouredTip
	ancestor := t.commonAncestor(oldTip, newTip)
	t.favouredTip = newTip

	if ancestor != oldTip {
		if ancestorBlock, ok := t.blocks[ancestor]; ok {
			if t.bus != nil {
				t.bus.Publish(TopicRollback, RollbackEvent{CommonAncestor: ancestorBlock.Number})
			}
		}
	}

	// Walk from ancestor+1 to newTip, proposing Fetched blocks and
	// collecting unfetched ones.
	path := t.pathFrom(ancestor, newTip)
	var unfetched []common.BlockHash
	for _, h := range path {
		b := t.blocks[h]
		switch b.Status {
		case Fetched, Validated:
			if t.bus != nil {
				t.bus.Publish(TopicBlockProposed, BlockProposedEvent{Hash: b.Hash, Body: b.Body})
			}
		default:
			unfetched = append(unfetched, h)
		}
	}
	return unfetched
}

// pathFrom returns the block hashes from (exclusive) ancestor to
// (inclusive) tip, in ascending order.
func (t *Tree) pathFrom(ancestor, tip common.BlockHash) []common.BlockHash {
	var rev []common.BlockHash
	cur, ok := t.blocks[tip]
	for ok && cur.Hash != ancestor {
		rev = append(rev, cur.Hash)
		if cur.Parent == nil {
			break
		}
		cur, ok = t.blocks[*cur.Parent]
	}
	out := make([]common.BlockHash, len(rev))
	for i, h := range rev {
		out[len(rev)-1-i] = h
	}
	return out
}

// longestChainFromRoot implements spec.md §4.2's chain selection: longest
// chain wins; ties are broken by Praos maxvalid (the chain containing the
// current favoured tip, or an ancestor of it, wins).
func (t *Tree) longestChainFromRoot() common.BlockHash {
	type candidate struct {
		length int
		tip    common.BlockHash
	}
	var best []candidate
	bestLen := -1

	var dfs func(hash common.BlockHash, length int)
	dfs = func(hash common.BlockHash, length int) {
		block := t.blocks[hash]
		if len(block.Children) == 0 {
			if length > bestLen {
				bestLen = length
				best = []candidate{{length: length, tip: hash}}
			} else if length == bestLen {
				best = append(best, candidate{length: length, tip: hash})
			}
			return
		}
		for _, child := range block.Children {
			dfs(child, length+1)
		}
	}
	dfs(t.root, 0)

	if len(best) == 0 {
		return t.favouredTip
	}
	if len(best) == 1 {
		return best[0].tip
	}
	// Tie-break: prefer a chain containing the current favoured tip (or an
	// ancestor of it).
	for _, c := range best {
		if t.chainContains(c.tip, t.favouredTip) {
			return c.tip
		}
	}
	// No tied chain contains the current tip; keep the current favoured
	// chain if it's among the tied candidates, else take the first
	// deterministically (by hash) to avoid oscillation.
	for _, c := range best {
		if c.tip == t.favouredTip {
			return c.tip
		}
	}
	winner := best[0].tip
	for _, c := range best[1:] {
		if lessHash(c.tip, winner) {
			winner = c.tip
		}
	}
	return winner
}

func lessHash(a, b common.BlockHash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// chainContains reports whether walking from tip back to root passes
// through target.
func (t *Tree) chainContains(tip, target common.BlockHash) bool {
	cur, ok := t.blocks[tip]
	for ok {
		if cur.Hash == target {
			return true
		}
		if cur.Parent == nil {
			return false
		}
		cur, ok = t.blocks[*cur.Parent]
	}
	return false
}

// commonAncestor walks the higher tip back until equal height, then walks
// both back in lockstep until the hashes match, per spec.md §4.2.
func (t *Tree) commonAncestor(a, b common.BlockHash) common.BlockHash {
	blockA, okA := t.blocks[a]
	blockB, okB := t.blocks[b]
	if !okA || !okB {
		return t.root
	}
	for blockA.Number > blockB.Number {
		if blockA.Parent == nil {
			return t.root
		}
		blockA = t.blocks[*blockA.Parent]
	}
	for blockB.Number > blockA.Number {
		if blockB.Parent == nil {
			return t.root
		}
		blockB = t.blocks[*blockB.Parent]
	}
	for blockA.Hash != blockB.Hash {
		if blockA.Parent == nil || blockB.Parent == nil {
			return t.root
		}
		blockA = t.blocks[*blockA.Parent]
		blockB = t.blocks[*blockB.Parent]
	}
	return blockA.Hash
}

func logf(format string, args ...any) {
	logging.Component("consensus").Debug(fmt.Sprintf(format, args...))
}
