package patch

import (
	"math"
	"sort"

	"github.com/bdir-protocol/bdir/pkg/editpacket"
)

// Operation canonicalization: a pure reordering of patch ops that never
// changes validation or application semantics. Stable op ordering makes
// patch hashing, diffing, and review deterministic.

// CanonicalizeOptions describes an op-ordering preference. No function in
// this package takes it: CanonicalizeOps always orders by lexicographic
// block_id, and CanonicalizeOpsAgainstEditPacket always uses packet block
// order.
type CanonicalizeOptions struct {
	// PreferEditPacketOrder selects edit-packet block order over
	// lexicographic block_id.
	PreferEditPacketOrder bool
}

// DefaultCanonicalizeOptions prefers edit-packet (reading) order.
func DefaultCanonicalizeOptions() CanonicalizeOptions {
	return CanonicalizeOptions{PreferEditPacketOrder: true}
}

func opRank(op OpType) int {
	switch op {
	case OpDelete:
		return 0
	case OpReplace:
		return 1
	case OpInsertAfter:
		return 2
	case OpSuggest:
		return 3
	case OpInsertBefore:
		return 4
	case OpReplaceBlock:
		return 5
	case OpDeleteBlock:
		return 6
	default:
		return 7
	}
}

func occurrenceRank(o *Occurrence) int64 {
	switch {
	case o == nil:
		return math.MaxInt64
	case o.Legacy == OccurrenceFirst:
		return 1
	case o.Legacy == OccurrenceAll:
		return math.MaxInt64 - 1
	default:
		return int64(o.N)
	}
}

// CanonicalizeOps reorders a patch's ops without document context: block_id
// lexicographic, then op rank, then op-specific fields, with the original
// index as the final tie-breaker.
func CanonicalizeOps(p *PatchV1) {
	canonicalizeOps(p.Ops, nil)
}

// CanonicalizeOpsAgainstEditPacket reorders ops using the packet's block
// order, matching the document's natural reading order. Ops targeting
// blocks absent from the packet sort after all known blocks, by block_id.
func CanonicalizeOpsAgainstEditPacket(packet *editpacket.EditPacketV1, p *PatchV1) {
	order := make(map[string]int64, len(packet.B))
	for i, t := range packet.B {
		order[t.ID] = int64(i)
	}
	canonicalizeOps(p.Ops, order)
}

type canonicalKey struct {
	blockPos       int64
	blockID        string
	opRank         int
	before         string
	after          string
	newBlockID     string
	kindCode       uint16
	text           string
	message        string
	occurrenceRank int64
	origIndex      int
}

func (a canonicalKey) less(b canonicalKey) bool {
	switch {
	case a.blockPos != b.blockPos:
		return a.blockPos < b.blockPos
	case a.blockID != b.blockID:
		return a.blockID < b.blockID
	case a.opRank != b.opRank:
		return a.opRank < b.opRank
	case a.before != b.before:
		return a.before < b.before
	case a.after != b.after:
		return a.after < b.after
	case a.newBlockID != b.newBlockID:
		return a.newBlockID < b.newBlockID
	case a.kindCode != b.kindCode:
		return a.kindCode < b.kindCode
	case a.text != b.text:
		return a.text < b.text
	case a.message != b.message:
		return a.message < b.message
	case a.occurrenceRank != b.occurrenceRank:
		return a.occurrenceRank < b.occurrenceRank
	default:
		return a.origIndex < b.origIndex
	}
}

func canonicalizeOps(ops []PatchOp, order map[string]int64) {
	keys := make([]canonicalKey, len(ops))
	for i, op := range ops {
		blockPos := int64(math.MaxInt64)
		if order != nil {
			if pos, ok := order[op.BlockID]; ok {
				blockPos = pos
			}
		}
		var kindCode uint16
		if op.KindCode != nil {
			kindCode = *op.KindCode
		}
		keys[i] = canonicalKey{
			blockPos:       blockPos,
			blockID:        op.BlockID,
			opRank:         opRank(op.Op),
			before:         derefStr(op.Before),
			after:          derefStr(op.After),
			newBlockID:     derefStr(op.NewBlockID),
			kindCode:       kindCode,
			text:           derefStr(op.Text),
			message:        derefStr(op.Message),
			occurrenceRank: occurrenceRank(op.Occurrence),
			origIndex:      i,
		}
	}

	// The appended original index makes the key total, so a non-stable sort
	// still yields deterministic output.
	sorted := make([]PatchOp, len(ops))
	perm := make([]int, len(ops))
	for i := range perm {
		perm[i] = i
	}
	sort.Slice(perm, func(x, y int) bool {
		return keys[perm[x]].less(keys[perm[y]])
	})
	for i, from := range perm {
		sorted[i] = ops[from]
	}
	copy(ops, sorted)
}
