package patch

import (
	"fmt"

	"github.com/bdir-protocol/bdir/pkg/editpacket"
	"github.com/bdir-protocol/bdir/pkg/model"
)

// ApplyDocument validates and applies a patch against a document, returning
// a new document with all hash invariants re-established. The input is
// never mutated; on any failure the returned document is nil.
func ApplyDocument(doc *model.Document, p *PatchV1) (*model.Document, error) {
	return ApplyDocumentWithOptions(doc, p, DefaultValidateOptions())
}

// ApplyDocumentWithOptions applies with configurable validator options.
func ApplyDocumentWithOptions(doc *model.Document, p *PatchV1, opts ValidateOptions) (*model.Document, error) {
	if verr := ValidateDocumentWithDiagnostics(doc, p, opts); verr != nil {
		return nil, verr
	}

	out := doc.Clone()
	if err := applyOps(out, p.Ops); err != nil {
		return nil, err
	}

	if err := out.RecomputeHashes(); err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyEditPacket validates and applies a patch against an edit packet,
// returning a new packet with recomputed block hashes and packet hash `h`.
// The trace id is carried through unchanged.
func ApplyEditPacket(packet *editpacket.EditPacketV1, p *PatchV1) (*editpacket.EditPacketV1, error) {
	return ApplyEditPacketWithOptions(packet, p, DefaultValidateOptions())
}

// ApplyEditPacketWithOptions applies with configurable validator options.
func ApplyEditPacketWithOptions(packet *editpacket.EditPacketV1, p *PatchV1, opts ValidateOptions) (*editpacket.EditPacketV1, error) {
	if verr := ValidateEditPacketWithDiagnostics(packet, p, opts); verr != nil {
		return nil, verr
	}

	doc := packet.ToDocument()
	if err := applyOps(doc, p.Ops); err != nil {
		return nil, err
	}

	// Re-establish hashes under the packet's declared algorithm.
	if err := doc.RecomputeHashes(); err != nil {
		return nil, err
	}

	return editpacket.FromDocument(doc, packet.TID), nil
}

// applyOps executes ops in order. Each op observes the state produced by
// all prior ops in the same patch.
func applyOps(doc *model.Document, ops []PatchOp) error {
	for i, op := range ops {
		if err := applyOp(doc, i, op); err != nil {
			return err
		}
	}
	return nil
}

func applyOp(doc *model.Document, i int, op PatchOp) error {
	switch op.Op {
	case OpSuggest:
		// Advisory only; no mutation.
		return nil

	case OpReplace:
		idx := doc.BlockIndex(op.BlockID)
		if idx < 0 {
			return fmt.Errorf("ops[%d] references unknown block_id '%s'", i, op.BlockID)
		}
		n := 1
		if op.Occurrence != nil {
			n = op.Occurrence.N
		}
		next, err := replaceOccurrence(doc.Blocks[idx].Text, *op.Before, *op.After, n)
		if err != nil {
			return fmt.Errorf("ops[%d] (replace) occurrence out of range at apply time for block '%s': %w", i, op.BlockID, err)
		}
		doc.Blocks[idx].Text = next
		return nil

	case OpDelete:
		idx := doc.BlockIndex(op.BlockID)
		if idx < 0 {
			return fmt.Errorf("ops[%d] references unknown block_id '%s'", i, op.BlockID)
		}
		text := doc.Blocks[idx].Text
		switch {
		case op.Occurrence != nil && op.Occurrence.Legacy == OccurrenceAll:
			doc.Blocks[idx].Text = deleteAll(text, *op.Before)
		default:
			n := 1
			if op.Occurrence != nil && !op.Occurrence.IsLegacy() {
				n = op.Occurrence.N
			}
			next, err := replaceOccurrence(text, *op.Before, "", n)
			if err != nil {
				return fmt.Errorf("ops[%d] (delete) occurrence out of range at apply time for block '%s': %w", i, op.BlockID, err)
			}
			doc.Blocks[idx].Text = next
		}
		return nil

	case OpInsertAfter, OpInsertBefore:
		anchor := doc.BlockIndex(op.BlockID)
		if anchor < 0 {
			return fmt.Errorf("ops[%d] references unknown block_id '%s'", i, op.BlockID)
		}

		newBlock := model.Block{Text: derefStr(op.Text)}
		if op.NewBlockID != nil {
			newBlock.ID = *op.NewBlockID
		} else {
			// Legacy form without an explicit id: mint deterministically.
			newBlock.ID = MintInsertID(doc, op.BlockID)
		}
		if op.KindCode != nil {
			newBlock.KindCode = *op.KindCode
		} else {
			// Legacy form inherits the anchor's kindCode.
			newBlock.KindCode = doc.Blocks[anchor].KindCode
		}

		at := anchor + 1
		if op.Op == OpInsertBefore {
			at = anchor
		}
		doc.Blocks = append(doc.Blocks, model.Block{})
		copy(doc.Blocks[at+1:], doc.Blocks[at:])
		doc.Blocks[at] = newBlock
		return nil

	case OpReplaceBlock:
		idx := doc.BlockIndex(op.BlockID)
		if idx < 0 {
			return fmt.Errorf("ops[%d] references unknown block_id '%s'", i, op.BlockID)
		}
		// Id and kindCode are preserved; textHash is recomputed afterwards.
		doc.Blocks[idx].Text = *op.Text
		return nil

	case OpDeleteBlock:
		idx := doc.BlockIndex(op.BlockID)
		if idx < 0 {
			return fmt.Errorf("ops[%d] references unknown block_id '%s'", i, op.BlockID)
		}
		doc.Blocks = append(doc.Blocks[:idx], doc.Blocks[idx+1:]...)
		return nil

	default:
		return fmt.Errorf("ops[%d] has unknown op '%s'", i, op.Op)
	}
}

// MintInsertID returns the deterministic id for a legacy insert that did not
// supply new_block_id: "<anchor>_ins", then "<anchor>_ins2", "_ins3", ...
// first unused.
func MintInsertID(doc *model.Document, anchorID string) string {
	base := anchorID + "_ins"
	if !doc.HasBlock(base) {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s%d", base, n)
		if !doc.HasBlock(candidate) {
			return candidate
		}
	}
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
