// Package editpacket implements the compact Edit Packet v1 wire projection
// of a document: the form handed to an AI model for patch proposals.
//
// Wire format:
//
//	{"v": 1, "tid": "optional", "h": "<pageHash>", "ha": "xxh64",
//	 "b": [["blockId", kindCode, "textHash", "text"], ...]}
package editpacket

import (
	"encoding/json"
	"fmt"

	"github.com/bdir-protocol/bdir/pkg/hashing"
	"github.com/bdir-protocol/bdir/pkg/model"
)

// Version is the Edit Packet wire format version.
const Version = 1

// BlockTuple is one "[blockId, kindCode, textHash, text]" entry. It
// serializes as a JSON array, not an object.
type BlockTuple struct {
	ID       string
	KindCode uint16
	TextHash string
	Text     string
}

// MarshalJSON encodes the tuple as a 4-element JSON array.
func (t BlockTuple) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]any{t.ID, t.KindCode, t.TextHash, t.Text})
}

// UnmarshalJSON decodes a 4-element JSON array.
func (t *BlockTuple) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("block tuple must be a JSON array: %w", err)
	}
	if len(parts) != 4 {
		return fmt.Errorf("block tuple must have 4 elements, got %d", len(parts))
	}
	if err := json.Unmarshal(parts[0], &t.ID); err != nil {
		return fmt.Errorf("block tuple id: %w", err)
	}
	if err := json.Unmarshal(parts[1], &t.KindCode); err != nil {
		return fmt.Errorf("block tuple kindCode: %w", err)
	}
	if err := json.Unmarshal(parts[2], &t.TextHash); err != nil {
		return fmt.Errorf("block tuple textHash: %w", err)
	}
	if err := json.Unmarshal(parts[3], &t.Text); err != nil {
		return fmt.Errorf("block tuple text: %w", err)
	}
	return nil
}

// EditPacketV1 is the Edit Packet v1 value.
type EditPacketV1 struct {
	V   int          `json:"v"`
	TID string       `json:"tid,omitempty"`
	H   string       `json:"h"`
	HA  string       `json:"ha"`
	B   []BlockTuple `json:"b"`
}

// UnmarshalJSON applies the defaulting rule: if `ha` is omitted, receivers
// treat it as sha256.
func (p *EditPacketV1) UnmarshalJSON(data []byte) error {
	type alias EditPacketV1
	tmp := alias{HA: hashing.AlgoSHA256}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	if tmp.HA == "" {
		tmp.HA = hashing.AlgoSHA256
	}
	*p = EditPacketV1(tmp)
	return nil
}

// FromDocument projects a document into an edit packet. The document's
// hashes must already be established via RecomputeHashes; projection copies
// block order and per-block fields bit-identically.
func FromDocument(doc *model.Document, tid string) *EditPacketV1 {
	b := make([]BlockTuple, len(doc.Blocks))
	for i, blk := range doc.Blocks {
		b[i] = BlockTuple{
			ID:       blk.ID,
			KindCode: blk.KindCode,
			TextHash: blk.TextHash,
			Text:     blk.Text,
		}
	}
	return &EditPacketV1{
		V:   Version,
		TID: tid,
		H:   doc.PageHash,
		HA:  doc.HashAlgorithm,
		B:   b,
	}
}

// ToDocument lifts a packet into the equivalent document value (same block
// order and per-block fields; algorithm from ha, page hash from h).
func (p *EditPacketV1) ToDocument() *model.Document {
	blocks := make([]model.Block, len(p.B))
	for i, t := range p.B {
		blocks[i] = model.Block{
			ID:       t.ID,
			KindCode: t.KindCode,
			TextHash: t.TextHash,
			Text:     t.Text,
		}
	}
	return &model.Document{
		HashAlgorithm: p.HA,
		PageHash:      p.H,
		Blocks:        blocks,
	}
}

// ToMinifiedJSON serializes without whitespace.
func (p *EditPacketV1) ToMinifiedJSON() ([]byte, error) {
	return json.Marshal(p)
}

// ToPrettyJSON serializes with indentation for human inspection.
func (p *EditPacketV1) ToPrettyJSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Parse decodes an edit packet from wire JSON.
func Parse(data []byte) (*EditPacketV1, error) {
	var p EditPacketV1
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid edit packet JSON: %w", err)
	}
	return &p, nil
}
