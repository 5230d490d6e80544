// Package model defines the BDIR document model: an ordered sequence of
// typed text blocks with per-block text hashes and a document-level page
// hash.
package model

import (
	"strconv"
	"strings"

	"github.com/bdir-protocol/bdir/pkg/hashing"
)

// Block is a single semantic block in a document.
type Block struct {
	ID       string `json:"id"`
	KindCode uint16 `json:"kind_code"`
	TextHash string `json:"text_hash,omitempty"`
	Text     string `json:"text"`
}

// Document is an ordered sequence of blocks plus its hash identity.
type Document struct {
	HashAlgorithm string  `json:"hash_algorithm"`
	PageHash      string  `json:"page_hash,omitempty"`
	Blocks        []Block `json:"blocks"`
}

// RecomputeHashes establishes the hash invariants under the document's
// declared algorithm: every block's TextHash over canonicalized text, then
// PageHash over the ordered block summary lines. The algorithm name is
// normalized in place. Unknown or empty algorithms are rejected; use
// RecomputeHashesLenient for the coercing variant.
func (d *Document) RecomputeHashes() error {
	algo, err := hashing.NormalizeAlgorithm(d.HashAlgorithm)
	if err != nil {
		return err
	}
	d.rehash(algo)
	return nil
}

// RecomputeHashesLenient recomputes hashes, coercing an empty or unknown
// algorithm to xxh64. Validators must never use this path; it exists for
// callers ingesting legacy fixtures.
func (d *Document) RecomputeHashesLenient() {
	algo := strings.ToLower(strings.TrimSpace(d.HashAlgorithm))
	if !hashing.IsSupported(algo) {
		algo = hashing.AlgoXXH64
	}
	d.rehash(algo)
}

func (d *Document) rehash(algo string) {
	d.HashAlgorithm = algo
	for i := range d.Blocks {
		h, _ := hashing.HashCanonHex(algo, d.Blocks[i].Text)
		d.Blocks[i].TextHash = h
	}
	h, _ := hashing.HashHex(algo, PageHashPayload(d.Blocks))
	d.PageHash = h
}

// PageHashPayload builds the page-hash input from ordered blocks:
// one "{id}\t{kindCode}\t{textHash}\n" row per block.
func PageHashPayload(blocks []Block) string {
	var b strings.Builder
	for _, blk := range blocks {
		b.WriteString(blk.ID)
		b.WriteByte('\t')
		b.WriteString(strconv.FormatUint(uint64(blk.KindCode), 10))
		b.WriteByte('\t')
		b.WriteString(blk.TextHash)
		b.WriteByte('\n')
	}
	return b.String()
}

// BlockIndex returns the position of the block with the given id, or -1.
func (d *Document) BlockIndex(id string) int {
	for i := range d.Blocks {
		if d.Blocks[i].ID == id {
			return i
		}
	}
	return -1
}

// HasBlock reports whether any block carries the given id.
func (d *Document) HasBlock(id string) bool {
	return d.BlockIndex(id) >= 0
}

// Clone returns a deep copy. Patch application never mutates its input.
func (d *Document) Clone() *Document {
	out := &Document{
		HashAlgorithm: d.HashAlgorithm,
		PageHash:      d.PageHash,
		Blocks:        make([]Block, len(d.Blocks)),
	}
	copy(out.Blocks, d.Blocks)
	return out
}
