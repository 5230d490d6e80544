package patch

import (
	"fmt"
	"strings"

	"github.com/bdir-protocol/bdir/pkg/codebook"
	"github.com/bdir-protocol/bdir/pkg/editpacket"
	"github.com/bdir-protocol/bdir/pkg/hashing"
	"github.com/bdir-protocol/bdir/pkg/model"
)

// KindCodeRange is an inclusive kindCode range.
type KindCodeRange struct {
	Lo uint16 `json:"lo" yaml:"lo"`
	Hi uint16 `json:"hi" yaml:"hi"`
}

func (r KindCodeRange) String() string { return fmt.Sprintf("%d-%d", r.Lo, r.Hi) }

// KindCodePolicy is the kindCode enforcement policy applied when strict
// kindCode validation is enabled: mutating ops must target blocks whose
// kindCode falls in an allowed range.
type KindCodePolicy struct {
	// AllowRanges lists allowed inclusive kindCode ranges.
	AllowRanges []KindCodeRange `json:"allow_ranges" yaml:"allow_ranges"`

	// AllowSuggestAny permits `suggest` ops on any kindCode, preserving the
	// ability to attach non-mutating guidance to boilerplate/UI blocks while
	// still blocking mutations.
	AllowSuggestAny bool `json:"allow_suggest_any" yaml:"allow_suggest_any"`
}

// DefaultKindCodePolicy allows kindCodes 0-19 (the core tier) and `suggest`
// on any kindCode.
func DefaultKindCodePolicy() KindCodePolicy {
	return KindCodePolicy{
		AllowRanges:     []KindCodeRange{{Lo: 0, Hi: 19}},
		AllowSuggestAny: true,
	}
}

// Allows reports whether the policy permits an op on a block of the given
// kindCode.
func (p KindCodePolicy) Allows(op OpType, kindCode uint16) bool {
	if op == OpSuggest && p.AllowSuggestAny {
		return true
	}
	for _, r := range p.AllowRanges {
		if kindCode >= r.Lo && kindCode <= r.Hi {
			return true
		}
	}
	return false
}

func (p KindCodePolicy) summary() string {
	if len(p.AllowRanges) == 0 {
		return "allow_ranges=[]"
	}
	parts := make([]string, len(p.AllowRanges))
	for i, r := range p.AllowRanges {
		parts[i] = r.String()
	}
	return fmt.Sprintf("allow_ranges=[%s], allow_suggest_any=%t", strings.Join(parts, ","), p.AllowSuggestAny)
}

// ValidateOptions makes the validator's safety/strictness trade-offs
// explicit and testable.
type ValidateOptions struct {
	// MinBeforeLen is the minimum character length for `before` substrings.
	// Short `before` strings can match unintended parts of a block.
	MinBeforeLen int

	// StrictKindCode enables kindCode policy enforcement.
	StrictKindCode bool

	// KindCodePolicy is applied when StrictKindCode is set.
	KindCodePolicy KindCodePolicy

	// ExpectedPageHash is an out-of-band page-hash binding. When set, it is
	// the required binding and conflicts with an in-band patch.h are
	// rejected.
	ExpectedPageHash string

	// StrictPageHashBinding requires an explicit in-band binding (patch.h
	// and patch.ha), even when an out-of-band expected hash is available.
	StrictPageHashBinding bool
}

// DefaultValidateOptions returns the conservative defaults.
func DefaultValidateOptions() ValidateOptions {
	return ValidateOptions{
		MinBeforeLen:   8,
		KindCodePolicy: DefaultKindCodePolicy(),
	}
}

// ValidateDocument validates a patch against a document under default
// options. Strict and fail-fast.
func ValidateDocument(doc *model.Document, p *PatchV1) error {
	return asError(ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions()))
}

// ValidateDocumentWithOptions validates with configurable options.
func ValidateDocumentWithOptions(doc *model.Document, p *PatchV1, opts ValidateOptions) error {
	return asError(ValidateDocumentWithDiagnostics(doc, p, opts))
}

// ValidateDocumentWithDiagnostics validates and returns structured
// diagnostics (nil on acceptance).
func ValidateDocumentWithDiagnostics(doc *model.Document, p *PatchV1, opts ValidateOptions) *ValidationError {
	return validateAgainst(doc, p, opts, false)
}

// ValidateEditPacket validates a patch against an edit packet under default
// options. This is the preferred validation surface for AI pipelines.
func ValidateEditPacket(packet *editpacket.EditPacketV1, p *PatchV1) error {
	return asError(ValidateEditPacketWithDiagnostics(packet, p, DefaultValidateOptions()))
}

// ValidateEditPacketWithOptions validates with configurable options.
func ValidateEditPacketWithOptions(packet *editpacket.EditPacketV1, p *PatchV1, opts ValidateOptions) error {
	return asError(ValidateEditPacketWithDiagnostics(packet, p, opts))
}

// ValidateEditPacketWithDiagnostics validates against an edit packet and
// returns structured diagnostics.
//
// Page-hash binding: the packet's `h` is authoritative. If the patch omits
// `h`, the expected page hash defaults to the packet's, unless strict
// binding mode forbids the implicit default.
func ValidateEditPacketWithDiagnostics(packet *editpacket.EditPacketV1, p *PatchV1, opts ValidateOptions) *ValidationError {
	if p.V != Version {
		return errRoot(CodeUnsupportedPatchVersion, "v",
			fmt.Sprintf("unsupported patch version %d", p.V))
	}
	if packet.V != editpacket.Version {
		return errRoot(CodeUnsupportedEditPacketVersion, "v",
			fmt.Sprintf("unsupported edit packet version %d", packet.V))
	}

	if !opts.StrictPageHashBinding && opts.ExpectedPageHash == "" {
		opts.ExpectedPageHash = packet.H
	}

	return validateAgainst(packet.ToDocument(), p, opts, true)
}

func asError(verr *ValidationError) error {
	if verr != nil {
		return verr
	}
	return nil
}

func validateAgainst(doc *model.Document, p *PatchV1, opts ValidateOptions, packetSurface bool) *ValidationError {
	if p.V != Version {
		return errRoot(CodeUnsupportedPatchVersion, "v",
			fmt.Sprintf("unsupported patch version %d", p.V))
	}

	// Strict page-hash binding: the patch itself must carry `h` + `ha`.
	if opts.StrictPageHashBinding {
		if p.H == nil {
			return errRoot(CodePatchPageHashMissing, "h",
				"patch is missing required page hash binding (strict): include patch.h and patch.ha")
		}
		if p.HA == nil || strings.TrimSpace(*p.HA) == "" {
			return errRoot(CodeMissingField, "ha",
				"patch is missing required hash algorithm binding (strict): include patch.ha")
		}
	}

	// A patch must be bound to a specific page version: either in-band via
	// `h`, or out-of-band via ExpectedPageHash.
	var expected string
	switch {
	case p.H != nil && opts.ExpectedPageHash != "":
		if *p.H != opts.ExpectedPageHash {
			return errRoot(CodePatchPageHashMismatch, "h",
				fmt.Sprintf("patch page hash mismatch (patch.h='%s' differs from expected_page_hash='%s')",
					*p.H, opts.ExpectedPageHash))
		}
		expected = *p.H
	case p.H != nil:
		expected = *p.H
	case opts.ExpectedPageHash != "":
		expected = opts.ExpectedPageHash
	default:
		return errRoot(CodePatchPageHashMissing, "h",
			"patch is missing required page hash binding: include patch.h or provide expected_page_hash")
	}

	// Algorithm binding: `ha` identifies the algorithm `h` was computed
	// under. It only applies when the patch carries an in-band `h`; for an
	// out-of-band binding the algorithm is implied by the target.
	if p.H != nil && p.HA != nil {
		patchAlgo := strings.ToLower(strings.TrimSpace(*p.HA))
		if patchAlgo == "" {
			return errRoot(CodeMissingField, "ha", "patch ha is empty")
		}
		docAlgo := strings.ToLower(strings.TrimSpace(doc.HashAlgorithm))
		if patchAlgo != docAlgo {
			return errRoot(CodeHashAlgorithmMismatch, "ha",
				fmt.Sprintf("patch hash algorithm mismatch (patch.ha='%s', doc.hash_algorithm='%s')",
					*p.HA, doc.HashAlgorithm))
		}
	}

	if doc.PageHash != expected {
		return errRoot(CodePatchPageHashMismatch, "h",
			fmt.Sprintf("patch page hash mismatch (expected '%s', got '%s')", expected, doc.PageHash))
	}

	if verr := scanConflicts(p.Ops); verr != nil {
		return verr
	}

	for i, op := range p.Ops {
		idx := doc.BlockIndex(op.BlockID)
		if idx < 0 {
			return errOp(CodeUnknownBlockID, i, op.Op, op.BlockID,
				fmt.Sprintf("ops[%d].block_id", i),
				fmt.Sprintf("ops[%d] references unknown block_id '%s'", i, op.BlockID))
		}
		block := &doc.Blocks[idx]

		if verr := enforceKindCode(i, op.Op, op.BlockID, block.KindCode, opts); verr != nil {
			return verr
		}

		// Edit packets only carry canonical v1 kindCodes.
		if packetSurface && !codebook.InCanonicalRange(block.KindCode) {
			return errOp(CodeKindCodeOutOfRange, i, op.Op, op.BlockID,
				fmt.Sprintf("ops[%d].block_id", i),
				fmt.Sprintf("ops[%d] targets kindCode %d, which is outside canonical v1 importance ranges (0-59, 99)",
					i, block.KindCode))
		}

		var verr *ValidationError
		switch op.Op {
		case OpReplace:
			verr = checkReplace(i, op, block, opts)
		case OpDelete:
			verr = checkDelete(i, op, block, opts)
		case OpInsertAfter, OpInsertBefore:
			verr = checkInsert(i, op, doc)
		case OpReplaceBlock:
			verr = checkReplaceBlock(i, op)
		case OpDeleteBlock:
			verr = checkDeleteBlock(i, op)
		case OpSuggest:
			verr = checkSuggest(i, op)
		default:
			verr = errOp(CodeUnexpectedField, i, op.Op, op.BlockID,
				fmt.Sprintf("ops[%d].op", i),
				fmt.Sprintf("ops[%d] has unknown op '%s'", i, op.Op))
		}
		if verr != nil {
			return verr
		}
	}

	return nil
}

// scanConflicts rejects patches with conflicting mutating operations
// targeting the same block_id:
//   - delete_block conflicts with any other op on the same block
//   - replace_block conflicts with substring replace/delete on the same block
func scanConflicts(ops []PatchOp) *ValidationError {
	type entry struct {
		index int
		op    OpType
	}
	groups := make(map[string][]entry)
	order := make([]string, 0, len(ops))
	for i, op := range ops {
		if _, seen := groups[op.BlockID]; !seen {
			order = append(order, op.BlockID)
		}
		groups[op.BlockID] = append(groups[op.BlockID], entry{i, op.Op})
	}

	for _, blockID := range order {
		group := groups[blockID]

		hasDeleteBlock := false
		for _, e := range group {
			if e.op == OpDeleteBlock {
				hasDeleteBlock = true
				break
			}
		}
		if hasDeleteBlock && len(group) > 1 {
			offender := group[0]
			for _, e := range group {
				if e.op != OpDeleteBlock {
					offender = e
					break
				}
			}
			return errOp(CodeConflictingOperations, offender.index, ops[offender.index].Op, blockID,
				fmt.Sprintf("ops[%d].op", offender.index),
				fmt.Sprintf("conflicting operations for block_id '%s' (delete_block cannot be combined with other ops)", blockID))
		}

		hasReplaceBlock := false
		for _, e := range group {
			if e.op == OpReplaceBlock {
				hasReplaceBlock = true
				break
			}
		}
		if hasReplaceBlock {
			for _, e := range group {
				if e.op == OpReplace || e.op == OpDelete {
					return errOp(CodeConflictingOperations, e.index, ops[e.index].Op, blockID,
						fmt.Sprintf("ops[%d].op", e.index),
						fmt.Sprintf("conflicting operations for block_id '%s' (replace_block cannot be combined with substring replace/delete)", blockID))
				}
			}
		}
	}

	return nil
}

func enforceKindCode(i int, op OpType, blockID string, kindCode uint16, opts ValidateOptions) *ValidationError {
	if !opts.StrictKindCode {
		return nil
	}
	if opts.KindCodePolicy.Allows(op, kindCode) {
		return nil
	}
	return errOp(CodeKindCodeDisallowed, i, op, blockID,
		fmt.Sprintf("ops[%d].block_id", i),
		fmt.Sprintf("ops[%d] targets kindCode %d, which is disallowed under strict kindCode policy (%s)",
			i, kindCode, opts.KindCodePolicy.summary()))
}

// guardBefore enforces `before` safety constraints over the NFC view.
func guardBefore(i int, op OpType, blockID, before string, minBeforeLen int) *ValidationError {
	beforeNFC := hashing.NormalizeNFC(before)

	if strings.TrimSpace(beforeNFC) == "" {
		return errOp(CodeBeforeEmpty, i, op, blockID,
			fmt.Sprintf("ops[%d].before", i),
			fmt.Sprintf("ops[%d] before is empty", i))
	}

	// Codepoint count, not bytes, to avoid surprises with non-ASCII input.
	if len([]rune(beforeNFC)) < minBeforeLen {
		return errOp(CodeBeforeTooShort, i, op, blockID,
			fmt.Sprintf("ops[%d].before", i),
			fmt.Sprintf("ops[%d] before is too short (<%d chars); likely ambiguous", i, minBeforeLen))
	}

	return nil
}

func missingField(i int, op PatchOp, field string) *ValidationError {
	return errOp(CodeMissingField, i, op.Op, op.BlockID,
		fmt.Sprintf("ops[%d].%s", i, field),
		fmt.Sprintf("ops[%d] (%s) missing %s", i, op.Op, field))
}

func unexpectedField(i int, op PatchOp, field, hint string) *ValidationError {
	return errOp(CodeUnexpectedField, i, op.Op, op.BlockID,
		fmt.Sprintf("ops[%d].%s", i, field),
		fmt.Sprintf("ops[%d] (%s) unexpected %s (%s)", i, op.Op, field, hint))
}

func checkReplace(i int, op PatchOp, block *model.Block, opts ValidateOptions) *ValidationError {
	if op.Before == nil {
		return missingField(i, op, "before")
	}
	if op.After == nil {
		return missingField(i, op, "after")
	}
	if op.NewBlockID != nil {
		return unexpectedField(i, op, "new_block_id", "replace must not include structural insert fields")
	}
	if op.KindCode != nil {
		return unexpectedField(i, op, "kind_code", "replace must not include structural insert fields")
	}
	if op.Text != nil {
		return unexpectedField(i, op, "text", "replace must not include structural insert fields")
	}
	if op.Message != nil {
		return unexpectedField(i, op, "message", "replace is mutating; use suggest instead")
	}

	if verr := guardBefore(i, op.Op, op.BlockID, *op.Before, opts.MinBeforeLen); verr != nil {
		return verr
	}

	matches := countNonOverlapping(block.Text, *op.Before)
	if matches == 0 {
		return errOp(CodeBeforeNotFound, i, op.Op, op.BlockID,
			fmt.Sprintf("ops[%d].before", i),
			fmt.Sprintf("ops[%d] (replace) before substring not found in block '%s'", i, op.BlockID))
	}

	switch {
	case op.Occurrence == nil:
		if matches > 1 {
			return errOp(CodeBeforeAmbiguous, i, op.Op, op.BlockID,
				fmt.Sprintf("ops[%d].before", i),
				fmt.Sprintf("ops[%d] (replace) before substring is ambiguous in block '%s' (matches %d times); provide occurrence",
					i, op.BlockID, matches))
		}
	case op.Occurrence.IsLegacy():
		return errOp(CodeUnexpectedField, i, op.Op, op.BlockID,
			fmt.Sprintf("ops[%d].occurrence", i),
			fmt.Sprintf("ops[%d] (replace) invalid occurrence value (legacy string values are delete-only; use integer occurrence)", i))
	default:
		if op.Occurrence.N < 1 || op.Occurrence.N > matches {
			return occurrenceOutOfRange(i, op, matches)
		}
	}

	return nil
}

func checkDelete(i int, op PatchOp, block *model.Block, opts ValidateOptions) *ValidationError {
	if op.Before == nil {
		return missingField(i, op, "before")
	}

	if verr := guardBefore(i, op.Op, op.BlockID, *op.Before, opts.MinBeforeLen); verr != nil {
		return verr
	}

	matches := countNonOverlapping(block.Text, *op.Before)
	if matches == 0 {
		return errOp(CodeBeforeNotFound, i, op.Op, op.BlockID,
			fmt.Sprintf("ops[%d].before", i),
			fmt.Sprintf("ops[%d] (delete) before substring not found in block '%s'", i, op.BlockID))
	}

	switch {
	case op.Occurrence == nil:
		if matches > 1 {
			return errOp(CodeBeforeAmbiguous, i, op.Op, op.BlockID,
				fmt.Sprintf("ops[%d].before", i),
				fmt.Sprintf("ops[%d] (delete) before substring is ambiguous in block '%s' (matches %d times); provide occurrence",
					i, op.BlockID, matches))
		}
	case op.Occurrence.IsLegacy():
		// Legacy "first"/"all" delete semantics remain accepted.
	default:
		if op.Occurrence.N < 1 || op.Occurrence.N > matches {
			return occurrenceOutOfRange(i, op, matches)
		}
	}

	return nil
}

func occurrenceOutOfRange(i int, op PatchOp, matches int) *ValidationError {
	return errOp(CodeOccurrenceOutOfRange, i, op.Op, op.BlockID,
		fmt.Sprintf("ops[%d].occurrence", i),
		fmt.Sprintf("ops[%d] (%s) occurrence out of range for block '%s' (occurrence=%d, matches=%d)",
			i, op.Op, op.BlockID, op.Occurrence.N, matches))
}

func checkInsert(i int, op PatchOp, doc *model.Document) *ValidationError {
	if op.Occurrence != nil {
		return unexpectedField(i, op, "occurrence", "only valid for delete")
	}
	if op.Before != nil {
		return unexpectedField(i, op, "before", fmt.Sprintf("%s must not include before/after", op.Op))
	}
	if op.After != nil {
		return unexpectedField(i, op, "after", fmt.Sprintf("%s must not include before/after", op.Op))
	}
	if op.Message != nil {
		return unexpectedField(i, op, "message", fmt.Sprintf("%s is mutating; use suggest instead", op.Op))
	}

	if op.NewBlockID == nil {
		return missingField(i, op, "new_block_id")
	}
	if strings.TrimSpace(*op.NewBlockID) == "" {
		return errOp(CodeContentEmpty, i, op.Op, op.BlockID,
			fmt.Sprintf("ops[%d].new_block_id", i),
			fmt.Sprintf("ops[%d] (%s) new_block_id is empty", i, op.Op))
	}
	if doc.HasBlock(*op.NewBlockID) {
		return errOp(CodeDuplicateBlockID, i, op.Op, op.BlockID,
			fmt.Sprintf("ops[%d].new_block_id", i),
			fmt.Sprintf("ops[%d] (%s) new_block_id '%s' already exists", i, op.Op, *op.NewBlockID))
	}

	if op.KindCode == nil {
		return missingField(i, op, "kind_code")
	}

	if op.Text == nil {
		return missingField(i, op, "text")
	}
	if strings.TrimSpace(*op.Text) == "" {
		return errOp(CodeContentEmpty, i, op.Op, op.BlockID,
			fmt.Sprintf("ops[%d].text", i),
			fmt.Sprintf("ops[%d] (%s) text is empty", i, op.Op))
	}

	return nil
}

func checkReplaceBlock(i int, op PatchOp) *ValidationError {
	if op.Occurrence != nil {
		return unexpectedField(i, op, "occurrence", "only valid for delete")
	}
	if op.Before != nil {
		return unexpectedField(i, op, "before", "replace_block rewrites the whole block")
	}
	if op.After != nil {
		return unexpectedField(i, op, "after", "replace_block rewrites the whole block")
	}
	if op.NewBlockID != nil {
		return unexpectedField(i, op, "new_block_id", "replace_block keeps the anchor id")
	}
	if op.Message != nil {
		return unexpectedField(i, op, "message", "replace_block is mutating; use suggest instead")
	}

	if op.Text == nil {
		return missingField(i, op, "text")
	}
	if strings.TrimSpace(*op.Text) == "" {
		return errOp(CodeContentEmpty, i, op.Op, op.BlockID,
			fmt.Sprintf("ops[%d].text", i),
			fmt.Sprintf("ops[%d] (replace_block) text is empty", i))
	}

	return nil
}

func checkDeleteBlock(i int, op PatchOp) *ValidationError {
	if op.Occurrence != nil || op.Before != nil || op.After != nil ||
		op.NewBlockID != nil || op.KindCode != nil || op.Text != nil || op.Message != nil {
		return errOp(CodeUnexpectedField, i, op.Op, op.BlockID,
			fmt.Sprintf("ops[%d]", i),
			fmt.Sprintf("ops[%d] (delete_block) contains fields that are not permitted", i))
	}
	return nil
}

func checkSuggest(i int, op PatchOp) *ValidationError {
	if op.Occurrence != nil {
		return unexpectedField(i, op, "occurrence", "only valid for delete")
	}
	if op.Before != nil {
		return unexpectedField(i, op, "before", "suggest must not include before/after")
	}
	if op.After != nil {
		return unexpectedField(i, op, "after", "suggest must not include before/after")
	}
	if op.Text != nil || op.NewBlockID != nil || op.KindCode != nil {
		return errOp(CodeUnexpectedField, i, op.Op, op.BlockID,
			fmt.Sprintf("ops[%d].text", i),
			fmt.Sprintf("ops[%d] (suggest) unexpected insert_after fields (suggest is non-mutating; use insert_after instead)", i))
	}

	if op.Message == nil {
		return missingField(i, op, "message")
	}
	if strings.TrimSpace(*op.Message) == "" {
		return errOp(CodeMessageEmpty, i, op.Op, op.BlockID,
			fmt.Sprintf("ops[%d].message", i),
			fmt.Sprintf("ops[%d] (suggest) message is empty", i))
	}

	return nil
}
