package patch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdir-protocol/bdir/pkg/editpacket"
	"github.com/bdir-protocol/bdir/pkg/hashing"
	"github.com/bdir-protocol/bdir/pkg/model"
)

func occInt(n int) *Occurrence    { return &Occurrence{N: n} }
func occLegacy(s string) *Occurrence { return &Occurrence{Legacy: s} }
func u16ptr(v uint16) *uint16     { return &v }

func testDoc(t *testing.T, algo string) *model.Document {
	t.Helper()
	doc := &model.Document{
		HashAlgorithm: algo,
		Blocks: []model.Block{
			{ID: "p1", KindCode: 2, Text: "This is an example paragraph with a typo teh."},
			{ID: "p2", KindCode: 21, Text: "Footer text here, repeated chrome."},
		},
	}
	require.NoError(t, doc.RecomputeHashes())
	return doc
}

func boundPatch(doc *model.Document, ops ...PatchOp) *PatchV1 {
	return &PatchV1{V: Version, H: strptr(doc.PageHash), HA: strptr(doc.HashAlgorithm), Ops: ops}
}

func requireCode(t *testing.T, verr *ValidationError, code DiagnosticCode) {
	t.Helper()
	require.NotNil(t, verr)
	require.Len(t, verr.Diagnostics, 1)
	assert.Equal(t, code, verr.Diagnostics[0].Code)
}

func TestValidateHappyPathReplace(t *testing.T) {
	doc := testDoc(t, hashing.AlgoXXH64)
	p := boundPatch(doc, PatchOp{
		Op: OpReplace, BlockID: "p1",
		Before: strptr("typo teh"), After: strptr("typo: the"),
	})
	assert.Nil(t, ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions()))
}

func TestValidateUnsupportedPatchVersion(t *testing.T) {
	doc := testDoc(t, hashing.AlgoXXH64)
	p := boundPatch(doc)
	p.V = 2
	verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
	requireCode(t, verr, CodeUnsupportedPatchVersion)
	assert.Equal(t, "unsupported patch version 2", verr.LegacyMessage())
	assert.Equal(t, "v", verr.Diagnostics[0].Path)
}

func TestValidatePageHashBinding(t *testing.T) {
	doc := testDoc(t, hashing.AlgoXXH64)

	t.Run("wrong in-band hash", func(t *testing.T) {
		p := &PatchV1{V: Version, H: strptr("__WRONG__"), Ops: nil}
		verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodePatchPageHashMismatch)
		assert.Equal(t,
			fmt.Sprintf("patch page hash mismatch (expected '__WRONG__', got '%s')", doc.PageHash),
			verr.LegacyMessage())
	})

	t.Run("no binding at all", func(t *testing.T) {
		p := &PatchV1{V: Version}
		verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodePatchPageHashMissing)
	})

	t.Run("out-of-band binding accepted", func(t *testing.T) {
		p := &PatchV1{V: Version}
		opts := DefaultValidateOptions()
		opts.ExpectedPageHash = doc.PageHash
		assert.Nil(t, ValidateDocumentWithDiagnostics(doc, p, opts))
	})

	t.Run("conflicting in-band and out-of-band", func(t *testing.T) {
		p := &PatchV1{V: Version, H: strptr(doc.PageHash)}
		opts := DefaultValidateOptions()
		opts.ExpectedPageHash = "something-else"
		verr := ValidateDocumentWithDiagnostics(doc, p, opts)
		requireCode(t, verr, CodePatchPageHashMismatch)
	})
}

func TestValidateStrictPageHashBinding(t *testing.T) {
	doc := testDoc(t, hashing.AlgoXXH64)
	opts := DefaultValidateOptions()
	opts.StrictPageHashBinding = true
	opts.ExpectedPageHash = doc.PageHash

	t.Run("missing h", func(t *testing.T) {
		p := &PatchV1{V: Version}
		verr := ValidateDocumentWithDiagnostics(doc, p, opts)
		requireCode(t, verr, CodePatchPageHashMissing)
	})

	t.Run("missing ha", func(t *testing.T) {
		p := &PatchV1{V: Version, H: strptr(doc.PageHash)}
		verr := ValidateDocumentWithDiagnostics(doc, p, opts)
		requireCode(t, verr, CodeMissingField)
		assert.Equal(t, "ha", verr.Diagnostics[0].Path)
	})

	t.Run("blank ha", func(t *testing.T) {
		p := &PatchV1{V: Version, H: strptr(doc.PageHash), HA: strptr("  ")}
		verr := ValidateDocumentWithDiagnostics(doc, p, opts)
		requireCode(t, verr, CodeMissingField)
	})

	t.Run("full in-band binding passes", func(t *testing.T) {
		p := boundPatch(doc)
		assert.Nil(t, ValidateDocumentWithDiagnostics(doc, p, opts))
	})
}

func TestValidateHashAlgorithmBinding(t *testing.T) {
	doc := testDoc(t, hashing.AlgoXXH64)

	t.Run("mismatched ha", func(t *testing.T) {
		p := &PatchV1{V: Version, H: strptr(doc.PageHash), HA: strptr("sha256")}
		verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodeHashAlgorithmMismatch)
	})

	t.Run("ha normalized before comparison", func(t *testing.T) {
		p := &PatchV1{V: Version, H: strptr(doc.PageHash), HA: strptr(" XXH64 ")}
		assert.Nil(t, ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions()))
	})

	t.Run("empty ha with h present", func(t *testing.T) {
		p := &PatchV1{V: Version, H: strptr(doc.PageHash), HA: strptr("")}
		verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodeMissingField)
		assert.Equal(t, "patch ha is empty", verr.LegacyMessage())
	})

	t.Run("ha ignored when h absent", func(t *testing.T) {
		p := &PatchV1{V: Version, HA: strptr("sha256")}
		opts := DefaultValidateOptions()
		opts.ExpectedPageHash = doc.PageHash
		assert.Nil(t, ValidateDocumentWithDiagnostics(doc, p, opts))
	})
}

func TestValidateUnknownBlockID(t *testing.T) {
	doc := testDoc(t, hashing.AlgoXXH64)
	p := boundPatch(doc, PatchOp{
		Op: OpReplace, BlockID: "nope",
		Before: strptr("whatever!"), After: strptr("x"),
	})
	verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
	requireCode(t, verr, CodeUnknownBlockID)
	assert.Equal(t, "ops[0] references unknown block_id 'nope'", verr.LegacyMessage())
	assert.Equal(t, "ops[0].block_id", verr.Diagnostics[0].Path)
}

func TestValidateSubstringGuards(t *testing.T) {
	doc := testDoc(t, hashing.AlgoXXH64)

	t.Run("missing before", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{Op: OpReplace, BlockID: "p1", After: strptr("x")})
		verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodeMissingField)
		assert.Equal(t, "ops[0] (replace) missing before", verr.LegacyMessage())
	})

	t.Run("missing after", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{Op: OpReplace, BlockID: "p1", Before: strptr("typo teh")})
		verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodeMissingField)
		assert.Equal(t, "ops[0] (replace) missing after", verr.LegacyMessage())
	})

	t.Run("before empty", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{Op: OpReplace, BlockID: "p1", Before: strptr("   "), After: strptr("x")})
		verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodeBeforeEmpty)
	})

	t.Run("length boundary", func(t *testing.T) {
		opts := DefaultValidateOptions()
		opts.MinBeforeLen = 8

		// Exactly 8 codepoints passes the length guard.
		p := boundPatch(doc, PatchOp{Op: OpReplace, BlockID: "p1", Before: strptr("typo teh"), After: strptr("x")})
		assert.Nil(t, ValidateDocumentWithDiagnostics(doc, p, opts))

		// One fewer fails.
		p = boundPatch(doc, PatchOp{Op: OpReplace, BlockID: "p1", Before: strptr("ypo teh"), After: strptr("x")})
		verr := ValidateDocumentWithDiagnostics(doc, p, opts)
		requireCode(t, verr, CodeBeforeTooShort)
		assert.Equal(t, "ops[0] before is too short (<8 chars); likely ambiguous", verr.LegacyMessage())
	})

	t.Run("before not found", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{Op: OpReplace, BlockID: "p1", Before: strptr("not in the text"), After: strptr("x")})
		verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodeBeforeNotFound)
		assert.Equal(t, "ops[0] (replace) before substring not found in block 'p1'", verr.LegacyMessage())
	})
}

func TestValidateOccurrenceSemantics(t *testing.T) {
	doc := &model.Document{
		HashAlgorithm: hashing.AlgoXXH64,
		Blocks:        []model.Block{{ID: "p1", KindCode: 2, Text: "DELETE_ME DELETE_ME"}},
	}
	require.NoError(t, doc.RecomputeHashes())

	opts := DefaultValidateOptions()
	opts.MinBeforeLen = 1

	t.Run("ambiguous delete rejected", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{Op: OpDelete, BlockID: "p1", Before: strptr("DELETE_ME")})
		verr := ValidateDocumentWithDiagnostics(doc, p, opts)
		requireCode(t, verr, CodeBeforeAmbiguous)
		assert.Equal(t,
			"ops[0] (delete) before substring is ambiguous in block 'p1' (matches 2 times); provide occurrence",
			verr.LegacyMessage())
	})

	t.Run("integer occurrence in range", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{Op: OpDelete, BlockID: "p1", Before: strptr("DELETE_ME"), Occurrence: occInt(2)})
		assert.Nil(t, ValidateDocumentWithDiagnostics(doc, p, opts))
	})

	t.Run("occurrence zero out of range", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{Op: OpDelete, BlockID: "p1", Before: strptr("DELETE_ME"), Occurrence: occInt(0)})
		verr := ValidateDocumentWithDiagnostics(doc, p, opts)
		requireCode(t, verr, CodeOccurrenceOutOfRange)
	})

	t.Run("occurrence above matches out of range", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{Op: OpDelete, BlockID: "p1", Before: strptr("DELETE_ME"), Occurrence: occInt(3)})
		verr := ValidateDocumentWithDiagnostics(doc, p, opts)
		requireCode(t, verr, CodeOccurrenceOutOfRange)
		assert.Equal(t,
			"ops[0] (delete) occurrence out of range for block 'p1' (occurrence=3, matches=2)",
			verr.LegacyMessage())
	})

	t.Run("legacy tokens accepted for delete", func(t *testing.T) {
		for _, token := range []string{OccurrenceFirst, OccurrenceAll} {
			p := boundPatch(doc, PatchOp{Op: OpDelete, BlockID: "p1", Before: strptr("DELETE_ME"), Occurrence: occLegacy(token)})
			assert.Nil(t, ValidateDocumentWithDiagnostics(doc, p, opts), token)
		}
	})

	t.Run("legacy tokens rejected for replace", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{
			Op: OpReplace, BlockID: "p1",
			Before: strptr("DELETE_ME"), After: strptr("x"), Occurrence: occLegacy(OccurrenceAll),
		})
		verr := ValidateDocumentWithDiagnostics(doc, p, opts)
		requireCode(t, verr, CodeUnexpectedField)
	})

	t.Run("ambiguous replace rejected", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{
			Op: OpReplace, BlockID: "p1",
			Before: strptr("DELETE_ME"), After: strptr("x"),
		})
		verr := ValidateDocumentWithDiagnostics(doc, p, opts)
		requireCode(t, verr, CodeBeforeAmbiguous)
	})
}

func TestValidateNonOverlappingCount(t *testing.T) {
	doc := &model.Document{
		HashAlgorithm: hashing.AlgoXXH64,
		Blocks:        []model.Block{{ID: "p1", KindCode: 2, Text: "aaaa"}},
	}
	require.NoError(t, doc.RecomputeHashes())

	opts := DefaultValidateOptions()
	opts.MinBeforeLen = 1

	// "aa" in "aaaa" yields 2 non-overlapping matches, not 3: occurrence 2
	// is in range, occurrence 3 is not.
	p := boundPatch(doc, PatchOp{Op: OpDelete, BlockID: "p1", Before: strptr("aa"), Occurrence: occInt(2)})
	assert.Nil(t, ValidateDocumentWithDiagnostics(doc, p, opts))

	p = boundPatch(doc, PatchOp{Op: OpDelete, BlockID: "p1", Before: strptr("aa"), Occurrence: occInt(3)})
	verr := ValidateDocumentWithDiagnostics(doc, p, opts)
	requireCode(t, verr, CodeOccurrenceOutOfRange)
}

func TestValidateStructuralOps(t *testing.T) {
	doc := testDoc(t, hashing.AlgoXXH64)

	t.Run("insert_after happy path", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{
			Op: OpInsertAfter, BlockID: "p1",
			NewBlockID: strptr("p1a"), KindCode: u16ptr(2), Text: strptr("Inserted."),
		})
		assert.Nil(t, ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions()))
	})

	t.Run("insert_after missing new_block_id", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{Op: OpInsertAfter, BlockID: "p1", KindCode: u16ptr(2), Text: strptr("x")})
		verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodeMissingField)
		assert.Equal(t, "ops[0] (insert_after) missing new_block_id", verr.LegacyMessage())
	})

	t.Run("insert_after duplicate id", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{
			Op: OpInsertAfter, BlockID: "p1",
			NewBlockID: strptr("p2"), KindCode: u16ptr(2), Text: strptr("x"),
		})
		verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodeDuplicateBlockID)
	})

	t.Run("insert_before forbids before field", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{
			Op: OpInsertBefore, BlockID: "p1",
			Before: strptr("x"), NewBlockID: strptr("p0"), KindCode: u16ptr(2), Text: strptr("y"),
		})
		verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodeUnexpectedField)
	})

	t.Run("insert_after empty text", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{
			Op: OpInsertAfter, BlockID: "p1",
			NewBlockID: strptr("p1a"), KindCode: u16ptr(2), Text: strptr("  "),
		})
		verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodeContentEmpty)
	})

	t.Run("replace_block requires text", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{Op: OpReplaceBlock, BlockID: "p1"})
		verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodeMissingField)
	})

	t.Run("replace_block forbids new_block_id", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{Op: OpReplaceBlock, BlockID: "p1", Text: strptr("x"), NewBlockID: strptr("p9")})
		verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodeUnexpectedField)
	})

	t.Run("delete_block forbids every optional field", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{Op: OpDeleteBlock, BlockID: "p1", Text: strptr("x")})
		verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodeUnexpectedField)
		assert.Equal(t, "ops[0] (delete_block) contains fields that are not permitted", verr.LegacyMessage())
	})

	t.Run("delete_block bare passes", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{Op: OpDeleteBlock, BlockID: "p2"})
		assert.Nil(t, ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions()))
	})

	t.Run("suggest requires message", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{Op: OpSuggest, BlockID: "p1"})
		verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodeMissingField)

		p = boundPatch(doc, PatchOp{Op: OpSuggest, BlockID: "p1", Message: strptr(" ")})
		verr = ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodeMessageEmpty)
	})

	t.Run("suggest forbids structural fields", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{Op: OpSuggest, BlockID: "p1", Message: strptr("m"), Text: strptr("x")})
		verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodeUnexpectedField)
	})
}

func TestValidateConflictScan(t *testing.T) {
	doc := testDoc(t, hashing.AlgoXXH64)

	t.Run("delete_block plus replace", func(t *testing.T) {
		p := boundPatch(doc,
			PatchOp{Op: OpDeleteBlock, BlockID: "p1"},
			PatchOp{Op: OpReplace, BlockID: "p1", Before: strptr("typo teh"), After: strptr("x")},
		)
		verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodeConflictingOperations)
		// The diagnostic anchors on the non-delete_block op.
		require.NotNil(t, verr.Diagnostics[0].OpIndex)
		assert.Equal(t, 1, *verr.Diagnostics[0].OpIndex)
		assert.Equal(t, OpReplace, verr.Diagnostics[0].Op)
	})

	t.Run("replace_block plus substring delete", func(t *testing.T) {
		p := boundPatch(doc,
			PatchOp{Op: OpReplaceBlock, BlockID: "p1", Text: strptr("New text.")},
			PatchOp{Op: OpDelete, BlockID: "p1", Before: strptr("typo teh.")},
		)
		verr := ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions())
		requireCode(t, verr, CodeConflictingOperations)
		require.NotNil(t, verr.Diagnostics[0].OpIndex)
		assert.Equal(t, 1, *verr.Diagnostics[0].OpIndex)
	})

	t.Run("replace_block plus suggest is allowed", func(t *testing.T) {
		p := boundPatch(doc,
			PatchOp{Op: OpReplaceBlock, BlockID: "p1", Text: strptr("New text.")},
			PatchOp{Op: OpSuggest, BlockID: "p1", Message: strptr("consider tone")},
		)
		assert.Nil(t, ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions()))
	})

	t.Run("ops on distinct blocks never conflict", func(t *testing.T) {
		p := boundPatch(doc,
			PatchOp{Op: OpDeleteBlock, BlockID: "p2"},
			PatchOp{Op: OpReplace, BlockID: "p1", Before: strptr("typo teh"), After: strptr("x")},
		)
		assert.Nil(t, ValidateDocumentWithDiagnostics(doc, p, DefaultValidateOptions()))
	})
}

func TestValidateStrictKindCode(t *testing.T) {
	doc := testDoc(t, hashing.AlgoXXH64)
	opts := DefaultValidateOptions()
	opts.StrictKindCode = true
	opts.MinBeforeLen = 1

	t.Run("mutation on boilerplate rejected", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{Op: OpReplace, BlockID: "p2", Before: strptr("Footer text"), After: strptr("x")})
		verr := ValidateDocumentWithDiagnostics(doc, p, opts)
		requireCode(t, verr, CodeKindCodeDisallowed)
		assert.Equal(t,
			"ops[0] targets kindCode 21, which is disallowed under strict kindCode policy (allow_ranges=[0-19], allow_suggest_any=true)",
			verr.LegacyMessage())
	})

	t.Run("suggest on boilerplate allowed", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{Op: OpSuggest, BlockID: "p2", Message: strptr("trim this")})
		assert.Nil(t, ValidateDocumentWithDiagnostics(doc, p, opts))
	})

	t.Run("suggest blocked when allow_suggest_any off", func(t *testing.T) {
		strict := opts
		strict.KindCodePolicy.AllowSuggestAny = false
		p := boundPatch(doc, PatchOp{Op: OpSuggest, BlockID: "p2", Message: strptr("trim this")})
		verr := ValidateDocumentWithDiagnostics(doc, p, strict)
		requireCode(t, verr, CodeKindCodeDisallowed)
	})

	t.Run("mutation on core allowed", func(t *testing.T) {
		p := boundPatch(doc, PatchOp{Op: OpReplace, BlockID: "p1", Before: strptr("typo teh"), After: strptr("x")})
		assert.Nil(t, ValidateDocumentWithDiagnostics(doc, p, opts))
	})
}

func packetFromDoc(t *testing.T, doc *model.Document, tid string) *editpacket.EditPacketV1 {
	t.Helper()
	return editpacket.FromDocument(doc, tid)
}

func TestValidateEditPacketSurface(t *testing.T) {
	doc := testDoc(t, hashing.AlgoSHA256)
	packet := packetFromDoc(t, doc, "tid-1")

	t.Run("implicit page-hash binding", func(t *testing.T) {
		p := &PatchV1{V: Version, Ops: []PatchOp{{
			Op: OpReplace, BlockID: "p1",
			Before: strptr("typo teh"), After: strptr("typo: the"),
		}}}
		assert.Nil(t, ValidateEditPacketWithDiagnostics(packet, p, DefaultValidateOptions()))
	})

	t.Run("strict binding disables the implicit default", func(t *testing.T) {
		opts := DefaultValidateOptions()
		opts.StrictPageHashBinding = true
		p := &PatchV1{V: Version}
		verr := ValidateEditPacketWithDiagnostics(packet, p, opts)
		requireCode(t, verr, CodePatchPageHashMissing)
	})

	t.Run("unsupported packet version", func(t *testing.T) {
		bad := *packet
		bad.V = 9
		p := &PatchV1{V: Version}
		verr := ValidateEditPacketWithDiagnostics(&bad, p, DefaultValidateOptions())
		requireCode(t, verr, CodeUnsupportedEditPacketVersion)
		assert.Equal(t, "unsupported edit packet version 9", verr.LegacyMessage())
	})

	t.Run("kindCode outside canonical ranges", func(t *testing.T) {
		weird := doc.Clone()
		weird.Blocks[0].KindCode = 77
		require.NoError(t, weird.RecomputeHashes())
		wp := packetFromDoc(t, weird, "")

		p := &PatchV1{V: Version, Ops: []PatchOp{{
			Op: OpReplace, BlockID: "p1",
			Before: strptr("typo teh"), After: strptr("x"),
		}}}
		verr := ValidateEditPacketWithDiagnostics(wp, p, DefaultValidateOptions())
		requireCode(t, verr, CodeKindCodeOutOfRange)
	})

	t.Run("unknown code 99 is canonical", func(t *testing.T) {
		unk := doc.Clone()
		unk.Blocks[0].KindCode = 99
		require.NoError(t, unk.RecomputeHashes())
		up := packetFromDoc(t, unk, "")

		p := &PatchV1{V: Version, Ops: []PatchOp{{
			Op: OpReplace, BlockID: "p1",
			Before: strptr("typo teh"), After: strptr("x"),
		}}}
		assert.Nil(t, ValidateEditPacketWithDiagnostics(up, p, DefaultValidateOptions()))
	})
}

func TestValidateReturnsErrorInterfaceCleanly(t *testing.T) {
	doc := testDoc(t, hashing.AlgoXXH64)
	p := boundPatch(doc)

	// A typed-nil *ValidationError must not leak through the error return.
	err := ValidateDocument(doc, p)
	assert.NoError(t, err)

	err = ValidateDocumentWithOptions(doc, &PatchV1{V: 3}, DefaultValidateOptions())
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
