package patch

import (
	"errors"
	"log/slog"
	"time"

	"github.com/bdir-protocol/bdir/pkg/editpacket"
	"github.com/bdir-protocol/bdir/pkg/model"
)

// PatchTelemetry is the deterministic, machine-readable summary record for
// a validate/apply call. It carries no wall-clock timestamps; ElapsedMS
// (measured on the monotonic clock) is the only non-deterministic field and
// must be excluded from equality comparisons.
type PatchTelemetry struct {
	// Op is the operation category: "validate" or "apply".
	Op string `json:"op"`

	// OK reports whether the operation succeeded.
	OK bool `json:"ok"`

	// ElapsedMS is elapsed time in milliseconds.
	ElapsedMS int64 `json:"elapsed_ms"`

	PatchV int `json:"patch_v"`

	// EditPacketV is set when validating/applying against an edit packet.
	EditPacketV *int `json:"edit_packet_v,omitempty"`

	HashAlgorithm string `json:"hash_algorithm,omitempty"`

	// PatchOps is the total op count.
	PatchOps int `json:"patch_ops"`

	// PatchOpsByType groups op counts by op type. JSON encoding sorts the
	// keys, keeping the record byte-stable.
	PatchOpsByType map[string]int `json:"patch_ops_by_type"`

	// TargetBlocks counts distinct block ids targeted by ops.
	TargetBlocks int `json:"target_blocks"`

	StrictKindCode bool `json:"strict_kind_code"`
	MinBeforeLen   int  `json:"min_before_len"`

	// KindCodeAllow lists allow ranges as "lo-hi" strings when strict
	// kindCode enforcement is on.
	KindCodeAllow []string `json:"kind_code_allow,omitempty"`

	// InputChars / OutputChars are byte lengths of block text, summed in
	// block order.
	InputChars  *int `json:"input_chars,omitempty"`
	OutputChars *int `json:"output_chars,omitempty"`

	// ErrorCode is the lowercased diagnostic code when validation failed.
	ErrorCode string `json:"error_code,omitempty"`
}

// Emit writes the record through a structured logger.
func (t PatchTelemetry) Emit(logger *slog.Logger) {
	logger.Info("patch telemetry",
		"op", t.Op,
		"ok", t.OK,
		"elapsed_ms", t.ElapsedMS,
		"patch_v", t.PatchV,
		"hash_algorithm", t.HashAlgorithm,
		"patch_ops", t.PatchOps,
		"target_blocks", t.TargetBlocks,
		"strict_kind_code", t.StrictKindCode,
		"min_before_len", t.MinBeforeLen,
		"error_code", t.ErrorCode,
	)
}

// OpCounts summarizes ops: total, counts by type, and distinct targets.
func OpCounts(ops []PatchOp) (total int, byType map[string]int, targetBlocks int) {
	byType = make(map[string]int)
	targets := make(map[string]struct{})
	for _, op := range ops {
		byType[string(op.Op)]++
		targets[op.BlockID] = struct{}{}
	}
	return len(ops), byType, len(targets)
}

// KindAllowStrings formats policy ranges as "lo-hi" strings.
func KindAllowStrings(ranges []KindCodeRange) []string {
	out := make([]string, len(ranges))
	for i, r := range ranges {
		out[i] = r.String()
	}
	return out
}

func baseTelemetry(op string, p *PatchV1, opts ValidateOptions) PatchTelemetry {
	total, byType, targets := OpCounts(p.Ops)
	tel := PatchTelemetry{
		Op:             op,
		PatchV:         p.V,
		PatchOps:       total,
		PatchOpsByType: byType,
		TargetBlocks:   targets,
		StrictKindCode: opts.StrictKindCode,
		MinBeforeLen:   opts.MinBeforeLen,
	}
	if opts.StrictKindCode {
		tel.KindCodeAllow = KindAllowStrings(opts.KindCodePolicy.AllowRanges)
	}
	return tel
}

func docChars(doc *model.Document) int {
	sum := 0
	for _, b := range doc.Blocks {
		sum += len(b.Text)
	}
	return sum
}

func packetChars(packet *editpacket.EditPacketV1) int {
	sum := 0
	for _, t := range packet.B {
		sum += len(t.Text)
	}
	return sum
}

func finishTelemetry(tel *PatchTelemetry, start time.Time, err error) {
	tel.ElapsedMS = time.Since(start).Milliseconds()
	tel.OK = err == nil
	var verr *ValidationError
	if errors.As(err, &verr) {
		tel.ErrorCode = string(verr.FirstCode())
	}
}

// ValidateDocumentWithTelemetry validates and returns deterministic
// telemetry alongside the result, so callers can emit telemetry even on
// failure.
func ValidateDocumentWithTelemetry(doc *model.Document, p *PatchV1, opts ValidateOptions) (PatchTelemetry, error) {
	start := time.Now()
	tel := baseTelemetry("validate", p, opts)
	tel.HashAlgorithm = doc.HashAlgorithm
	in := docChars(doc)
	tel.InputChars = &in

	err := asError(ValidateDocumentWithDiagnostics(doc, p, opts))
	finishTelemetry(&tel, start, err)
	return tel, err
}

// ValidateEditPacketWithTelemetry validates against an edit packet and
// returns deterministic telemetry.
func ValidateEditPacketWithTelemetry(packet *editpacket.EditPacketV1, p *PatchV1, opts ValidateOptions) (PatchTelemetry, error) {
	start := time.Now()
	tel := baseTelemetry("validate", p, opts)
	v := packet.V
	tel.EditPacketV = &v
	tel.HashAlgorithm = packet.HA
	in := packetChars(packet)
	tel.InputChars = &in

	err := asError(ValidateEditPacketWithDiagnostics(packet, p, opts))
	finishTelemetry(&tel, start, err)
	return tel, err
}

// ApplyDocumentWithTelemetry applies and returns deterministic telemetry.
func ApplyDocumentWithTelemetry(doc *model.Document, p *PatchV1, opts ValidateOptions) (*model.Document, PatchTelemetry, error) {
	start := time.Now()
	tel := baseTelemetry("apply", p, opts)
	tel.HashAlgorithm = doc.HashAlgorithm
	in := docChars(doc)
	tel.InputChars = &in

	out, err := ApplyDocumentWithOptions(doc, p, opts)
	if out != nil {
		outChars := docChars(out)
		tel.OutputChars = &outChars
	}
	finishTelemetry(&tel, start, err)
	return out, tel, err
}

// ApplyEditPacketWithTelemetry applies against an edit packet and returns
// deterministic telemetry.
func ApplyEditPacketWithTelemetry(packet *editpacket.EditPacketV1, p *PatchV1, opts ValidateOptions) (*editpacket.EditPacketV1, PatchTelemetry, error) {
	start := time.Now()
	tel := baseTelemetry("apply", p, opts)
	v := packet.V
	tel.EditPacketV = &v
	tel.HashAlgorithm = packet.HA
	in := packetChars(packet)
	tel.InputChars = &in

	out, err := ApplyEditPacketWithOptions(packet, p, opts)
	if out != nil {
		outChars := packetChars(out)
		tel.OutputChars = &outChars
	}
	finishTelemetry(&tel, start, err)
	return out, tel, err
}
