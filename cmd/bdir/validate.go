package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/bdir-protocol/bdir/pkg/editpacket"
	"github.com/bdir-protocol/bdir/pkg/patch"
	"github.com/bdir-protocol/bdir/pkg/policy"
	"github.com/bdir-protocol/bdir/pkg/schemagate"
)

// validateFlags carries the options shared by validate-patch and
// apply-patch.
type validateFlags struct {
	minBeforeLen          int
	strictKindCode        bool
	strictPageHashBinding bool
	kindCodeAllow         stringList
	policyFile            string
}

func (f *validateFlags) register(cmd *flag.FlagSet) {
	cmd.IntVar(&f.minBeforeLen, "min-before-len", 0, "Minimum character length for before substrings (default 8)")
	cmd.BoolVar(&f.strictKindCode, "strict-kindcode", false, "Enforce the kindCode policy on mutating ops")
	cmd.BoolVar(&f.strictPageHashBinding, "strict-page-hash-binding", false, "Require the patch to carry h and ha in-band")
	cmd.Var(&f.kindCodeAllow, "kindcode-allow", "Allowed kindCode range lo-hi under --strict-kindcode (repeatable)")
	cmd.StringVar(&f.policyFile, "policy", "", "YAML policy file with validator options")
}

// options merges policy-file values with flag overrides (flags win).
func (f *validateFlags) options(stderr io.Writer) (patch.ValidateOptions, int) {
	opts := patch.DefaultValidateOptions()
	if f.policyFile != "" {
		loaded, err := policy.Load(f.policyFile)
		if err != nil {
			_, _ = fmt.Fprintln(stderr, err)
			return opts, 1
		}
		opts = loaded
	}

	if f.minBeforeLen > 0 {
		opts.MinBeforeLen = f.minBeforeLen
	}
	if f.strictKindCode {
		opts.StrictKindCode = true
	}
	if f.strictPageHashBinding {
		opts.StrictPageHashBinding = true
	}
	if len(f.kindCodeAllow) > 0 {
		ranges := make([]patch.KindCodeRange, 0, len(f.kindCodeAllow))
		for _, s := range f.kindCodeAllow {
			r, err := policy.ParseKindCodeRange(s)
			if err != nil {
				_, _ = fmt.Fprintln(stderr, err)
				return opts, 1
			}
			ranges = append(ranges, r)
		}
		opts.KindCodePolicy.AllowRanges = ranges
	}

	return opts, 0
}

// loadPacketAndPatch schema-gates and parses both wire files. Schema or IO
// failure is exit 1, distinct from semantic failure.
func loadPacketAndPatch(packetPath, patchPath string, stderr io.Writer) (*editpacket.EditPacketV1, *patch.PatchV1, int) {
	packetRaw, err := os.ReadFile(packetPath)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return nil, nil, 1
	}
	if err := schemagate.CheckEditPacket(packetRaw); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return nil, nil, 1
	}
	packet, err := editpacket.Parse(packetRaw)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return nil, nil, 1
	}

	patchRaw, err := os.ReadFile(patchPath)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return nil, nil, 1
	}
	if err := schemagate.CheckPatch(patchRaw); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return nil, nil, 1
	}
	p, err := patch.Parse(patchRaw)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return nil, nil, 1
	}

	return packet, p, 0
}

// runValidatePatchCmd implements `bdir validate-patch`.
func runValidatePatchCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("validate-patch", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		vf              validateFlags
		telemetryJSON   bool
		diagnosticsJSON bool
	)
	vf.register(cmd)
	cmd.BoolVar(&telemetryJSON, "telemetry-json", false, "Print the telemetry record as JSON")
	cmd.BoolVar(&diagnosticsJSON, "diagnostics-json", false, "Print structured diagnostics as JSON on failure")

	if err := cmd.Parse(args); err != nil {
		return 1
	}
	if cmd.NArg() != 2 {
		_, _ = fmt.Fprintln(stderr, "Usage: bdir validate-patch <edit-packet.json> <patch.json> [options]")
		return 1
	}

	opts, code := vf.options(stderr)
	if code != 0 {
		return code
	}

	packet, p, code := loadPacketAndPatch(cmd.Arg(0), cmd.Arg(1), stderr)
	if code != 0 {
		return code
	}

	tel, err := patch.ValidateEditPacketWithTelemetry(packet, p, opts)
	if telemetryJSON {
		emitJSON(stderr, tel)
	}
	tel.Emit(newLogger(stderr))

	if err != nil {
		var verr *patch.ValidationError
		if diagnosticsJSON && errors.As(err, &verr) {
			emitJSON(stderr, verr)
		} else {
			_, _ = fmt.Fprintln(stderr, err)
		}
		return 2
	}

	_, _ = fmt.Fprintln(stdout, "OK")
	return 0
}

func emitJSON(w io.Writer, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintln(w, string(data))
}
