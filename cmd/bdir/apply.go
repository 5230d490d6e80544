package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/bdir-protocol/bdir/pkg/patch"
	"github.com/bdir-protocol/bdir/pkg/schemagate"
)

// runApplyPatchCmd implements `bdir apply-patch` in two forms:
//
//	apply-patch <edit-packet.json> <patch.json> [--min]
//	apply-patch --doc <doc.json> --patch <patch.json> --out <out.json> [--min]
func runApplyPatchCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("apply-patch", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		vf        validateFlags
		min       bool
		docPath   string
		patchPath string
		outPath   string
	)
	vf.register(cmd)
	cmd.BoolVar(&min, "min", false, "Output minified JSON")
	cmd.StringVar(&docPath, "doc", "", "Document JSON input (document mode)")
	cmd.StringVar(&patchPath, "patch", "", "Patch JSON input (document mode)")
	cmd.StringVar(&outPath, "out", "", "Output document path (document mode)")

	if err := cmd.Parse(args); err != nil {
		return 1
	}

	opts, code := vf.options(stderr)
	if code != 0 {
		return code
	}

	if docPath != "" || patchPath != "" || outPath != "" {
		if docPath == "" || patchPath == "" || outPath == "" {
			_, _ = fmt.Fprintln(stderr, "document mode requires --doc, --patch, and --out together")
			return 1
		}
		if cmd.NArg() != 0 {
			_, _ = fmt.Fprintln(stderr, "document mode takes no positional arguments")
			return 1
		}
		return applyToDocumentFile(docPath, patchPath, outPath, opts, stdout, stderr)
	}

	if cmd.NArg() != 2 {
		_, _ = fmt.Fprintln(stderr, "Usage: bdir apply-patch <edit-packet.json> <patch.json> [--min] | --doc <d> --patch <p> --out <o>")
		return 1
	}
	return applyToPacketFile(cmd.Arg(0), cmd.Arg(1), min, opts, stdout, stderr)
}

func applyToPacketFile(packetPath, patchPath string, min bool, opts patch.ValidateOptions, stdout, stderr io.Writer) int {
	packet, p, code := loadPacketAndPatch(packetPath, patchPath, stderr)
	if code != 0 {
		return code
	}

	out, tel, err := patch.ApplyEditPacketWithTelemetry(packet, p, opts)
	tel.Emit(newLogger(stderr))
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}

	var (
		data   []byte
		encErr error
	)
	if min {
		data, encErr = out.ToMinifiedJSON()
	} else {
		data, encErr = out.ToPrettyJSON()
	}
	if encErr != nil {
		_, _ = fmt.Fprintln(stderr, encErr)
		return 1
	}

	_, _ = fmt.Fprintln(stdout, string(data))
	return 0
}

func applyToDocumentFile(docPath, patchPath, outPath string, opts patch.ValidateOptions, stdout, stderr io.Writer) int {
	doc, code := loadDocument(docPath, stderr)
	if code != 0 {
		return code
	}

	patchRaw, err := os.ReadFile(patchPath)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	if err := schemagate.CheckPatch(patchRaw); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	p, err := patch.Parse(patchRaw)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}

	// The freshly recomputed document is the authoritative target; a patch
	// without an in-band `h` binds to it implicitly, like the edit-packet
	// surface.
	if opts.ExpectedPageHash == "" && !opts.StrictPageHashBinding {
		opts.ExpectedPageHash = doc.PageHash
	}

	out, tel, err := patch.ApplyDocumentWithTelemetry(doc, p, opts)
	tel.Emit(newLogger(stderr))
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}

	_, _ = fmt.Fprintf(stdout, "Wrote %s\n", outPath)
	return 0
}
