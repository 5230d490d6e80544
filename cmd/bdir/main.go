// Command bdir is the BDIR Patch Protocol CLI: inspect documents, project
// edit packets, and validate/apply patches with stable exit codes.
//
// Exit codes across subcommands:
//
//	0 = success
//	1 = schema / IO / argument failure
//	2 = semantic validation failure
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the dispatcher entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 1
	}

	switch args[1] {
	case "inspect":
		return runInspectCmd(args[2:], stdout, stderr)
	case "edit-packet":
		return runEditPacketCmd(args[2:], stdout, stderr)
	case "validate-patch":
		return runValidatePatchCmd(args[2:], stdout, stderr)
	case "apply-patch":
		return runApplyPatchCmd(args[2:], stdout, stderr)
	case "version":
		return runVersionCmd(args[2:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", args[1])
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprint(w, `Usage: bdir <command> [options]

Commands:
  inspect <doc.json>                      List document blocks with importance and hashes
  edit-packet <doc.json>                  Project a document into an Edit Packet v1
  validate-patch <packet.json> <patch.json>  Validate a patch against an edit packet
  apply-patch <packet.json> <patch.json>     Apply a patch to an edit packet
  apply-patch --doc <d> --patch <p> --out <o>  Apply a patch to a document file
  version                                 Print protocol and schema versions
`)
}

// newLogger builds the CLI's structured logger. Core packages never log;
// telemetry emission happens only at this boundary. The time attribute is
// dropped, so elapsed_ms is the only field of the record that varies
// between runs.
func newLogger(stderr io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	}))
}
