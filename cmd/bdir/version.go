package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/bdir-protocol/bdir/pkg/editpacket"
	"github.com/bdir-protocol/bdir/pkg/patch"
	"github.com/bdir-protocol/bdir/pkg/schemagate"
)

// runVersionCmd prints the wire-format versions this build speaks, for
// conformance gating in CI.
func runVersionCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("version", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	if err := cmd.Parse(args); err != nil {
		return 1
	}

	_, _ = fmt.Fprintf(stdout, "protocol v%d\nedit packet v%d\npatch v%d\nschema bundle v%d\n",
		patch.ProtocolVersion, editpacket.Version, patch.Version, schemagate.SchemaBundleVersion)
	return 0
}
