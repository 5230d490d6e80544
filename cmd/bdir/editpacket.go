package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/bdir-protocol/bdir/pkg/editpacket"
)

// runEditPacketCmd implements `bdir edit-packet`: project a Document JSON
// into the Edit Packet v1 wire form.
func runEditPacketCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("edit-packet", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		tid     string
		autoTID bool
		min     bool
	)
	cmd.StringVar(&tid, "tid", "", "Trace id to include in the packet")
	cmd.BoolVar(&autoTID, "auto-tid", false, "Mint a random trace id when --tid is not given")
	cmd.BoolVar(&min, "min", false, "Output minified JSON")

	if err := cmd.Parse(args); err != nil {
		return 1
	}
	if cmd.NArg() != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: bdir edit-packet <doc.json> [--tid <s>] [--auto-tid] [--min]")
		return 1
	}

	doc, code := loadDocument(cmd.Arg(0), stderr)
	if code != 0 {
		return code
	}

	if tid == "" && autoTID {
		tid = uuid.NewString()
	}

	packet := editpacket.FromDocument(doc, tid)

	var (
		out []byte
		err error
	)
	if min {
		out, err = packet.ToMinifiedJSON()
	} else {
		out, err = packet.ToPrettyJSON()
	}
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}

	_, _ = fmt.Fprintln(stdout, string(out))
	return 0
}
