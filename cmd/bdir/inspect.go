package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bdir-protocol/bdir/pkg/codebook"
	"github.com/bdir-protocol/bdir/pkg/model"
	"github.com/bdir-protocol/bdir/pkg/patch"
	"github.com/bdir-protocol/bdir/pkg/policy"
)

// stringList collects repeatable string flags.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

const previewRunes = 48

// runInspectCmd implements `bdir inspect`: a tab-separated block listing
// with importance tiers, usable for grepping extracted pages.
func runInspectCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("inspect", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		kinds  stringList
		id     string
		grep   string
	)
	cmd.Var(&kinds, "kind", "Only show kindCodes in this inclusive range, e.g. 0-19 (repeatable)")
	cmd.StringVar(&id, "id", "", "Only show the block with this id")
	cmd.StringVar(&grep, "grep", "", "Only show blocks whose text contains this substring")

	if err := cmd.Parse(args); err != nil {
		return 1
	}
	if cmd.NArg() != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: bdir inspect <doc.json> [--kind <lo-hi>]... [--id <s>] [--grep <s>]")
		return 1
	}

	var ranges []patch.KindCodeRange
	for _, k := range kinds {
		r, err := policy.ParseKindCodeRange(k)
		if err != nil {
			_, _ = fmt.Fprintln(stderr, err)
			return 1
		}
		ranges = append(ranges, r)
	}

	doc, code := loadDocument(cmd.Arg(0), stderr)
	if code != 0 {
		return code
	}

	_, _ = fmt.Fprintln(stdout, "blockId\tkindCode\timportance\ttextHash\tpreview")
	for _, b := range doc.Blocks {
		if id != "" && b.ID != id {
			continue
		}
		if grep != "" && !strings.Contains(b.Text, grep) {
			continue
		}
		if len(ranges) > 0 && !inRanges(ranges, b.KindCode) {
			continue
		}
		_, _ = fmt.Fprintf(stdout, "%s\t%d\t%s\t%s\t%s\n",
			b.ID, b.KindCode, codebook.ImportanceOf(b.KindCode), b.TextHash, preview(b.Text))
	}

	return 0
}

func inRanges(ranges []patch.KindCodeRange, kindCode uint16) bool {
	for _, r := range ranges {
		if kindCode >= r.Lo && kindCode <= r.Hi {
			return true
		}
	}
	return false
}

// preview flattens block text into a single short line.
func preview(text string) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= previewRunes {
		return flat
	}
	return string(runes[:previewRunes]) + "..."
}

// loadDocument reads a Document JSON file and re-establishes its hashes.
// Returns a non-zero exit code on schema/IO failure.
func loadDocument(path string, stderr io.Writer) (*model.Document, int) {
	data, err := os.ReadFile(path)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return nil, 1
	}

	doc, err := model.ParseDocumentJSON(data)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return nil, 1
	}

	if err := doc.RecomputeHashes(); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return nil, 1
	}

	return doc, 0
}
