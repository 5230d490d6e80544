package patch

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/bdir-protocol/bdir/pkg/hashing"
)

// countNonOverlapping counts non-overlapping matches of needle in haystack.
// Substring matching for patch operations happens over NFC-normalized views.
func countNonOverlapping(haystack, needle string) int {
	h := hashing.NormalizeNFC(haystack)
	n := hashing.NormalizeNFC(needle)
	if n == "" {
		return 0
	}

	count := 0
	start := 0
	for start <= len(h)-len(n) {
		pos := strings.Index(h[start:], n)
		if pos < 0 {
			break
		}
		count++
		start += pos + len(n)
	}
	return count
}

// findNth returns the byte offset of the nth (1-indexed) non-overlapping
// match of needle in haystack, or -1. Raw bytes, no normalization.
func findNth(haystack, needle string, n int) int {
	if needle == "" || n < 1 {
		return -1
	}
	start := 0
	for i := 1; ; i++ {
		pos := strings.Index(haystack[start:], needle)
		if pos < 0 {
			return -1
		}
		abs := start + pos
		if i == n {
			return abs
		}
		start = abs + len(needle)
	}
}

// replaceOccurrence substitutes the nth (1-indexed) non-overlapping match of
// needle with replacement. Raw byte matching is preferred; when the needle
// only matches in the NFC view, the match is mapped back onto the original
// bytes so unsubstituted spans keep their byte form. If the match does not
// align to normalization segment boundaries, the block's working text
// becomes the NFC form.
func replaceOccurrence(text, needle, replacement string, n int) (string, error) {
	if pos := findNth(text, needle, n); pos >= 0 {
		return text[:pos] + replacement + text[pos+len(needle):], nil
	}
	out, ok := nfcSplice(text, needle, replacement, n)
	if !ok {
		return "", fmt.Errorf("occurrence %d of substring not found", n)
	}
	return out, nil
}

// deleteAll removes every non-overlapping match of needle, left to right.
func deleteAll(text, needle string) string {
	if strings.Contains(text, needle) {
		return strings.ReplaceAll(text, needle, "")
	}
	nfcText := hashing.NormalizeNFC(text)
	nfcNeedle := hashing.NormalizeNFC(needle)
	if nfcNeedle == "" || !strings.Contains(nfcText, nfcNeedle) {
		return text
	}
	return strings.ReplaceAll(nfcText, nfcNeedle, "")
}

// nfcSplice performs the NFC-view substitution with boundary mapping.
func nfcSplice(text, needle, replacement string, n int) (string, bool) {
	// Record (original, normalized) offset pairs at every NFC boundary.
	// NFC is closed under concatenation at boundaries, so the concatenation
	// of per-segment normalizations equals the normalization of the whole.
	origOffs := []int{0}
	normOffs := []int{0}
	var nb strings.Builder
	i := 0
	for i < len(text) {
		j := norm.NFC.NextBoundaryInString(text[i:], true)
		if j <= 0 {
			j = len(text) - i
		}
		nb.WriteString(norm.NFC.String(text[i : i+j]))
		i += j
		origOffs = append(origOffs, i)
		normOffs = append(normOffs, nb.Len())
	}

	nfcText := nb.String()
	nfcNeedle := hashing.NormalizeNFC(needle)

	start := findNth(nfcText, nfcNeedle, n)
	if start < 0 {
		return "", false
	}
	end := start + len(nfcNeedle)

	origStart, okStart := origOffsetAt(normOffs, origOffs, start)
	origEnd, okEnd := origOffsetAt(normOffs, origOffs, end)
	if okStart && okEnd {
		return text[:origStart] + replacement + text[origEnd:], true
	}
	return nfcText[:start] + replacement + nfcText[end:], true
}

func origOffsetAt(normOffs, origOffs []int, normOff int) (int, bool) {
	for k, off := range normOffs {
		if off == normOff {
			return origOffs[k], true
		}
		if off > normOff {
			break
		}
	}
	return 0, false
}
