// Package hashing provides the deterministic text canonicalization and the
// closed hash-algorithm registry for BDIR documents and edit packets.
//
// Both algorithms emit lowercase fixed-width hex: 16 chars for xxh64,
// 64 chars for sha256. Canonicalization is idempotent and byte-stable
// across platforms.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/unicode/norm"
)

// Registered algorithm names (canonical lowercase).
const (
	AlgoXXH64  = "xxh64"
	AlgoSHA256 = "sha256"
)

// ErrUnsupportedAlgorithm is returned for algorithms outside the registry.
var ErrUnsupportedAlgorithm = fmt.Errorf("unsupported hash algorithm")

// IsSupported reports whether algo names a registered hash algorithm.
// The name must already be in canonical form (trimmed, lowercase).
func IsSupported(algo string) bool {
	return algo == AlgoXXH64 || algo == AlgoSHA256
}

// NormalizeAlgorithm trims and lowercases an algorithm name and rejects
// anything outside the registry.
func NormalizeAlgorithm(raw string) (string, error) {
	algo := strings.ToLower(strings.TrimSpace(raw))
	if !IsSupported(algo) {
		return "", fmt.Errorf("%w '%s'", ErrUnsupportedAlgorithm, raw)
	}
	return algo, nil
}

// CanonicalizeText canonicalizes text for hashing:
//
//  1. CRLF and bare CR become LF.
//  2. Trailing space and tab characters are stripped per line; the presence
//     of a final LF is preserved exactly.
//  3. The result is Unicode NFC normalized.
//
// Internal whitespace, punctuation, and case are never altered.
func CanonicalizeText(input string) string {
	normalized := strings.ReplaceAll(input, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	var b strings.Builder
	b.Grow(len(normalized))

	// strings.Split keeps a trailing empty segment when the text ends in
	// '\n', so joining with '\n' preserves final-newline presence.
	lines := strings.Split(normalized, "\n")
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.TrimRight(line, " \t"))
	}

	return norm.NFC.String(b.String())
}

// NormalizeNFC returns the Unicode NFC form of s. Substring matching for
// patch operations happens over NFC views.
func NormalizeNFC(s string) string {
	return norm.NFC.String(s)
}

// HashHex hashes raw UTF-8 bytes under the named algorithm and returns
// lowercase fixed-width hex.
func HashHex(algo, input string) (string, error) {
	switch algo {
	case AlgoXXH64:
		return fmt.Sprintf("%016x", xxhash.Sum64String(input)), nil
	case AlgoSHA256:
		sum := sha256.Sum256([]byte(input))
		return hex.EncodeToString(sum[:]), nil
	default:
		return "", fmt.Errorf("%w '%s'", ErrUnsupportedAlgorithm, algo)
	}
}

// HashCanonHex hashes the canonicalized form of input.
func HashCanonHex(algo, input string) (string, error) {
	return HashHex(algo, CanonicalizeText(input))
}

// HexWidth returns the fixed hex digest width for a registered algorithm,
// or 0 for unknown algorithms.
func HexWidth(algo string) int {
	switch algo {
	case AlgoXXH64:
		return 16
	case AlgoSHA256:
		return 64
	default:
		return 0
	}
}
