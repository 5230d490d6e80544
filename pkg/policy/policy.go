// Package policy loads validator policy files. A policy file is a small
// YAML document that overrides the conservative validator defaults, letting
// deployments pin strictness without code changes.
package policy

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bdir-protocol/bdir/pkg/patch"
)

// File is the on-disk policy shape. Absent fields keep their defaults.
type File struct {
	MinBeforeLen          *int    `yaml:"min_before_len"`
	StrictKindCode        *bool   `yaml:"strict_kind_code"`
	StrictPageHashBinding *bool   `yaml:"strict_page_hash_binding"`
	ExpectedPageHash      string  `yaml:"expected_page_hash"`
	// KindCodeAllow lists allowed ranges as "lo-hi" (or single "n") strings.
	KindCodeAllow   []string `yaml:"kind_code_allow"`
	AllowSuggestAny *bool    `yaml:"allow_suggest_any"`
}

// Load reads a YAML policy file and merges it over the default options.
func Load(path string) (patch.ValidateOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return patch.ValidateOptions{}, fmt.Errorf("policy: read %s: %w", path, err)
	}
	opts, err := Parse(data)
	if err != nil {
		return patch.ValidateOptions{}, fmt.Errorf("policy: %s: %w", path, err)
	}
	return opts, nil
}

// Parse decodes a YAML policy document into validator options.
func Parse(data []byte) (patch.ValidateOptions, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return patch.ValidateOptions{}, fmt.Errorf("invalid policy YAML: %w", err)
	}

	opts := patch.DefaultValidateOptions()
	if f.MinBeforeLen != nil {
		if *f.MinBeforeLen < 1 {
			return patch.ValidateOptions{}, fmt.Errorf("min_before_len must be positive, got %d", *f.MinBeforeLen)
		}
		opts.MinBeforeLen = *f.MinBeforeLen
	}
	if f.StrictKindCode != nil {
		opts.StrictKindCode = *f.StrictKindCode
	}
	if f.StrictPageHashBinding != nil {
		opts.StrictPageHashBinding = *f.StrictPageHashBinding
	}
	opts.ExpectedPageHash = f.ExpectedPageHash

	if len(f.KindCodeAllow) > 0 {
		ranges := make([]patch.KindCodeRange, 0, len(f.KindCodeAllow))
		for _, s := range f.KindCodeAllow {
			r, err := ParseKindCodeRange(s)
			if err != nil {
				return patch.ValidateOptions{}, err
			}
			ranges = append(ranges, r)
		}
		opts.KindCodePolicy.AllowRanges = ranges
	}
	if f.AllowSuggestAny != nil {
		opts.KindCodePolicy.AllowSuggestAny = *f.AllowSuggestAny
	}

	return opts, nil
}

// ParseKindCodeRange parses an inclusive "lo-hi" range, or a single "n"
// shorthand for "n-n".
func ParseKindCodeRange(s string) (patch.KindCodeRange, error) {
	s = strings.TrimSpace(s)

	lo, hi, found := strings.Cut(s, "-")
	if !found {
		hi = lo
	}
	loN, err := strconv.ParseUint(strings.TrimSpace(lo), 10, 16)
	if err != nil {
		return patch.KindCodeRange{}, fmt.Errorf("invalid kindCode range '%s': %w", s, err)
	}
	hiN, err := strconv.ParseUint(strings.TrimSpace(hi), 10, 16)
	if err != nil {
		return patch.KindCodeRange{}, fmt.Errorf("invalid kindCode range '%s': %w", s, err)
	}
	if hiN < loN {
		return patch.KindCodeRange{}, fmt.Errorf("invalid kindCode range '%s': upper bound below lower bound", s)
	}
	return patch.KindCodeRange{Lo: uint16(loN), Hi: uint16(hiN)}, nil
}
