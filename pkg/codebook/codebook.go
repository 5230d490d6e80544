// Package codebook maps 16-bit block kindCodes onto the canonical v1
// importance tiers used throughout the BDIR Patch Protocol.
package codebook

// Importance is the coarse tier a kindCode belongs to.
type Importance string

const (
	Core        Importance = "core"
	Boilerplate Importance = "boilerplate"
	UIChrome    Importance = "ui"
	Unknown     Importance = "unknown"
)

// Canonical v1 kindCode ranges.
const (
	CoreStart        uint16 = 0
	CoreEnd          uint16 = 19
	BoilerplateStart uint16 = 20
	BoilerplateEnd   uint16 = 39
	UIChromeStart    uint16 = 40
	UIChromeEnd      uint16 = 59
	UnknownCode      uint16 = 99
)

func (i Importance) String() string { return string(i) }

// ImportanceOf classifies a kindCode into its importance tier.
func ImportanceOf(kindCode uint16) Importance {
	switch {
	case kindCode <= CoreEnd:
		return Core
	case kindCode >= BoilerplateStart && kindCode <= BoilerplateEnd:
		return Boilerplate
	case kindCode >= UIChromeStart && kindCode <= UIChromeEnd:
		return UIChrome
	default:
		return Unknown
	}
}

// Description returns a short human description of the tier a kindCode
// falls in.
func Description(kindCode uint16) string {
	switch ImportanceOf(kindCode) {
	case Core:
		return "Primary content relevant for AI and indexing"
	case Boilerplate:
		return "Navigation, repeated site boilerplate"
	case UIChrome:
		return "Pure UI or decorative chrome"
	default:
		return "Unclassified or out-of-range kindCode"
	}
}

// InCanonicalRange reports whether a kindCode falls inside the canonical v1
// ranges (0-59) or is the explicit unknown code (99). Edit-packet validation
// rejects blocks outside this set.
func InCanonicalRange(kindCode uint16) bool {
	return kindCode <= UIChromeEnd || kindCode == UnknownCode
}

func IsCore(kindCode uint16) bool        { return ImportanceOf(kindCode) == Core }
func IsBoilerplate(kindCode uint16) bool { return ImportanceOf(kindCode) == Boilerplate }
func IsUIChrome(kindCode uint16) bool    { return ImportanceOf(kindCode) == UIChrome }
func IsUnknown(kindCode uint16) bool     { return ImportanceOf(kindCode) == Unknown }
