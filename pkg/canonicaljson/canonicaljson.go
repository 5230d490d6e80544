// Package canonicaljson produces the deterministic JSON byte form used for
// stable hashing and cache keys: object keys deep-sorted lexicographically,
// array order preserved, minified output, scalars unchanged.
//
// Protocol wire types carry no floating-point values; normalization rules
// for floats must be specified before any are introduced.
package canonicaljson

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// ToCanonicalJSONBytes serializes v and canonicalizes the resulting JSON.
func ToCanonicalJSONBytes(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical json: marshal: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical json: transform: %w", err)
	}
	return canon, nil
}

// ToCanonicalJSONString serializes v to a canonical JSON string.
func ToCanonicalJSONString(v any) (string, error) {
	b, err := ToCanonicalJSONBytes(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SHA256Hex returns lowercase hex SHA-256 of raw bytes.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SHA256CanonicalJSON hashes the canonical JSON bytes of v with SHA-256.
func SHA256CanonicalJSON(v any) (string, error) {
	b, err := ToCanonicalJSONBytes(v)
	if err != nil {
		return "", err
	}
	return SHA256Hex(b), nil
}

// CacheKeyV1 computes the deterministic cache-key fingerprint for an edit
// packet under a given model and prompt version:
//
//	bdir-patch|model=<M>|prompt=<P>|schema=v1|packet=sha256:<h>
func CacheKeyV1(modelID, promptVersion string, packet any) (string, error) {
	packetHash, err := SHA256CanonicalJSON(packet)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"bdir-patch|model=%s|prompt=%s|schema=v1|packet=sha256:%s",
		modelID, promptVersion, packetHash,
	), nil
}
