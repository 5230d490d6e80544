package canonicaljson

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSONSortsKeysDeeply(t *testing.T) {
	var v any
	require.NoError(t, json.Unmarshal([]byte(`{"b":{"z":1,"a":2},"a":[{"y":1,"x":2}]}`), &v))

	out, err := ToCanonicalJSONString(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":[{"x":2,"y":1}],"b":{"a":2,"z":1}}`, out)
}

func TestCanonicalJSONPreservesArrayOrder(t *testing.T) {
	out, err := ToCanonicalJSONString([]any{"c", "a", "b"})
	require.NoError(t, err)
	assert.Equal(t, `["c","a","b"]`, out)
}

func TestCanonicalJSONStableUnderKeyReordering(t *testing.T) {
	var a, b any
	require.NoError(t, json.Unmarshal([]byte(`{"x":1,"y":[1,2],"z":{"k":"v"}}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"z":{"k":"v"},"y":[1,2],"x":1}`), &b))

	ca, err := ToCanonicalJSONBytes(a)
	require.NoError(t, err)
	cb, err := ToCanonicalJSONBytes(b)
	require.NoError(t, err)
	assert.Equal(t, ca, cb)

	ha, err := SHA256CanonicalJSON(a)
	require.NoError(t, err)
	hb, err := SHA256CanonicalJSON(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestCanonicalJSONMinified(t *testing.T) {
	out, err := ToCanonicalJSONString(map[string]any{"key": "value", "n": 1})
	require.NoError(t, err)
	assert.NotContains(t, out, " ")
	assert.NotContains(t, out, "\n")
}

func TestSHA256Hex(t *testing.T) {
	h := SHA256Hex([]byte(""))
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", h)
	assert.Equal(t, strings.ToLower(h), h)
}

func TestCacheKeyV1(t *testing.T) {
	packet := map[string]any{"v": 1, "h": "abc", "b": []any{}}
	key, err := CacheKeyV1("claude-3", "p7", packet)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "bdir-patch|model=claude-3|prompt=p7|schema=v1|packet=sha256:"))

	wantHash, err := SHA256CanonicalJSON(packet)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, wantHash))

	// Same packet with reordered keys yields the same key.
	reordered := map[string]any{"b": []any{}, "h": "abc", "v": 1}
	key2, err := CacheKeyV1("claude-3", "p7", reordered)
	require.NoError(t, err)
	assert.Equal(t, key, key2)
}
