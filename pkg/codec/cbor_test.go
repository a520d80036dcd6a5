package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name   string         `cbor:"name"`
	Values []string       `cbor:"values,omitempty"`
	Extra  map[string]any `cbor:"extra,omitempty"`
}

func TestMarshal_Deterministic(t *testing.T) {
	a := map[string]int{"b": 2, "a": 1, "c": 3}
	first, err := Marshal(a)
	require.NoError(t, err)
	for range 10 {
		again, err := Marshal(a)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDecode_AnyMapsAreStringKeyed(t *testing.T) {
	in := sample{Name: "x", Extra: map[string]any{"nested": map[string]any{"k": "v"}}}
	data, err := Marshal(in)
	require.NoError(t, err)

	var out sample
	require.NoError(t, Unmarshal(data, &out))
	nested, ok := out.Extra["nested"].(map[string]any)
	require.True(t, ok, "got %T", out.Extra["nested"])
	assert.Equal(t, "v", nested["k"])
}

func TestStream(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(sample{Name: "one"}))
	require.NoError(t, enc.Encode(sample{Name: "two", Values: []string{"a"}}))

	dec := NewDecoder(&buf)
	var got []string
	for range 2 {
		var s sample
		require.NoError(t, dec.Decode(&s))
		got = append(got, s.Name)
	}
	assert.Equal(t, []string{"one", "two"}, got)
}
