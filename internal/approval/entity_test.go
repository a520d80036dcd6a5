package approval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_EncodingKeepsOrder(t *testing.T) {
	s := NewStore()
	s.Set(Record{URLOrigin: "https://z.example", CanSkipApprove: true})
	s.Set(Record{URLOrigin: "https://a.example"})
	s.Set(Record{URLOrigin: "https://m.example"})
	s.Delete("https://a.example")
	s.Set(Record{URLOrigin: "https://a.example"})

	data, err := encodeStore(s)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "[["), text)
	z, m, a := strings.Index(text, "z.example"), strings.Index(text, "m.example"), strings.Index(text, "a.example")
	assert.True(t, z < m && m < a, text)

	decoded, err := decodeStore(data)
	require.NoError(t, err)
	assert.Equal(t, s.Records(), decoded.Records())
}

func TestStore_DecodeRejectsMalformed(t *testing.T) {
	for _, in := range []string{
		"origin: x",
		"[[only-origin]]",
		"[[a, {can_skip_approve: notabool}]]",
	} {
		_, err := decodeStore([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestStore_EmptyRoundTrip(t *testing.T) {
	data, err := encodeStore(NewStore())
	require.NoError(t, err)
	decoded, err := decodeStore(data)
	require.NoError(t, err)
	assert.Zero(t, decoded.Len())
}
