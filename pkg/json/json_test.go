package json

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRoundTrip(t *testing.T) {
	in := map[string]interface{}{"id": 42, "region": "east"}
	data, err := Marshal(in)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, "east", out["region"])
}

func TestDecoderKeepsNumberPrecision(t *testing.T) {
	// 2^53+1 is not representable as float64.
	dec := NewDecoder(strings.NewReader(`{"id": 9007199254740993}`))
	var row map[string]interface{}
	require.NoError(t, dec.Decode(&row))

	n, ok := row["id"].(Number)
	require.True(t, ok, "numbers must decode as Number, not float64")
	id, err := n.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), id)
}

func TestEncoderSkipsHTMLEscaping(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(map[string]string{"q": "a<b"}))
	assert.Contains(t, buf.String(), "a<b")
}

func TestBufferPoolRoundTrip(t *testing.T) {
	buf, err := MarshalToBuffer(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, "{\"n\":1}\n", buf.String())
	PutBuffer(buf)

	again := GetBuffer()
	assert.Equal(t, 0, again.Len(), "pooled buffers come back reset")
	PutBuffer(again)
}

func TestStreamingEncoderLines(t *testing.T) {
	var buf bytes.Buffer
	se := NewStreamingEncoder(&buf, false)
	require.NoError(t, se.Encode(map[string]int{"n": 1}))
	require.NoError(t, se.Encode(map[string]int{"n": 2}))
	require.NoError(t, se.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"{\"n\":1}", "{\"n\":2}"}, lines)
}

func TestStreamingEncoderArray(t *testing.T) {
	var buf bytes.Buffer
	se := NewStreamingEncoder(&buf, true)
	require.NoError(t, se.Encode(map[string]int{"n": 1}))
	require.NoError(t, se.Encode(map[string]int{"n": 2}))
	require.NoError(t, se.Close())

	var out []map[string]int
	require.NoError(t, Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, 2, out[1]["n"])
}
