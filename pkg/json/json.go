// Package json centralizes the engine's JSON codec configuration on top
// of goccy/go-json. Decoders keep numbers as json.Number so int64 row
// values survive the trip through interface{}; encoders skip HTML
// escaping; scratch buffers are pooled.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// Number is the decoded form of a JSON number when precision matters.
type Number = gojson.Number

// Decoder and Encoder alias the underlying codec types so callers can
// hold configured instances without importing goccy directly.
type (
	Decoder = gojson.Decoder
	Encoder = gojson.Encoder
)

// Marshal encodes v.
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// MarshalIndent encodes v with indentation, for human-facing output.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// NewEncoder returns an encoder writing to w with the engine's settings.
func NewEncoder(w io.Writer) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// NewDecoder returns a decoder reading from r with the engine's settings.
// Numbers decode as Number, not float64.
func NewDecoder(r io.Reader) *gojson.Decoder {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()
	return dec
}

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer borrows a scratch buffer.
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a scratch buffer. Oversized buffers are dropped so
// one huge row does not pin memory.
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1<<20 {
		return
	}
	bufferPool.Put(buf)
}

// MarshalToWriter encodes v directly to w, newline-terminated.
func MarshalToWriter(w io.Writer, v interface{}) error {
	return NewEncoder(w).Encode(v)
}

// MarshalToBuffer encodes v into a pooled buffer. The caller returns the
// buffer with PutBuffer when done.
func MarshalToBuffer(v interface{}) (*bytes.Buffer, error) {
	buf := GetBuffer()
	if err := NewEncoder(buf).Encode(v); err != nil {
		PutBuffer(buf)
		return nil, err
	}
	return buf, nil
}

// StreamingEncoder writes a sequence of values either as JSON lines or as
// one JSON array, without holding the sequence in memory.
type StreamingEncoder struct {
	w     io.Writer
	enc   *gojson.Encoder
	array bool
	first bool
	err   error
}

// NewStreamingEncoder starts a streaming encode to w. With array true the
// output is a single JSON array; otherwise one value per line.
func NewStreamingEncoder(w io.Writer, array bool) *StreamingEncoder {
	se := &StreamingEncoder{w: w, enc: NewEncoder(w), array: array, first: true}
	if array {
		_, se.err = w.Write([]byte{'['})
	}
	return se
}

// Encode appends one value to the sequence.
func (se *StreamingEncoder) Encode(v interface{}) error {
	if se.err != nil {
		return se.err
	}
	if se.array && !se.first {
		if _, se.err = se.w.Write([]byte{','}); se.err != nil {
			return se.err
		}
	}
	se.first = false
	se.err = se.enc.Encode(v)
	return se.err
}

// Close terminates the sequence. Required in array mode, harmless
// otherwise.
func (se *StreamingEncoder) Close() error {
	if se.err != nil {
		return se.err
	}
	if se.array {
		_, se.err = se.w.Write([]byte{']', '\n'})
	}
	return se.err
}
