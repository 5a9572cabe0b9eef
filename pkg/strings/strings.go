// Package strings provides zero-copy string utilities with pooling for Quasar.
package strings

import (
	"fmt"
	"sync"
	"unsafe"
)

// BytesToString converts a byte slice to a string without allocation.
// WARNING: The returned string shares memory with the byte slice.
// Do not modify the byte slice after calling this function.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// StringToBytes converts a string to a byte slice without allocation.
// WARNING: The returned byte slice shares memory with the string.
// Do not modify the returned slice.
func StringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// Clone returns a copy of s backed by freshly allocated memory.
// Use it before retaining a string produced by BytesToString.
func Clone(s string) string {
	if len(s) == 0 {
		return ""
	}
	b := make([]byte, len(s))
	copy(b, s)
	return BytesToString(b)
}

// Builder provides efficient string building backed by a reusable buffer.
type Builder struct {
	buf []byte
}

// NewBuilder creates a new builder with the given initial capacity.
func NewBuilder(capacity int) *Builder {
	return &Builder{buf: make([]byte, 0, capacity)}
}

// WriteString appends a string to the builder.
func (b *Builder) WriteString(s string) {
	b.buf = append(b.buf, s...)
}

// WriteBytes appends raw bytes to the builder.
func (b *Builder) WriteBytes(data []byte) {
	b.buf = append(b.buf, data...)
}

// Write implements io.Writer.
func (b *Builder) Write(p []byte) (n int, err error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// String returns the accumulated string without copying.
// The result is invalidated by further writes or Reset.
func (b *Builder) String() string {
	return BytesToString(b.buf)
}

// Bytes returns the accumulated bytes without copying.
// The result is invalidated by further writes or Reset.
func (b *Builder) Bytes() []byte {
	return b.buf
}

// Len returns the number of accumulated bytes.
func (b *Builder) Len() int {
	return len(b.buf)
}

// Reset clears the builder for reuse, keeping the buffer.
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
}

// Builder pool size classes.
const (
	Small  = 256
	Medium = 4 * 1024
	Large  = 64 * 1024
)

var builderPools = map[int]*sync.Pool{
	Small:  {New: func() interface{} { return NewBuilder(Small) }},
	Medium: {New: func() interface{} { return NewBuilder(Medium) }},
	Large:  {New: func() interface{} { return NewBuilder(Large) }},
}

// GetBuilder fetches a pooled builder of the given size class.
func GetBuilder(size int) *Builder {
	pool, ok := builderPools[size]
	if !ok {
		return NewBuilder(size)
	}
	b := pool.Get().(*Builder)
	b.Reset()
	return b
}

// PutBuilder returns a builder to its pool.
func PutBuilder(b *Builder, size int) {
	if pool, ok := builderPools[size]; ok {
		pool.Put(b)
	}
}

// Sprintf formats using pooled builders to reduce allocations.
func Sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}

	size := Small
	if estimated := len(format) + len(args)*16; estimated > Medium {
		size = Large
	} else if estimated > Small {
		size = Medium
	}

	builder := GetBuilder(size)
	defer PutBuilder(builder, size)

	fmt.Fprintf(builder, format, args...)

	// The builder returns to the pool, so the result must own its bytes.
	return Clone(builder.String())
}
