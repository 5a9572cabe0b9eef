package columnar

import (
	"math/bits"

	"github.com/ajitpratap0/quasar/pkg/errors"
)

const wordBits = 64

// ValidityMask tracks which rows of a column hold meaningful values,
// packed at one bit per row (1 = valid). The mask length always equals the
// owning column's row count. Masks grow only by appending; a sliced view
// shares the underlying words and rejects further growth.
type ValidityMask struct {
	words []uint64
	off   int // bit offset of the first visible row, non-zero only in views
	n     int // visible rows
	view  bool
}

// NewValidityMask creates an empty mask.
func NewValidityMask() *ValidityMask {
	return &ValidityMask{
		words: make([]uint64, 0, 16),
	}
}

// Len returns the number of tracked rows.
func (m *ValidityMask) Len() int {
	return m.n
}

// Push appends one validity bit.
func (m *ValidityMask) Push(valid bool) error {
	if m.view {
		return errors.New(errors.ErrorTypeUnsupported, "push on a sliced validity view")
	}
	m.ensure(m.n + 1)
	if valid {
		m.words[m.n/wordBits] |= 1 << uint(m.n%wordBits)
	}
	m.n++
	return nil
}

// PushN appends count copies of the same validity bit. Interior words are
// filled whole, not bit by bit, so bulk appends stay O(words) rather than
// O(rows).
func (m *ValidityMask) PushN(valid bool, count int) error {
	if m.view {
		return errors.New(errors.ErrorTypeUnsupported, "push on a sliced validity view")
	}
	if count <= 0 {
		return nil
	}

	start := m.n
	end := m.n + count
	m.ensure(end)
	m.n = end

	if !valid {
		// Appended words start zeroed and set bits never outlive n.
		return nil
	}

	startWord := start / wordBits
	endWord := (end - 1) / wordBits
	if startWord == endWord {
		mask := (^uint64(0) >> uint(wordBits-count)) << uint(start%wordBits)
		m.words[startWord] |= mask
		return nil
	}

	m.words[startWord] |= ^uint64(0) << uint(start%wordBits)
	for w := startWord + 1; w < endWord; w++ {
		m.words[w] = ^uint64(0)
	}
	m.words[endWord] |= ^uint64(0) >> uint(wordBits-1-(end-1)%wordBits)
	return nil
}

// Get reports the validity bit at index i.
func (m *ValidityMask) Get(i int) (bool, error) {
	if i < 0 || i >= m.n {
		return false, errors.Newf(errors.ErrorTypeIndexOutOfRange,
			"validity index %d out of range [0, %d)", i, m.n)
	}
	return m.get(i), nil
}

// get is the unchecked hot-path accessor.
func (m *ValidityMask) get(i int) bool {
	bit := m.off + i
	return m.words[bit/wordBits]&(1<<uint(bit%wordBits)) != 0
}

// CountValid returns the number of set bits in the visible range.
func (m *ValidityMask) CountValid() int {
	if m.n == 0 {
		return 0
	}

	start := m.off
	end := m.off + m.n
	startWord := start / wordBits
	endWord := (end - 1) / wordBits

	if startWord == endWord {
		word := m.words[startWord] >> uint(start%wordBits)
		word &= ^uint64(0) >> uint(wordBits-m.n)
		return bits.OnesCount64(word)
	}

	total := bits.OnesCount64(m.words[startWord] >> uint(start%wordBits))
	for w := startWord + 1; w < endWord; w++ {
		total += bits.OnesCount64(m.words[w])
	}
	total += bits.OnesCount64(m.words[endWord] & (^uint64(0) >> uint(wordBits-1-(end-1)%wordBits)))
	return total
}

// Slice returns a zero-copy view of rows [start, end). The view shares the
// underlying words and cannot grow.
func (m *ValidityMask) Slice(start, end int) (*ValidityMask, error) {
	if start < 0 || end < start || end > m.n {
		return nil, errors.Newf(errors.ErrorTypeIndexOutOfRange,
			"validity slice [%d, %d) out of range [0, %d]", start, end, m.n)
	}
	return &ValidityMask{
		words: m.words,
		off:   m.off + start,
		n:     end - start,
		view:  true,
	}, nil
}

// MemoryUsage returns the bytes held by the word array.
func (m *ValidityMask) MemoryUsage() int64 {
	return int64(len(m.words)) * 8
}

// ensure grows the word array to cover at least bits bits.
func (m *ValidityMask) ensure(bitCount int) {
	need := (bitCount + wordBits - 1) / wordBits
	if need > len(m.words) {
		m.words = append(m.words, make([]uint64, need-len(m.words))...)
	}
}
