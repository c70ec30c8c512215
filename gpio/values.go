package gpio

import (
	"fmt"
	"math/bits"
	"strings"
)

const (
	// MaxBits is the width of the kernel value bitmap.
	MaxBits = 64
	// MaxValues is the maximum number of lines in one request.
	MaxValues = 64
)

// Decode unpacks the low n bits into levels, index i from bit i.
func Decode(b uint64, n int) ([]bool, error) {
	if n < 0 || n > MaxBits {
		return nil, invalidArgf("decode n=%d max=%d", n, MaxBits)
	}
	values := make([]bool, n)
	for i := range values {
		values[i] = b&(1<<uint(i)) != 0
	}
	return values, nil
}

// Encode packs levels into a bitmap, values[i] goes to bit i.
func Encode(values []bool) (uint64, error) {
	if len(values) > MaxBits {
		return 0, invalidArgf("encode len=%d max=%d", len(values), MaxBits)
	}
	var b uint64
	for i, v := range values {
		if v {
			b |= 1 << uint(i)
		}
	}
	return b, nil
}

// Masked is a sparse set of line levels.
// Bit i of Mask says whether index i is present, bit i of Bits holds its level.
// Bits outside Mask carry no meaning.
type Masked struct {
	Bits uint64
	Mask uint64
}

// MaskedFrom builds Masked from request index to level.
func MaskedFrom(m map[int]bool) (Masked, error) {
	var result Masked
	for i, v := range m {
		if i < 0 || i >= MaxBits {
			return Masked{}, invalidArgf("masked index=%d max=%d", i, MaxBits-1)
		}
		result = result.Set(i, v)
	}
	return result, nil
}

// Set returns a copy with index i present at level v.
func (m Masked) Set(i int, v bool) Masked {
	bit := uint64(1) << uint(i)
	m.Mask |= bit
	if v {
		m.Bits |= bit
	} else {
		m.Bits &^= bit
	}
	return m
}

// Get returns level of index i, ok=false when i is not present.
func (m Masked) Get(i int) (value bool, ok bool) {
	if i < 0 || i >= MaxBits {
		return false, false
	}
	bit := uint64(1) << uint(i)
	return m.Bits&bit != 0, m.Mask&bit != 0
}

// Len is the number of present indexes.
func (m Masked) Len() int { return bits.OnesCount64(m.Mask) }

// Indexes lists present indexes in ascending order.
func (m Masked) Indexes() []int {
	result := make([]int, 0, m.Len())
	for mask := m.Mask; mask != 0; mask &= mask - 1 {
		result = append(result, bits.TrailingZeros64(mask))
	}
	return result
}

func (m Masked) String() string {
	idx := m.Indexes()
	parts := make([]string, len(idx))
	for j, i := range idx {
		v, _ := m.Get(i)
		parts[j] = fmt.Sprintf("%d=%d", i, b2i(v))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func lineMask(n int) uint64 {
	if n >= MaxBits {
		return ^uint64(0)
	}
	return 1<<uint(n) - 1
}

// encodeValues prepares a full update of n lines.
func encodeValues(values []bool, n int) (b, mask uint64, err error) {
	if len(values) != n {
		return 0, 0, invalidArgf("values len=%d lines=%d", len(values), n)
	}
	if b, err = Encode(values); err != nil {
		return 0, 0, err
	}
	return b, lineMask(n), nil
}

// encodeMasked prepares a partial update, each index must be within n lines.
func encodeMasked(m Masked, n int) (b, mask uint64, err error) {
	if m.Mask == 0 {
		return 0, 0, invalidArgf("empty mask")
	}
	if m.Mask&^lineMask(n) != 0 {
		return 0, 0, invalidArgf("mask=%#x outside lines=%d", m.Mask, n)
	}
	return m.Bits & m.Mask, m.Mask, nil
}

func b2i(v bool) int {
	if v {
		return 1
	}
	return 0
}
