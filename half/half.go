// Package half converts between float32 and IEEE 754 binary16 samples.
//
// Depth files normally store 32-bit samples; half samples trade precision
// (about 3 decimal digits) for a plane half the size.
package half

import "math"

// Half is an IEEE 754 binary16 value stored in its bit pattern.
type Half uint16

const (
	signMask = 0x8000
	expMask  = 0x7C00
	fracMask = 0x03FF
	bias     = 15
)

// Max is the largest finite half value.
const Max = 65504.0

// FromBits returns the Half with the given bit pattern.
func FromBits(b uint16) Half { return Half(b) }

// Bits returns the bit pattern of h.
func (h Half) Bits() uint16 { return uint16(h) }

// IsNaN reports whether h is a NaN.
func (h Half) IsNaN() bool {
	return h&expMask == expMask && h&fracMask != 0
}

// FromFloat32 rounds f to the nearest half, ties to even. Values beyond
// Max become infinities; values below the subnormal range become zero.
func FromFloat32(f float32) Half {
	b := math.Float32bits(f)
	sign := uint16(b>>16) & signMask
	exp := int(b>>23) & 0xFF
	frac := b & 0x007FFFFF

	if exp == 0xFF {
		if frac == 0 {
			return Half(sign | expMask)
		}
		// Keep NaNs quiet and non-zero.
		return Half(sign | expMask | 0x0200 | uint16(frac>>13))
	}

	e := exp - 127 + bias
	switch {
	case e >= 0x1F:
		return Half(sign | expMask)
	case e <= 0:
		if e < -10 {
			return Half(sign)
		}
		m := frac | 0x00800000
		return Half(sign | uint16(roundShift(m, uint(14-e))))
	}

	// A rounding carry moves into the exponent, and past the largest
	// exponent it lands on infinity.
	v := uint32(e)<<10 | frac>>13
	v += roundBit(frac, 13)
	if v >= expMask {
		return Half(sign | expMask)
	}
	return Half(sign | uint16(v))
}

// roundShift shifts m right by s bits, rounding to nearest even.
func roundShift(m uint32, s uint) uint32 {
	return m>>s + roundBit(m, s)
}

// roundBit returns 1 when dropping the low s bits of m should round up.
func roundBit(m uint32, s uint) uint32 {
	half := uint32(1) << (s - 1)
	rest := m & (1<<s - 1)
	if rest > half || (rest == half && (m>>s)&1 == 1) {
		return 1
	}
	return 0
}

// Float32 returns h as a float32. The conversion is exact.
func (h Half) Float32() float32 {
	sign := uint32(h&signMask) << 16
	exp := uint32(h&expMask) >> 10
	frac := uint32(h & fracMask)

	switch exp {
	case 0:
		if frac == 0 {
			return math.Float32frombits(sign)
		}
		// normalize
		e := uint32(127 - bias + 1)
		for frac&0x0400 == 0 {
			frac <<= 1
			e--
		}
		return math.Float32frombits(sign | e<<23 | (frac&fracMask)<<13)
	case 0x1F:
		return math.Float32frombits(sign | 0x7F800000 | frac<<13)
	}
	return math.Float32frombits(sign | (exp+127-bias)<<23 | frac<<13)
}
