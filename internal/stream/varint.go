package stream

// MaxVarintLen is the maximum number of bytes a 64-bit uvarint occupies.
const MaxVarintLen = 10

// AppendUvarint appends the LEB128 encoding of v to dst.
func AppendUvarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// UvarintLen returns the number of bytes AppendUvarint would emit for v.
func UvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// Uvarint decodes a uvarint from the front of src and returns the value and the
// number of bytes consumed.
//
// n == 0 means src ended before the final group.
// n < 0 means the value does not fit in 64 bits; -n bytes were examined.
func Uvarint(src []byte) (v uint64, n int) {
	var shift uint
	for i, b := range src {
		if i == MaxVarintLen {
			return 0, -(i + 1)
		}
		if b < 0x80 {
			// The tenth group may only carry the 64th bit.
			if i == MaxVarintLen-1 && b > 1 {
				return 0, -(i + 1)
			}
			return v | uint64(b)<<shift, i + 1
		}
		v |= uint64(b&0x7f) << shift
		shift += 7
	}
	return 0, 0
}
