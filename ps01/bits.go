package ps01

// BitsToInt packs a list of bits, most significant first:
// sum(bits[i] << (n-1-i)). Only the low bit of each element is used.
// Every opcode in this package is assembled with it.
func BitsToInt(bits ...uint8) uint32 {
	var v uint32
	for _, b := range bits {
		v = v<<1 | uint32(b&1)
	}
	return v
}

// IntToBits unpacks the low n bits of v, most significant first.
// It is the inverse of BitsToInt for n <= 32.
func IntToBits(v uint32, n int) []uint8 {
	if n <= 0 {
		return nil
	}
	bits := make([]uint8, n)
	for i := 0; i < n; i++ {
		bits[i] = uint8(v>>(n-1-i)) & 1
	}
	return bits
}
