package ps01

// ABS_POS and MARK hold a 22-bit two's complement position
const (
	positionSignBit = 0x200000
	positionRange   = 0x400000
	PositionMax     = positionSignBit - 1
	PositionMin     = -positionSignBit
)

// EncodePosition returns the 22-bit register form of a position. Positions
// outside PositionMin..PositionMax wrap, as the driver counter does.
func EncodePosition(p int32) uint32 {
	return uint32(p) & AbsPos.ValueMask()
}

// DecodePosition sign-extends a 22-bit register value
func DecodePosition(raw uint32) int32 {
	v := int32(raw & AbsPos.ValueMask())
	if v&positionSignBit != 0 {
		v -= positionRange
	}
	return v
}
