package numeric

import "math"

// NarrowF32 round-trips x through IEEE-754 single precision. Both the
// encoder and the decoder must call this on every model parameter that the
// wire format stores as f32 (§6, §9's third Open Question) so that
// downstream arithmetic - computed from the narrowed value on both sides -
// agrees bit-for-bit.
func NarrowF32(x float64) float64 {
	return float64(float32(x))
}

// PackF32 packs x (after narrowing) into its 4-byte IEEE-754 representation.
func PackF32(x float64) uint32 {
	return math.Float32bits(float32(x))
}

// UnpackF32 is the inverse of PackF32.
func UnpackF32(bits uint32) float64 {
	return float64(math.Float32frombits(bits))
}
