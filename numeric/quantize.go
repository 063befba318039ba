// Package numeric holds the small exact-arithmetic utilities that every
// SquID leans on: quantizing observed counts into fixed-point probability
// weights, and narrowing model parameters through IEEE-754 single precision
// so encode and decode agree bit-for-bit.
package numeric

import "fmt"

// Quantize converts nonnegative integer counts into boundary weights that
// sum exactly to 2^bits, per spec §4.2. Every bin with a positive count gets
// at least one unit of weight; the floor-division remainder is carried to
// the single largest bin so the total lands exactly on 2^bits.
func Quantize(counts []uint64, bits int) ([]uint32, error) {
	if bits != 8 && bits != 16 {
		return nil, fmt.Errorf("numeric: Quantize bits=%d must be 8 or 16", bits)
	}
	total := uint64(2) << (bits - 1) // 2^bits
	var sum uint64
	for _, c := range counts {
		sum += c
	}
	weights := make([]uint32, len(counts))
	if sum == 0 {
		// No observations at all: spread weight as evenly as possible.
		if len(counts) == 0 {
			return weights, nil
		}
		base := total / uint64(len(counts))
		for i := range weights {
			weights[i] = uint32(base)
		}
		weights[len(weights)-1] += uint32(total - base*uint64(len(counts)))
		return weights, nil
	}

	reserved := uint64(0)
	minShare := total / uint64(1<<uint(bits)) // 1/2^bits threshold, i.e. 1 unit
	_ = minShare
	// Step 1: any bin whose share would round to 0 gets one reserved unit.
	reservedMask := make([]bool, len(counts))
	for i, c := range counts {
		if c == 0 {
			continue
		}
		share := c * total / sum
		if share < 1 {
			reservedMask[i] = true
			weights[i] = 1
			reserved++
		}
	}

	remainingTotal := total - reserved
	remainingSum := uint64(0)
	for i, c := range counts {
		if !reservedMask[i] {
			remainingSum += c
		}
	}

	if remainingSum == 0 {
		// Every positive bin was reserved; nothing left to distribute.
		return finalizeRemainder(weights, counts, total), nil
	}

	var distributed uint64
	largest, largestWeight := -1, uint64(0)
	for i, c := range counts {
		if reservedMask[i] || c == 0 {
			continue
		}
		w := c * remainingTotal / remainingSum
		if w == 0 {
			w = 1 // never produce a zero weight for an observed outcome
		}
		weights[i] = uint32(w)
		distributed += w
		if w > largestWeight {
			largest, largestWeight = i, w
		}
	}

	return finalizeRemainderFrom(weights, total, distributed, largest), nil
}

func finalizeRemainder(weights []uint32, counts []uint64, total uint64) []uint32 {
	var sum uint64
	largest := -1
	for i, w := range weights {
		sum += uint64(w)
		if largest == -1 || w > weights[largest] {
			largest = i
		}
	}
	if largest == -1 {
		return weights
	}
	if total > sum {
		weights[largest] += uint32(total - sum)
	} else if total < sum {
		weights[largest] -= uint32(sum - total)
	}
	return weights
}

func finalizeRemainderFrom(weights []uint32, total, distributed uint64, largest int) []uint32 {
	if largest == -1 {
		return finalizeRemainder(weights, nil, total)
	}
	var sum uint64
	for _, w := range weights {
		sum += uint64(w)
	}
	if total > sum {
		weights[largest] += uint32(total - sum)
	} else if total < sum {
		weights[largest] -= uint32(sum - total)
	}
	return weights
}

// RoundHalfAwayFromZero rounds x to the nearest integer, ties away from zero.
func RoundHalfAwayFromZero(x float64) int64 {
	if x >= 0 {
		return int64(x + 0.5)
	}
	return -int64(-x + 0.5)
}

// RoundToDecimals rounds x to the given number of decimal places.
func RoundToDecimals(x float64, decimals int) float64 {
	mult := 1.0
	for i := 0; i < decimals; i++ {
		mult *= 10
	}
	if mult == 0 {
		return x
	}
	return float64(RoundHalfAwayFromZero(x*mult)) / mult
}
