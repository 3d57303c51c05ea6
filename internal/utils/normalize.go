package utils

import "math"

// CreateRankList creates a slice of ranks based on position.
// The rank starts at 1 for the first item; positions past math.MaxUint16 share the last rank.
func CreateRankList(count int) []uint16 {
	if count <= 0 {
		return []uint16{}
	}
	ranks := make([]uint16, count)
	for i := range ranks {
		r := i + 1
		if r > math.MaxUint16 {
			r = math.MaxUint16
		}
		ranks[i] = uint16(r)
	}
	return ranks
}
