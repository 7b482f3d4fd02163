// SPDX-License-Identifier: Apache-2.0

package krb5

import "math"

// addInt32 performs saturating 32-bit signed addition: the result is
// clamped to [math.MinInt32, math.MaxInt32] rather than wrapping on
// overflow. Used for the from time arithmetic in the request initializer,
// which must never wrap a far-future time into the past; rtime is computed
// with time.Time arithmetic, which does not wrap.
func addInt32(x, y int32) int32 {
	sum := int64(x) + int64(y)
	switch {
	case sum > math.MaxInt32:
		return math.MaxInt32
	case sum < math.MinInt32:
		return math.MinInt32
	default:
		return int32(sum)
	}
}
