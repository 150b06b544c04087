// Package optimize hosts architecture-dispatched byte scans used on the
// reactor's hot read path. The dispatch pattern (detect CPU features
// once at init, pick a function pointer) is the donor project's own
// SIMD-detection idiom, repurposed here for a different scan: the
// repeated-character DoS heuristic named as an optional, disabled-by-
// default policy.
package optimize

// RepeatedByteThreshold is the longest run of one repeated byte allowed
// in the scanned window before HasExcessiveRepeat reports true.
const RepeatedByteThreshold = 128

// RepeatedByteWindow bounds how much of the request is scanned.
const RepeatedByteWindow = 256

// hasExcessiveRepeatImpl is selected at init based on CPU features.
var hasExcessiveRepeatImpl = hasExcessiveRepeatScalar

// HasExcessiveRepeat reports whether data (truncated to
// RepeatedByteWindow bytes) contains a run longer than
// RepeatedByteThreshold of the same byte value. This is a heuristic,
// not part of HTTP; callers must gate it behind explicit policy.
func HasExcessiveRepeat(data []byte) bool {
	if len(data) > RepeatedByteWindow {
		data = data[:RepeatedByteWindow]
	}
	return hasExcessiveRepeatImpl(data)
}

func hasExcessiveRepeatScalar(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	run := 1
	prev := data[0]
	for i := 1; i < len(data); i++ {
		if data[i] == prev {
			run++
			if run > RepeatedByteThreshold {
				return true
			}
		} else {
			run = 1
			prev = data[i]
		}
	}
	return false
}
