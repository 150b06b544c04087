//go:build amd64

package optimize

import (
	"encoding/binary"

	"golang.org/x/sys/cpu"
)

func init() {
	if cpu.X86.HasAVX2 {
		hasExcessiveRepeatImpl = hasExcessiveRepeatWord
	}
}

// hasExcessiveRepeatWord is a SWAR (SIMD-within-a-register) scan: it
// compares 8 bytes at a time against a byte broadcast across a uint64,
// falling back to a byte-at-a-time run-length scan only for words whose
// bytes are not all equal and for the sub-word tail. This is not
// hand-written AVX2 — it
// is the same word-at-a-time trick the donor project's path comparison
// uses, applied to run-length detection instead.
func hasExcessiveRepeatWord(data []byte) bool {
	if len(data) < 8 {
		return hasExcessiveRepeatScalar(data)
	}

	run := 0
	var prev byte
	i := 0
	for i+8 <= len(data) {
		word := binary.LittleEndian.Uint64(data[i : i+8])
		b0 := byte(word)
		broadcast := uint64(b0) * 0x0101010101010101
		if word == broadcast {
			if run > 0 && prev == b0 {
				run += 8
			} else {
				run = 8
				prev = b0
			}
			if run > RepeatedByteThreshold {
				return true
			}
			i += 8
			continue
		}
		// Mixed word: fall back to scalar for this stretch and resync.
		for j := i; j < i+8; j++ {
			if run > 0 && data[j] == prev {
				run++
			} else {
				run = 1
				prev = data[j]
			}
			if run > RepeatedByteThreshold {
				return true
			}
		}
		i += 8
	}
	for ; i < len(data); i++ {
		if run > 0 && data[i] == prev {
			run++
		} else {
			run = 1
			prev = data[i]
		}
		if run > RepeatedByteThreshold {
			return true
		}
	}
	return false
}
