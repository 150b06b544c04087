//go:build arm64

package optimize

import "golang.org/x/sys/cpu"

func init() {
	if cpu.ARM64.HasASIMD {
		// NEON is standard on ARMv8; the scalar scan is already a tight
		// single-pass loop, so unlike amd64 there is no separate word
		// path here — NEON detection is recorded for parity with the
		// donor project's capability probing, not because a faster Go
		// implementation exists without cgo/asm.
		hasExcessiveRepeatImpl = hasExcessiveRepeatScalar
	}
}
