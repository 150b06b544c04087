package optimize

import (
	"bytes"
	"testing"
)

func TestHasExcessiveRepeatScalar(t *testing.T) {
	ok := bytes.Repeat([]byte("a"), RepeatedByteThreshold)
	if hasExcessiveRepeatScalar(ok) {
		t.Fatalf("run of exactly %d should not trip the heuristic", RepeatedByteThreshold)
	}
	bad := bytes.Repeat([]byte("a"), RepeatedByteThreshold+1)
	if !hasExcessiveRepeatScalar(bad) {
		t.Fatalf("run of %d should trip the heuristic", RepeatedByteThreshold+1)
	}
}

func TestHasExcessiveRepeatWindowed(t *testing.T) {
	data := append(bytes.Repeat([]byte("a"), RepeatedByteThreshold+1), bytes.Repeat([]byte("b"), 1000)...)
	if !HasExcessiveRepeat(data) {
		t.Fatalf("expected heuristic to trip within the scan window")
	}
}

func TestHasExcessiveRepeatMixed(t *testing.T) {
	data := []byte("GET /health?a=1&b=2&c=3 HTTP/1.1")
	if HasExcessiveRepeat(data) {
		t.Fatalf("ordinary request line should not trip the heuristic")
	}
}
