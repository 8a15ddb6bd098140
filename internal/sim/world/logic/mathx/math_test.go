package mathx

import (
	"math"
	"testing"
)

func TestSnapAndGridFrom(t *testing.T) {
	if got := Snap(59.9, 30); got != 30 {
		t.Fatalf("Snap(59.9)=%v", got)
	}
	if got := Snap(-1, 30); got != -30 {
		t.Fatalf("Snap(-1)=%v", got)
	}
	if got := GridFrom(800, 30); got != 27 {
		t.Fatalf("GridFrom(800)=%d", got)
	}
	if got := GridFrom(-800, 30); got != -26 {
		t.Fatalf("GridFrom(-800)=%d", got)
	}
	if got := GridFrom(0, 30); got != 0 {
		t.Fatalf("GridFrom(0)=%d", got)
	}
}

func TestFinite(t *testing.T) {
	if !Finite(1, -2, 0) {
		t.Fatalf("expected finite")
	}
	if Finite(1, math.NaN()) || Finite(math.Inf(-1)) {
		t.Fatalf("expected non-finite")
	}
}

func TestHash2(t *testing.T) {
	if Hash2(22, 5, 1) == Hash2(22, 6, 1) || Hash2(22, 5, 1) == Hash2(22, 5, 2) {
		t.Fatalf("coordinates ignored")
	}
	if Hash2(22, 5, 1) != Hash2(22, 5, 1) {
		t.Fatalf("hash not stable")
	}
	if Hash2(22, 5, 1) == Hash2(23, 5, 1) {
		t.Fatalf("seed ignored")
	}
}
