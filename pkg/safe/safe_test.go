package safe

import (
	"math"
	"testing"
)

func TestSafeAdd(t *testing.T) {
	if got := SafeAdd(2, 3); got != 5 {
		t.Errorf("SafeAdd(2, 3) = %d, want 5", got)
	}
	if got := SafeAdd(-2, 3); got != 1 {
		t.Errorf("SafeAdd(-2, 3) = %d, want 1", got)
	}
}

func TestSafeAdd_Overflow(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on overflow")
		}
	}()
	SafeAdd(math.MaxInt64, 1)
}

func TestSafeSub_Underflow(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on underflow")
		}
	}()
	SafeSub(math.MinInt64, 1)
}

func TestSafeMul(t *testing.T) {
	if got := SafeMul(0, math.MaxInt64); got != 0 {
		t.Errorf("SafeMul(0, max) = %d, want 0", got)
	}
	if got := SafeMul(7, 6); got != 42 {
		t.Errorf("SafeMul(7, 6) = %d, want 42", got)
	}
}

func TestSafeMul_Overflow(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on overflow")
		}
	}()
	SafeMul(math.MaxInt64, 2)
}
