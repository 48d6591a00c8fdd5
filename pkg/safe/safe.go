// Package safe provides overflow-checked int64 arithmetic for monetary values.
// All amounts in the system are strictly int64; silent wraparound on a balance
// is a corruption, so these helpers panic instead of wrapping.
package safe

import (
	"fmt"
	"math"
)

// SafeAdd returns a+b, panicking on int64 overflow.
func SafeAdd(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		panic(fmt.Sprintf("SAFE_ADD_OVERFLOW: %d + %d", a, b))
	}
	if b < 0 && a < math.MinInt64-b {
		panic(fmt.Sprintf("SAFE_ADD_UNDERFLOW: %d + %d", a, b))
	}
	return a + b
}

// SafeSub returns a-b, panicking on int64 overflow.
func SafeSub(a, b int64) int64 {
	if b < 0 && a > math.MaxInt64+b {
		panic(fmt.Sprintf("SAFE_SUB_OVERFLOW: %d - %d", a, b))
	}
	if b > 0 && a < math.MinInt64+b {
		panic(fmt.Sprintf("SAFE_SUB_UNDERFLOW: %d - %d", a, b))
	}
	return a - b
}

// SafeMul returns a*b, panicking on int64 overflow.
func SafeMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	r := a * b
	if r/b != a {
		panic(fmt.Sprintf("SAFE_MUL_OVERFLOW: %d * %d", a, b))
	}
	return r
}
