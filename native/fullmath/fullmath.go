package fullmath

import "math/big"

// MulDiv returns floor(a*b/denominator). The intermediate product is
// computed at full width, so the result is exact for any operands that
// fit the caller's integer range. A zero denominator yields zero rather
// than an error: a missing scale degrades to "no reward" instead of
// aborting the caller.
func MulDiv(a, b, denominator *big.Int) *big.Int {
	if a == nil || b == nil || denominator == nil || denominator.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, denominator)
}
