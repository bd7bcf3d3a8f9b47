package sales

import "github.com/holiman/uint256"

// checkedMul returns a*b or ErrArithmeticOverflow when the product does not
// fit in 64 bits.
func checkedMul(a, b uint64) (uint64, error) {
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !product.IsUint64() {
		return 0, wrapf(ErrArithmeticOverflow, "%d * %d", a, b)
	}
	return product.Uint64(), nil
}

// checkedAdd returns a+b or ErrArithmeticOverflow.
func checkedAdd(a, b uint64) (uint64, error) {
	sum := new(uint256.Int).Add(uint256.NewInt(a), uint256.NewInt(b))
	if !sum.IsUint64() {
		return 0, wrapf(ErrArithmeticOverflow, "%d + %d", a, b)
	}
	return sum.Uint64(), nil
}
