package wire

import (
	"fmt"
	"math/big"
)

const digits = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// EncodeBaseN renders a non-negative integer in the given base (2..62),
// matching the digit alphabet of the original arbitrary-base bignum codec
// (lib/basen.c) but built on math/big rather than hand-rolled word
// arithmetic.
func EncodeBaseN(v *big.Int, base int) (string, error) {
	if base < 2 || base > len(digits) {
		return "", fmt.Errorf("wire: base %d out of range [2,%d]", base, len(digits))
	}
	if v.Sign() < 0 {
		return "", fmt.Errorf("wire: basen: negative value")
	}
	if v.Sign() == 0 {
		return string(digits[0]), nil
	}

	n := new(big.Int).Set(v)
	b := big.NewInt(int64(base))
	rem := new(big.Int)
	var out []byte
	for n.Sign() > 0 {
		n.DivMod(n, b, rem)
		out = append(out, digits[rem.Int64()])
	}
	// Reverse in place (most significant digit first).
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

// DecodeBaseN parses a string encoded by EncodeBaseN back into an integer.
func DecodeBaseN(s string, base int) (*big.Int, error) {
	if base < 2 || base > len(digits) {
		return nil, fmt.Errorf("wire: base %d out of range [2,%d]", base, len(digits))
	}
	if s == "" {
		return nil, fmt.Errorf("wire: basen: empty string")
	}

	alphabet := digits[:base]
	index := make(map[byte]int64, base)
	for i := 0; i < base; i++ {
		index[alphabet[i]] = int64(i)
	}

	result := new(big.Int)
	b := big.NewInt(int64(base))
	for i := 0; i < len(s); i++ {
		d, ok := index[s[i]]
		if !ok {
			return nil, fmt.Errorf("wire: basen: invalid digit %q for base %d", s[i], base)
		}
		result.Mul(result, b)
		result.Add(result, big.NewInt(d))
	}
	return result, nil
}
