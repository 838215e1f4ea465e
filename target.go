package spv

import "math/big"

// RetargetBits computes the new compact difficulty target for the
// epoch that starts after prevHeader, given the header that opened
// the closing epoch (epochStart). Implements spec.md §4.4: clamp the
// actual timespan to [timespan/4, timespan*4], scale the old target
// by that ratio, cap at the network's PowLimit, and mask to the
// wire-compact form's precision (spec.md §9 — this mask is essential
// for bitwise compatibility and property tests must compare the full
// compact-encoded form, not the big.Int value).
func RetargetBits(prevHeader, epochStart *BlockHeader, params *NetParams) uint32 {
	actualTimespan := int64(prevHeader.Time) - int64(epochStart.Time)

	minTimespan := params.RetargetTimespan / 4
	maxTimespan := params.RetargetTimespan * 4
	if actualTimespan < minTimespan {
		actualTimespan = minTimespan
	}
	if actualTimespan > maxTimespan {
		actualTimespan = maxTimespan
	}

	oldTarget := bitsToTarget(prevHeader.Bits)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(actualTimespan))
	newTarget.Div(newTarget, big.NewInt(params.RetargetTimespan))

	if newTarget.Cmp(params.PowLimit) > 0 {
		newTarget = params.PowLimit
	}

	return targetToBits(newTarget)
}

// bitsToTarget decodes the compact ("nBits") representation: the top
// byte is an exponent, the remaining three bytes a mantissa.
// target = mantissa * 256^(exponent-3).
func bitsToTarget(bits uint32) *big.Int {
	exponent := bits >> 24
	mantissa := bits & 0x007fffff

	// The sign bit (0x00800000) is never set by a valid target; a set
	// sign bit decodes to zero, matching the reference client.
	if bits&0x00800000 != 0 {
		return big.NewInt(0)
	}

	target := big.NewInt(int64(mantissa))
	if exponent <= 3 {
		return target.Rsh(target, uint(8*(3-exponent)))
	}
	return target.Lsh(target, uint(8*(exponent-3)))
}

// targetToBits is the inverse of bitsToTarget, masking the result to
// the same 3-byte-mantissa/1-byte-exponent precision the wire form
// carries. This rounding is essential for bitwise compatibility with
// the reference client's retarget computation (spec.md §9).
func targetToBits(target *big.Int) uint32 {
	if target.Sign() == 0 {
		return 0
	}

	// nBytes is the number of bytes needed to represent target.
	nBytes := (target.BitLen() + 7) / 8

	var mantissa uint32
	if nBytes <= 3 {
		mantissa = uint32(target.Int64()) << uint(8*(3-nBytes))
	} else {
		shifted := new(big.Int).Rsh(target, uint(8*(nBytes-3)))
		mantissa = uint32(shifted.Int64())
	}

	// If the high bit of the mantissa would be interpreted as a sign
	// bit, shift everything right by one byte and bump the exponent.
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		nBytes++
	}

	return uint32(nBytes)<<24 | mantissa
}

// workFromBits is floor(2^256 / (target+1)), the GLOSSARY's per-block
// work value; monotone decreasing in the numeric target.
func workFromBits(bits uint32) *big.Int {
	target := bitsToTarget(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}
	denom := new(big.Int).Add(target, big.NewInt(1))
	numer := new(big.Int).Lsh(big.NewInt(1), 256)
	return numer.Div(numer, denom)
}
