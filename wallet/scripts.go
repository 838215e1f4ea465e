package wallet

// Minimal script recognition and construction, per spec.md §1's note
// that the wallet only needs to recognize and build the two standard
// "pay to" forms it can itself spend; a general script interpreter is
// out of scope.

const (
	opDup         = 0x76
	opHash160     = 0xa9
	opEqualVerify = 0x88
	opCheckSig    = 0xac
	opEqual       = 0x87
)

// extractP2PKHHash recognizes OP_DUP OP_HASH160 <20> <hash> OP_EQUALVERIFY OP_CHECKSIG.
func extractP2PKHHash(script []byte) ([]byte, bool) {
	if len(script) != 25 {
		return nil, false
	}
	if script[0] != opDup || script[1] != opHash160 || script[2] != 0x14 {
		return nil, false
	}
	if script[23] != opEqualVerify || script[24] != opCheckSig {
		return nil, false
	}
	return script[3:23], true
}

// extractP2PKPubKey recognizes <push> <pubkey> OP_CHECKSIG for either
// compressed (33-byte) or uncompressed (65-byte) keys.
func extractP2PKPubKey(script []byte) ([]byte, bool) {
	if len(script) == 35 && script[0] == 0x21 && script[34] == opCheckSig {
		return script[1:34], true
	}
	if len(script) == 67 && script[0] == 0x41 && script[66] == opCheckSig {
		return script[1:66], true
	}
	return nil, false
}

// malformedScriptReason distinguishes a script that looks like a
// truncated or corrupted attempt at one of our two recognized forms
// (worth a logged spv.ScriptError per spec.md §7) from a script that
// simply pays in some other, legitimately different way (not ours,
// nothing to log). It only looks at the forms' leading opcode/push, so
// it never misclassifies an unrelated script type.
func malformedScriptReason(script []byte) string {
	if len(script) == 0 {
		return ""
	}
	switch script[0] {
	case opDup:
		if _, ok := extractP2PKHHash(script); !ok {
			return "malformed pay-to-pubkey-hash script"
		}
	case 0x21, 0x41:
		if _, ok := extractP2PKPubKey(script); !ok {
			return "malformed pay-to-pubkey script"
		}
	}
	return ""
}

// extractSigScriptPubKey recovers the public key pushed by a standard
// <sig><pubkey> scriptSig of the form signInput (send.go) builds, so an
// input spending a transaction we don't otherwise track can still be
// recognized as ours by the pubkey that signed it (spec.md §4.6's
// "input signed by one of our keys").
func extractSigScriptPubKey(scriptSig []byte) ([]byte, bool) {
	if len(scriptSig) < 2 {
		return nil, false
	}
	sigLen := int(scriptSig[0])
	if sigLen <= 0 || len(scriptSig) < 1+sigLen+1 {
		return nil, false
	}
	rest := scriptSig[1+sigLen:]
	pubLen := int(rest[0])
	if pubLen <= 0 || len(rest) != 1+pubLen {
		return nil, false
	}
	return rest[1:], true
}

// PayToPubKeyHashScript builds the standard OP_DUP OP_HASH160 <hash>
// OP_EQUALVERIFY OP_CHECKSIG output script for h160, a 20-byte
// RIPEMD160(SHA256(pubkey)) value.
func PayToPubKeyHashScript(h160 []byte) []byte {
	s := make([]byte, 0, 25)
	s = append(s, opDup, opHash160, 0x14)
	s = append(s, h160...)
	s = append(s, opEqualVerify, opCheckSig)
	return s
}
