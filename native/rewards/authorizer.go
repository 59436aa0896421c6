package rewards

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SignatureVerifier abstracts the recovery scheme so the curve can be swapped
// without touching the authorization protocol above it.
type SignatureVerifier interface {
	// Verify reports whether signature over digest was produced by the
	// expected signer.
	Verify(digest []byte, signature []byte, expected [20]byte) bool
}

// RecoverVerifier verifies 65-byte recoverable secp256k1 signatures by
// recovering the signer address and comparing it to the expected one.
type RecoverVerifier struct{}

// Verify implements SignatureVerifier.
func (RecoverVerifier) Verify(digest []byte, signature []byte, expected [20]byte) bool {
	if len(digest) != 32 || len(signature) != 65 {
		return false
	}
	if expected == ([20]byte{}) {
		return false
	}
	pubKey, err := ethcrypto.SigToPub(digest, signature)
	if err != nil {
		return false
	}
	recovered := ethcrypto.PubkeyToAddress(*pubKey)
	return recovered == ethcommon.BytesToAddress(expected[:])
}
