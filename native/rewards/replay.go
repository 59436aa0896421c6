package rewards

import (
	"encoding/hex"
	"fmt"
)

var usedFingerprintPrefix = []byte("rewards/used/")

// Storage abstracts the subset of state manager functionality required by the
// rewards module.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// ReplayLedger records consumed authorization fingerprints. Entries are only
// ever added; the unbounded growth is the accepted cost of salt-based replay
// protection.
type ReplayLedger struct {
	st Storage
}

// NewReplayLedger constructs a ledger bound to the provided storage backend.
func NewReplayLedger(st Storage) *ReplayLedger {
	return &ReplayLedger{st: st}
}

func fingerprintKey(fp [32]byte) []byte {
	suffix := hex.EncodeToString(fp[:])
	buf := make([]byte, len(usedFingerprintPrefix)+len(suffix))
	copy(buf, usedFingerprintPrefix)
	copy(buf[len(usedFingerprintPrefix):], suffix)
	return buf
}

// Used reports whether the fingerprint has already authorized an operation.
func (l *ReplayLedger) Used(fp [32]byte) (bool, error) {
	if l == nil {
		return false, fmt.Errorf("replay ledger not initialised")
	}
	return l.st.KVGet(fingerprintKey(fp), nil)
}

// MarkIfUnused atomically checks absence and records the fingerprint. It
// returns false when the fingerprint was already consumed; the caller must
// then fail the operation with ErrSignatureReuse.
func (l *ReplayLedger) MarkIfUnused(fp [32]byte) (bool, error) {
	if l == nil {
		return false, fmt.Errorf("replay ledger not initialised")
	}
	used, err := l.Used(fp)
	if err != nil {
		return false, err
	}
	if used {
		return false, nil
	}
	if err := l.st.KVPut(fingerprintKey(fp), true); err != nil {
		return false, err
	}
	return true, nil
}
