package rewards

import (
	"fmt"
	"math/big"
	"strings"
)

var accountPrefix = []byte("rewards/acct/")

// AccountTotals tracks the per-account running totals. All three counters are
// monotonically non-decreasing; TotalWithdrawn never exceeds TotalDeposited.
type AccountTotals struct {
	TotalDeposited *big.Int
	TotalWithdrawn *big.Int
	TotalEarned    *big.Int
}

// Copy returns a deep copy to avoid callers mutating shared pointers.
func (t *AccountTotals) Copy() *AccountTotals {
	if t == nil {
		return nil
	}
	clone := &AccountTotals{}
	if t.TotalDeposited != nil {
		clone.TotalDeposited = new(big.Int).Set(t.TotalDeposited)
	}
	if t.TotalWithdrawn != nil {
		clone.TotalWithdrawn = new(big.Int).Set(t.TotalWithdrawn)
	}
	if t.TotalEarned != nil {
		clone.TotalEarned = new(big.Int).Set(t.TotalEarned)
	}
	return clone.normalize()
}

func (t *AccountTotals) normalize() *AccountTotals {
	if t == nil {
		return nil
	}
	if t.TotalDeposited == nil {
		t.TotalDeposited = big.NewInt(0)
	}
	if t.TotalWithdrawn == nil {
		t.TotalWithdrawn = big.NewInt(0)
	}
	if t.TotalEarned == nil {
		t.TotalEarned = big.NewInt(0)
	}
	return t
}

// Available returns the stable value the account may still withdraw.
func (t *AccountTotals) Available() *big.Int {
	if t == nil {
		return big.NewInt(0)
	}
	t.normalize()
	return new(big.Int).Sub(t.TotalDeposited, t.TotalWithdrawn)
}

type storedTotals struct {
	TotalDeposited string
	TotalWithdrawn string
	TotalEarned    string
}

// AccountLedger persists per-account totals in the underlying state.
type AccountLedger struct {
	st Storage
}

// NewAccountLedger constructs a ledger bound to the provided storage backend.
func NewAccountLedger(st Storage) *AccountLedger {
	return &AccountLedger{st: st}
}

func accountKey(addr [20]byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr)*2)
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], []byte(fmt.Sprintf("%x", addr)))
	return buf
}

func parseStoredAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("rewards: corrupt %s total %q", field, value)
	}
	return amount, nil
}

// Get loads the account's totals, defaulting to zeroes for unseen accounts.
func (l *AccountLedger) Get(addr [20]byte) (*AccountTotals, error) {
	if l == nil {
		return nil, fmt.Errorf("account ledger not initialised")
	}
	var stored storedTotals
	ok, err := l.st.KVGet(accountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return (&AccountTotals{}).normalize(), nil
	}
	deposited, err := parseStoredAmount("deposited", stored.TotalDeposited)
	if err != nil {
		return nil, err
	}
	withdrawn, err := parseStoredAmount("withdrawn", stored.TotalWithdrawn)
	if err != nil {
		return nil, err
	}
	earned, err := parseStoredAmount("earned", stored.TotalEarned)
	if err != nil {
		return nil, err
	}
	return &AccountTotals{
		TotalDeposited: deposited,
		TotalWithdrawn: withdrawn,
		TotalEarned:    earned,
	}, nil
}

// Put stores the account's totals.
func (l *AccountLedger) Put(addr [20]byte, totals *AccountTotals) error {
	if l == nil {
		return fmt.Errorf("account ledger not initialised")
	}
	if totals == nil {
		return fmt.Errorf("rewards: totals must not be nil")
	}
	totals.normalize()
	if totals.TotalWithdrawn.Cmp(totals.TotalDeposited) > 0 {
		return ErrWithdrawExceedsDeposit
	}
	stored := storedTotals{
		TotalDeposited: totals.TotalDeposited.String(),
		TotalWithdrawn: totals.TotalWithdrawn.String(),
		TotalEarned:    totals.TotalEarned.String(),
	}
	return l.st.KVPut(accountKey(addr), stored)
}
