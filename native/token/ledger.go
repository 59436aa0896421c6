package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	ErrInvalidAmount       = errors.New("token: invalid amount")
	ErrNotAuthority        = errors.New("token: caller is not the supply authority")
)

// Storage abstracts the subset of state manager functionality required by the
// token ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Ledger tracks fungible balances for a single asset in the vault state. The
// supply authority is the only account allowed to mint or burn; the reward
// vault binds its own address here so no external path can move custody.
type Ledger struct {
	st        Storage
	symbol    string
	decimals  uint8
	authority [20]byte
}

type storedBalance struct {
	Amount string
}

// NewLedger constructs a ledger for the supplied asset symbol.
func NewLedger(st Storage, symbol string, decimals uint8) (*Ledger, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return nil, fmt.Errorf("token: symbol required")
	}
	return &Ledger{st: st, symbol: trimmed, decimals: decimals}, nil
}

// SetAuthority binds the account allowed to mint and burn supply.
func (l *Ledger) SetAuthority(addr [20]byte) {
	if l == nil {
		return
	}
	l.authority = addr
}

// Symbol returns the canonical asset symbol.
func (l *Ledger) Symbol() string {
	if l == nil {
		return ""
	}
	return l.symbol
}

// Decimals returns the number of fractional subunits the asset carries.
func (l *Ledger) Decimals() uint8 {
	if l == nil {
		return 0
	}
	return l.decimals
}

func (l *Ledger) balanceKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("token/%s/bal/%x", l.symbol, addr))
}

// BalanceOf returns the current balance of the account.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	if l == nil {
		return nil, fmt.Errorf("token ledger not initialised")
	}
	var stored storedBalance
	ok, err := l.st.KVGet(l.balanceKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(stored.Amount) == "" {
		return big.NewInt(0), nil
	}
	balance, parsed := new(big.Int).SetString(strings.TrimSpace(stored.Amount), 10)
	if !parsed {
		return nil, fmt.Errorf("token: corrupt balance %q for %x", stored.Amount, addr)
	}
	return balance, nil
}

func (l *Ledger) putBalance(addr [20]byte, balance *big.Int) error {
	return l.st.KVPut(l.balanceKey(addr), storedBalance{Amount: balance.String()})
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if l == nil {
		return fmt.Errorf("token ledger not initialised")
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	fromBalance, err := l.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, l.symbol, fromBalance, amount)
	}
	// Debit and credit of the same account net to zero; writing the credit
	// against the pre-debit balance would inflate it instead.
	if from == to {
		return nil
	}
	toBalance, err := l.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := l.putBalance(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return l.putBalance(to, new(big.Int).Add(toBalance, amount))
}

// Mint credits new supply to the caller. Only the supply authority may mint.
func (l *Ledger) Mint(caller [20]byte, amount *big.Int) error {
	if l == nil {
		return fmt.Errorf("token ledger not initialised")
	}
	if caller != l.authority || l.authority == ([20]byte{}) {
		return ErrNotAuthority
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := l.BalanceOf(caller)
	if err != nil {
		return err
	}
	return l.putBalance(caller, new(big.Int).Add(balance, amount))
}

// Burn debits supply from the caller. Only the supply authority may burn.
func (l *Ledger) Burn(caller [20]byte, amount *big.Int) error {
	if l == nil {
		return fmt.Errorf("token ledger not initialised")
	}
	if caller != l.authority || l.authority == ([20]byte{}) {
		return ErrNotAuthority
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := l.BalanceOf(caller)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, burning %s", ErrInsufficientBalance, l.symbol, balance, amount)
	}
	return l.putBalance(caller, new(big.Int).Sub(balance, amount))
}
