package rewards

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount rejects zero, negative, or out-of-bound amounts.
	ErrInvalidAmount = errors.New("rewards: invalid amount")
	// ErrZeroAmount rejects claims for nothing.
	ErrZeroAmount = errors.New("rewards: zero amount")
	// ErrRoundAmountRequired rejects stable amounts that do not convert
	// exactly into whole USD and whole reward points.
	ErrRoundAmountRequired = errors.New("rewards: round amount required")
	// ErrAmountOverflow rejects amounts whose conversion exceeds the
	// arithmetic width; the operation fails closed rather than wrapping.
	ErrAmountOverflow = errors.New("rewards: amount overflow")
	// ErrZeroAddress rejects the all-zero account where a real identity is
	// required.
	ErrZeroAddress = errors.New("rewards: zero address")
	// ErrReservedAddress rejects the vault's own address where an external
	// account is required.
	ErrReservedAddress = errors.New("rewards: vault address reserved")
	// ErrUnauthorized rejects callers lacking the required role.
	ErrUnauthorized = errors.New("rewards: unauthorized")
	// ErrInvalidSignature rejects authorization messages whose recovered
	// signer, domain, or context binding does not match.
	ErrInvalidSignature = errors.New("rewards: invalid signature")
	// ErrSignatureReuse rejects an authorization whose fingerprint was
	// already consumed.
	ErrSignatureReuse = errors.New("rewards: signature already used")
	// ErrSignatureExpired rejects claims past their deadline.
	ErrSignatureExpired = errors.New("rewards: signature expired")
	// ErrNotPaused rejects an unpause of an already-running vault.
	ErrNotPaused = errors.New("rewards: not paused")
)

// ErrWithdrawExceedsDeposit rejects withdrawals beyond the account's remaining
// deposited balance. It unwraps to ErrInvalidAmount.
var ErrWithdrawExceedsDeposit = fmt.Errorf("%w: withdrawal exceeds available deposit", ErrInvalidAmount)
