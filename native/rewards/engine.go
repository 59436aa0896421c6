package rewards

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"rewardvault/core/events"
	nativecommon "rewardvault/native/common"
)

// Roles gating the vault's operations. Roles are additive capability grants
// and independently revocable; an account may hold several.
const (
	RoleAdmin       = "ROLE_REWARD_ADMIN"
	RolePauser      = "ROLE_PAUSER"
	RoleMaintenance = "ROLE_MAINTENANCE"
	RoleDistributor = "ROLE_DISTRIBUTOR"
)

// Token is the asset-ledger surface the engine consumes for the stable asset.
type Token interface {
	Symbol() string
	Decimals() uint8
	BalanceOf(addr [20]byte) (*big.Int, error)
	Transfer(from, to [20]byte, amount *big.Int) error
}

// RewardToken additionally exposes the supply primitives the vault uses to
// mint points on deposit and burn them on exit.
type RewardToken interface {
	Token
	Mint(caller [20]byte, amount *big.Int) error
	Burn(caller [20]byte, amount *big.Int) error
}

// State is the slice of the state manager the engine requires: the KV schema,
// role membership, the pause switch, and operation-scoped rollback.
type State interface {
	Storage
	HasRole(role string, addr []byte) bool
	GrantRole(role string, addr []byte) error
	RevokeRole(role string, addr []byte) error
	IsPaused() bool
	SetPaused(paused bool) error
	Snapshot() int
	RevertToSnapshot(id int) error
	Commit()
	EnsureSchema() (bool, error)
}

// Engine orchestrates the reward vault operations. Every public method is a
// single atomic unit: the state snapshot taken on entry is reverted on any
// failure, and events are only emitted after the operation commits.
type Engine struct {
	st        State
	accounts  *AccountLedger
	replay    *ReplayLedger
	stable    Token
	reward    RewardToken
	converter Converter
	verifier  SignatureVerifier
	emitter   events.Emitter
	vault     [20]byte
	chainID   uint64
	clock     func() time.Time
	pending   []events.Event
}

// NewEngine constructs an engine bound to the supplied state and asset
// ledgers. The vault address is the ledger's own identity: it holds asset
// custody and anchors the signature domain.
func NewEngine(st State, converter Converter, stable Token, reward RewardToken, vault [20]byte, chainID uint64) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("rewards: state required")
	}
	if stable == nil || reward == nil {
		return nil, fmt.Errorf("rewards: asset ledgers required")
	}
	if !converter.initialised() {
		return nil, fmt.Errorf("rewards: converter required")
	}
	if vault == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	if stable.Decimals() != converter.StableDecimals() {
		return nil, fmt.Errorf("rewards: stable asset has %d decimals, converter expects %d", stable.Decimals(), converter.StableDecimals())
	}
	return &Engine{
		st:        st,
		accounts:  NewAccountLedger(st),
		replay:    NewReplayLedger(st),
		stable:    stable,
		reward:    reward,
		converter: converter,
		verifier:  RecoverVerifier{},
		emitter:   events.NoopEmitter{},
		vault:     vault,
		chainID:   chainID,
		clock:     time.Now,
	}, nil
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetVerifier overrides the signature recovery scheme.
func (e *Engine) SetVerifier(verifier SignatureVerifier) {
	if e == nil || verifier == nil {
		return
	}
	e.verifier = verifier
}

// SetClock overrides the time source (primarily for deterministic testing).
func (e *Engine) SetClock(clock func() time.Time) {
	if e == nil || clock == nil {
		return
	}
	e.clock = clock
}

// VaultAddress returns the ledger's own account identity.
func (e *Engine) VaultAddress() [20]byte {
	if e == nil {
		return [20]byte{}
	}
	return e.vault
}

// ChainID returns the chain identifier bound into every signature domain.
func (e *Engine) ChainID() uint64 {
	if e == nil {
		return 0
	}
	return e.chainID
}

// Paused reports the pause switch.
func (e *Engine) Paused() bool {
	if e == nil {
		return false
	}
	return e.st.IsPaused()
}

// Initialize writes the genesis configuration. It is a no-op when a
// configuration is already persisted, so restarts never clobber admin changes.
func (e *Engine) Initialize(cfg *Config) error {
	if e == nil {
		return fmt.Errorf("rewards engine not initialised")
	}
	if cfg == nil {
		return fmt.Errorf("rewards: nil config")
	}
	_, ok, err := loadConfig(e.st)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	cfg = cfg.Clone().Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Treasury == e.vault {
		return ErrReservedAddress
	}
	if err := putConfig(e.st, cfg); err != nil {
		return err
	}
	e.st.Commit()
	return nil
}

func (e *Engine) config() (*Config, error) {
	cfg, ok, err := loadConfig(e.st)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("rewards: vault not initialised")
	}
	return cfg, nil
}

// Totals returns a copy of the account's running totals.
func (e *Engine) Totals(addr [20]byte) (*AccountTotals, error) {
	if e == nil {
		return nil, fmt.Errorf("rewards engine not initialised")
	}
	totals, err := e.accounts.Get(addr)
	if err != nil {
		return nil, err
	}
	return totals.Copy(), nil
}

// ConfigSnapshot returns a copy of the persisted configuration.
func (e *Engine) ConfigSnapshot() (*Config, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}

func (e *Engine) emit(evt events.Event) {
	e.pending = append(e.pending, evt)
}

// run executes op inside a state snapshot. Any failure reverts every write
// the operation made and drops its buffered events; success commits and
// flushes them.
func (e *Engine) run(op func() error) error {
	if e == nil {
		return fmt.Errorf("rewards engine not initialised")
	}
	e.pending = e.pending[:0]
	snap := e.st.Snapshot()
	if err := op(); err != nil {
		e.pending = e.pending[:0]
		if revertErr := e.st.RevertToSnapshot(snap); revertErr != nil {
			return fmt.Errorf("rewards: operation failed (%v) and revert failed: %w", err, revertErr)
		}
		return err
	}
	e.st.Commit()
	for _, evt := range e.pending {
		e.emitter.Emit(evt)
	}
	e.pending = e.pending[:0]
	return nil
}

func (e *Engine) requireRole(caller [20]byte, role string) error {
	if !e.st.HasRole(role, caller[:]) {
		return ErrUnauthorized
	}
	return nil
}

func positive(amount *big.Int) bool {
	return amount != nil && amount.Sign() > 0
}

// requireExternal rejects the vault's own address acting as a counterparty.
// Custody moves only between the vault and external accounts.
func (e *Engine) requireExternal(account [20]byte) error {
	if account == ([20]byte{}) {
		return ErrZeroAddress
	}
	if account == e.vault {
		return ErrReservedAddress
	}
	return nil
}

// Deposit pulls a stable amount from the caller into vault custody and mints
// the equivalent reward points. The amount must be a round multiple of one
// whole USD at the configured precision.
func (e *Engine) Deposit(caller [20]byte, amount *big.Int) error {
	return e.run(func() error {
		if err := nativecommon.Guard(e.st); err != nil {
			return err
		}
		if err := e.requireExternal(caller); err != nil {
			return err
		}
		cfg, err := e.config()
		if err != nil {
			return err
		}
		if !positive(amount) || amount.Cmp(cfg.MinimalDeposit) < 0 {
			return ErrInvalidAmount
		}
		usdWhole, err := e.converter.ToUSD(amount)
		if err != nil {
			return err
		}
		points, err := e.converter.ToPoints(amount)
		if err != nil {
			return err
		}
		totals, err := e.accounts.Get(caller)
		if err != nil {
			return err
		}
		totals.TotalDeposited = new(big.Int).Add(totals.TotalDeposited, amount)
		if err := e.accounts.Put(caller, totals); err != nil {
			return err
		}
		if err := e.stable.Transfer(caller, e.vault, amount); err != nil {
			return err
		}
		if err := e.reward.Mint(e.vault, points); err != nil {
			return err
		}
		e.emit(events.RewardsDeposited{Account: caller, USDWhole: usdWhole, RewardPoints: points})
		return nil
	})
}

func (e *Engine) verifyWithdraw(caller [20]byte, cfg *Config, msg *WithdrawAuthorization, signature []byte) error {
	if msg.ChainID != e.chainID || msg.LedgerID != e.vault {
		return ErrInvalidSignature
	}
	if msg.Requester != caller {
		return ErrInvalidSignature
	}
	if !strings.EqualFold(strings.TrimSpace(msg.Asset), cfg.StableSymbol) {
		return ErrInvalidSignature
	}
	if msg.Authorizer != cfg.Authorizer {
		return ErrInvalidSignature
	}
	if !e.verifier.Verify(msg.Hash(), signature, cfg.Authorizer) {
		return ErrInvalidSignature
	}
	return nil
}

// Cashback releases stable value back to the receiver named in a signed
// withdrawal authorization, burning the matching reward points from custody.
// The amount may not exceed the receiver's remaining deposited balance.
func (e *Engine) Cashback(caller [20]byte, msg *WithdrawAuthorization, signature []byte) error {
	return e.run(func() error {
		if err := nativecommon.Guard(e.st); err != nil {
			return err
		}
		if msg == nil {
			return ErrInvalidSignature
		}
		if !positive(msg.Amount) {
			return ErrInvalidAmount
		}
		if err := e.requireExternal(msg.Receiver); err != nil {
			return err
		}
		cfg, err := e.config()
		if err != nil {
			return err
		}
		if err := e.verifyWithdraw(caller, cfg, msg, signature); err != nil {
			return err
		}
		ok, err := e.replay.MarkIfUnused(Fingerprint(signature))
		if err != nil {
			return err
		}
		if !ok {
			return ErrSignatureReuse
		}
		usdWhole, err := e.converter.ToUSD(msg.Amount)
		if err != nil {
			return err
		}
		points, err := e.converter.ToPoints(msg.Amount)
		if err != nil {
			return err
		}
		totals, err := e.accounts.Get(msg.Receiver)
		if err != nil {
			return err
		}
		if msg.Amount.Cmp(totals.Available()) > 0 {
			return ErrWithdrawExceedsDeposit
		}
		totals.TotalWithdrawn = new(big.Int).Add(totals.TotalWithdrawn, msg.Amount)
		if err := e.accounts.Put(msg.Receiver, totals); err != nil {
			return err
		}
		if err := e.reward.Burn(e.vault, points); err != nil {
			return err
		}
		if err := e.stable.Transfer(e.vault, msg.Receiver, msg.Amount); err != nil {
			return err
		}
		e.emit(events.RewardsCashedBack{Receiver: msg.Receiver, USDWhole: usdWhole, RewardPoints: points})
		return nil
	})
}

// Swap pulls reward points from the caller, burns them on receipt, and pays
// out the equivalent stable value. The reverse conversion is exact for any
// positive point amount, so no round-number restriction applies.
func (e *Engine) Swap(caller [20]byte, rewardAmount *big.Int) error {
	return e.run(func() error {
		if err := nativecommon.Guard(e.st); err != nil {
			return err
		}
		if err := e.requireExternal(caller); err != nil {
			return err
		}
		if !positive(rewardAmount) {
			return ErrInvalidAmount
		}
		if _, err := e.config(); err != nil {
			return err
		}
		stableOut, err := e.converter.ToStable(rewardAmount)
		if err != nil {
			return err
		}
		if err := e.reward.Transfer(caller, e.vault, rewardAmount); err != nil {
			return err
		}
		if err := e.reward.Burn(e.vault, rewardAmount); err != nil {
			return err
		}
		if err := e.stable.Transfer(e.vault, caller, stableOut); err != nil {
			return err
		}
		e.emit(events.RewardsSwapped{Account: caller, StableUnits: stableOut, RewardPoints: rewardAmount})
		return nil
	})
}

// Claim releases reward points from vault custody to the caller under a
// signed, single-use, deadline-bound authorization.
func (e *Engine) Claim(caller [20]byte, msg *ClaimAuthorization, signature []byte) error {
	return e.run(func() error {
		if err := nativecommon.Guard(e.st); err != nil {
			return err
		}
		if msg == nil {
			return ErrInvalidSignature
		}
		if err := e.requireExternal(caller); err != nil {
			return err
		}
		if !positive(msg.Amount) {
			return ErrZeroAmount
		}
		// Deadline first: cheaper than recovery.
		if e.clock().Unix() > msg.Deadline {
			return ErrSignatureExpired
		}
		cfg, err := e.config()
		if err != nil {
			return err
		}
		if msg.ChainID != e.chainID || msg.LedgerID != e.vault || msg.Requester != caller {
			return ErrInvalidSignature
		}
		if msg.Authorizer != cfg.Authorizer {
			return ErrInvalidSignature
		}
		if !e.verifier.Verify(msg.Hash(), signature, cfg.Authorizer) {
			return ErrInvalidSignature
		}
		ok, err := e.replay.MarkIfUnused(Fingerprint(signature))
		if err != nil {
			return err
		}
		if !ok {
			return ErrSignatureReuse
		}
		if err := e.reward.Transfer(e.vault, caller, msg.Amount); err != nil {
			return err
		}
		e.emit(events.RewardsClaimed{Caller: caller, Receiver: caller, RewardPoints: msg.Amount, Salt: msg.Salt})
		return nil
	})
}

// DistributeRewards pushes earned reward points to a receiver, routing the
// fee portion to the treasury and crediting the gross amount to the
// receiver's earned total.
func (e *Engine) DistributeRewards(caller, receiver [20]byte, amount, fee *big.Int) error {
	return e.run(func() error {
		if err := e.requireRole(caller, RoleDistributor); err != nil {
			return err
		}
		if err := nativecommon.Guard(e.st); err != nil {
			return err
		}
		if err := e.requireExternal(receiver); err != nil {
			return err
		}
		cfg, err := e.config()
		if err != nil {
			return err
		}
		if !positive(amount) || amount.Cmp(cfg.DistributeFloor) < 0 {
			return ErrInvalidAmount
		}
		if fee == nil {
			fee = big.NewInt(0)
		}
		if fee.Sign() < 0 || fee.Cmp(amount) > 0 {
			return ErrInvalidAmount
		}
		totals, err := e.accounts.Get(receiver)
		if err != nil {
			return err
		}
		totals.TotalEarned = new(big.Int).Add(totals.TotalEarned, amount)
		if err := e.accounts.Put(receiver, totals); err != nil {
			return err
		}
		net := new(big.Int).Sub(amount, fee)
		if net.Sign() > 0 {
			if err := e.reward.Transfer(e.vault, receiver, net); err != nil {
				return err
			}
		}
		if fee.Sign() > 0 {
			if err := e.reward.Transfer(e.vault, cfg.Treasury, fee); err != nil {
				return err
			}
		}
		e.emit(events.RewardsDistributed{Account: receiver, GrossAmount: amount, Fee: fee})
		return nil
	})
}

// Pause engages the global pause switch. Pausing an already-paused vault
// fails.
func (e *Engine) Pause(caller [20]byte) error {
	return e.run(func() error {
		if err := e.requireRole(caller, RolePauser); err != nil {
			return err
		}
		if e.st.IsPaused() {
			return nativecommon.ErrPaused
		}
		if err := e.st.SetPaused(true); err != nil {
			return err
		}
		e.emit(events.VaultPaused{Caller: caller})
		return nil
	})
}

// Unpause releases the pause switch. Unpausing a running vault fails.
func (e *Engine) Unpause(caller [20]byte) error {
	return e.run(func() error {
		if err := e.requireRole(caller, RolePauser); err != nil {
			return err
		}
		if !e.st.IsPaused() {
			return ErrNotPaused
		}
		if err := e.st.SetPaused(false); err != nil {
			return err
		}
		e.emit(events.VaultResumed{Caller: caller})
		return nil
	})
}

func validRole(role string) bool {
	switch role {
	case RoleAdmin, RolePauser, RoleMaintenance, RoleDistributor:
		return true
	}
	return false
}

// GrantRole adds a capability grant. Role administration stays available
// while paused so an incident can be handed over.
func (e *Engine) GrantRole(caller [20]byte, role string, account [20]byte) error {
	return e.run(func() error {
		if err := e.requireRole(caller, RoleAdmin); err != nil {
			return err
		}
		if !validRole(role) {
			return fmt.Errorf("rewards: unknown role %q", role)
		}
		if account == ([20]byte{}) {
			return ErrZeroAddress
		}
		if err := e.st.GrantRole(role, account[:]); err != nil {
			return err
		}
		e.emit(events.RoleGranted{Role: role, Account: account})
		return nil
	})
}

// RevokeRole removes a capability grant.
func (e *Engine) RevokeRole(caller [20]byte, role string, account [20]byte) error {
	return e.run(func() error {
		if err := e.requireRole(caller, RoleAdmin); err != nil {
			return err
		}
		if !validRole(role) {
			return fmt.Errorf("rewards: unknown role %q", role)
		}
		if err := e.st.RevokeRole(role, account[:]); err != nil {
			return err
		}
		e.emit(events.RoleRevoked{Role: role, Account: account})
		return nil
	})
}

// RunMigrations applies pending state schema migrations. The maintenance role
// acts independently of the pause switch.
func (e *Engine) RunMigrations(caller [20]byte) error {
	if e == nil {
		return fmt.Errorf("rewards engine not initialised")
	}
	if err := e.requireRole(caller, RoleMaintenance); err != nil {
		return err
	}
	_, err := e.st.EnsureSchema()
	return err
}

// --- Admin setters ---

func (e *Engine) adminGate(caller [20]byte) error {
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return err
	}
	return nativecommon.Guard(e.st)
}

// SetStableAsset replaces the stable asset ledger. The new asset must match
// the converter's precision or the exactness rule would silently change.
func (e *Engine) SetStableAsset(caller [20]byte, asset Token) error {
	return e.run(func() error {
		if err := e.adminGate(caller); err != nil {
			return err
		}
		if asset == nil {
			return ErrZeroAddress
		}
		if asset.Decimals() != e.converter.StableDecimals() {
			return fmt.Errorf("rewards: stable asset has %d decimals, converter expects %d", asset.Decimals(), e.converter.StableDecimals())
		}
		cfg, err := e.config()
		if err != nil {
			return err
		}
		cfg.StableSymbol = asset.Symbol()
		if err := putConfig(e.st, cfg); err != nil {
			return err
		}
		e.stable = asset
		e.emit(events.StableAssetUpdated{Symbol: asset.Symbol()})
		return nil
	})
}

// SetRewardAsset replaces the reward point ledger.
func (e *Engine) SetRewardAsset(caller [20]byte, asset RewardToken) error {
	return e.run(func() error {
		if err := e.adminGate(caller); err != nil {
			return err
		}
		if asset == nil {
			return ErrZeroAddress
		}
		cfg, err := e.config()
		if err != nil {
			return err
		}
		cfg.RewardSymbol = asset.Symbol()
		if err := putConfig(e.st, cfg); err != nil {
			return err
		}
		e.reward = asset
		e.emit(events.RewardAssetUpdated{Symbol: asset.Symbol()})
		return nil
	})
}

// SetMinimalDeposit replaces the deposit floor, expressed in raw stable
// units.
func (e *Engine) SetMinimalDeposit(caller [20]byte, amount *big.Int) error {
	return e.run(func() error {
		if err := e.adminGate(caller); err != nil {
			return err
		}
		if amount == nil || amount.Sign() < 0 {
			return ErrInvalidAmount
		}
		cfg, err := e.config()
		if err != nil {
			return err
		}
		cfg.MinimalDeposit = new(big.Int).Set(amount)
		if err := putConfig(e.st, cfg); err != nil {
			return err
		}
		e.emit(events.MinimalDepositUpdated{Amount: cfg.MinimalDeposit})
		return nil
	})
}

// SetDistributeFloor replaces the minimum push-distribution amount.
func (e *Engine) SetDistributeFloor(caller [20]byte, amount *big.Int) error {
	return e.run(func() error {
		if err := e.adminGate(caller); err != nil {
			return err
		}
		if amount == nil || amount.Sign() < 0 {
			return ErrInvalidAmount
		}
		cfg, err := e.config()
		if err != nil {
			return err
		}
		cfg.DistributeFloor = new(big.Int).Set(amount)
		if err := putConfig(e.st, cfg); err != nil {
			return err
		}
		e.emit(events.DistributeFloorUpdated{Amount: cfg.DistributeFloor})
		return nil
	})
}

// SetTreasury replaces the account receiving distribution fees.
func (e *Engine) SetTreasury(caller, treasury [20]byte) error {
	return e.run(func() error {
		if err := e.adminGate(caller); err != nil {
			return err
		}
		if err := e.requireExternal(treasury); err != nil {
			return err
		}
		cfg, err := e.config()
		if err != nil {
			return err
		}
		cfg.Treasury = treasury
		if err := putConfig(e.st, cfg); err != nil {
			return err
		}
		e.emit(events.TreasuryUpdated{Treasury: treasury})
		return nil
	})
}

// SetAuthorizer replaces the trusted off-chain signer. Messages signed by the
// previous authorizer stop verifying immediately: the recovered signer no
// longer matches.
func (e *Engine) SetAuthorizer(caller, authorizer [20]byte) error {
	return e.run(func() error {
		if err := e.adminGate(caller); err != nil {
			return err
		}
		if authorizer == ([20]byte{}) {
			return ErrZeroAddress
		}
		cfg, err := e.config()
		if err != nil {
			return err
		}
		cfg.Authorizer = authorizer
		if err := putConfig(e.st, cfg); err != nil {
			return err
		}
		e.emit(events.AuthorizerUpdated{Authorizer: authorizer})
		return nil
	})
}
