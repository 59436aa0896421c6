package rewards

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"rewardvault/core/events"
	"rewardvault/core/state"
	"rewardvault/crypto"
	nativecommon "rewardvault/native/common"
	"rewardvault/native/token"
	"rewardvault/storage"
)

const testChainID uint64 = 187001

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func (c *captureEmitter) last() events.Event {
	if len(c.events) == 0 {
		return nil
	}
	return c.events[len(c.events)-1]
}

type engineEnv struct {
	engine      *Engine
	manager     *state.Manager
	stable      *token.Ledger
	reward      *token.Ledger
	emitter     *captureEmitter
	authKey     *crypto.PrivateKey
	vault       [20]byte
	funder      [20]byte
	admin       [20]byte
	pauser      [20]byte
	distributor [20]byte
	treasury    [20]byte
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func newEngineEnv(t *testing.T) *engineEnv {
	t.Helper()

	manager := state.NewManager(storage.NewMemDB())
	if _, err := manager.EnsureSchema(); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	env := &engineEnv{
		manager:     manager,
		vault:       addr(0xA0),
		funder:      addr(0xF0),
		admin:       addr(0x0A),
		pauser:      addr(0x0B),
		distributor: addr(0x0C),
		treasury:    addr(0x0D),
		emitter:     &captureEmitter{},
	}

	stable, err := token.NewLedger(manager, "USDC", 6)
	if err != nil {
		t.Fatalf("stable ledger: %v", err)
	}
	stable.SetAuthority(env.funder)
	env.stable = stable

	reward, err := token.NewLedger(manager, "RWD", 0)
	if err != nil {
		t.Fatalf("reward ledger: %v", err)
	}
	reward.SetAuthority(env.vault)
	env.reward = reward

	converter, err := NewConverter(6, 1000)
	if err != nil {
		t.Fatalf("converter: %v", err)
	}

	engine, err := NewEngine(manager, converter, stable, reward, env.vault, testChainID)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	engine.SetEmitter(env.emitter)
	env.engine = engine

	env.authKey, err = crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("authorizer key: %v", err)
	}

	if err := engine.Initialize(&Config{
		StableSymbol:    "USDC",
		RewardSymbol:    "RWD",
		MinimalDeposit:  big.NewInt(1_000_000),
		DistributeFloor: big.NewInt(100),
		Treasury:        env.treasury,
		Authorizer:      env.authKey.PubKey().Address().Raw(),
	}); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	for _, grant := range []struct {
		role string
		addr [20]byte
	}{
		{RoleAdmin, env.admin},
		{RolePauser, env.pauser},
		{RoleDistributor, env.distributor},
	} {
		if err := manager.GrantRole(grant.role, grant.addr[:]); err != nil {
			t.Fatalf("grant %s: %v", grant.role, err)
		}
	}
	manager.Commit()
	env.emitter.events = nil
	return env
}

func (env *engineEnv) fund(t *testing.T, account [20]byte, amount int64) {
	t.Helper()
	if err := env.stable.Mint(env.funder, big.NewInt(amount)); err != nil {
		t.Fatalf("mint stable: %v", err)
	}
	if err := env.stable.Transfer(env.funder, account, big.NewInt(amount)); err != nil {
		t.Fatalf("fund account: %v", err)
	}
	env.manager.Commit()
}

func (env *engineEnv) mustDeposit(t *testing.T, account [20]byte, amount int64) {
	t.Helper()
	env.fund(t, account, amount)
	if err := env.engine.Deposit(account, big.NewInt(amount)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func (env *engineEnv) balance(t *testing.T, ledger *token.Ledger, account [20]byte) *big.Int {
	t.Helper()
	balance, err := ledger.BalanceOf(account)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return balance
}

func (env *engineEnv) withdrawMessage(amount int64, requester, receiver [20]byte, salt []byte) *WithdrawAuthorization {
	return &WithdrawAuthorization{
		Authorizer: env.authKey.PubKey().Address().Raw(),
		Requester:  requester,
		Receiver:   receiver,
		LedgerID:   env.vault,
		Amount:     big.NewInt(amount),
		Asset:      "USDC",
		ChainID:    testChainID,
		Salt:       salt,
	}
}

func (env *engineEnv) claimMessage(amount int64, requester [20]byte, salt []byte, deadline int64) *ClaimAuthorization {
	return &ClaimAuthorization{
		Authorizer: env.authKey.PubKey().Address().Raw(),
		Requester:  requester,
		LedgerID:   env.vault,
		Amount:     big.NewInt(amount),
		ChainID:    testChainID,
		Salt:       salt,
		Deadline:   deadline,
	}
}

func (env *engineEnv) sign(t *testing.T, digest []byte) []byte {
	t.Helper()
	sig, err := env.authKey.Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return sig
}

func TestDepositMintsPoints(t *testing.T) {
	env := newEngineEnv(t)
	user := addr(0x11)
	env.fund(t, user, 1_000_000_000)

	if err := env.engine.Deposit(user, big.NewInt(1_000_000_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	totals, err := env.engine.Totals(user)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.TotalDeposited.Cmp(big.NewInt(1_000_000_000)) != 0 {
		t.Fatalf("expected deposited 1000000000, got %s", totals.TotalDeposited)
	}
	if got := env.balance(t, env.stable, user); got.Sign() != 0 {
		t.Fatalf("expected user stable drained, got %s", got)
	}
	if got := env.balance(t, env.stable, env.vault); got.Cmp(big.NewInt(1_000_000_000)) != 0 {
		t.Fatalf("expected vault custody 1000000000, got %s", got)
	}
	if got := env.balance(t, env.reward, env.vault); got.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("expected 1000000 points minted, got %s", got)
	}

	evt, ok := env.emitter.last().(events.RewardsDeposited)
	if !ok {
		t.Fatalf("expected RewardsDeposited event, got %T", env.emitter.last())
	}
	if evt.USDWhole.Cmp(big.NewInt(1000)) != 0 || evt.RewardPoints.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("unexpected event payload: usd=%s points=%s", evt.USDWhole, evt.RewardPoints)
	}
}

func TestDepositValidation(t *testing.T) {
	env := newEngineEnv(t)
	user := addr(0x11)
	env.fund(t, user, 10_000_000)

	if err := env.engine.Deposit(user, big.NewInt(500_000)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("below minimum: expected ErrInvalidAmount, got %v", err)
	}
	if err := env.engine.Deposit(user, big.NewInt(1_500_000)); !errors.Is(err, ErrRoundAmountRequired) {
		t.Fatalf("fractional: expected ErrRoundAmountRequired, got %v", err)
	}
	if err := env.engine.Deposit([20]byte{}, big.NewInt(1_000_000)); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("zero caller: expected ErrZeroAddress, got %v", err)
	}
}

func TestDepositRevertsOnTransferFailure(t *testing.T) {
	env := newEngineEnv(t)
	user := addr(0x11)

	// No funding: the transfer into custody fails after totals were written.
	err := env.engine.Deposit(user, big.NewInt(1_000_000))
	if !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	totals, err := env.engine.Totals(user)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.TotalDeposited.Sign() != 0 {
		t.Fatalf("totals not reverted: %s", totals.TotalDeposited)
	}
	if len(env.emitter.events) != 0 {
		t.Fatalf("failed operation emitted %d events", len(env.emitter.events))
	}
}

func TestCashbackReleasesStable(t *testing.T) {
	env := newEngineEnv(t)
	user := addr(0x11)
	env.mustDeposit(t, user, 1_000_000_000)

	msg := env.withdrawMessage(250_000_000, user, user, []byte{0x01})
	sig := env.sign(t, msg.Hash())
	if err := env.engine.Cashback(user, msg, sig); err != nil {
		t.Fatalf("cashback: %v", err)
	}

	totals, err := env.engine.Totals(user)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.TotalWithdrawn.Cmp(big.NewInt(250_000_000)) != 0 {
		t.Fatalf("expected withdrawn 250000000, got %s", totals.TotalWithdrawn)
	}
	if got := env.balance(t, env.stable, user); got.Cmp(big.NewInt(250_000_000)) != 0 {
		t.Fatalf("expected user stable 250000000, got %s", got)
	}
	// 250000 points burned out of the original million.
	if got := env.balance(t, env.reward, env.vault); got.Cmp(big.NewInt(750_000)) != 0 {
		t.Fatalf("expected vault points 750000, got %s", got)
	}

	if err := env.engine.Cashback(user, msg, sig); !errors.Is(err, ErrSignatureReuse) {
		t.Fatalf("replay: expected ErrSignatureReuse, got %v", err)
	}
}

func TestCashbackWithdrawalBound(t *testing.T) {
	env := newEngineEnv(t)
	user := addr(0x11)
	env.mustDeposit(t, user, 1_000_000_000)

	// Withdrawing the exact deposited amount is allowed.
	msg := env.withdrawMessage(1_000_000_000, user, user, []byte{0x01})
	if err := env.engine.Cashback(user, msg, env.sign(t, msg.Hash())); err != nil {
		t.Fatalf("full cashback: %v", err)
	}

	// One more whole USD exceeds the remaining deposit.
	over := env.withdrawMessage(1_000_000, user, user, []byte{0x02})
	err := env.engine.Cashback(user, over, env.sign(t, over.Hash()))
	if !errors.Is(err, ErrWithdrawExceedsDeposit) {
		t.Fatalf("expected ErrWithdrawExceedsDeposit, got %v", err)
	}
}

func TestCashbackRejectsMismatchedBindings(t *testing.T) {
	env := newEngineEnv(t)
	user := addr(0x11)
	env.mustDeposit(t, user, 1_000_000_000)

	cases := []struct {
		name   string
		mutate func(*WithdrawAuthorization)
	}{
		{"wrong chain", func(m *WithdrawAuthorization) { m.ChainID++ }},
		{"wrong ledger", func(m *WithdrawAuthorization) { m.LedgerID[0] ^= 1 }},
		{"wrong requester", func(m *WithdrawAuthorization) { m.Requester = addr(0x22) }},
		{"wrong asset", func(m *WithdrawAuthorization) { m.Asset = "DAI" }},
		{"wrong authorizer", func(m *WithdrawAuthorization) { m.Authorizer = addr(0x33) }},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := env.withdrawMessage(1_000_000, user, user, []byte{byte(0x10 + i)})
			tc.mutate(msg)
			err := env.engine.Cashback(user, msg, env.sign(t, msg.Hash()))
			if !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("expected ErrInvalidSignature, got %v", err)
			}
		})
	}

	t.Run("wrong signer", func(t *testing.T) {
		rogue, err := crypto.GeneratePrivateKey()
		if err != nil {
			t.Fatalf("rogue key: %v", err)
		}
		msg := env.withdrawMessage(1_000_000, user, user, []byte{0x7F})
		sig, err := rogue.Sign(msg.Hash())
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if err := env.engine.Cashback(user, msg, sig); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("tampered amount", func(t *testing.T) {
		msg := env.withdrawMessage(1_000_000, user, user, []byte{0x7E})
		sig := env.sign(t, msg.Hash())
		msg.Amount = big.NewInt(500_000_000)
		if err := env.engine.Cashback(user, msg, sig); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	})
}

func TestSwapPaysStableForPoints(t *testing.T) {
	env := newEngineEnv(t)
	depositor := addr(0x11)
	user := addr(0x12)
	env.mustDeposit(t, depositor, 2_000_000_000)

	// Move points out of custody so the user has something to swap.
	if err := env.engine.DistributeRewards(env.distributor, user, big.NewInt(100_000), big.NewInt(0)); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	if err := env.engine.Swap(user, big.NewInt(2000)); err != nil {
		t.Fatalf("swap: %v", err)
	}

	if got := env.balance(t, env.stable, user); got.Cmp(big.NewInt(2_000_000)) != 0 {
		t.Fatalf("expected 2000000 raw stable, got %s", got)
	}
	if got := env.balance(t, env.reward, user); got.Cmp(big.NewInt(98_000)) != 0 {
		t.Fatalf("expected 98000 points left, got %s", got)
	}
	// Swapped points are burned, not returned to custody.
	if got := env.balance(t, env.reward, env.vault); got.Cmp(big.NewInt(1_900_000)) != 0 {
		t.Fatalf("expected vault points 1900000, got %s", got)
	}

	evt, ok := env.emitter.last().(events.RewardsSwapped)
	if !ok {
		t.Fatalf("expected RewardsSwapped event, got %T", env.emitter.last())
	}
	if evt.StableUnits.Cmp(big.NewInt(2_000_000)) != 0 {
		t.Fatalf("unexpected stable units %s", evt.StableUnits)
	}
}

func TestSwapRequiresPoints(t *testing.T) {
	env := newEngineEnv(t)
	env.mustDeposit(t, addr(0x11), 1_000_000_000)

	err := env.engine.Swap(addr(0x12), big.NewInt(10))
	if !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if err := env.engine.Swap(addr(0x12), big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestClaimReleasesPoints(t *testing.T) {
	env := newEngineEnv(t)
	user := addr(0x11)
	env.mustDeposit(t, user, 1_000_000_000)

	now := time.Unix(1_750_000_000, 0)
	env.engine.SetClock(func() time.Time { return now })

	msg := env.claimMessage(5000, user, []byte{0x01}, now.Unix()+3600)
	sig := env.sign(t, msg.Hash())
	if err := env.engine.Claim(user, msg, sig); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got := env.balance(t, env.reward, user); got.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("expected 5000 points, got %s", got)
	}

	if err := env.engine.Claim(user, msg, sig); !errors.Is(err, ErrSignatureReuse) {
		t.Fatalf("replay: expected ErrSignatureReuse, got %v", err)
	}
}

func TestClaimExpiryDoesNotConsumeSignature(t *testing.T) {
	env := newEngineEnv(t)
	user := addr(0x11)
	env.mustDeposit(t, user, 1_000_000_000)

	deadline := int64(1_750_000_000)
	msg := env.claimMessage(5000, user, []byte{0x01}, deadline)
	sig := env.sign(t, msg.Hash())

	env.engine.SetClock(func() time.Time { return time.Unix(deadline+1, 0) })
	if err := env.engine.Claim(user, msg, sig); !errors.Is(err, ErrSignatureExpired) {
		t.Fatalf("expected ErrSignatureExpired, got %v", err)
	}

	// The expired attempt must not have burned the fingerprint.
	env.engine.SetClock(func() time.Time { return time.Unix(deadline-1, 0) })
	if err := env.engine.Claim(user, msg, sig); err != nil {
		t.Fatalf("claim after clock correction: %v", err)
	}
}

func TestDistributeRewards(t *testing.T) {
	env := newEngineEnv(t)
	receiver := addr(0x21)
	env.mustDeposit(t, addr(0x11), 1_000_000_000)

	if err := env.engine.DistributeRewards(env.distributor, receiver, big.NewInt(5000), big.NewInt(2)); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if got := env.balance(t, env.reward, receiver); got.Cmp(big.NewInt(4998)) != 0 {
		t.Fatalf("expected receiver 4998 points, got %s", got)
	}
	if got := env.balance(t, env.reward, env.treasury); got.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("expected treasury fee 2, got %s", got)
	}
	totals, err := env.engine.Totals(receiver)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.TotalEarned.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("expected earned 5000, got %s", totals.TotalEarned)
	}
}

func TestDistributeRewardsValidation(t *testing.T) {
	env := newEngineEnv(t)
	receiver := addr(0x21)
	env.mustDeposit(t, addr(0x11), 1_000_000_000)

	if err := env.engine.DistributeRewards(addr(0x66), receiver, big.NewInt(5000), nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("missing role: expected ErrUnauthorized, got %v", err)
	}
	if err := env.engine.DistributeRewards(env.distributor, receiver, big.NewInt(50), nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("below floor: expected ErrInvalidAmount, got %v", err)
	}
	if err := env.engine.DistributeRewards(env.distributor, receiver, big.NewInt(5000), big.NewInt(5001)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("fee above amount: expected ErrInvalidAmount, got %v", err)
	}
	if err := env.engine.DistributeRewards(env.distributor, [20]byte{}, big.NewInt(5000), nil); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("zero receiver: expected ErrZeroAddress, got %v", err)
	}
}

func TestPauseLifecycle(t *testing.T) {
	env := newEngineEnv(t)
	user := addr(0x11)
	env.fund(t, user, 1_000_000_000)

	if err := env.engine.Pause(addr(0x66)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-pauser pause: expected ErrUnauthorized, got %v", err)
	}
	if err := env.engine.Pause(env.pauser); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !env.engine.Paused() {
		t.Fatal("engine should report paused")
	}
	if err := env.engine.Pause(env.pauser); !errors.Is(err, nativecommon.ErrPaused) {
		t.Fatalf("double pause: expected ErrPaused, got %v", err)
	}
	if err := env.engine.Deposit(user, big.NewInt(1_000_000)); !errors.Is(err, nativecommon.ErrPaused) {
		t.Fatalf("deposit while paused: expected ErrPaused, got %v", err)
	}
	if err := env.engine.DistributeRewards(env.distributor, user, big.NewInt(5000), nil); !errors.Is(err, nativecommon.ErrPaused) {
		t.Fatalf("distribute while paused: expected ErrPaused, got %v", err)
	}

	if err := env.engine.Unpause(env.pauser); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := env.engine.Unpause(env.pauser); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("double unpause: expected ErrNotPaused, got %v", err)
	}
	if err := env.engine.Deposit(user, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("deposit after unpause: %v", err)
	}
}

func TestRoleAdministration(t *testing.T) {
	env := newEngineEnv(t)
	operator := addr(0x31)
	env.mustDeposit(t, addr(0x11), 1_000_000_000)

	if err := env.engine.GrantRole(addr(0x66), RoleDistributor, operator); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-admin grant: expected ErrUnauthorized, got %v", err)
	}
	if err := env.engine.GrantRole(env.admin, "ROLE_BOGUS", operator); err == nil {
		t.Fatal("unknown role should be rejected")
	}

	if err := env.engine.GrantRole(env.admin, RoleDistributor, operator); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := env.engine.DistributeRewards(operator, addr(0x21), big.NewInt(5000), nil); err != nil {
		t.Fatalf("distribute with granted role: %v", err)
	}

	if err := env.engine.RevokeRole(env.admin, RoleDistributor, operator); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := env.engine.DistributeRewards(operator, addr(0x21), big.NewInt(5000), nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("distribute after revoke: expected ErrUnauthorized, got %v", err)
	}
}

func TestRoleAdministrationWorksWhilePaused(t *testing.T) {
	env := newEngineEnv(t)
	if err := env.engine.Pause(env.pauser); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := env.engine.GrantRole(env.admin, RolePauser, addr(0x31)); err != nil {
		t.Fatalf("grant while paused: %v", err)
	}
	if err := env.engine.Unpause(addr(0x31)); err != nil {
		t.Fatalf("unpause with handed-over role: %v", err)
	}
}

func TestAdminSetters(t *testing.T) {
	env := newEngineEnv(t)
	user := addr(0x11)
	env.fund(t, user, 10_000_000)

	if err := env.engine.SetMinimalDeposit(addr(0x66), big.NewInt(5)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-admin setter: expected ErrUnauthorized, got %v", err)
	}

	if err := env.engine.SetMinimalDeposit(env.admin, big.NewInt(5_000_000)); err != nil {
		t.Fatalf("set minimal deposit: %v", err)
	}
	if err := env.engine.Deposit(user, big.NewInt(1_000_000)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("deposit below raised floor: expected ErrInvalidAmount, got %v", err)
	}
	if err := env.engine.Deposit(user, big.NewInt(5_000_000)); err != nil {
		t.Fatalf("deposit at raised floor: %v", err)
	}

	if err := env.engine.SetDistributeFloor(env.admin, big.NewInt(10_000)); err != nil {
		t.Fatalf("set distribute floor: %v", err)
	}
	if err := env.engine.DistributeRewards(env.distributor, user, big.NewInt(5000), nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("distribute below raised floor: expected ErrInvalidAmount, got %v", err)
	}

	if err := env.engine.SetTreasury(env.admin, [20]byte{}); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("zero treasury: expected ErrZeroAddress, got %v", err)
	}
	newTreasury := addr(0x44)
	if err := env.engine.SetTreasury(env.admin, newTreasury); err != nil {
		t.Fatalf("set treasury: %v", err)
	}
	cfg, err := env.engine.ConfigSnapshot()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Treasury != newTreasury {
		t.Fatalf("treasury not updated: %x", cfg.Treasury)
	}
}

func TestSettersBlockedWhilePaused(t *testing.T) {
	env := newEngineEnv(t)
	if err := env.engine.Pause(env.pauser); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := env.engine.SetMinimalDeposit(env.admin, big.NewInt(5)); !errors.Is(err, nativecommon.ErrPaused) {
		t.Fatalf("setter while paused: expected ErrPaused, got %v", err)
	}
}

func TestSetAuthorizerRotatesTrust(t *testing.T) {
	env := newEngineEnv(t)
	user := addr(0x11)
	env.mustDeposit(t, user, 1_000_000_000)

	// Sign under the old authorizer before rotating.
	staleMsg := env.withdrawMessage(1_000_000, user, user, []byte{0x01})
	staleSig := env.sign(t, staleMsg.Hash())

	newKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("new key: %v", err)
	}
	if err := env.engine.SetAuthorizer(env.admin, newKey.PubKey().Address().Raw()); err != nil {
		t.Fatalf("set authorizer: %v", err)
	}

	if err := env.engine.Cashback(user, staleMsg, staleSig); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("stale authorization: expected ErrInvalidSignature, got %v", err)
	}

	fresh := &WithdrawAuthorization{
		Authorizer: newKey.PubKey().Address().Raw(),
		Requester:  user,
		Receiver:   user,
		LedgerID:   env.vault,
		Amount:     big.NewInt(1_000_000),
		Asset:      "USDC",
		ChainID:    testChainID,
		Salt:       []byte{0x02},
	}
	sig, err := newKey.Sign(fresh.Hash())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := env.engine.Cashback(user, fresh, sig); err != nil {
		t.Fatalf("cashback under rotated authorizer: %v", err)
	}
}

func TestSetStableAssetRequiresMatchingPrecision(t *testing.T) {
	env := newEngineEnv(t)

	mismatched, err := token.NewLedger(env.manager, "DAI", 18)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if err := env.engine.SetStableAsset(env.admin, mismatched); err == nil {
		t.Fatal("expected precision mismatch to be rejected")
	}

	matching, err := token.NewLedger(env.manager, "USDT", 6)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if err := env.engine.SetStableAsset(env.admin, matching); err != nil {
		t.Fatalf("set stable asset: %v", err)
	}
	cfg, err := env.engine.ConfigSnapshot()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.StableSymbol != "USDT" {
		t.Fatalf("expected stable symbol USDT, got %s", cfg.StableSymbol)
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	env := newEngineEnv(t)

	err := env.engine.Initialize(&Config{
		StableSymbol:    "USDC",
		RewardSymbol:    "RWD",
		MinimalDeposit:  big.NewInt(42),
		DistributeFloor: big.NewInt(42),
		Treasury:        addr(0x77),
		Authorizer:      addr(0x78),
	})
	if err != nil {
		t.Fatalf("second initialize: %v", err)
	}
	cfg, err := env.engine.ConfigSnapshot()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Treasury != env.treasury {
		t.Fatal("restart clobbered the persisted configuration")
	}
	if cfg.MinimalDeposit.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("minimal deposit changed: %s", cfg.MinimalDeposit)
	}
}

func TestVaultAddressCannotActAsCounterparty(t *testing.T) {
	env := newEngineEnv(t)
	user := addr(0x11)
	env.mustDeposit(t, user, 1_000_000_000)
	custody := env.balance(t, env.stable, env.vault)

	if err := env.engine.Deposit(env.vault, big.NewInt(1_000_000)); !errors.Is(err, ErrReservedAddress) {
		t.Fatalf("deposit as vault: expected ErrReservedAddress, got %v", err)
	}
	if err := env.engine.Swap(env.vault, big.NewInt(2000)); !errors.Is(err, ErrReservedAddress) {
		t.Fatalf("swap as vault: expected ErrReservedAddress, got %v", err)
	}
	// The rejected swap must not have touched custody.
	if got := env.balance(t, env.stable, env.vault); got.Cmp(custody) != 0 {
		t.Fatalf("custody changed without a counterparty: have %s, want %s", got, custody)
	}

	msg := env.withdrawMessage(1_000_000, user, env.vault, []byte{0x01})
	if err := env.engine.Cashback(user, msg, env.sign(t, msg.Hash())); !errors.Is(err, ErrReservedAddress) {
		t.Fatalf("cashback to vault: expected ErrReservedAddress, got %v", err)
	}

	claim := env.claimMessage(5000, env.vault, []byte{0x02}, time.Now().Unix()+3600)
	if err := env.engine.Claim(env.vault, claim, env.sign(t, claim.Hash())); !errors.Is(err, ErrReservedAddress) {
		t.Fatalf("claim as vault: expected ErrReservedAddress, got %v", err)
	}

	if err := env.engine.DistributeRewards(env.distributor, env.vault, big.NewInt(5000), nil); !errors.Is(err, ErrReservedAddress) {
		t.Fatalf("distribute to vault: expected ErrReservedAddress, got %v", err)
	}
	if err := env.engine.SetTreasury(env.admin, env.vault); !errors.Is(err, ErrReservedAddress) {
		t.Fatalf("vault as treasury: expected ErrReservedAddress, got %v", err)
	}
}

func TestRunMigrationsRequiresMaintenanceRole(t *testing.T) {
	env := newEngineEnv(t)

	if err := env.engine.RunMigrations(addr(0x66)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	maintainer := addr(0x55)
	if err := env.manager.GrantRole(RoleMaintenance, maintainer[:]); err != nil {
		t.Fatalf("grant: %v", err)
	}
	env.manager.Commit()

	if err := env.engine.RunMigrations(maintainer); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	// Maintenance is deliberately pause-independent.
	if err := env.engine.Pause(env.pauser); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := env.engine.RunMigrations(maintainer); err != nil {
		t.Fatalf("run migrations while paused: %v", err)
	}
}
