package events

import (
	"encoding/hex"
	"math/big"
	"strings"

	"rewardvault/core/types"
)

const (
	// TypeRewardsDeposited is emitted when a stable deposit mints reward
	// points into vault custody.
	TypeRewardsDeposited = "rewards.deposited"
	// TypeRewardsCashedBack is emitted when an authorized withdrawal pays
	// stable value back to an account.
	TypeRewardsCashedBack = "rewards.cashedback"
	// TypeRewardsSwapped is emitted when reward points are swapped back into
	// stable units.
	TypeRewardsSwapped = "rewards.swapped"
	// TypeRewardsClaimed is emitted when a signed claim releases reward
	// points from vault custody.
	TypeRewardsClaimed = "rewards.claimed"
	// TypeRewardsDistributed is emitted on a distributor push payout.
	TypeRewardsDistributed = "rewards.distributed"

	TypeStableAssetUpdated     = "rewards.config.stable_asset"
	TypeRewardAssetUpdated     = "rewards.config.reward_asset"
	TypeMinimalDepositUpdated  = "rewards.config.minimal_deposit"
	TypeDistributeFloorUpdated = "rewards.config.distribute_floor"
	TypeTreasuryUpdated        = "rewards.config.treasury"
	TypeAuthorizerUpdated      = "rewards.config.authorizer"

	TypeVaultPaused  = "rewards.paused"
	TypeVaultResumed = "rewards.resumed"
	TypeRoleGranted  = "rewards.role.granted"
	TypeRoleRevoked  = "rewards.role.revoked"
)

type RewardsDeposited struct {
	Account      [20]byte
	USDWhole     *big.Int
	RewardPoints *big.Int
}

func (RewardsDeposited) EventType() string { return TypeRewardsDeposited }

func (e RewardsDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardsDeposited,
		Attributes: map[string]string{
			"account":      addrString(e.Account),
			"usdWhole":     bigString(e.USDWhole),
			"rewardPoints": bigString(e.RewardPoints),
		},
	}
}

type RewardsCashedBack struct {
	Receiver     [20]byte
	USDWhole     *big.Int
	RewardPoints *big.Int
}

func (RewardsCashedBack) EventType() string { return TypeRewardsCashedBack }

func (e RewardsCashedBack) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardsCashedBack,
		Attributes: map[string]string{
			"account":      addrString(e.Receiver),
			"usdWhole":     bigString(e.USDWhole),
			"rewardPoints": bigString(e.RewardPoints),
		},
	}
}

type RewardsSwapped struct {
	Account      [20]byte
	StableUnits  *big.Int
	RewardPoints *big.Int
}

func (RewardsSwapped) EventType() string { return TypeRewardsSwapped }

func (e RewardsSwapped) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardsSwapped,
		Attributes: map[string]string{
			"account":      addrString(e.Account),
			"stableUnits":  bigString(e.StableUnits),
			"rewardPoints": bigString(e.RewardPoints),
		},
	}
}

type RewardsClaimed struct {
	Caller       [20]byte
	Receiver     [20]byte
	RewardPoints *big.Int
	Salt         []byte
}

func (RewardsClaimed) EventType() string { return TypeRewardsClaimed }

func (e RewardsClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardsClaimed,
		Attributes: map[string]string{
			"caller":       addrString(e.Caller),
			"receiver":     addrString(e.Receiver),
			"rewardPoints": bigString(e.RewardPoints),
			"salt":         strings.ToLower(hex.EncodeToString(e.Salt)),
		},
	}
}

type RewardsDistributed struct {
	Account     [20]byte
	GrossAmount *big.Int
	Fee         *big.Int
}

func (RewardsDistributed) EventType() string { return TypeRewardsDistributed }

func (e RewardsDistributed) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardsDistributed,
		Attributes: map[string]string{
			"account":     addrString(e.Account),
			"grossAmount": bigString(e.GrossAmount),
			"fee":         bigString(e.Fee),
		},
	}
}

type StableAssetUpdated struct {
	Symbol string
}

func (StableAssetUpdated) EventType() string { return TypeStableAssetUpdated }

func (e StableAssetUpdated) Event() *types.Event {
	return &types.Event{
		Type:       TypeStableAssetUpdated,
		Attributes: map[string]string{"symbol": normalizeAsset(e.Symbol)},
	}
}

type RewardAssetUpdated struct {
	Symbol string
}

func (RewardAssetUpdated) EventType() string { return TypeRewardAssetUpdated }

func (e RewardAssetUpdated) Event() *types.Event {
	return &types.Event{
		Type:       TypeRewardAssetUpdated,
		Attributes: map[string]string{"symbol": normalizeAsset(e.Symbol)},
	}
}

type MinimalDepositUpdated struct {
	Amount *big.Int
}

func (MinimalDepositUpdated) EventType() string { return TypeMinimalDepositUpdated }

func (e MinimalDepositUpdated) Event() *types.Event {
	return &types.Event{
		Type:       TypeMinimalDepositUpdated,
		Attributes: map[string]string{"amount": bigString(e.Amount)},
	}
}

type DistributeFloorUpdated struct {
	Amount *big.Int
}

func (DistributeFloorUpdated) EventType() string { return TypeDistributeFloorUpdated }

func (e DistributeFloorUpdated) Event() *types.Event {
	return &types.Event{
		Type:       TypeDistributeFloorUpdated,
		Attributes: map[string]string{"amount": bigString(e.Amount)},
	}
}

type TreasuryUpdated struct {
	Treasury [20]byte
}

func (TreasuryUpdated) EventType() string { return TypeTreasuryUpdated }

func (e TreasuryUpdated) Event() *types.Event {
	return &types.Event{
		Type:       TypeTreasuryUpdated,
		Attributes: map[string]string{"treasury": addrString(e.Treasury)},
	}
}

type AuthorizerUpdated struct {
	Authorizer [20]byte
}

func (AuthorizerUpdated) EventType() string { return TypeAuthorizerUpdated }

func (e AuthorizerUpdated) Event() *types.Event {
	return &types.Event{
		Type:       TypeAuthorizerUpdated,
		Attributes: map[string]string{"authorizer": addrString(e.Authorizer)},
	}
}

type VaultPaused struct {
	Caller [20]byte
}

func (VaultPaused) EventType() string { return TypeVaultPaused }

func (e VaultPaused) Event() *types.Event {
	return &types.Event{
		Type:       TypeVaultPaused,
		Attributes: map[string]string{"caller": addrString(e.Caller)},
	}
}

type VaultResumed struct {
	Caller [20]byte
}

func (VaultResumed) EventType() string { return TypeVaultResumed }

func (e VaultResumed) Event() *types.Event {
	return &types.Event{
		Type:       TypeVaultResumed,
		Attributes: map[string]string{"caller": addrString(e.Caller)},
	}
}

type RoleGranted struct {
	Role    string
	Account [20]byte
}

func (RoleGranted) EventType() string { return TypeRoleGranted }

func (e RoleGranted) Event() *types.Event {
	return &types.Event{
		Type: TypeRoleGranted,
		Attributes: map[string]string{
			"role":    strings.TrimSpace(e.Role),
			"account": addrString(e.Account),
		},
	}
}

type RoleRevoked struct {
	Role    string
	Account [20]byte
}

func (RoleRevoked) EventType() string { return TypeRoleRevoked }

func (e RoleRevoked) Event() *types.Event {
	return &types.Event{
		Type: TypeRoleRevoked,
		Attributes: map[string]string{
			"role":    strings.TrimSpace(e.Role),
			"account": addrString(e.Account),
		},
	}
}
