/*

This file contains the types describing the strategy's balance buckets and the
collaborator-reported state they are derived from.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// AssetDecimals is the precision of the managed rebasing token (OHM-fork
// tokens use 9 decimals).
const AssetDecimals = 9

// Balances is a point-in-time view of the strategy's four balance buckets.
// These are always derived from collaborator state, never cached.
type Balances struct {
	Unstaked     sdkmath.Int `json:"unstaked"`      // liquid asset held directly by the strategy
	Staked       sdkmath.Int `json:"staked"`        // liquid value in the staking contract, grows via rebase
	Warmup       sdkmath.Int `json:"warmup"`        // value held in the staking contract's warmup
	RebaseBonded sdkmath.Int `json:"rebase_bonded"` // value still locked in the active bond
	Reserves     sdkmath.Int `json:"reserves"`      // value owed to exiting depositors
}

// Gross returns the sum of the four physical buckets, ignoring reserves.
func (b Balances) Gross() sdkmath.Int {
	return b.Unstaked.Add(b.Staked).Add(b.Warmup).Add(b.RebaseBonded)
}

// Total returns the depositor-owned balance: the bucket sum minus value
// already reserved for exiting depositors.
func (b Balances) Total() sdkmath.Int {
	return b.Gross().Sub(b.Reserves)
}

// WarmupInfo mirrors the staking collaborator's warmup record for an account.
type WarmupInfo struct {
	Deposit sdkmath.Int `json:"deposit"`
	Expiry  uint64      `json:"expiry"` // epoch number at which the deposit matures
}

// EpochInfo is the staking collaborator's current epoch.
type EpochInfo struct {
	Number uint64 `json:"number"`
}

// BondRecord is the bond venue's record of an open bond for a depositor.
type BondRecord struct {
	Payout        sdkmath.Int       `json:"payout"`     // asset still owed by the venue
	PricePaid     sdkmath.LegacyDec `json:"price_paid"` // USD price paid per asset unit
	VestingBlocks uint64            `json:"vesting"`    // blocks remaining until fully vested
	LastBlock     uint64            `json:"last_block"` // block of the last deposit/redeem interaction
}
