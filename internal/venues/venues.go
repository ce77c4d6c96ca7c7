/*

This file contains the collaborator interfaces the strategy depends on. The
strategy never talks to a chain directly; it is wired against these and the
chainsim package provides in-process implementations for local runs and tests.

*/

package venues

import (
	sdkmath "cosmossdk.io/math"

	"github.com/minimum-finance/strategy-engine/internal/types"
)

// Bank moves token balances between accounts. Denominations distinguish the
// rebasing asset from its staked form and from bond principal tokens.
type Bank interface {
	BalanceOf(denom, account string) sdkmath.Int
	Transfer(denom, from, to string, amount sdkmath.Int) error
}

// StakeManager is the staking collaborator. Stake routes through a warmup
// holding keyed by recipient; Unstake burns staked tokens for the underlying
// one to one.
type StakeManager interface {
	// Stake pulls amount of the unstaked asset from `from` and opens (or
	// grows) a warmup deposit credited to `recipient`.
	Stake(from, recipient string, amount sdkmath.Int) error

	// ClaimWarmup moves a matured warmup deposit into account's staked
	// balance. Claiming before expiry is a no-op.
	ClaimWarmup(account string) error

	// Unstake burns amount of account's staked balance and returns the
	// unstaked asset. triggerRebase forces a rebase check first.
	Unstake(account string, amount sdkmath.Int, triggerRebase bool) error

	// WarmupInfo reports account's pending warmup deposit.
	WarmupInfo(account string) types.WarmupInfo

	// Epoch reports the staking contract's current epoch.
	Epoch() types.EpochInfo

	// WarmupPeriod reports how many epochs a warmup deposit takes to mature.
	WarmupPeriod() uint64
}

// BondVenue is one bond depository. A venue accepts a single principal (or an
// LP pair) and pays out the rebasing asset linearly over a vesting term.
type BondVenue interface {
	// ID is the venue's stable identifier, used for allow-listing.
	ID() string

	// Principal is the denom the venue accepts as payment.
	Principal() string

	// IsLP reports whether the principal is a liquidity-pool token.
	IsLP() bool

	// PairTokens returns the two underlying denoms for an LP venue. For
	// single-asset venues it returns the principal twice.
	PairTokens() (string, string)

	// MaxPayout is the largest payout the venue will grant a single bond.
	MaxPayout() sdkmath.Int

	// BondPriceInUSD is the current USD price of one asset unit bought
	// through this venue.
	BondPriceInUSD() sdkmath.LegacyDec

	// Deposit pays principal in and opens (or grows) depositor's bond.
	// Returns the payout granted for this deposit.
	Deposit(depositor string, principalAmount sdkmath.Int, maxPrice sdkmath.LegacyDec) (sdkmath.Int, error)

	// BondInfo reports depositor's open bond.
	BondInfo(depositor string) types.BondRecord

	// PendingPayoutFor reports how much of depositor's payout has vested
	// and is claimable right now.
	PendingPayoutFor(depositor string) sdkmath.Int

	// Redeem pays out the vested portion of depositor's bond and returns
	// the amount paid.
	Redeem(depositor string) (sdkmath.Int, error)
}

// SwapRouter quotes and executes multi-hop swaps and composes LP positions.
type SwapRouter interface {
	// GetAmountsOut quotes amountIn swapped along route, returning the
	// output at every hop. The last element is the final output.
	GetAmountsOut(amountIn sdkmath.Int, route []string) ([]sdkmath.Int, error)

	// SwapExactTokensForTokens swaps amountIn of route[0] for at least
	// minOut of the final route denom, crediting account. Returns the
	// actual output.
	SwapExactTokensForTokens(account string, amountIn, minOut sdkmath.Int, route []string) (sdkmath.Int, error)

	// AddLiquidity deposits the two amounts into the pair's pool and mints
	// LP tokens to account. Returns amounts actually consumed and the LP
	// tokens minted.
	AddLiquidity(account, denomA, denomB string, amountA, amountB sdkmath.Int) (sdkmath.Int, sdkmath.Int, sdkmath.Int, error)
}

// ChainInfo exposes the ambient chain clock.
type ChainInfo interface {
	Height() uint64
}
