package strategy_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minimum-finance/strategy-engine/internal/chainsim"
	"github.com/minimum-finance/strategy-engine/internal/strategy"
)

func TestBondAllowList(t *testing.T) {
	r := newRig(t)

	require.NoError(t, r.strat.AddBond(managerAcct, r.venue))
	assert.Equal(t, []string{"dai-bond"}, r.strat.ListBonds())

	err := r.strat.AddBond(managerAcct, r.venue)
	assert.ErrorIs(t, err, strategy.ErrDuplicateBond)

	err = r.strat.RemoveBond(managerAcct, "no-such-bond")
	assert.ErrorIs(t, err, strategy.ErrBondNotListed)

	require.NoError(t, r.strat.RemoveBond(managerAcct, "dai-bond"))
	assert.Empty(t, r.strat.ListBonds())
}

func TestEnterBondValidation(t *testing.T) {
	r := newRig(t)
	r.deposit(t, 1_000_000_000_000)

	route := []string{assetDenom, daiDenom}

	// unapproved venue
	err := r.strat.EnterBond(managerAcct, sdkmath.NewInt(100), "dai-bond", route)
	assert.ErrorIs(t, err, strategy.ErrUnapprovedBond)

	require.NoError(t, r.strat.AddBond(managerAcct, r.venue))

	err = r.strat.EnterBond(managerAcct, sdkmath.ZeroInt(), "dai-bond", route)
	assert.ErrorIs(t, err, strategy.ErrAmountNotPositive)

	err = r.strat.EnterBond(aliceAcct, sdkmath.NewInt(100), "dai-bond", route)
	assert.ErrorIs(t, err, strategy.ErrNotManager)

	err = r.strat.EnterBond(managerAcct, sdkmath.NewInt(100), "dai-bond", []string{daiDenom})
	assert.ErrorIs(t, err, strategy.ErrBadRouteStart)

	err = r.strat.EnterBond(managerAcct, sdkmath.NewInt(100), "dai-bond", []string{assetDenom, stableDenom})
	assert.ErrorIs(t, err, strategy.ErrBadRouteEnd)

	// venue price above the asset's fair value
	r.venue.SetPriceUSD(sdkmath.LegacyNewDecWithPrec(105, 1))
	err = r.strat.EnterBond(managerAcct, sdkmath.NewInt(100_000_000_000), "dai-bond", route)
	assert.ErrorIs(t, err, strategy.ErrBondNotPositive)
}

func TestEnterBondHappyPath(t *testing.T) {
	r := newRig(t)
	r.deposit(t, 1_000_000_000_000)
	require.NoError(t, r.strat.AddBond(managerAcct, r.venue))

	bondAmount := sdkmath.NewInt(500_000_000_000)
	require.NoError(t, r.strat.EnterBond(managerAcct, bondAmount, "dai-bond", []string{assetDenom, daiDenom}))

	assert.True(t, r.strat.IsBonding())
	assert.Equal(t, "dai-bond", r.strat.CurrentBond())

	// 3% service fee lands in the recipient's warmup
	fee := bondAmount.MulRaw(300).QuoRaw(10000)
	assert.Equal(t, fee, r.staking.WarmupInfo(feeAcct).Deposit)

	// the rest swapped at 10 dai/asset and bonded at 9.5 USD
	principal := bondAmount.Sub(fee).MulRaw(10)
	expectedPayout := sdkmath.LegacyNewDecFromInt(principal).
		Quo(sdkmath.LegacyNewDecWithPrec(95, 1)).TruncateInt()
	assert.Equal(t, expectedPayout, r.strat.RebaseBonded())

	// unbonded balance stays staked
	assert.Equal(t, sdkmath.NewInt(500_000_000_000), r.strat.StakedRebasing())
	assert.Equal(t, sdkmath.NewInt(500_000_000_000).Add(expectedPayout), r.strat.TotalBalance())

	// no second bond while one is open
	err := r.strat.EnterBond(managerAcct, bondAmount, "dai-bond", []string{assetDenom, daiDenom})
	assert.ErrorIs(t, err, strategy.ErrAlreadyBonding)

	// the venue backing the open bond cannot be dropped
	err = r.strat.RemoveBond(managerAcct, "dai-bond")
	assert.ErrorIs(t, err, strategy.ErrBondInUse)
}

func TestEnterBondClampsToAvailable(t *testing.T) {
	r := newRig(t)
	r.deposit(t, 100_000_000_000)
	require.NoError(t, r.strat.AddBond(managerAcct, r.venue))

	// ask for far more than the strategy holds
	require.NoError(t, r.strat.EnterBond(managerAcct, sdkmath.NewInt(900_000_000_000_000),
		"dai-bond", []string{assetDenom, daiDenom}))

	// everything liquid went in, nothing is left staked or unstaked
	assert.True(t, r.strat.StakedRebasing().IsZero())
	assert.True(t, r.strat.UnstakedRebasing().IsZero())
	assert.True(t, r.strat.RebaseBonded().IsPositive())
}

func TestEnterBondAll(t *testing.T) {
	r := newRig(t)
	r.deposit(t, 100_000_000_000)
	require.NoError(t, r.strat.AddBond(managerAcct, r.venue))

	require.NoError(t, r.strat.EnterBondAll(managerAcct, "dai-bond", []string{assetDenom, daiDenom}))

	assert.True(t, r.strat.StakedRebasing().IsZero())
	assert.True(t, r.strat.UnstakedRebasing().IsZero())
	assert.True(t, r.strat.IsBonding())
}

func TestRedeemAndStakeLifecycle(t *testing.T) {
	r := newRig(t)
	r.deposit(t, 1_000_000_000_000)
	require.NoError(t, r.strat.AddBond(managerAcct, r.venue))
	require.NoError(t, r.strat.EnterBond(managerAcct, sdkmath.NewInt(500_000_000_000),
		"dai-bond", []string{assetDenom, daiDenom}))

	totalPayout := r.strat.RebaseBonded()

	// nothing vested yet, redeem is a harmless no-op that keeps the bond open
	require.NoError(t, r.strat.RedeemAndStake(keeperAcct))
	assert.True(t, r.strat.IsBonding())

	// halfway through vesting
	r.chain.Advance(vestingBlocks / 2)
	expectedPending := totalPayout.QuoRaw(2)
	assert.Equal(t, totalPayout.Sub(expectedPending), r.strat.RebaseBonded())

	stakedBefore := r.strat.StakedRebasing()
	warmupBefore := r.strat.WarmupBalance()
	require.NoError(t, r.strat.RedeemAndStake(keeperAcct))
	assert.True(t, r.strat.IsBonding())

	redeemFee := expectedPending.MulRaw(300).QuoRaw(10000)
	net := expectedPending.Sub(redeemFee)
	assert.Equal(t, warmupBefore.Add(net), r.strat.WarmupBalance())
	assert.Equal(t, stakedBefore, r.strat.StakedRebasing())
	assert.Equal(t, totalPayout.Sub(expectedPending), r.strat.RebaseBonded())

	// vest out the rest and close the bond
	r.chain.Advance(vestingBlocks)
	require.NoError(t, r.strat.RedeemAndStake(keeperAcct))
	assert.False(t, r.strat.IsBonding())
	assert.Equal(t, "", r.strat.CurrentBond())
	assert.True(t, r.strat.RebaseBonded().IsZero())

	// redeeming with no open bond fails
	err := r.strat.RedeemAndStake(keeperAcct)
	assert.ErrorIs(t, err, strategy.ErrNotBonding)
}

func TestRedeemPermissionTiers(t *testing.T) {
	r := newRig(t)
	r.deposit(t, 1_000_000_000_000)
	require.NoError(t, r.strat.AddBond(managerAcct, r.venue))
	require.NoError(t, r.strat.EnterBond(managerAcct, sdkmath.NewInt(500_000_000_000),
		"dai-bond", []string{assetDenom, daiDenom}))

	err := r.strat.RedeemAndStake(aliceAcct)
	assert.ErrorIs(t, err, strategy.ErrNotKeeper)

	require.NoError(t, r.strat.RedeemAndStake(managerAcct))
	require.NoError(t, r.strat.RedeemAndStake(keeperAcct))

	require.NoError(t, r.strat.SetPublicRedeem(managerAcct, true))
	require.NoError(t, r.strat.RedeemAndStake(aliceAcct))
}

func TestEnterBondLP(t *testing.T) {
	r := newRig(t)
	r.deposit(t, 1_000_000_000_000)
	require.NoError(t, r.strat.AddBond(managerAcct, r.lpVenue))

	// single-asset entry against an LP venue is rejected up front
	err := r.strat.EnterBond(managerAcct, sdkmath.NewInt(100_000_000_000),
		"min-dai-lp-bond", []string{assetDenom, lpDenom})
	assert.ErrorIs(t, err, strategy.ErrBadRouteEnd)

	bondAmount := sdkmath.NewInt(100_000_000_000)
	require.NoError(t, r.strat.EnterBondLP(managerAcct, bondAmount, "min-dai-lp-bond",
		[]string{assetDenom}, []string{assetDenom, daiDenom}))

	assert.True(t, r.strat.IsBonding())
	assert.Equal(t, "min-dai-lp-bond", r.strat.CurrentBond())

	// fee off the top, half swapped to dai at 10/1, pooled at the same ratio
	fee := bondAmount.MulRaw(300).QuoRaw(10000)
	input := bondAmount.Sub(fee)
	half := input.QuoRaw(2)
	expectedLP := half.Add(input.Sub(half).MulRaw(10))
	expectedPayout := sdkmath.LegacyNewDecWithPrec(19, 2).MulInt(expectedLP).TruncateInt()
	assert.Equal(t, expectedPayout, r.strat.RebaseBonded())

	// unpooled scrap is restaked into warmup, at most half a percent of input
	scrap := r.strat.WarmupBalance()
	assert.True(t, scrap.MulRaw(200).LTE(bondAmount))

	// LP venue requires the LP entry point
	r2 := newRig(t)
	r2.deposit(t, 1_000_000_000_000)
	require.NoError(t, r2.strat.AddBond(managerAcct, r2.venue))
	err = r2.strat.EnterBondLP(managerAcct, bondAmount, "dai-bond",
		[]string{assetDenom}, []string{assetDenom, daiDenom})
	assert.ErrorIs(t, err, strategy.ErrBondNotListed)
}

func TestEnterBondSlippageBound(t *testing.T) {
	r := newRig(t)
	r.deposit(t, 1_000_000_000_000)
	require.NoError(t, r.strat.AddBond(managerAcct, r.venue))

	// fills coming in 1% under quote violate the 0.5% tolerance
	r.router.SetSkewBps(-100)
	balanceBefore := r.strat.TotalBalance()
	err := r.strat.EnterBond(managerAcct, sdkmath.NewInt(500_000_000_000),
		"dai-bond", []string{assetDenom, daiDenom})
	assert.ErrorIs(t, err, strategy.ErrSlippageExceeded)
	assert.False(t, r.strat.IsBonding())

	// the aborted entry moves nothing: no fee left the strategy
	assert.Equal(t, balanceBefore, r.strat.TotalBalance())
	assert.True(t, r.staking.WarmupInfo(feeAcct).Deposit.IsZero())

	// a fill just inside the tolerance goes through
	r.router.SetSkewBps(-40)
	require.NoError(t, r.strat.EnterBond(managerAcct, sdkmath.NewInt(500_000_000_000),
		"dai-bond", []string{assetDenom, daiDenom}))
	assert.True(t, r.strat.IsBonding())
}

func TestEnterBondLPUnwindsOnPoolFailure(t *testing.T) {
	r := newRig(t)
	r.deposit(t, 1_000_000_000_000)

	// an LP venue over a pair with no pool behind it
	venue := chainsim.NewBond(chainsim.BondConfig{
		ID:            "min-usdb-lp-bond",
		Account:       "bond-usdb-lp",
		AssetDenom:    assetDenom,
		Principal:     "min-usdb-lp",
		IsLP:          true,
		PairA:         assetDenom,
		PairB:         stableDenom,
		MaxPayout:     sdkmath.NewInt(1_000_000_000_000_000),
		PriceUSD:      sdkmath.LegacyNewDecWithPrec(95, 1),
		PayoutRate:    sdkmath.LegacyNewDecWithPrec(19, 2),
		VestingBlocks: vestingBlocks,
	}, r.chain, r.bank)
	require.NoError(t, r.strat.AddBond(managerAcct, venue))

	balanceBefore := r.strat.TotalBalance()
	err := r.strat.EnterBondLP(managerAcct, sdkmath.NewInt(100_000_000_000),
		"min-usdb-lp-bond", []string{assetDenom}, []string{assetDenom, stableDenom})
	assert.ErrorIs(t, err, chainsim.ErrUnknownRoute)
	assert.False(t, r.strat.IsBonding())

	// the half already swapped to the stable was swapped back, no fee left
	assert.Equal(t, balanceBefore, r.strat.TotalBalance())
	assert.True(t, r.bank.BalanceOf(stableDenom, strategyAcct).IsZero())
	assert.True(t, r.staking.WarmupInfo(feeAcct).Deposit.IsZero())
}
