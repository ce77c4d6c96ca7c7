package strategy_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minimum-finance/strategy-engine/internal/strategy"
)

func TestReserveWhileIdlePaysImmediately(t *testing.T) {
	r := newRig(t)
	r.deposit(t, 1_000_000_000_000)

	paid, err := r.strat.Reserve(vaultAcct, aliceAcct, sdkmath.NewInt(1_000_000_000_000))
	require.NoError(t, err)

	// 1% withdrawal fee, paid synchronously, nothing queued
	assert.Equal(t, sdkmath.NewInt(990_000_000_000), paid)
	assert.Equal(t, sdkmath.NewInt(990_000_000_000), r.bank.BalanceOf(assetDenom, aliceAcct))
	assert.True(t, r.strat.Reserves().IsZero())
	assert.Empty(t, r.strat.PendingClaimants())

	// the fee is retained and socialized
	assert.Equal(t, sdkmath.NewInt(10_000_000_000), r.strat.TotalBalance())
}

func TestReserveValidation(t *testing.T) {
	r := newRig(t)
	r.deposit(t, 1_000_000_000_000)

	_, err := r.strat.Reserve(vaultAcct, aliceAcct, sdkmath.ZeroInt())
	assert.ErrorIs(t, err, strategy.ErrAmountNotPositive)

	_, err = r.strat.Reserve(vaultAcct, "", sdkmath.NewInt(100))
	assert.ErrorIs(t, err, strategy.ErrEmptyAddress)

	// asking for more than the strategy holds fails before any transfer
	_, err = r.strat.Reserve(vaultAcct, aliceAcct, sdkmath.NewInt(5_000_000_000_000))
	assert.ErrorIs(t, err, strategy.ErrInsufficientFunds)
	assert.True(t, r.bank.BalanceOf(assetDenom, aliceAcct).IsZero())
}

// enterStandardBond puts 500 units into the dai bond so exits queue up.
func enterStandardBond(t *testing.T, r *rig) {
	t.Helper()
	require.NoError(t, r.strat.AddBond(managerAcct, r.venue))
	require.NoError(t, r.strat.EnterBond(managerAcct, sdkmath.NewInt(500_000_000_000),
		"dai-bond", []string{assetDenom, daiDenom}))
}

func TestReserveDuringBondAccumulatesOnePeriod(t *testing.T) {
	r := newRig(t)
	r.deposit(t, 1_000_000_000_000)
	enterStandardBond(t, r)

	// first third
	paid, err := r.strat.Reserve(vaultAcct, aliceAcct, sdkmath.NewInt(100_000_000_000))
	require.NoError(t, err)
	assert.True(t, paid.IsZero())

	// remaining two thirds before the bond vests
	paid, err = r.strat.Reserve(vaultAcct, aliceAcct, sdkmath.NewInt(200_000_000_000))
	require.NoError(t, err)
	assert.True(t, paid.IsZero())

	// both registrations net of the 1% fee, in the same period
	wantReserved := sdkmath.NewInt(99_000_000_000).Add(sdkmath.NewInt(198_000_000_000))
	assert.Equal(t, wantReserved, r.strat.Reserves())

	periods := r.strat.Periods()
	require.Len(t, periods, 1)
	assert.Equal(t, uint64(1), periods[0].Index)
	assert.Equal(t, wantReserved, periods[0].TotalReserved)
	assert.False(t, periods[0].FullyVested)

	view := r.strat.ClaimOf(aliceAcct)
	assert.Equal(t, wantReserved, view.Amount)
	assert.Equal(t, uint64(1), view.Period)
	assert.False(t, view.FullyVested)

	assert.Equal(t, []string{aliceAcct}, r.strat.PendingClaimants())
}

func TestClaimLifecycle(t *testing.T) {
	r := newRig(t)
	r.deposit(t, 1_000_000_000_000)
	enterStandardBond(t, r)

	_, err := r.strat.Reserve(vaultAcct, aliceAcct, sdkmath.NewInt(300_000_000_000))
	require.NoError(t, err)
	reserved := sdkmath.NewInt(297_000_000_000)

	// claim before the bond has vested
	_, err = r.strat.Claim(vaultAcct, aliceAcct)
	assert.ErrorIs(t, err, strategy.ErrNotFullyVested)

	// vest out and close the bond
	r.chain.Advance(vestingBlocks + 1)
	require.NoError(t, r.strat.RedeemAndStake(keeperAcct))
	require.False(t, r.strat.IsBonding())

	periods := r.strat.Periods()
	require.Len(t, periods, 1)
	assert.True(t, periods[0].FullyVested)

	// the final redemption still sits in warmup
	_, err = r.strat.Claim(vaultAcct, aliceAcct)
	assert.ErrorIs(t, err, strategy.ErrNotWarmedUp)

	r.chain.Advance(epochBlocks)
	paid, err := r.strat.Claim(vaultAcct, aliceAcct)
	require.NoError(t, err)
	assert.Equal(t, reserved, paid)
	assert.Equal(t, reserved, r.bank.BalanceOf(assetDenom, aliceAcct))
	assert.True(t, r.strat.Reserves().IsZero())

	// a second claim finds nothing
	_, err = r.strat.Claim(vaultAcct, aliceAcct)
	assert.ErrorIs(t, err, strategy.ErrNotFullyVested)
}

func TestConservationAcrossCycle(t *testing.T) {
	r := newRig(t)
	r.deposit(t, 1_000_000_000_000)
	enterStandardBond(t, r)

	_, err := r.strat.Reserve(vaultAcct, aliceAcct, sdkmath.NewInt(300_000_000_000))
	require.NoError(t, err)

	// total balance plus reserves always equals the bucket sum
	check := func() {
		b := r.strat.Balances()
		assert.Equal(t, b.Gross(), r.strat.TotalBalance().Add(r.strat.Reserves()))
	}
	check()

	r.chain.Advance(vestingBlocks / 2)
	require.NoError(t, r.strat.RedeemAndStake(keeperAcct))
	check()

	r.chain.Advance(vestingBlocks)
	require.NoError(t, r.strat.RedeemAndStake(keeperAcct))
	check()

	r.chain.Advance(epochBlocks)
	_, err = r.strat.Claim(vaultAcct, aliceAcct)
	require.NoError(t, err)
	check()
}

func TestVestedPeriodReopensOnNewBond(t *testing.T) {
	r := newRig(t)
	r.deposit(t, 1_000_000_000_000)
	enterStandardBond(t, r)

	// alice queues an exit, the bond vests out, she never claims
	_, err := r.strat.Reserve(vaultAcct, aliceAcct, sdkmath.NewInt(100_000_000_000))
	require.NoError(t, err)
	r.chain.Advance(vestingBlocks + 1)
	require.NoError(t, r.strat.RedeemAndStake(keeperAcct))
	r.chain.Advance(epochBlocks)

	require.True(t, r.strat.Periods()[0].FullyVested)

	// a new bond opens and bob queues an exit into the same period
	require.NoError(t, r.strat.EnterBond(managerAcct, sdkmath.NewInt(200_000_000_000),
		"dai-bond", []string{assetDenom, daiDenom}))
	_, err = r.strat.Reserve(vaultAcct, bobAcct, sdkmath.NewInt(50_000_000_000))
	require.NoError(t, err)

	periods := r.strat.Periods()
	require.Len(t, periods, 1)
	assert.False(t, periods[0].FullyVested)
	assert.Equal(t, uint64(1), r.strat.ClaimOf(bobAcct).Period)

	// alice's unclaimed exit now waits on the new bond too
	_, err = r.strat.Claim(vaultAcct, aliceAcct)
	assert.ErrorIs(t, err, strategy.ErrNotFullyVested)

	// once the new bond vests out, both can claim
	r.chain.Advance(vestingBlocks + 1)
	require.NoError(t, r.strat.RedeemAndStake(keeperAcct))
	r.chain.Advance(epochBlocks)

	alicePaid, err := r.strat.Claim(vaultAcct, aliceAcct)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(99_000_000_000), alicePaid)

	bobPaid, err := r.strat.Claim(vaultAcct, bobAcct)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(49_500_000_000), bobPaid)

	// with the period drained, the next queued exit opens period 2
	require.NoError(t, r.strat.EnterBond(managerAcct, sdkmath.NewInt(100_000_000_000),
		"dai-bond", []string{assetDenom, daiDenom}))
	_, err = r.strat.Reserve(vaultAcct, aliceAcct, sdkmath.NewInt(10_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), r.strat.ClaimOf(aliceAcct).Period)
	require.Len(t, r.strat.Periods(), 2)
}
