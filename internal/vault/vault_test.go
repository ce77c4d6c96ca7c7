package vault_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minimum-finance/strategy-engine/internal/chainsim"
	"github.com/minimum-finance/strategy-engine/internal/fees"
	"github.com/minimum-finance/strategy-engine/internal/strategy"
	"github.com/minimum-finance/strategy-engine/internal/vault"
)

const (
	assetDenom  = "min"
	stakedDenom = "smin"
	stableDenom = "usdb"
	daiDenom    = "dai"

	strategyAcct = "strategy"
	vaultAcct    = "vault"
	managerAcct  = "manager"
	feeAcct      = "fee-recipient"
	aliceAcct    = "alice"
	bobAcct      = "bob"

	epochBlocks   = 10
	vestingBlocks = 100
)

type rig struct {
	chain   *chainsim.Chain
	bank    *chainsim.Bank
	staking *chainsim.Staking
	venue   *chainsim.Bond
	strat   *strategy.Strategy
	vault   *vault.Vault
}

func newRig(t *testing.T, rebaseRateBps uint64) *rig {
	t.Helper()

	chain := chainsim.NewChain()
	bank := chainsim.NewBank()
	staking := chainsim.NewStaking(chainsim.StakingConfig{
		Account:       "staking-module",
		AssetDenom:    assetDenom,
		StakedDenom:   stakedDenom,
		EpochBlocks:   epochBlocks,
		WarmupPeriod:  1,
		RebaseRateBps: rebaseRateBps,
	}, chain, bank)

	router := chainsim.NewRouter("swap-router", bank)
	router.SetRate(assetDenom, stableDenom, sdkmath.LegacyNewDec(10).MulInt64(1_000_000_000))
	router.SetRate(assetDenom, daiDenom, sdkmath.LegacyNewDec(10))

	bondPrice := sdkmath.LegacyNewDecWithPrec(95, 1)
	venue := chainsim.NewBond(chainsim.BondConfig{
		ID:            "dai-bond",
		Account:       "bond-dai",
		AssetDenom:    assetDenom,
		Principal:     daiDenom,
		MaxPayout:     sdkmath.NewInt(1_000_000_000_000_000),
		PriceUSD:      bondPrice,
		PayoutRate:    sdkmath.LegacyOneDec().Quo(bondPrice),
		VestingBlocks: vestingBlocks,
	}, chain, bank)

	schedule, err := fees.NewSchedule(300, 100)
	require.NoError(t, err)

	strat, err := strategy.New(strategy.Config{
		Address:      strategyAcct,
		Vault:        vaultAcct,
		Manager:      managerAcct,
		Keeper:       managerAcct,
		FeeRecipient: feeAcct,
		AssetDenom:   assetDenom,
		StakedDenom:  stakedDenom,
		PriceRoute:   []string{assetDenom, stableDenom},
		Fees:         schedule,
		Bank:         bank,
		Staking:      staking,
		Router:       router,
		Chain:        chain,
	})
	require.NoError(t, err)

	v, err := vault.New(vault.Config{
		Address:    vaultAcct,
		Manager:    managerAcct,
		AssetDenom: assetDenom,
		MinDeposit: sdkmath.NewInt(1_000_000_000),
		Bank:       bank,
		Strategy:   strat,
	})
	require.NoError(t, err)

	return &rig{chain: chain, bank: bank, staking: staking, venue: venue, strat: strat, vault: v}
}

func (r *rig) fund(account string, amount int64) {
	r.bank.Mint(assetDenom, account, sdkmath.NewInt(amount))
}

func TestDepositMintsShares(t *testing.T) {
	r := newRig(t, 0)
	r.fund(aliceAcct, 1_000_000_000_000)

	minted, err := r.vault.Deposit(aliceAcct, sdkmath.NewInt(1_000_000_000_000))
	require.NoError(t, err)

	// first deposit mints one to one
	assert.Equal(t, sdkmath.NewInt(1_000_000_000_000), minted)
	assert.Equal(t, minted, r.vault.SharesOf(aliceAcct))
	assert.Equal(t, minted, r.vault.TotalShares())
	assert.Equal(t, sdkmath.NewInt(1_000_000_000_000), r.vault.Balance())
	assert.Equal(t, sdkmath.LegacyOneDec(), r.vault.SharePrice())

	// the asset left alice and went to work
	assert.True(t, r.bank.BalanceOf(assetDenom, aliceAcct).IsZero())
}

func TestDepositValidation(t *testing.T) {
	r := newRig(t, 0)
	r.fund(aliceAcct, 1_000_000_000_000)

	_, err := r.vault.Deposit(aliceAcct, sdkmath.ZeroInt())
	assert.ErrorIs(t, err, vault.ErrAmountNotPositive)

	_, err = r.vault.Deposit(aliceAcct, sdkmath.NewInt(999_999_999))
	assert.ErrorIs(t, err, vault.ErrBelowMinimum)

	// raising the floor is manager-gated
	err = r.vault.SetMinDeposit(aliceAcct, sdkmath.NewInt(5))
	assert.ErrorIs(t, err, vault.ErrNotManager)
	require.NoError(t, r.vault.SetMinDeposit(managerAcct, sdkmath.NewInt(2_000_000_000)))

	_, err = r.vault.Deposit(aliceAcct, sdkmath.NewInt(1_500_000_000))
	assert.ErrorIs(t, err, vault.ErrBelowMinimum)
}

func TestDepositCap(t *testing.T) {
	r := newRig(t, 0)
	r.fund(aliceAcct, 3_000_000_000_000)

	err := r.vault.SetCap(aliceAcct, sdkmath.NewInt(2_000_000_000_000))
	assert.ErrorIs(t, err, vault.ErrNotManager)
	require.NoError(t, r.vault.SetCap(managerAcct, sdkmath.NewInt(2_000_000_000_000)))

	_, err = r.vault.Deposit(aliceAcct, sdkmath.NewInt(1_500_000_000_000))
	require.NoError(t, err)

	// a deposit that would push the managed balance over the cap is refused
	_, err = r.vault.Deposit(aliceAcct, sdkmath.NewInt(1_000_000_000_000))
	assert.ErrorIs(t, err, vault.ErrAboveCap)

	_, err = r.vault.Deposit(aliceAcct, sdkmath.NewInt(500_000_000_000))
	require.NoError(t, err)

	// zero lifts the cap again
	require.NoError(t, r.vault.SetCap(managerAcct, sdkmath.ZeroInt()))
	_, err = r.vault.Deposit(aliceAcct, sdkmath.NewInt(1_000_000_000_000))
	require.NoError(t, err)
}

func TestDepositAll(t *testing.T) {
	r := newRig(t, 0)
	r.fund(aliceAcct, 1_500_000_000_000)

	minted, err := r.vault.DepositAll(aliceAcct)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(1_500_000_000_000), minted)
	assert.True(t, r.bank.BalanceOf(assetDenom, aliceAcct).IsZero())

	_, err = r.vault.DepositAll(aliceAcct)
	assert.ErrorIs(t, err, vault.ErrAmountNotPositive)
}

func TestDepositWhilePausedIsRefunded(t *testing.T) {
	r := newRig(t, 0)
	r.fund(aliceAcct, 2_000_000_000)
	require.NoError(t, r.strat.Pause(managerAcct))

	_, err := r.vault.Deposit(aliceAcct, sdkmath.NewInt(2_000_000_000))
	assert.ErrorIs(t, err, strategy.ErrPaused)

	// the refused deposit went back to alice, no shares minted
	assert.Equal(t, sdkmath.NewInt(2_000_000_000), r.bank.BalanceOf(assetDenom, aliceAcct))
	assert.True(t, r.vault.SharesOf(aliceAcct).IsZero())
	assert.True(t, r.vault.TotalShares().IsZero())

	require.NoError(t, r.strat.Unpause(managerAcct))
	_, err = r.vault.Deposit(aliceAcct, sdkmath.NewInt(2_000_000_000))
	require.NoError(t, err)
}

func TestSecondDepositorPaysFairPrice(t *testing.T) {
	r := newRig(t, 5)
	r.fund(aliceAcct, 1_000_000_000_000)
	r.fund(bobAcct, 1_000_000_000_000)

	_, err := r.vault.Deposit(aliceAcct, sdkmath.NewInt(1_000_000_000_000))
	require.NoError(t, err)

	// warmup matures, rebases accrue, share price rises above one
	r.chain.Advance(epochBlocks)
	require.NoError(t, r.strat.Stake(managerAcct))
	r.chain.Advance(epochBlocks * 3)
	r.staking.Rebase()

	balance := r.vault.Balance()
	require.True(t, balance.GT(sdkmath.NewInt(1_000_000_000_000)))

	minted, err := r.vault.Deposit(bobAcct, sdkmath.NewInt(1_000_000_000_000))
	require.NoError(t, err)

	// bob gets fewer shares than alice for the same amount
	assert.True(t, minted.LT(r.vault.SharesOf(aliceAcct)))
	expected := sdkmath.NewInt(1_000_000_000_000).Mul(r.vault.SharesOf(aliceAcct)).Quo(balance)
	assert.Equal(t, expected, minted)
}

func TestReserveWhileIdle(t *testing.T) {
	r := newRig(t, 0)
	r.fund(aliceAcct, 1_000_000_000_000)

	_, err := r.vault.Deposit(aliceAcct, sdkmath.NewInt(1_000_000_000_000))
	require.NoError(t, err)
	r.chain.Advance(epochBlocks)

	paid, err := r.vault.ReserveAll(aliceAcct)
	require.NoError(t, err)

	// 1% withdrawal fee, paid synchronously
	assert.Equal(t, sdkmath.NewInt(990_000_000_000), paid)
	assert.Equal(t, paid, r.bank.BalanceOf(assetDenom, aliceAcct))
	assert.True(t, r.vault.SharesOf(aliceAcct).IsZero())
	assert.True(t, r.vault.TotalShares().IsZero())

	_, err = r.vault.ReserveAll(aliceAcct)
	assert.ErrorIs(t, err, vault.ErrInsufficientShares)

	_, err = r.vault.Reserve(aliceAcct, sdkmath.NewInt(1))
	assert.ErrorIs(t, err, vault.ErrInsufficientShares)
}

func TestReserveAndClaimThroughBondCycle(t *testing.T) {
	r := newRig(t, 0)
	r.fund(aliceAcct, 1_000_000_000_000)

	_, err := r.vault.Deposit(aliceAcct, sdkmath.NewInt(1_000_000_000_000))
	require.NoError(t, err)
	r.chain.Advance(epochBlocks)

	require.NoError(t, r.strat.AddBond(managerAcct, r.venue))
	require.NoError(t, r.strat.EnterBond(managerAcct, sdkmath.NewInt(500_000_000_000),
		"dai-bond", []string{assetDenom, daiDenom}))

	// exit a third of the position while the bond is open
	shares := r.vault.SharesOf(aliceAcct)
	third := shares.QuoRaw(3)
	balanceBefore := r.vault.Balance()
	expectedGross := balanceBefore.Mul(third).Quo(shares)
	expectedNet := expectedGross.Sub(expectedGross.QuoRaw(100))

	paid, err := r.vault.Reserve(aliceAcct, third)
	require.NoError(t, err)
	assert.True(t, paid.IsZero())
	assert.Equal(t, shares.Sub(third), r.vault.SharesOf(aliceAcct))
	assert.Equal(t, expectedNet, r.strat.Reserves())

	// nothing to claim until the bond vests out
	_, err = r.vault.Claim(aliceAcct)
	assert.ErrorIs(t, err, strategy.ErrNotFullyVested)

	r.chain.Advance(vestingBlocks + 1)
	require.NoError(t, r.strat.RedeemAndStake(managerAcct))
	r.chain.Advance(epochBlocks)

	claimed, err := r.vault.Claim(aliceAcct)
	require.NoError(t, err)
	assert.Equal(t, expectedNet, claimed)
	assert.Equal(t, expectedNet, r.bank.BalanceOf(assetDenom, aliceAcct))
}
