package chainsim

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/minimum-finance/strategy-engine/internal/types"
)

// BondConfig sizes a simulated bond depository.
type BondConfig struct {
	ID         string
	Account    string // module account receiving principal
	AssetDenom string // the reward token paid out
	Principal  string
	IsLP       bool
	PairA      string // underlying denoms when Principal is an LP token
	PairB      string

	MaxPayout     sdkmath.Int
	PriceUSD      sdkmath.LegacyDec // USD price of one asset unit bought here
	PayoutRate    sdkmath.LegacyDec // asset units granted per principal unit
	VestingBlocks uint64
}

type openBond struct {
	payout        sdkmath.Int
	vestingBlocks uint64
	lastBlock     uint64
	pricePaid     sdkmath.LegacyDec
}

// Bond simulates a bond depository with linear block vesting. Each depositor
// holds at most one open bond; further deposits fold into it.
type Bond struct {
	mu    sync.Mutex
	cfg   BondConfig
	chain *Chain
	bank  *Bank

	bonds map[string]*openBond
}

// NewBond wires a bond sim against the shared chain and bank.
func NewBond(cfg BondConfig, chain *Chain, bank *Bank) *Bond {
	return &Bond{
		cfg:   cfg,
		chain: chain,
		bank:  bank,
		bonds: make(map[string]*openBond),
	}
}

func (b *Bond) ID() string        { return b.cfg.ID }
func (b *Bond) Principal() string { return b.cfg.Principal }
func (b *Bond) IsLP() bool        { return b.cfg.IsLP }

func (b *Bond) PairTokens() (string, string) {
	if !b.cfg.IsLP {
		return b.cfg.Principal, b.cfg.Principal
	}
	return b.cfg.PairA, b.cfg.PairB
}

func (b *Bond) MaxPayout() sdkmath.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.MaxPayout
}

func (b *Bond) BondPriceInUSD() sdkmath.LegacyDec {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.PriceUSD
}

// SetPriceUSD moves the venue's quoted price, for discount scenarios.
func (b *Bond) SetPriceUSD(price sdkmath.LegacyDec) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg.PriceUSD = price
}

// Deposit takes principal and opens or grows depositor's bond. Returns the
// payout granted for this deposit.
func (b *Bond) Deposit(depositor string, principalAmount sdkmath.Int, maxPrice sdkmath.LegacyDec) (sdkmath.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !principalAmount.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("principal %s is not positive", principalAmount.String())
	}
	if b.cfg.PriceUSD.GT(maxPrice) {
		return sdkmath.Int{}, errors.Join(ErrPriceTooHigh,
			fmt.Errorf("price %s, caller max %s", b.cfg.PriceUSD.String(), maxPrice.String()))
	}

	payout := b.cfg.PayoutRate.MulInt(principalAmount).TruncateInt()
	if payout.GT(b.cfg.MaxPayout) {
		return sdkmath.Int{}, errors.Join(ErrPayoutTooLarge,
			fmt.Errorf("payout %s, venue max %s", payout.String(), b.cfg.MaxPayout.String()))
	}
	if err := b.bank.Transfer(b.cfg.Principal, depositor, b.cfg.Account, principalAmount); err != nil {
		return sdkmath.Int{}, err
	}

	bond := b.bonds[depositor]
	if bond == nil {
		bond = &openBond{payout: sdkmath.ZeroInt()}
		b.bonds[depositor] = bond
	}
	bond.payout = bond.payout.Add(payout)
	bond.vestingBlocks = b.cfg.VestingBlocks
	bond.lastBlock = b.chain.Height()
	bond.pricePaid = b.cfg.PriceUSD
	return payout, nil
}

// BondInfo reports depositor's open bond.
func (b *Bond) BondInfo(depositor string) types.BondRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	bond := b.bonds[depositor]
	if bond == nil {
		return types.BondRecord{Payout: sdkmath.ZeroInt(), PricePaid: sdkmath.LegacyZeroDec()}
	}
	return types.BondRecord{
		Payout:        bond.payout,
		PricePaid:     bond.pricePaid,
		VestingBlocks: bond.vestingBlocks,
		LastBlock:     bond.lastBlock,
	}
}

// PendingPayoutFor reports the vested, claimable portion of the bond.
func (b *Bond) PendingPayoutFor(depositor string) sdkmath.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pendingFor(b.bonds[depositor])
}

// Redeem pays out the vested portion and advances the bond's vesting clock.
// Redeeming with nothing vested is a no-op returning zero.
func (b *Bond) Redeem(depositor string) (sdkmath.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bond := b.bonds[depositor]
	pending := b.pendingFor(bond)
	if !pending.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}

	elapsed := b.chain.Height() - bond.lastBlock
	if elapsed >= bond.vestingBlocks {
		bond.vestingBlocks = 0
	} else {
		bond.vestingBlocks -= elapsed
	}
	bond.lastBlock = b.chain.Height()
	bond.payout = bond.payout.Sub(pending)
	if bond.payout.IsZero() {
		delete(b.bonds, depositor)
	}

	b.bank.Mint(b.cfg.AssetDenom, depositor, pending)
	return pending, nil
}

// pendingFor computes the linearly vested share of the remaining payout.
func (b *Bond) pendingFor(bond *openBond) sdkmath.Int {
	if bond == nil || !bond.payout.IsPositive() {
		return sdkmath.ZeroInt()
	}
	if bond.vestingBlocks == 0 {
		return bond.payout
	}
	elapsed := b.chain.Height() - bond.lastBlock
	if elapsed >= bond.vestingBlocks {
		return bond.payout
	}
	return bond.payout.MulRaw(int64(elapsed)).QuoRaw(int64(bond.vestingBlocks))
}
