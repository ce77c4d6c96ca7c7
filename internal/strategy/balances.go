/*

This file contains the position ledger: read-only balance queries derived from
collaborator state on every call. Nothing here is cached or decremented in
place, so the figures cannot drift from the venues' own books.

*/

package strategy

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/minimum-finance/strategy-engine/internal/types"
)

// UnstakedRebasing returns the liquid rebasing balance held directly.
func (s *Strategy) UnstakedRebasing() sdkmath.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unstakedRebasing()
}

// StakedRebasing returns the staked balance, which grows with each rebase.
func (s *Strategy) StakedRebasing() sdkmath.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stakedRebasing()
}

// WarmupBalance returns the amount waiting in the staking warmup.
func (s *Strategy) WarmupBalance() sdkmath.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warmupBalance()
}

// RebaseBonded returns the value still locked in the open bond.
func (s *Strategy) RebaseBonded() sdkmath.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebaseBonded()
}

// TotalRebasing returns unstaked + staked + warmup.
func (s *Strategy) TotalRebasing() sdkmath.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalRebasing()
}

// TotalBalance returns the depositor-owned balance: every bucket, including
// the open bond, minus value already reserved for exiting depositors.
func (s *Strategy) TotalBalance() sdkmath.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalBalance()
}

// Reserves returns the total value registered for pending exits.
func (s *Strategy) Reserves() sdkmath.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reserves
}

// Balances returns all buckets in one consistent snapshot.
func (s *Strategy) Balances() types.Balances {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.Balances{
		Unstaked:     s.unstakedRebasing(),
		Staked:       s.stakedRebasing(),
		Warmup:       s.warmupBalance(),
		RebaseBonded: s.rebaseBonded(),
		Reserves:     s.reserves,
	}
}

func (s *Strategy) unstakedRebasing() sdkmath.Int {
	return s.bank.BalanceOf(s.assetDenom, s.addr)
}

func (s *Strategy) stakedRebasing() sdkmath.Int {
	return s.bank.BalanceOf(s.stakedDenom, s.addr)
}

func (s *Strategy) warmupBalance() sdkmath.Int {
	return s.staking.WarmupInfo(s.addr).Deposit
}

// rebaseBonded derives the locked bond value as payout minus the portion
// already claimable. Redemptions shrink the venue-side payout, which shrinks
// this figure without any bookkeeping here.
func (s *Strategy) rebaseBonded() sdkmath.Int {
	if s.current == nil {
		return sdkmath.ZeroInt()
	}
	record := s.current.BondInfo(s.addr)
	pending := s.current.PendingPayoutFor(s.addr)
	locked := record.Payout.Sub(pending)
	if locked.IsNegative() {
		return sdkmath.ZeroInt()
	}
	return locked
}

func (s *Strategy) totalRebasing() sdkmath.Int {
	return s.unstakedRebasing().Add(s.stakedRebasing()).Add(s.warmupBalance())
}

func (s *Strategy) totalBalance() sdkmath.Int {
	return s.totalRebasing().Add(s.rebaseBonded()).Sub(s.reserves)
}

// claimMaturedWarmup sweeps a matured warmup deposit into the staked bucket.
// A no-op while the warmup is still maturing.
func (s *Strategy) claimMaturedWarmup() {
	info := s.staking.WarmupInfo(s.addr)
	if !info.Deposit.IsPositive() {
		return
	}
	if s.staking.Epoch().Number < info.Expiry {
		return
	}
	if err := s.staking.ClaimWarmup(s.addr); err != nil {
		s.log.Warn().Err(err).Msg("warmup claim failed")
	}
}

// ensureUnstaked makes at least amount available in the unstaked bucket,
// claiming matured warmup and unstaking the shortfall.
func (s *Strategy) ensureUnstaked(amount sdkmath.Int) error {
	if s.unstakedRebasing().GTE(amount) {
		return nil
	}

	s.claimMaturedWarmup()
	unstaked := s.unstakedRebasing()
	if unstaked.GTE(amount) {
		return nil
	}

	shortfall := amount.Sub(unstaked)
	staked := s.stakedRebasing()
	if staked.LT(shortfall) {
		return errors.Join(ErrInsufficientFunds,
			fmt.Errorf("need %s, have %s unstaked and %s staked",
				amount.String(), unstaked.String(), staked.String()))
	}
	if err := s.staking.Unstake(s.addr, shortfall, true); err != nil {
		return fmt.Errorf("unstaking %s: %w", shortfall.String(), err)
	}
	return nil
}
