/*

This file contains the reserve/claim queue. While the strategy is idle an
exit pays out synchronously; while a bond is open the exit is registered in
the current reserve period and paid out once the bond has fully vested and
the final redemption has cleared the staking warmup.

Periods are monotonically indexed and append-only. A new period opens only
when the previous one has fully vested and been fully claimed; reservations
made while an older vested period still has unclaimed value join that period,
which goes back to waiting on the new bond.

*/

package strategy

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/minimum-finance/strategy-engine/internal/types"
)

// Reserve registers an exit for depositor. amount is the gross withdrawal
// value computed by the vault; the withdrawal fee is deducted here and
// retained in the strategy's buckets. Returns the amount paid out now, which
// is zero when the exit was queued behind an open bond. Vault only.
func (s *Strategy) Reserve(caller, depositor string, amount sdkmath.Int) (sdkmath.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireVault(caller); err != nil {
		return sdkmath.Int{}, err
	}
	if !amount.IsPositive() {
		return sdkmath.Int{}, errors.Join(ErrAmountNotPositive, fmt.Errorf("got %s", amount.String()))
	}
	if depositor == "" {
		return sdkmath.Int{}, ErrEmptyAddress
	}

	fee := s.fees.WithdrawalFee(amount)
	net := amount.Sub(fee)

	if s.current == nil {
		if err := s.ensureUnstaked(net); err != nil {
			return sdkmath.Int{}, err
		}
		if err := s.bank.Transfer(s.assetDenom, s.addr, depositor, net); err != nil {
			return sdkmath.Int{}, fmt.Errorf("paying immediate reserve: %w", err)
		}
		s.emit(types.EventReservePaid, map[string]string{
			"depositor": depositor,
			"amount":    net.String(),
			"fee":       fee.String(),
		})
		return net, nil
	}

	period := s.openPeriod()
	claim := s.claims[depositor]
	if claim == nil {
		claim = &types.ClaimOfReserves{Amount: sdkmath.ZeroInt()}
		s.claims[depositor] = claim
		s.claimants = append(s.claimants, depositor)
	}
	claim.Amount = claim.Amount.Add(net)
	claim.Period = period.Index
	period.TotalReserved = period.TotalReserved.Add(net)
	s.reserves = s.reserves.Add(net)

	s.emit(types.EventReserveRegistered, map[string]string{
		"depositor": depositor,
		"amount":    net.String(),
		"fee":       fee.String(),
		"period":    fmt.Sprintf("%d", period.Index),
	})
	return sdkmath.ZeroInt(), nil
}

// Claim pays out depositor's queued exit. Requires the claim's period to have
// fully vested and its final redemption to have cleared the warmup. Vault
// only. Returns the amount paid.
func (s *Strategy) Claim(caller, depositor string) (sdkmath.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireVault(caller); err != nil {
		return sdkmath.Int{}, err
	}

	claim := s.claims[depositor]
	if claim == nil || claim.Period == 0 || !claim.Amount.IsPositive() {
		return sdkmath.Int{}, errors.Join(ErrNotFullyVested, fmt.Errorf("depositor %s has no vested claim", depositor))
	}

	period := &s.periods[claim.Period]
	if !period.FullyVested {
		return sdkmath.Int{}, errors.Join(ErrNotFullyVested, fmt.Errorf("period %d", period.Index))
	}
	if s.staking.Epoch().Number < period.WarmupExpiry {
		return sdkmath.Int{}, errors.Join(ErrNotWarmedUp,
			fmt.Errorf("period %d matures at epoch %d", period.Index, period.WarmupExpiry))
	}

	payout := claim.Amount
	if err := s.ensureUnstaked(payout); err != nil {
		return sdkmath.Int{}, err
	}
	if err := s.bank.Transfer(s.assetDenom, s.addr, depositor, payout); err != nil {
		return sdkmath.Int{}, fmt.Errorf("paying claim: %w", err)
	}

	period.TotalReserved = period.TotalReserved.Sub(payout)
	s.reserves = s.reserves.Sub(payout)
	claim.Amount = sdkmath.ZeroInt()
	claim.Period = 0
	if period.TotalReserved.IsZero() && s.currentPeriod == period.Index {
		s.currentPeriod = 0
	}

	s.emit(types.EventClaimPaid, map[string]string{
		"depositor": depositor,
		"amount":    payout.String(),
		"period":    fmt.Sprintf("%d", period.Index),
	})
	return payout, nil
}

// ClaimOf returns depositor's pending claim with the vesting flag resolved.
func (s *Strategy) ClaimOf(depositor string) types.ClaimView {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim := s.claims[depositor]
	if claim == nil || claim.Period == 0 {
		return types.ClaimView{Amount: sdkmath.ZeroInt()}
	}
	period := s.periods[claim.Period]
	return types.ClaimView{
		Amount:      claim.Amount,
		Period:      claim.Period,
		FullyVested: period.FullyVested && s.staking.Epoch().Number >= period.WarmupExpiry,
	}
}

// Periods returns the full reserve-period history, excluding the sentinel.
func (s *Strategy) Periods() []types.ReservePeriod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.ReservePeriod(nil), s.periods[1:]...)
}

// PendingClaimants returns depositors with open claims, oldest first.
func (s *Strategy) PendingClaimants() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.claimants))
	for _, depositor := range s.claimants {
		if claim := s.claims[depositor]; claim != nil && claim.Period != 0 {
			out = append(out, depositor)
		}
	}
	return out
}

// openPeriod returns the period accepting new reservations, creating one if
// needed. Reserving into a vested-but-unclaimed period while a new bond is
// open puts that period back to waiting on the new bond.
func (s *Strategy) openPeriod() *types.ReservePeriod {
	if s.currentPeriod != 0 {
		period := &s.periods[s.currentPeriod]
		if period.FullyVested {
			period.FullyVested = false
			period.WarmupExpiry = 0
		}
		return period
	}

	index := uint64(len(s.periods))
	s.periods = append(s.periods, types.ReservePeriod{
		Index:         index,
		TotalReserved: sdkmath.ZeroInt(),
	})
	s.currentPeriod = index
	return &s.periods[index]
}

// sealCurrentPeriod marks the outstanding period fully vested after the
// bond's final redemption and records when its warmup matures.
func (s *Strategy) sealCurrentPeriod() {
	if s.currentPeriod == 0 {
		return
	}
	period := &s.periods[s.currentPeriod]
	period.FullyVested = true
	period.WarmupExpiry = s.staking.Epoch().Number + s.staking.WarmupPeriod()
}
