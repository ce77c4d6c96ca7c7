/*

This file contains the bond lifecycle state machine. The strategy is Idle
when current is nil and Bonding otherwise; a bond is entered from liquid
balance and exits only by vesting out through redeemAndStake.

*/

package strategy

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/minimum-finance/strategy-engine/internal/fees"
	"github.com/minimum-finance/strategy-engine/internal/types"
	"github.com/minimum-finance/strategy-engine/internal/venues"
)

// AddBond allow-lists a venue. Manager only, duplicates rejected.
func (s *Strategy) AddBond(caller string, venue venues.BondVenue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireManager(caller); err != nil {
		return err
	}
	if venue == nil {
		return ErrNilCollaborator
	}
	if _, exists := s.bondIndex[venue.ID()]; exists {
		return errors.Join(ErrDuplicateBond, fmt.Errorf("venue %s", venue.ID()))
	}

	s.bonds = append(s.bonds, venue)
	s.bondIndex[venue.ID()] = venue
	s.emit(types.EventBondAdded, map[string]string{"venue": venue.ID()})
	return nil
}

// RemoveBond drops a venue from the allow-list. Manager only. The venue
// backing the open bond cannot be removed.
func (s *Strategy) RemoveBond(caller, venueID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireManager(caller); err != nil {
		return err
	}
	if _, exists := s.bondIndex[venueID]; !exists {
		return errors.Join(ErrBondNotListed, fmt.Errorf("venue %s", venueID))
	}
	if s.current != nil && s.current.ID() == venueID {
		return errors.Join(ErrBondInUse, fmt.Errorf("venue %s", venueID))
	}

	delete(s.bondIndex, venueID)
	for i, v := range s.bonds {
		if v.ID() == venueID {
			s.bonds = append(s.bonds[:i], s.bonds[i+1:]...)
			break
		}
	}
	s.emit(types.EventBondRemoved, map[string]string{"venue": venueID})
	return nil
}

// ListBonds returns the allow-listed venue IDs in insertion order.
func (s *Strategy) ListBonds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.bonds))
	for _, v := range s.bonds {
		ids = append(ids, v.ID())
	}
	return ids
}

// CurrentBond returns the open bond's venue ID, or "" while idle.
func (s *Strategy) CurrentBond() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return ""
	}
	return s.current.ID()
}

// IsBonding reports whether a bond is open.
func (s *Strategy) IsBonding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// EnterBond moves up to amount of liquid balance into a single-asset bond at
// the given venue. Manager only; the strategy must be idle and the venue must
// currently price the asset at or below its fair swap value.
func (s *Strategy) EnterBond(caller string, amount sdkmath.Int, venueID string, route []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	venue, err := s.checkBondEntry(caller, amount, venueID)
	if err != nil {
		return err
	}
	if venue.IsLP() {
		// no swap route ends at an LP token, the LP entry point builds it
		return errors.Join(ErrBadRouteEnd, fmt.Errorf("venue %s takes LP principal", venueID))
	}
	if err := s.validateRoute(route, venue.Principal()); err != nil {
		return err
	}

	assetPrice, err := s.assetPriceUSD()
	if err != nil {
		return err
	}
	bondPrice := venue.BondPriceInUSD()
	if bondPrice.GT(assetPrice) {
		return errors.Join(ErrBondNotPositive,
			fmt.Errorf("bond price %s exceeds asset price %s", bondPrice.String(), assetPrice.String()))
	}

	bondSize, err := s.gatherBondInput(amount, venue, bondPrice, assetPrice)
	if err != nil {
		return err
	}

	// the fee is carved out up front but only paid once the venue has
	// accepted the deposit, so an aborted entry moves no balance
	fee := s.fees.ServiceFee(bondSize)
	principal := bondSize.Sub(fee)
	swapped := false
	if route[0] != venue.Principal() {
		principal, err = s.swapWithBound(principal, route)
		if err != nil {
			return err
		}
		swapped = true
	}

	maxPrice := bondPrice.MulInt64(fees.BpsDenominator + slippageToleranceBps).QuoInt64(fees.BpsDenominator)
	payout, err := venue.Deposit(s.addr, principal, maxPrice)
	if err != nil {
		if swapped {
			s.unwindSwap(principal, route)
		}
		return fmt.Errorf("depositing into venue %s: %w", venueID, err)
	}

	s.current = venue
	if err := s.payServiceFee(fee); err != nil {
		s.log.Warn().Err(err).Str("fee", fee.String()).Msg("service fee payment failed, fee retained in liquid balance")
	}
	s.emit(types.EventBondOpened, map[string]string{
		"venue":     venueID,
		"bond_size": bondSize.String(),
		"fee":       fee.String(),
		"principal": principal.String(),
		"payout":    payout.String(),
	})
	return nil
}

// EnterBondAll bonds the entire liquid balance. The amount is clamped to the
// venue's capacity the same way EnterBond clamps it.
func (s *Strategy) EnterBondAll(caller string, venueID string, route []string) error {
	return s.EnterBond(caller, s.TotalRebasing(), venueID, route)
}

// EnterBondLP moves up to amount of liquid balance into a two-asset liquidity
// bond. Half the input is swapped along routeB into the pair's second token,
// the halves are pooled, and the LP tokens are bonded. Leftover asset from
// the pool deposit is restaked.
func (s *Strategy) EnterBondLP(caller string, amount sdkmath.Int, venueID string, routeA, routeB []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	venue, err := s.checkBondEntry(caller, amount, venueID)
	if err != nil {
		return err
	}
	if !venue.IsLP() {
		return errors.Join(ErrBondNotListed, fmt.Errorf("venue %s is not an LP bond", venueID))
	}

	tokenA, tokenB := venue.PairTokens()
	if err := s.validateRoute(routeA, tokenA); err != nil {
		return err
	}
	if err := s.validateRoute(routeB, tokenB); err != nil {
		return err
	}

	assetPrice, err := s.assetPriceUSD()
	if err != nil {
		return err
	}
	bondPrice := venue.BondPriceInUSD()
	if bondPrice.GT(assetPrice) {
		return errors.Join(ErrBondNotPositive,
			fmt.Errorf("bond price %s exceeds asset price %s", bondPrice.String(), assetPrice.String()))
	}

	bondSize, err := s.gatherBondInput(amount, venue, bondPrice, assetPrice)
	if err != nil {
		return err
	}

	fee := s.fees.ServiceFee(bondSize)
	input := bondSize.Sub(fee)
	half := input.QuoRaw(2)
	otherHalf := input.Sub(half)

	amountA, swappedA := half, false
	if routeA[0] != tokenA {
		amountA, err = s.swapWithBound(half, routeA)
		if err != nil {
			return err
		}
		swappedA = true
	}
	amountB, swappedB := otherHalf, false
	if routeB[0] != tokenB {
		amountB, err = s.swapWithBound(otherHalf, routeB)
		if err != nil {
			if swappedA {
				s.unwindSwap(amountA, routeA)
			}
			return err
		}
		swappedB = true
	}

	usedA, usedB, lpMinted, err := s.router.AddLiquidity(s.addr, tokenA, tokenB, amountA, amountB)
	if err != nil {
		if swappedA {
			s.unwindSwap(amountA, routeA)
		}
		if swappedB {
			s.unwindSwap(amountB, routeB)
		}
		return fmt.Errorf("adding liquidity for venue %s: %w", venueID, err)
	}

	// restake any asset-denominated scrap the pool did not consume
	scrap := sdkmath.ZeroInt()
	if tokenA == s.assetDenom {
		scrap = scrap.Add(amountA.Sub(usedA))
	}
	if tokenB == s.assetDenom {
		scrap = scrap.Add(amountB.Sub(usedB))
	}
	if scrap.IsPositive() {
		if err := s.staking.Stake(s.addr, s.addr, scrap); err != nil {
			s.log.Warn().Err(err).Str("scrap", scrap.String()).Msg("failed to restake LP scrap")
		}
	}

	maxPrice := bondPrice.MulInt64(fees.BpsDenominator + slippageToleranceBps).QuoInt64(fees.BpsDenominator)
	payout, err := venue.Deposit(s.addr, lpMinted, maxPrice)
	if err != nil {
		return fmt.Errorf("depositing into venue %s: %w", venueID, err)
	}

	s.current = venue
	if err := s.payServiceFee(fee); err != nil {
		s.log.Warn().Err(err).Str("fee", fee.String()).Msg("service fee payment failed, fee retained in liquid balance")
	}
	s.emit(types.EventBondOpened, map[string]string{
		"venue":     venueID,
		"bond_size": bondSize.String(),
		"fee":       fee.String(),
		"lp_minted": lpMinted.String(),
		"payout":    payout.String(),
	})
	return nil
}

// EnterBondLPAll bonds the entire liquid balance into a liquidity bond.
func (s *Strategy) EnterBondLPAll(caller string, venueID string, routeA, routeB []string) error {
	return s.EnterBondLP(caller, s.TotalRebasing(), venueID, routeA, routeB)
}

// RedeemAndStake pulls the vested portion of the open bond and restakes it.
// On the bond's final payout the strategy returns to idle and any outstanding
// reserve period is marked fully vested.
func (s *Strategy) RedeemAndStake(caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRedeemer(caller); err != nil {
		return err
	}
	if s.current == nil {
		return ErrNotBonding
	}

	redeemed, err := s.current.Redeem(s.addr)
	if err != nil {
		return fmt.Errorf("redeeming from venue %s: %w", s.current.ID(), err)
	}

	fee := s.fees.ServiceFee(redeemed)
	if err := s.payServiceFee(fee); err != nil {
		return err
	}
	net := redeemed.Sub(fee)
	if net.IsPositive() {
		if err := s.staking.Stake(s.addr, s.addr, net); err != nil {
			return fmt.Errorf("restaking redemption: %w", err)
		}
	}

	record := s.current.BondInfo(s.addr)
	if record.Payout.IsPositive() {
		s.emit(types.EventRedeem, map[string]string{
			"venue":     s.current.ID(),
			"redeemed":  redeemed.String(),
			"fee":       fee.String(),
			"remaining": record.Payout.String(),
		})
		return nil
	}

	venueID := s.current.ID()
	s.current = nil
	s.sealCurrentPeriod()
	s.emit(types.EventRedeemFinal, map[string]string{
		"venue":    venueID,
		"redeemed": redeemed.String(),
		"fee":      fee.String(),
	})
	return nil
}

// Panic is the emergency brake: pause deposits and bonding and pull all
// staked balance back to the liquid bucket. Idempotent; an open bond is left
// to vest out since venues do not support early exit.
func (s *Strategy) Panic(caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireManager(caller); err != nil {
		return err
	}
	if s.paused {
		return nil
	}

	s.paused = true
	s.claimMaturedWarmup()
	staked := s.stakedRebasing()
	if staked.IsPositive() {
		if err := s.staking.Unstake(s.addr, staked, true); err != nil {
			return fmt.Errorf("unstaking during panic: %w", err)
		}
	}
	s.emit(types.EventPanic, map[string]string{"unstaked": staked.String()})
	return nil
}

// Pause stops deposits and new bonds without touching balances. Manager only,
// idempotent.
func (s *Strategy) Pause(caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireManager(caller); err != nil {
		return err
	}
	if s.paused {
		return nil
	}
	s.paused = true
	s.emit(types.EventPaused, nil)
	return nil
}

// Unpause lifts the brake. Manager only, idempotent.
func (s *Strategy) Unpause(caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireManager(caller); err != nil {
		return err
	}
	if !s.paused {
		return nil
	}
	s.paused = false
	s.emit(types.EventUnpaused, nil)
	return nil
}

// Stake moves the whole unstaked bucket into the staking contract. Manager
// only; a no-op when there is nothing liquid.
func (s *Strategy) Stake(caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireManager(caller); err != nil {
		return err
	}
	if s.paused {
		return ErrPaused
	}

	s.claimMaturedWarmup()
	unstaked := s.unstakedRebasing()
	if !unstaked.IsPositive() {
		return nil
	}
	return s.staking.Stake(s.addr, s.addr, unstaked)
}

// Unstake moves up to amount from the staked bucket to the liquid one.
// Manager only; clamped to the staked balance.
func (s *Strategy) Unstake(caller string, amount sdkmath.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireManager(caller); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return errors.Join(ErrAmountNotPositive, fmt.Errorf("got %s", amount.String()))
	}

	s.claimMaturedWarmup()
	staked := s.stakedRebasing()
	toMove := sdkmath.MinInt(amount, staked)
	if !toMove.IsPositive() {
		return nil
	}
	return s.staking.Unstake(s.addr, toMove, true)
}

// UnstakeAll drains the staked bucket. Manager only, idempotent.
func (s *Strategy) UnstakeAll(caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireManager(caller); err != nil {
		return err
	}

	s.claimMaturedWarmup()
	staked := s.stakedRebasing()
	if !staked.IsPositive() {
		return nil
	}
	return s.staking.Unstake(s.addr, staked, true)
}

// checkBondEntry runs the shared entry preconditions and resolves the venue.
func (s *Strategy) checkBondEntry(caller string, amount sdkmath.Int, venueID string) (venues.BondVenue, error) {
	if err := s.requireManager(caller); err != nil {
		return nil, err
	}
	if s.paused {
		return nil, ErrPaused
	}
	if !amount.IsPositive() {
		return nil, errors.Join(ErrAmountNotPositive, fmt.Errorf("got %s", amount.String()))
	}
	venue, exists := s.bondIndex[venueID]
	if !exists {
		return nil, errors.Join(ErrUnapprovedBond, fmt.Errorf("venue %s", venueID))
	}
	if s.current != nil {
		return nil, errors.Join(ErrAlreadyBonding, fmt.Errorf("open bond at %s", s.current.ID()))
	}
	return venue, nil
}

// validateRoute checks that a swap route starts at the rebasing token and
// ends at the required principal. A single-hop route of just the asset is
// allowed when the principal is the asset itself.
func (s *Strategy) validateRoute(route []string, principal string) error {
	if len(route) == 0 || route[0] != s.assetDenom {
		return ErrBadRouteStart
	}
	if route[len(route)-1] != principal {
		return errors.Join(ErrBadRouteEnd, fmt.Errorf("want %s", principal))
	}
	return nil
}

// assetPriceUSD quotes one whole asset unit through the configured price
// route and normalizes the stablecoin output to a USD decimal.
func (s *Strategy) assetPriceUSD() (sdkmath.LegacyDec, error) {
	oneAsset := sdkmath.NewIntWithDecimal(1, types.AssetDecimals)
	quote, err := s.router.GetAmountsOut(oneAsset, s.priceRoute)
	if err != nil {
		return sdkmath.LegacyDec{}, errors.Join(ErrQuoteUnavailable, err)
	}
	out := quote[len(quote)-1]
	if !out.IsPositive() {
		return sdkmath.LegacyDec{}, ErrQuoteUnavailable
	}
	return sdkmath.LegacyNewDecFromIntWithPrec(out, sdkmath.LegacyPrecision), nil
}

// maxBondSize converts the venue's payout cap into asset-denominated input.
func maxBondSize(venue venues.BondVenue, bondPrice, assetPrice sdkmath.LegacyDec) sdkmath.Int {
	return sdkmath.LegacyNewDecFromInt(venue.MaxPayout()).Mul(bondPrice).Quo(assetPrice).TruncateInt()
}

// gatherBondInput clamps the requested amount to the venue's cap and the
// available liquid balance, then makes it liquid in the unstaked bucket.
func (s *Strategy) gatherBondInput(amount sdkmath.Int, venue venues.BondVenue, bondPrice, assetPrice sdkmath.LegacyDec) (sdkmath.Int, error) {
	s.claimMaturedWarmup()

	available := s.unstakedRebasing().Add(s.stakedRebasing())
	bondSize := sdkmath.MinInt(amount, sdkmath.MinInt(available, maxBondSize(venue, bondPrice, assetPrice)))
	if !bondSize.IsPositive() {
		return sdkmath.Int{}, errors.Join(ErrInsufficientFunds, errors.New("no liquid balance to bond"))
	}
	if err := s.ensureUnstaked(bondSize); err != nil {
		return sdkmath.Int{}, err
	}
	return bondSize, nil
}

// payServiceFee stakes the fee amount credited to the fee recipient, so the
// fee lands in the recipient's own warmup.
func (s *Strategy) payServiceFee(fee sdkmath.Int) error {
	if !fee.IsPositive() {
		return nil
	}
	if err := s.staking.Stake(s.addr, s.feeRecipient, fee); err != nil {
		return fmt.Errorf("paying service fee: %w", err)
	}
	return nil
}

// unwindSwap swaps tokens back to the route's start after an aborted bond
// entry. Best effort: a failed unwind is logged, the tokens stay held.
func (s *Strategy) unwindSwap(amount sdkmath.Int, route []string) {
	if !amount.IsPositive() || len(route) < 2 {
		return
	}
	back := make([]string, len(route))
	for i, hop := range route {
		back[len(route)-1-i] = hop
	}
	if _, err := s.swapWithBound(amount, back); err != nil {
		s.log.Warn().Err(err).Str("amount", amount.String()).Msg("failed to unwind swap after aborted bond entry")
	}
}

// swapWithBound swaps amountIn along route, bounding the accepted output to
// the quote less the slippage tolerance.
func (s *Strategy) swapWithBound(amountIn sdkmath.Int, route []string) (sdkmath.Int, error) {
	quote, err := s.router.GetAmountsOut(amountIn, route)
	if err != nil {
		return sdkmath.Int{}, errors.Join(ErrQuoteUnavailable, err)
	}
	expected := quote[len(quote)-1]
	minOut := expected.MulRaw(fees.BpsDenominator - slippageToleranceBps).QuoRaw(fees.BpsDenominator)

	out, err := s.router.SwapExactTokensForTokens(s.addr, amountIn, minOut, route)
	if err != nil {
		return sdkmath.Int{}, errors.Join(ErrSlippageExceeded, err)
	}
	return out, nil
}
