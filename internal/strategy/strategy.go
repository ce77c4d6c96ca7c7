/*

This file contains the Strategy type: construction, role gating and the
manager-facing admin surface. The bonding lifecycle lives in bonding.go, the
position ledger in balances.go and the reserve/claim queue in reserves.go.

All public entry points serialize on one mutex. The strategy is the single
writer over its bond and reserve state; collaborators own their own balances.

*/

package strategy

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/minimum-finance/strategy-engine/internal/fees"
	"github.com/minimum-finance/strategy-engine/internal/logger"
	"github.com/minimum-finance/strategy-engine/internal/types"
	"github.com/minimum-finance/strategy-engine/internal/venues"
)

// slippageToleranceBps bounds how far a swap's realized output may fall below
// the quoted output before the bond entry is aborted.
const slippageToleranceBps = 50

// Config carries everything a Strategy needs. All collaborators are required;
// Recorder may be nil, in which case a log-only recorder is created.
type Config struct {
	Address      string // the strategy's own account
	Vault        string // the only account allowed to move depositor funds
	Manager      string
	Keeper       string
	FeeRecipient string

	AssetDenom  string   // the rebasing token
	StakedDenom string   // its staked form
	PriceRoute  []string // asset -> ... -> USD stable, for fair-value quotes

	Fees         fees.Schedule
	PublicRedeem bool // when true anyone may trigger redeemAndStake

	Bank    venues.Bank
	Staking venues.StakeManager
	Router  venues.SwapRouter
	Chain   venues.ChainInfo

	Recorder *Recorder
}

// Strategy manages depositor capital through the stake/bond cycle on behalf
// of a single vault.
type Strategy struct {
	mu  sync.Mutex
	log zerolog.Logger

	addr         string
	vault        string
	manager      string
	keeper       string
	feeRecipient string

	assetDenom  string
	stakedDenom string
	priceRoute  []string

	fees         fees.Schedule
	publicRedeem bool
	paused       bool

	bank    venues.Bank
	staking venues.StakeManager
	router  venues.SwapRouter
	chain   venues.ChainInfo

	bonds     []venues.BondVenue
	bondIndex map[string]venues.BondVenue
	current   venues.BondVenue // nil while idle

	reserves      sdkmath.Int
	periods       []types.ReservePeriod // periods[0] is the sentinel
	currentPeriod uint64                // 0 when no period is accepting reservations
	claims        map[string]*types.ClaimOfReserves
	claimants     []string // insertion order, for stable reporting

	recorder *Recorder
}

// New validates cfg and builds a Strategy.
func New(cfg Config) (*Strategy, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = NewRecorder(nil)
	}

	s := &Strategy{
		log:          logger.GetForComponent("strategy"),
		addr:         cfg.Address,
		vault:        cfg.Vault,
		manager:      cfg.Manager,
		keeper:       cfg.Keeper,
		feeRecipient: cfg.FeeRecipient,
		assetDenom:   cfg.AssetDenom,
		stakedDenom:  cfg.StakedDenom,
		priceRoute:   append([]string(nil), cfg.PriceRoute...),
		fees:         cfg.Fees,
		publicRedeem: cfg.PublicRedeem,
		bank:         cfg.Bank,
		staking:      cfg.Staking,
		router:       cfg.Router,
		chain:        cfg.Chain,
		bondIndex:    make(map[string]venues.BondVenue),
		reserves:     sdkmath.ZeroInt(),
		periods:      []types.ReservePeriod{{Index: 0, TotalReserved: sdkmath.ZeroInt()}},
		claims:       make(map[string]*types.ClaimOfReserves),
		recorder:     recorder,
	}

	s.log.Info().
		Str("address", s.addr).
		Str("vault", s.vault).
		Str("asset", s.assetDenom).
		Uint64("service_fee_bps", s.fees.ServiceBps()).
		Uint64("withdrawal_fee_bps", s.fees.WithdrawalBps()).
		Msg("strategy initialized")

	return s, nil
}

func validateConfig(cfg Config) error {
	for name, addr := range map[string]string{
		"address":       cfg.Address,
		"vault":         cfg.Vault,
		"manager":       cfg.Manager,
		"fee recipient": cfg.FeeRecipient,
	} {
		if addr == "" {
			return errors.Join(ErrEmptyAddress, fmt.Errorf("config field %q", name))
		}
	}
	if cfg.AssetDenom == "" || cfg.StakedDenom == "" {
		return errors.Join(ErrEmptyAddress, errors.New("asset and staked denoms are required"))
	}
	if len(cfg.PriceRoute) < 2 {
		return errors.Join(ErrQuoteUnavailable, errors.New("price route needs at least two hops"))
	}
	if cfg.PriceRoute[0] != cfg.AssetDenom {
		return errors.Join(ErrBadRouteStart, errors.New("price route"))
	}
	for name, collaborator := range map[string]any{
		"bank":    cfg.Bank,
		"staking": cfg.Staking,
		"router":  cfg.Router,
		"chain":   cfg.Chain,
	} {
		if collaborator == nil {
			return errors.Join(ErrNilCollaborator, fmt.Errorf("config field %q", name))
		}
	}
	return nil
}

// Address returns the strategy's own account.
func (s *Strategy) Address() string { return s.addr }

// AssetDenom returns the managed rebasing token denom.
func (s *Strategy) AssetDenom() string { return s.assetDenom }

// Recorder exposes the event recorder for the status API.
func (s *Strategy) Recorder() *Recorder { return s.recorder }

func (s *Strategy) requireManager(caller string) error {
	if caller != s.manager {
		return errors.Join(ErrNotManager, fmt.Errorf("caller %s", caller))
	}
	return nil
}

func (s *Strategy) requireVault(caller string) error {
	if caller != s.vault {
		return errors.Join(ErrNotVault, fmt.Errorf("caller %s", caller))
	}
	return nil
}

func (s *Strategy) requireRedeemer(caller string) error {
	if s.publicRedeem || caller == s.manager || caller == s.keeper {
		return nil
	}
	return errors.Join(ErrNotKeeper, fmt.Errorf("caller %s", caller))
}

// Paused reports whether the emergency brake is on.
func (s *Strategy) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// SetServiceFee updates the service fee rate. Manager only, capped.
func (s *Strategy) SetServiceFee(caller string, bps uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireManager(caller); err != nil {
		return err
	}
	updated, err := s.fees.WithServiceBps(bps)
	if err != nil {
		return err
	}
	s.fees = updated
	s.emit(types.EventFeeChanged, map[string]string{
		"fee": "service",
		"bps": fmt.Sprintf("%d", bps),
	})
	return nil
}

// SetWithdrawalFee updates the withdrawal fee rate. Manager only, capped.
func (s *Strategy) SetWithdrawalFee(caller string, bps uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireManager(caller); err != nil {
		return err
	}
	updated, err := s.fees.WithWithdrawalBps(bps)
	if err != nil {
		return err
	}
	s.fees = updated
	s.emit(types.EventFeeChanged, map[string]string{
		"fee": "withdrawal",
		"bps": fmt.Sprintf("%d", bps),
	})
	return nil
}

// SetKeeper replaces the keeper account. Manager only.
func (s *Strategy) SetKeeper(caller, keeper string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireManager(caller); err != nil {
		return err
	}
	s.keeper = keeper
	s.emit(types.EventKeeperChanged, map[string]string{"keeper": keeper})
	return nil
}

// SetFeeRecipient replaces the service fee recipient. Manager only.
func (s *Strategy) SetFeeRecipient(caller, recipient string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireManager(caller); err != nil {
		return err
	}
	if recipient == "" {
		return ErrEmptyAddress
	}
	s.feeRecipient = recipient
	s.emit(types.EventRecipientChanged, map[string]string{"recipient": recipient})
	return nil
}

// SetVault replaces the vault account. Manager only, refuses while deposits
// are reserved so claims cannot be orphaned.
func (s *Strategy) SetVault(caller, vault string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireManager(caller); err != nil {
		return err
	}
	if vault == "" {
		return ErrEmptyAddress
	}
	if s.reserves.IsPositive() {
		return errors.Join(ErrInsufficientFunds, errors.New("outstanding reserves"))
	}
	s.vault = vault
	s.emit(types.EventVaultChanged, map[string]string{"vault": vault})
	return nil
}

// SetPublicRedeem toggles whether anyone may trigger redemptions. Manager
// only.
func (s *Strategy) SetPublicRedeem(caller string, public bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireManager(caller); err != nil {
		return err
	}
	s.publicRedeem = public
	return nil
}

// Deposit stakes the strategy's liquid unstaked balance. Called by the vault
// after forwarding a depositor's tokens.
func (s *Strategy) Deposit(caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireVault(caller); err != nil {
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
	if err := s.staking.Stake(s.addr, s.addr, unstaked); err != nil {
		return fmt.Errorf("staking deposit: %w", err)
	}
	s.emit(types.EventDeposit, map[string]string{"amount": unstaked.String()})
	return nil
}

// RescueToken sweeps the full balance of a non-managed token out of the
// strategy account. Manager only.
func (s *Strategy) RescueToken(caller, denom, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireManager(caller); err != nil {
		return err
	}
	if denom == s.assetDenom || denom == s.stakedDenom {
		return errors.Join(ErrManagedToken, fmt.Errorf("denom %s", denom))
	}
	if to == "" {
		return ErrEmptyAddress
	}

	amount := s.bank.BalanceOf(denom, s.addr)
	if !amount.IsPositive() {
		return nil
	}
	if err := s.bank.Transfer(denom, s.addr, to, amount); err != nil {
		return fmt.Errorf("rescuing %s: %w", denom, err)
	}
	s.emit(types.EventTokensRescued, map[string]string{
		"denom":  denom,
		"to":     to,
		"amount": amount.String(),
	})
	return nil
}

func (s *Strategy) emit(eventType types.EventType, attrs map[string]string) {
	s.recorder.Emit(eventType, s.chain.Height(), attrs)
}
