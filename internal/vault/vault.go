/*

This file contains the depositor-facing vault. The vault owns share
accounting only; all asset balances live with the strategy, which the vault
addresses as its sole privileged caller.

*/

package vault

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/minimum-finance/strategy-engine/internal/logger"
	"github.com/minimum-finance/strategy-engine/internal/strategy"
	"github.com/minimum-finance/strategy-engine/internal/types"
	"github.com/minimum-finance/strategy-engine/internal/venues"
)

var (
	ErrNotManager         = errors.New("not manager")
	ErrAmountNotPositive  = errors.New("amount not positive")
	ErrBelowMinimum       = errors.New("deposit below minimum")
	ErrAboveCap           = errors.New("deposit exceeds vault cap")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNoShares           = errors.New("no shares outstanding")
	ErrEmptyAddress       = errors.New("address must not be empty")
	ErrNilCollaborator    = errors.New("collaborator must not be nil")
)

// Config carries the vault's wiring.
type Config struct {
	Address    string
	Manager    string
	AssetDenom string
	MinDeposit sdkmath.Int
	Cap        sdkmath.Int // zero means uncapped

	Bank     venues.Bank
	Strategy *strategy.Strategy
	Recorder *strategy.Recorder
}

// Vault mints and burns depositor shares against the strategy's total
// balance.
type Vault struct {
	mu  sync.Mutex
	log zerolog.Logger

	addr       string
	manager    string
	assetDenom string
	minDeposit sdkmath.Int
	cap        sdkmath.Int

	bank     venues.Bank
	strategy *strategy.Strategy
	recorder *strategy.Recorder

	shares      map[string]sdkmath.Int
	totalShares sdkmath.Int
}

// New validates cfg and builds a Vault.
func New(cfg Config) (*Vault, error) {
	if cfg.Address == "" || cfg.Manager == "" || cfg.AssetDenom == "" {
		return nil, ErrEmptyAddress
	}
	if cfg.Bank == nil || cfg.Strategy == nil {
		return nil, ErrNilCollaborator
	}

	minDeposit := cfg.MinDeposit
	if minDeposit.IsNil() {
		minDeposit = sdkmath.ZeroInt()
	}
	cap := cfg.Cap
	if cap.IsNil() {
		cap = sdkmath.ZeroInt()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = cfg.Strategy.Recorder()
	}

	v := &Vault{
		log:         logger.GetForComponent("vault"),
		addr:        cfg.Address,
		manager:     cfg.Manager,
		assetDenom:  cfg.AssetDenom,
		minDeposit:  minDeposit,
		cap:         cap,
		bank:        cfg.Bank,
		strategy:    cfg.Strategy,
		recorder:    recorder,
		shares:      make(map[string]sdkmath.Int),
		totalShares: sdkmath.ZeroInt(),
	}

	v.log.Info().
		Str("address", v.addr).
		Str("asset", v.assetDenom).
		Str("min_deposit", v.minDeposit.String()).
		Msg("vault initialized")

	return v, nil
}

// Address returns the vault's account.
func (v *Vault) Address() string { return v.addr }

// Balance returns the depositor-owned balance backing the shares.
func (v *Vault) Balance() sdkmath.Int {
	return v.strategy.TotalBalance()
}

// TotalShares returns the outstanding share supply.
func (v *Vault) TotalShares() sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.totalShares
}

// SharesOf returns account's share balance.
func (v *Vault) SharesOf(account string) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sharesOf(account)
}

// SharePrice returns the asset value of one share, or one when no shares are
// outstanding.
func (v *Vault) SharePrice() sdkmath.LegacyDec {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.totalShares.IsPositive() {
		return sdkmath.LegacyOneDec()
	}
	return sdkmath.LegacyNewDecFromInt(v.Balance()).QuoInt(v.totalShares)
}

// MinDeposit returns the minimum accepted deposit.
func (v *Vault) MinDeposit() sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.minDeposit
}

// SetMinDeposit updates the deposit floor. Manager only.
func (v *Vault) SetMinDeposit(caller string, amount sdkmath.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if caller != v.manager {
		return errors.Join(ErrNotManager, fmt.Errorf("caller %s", caller))
	}
	if amount.IsNil() || amount.IsNegative() {
		return errors.Join(ErrAmountNotPositive, errors.New("minimum deposit must be zero or positive"))
	}
	v.minDeposit = amount
	v.recorder.Emit(types.EventMinDepositChanged, 0, map[string]string{"min_deposit": amount.String()})
	return nil
}

// SetCap updates the vault's total deposit cap; zero removes it. Manager
// only.
func (v *Vault) SetCap(caller string, cap sdkmath.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if caller != v.manager {
		return errors.Join(ErrNotManager, fmt.Errorf("caller %s", caller))
	}
	if cap.IsNil() || cap.IsNegative() {
		return errors.Join(ErrAmountNotPositive, errors.New("cap must be zero or positive"))
	}
	v.cap = cap
	return nil
}

// Deposit pulls amount of the asset from account, mints shares at the
// current share price and puts the funds to work in the strategy.
func (v *Vault) Deposit(account string, amount sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if account == "" {
		return sdkmath.Int{}, ErrEmptyAddress
	}
	if !amount.IsPositive() {
		return sdkmath.Int{}, errors.Join(ErrAmountNotPositive, fmt.Errorf("got %s", amount.String()))
	}
	if amount.LT(v.minDeposit) {
		return sdkmath.Int{}, errors.Join(ErrBelowMinimum,
			fmt.Errorf("got %s, minimum is %s", amount.String(), v.minDeposit.String()))
	}

	balanceBefore := v.strategy.TotalBalance()
	if v.cap.IsPositive() && balanceBefore.Add(amount).GT(v.cap) {
		return sdkmath.Int{}, errors.Join(ErrAboveCap,
			fmt.Errorf("balance %s plus deposit %s exceeds cap %s",
				balanceBefore.String(), amount.String(), v.cap.String()))
	}

	if err := v.bank.Transfer(v.assetDenom, account, v.strategy.Address(), amount); err != nil {
		return sdkmath.Int{}, fmt.Errorf("transferring deposit: %w", err)
	}
	if err := v.strategy.Deposit(v.addr); err != nil {
		// the strategy refused before staking anything, send the tokens back
		if rerr := v.bank.Transfer(v.assetDenom, v.strategy.Address(), account, amount); rerr != nil {
			v.log.Error().Err(rerr).
				Str("account", account).
				Str("amount", amount.String()).
				Msg("failed to return refused deposit")
		}
		return sdkmath.Int{}, err
	}

	var minted sdkmath.Int
	if !v.totalShares.IsPositive() || !balanceBefore.IsPositive() {
		minted = amount
	} else {
		minted = amount.Mul(v.totalShares).Quo(balanceBefore)
	}
	v.shares[account] = v.sharesOf(account).Add(minted)
	v.totalShares = v.totalShares.Add(minted)

	v.log.Debug().
		Str("account", account).
		Str("amount", amount.String()).
		Str("shares", minted.String()).
		Msg("deposit accepted")
	return minted, nil
}

// DepositAll deposits account's entire asset balance.
func (v *Vault) DepositAll(account string) (sdkmath.Int, error) {
	held := v.bank.BalanceOf(v.assetDenom, account)
	if !held.IsPositive() {
		return sdkmath.Int{}, errors.Join(ErrAmountNotPositive, fmt.Errorf("account %s holds no %s", account, v.assetDenom))
	}
	return v.Deposit(account, held)
}

// Reserve burns shareAmount of account's shares and asks the strategy to pay
// out or queue the proportional balance. Returns the amount paid immediately,
// zero when the exit was queued behind an open bond.
func (v *Vault) Reserve(account string, shareAmount sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !shareAmount.IsPositive() {
		return sdkmath.Int{}, errors.Join(ErrAmountNotPositive, fmt.Errorf("got %s", shareAmount.String()))
	}
	held := v.sharesOf(account)
	if held.LT(shareAmount) {
		return sdkmath.Int{}, errors.Join(ErrInsufficientShares,
			fmt.Errorf("have %s, want to burn %s", held.String(), shareAmount.String()))
	}
	if !v.totalShares.IsPositive() {
		return sdkmath.Int{}, ErrNoShares
	}

	amount := v.strategy.TotalBalance().Mul(shareAmount).Quo(v.totalShares)
	if !amount.IsPositive() {
		return sdkmath.Int{}, errors.Join(ErrAmountNotPositive, errors.New("shares are worth nothing"))
	}

	paid, err := v.strategy.Reserve(v.addr, account, amount)
	if err != nil {
		return sdkmath.Int{}, err
	}

	v.shares[account] = held.Sub(shareAmount)
	v.totalShares = v.totalShares.Sub(shareAmount)
	return paid, nil
}

// ReserveAll exits account's entire position.
func (v *Vault) ReserveAll(account string) (sdkmath.Int, error) {
	held := v.SharesOf(account)
	if !held.IsPositive() {
		return sdkmath.Int{}, errors.Join(ErrInsufficientShares, fmt.Errorf("account %s holds no shares", account))
	}
	return v.Reserve(account, held)
}

// Claim pays out account's queued exit once it has vested.
func (v *Vault) Claim(account string) (sdkmath.Int, error) {
	return v.strategy.Claim(v.addr, account)
}

func (v *Vault) sharesOf(account string) sdkmath.Int {
	if held, ok := v.shares[account]; ok {
		return held
	}
	return sdkmath.ZeroInt()
}
