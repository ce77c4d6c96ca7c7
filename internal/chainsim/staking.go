package chainsim

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/minimum-finance/strategy-engine/internal/types"
)

// StakingConfig sizes the simulated staking contract.
type StakingConfig struct {
	Account       string // the module account holding staked collateral
	AssetDenom    string
	StakedDenom   string
	EpochBlocks   uint64 // blocks per epoch
	WarmupPeriod  uint64 // epochs a warmup deposit takes to mature
	RebaseRateBps uint64 // staked-supply growth per epoch
}

// Staking simulates an OHM-style staking contract: deposits route through a
// warmup keyed by recipient, staked balances grow by a fixed rate each epoch
// and unstaking burns staked tokens for the underlying one to one.
type Staking struct {
	mu    sync.Mutex
	cfg   StakingConfig
	chain *Chain
	bank  *Bank

	warmups     map[string]types.WarmupInfo
	lastRebased uint64 // last epoch whose rebase has been applied
}

// NewStaking wires a staking sim against the shared chain and bank.
func NewStaking(cfg StakingConfig, chain *Chain, bank *Bank) *Staking {
	return &Staking{
		cfg:     cfg,
		chain:   chain,
		bank:    bank,
		warmups: make(map[string]types.WarmupInfo),
	}
}

// Epoch derives the current epoch from the block height.
func (s *Staking) Epoch() types.EpochInfo {
	return types.EpochInfo{Number: s.chain.Height() / s.cfg.EpochBlocks}
}

// WarmupPeriod returns the configured warmup length in epochs.
func (s *Staking) WarmupPeriod() uint64 {
	return s.cfg.WarmupPeriod
}

// Stake pulls amount of the asset from `from` and opens or grows a warmup
// deposit for recipient. Each new deposit restarts the warmup clock.
func (s *Staking) Stake(from, recipient string, amount sdkmath.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyPendingRebases()

	if !amount.IsPositive() {
		return fmt.Errorf("stake amount %s is not positive", amount.String())
	}
	if err := s.bank.Transfer(s.cfg.AssetDenom, from, s.cfg.Account, amount); err != nil {
		return err
	}

	info := s.warmups[recipient]
	if info.Deposit.IsNil() {
		info.Deposit = sdkmath.ZeroInt()
	}
	info.Deposit = info.Deposit.Add(amount)
	info.Expiry = s.Epoch().Number + s.cfg.WarmupPeriod
	s.warmups[recipient] = info
	return nil
}

// ClaimWarmup converts account's matured warmup deposit into staked balance.
// A no-op while the warmup is still maturing or empty.
func (s *Staking) ClaimWarmup(account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyPendingRebases()

	info, ok := s.warmups[account]
	if !ok || !info.Deposit.IsPositive() {
		return nil
	}
	if s.Epoch().Number < info.Expiry {
		return nil
	}

	s.bank.Mint(s.cfg.StakedDenom, account, info.Deposit)
	delete(s.warmups, account)
	return nil
}

// Unstake burns amount of account's staked balance and returns the asset.
func (s *Staking) Unstake(account string, amount sdkmath.Int, triggerRebase bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if triggerRebase {
		s.applyPendingRebases()
	}

	held := s.bank.BalanceOf(s.cfg.StakedDenom, account)
	if held.LT(amount) {
		return errors.Join(ErrInsufficientBalance,
			fmt.Errorf("%s has %s staked, wants %s", account, held.String(), amount.String()))
	}
	s.bank.Burn(s.cfg.StakedDenom, account, amount)
	return s.bank.Transfer(s.cfg.AssetDenom, s.cfg.Account, account, amount)
}

// WarmupInfo reports account's pending warmup deposit.
func (s *Staking) WarmupInfo(account string) types.WarmupInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyPendingRebases()

	info, ok := s.warmups[account]
	if !ok {
		return types.WarmupInfo{Deposit: sdkmath.ZeroInt()}
	}
	return info
}

// Rebase applies any epochs' growth that has not been applied yet.
func (s *Staking) Rebase() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyPendingRebases()
}

// applyPendingRebases grows every staked balance by the per-epoch rate for
// each epoch since the last application, minting matching collateral into
// the module account. Warmup deposits do not rebase.
func (s *Staking) applyPendingRebases() {
	current := s.chain.Height() / s.cfg.EpochBlocks
	for s.lastRebased < current {
		s.lastRebased++
		if s.cfg.RebaseRateBps == 0 {
			continue
		}
		for _, account := range s.bank.Holders(s.cfg.StakedDenom) {
			held := s.bank.BalanceOf(s.cfg.StakedDenom, account)
			growth := held.MulRaw(int64(s.cfg.RebaseRateBps)).QuoRaw(10000)
			if !growth.IsPositive() {
				continue
			}
			s.bank.Mint(s.cfg.StakedDenom, account, growth)
			s.bank.Mint(s.cfg.AssetDenom, s.cfg.Account, growth)
		}
	}
}
