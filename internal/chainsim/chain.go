/*

This package contains in-process implementations of the strategy's
collaborators: a token bank, a staking contract with warmup and rebase, a
bond depository with linear block vesting and a swap router. They back local
runs and the test suite; the interfaces they satisfy live in venues.

*/

package chainsim

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnknownRoute        = errors.New("no rate configured for route hop")
	ErrMinOutNotMet        = errors.New("swap output below minimum")
	ErrPriceTooHigh        = errors.New("bond price above caller maximum")
	ErrPayoutTooLarge      = errors.New("payout exceeds venue maximum")
)

// Chain is the shared block clock.
type Chain struct {
	mu     sync.Mutex
	height uint64
}

// NewChain starts a chain at height 1.
func NewChain() *Chain {
	return &Chain{height: 1}
}

// Height returns the current block height.
func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

// Advance moves the clock forward by blocks.
func (c *Chain) Advance(blocks uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height += blocks
}

// Bank holds token balances per denom and account.
type Bank struct {
	mu       sync.Mutex
	balances map[string]map[string]sdkmath.Int
}

// NewBank returns an empty bank.
func NewBank() *Bank {
	return &Bank{balances: make(map[string]map[string]sdkmath.Int)}
}

// BalanceOf returns account's balance of denom.
func (b *Bank) BalanceOf(denom, account string) sdkmath.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balanceOf(denom, account)
}

// Transfer moves amount of denom between accounts.
func (b *Bank) Transfer(denom, from, to string, amount sdkmath.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !amount.IsPositive() {
		return nil
	}
	held := b.balanceOf(denom, from)
	if held.LT(amount) {
		return errors.Join(ErrInsufficientBalance,
			fmt.Errorf("%s has %s %s, wants to send %s", from, held.String(), denom, amount.String()))
	}
	b.set(denom, from, held.Sub(amount))
	b.set(denom, to, b.balanceOf(denom, to).Add(amount))
	return nil
}

// Mint creates amount of denom in account.
func (b *Bank) Mint(denom, account string, amount sdkmath.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set(denom, account, b.balanceOf(denom, account).Add(amount))
}

// Burn destroys amount of denom from account, clamped to the balance.
func (b *Bank) Burn(denom, account string, amount sdkmath.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	held := b.balanceOf(denom, account)
	if amount.GT(held) {
		amount = held
	}
	b.set(denom, account, held.Sub(amount))
}

// Holders returns every account with a positive balance of denom.
func (b *Bank) Holders(denom string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	accounts := make([]string, 0, len(b.balances[denom]))
	for account, held := range b.balances[denom] {
		if held.IsPositive() {
			accounts = append(accounts, account)
		}
	}
	return accounts
}

func (b *Bank) balanceOf(denom, account string) sdkmath.Int {
	if held, ok := b.balances[denom][account]; ok {
		return held
	}
	return sdkmath.ZeroInt()
}

func (b *Bank) set(denom, account string, amount sdkmath.Int) {
	if b.balances[denom] == nil {
		b.balances[denom] = make(map[string]sdkmath.Int)
	}
	b.balances[denom][account] = amount
}
