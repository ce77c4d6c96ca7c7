package chainsim

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
)

// Router simulates a constant-rate swap router with bottomless liquidity.
// Rates are raw-unit multipliers per directed pair, so they also carry any
// decimal shift between denoms.
type Router struct {
	mu      sync.Mutex
	account string
	bank    *Bank

	rates    map[string]sdkmath.LegacyDec // "from->to"
	lpDenoms map[string]string            // "a/b" -> LP denom
	skewBps  int64                        // realized output vs quote, for slippage scenarios
}

// NewRouter wires a router sim against the shared bank.
func NewRouter(account string, bank *Bank) *Router {
	return &Router{
		account:  account,
		bank:     bank,
		rates:    make(map[string]sdkmath.LegacyDec),
		lpDenoms: make(map[string]string),
	}
}

// SetRate configures the directed rate from one denom to another and its
// inverse.
func (r *Router) SetRate(from, to string, rate sdkmath.LegacyDec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rates[from+"->"+to] = rate
	r.rates[to+"->"+from] = sdkmath.LegacyOneDec().Quo(rate)
}

// SetPair registers the LP denom minted for a token pair.
func (r *Router) SetPair(denomA, denomB, lpDenom string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lpDenoms[pairKey(denomA, denomB)] = lpDenom
}

// SetSkewBps makes realized swap outputs deviate from the quote, negative
// for worse-than-quoted fills.
func (r *Router) SetSkewBps(bps int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skewBps = bps
}

// GetAmountsOut quotes amountIn along route hop by hop.
func (r *Router) GetAmountsOut(amountIn sdkmath.Int, route []string) ([]sdkmath.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quote(amountIn, route)
}

// SwapExactTokensForTokens executes the route, enforcing minOut.
func (r *Router) SwapExactTokensForTokens(account string, amountIn, minOut sdkmath.Int, route []string) (sdkmath.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	amounts, err := r.quote(amountIn, route)
	if err != nil {
		return sdkmath.Int{}, err
	}
	out := amounts[len(amounts)-1]
	if r.skewBps != 0 {
		out = out.MulRaw(10000 + r.skewBps).QuoRaw(10000)
	}
	if out.LT(minOut) {
		return sdkmath.Int{}, errors.Join(ErrMinOutNotMet,
			fmt.Errorf("out %s, minimum %s", out.String(), minOut.String()))
	}

	if err := r.bank.Transfer(route[0], account, r.account, amountIn); err != nil {
		return sdkmath.Int{}, err
	}
	r.bank.Mint(route[len(route)-1], account, out)
	return out, nil
}

// AddLiquidity consumes the two amounts in the pair's configured ratio and
// mints LP tokens. Unconsumed input stays with the account.
func (r *Router) AddLiquidity(account, denomA, denomB string, amountA, amountB sdkmath.Int) (sdkmath.Int, sdkmath.Int, sdkmath.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lpDenom, ok := r.lpDenoms[pairKey(denomA, denomB)]
	if !ok {
		return sdkmath.Int{}, sdkmath.Int{}, sdkmath.Int{}, errors.Join(ErrUnknownRoute,
			fmt.Errorf("no pool for %s/%s", denomA, denomB))
	}
	rate, ok := r.rates[denomA+"->"+denomB]
	if !ok {
		return sdkmath.Int{}, sdkmath.Int{}, sdkmath.Int{}, errors.Join(ErrUnknownRoute,
			fmt.Errorf("no rate for %s->%s", denomA, denomB))
	}

	// required B for all of A at the pool ratio; scale A down if B is short
	useA := amountA
	needB := rate.MulInt(amountA).TruncateInt()
	useB := needB
	if needB.GT(amountB) {
		useB = amountB
		useA = sdkmath.LegacyNewDecFromInt(amountB).Quo(rate).TruncateInt()
	}

	if err := r.bank.Transfer(denomA, account, r.account, useA); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, sdkmath.Int{}, err
	}
	if err := r.bank.Transfer(denomB, account, r.account, useB); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, sdkmath.Int{}, err
	}

	lpMinted := useA.Add(useB)
	r.bank.Mint(lpDenom, account, lpMinted)
	return useA, useB, lpMinted, nil
}

// quote walks the route applying each hop's rate. Caller holds the lock.
func (r *Router) quote(amountIn sdkmath.Int, route []string) ([]sdkmath.Int, error) {
	if len(route) < 1 {
		return nil, errors.Join(ErrUnknownRoute, errors.New("empty route"))
	}
	amounts := make([]sdkmath.Int, 0, len(route))
	amounts = append(amounts, amountIn)
	current := amountIn
	for i := 0; i+1 < len(route); i++ {
		rate, ok := r.rates[route[i]+"->"+route[i+1]]
		if !ok {
			return nil, errors.Join(ErrUnknownRoute, fmt.Errorf("%s->%s", route[i], route[i+1]))
		}
		current = rate.MulInt(current).TruncateInt()
		amounts = append(amounts, current)
	}
	return amounts, nil
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "/" + b
}
