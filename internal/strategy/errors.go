package strategy

import "errors"

// Sentinel errors for the strategy's fail-fast validation. Callers match with
// errors.Is; details are attached at the call site via errors.Join.
var (
	ErrNotManager        = errors.New("not manager")
	ErrNotKeeper         = errors.New("not keeper")
	ErrNotVault          = errors.New("not vault")
	ErrAmountNotPositive = errors.New("amount not positive")
	ErrUnapprovedBond    = errors.New("unapproved bond")
	ErrDuplicateBond     = errors.New("bond already listed")
	ErrBondNotListed     = errors.New("bond not listed")
	ErrBondInUse         = errors.New("bond currently open")
	ErrAlreadyBonding    = errors.New("already bonding")
	ErrNotBonding        = errors.New("no open bond")
	ErrBondNotPositive   = errors.New("bond not positive")
	ErrBadRouteStart     = errors.New("route must start with the rebasing token")
	ErrBadRouteEnd       = errors.New("route must end with the bond principal")
	ErrNotFullyVested    = errors.New("not fully vested")
	ErrNotWarmedUp       = errors.New("not warmed up")
	ErrPaused            = errors.New("strategy paused")
	ErrManagedToken      = errors.New("cannot rescue a managed token")
	ErrInsufficientFunds = errors.New("insufficient liquid funds")
	ErrNothingToClaim    = errors.New("nothing to claim")
	ErrEmptyAddress      = errors.New("address must not be empty")
	ErrNilCollaborator   = errors.New("collaborator must not be nil")
	ErrSlippageExceeded  = errors.New("swap output below slippage bound")
	ErrQuoteUnavailable  = errors.New("price quote unavailable")
)
