/*

This file contains the types for the reserve/claim queue: per-epoch reserve
periods and per-depositor claims against them.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// ReservePeriod aggregates every withdrawal claim registered while one bond
// cycle was outstanding. Periods are append-only and monotonically indexed;
// index 0 is the "no period" sentinel.
type ReservePeriod struct {
	Index         uint64      `json:"index"`
	TotalReserved sdkmath.Int `json:"total_reserved"` // outstanding (unclaimed) value in this period
	FullyVested   bool        `json:"fully_vested"`
	WarmupExpiry  uint64      `json:"warmup_expiry"` // epoch recorded when the period fully vested
}

// ClaimOfReserves is a depositor's pending exit claim. Amount accumulates
// across reserve calls within the same period; Period is reset to 0 when the
// claim is paid out.
type ClaimOfReserves struct {
	Amount sdkmath.Int `json:"amount"`
	Period uint64      `json:"period"`
}

// ClaimView is the externally visible claim state, with the vesting flag
// resolved against the claim's reserve period.
type ClaimView struct {
	Amount      sdkmath.Int `json:"amount"`
	Period      uint64      `json:"period"`
	FullyVested bool        `json:"fully_vested"`
}
