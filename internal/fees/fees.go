/*

This file contains the fee engine: basis-point fee schedules with hard caps,
applied with floor division so the fee always rounds in the depositor's favor.

*/

package fees

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

const (
	// BpsDenominator is the basis-point scale (10000 bps = 100%).
	BpsDenominator = 10000

	// MaxServiceFeeBps caps the performance fee taken on bond entry and on
	// each vested payout (3%).
	MaxServiceFeeBps = 300

	// MaxWithdrawalFeeBps caps the fee retained from depositor payouts (5%).
	MaxWithdrawalFeeBps = 500

	// DefaultServiceFeeBps is the rate applied when none is configured.
	DefaultServiceFeeBps = 300

	// DefaultWithdrawalFeeBps is the rate applied when none is configured.
	DefaultWithdrawalFeeBps = 100
)

var (
	ErrServiceFeeTooHigh    = errors.New("service fee exceeds cap")
	ErrWithdrawalFeeTooHigh = errors.New("withdrawal fee exceeds cap")
)

// Schedule is a validated pair of fee rates. The zero value charges nothing;
// use DefaultSchedule or NewSchedule for configured rates.
type Schedule struct {
	serviceBps    uint64
	withdrawalBps uint64
}

// NewSchedule validates the given rates against the hard caps.
func NewSchedule(serviceBps, withdrawalBps uint64) (Schedule, error) {
	if serviceBps > MaxServiceFeeBps {
		return Schedule{}, errors.Join(ErrServiceFeeTooHigh,
			fmt.Errorf("got %d bps, cap is %d bps", serviceBps, MaxServiceFeeBps))
	}
	if withdrawalBps > MaxWithdrawalFeeBps {
		return Schedule{}, errors.Join(ErrWithdrawalFeeTooHigh,
			fmt.Errorf("got %d bps, cap is %d bps", withdrawalBps, MaxWithdrawalFeeBps))
	}
	return Schedule{serviceBps: serviceBps, withdrawalBps: withdrawalBps}, nil
}

// DefaultSchedule returns the standard fee configuration.
func DefaultSchedule() Schedule {
	return Schedule{
		serviceBps:    DefaultServiceFeeBps,
		withdrawalBps: DefaultWithdrawalFeeBps,
	}
}

// ServiceBps returns the current service fee rate.
func (s Schedule) ServiceBps() uint64 { return s.serviceBps }

// WithdrawalBps returns the current withdrawal fee rate.
func (s Schedule) WithdrawalBps() uint64 { return s.withdrawalBps }

// WithServiceBps returns a copy of the schedule with a new service rate.
func (s Schedule) WithServiceBps(bps uint64) (Schedule, error) {
	return NewSchedule(bps, s.withdrawalBps)
}

// WithWithdrawalBps returns a copy of the schedule with a new withdrawal rate.
func (s Schedule) WithWithdrawalBps(bps uint64) (Schedule, error) {
	return NewSchedule(s.serviceBps, bps)
}

// ServiceFee returns the service fee on amount, floored.
func (s Schedule) ServiceFee(amount sdkmath.Int) sdkmath.Int {
	return apply(amount, s.serviceBps)
}

// WithdrawalFee returns the withdrawal fee on amount, floored.
func (s Schedule) WithdrawalFee(amount sdkmath.Int) sdkmath.Int {
	return apply(amount, s.withdrawalBps)
}

// apply computes amount*bps/10000 with floor division. Amounts below
// 10000/bps therefore pay no fee at all.
func apply(amount sdkmath.Int, bps uint64) sdkmath.Int {
	if !amount.IsPositive() || bps == 0 {
		return sdkmath.ZeroInt()
	}
	return amount.MulRaw(int64(bps)).QuoRaw(BpsDenominator)
}
