package fees

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScheduleValidation(t *testing.T) {
	s, err := NewSchedule(300, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), s.ServiceBps())
	assert.Equal(t, uint64(500), s.WithdrawalBps())

	_, err = NewSchedule(301, 100)
	assert.ErrorIs(t, err, ErrServiceFeeTooHigh)

	_, err = NewSchedule(100, 501)
	assert.ErrorIs(t, err, ErrWithdrawalFeeTooHigh)

	s, err = NewSchedule(0, 0)
	require.NoError(t, err)
	assert.True(t, s.ServiceFee(sdkmath.NewInt(1_000_000)).IsZero())
	assert.True(t, s.WithdrawalFee(sdkmath.NewInt(1_000_000)).IsZero())
}

func TestFeeFloorDivision(t *testing.T) {
	s, err := NewSchedule(300, 100)
	require.NoError(t, err)

	// 3% of 1000 is exactly 30
	assert.Equal(t, sdkmath.NewInt(30), s.ServiceFee(sdkmath.NewInt(1000)))

	// 3% of 1001 floors to 30, never rounds up
	assert.Equal(t, sdkmath.NewInt(30), s.ServiceFee(sdkmath.NewInt(1001)))

	// amounts too small to produce a fee pay nothing
	assert.True(t, s.ServiceFee(sdkmath.NewInt(33)).IsZero())
	assert.True(t, s.WithdrawalFee(sdkmath.NewInt(99)).IsZero())

	// 1% of 1000 with 9 decimals of headroom
	assert.Equal(t, sdkmath.NewInt(10_000_000_000),
		s.WithdrawalFee(sdkmath.NewInt(1_000_000_000_000)))
}

func TestFeeNonPositiveAmounts(t *testing.T) {
	s := DefaultSchedule()
	assert.True(t, s.ServiceFee(sdkmath.ZeroInt()).IsZero())
	assert.True(t, s.ServiceFee(sdkmath.NewInt(-500)).IsZero())
	assert.True(t, s.WithdrawalFee(sdkmath.NewInt(-1)).IsZero())
}

func TestScheduleUpdates(t *testing.T) {
	s := DefaultSchedule()

	updated, err := s.WithServiceBps(150)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), updated.ServiceBps())
	assert.Equal(t, s.WithdrawalBps(), updated.WithdrawalBps())

	_, err = s.WithServiceBps(MaxServiceFeeBps + 1)
	assert.ErrorIs(t, err, ErrServiceFeeTooHigh)

	updated, err = s.WithWithdrawalBps(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), updated.WithdrawalBps())

	_, err = s.WithWithdrawalBps(MaxWithdrawalFeeBps + 1)
	assert.ErrorIs(t, err, ErrWithdrawalFeeTooHigh)
}
