package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFreezeDurationRewardMultiplier pins the reward curve:
// days -> reward_multiplier is always days*2.
func TestFreezeDurationRewardMultiplier(t *testing.T) {
	cases := []struct {
		days       uint32
		multiplier uint64
	}{
		{3, 6},
		{7, 14},
		{14, 28},
		{30, 60},
		{60, 120},
		{90, 180},
	}
	for _, c := range cases {
		fd, err := NewFreezeDuration(c.days)
		require.NoError(t, err)
		require.Equal(t, c.multiplier, fd.RewardMultiplier())
		require.Equal(t, uint64(c.days)*secondsPerDay, fd.DurationInBlocks())
	}
}

func TestFreezeDurationOutOfRange(t *testing.T) {
	_, err := NewFreezeDuration(2)
	require.Error(t, err)
	_, err = NewFreezeDuration(91)
	require.Error(t, err)
}

func TestFreezeTOSForEnergyTruncatesToWholeCoin(t *testing.T) {
	er := NewEnergyResource()
	fd, err := NewFreezeDuration(7)
	require.NoError(t, err)

	gained := er.FreezeTOSForEnergy(Amount(3*COIN_VALUE+50), fd, 100)
	require.Equal(t, uint64(3*14), gained)
	require.Equal(t, Amount(3*COIN_VALUE), er.FrozenTOS)
	require.Len(t, er.FreezeRecords, 1)
	require.Equal(t, Topoheight(100), er.FreezeRecords[0].FreezeTopoheight)
}

func TestUnfreezeTOSPartialRecomputesProRata(t *testing.T) {
	er := NewEnergyResource()
	fd, err := NewFreezeDuration(30)
	require.NoError(t, err)

	gained := er.FreezeTOSForEnergy(Amount(10*COIN_VALUE), fd, 0)
	require.Equal(t, uint64(10*60), gained)

	unlockAt := er.FreezeRecords[0].UnlockTopoheight
	released, err := er.UnfreezeTOS(Amount(4*COIN_VALUE), unlockAt)
	require.NoError(t, err)
	require.Equal(t, uint64(4*60), released)
	require.Equal(t, Amount(6*COIN_VALUE), er.FrozenTOS)
	require.Len(t, er.FreezeRecords, 1)
	require.Equal(t, uint64(6*60), er.FreezeRecords[0].EnergyGained)
}

func TestUnfreezeTOSInsufficientUnlocked(t *testing.T) {
	er := NewEnergyResource()
	fd, err := NewFreezeDuration(90)
	require.NoError(t, err)
	er.FreezeTOSForEnergy(Amount(1*COIN_VALUE), fd, 0)

	_, err = er.UnfreezeTOS(Amount(1*COIN_VALUE), 1)
	require.Error(t, err)
}

func TestConsumeEnergyRespectsAvailable(t *testing.T) {
	er := NewEnergyResource()
	fd, err := NewFreezeDuration(3)
	require.NoError(t, err)
	er.FreezeTOSForEnergy(Amount(1*COIN_VALUE), fd, 0)

	require.True(t, er.HasEnoughEnergy(er.AvailableEnergy()))
	require.NoError(t, er.ConsumeEnergy(er.AvailableEnergy()))
	require.False(t, er.HasEnoughEnergy(1))
	require.Error(t, er.ConsumeEnergy(1))
}

func TestEnergyResourceCloneIsIndependent(t *testing.T) {
	er := NewEnergyResource()
	fd, err := NewFreezeDuration(3)
	require.NoError(t, err)
	er.FreezeTOSForEnergy(Amount(1*COIN_VALUE), fd, 0)

	clone := er.Clone()
	clone.UsedEnergy = 999
	require.NotEqual(t, er.UsedEnergy, clone.UsedEnergy)

	clone.FreezeRecords[0].EnergyGained = 0
	require.NotEqual(t, er.FreezeRecords[0].EnergyGained, clone.FreezeRecords[0].EnergyGained)
}
