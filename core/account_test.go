package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAccountIsZeroValued(t *testing.T) {
	acc := NewAccount(5)
	require.Equal(t, Topoheight(5), acc.RegisteredAt)
	require.Equal(t, uint64(0), acc.Nonce)
	require.Equal(t, Amount(0), acc.BalanceOf(TOS_ASSET))
	require.Nil(t, acc.MultiSig)
	require.Nil(t, acc.Energy)
}

func TestAccountEnsureEnergyIsIdempotent(t *testing.T) {
	acc := NewAccount(0)
	e1 := acc.EnsureEnergy()
	e2 := acc.EnsureEnergy()
	require.Same(t, e1, e2)
}

func TestAccountCloneIsIndependent(t *testing.T) {
	acc := NewAccount(0)
	acc.Balances[TOS_ASSET] = 100
	acc.MultiSig = &MultiSigPolicy{Threshold: 1, Participants: []PublicKey{{1}}}
	acc.EnsureEnergy()

	clone := acc.Clone()
	clone.Balances[TOS_ASSET] = 999
	clone.MultiSig.Threshold = 2
	clone.MultiSig.Participants[0] = PublicKey{2}

	require.Equal(t, Amount(100), acc.BalanceOf(TOS_ASSET))
	require.Equal(t, uint8(1), acc.MultiSig.Threshold)
	require.Equal(t, PublicKey{1}, acc.MultiSig.Participants[0])
}

func TestMultiSigPolicyDeleteSentinel(t *testing.T) {
	require.True(t, (*MultiSigPolicy)(nil).IsDeleteSentinel())
	require.True(t, (&MultiSigPolicy{}).IsDeleteSentinel())
	require.False(t, (&MultiSigPolicy{Threshold: 1, Participants: []PublicKey{{1}}}).IsDeleteSentinel())
}

func TestMultiSigPolicyValid(t *testing.T) {
	require.True(t, (&MultiSigPolicy{Threshold: 2, Participants: []PublicKey{{1}, {2}}}).Valid())
	require.False(t, (&MultiSigPolicy{Threshold: 3, Participants: []PublicKey{{1}, {2}}}).Valid())
}
