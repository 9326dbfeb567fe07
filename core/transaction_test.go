package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleTransfer(t *testing.T) (*Transaction, PublicKey) {
	t.Helper()
	_, priv, err := GenerateKeypair()
	require.NoError(t, err)
	dest, _, err := GenerateKeypair()
	require.NoError(t, err)

	tx := &Transaction{
		Version: 1,
		Nonce:   3,
		Fee:     1_000,
		FeeType: FeeTypeTOS,
		Body: TransactionBody{
			Kind:      BodyKindTransfer,
			Transfers: []TransferOutput{{Destination: dest, Asset: TOS_ASSET, Amount: 5_000}},
		},
	}
	require.NoError(t, tx.Sign(priv))
	return tx, dest
}

func TestTransactionSignSetsSourceAndVerifies(t *testing.T) {
	tx, _ := sampleTransfer(t)
	require.False(t, tx.Source.IsZero())
	require.True(t, tx.VerifySignature())
}

func TestTransactionVerifySignatureRejectsTamperedField(t *testing.T) {
	tx, _ := sampleTransfer(t)
	tx.Nonce++
	require.False(t, tx.VerifySignature())
}

func TestTransactionHashChangesWithSignature(t *testing.T) {
	tx, _ := sampleTransfer(t)
	h1 := tx.Hash()

	_, priv2, err := GenerateKeypair()
	require.NoError(t, err)
	require.NoError(t, tx.Sign(priv2))
	h2 := tx.Hash()

	require.NotEqual(t, h1, h2)
}

func TestTransactionHashStableAcrossCalls(t *testing.T) {
	tx, _ := sampleTransfer(t)
	require.Equal(t, tx.Hash(), tx.Hash())
}

func TestEncodeBodyDiffersByKind(t *testing.T) {
	transfer := TransactionBody{Kind: BodyKindTransfer, Transfers: []TransferOutput{{Amount: 1}}}
	burn := TransactionBody{Kind: BodyKindBurn, Burn: &BurnBody{Amount: 1}}
	require.NotEqual(t, encodeBody(&transfer), encodeBody(&burn))
}

func TestEncodeBodyEnergyFreezeCoversAmountAndDuration(t *testing.T) {
	a := TransactionBody{Kind: BodyKindEnergyFreeze, EnergyFreeze: &EnergyFreezeBody{Amount: COIN_VALUE, DurationDays: 7}}
	b := TransactionBody{Kind: BodyKindEnergyFreeze, EnergyFreeze: &EnergyFreezeBody{Amount: COIN_VALUE, DurationDays: 30}}
	require.NotEqual(t, encodeBody(&a), encodeBody(&b))
}
