package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeState is a minimal ReadState/WriteState double used to test Verify and
// Apply in isolation from the parallel orchestrator's adapter.
type fakeState struct {
	topoheight Topoheight
	nonces     map[PublicKey]uint64
	balances   map[PublicKey]map[Asset]Amount
	energy     map[PublicKey]*EnergyResource
	multisig   map[PublicKey]*MultiSigPolicy
	ancestors  bool

	burned  Amount
	gasFee  Amount
	contract ContractExecutor
	blockCtx BlockContext
}

func newFakeState(topoheight Topoheight) *fakeState {
	return &fakeState{
		topoheight: topoheight,
		nonces:     make(map[PublicKey]uint64),
		balances:   make(map[PublicKey]map[Asset]Amount),
		energy:     make(map[PublicKey]*EnergyResource),
		multisig:   make(map[PublicKey]*MultiSigPolicy),
		ancestors:  true,
		contract:   NoopContractExecutor{},
	}
}

func (f *fakeState) setBalance(pub PublicKey, asset Asset, amount Amount) {
	if f.balances[pub] == nil {
		f.balances[pub] = make(map[Asset]Amount)
	}
	f.balances[pub][asset] = amount
}

func (f *fakeState) CurrentTopoheight() Topoheight { return f.topoheight }
func (f *fakeState) Nonce(pub PublicKey) uint64    { return f.nonces[pub] }
func (f *fakeState) Balance(pub PublicKey, asset Asset) Amount {
	return f.balances[pub][asset]
}
func (f *fakeState) MultiSig(pub PublicKey) *MultiSigPolicy { return f.multisig[pub] }
func (f *fakeState) Energy(pub PublicKey) *EnergyResource   { return f.energy[pub] }
func (f *fakeState) IsAncestor(Hash, Topoheight) bool        { return f.ancestors }

func (f *fakeState) CASNonce(pub PublicKey, expected uint64) bool {
	if f.nonces[pub] != expected {
		return false
	}
	f.nonces[pub] = expected + 1
	return true
}

func (f *fakeState) Deduct(pub PublicKey, asset Asset, amount Amount) error {
	bal := f.balances[pub][asset]
	if bal < amount {
		return ErrUnderflow
	}
	f.setBalance(pub, asset, bal-amount)
	return nil
}

func (f *fakeState) Credit(pub PublicKey, asset Asset, amount Amount) error {
	bal := f.balances[pub][asset]
	if bal+amount < bal {
		return ErrOverflow
	}
	f.setBalance(pub, asset, bal+amount)
	return nil
}

func (f *fakeState) SetMultiSig(pub PublicKey, policy *MultiSigPolicy) { f.multisig[pub] = policy }
func (f *fakeState) AddBurned(asset Asset, amount Amount)              { f.burned += amount }
func (f *fakeState) AddGasFee(amount Amount)                          { f.gasFee += amount }

func (f *fakeState) ConsumeEnergy(pub PublicKey, amount uint64) error {
	e := f.energy[pub]
	if e == nil {
		e = NewEnergyResource()
		f.energy[pub] = e
	}
	return e.ConsumeEnergy(amount)
}

func (f *fakeState) FreezeTOSForEnergy(pub PublicKey, amount Amount, duration FreezeDuration, topoheight Topoheight) (uint64, error) {
	e := f.energy[pub]
	if e == nil {
		e = NewEnergyResource()
		f.energy[pub] = e
	}
	return e.FreezeTOSForEnergy(amount, duration, topoheight), nil
}

func (f *fakeState) UnfreezeTOS(pub PublicKey, amount Amount, topoheight Topoheight) (uint64, error) {
	e := f.energy[pub]
	if e == nil {
		return 0, ErrInsufficientFunds
	}
	return e.UnfreezeTOS(amount, topoheight)
}

func (f *fakeState) Contract() ContractExecutor { return f.contract }
func (f *fakeState) BlockContext() BlockContext { return f.blockCtx }

func signedTransfer(t *testing.T, fee Amount, feeType FeeType, nonce uint64) (*Transaction, PublicKey, PublicKey) {
	t.Helper()
	pub, priv, err := GenerateKeypair()
	require.NoError(t, err)
	dest, _, err := GenerateKeypair()
	require.NoError(t, err)
	tx := &Transaction{
		Version: 1,
		Nonce:   nonce,
		Fee:     fee,
		FeeType: feeType,
		Body: TransactionBody{
			Kind:      BodyKindTransfer,
			Transfers: []TransferOutput{{Destination: dest, Asset: TOS_ASSET, Amount: 1_000}},
		},
	}
	require.NoError(t, tx.Sign(priv))
	return tx, pub, dest
}

func TestVerifyAcceptsWellFormedTransaction(t *testing.T) {
	tx, pub, _ := signedTransfer(t, 1_000, FeeTypeTOS, 0)
	state := newFakeState(0)
	state.setBalance(pub, TOS_ASSET, 10_000)

	require.NoError(t, Verify(tx.Hash(), tx, state))
}

func TestVerifyRejectsFutureReference(t *testing.T) {
	pub, priv, err := GenerateKeypair()
	require.NoError(t, err)
	dest, _, err := GenerateKeypair()
	require.NoError(t, err)
	tx := &Transaction{
		Version:   1,
		Fee:       1_000,
		FeeType:   FeeTypeTOS,
		Reference: Reference{Topoheight: 5},
		Body: TransactionBody{
			Kind:      BodyKindTransfer,
			Transfers: []TransferOutput{{Destination: dest, Asset: TOS_ASSET, Amount: 1_000}},
		},
	}
	require.NoError(t, tx.Sign(priv))

	state := newFakeState(0)
	state.setBalance(pub, TOS_ASSET, 10_000)
	require.ErrorIs(t, Verify(tx.Hash(), tx, state), ErrFormatRejected)
}

func TestVerifyRejectsNonAncestorReference(t *testing.T) {
	tx, pub, _ := signedTransfer(t, 1_000, FeeTypeTOS, 0)
	state := newFakeState(0)
	state.setBalance(pub, TOS_ASSET, 10_000)
	state.ancestors = false

	require.ErrorIs(t, Verify(tx.Hash(), tx, state), ErrFormatRejected)
}

func TestVerifyRejectsSelfTransfer(t *testing.T) {
	pub, priv, err := GenerateKeypair()
	require.NoError(t, err)
	tx := &Transaction{
		Version: 1,
		Fee:     1_000,
		FeeType: FeeTypeTOS,
		Body: TransactionBody{
			Kind:      BodyKindTransfer,
			Transfers: []TransferOutput{{Destination: pub, Asset: TOS_ASSET, Amount: 1}},
		},
	}
	require.NoError(t, tx.Sign(priv))

	state := newFakeState(0)
	state.setBalance(pub, TOS_ASSET, 10_000)
	require.ErrorIs(t, Verify(tx.Hash(), tx, state), ErrFormatRejected)
}

func TestVerifyRejectsTooManyTransfers(t *testing.T) {
	pub, priv, err := GenerateKeypair()
	require.NoError(t, err)
	outputs := make([]TransferOutput, MaxTransfersPerTx+1)
	for i := range outputs {
		dest, _, err := GenerateKeypair()
		require.NoError(t, err)
		outputs[i] = TransferOutput{Destination: dest, Asset: TOS_ASSET, Amount: 1}
	}
	tx := &Transaction{
		Version: 1,
		Fee:     1_000,
		FeeType: FeeTypeTOS,
		Body:    TransactionBody{Kind: BodyKindTransfer, Transfers: outputs},
	}
	require.NoError(t, tx.Sign(priv))

	state := newFakeState(0)
	state.setBalance(pub, TOS_ASSET, 1_000_000)
	require.ErrorIs(t, Verify(tx.Hash(), tx, state), ErrFormatRejected)
}

func TestVerifyRejectsLowFee(t *testing.T) {
	tx, pub, _ := signedTransfer(t, 1, FeeTypeTOS, 0)
	state := newFakeState(0)
	state.setBalance(pub, TOS_ASSET, 10_000)
	require.ErrorIs(t, Verify(tx.Hash(), tx, state), ErrFeeTooLow)
}

func TestVerifyRejectsNonceMismatch(t *testing.T) {
	tx, pub, _ := signedTransfer(t, 1_000, FeeTypeTOS, 5)
	state := newFakeState(0)
	state.setBalance(pub, TOS_ASSET, 10_000)
	require.ErrorIs(t, Verify(tx.Hash(), tx, state), ErrNonceMismatch)
}

func TestVerifyRejectsInsufficientFunds(t *testing.T) {
	tx, pub, _ := signedTransfer(t, 1_000, FeeTypeTOS, 0)
	state := newFakeState(0)
	state.setBalance(pub, TOS_ASSET, 500)
	require.ErrorIs(t, Verify(tx.Hash(), tx, state), ErrInsufficientFunds)
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	tx, pub, _ := signedTransfer(t, 1_000, FeeTypeTOS, 0)
	tx.Signature[0] ^= 0xFF
	state := newFakeState(0)
	state.setBalance(pub, TOS_ASSET, 10_000)
	require.ErrorIs(t, Verify(tx.Hash(), tx, state), ErrBadSignature)
}

func TestVerifyEnergyFeeRequiresTransferBody(t *testing.T) {
	pub, priv, err := GenerateKeypair()
	require.NoError(t, err)
	tx := &Transaction{
		Version: 1,
		FeeType: FeeTypeEnergy,
		Body:    TransactionBody{Kind: BodyKindBurn, Burn: &BurnBody{Asset: TOS_ASSET, Amount: 1}},
	}
	require.NoError(t, tx.Sign(priv))

	state := newFakeState(0)
	state.energy[pub] = NewEnergyResource()
	require.ErrorIs(t, Verify(tx.Hash(), tx, state), ErrFormatRejected)
}

func TestVerifyEnergyFeeRequiresEnoughEnergy(t *testing.T) {
	tx, pub, _ := signedTransfer(t, 0, FeeTypeEnergy, 0)
	state := newFakeState(0)
	state.setBalance(pub, TOS_ASSET, 10_000)
	require.ErrorIs(t, Verify(tx.Hash(), tx, state), ErrInsufficientEnergy)

	fd, err := NewFreezeDuration(90)
	require.NoError(t, err)
	er := NewEnergyResource()
	er.FreezeTOSForEnergy(COIN_VALUE, fd, 0)
	state.energy[pub] = er
	require.NoError(t, Verify(tx.Hash(), tx, state))
}
