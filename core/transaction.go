package core

// transaction.go defines the Transaction wire type and its tagged-union
// body, modeled on transactions.go's HashTx/Sign pattern (domain-separated
// sha256 over field bytes, then sign the hash) and generalized from a
// single Transfer-shaped transaction to the seven body variants this
// engine's verify/apply state machine accepts.

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
)

// FeeType selects what asset a transaction's fee is paid in.
type FeeType uint8

const (
	FeeTypeTOS FeeType = iota
	FeeTypeEnergy
	FeeTypeUNO
)

// TransferOutput is one destination/asset/amount entry of a Transfer body.
type TransferOutput struct {
	Destination PublicKey `json:"destination"`
	Asset       Asset     `json:"asset"`
	Amount      Amount    `json:"amount"`
}

// MaxTransfersPerTx bounds the number of outputs a single Transfer body may
// carry.
const MaxTransfersPerTx = 64

// TransactionBody is the tagged union of transaction effects. Exactly one of
// the pointer-shaped fields matching Kind is expected to be non-nil; callers
// use Kind as the single source of truth rather than inferring from which
// field is set.
type TransactionBody struct {
	Kind BodyKind `json:"kind"`

	Transfers []TransferOutput `json:"transfers,omitempty"`

	Burn *BurnBody `json:"burn,omitempty"`

	MultiSig *MultiSigPolicy `json:"multisig,omitempty"`

	ContractInvoke *ContractInvokeBody `json:"contract_invoke,omitempty"`

	ContractDeploy *ContractDeployBody `json:"contract_deploy,omitempty"`

	EnergyFreeze *EnergyFreezeBody `json:"energy_freeze,omitempty"`

	EnergyUnfreeze *EnergyUnfreezeBody `json:"energy_unfreeze,omitempty"`
}

// BurnBody destroys amount of asset from the sender, with no recipient.
type BurnBody struct {
	Asset  Asset  `json:"asset"`
	Amount Amount `json:"amount"`
}

// ContractInvokeBody calls into a deployed contract module.
type ContractInvokeBody struct {
	Contract          Hash   `json:"contract"`
	Deposits          []TransferOutput `json:"deposits,omitempty"`
	InputData         []byte `json:"input_data,omitempty"`
	MaxGas            uint64 `json:"max_gas"`
}

// ContractDeployBody registers a new contract module by its content hash.
type ContractDeployBody struct {
	Bytecode       []byte `json:"bytecode"`
	ConstructorArg []byte `json:"constructor_arg,omitempty"`
	MaxGas         uint64 `json:"max_gas"`
}

// EnergyFreezeBody locks TOS to generate energy.
type EnergyFreezeBody struct {
	Amount      Amount `json:"amount"`
	DurationDays uint32 `json:"duration_days"`
}

// EnergyUnfreezeBody releases previously frozen TOS.
type EnergyUnfreezeBody struct {
	Amount Amount `json:"amount"`
}

// Transaction is the signed, immutable unit of state mutation. Once
// constructed and signed, a Transaction is never mutated in place;
// verify and apply operate against the state, not the transaction.
type Transaction struct {
	Source    PublicKey        `json:"source"`
	Version   uint8            `json:"version"`
	Nonce     uint64           `json:"nonce"`
	Reference Reference        `json:"reference"`
	Fee       Amount           `json:"fee"`
	FeeType   FeeType          `json:"fee_type"`
	Body      TransactionBody  `json:"body"`
	Signature Signature        `json:"signature"`
}

// signingMessage renders the fields covered by the signature, domain
// separated from the PoW Worker's tags and from Hash() below so no two distinct
// purposes can ever hash to the same preimage.
func (tx *Transaction) signingMessage() []byte {
	h := sha256.New()
	h.Write([]byte{0x03}) // domain tag: transaction signing message
	h.Write(tx.Source[:])
	h.Write([]byte{tx.Version})

	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], tx.Nonce)
	h.Write(scratch[:])

	binary.BigEndian.PutUint64(scratch[:], tx.Reference.Topoheight)
	h.Write(scratch[:])
	h.Write(tx.Reference.BlockHash[:])

	binary.BigEndian.PutUint64(scratch[:], tx.Fee)
	h.Write(scratch[:])
	h.Write([]byte{byte(tx.FeeType)})

	h.Write(encodeBody(&tx.Body))

	return h.Sum(nil)
}

// Hash returns the transaction's content hash, used as tx_hash throughout
// verify/apply and the scheduled execution processor.
func (tx *Transaction) Hash() Hash {
	msg := tx.signingMessage()
	msg = append(msg, tx.Signature[:]...)
	return HashData(msg)
}

// Sign signs tx with priv, setting Source to priv's public key and filling
// Signature.
func (tx *Transaction) Sign(priv ed25519.PrivateKey) error {
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return NewModuleError("signing key is not ed25519")
	}
	copy(tx.Source[:], pub)
	sig, err := Sign(tx.signingMessage(), priv)
	if err != nil {
		return err
	}
	tx.Signature = sig
	return nil
}

// VerifySignature checks tx.Signature against tx.Source over the canonical
// signing message.
func (tx *Transaction) VerifySignature() bool {
	return Verify(tx.signingMessage(), tx.Signature, tx.Source)
}

// encodeBody renders a deterministic byte encoding of body for hashing and
// signing purposes. It intentionally avoids JSON (map iteration order, float
// formatting) in favor of a fixed field order matching the Kind tag.
func encodeBody(b *TransactionBody) []byte {
	out := []byte{byte(b.Kind)}
	var scratch [8]byte

	switch b.Kind {
	case BodyKindTransfer:
		for _, t := range b.Transfers {
			out = append(out, t.Destination[:]...)
			out = append(out, t.Asset[:]...)
			binary.BigEndian.PutUint64(scratch[:], t.Amount)
			out = append(out, scratch[:]...)
		}
	case BodyKindBurn:
		if b.Burn != nil {
			out = append(out, b.Burn.Asset[:]...)
			binary.BigEndian.PutUint64(scratch[:], b.Burn.Amount)
			out = append(out, scratch[:]...)
		}
	case BodyKindMultiSig:
		if b.MultiSig != nil {
			out = append(out, b.MultiSig.Threshold)
			for _, p := range b.MultiSig.Participants {
				out = append(out, p[:]...)
			}
		}
	case BodyKindContractInvoke:
		if inv := b.ContractInvoke; inv != nil {
			out = append(out, inv.Contract[:]...)
			binary.BigEndian.PutUint64(scratch[:], inv.MaxGas)
			out = append(out, scratch[:]...)
			out = append(out, inv.InputData...)
			for _, d := range inv.Deposits {
				out = append(out, d.Destination[:]...)
				out = append(out, d.Asset[:]...)
				binary.BigEndian.PutUint64(scratch[:], d.Amount)
				out = append(out, scratch[:]...)
			}
		}
	case BodyKindContractDeploy:
		if d := b.ContractDeploy; d != nil {
			out = append(out, d.Bytecode...)
			out = append(out, d.ConstructorArg...)
			binary.BigEndian.PutUint64(scratch[:], d.MaxGas)
			out = append(out, scratch[:]...)
		}
	case BodyKindEnergyFreeze:
		if f := b.EnergyFreeze; f != nil {
			binary.BigEndian.PutUint64(scratch[:], f.Amount)
			out = append(out, scratch[:]...)
			binary.BigEndian.PutUint32(scratch[:4], f.DurationDays)
			out = append(out, scratch[:4]...)
		}
	case BodyKindEnergyUnfreeze:
		if u := b.EnergyUnfreeze; u != nil {
			binary.BigEndian.PutUint64(scratch[:], u.Amount)
			out = append(out, scratch[:]...)
		}
	}
	return out
}
