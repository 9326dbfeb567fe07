package core

// apply.go implements the mutating apply half of the transaction state
// machine. Apply is only ever called after Verify has already accepted tx;
// it still re-checks the state-dependent guards (the nonce CAS, checked
// balance arithmetic, energy consumption) because the state it runs against
// may have shifted since Verify ran against an older snapshot. Format, fee,
// reference and signature checks are not repeated.

import "context"

// WriteState is the mutating view of state that Apply runs against. An
// implementation stages every mutation locally and only exposes it to other
// transactions once commitAll succeeds; Apply itself never needs to know
// whether it is running sequentially or inside a parallel adapter.
type WriteState interface {
	ReadState

	// CASNonce attempts to atomically move the sender's nonce from expected
	// to expected+1, returning false if the current nonce no longer matches
	// expected.
	CASNonce(pub PublicKey, expected uint64) bool

	// Deduct subtracts amount of asset from pub using checked arithmetic,
	// returning ErrUnderflow if the balance would go negative.
	Deduct(pub PublicKey, asset Asset, amount Amount) error

	// Credit adds amount of asset to pub using checked arithmetic, returning
	// ErrOverflow on wraparound.
	Credit(pub PublicKey, asset Asset, amount Amount) error

	SetMultiSig(pub PublicKey, policy *MultiSigPolicy)
	AddBurned(asset Asset, amount Amount)
	AddGasFee(amount Amount)
	ConsumeEnergy(pub PublicKey, amount uint64) error
	FreezeTOSForEnergy(pub PublicKey, amount Amount, duration FreezeDuration, topoheight Topoheight) (uint64, error)
	UnfreezeTOS(pub PublicKey, amount Amount, topoheight Topoheight) (uint64, error)

	// Contract returns the contract executor collaborator for Invoke/Deploy
	// bodies.
	Contract() ContractExecutor
	BlockContext() BlockContext
}

// BlockContext carries the immutable per-block values Apply needs for
// contract invocation and deployment.
type BlockContext struct {
	Topoheight     Topoheight
	BlockHash      Hash
	BlockHeight    uint64
	BlockTimestamp uint64
}

// Apply runs the mutating steps in strict order. Any non-nil return means
// no part of tx's mutations were committed to shared
// state; the caller (the adapter in parallel.go, or the sequential
// executor) is responsible for ensuring none of WriteState's methods leak
// partial effects on failure, typically by staging mutations locally and
// only committing after Apply returns nil.
func Apply(ctx context.Context, txHash Hash, tx *Transaction, state WriteState) error {
	// Step 1: compare-and-swap nonce.
	if !state.CASNonce(tx.Source, tx.Nonce) {
		return ErrNonceConflict
	}

	// Step 2: deduct sender (body spend plus TOS fee).
	spend := make(map[Asset]Amount)
	if err := accumulateSpend(tx, spend); err != nil {
		return err
	}
	if tx.FeeType == FeeTypeTOS {
		spend[TOS_ASSET] += tx.Fee
	}
	for asset, amount := range spend {
		if amount == 0 {
			continue
		}
		if err := state.Deduct(tx.Source, asset, amount); err != nil {
			return err
		}
	}

	// Step 3: credit receivers.
	if tx.Body.Kind == BodyKindTransfer {
		for _, t := range tx.Body.Transfers {
			if err := state.Credit(t.Destination, t.Asset, t.Amount); err != nil {
				return err
			}
		}
	}

	// Step 4: per-variant side effects.
	if err := applySideEffects(ctx, txHash, tx, state); err != nil {
		return err
	}

	// Step 5: account fees.
	switch tx.FeeType {
	case FeeTypeTOS:
		state.AddGasFee(tx.Fee)
	case FeeTypeEnergy:
		cost := EnergyCost(tx.Body.Kind, len(tx.Body.Transfers))
		if err := state.ConsumeEnergy(tx.Source, cost); err != nil {
			return err
		}
	case FeeTypeUNO:
		// UNO fee accounting happens against the encrypted balance via the
		// state store's cipher-balance setters; the core engine does not
		// interpret ciphertext contents.
	}

	// Step 6: commit is the caller's responsibility (commitAll on the
	// adapter); by this point every mutation above has only been staged.
	return nil
}

func applySideEffects(ctx context.Context, txHash Hash, tx *Transaction, state WriteState) error {
	switch tx.Body.Kind {
	case BodyKindTransfer:
		// Already covered by deduct/credit above.
		return nil

	case BodyKindBurn:
		state.AddBurned(tx.Body.Burn.Asset, tx.Body.Burn.Amount)
		return nil

	case BodyKindMultiSig:
		policy := tx.Body.MultiSig
		if policy.IsDeleteSentinel() {
			state.SetMultiSig(tx.Source, nil)
		} else {
			state.SetMultiSig(tx.Source, policy)
		}
		return nil

	case BodyKindContractInvoke:
		inv := tx.Body.ContractInvoke
		bc := state.BlockContext()
		out, err := state.Contract().Execute(ctx, ExecutionInput{
			Contract:       inv.Contract,
			Topoheight:     bc.Topoheight,
			BlockHash:      bc.BlockHash,
			BlockHeight:    bc.BlockHeight,
			BlockTimestamp: bc.BlockTimestamp,
			TxHash:         txHash,
			InputData:      inv.InputData,
			MaxGas:         inv.MaxGas,
		})
		if err != nil {
			return err
		}
		for _, transfer := range out.Transfers {
			if err := state.Credit(transfer.Destination, transfer.Asset, transfer.Amount); err != nil {
				return err
			}
		}
		return nil

	case BodyKindContractDeploy:
		d := tx.Body.ContractDeploy
		bc := state.BlockContext()
		contractHash := HashData(d.Bytecode)
		if len(d.ConstructorArg) == 0 {
			return nil
		}
		_, err := state.Contract().Execute(ctx, ExecutionInput{
			Contract:       contractHash,
			Topoheight:     bc.Topoheight,
			BlockHash:      bc.BlockHash,
			BlockHeight:    bc.BlockHeight,
			BlockTimestamp: bc.BlockTimestamp,
			TxHash:         txHash,
			InputData:      d.ConstructorArg,
			MaxGas:         d.MaxGas,
		})
		return err

	case BodyKindEnergyFreeze:
		f := tx.Body.EnergyFreeze
		duration, err := NewFreezeDuration(f.DurationDays)
		if err != nil {
			return ErrFormatRejected
		}
		_, err = state.FreezeTOSForEnergy(tx.Source, f.Amount, duration, state.CurrentTopoheight())
		return err

	case BodyKindEnergyUnfreeze:
		u := tx.Body.EnergyUnfreeze
		if _, err := state.UnfreezeTOS(tx.Source, u.Amount, state.CurrentTopoheight()); err != nil {
			return err
		}
		// UnfreezeTOS releases whole TOS only; return that amount to the balance.
		return state.Credit(tx.Source, TOS_ASSET, (u.Amount/COIN_VALUE)*COIN_VALUE)

	default:
		return nil
	}
}
