package core

// verify.go implements the read-only verify half of the transaction state
// machine. Verify never writes to state and is safe to call concurrently
// against an immutable snapshot.

// ReadState is the read-only view of state that Verify is checked against.
// Both the sequential executor and each parallel adapter (parallel.go)
// implement this by first consulting their local staged overlay, falling
// back to the shared Store on miss.
type ReadState interface {
	CurrentTopoheight() Topoheight
	Nonce(pub PublicKey) uint64
	Balance(pub PublicKey, asset Asset) Amount
	MultiSig(pub PublicKey) *MultiSigPolicy
	Energy(pub PublicKey) *EnergyResource
	// IsAncestor reports whether blockHash identifies a block that is an
	// ancestor of (or equal to) the block at the current topoheight —
	// required by the reference check in verify step 1.
	IsAncestor(blockHash Hash, topoheight Topoheight) bool
}

// Verify runs the read-only checks against tx. Any non-nil return leaves
// state completely unchanged; the caller has made no writes by
// construction, since Verify never calls a setter.
func Verify(txHash Hash, tx *Transaction, state ReadState) error {
	// Step 1: format pre-verification.
	if tx.Reference.Topoheight > state.CurrentTopoheight() {
		return ErrFormatRejected
	}
	if !state.IsAncestor(tx.Reference.BlockHash, tx.Reference.Topoheight) {
		return ErrFormatRejected
	}
	if tx.Body.Kind == BodyKindTransfer && len(tx.Body.Transfers) > MaxTransfersPerTx {
		return ErrFormatRejected
	}
	if err := verifySelfTransfer(tx); err != nil {
		return err
	}
	if err := verifyBodyShape(tx); err != nil {
		return err
	}

	// Step 2: fee-type validity.
	transferCount := len(tx.Body.Transfers)
	switch tx.FeeType {
	case FeeTypeEnergy:
		if tx.Body.Kind != BodyKindTransfer {
			return ErrFormatRejected
		}
		energy := state.Energy(tx.Source)
		cost := EnergyCost(tx.Body.Kind, transferCount)
		if energy == nil || !energy.HasEnoughEnergy(cost) {
			return ErrInsufficientEnergy
		}
	case FeeTypeTOS:
		if tx.Fee < MinFee(tx.Body.Kind, transferCount) {
			return ErrFeeTooLow
		}
	case FeeTypeUNO:
		// UNO-denominated fees are checked against the encrypted balance by
		// the contract-executor boundary; the core engine performs no UNO
		// fee check here.
	}

	// Step 3: nonce check.
	if tx.Nonce != state.Nonce(tx.Source) {
		return ErrNonceMismatch
	}

	// Step 4: balance check — sum outputs per asset, including the fee when
	// paid in TOS, and compare against the sender's balance as state reports
	// it now. The tx's reference topoheight is not used for this read.
	spend := make(map[Asset]Amount)
	if err := accumulateSpend(tx, spend); err != nil {
		return err
	}
	if tx.FeeType == FeeTypeTOS {
		spend[TOS_ASSET] += tx.Fee
	}
	for asset, amount := range spend {
		if state.Balance(tx.Source, asset) < amount {
			return ErrInsufficientFunds
		}
	}

	// Step 5: signature check.
	if !tx.VerifySignature() {
		return ErrBadSignature
	}

	return nil
}

func verifySelfTransfer(tx *Transaction) error {
	if tx.Body.Kind != BodyKindTransfer {
		return nil
	}
	for _, t := range tx.Body.Transfers {
		if t.Destination == tx.Source {
			return ErrFormatRejected
		}
	}
	return nil
}

func verifyBodyShape(tx *Transaction) error {
	switch tx.Body.Kind {
	case BodyKindBurn:
		if tx.Body.Burn == nil || tx.Body.Burn.Amount == 0 {
			return ErrFormatRejected
		}
	case BodyKindMultiSig:
		if tx.Body.MultiSig != nil && !tx.Body.MultiSig.Valid() {
			return ErrFormatRejected
		}
	case BodyKindEnergyFreeze:
		f := tx.Body.EnergyFreeze
		if f == nil || f.Amount%COIN_VALUE != 0 ||
			f.DurationDays < MinFreezeDurationDays || f.DurationDays > MaxFreezeDurationDays {
			return ErrFormatRejected
		}
	case BodyKindEnergyUnfreeze:
		if tx.Body.EnergyUnfreeze == nil || tx.Body.EnergyUnfreeze.Amount == 0 {
			return ErrFormatRejected
		}
	}
	return nil
}

// accumulateSpend sums the per-asset amounts a transaction's body deducts
// from the sender, excluding the fee (added separately by the caller).
func accumulateSpend(tx *Transaction, spend map[Asset]Amount) error {
	switch tx.Body.Kind {
	case BodyKindTransfer:
		for _, t := range tx.Body.Transfers {
			spend[t.Asset] += t.Amount
		}
	case BodyKindBurn:
		spend[tx.Body.Burn.Asset] += tx.Body.Burn.Amount
	case BodyKindContractInvoke:
		for _, d := range tx.Body.ContractInvoke.Deposits {
			spend[d.Asset] += d.Amount
		}
	case BodyKindEnergyFreeze:
		spend[TOS_ASSET] += tx.Body.EnergyFreeze.Amount
	}
	return nil
}
