package core

// gas.go prices each transaction body kind with a minimum TOS fee and an
// equivalent energy cost, modeled on gas_table.go's map-plus-default-
// fallback pattern, generalized from per-opcode pricing to
// per-transaction-body-kind pricing since this engine has no VM opcode
// stream of its own.

// BodyKind identifies which TransactionBody variant a Transaction carries.
type BodyKind uint8

const (
	BodyKindTransfer BodyKind = iota
	BodyKindBurn
	BodyKindMultiSig
	BodyKindContractInvoke
	BodyKindContractDeploy
	BodyKindEnergyFreeze
	BodyKindEnergyUnfreeze
)

// DefaultMinFee is charged for any body kind missing from minFeeTable; kept
// deliberately high so an un-priced variant cannot slip through as free.
const DefaultMinFee Amount = 100_000

// minFeeTable holds the base minimum TOS fee, in smallest units, for each
// transaction body kind.
var minFeeTable = map[BodyKind]Amount{
	BodyKindTransfer:       1_000,
	BodyKindBurn:           1_000,
	BodyKindMultiSig:       2_000,
	BodyKindContractInvoke: 5_000,
	BodyKindContractDeploy: 50_000,
	BodyKindEnergyFreeze:   1_000,
	BodyKindEnergyUnfreeze: 1_000,
}

// MinFee returns the minimum acceptable TOS fee for a body kind, scaled by
// transferCount for Transfer bodies (one unit of base fee per output).
func MinFee(kind BodyKind, transferCount int) Amount {
	base, ok := minFeeTable[kind]
	if !ok {
		base = DefaultMinFee
	}
	if kind == BodyKindTransfer && transferCount > 1 {
		return base * Amount(transferCount)
	}
	return base
}

// energyCostTable holds the energy-unit cost charged when fee_type ==
// Energy. Only Transfer bodies may pay with energy.
var energyCostTable = map[BodyKind]uint64{
	BodyKindTransfer: 10,
}

// EnergyCost returns the energy units required to cover a body kind's fee
// when paid via the Energy fee type, scaled by transferCount.
func EnergyCost(kind BodyKind, transferCount int) uint64 {
	base, ok := energyCostTable[kind]
	if !ok {
		return 0
	}
	if transferCount > 1 {
		return base * uint64(transferCount)
	}
	return base
}
