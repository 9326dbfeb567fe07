package core

// account.go implements the per-account state model, modeled on
// account_and_balance_operations.go's thread-safe wrapper over a balance
// map, generalized from a single-asset Address ledger to a multi-asset
// PublicKey ledger with nonce, multisig and energy fields.

// MultiSigPolicy is an ordered set of participant keys plus a signing
// threshold. The sentinel {Threshold: 0, Participants: nil} means "delete
// policy" wherever it is written through the state store.
type MultiSigPolicy struct {
	Participants []PublicKey `json:"participants"`
	Threshold    uint8       `json:"threshold"`
}

// IsDeleteSentinel reports whether p is the multisig-policy delete sentinel.
func (p *MultiSigPolicy) IsDeleteSentinel() bool {
	return p == nil || (p.Threshold == 0 && len(p.Participants) == 0)
}

// Valid reports whether the policy's threshold is achievable.
func (p *MultiSigPolicy) Valid() bool {
	if p == nil {
		return true
	}
	return int(p.Threshold) <= len(p.Participants)
}

// Account is the per-public-key ledger entry. Accounts are implicitly
// created on first credit; RegisteredAt records the first
// topoheight the account was observed at.
type Account struct {
	Nonce        uint64               `json:"nonce"`
	Balances     map[Asset]Amount     `json:"balances"`
	MultiSig     *MultiSigPolicy      `json:"multisig,omitempty"`
	Energy       *EnergyResource      `json:"energy,omitempty"`
	RegisteredAt Topoheight           `json:"registered_at"`
}

// NewAccount returns a freshly registered, zero-balance account.
func NewAccount(registeredAt Topoheight) *Account {
	return &Account{
		Balances:     make(map[Asset]Amount),
		RegisteredAt: registeredAt,
	}
}

// BalanceOf returns the account's balance for asset, defaulting to zero.
func (a *Account) BalanceOf(asset Asset) Amount {
	if a.Balances == nil {
		return 0
	}
	return a.Balances[asset]
}

// EnsureEnergy lazily attaches an EnergyResource the first time it is
// needed.
func (a *Account) EnsureEnergy() *EnergyResource {
	if a.Energy == nil {
		a.Energy = NewEnergyResource()
	}
	return a.Energy
}

// Clone returns a deep copy of the account, used by the parallel executor's
// staging adapter to snapshot state before mutation.
func (a *Account) Clone() *Account {
	out := &Account{
		Nonce:        a.Nonce,
		Balances:     make(map[Asset]Amount, len(a.Balances)),
		RegisteredAt: a.RegisteredAt,
	}
	for k, v := range a.Balances {
		out.Balances[k] = v
	}
	if a.MultiSig != nil {
		ms := *a.MultiSig
		ms.Participants = append([]PublicKey(nil), a.MultiSig.Participants...)
		out.MultiSig = &ms
	}
	if a.Energy != nil {
		out.Energy = a.Energy.Clone()
	}
	return out
}
