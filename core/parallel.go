package core

// parallel.go implements the parallel execution orchestrator, modeled on
// AccountManager (account_and_balance_operations.go, a mutex-guarded
// wrapper over a ledger) generalized to per-account interior locks plus a
// bounded semaphore guarding lazy loads against the non-reentrant Store,
// and on dao_staking.go's read-modify-write-under-lock idiom for the
// staged mutation bookkeeping.

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// AncestryChecker answers the DAG-ancestry question Verify's reference check
// needs. The block DAG itself is out of scope for this engine; a real
// deployment wires a chain-view implementation here.
type AncestryChecker interface {
	IsAncestor(blockHash Hash, topoheight Topoheight) bool
}

// TrivialAncestryChecker accepts every reference; useful for tests that do
// not exercise DAG-ancestry rejection.
type TrivialAncestryChecker struct{}

func (TrivialAncestryChecker) IsAncestor(Hash, Topoheight) bool { return true }

type accountEntry struct {
	mu      sync.Mutex
	account *Account
	loaded  bool
}

// AccountTable is the shared, concurrently-accessed account map: per-account
// entries under a fine-grained concurrent map. Lazy loads against the
// backing Store are serialized by a single-permit semaphore because Store
// implementations may be non-reentrant.
type AccountTable struct {
	store      Store
	topoheight Topoheight

	mu      sync.Mutex // guards creation of new entries only
	entries map[PublicKey]*accountEntry

	loadSem *semaphore.Weighted

	burnedSupply uint64 // atomic
	gasFee       uint64 // atomic

	logger *logrus.Logger
}

// NewAccountTable returns an AccountTable reading through to store as of
// topoheight. It logs through logrus.StandardLogger() until SetLogger
// injects a scoped one.
func NewAccountTable(store Store, topoheight Topoheight) *AccountTable {
	return &AccountTable{
		store:      store,
		topoheight: topoheight,
		entries:    make(map[PublicKey]*accountEntry),
		loadSem:    semaphore.NewWeighted(1),
		logger:     logrus.StandardLogger(),
	}
}

// SetLogger replaces the table's logger, letting a host process route
// rejection and commit logging through its own logrus instance.
func (t *AccountTable) SetLogger(lg *logrus.Logger) {
	if lg != nil {
		t.logger = lg
	}
}

func (t *AccountTable) entryFor(pub PublicKey) *accountEntry {
	t.mu.Lock()
	e, ok := t.entries[pub]
	if !ok {
		e = &accountEntry{}
		t.entries[pub] = e
	}
	t.mu.Unlock()
	return e
}

// load fetches pub's entry, lazily populating it from the Store under the
// table's load semaphore on first access.
func (t *AccountTable) load(ctx context.Context, pub PublicKey) (*accountEntry, error) {
	e := t.entryFor(pub)
	e.mu.Lock()
	if e.loaded {
		e.mu.Unlock()
		return e, nil
	}
	e.mu.Unlock()

	if err := t.loadSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer t.loadSem.Release(1)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return e, nil
	}

	acc := NewAccount(t.topoheight)
	if _, v, ok := t.store.GetNonceAt(pub, t.topoheight); ok {
		acc.Nonce = v.Value
	}
	if _, v, ok := t.store.GetMultiSigAt(pub, t.topoheight); ok {
		acc.MultiSig = v.Policy
	}
	for _, asset := range t.store.KnownAssets(pub) {
		if _, v, ok := t.store.GetBalanceAt(pub, asset, t.topoheight); ok {
			acc.Balances[asset] = v.Value
		}
	}
	e.account = acc
	e.loaded = true
	return e, nil
}

// AddBurned atomically adds amount to the block's burned_supply accumulator.
func (t *AccountTable) AddBurned(amount Amount) { atomic.AddUint64(&t.burnedSupply, uint64(amount)) }

// AddGasFee atomically adds amount to the block's gas_fee accumulator.
func (t *AccountTable) AddGasFee(amount Amount) { atomic.AddUint64(&t.gasFee, uint64(amount)) }

// BurnedSupply returns the block's accumulated burned_supply.
func (t *AccountTable) BurnedSupply() uint64 { return atomic.LoadUint64(&t.burnedSupply) }

// GasFeeTotal returns the block's accumulated gas_fee.
func (t *AccountTable) GasFeeTotal() uint64 { return atomic.LoadUint64(&t.gasFee) }

// CommitToStore writes every touched account's nonce, balances and multisig
// policy back through the Store as versioned records at topoheight.
// Deletions of multisig policies are represented explicitly, never by
// omission.
func (t *AccountTable) CommitToStore(topoheight Topoheight) {
	t.mu.Lock()
	pubs := make([]PublicKey, 0, len(t.entries))
	for pub := range t.entries {
		pubs = append(pubs, pub)
	}
	t.mu.Unlock()

	sort.Slice(pubs, func(i, j int) bool { return string(pubs[i][:]) < string(pubs[j][:]) })

	for _, pub := range pubs {
		e := t.entryFor(pub)
		e.mu.Lock()
		if !e.loaded {
			e.mu.Unlock()
			continue
		}
		acc := e.account
		t.store.SetNonceAt(pub, topoheight, VersionedNonce{Value: acc.Nonce})
		for asset, bal := range acc.Balances {
			t.store.SetBalanceAt(pub, asset, topoheight, VersionedBalance{Value: bal})
		}
		t.store.SetMultiSigAt(pub, topoheight, VersionedMultiSig{Policy: acc.MultiSig})
		e.mu.Unlock()
	}

	t.logger.WithFields(logrus.Fields{
		"topoheight":    topoheight,
		"accounts":      len(pubs),
		"burned_supply": t.BurnedSupply(),
		"gas_fee":       t.GasFeeTotal(),
	}).Debug("committed account table")
}

// TransactionResult reports one transaction's outcome within a batch.
type TransactionResult struct {
	TxHash  Hash
	Success bool
	Error   error
	GasUsed uint64
}

// adapter is the per-transaction staging context: it stages every mutation
// in a local buffer, runs Verify/Apply against itself, and
// only exposes mutations to the shared AccountTable via commitAll once Apply
// succeeds.
type adapter struct {
	ctx       context.Context
	table     *AccountTable
	ancestry  AncestryChecker
	contract  ContractExecutor
	blockCtx  BlockContext

	staged map[PublicKey]*Account
	touched []PublicKey

	stagedBurned Amount
	stagedFee    Amount

	// nonceCASPub/nonceCASExpected record the one CASNonce call Apply makes
	// (step 1, against tx.Source). commitAll re-checks expected against the
	// shared AccountTable entry's actual nonce, since the adapter's own
	// staged clone can never observe a sibling adapter's concurrent commit.
	nonceCASSet      bool
	nonceCASPub      PublicKey
	nonceCASExpected uint64
}

func newAdapter(ctx context.Context, table *AccountTable, ancestry AncestryChecker, contract ContractExecutor, blockCtx BlockContext) *adapter {
	return &adapter{
		ctx:      ctx,
		table:    table,
		ancestry: ancestry,
		contract: contract,
		blockCtx: blockCtx,
		staged:   make(map[PublicKey]*Account),
	}
}

func (a *adapter) account(pub PublicKey) *Account {
	if acc, ok := a.staged[pub]; ok {
		return acc
	}
	e, err := a.table.load(a.ctx, pub)
	var base *Account
	if err != nil || e == nil {
		base = NewAccount(a.table.topoheight)
	} else {
		e.mu.Lock()
		base = e.account.Clone()
		e.mu.Unlock()
	}
	a.staged[pub] = base
	a.touched = append(a.touched, pub)
	return base
}

func (a *adapter) CurrentTopoheight() Topoheight { return a.table.topoheight }
func (a *adapter) Nonce(pub PublicKey) uint64    { return a.account(pub).Nonce }
func (a *adapter) Balance(pub PublicKey, asset Asset) Amount {
	return a.account(pub).BalanceOf(asset)
}
func (a *adapter) MultiSig(pub PublicKey) *MultiSigPolicy { return a.account(pub).MultiSig }
func (a *adapter) Energy(pub PublicKey) *EnergyResource   { return a.account(pub).Energy }
func (a *adapter) IsAncestor(blockHash Hash, topoheight Topoheight) bool {
	return a.ancestry.IsAncestor(blockHash, topoheight)
}

// CASNonce checks and increments the adapter's own staged clone of pub's
// nonce. This is necessarily a check against a snapshot, not the shared
// AccountTable: within one adapter, Verify and Apply share the same staged
// clone, so this call can never itself observe a sibling adapter's
// concurrent commit. The real, cross-adapter compare-and-swap happens in
// commitAll, which re-validates nonceCASExpected against the table entry's
// actual committed nonce before exposing any of this adapter's mutations.
func (a *adapter) CASNonce(pub PublicKey, expected uint64) bool {
	acc := a.account(pub)
	if acc.Nonce != expected {
		return false
	}
	acc.Nonce = expected + 1
	a.nonceCASSet = true
	a.nonceCASPub = pub
	a.nonceCASExpected = expected
	return true
}

func (a *adapter) Deduct(pub PublicKey, asset Asset, amount Amount) error {
	acc := a.account(pub)
	bal := acc.BalanceOf(asset)
	if bal < amount {
		return ErrUnderflow
	}
	acc.Balances[asset] = bal - amount
	return nil
}

func (a *adapter) Credit(pub PublicKey, asset Asset, amount Amount) error {
	acc := a.account(pub)
	bal := acc.BalanceOf(asset)
	if bal+amount < bal {
		return ErrOverflow
	}
	acc.Balances[asset] = bal + amount
	return nil
}

func (a *adapter) SetMultiSig(pub PublicKey, policy *MultiSigPolicy) {
	a.account(pub).MultiSig = policy
}

func (a *adapter) AddBurned(asset Asset, amount Amount) { a.stagedBurned += amount }
func (a *adapter) AddGasFee(amount Amount)              { a.stagedFee += amount }

func (a *adapter) ConsumeEnergy(pub PublicKey, amount uint64) error {
	return a.account(pub).EnsureEnergy().ConsumeEnergy(amount)
}

func (a *adapter) FreezeTOSForEnergy(pub PublicKey, amount Amount, duration FreezeDuration, topoheight Topoheight) (uint64, error) {
	return a.account(pub).EnsureEnergy().FreezeTOSForEnergy(amount, duration, topoheight), nil
}

func (a *adapter) UnfreezeTOS(pub PublicKey, amount Amount, topoheight Topoheight) (uint64, error) {
	return a.account(pub).EnsureEnergy().UnfreezeTOS(amount, topoheight)
}

func (a *adapter) Contract() ContractExecutor { return a.contract }
func (a *adapter) BlockContext() BlockContext { return a.blockCtx }

// commitAll re-validates the sender's nonce CAS against the shared
// AccountTable's actual committed state and, only if that still holds,
// exposes every staged account mutation and the staged burned/fee deltas to
// the table's block accumulators. It is only ever called after Apply has
// returned nil.
//
// The re-validation is the sole cross-adapter ordering point: two adapters
// racing the same sender and nonce both pass Apply's CASNonce against their
// own disconnected clones, but only the one that reaches this check first
// sees a matching entry.account.Nonce. The loser's mutations — nonce,
// balances, every other touched account — are discarded entirely rather
// than partially applied, matching a losing transaction's effect under
// ExecuteSequential: as if it had never run.
func (a *adapter) commitAll() bool {
	if a.nonceCASSet {
		e := a.table.entryFor(a.nonceCASPub)
		e.mu.Lock()
		if e.account.Nonce != a.nonceCASExpected {
			e.mu.Unlock()
			return false
		}
		e.account = a.staged[a.nonceCASPub]
		e.loaded = true
		e.mu.Unlock()
	}

	for _, pub := range a.touched {
		if a.nonceCASSet && pub == a.nonceCASPub {
			continue
		}
		e := a.table.entryFor(pub)
		e.mu.Lock()
		e.account = a.staged[pub]
		e.loaded = true
		e.mu.Unlock()
	}
	if a.stagedBurned > 0 {
		a.table.AddBurned(a.stagedBurned)
	}
	if a.stagedFee > 0 {
		a.table.AddGasFee(a.stagedFee)
	}
	return true
}

// ExecuteSequential applies txs one at a time in order, matching the
// reference semantics the parallel orchestrator must reproduce.
func ExecuteSequential(ctx context.Context, txs []*Transaction, table *AccountTable, ancestry AncestryChecker, contract ContractExecutor, blockCtx BlockContext) []TransactionResult {
	results := make([]TransactionResult, len(txs))
	for i, tx := range txs {
		results[i] = runOne(ctx, tx, table, ancestry, contract, blockCtx)
	}
	return results
}

// ExecuteParallel applies txs concurrently across worker goroutines, up to
// concurrency at a time. For the same admitted transaction set, the final
// state equals ExecuteSequential's: the nonce CAS adapter.commitAll
// re-validates against the shared AccountTable is the sole ordering
// primitive between two transactions from the same sender, so a losing
// transaction's mutations are discarded in full at commit time and it fails
// with ErrNonceConflict rather than corrupting shared state.
func ExecuteParallel(ctx context.Context, txs []*Transaction, table *AccountTable, ancestry AncestryChecker, contract ContractExecutor, blockCtx BlockContext, concurrency int) []TransactionResult {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]TransactionResult, len(txs))
	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup

	for i, tx := range txs {
		i, tx := i, tx
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = TransactionResult{TxHash: tx.Hash(), Success: false, Error: err}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = runOne(ctx, tx, table, ancestry, contract, blockCtx)
		}()
	}
	wg.Wait()
	return results
}

func runOne(ctx context.Context, tx *Transaction, table *AccountTable, ancestry AncestryChecker, contract ContractExecutor, blockCtx BlockContext) TransactionResult {
	txHash := tx.Hash()
	a := newAdapter(ctx, table, ancestry, contract, blockCtx)

	if err := Verify(txHash, tx, a); err != nil {
		// A nonce below the sender's committed nonce means a same-nonce
		// transaction from this sender has already won the CAS.
		if err == ErrNonceMismatch && tx.Nonce < a.Nonce(tx.Source) {
			err = ErrNonceConflict
		}
		table.logger.WithError(err).WithField("tx_hash", txHash.String()).Debug("transaction rejected at verify")
		return TransactionResult{TxHash: txHash, Success: false, Error: err}
	}
	if err := Apply(ctx, txHash, tx, a); err != nil {
		table.logger.WithError(err).WithField("tx_hash", txHash.String()).Warn("transaction rejected at apply")
		return TransactionResult{TxHash: txHash, Success: false, Error: err}
	}
	if !a.commitAll() {
		table.logger.WithField("tx_hash", txHash.String()).Debug("transaction rejected at commit: nonce CAS lost")
		return TransactionResult{TxHash: txHash, Success: false, Error: ErrNonceConflict}
	}
	return TransactionResult{TxHash: txHash, Success: true}
}
