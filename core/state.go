package core

// state.go defines the state store boundary and an in-memory reference
// implementation used by tests and the sequential executor. The shape is
// modeled on a StateRW interface, a single store exposing typed get/set
// pairs, narrowed here to the four record kinds this engine actually needs,
// and generalized from unversioned reads to a versioned
// {value, previous_topoheight} chain.

import (
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// VersionedNonce is a nonce value recorded at a topoheight, chained to
// whatever value preceded it.
type VersionedNonce struct {
	Value              uint64
	PreviousTopoheight *Topoheight
}

// VersionedBalance is a balance value recorded at a topoheight, chained to
// whatever value preceded it.
type VersionedBalance struct {
	Value              Amount
	PreviousTopoheight *Topoheight
}

// VersionedMultiSig is a multisig-policy value recorded at a topoheight. A
// nil Policy represents an explicit deletion, distinct from "never set".
type VersionedMultiSig struct {
	Policy             *MultiSigPolicy
	PreviousTopoheight *Topoheight
}

// CipherText is an opaque 64-byte homomorphic ciphertext backing the UNO
// asset's encrypted balance.
type CipherText [64]byte

// VersionedCipherBalance is a UNO ciphertext balance recorded at a
// topoheight, chained to whatever value preceded it.
type VersionedCipherBalance struct {
	Value              CipherText
	PreviousTopoheight *Topoheight
}

// Store is the state store boundary Verify and Apply run against. Every
// setter writes a new versioned record at topoheight; every getter walks
// the previous_topoheight chain to find the value effective at or before
// the requested topoheight. Implementations MUST be safe for concurrent
// readers but MAY require external serialization of writers (see the
// 1-permit semaphore implemented over this interface in parallel.go).
type Store interface {
	GetNonceAt(pub PublicKey, topoheight Topoheight) (Topoheight, VersionedNonce, bool)
	SetNonceAt(pub PublicKey, topoheight Topoheight, v VersionedNonce)

	GetBalanceAt(pub PublicKey, asset Asset, topoheight Topoheight) (Topoheight, VersionedBalance, bool)
	SetBalanceAt(pub PublicKey, asset Asset, topoheight Topoheight, v VersionedBalance)

	GetMultiSigAt(pub PublicKey, topoheight Topoheight) (Topoheight, VersionedMultiSig, bool)
	SetMultiSigAt(pub PublicKey, topoheight Topoheight, v VersionedMultiSig)

	GetCipherBalanceAt(pub PublicKey, asset Asset, topoheight Topoheight) (Topoheight, VersionedCipherBalance, bool)
	SetCipherBalanceAt(pub PublicKey, asset Asset, topoheight Topoheight, v VersionedCipherBalance)

	// KnownAssets returns every asset pub has ever had a balance record for,
	// so a fresh AccountTable can hydrate the account's full balance set
	// instead of guessing at a fixed list.
	KnownAssets(pub PublicKey) []Asset
}

type nonceKey struct {
	pub PublicKey
}

type assetKey struct {
	pub   PublicKey
	asset Asset
}

// MemStore is an in-memory Store keyed on the exact topoheight each record
// was written at, with chain walks for reads at arbitrary topoheights. It is
// the reference implementation exercised by the executors (parallel.go) and
// by tests; a production deployment backs Store with a
// persistent versioned database instead.
type MemStore struct {
	mu sync.RWMutex

	nonces         map[nonceKey]map[Topoheight]VersionedNonce
	balances       map[assetKey]map[Topoheight]VersionedBalance
	multisigs      map[nonceKey]map[Topoheight]VersionedMultiSig
	cipherBalances map[assetKey]map[Topoheight]VersionedCipherBalance
	accountAssets  map[PublicKey]map[Asset]struct{}
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		nonces:         make(map[nonceKey]map[Topoheight]VersionedNonce),
		balances:       make(map[assetKey]map[Topoheight]VersionedBalance),
		multisigs:      make(map[nonceKey]map[Topoheight]VersionedMultiSig),
		cipherBalances: make(map[assetKey]map[Topoheight]VersionedCipherBalance),
		accountAssets:  make(map[PublicKey]map[Asset]struct{}),
	}
}

func latestAtOrBefore[V any](chain map[Topoheight]V, topoheight Topoheight, prevOf func(V) *Topoheight) (Topoheight, V, bool) {
	var zero V
	if chain == nil {
		return 0, zero, false
	}
	if v, ok := chain[topoheight]; ok {
		return topoheight, v, true
	}
	// Scan for the greatest recorded topoheight <= requested; the
	// previous_topoheight links are not followed.
	var best Topoheight
	var bestVal V
	found := false
	for t, v := range chain {
		if t <= topoheight && (!found || t > best) {
			best, bestVal, found = t, v, true
		}
	}
	if found {
		return best, bestVal, true
	}
	_ = prevOf
	return 0, zero, false
}

func (s *MemStore) GetNonceAt(pub PublicKey, topoheight Topoheight) (Topoheight, VersionedNonce, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestAtOrBefore(s.nonces[nonceKey{pub}], topoheight, func(v VersionedNonce) *Topoheight { return v.PreviousTopoheight })
}

func (s *MemStore) SetNonceAt(pub PublicKey, topoheight Topoheight, v VersionedNonce) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := nonceKey{pub}
	if s.nonces[k] == nil {
		s.nonces[k] = make(map[Topoheight]VersionedNonce)
	}
	s.nonces[k][topoheight] = v
}

func (s *MemStore) GetBalanceAt(pub PublicKey, asset Asset, topoheight Topoheight) (Topoheight, VersionedBalance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestAtOrBefore(s.balances[assetKey{pub, asset}], topoheight, func(v VersionedBalance) *Topoheight { return v.PreviousTopoheight })
}

func (s *MemStore) SetBalanceAt(pub PublicKey, asset Asset, topoheight Topoheight, v VersionedBalance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := assetKey{pub, asset}
	if s.balances[k] == nil {
		s.balances[k] = make(map[Topoheight]VersionedBalance)
	}
	s.balances[k][topoheight] = v
	if s.accountAssets[pub] == nil {
		s.accountAssets[pub] = make(map[Asset]struct{})
	}
	s.accountAssets[pub][asset] = struct{}{}
}

// KnownAssets returns every asset pub has ever had SetBalanceAt called for,
// sorted for deterministic iteration order.
func (s *MemStore) KnownAssets(pub PublicKey) []Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assets := make([]Asset, 0, len(s.accountAssets[pub]))
	for asset := range s.accountAssets[pub] {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool { return string(assets[i][:]) < string(assets[j][:]) })
	return assets
}

func (s *MemStore) GetMultiSigAt(pub PublicKey, topoheight Topoheight) (Topoheight, VersionedMultiSig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestAtOrBefore(s.multisigs[nonceKey{pub}], topoheight, func(v VersionedMultiSig) *Topoheight { return v.PreviousTopoheight })
}

func (s *MemStore) SetMultiSigAt(pub PublicKey, topoheight Topoheight, v VersionedMultiSig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := nonceKey{pub}
	if s.multisigs[k] == nil {
		s.multisigs[k] = make(map[Topoheight]VersionedMultiSig)
	}
	s.multisigs[k][topoheight] = v
}

func (s *MemStore) GetCipherBalanceAt(pub PublicKey, asset Asset, topoheight Topoheight) (Topoheight, VersionedCipherBalance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestAtOrBefore(s.cipherBalances[assetKey{pub, asset}], topoheight, func(v VersionedCipherBalance) *Topoheight { return v.PreviousTopoheight })
}

func (s *MemStore) SetCipherBalanceAt(pub PublicKey, asset Asset, topoheight Topoheight, v VersionedCipherBalance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := assetKey{pub, asset}
	if s.cipherBalances[k] == nil {
		s.cipherBalances[k] = make(map[Topoheight]VersionedCipherBalance)
	}
	s.cipherBalances[k][topoheight] = v
}

// nonceLookup and balanceLookup cache the result of a single GetNonceAt /
// GetBalanceAt call, keyed on the exact (account, topoheight) pair asked for.
type nonceLookup struct {
	found Topoheight
	v     VersionedNonce
	ok    bool
}

type balanceLookup struct {
	found Topoheight
	v     VersionedBalance
	ok    bool
}

// CachedStore fronts a backing Store with a bounded LRU of recent nonce and
// balance reads, the hot path for account lookups during parallel batch
// execution (§4.4, §5). A write for a given account purges that account's
// cached entries rather than chasing every topoheight greater than the
// write, which keeps the invalidation rule simple: a cache hit is only ever
// served for reads issued strictly before the account's next write.
type CachedStore struct {
	Store

	nonceCache   *lru.Cache[nonceKey, nonceLookup]
	balanceCache *lru.Cache[assetKey, balanceLookup]

	mu              sync.Mutex
	nonceKeyTopo    map[nonceKey]Topoheight
	balanceKeyTopo  map[assetKey]Topoheight
}

// NewCachedStore wraps backing with an LRU cache holding up to size entries
// per record kind. size <= 0 falls back to a reasonable default.
func NewCachedStore(backing Store, size int) *CachedStore {
	if size <= 0 {
		size = 4096
	}
	nc, _ := lru.New[nonceKey, nonceLookup](size)
	bc, _ := lru.New[assetKey, balanceLookup](size)
	return &CachedStore{
		Store:          backing,
		nonceCache:     nc,
		balanceCache:   bc,
		nonceKeyTopo:   make(map[nonceKey]Topoheight),
		balanceKeyTopo: make(map[assetKey]Topoheight),
	}
}

func (c *CachedStore) GetNonceAt(pub PublicKey, topoheight Topoheight) (Topoheight, VersionedNonce, bool) {
	k := nonceKey{pub}
	if cached, ok := c.nonceCache.Get(k); ok {
		c.mu.Lock()
		cachedAt, have := c.nonceKeyTopo[k]
		c.mu.Unlock()
		if have && cachedAt == topoheight {
			return cached.found, cached.v, cached.ok
		}
	}
	found, v, ok := c.Store.GetNonceAt(pub, topoheight)
	c.mu.Lock()
	c.nonceKeyTopo[k] = topoheight
	c.mu.Unlock()
	c.nonceCache.Add(k, nonceLookup{found: found, v: v, ok: ok})
	return found, v, ok
}

func (c *CachedStore) SetNonceAt(pub PublicKey, topoheight Topoheight, v VersionedNonce) {
	c.nonceCache.Remove(nonceKey{pub})
	c.Store.SetNonceAt(pub, topoheight, v)
}

func (c *CachedStore) GetBalanceAt(pub PublicKey, asset Asset, topoheight Topoheight) (Topoheight, VersionedBalance, bool) {
	k := assetKey{pub, asset}
	if cached, ok := c.balanceCache.Get(k); ok {
		c.mu.Lock()
		cachedAt, have := c.balanceKeyTopo[k]
		c.mu.Unlock()
		if have && cachedAt == topoheight {
			return cached.found, cached.v, cached.ok
		}
	}
	found, v, ok := c.Store.GetBalanceAt(pub, asset, topoheight)
	c.mu.Lock()
	c.balanceKeyTopo[k] = topoheight
	c.mu.Unlock()
	c.balanceCache.Add(k, balanceLookup{found: found, v: v, ok: ok})
	return found, v, ok
}

func (c *CachedStore) SetBalanceAt(pub PublicKey, asset Asset, topoheight Topoheight, v VersionedBalance) {
	c.balanceCache.Remove(assetKey{pub, asset})
	c.Store.SetBalanceAt(pub, asset, topoheight, v)
}
