package core

// genesis.go implements the genesis file loader and validator: JSON decode,
// format-version check, required-asset check, per-field string and numeric
// validation, duplicate/overflow detection across allocations, and an
// optional recomputed-state-hash comparison. Numeric fields are decoded as
// strings and explicitly parsed so a malformed value surfaces as
// GenesisError rather than a silent zero.

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// MaxGenesisStringLength bounds every string field carrying a u8 length
// prefix on the wire.
const MaxGenesisStringLength = 255

// GenesisAssetConfig is one entry of the genesis file's "assets" map.
type GenesisAssetConfig struct {
	Hash      string  `json:"hash"`
	Decimals  uint8   `json:"decimals"`
	Name      string  `json:"name"`
	Ticker    string  `json:"ticker"`
	MaxSupply *string `json:"max_supply"`
}

// GenesisAllocEntry is one entry of the genesis file's "alloc" list.
type GenesisAllocEntry struct {
	PublicKey string  `json:"public_key"`
	Address   *string `json:"address,omitempty"`
	Nonce     string  `json:"nonce"`
	Balance   string  `json:"balance"`
}

// GenesisConfig is the genesis file's "config" object.
type GenesisConfig struct {
	ChainID            string            `json:"chain_id"`
	Network            string            `json:"network"`
	GenesisTimestampMs string            `json:"genesis_timestamp_ms"`
	DevPublicKey       string            `json:"dev_public_key"`
	Forks              map[string]string `json:"forks"`
}

// GenesisComputed optionally carries a precomputed state hash to check
// against.
type GenesisComputed struct {
	StateHash *string `json:"state_hash,omitempty"`
}

// GenesisState is the top-level genesis file format.
type GenesisState struct {
	FormatVersion uint32                        `json:"format_version"`
	Config        GenesisConfig                 `json:"config"`
	Assets        map[string]GenesisAssetConfig `json:"assets"`
	Alloc         []GenesisAllocEntry           `json:"alloc"`
	Computed      *GenesisComputed              `json:"computed,omitempty"`
}

// GenesisError is the closed set of genesis validation failures.
type GenesisError struct {
	Kind    string
	Message string
}

func (e *GenesisError) Error() string {
	return fmt.Sprintf("core: genesis error (%s): %s", e.Kind, e.Message)
}

func genesisErr(kind, format string, args ...any) *GenesisError {
	return &GenesisError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ParsedAlloc is one validated allocation entry.
type ParsedAlloc struct {
	PublicKey PublicKey
	Nonce     uint64
	Balance   Amount
}

// ParsedAsset is one validated asset entry.
type ParsedAsset struct {
	Name      string
	Ticker    string
	Hash      Hash
	Decimals  uint8
	MaxSupply *uint64
}

// ValidatedGenesis is the output of ValidateGenesisState, ready to be
// applied to a Store at topoheight 0.
type ValidatedGenesis struct {
	ChainID            uint64
	Network            string
	GenesisTimestampMs uint64
	DevPublicKey       PublicKey
	Forks              map[string]uint64
	Assets             []ParsedAsset
	Alloc              []ParsedAlloc
	StateHash          Hash
}

// DecodeGenesisState parses raw JSON bytes into a GenesisState and checks
// the format version and required-asset presence, the two cheap structural
// checks that gate everything else.
func DecodeGenesisState(data []byte) (*GenesisState, error) {
	var state GenesisState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, genesisErr("Decode", "%v", err)
	}
	if state.FormatVersion != 1 {
		return nil, genesisErr("InvalidFormatVersion", "%d", state.FormatVersion)
	}
	if _, ok := state.Assets["TOS"]; !ok {
		return nil, genesisErr("MissingRequiredAsset", "TOS")
	}
	if _, ok := state.Assets["UNO"]; !ok {
		return nil, genesisErr("MissingRequiredAsset", "UNO")
	}
	return &state, nil
}

// ValidateGenesisState fully validates state and returns the parsed,
// ready-to-apply genesis data plus its recomputed state hash.
func ValidateGenesisState(state *GenesisState) (*ValidatedGenesis, error) {
	switch state.Config.Network {
	case "mainnet", "testnet", "devnet":
	default:
		return nil, genesisErr("InvalidNetwork", "%s", state.Config.Network)
	}
	if err := validateStringLength(state.Config.Network, "network"); err != nil {
		return nil, err
	}
	for name := range state.Config.Forks {
		if err := validateStringLength(name, "fork name"); err != nil {
			return nil, err
		}
	}

	chainID, err := strconv.ParseUint(state.Config.ChainID, 10, 64)
	if err != nil {
		return nil, genesisErr("InvalidChainId", "%s", state.Config.ChainID)
	}
	genesisTimestampMs, err := strconv.ParseUint(state.Config.GenesisTimestampMs, 10, 64)
	if err != nil {
		return nil, genesisErr("InvalidTimestamp", "%s", state.Config.GenesisTimestampMs)
	}
	devPub, err := parseGenesisPublicKey(state.Config.DevPublicKey)
	if err != nil {
		return nil, err
	}

	forks := make(map[string]uint64, len(state.Config.Forks))
	for name, heightStr := range state.Config.Forks {
		height, err := strconv.ParseUint(heightStr, 10, 64)
		if err != nil {
			return nil, genesisErr("InvalidForkHeight", "%s=%s", name, heightStr)
		}
		forks[name] = height
	}

	assets, err := parseGenesisAssets(state.Assets)
	if err != nil {
		return nil, err
	}

	tosAsset := state.Assets["TOS"]
	tosHash, err := parseGenesisHash(tosAsset.Hash)
	if err != nil {
		return nil, err
	}
	if tosHash != TOS_ASSET {
		return nil, genesisErr("AssetHashMismatch", "TOS expected %s got %s", TOS_ASSET.String(), tosAsset.Hash)
	}
	if tosAsset.Decimals != 8 {
		return nil, genesisErr("InvalidAssetDecimals", "TOS expected 8 got %d", tosAsset.Decimals)
	}

	unoAsset := state.Assets["UNO"]
	unoHash, err := parseGenesisHash(unoAsset.Hash)
	if err != nil {
		return nil, err
	}
	if unoHash != UNO_ASSET {
		return nil, genesisErr("AssetHashMismatch", "UNO expected %s got %s", UNO_ASSET.String(), unoAsset.Hash)
	}
	if unoAsset.Decimals != 8 {
		return nil, genesisErr("InvalidAssetDecimals", "UNO expected 8 got %d", unoAsset.Decimals)
	}

	var tosMaxSupply *uint64
	if tosAsset.MaxSupply != nil {
		v, err := strconv.ParseUint(*tosAsset.MaxSupply, 10, 64)
		if err != nil {
			return nil, genesisErr("InvalidBalance", "TOS max_supply")
		}
		tosMaxSupply = &v
	}

	alloc, err := parseGenesisAllocations(state.Alloc, tosMaxSupply)
	if err != nil {
		return nil, err
	}

	stateHash := computeGenesisStateHash(state.FormatVersion, chainID, state.Config.Network, genesisTimestampMs, devPub, forks, assets, alloc)

	if state.Computed != nil && state.Computed.StateHash != nil {
		expected, err := parseGenesisHash(*state.Computed.StateHash)
		if err != nil {
			return nil, err
		}
		if expected != stateHash {
			return nil, genesisErr("StateHashMismatch", "expected %s computed %s", expected.String(), stateHash.String())
		}
	}

	return &ValidatedGenesis{
		ChainID:            chainID,
		Network:            state.Config.Network,
		GenesisTimestampMs: genesisTimestampMs,
		DevPublicKey:       devPub,
		Forks:              forks,
		Assets:             assets,
		Alloc:              alloc,
		StateHash:          stateHash,
	}, nil
}

// ApplyGenesisState writes every allocation into store at topoheight 0.
func ApplyGenesisState(store Store, genesis *ValidatedGenesis) {
	for _, entry := range genesis.Alloc {
		store.SetNonceAt(entry.PublicKey, 0, VersionedNonce{Value: entry.Nonce})
		store.SetBalanceAt(entry.PublicKey, TOS_ASSET, 0, VersionedBalance{Value: entry.Balance})
	}
}

func validateStringLength(s, field string) error {
	if len(s) > MaxGenesisStringLength {
		return genesisErr("StringTooLong", "%s length %d exceeds %d", field, len(s), MaxGenesisStringLength)
	}
	return nil
}

func parseGenesisHash(s string) (Hash, error) {
	if len(s) != 64 {
		return ZeroHash, genesisErr("InvalidAssetHash", "expected 64 hex chars, got %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroHash, genesisErr("InvalidAssetHash", "%v", err)
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

func parseGenesisPublicKey(s string) (PublicKey, error) {
	if len(s) != 64 {
		return ZeroPublicKey, genesisErr("InvalidPublicKey", "expected 64 hex chars, got %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroPublicKey, genesisErr("InvalidPublicKey", "%v", err)
	}
	var pk PublicKey
	copy(pk[:], b)
	return pk, nil
}

func parseGenesisAssets(assets map[string]GenesisAssetConfig) ([]ParsedAsset, error) {
	names := make([]string, 0, len(assets))
	for name := range assets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ParsedAsset, 0, len(assets))
	for _, name := range names {
		cfg := assets[name]
		if err := validateStringLength(name, "asset name"); err != nil {
			return nil, err
		}
		if err := validateStringLength(cfg.Name, "asset config name"); err != nil {
			return nil, err
		}
		if err := validateStringLength(cfg.Ticker, "asset ticker"); err != nil {
			return nil, err
		}
		h, err := parseGenesisHash(cfg.Hash)
		if err != nil {
			return nil, err
		}
		var maxSupply *uint64
		if cfg.MaxSupply != nil {
			v, err := strconv.ParseUint(*cfg.MaxSupply, 10, 64)
			if err != nil {
				return nil, genesisErr("InvalidBalance", "%s max_supply", name)
			}
			maxSupply = &v
		}
		out = append(out, ParsedAsset{
			Name:      cfg.Name,
			Ticker:    cfg.Ticker,
			Hash:      h,
			Decimals:  cfg.Decimals,
			MaxSupply: maxSupply,
		})
	}
	return out, nil
}

func parseGenesisAllocations(alloc []GenesisAllocEntry, tosMaxSupply *uint64) ([]ParsedAlloc, error) {
	parsed := make([]ParsedAlloc, 0, len(alloc))
	seen := make(map[string]bool, len(alloc))
	var total uint64

	for _, entry := range alloc {
		pub, err := parseGenesisPublicKey(entry.PublicKey)
		if err != nil {
			return nil, err
		}
		key := pub.String()
		if seen[key] {
			return nil, genesisErr("DuplicatePublicKey", "%s", entry.PublicKey)
		}
		seen[key] = true

		nonce, err := strconv.ParseUint(entry.Nonce, 10, 64)
		if err != nil {
			return nil, genesisErr("InvalidNonce", "%s", entry.Nonce)
		}
		balance, err := strconv.ParseUint(entry.Balance, 10, 64)
		if err != nil {
			return nil, genesisErr("InvalidBalance", "%s", entry.Balance)
		}

		newTotal := total + balance
		if newTotal < total {
			return nil, genesisErr("BalanceOverflow", "total allocation exceeds uint64")
		}
		total = newTotal
		if tosMaxSupply != nil && total > *tosMaxSupply {
			return nil, genesisErr("BalanceOverflow", "total %d exceeds max_supply %d", total, *tosMaxSupply)
		}

		parsed = append(parsed, ParsedAlloc{PublicKey: pub, Nonce: nonce, Balance: balance})
	}
	return parsed, nil
}

// computeGenesisStateHash hashes every validated field of the genesis file
// in a fixed, deterministic order so re-validating the same file always
// reproduces the same hash: a state hash is recomputed from parsed contents
// and compared when one was provided in the file.
func computeGenesisStateHash(formatVersion uint32, chainID uint64, network string, genesisTimestampMs uint64, devPub PublicKey, forks map[string]uint64, assets []ParsedAsset, alloc []ParsedAlloc) Hash {
	buf := make([]byte, 0, 256)
	var scratch [8]byte

	putU64 := func(v uint64) {
		for i := 7; i >= 0; i-- {
			scratch[i] = byte(v)
			v >>= 8
		}
		buf = append(buf, scratch[:]...)
	}

	putU64(uint64(formatVersion))
	putU64(chainID)
	buf = append(buf, []byte(network)...)
	putU64(genesisTimestampMs)
	buf = append(buf, devPub[:]...)

	forkNames := make([]string, 0, len(forks))
	for name := range forks {
		forkNames = append(forkNames, name)
	}
	sort.Strings(forkNames)
	for _, name := range forkNames {
		buf = append(buf, []byte(name)...)
		putU64(forks[name])
	}

	for _, a := range assets {
		buf = append(buf, a.Hash[:]...)
		buf = append(buf, a.Decimals)
		buf = append(buf, []byte(a.Name)...)
		buf = append(buf, []byte(a.Ticker)...)
		if a.MaxSupply != nil {
			putU64(*a.MaxSupply)
		}
	}

	for _, e := range alloc {
		buf = append(buf, e.PublicKey[:]...)
		putU64(e.Nonce)
		putU64(e.Balance)
	}

	return HashData(buf)
}
