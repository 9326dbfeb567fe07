package core

// header.go implements the canonical 252-byte MinerWork / header-for-work
// serialization. Its layout MUST byte-match, field for field and endianness
// for endianness, regardless of which of the two entry points produced it.
// A divergence here is a consensus fault.

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
)

// MinerWorkSize is the exact size, in bytes, of the PoW input buffer.
const MinerWorkSize = 252

const (
	offWorkHash     = 0
	offTimestamp    = 32
	offNonce        = 40
	offExtraNonce   = 48
	offMiner        = 80
	offDAAScore     = 112
	offBlueWork     = 120
	offBits         = 152
	offPruningPoint = 156
	offAcceptedRoot = 188
	offUTXOCommit   = 220

	extraNonceSize   = 32
	blueWorkByteSize = 32
)

// BlockHeader is the full consensus header. Fields are fixed by the block
// template except Timestamp, Nonce, ExtraNonce and Miner, which a miner may
// mutate between PoW attempts.
type BlockHeader struct {
	Version               uint8
	Parents               []Hash
	BlueScore             uint64
	DAAScore              uint64
	BlueWork              *uint256.Int
	Bits                  uint32
	PruningPoint          Hash
	AcceptedIDMerkleRoot  Hash
	UTXOCommitment        Hash
	Miner                 PublicKey
	ExtraNonce            [extraNonceSize]byte
	Timestamp             uint64
	Nonce                 uint64
	TransactionMerkleRoot Hash
}

// MinerWork is the parsed form of the 252-byte PoW buffer.
type MinerWork struct {
	HeaderWorkHash       Hash
	Timestamp            uint64
	Nonce                uint64
	ExtraNonce           [extraNonceSize]byte
	Miner                PublicKey
	DAAScore             uint64
	BlueWork             *uint256.Int
	Bits                 uint32
	PruningPoint         Hash
	AcceptedIDMerkleRoot Hash
	UTXOCommitment       Hash
}

// InvalidSizeError is returned when a buffer handed to ParseMinerWork is not
// exactly MinerWorkSize bytes.
type InvalidSizeError struct {
	Got int
}

func (e *InvalidSizeError) Error() string {
	return fmt.Sprintf("core: invalid miner work size: got %d bytes, want %d", e.Got, MinerWorkSize)
}

// HeaderWorkHash hashes the immutable fields of h (version, blue score,
// parents, transaction merkle root) that the mutable miner window is not
// allowed to alter.
func HeaderWorkHash(h *BlockHeader) Hash {
	buf := make([]byte, 0, 1+8+len(h.Parents)*32+32)
	buf = append(buf, h.Version)
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], h.BlueScore)
	buf = append(buf, scratch[:]...)
	for _, p := range h.Parents {
		buf = append(buf, p[:]...)
	}
	buf = append(buf, h.TransactionMerkleRoot[:]...)
	return HashData(buf)
}

// putBlueWork writes v into dst as a 32-byte little-endian integer.
func putBlueWork(dst []byte, v *uint256.Int) {
	if v == nil {
		v = uint256.NewInt(0)
	}
	be := v.Bytes32()
	for i := 0; i < blueWorkByteSize; i++ {
		dst[i] = be[blueWorkByteSize-1-i]
	}
}

// readBlueWork reconstructs a uint256 from its 32-byte little-endian
// encoding.
func readBlueWork(src []byte) *uint256.Int {
	var be [blueWorkByteSize]byte
	for i := 0; i < blueWorkByteSize; i++ {
		be[i] = src[blueWorkByteSize-1-i]
	}
	out := new(uint256.Int)
	out.SetBytes32(be[:])
	return out
}

// SerializeMinerWork renders h into the canonical 252-byte PoW input buffer,
// taking the miner-mutable fields from the header itself.
func SerializeMinerWork(h *BlockHeader) [MinerWorkSize]byte {
	var buf [MinerWorkSize]byte

	workHash := HeaderWorkHash(h)
	copy(buf[offWorkHash:offWorkHash+32], workHash[:])

	binary.BigEndian.PutUint64(buf[offTimestamp:offTimestamp+8], h.Timestamp)
	binary.BigEndian.PutUint64(buf[offNonce:offNonce+8], h.Nonce)
	copy(buf[offExtraNonce:offExtraNonce+extraNonceSize], h.ExtraNonce[:])
	copy(buf[offMiner:offMiner+32], h.Miner[:])

	binary.LittleEndian.PutUint64(buf[offDAAScore:offDAAScore+8], h.DAAScore)
	putBlueWork(buf[offBlueWork:offBlueWork+blueWorkByteSize], h.BlueWork)
	binary.LittleEndian.PutUint32(buf[offBits:offBits+4], h.Bits)
	copy(buf[offPruningPoint:offPruningPoint+32], h.PruningPoint[:])
	copy(buf[offAcceptedRoot:offAcceptedRoot+32], h.AcceptedIDMerkleRoot[:])
	copy(buf[offUTXOCommit:offUTXOCommit+32], h.UTXOCommitment[:])

	return buf
}

// SerializeHeaderForWork produces the same 252-byte buffer as
// SerializeMinerWork for the same header. It exists as a distinct entry
// point because callers on the validation path start from a BlockHeader
// while mining callers start from a MinerWork; the two must be
// byte-identical.
func SerializeHeaderForWork(h *BlockHeader) [MinerWorkSize]byte {
	return SerializeMinerWork(h)
}

// ParseMinerWork decodes a 252-byte buffer into a MinerWork.
func ParseMinerWork(b []byte) (*MinerWork, error) {
	if len(b) != MinerWorkSize {
		return nil, &InvalidSizeError{Got: len(b)}
	}

	mw := &MinerWork{}
	copy(mw.HeaderWorkHash[:], b[offWorkHash:offWorkHash+32])
	mw.Timestamp = binary.BigEndian.Uint64(b[offTimestamp : offTimestamp+8])
	mw.Nonce = binary.BigEndian.Uint64(b[offNonce : offNonce+8])
	copy(mw.ExtraNonce[:], b[offExtraNonce:offExtraNonce+extraNonceSize])
	copy(mw.Miner[:], b[offMiner:offMiner+32])

	mw.DAAScore = binary.LittleEndian.Uint64(b[offDAAScore : offDAAScore+8])
	mw.BlueWork = readBlueWork(b[offBlueWork : offBlueWork+blueWorkByteSize])
	mw.Bits = binary.LittleEndian.Uint32(b[offBits : offBits+4])
	copy(mw.PruningPoint[:], b[offPruningPoint:offPruningPoint+32])
	copy(mw.AcceptedIDMerkleRoot[:], b[offAcceptedRoot:offAcceptedRoot+32])
	copy(mw.UTXOCommitment[:], b[offUTXOCommit:offUTXOCommit+32])

	return mw, nil
}

// ApplyMutableWindow patches the timestamp/nonce/extra-nonce/miner window of
// an already-serialized buffer in place, mirroring the worker's contract of
// never recomputing the immutable prefix on every PoW attempt.
func ApplyMutableWindow(buf *[MinerWorkSize]byte, timestamp, nonce uint64, extraNonce [extraNonceSize]byte, miner PublicKey) {
	binary.BigEndian.PutUint64(buf[offTimestamp:offTimestamp+8], timestamp)
	binary.BigEndian.PutUint64(buf[offNonce:offNonce+8], nonce)
	copy(buf[offExtraNonce:offExtraNonce+extraNonceSize], extraNonce[:])
	copy(buf[offMiner:offMiner+32], miner[:])
}
