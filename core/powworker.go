package core

// powworker.go implements the stateful PoW hashing context. The worker owns
// exactly one cached 252-byte buffer and patches only the mutable window
// between attempts rather than re-serializing on every nonce increment.

import (
	"crypto/sha256"
)

// powHashDomainTag and blockHashDomainTag separate the two hash outputs
// derived from the same cached buffer so pow_hash() and block_hash() can
// never collide.
const (
	powHashDomainTag   byte = 0x01
	blockHashDomainTag byte = 0x02
)

// Worker is a reusable PoW hashing context. A Worker is not safe for
// concurrent use; callers that mine on multiple threads construct one
// Worker per thread.
type Worker struct {
	initialized bool
	buf         [MinerWorkSize]byte
	scratch     [sha256.Size]byte
	work        *MinerWork
}

// NewWorker returns an uninitialized PoW worker.
func NewWorker() *Worker {
	return &Worker{}
}

// SetWork caches the serialized form of work. Subsequent calls reuse the
// same backing buffer.
func (w *Worker) SetWork(work *MinerWork) {
	w.work = work
	w.buf = serializeMinerWorkStruct(work)
	w.initialized = true
}

// IsInitialized reports whether SetWork has been called.
func (w *Worker) IsInitialized() bool {
	return w.initialized
}

// IncreaseNonce increments the cached nonce by one and patches bytes
// [40:48] of the cached buffer in place.
func (w *Worker) IncreaseNonce() error {
	if !w.initialized {
		return ErrWorkerUninitialized
	}
	w.work.Nonce++
	ApplyMutableWindow(&w.buf, w.work.Timestamp, w.work.Nonce, w.work.ExtraNonce, w.work.Miner)
	return nil
}

// SetTimestamp updates the cached timestamp and patches bytes [32:40].
func (w *Worker) SetTimestamp(ts uint64) error {
	if !w.initialized {
		return ErrWorkerUninitialized
	}
	w.work.Timestamp = ts
	ApplyMutableWindow(&w.buf, w.work.Timestamp, w.work.Nonce, w.work.ExtraNonce, w.work.Miner)
	return nil
}

// PowHash runs the canonical PoW hash over the cached buffer. It is pure:
// repeated calls on an unmodified buffer always return the same value.
func (w *Worker) PowHash() (Hash, error) {
	if !w.initialized {
		return ZeroHash, ErrWorkerUninitialized
	}
	return doubleSHA256WithTag(powHashDomainTag, w.buf[:]), nil
}

// BlockHash computes a plain content hash over the cached buffer, used to
// identify the candidate block independently of its PoW validity.
func (w *Worker) BlockHash() (Hash, error) {
	if !w.initialized {
		return ZeroHash, ErrWorkerUninitialized
	}
	return singleSHA256WithTag(blockHashDomainTag, w.buf[:]), nil
}

// Buffer returns a copy of the currently cached 252-byte buffer, primarily
// for tests asserting bit-parity against header serialization.
func (w *Worker) Buffer() [MinerWorkSize]byte {
	return w.buf
}

func serializeMinerWorkStruct(mw *MinerWork) [MinerWorkSize]byte {
	h := &BlockHeader{
		DAAScore:             mw.DAAScore,
		BlueWork:             mw.BlueWork,
		Bits:                 mw.Bits,
		PruningPoint:         mw.PruningPoint,
		AcceptedIDMerkleRoot: mw.AcceptedIDMerkleRoot,
		UTXOCommitment:       mw.UTXOCommitment,
		Miner:                mw.Miner,
		ExtraNonce:           mw.ExtraNonce,
		Timestamp:            mw.Timestamp,
		Nonce:                mw.Nonce,
	}
	buf := SerializeMinerWork(h)
	// HeaderWorkHash(h) above would recompute from the (mostly empty)
	// immutable fields; overwrite with the MinerWork's own stored work hash
	// since that is the authoritative value once a MinerWork exists.
	copy(buf[offWorkHash:offWorkHash+32], mw.HeaderWorkHash[:])
	return buf
}

func doubleSHA256WithTag(tag byte, data []byte) Hash {
	first := sha256.Sum256(append([]byte{tag}, data...))
	return sha256.Sum256(first[:])
}

func singleSHA256WithTag(tag byte, data []byte) Hash {
	return sha256.Sum256(append([]byte{tag}, data...))
}
