package core

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

type fundedSender struct {
	pub  PublicKey
	priv ed25519.PrivateKey
}

func newFundedSender(t *testing.T, store Store, balance Amount) fundedSender {
	t.Helper()
	pub, priv, err := GenerateKeypair()
	require.NoError(t, err)
	store.SetNonceAt(pub, 0, VersionedNonce{Value: 0})
	store.SetBalanceAt(pub, TOS_ASSET, 0, VersionedBalance{Value: balance})
	return fundedSender{pub: pub, priv: priv}
}

func transferTx(t *testing.T, from fundedSender, to PublicKey, amount, fee Amount, nonce uint64) *Transaction {
	t.Helper()
	tx := &Transaction{
		Version: 1,
		Nonce:   nonce,
		Fee:     fee,
		FeeType: FeeTypeTOS,
		Body: TransactionBody{
			Kind:      BodyKindTransfer,
			Transfers: []TransferOutput{{Destination: to, Asset: TOS_ASSET, Amount: amount}},
		},
	}
	require.NoError(t, tx.Sign(from.priv))
	return tx
}

// buildIndependentBatch returns n transactions from n distinct, independently
// funded senders, each sending to a distinct destination. Independent senders
// mean neither ordering nor concurrency can introduce a nonce conflict,
// isolating the conservation property under test.
func buildIndependentBatch(t *testing.T, store Store, n int) []*Transaction {
	t.Helper()
	txs := make([]*Transaction, n)
	for i := 0; i < n; i++ {
		sender := newFundedSender(t, store, 10*COIN_VALUE)
		dest, _, err := GenerateKeypair()
		require.NoError(t, err)
		txs[i] = transferTx(t, sender, dest, COIN_VALUE, 1_000, 0)
	}
	return txs
}

func totalState(store Store, txs []*Transaction) map[PublicKey]Amount {
	totals := make(map[PublicKey]Amount)
	for _, tx := range txs {
		_, bal, ok := store.GetBalanceAt(tx.Source, TOS_ASSET, 1)
		if ok {
			totals[tx.Source] = bal.Value
		}
		for _, out := range tx.Body.Transfers {
			_, bal, ok := store.GetBalanceAt(out.Destination, TOS_ASSET, 1)
			if ok {
				totals[out.Destination] = bal.Value
			}
		}
	}
	return totals
}

// TestSequentialAndParallelAgreeOnIndependentBatch checks the core
// guarantee: for the same admitted transaction set, the parallel
// orchestrator's final state equals sequential application's.
func TestSequentialAndParallelAgreeOnIndependentBatch(t *testing.T) {
	ctx := context.Background()
	blockCtx := BlockContext{Topoheight: 1, BlockHeight: 1}

	seqStore := NewMemStore()
	txs := buildIndependentBatch(t, seqStore, 20)

	parStore := NewMemStore()
	for _, tx := range txs {
		_, nonce, _ := seqStore.GetNonceAt(tx.Source, 0)
		_, bal, _ := seqStore.GetBalanceAt(tx.Source, TOS_ASSET, 0)
		parStore.SetNonceAt(tx.Source, 0, nonce)
		parStore.SetBalanceAt(tx.Source, TOS_ASSET, 0, bal)
	}

	seqTable := NewAccountTable(seqStore, 0)
	seqResults := ExecuteSequential(ctx, txs, seqTable, TrivialAncestryChecker{}, NoopContractExecutor{}, blockCtx)
	seqTable.CommitToStore(1)

	parTable := NewAccountTable(parStore, 0)
	parResults := ExecuteParallel(ctx, txs, parTable, TrivialAncestryChecker{}, NoopContractExecutor{}, blockCtx, 8)
	parTable.CommitToStore(1)

	for i, tx := range txs {
		require.True(t, seqResults[i].Success, "sequential tx %d: %v", i, seqResults[i].Error)
		require.True(t, parResults[i].Success, "parallel tx %d: %v", i, parResults[i].Error)
		require.Equal(t, tx.Hash(), seqResults[i].TxHash)
		require.Equal(t, tx.Hash(), parResults[i].TxHash)
	}

	require.Equal(t, seqTable.BurnedSupply(), parTable.BurnedSupply())
	require.Equal(t, seqTable.GasFeeTotal(), parTable.GasFeeTotal())
	require.Equal(t, totalState(seqStore, txs), totalState(parStore, txs))
}

// TestParallelSameSenderNonceConflict exercises the nonce CAS as the sole
// ordering primitive between two transactions sharing a sender: exactly one
// of two same-nonce transactions may succeed, and it must be the one whose
// final state a sequential run of the winner alone would also produce.
func TestParallelSameSenderNonceConflict(t *testing.T) {
	ctx := context.Background()
	blockCtx := BlockContext{Topoheight: 1}

	store := NewMemStore()
	sender := newFundedSender(t, store, 10*COIN_VALUE)
	destA, _, err := GenerateKeypair()
	require.NoError(t, err)
	destB, _, err := GenerateKeypair()
	require.NoError(t, err)

	txA := transferTx(t, sender, destA, COIN_VALUE, 1_000, 0)
	txB := transferTx(t, sender, destB, COIN_VALUE, 1_000, 0)

	table := NewAccountTable(store, 0)
	results := ExecuteParallel(ctx, []*Transaction{txA, txB}, table, TrivialAncestryChecker{}, NoopContractExecutor{}, blockCtx, 4)

	successes := 0
	for _, r := range results {
		if r.Success {
			successes++
		}
	}
	require.Equal(t, 1, successes, "exactly one of two same-nonce transactions from the same sender must succeed")

	failing := results[0]
	if failing.Success {
		failing = results[1]
	}
	require.ErrorIs(t, failing.Error, ErrNonceConflict)
}

// TestParallelChainedNoncesFromSameSender verifies that a strictly increasing
// nonce chain from one sender completes in full regardless of submission
// order within the concurrent batch, matching sequential application.
func TestParallelChainedNoncesFromSameSender(t *testing.T) {
	ctx := context.Background()
	blockCtx := BlockContext{Topoheight: 1}

	seqStore := NewMemStore()
	sender := newFundedSender(t, seqStore, 100*COIN_VALUE)

	const chainLen = 10
	txs := make([]*Transaction, chainLen)
	for i := 0; i < chainLen; i++ {
		dest, _, err := GenerateKeypair()
		require.NoError(t, err)
		txs[i] = transferTx(t, sender, dest, COIN_VALUE, 1_000, uint64(i))
	}

	parStore := NewMemStore()
	parStore.SetNonceAt(sender.pub, 0, VersionedNonce{Value: 0})
	parStore.SetBalanceAt(sender.pub, TOS_ASSET, 0, VersionedBalance{Value: 100 * COIN_VALUE})

	seqTable := NewAccountTable(seqStore, 0)
	seqResults := ExecuteSequential(ctx, txs, seqTable, TrivialAncestryChecker{}, NoopContractExecutor{}, blockCtx)
	seqTable.CommitToStore(1)

	parTable := NewAccountTable(parStore, 0)
	parResults := ExecuteParallel(ctx, txs, parTable, TrivialAncestryChecker{}, NoopContractExecutor{}, blockCtx, 16)
	parTable.CommitToStore(1)

	for i := range txs {
		require.Equal(t, seqResults[i].Success, parResults[i].Success, "tx %d outcome diverged", i)
	}

	_, seqNonce, _ := seqStore.GetNonceAt(sender.pub, 1)
	_, parNonce, _ := parStore.GetNonceAt(sender.pub, 1)
	require.Equal(t, seqNonce.Value, parNonce.Value)

	_, seqBal, _ := seqStore.GetBalanceAt(sender.pub, TOS_ASSET, 1)
	_, parBal, _ := parStore.GetBalanceAt(sender.pub, TOS_ASSET, 1)
	require.Equal(t, seqBal.Value, parBal.Value)
	require.Equal(t, seqTable.GasFeeTotal(), parTable.GasFeeTotal())
}

// TestRunOneVerifyFailureLeavesStateUnchanged checks that a transaction
// failing Verify (insufficient funds) makes no staged mutation visible to
// the shared table: a non-nil Verify return leaves state completely
// unchanged.
func TestRunOneVerifyFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	sender := newFundedSender(t, store, 1)
	dest, _, err := GenerateKeypair()
	require.NoError(t, err)

	tx := transferTx(t, sender, dest, COIN_VALUE, 1_000, 0)
	table := NewAccountTable(store, 0)
	result := runOne(ctx, tx, table, TrivialAncestryChecker{}, NoopContractExecutor{}, BlockContext{})
	require.False(t, result.Success)
	require.ErrorIs(t, result.Error, ErrInsufficientFunds)

	table.CommitToStore(1)
	_, _, ok := store.GetNonceAt(sender.pub, 1)
	require.False(t, ok, "a failed verify must not commit any nonce advance")
}
