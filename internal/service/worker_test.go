package service

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gallerio/marketplace-indexer-svc/internal/data"
	"github.com/gallerio/marketplace-indexer-svc/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSeller = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testBuyer  = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	testAsset  = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func TestWorkerConfirmationDepth(t *testing.T) {
	it := newIndexerTest(t, testParams())
	it.chain.extendRange(1, 6, "a")

	orderHash := crypto.Keccak256Hash([]byte("listing-1"))
	require.NoError(t, it.orders.Insert(activeListing(orderHash.Hex(), testSeller, 1)))
	it.emitFulfilled(5, 0, orderHash, testSeller, testBuyer, testAsset, big.NewInt(42), big.NewInt(100))

	// Head 6 with depth 2 confirms only up to block 4; the fulfillment in
	// block 5 is not yet visible.
	it.mustRun()
	assert.Equal(t, data.StatusActive, it.order(orderHash.Hex()).Status)
	assert.Empty(t, it.events.all())
	assert.Equal(t, uint64(4), it.cursor.cur.Block)

	// One more block on top and block 5 is confirmed.
	it.chain.extend(7, "a")
	it.mustRun()
	fulfilled := it.order(orderHash.Hex())
	assert.Equal(t, data.StatusFulfilled, fulfilled.Status)
	assert.Equal(t, testTxHash(5, 0).Hex(), fulfilled.TxHash)
	require.Len(t, it.events.all(), 1)
	assert.Equal(t, uint64(5), it.cursor.cur.Block)
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.ConfirmationLag), "head 7 against the pre-cycle cursor at 4")

	// Further cycles do not reapply the event.
	it.chain.extend(8, "a")
	it.mustRun()
	assert.Equal(t, data.StatusFulfilled, it.order(orderHash.Hex()).Status)
	assert.Len(t, it.events.all(), 1)
}

func TestWorkerIdempotentReplay(t *testing.T) {
	it := newIndexerTest(t, testParams())
	it.chain.extendRange(1, 6, "a")

	orderHash := crypto.Keccak256Hash([]byte("listing-replay"))
	require.NoError(t, it.orders.Insert(activeListing(orderHash.Hex(), testSeller, 1)))
	it.emitFulfilled(3, 0, orderHash, testSeller, testBuyer, testAsset, big.NewInt(42), big.NewInt(100))

	it.mustRun()
	require.Len(t, it.events.all(), 1)

	// A lost cursor forces the whole range to be re-fetched; the applied
	// event is recognized and skipped.
	require.NoError(t, it.cursor.Set(data.IndexerCursor{}))
	it.mustRun()

	assert.Len(t, it.events.all(), 1)
	assert.Equal(t, data.StatusFulfilled, it.order(orderHash.Hex()).Status)
	assert.Equal(t, uint64(4), it.cursor.cur.Block)
}

func TestWorkerNonceSweep(t *testing.T) {
	it := newIndexerTest(t, testParams())
	it.chain.extendRange(1, 5, "a")

	stale1 := crypto.Keccak256Hash([]byte("stale-1"))
	stale2 := crypto.Keccak256Hash([]byte("stale-2"))
	current := crypto.Keccak256Hash([]byte("current"))
	done := crypto.Keccak256Hash([]byte("done"))

	require.NoError(t, it.orders.Insert(activeListing(stale1.Hex(), testSeller, 1)))
	pending := activeListing(stale2.Hex(), testSeller, 2)
	pending.Status = data.StatusPending
	require.NoError(t, it.orders.Insert(pending))
	require.NoError(t, it.orders.Insert(activeListing(current.Hex(), testSeller, 3)))
	settled := activeListing(done.Hex(), testSeller, 1)
	settled.Status = data.StatusFulfilled
	require.NoError(t, it.orders.Insert(settled))

	it.emitNonceIncremented(3, 0, testSeller, big.NewInt(3))
	it.mustRun()

	assert.Equal(t, data.StatusCancelled, it.order(stale1.Hex()).Status)
	assert.Equal(t, data.StatusCancelled, it.order(stale2.Hex()).Status)
	assert.Equal(t, data.StatusActive, it.order(current.Hex()).Status, "nonce at the counter stays live")
	assert.Equal(t, data.StatusFulfilled, it.order(done.Hex()).Status, "terminal states are never swept")

	events := it.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, data.EventNonceIncremented, events[0].Kind)
	effects, err := events[0].DecodeEffects()
	require.NoError(t, err)
	assert.Len(t, effects, 2)
}

func TestWorkerCrashResumption(t *testing.T) {
	params := testParams()
	params.BlockRange = 1
	it := newIndexerTest(t, params)
	it.chain.extendRange(1, 6, "a")

	orderA := crypto.Keccak256Hash([]byte("order-a"))
	orderB := crypto.Keccak256Hash([]byte("order-b"))
	require.NoError(t, it.orders.Insert(activeListing(orderA.Hex(), testSeller, 1)))
	require.NoError(t, it.orders.Insert(activeListing(orderB.Hex(), testSeller, 2)))
	it.emitFulfilled(2, 0, orderA, testSeller, testBuyer, testAsset, big.NewInt(42), big.NewInt(100))
	it.emitCancelled(4, 0, orderB, testSeller, testAsset, big.NewInt(42))

	// The node loses block 3 mid-run; the cycle dies between the two events.
	delete(it.chain.headers, 3)
	require.Error(t, it.run())

	assert.Equal(t, data.StatusFulfilled, it.order(orderA.Hex()).Status)
	assert.Equal(t, data.StatusActive, it.order(orderB.Hex()).Status)
	assert.Equal(t, uint64(2), it.cursor.cur.Block)

	// The next cycle picks up exactly where the committed cursor left off.
	it.chain.extend(3, "a")
	it.mustRun()

	assert.Equal(t, data.StatusCancelled, it.order(orderB.Hex()).Status)
	assert.Equal(t, uint64(4), it.cursor.cur.Block)
	assert.Len(t, it.events.all(), 2)
}

func TestWorkerReorgRollback(t *testing.T) {
	it := newIndexerTest(t, testParams())
	it.chain.extendRange(1, 6, "a")

	orderA := crypto.Keccak256Hash([]byte("order-a"))
	orderB := crypto.Keccak256Hash([]byte("order-b"))
	ghost := crypto.Keccak256Hash([]byte("never-seen-off-chain"))
	require.NoError(t, it.orders.Insert(activeListing(orderA.Hex(), testSeller, 1)))
	require.NoError(t, it.orders.Insert(activeListing(orderB.Hex(), testSeller, 2)))

	it.emitFulfilled(2, 0, orderA, testSeller, testBuyer, testAsset, big.NewInt(42), big.NewInt(100))
	it.emitCancelled(3, 0, ghost, testSeller, testAsset, big.NewInt(7))
	it.emitFulfilled(4, 0, orderB, testSeller, testBuyer, testAsset, big.NewInt(43), big.NewInt(200))

	it.mustRun()
	require.Equal(t, uint64(4), it.cursor.cur.Block)
	require.Len(t, it.events.all(), 3)

	// The ledger created an order the store never saw: a shadow row.
	shadow := it.order(ghost.Hex())
	assert.Equal(t, data.StatusCancelled, shadow.Status)
	assert.Equal(t, data.KindListing, shadow.Kind)
	assert.Equal(t, testSeller.Hex(), shadow.Maker)
	assert.Empty(t, shadow.Signature)

	// Blocks 3+ are replaced by a fork carrying none of those events.
	it.chain.extendRange(3, 7, "b")

	// First cycle after the fork only rolls back to the common ancestor.
	it.mustRun()
	assert.Equal(t, uint64(2), it.cursor.cur.Block)
	assert.Equal(t, it.chain.headers[2].Hash().Hex(), it.cursor.cur.BlockHash)

	assert.Equal(t, data.StatusFulfilled, it.order(orderA.Hex()).Status, "pre-fork event survives")
	restored := it.order(orderB.Hex())
	assert.Equal(t, data.StatusActive, restored.Status)
	assert.Empty(t, restored.TxHash)
	gone, err := it.orders.Get(ghost.Hex())
	require.NoError(t, err)
	assert.Nil(t, gone, "orphaned shadow order is removed")
	assert.Len(t, it.events.all(), 1)

	// The following cycle indexes the fork normally.
	it.mustRun()
	assert.Equal(t, uint64(5), it.cursor.cur.Block)
	assert.Equal(t, data.StatusActive, it.order(orderB.Hex()).Status)
}

func TestWorkerMidCycleReorg(t *testing.T) {
	it := newIndexerTest(t, testParams())
	it.chain.extendRange(1, 6, "a")

	orderHash := crypto.Keccak256Hash([]byte("mid-cycle"))
	require.NoError(t, it.orders.Insert(activeListing(orderHash.Hex(), testSeller, 1)))
	it.emitFulfilled(3, 0, orderHash, testSeller, testBuyer, testAsset, big.NewInt(42), big.NewInt(100))

	// The chain forks between the worker's log fetch and its commit. The
	// committed cursor hash must belong to the same chain as the applied
	// logs, so the next cycle sees the fork instead of trusting the cursor.
	it.chain.afterFilter = func() {
		it.chain.extendRange(3, 7, "b")
	}

	it.mustRun()
	require.Equal(t, data.StatusFulfilled, it.order(orderHash.Hex()).Status)
	assert.NotEqual(t, it.chain.headers[4].Hash().Hex(), it.cursor.cur.BlockHash,
		"cursor hash stays on the chain the logs came from")

	// The fork is detected and the orphaned fulfillment rolled back. No
	// indexed block survives, so the cursor rewinds to the floor.
	it.mustRun()
	assert.Equal(t, data.StatusActive, it.order(orderHash.Hex()).Status)
	assert.Empty(t, it.events.all())
	assert.Equal(t, uint64(0), it.cursor.cur.Block)

	// Indexing then proceeds on the fork.
	it.mustRun()
	assert.Equal(t, uint64(5), it.cursor.cur.Block)
	assert.Equal(t, it.chain.headers[5].Hash().Hex(), it.cursor.cur.BlockHash)
}

func TestWorkerSkipsRemovedLogs(t *testing.T) {
	it := newIndexerTest(t, testParams())
	it.chain.extendRange(1, 6, "a")

	orderHash := crypto.Keccak256Hash([]byte("removed"))
	require.NoError(t, it.orders.Insert(activeListing(orderHash.Hex(), testSeller, 1)))
	it.emitFulfilled(3, 0, orderHash, testSeller, testBuyer, testAsset, big.NewInt(42), big.NewInt(100))
	it.chain.logs[len(it.chain.logs)-1].Removed = true

	it.mustRun()
	assert.Equal(t, data.StatusActive, it.order(orderHash.Hex()).Status)
	assert.Empty(t, it.events.all())
	assert.Equal(t, uint64(4), it.cursor.cur.Block)
}
