package service

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gallerio/marketplace-indexer-svc/internal/config"
	"github.com/gallerio/marketplace-indexer-svc/internal/data"
	"github.com/gallerio/marketplace-indexer-svc/internal/gobind"
	"github.com/stretchr/testify/require"
	"gitlab.com/distributed_lab/kit/pgdb"
	"gitlab.com/distributed_lab/logan/v3"
)

var testMarketAddr = common.HexToAddress("0x00000000000000000000000000000000000c0feE")

type memDB struct{}

func (memDB) Transaction(fn pgdb.TransactionFunc) error { return fn() }

type memOrders struct {
	rows map[string]data.Order
}

func newMemOrders() *memOrders { return &memOrders{rows: map[string]data.Order{}} }

func (m *memOrders) Insert(o data.Order) error {
	m.rows[o.OrderHash] = o
	return nil
}

func (m *memOrders) Get(orderHash string) (*data.Order, error) {
	o, ok := m.rows[orderHash]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *memOrders) UpdateStatus(orderHash string, status data.OrderStatus, txHash string) error {
	o := m.rows[orderHash]
	o.Status = status
	o.TxHash = txHash
	m.rows[orderHash] = o
	return nil
}

func (m *memOrders) Delete(orderHash string) error {
	delete(m.rows, orderHash)
	return nil
}

func (m *memOrders) SweepNonce(maker string, belowNonce int64) ([]data.Order, error) {
	var swept []data.Order
	var hashes []string
	for hash := range m.rows {
		hashes = append(hashes, hash)
	}
	sort.Strings(hashes)
	for _, hash := range hashes {
		o := m.rows[hash]
		live := o.Status == data.StatusPending || o.Status == data.StatusActive ||
			o.Status == data.StatusSubmitting
		if o.Maker == maker && live && o.Nonce < belowNonce {
			swept = append(swept, o)
			o.Status = data.StatusCancelled
			m.rows[hash] = o
		}
	}
	return swept, nil
}

func (m *memOrders) ListActiveFor(string, string, time.Time) ([]data.Order, error) {
	return nil, nil
}

func (m *memOrders) ListOffersReceivedBy(string, time.Time) ([]data.Order, error) {
	return nil, nil
}

type memEvents struct {
	rows map[string]data.IndexedEvent
}

func newMemEvents() *memEvents { return &memEvents{rows: map[string]data.IndexedEvent{}} }

func eventKey(txHash string, logIndex uint64) string {
	return fmt.Sprintf("%s/%d", txHash, logIndex)
}

func (m *memEvents) Get(txHash string, logIndex uint64) (*data.IndexedEvent, error) {
	e, ok := m.rows[eventKey(txHash, logIndex)]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *memEvents) Insert(e data.IndexedEvent) error {
	key := eventKey(e.TxHash, e.LogIndex)
	if _, ok := m.rows[key]; ok {
		return fmt.Errorf("duplicate event %s", key)
	}
	m.rows[key] = e
	return nil
}

func (m *memEvents) all() []data.IndexedEvent {
	out := make([]data.IndexedEvent, 0, len(m.rows))
	for _, e := range m.rows {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		return out[i].LogIndex < out[j].LogIndex
	})
	return out
}

func (m *memEvents) ListAbove(block uint64) ([]data.IndexedEvent, error) {
	var out []data.IndexedEvent
	for _, e := range m.all() {
		if e.BlockNumber > block {
			out = append(out, e)
		}
	}
	// undo order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (m *memEvents) DeleteAbove(block uint64) error {
	for key, e := range m.rows {
		if e.BlockNumber > block {
			delete(m.rows, key)
		}
	}
	return nil
}

func (m *memEvents) Blocks(from uint64) ([]data.BlockRef, error) {
	seen := map[uint64]string{}
	for _, e := range m.rows {
		if e.BlockNumber >= from {
			seen[e.BlockNumber] = e.BlockHash
		}
	}
	refs := make([]data.BlockRef, 0, len(seen))
	for number, hash := range seen {
		refs = append(refs, data.BlockRef{Number: number, Hash: hash})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Number > refs[j].Number })
	return refs, nil
}

type memCursor struct {
	cur data.IndexerCursor
}

func (m *memCursor) Get() (*data.IndexerCursor, error) {
	cur := m.cur
	return &cur, nil
}

func (m *memCursor) Set(cur data.IndexerCursor) error {
	m.cur = cur
	return nil
}

// fakeChain is a scripted ledger: headers per height plus the logs the filter
// would return. Logs on replaced headers are no longer served.
type fakeChain struct {
	head    uint64
	headers map[uint64]*types.Header
	logs    []types.Log

	// afterFilter fires once after the next FilterLogs call, letting tests
	// mutate the chain between the worker's reads within one cycle.
	afterFilter func()
}

func newFakeChain() *fakeChain {
	return &fakeChain{headers: map[uint64]*types.Header{}}
}

// extend installs a header at the height, replacing any previous fork.
func (c *fakeChain) extend(number uint64, fork string) *types.Header {
	header := &types.Header{
		Number:     new(big.Int).SetUint64(number),
		Difficulty: big.NewInt(1),
		Extra:      []byte(fork),
	}
	c.headers[number] = header
	if number > c.head {
		c.head = number
	}
	return header
}

func (c *fakeChain) extendRange(from, to uint64, fork string) {
	for n := from; n <= to; n++ {
		c.extend(n, fork)
	}
}

func (c *fakeChain) BlockNumber(context.Context) (uint64, error) {
	return c.head, nil
}

func (c *fakeChain) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	header, ok := c.headers[number.Uint64()]
	if !ok {
		return nil, ethereum.NotFound
	}
	return header, nil
}

func (c *fakeChain) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	from, to := q.FromBlock.Uint64(), q.ToBlock.Uint64()
	var out []types.Log
	for _, l := range c.logs {
		if l.BlockNumber < from || l.BlockNumber > to {
			continue
		}
		if len(q.Addresses) > 0 && l.Address != q.Addresses[0] {
			continue
		}
		header, ok := c.headers[l.BlockNumber]
		if !ok || header.Hash() != l.BlockHash {
			continue
		}
		out = append(out, l)
	}

	if c.afterFilter != nil {
		fn := c.afterFilter
		c.afterFilter = nil
		fn()
	}
	return out, nil
}

type indexerTest struct {
	t      *testing.T
	market *gobind.Marketplace
	chain  *fakeChain
	orders *memOrders
	events *memEvents
	cursor *memCursor
	svc    *service
}

func newIndexerTest(t *testing.T, params config.Indexer) *indexerTest {
	t.Helper()

	market, err := gobind.NewMarketplace(testMarketAddr, nil)
	require.NoError(t, err)

	it := &indexerTest{
		t:      t,
		market: market,
		chain:  newFakeChain(),
		orders: newMemOrders(),
		events: newMemEvents(),
		cursor: &memCursor{},
	}
	it.svc = newIndexer(logan.New(), market, it.chain, params, time.Second, memDB{},
		it.orders, it.events, it.cursor, NewNotifier(logan.New(), nil))
	return it
}

func (it *indexerTest) run() error {
	return it.svc.worker(context.Background())
}

func (it *indexerTest) mustRun() {
	it.t.Helper()
	require.NoError(it.t, it.run())
}

func (it *indexerTest) order(orderHash string) data.Order {
	it.t.Helper()
	o, err := it.orders.Get(orderHash)
	require.NoError(it.t, err)
	require.NotNil(it.t, o, "order %s not stored", orderHash)
	return *o
}

func testTxHash(block uint64, seq int) common.Hash {
	return crypto.Keccak256Hash([]byte(fmt.Sprintf("tx-%d-%d", block, seq)))
}

func (it *indexerTest) emit(block uint64, logIndex uint, eventName string,
	topics []common.Hash, nonIndexed ...interface{}) {
	it.t.Helper()

	header, ok := it.chain.headers[block]
	require.True(it.t, ok, "no header at block %d", block)

	event := it.market.Abi().Events[eventName]
	payload, err := event.Inputs.NonIndexed().Pack(nonIndexed...)
	require.NoError(it.t, err)

	it.chain.logs = append(it.chain.logs, types.Log{
		Address:     testMarketAddr,
		Topics:      append([]common.Hash{event.ID}, topics...),
		Data:        payload,
		BlockNumber: block,
		BlockHash:   header.Hash(),
		TxHash:      testTxHash(block, int(logIndex)),
		Index:       logIndex,
	})
}

func (it *indexerTest) emitFulfilled(block uint64, logIndex uint, orderHash common.Hash,
	seller, buyer, assetContract common.Address, assetID, price *big.Int) {
	it.emit(block, logIndex, "OrderFulfilled",
		[]common.Hash{orderHash, common.BytesToHash(seller.Bytes())},
		buyer, assetContract, assetID, price)
}

func (it *indexerTest) emitCancelled(block uint64, logIndex uint, orderHash common.Hash,
	seller, assetContract common.Address, assetID *big.Int) {
	it.emit(block, logIndex, "OrderCancelled",
		[]common.Hash{orderHash, common.BytesToHash(seller.Bytes())},
		assetContract, assetID)
}

func (it *indexerTest) emitNonceIncremented(block uint64, logIndex uint,
	user common.Address, newNonce *big.Int) {
	it.emit(block, logIndex, "NonceIncremented",
		[]common.Hash{common.BytesToHash(user.Bytes())}, newNonce)
}

func testParams() config.Indexer {
	return config.Indexer{
		IndexPeriod:       time.Second,
		ConfirmationDepth: 2,
		BlockRange:        100,
		MaxReorgDepth:     64,
	}
}

func activeListing(orderHash string, maker common.Address, nonce int64) data.Order {
	return data.Order{
		OrderHash:     orderHash,
		Kind:          data.KindListing,
		Maker:         maker.Hex(),
		Seller:        maker.Hex(),
		Buyer:         common.Address{}.Hex(),
		AssetContract: common.HexToAddress("0x1111111111111111111111111111111111111111").Hex(),
		AssetID:       "42",
		Currency:      common.Address{}.Hex(),
		Price:         "100",
		Nonce:         nonce,
		Deadline:      1900000000,
		Signature:     "deadbeef",
		Status:        data.StatusActive,
	}
}
