package service

import (
	"context"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gallerio/marketplace-indexer-svc/internal/config"
	"github.com/gallerio/marketplace-indexer-svc/internal/data"
	"github.com/gallerio/marketplace-indexer-svc/internal/data/postgres"
	"github.com/gallerio/marketplace-indexer-svc/internal/gobind"
	"gitlab.com/distributed_lab/logan/v3"
	"gitlab.com/distributed_lab/logan/v3/errors"
	"gitlab.com/distributed_lab/running"
)

// ChainClient is the pull-based view of the ledger the indexer consumes.
// *ethclient.Client satisfies it; tests inject scripted chains.
type ChainClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// Handler applies one decoded ledger log to the order store and reports the
// indexed event row plus the notifications it produced.
type Handler func(log *types.Log) (*applied, error)

type applied struct {
	event   data.IndexedEvent
	notices []Notice
}

type service struct {
	log    *logan.Entry
	market *gobind.Marketplace
	eth    ChainClient

	params  config.Indexer
	timeout time.Duration

	db       data.Transactioner
	orders   data.Orders
	events   data.Events
	cursor   data.Cursor
	notifier *Notifier

	handlers  map[string]Handler
	marketAbi abi.ABI
}

func newIndexer(log *logan.Entry, market *gobind.Marketplace, eth ChainClient,
	params config.Indexer, timeout time.Duration, db data.Transactioner,
	orders data.Orders, events data.Events, cursor data.Cursor, notifier *Notifier) *service {

	s := &service{
		log:       log,
		market:    market,
		eth:       eth,
		params:    params,
		timeout:   timeout,
		db:        db,
		orders:    orders,
		events:    events,
		cursor:    cursor,
		notifier:  notifier,
		marketAbi: market.Abi(),
	}

	s.handlers = map[string]Handler{
		"OrderFulfilled":   s.handleOrderFulfilled,
		"OrderCancelled":   s.handleOrderCancelled,
		"NonceIncremented": s.handleNonceIncremented,
	}

	return s
}

func newService(cfg config.Config) *service {
	db := cfg.DB()
	net := cfg.Network()

	cursorQ, err := postgres.NewCursor(db, net.ContractAddress.Hex())
	if err != nil {
		panic(errors.Wrap(err, "failed to instantiate cursor DB API"))
	}

	return newIndexer(
		cfg.Log(),
		net.Marketplace,
		net.EthClient,
		cfg.Indexer(),
		net.RequestTimeout,
		db,
		postgres.NewOrders(db),
		postgres.NewEvents(db),
		cursorQ,
		NewNotifier(cfg.Log(), cfg.Collector()),
	)
}

func Run(cfg config.Config) {
	s := newService(cfg)
	ctx := context.Background()

	// The cursor has exactly one writer; a second replica stands by until the
	// advisory lock frees up.
	lock := postgres.NewLeaderLock(cfg.DB(), cfg.Network().ContractAddress.Hex())
	running.UntilSuccess(ctx, s.log, "leader-lock", func(lctx context.Context) (bool, error) {
		ok, err := lock.TryAcquire(lctx)
		if err != nil {
			return false, errors.Wrap(err, "failed to acquire cursor ownership")
		}
		if !ok {
			s.log.Info("another indexer owns the cursor, standing by")
		}
		return ok, nil
	}, 5*time.Second, time.Minute)
	defer func() {
		if err := lock.Release(ctx); err != nil {
			s.log.WithError(err).Warn("failed to release cursor ownership")
		}
	}()

	s.log.Info("service started")
	running.WithBackOff(ctx, s.log, "indexer", s.worker,
		cfg.Indexer().IndexPeriod, time.Second, time.Minute)
}

func (s *service) filters(from, to uint64) ethereum.FilterQuery {
	topics := make([]common.Hash, 0, len(s.handlers))
	for eventName := range s.handlers {
		topics = append(topics, s.marketAbi.Events[eventName].ID)
	}

	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{s.market.Address()},
		Topics:    [][]common.Hash{topics},
	}
}
