// Package validator gates stale or superseded orders before gas is spent.
// Its verdicts are advisory: the ledger re-validates atomically at fulfillment
// time and is the only source that can make a status terminal.
package validator

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gallerio/marketplace-indexer-svc/internal/codec"
	"github.com/gallerio/marketplace-indexer-svc/internal/gobind"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

type Status string

const (
	Valid      Status = "valid"
	Expired    Status = "expired"
	Superseded Status = "superseded"
	Unknown    Status = "unknown"
)

// ChainView is a pulled snapshot of the ledger state the check runs against.
// Modelled as an explicit value, not an ambient global, so tests and reorg
// handling can inject arbitrary snapshots.
type ChainView struct {
	NonceCounter *big.Int // UserNonceCounter[maker]
	BlockTime    uint64   // timestamp of the snapshot's head block
}

// Check classifies the order against the snapshot. Superseded reflects the
// bulk-invalidation rule: any nonce below the maker's counter is void, whether
// or not the indexer has seen it consumed.
func Check(o codec.Order, view ChainView) Status {
	if view.NonceCounter == nil || view.BlockTime == 0 {
		return Unknown
	}
	if o.Nonce == nil || o.Deadline == nil {
		return Unknown
	}
	if o.Nonce.Cmp(view.NonceCounter) < 0 {
		return Superseded
	}
	if o.Deadline.Uint64() <= view.BlockTime {
		return Expired
	}
	return Valid
}

// HeaderReader supplies the head block for snapshotting. *ethclient.Client
// satisfies it.
type HeaderReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Gate pulls a fresh ChainView from the contract and chain head and runs Check.
type Gate struct {
	market *gobind.Marketplace
	eth    HeaderReader
}

func NewGate(market *gobind.Marketplace, eth HeaderReader) *Gate {
	return &Gate{market: market, eth: eth}
}

func (g *Gate) Snapshot(ctx context.Context, maker common.Address) (ChainView, error) {
	head, err := g.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return ChainView{}, errors.Wrap(err, "failed to get head block header")
	}

	counter, err := g.market.UserNonces(&bind.CallOpts{Context: ctx}, maker)
	if err != nil {
		return ChainView{}, errors.Wrap(err, "failed to get user nonce counter")
	}

	return ChainView{NonceCounter: counter, BlockTime: head.Time}, nil
}

func (g *Gate) Check(ctx context.Context, o codec.Order) (Status, error) {
	view, err := g.Snapshot(ctx, o.Maker())
	if err != nil {
		return Unknown, errors.Wrap(err, "failed to snapshot chain state")
	}
	return Check(o, view), nil
}
