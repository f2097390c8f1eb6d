// Package intake admits client-signed orders into the order store. Admission
// never touches the ledger's write path: a stored order is a cached intent,
// and only the indexer may later move it into a ledger-confirmed state.
package intake

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gallerio/marketplace-indexer-svc/internal/codec"
	"github.com/gallerio/marketplace-indexer-svc/internal/data"
	"github.com/gallerio/marketplace-indexer-svc/internal/validator"
	"gitlab.com/distributed_lab/logan/v3"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

var (
	// ErrStaleOrder means the order is expired or superseded and will never
	// be listable. Surfaced as "no longer available"; not retriable.
	ErrStaleOrder = errors.New("order is no longer available")
	// ErrNotRejectable means Reject was called on something other than a
	// live offer.
	ErrNotRejectable = errors.New("order cannot be rejected off-chain")
	ErrOrderNotFound = errors.New("order not found")
)

// ChainGate is the advisory chain check; *validator.Gate satisfies it.
type ChainGate interface {
	Check(ctx context.Context, o codec.Order) (validator.Status, error)
}

type Acceptor struct {
	log    *logan.Entry
	codec  *codec.Codec
	gate   ChainGate
	orders data.Orders
}

func NewAcceptor(log *logan.Entry, c *codec.Codec, gate ChainGate, orders data.Orders) *Acceptor {
	return &Acceptor{
		log:    log.WithField("component", "intake"),
		codec:  c,
		gate:   gate,
		orders: orders,
	}
}

// Accept validates the signed order synchronously, stores it Pending and
// promotes it to Active once the advisory chain check passes. A check that
// cannot be completed leaves the order Pending rather than blocking intake.
func (a *Acceptor) Accept(ctx context.Context, order codec.Order, signature []byte) (common.Hash, error) {
	orderHash, err := a.codec.Hash(order)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to hash order")
	}
	if _, err = a.codec.Verify(order, signature); err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to verify order signature")
	}

	existing, err := a.orders.Get(orderHash.Hex())
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to get order")
	}
	if existing != nil {
		// Identical fields hash identically, so this is the same order.
		return orderHash, nil
	}

	status, err := a.gate.Check(ctx, order)
	if err != nil {
		a.log.WithError(err).WithField("order_hash", orderHash.Hex()).
			Warn("chain check unavailable, admitting order as pending")
		status = validator.Unknown
	}
	if status == validator.Expired || status == validator.Superseded {
		return common.Hash{}, errors.Wrap(ErrStaleOrder, string(status))
	}

	row := orderRow(order, orderHash, signature)
	row.Status = data.StatusPending
	if err = a.orders.Insert(row); err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to insert order")
	}

	if status == validator.Valid {
		if err = a.orders.UpdateStatus(orderHash.Hex(), data.StatusActive, ""); err != nil {
			return common.Hash{}, errors.Wrap(err, "failed to activate order")
		}
	}

	a.log.WithFields(logan.F{"order_hash": orderHash.Hex(), "kind": order.Kind}).
		Info("accepted order")
	return orderHash, nil
}

// Status reports the order status as the backend should display it: the
// stored status plus the derived Expired hint for past-deadline rows the
// ledger has not confirmed either way.
func (a *Acceptor) Status(orderHash string) (data.OrderStatus, error) {
	order, err := a.orders.Get(orderHash)
	if err != nil {
		return "", errors.Wrap(err, "failed to get order")
	}
	if order == nil {
		return "", ErrOrderNotFound
	}
	return order.EffectiveStatus(time.Now()), nil
}

// Reject is the off-chain terminal state for offers a seller declines without
// spending gas. Listings and ledger-touched orders cannot be rejected.
func (a *Acceptor) Reject(orderHash string) error {
	order, err := a.orders.Get(orderHash)
	if err != nil {
		return errors.Wrap(err, "failed to get order")
	}
	if order == nil || order.Kind != data.KindOffer || order.Status.Terminal() ||
		order.Status == data.StatusSubmitting {
		return ErrNotRejectable
	}

	err = a.orders.UpdateStatus(orderHash, data.StatusRejected, "")
	return errors.Wrap(err, "failed to reject offer")
}

func orderRow(o codec.Order, orderHash common.Hash, signature []byte) data.Order {
	return data.Order{
		OrderHash:     orderHash.Hex(),
		Kind:          string(o.Kind),
		Maker:         o.Maker().Hex(),
		Seller:        o.Seller.Hex(),
		Buyer:         o.Buyer.Hex(),
		AssetContract: o.AssetContract.Hex(),
		AssetID:       o.AssetId.String(),
		Currency:      o.Currency.Hex(),
		Price:         o.Price.String(),
		Nonce:         o.Nonce.Int64(),
		Deadline:      o.Deadline.Int64(),
		Signature:     common.Bytes2Hex(signature),
	}
}
