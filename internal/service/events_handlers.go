package service

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gallerio/marketplace-indexer-svc/internal/data"
	"github.com/gallerio/marketplace-indexer-svc/internal/metrics"
	"gitlab.com/distributed_lab/logan/v3"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

func (s *service) handleOrderFulfilled(log *types.Log) (*applied, error) {
	event, err := s.market.ParseOrderFulfilled(*log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unpack OrderFulfilled")
	}
	orderHash := common.BytesToHash(event.OrderHash[:]).Hex()

	effects, err := s.transition(orderHash, data.StatusFulfilled, log.TxHash.Hex(), func() data.Order {
		return shadowOrder(orderHash, event.Seller, event.Buyer, event.AssetContract,
			event.AssetId.String(), event.Price.String(), data.StatusFulfilled, log.TxHash.Hex())
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("order_hash", orderHash).Info("order fulfilled")
	return &applied{
		event: data.IndexedEvent{
			TxHash:      log.TxHash.Hex(),
			LogIndex:    uint64(log.Index),
			BlockNumber: log.BlockNumber,
			BlockHash:   log.BlockHash.Hex(),
			Kind:        data.EventOrderFulfilled,
			OrderHash:   orderHash,
			Account:     event.Seller.Hex(),
			Value:       event.Price.String(),
			Effects:     effects,
		},
		notices: []Notice{{OrderHash: orderHash, Status: data.StatusFulfilled, TxHash: log.TxHash.Hex()}},
	}, nil
}

func (s *service) handleOrderCancelled(log *types.Log) (*applied, error) {
	event, err := s.market.ParseOrderCancelled(*log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unpack OrderCancelled")
	}
	orderHash := common.BytesToHash(event.OrderHash[:]).Hex()

	effects, err := s.transition(orderHash, data.StatusCancelled, log.TxHash.Hex(), func() data.Order {
		return shadowOrder(orderHash, event.Seller, common.Address{}, event.AssetContract,
			event.AssetId.String(), "0", data.StatusCancelled, log.TxHash.Hex())
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("order_hash", orderHash).Info("order cancelled")
	return &applied{
		event: data.IndexedEvent{
			TxHash:      log.TxHash.Hex(),
			LogIndex:    uint64(log.Index),
			BlockNumber: log.BlockNumber,
			BlockHash:   log.BlockHash.Hex(),
			Kind:        data.EventOrderCancelled,
			OrderHash:   orderHash,
			Account:     event.Seller.Hex(),
			Effects:     effects,
		},
		notices: []Notice{{OrderHash: orderHash, Status: data.StatusCancelled, TxHash: log.TxHash.Hex()}},
	}, nil
}

// handleNonceIncremented applies the wildcard invalidation: every live order
// of the maker with a nonce below the new counter is swept into Cancelled.
func (s *service) handleNonceIncremented(log *types.Log) (*applied, error) {
	event, err := s.market.ParseNonceIncremented(*log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unpack NonceIncremented")
	}

	swept, err := s.orders.SweepNonce(event.User.Hex(), event.NewNonce.Int64())
	if err != nil {
		return nil, errors.Wrap(err, "failed to sweep superseded orders")
	}

	effects := make([]data.Effect, 0, len(swept))
	notices := make([]Notice, 0, len(swept))
	for _, o := range swept {
		effects = append(effects, data.Effect{
			OrderHash:  o.OrderHash,
			PrevStatus: o.Status,
			PrevTxHash: o.TxHash,
		})
		notices = append(notices, Notice{OrderHash: o.OrderHash, Status: data.StatusCancelled})
	}
	metrics.OrdersSwept.Add(float64(len(swept)))

	encoded, err := data.EncodeEffects(effects)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logan.F{"maker": event.User.Hex(), "new_nonce": event.NewNonce, "swept": len(swept)}).
		Info("nonce counter incremented")
	return &applied{
		event: data.IndexedEvent{
			TxHash:      log.TxHash.Hex(),
			LogIndex:    uint64(log.Index),
			BlockNumber: log.BlockNumber,
			BlockHash:   log.BlockHash.Hex(),
			Kind:        data.EventNonceIncremented,
			Account:     event.User.Hex(),
			Value:       event.NewNonce.String(),
			Effects:     encoded,
		},
		notices: notices,
	}, nil
}

// transition moves the order into a ledger-confirmed terminal state, creating
// a shadow row when the ledger speaks of an order never seen off-chain, and
// returns the encoded undo record.
func (s *service) transition(orderHash string, status data.OrderStatus, txHash string,
	shadow func() data.Order) (string, error) {

	existing, err := s.orders.Get(orderHash)
	if err != nil {
		return "", errors.Wrap(err, "failed to get order")
	}

	var effects []data.Effect
	switch {
	case existing == nil:
		if err = s.orders.Insert(shadow()); err != nil {
			return "", errors.Wrap(err, "failed to insert shadow order")
		}
		effects = []data.Effect{{OrderHash: orderHash, Created: true}}
	case existing.Status != status:
		if err = s.orders.UpdateStatus(orderHash, status, txHash); err != nil {
			return "", errors.Wrap(err, "failed to update order status")
		}
		effects = []data.Effect{{
			OrderHash:  orderHash,
			PrevStatus: existing.Status,
			PrevTxHash: existing.TxHash,
		}}
	}

	return data.EncodeEffects(effects)
}

func shadowOrder(orderHash string, seller, buyer, assetContract common.Address,
	assetID, price string, status data.OrderStatus, txHash string) data.Order {

	return data.Order{
		OrderHash:     orderHash,
		Kind:          data.KindListing,
		Maker:         seller.Hex(),
		Seller:        seller.Hex(),
		Buyer:         buyer.Hex(),
		AssetContract: assetContract.Hex(),
		AssetID:       assetID,
		Currency:      common.Address{}.Hex(),
		Price:         price,
		Status:        status,
		TxHash:        txHash,
	}
}
