// Package settlement constructs and submits on-chain fulfillment and
// cancellation calls, tracks pending-transaction state, and classifies
// outcomes. The store rows it writes are provisional: the indexer overwrites
// them once the real outcome is observed on the ledger.
package settlement

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gallerio/marketplace-indexer-svc/internal/codec"
	"github.com/gallerio/marketplace-indexer-svc/internal/data"
	"github.com/gallerio/marketplace-indexer-svc/internal/gobind"
	"github.com/google/uuid"
	"gitlab.com/distributed_lab/logan/v3"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

// Backend is the subset of ethclient.Client the settlement client consumes.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

// Handle identifies one submitted settlement transaction.
type Handle struct {
	ID        uuid.UUID
	TxHash    common.Hash
	OrderHash common.Hash
}

type OutcomeState string

const (
	StatePending   OutcomeState = "pending"
	StateConfirmed OutcomeState = "confirmed"
	StateReverted  OutcomeState = "reverted"
)

type Outcome struct {
	State       OutcomeState
	BlockNumber uint64
	Reason      RevertReason // set when State == StateReverted
}

type Client struct {
	log    *logan.Entry
	market *gobind.Marketplace
	eth    Backend
	orders data.Orders
	codec  *codec.Codec

	signer  *ecdsa.PrivateKey
	chainID *big.Int
	timeout time.Duration
}

func NewClient(log *logan.Entry, market *gobind.Marketplace, eth Backend, orders data.Orders,
	c *codec.Codec, signer *ecdsa.PrivateKey, chainID *big.Int, timeout time.Duration) *Client {

	return &Client{
		log:     log.WithField("component", "settlement"),
		market:  market,
		eth:     eth,
		orders:  orders,
		codec:   c,
		signer:  signer,
		chainID: chainID,
		timeout: timeout,
	}
}

// SubmitFulfillment verifies the maker signature locally, submits the matching
// fulfillment call, and marks the order Submitting so the UI can show it in
// flight.
func (c *Client) SubmitFulfillment(ctx context.Context, order codec.Order, signature []byte) (*Handle, error) {
	orderHash, err := c.codec.Hash(order)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash order")
	}
	if _, err = c.codec.Verify(order, signature); err != nil {
		return nil, errors.Wrap(err, "failed to verify order signature")
	}

	opts, err := c.transactOpts(ctx)
	if err != nil {
		return nil, err
	}

	var tx *types.Transaction
	if order.Kind == codec.KindOffer {
		tx, err = c.market.FulfillOffer(opts, contractOrder(order), signature)
	} else {
		// Listings priced in the native currency carry the payment as call value.
		if order.Currency == (common.Address{}) {
			opts.Value = order.Price
		}
		tx, err = c.market.FulfillOrder(opts, contractOrder(order), signature)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to submit fulfillment transaction")
	}

	if err = c.markSubmitting(order, orderHash, signature, tx.Hash()); err != nil {
		return nil, err
	}

	c.log.WithFields(logan.F{"order_hash": orderHash.Hex(), "tx_hash": tx.Hash().Hex()}).
		Info("submitted fulfillment")
	return &Handle{ID: uuid.New(), TxHash: tx.Hash(), OrderHash: orderHash}, nil
}

// SubmitCancellation submits cancelOrder; the contract only accepts it from
// the order's seller.
func (c *Client) SubmitCancellation(ctx context.Context, order codec.Order) (*Handle, error) {
	orderHash, err := c.codec.Hash(order)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash order")
	}

	opts, err := c.transactOpts(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := c.market.CancelOrder(opts, contractOrder(order))
	if err != nil {
		return nil, errors.Wrap(err, "failed to submit cancellation transaction")
	}

	if err = c.markSubmitting(order, orderHash, nil, tx.Hash()); err != nil {
		return nil, err
	}

	c.log.WithFields(logan.F{"order_hash": orderHash.Hex(), "tx_hash": tx.Hash().Hex()}).
		Info("submitted cancellation")
	return &Handle{ID: uuid.New(), TxHash: tx.Hash(), OrderHash: orderHash}, nil
}

// PollReceipt returns the current state of the submitted transaction. A
// reverted receipt is replayed as a call to recover and classify the reason.
func (c *Client) PollReceipt(ctx context.Context, handle *Handle) (Outcome, error) {
	child, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	receipt, err := c.eth.TransactionReceipt(child, handle.TxHash)
	if err != nil {
		if errors.Cause(err) == ethereum.NotFound {
			return Outcome{State: StatePending}, nil
		}
		return Outcome{}, errors.Wrap(err, "failed to get transaction receipt")
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		return Outcome{State: StateConfirmed, BlockNumber: receipt.BlockNumber.Uint64()}, nil
	}

	reason, err := c.replayRevert(ctx, handle.TxHash, receipt.BlockNumber)
	if err != nil {
		c.log.WithError(err).WithField("tx_hash", handle.TxHash.Hex()).
			Warn("failed to recover revert reason")
		reason = RevertUnknown
	}
	return Outcome{State: StateReverted, BlockNumber: receipt.BlockNumber.Uint64(), Reason: reason}, nil
}

// WaitOutcome polls until the transaction leaves the pending state or ctx is
// cancelled. Abandoning the wait has no side effects: the transaction stays
// submitted and the indexer observes its eventual outcome independently.
func (c *Client) WaitOutcome(ctx context.Context, handle *Handle, interval time.Duration) (Outcome, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		outcome, err := c.PollReceipt(ctx, handle)
		if err != nil {
			return Outcome{}, err
		}
		if outcome.State != StatePending {
			if outcome.State == StateReverted {
				return outcome, &RevertError{Reason: outcome.Reason, TxHash: handle.TxHash, Raw: "transaction reverted"}
			}
			return outcome, nil
		}

		select {
		case <-ctx.Done():
			return Outcome{State: StatePending}, errors.Wrap(ctx.Err(), "stopped observing transaction")
		case <-ticker.C:
		}
	}
}

func (c *Client) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.signer, c.chainID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create transactor")
	}
	opts.Context = ctx
	return opts, nil
}

// markSubmitting inserts or overwrites the provisional Submitting row. It is
// never trusted over the indexer: terminal states always win.
func (c *Client) markSubmitting(order codec.Order, orderHash common.Hash, signature []byte, txHash common.Hash) error {
	existing, err := c.orders.Get(orderHash.Hex())
	if err != nil {
		return errors.Wrap(err, "failed to get order")
	}
	if existing != nil {
		if existing.Status.Terminal() {
			return nil
		}
		err = c.orders.UpdateStatus(orderHash.Hex(), data.StatusSubmitting, txHash.Hex())
		return errors.Wrap(err, "failed to mark order submitting")
	}

	row := orderRow(order, orderHash, signature)
	row.Status = data.StatusSubmitting
	row.TxHash = txHash.Hex()
	err = c.orders.Insert(row)
	return errors.Wrap(err, "failed to insert submitting order")
}

func (c *Client) replayRevert(ctx context.Context, txHash common.Hash, blockNumber *big.Int) (RevertReason, error) {
	child, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tx, _, err := c.eth.TransactionByHash(child, txHash)
	if err != nil {
		return RevertUnknown, errors.Wrap(err, "failed to get transaction")
	}

	msg := ethereum.CallMsg{
		From:     crypto.PubkeyToAddress(c.signer.PublicKey),
		To:       tx.To(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
		Value:    tx.Value(),
		Data:     tx.Data(),
	}
	if _, err = c.eth.CallContract(child, msg, blockNumber); err != nil {
		return ClassifyRevert(err), nil
	}
	return RevertUnknown, nil
}

func contractOrder(o codec.Order) gobind.MarketplaceOrder {
	return gobind.MarketplaceOrder{
		Seller:        o.Seller,
		Buyer:         o.Buyer,
		AssetContract: o.AssetContract,
		AssetId:       o.AssetId,
		Currency:      o.Currency,
		Price:         o.Price,
		Nonce:         o.Nonce,
		Deadline:      o.Deadline,
	}
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
