package postgres

import (
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/fatih/structs"
	"github.com/gallerio/marketplace-indexer-svc/internal/data"
	"gitlab.com/distributed_lab/kit/pgdb"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

const ordersTable = "orders"

type orders struct {
	db *pgdb.DB
}

func NewOrders(db *pgdb.DB) data.Orders {
	return orders{db: db}
}

func (q orders) Insert(order data.Order) error {
	stmt := squirrel.Insert(ordersTable).SetMap(structs.Map(order))
	err := q.db.Exec(stmt)
	return errors.Wrap(err, "failed to insert order")
}

func (q orders) Get(orderHash string) (*data.Order, error) {
	var result data.Order
	stmt := squirrel.Select("*").From(ordersTable).Where(squirrel.Eq{"order_hash": orderHash})

	if err := q.db.Get(&result, stmt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to select order")
	}

	return &result, nil
}

func (q orders) UpdateStatus(orderHash string, status data.OrderStatus, txHash string) error {
	stmt := squirrel.Update(ordersTable).
		SetMap(map[string]interface{}{"status": status, "tx_hash": txHash}).
		Where(squirrel.Eq{"order_hash": orderHash})
	err := q.db.Exec(stmt)
	return errors.Wrap(err, "failed to update order status")
}

func (q orders) Delete(orderHash string) error {
	stmt := squirrel.Delete(ordersTable).Where(squirrel.Eq{"order_hash": orderHash})
	err := q.db.Exec(stmt)
	return errors.Wrap(err, "failed to delete order")
}

// SweepNonce returns the rows as they were before the sweep so the caller can
// record them for reorg rollback.
func (q orders) SweepNonce(maker string, belowNonce int64) ([]data.Order, error) {
	sweepable := squirrel.And{
		squirrel.Eq{
			"maker":  maker,
			"status": []data.OrderStatus{data.StatusPending, data.StatusActive, data.StatusSubmitting},
		},
		squirrel.Lt{"nonce": belowNonce},
	}

	var swept []data.Order
	sel := squirrel.Select("*").From(ordersTable).Where(sweepable)
	if err := q.db.Select(&swept, sel); err != nil {
		return nil, errors.Wrap(err, "failed to select superseded orders")
	}
	if len(swept) == 0 {
		return nil, nil
	}

	upd := squirrel.Update(ordersTable).Set("status", data.StatusCancelled).Where(sweepable)
	if err := q.db.Exec(upd); err != nil {
		return nil, errors.Wrap(err, "failed to sweep superseded orders")
	}

	return swept, nil
}

func (q orders) ListActiveFor(assetContract, assetID string, now time.Time) ([]data.Order, error) {
	var result []data.Order
	stmt := squirrel.Select("*").From(ordersTable).
		Where(squirrel.Eq{
			"asset_contract": assetContract,
			"asset_id":       assetID,
			"status":         data.StatusActive,
		}).
		Where(squirrel.Gt{"deadline": now.Unix()}).
		OrderBy("price ASC")

	err := q.db.Select(&result, stmt)
	return result, errors.Wrap(err, "failed to select active orders")
}

func (q orders) ListOffersReceivedBy(seller string, now time.Time) ([]data.Order, error) {
	var result []data.Order
	stmt := squirrel.Select("*").From(ordersTable).
		Where(squirrel.Eq{
			"kind":   data.KindOffer,
			"seller": seller,
			"status": []data.OrderStatus{data.StatusPending, data.StatusActive},
		}).
		Where(squirrel.Gt{"deadline": now.Unix()}).
		OrderBy("price DESC")

	err := q.db.Select(&result, stmt)
	return result, errors.Wrap(err, "failed to select received offers")
}
