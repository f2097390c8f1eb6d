package data

import "time"

const (
	KindListing = "listing"
	KindOffer   = "offer"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusActive     OrderStatus = "active"
	StatusSubmitting OrderStatus = "submitting"
	StatusFulfilled  OrderStatus = "fulfilled"
	StatusCancelled  OrderStatus = "cancelled"
	StatusRejected   OrderStatus = "rejected"
	// StatusExpired is derived from the deadline on read and never persisted.
	StatusExpired OrderStatus = "expired"
)

// Terminal reports whether the status may never change again. Expired is not
// terminal: it is a local clock judgement the ledger has not confirmed.
func (s OrderStatus) Terminal() bool {
	return s == StatusFulfilled || s == StatusCancelled || s == StatusRejected
}

// Order is the relational projection of a signed order. The ledger, not this
// row, is the source of truth for terminal on-chain states.
type Order struct {
	OrderHash     string      `structs:"order_hash" db:"order_hash"`
	Kind          string      `structs:"kind" db:"kind"`
	Maker         string      `structs:"maker" db:"maker"`
	Seller        string      `structs:"seller" db:"seller"`
	Buyer         string      `structs:"buyer" db:"buyer"`
	AssetContract string      `structs:"asset_contract" db:"asset_contract"`
	AssetID       string      `structs:"asset_id" db:"asset_id"`
	Currency      string      `structs:"currency" db:"currency"`
	Price         string      `structs:"price" db:"price"`
	Nonce         int64       `structs:"nonce" db:"nonce"`
	Deadline      int64       `structs:"deadline" db:"deadline"`
	Signature     string      `structs:"signature" db:"signature"` // empty for shadow rows
	Status        OrderStatus `structs:"status" db:"status"`
	TxHash        string      `structs:"tx_hash" db:"tx_hash"` // settlement or fulfillment tx, if known
}

// EffectiveStatus augments the stored status with the non-authoritative
// Expired hint for UX reads.
func (o Order) EffectiveStatus(now time.Time) OrderStatus {
	if !o.Status.Terminal() && o.Deadline > 0 && o.Deadline < now.Unix() {
		return StatusExpired
	}
	return o.Status
}

type Orders interface {
	Insert(Order) error
	Get(orderHash string) (*Order, error)
	// UpdateStatus sets the status and the transaction the transition was
	// observed or submitted in (empty when the transition is off-chain).
	UpdateStatus(orderHash string, status OrderStatus, txHash string) error
	Delete(orderHash string) error

	// SweepNonce cancels every Pending/Active/Submitting order of the maker
	// with nonce below the counter and returns the affected rows.
	SweepNonce(maker string, belowNonce int64) ([]Order, error)

	ListActiveFor(assetContract, assetID string, now time.Time) ([]Order, error)
	ListOffersReceivedBy(seller string, now time.Time) ([]Order, error)
}
