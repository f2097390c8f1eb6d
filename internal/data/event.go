package data

import (
	"encoding/json"

	"gitlab.com/distributed_lab/logan/v3/errors"
)

type EventKind string

const (
	EventOrderFulfilled   EventKind = "order_fulfilled"
	EventOrderCancelled   EventKind = "order_cancelled"
	EventNonceIncremented EventKind = "nonce_incremented"
)

// IndexedEvent is an immutable record of one observed ledger log. Its
// existence under the (tx_hash, log_index) key is the proof that the event was
// applied; replays are no-ops.
type IndexedEvent struct {
	TxHash      string    `structs:"tx_hash" db:"tx_hash"`
	LogIndex    uint64    `structs:"log_index" db:"log_index"`
	BlockNumber uint64    `structs:"block_number" db:"block_number"`
	BlockHash   string    `structs:"block_hash" db:"block_hash"`
	Kind        EventKind `structs:"kind" db:"kind"`
	OrderHash   string    `structs:"order_hash" db:"order_hash"` // empty for nonce events
	Account     string    `structs:"account" db:"account"`       // seller or nonce owner
	Value       string    `structs:"value" db:"value"`           // price or new counter value
	Effects     string    `structs:"effects" db:"effects"`       // JSON, see Effect
}

// Effect records one store mutation the event caused, with enough state to
// undo it during reorg rollback.
type Effect struct {
	OrderHash  string      `json:"order_hash"`
	PrevStatus OrderStatus `json:"prev_status,omitempty"`
	PrevTxHash string      `json:"prev_tx_hash,omitempty"`
	Created    bool        `json:"created,omitempty"` // shadow row inserted by this event
}

func EncodeEffects(effects []Effect) (string, error) {
	raw, err := json.Marshal(effects)
	return string(raw), errors.Wrap(err, "failed to marshal event effects")
}

func (e IndexedEvent) DecodeEffects() ([]Effect, error) {
	if e.Effects == "" {
		return nil, nil
	}
	var effects []Effect
	err := json.Unmarshal([]byte(e.Effects), &effects)
	return effects, errors.Wrap(err, "failed to unmarshal event effects")
}

// BlockRef is an indexed (number, hash) pair used to find the last common
// ancestor with the canonical chain.
type BlockRef struct {
	Number uint64 `db:"block_number"`
	Hash   string `db:"block_hash"`
}

type Events interface {
	Get(txHash string, logIndex uint64) (*IndexedEvent, error)
	Insert(IndexedEvent) error
	// ListAbove returns events strictly above the block, descending by
	// (block_number, log_index), i.e. in undo order.
	ListAbove(block uint64) ([]IndexedEvent, error)
	DeleteAbove(block uint64) error
	// Blocks returns the distinct indexed blocks at or above the given
	// number, descending.
	Blocks(from uint64) ([]BlockRef, error)
}
