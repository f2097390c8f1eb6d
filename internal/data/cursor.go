package data

// IndexerCursor is the single durable row marking how far the indexer has
// applied ledger truth. Owned exclusively by the indexer; advanced only after
// the effects of the range have landed in the same transaction.
type IndexerCursor struct {
	Block     uint64 `db:"block"`
	BlockHash string `db:"block_hash"`
}

type Cursor interface {
	Get() (*IndexerCursor, error)
	Set(IndexerCursor) error
}
