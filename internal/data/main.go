package data

import "gitlab.com/distributed_lab/kit/pgdb"

// Transactioner is the atomic-write primitive the indexer applies a block
// range's effects under. *pgdb.DB satisfies it.
type Transactioner interface {
	Transaction(fn pgdb.TransactionFunc) error
}
