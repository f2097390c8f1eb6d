package postgres

import (
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/fatih/structs"
	"github.com/gallerio/marketplace-indexer-svc/internal/data"
	"gitlab.com/distributed_lab/kit/pgdb"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

const eventsTable = "indexed_events"

type events struct {
	db *pgdb.DB
}

func NewEvents(db *pgdb.DB) data.Events {
	return events{db: db}
}

func (q events) Get(txHash string, logIndex uint64) (*data.IndexedEvent, error) {
	var result data.IndexedEvent
	stmt := squirrel.Select("*").From(eventsTable).
		Where(squirrel.Eq{"tx_hash": txHash, "log_index": logIndex})

	if err := q.db.Get(&result, stmt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to select indexed event")
	}

	return &result, nil
}

func (q events) Insert(event data.IndexedEvent) error {
	stmt := squirrel.Insert(eventsTable).SetMap(structs.Map(event))
	err := q.db.Exec(stmt)
	return errors.Wrap(err, "failed to insert indexed event")
}

func (q events) ListAbove(block uint64) ([]data.IndexedEvent, error) {
	var result []data.IndexedEvent
	stmt := squirrel.Select("*").From(eventsTable).
		Where(squirrel.Gt{"block_number": block}).
		OrderBy("block_number DESC", "log_index DESC")

	err := q.db.Select(&result, stmt)
	return result, errors.Wrap(err, "failed to select indexed events above block")
}

func (q events) DeleteAbove(block uint64) error {
	stmt := squirrel.Delete(eventsTable).Where(squirrel.Gt{"block_number": block})
	err := q.db.Exec(stmt)
	return errors.Wrap(err, "failed to delete indexed events above block")
}

func (q events) Blocks(from uint64) ([]data.BlockRef, error) {
	var result []data.BlockRef
	stmt := squirrel.Select("block_number", "block_hash").From(eventsTable).
		Where(squirrel.GtOrEq{"block_number": from}).
		GroupBy("block_number", "block_hash").
		OrderBy("block_number DESC")

	err := q.db.Select(&result, stmt)
	return result, errors.Wrap(err, "failed to select indexed blocks")
}
