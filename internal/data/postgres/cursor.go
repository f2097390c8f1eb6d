package postgres

import (
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/gallerio/marketplace-indexer-svc/internal/data"
	"gitlab.com/distributed_lab/kit/pgdb"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

const cursorTable = "indexer_cursor"
const contractCol = "contract"

type cursor struct {
	db       *pgdb.DB
	contract string
}

func NewCursor(db *pgdb.DB, contract string) (data.Cursor, error) {
	q := cursor{db: db, contract: contract}
	if err := q.init(); err != nil {
		return cursor{}, errors.Wrap(err, "failed to initialize indexer cursor storage")
	}
	return q, nil
}

func (q cursor) init() error {
	c, err := q.Get()
	if err != nil {
		return errors.Wrap(err, "failed to check cursor existence")
	}
	if c != nil {
		return nil
	}

	stmt := squirrel.Insert(cursorTable).
		Columns("block", "block_hash", contractCol).
		Values(0, "", q.contract)
	err = q.db.Exec(stmt)
	return errors.Wrap(err, "failed to insert indexer cursor")
}

func (q cursor) Set(c data.IndexerCursor) error {
	stmt := squirrel.Update(cursorTable).
		Set("block", c.Block).
		Set("block_hash", c.BlockHash).
		Where(squirrel.Eq{contractCol: q.contract})
	err := q.db.Exec(stmt)
	return errors.Wrap(err, "failed to update indexer cursor")
}

func (q cursor) Get() (*data.IndexerCursor, error) {
	var result data.IndexerCursor
	stmt := squirrel.Select("block", "block_hash").From(cursorTable).
		Where(squirrel.Eq{contractCol: q.contract})

	if err := q.db.Get(&result, stmt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to select indexer cursor")
	}

	return &result, nil
}
