package postgres

import (
	"gitlab.com/distributed_lab/kit/pgdb"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

const schemaUp = `
CREATE TABLE IF NOT EXISTS orders (
    order_hash     TEXT PRIMARY KEY,
    kind           TEXT NOT NULL,
    maker          TEXT NOT NULL,
    seller         TEXT NOT NULL,
    buyer          TEXT NOT NULL,
    asset_contract TEXT NOT NULL,
    asset_id       TEXT NOT NULL,
    currency       TEXT NOT NULL,
    price          NUMERIC(78) NOT NULL,
    nonce          BIGINT NOT NULL,
    deadline       BIGINT NOT NULL,
    signature      TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL,
    tx_hash        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS orders_asset_idx ON orders (asset_contract, asset_id, status);
CREATE INDEX IF NOT EXISTS orders_maker_nonce_idx ON orders (maker, nonce);
CREATE INDEX IF NOT EXISTS orders_seller_kind_idx ON orders (seller, kind, status);

CREATE TABLE IF NOT EXISTS indexed_events (
    tx_hash      TEXT NOT NULL,
    log_index    BIGINT NOT NULL,
    block_number BIGINT NOT NULL,
    block_hash   TEXT NOT NULL,
    kind         TEXT NOT NULL,
    order_hash   TEXT NOT NULL DEFAULT '',
    account      TEXT NOT NULL DEFAULT '',
    value        TEXT NOT NULL DEFAULT '',
    effects      TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (tx_hash, log_index)
);

CREATE INDEX IF NOT EXISTS indexed_events_block_idx ON indexed_events (block_number, log_index);

CREATE TABLE IF NOT EXISTS indexer_cursor (
    contract   TEXT PRIMARY KEY,
    block      BIGINT NOT NULL,
    block_hash TEXT NOT NULL DEFAULT ''
);
`

const schemaDown = `
DROP TABLE IF EXISTS indexer_cursor;
DROP TABLE IF EXISTS indexed_events;
DROP TABLE IF EXISTS orders;
`

func MigrateUp(db *pgdb.DB) error {
	err := db.ExecRaw(schemaUp)
	return errors.Wrap(err, "failed to apply schema")
}

func MigrateDown(db *pgdb.DB) error {
	err := db.ExecRaw(schemaDown)
	return errors.Wrap(err, "failed to drop schema")
}
