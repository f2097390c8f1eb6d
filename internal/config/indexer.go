package config

import (
	"time"

	"gitlab.com/distributed_lab/figure/v3"
	"gitlab.com/distributed_lab/kit/kv"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

type Indexer struct {
	// IndexPeriod is the sleep between cycles once the indexer is live.
	IndexPeriod time.Duration `fig:"index_period,required"`
	// ConfirmationDepth is the safety margin below the chain head; it reduces,
	// not eliminates, reorg exposure.
	ConfirmationDepth uint64 `fig:"confirmation_depth"`
	// BlockRange bounds a single eth_getLogs request.
	BlockRange uint64 `fig:"block_range"`
	// MaxReorgDepth bounds how far rollback will search for a common ancestor.
	MaxReorgDepth uint64 `fig:"max_reorg_depth"`
	// FromBlock skips the chain's history before the contract deployment.
	FromBlock uint64 `fig:"from_block"`
}

const (
	defaultConfirmationDepth = 6
	defaultBlockRange        = 2048
	defaultMaxReorgDepth     = 64
)

func (c *config) Indexer() Indexer {
	return c.indexerOnce.Do(func() interface{} {
		var cfg Indexer

		err := figure.Out(&cfg).
			From(kv.MustGetStringMap(c.getter, "indexer")).
			Please()
		if err != nil {
			panic(errors.Wrap(err, "failed to figure out indexer"))
		}

		if cfg.ConfirmationDepth == 0 {
			cfg.ConfirmationDepth = defaultConfirmationDepth
		}
		if cfg.BlockRange == 0 {
			cfg.BlockRange = defaultBlockRange
		}
		if cfg.MaxReorgDepth == 0 {
			cfg.MaxReorgDepth = defaultMaxReorgDepth
		}

		return cfg
	}).(Indexer)
}
