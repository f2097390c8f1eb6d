package config

import (
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gallerio/marketplace-indexer-svc/internal/gobind"
	"gitlab.com/distributed_lab/figure/v3"
	"gitlab.com/distributed_lab/kit/kv"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

type Network struct {
	*gobind.Marketplace
	EthClient       *ethclient.Client
	ContractAddress common.Address
	ChainID         *big.Int
	RequestTimeout  time.Duration
}

const defaultRequestTimeout = 10 * time.Second
const maxChainID int64 = math.MaxUint64/2 - 36

func (c *config) Network() Network {
	return c.networkOnce.Do(func() interface{} {
		var cfg struct {
			RPC            string         `fig:"rpc,required"`
			Contract       common.Address `fig:"contract,required"`
			ChainID        int64          `fig:"chain_id,required"`
			RequestTimeout time.Duration  `fig:"request_timeout"`
		}

		err := figure.Out(&cfg).
			With(figure.EthereumHooks).
			From(kv.MustGetStringMap(c.getter, "network")).
			Please()
		if err != nil {
			panic(errors.Wrap(err, "failed to figure out network"))
		}

		if cfg.ChainID > maxChainID || cfg.ChainID <= 0 {
			panic("chain_id value out of range due to EIP 2294")
		}
		cli, err := ethclient.Dial(cfg.RPC)
		if err != nil {
			panic(errors.Wrap(err, "failed to connect to RPC provider"))
		}
		m, err := gobind.NewMarketplace(cfg.Contract, cli)
		if err != nil {
			panic(errors.Wrap(err, "failed to create contract caller"))
		}

		if cfg.RequestTimeout == 0 {
			cfg.RequestTimeout = defaultRequestTimeout
		}

		return Network{
			Marketplace:     m,
			EthClient:       cli,
			ContractAddress: cfg.Contract,
			ChainID:         big.NewInt(cfg.ChainID),
			RequestTimeout:  cfg.RequestTimeout,
		}
	}).(Network)
}
