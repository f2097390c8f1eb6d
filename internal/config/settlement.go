package config

import (
	"crypto/ecdsa"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"gitlab.com/distributed_lab/figure/v3"
	"gitlab.com/distributed_lab/kit/kv"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

// Settlement configures the transaction-submitting side. The section is
// optional: an index-only deployment runs without a signer.
type Settlement struct {
	Signer          *ecdsa.PrivateKey
	ReceiptInterval time.Duration
}

func (s Settlement) Enabled() bool {
	return s.Signer != nil
}

const defaultReceiptInterval = 5 * time.Second

func (c *config) Settlement() Settlement {
	return c.settlementOnce.Do(func() interface{} {
		raw := kv.MustGetStringMap(c.getter, "settlement")
		if len(raw) == 0 {
			return Settlement{}
		}

		var cfg struct {
			SignerKey       string        `fig:"signer_key,required"`
			ReceiptInterval time.Duration `fig:"receipt_interval"`
		}
		err := figure.Out(&cfg).From(raw).Please()
		if err != nil {
			panic(errors.Wrap(err, "failed to figure out settlement"))
		}

		key, err := crypto.HexToECDSA(cfg.SignerKey)
		if err != nil {
			panic(errors.Wrap(err, "failed to parse settlement signer key"))
		}

		if cfg.ReceiptInterval == 0 {
			cfg.ReceiptInterval = defaultReceiptInterval
		}

		return Settlement{Signer: key, ReceiptInterval: cfg.ReceiptInterval}
	}).(Settlement)
}
