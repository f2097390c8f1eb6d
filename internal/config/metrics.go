package config

import (
	"gitlab.com/distributed_lab/figure/v3"
	"gitlab.com/distributed_lab/kit/kv"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

type Metrics struct {
	Enabled    bool   `fig:"enabled"`
	ListenAddr string `fig:"listen_addr"`
}

const defaultMetricsAddr = ":2112"

func (c *config) Metrics() Metrics {
	return c.metricsOnce.Do(func() interface{} {
		var cfg Metrics

		err := figure.Out(&cfg).
			From(kv.MustGetStringMap(c.getter, "metrics")).
			Please()
		if err != nil {
			panic(errors.Wrap(err, "failed to figure out metrics"))
		}

		if cfg.ListenAddr == "" {
			cfg.ListenAddr = defaultMetricsAddr
		}

		return cfg
	}).(Metrics)
}
