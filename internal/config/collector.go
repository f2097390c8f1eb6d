package config

import (
	"net/http"
	"net/url"
	"time"

	"gitlab.com/distributed_lab/figure/v3"
	jsonapi "gitlab.com/distributed_lab/json-api-connector"
	"gitlab.com/distributed_lab/kit/kv"
	"gitlab.com/distributed_lab/logan/v3/errors"
	"gitlab.com/tokend/connectors/signed"
)

// Collector returns the connector to the marketplace backend that consumes
// order status transitions, or nil when the section is absent (notifications
// disabled).
func (c *config) Collector() *jsonapi.Connector {
	v := c.collectorOnce.Do(func() interface{} {
		raw := kv.MustGetStringMap(c.getter, "collector")
		if len(raw) == 0 {
			return (*jsonapi.Connector)(nil)
		}

		var cfg struct {
			Endpoint       *url.URL      `fig:"endpoint,required"`
			RequestTimeout time.Duration `fig:"request_timeout"`
		}
		err := figure.Out(&cfg).From(raw).Please()
		if err != nil {
			panic(errors.Wrap(err, "failed to figure out collector"))
		}

		if cfg.RequestTimeout == 0 {
			cfg.RequestTimeout = defaultRequestTimeout
		}

		return jsonapi.NewConnector(signed.NewClient(&http.Client{Timeout: cfg.RequestTimeout}, cfg.Endpoint))
	})
	return v.(*jsonapi.Connector)
}
