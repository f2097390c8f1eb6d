package service

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gallerio/marketplace-indexer-svc/internal/data"
	"github.com/gallerio/marketplace-indexer-svc/internal/service/requests"
	jsonapi "gitlab.com/distributed_lab/json-api-connector"
	"gitlab.com/distributed_lab/json-api-connector/cerrors"
	"gitlab.com/distributed_lab/logan/v3"
)

// Notice is one order status transition observed on the ledger.
type Notice struct {
	OrderHash string
	Status    data.OrderStatus
	TxHash    string
}

// Notifier pushes transitions to the marketplace backend. Delivery is best
// effort: the store is already consistent when Notify runs, and the backend
// can always re-read it.
type Notifier struct {
	log       *logan.Entry
	collector *jsonapi.Connector
}

func NewNotifier(log *logan.Entry, collector *jsonapi.Connector) *Notifier {
	return &Notifier{log: log, collector: collector}
}

func (n *Notifier) Notify(ctx context.Context, notices []Notice) {
	if n.collector == nil || len(notices) == 0 {
		return
	}

	u, _ := url.Parse("/orders/status")
	for _, notice := range notices {
		body := requests.NewOrderStatusNotice(notice.OrderHash, string(notice.Status), notice.TxHash)
		err := n.collector.PostJSON(u, body, ctx, nil)
		if isConflict(err) {
			continue
		}
		if err != nil {
			n.log.WithError(err).WithField("order_hash", notice.OrderHash).
				Error("failed to notify collector of order transition")
		}
	}
}

func isConflict(err error) bool {
	c, ok := err.(cerrors.Error)
	return ok && c.Status() == http.StatusConflict
}
