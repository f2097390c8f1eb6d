package requests

const orderStatusType = "order-status"

type OrderStatusNotice struct {
	Data OrderStatus `json:"data"`
}

type OrderStatus struct {
	Type       string                `json:"type"`
	ID         string                `json:"id"`
	Attributes OrderStatusAttributes `json:"attributes"`
}

type OrderStatusAttributes struct {
	Status string `json:"status"`
	TxHash string `json:"tx_hash,omitempty"`
}

func NewOrderStatusNotice(orderHash, status, txHash string) OrderStatusNotice {
	return OrderStatusNotice{
		Data: OrderStatus{
			Type: orderStatusType,
			ID:   orderHash,
			Attributes: OrderStatusAttributes{
				Status: status,
				TxHash: txHash,
			},
		},
	}
}
