package ledger

import (
	"encoding/json"
	"strings"
)

type webhookPayment struct {
	PaymentStatus string          `json:"payment_status"`
	PaymentID     json.RawMessage `json:"payment_id"`
	CFPaymentID   json.RawMessage `json:"cf_payment_id"`
}

type webhookOrder struct {
	OrderID string `json:"order_id"`
}

type webhookBody struct {
	Data *struct {
		Order   *webhookOrder   `json:"order"`
		Payment *webhookPayment `json:"payment"`
	} `json:"data"`
	Order       *webhookOrder   `json:"order"`
	Payment     *webhookPayment `json:"payment"`
	OrderID     string          `json:"order_id"`
	OrderStatus string          `json:"order_status"`
}

// ParseWebhook extracts a Notification from a provider webhook body. It
// accepts the nested (data.order / data.payment), the flat (order /
// payment) and the bare (order_id / order_status) layouts. ok is false when
// no order id can be found.
func ParseWebhook(body []byte) (n Notification, ok bool) {
	var w webhookBody
	if err := json.Unmarshal(body, &w); err != nil {
		return Notification{}, false
	}

	var order *webhookOrder
	var payment *webhookPayment
	if w.Data != nil {
		order, payment = w.Data.Order, w.Data.Payment
	}
	if order == nil || order.OrderID == "" {
		order = w.Order
	}
	if payment == nil {
		payment = w.Payment
	}

	switch {
	case order != nil && order.OrderID != "":
		n.OrderID = order.OrderID
	default:
		n.OrderID = w.OrderID
	}
	n.OrderID = strings.TrimSpace(n.OrderID)
	if n.OrderID == "" {
		return Notification{}, false
	}

	if payment != nil {
		n.Status = payment.PaymentStatus
		n.PaymentID = scalar(payment.PaymentID)
		n.ReferenceID = scalar(payment.CFPaymentID)
	}
	if n.Status == "" {
		n.Status = w.OrderStatus
	}
	return n, true
}

// scalar renders a JSON string or number as a string. The provider sends
// payment ids as either.
func scalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	return ""
}
