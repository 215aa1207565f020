// internal/domain/models/payment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Payment statuses. success and failed are terminal.
const (
	PaymentCreated = "created"
	PaymentPending = "pending"
	PaymentSuccess = "success"
	PaymentFailed  = "failed"
)

// Payment modes.
const (
	ModeTeam       = "team"
	ModeIndividual = "individual"
)

// CurrencyINR is the only currency the event charges in.
const CurrencyINR = "INR"

// Payment is a fee intent and its reconciled gateway state.
type Payment struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	PayerID       primitive.ObjectID  `bson:"payer_id" json:"payer_id"`
	TeamID        *primitive.ObjectID `bson:"team_id,omitempty" json:"team_id,omitempty"`
	AmountInPaise int64               `bson:"amount_in_paise" json:"amount_in_paise"`
	Currency      string              `bson:"currency" json:"currency"`
	Status        string              `bson:"status" json:"status"`
	Mode          string              `bson:"mode" json:"mode"`

	// Open is true while the payment is created or pending. A payer has at
	// most one open payment per mode.
	Open bool `bson:"open" json:"-"`

	GatewayOrderID   string `bson:"gateway_order_id" json:"gateway_order_id"`
	GatewayPaymentID string `bson:"gateway_payment_id,omitempty" json:"gateway_payment_id,omitempty"`
	ReferenceID      string `bson:"reference_id,omitempty" json:"reference_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsTerminalPaymentStatus reports whether status can no longer change.
func IsTerminalPaymentStatus(status string) bool {
	return status == PaymentSuccess || status == PaymentFailed
}

// Terminal reports whether p has reached success or failed.
func (p *Payment) Terminal() bool {
	return IsTerminalPaymentStatus(p.Status)
}
