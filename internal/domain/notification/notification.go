package notification

import (
	"context"
	"time"
)

// Kind doubles as the account setting that opts a recipient in.
type Kind string

const (
	KindRequestCreated  Kind = "RESERVATION_REQUEST_NOTIFICATION"
	KindRequestResponse Kind = "RESERVATION_RESPONSE_NOTIFICATION"
	KindCancellation    Kind = "RESERVATION_CANCEL_NOTIFICATION"
)

type Notification struct {
	RecipientID   string    `json:"recipient_id" bson:"recipient_id"`
	Kind          Kind      `json:"kind" bson:"kind"`
	ReservationID string    `json:"reservation_id" bson:"reservation_id"`
	Text          string    `json:"text" bson:"text"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

// Sink delivers a notification over one transport.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}
