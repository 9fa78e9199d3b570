// Package mongo keeps a per-recipient inbox of delivered notifications.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/example/stay-scheduler/internal/domain/notification"
)

const collectionName = "notifications"

type inboxDoc struct {
	ID                        primitive.ObjectID `bson:"_id"`
	notification.Notification `bson:",inline"`
	DeliveredAt               primitive.DateTime `bson:"delivered_at"`
}

type Inbox struct {
	coll *mongo.Collection
}

// Connect opens a client for uri and verifies the primary is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

func NewInbox(client *mongo.Client, database string) *Inbox {
	return &Inbox{coll: client.Database(database).Collection(collectionName)}
}

// EnsureIndexes creates the recipient/time index the listing query uses.
func (i *Inbox) EnsureIndexes(ctx context.Context) error {
	_, err := i.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

func (i *Inbox) Deliver(ctx context.Context, n notification.Notification) error {
	_, err := i.coll.InsertOne(ctx, inboxDoc{
		ID:           primitive.NewObjectID(),
		Notification: n,
		DeliveredAt:  primitive.NewDateTimeFromTime(time.Now()),
	})
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListForRecipient returns the newest notifications of an account first.
func (i *Inbox) ListForRecipient(ctx context.Context, recipientID string, limit int64) ([]notification.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := i.coll.Find(ctx, bson.M{"recipient_id": recipientID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find notifications: %w", err)
	}
	defer cur.Close(ctx)

	var docs []inboxDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]notification.Notification, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Notification)
	}
	return out, nil
}
