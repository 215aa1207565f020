// internal/app/store/payments/paymentstore.go
package paymentstore

import (
	"context"
	"time"

	"github.com/dalemusser/teamreg/internal/app/system/sentinel"
	"github.com/dalemusser/teamreg/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("payments")}
}

// StatusUpdate is what a gateway notification may change on a payment.
// Empty ids leave the stored value alone.
type StatusUpdate struct {
	Status           string
	GatewayPaymentID string
	ReferenceID      string
	At               time.Time
}

// Create inserts a payment intent. Order ids are unique.
func (s *Store) Create(ctx context.Context, p models.Payment) (models.Payment, error) {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.Status == "" {
		p.Status = models.PaymentCreated
	}
	if p.Currency == "" {
		p.Currency = models.CurrencyINR
	}
	p.Open = !p.Terminal()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Payment{}, sentinel.ErrDuplicate
		}
		return models.Payment{}, err
	}
	return p, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.Payment, error) {
	var p models.Payment
	if err := s.c.FindOne(ctx, filter, opts...).Decode(&p); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetByID loads a payment.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Payment, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByOrderID loads a payment by its gateway order id.
func (s *Store) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	return s.findOne(ctx, bson.M{"gateway_order_id": orderID})
}

// LatestForPayer returns the newest payment of mode made by payerID.
func (s *Store) LatestForPayer(ctx context.Context, payerID primitive.ObjectID, mode string) (*models.Payment, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	return s.findOne(ctx, bson.M{"payer_id": payerID, "mode": mode}, opts)
}

// OpenForPayer returns payerID's unsettled payment of mode.
func (s *Store) OpenForPayer(ctx context.Context, payerID primitive.ObjectID, mode string) (*models.Payment, error) {
	return s.findOne(ctx, bson.M{"payer_id": payerID, "mode": mode, "open": true})
}

// MarkPending moves a created payment to pending once checkout has started.
func (s *Store) MarkPending(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.PaymentCreated},
		bson.M{"$set": bson.M{"status": models.PaymentPending, "updated_at": at}},
	)
	return err
}

// ApplyStatus writes a gateway status onto the payment with orderID unless
// it is already success or failed. Returns the updated payment, or
// sentinel.ErrInvalidState if it was already terminal, or
// sentinel.ErrNotFound if there is no such order.
func (s *Store) ApplyStatus(ctx context.Context, orderID string, u StatusUpdate) (*models.Payment, error) {
	set := bson.M{"status": u.Status, "open": !models.IsTerminalPaymentStatus(u.Status), "updated_at": u.At}
	if u.GatewayPaymentID != "" {
		set["gateway_payment_id"] = u.GatewayPaymentID
	}
	if u.ReferenceID != "" {
		set["reference_id"] = u.ReferenceID
	}
	filter := bson.M{
		"gateway_order_id": orderID,
		"status":           bson.M{"$nin": bson.A{models.PaymentSuccess, models.PaymentFailed}},
	}
	var p models.Payment
	err := s.c.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&p)
	if err == mongo.ErrNoDocuments {
		if _, gerr := s.GetByOrderID(ctx, orderID); gerr != nil {
			return nil, gerr
		}
		return nil, sentinel.ErrInvalidState
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListStalePending returns non-terminal payments last touched before cutoff.
func (s *Store) ListStalePending(ctx context.Context, cutoff time.Time, limit int64) ([]models.Payment, error) {
	filter := bson.M{
		"status":     bson.M{"$in": bson.A{models.PaymentCreated, models.PaymentPending}},
		"updated_at": bson.M{"$lt": cutoff},
	}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}}).SetLimit(limit)
	return s.find(ctx, filter, opts)
}

// List returns all payments, newest first.
func (s *Store) List(ctx context.Context) ([]models.Payment, error) {
	return s.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// CountByStatus returns how many payments are in each status.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := map[string]int64{}
	for cur.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			N      int64  `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.Status] = row.N
	}
	return out, cur.Err()
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Payment, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Payment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
