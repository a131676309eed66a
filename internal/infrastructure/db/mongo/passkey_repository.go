package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pairchat/pairchat/internal/core/domain"
)

const collectionPasskeys = "passkeys"

// ErrPasskeyExists is returned by Create when the key is already provisioned.
var ErrPasskeyExists = errors.New("passkey already exists")

type PasskeyRepository struct {
	coll *mongo.Collection
}

func NewPasskeyRepository(db *mongo.Database) *PasskeyRepository {
	return &PasskeyRepository{coll: db.Collection(collectionPasskeys)}
}

type mongoPasskey struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Key        string             `bson:"key"`
	Label      string             `bson:"label"`
	Active     bool               `bson:"active"`
	SingleUse  bool               `bson:"single_use"`
	ConsumedAt *time.Time         `bson:"consumed_at"`
	CreatedAt  time.Time          `bson:"created_at"`
}

func (mp *mongoPasskey) toDomain() *domain.Passkey {
	p := &domain.Passkey{
		ID:        mp.ID.Hex(),
		Key:       mp.Key,
		Label:     mp.Label,
		Active:    mp.Active,
		SingleUse: mp.SingleUse,
		CreatedAt: mp.CreatedAt.UTC(),
	}
	if mp.ConsumedAt != nil {
		at := mp.ConsumedAt.UTC()
		p.ConsumedAt = &at
	}
	return p
}

func (r *PasskeyRepository) FindActive(ctx context.Context, key string) (*domain.Passkey, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mp mongoPasskey
	err := r.coll.FindOne(ctx, bson.M{"key": key, "active": true}).Decode(&mp)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrInvalidPasskey
		}
		return nil, fmt.Errorf("find passkey: %w", err)
	}
	return mp.toDomain(), nil
}

// Consume flips an active passkey to inactive. The filter on active makes the
// update a compare-and-set: of two concurrent registrations only one matches.
func (r *PasskeyRepository) Consume(ctx context.Context, id string, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrInvalidPasskey
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "active": true},
		bson.M{"$set": bson.M{"active": false, "consumed_at": at.UTC()}},
	)
	if err != nil {
		return fmt.Errorf("consume passkey: %w", err)
	}
	if res.ModifiedCount == 0 {
		return domain.ErrInvalidPasskey
	}
	return nil
}

func (r *PasskeyRepository) Release(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrInvalidPasskey
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = r.coll.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"active": true, "consumed_at": nil}},
	)
	if err != nil {
		return fmt.Errorf("release passkey: %w", err)
	}
	return nil
}

func (r *PasskeyRepository) Create(ctx context.Context, p *domain.Passkey) (*domain.Passkey, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoPasskey{
		Key:       p.Key,
		Label:     p.Label,
		Active:    p.Active,
		SingleUse: p.SingleUse,
		CreatedAt: p.CreatedAt,
	}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrPasskeyExists
		}
		return nil, fmt.Errorf("insert passkey: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return doc.toDomain(), nil
}

func (r *PasskeyRepository) List(ctx context.Context) ([]*domain.Passkey, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list passkeys: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoPasskey
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode passkeys: %w", err)
	}

	out := make([]*domain.Passkey, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, nil
}

func (r *PasskeyRepository) Disable(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"key": key}, bson.M{"$set": bson.M{"active": false}})
	if err != nil {
		return fmt.Errorf("disable passkey: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrInvalidPasskey
	}
	return nil
}

// EnsureIndexes creates the unique key index.
func (r *PasskeyRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
