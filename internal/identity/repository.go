package identity

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicate reports a uniqueness-constraint violation on insert. The
// reconciler treats it as "a concurrent writer already created this row" and
// re-reads instead of failing.
var ErrDuplicate = errors.New("identity: duplicate external id")

// AccountRepository defines persistence operations for accounts. Lookups that
// find nothing return (nil, nil); errors are reserved for storage failures.
type AccountRepository interface {
	GetByExternalID(ctx context.Context, externalID string) (*Account, error)
	FindMatches(ctx context.Context, adminEmail, name string) ([]*Account, error)
	Insert(ctx context.Context, a *Account) (*Account, error)
	SetExternalID(ctx context.Context, id, externalID string) error
}

// UserRepository defines persistence operations for users, always scoped to
// an account.
type UserRepository interface {
	GetByExternalID(ctx context.Context, accountID, externalID string) (*User, error)
	FindMatches(ctx context.Context, accountID, username, email, firstName, lastName string) ([]*User, error)
	Insert(ctx context.Context, u *User) (*User, error)
	SetExternalID(ctx context.Context, id, externalID string) error
}

// MongoAccountRepository implements AccountRepository using MongoDB
type MongoAccountRepository struct {
	col *mongo.Collection
}

func NewMongoAccountRepository(col *mongo.Collection) *MongoAccountRepository {
	return &MongoAccountRepository{col: col}
}

// EnsureIndexes creates the uniqueness constraint backing concurrent-creation
// safety: at most one account per external id. Partial, so unmapped accounts
// (no external_id yet) don't collide.
func (r *MongoAccountRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "external_id", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"external_id": bson.M{"$exists": true, "$gt": ""}}),
	})
	return err
}

func (r *MongoAccountRepository) GetByExternalID(ctx context.Context, externalID string) (*Account, error) {
	var a Account
	if err := r.col.FindOne(ctx, bson.M{"external_id": externalID}).Decode(&a); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *MongoAccountRepository) FindMatches(ctx context.Context, adminEmail, name string) ([]*Account, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"admin_email": adminEmail},
		bson.M{"account_name": name},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*Account
	for cur.Next(ctx) {
		var a Account
		if err := cur.Decode(&a); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, cur.Err()
}

func (r *MongoAccountRepository) Insert(ctx context.Context, a *Account) (*Account, error) {
	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = primitive.NewObjectID().Hex()
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	if _, err := r.col.InsertOne(ctx, a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return a, nil
}

func (r *MongoAccountRepository) SetExternalID(ctx context.Context, id, externalID string) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"external_id": externalID, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	// a mapping write that hits no row must not vanish silently
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MongoUserRepository implements UserRepository using MongoDB
type MongoUserRepository struct {
	col *mongo.Collection
}

func NewMongoUserRepository(col *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{col: col}
}

func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "external_id", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"external_id": bson.M{"$exists": true, "$gt": ""}}),
	})
	return err
}

func (r *MongoUserRepository) GetByExternalID(ctx context.Context, accountID, externalID string) (*User, error) {
	var u User
	filter := bson.M{"account_id": accountID, "external_id": externalID}
	if err := r.col.FindOne(ctx, filter).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *MongoUserRepository) FindMatches(ctx context.Context, accountID, username, email, firstName, lastName string) ([]*User, error) {
	filter := bson.M{
		"account_id": accountID,
		"$or": bson.A{
			bson.M{"username": username},
			bson.M{"email": email},
			bson.M{"first_name": firstName, "last_name": lastName},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*User
	for cur.Next(ctx) {
		var u User
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	return out, cur.Err()
}

func (r *MongoUserRepository) Insert(ctx context.Context, u *User) (*User, error) {
	now := time.Now().UTC()
	if u.ID == "" {
		u.ID = primitive.NewObjectID().Hex()
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := r.col.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return u, nil
}

func (r *MongoUserRepository) SetExternalID(ctx context.Context, id, externalID string) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"external_id": externalID, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
