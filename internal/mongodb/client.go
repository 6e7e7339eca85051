// Package mongodb is the document store backend. Password reset expiry is
// enforced by a TTL index, so this backend needs no cleanup worker.
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"accounts/internal/store"
)

const (
	accountsCollection = "accounts"
	resetsCollection   = "password_resets"
)

type Store struct {
	client   *mongo.Client
	db       *mongo.Database
	accounts *AccountRepository
	resets   *ResetTokenRepository
}

var _ store.Store = (*Store)(nil)

// Connect dials uri, verifies the primary is reachable and makes sure the
// indexes exist.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		db:       db,
		accounts: &AccountRepository{coll: db.Collection(accountsCollection)},
		resets:   &ResetTokenRepository{coll: db.Collection(resetsCollection)},
	}

	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

// EnsureIndexes creates the unique email index and the reset token indexes.
// Creating an index that already exists is a no-op.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(accountsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("created_at_id"),
		},
	})
	if err != nil {
		return fmt.Errorf("creating account indexes: %w", err)
	}

	_, err = s.db.Collection(resetsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("expires_at_ttl"),
		},
		{
			Keys:    bson.D{{Key: "account_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("account_id_unique"),
		},
		{
			Keys:    bson.D{{Key: "token_hash", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("token_hash_unique"),
		},
	})
	if err != nil {
		return fmt.Errorf("creating password reset indexes: %w", err)
	}

	return nil
}

func (s *Store) Accounts() store.Accounts {
	return s.accounts
}

func (s *Store) ResetTokens() store.ResetTokens {
	return s.resets
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// parseID maps a path id onto an ObjectID. Anything else is ErrInvalidID.
func parseID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, store.ErrInvalidID
	}
	return oid, nil
}
