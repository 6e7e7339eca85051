package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"accounts/internal/models"
	"accounts/internal/store"
)

type resetDocument struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	AccountID bson.ObjectID `bson:"account_id"`
	TokenHash string        `bson:"token_hash"`
	ExpiresAt time.Time     `bson:"expires_at"`
	CreatedAt time.Time     `bson:"created_at"`
}

func (d *resetDocument) model() *models.PasswordReset {
	return &models.PasswordReset{
		ID:        d.ID.Hex(),
		AccountID: d.AccountID.Hex(),
		TokenHash: d.TokenHash,
		ExpiresAt: d.ExpiresAt.UTC(),
		CreatedAt: d.CreatedAt.UTC(),
	}
}

// ResetTokenRepository stores reset records in a collection with a TTL
// index on expires_at. The TTL monitor runs about once a minute, so
// lookups still filter on expiry.
type ResetTokenRepository struct {
	coll *mongo.Collection
}

var _ store.ResetTokens = (*ResetTokenRepository)(nil)

func (r *ResetTokenRepository) Replace(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) (*models.PasswordReset, error) {
	aid, err := parseID(accountID)
	if err != nil {
		return nil, err
	}

	if _, err := r.coll.DeleteMany(ctx, bson.D{{Key: "account_id", Value: aid}}); err != nil {
		return nil, fmt.Errorf("deleting previous reset token: %w", err)
	}

	doc := resetDocument{
		ID:        bson.NewObjectID(),
		AccountID: aid,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("creating reset token: %w", err)
	}

	return doc.model(), nil
}

func (r *ResetTokenRepository) FindValid(ctx context.Context, tokenHash string) (*models.PasswordReset, error) {
	var doc resetDocument
	err := r.coll.FindOne(ctx, bson.D{
		{Key: "token_hash", Value: tokenHash},
		{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: time.Now().UTC()}}},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying reset token: %w", err)
	}
	return doc.model(), nil
}

func (r *ResetTokenRepository) Delete(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return store.ErrNotFound
	}

	result, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("deleting reset token: %w", err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *ResetTokenRepository) DeleteForAccount(ctx context.Context, accountID string) error {
	aid, err := parseID(accountID)
	if err != nil {
		return nil
	}
	if _, err := r.coll.DeleteMany(ctx, bson.D{{Key: "account_id", Value: aid}}); err != nil {
		return fmt.Errorf("deleting account reset tokens: %w", err)
	}
	return nil
}
