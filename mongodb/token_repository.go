package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
)

type TokenRepository struct {
	coll *mongo.Collection
}

func NewTokenRepository(db *mongo.Database) domain.TokenRepository {
	return &TokenRepository{
		coll: db.Collection(TokensCollection),
	}
}

// StoreToken inserts a freshly minted token. The unique index on
// token_value reports a random-value collision as a duplicate key,
// which the caller handles by regenerating.
func (r *TokenRepository) StoreToken(ctx context.Context, token *domain.Token) error {
	_, err := r.coll.InsertOne(ctx, token)
	if mongo.IsDuplicateKeyError(err) {
		return serrors.ErrTokenValueExists
	}
	return err
}

func (r *TokenRepository) GetAccessToken(ctx context.Context, tokenValue string) (*domain.Token, error) {
	var token domain.Token
	err := r.coll.FindOne(ctx, bson.M{
		"token_value": tokenValue, "token_type": domain.TokenTypeAccess,
		"revoked": false, "expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&token)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

// GetRefreshToken does not filter on the consumed flag: the refresh
// grant needs to see already-consumed tokens to detect reuse.
func (r *TokenRepository) GetRefreshToken(ctx context.Context, tokenValue string) (*domain.Token, error) {
	var token domain.Token
	err := r.coll.FindOne(ctx, bson.M{
		"token_value": tokenValue, "token_type": domain.TokenTypeRefresh,
		"revoked": false,
	}).Decode(&token)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

// ConsumeRefreshToken flips the consumed flag conditionally, so two
// concurrent rotations of the same token resolve to a single winner.
func (r *TokenRepository) ConsumeRefreshToken(ctx context.Context, tokenValue string) (*domain.Token, error) {
	filter := bson.M{
		"token_value": tokenValue,
		"token_type":  domain.TokenTypeRefresh,
		"revoked":     false,
		"consumed":    false,
	}
	update := bson.M{"$set": bson.M{
		"consumed":     true,
		"last_used_at": time.Now().UTC(),
	}}
	opt := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var consumed domain.Token
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opt).Decode(&consumed)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrTokenNotFound
		}
		return nil, err
	}

	return &consumed, nil
}

func (r *TokenRepository) RevokeToken(ctx context.Context, tokenValue string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"token_value": tokenValue},
		bson.M{"$set": bson.M{"revoked": true}})
	return err
}

func (r *TokenRepository) RevokeTokenFamily(ctx context.Context, familyID string) error {
	if familyID == "" {
		return nil
	}

	result, err := r.coll.UpdateMany(ctx,
		bson.M{"family_id": familyID},
		bson.M{"$set": bson.M{"revoked": true}})
	if err != nil {
		return err
	}

	log.Warn().
		Str("familyID", familyID).
		Int64("revoked", result.ModifiedCount).
		Msg("Revoked token family")

	return nil
}

func (r *TokenRepository) DeleteExpiredTokens(ctx context.Context) error {
	_, err := r.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	return err
}
