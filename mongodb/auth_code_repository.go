package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
)

type AuthCodeRepository struct {
	coll *mongo.Collection
}

func NewAuthCodeRepository(db *mongo.Database) domain.AuthCodeRepository {
	return &AuthCodeRepository{
		coll: db.Collection(CodesCollection),
	}
}

func (r *AuthCodeRepository) SaveAuthCode(ctx context.Context, code *domain.AuthCode) error {
	_, err := r.coll.InsertOne(ctx, code)
	return err
}

// ConsumeAuthCode flips the used flag in a single conditional update.
// Two concurrent redemptions of the same code race on the used:false
// filter, and exactly one of them gets the document back.
func (r *AuthCodeRepository) ConsumeAuthCode(ctx context.Context, code, clientID string) (*domain.AuthCode, error) {
	filter := bson.M{
		"code":      code,
		"client_id": clientID,
		"used":      false,
	}
	update := bson.M{"$set": bson.M{"used": true}}
	opt := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var consumed domain.AuthCode
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opt).Decode(&consumed)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrAuthCodeNotFound
		}
		return nil, err
	}

	return &consumed, nil
}

func (r *AuthCodeRepository) DeleteExpiredAuthCodes(ctx context.Context) error {
	_, err := r.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	return err
}
