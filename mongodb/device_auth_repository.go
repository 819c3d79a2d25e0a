package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
)

type DeviceAuthRepository struct {
	coll *mongo.Collection
}

func NewDeviceAuthRepository(db *mongo.Database) domain.DeviceAuthRepository {
	return &DeviceAuthRepository{
		coll: db.Collection(DeviceAuthCollection),
	}
}

func (r *DeviceAuthRepository) SaveDeviceAuth(ctx context.Context, auth *domain.DeviceAuth) error {
	if auth.ID == "" {
		auth.ID = uuid.NewString()
	}
	if auth.CreatedAt.IsZero() {
		auth.CreatedAt = time.Now().UTC()
	}

	_, err := r.coll.InsertOne(ctx, auth)
	return err
}

func (r *DeviceAuthRepository) GetDeviceAuthByDeviceCode(ctx context.Context, deviceCode string) (*domain.DeviceAuth, error) {
	var result domain.DeviceAuth

	err := r.coll.FindOne(ctx, bson.M{"device_code": deviceCode}).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrDeviceCodeNotFound
		}
		return nil, err
	}

	return &result, nil
}

func (r *DeviceAuthRepository) GetDeviceAuthByUserCode(ctx context.Context, userCode string) (*domain.DeviceAuth, error) {
	var result domain.DeviceAuth
	filter := bson.M{
		"user_code":  userCode,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}
	err := r.coll.FindOne(ctx, filter).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrUserCodeNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *DeviceAuthRepository) ApproveDeviceAuth(ctx context.Context, userCode, userID string) (*domain.DeviceAuth, error) {
	filter := bson.M{
		"user_code":  userCode,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
		"status":     domain.DeviceAuthPending,
	}
	update := bson.M{
		"$set": bson.M{
			"status":  domain.DeviceAuthAuthorized,
			"user_id": userID,
		},
	}
	opt := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated domain.DeviceAuth
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opt).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrCannotApproveDeviceAuth
		}
		return nil, err
	}

	return &updated, nil
}

func (r *DeviceAuthRepository) DenyDeviceAuth(ctx context.Context, userCode string) error {
	filter := bson.M{
		"user_code": userCode,
		"status":    domain.DeviceAuthPending,
	}
	update := bson.M{"$set": bson.M{"status": domain.DeviceAuthDenied}}

	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return serrors.ErrCannotApproveDeviceAuth
	}
	return nil
}

// ConsumeDeviceAuth moves an authorized grant to redeemed. The status
// filter makes concurrent polls race on the transition, so only one
// poll per grant can ever reach token minting.
func (r *DeviceAuthRepository) ConsumeDeviceAuth(ctx context.Context, deviceCode string) (*domain.DeviceAuth, error) {
	filter := bson.M{
		"device_code": deviceCode,
		"status":      domain.DeviceAuthAuthorized,
	}
	update := bson.M{"$set": bson.M{"status": domain.DeviceAuthRedeemed}}
	opt := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var consumed domain.DeviceAuth
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opt).Decode(&consumed)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrDeviceCodeNotFound
		}
		return nil, err
	}

	return &consumed, nil
}

func (r *DeviceAuthRepository) MarkDeviceAuthExpired(ctx context.Context, deviceCode string) error {
	// Terminal states stay terminal.
	filter := bson.M{
		"device_code": deviceCode,
		"status":      bson.M{"$in": []domain.DeviceAuthStatus{domain.DeviceAuthPending, domain.DeviceAuthAuthorized}},
	}
	update := bson.M{"$set": bson.M{"status": domain.DeviceAuthExpired}}

	_, err := r.coll.UpdateOne(ctx, filter, update)
	return err
}

func (r *DeviceAuthRepository) TouchDeviceAuthPolledAt(ctx context.Context, deviceCode string) error {
	filter := bson.M{"device_code": deviceCode}
	update := bson.M{"$set": bson.M{"last_polled_at": time.Now().UTC()}}

	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return serrors.ErrDeviceCodeNotFound
	}
	return nil
}

func (r *DeviceAuthRepository) DeleteExpiredDeviceAuths(ctx context.Context) error {
	_, err := r.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	return err
}
