package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
)

type ClientRepository struct {
	coll *mongo.Collection
}

func NewClientRepository(db *mongo.Database) domain.ClientRepository {
	return &ClientRepository{
		coll: db.Collection(ClientsCollection),
	}
}

func (r *ClientRepository) CreateClient(ctx context.Context, cli *domain.Client) error {
	_, err := r.coll.InsertOne(ctx, cli)
	return err
}

func (r *ClientRepository) GetClient(ctx context.Context, clientID string) (*domain.Client, error) {
	var cli domain.Client
	err := r.coll.FindOne(ctx, bson.M{"client_id": clientID}).Decode(&cli)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrClientNotFound
		}
		return nil, err
	}
	return &cli, nil
}

func (r *ClientRepository) UpdateClient(ctx context.Context, cli *domain.Client) error {
	cli.UpdatedAt = time.Now().UTC()

	result, err := r.coll.ReplaceOne(ctx, bson.M{"client_id": cli.ID}, cli)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return serrors.ErrClientNotFound
	}
	return nil
}

func (r *ClientRepository) DeactivateClient(ctx context.Context, clientID string) error {
	update := bson.M{"$set": bson.M{
		"active":     false,
		"updated_at": time.Now().UTC(),
	}}

	result, err := r.coll.UpdateOne(ctx, bson.M{"client_id": clientID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return serrors.ErrClientNotFound
	}
	return nil
}
