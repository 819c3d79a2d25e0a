package mongodb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/v2/mongo/otelmongo"
)

const (
	ClientsCollection    = "oauth_clients"          // Registered OAuth clients
	CodesCollection      = "oauth_auth_codes"       // Authorization codes
	TokensCollection     = "oauth_tokens"           // Access and refresh tokens
	DeviceAuthCollection = "device_authorizations"  // Device authorization grants (RFC 8628)
)

var (
	clientInstance *mongo.Client
	clientOnce     sync.Once
	dbInstance     *mongo.Database
	dbOnce         sync.Once
)

// InitMongoDB initializes the MongoDB client and database instances.
// It should be called once at application startup.
func InitMongoDB(ctx context.Context, uri, dbName string) error {
	var err error
	clientOnce.Do(func() {
		log.Info().Msgf("Initializing MongoDB client with URI: %s", uri)
		clientOptions := options.Client().ApplyURI(uri)
		clientOptions.SetConnectTimeout(10 * time.Second)
		clientOptions.SetMonitor(
			otelmongo.NewMonitor(),
		)

		client, clientErr := mongo.Connect(clientOptions)
		if clientErr != nil {
			err = clientErr
			log.Error().Err(clientErr).Msg("Failed to connect to MongoDB")
			return
		}

		// Ping the primary to verify connection.
		if pingErr := client.Ping(ctx, readpref.Primary()); pingErr != nil {
			err = pingErr
			log.Error().Err(pingErr).Msg("Failed to ping MongoDB primary")
			return
		}
		clientInstance = client
		log.Info().Msg("MongoDB client initialized successfully.")
	})
	if err != nil {
		return err
	}

	dbOnce.Do(func() {
		if clientInstance == nil {
			err = errors.New("cannot initialize database without a connected client")
			return
		}
		log.Info().Msgf("Using MongoDB database: %s", dbName)
		dbInstance = clientInstance.Database(dbName)
	})
	if err != nil {
		return err
	}

	if dbInstance == nil {
		return errors.New("mongodb database instance not initialized")
	}

	return EnsureIndexes(ctx, dbInstance)
}

// EnsureIndexes creates the unique and TTL-style indexes the token
// issuance path relies on. The unique index on token_value is what
// turns a random-value collision into a retryable duplicate-key error.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)

	specs := []struct {
		coll  string
		model mongo.IndexModel
	}{
		{ClientsCollection, mongo.IndexModel{Keys: bson.D{{Key: "client_id", Value: 1}}, Options: unique}},
		{CodesCollection, mongo.IndexModel{Keys: bson.D{{Key: "code", Value: 1}}, Options: unique}},
		{CodesCollection, mongo.IndexModel{Keys: bson.D{{Key: "expires_at", Value: 1}}}},
		{TokensCollection, mongo.IndexModel{Keys: bson.D{{Key: "token_value", Value: 1}}, Options: unique}},
		{TokensCollection, mongo.IndexModel{Keys: bson.D{{Key: "family_id", Value: 1}}}},
		{TokensCollection, mongo.IndexModel{Keys: bson.D{{Key: "expires_at", Value: 1}}}},
		{DeviceAuthCollection, mongo.IndexModel{Keys: bson.D{{Key: "device_code", Value: 1}}, Options: unique}},
		{DeviceAuthCollection, mongo.IndexModel{Keys: bson.D{{Key: "user_code", Value: 1}}, Options: unique}},
		{DeviceAuthCollection, mongo.IndexModel{Keys: bson.D{{Key: "expires_at", Value: 1}}}},
	}

	for _, spec := range specs {
		if _, err := db.Collection(spec.coll).Indexes().CreateOne(ctx, spec.model); err != nil {
			log.Error().Err(err).Str("collection", spec.coll).Msg("Failed to create index")
			return err
		}
	}

	return nil
}

// GetDB returns the MongoDB database instance.
// It panics if InitMongoDB has not been called successfully.
func GetDB() *mongo.Database {
	if dbInstance == nil {
		log.Fatal().Msg("MongoDB database instance is not initialized. Call InitMongoDB first.")
	}
	return dbInstance
}

// Ping sends a ping to the MongoDB server using the global client.
// This is useful for health checks.
func Ping(ctx context.Context) error {
	if clientInstance == nil {
		return errors.New("mongodb client is not initialized")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return clientInstance.Ping(pingCtx, readpref.Primary())
}

// CloseMongoDB disconnects the MongoDB client.
// It should be called on application shutdown.
func CloseMongoDB(ctx context.Context) {
	if clientInstance != nil {
		log.Info().Msg("Closing MongoDB connection.")
		if err := clientInstance.Disconnect(ctx); err != nil {
			log.Error().Err(err).Msg("Error closing MongoDB connection")
		}
	}
}
