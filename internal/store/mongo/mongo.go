// Package mongo implements the session and topic stores on MongoDB.
//
// Update operators ($pull, $push, $inc, $setOnInsert with upsert) carry the
// atomicity the registry and ledger rely on: find-or-create serializes
// concurrent session creation, and every vote mutation changes the voter set
// and the counter in one document update.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

// DB wraps the Mongo database handle shared by the stores.
type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a client, pings the primary, and ensures indexes.
func Connect(ctx context.Context, url, database string) (*DB, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	d := &DB{client: client, db: client.Database(database)}
	if err := d.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DB) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	_, err := d.db.Collection("sessions").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sessionId", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return fmt.Errorf("failed to create session index: %w", err)
	}

	_, err = d.db.Collection("topics").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "votedBy", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create topic indexes: %w", err)
	}
	return nil
}

// Ping checks connectivity, for readiness probes.
func (d *DB) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the underlying client.
func (d *DB) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
