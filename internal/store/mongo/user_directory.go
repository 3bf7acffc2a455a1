package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserDirectory resolves display names from the users collection, which is
// owned by the account system outside this subsystem. Read-only here.
type UserDirectory struct {
	coll *mongo.Collection
}

func NewUserDirectory(db *DB) *UserDirectory {
	return &UserDirectory{coll: db.db.Collection("users")}
}

type userDoc struct {
	ID   string `bson:"_id"`
	Name string `bson:"name"`
}

func (d *UserDirectory) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	if len(userIDs) == 0 {
		return map[string]string{}, nil
	}

	cursor, err := d.coll.Find(ctx, bson.M{"_id": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	names := make(map[string]string, len(userIDs))
	for cursor.Next(ctx) {
		var doc userDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
		names[doc.ID] = doc.Name
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return names, nil
}
