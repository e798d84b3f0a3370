package snapshot

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Archive is a long-term sink for snapshot metadata.
type Archive interface {
	Store(ctx context.Context, meta Metadata) error
	Close(ctx context.Context) error
}

// MongoArchive stores snapshot metadata documents in a MongoDB collection.
type MongoArchive struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoArchive connects to uri and verifies the connection with a ping.
func NewMongoArchive(ctx context.Context, uri, database, collection string) (*MongoArchive, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &MongoArchive{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}, nil
}

// Store inserts one metadata document.
func (a *MongoArchive) Store(ctx context.Context, meta Metadata) error {
	_, err := a.coll.InsertOne(ctx, meta)
	return err
}

// Close disconnects from MongoDB.
func (a *MongoArchive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}

var _ Archive = (*MongoArchive)(nil)

// NullArchive discards metadata. Used when no archive is configured.
type NullArchive struct{}

func (NullArchive) Store(context.Context, Metadata) error { return nil }
func (NullArchive) Close(context.Context) error           { return nil }

var _ Archive = NullArchive{}
