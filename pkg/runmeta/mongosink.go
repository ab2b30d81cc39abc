package runmeta

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSink streams component records into a MongoDB collection as an
// additive sink alongside the required file artifact: its failures are
// logged, never fatal, and it never blocks or replaces the file write
// (SPEC_FULL §4.5 expansion — no original_source counterpart, the
// reference scraper only ever wrote to disk).
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoSink connects to uri and targets database/collection "octoscrape".
func NewMongoSink(ctx context.Context, uri string) (*MongoSink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	collection := client.Database("octoscrape").Collection("components")
	return &MongoSink{client: client, collection: collection}, nil
}

// InsertBatch bulk-inserts one resolved batch of components. A failure is
// logged by the caller (via the returned error) but must never fail the
// run: the file artifact remains the source of truth.
func (s *MongoSink) InsertBatch(ctx context.Context, category string, components []json.RawMessage) error {
	if len(components) == 0 {
		return nil
	}
	docs := make([]any, 0, len(components))
	for _, raw := range components {
		var doc bson.M
		if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
			log.Warn("mongo sink: skipping component that failed to decode", "category", category, "error", err)
			continue
		}
		doc["_category"] = category
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil
	}
	_, err := s.collection.InsertMany(ctx, docs)
	return err
}

// Close disconnects the underlying client.
func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
