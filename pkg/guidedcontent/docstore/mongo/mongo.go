package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/guided-content/pkg/guidedcontent"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store implements guidedcontent.DocumentStore with one MongoDB
// collection per document collection. Ids are uuid strings kept in _id.
type Store struct {
	client   *mongo.Client
	database *mongo.Database
}

// Connect dials uri, pings the server and returns a store over database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	if database == "" {
		return nil, errors.New("database name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return New(client, database), nil
}

// New wraps an already connected client.
func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, database: client.Database(database)}
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Get(ctx context.Context, collection, id string) (guidedcontent.Document, error) {
	raw, err := s.database.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, guidedcontent.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return decode(raw)
}

func (s *Store) List(ctx context.Context, collection string, filter guidedcontent.Filter) ([]guidedcontent.Document, error) {
	query := bson.M{}
	for k, v := range filter {
		if k == "id" {
			k = "_id"
		}
		query[k] = v
	}

	cursor, err := s.database.Collection(collection).Find(ctx, query, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []guidedcontent.Document
	for cursor.Next(ctx) {
		doc, err := decode(cursor.Current)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return docs, nil
}

func (s *Store) Add(ctx context.Context, collection string, doc guidedcontent.Document) (string, error) {
	id := uuid.NewString()
	body, err := encode(id, doc)
	if err != nil {
		return "", err
	}
	if _, err := s.database.Collection(collection).InsertOne(ctx, body); err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, doc guidedcontent.Document) error {
	body, err := encode(id, doc)
	if err != nil {
		return err
	}
	res, err := s.database.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, body)
	if err != nil {
		return fmt.Errorf("failed to replace document: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, guidedcontent.ErrNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.database.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, guidedcontent.ErrNotFound)
	}
	return nil
}

// encode converts doc to BSON through relaxed extended JSON so stored
// values have the same shape the other stores produce.
func encode(id string, doc guidedcontent.Document) (bson.D, error) {
	stripped := make(map[string]any, len(doc))
	for k, v := range doc {
		if k != "id" && k != "_id" {
			stripped[k] = v
		}
	}
	data, err := json.Marshal(stripped)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var body bson.D
	if err := bson.UnmarshalExtJSON(data, false, &body); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return append(bson.D{{Key: "_id", Value: id}}, body...), nil
}

func decode(raw bson.Raw) (guidedcontent.Document, error) {
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	var doc guidedcontent.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	id, _ := doc["_id"].(string)
	delete(doc, "_id")
	doc["id"] = id
	return doc, nil
}
