package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/domain/repositories"
)

const sessionStoreCollection = "client_state"

type storedValue struct {
	Key       string    `bson:"_id"`
	Scope     string    `bson:"scope"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// SessionStore keeps client session values in MongoDB, one document per key.
// Scope separates clients sharing a database (typically the meeting code).
type SessionStore struct {
	collection *mongo.Collection
	scope      string
	logger     *zap.Logger
}

var _ repositories.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a MongoDB-backed session store
func NewSessionStore(db *mongo.Database, scope string, logger *zap.Logger) *SessionStore {
	return &SessionStore{
		collection: db.Collection(sessionStoreCollection),
		scope:      scope,
		logger:     logger,
	}
}

func (s *SessionStore) id(key string) string {
	if s.scope == "" {
		return key
	}
	return s.scope + ":" + key
}

// Get implements repositories.SessionStore
func (s *SessionStore) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("key cannot be empty")
	}

	var doc storedValue
	err := s.collection.FindOne(ctx, bson.M{"_id": s.id(key)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", repositories.ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return doc.Value, nil
}

// Set implements repositories.SessionStore
func (s *SessionStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	update := bson.M{
		"$set": bson.M{
			"scope":      s.scope,
			"value":      value,
			"updated_at": time.Now(),
		},
	}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": s.id(key)}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete implements repositories.SessionStore
func (s *SessionStore) Delete(ctx context.Context, key string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": s.id(key)})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	if result.DeletedCount > 0 {
		s.logger.Debug("Session value deleted", zap.String("key", key))
	}
	return nil
}
