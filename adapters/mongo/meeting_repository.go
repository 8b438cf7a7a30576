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

	"github.com/javaboys/hunty/interview/domain/entities"
	"github.com/javaboys/hunty/interview/domain/repositories"
)

// MeetingRepository stores meetings keyed by their code
type MeetingRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.MeetingRepository = (*MeetingRepository)(nil)

// NewMeetingRepository creates a new MongoDB meeting repository
func NewMeetingRepository(db *mongo.Database, logger *zap.Logger) *MeetingRepository {
	collection := db.Collection("meetings")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// The expiry sweeper scans running meetings by deadline.
		statusEndIndex := mongo.IndexModel{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "end_at", Value: 1},
			},
		}
		interviewIndex := mongo.IndexModel{
			Keys:    bson.D{{Key: "interview_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		}

		if _, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{statusEndIndex, interviewIndex}); err != nil {
			logger.Error("Failed to create meeting indexes", zap.Error(err))
		} else {
			logger.Info("Meeting indexes created successfully")
		}
	}()

	return &MeetingRepository{
		collection: collection,
		logger:     logger,
	}
}

// GetByCode implements repositories.MeetingRepository
func (r *MeetingRepository) GetByCode(ctx context.Context, code string) (*entities.Meeting, error) {
	if code == "" {
		return nil, errors.New("meeting code cannot be empty")
	}

	var meeting entities.Meeting
	err := r.collection.FindOne(ctx, bson.M{"_id": code}).Decode(&meeting)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrMeetingNotFound
		}
		return nil, fmt.Errorf("failed to get meeting %s: %w", code, err)
	}
	return &meeting, nil
}

// Save implements repositories.MeetingRepository
func (r *MeetingRepository) Save(ctx context.Context, meeting *entities.Meeting) error {
	if meeting == nil {
		return errors.New("meeting cannot be nil")
	}
	if err := meeting.Validate(); err != nil {
		return err
	}

	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": meeting.Code}, meeting, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save meeting: %w", err)
	}

	r.logger.Debug("Meeting saved",
		zap.String("code", meeting.Code),
		zap.String("status", string(meeting.Status)))
	return nil
}

// ListRunning implements repositories.MeetingRepository
func (r *MeetingRepository) ListRunning(ctx context.Context) ([]*entities.Meeting, error) {
	filter := bson.M{"status": entities.SessionStatusRunning}
	opts := options.Find().SetSort(bson.M{"end_at": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list running meetings: %w", err)
	}
	defer cursor.Close(ctx)

	meetings := []*entities.Meeting{}
	if err := cursor.All(ctx, &meetings); err != nil {
		return nil, fmt.Errorf("failed to decode running meetings: %w", err)
	}
	return meetings, nil
}
