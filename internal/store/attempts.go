package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/sociopolis/sociopolis_service/internal/model"
)

type AttemptRepository interface {
	Create(ctx context.Context, attempt *model.Attempt) error
	Get(ctx context.Context, id string) (*model.Attempt, error)
	// RecordAnswer writes the answer for a check-in only if none exists yet.
	// Returns false when the check-in was already answered in this attempt.
	RecordAnswer(ctx context.Context, attemptID, checkInID string, ans model.AttemptAnswer) (bool, error)
	// Complete closes the attempt; returns false if it was already closed.
	Complete(ctx context.Context, attemptID string) (bool, error)
}

const attemptCollection = "attempts"

type attemptMongoRepository struct {
	db *mongo.Database
}

func NewAttemptMongoRepository(db *mongo.Database) AttemptRepository {
	return &attemptMongoRepository{db: db}
}

func (r *attemptMongoRepository) Create(ctx context.Context, attempt *model.Attempt) error {
	_, err := r.db.Collection(attemptCollection).InsertOne(ctx, attempt)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (r *attemptMongoRepository) Get(ctx context.Context, id string) (*model.Attempt, error) {
	result := r.db.Collection(attemptCollection).FindOne(ctx, bson.M{"_id": id})
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var attempt model.Attempt
	if err := result.Decode(&attempt); err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptMongoRepository) RecordAnswer(
	ctx context.Context,
	attemptID, checkInID string,
	ans model.AttemptAnswer,
) (bool, error) {
	// First writer wins: the filter matches only while the answer key is
	// absent, so a replayed submission is a no-op.
	res, err := r.db.Collection(attemptCollection).UpdateOne(ctx,
		bson.M{
			"_id":                   attemptID,
			"answers." + checkInID: bson.M{"$exists": false},
			"completedAt":           bson.M{"$exists": false},
		},
		bson.M{"$set": bson.M{"answers." + checkInID: ans}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *attemptMongoRepository) Complete(ctx context.Context, attemptID string) (bool, error) {
	res, err := r.db.Collection(attemptCollection).UpdateOne(ctx,
		bson.M{"_id": attemptID, "completedAt": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"completedAt": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}
