package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sociopolis/sociopolis_service/internal/model"
)

type ProgressRepository interface {
	Get(ctx context.Context, userID, lessonID string) (*model.Progress, error)
	Touch(ctx context.Context, userID, lessonID string) error
	ApplyCompletion(ctx context.Context, userID, lessonID string, score, timeSpentMin int) (*model.Progress, error)
}

const progressCollection = "progress"

type progressMongoRepository struct {
	db *mongo.Database
}

func NewProgressMongoRepository(db *mongo.Database) ProgressRepository {
	return &progressMongoRepository{db: db}
}

func (r *progressMongoRepository) Get(ctx context.Context, userID, lessonID string) (*model.Progress, error) {
	result := r.db.Collection(progressCollection).FindOne(ctx,
		bson.M{"_id": model.ProgressID(userID, lessonID)})
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var p model.Progress
	if err := result.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Touch stamps lastAccessedAt, creating the document on first access.
func (r *progressMongoRepository) Touch(ctx context.Context, userID, lessonID string) error {
	now := time.Now()
	_, err := r.db.Collection(progressCollection).UpdateOne(ctx,
		bson.M{"_id": model.ProgressID(userID, lessonID)},
		bson.M{
			"$set": bson.M{"lastAccessedAt": now, "updatedAt": now},
			"$setOnInsert": bson.M{
				"userId":          userID,
				"lessonId":        lessonID,
				"completed":       false,
				"bestScore":       0,
				"completionCount": 0,
				"timeSpentMin":    0,
			},
		},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}

// ApplyCompletion merges one finished attempt into the accumulated progress:
// completion count and time spent are incremented, bestScore keeps the max.
func (r *progressMongoRepository) ApplyCompletion(
	ctx context.Context,
	userID, lessonID string,
	score, timeSpentMin int,
) (*model.Progress, error) {
	now := time.Now()
	result := r.db.Collection(progressCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": model.ProgressID(userID, lessonID)},
		bson.M{
			"$set": bson.M{
				"userId":         userID,
				"lessonId":       lessonID,
				"completed":      true,
				"completionDate": now,
				"lastAccessedAt": now,
				"updatedAt":      now,
			},
			"$inc": bson.M{
				"completionCount": 1,
				"timeSpentMin":    timeSpentMin,
			},
			"$max": bson.M{"bestScore": score},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	if err := result.Err(); err != nil {
		return nil, err
	}

	var p model.Progress
	if err := result.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
