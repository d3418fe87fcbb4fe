package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sociopolis/sociopolis_service/internal/model"
)

type LessonRepository interface {
	Get(ctx context.Context, id string) (*model.Lesson, error)
	List(ctx context.Context) ([]*model.Lesson, error)
}

const lessonCollection = "lessons"

type lessonMongoRepository struct {
	db *mongo.Database
}

func NewLessonMongoRepository(db *mongo.Database) LessonRepository {
	return &lessonMongoRepository{db: db}
}

func (r *lessonMongoRepository) Get(ctx context.Context, id string) (*model.Lesson, error) {
	result := r.db.Collection(lessonCollection).FindOne(ctx, bson.M{"_id": id})
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var lesson model.Lesson
	if err := result.Decode(&lesson); err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *lessonMongoRepository) List(ctx context.Context) ([]*model.Lesson, error) {
	cursor, err := r.db.Collection(lessonCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var lessons []*model.Lesson
	for cursor.Next(ctx) {
		var lesson model.Lesson
		if err := cursor.Decode(&lesson); err != nil {
			return nil, err
		}
		lessons = append(lessons, &lesson)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return lessons, nil
}
