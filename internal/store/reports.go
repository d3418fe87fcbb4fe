package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/sociopolis/sociopolis_service/internal/model"
)

type ReportRepository interface {
	Create(ctx context.Context, report *model.Report) (*model.Report, error)
}

const reportCollection = "reports"

type reportMongoRepository struct {
	db *mongo.Database
}

func NewReportMongoRepository(db *mongo.Database) ReportRepository {
	return &reportMongoRepository{db: db}
}

func (r *reportMongoRepository) Create(ctx context.Context, report *model.Report) (*model.Report, error) {
	report.CreatedAt = time.Now()

	result, err := r.db.Collection(reportCollection).InsertOne(ctx, report)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		report.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}
	return report, nil
}
