package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sociopolis/sociopolis_service/internal/model"
)

type LeaderboardRepository interface {
	Get(ctx context.Context) (*model.Snapshot, error)
	Replace(ctx context.Context, snap *model.Snapshot) error
}

const leaderboardCollection = "leaderboard"

type leaderboardMongoRepository struct {
	db *mongo.Database
}

func NewLeaderboardMongoRepository(db *mongo.Database) LeaderboardRepository {
	return &leaderboardMongoRepository{db: db}
}

func (r *leaderboardMongoRepository) Get(ctx context.Context) (*model.Snapshot, error) {
	result := r.db.Collection(leaderboardCollection).FindOne(ctx,
		bson.M{"_id": model.SnapshotDocID})
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var snap model.Snapshot
	if err := result.Decode(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Replace swaps the snapshot wholesale; there is no incremental update path.
func (r *leaderboardMongoRepository) Replace(ctx context.Context, snap *model.Snapshot) error {
	snap.ID = model.SnapshotDocID
	_, err := r.db.Collection(leaderboardCollection).ReplaceOne(ctx,
		bson.M{"_id": model.SnapshotDocID}, snap,
		options.Replace().SetUpsert(true))
	return err
}
