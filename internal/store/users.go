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

// UserRepository is the store capability the XP ledger, leaderboard and auth
// flows run against.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpsertGoogle(ctx context.Context, providerID, email, name, picture string) (*model.User, error)
	UpdateProfile(ctx context.Context, id string, params UpdateProfileParams) (*model.User, error)
	SetEmailVerified(ctx context.Context, id string) error
	SetLastLogin(ctx context.Context, id string) error
	SetAvatar(ctx context.Context, id, url string) error
	IncrementXP(ctx context.Context, id string, delta int) (*model.User, error)
	ResetXP(ctx context.Context, id string) (*model.User, error)
	TopByXP(ctx context.Context, limit int) ([]*model.User, error)
}

// UpdateProfileParams carries the optional profile fields; nil fields are left
// untouched.
type UpdateProfileParams struct {
	DisplayName *string
	Age         *int
}

const userCollection = "users"

type userMongoRepository struct {
	db *mongo.Database
}

func NewUserMongoRepository(db *mongo.Database) UserRepository {
	return &userMongoRepository{db: db}
}

func (r *userMongoRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	result, err := r.db.Collection(userCollection).InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		user.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return user, nil
}

func (r *userMongoRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *userMongoRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *userMongoRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	result := r.db.Collection(userCollection).FindOne(ctx, filter)
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userMongoRepository) UpsertGoogle(
	ctx context.Context,
	providerID, email, name, picture string,
) (*model.User, error) {
	now := time.Now()
	result := r.db.Collection(userCollection).FindOneAndUpdate(
		ctx,
		bson.M{"provider": "google", "providerId": providerID},
		bson.M{
			"$set": bson.M{
				"email":       email,
				"displayName": name,
				"avatarUrl":   picture,
				"lastLoginAt": now,
				"updatedAt":   now,
			},
			"$setOnInsert": bson.M{
				"admin":         false,
				"age":           0,
				"emailVerified": true,
				"termsAccepted": true,
				"xp":            0,
				"level":         0,
				"createdAt":     now,
			},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	if err := result.Err(); err != nil {
		return nil, err
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userMongoRepository) UpdateProfile(
	ctx context.Context,
	id string,
	params UpdateProfileParams,
) (*model.User, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	updateMap := bson.M{}
	if params.DisplayName != nil {
		updateMap["displayName"] = *params.DisplayName
	}
	if params.Age != nil {
		updateMap["age"] = *params.Age
	}
	if len(updateMap) == 0 {
		return nil, errors.New("no profile fields to update")
	}
	updateMap["updatedAt"] = time.Now()

	result := r.db.Collection(userCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": updateMap},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userMongoRepository) SetEmailVerified(ctx context.Context, id string) error {
	return r.setField(ctx, id, bson.M{"emailVerified": true})
}

func (r *userMongoRepository) SetLastLogin(ctx context.Context, id string) error {
	return r.setField(ctx, id, bson.M{"lastLoginAt": time.Now()})
}

func (r *userMongoRepository) SetAvatar(ctx context.Context, id, url string) error {
	return r.setField(ctx, id, bson.M{"avatarUrl": url})
}

func (r *userMongoRepository) setField(ctx context.Context, id string, fields bson.M) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	fields["updatedAt"] = time.Now()
	res, err := r.db.Collection(userCollection).UpdateOne(ctx,
		bson.M{"_id": objectID}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementXP adds delta to the stored XP in a single server-side pipeline
// update, so concurrent awards never lose an increment. Level is derived from
// the resulting XP in the same write.
func (r *userMongoRepository) IncrementXP(ctx context.Context, id string, delta int) (*model.User, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	update := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.M{
			"xp": bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$xp", 0}}, delta}},
		}}},
		bson.D{{Key: "$set", Value: bson.M{
			"level":     bson.M{"$toInt": bson.M{"$floor": bson.M{"$divide": bson.A{"$xp", 100}}}},
			"updatedAt": "$$NOW",
		}}},
	}

	result := r.db.Collection(userCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userMongoRepository) ResetXP(ctx context.Context, id string) (*model.User, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	result := r.db.Collection(userCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"xp": 0, "level": 0, "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// TopByXP orders by XP descending with a deterministic tie-break: the user who
// reached the score first (earliest updatedAt) ranks higher, then _id.
func (r *userMongoRepository) TopByXP(ctx context.Context, limit int) ([]*model.User, error) {
	findOptions := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{
			{Key: "xp", Value: -1},
			{Key: "updatedAt", Value: 1},
			{Key: "_id", Value: 1},
		})

	cursor, err := r.db.Collection(userCollection).Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*model.User
	for cursor.Next(ctx) {
		var user model.User
		if err := cursor.Decode(&user); err != nil {
			return nil, err
		}
		users = append(users, &user)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
