package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vasapolrittideah/conference-api/services/identity-service/internal/model"
)

// UserRepository defines the interface for user-related database operations.
//
// The uniqueness checks are advisory reads; the unique indexes created by the
// Mongo implementation enforce the real invariant, and a duplicate-key error
// from Save is the signal for a conflicting concurrent write.
type UserRepository interface {
	CheckLoginUnique(ctx context.Context, login string, userType model.UserType, domainID int64, excludeID bson.ObjectID) (bool, error)
	CheckEmailUnique(ctx context.Context, email string, userType model.UserType, domainID int64, excludeID bson.ObjectID) (bool, error)
	GetByExternalLogin(ctx context.Context, login string, userType model.UserType, domainID int64) (*model.User, error)
	GetByActivationToken(ctx context.Context, token string) (*model.User, error)
	Save(ctx context.Context, user *model.User) (*model.User, error)
}

const userCollection = "users"

type userMongoRepository struct {
	db *mongo.Database
}

func NewUserMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) UserRepository {
	collection := db.Collection(userCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "login", Value: 1},
				{Key: "type", Value: 1},
				{Key: "domain_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "address.email", Value: 1},
				{Key: "type", Value: 1},
				{Key: "domain_id", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"address.email": bson.M{"$gt": ""}}),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create user indexes")
	}

	return &userMongoRepository{db: db}
}

func (r *userMongoRepository) CheckLoginUnique(
	ctx context.Context,
	login string,
	userType model.UserType,
	domainID int64,
	excludeID bson.ObjectID,
) (bool, error) {
	return r.countIsZero(ctx, scopedFilter("login", login, userType, domainID, excludeID))
}

func (r *userMongoRepository) CheckEmailUnique(
	ctx context.Context,
	email string,
	userType model.UserType,
	domainID int64,
	excludeID bson.ObjectID,
) (bool, error) {
	return r.countIsZero(ctx, scopedFilter("address.email", email, userType, domainID, excludeID))
}

func (r *userMongoRepository) GetByExternalLogin(
	ctx context.Context,
	login string,
	userType model.UserType,
	domainID int64,
) (*model.User, error) {
	return r.findOne(ctx, bson.M{
		"login":     login,
		"type":      userType,
		"domain_id": domainID,
	})
}

func (r *userMongoRepository) GetByActivationToken(ctx context.Context, token string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"activation_token": token})
}

func (r *userMongoRepository) Save(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now()
	user.UpdatedAt = now

	if user.ID.IsZero() {
		user.CreatedAt = now

		result, err := r.db.Collection(userCollection).InsertOne(ctx, user)
		if err != nil {
			return nil, err
		}

		if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
			user.ID = objectID
		} else {
			return nil, errors.New("failed to convert inserted ID to ObjectID")
		}

		return user, nil
	}

	if _, err := r.db.Collection(userCollection).ReplaceOne(ctx, bson.M{"_id": user.ID}, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userMongoRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	result := r.db.Collection(userCollection).FindOne(ctx, filter)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userMongoRepository) countIsZero(ctx context.Context, filter bson.M) (bool, error) {
	count, err := r.db.Collection(userCollection).CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}

	return count == 0, nil
}

func scopedFilter(field, value string, userType model.UserType, domainID int64, excludeID bson.ObjectID) bson.M {
	filter := bson.M{
		field:       value,
		"type":      userType,
		"domain_id": domainID,
	}
	if !excludeID.IsZero() {
		filter["_id"] = bson.M{"$ne": excludeID}
	}

	return filter
}
