package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vasapolrittideah/conference-api/services/identity-service/internal/model"
)

// GroupRepository defines the interface for group-related database operations.
type GroupRepository interface {
	CreateGroup(ctx context.Context, group *model.Group) (*model.Group, error)
	GetGroup(ctx context.Context, id bson.ObjectID) (*model.Group, error)
}

const groupCollection = "groups"

type groupMongoRepository struct {
	db *mongo.Database
}

func NewGroupMongoRepository(db *mongo.Database) GroupRepository {
	return &groupMongoRepository{db: db}
}

func (r *groupMongoRepository) CreateGroup(ctx context.Context, group *model.Group) (*model.Group, error) {
	now := time.Now()
	group.CreatedAt = now
	group.UpdatedAt = now

	result, err := r.db.Collection(groupCollection).InsertOne(ctx, group)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		group.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return group, nil
}

func (r *groupMongoRepository) GetGroup(ctx context.Context, id bson.ObjectID) (*model.Group, error) {
	result := r.db.Collection(groupCollection).FindOne(ctx, bson.M{"_id": id})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var group model.Group
	if err := result.Decode(&group); err != nil {
		return nil, err
	}

	return &group, nil
}
