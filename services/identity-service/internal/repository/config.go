package repository

import (
	"context"
	"errors"
	"strconv"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Configuration keys consumed by the onboarding workflows. Values live in the
// configs collection so operators can change them without a redeploy; the
// getters fall back to the supplied default when a key is absent.
const (
	KeyAllowSelfRegister = "allow.frontend.register"
	KeyEmailVerification = "send.email.with.verification"
	KeyBaseURL           = "application.base.url"
	KeyDefaultGroup      = "default.group.id"
	KeyDefaultLanguage   = "default.lang.id"
	KeyMinLoginLength    = "user.login.minimum.length"
)

// ConfigRepository defines read access to the runtime configuration store.
type ConfigRepository interface {
	GetBool(ctx context.Context, key string, def bool) (bool, error)
	GetString(ctx context.Context, key string, def string) (string, error)
	GetInt64(ctx context.Context, key string, def int64) (int64, error)
}

const configCollection = "configs"

type configEntry struct {
	Key   string `bson:"key"`
	Value string `bson:"value"`
}

type configMongoRepository struct {
	db *mongo.Database
}

func NewConfigMongoRepository(db *mongo.Database) ConfigRepository {
	return &configMongoRepository{db: db}
}

func (r *configMongoRepository) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	raw, found, err := r.get(ctx, key)
	if err != nil || !found {
		return def, err
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return def, nil
	}

	return value, nil
}

func (r *configMongoRepository) GetString(ctx context.Context, key string, def string) (string, error) {
	raw, found, err := r.get(ctx, key)
	if err != nil || !found {
		return def, err
	}

	return raw, nil
}

func (r *configMongoRepository) GetInt64(ctx context.Context, key string, def int64) (int64, error) {
	raw, found, err := r.get(ctx, key)
	if err != nil || !found {
		return def, err
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def, nil
	}

	return value, nil
}

func (r *configMongoRepository) get(ctx context.Context, key string) (string, bool, error) {
	result := r.db.Collection(configCollection).FindOne(ctx, bson.M{"key": key})
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", false, nil
		}
		return "", false, err
	}

	var entry configEntry
	if err := result.Decode(&entry); err != nil {
		return "", false, err
	}

	return entry.Value, true, nil
}
