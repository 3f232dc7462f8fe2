package usecase

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vasapolrittideah/conference-api/services/identity-service/internal/config"
	"github.com/vasapolrittideah/conference-api/services/identity-service/internal/model"
	"github.com/vasapolrittideah/conference-api/shared/validation"
)

// --- fakes ---

type fakeUserRepo struct {
	users []*model.User

	saves         int
	saveErr       error
	saveErrOnce   error
	saveWithoutID bool

	// racedUser simulates a concurrent insert: it becomes visible to
	// GetByExternalLogin only after saveErrOnce has fired.
	racedUser *model.User
}

func (f *fakeUserRepo) CheckLoginUnique(
	_ context.Context,
	login string,
	userType model.UserType,
	domainID int64,
	excludeID bson.ObjectID,
) (bool, error) {
	for _, u := range f.users {
		if u.Login == login && u.Type == userType && u.DomainID == domainID && u.ID != excludeID {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeUserRepo) CheckEmailUnique(
	_ context.Context,
	email string,
	userType model.UserType,
	domainID int64,
	excludeID bson.ObjectID,
) (bool, error) {
	for _, u := range f.users {
		if u.Address.Email == email && u.Type == userType && u.DomainID == domainID && u.ID != excludeID {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeUserRepo) GetByExternalLogin(
	_ context.Context,
	login string,
	userType model.UserType,
	domainID int64,
) (*model.User, error) {
	for _, u := range f.users {
		if u.Login == login && u.Type == userType && u.DomainID == domainID {
			return u, nil
		}
	}
	if w := f.racedUser; w != nil && f.saveErrOnce == nil &&
		w.Login == login && w.Type == userType && w.DomainID == domainID {
		return w, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeUserRepo) GetByActivationToken(_ context.Context, token string) (*model.User, error) {
	for _, u := range f.users {
		if u.ActivationToken == token {
			return u, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeUserRepo) Save(_ context.Context, user *model.User) (*model.User, error) {
	if f.saveErrOnce != nil {
		err := f.saveErrOnce
		f.saveErrOnce = nil
		return nil, err
	}
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	if f.saveWithoutID {
		return user, nil
	}

	f.saves++
	if user.ID.IsZero() {
		user.ID = bson.NewObjectID()
		f.users = append(f.users, user)
		return user, nil
	}

	for i, existing := range f.users {
		if existing.ID == user.ID {
			f.users[i] = user
			return user, nil
		}
	}
	f.users = append(f.users, user)
	return user, nil
}

type fakeGroupRepo struct {
	group *model.Group
}

func (f *fakeGroupRepo) CreateGroup(_ context.Context, group *model.Group) (*model.Group, error) {
	return group, nil
}

func (f *fakeGroupRepo) GetGroup(_ context.Context, _ bson.ObjectID) (*model.Group, error) {
	return f.group, nil
}

type fakeConfigRepo struct {
	values map[string]string
	err    error
}

func (f *fakeConfigRepo) GetBool(_ context.Context, key string, def bool) (bool, error) {
	if f.err != nil {
		return def, f.err
	}
	raw, found := f.values[key]
	if !found {
		return def, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return def, nil
	}
	return value, nil
}

func (f *fakeConfigRepo) GetString(_ context.Context, key string, def string) (string, error) {
	if f.err != nil {
		return def, f.err
	}
	if raw, found := f.values[key]; found {
		return raw, nil
	}
	return def, nil
}

func (f *fakeConfigRepo) GetInt64(_ context.Context, key string, def int64) (int64, error) {
	if f.err != nil {
		return def, f.err
	}
	raw, found := f.values[key]
	if !found {
		return def, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def, nil
	}
	return value, nil
}

type activationCall struct {
	login     string
	email     string
	token     string
	mandatory bool
	langID    int64
}

type fakeActivationMailer struct {
	calls []activationCall
	err   error
}

func (f *fakeActivationMailer) SendActivation(
	_ context.Context,
	login, email, token string,
	mandatory bool,
	languageID int64,
) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, activationCall{
		login:     login,
		email:     email,
		token:     token,
		mandatory: mandatory,
		langID:    languageID,
	})
	return nil
}

// duplicateKeyError builds the write error the server returns when an insert
// violates one of the unique indexes.
func duplicateKeyError(index string) error {
	return mongo.WriteException{
		WriteErrors: mongo.WriteErrors{{
			Code:    11000,
			Message: fmt.Sprintf("E11000 duplicate key error collection: conference.users index: %s dup key", index),
		}},
	}
}

// --- fixtures ---

var testGroupID = bson.NewObjectID()

func newTestConfig() *config.IdentityServiceConfig {
	return &config.IdentityServiceConfig{
		DefaultGroupID:    testGroupID.Hex(),
		DefaultLanguageID: 1,
		DefaultTimeZoneID: "Europe/Berlin",
		MinLoginLength:    4,
		Token: config.TokenConfig{
			ActivationTokenSecret:    "test-secret",
			ActivationTokenExpiresIn: time.Hour,
			Issuer:                   "identity-service",
		},
	}
}

func newTestValidator(t *testing.T) *validation.Validator {
	t.Helper()
	v, err := validation.New()
	require.NoError(t, err)
	return v
}

func nopLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}
