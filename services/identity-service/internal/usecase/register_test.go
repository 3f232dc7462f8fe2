package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/vasapolrittideah/conference-api/services/identity-service/internal/config"
	"github.com/vasapolrittideah/conference-api/services/identity-service/internal/model"
	"github.com/vasapolrittideah/conference-api/services/identity-service/internal/repository"
)

type registrationFixture struct {
	usecase  RegistrationUsecase
	userRepo *fakeUserRepo
	cfgRepo  *fakeConfigRepo
	mailer   *fakeActivationMailer
	cfg      *config.IdentityServiceConfig
}

func newRegistrationFixture(t *testing.T, values map[string]string) *registrationFixture {
	t.Helper()

	userRepo := &fakeUserRepo{}
	cfgRepo := &fakeConfigRepo{values: values}
	mailer := &fakeActivationMailer{}
	cfg := newTestConfig()

	u := NewRegistrationUsecase(
		userRepo,
		&fakeGroupRepo{group: &model.Group{ID: testGroupID, Name: "default"}},
		cfgRepo,
		mailer,
		newTestValidator(t),
		cfg,
		nopLogger(),
	)

	return &registrationFixture{
		usecase:  u,
		userRepo: userRepo,
		cfgRepo:  cfgRepo,
		mailer:   mailer,
		cfg:      cfg,
	}
}

func registrationEnabled() map[string]string {
	return map[string]string{repository.KeyAllowSelfRegister: "true"}
}

func validParams() RegisterParams {
	return RegisterParams{
		Login:    "validuser",
		Password: "s3cr3t-pass",
		Email:    "a@b.com",
	}
}

func TestRegister_Disabled(t *testing.T) {
	f := newRegistrationFixture(t, nil)

	_, err := f.usecase.Register(context.Background(), validParams())

	assert.ErrorIs(t, err, ErrRegistrationDisabled)
	assert.Zero(t, f.userRepo.saves)
}

func TestRegister_LoginTooShort(t *testing.T) {
	f := newRegistrationFixture(t, registrationEnabled())

	params := validParams()
	params.Login = "abc"
	_, err := f.usecase.Register(context.Background(), params)

	assert.ErrorIs(t, err, ErrLoginTooShort)
	assert.Zero(t, f.userRepo.saves)
}

func TestRegister_InvalidEmail(t *testing.T) {
	f := newRegistrationFixture(t, registrationEnabled())

	params := validParams()
	params.Email = "not-an-email"
	_, err := f.usecase.Register(context.Background(), params)

	assert.ErrorIs(t, err, ErrInvalidEmail)
	assert.Zero(t, f.userRepo.saves)
}

func TestRegister_LoginInUse(t *testing.T) {
	f := newRegistrationFixture(t, registrationEnabled())
	f.userRepo.users = append(f.userRepo.users, &model.User{
		ID:      bson.NewObjectID(),
		Login:   "validuser",
		Type:    model.TypeLocal,
		Address: model.Address{Email: "other@b.com"},
	})

	_, err := f.usecase.Register(context.Background(), validParams())

	assert.ErrorIs(t, err, ErrLoginInUse)
	assert.Zero(t, f.userRepo.saves)
}

func TestRegister_EmailInUse(t *testing.T) {
	f := newRegistrationFixture(t, registrationEnabled())
	f.userRepo.users = append(f.userRepo.users, &model.User{
		ID:      bson.NewObjectID(),
		Login:   "someoneelse",
		Type:    model.TypeLocal,
		Address: model.Address{Email: "a@b.com"},
	})

	_, err := f.usecase.Register(context.Background(), validParams())

	assert.ErrorIs(t, err, ErrEmailInUse)
	assert.Zero(t, f.userRepo.saves)
}

func TestRegister_LoginInUseTakesPrecedence(t *testing.T) {
	f := newRegistrationFixture(t, registrationEnabled())
	f.userRepo.users = append(f.userRepo.users, &model.User{
		ID:      bson.NewObjectID(),
		Login:   "validuser",
		Type:    model.TypeLocal,
		Address: model.Address{Email: "a@b.com"},
	})

	_, err := f.usecase.Register(context.Background(), validParams())

	assert.ErrorIs(t, err, ErrLoginInUse)
}

func TestRegister_NoBaseURLKeepsLoginRight(t *testing.T) {
	values := registrationEnabled()
	values[repository.KeyEmailVerification] = "true"
	f := newRegistrationFixture(t, values) // no base URL configured

	result, err := f.usecase.Register(context.Background(), validParams())

	require.NoError(t, err)
	assert.True(t, result.User.HasRight(model.RightLogin))
	assert.False(t, result.PendingConfirmation)
	require.Len(t, f.mailer.calls, 1)
	assert.False(t, f.mailer.calls[0].mandatory)
}

func TestRegister_VerificationFlagOffKeepsLoginRight(t *testing.T) {
	f := newRegistrationFixture(t, registrationEnabled())
	f.cfg.BaseURL = "https://conf.example.com"

	result, err := f.usecase.Register(context.Background(), validParams())

	require.NoError(t, err)
	assert.True(t, result.User.HasRight(model.RightLogin))
	assert.False(t, result.PendingConfirmation)
}

func TestRegister_ConfirmationRequired(t *testing.T) {
	values := registrationEnabled()
	values[repository.KeyEmailVerification] = "true"
	f := newRegistrationFixture(t, values)
	f.cfg.BaseURL = "https://conf.example.com"

	result, err := f.usecase.Register(context.Background(), validParams())

	require.NoError(t, err)
	assert.False(t, result.User.HasRight(model.RightLogin))
	assert.True(t, result.PendingConfirmation)
	require.Len(t, f.mailer.calls, 1)
	assert.True(t, f.mailer.calls[0].mandatory)
	assert.NotEmpty(t, f.mailer.calls[0].token)
	assert.Equal(t, result.User.ActivationToken, f.mailer.calls[0].token)
}

func TestRegister_Success(t *testing.T) {
	f := newRegistrationFixture(t, registrationEnabled())

	params := validParams()
	params.FirstName = "Ada"
	params.LastName = "Lovelace"
	params.TimeZoneID = "Europe/Paris"
	result, err := f.usecase.Register(context.Background(), params)

	require.NoError(t, err)
	user := result.User
	assert.False(t, user.ID.IsZero())
	assert.Equal(t, model.TypeLocal, user.Type)
	assert.Equal(t, "Europe/Paris", user.TimeZoneID)
	assert.Equal(t, int64(1), user.LanguageID)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEmpty(t, user.ActivationToken)
	require.Len(t, user.GroupMemberships, 1)
	assert.Equal(t, testGroupID, user.GroupMemberships[0].GroupID)
	assert.Equal(t, 1, f.userRepo.saves)
}

func TestRegister_ExternalTypeSkipsMail(t *testing.T) {
	values := registrationEnabled()
	values[repository.KeyEmailVerification] = "true"
	f := newRegistrationFixture(t, values)
	f.cfg.BaseURL = "https://conf.example.com"

	params := validParams()
	params.ExternalType = "webex"
	result, err := f.usecase.Register(context.Background(), params)

	require.NoError(t, err)
	assert.Equal(t, model.TypeExternal, result.User.Type)
	assert.Empty(t, f.mailer.calls)
}

func TestRegister_MailFailureDoesNotBlockCreation(t *testing.T) {
	f := newRegistrationFixture(t, registrationEnabled())
	f.mailer.err = errors.New("smtp down")

	result, err := f.usecase.Register(context.Background(), validParams())

	require.NoError(t, err)
	assert.False(t, result.User.ID.IsZero())
	assert.Equal(t, 1, f.userRepo.saves)
}

func TestRegister_CollaboratorFailureIsCoarse(t *testing.T) {
	f := newRegistrationFixture(t, registrationEnabled())
	f.userRepo.saveErr = errors.New("connection reset")

	_, err := f.usecase.Register(context.Background(), validParams())

	assert.ErrorIs(t, err, ErrRegistrationFailed)
}

func TestCreateUser_SaveErrorPropagatesCause(t *testing.T) {
	f := newRegistrationFixture(t, registrationEnabled())
	f.userRepo.saveErr = errors.New("connection reset")

	user := model.NewUser(1, "Europe/Berlin")
	user.Login = "validuser"
	_, err := f.usecase.CreateUser(context.Background(), user, "pass", "")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRegistrationFailed)
	assert.ErrorContains(t, err, "connection reset")
}

func TestCreateUser_InsertRaceOnLoginIndex(t *testing.T) {
	f := newRegistrationFixture(t, registrationEnabled())
	f.userRepo.saveErr = duplicateKeyError("login_1_type_1_domain_id_1")

	user := model.NewUser(1, "Europe/Berlin")
	user.Login = "validuser"
	_, err := f.usecase.CreateUser(context.Background(), user, "pass", "")

	assert.ErrorIs(t, err, ErrLoginInUse)
}

func TestCreateUser_InsertRaceOnEmailIndex(t *testing.T) {
	f := newRegistrationFixture(t, registrationEnabled())
	f.userRepo.saveErr = duplicateKeyError("address.email_1_type_1_domain_id_1")

	user := model.NewUser(1, "Europe/Berlin")
	user.Login = "validuser"
	user.Address.Email = "a@b.com"
	_, err := f.usecase.CreateUser(context.Background(), user, "pass", "")

	assert.ErrorIs(t, err, ErrEmailInUse)
}

func TestCreateUser_MissingIDIsUnknown(t *testing.T) {
	f := newRegistrationFixture(t, registrationEnabled())
	f.userRepo.saveWithoutID = true

	user := model.NewUser(1, "Europe/Berlin")
	user.Login = "validuser"
	_, err := f.usecase.CreateUser(context.Background(), user, "pass", "")

	assert.ErrorIs(t, err, ErrUnknown)
}

func TestCreateUser_SuppliedTokenPreserved(t *testing.T) {
	f := newRegistrationFixture(t, registrationEnabled())

	user := model.NewUser(1, "Europe/Berlin")
	user.Login = "validuser"
	user.Address.Email = "a@b.com"
	created, err := f.usecase.CreateUser(context.Background(), user, "pass", "tok-123")

	require.NoError(t, err)
	assert.Equal(t, "tok-123", created.ActivationToken)
	require.Len(t, f.mailer.calls, 1)
	assert.Equal(t, "tok-123", f.mailer.calls[0].token)
}

func TestCreateUser_NoPasswordLeavesCredentialEmpty(t *testing.T) {
	f := newRegistrationFixture(t, registrationEnabled())

	user := model.NewUser(1, "Europe/Berlin")
	user.Login = "validuser"
	created, err := f.usecase.CreateUser(context.Background(), user, "", "")

	require.NoError(t, err)
	assert.Empty(t, created.PasswordHash)
}

func TestActivate(t *testing.T) {
	f := newRegistrationFixture(t, registrationEnabled())

	user := model.NewUser(1, "Europe/Berlin")
	user.Login = "validuser"
	user.RevokeRight(model.RightLogin)
	user.ActivationToken = "tok-456"
	_, err := f.userRepo.Save(context.Background(), user)
	require.NoError(t, err)

	activated, err := f.usecase.Activate(context.Background(), "tok-456")

	require.NoError(t, err)
	assert.True(t, activated.HasRight(model.RightLogin))
	assert.Empty(t, activated.ActivationToken)
}

func TestActivate_UnknownToken(t *testing.T) {
	f := newRegistrationFixture(t, registrationEnabled())

	_, err := f.usecase.Activate(context.Background(), "no-such-token")

	assert.ErrorIs(t, err, ErrTokenNotFound)
}
