package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vasapolrittideah/conference-api/services/identity-service/internal/config"
	"github.com/vasapolrittideah/conference-api/services/identity-service/internal/email"
	"github.com/vasapolrittideah/conference-api/services/identity-service/internal/locale"
	"github.com/vasapolrittideah/conference-api/services/identity-service/internal/model"
	"github.com/vasapolrittideah/conference-api/services/identity-service/internal/repository"
	"github.com/vasapolrittideah/conference-api/shared/security"
	"github.com/vasapolrittideah/conference-api/shared/validation"
)

// RegistrationUsecase defines the business logic for account onboarding.
//
// Register is the public-facing entry point: it gates on the self-registration
// flag, resolves defaults (group, language, timezone), builds the candidate
// account, and collapses unexpected collaborator failures into the coarse
// ErrRegistrationFailed after logging them. CreateUser is the stricter inner
// primitive used by Register and by trusted integrations; it propagates every
// failure typed so richer callers can branch on the cause. The asymmetry is
// deliberate: the two entry points serve callers with different contracts.
type RegistrationUsecase interface {
	Register(ctx context.Context, params RegisterParams) (*RegisterResult, error)
	CreateUser(ctx context.Context, user *model.User, rawPassword, activationToken string) (*model.User, error)
	Activate(ctx context.Context, token string) (*model.User, error)
}

// RegisterParams defines the parameters for self-service registration.
type RegisterParams struct {
	Login        string
	Password     string
	FirstName    string
	LastName     string
	Email        string
	Country      string
	LanguageID   int64
	TimeZoneID   string
	ExternalType string
}

// RegisterResult is the outcome of a successful registration.
// PendingConfirmation is set when the account was created but cannot
// authenticate until the email address is confirmed.
type RegisterResult struct {
	User                *model.User
	PendingConfirmation bool
}

var (
	ErrRegistrationDisabled = errors.New("self-service registration is disabled")
	ErrLoginTooShort        = errors.New("login is shorter than the configured minimum")
	ErrInvalidEmail         = errors.New("email address is not valid")
	ErrLoginInUse           = errors.New("login is already in use")
	ErrEmailInUse           = errors.New("email is already in use")
	ErrUnknown              = errors.New("user was persisted without an identifier")
	ErrRegistrationFailed   = errors.New("registration failed")
	ErrTokenNotFound        = errors.New("activation token not found")
)

const oauthPasswordLength = 25

type registrationUsecase struct {
	userRepo           repository.UserRepository
	groupRepo          repository.GroupRepository
	configRepo         repository.ConfigRepository
	activationMailer   email.ActivationMailer
	validator          *validation.Validator
	identityServiceCfg *config.IdentityServiceConfig
	logger             *zerolog.Logger
}

// NewRegistrationUsecase creates a new instance of RegistrationUsecase.
func NewRegistrationUsecase(
	userRepo repository.UserRepository,
	groupRepo repository.GroupRepository,
	configRepo repository.ConfigRepository,
	activationMailer email.ActivationMailer,
	validator *validation.Validator,
	identityServiceCfg *config.IdentityServiceConfig,
	logger *zerolog.Logger,
) RegistrationUsecase {
	return &registrationUsecase{
		userRepo:           userRepo,
		groupRepo:          groupRepo,
		configRepo:         configRepo,
		activationMailer:   activationMailer,
		validator:          validator,
		identityServiceCfg: identityServiceCfg,
		logger:             logger,
	}
}

func (u *registrationUsecase) Register(ctx context.Context, params RegisterParams) (*RegisterResult, error) {
	enabled, err := u.configRepo.GetBool(ctx, repository.KeyAllowSelfRegister, false)
	if err != nil {
		u.logger.Error().Err(err).Msg("failed to read self-registration flag")
		return nil, ErrRegistrationFailed
	}
	if !enabled {
		return nil, ErrRegistrationDisabled
	}

	if params.Email != "" && !u.validator.ValidEmail(params.Email) {
		return nil, ErrInvalidEmail
	}

	user, err := u.buildCandidate(ctx, params)
	if err != nil {
		u.logger.Error().Err(err).Str("login", params.Login).Msg("failed to build candidate user")
		return nil, ErrRegistrationFailed
	}

	created, err := u.CreateUser(ctx, user, params.Password, "")
	if err != nil {
		switch {
		case errors.Is(err, ErrLoginTooShort),
			errors.Is(err, ErrLoginInUse),
			errors.Is(err, ErrEmailInUse),
			errors.Is(err, ErrUnknown):
			return nil, err
		default:
			// Legacy callers only distinguish success from non-success, so
			// unexpected collaborator failures are logged and collapsed.
			u.logger.Error().Err(err).Str("login", params.Login).Msg("failed to register user")
			return nil, ErrRegistrationFailed
		}
	}

	return &RegisterResult{
		User:                created,
		PendingConfirmation: !created.HasRight(model.RightLogin),
	}, nil
}

// CreateUser validates the candidate, applies the confirmation policy, and
// persists it. The caller-supplied activation token is used when non-empty;
// otherwise a fresh one is generated. The activation email is dispatched only
// after the account has been persisted, and a dispatch failure never undoes
// the creation.
func (u *registrationUsecase) CreateUser(
	ctx context.Context,
	user *model.User,
	rawPassword, activationToken string,
) (*model.User, error) {
	minLength, err := u.configRepo.GetInt64(ctx, repository.KeyMinLoginLength, u.identityServiceCfg.MinLoginLength)
	if err != nil {
		return nil, fmt.Errorf("failed to read minimum login length: %w", err)
	}
	if int64(utf8.RuneCountInString(user.Login)) < minLength {
		return nil, ErrLoginTooShort
	}

	loginUnique, err := u.userRepo.CheckLoginUnique(ctx, user.Login, user.Type, user.DomainID, bson.ObjectID{})
	if err != nil {
		return nil, fmt.Errorf("failed to check login uniqueness: %w", err)
	}
	if !loginUnique {
		return nil, ErrLoginInUse
	}

	userEmail := user.Address.Email
	if userEmail != "" {
		emailUnique, err := u.userRepo.CheckEmailUnique(ctx, userEmail, user.Type, user.DomainID, bson.ObjectID{})
		if err != nil {
			return nil, fmt.Errorf("failed to check email uniqueness: %w", err)
		}
		if !emailUnique {
			return nil, ErrEmailInUse
		}
	}

	token := activationToken
	if token == "" {
		token = uuid.NewString()
	}
	user.ActivationToken = token

	if user.ExternalType != "" {
		user.Type = model.TypeExternal
	}

	mandatory, err := u.confirmationRequired(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read confirmation policy: %w", err)
	}
	if mandatory && user.HasRight(model.RightLogin) {
		user.RevokeRight(model.RightLogin)
	}

	if rawPassword != "" {
		passwordHash, err := security.HashPassword(rawPassword)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = passwordHash
	}

	created, err := u.userRepo.Save(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// A conflicting write won the race between the advisory check and
			// the insert; report it the same way as the check would have.
			if strings.Contains(err.Error(), "address.email") {
				return nil, ErrEmailInUse
			}
			return nil, ErrLoginInUse
		}
		return nil, fmt.Errorf("failed to persist user: %w", err)
	}
	if created.ID.IsZero() {
		return nil, ErrUnknown
	}

	u.logger.Debug().Str("user_id", created.ID.Hex()).Msg("added user")

	if user.ExternalType == "" && userEmail != "" {
		if err := u.activationMailer.SendActivation(ctx, created.Login, userEmail, token, mandatory, created.LanguageID); err != nil {
			u.logger.Error().Err(err).Str("login", created.Login).Msg("failed to dispatch activation email")
		}
	}

	return created, nil
}

// buildCandidate assembles the complete user snapshot before the single
// persist call, resolving the default group, language, and timezone.
func (u *registrationUsecase) buildCandidate(ctx context.Context, params RegisterParams) (*model.User, error) {
	languageID := params.LanguageID
	if languageID == 0 {
		var err error
		languageID, err = u.configRepo.GetInt64(ctx, repository.KeyDefaultLanguage, u.identityServiceCfg.DefaultLanguageID)
		if err != nil {
			return nil, fmt.Errorf("failed to read default language: %w", err)
		}
	}

	group, err := u.defaultGroup(ctx)
	if err != nil {
		return nil, err
	}

	user := model.NewUser(languageID, locale.TimeZoneID(params.TimeZoneID, u.identityServiceCfg.DefaultTimeZoneID))
	user.Login = params.Login
	user.FirstName = params.FirstName
	user.LastName = params.LastName
	user.Address = model.Address{Email: params.Email, Country: params.Country}
	user.ExternalType = params.ExternalType
	user.AddGroup(group.ID)

	return user, nil
}

func (u *registrationUsecase) defaultGroup(ctx context.Context) (*model.Group, error) {
	groupIDHex, err := u.configRepo.GetString(ctx, repository.KeyDefaultGroup, u.identityServiceCfg.DefaultGroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to read default group id: %w", err)
	}

	groupID, err := bson.ObjectIDFromHex(groupIDHex)
	if err != nil {
		return nil, fmt.Errorf("invalid default group id %q: %w", groupIDHex, err)
	}

	group, err := u.groupRepo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve default group: %w", err)
	}

	return group, nil
}

// confirmationRequired reports whether newly registered accounts must confirm
// their email address before they can sign in. Confirmation is required only
// when a public base URL is configured and the verification flag is enabled.
func (u *registrationUsecase) confirmationRequired(ctx context.Context) (bool, error) {
	baseURL, err := u.configRepo.GetString(ctx, repository.KeyBaseURL, u.identityServiceCfg.BaseURL)
	if err != nil {
		return false, err
	}
	if baseURL == "" {
		return false, nil
	}

	return u.configRepo.GetBool(ctx, repository.KeyEmailVerification, false)
}
