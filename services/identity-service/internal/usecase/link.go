package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vasapolrittideah/conference-api/services/identity-service/internal/config"
	"github.com/vasapolrittideah/conference-api/services/identity-service/internal/locale"
	"github.com/vasapolrittideah/conference-api/services/identity-service/internal/model"
	"github.com/vasapolrittideah/conference-api/services/identity-service/internal/repository"
	"github.com/vasapolrittideah/conference-api/shared/provider"
	"github.com/vasapolrittideah/conference-api/shared/security"
	"github.com/vasapolrittideah/conference-api/shared/validation"
)

// IdentityProvider resolves an externally issued credential into the identity
// it asserts. *provider.GoogleOAuthProvider implements this.
type IdentityProvider interface {
	Identity(ctx context.Context) (*provider.Identity, error)
}

// IdentityLinkUsecase links externally asserted identities to local accounts.
type IdentityLinkUsecase interface {
	// LinkExternalUser finds the account linked to the assertion within the
	// provider domain, provisioning one on first login, and stamps the login.
	// The provider is the authentication authority, so the local credential is
	// rotated to a random value on every call and never communicated.
	LinkExternalUser(ctx context.Context, assertion model.IdentityAssertion, domainID int64) (*model.User, error)

	// LinkProviderUser resolves the provider identity and links it within the
	// provider domain.
	LinkProviderUser(ctx context.Context, identityProvider IdentityProvider, domainID int64) (*model.User, error)
}

var (
	ErrInvalidLogin  = errors.New("asserted uid is not a valid login")
	ErrEmailConflict = errors.New("another user with the same email exists")
)

type identityLinkUsecase struct {
	userRepo           repository.UserRepository
	groupRepo          repository.GroupRepository
	configRepo         repository.ConfigRepository
	validator          *validation.Validator
	identityServiceCfg *config.IdentityServiceConfig
	logger             *zerolog.Logger
}

// NewIdentityLinkUsecase creates a new instance of IdentityLinkUsecase.
func NewIdentityLinkUsecase(
	userRepo repository.UserRepository,
	groupRepo repository.GroupRepository,
	configRepo repository.ConfigRepository,
	validator *validation.Validator,
	identityServiceCfg *config.IdentityServiceConfig,
	logger *zerolog.Logger,
) IdentityLinkUsecase {
	return &identityLinkUsecase{
		userRepo:           userRepo,
		groupRepo:          groupRepo,
		configRepo:         configRepo,
		validator:          validator,
		identityServiceCfg: identityServiceCfg,
		logger:             logger,
	}
}

func (u *identityLinkUsecase) LinkProviderUser(
	ctx context.Context,
	identityProvider IdentityProvider,
	domainID int64,
) (*model.User, error) {
	identity, err := identityProvider.Identity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve provider identity: %w", err)
	}

	return u.LinkExternalUser(ctx, assertionFromIdentity(identity), domainID)
}

func (u *identityLinkUsecase) LinkExternalUser(
	ctx context.Context,
	assertion model.IdentityAssertion,
	domainID int64,
) (*model.User, error) {
	if !u.validator.ValidLogin(assertion.UID) {
		return nil, ErrInvalidLogin
	}

	user, err := u.userRepo.GetByExternalLogin(ctx, assertion.UID, model.TypeOAuth, domainID)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to look up linked user: %w", err)
		}
		user = nil
	}

	if assertion.Email != "" {
		var excludeID bson.ObjectID
		if user != nil {
			excludeID = user.ID
		}

		emailUnique, err := u.userRepo.CheckEmailUnique(ctx, assertion.Email, model.TypeOAuth, domainID, excludeID)
		if err != nil {
			return nil, fmt.Errorf("failed to check email uniqueness: %w", err)
		}
		if !emailUnique {
			return nil, ErrEmailConflict
		}
	}

	defaultLanguageID, err := u.configRepo.GetInt64(ctx, repository.KeyDefaultLanguage, u.identityServiceCfg.DefaultLanguageID)
	if err != nil {
		return nil, fmt.Errorf("failed to read default language: %w", err)
	}

	if user == nil {
		user, err = u.provision(ctx, assertion, domainID)
		if err != nil {
			return nil, err
		}
	}

	applyLocale(user, assertion, defaultLanguageID)
	user.LastLoginAt = time.Now()

	rawPassword, err := security.RandomPassword(oauthPasswordLength)
	if err != nil {
		return nil, err
	}
	passwordHash, err := security.HashPassword(rawPassword)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = passwordHash

	linked, err := u.userRepo.Save(ctx, user)
	if err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("failed to persist linked user: %w", err)
		}
		if strings.Contains(err.Error(), "address.email") {
			return nil, ErrEmailConflict
		}

		// A concurrent first login won the insert race on the login index;
		// reuse the winner's account instead of reporting a conflict.
		linked, err = u.relinkAfterRace(ctx, assertion, domainID, defaultLanguageID, passwordHash)
		if err != nil {
			return nil, err
		}
	}

	u.logger.Debug().
		Str("user_id", linked.ID.Hex()).
		Int64("domain_id", domainID).
		Msg("linked external user")

	return linked, nil
}

// relinkAfterRace re-fetches the account a concurrent request created for the
// same (uid, type, domain) and applies this login's mutations to it.
func (u *identityLinkUsecase) relinkAfterRace(
	ctx context.Context,
	assertion model.IdentityAssertion,
	domainID int64,
	defaultLanguageID int64,
	passwordHash string,
) (*model.User, error) {
	winner, err := u.userRepo.GetByExternalLogin(ctx, assertion.UID, model.TypeOAuth, domainID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up linked user after insert race: %w", err)
	}

	applyLocale(winner, assertion, defaultLanguageID)
	winner.LastLoginAt = time.Now()
	winner.PasswordHash = passwordHash

	linked, err := u.userRepo.Save(ctx, winner)
	if err != nil {
		return nil, fmt.Errorf("failed to persist linked user: %w", err)
	}

	return linked, nil
}

// provision builds a new provider-linked account from the assertion. The
// login right is withheld: provider-issued accounts are not authenticatable
// until an operator deliberately grants it.
func (u *identityLinkUsecase) provision(
	ctx context.Context,
	assertion model.IdentityAssertion,
	domainID int64,
) (*model.User, error) {
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

	user := model.NewUser(u.identityServiceCfg.DefaultLanguageID, u.identityServiceCfg.DefaultTimeZoneID)
	user.Type = model.TypeOAuth
	user.RevokeRight(model.RightLogin)
	user.DomainID = domainID
	user.Login = assertion.UID
	user.FirstName = assertion.FirstName
	user.LastName = assertion.LastName
	user.Address.Email = assertion.Email
	user.ShowContactDataToContacts = true
	if assertion.Picture != "" {
		user.PictureURI = assertion.Picture
	}
	user.AddGroup(group.ID)

	return user, nil
}

// applyLocale overwrites the language and country from the asserted locale
// tag. Unparseable or absent tags leave the existing values untouched.
func applyLocale(user *model.User, assertion model.IdentityAssertion, defaultLanguageID int64) {
	if assertion.Locale == "" {
		return
	}

	if languageID, country, ok := locale.Resolve(assertion.Locale, defaultLanguageID); ok {
		user.LanguageID = languageID
		user.Address.Country = country
	}
}

// assertionFromIdentity maps a provider-resolved identity onto the assertion
// the linking workflow consumes.
func assertionFromIdentity(identity *provider.Identity) model.IdentityAssertion {
	return model.IdentityAssertion{
		UID:       identity.UID,
		Email:     identity.Email,
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		Picture:   identity.Picture,
		Locale:    identity.Locale,
	}
}
