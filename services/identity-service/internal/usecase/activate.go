package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/vasapolrittideah/conference-api/services/identity-service/internal/model"
)

// Activate redeems an activation token: the matching account regains the
// login right and the token is cleared so it cannot be replayed. The token is
// the raw value stored on the user record; transport callers validate the
// signed activation link from the email and pass the JTI it carries here.
func (u *registrationUsecase) Activate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrTokenNotFound
	}

	user, err := u.userRepo.GetByActivationToken(ctx, token)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to look up activation token: %w", err)
	}

	user.GrantRight(model.RightLogin)
	user.ActivationToken = ""

	activated, err := u.userRepo.Save(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to persist activated user: %w", err)
	}

	u.logger.Debug().Str("user_id", activated.ID.Hex()).Msg("activated user")

	return activated, nil
}
