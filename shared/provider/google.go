package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

var (
	ErrInvalidGoogleAudience = errors.New("invalid google audience")
)

// Identity is the provider-neutral view of an externally authenticated user,
// as asserted by the identity provider.
type Identity struct {
	UID       string
	Email     string
	FirstName string
	LastName  string
	Picture   string
	Locale    string
}

// GoogleOAuthProvider resolves a Google ID token into an Identity.
type GoogleOAuthProvider struct {
	idToken  string
	clientID string
}

// NewGoogleOAuthProvider creates a GoogleOAuthProvider for a single ID token.
func NewGoogleOAuthProvider(idToken, clientID string) *GoogleOAuthProvider {
	return &GoogleOAuthProvider{
		idToken:  idToken,
		clientID: clientID,
	}
}

// Identity validates the ID token against the configured client ID and
// fetches the subject's profile from the userinfo endpoint.
func (p *GoogleOAuthProvider) Identity(ctx context.Context) (*Identity, error) {
	if err := p.validateIDToken(ctx); err != nil {
		return nil, err
	}

	userInfo, err := p.getUserInfo(ctx)
	if err != nil {
		return nil, err
	}

	return &Identity{
		UID:       userInfo.Id,
		Email:     userInfo.Email,
		FirstName: userInfo.GivenName,
		LastName:  userInfo.FamilyName,
		Picture:   userInfo.Picture,
		Locale:    userInfo.Locale,
	}, nil
}

func (p *GoogleOAuthProvider) validateIDToken(ctx context.Context) error {
	oauth2Service, err := oauth2.NewService(ctx, option.WithHTTPClient(&http.Client{}))
	if err != nil {
		return err
	}

	tokenInfoCall := oauth2Service.Tokeninfo()
	tokenInfoCall.IdToken(p.idToken)
	tokenInfo, err := tokenInfoCall.Do()
	if err != nil {
		return err
	}

	if tokenInfo.Audience != p.clientID {
		return ErrInvalidGoogleAudience
	}

	return nil
}

func (p *GoogleOAuthProvider) getUserInfo(ctx context.Context) (*oauth2.Userinfo, error) {
	client := &http.Client{}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://www.googleapis.com/oauth2/v1/userinfo", nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+p.idToken)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("status code is not OK")
	}

	var userInfo oauth2.Userinfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, err
	}

	return &userInfo, nil
}
