package email

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vasapolrittideah/conference-api/services/identity-service/internal/config"
	"github.com/vasapolrittideah/conference-api/shared/auth"
	"github.com/vasapolrittideah/conference-api/shared/mailer"
)

// ActivationMailer dispatches the activation email for a freshly registered
// account. When mandatory is true the mail asks the user to confirm the
// address before they can sign in; otherwise it is an informational welcome.
type ActivationMailer interface {
	SendActivation(ctx context.Context, login, email, token string, mandatory bool, languageID int64) error
}

// ActivationClaims are the claims of the signed activation link embedded in
// the email. JTI carries the activation token stored on the user record; the
// transport endpoint serving the link validates the JWT with
// auth.JWTAuthenticator.ValidateTokenWithClaims and hands the JTI to the
// activation usecase.
type ActivationClaims struct {
	Login string `json:"login"`
	JTI   string `json:"jti"`
	jwt.RegisteredClaims
}

type activationMailer struct {
	mailer  *mailer.Mailer
	jwtAuth auth.JWTAuthenticator
	cfg     *config.IdentityServiceConfig
}

// NewActivationMailer creates an ActivationMailer sending through the shared
// SMTP mailer.
func NewActivationMailer(
	m *mailer.Mailer,
	jwtAuth auth.JWTAuthenticator,
	cfg *config.IdentityServiceConfig,
) ActivationMailer {
	return &activationMailer{
		mailer:  m,
		jwtAuth: jwtAuth,
		cfg:     cfg,
	}
}

func (m *activationMailer) SendActivation(
	_ context.Context,
	login, email, token string,
	mandatory bool,
	languageID int64,
) error {
	link, err := m.activationLink(login, token)
	if err != nil {
		return err
	}

	text := textFor(languageID)

	var htmlBody string
	if mandatory {
		htmlBody = fmt.Sprintf(text.verifyBody, login, link, link)
	} else {
		htmlBody = fmt.Sprintf(text.welcomeBody, login, link, link)
	}

	return m.mailer.SendHTML([]string{email}, text.subject, htmlBody)
}

// activationLink wraps the stored activation token in a signed JWT so the
// link cannot be tampered with in transit.
func (m *activationMailer) activationLink(login, token string) (string, error) {
	now := time.Now()
	claims := ActivationClaims{
		Login: login,
		JTI:   token,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.Token.Issuer,
			Audience:  jwt.ClaimStrings{m.cfg.Token.Issuer},
			Subject:   login,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.Token.ActivationTokenExpiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	tokenStr, err := m.jwtAuth.GenerateToken(claims, m.cfg.Token.ActivationTokenSecret)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/activate?token=%s", m.cfg.BaseURL, url.QueryEscape(tokenStr)), nil
}

type mailText struct {
	subject     string
	verifyBody  string
	welcomeBody string
}

// textFor returns the mail texts for a language id, falling back to english.
func textFor(languageID int64) mailText {
	if text, found := mailTexts[languageID]; found {
		return text
	}

	return mailTexts[1]
}

var mailTexts = map[int64]mailText{
	1: {
		subject: "Your new account",
		verifyBody: `
			<p>Hi %s,</p>
			<p>Your account has been created. Before you can sign in, please confirm
			your email address by clicking the link below:</p>
			<p><a href="%s">%s</a></p>
			<p>If you did not create this account, you can safely ignore this email.</p>
		`,
		welcomeBody: `
			<p>Hi %s,</p>
			<p>Your account has been created and is ready to use. You can verify your
			email address at any time using the link below:</p>
			<p><a href="%s">%s</a></p>
		`,
	},
	2: {
		subject: "Ihr neues Benutzerkonto",
		verifyBody: `
			<p>Hallo %s,</p>
			<p>Ihr Benutzerkonto wurde angelegt. Bitte best&auml;tigen Sie Ihre
			E-Mail-Adresse &uuml;ber den folgenden Link, bevor Sie sich anmelden:</p>
			<p><a href="%s">%s</a></p>
			<p>Falls Sie dieses Konto nicht angelegt haben, ignorieren Sie diese E-Mail.</p>
		`,
		welcomeBody: `
			<p>Hallo %s,</p>
			<p>Ihr Benutzerkonto wurde angelegt und ist einsatzbereit. Sie k&ouml;nnen
			Ihre E-Mail-Adresse jederzeit &uuml;ber den folgenden Link best&auml;tigen:</p>
			<p><a href="%s">%s</a></p>
		`,
	},
	4: {
		subject: "Votre nouveau compte",
		verifyBody: `
			<p>Bonjour %s,</p>
			<p>Votre compte a &eacute;t&eacute; cr&eacute;&eacute;. Avant de pouvoir vous
			connecter, veuillez confirmer votre adresse e-mail via le lien ci-dessous :</p>
			<p><a href="%s">%s</a></p>
			<p>Si vous n'avez pas cr&eacute;&eacute; ce compte, ignorez cet e-mail.</p>
		`,
		welcomeBody: `
			<p>Bonjour %s,</p>
			<p>Votre compte a &eacute;t&eacute; cr&eacute;&eacute; et est pr&ecirc;t &agrave;
			l'emploi. Vous pouvez confirmer votre adresse e-mail via le lien ci-dessous :</p>
			<p><a href="%s">%s</a></p>
		`,
	},
}
