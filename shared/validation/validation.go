package validation

import (
	"errors"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

// Validator wraps a go-playground validator with english message
// translations.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// New creates a Validator instance.
func New() (*Validator, error) {
	english := en.New()
	uni := ut.New(english, english)

	trans, found := uni.GetTranslator("en")
	if !found {
		return nil, errors.New("english translator not found")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := entranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Validator{validate: validate, trans: trans}, nil
}

// Struct validates a struct by its validate tags and returns a single error
// with translated messages.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		messages = append(messages, fieldError.Translate(v.trans))
	}

	return errors.New(strings.Join(messages, "; "))
}

// ValidLogin reports whether the login is structurally valid: non-empty,
// printable ASCII, and free of whitespace.
func (v *Validator) ValidLogin(login string) bool {
	if strings.ContainsAny(login, " \t\r\n") {
		return false
	}

	return v.validate.Var(login, "required,printascii") == nil
}

// ValidEmail reports whether the address has a valid email shape.
func (v *Validator) ValidEmail(email string) bool {
	return v.validate.Var(email, "required,email") == nil
}
