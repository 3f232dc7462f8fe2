package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidLogin(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	assert.True(t, v.ValidLogin("google-12345"))
	assert.True(t, v.ValidLogin("ada.lovelace"))
	assert.False(t, v.ValidLogin(""))
	assert.False(t, v.ValidLogin("has space"))
	assert.False(t, v.ValidLogin("tab\tseparated"))
}

func TestValidEmail(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	assert.True(t, v.ValidEmail("ada@example.com"))
	assert.False(t, v.ValidEmail("not-an-email"))
	assert.False(t, v.ValidEmail(""))
}

func TestStructTranslatesMessages(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	type params struct {
		Email string `validate:"required,email"`
	}

	err = v.Struct(params{Email: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid email address")

	assert.NoError(t, v.Struct(params{Email: "ada@example.com"}))
}
