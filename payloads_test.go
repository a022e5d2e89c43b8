package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserPayloadValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload CreateUserPayload
		fields  []string
	}{
		{
			name:    "valid",
			payload: CreateUserPayload{Email: "a@example.com", Password: "secret123"},
		},
		{
			name:    "missing email",
			payload: CreateUserPayload{Password: "secret123"},
			fields:  []string{"email"},
		},
		{
			name:    "bad email and short password",
			payload: CreateUserPayload{Email: "nope", Password: "123"},
			fields:  []string{"email", "password"},
		},
		{
			name:    "unknown role",
			payload: CreateUserPayload{Email: "a@example.com", Password: "secret123", Role: "owner"},
			fields:  []string{"role"},
		},
		{
			name:    "confirmation mismatch",
			payload: CreateUserPayload{Email: "a@example.com", Password: "secret123", PasswordConfirmation: stringPtr("other")},
			fields:  []string{"password_confirmation"},
		},
		{
			name:    "empty confirmation",
			payload: CreateUserPayload{Email: "a@example.com", Password: "secret123", PasswordConfirmation: stringPtr("")},
			fields:  []string{"password_confirmation"},
		},
		{
			name:    "matching confirmation",
			payload: CreateUserPayload{Email: "a@example.com", Password: "secret123", PasswordConfirmation: stringPtr("secret123")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}
			fields := FormatValidationErrorToMap(err)
			for _, f := range tt.fields {
				assert.Contains(t, fields, f)
			}
		})
	}
}

func TestUpdateUserPayloadValidate(t *testing.T) {
	assert.NoError(t, UpdateUserPayload{}.Validate())
	assert.True(t, UpdateUserPayload{}.IsEmpty())

	blank := " "
	fields := FormatValidationErrorToMap(UpdateUserPayload{Email: &blank}.Validate())
	assert.Contains(t, fields, "email")

	role := "owner"
	fields = FormatValidationErrorToMap(UpdateUserPayload{Role: &role}.Validate())
	assert.Contains(t, fields, "role")

	password := "secret123"
	fields = FormatValidationErrorToMap(UpdateUserPayload{Password: &password, PasswordConfirmation: stringPtr("")}.Validate())
	assert.Contains(t, fields, "password_confirmation")
	assert.NoError(t, UpdateUserPayload{Password: &password}.Validate())
	assert.NoError(t, UpdateUserPayload{Password: &password, PasswordConfirmation: &password}.Validate())
}

func TestUserFormCreatePayloadConfirmation(t *testing.T) {
	p := UserForm{Email: "a@example.com", Password: "secret123"}.CreatePayload()
	require.NotNil(t, p.PasswordConfirmation)
	assert.Contains(t, FormatValidationErrorToMap(p.Validate()), "password_confirmation")

	p = UserForm{Email: "a@example.com", Password: "secret123", PasswordConfirmation: "secret123"}.CreatePayload()
	assert.NoError(t, p.Validate())
}

func TestUserFormUpdatePayload(t *testing.T) {
	p := UserForm{Email: "a@example.com", FirstName: "A"}.UpdatePayload()
	require.NotNil(t, p.Email)
	assert.Nil(t, p.Role, "blank role means unchanged")
	assert.Nil(t, p.Password, "blank password means unchanged")
	assert.False(t, p.HasRole())

	p = UserForm{Email: "a@example.com", Role: "admin", Password: "secret123"}.UpdatePayload()
	assert.True(t, p.HasRole())
	require.NotNil(t, p.Password)
}

func TestDecodeUserBody(t *testing.T) {
	enveloped, err := DecodeUserBody[CreateUserPayload]([]byte(`{"user":{"email":"a@example.com","password":"secret123"}}`))
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", enveloped.Email)
	assert.Equal(t, "secret123", enveloped.Password)

	flat, err := DecodeUserBody[UpdateUserPayload]([]byte(`{"email":"b@example.com"}`))
	require.NoError(t, err)
	require.NotNil(t, flat.Email)
	assert.Equal(t, "b@example.com", *flat.Email)
	assert.Nil(t, flat.Role)

	_, err = DecodeUserBody[CreateUserPayload]([]byte(`{"email":`))
	assert.Error(t, err)
}

func TestDecodeUserParams(t *testing.T) {
	params := map[string]string{
		"user_email":                  "admin@example.com",
		"user_token":                  "token",
		"user[email]":                 "oprah@example.com",
		"user[password]":              "12345678",
		"user[password_confirmation]": "12345678",
	}

	created, ok, err := DecodeUserParams[CreateUserPayload](params)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "oprah@example.com", created.Email)
	assert.Equal(t, "12345678", created.Password)
	require.NotNil(t, created.PasswordConfirmation)
	assert.NoError(t, created.Validate())

	updated, ok, err := DecodeUserParams[UpdateUserPayload](map[string]string{"user[first_name]": "Oprah"})
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, updated.FirstName)
	assert.Equal(t, "Oprah", *updated.FirstName)
	assert.Nil(t, updated.Email)

	_, ok, err = DecodeUserParams[CreateUserPayload](map[string]string{"user_email": "a@example.com", "user[]": "x"})
	require.NoError(t, err)
	assert.False(t, ok)
}
