package users

import (
	"encoding/json"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	passwordMinLength = 6
	passwordMaxLength = 128
)

// MsgEmailTaken is the field message for a duplicate email
const MsgEmailTaken = "has already been taken"

// CreateUserPayload is the input for creating a user
type CreateUserPayload struct {
	Email                string  `form:"email" json:"email"`
	FirstName            string  `form:"first_name" json:"first_name"`
	LastName             string  `form:"last_name" json:"last_name"`
	Role                 string  `form:"role" json:"role"`
	Password             string  `form:"password" json:"password"`
	PasswordConfirmation *string `form:"password_confirmation" json:"password_confirmation"`
}

// Validate will run validation rules
func (r CreateUserPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.FirstName, validation.Length(0, 200)),
		validation.Field(&r.LastName, validation.Length(0, 200)),
		validation.Field(&r.Role, validation.In(roleValues()...)),
		validation.Field(&r.Password, validation.Required, validation.Length(passwordMinLength, passwordMaxLength)),
		validation.Field(&r.PasswordConfirmation, validation.By(ValidateConfirmation(r.Password))),
	)
}

// HasRole reports whether the payload assigns a role
func (r CreateUserPayload) HasRole() bool {
	return strings.TrimSpace(r.Role) != ""
}

// UpdateUserPayload is the input for updating a user. Nil fields are left
// unchanged.
type UpdateUserPayload struct {
	Email                *string `json:"email"`
	FirstName            *string `json:"first_name"`
	LastName             *string `json:"last_name"`
	Role                 *string `json:"role"`
	Password             *string `json:"password"`
	PasswordConfirmation *string `json:"password_confirmation"`
}

// Validate will run validation rules
func (r UpdateUserPayload) Validate() error {
	password := ""
	if r.Password != nil {
		password = *r.Password
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.By(notBlankWhenPresent), validation.Length(3, 254), is.Email),
		validation.Field(&r.FirstName, validation.Length(0, 200)),
		validation.Field(&r.LastName, validation.Length(0, 200)),
		validation.Field(&r.Role, validation.By(notBlankWhenPresent), validation.In(roleValues()...)),
		validation.Field(&r.Password, validation.Length(passwordMinLength, passwordMaxLength)),
		validation.Field(&r.PasswordConfirmation, validation.By(ValidateConfirmation(password))),
	)
}

// HasRole reports whether the payload changes the role
func (r UpdateUserPayload) HasRole() bool {
	return r.Role != nil
}

// IsEmpty reports whether the payload changes nothing
func (r UpdateUserPayload) IsEmpty() bool {
	return r.Email == nil && r.FirstName == nil && r.LastName == nil &&
		r.Role == nil && r.Password == nil
}

// UserForm is the browser form for both create and edit
type UserForm struct {
	Email                string `form:"email"`
	FirstName            string `form:"first_name"`
	LastName             string `form:"last_name"`
	Role                 string `form:"role"`
	Password             string `form:"password"`
	PasswordConfirmation string `form:"password_confirmation"`
}

// CreatePayload maps the form to a create payload. The form always posts
// the confirmation, so a blank one is checked against the password.
func (f UserForm) CreatePayload() CreateUserPayload {
	return CreateUserPayload{
		Email:                f.Email,
		FirstName:            f.FirstName,
		LastName:             f.LastName,
		Role:                 f.Role,
		Password:             f.Password,
		PasswordConfirmation: stringPtr(f.PasswordConfirmation),
	}
}

// UpdatePayload maps the form to an update payload. A blank role or
// password on the edit form means unchanged.
func (f UserForm) UpdatePayload() UpdateUserPayload {
	p := UpdateUserPayload{
		Email:     stringPtr(f.Email),
		FirstName: stringPtr(f.FirstName),
		LastName:  stringPtr(f.LastName),
	}
	if strings.TrimSpace(f.Role) != "" {
		p.Role = stringPtr(f.Role)
	}
	if f.Password != "" {
		p.Password = stringPtr(f.Password)
		p.PasswordConfirmation = stringPtr(f.PasswordConfirmation)
	}
	return p
}

// DecodeUserBody decodes a JSON body into T. Both the {"user": {...}}
// envelope and a flat object are accepted.
func DecodeUserBody[T any](body []byte) (T, error) {
	var out T

	var envelope struct {
		User json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return out, err
	}

	raw := json.RawMessage(body)
	if len(envelope.User) > 0 && string(envelope.User) != "null" {
		raw = envelope.User
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

// DecodeUserParams collects user[field] keys into T, the shape clients
// send as query or form parameters. ok is false when no such key exists.
func DecodeUserParams[T any](params map[string]string) (out T, ok bool, err error) {
	fields := map[string]string{}
	for key, value := range params {
		if !strings.HasPrefix(key, "user[") || !strings.HasSuffix(key, "]") {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(key, "user["), "]")
		if name == "" {
			continue
		}
		fields[name] = value
	}
	if len(fields) == 0 {
		return out, false, nil
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return out, true, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, true, err
	}
	return out, true, nil
}

// ValidateConfirmation checks a confirmation matches the password when it
// is sent at all. A sent but empty confirmation must match too.
func ValidateConfirmation(password string) validation.RuleFunc {
	return func(value any) error {
		s, given := stringValue(value)
		if !given {
			return nil
		}
		if s != password {
			return errors.New("doesn't match password")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo errors into field messages
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["base"] = err.Error()
	return out
}

func notBlankWhenPresent(value any) error {
	s, given := stringValue(value)
	if given && strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

func stringValue(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	default:
		return "", false
	}
}

func roleValues() []any {
	roles := ValidRoles()
	out := make([]any, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

func stringPtr(s string) *string {
	return &s
}
