// Package validation holds the field rules shared by request inputs.
package validation

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"academy/internal/models"
)

// MaxPasswordBytes is the longest password bcrypt will hash
const MaxPasswordBytes = 72

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var errPasswordTooLong = errors.New("must be no more than 72 bytes")

var (
	// EmailRules validate an email address by format only
	EmailRules = []validation.Rule{
		validation.Required,
		validation.Length(3, 255),
		validation.Match(emailRegex).Error("must be a valid email address"),
	}
	// NameRules validate a display name
	NameRules = []validation.Rule{validation.Required, validation.Length(1, 255)}
	// PasswordRules validate a plaintext password
	PasswordRules = []validation.Rule{validation.Required, validation.By(maxBytes(MaxPasswordBytes))}
	// RoleRules validate a role name
	RoleRules = []validation.Rule{validation.Required, validation.In(roleNames()...)}
	// PhoneRules validate an optional phone number
	PhoneRules = []validation.Rule{validation.Length(0, 20)}
	// ImageRules validate an optional image URL
	ImageRules = []validation.Rule{validation.Length(0, 255)}
)

// ValidateEmail checks a lone email address, ignoring surrounding space
func ValidateEmail(email string) error {
	return validation.Validate(strings.TrimSpace(email), EmailRules...)
}

func roleNames() []interface{} {
	names := make([]interface{}, len(models.Roles))
	for i, r := range models.Roles {
		names[i] = string(r)
	}
	return names
}

// maxBytes limits the byte length of a string, which is what bcrypt counts
func maxBytes(limit int) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if len(s) > limit {
			return errPasswordTooLong
		}
		return nil
	}
}
