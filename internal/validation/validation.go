// Package validation checks login and registration payloads and reports every
// violated rule as a human-readable message.
package validation

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// SpecialCharacters is the set a registration password must draw at least one symbol from.
const SpecialCharacters = "@$!%*?&"

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// Errors is an ordered list of validation messages. An empty list means valid.
type Errors []string

func (e Errors) Error() string {
	return strings.Join(e, "; ")
}

type rule struct {
	tag     string
	message string
}

// field describes the checks for one input. When the value is empty only
// the required message is reported; otherwise every rule runs.
type field struct {
	required string
	rules    []rule
}

var (
	loginEmail = field{
		required: "Email is required",
		rules: []rule{
			{"basic_email", "Invalid email format"},
		},
	}
	loginPassword = field{
		required: "Password is required",
		rules: []rule{
			{"min=6", "Password must be at least 6 characters"},
		},
	}

	registerUsername = field{
		required: "Username is required",
		rules: []rule{
			{"min=3", "Username must be at least 3 characters long"},
			{"max=20", "Username must not exceed 20 characters"},
			{"username_chars", "Username can only contain letters, numbers, and underscores"},
		},
	}
	registerPassword = field{
		required: "Password is required",
		rules: []rule{
			{"min=8", "Password must be at least 8 characters long"},
			{"containsany=abcdefghijklmnopqrstuvwxyz", "Password must contain at least one lowercase letter"},
			{"containsany=ABCDEFGHIJKLMNOPQRSTUVWXYZ", "Password must contain at least one uppercase letter"},
			{"containsany=0123456789", "Password must contain at least one number"},
			{"containsany=" + SpecialCharacters, "Password must contain at least one special character (" + SpecialCharacters + ")"},
		},
	}
)

// MsgPasswordMismatch is reported when a supplied confirmation differs from the password.
const MsgPasswordMismatch = "Password confirmation does not match"

// Validator runs the login and registration rule sets.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator with the custom email and username tags registered.
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("basic_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("username_chars", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return &Validator{validate: v}
}

// LoginInput is the login payload shape.
type LoginInput struct {
	Email    string
	Password string
}

// RegisterInput is the registration payload shape.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// Login validates login credentials.
func (v *Validator) Login(in LoginInput) Errors {
	errs := Errors{}
	errs = append(errs, v.check(in.Email, loginEmail)...)
	errs = append(errs, v.check(in.Password, loginPassword)...)
	return errs
}

// Register validates a registration payload.
func (v *Validator) Register(in RegisterInput) Errors {
	errs := Errors{}
	errs = append(errs, v.check(in.Username, registerUsername)...)
	errs = append(errs, v.check(in.Email, loginEmail)...)
	errs = append(errs, v.check(in.Password, registerPassword)...)
	if in.ConfirmPassword != "" {
		if err := v.validate.VarWithValue(in.ConfirmPassword, in.Password, "eqcsfield"); err != nil {
			errs = append(errs, MsgPasswordMismatch)
		}
	}
	return errs
}

func (v *Validator) check(value string, f field) []string {
	if err := v.validate.Var(value, "required"); err != nil {
		return []string{f.required}
	}
	var msgs []string
	for _, r := range f.rules {
		if err := v.validate.Var(value, r.tag); err != nil {
			msgs = append(msgs, r.message)
		}
	}
	return msgs
}
