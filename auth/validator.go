package auth

import (
	"chat-realtime/errors"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Usernames are broadcast in presence and typing events, so they stay plain.
var handlePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return handlePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("complex", func(fl validator.FieldLevel) bool {
		return isPasswordComplex(fl.Field().String())
	})
	return v
}

type RegisterRequest struct {
	Username    string `validate:"required,min=3,max=32,handle"`
	DisplayName string `validate:"required,max=64"`
	Password    string `validate:"required,min=12,max=72,complex"`
}

// ValidateRegister returns ErrInvalidPassword when only the password is at fault,
// and ErrInvalidPayload naming the fields otherwise.
func ValidateRegister(req RegisterRequest) error {
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !stderrors.As(err, &fieldErrors) {
		return err
	}
	var fields []string
	passwordOnly := true
	for _, fe := range fieldErrors {
		fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
		passwordOnly = passwordOnly && fe.Field() == "Password"
	}
	if passwordOnly {
		return fmt.Errorf("%w: %s", errors.ErrInvalidPassword, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %s", errors.ErrInvalidPayload, strings.Join(fields, ", "))
}

func isPasswordComplex(s string) bool {
	var upper, lower, digit, special bool
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			upper = true
		case unicode.IsLower(char):
			lower = true
		case unicode.IsNumber(char):
			digit = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			special = true
		}
	}
	return upper && lower && digit && special
}
