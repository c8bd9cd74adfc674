// Package request decodes and validates API request bodies into service inputs.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mcoot/accountsvc/internal/model"
	"github.com/mcoot/accountsvc/internal/services/identity"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report violations with the JSON field names clients send
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// max counts runes; bcrypt caps the encoded password at 72 bytes
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	return v
}

// Register decodes a registration body
func Register(body io.Reader) (identity.RegisterInput, error) {
	var req RegisterRequest
	if err := decode(body, &req, false); err != nil {
		return identity.RegisterInput{}, err
	}
	return identity.RegisterInput{
		Username:       req.Username,
		FullName:       req.FullName,
		PrivilegeLevel: req.PrivilegeLevel,
		Password:       req.Password,
		Email:          req.Email,
	}, nil
}

// Login decodes a login body
func Login(body io.Reader) (LoginRequest, error) {
	var req LoginRequest
	if err := decode(body, &req, false); err != nil {
		return LoginRequest{}, err
	}
	return req, nil
}

// Update decodes a partial profile update. Unknown fields are rejected.
func Update(body io.Reader) (identity.UpdateInput, error) {
	var req UpdateRequest
	if err := decode(body, &req, true); err != nil {
		return identity.UpdateInput{}, err
	}
	return identity.UpdateInput{
		Username:       req.Username,
		FullName:       req.FullName,
		PrivilegeLevel: req.PrivilegeLevel,
		Password:       req.Password,
		Email:          req.Email,
	}, nil
}

func decode(body io.Reader, dst any, strict bool) error {
	dec := json.NewDecoder(body)
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return model.NewValidationError(model.FieldViolation{
			Field: "body", Rule: "required", Message: "request body is required",
		})
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return model.NewValidationError(model.FieldViolation{
			Field:   typeErr.Field,
			Rule:    "type",
			Message: fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type.Kind()),
		})
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return model.NewValidationError(model.FieldViolation{
			Field: field, Rule: "unknown", Message: fmt.Sprintf("%s is not an accepted field", field),
		})
	default:
		return model.NewValidationError(model.FieldViolation{
			Field: "body", Rule: "json", Message: "request body must be valid JSON",
		})
	}
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate request: %w", err)
	}
	violations := make([]model.FieldViolation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, model.FieldViolation{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}
	return model.NewValidationError(violations...)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "maxbytes":
		return fmt.Sprintf("%s must be at most %s bytes", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "email":
		return fe.Field() + " must be a valid email address"
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
