package dto

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"strings"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("decimal_amount", validateDecimalAmount)
	}
}

// jsonFieldName reports fields by their JSON name in validation messages.
func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

// validateDecimalAmount accepts plain decimals that fit numeric(36,18).
// Zero is left to the ledger, which reports it as an invalid amount.
func validateDecimalAmount(fl validator.FieldLevel) bool {
	_, err := domain.ParseAmount(fl.Field().String())
	return err == nil
}

// BindError converts a binding failure into an AppError. Amount failures
// keep the ledger's invalid-amount code; everything else is VAL_001.
func BindError(err error) *apperror.AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Validation("malformed request body")
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "decimal_amount" {
			return apperror.ErrInvalidAmount()
		}
		msgs = append(msgs, describe(fe))
	}
	return apperror.Validation(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a UUID", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
