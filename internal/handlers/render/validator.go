package render

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Letters and digits of any script and a few separators
var usernameRe = regexp.MustCompile(`^[\p{L}\p{N}_.-]+$`)

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	configureValidator(validate)
	return validate
}

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("username", validateUsername)
	validate.RegisterTagNameFunc(useJSONTagNames)
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

func validateUsername(fl validator.FieldLevel) bool {
	return usernameRe.MatchString(fl.Field().String())
}

// Localized message for single field error
func fieldMessage(fieldError validator.FieldError, localize func(key string, args ...any) string) string {
	switch fieldError.Tag() {
	case "required":
		return localize(MsgFieldRequired)
	case "min":
		return localize(MsgFieldMin, fieldError.Param())
	case "max":
		return localize(MsgFieldMax, fieldError.Param())
	case "email":
		return localize(MsgFieldEmail)
	case "eqfield":
		return localize(MsgFieldEqual, jsonFieldName(fieldError))
	case "username":
		return localize(MsgFieldUsername)
	default:
		return localize(MsgFieldInvalid)
	}
}

// eqfield param is Go field name; client knows only JSON names
func jsonFieldName(fieldError validator.FieldError) string {
	param := fieldError.Param()
	if len(param) == 0 {
		return param
	}
	return strings.ToLower(param[:1]) + param[1:]
}
