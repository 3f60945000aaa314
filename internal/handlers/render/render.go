package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const (
	ValidationErrorType = "validation_failed"
	DecodingErrorType   = "decoding_failed"
)

var validate = newValidator()

type Struct any

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func JSON(w http.ResponseWriter, data any) {
	jsonWithStatus(w, data, http.StatusOK)
}

// Render localized message by its key
func Message(w http.ResponseWriter, r *http.Request, key string) {
	JSON(w, MessageResponse{Message: Localize(r, key)})
}

// Render error with stable code and message in request language
func Error(w http.ResponseWriter, r *http.Request, code string, status int) {
	response := ErrorResponse{
		Error:   code,
		Message: Localize(r, code),
	}

	jsonWithStatus(w, response, status)
}

// Render json DecodeError
func DecodeError(w http.ResponseWriter, r *http.Request, err error) {
	response := ErrorResponse{
		Error:   DecodingErrorType,
		Message: Localize(r, MsgDecodingFailed, err.Error()),
	}

	// Try to provide more specific error message based on error type
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		response.Message = Localize(r, MsgInvalidFieldType, typeErr.Field)
	}

	jsonWithStatus(w, response, http.StatusBadRequest)
}

// Render ValidationErrors
func ValidationErrors(w http.ResponseWriter, r *http.Request, errs validator.ValidationErrors) {
	p := Printer(r)
	localize := func(key string, args ...any) string { return p.Sprintf(key, args...) }

	response := ErrorResponse{
		Error:   ValidationErrorType,
		Message: localize(MsgValidationFailed),
		Fields:  make(map[string]string, len(errs)),
	}

	// Create user-friendly error messages based on validation tag
	for _, fieldError := range errs {
		response.Fields[fieldError.Field()] = fieldMessage(fieldError, localize)
	}

	jsonWithStatus(w, response, http.StatusBadRequest)
}

// BindAndValidate decodes JSON request body into type T and validates it using struct tags.
// Returns the decoded value and writes appropriate error responses for decoding or validation failures.
func BindAndValidate[T Struct](w http.ResponseWriter, r *http.Request) (T, error) {
	var value T

	err := json.NewDecoder(r.Body).Decode(&value)
	if err != nil {
		DecodeError(w, r, err)
		return value, err
	}

	err = validate.Struct(value)
	if err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			ValidationErrors(w, r, errs)
		} else {
			Error(w, r, MsgInternalError, http.StatusInternalServerError)
		}
		return value, err
	}

	return value, nil
}

// renderJSONWithStatus sends data as json and enforces status code
func jsonWithStatus(w http.ResponseWriter, data any, code int) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)

	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
