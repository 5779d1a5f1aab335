// Package response defines the JSON envelope returned by the HTTP API.
package response

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var EmptyRequestBodyResponse = Response{
	Status:  StatusError,
	Error:   "Empty Request Body",
	Message: "Request body is empty. Please provide necessary data.",
}

var BadRequestResponse = Response{
	Status:  StatusError,
	Error:   "Bad Request",
	Message: "Failed to process request. Please check the request data.",
}

var ResourceNotFoundResponse = Response{
	Status:  StatusError,
	Error:   "Resource Not Found",
	Message: "The requested resource was not found.",
}

var ResourceGoneResponse = Response{
	Status:  StatusError,
	Error:   "Resource Gone",
	Message: "The requested resource has expired and is no longer available.",
}

var ServerErrorResponse = Response{
	Status:  StatusError,
	Error:   "Server Error",
	Message: "An internal server error occurred. Please try again later.",
}

type Response struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
	Errors  []any  `json:"errors,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// SuccessResponse builds a success envelope with an optional data payload.
// Only the first data value is used.
func SuccessResponse(msg string, data ...any) Response {
	resp := Response{
		Status:  StatusSuccess,
		Message: msg,
	}

	if len(data) > 0 {
		resp.Data = data[0]
	}

	return resp
}

// ErrorResponse builds an error envelope with the given title and message.
func ErrorResponse(errTitle, msg string) Response {
	return Response{
		Status:  StatusError,
		Error:   errTitle,
		Message: msg,
	}
}

type validationError struct {
	Field string `json:"field"`
	Value any    `json:"value,omitempty"`
	Issue string `json:"message"`
}

func getValidationErrors(err error) []validationError {
	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return nil
	}

	var errs []validationError

	for _, fieldErr := range valErrs {
		issue := fmt.Sprintf("Invalid %s.", fieldErr.Field())

		switch fieldErr.Tag() {
		case "required":
			issue = "This field is required."
		case "url":
			issue = "Invalid url."
		}

		errs = append(errs, validationError{
			Field: fieldErr.Field(),
			Value: fieldErr.Value(),
			Issue: issue,
		})
	}

	return errs
}

// ValidationErrorResponse builds an error envelope carrying per-field issues
// extracted from a validator error.
func ValidationErrorResponse(err error) Response {
	valErrs := getValidationErrors(err)

	errs := make([]any, 0, len(valErrs))
	for _, valErr := range valErrs {
		errs = append(errs, valErr)
	}

	return Response{
		Status:  StatusError,
		Error:   "Validation Error",
		Message: "The request data failed validation.",
		Errors:  errs,
	}
}
