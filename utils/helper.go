package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs the shared validator over a request payload.
func ValidateStruct(obj interface{}) error {
	return validate.Struct(obj)
}

func ProcessValidationErrors(err error) map[string]string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"error": err.Error()}
	}
	errorResponse := make(map[string]string)
	for _, fieldErr := range validationErrors {
		errorResponse[strings.ToLower(fieldErr.Field())] = fieldErr.Tag()
	}
	return errorResponse
}

func DereferencePtr[T any](ptr *T, fallback T) T {
	if ptr == nil {
		return fallback
	}
	return *ptr
}

func NewPtr[T any](v T) *T {
	return &v
}

// NormalizePagination clamps limit/offset to sane values for list queries.
func NormalizePagination(limit, offset, defaultLimit, maxLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
