package server

import (
	"net/http"

	"mtm-hub/src/helpers"
)

// -----------------------------------------------------------------------------

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case helpers.IsValidation(err):
		return http.StatusBadRequest
	case helpers.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// -----------------------------------------------------------------------------

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
