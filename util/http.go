package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dse-portal/noticeboard/types"
)

// HTTPStatusError is implemented by errors that know
// which status code they should be reported with
type HTTPStatusError interface {
	error
	HTTPStatusCode() int
}

// ResponseCodeFromError resolves a status code from an error
func ResponseCodeFromError(err error) int {
	var statusErr HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.HTTPStatusCode()
	}

	return http.StatusInternalServerError
}

// Error creates a standardized error response
func Error(w http.ResponseWriter, originalError error) {
	ErrorWithCode(w, originalError, ResponseCodeFromError(originalError))
}

// ErrorWithCode creates a standardized error response with a status code
func ErrorWithCode(w http.ResponseWriter, originalError error, statusCode int) {
	response := types.ErrorResponse{
		Message: fmt.Sprint(originalError),
	}

	jsonResponse, err := json.Marshal(response)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(statusCode)
	w.Write(jsonResponse)
}
