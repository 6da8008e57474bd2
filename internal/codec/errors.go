package codec

import (
	"encoding/json"
	"net/http"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
)

// ErrorResponse is the JSON body returned for rejected requests.
type ErrorResponse struct {
	Error *domain.CommandError `json:"error"`
}

// WriteError converts err to a CommandError and writes it with the matching
// status code.
func WriteError(w http.ResponseWriter, err error) {
	ce := domain.AsCommandError(err)
	if ce.Message == "" {
		ce.Message = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ce.HTTPStatusCode())
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: ce})
}
