// Package shared holds response helpers used by every feature handler so
// the JSON envelopes stay consistent across the API.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "nidhi/pkg/domain-errors"
)

// WriteError translates a domain error into the JSON error envelope. Unknown
// errors map to 500 without leaking their message.
func WriteError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	var de *dErrors.Error
	if !errors.As(err, &de) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": string(dErrors.CodeInternal),
		})
		return
	}

	w.WriteHeader(dErrors.ToHTTPStatus(de.Code))
	body := map[string]any{
		"error":   string(de.Code),
		"message": de.Message,
	}
	if len(de.Details) > 0 {
		body["details"] = de.Details
	}
	_ = json.NewEncoder(w).Encode(body)
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
