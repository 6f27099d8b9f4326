package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// WriteJSON writes v with the given status. HTML characters are not
// escaped, so Chinese text and markup in fortune content arrive verbatim.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return nil
}
