// Package respond writes JSON bodies and maps errors to status codes.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/campaign-panel/internal/errors"
)

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"error": msg}. Internal errors are logged and their detail
// is not sent to the client.
func Error(w http.ResponseWriter, log zerolog.Logger, err error) {
	status := appErrors.StatusCode(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	JSON(w, status, map[string]string{"error": appErrors.PublicMessage(err)})
}
