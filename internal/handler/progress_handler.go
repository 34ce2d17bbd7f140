// internal/handler/progress_handler.go
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-panel/internal/auth"
	appErrors "github.com/unclebandit/campaign-panel/internal/errors"
	"github.com/unclebandit/campaign-panel/internal/model"
	"github.com/unclebandit/campaign-panel/internal/respond"
	"github.com/unclebandit/campaign-panel/internal/service"
)

// ProgressHandler serves the worker callback and the live progress stream.
type ProgressHandler struct {
	Reconciler      *service.Reconciler
	CampaignService *service.CampaignService
	Tokens          *auth.Tokens
	KeepAlive       time.Duration
	Log             zerolog.Logger
}

// ReportProgress is called by the worker after each send.
func (h *ProgressHandler) ReportProgress(w http.ResponseWriter, r *http.Request) {
	var u model.ProgressUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		respond.Error(w, h.Log, appErrors.NewValidation("", err))
		return
	}

	if _, err := h.Reconciler.Apply(r.Context(), u); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"message": "progress updated"})
}

// Stream pushes the snapshot as server-sent events. Browsers' EventSource
// cannot set headers, so the operator token comes in the query string.
func (h *ProgressHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Tokens.Verify(r.URL.Query().Get("token")); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	rc := http.NewResponseController(w)
	sub, err := h.CampaignService.Observe()
	if err != nil {
		respond.Error(w, h.Log, &appErrors.InternalError{Err: err})
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	// streams outlive the server read and write timeouts
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	log := h.Log.With().Str("subscriber", sub.ID).Logger()
	log.Debug().Msg("stream opened")
	defer log.Debug().Msg("stream closed")

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.Done():
			return
		case frame := <-sub.C:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
				log.Debug().Err(err).Msg("stream write failed")
				return
			}
			if err := rc.Flush(); err != nil {
				log.Warn().Err(err).Msg("stream flush failed")
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
