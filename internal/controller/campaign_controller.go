// internal/controller/campaign_controller.go
package controller

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/campaign-panel/internal/errors"
	"github.com/unclebandit/campaign-panel/internal/middleware"
	"github.com/unclebandit/campaign-panel/internal/model"
	"github.com/unclebandit/campaign-panel/internal/respond"
	"github.com/unclebandit/campaign-panel/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Log             zerolog.Logger
}

// StartCampaign accepts {campaignName, leads[]} and starts the campaign.
func (c *CampaignController) StartCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CampaignName string          `json:"campaignName"`
		Leads        json.RawMessage `json:"leads"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.Error(w, c.Log, appErrors.NewValidation("", err))
		return
	}

	leads, err := decodeLeads(body.Leads)
	if err != nil {
		respond.Error(w, c.Log, err)
		return
	}

	snap, err := c.CampaignService.Start(r.Context(), body.CampaignName, leads)
	if err != nil {
		respond.Error(w, c.Log, err)
		return
	}
	c.Log.Info().Str("operator", operator(r)).Str("campaign", snap.CampaignName).Int("total", snap.Total).Msg("campaign started by operator")

	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"message": "Leads handed to the worker for processing.",
		"total":   snap.Total,
	})
}

// decodeLeads returns nil when leads is missing or null.
func decodeLeads(raw json.RawMessage) ([]model.LeadInput, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '[' {
		return nil, appErrors.NewValidationf("leads", "must be a list")
	}
	leads := []model.LeadInput{}
	if err := json.Unmarshal(raw, &leads); err != nil {
		return nil, appErrors.NewValidation("leads", err)
	}
	return leads, nil
}

func (c *CampaignController) GetProgress(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, c.CampaignService.Snapshot())
}

func (c *CampaignController) StopCampaign(w http.ResponseWriter, r *http.Request) {
	snap, err := c.CampaignService.Stop(r.Context())
	if err != nil {
		respond.Error(w, c.Log, err)
		return
	}
	c.Log.Info().Str("operator", operator(r)).Str("campaign", snap.CampaignName).Msg("campaign stopped by operator")
	respond.JSON(w, http.StatusOK, snap)
}

func (c *CampaignController) ResetCampaign(w http.ResponseWriter, r *http.Request) {
	snap := c.CampaignService.Reset(r.Context())
	c.Log.Info().Str("operator", operator(r)).Msg("panel reset by operator")
	respond.JSON(w, http.StatusOK, snap)
}

func operator(r *http.Request) string {
	if claims, ok := middleware.ClaimsFrom(r.Context()); ok {
		return claims.Username
	}
	return ""
}

// ListHistory returns archived runs with the same pagination shape as the
// rest of the API.
func (c *CampaignController) ListHistory(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	runs, pagination, err := c.CampaignService.History(r.Context(), page, pageSize, status)
	if errors.Is(err, service.ErrArchiveDisabled) {
		respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		respond.Error(w, c.Log, &appErrors.InternalError{Err: err})
		return
	}

	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"data":       runs,
		"pagination": pagination,
	})
}
