package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/unclebandit/campaign-panel/internal/model"
)

// HTTPDispatcher posts to the worker's webhook.
type HTTPDispatcher struct {
	StartURL string
	// StopURL defaults to StartURL.
	StopURL string
	Client  *http.Client
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, campaignName string, leads []model.LeadInput) error {
	return d.post(ctx, d.StartURL, Message{Action: ActionStart, CampaignName: campaignName, Leads: leads})
}

func (d *HTTPDispatcher) Stop(ctx context.Context, campaignName string) error {
	url := d.StopURL
	if url == "" {
		url = d.StartURL
	}
	return d.post(ctx, url, Message{Action: ActionStop, CampaignName: campaignName})
}

func (d *HTTPDispatcher) post(ctx context.Context, url string, msg Message) error {
	if url == "" {
		return fmt.Errorf("no worker url configured")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: unexpected status %d", msg.Action, url, resp.StatusCode)
	}
	return nil
}
