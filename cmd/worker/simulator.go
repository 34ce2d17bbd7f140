package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-panel/internal/dispatch"
)

// progress is the callback body the panel expects.
type progress struct {
	CampaignName   string `json:"campaignName"`
	Sent           int    `json:"sent"`
	Total          int    `json:"total"`
	Status         string `json:"status"`
	LastLead       string `json:"lastLead,omitempty"`
	LastPhone      string `json:"lastPhone,omitempty"`
	TempoParaEnvio *int   `json:"tempoParaEnvio,omitempty"`
}

type Reporter interface {
	Report(ctx context.Context, p progress) error
}

// HTTPReporter posts progress to the panel with the worker secret.
type HTTPReporter struct {
	URL    string
	Token  string
	Client *http.Client
}

func (r *HTTPReporter) Report(ctx context.Context, p progress) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Worker-Token", r.Token)
	resp, err := r.Client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("panel answered %d", resp.StatusCode)
	}
	return nil
}

type lead struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Simulator pretends to deliver a campaign: one lead per interval, with a
// progress callback after each.
type Simulator struct {
	Reporter Reporter
	Interval time.Duration
	// Jitter is added at random to every interval.
	Jitter time.Duration
	Send   func(l lead) bool
	Log    zerolog.Logger
}

// Run delivers msg's leads until done or ctx is cancelled.
func (s *Simulator) Run(ctx context.Context, msg dispatch.Message) error {
	leads := make([]lead, 0, len(msg.Leads))
	for _, raw := range msg.Leads {
		var l lead
		if err := json.Unmarshal(raw.Raw, &l); err != nil {
			l = lead{Name: raw.Name, Phone: raw.Phone}
		}
		leads = append(leads, l)
	}

	total := len(leads)
	sent := 0
	finished := false
	for i, l := range leads {
		wait := s.Interval
		if s.Jitter > 0 {
			wait += time.Duration(rand.Int63n(int64(s.Jitter)))
		}
		secs := int(wait.Round(time.Second) / time.Second)
		if err := s.Reporter.Report(ctx, progress{CampaignName: msg.CampaignName, Sent: sent, Total: total, Status: "running", TempoParaEnvio: &secs}); err != nil {
			s.Log.Warn().Err(err).Msg("progress report failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if s.Send != nil && !s.Send(l) {
			s.Log.Info().Str("lead", l.Name).Msg("send failed")
			continue
		}
		sent++
		status := "running"
		if i == total-1 {
			status = "done"
			finished = true
		}
		if err := s.Reporter.Report(ctx, progress{CampaignName: msg.CampaignName, Sent: sent, Total: total, Status: status, LastLead: l.Name, LastPhone: l.Phone}); err != nil {
			s.Log.Warn().Err(err).Str("lead", l.Name).Msg("progress report failed")
		}
	}
	if !finished {
		return s.Reporter.Report(ctx, progress{CampaignName: msg.CampaignName, Sent: sent, Total: total, Status: "done"})
	}
	return nil
}
