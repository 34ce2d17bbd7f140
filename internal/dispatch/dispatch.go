// Package dispatch hands campaigns to the external automation worker.
//
// Calls are best effort. The campaign state is already committed when they
// run, so their outcome is only ever logged.
package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/campaign-panel/internal/errors"
	"github.com/unclebandit/campaign-panel/internal/model"
)

const (
	ActionStart = "start"
	ActionStop  = "stop"
)

// Message is the body sent to the worker, over HTTP or AMQP.
type Message struct {
	Action       string            `json:"action"`
	CampaignName string            `json:"campaignName"`
	Leads        []model.LeadInput `json:"leads"`
}

// MarshalJSON writes leads as an array on start, even an empty one, and
// leaves the key out on stop.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.Action != ActionStart {
		return json.Marshal(struct {
			Action       string `json:"action"`
			CampaignName string `json:"campaignName"`
		}{m.Action, m.CampaignName})
	}
	type wire Message
	if m.Leads == nil {
		m.Leads = []model.LeadInput{}
	}
	return json.Marshal(wire(m))
}

type Dispatcher interface {
	Dispatch(ctx context.Context, campaignName string, leads []model.LeadInput) error
	Stop(ctx context.Context, campaignName string) error
}

// Result is the outcome of one worker notification.
type Result struct {
	Op       string
	Campaign string
	Err      error
	Elapsed  time.Duration
}

func (r Result) OK() bool { return r.Err == nil }

// Notify runs call with a bounded timeout and logs the outcome. It detaches
// from ctx cancellation so a client hanging up does not abort the handoff.
func Notify(ctx context.Context, log zerolog.Logger, timeout time.Duration, op, campaign string, call func(ctx context.Context) error) Result {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	start := time.Now()
	err := call(ctx)
	res := Result{Op: op, Campaign: campaign, Elapsed: time.Since(start)}
	if err != nil {
		res.Err = appErrors.NewUpstream(op, err)
		log.Warn().Err(res.Err).Str("campaign", campaign).Dur("elapsed", res.Elapsed).Msg("worker notification failed")
		return res
	}
	log.Info().Str("op", op).Str("campaign", campaign).Dur("elapsed", res.Elapsed).Msg("worker notified")
	return res
}

// Nop accepts every call. Used when no worker is configured.
type Nop struct{}

func (Nop) Dispatch(context.Context, string, []model.LeadInput) error { return nil }
func (Nop) Stop(context.Context, string) error                        { return nil }
