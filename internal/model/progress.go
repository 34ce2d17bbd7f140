// internal/model/progress.go
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FlexInt accepts a JSON number or a numeric string. Automation tools are
// inconsistent about which one they send.
type FlexInt struct {
	Value int
	Set   bool
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = FlexInt{}
		return nil
	}
	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%q is not an integer", raw)
	}
	if n < 0 {
		return fmt.Errorf("%d must not be negative", n)
	}
	*f = FlexInt{Value: n, Set: true}
	return nil
}

func (f FlexInt) Ptr() *int {
	if !f.Set {
		return nil
	}
	v := f.Value
	return &v
}

// ProgressUpdate is the callback body posted by the worker.
type ProgressUpdate struct {
	CampaignName   string  `json:"campaignName"`
	Sent           FlexInt `json:"sent"`
	Total          FlexInt `json:"total"`
	Status         string  `json:"status"`
	LastLead       string  `json:"lastLead"`
	LastPhone      string  `json:"lastPhone"`
	TempoParaEnvio FlexInt `json:"tempoParaEnvio"`
}

// ArchivedCampaign is a finished run as stored in the history table.
type ArchivedCampaign struct {
	ID           int       `db:"id" json:"id"`
	CampaignName string    `db:"campaign_name" json:"campaignName"`
	Status       string    `db:"status" json:"status"`
	Total        int       `db:"total" json:"total"`
	Sent         int       `db:"sent" json:"sent"`
	Succeeded    int       `db:"succeeded" json:"succeeded"`
	Failed       int       `db:"failed" json:"failed"`
	NotSent      int       `db:"not_sent" json:"notSent"`
	Pending      int       `db:"pending" json:"pending"`
	ArchivedAt   time.Time `db:"archived_at" json:"archivedAt"`
}

// Summarize builds the history row for the given snapshot.
func Summarize(s Snapshot, at time.Time) ArchivedCampaign {
	counts := s.CountLeads()
	return ArchivedCampaign{
		CampaignName: s.CampaignName,
		Status:       string(s.Status),
		Total:        s.Total,
		Sent:         s.Sent,
		Succeeded:    counts[LeadSuccess],
		Failed:       counts[LeadError],
		NotSent:      counts[LeadNotSent],
		Pending:      counts[LeadPending],
		ArchivedAt:   at,
	}
}
