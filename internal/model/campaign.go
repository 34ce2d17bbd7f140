// internal/model/campaign.go
package model

import (
	"fmt"
	"time"
)

type CampaignStatus string

const (
	CampaignIdle    CampaignStatus = "idle"
	CampaignRunning CampaignStatus = "running"
	CampaignStopped CampaignStatus = "stopped"
	// CampaignDone is only ever reported by the worker.
	CampaignDone CampaignStatus = "done"
)

func ParseCampaignStatus(s string) (CampaignStatus, error) {
	switch st := CampaignStatus(s); st {
	case CampaignIdle, CampaignRunning, CampaignStopped, CampaignDone:
		return st, nil
	}
	return "", fmt.Errorf("unknown campaign status %q", s)
}

// Snapshot is the complete campaign state as shown on the panel.
type Snapshot struct {
	CampaignName      string         `json:"campaignName"`
	Total             int            `json:"total"`
	Sent              int            `json:"sent"`
	Status            CampaignStatus `json:"status"`
	Leads             []Lead         `json:"leads"`
	TempoParaEnvio    *int           `json:"tempoParaEnvio"`
	TimestampRecebido *int64         `json:"timestampRecebido"`
}

// IdleSnapshot is the state at boot and after every reset.
func IdleSnapshot() Snapshot {
	return Snapshot{
		Status: CampaignIdle,
		Leads:  []Lead{},
	}
}

// Clone returns a deep copy; callers may mutate it freely.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Leads = make([]Lead, len(s.Leads))
	for i, l := range s.Leads {
		if l.SentAt != nil {
			t := *l.SentAt
			l.SentAt = &t
		}
		out.Leads[i] = l
	}
	if s.TempoParaEnvio != nil {
		v := *s.TempoParaEnvio
		out.TempoParaEnvio = &v
	}
	if s.TimestampRecebido != nil {
		v := *s.TimestampRecebido
		out.TimestampRecebido = &v
	}
	return out
}

// FindLead returns the index of the first lead with the given identity, or -1.
func (s Snapshot) FindLead(name, phone string) int {
	for i, l := range s.Leads {
		if l.Matches(name, phone) {
			return i
		}
	}
	return -1
}

// CountLeads tallies leads per status.
func (s Snapshot) CountLeads() map[LeadStatus]int {
	counts := map[LeadStatus]int{
		LeadPending: 0,
		LeadSuccess: 0,
		LeadError:   0,
		LeadNotSent: 0,
	}
	for _, l := range s.Leads {
		counts[l.Status]++
	}
	return counts
}

// NextSendAt is the advisory time of the next send reported by the worker.
func (s Snapshot) NextSendAt() (time.Time, bool) {
	if s.TempoParaEnvio == nil || s.TimestampRecebido == nil {
		return time.Time{}, false
	}
	at := time.UnixMilli(*s.TimestampRecebido).Add(time.Duration(*s.TempoParaEnvio) * time.Second)
	return at, true
}

// ProgressPatch is a field-wise override. Nil fields keep the current value.
type ProgressPatch struct {
	CampaignName      *string
	Total             *int
	Sent              *int
	Status            *CampaignStatus
	TempoParaEnvio    *int
	TimestampRecebido *int64
}

// Apply writes every present field of p onto s.
func (p ProgressPatch) Apply(s *Snapshot) {
	if p.CampaignName != nil {
		s.CampaignName = *p.CampaignName
	}
	if p.Total != nil {
		s.Total = *p.Total
	}
	if p.Sent != nil {
		s.Sent = *p.Sent
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.TempoParaEnvio != nil {
		v := *p.TempoParaEnvio
		s.TempoParaEnvio = &v
	}
	if p.TimestampRecebido != nil {
		v := *p.TimestampRecebido
		s.TimestampRecebido = &v
	}
}
