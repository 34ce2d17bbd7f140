package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/campaign-panel/internal/model"
)

func TestIdleSnapshotJSON(t *testing.T) {
	raw, err := json.Marshal(model.IdleSnapshot())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"campaignName": "",
		"total": 0,
		"sent": 0,
		"status": "idle",
		"leads": [],
		"tempoParaEnvio": null,
		"timestampRecebido": null
	}`, string(raw))
}

func TestLeadInputKeepsRawObject(t *testing.T) {
	var leads []model.LeadInput
	require.NoError(t, json.Unmarshal([]byte(`[{"name":"Ana","phone":5581999990000,"tag":"vip"}]`), &leads))

	require.Len(t, leads, 1)
	assert.Equal(t, "Ana", leads[0].Name)
	assert.Equal(t, "5581999990000", leads[0].Phone)

	out, err := json.Marshal(leads)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"Ana","phone":5581999990000,"tag":"vip"}]`, string(out))
}

func TestLeadInputRejectsNonObject(t *testing.T) {
	var leads []model.LeadInput
	assert.Error(t, json.Unmarshal([]byte(`["Ana"]`), &leads))
}

func TestFlexInt(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		set     bool
		wantErr bool
	}{
		{`3`, 3, true, false},
		{`"12"`, 12, true, false},
		{`" 7 "`, 7, true, false},
		{`null`, 0, false, false},
		{`"x"`, 0, false, true},
		{`2.5`, 0, false, true},
		{`-4`, 0, false, true},
		{`{}`, 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var f model.FlexInt
			err := json.Unmarshal([]byte(tt.raw), &f)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.set, f.Set)
			assert.Equal(t, tt.want, f.Value)
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	at := time.Now()
	tempo := 10
	s := model.Snapshot{
		Leads:          []model.Lead{{Name: "Ana", Phone: "+1", Status: model.LeadSuccess, SentAt: &at}},
		TempoParaEnvio: &tempo,
	}
	c := s.Clone()
	*c.Leads[0].SentAt = at.Add(time.Hour)
	*c.TempoParaEnvio = 99
	c.Leads[0].Status = model.LeadError

	assert.True(t, s.Leads[0].SentAt.Equal(at))
	assert.Equal(t, 10, *s.TempoParaEnvio)
	assert.Equal(t, model.LeadSuccess, s.Leads[0].Status)
}

func TestSummarize(t *testing.T) {
	s := model.Snapshot{
		CampaignName: "Promo A",
		Total:        3,
		Sent:         1,
		Status:       model.CampaignStopped,
		Leads: []model.Lead{
			{Status: model.LeadSuccess},
			{Status: model.LeadNotSent},
			{Status: model.LeadNotSent},
		},
	}
	run := model.Summarize(s, time.Unix(0, 0))
	assert.Equal(t, "stopped", run.Status)
	assert.Equal(t, 1, run.Succeeded)
	assert.Equal(t, 2, run.NotSent)
	assert.Equal(t, 0, run.Pending)
}

func TestParseCampaignStatus(t *testing.T) {
	st, err := model.ParseCampaignStatus("done")
	require.NoError(t, err)
	assert.Equal(t, model.CampaignDone, st)

	_, err = model.ParseCampaignStatus("Running")
	assert.Error(t, err)
}
