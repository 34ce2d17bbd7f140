package service

import (
	"context"
	"fmt"

	appErrors "github.com/unclebandit/campaign-panel/internal/errors"
	"github.com/unclebandit/campaign-panel/internal/model"
)

// Reconciler folds worker progress callbacks into the store.
type Reconciler struct {
	Campaigns *CampaignService
}

// Apply validates u, then merges it into the snapshot in one atomic update.
//
// A callback naming a different campaign than the current one is stale and
// rejected, as is any callback while no campaign is loaded. Lead matching uses the first lead with the same name and phone;
// the callback shape cannot mark a single lead as failed.
func (r *Reconciler) Apply(ctx context.Context, u model.ProgressUpdate) (model.Snapshot, error) {
	var incoming *model.CampaignStatus
	if u.Status != "" {
		st, err := model.ParseCampaignStatus(u.Status)
		if err != nil {
			return model.Snapshot{}, appErrors.NewValidation("status", err)
		}
		incoming = &st
	}

	s := r.Campaigns
	now := s.now()
	var before model.CampaignStatus
	matched := false

	snap, err := s.Store.Update(func(cur *model.Snapshot) error {
		before = cur.Status
		// no campaign is loaded, so the callback belongs to a previous run
		if cur.Status == model.CampaignIdle {
			return appErrors.NewConflict("report progress", string(cur.Status))
		}
		if u.CampaignName != "" && u.CampaignName != cur.CampaignName {
			return appErrors.NewConflict(fmt.Sprintf("report progress for campaign %q", u.CampaignName), string(cur.Status))
		}

		if u.LastLead != "" && u.LastPhone != "" && incoming != nil &&
			(*incoming == model.CampaignDone || *incoming == model.CampaignRunning) {
			if i := cur.FindLead(u.LastLead, u.LastPhone); i >= 0 {
				at := now
				cur.Leads[i].Status = model.LeadSuccess
				cur.Leads[i].SentAt = &at
				matched = true
			}
		}

		patch := model.ProgressPatch{
			Sent:  u.Sent.Ptr(),
			Total: u.Total.Ptr(),
		}
		if u.CampaignName != "" {
			patch.CampaignName = &u.CampaignName
		}
		if u.TempoParaEnvio.Set {
			ms := now.UnixMilli()
			patch.TempoParaEnvio = u.TempoParaEnvio.Ptr()
			patch.TimestampRecebido = &ms
		}
		// a late callback must not revive a stopped or reset campaign
		if incoming != nil && cur.Status == model.CampaignRunning {
			patch.Status = incoming
		}
		patch.Apply(cur)
		return nil
	})
	if err != nil {
		s.Log.Warn().Err(err).Str("campaign", u.CampaignName).Msg("progress callback rejected")
		return snap, err
	}

	ev := s.Log.Debug().Str("campaign", snap.CampaignName).Int("sent", snap.Sent).Int("total", snap.Total).
		Str("status", string(snap.Status))
	if matched {
		ev = ev.Str("lead", u.LastLead)
	}
	ev.Msg("progress applied")

	if before == model.CampaignRunning && snap.Status == model.CampaignDone {
		s.Log.Info().Str("campaign", snap.CampaignName).Int("sent", snap.Sent).Msg("campaign finished")
		s.archive(snap, "")
	}
	return snap, nil
}
