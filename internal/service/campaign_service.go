// internal/service/campaign_service.go
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-panel/internal/dispatch"
	appErrors "github.com/unclebandit/campaign-panel/internal/errors"
	"github.com/unclebandit/campaign-panel/internal/hub"
	"github.com/unclebandit/campaign-panel/internal/model"
	"github.com/unclebandit/campaign-panel/internal/queue"
	"github.com/unclebandit/campaign-panel/internal/repository"
)

var ErrArchiveDisabled = errors.New("campaign archive is not configured")

// Observers is the part of the hub the service needs.
type Observers interface {
	Subscribe(initial model.Snapshot) (*hub.Subscription, error)
}

// CampaignService drives the campaign lifecycle: start, stop, reset.
type CampaignService struct {
	Store      repository.ProgressStoreInterface
	Observers  Observers
	Dispatcher dispatch.Dispatcher
	// Queue and ArchiveRepo are nil when no database is configured.
	Queue       queue.Queue
	ArchiveRepo repository.ArchiveRepositoryInterface

	WorkerTimeout time.Duration
	Log           zerolog.Logger
	Now           func() time.Time
}

// Start replaces the idle or finished campaign by a new running one and
// hands the leads to the worker.
func (s *CampaignService) Start(ctx context.Context, campaignName string, leads []model.LeadInput) (model.Snapshot, error) {
	campaignName = strings.TrimSpace(campaignName)
	if campaignName == "" {
		return model.Snapshot{}, appErrors.NewValidationf("campaignName", "must not be empty")
	}
	if leads == nil {
		return model.Snapshot{}, appErrors.NewValidationf("leads", "must be a list")
	}

	tracked := make([]model.Lead, len(leads))
	for i, l := range leads {
		tracked[i] = model.Lead{Name: l.Name, Phone: l.Phone, Status: model.LeadPending}
	}

	snap, err := s.Store.Update(func(cur *model.Snapshot) error {
		if cur.Status == model.CampaignRunning {
			return appErrors.NewConflict("start a campaign", string(cur.Status))
		}
		*cur = model.Snapshot{
			CampaignName: campaignName,
			Total:        len(tracked),
			Sent:         0,
			Status:       model.CampaignRunning,
			Leads:        tracked,
		}
		return nil
	})
	if err != nil {
		return snap, err
	}
	s.Log.Info().Str("campaign", campaignName).Int("total", snap.Total).Msg("campaign started")

	dispatch.Notify(ctx, s.Log, s.timeout(), "dispatch", campaignName, func(ctx context.Context) error {
		return s.Dispatcher.Dispatch(ctx, campaignName, leads)
	})
	return snap, nil
}

// Stop halts the running campaign. Leads not yet sent become not_sent.
func (s *CampaignService) Stop(ctx context.Context) (model.Snapshot, error) {
	snap, err := s.Store.Update(func(cur *model.Snapshot) error {
		if cur.Status != model.CampaignRunning {
			return appErrors.NewConflict("stop", string(cur.Status))
		}
		cur.Status = model.CampaignStopped
		for i := range cur.Leads {
			if cur.Leads[i].Status == model.LeadPending {
				cur.Leads[i].Status = model.LeadNotSent
			}
		}
		return nil
	})
	if err != nil {
		return snap, err
	}
	s.Log.Info().Str("campaign", snap.CampaignName).Int("sent", snap.Sent).Msg("campaign stopped")

	dispatch.Notify(ctx, s.Log, s.timeout(), "stop", snap.CampaignName, func(ctx context.Context) error {
		return s.Dispatcher.Stop(ctx, snap.CampaignName)
	})
	s.archive(snap, "")
	return snap, nil
}

// Reset returns to the idle snapshot from any state.
func (s *CampaignService) Reset(ctx context.Context) model.Snapshot {
	var prev model.Snapshot
	snap, _ := s.Store.Update(func(cur *model.Snapshot) error {
		prev = cur.Clone()
		*cur = model.IdleSnapshot()
		return nil
	})
	s.Log.Info().Str("previous", prev.CampaignName).Str("previous_status", string(prev.Status)).Msg("campaign reset")

	// stopped and done runs were archived when they ended
	if prev.CampaignName != "" && prev.Status == model.CampaignRunning {
		s.archive(prev, "reset")
	}
	return snap
}

// Snapshot returns the current campaign state.
func (s *CampaignService) Snapshot() model.Snapshot {
	return s.Store.Read()
}

// Observe attaches a live observer. The initial frame and the registration
// happen under the store lock so no change can fall between them.
func (s *CampaignService) Observe() (*hub.Subscription, error) {
	var sub *hub.Subscription
	err := s.Store.View(func(cur model.Snapshot) error {
		var err error
		sub, err = s.Observers.Subscribe(cur)
		return err
	})
	return sub, err
}

// History lists archived runs, newest first.
func (s *CampaignService) History(ctx context.Context, page, pageSize int, status string) ([]model.ArchivedCampaign, map[string]int, error) {
	if s.ArchiveRepo == nil {
		return nil, nil, ErrArchiveDisabled
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	runs, total, err := s.ArchiveRepo.List(ctx, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": (total + pageSize - 1) / pageSize,
	}
	return runs, pagination, nil
}

// archive queues a summary of snap. status overrides the recorded status.
func (s *CampaignService) archive(snap model.Snapshot, status string) {
	if s.Queue == nil {
		return
	}
	run := model.Summarize(snap, s.now())
	if status != "" {
		run.Status = status
	}
	if err := s.Queue.Publish(queue.TopicArchive, run); err != nil {
		s.Log.Warn().Err(err).Str("campaign", snap.CampaignName).Msg("could not queue campaign archive")
	}
}

func (s *CampaignService) timeout() time.Duration {
	if s.WorkerTimeout <= 0 {
		return 10 * time.Second
	}
	return s.WorkerTimeout
}

func (s *CampaignService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
