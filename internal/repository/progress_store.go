// internal/repository/progress_store.go
package repository

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-panel/internal/model"
)

// Publisher receives the new snapshot after every store mutation.
type Publisher interface {
	Publish(snap model.Snapshot) error
}

type ProgressStoreInterface interface {
	Read() model.Snapshot
	Replace(snap model.Snapshot) model.Snapshot
	Merge(patch model.ProgressPatch) model.Snapshot
	Update(fn func(s *model.Snapshot) error) (model.Snapshot, error)
	View(fn func(s model.Snapshot) error) error
}

// ProgressStore holds the one campaign snapshot of the process. Every
// mutation publishes exactly once while the lock is still held, so
// observers see changes in the order they were made.
type ProgressStore struct {
	mu   sync.Mutex
	snap model.Snapshot
	pub  Publisher
	log  zerolog.Logger
}

func NewProgressStore(pub Publisher, log zerolog.Logger) *ProgressStore {
	return &ProgressStore{
		snap: model.IdleSnapshot(),
		pub:  pub,
		log:  log.With().Str("component", "store").Logger(),
	}
}

func (r *ProgressStore) Read() model.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.Clone()
}

func (r *ProgressStore) Replace(snap model.Snapshot) model.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap = snap.Clone()
	if r.snap.Leads == nil {
		r.snap.Leads = []model.Lead{}
	}
	return r.commit()
}

func (r *ProgressStore) Merge(patch model.ProgressPatch) model.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	patch.Apply(&r.snap)
	return r.commit()
}

// Update runs fn on a working copy. If fn fails nothing is written and
// nothing is published.
func (r *ProgressStore) Update(fn func(s *model.Snapshot) error) (model.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	work := r.snap.Clone()
	if err := fn(&work); err != nil {
		return r.snap.Clone(), err
	}
	r.snap = work
	return r.commit(), nil
}

// View runs fn against the current snapshot with mutations held off.
func (r *ProgressStore) View(fn func(s model.Snapshot) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.snap.Clone())
}

// must hold r.mu
func (r *ProgressStore) commit() model.Snapshot {
	out := r.snap.Clone()
	if r.pub != nil {
		if err := r.pub.Publish(out.Clone()); err != nil {
			r.log.Error().Err(err).Msg("broadcast failed")
		}
	}
	return out
}
