// Package hub fans campaign snapshots out to live observers.
//
// Every subscription owns a one-slot mailbox. Publish never blocks: if an
// observer has not consumed the previous frame yet, that frame is replaced by
// the new one, so slow observers always see the latest state but may skip
// intermediate ones.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-panel/internal/model"
)

type Hub struct {
	mu   sync.Mutex
	subs map[string]*Subscription
	log  zerolog.Logger
}

func New(log zerolog.Logger) *Hub {
	return &Hub{
		subs: make(map[string]*Subscription),
		log:  log.With().Str("component", "hub").Logger(),
	}
}

// Subscription is one attached observer. Frames arrive on C as encoded
// snapshots; C is never closed, use Done to learn about removal.
type Subscription struct {
	ID string
	C  <-chan []byte

	mailbox chan []byte
	done    chan struct{}
	once    sync.Once
	hub     *Hub
}

// Subscribe attaches an observer whose mailbox already holds initial.
func (h *Hub) Subscribe(initial model.Snapshot) (*Subscription, error) {
	frame, err := json.Marshal(initial)
	if err != nil {
		return nil, err
	}
	mb := make(chan []byte, 1)
	mb <- frame
	sub := &Subscription{
		ID:      uuid.NewString(),
		C:       mb,
		mailbox: mb,
		done:    make(chan struct{}),
		hub:     h,
	}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	n := len(h.subs)
	h.mu.Unlock()

	h.log.Debug().Str("subscriber", sub.ID).Int("observers", n).Msg("observer attached")
	return sub, nil
}

// Publish delivers snap to every live observer.
func (h *Hub) Publish(snap model.Snapshot) error {
	frame, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	h.mu.Lock()
	targets := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		if !s.offer(frame) {
			h.remove(s.ID)
		}
	}
	return nil
}

// Len reports the number of attached observers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	_, ok := h.subs[id]
	delete(h.subs, id)
	n := len(h.subs)
	h.mu.Unlock()

	if ok {
		h.log.Debug().Str("subscriber", id).Int("observers", n).Msg("observer detached")
	}
}

// offer puts frame in the mailbox, replacing an unread frame. It reports
// false when the subscription is already closed.
func (s *Subscription) offer(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	for {
		select {
		case s.mailbox <- frame:
			return true
		default:
		}
		select {
		case <-s.mailbox:
		default:
		}
	}
}

// Done is closed once the subscription has been closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close detaches the observer. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.hub.remove(s.ID)
	})
}
