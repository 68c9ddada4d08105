package state

import (
	"fmt"
	"log/slog"
	"sync"
)

// Event names a change notification.
type Event string

const (
	EventDataLoaded         Event = "dataLoaded"
	EventProfileUpdated     Event = "userDataUpdated"
	EventLogAdded           Event = "logAdded"
	EventLogDeleted         Event = "logDeleted"
	EventBadgeUnlocked      Event = "badgeUnlocked"
	EventBadgesUpdated      Event = "badgesUpdated"
	EventPlanAdded          Event = "planAdded"
	EventPlanDeleted        Event = "planDeleted"
	EventPreferencesUpdated Event = "preferencesUpdated"
)

// Handler receives an event and its payload. Payloads are copies and safe to
// keep.
type Handler func(event Event, payload any)

type subscription struct {
	id      uint64
	event   Event
	all     bool
	handler Handler
}

// registry is a synchronous publish/subscribe registry keyed by event name.
type registry struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription
	logger *slog.Logger
}

func (r *registry) add(s subscription) func() {
	r.mu.Lock()
	r.nextID++
	s.id = r.nextID
	r.subs = append(r.subs, s)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(s.id) })
	}
}

func (r *registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.subs {
		if s.id == id {
			r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
			return
		}
	}
}

func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = nil
}

// publish calls every matching handler in subscription order. A panicking
// handler is logged and does not stop the others.
func (r *registry) publish(event Event, payload any) {
	r.mu.Lock()
	targets := make([]subscription, 0, len(r.subs))
	for _, s := range r.subs {
		if s.all || s.event == event {
			targets = append(targets, s)
		}
	}
	r.mu.Unlock()

	for _, s := range targets {
		r.deliver(s, event, payload)
	}
}

func (r *registry) deliver(s subscription, event Event, payload any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("subscriber failed",
				slog.String("event", string(event)),
				slog.Uint64("subscription", s.id),
				slog.String("panic", fmt.Sprint(rec)))
		}
	}()
	s.handler(event, payload)
}
