// Package events carries the notifications the repository sends to the rest of the
// cohort, such as refreshed reference copies.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/conduit-lang/metabridge/internal/cohort"
)

// Kind identifies what an event announces
type Kind string

const (
	EntityRefreshed       Kind = "EntityRefreshed"
	RelationshipRefreshed Kind = "RelationshipRefreshed"
)

// Event is one outward notification. Exactly one of Entity and Relationship is set.
type Event struct {
	Kind         Kind                 `json:"eventType"`
	CollectionID string               `json:"metadataCollectionId"`
	UserID       string               `json:"userId,omitempty"`
	Time         time.Time            `json:"eventTime"`
	Entity       *cohort.EntityDetail `json:"entity,omitempty"`
	Relationship *cohort.Relationship `json:"relationship,omitempty"`
}

// InstanceGUID returns the guid of the instance the event is about
func (e Event) InstanceGUID() string {
	switch {
	case e.Entity != nil:
		return e.Entity.GUID
	case e.Relationship != nil:
		return e.Relationship.GUID
	default:
		return ""
	}
}

// Publisher sends events to whoever is listening
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Recorder keeps every published event in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish records the event
func (r *Recorder) Publish(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events in publish order
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset forgets the recorded events
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Multi publishes every event to each of its publishers in turn. All publishers are
// tried; their errors are joined.
type Multi []Publisher

// Publish sends the event to each publisher
func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
