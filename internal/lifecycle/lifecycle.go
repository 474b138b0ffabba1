// Package lifecycle enforces the post state machine:
//
//	draft     --publish-->      published
//	draft     --schedule(t)-->  scheduled   (t > now)
//	scheduled --schedule(t)-->  scheduled   (t > now, replaces scheduled_for)
//	scheduled --publish-->      published   (manual, before or after t)
//	scheduled --time elapsed--> published   (scheduler, scheduled_for <= now)
//
// Nothing leaves published.  The functions here only validate and mutate an
// in-memory post; persisting the result is the repository's job.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/cms-backend/internal/model"
)

// ErrInvalidTransition is returned when a lifecycle guard rejects an event.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrAlreadyPublished is returned when publishing or scheduling a post
// that is already published.
var ErrAlreadyPublished = fmt.Errorf("%w: already published", ErrInvalidTransition)

// ErrScheduleInPast is returned when the requested publication time is not
// strictly after now.
var ErrScheduleInPast = fmt.Errorf("%w: scheduled_for must be in the future", ErrInvalidTransition)

// Publish moves p to published and stamps PublishedAt with now.  Draft and
// scheduled posts may be published; a scheduled post does not have to be
// due yet.
func Publish(p *model.Post, now time.Time) error {
	if p.Status == model.StatusPublished {
		return ErrAlreadyPublished
	}
	if p.Status != model.StatusDraft && p.Status != model.StatusScheduled {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, p.Status)
	}
	at := now
	p.Status = model.StatusPublished
	p.PublishedAt = &at
	p.ScheduledFor = nil
	p.UpdatedAt = now
	return nil
}

// Schedule moves p to scheduled for publication at at.  Rescheduling an
// already scheduled post overwrites the previous time.
func Schedule(p *model.Post, at, now time.Time) error {
	if !at.After(now) {
		return ErrScheduleInPast
	}
	if p.Status == model.StatusPublished {
		return ErrAlreadyPublished
	}
	if p.Status != model.StatusDraft && p.Status != model.StatusScheduled {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, p.Status)
	}
	when := at
	p.Status = model.StatusScheduled
	p.ScheduledFor = &when
	p.UpdatedAt = now
	return nil
}

// Due reports whether the scheduler should publish p at now.
func Due(p *model.Post, now time.Time) bool {
	return p.Status == model.StatusScheduled && p.ScheduledFor != nil && !p.ScheduledFor.After(now)
}
