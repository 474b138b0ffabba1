// Package queue defines the post events exchanged over the message broker,
// the publisher used by the service and scheduler, and the audit consumer.
package queue

import (
    "time"

    "github.com/iliyamo/cms-backend/internal/model"
)

// Event types.
const (
    PostCreated   = "post.created"
    PostUpdated   = "post.updated"
    PostDeleted   = "post.deleted"
    PostPublished = "post.published"
    PostScheduled = "post.scheduled"
    PostRestored  = "post.restored"
)

// PostEvent is published after a post mutation commits.  It carries enough
// for downstream consumers to log or notify without querying the database.
type PostEvent struct {
    Type         string     `json:"type"`
    PostID       uint64     `json:"post_id"`
    AuthorID     uint64     `json:"author_id"`
    Slug         string     `json:"slug,omitempty"`
    Status       string     `json:"status,omitempty"`
    ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
    OccurredAt   time.Time  `json:"occurred_at"`
}

// NewPostEvent builds an event of type typ describing p.
func NewPostEvent(typ string, p *model.Post, at time.Time) PostEvent {
    return PostEvent{
        Type:         typ,
        PostID:       p.ID,
        AuthorID:     p.AuthorID,
        Slug:         p.Slug,
        Status:       string(p.Status),
        ScheduledFor: p.ScheduledFor,
        OccurredAt:   at.UTC(),
    }
}
