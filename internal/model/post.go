package model

import "time"

// Status is the lifecycle state of a post.
type Status string

const (
    StatusDraft     Status = "draft"
    StatusScheduled Status = "scheduled"
    StatusPublished Status = "published"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
    switch s {
    case StatusDraft, StatusScheduled, StatusPublished:
        return true
    }
    return false
}

// Post represents a row of the `posts` table.  The same struct is used as
// the JSON payload for both author and public responses, and is the value
// serialized into the read-through cache.
//
// Fields:
//  ID           – primary key, never reused.
//  Title        – current title.
//  Content      – current body.
//  Slug         – unique URL-safe identifier derived from Title.
//  Status       – draft, scheduled or published.
//  AuthorID     – owning user; never changes after creation.
//  ScheduledFor – set only while Status is scheduled.
//  PublishedAt  – set once, when the post first becomes published.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last content or status mutation.
type Post struct {
    ID           uint64     `json:"id"`            // posts.id
    Title        string     `json:"title"`         // posts.title
    Content      string     `json:"content"`       // posts.content
    Slug         string     `json:"slug"`          // posts.slug (unique)
    Status       Status     `json:"status"`        // posts.status
    AuthorID     uint64     `json:"author_id"`     // posts.author_id
    ScheduledFor *time.Time `json:"scheduled_for"` // posts.scheduled_for (nullable)
    PublishedAt  *time.Time `json:"published_at"`  // posts.published_at (nullable)
    CreatedAt    time.Time  `json:"created_at"`    // posts.created_at
    UpdatedAt    time.Time  `json:"updated_at"`    // posts.updated_at
}
