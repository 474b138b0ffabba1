package model

import "time"

// Revision is an immutable snapshot of a post's title and content taken
// just before an update was applied.  Revisions of a post are ordered by
// creation; they are removed only together with their post.
//
// Fields:
//  ID        – primary key identifier.
//  PostID    – post the snapshot belongs to (non-owning reference).
//  Title     – title before the update.
//  Content   – content before the update.
//  AuthorID  – user who performed the update.
//  CreatedAt – when the snapshot was taken.
type Revision struct {
    ID        uint64    // post_revisions.id
    PostID    uint64    // post_revisions.post_id
    Title     string    // post_revisions.title_snapshot
    Content   string    // post_revisions.content_snapshot
    AuthorID  uint64    // post_revisions.revision_author_id
    CreatedAt time.Time // post_revisions.created_at
}

// RevisionView is the API representation of a revision, with the acting
// author resolved to a username.
type RevisionView struct {
    RevisionID        uint64    `json:"revision_id"`
    PostID            uint64    `json:"post_id"`
    TitleSnapshot     string    `json:"title_snapshot"`
    ContentSnapshot   string    `json:"content_snapshot"`
    RevisionAuthor    string    `json:"revision_author"`
    RevisionTimestamp time.Time `json:"revision_timestamp"`
}
