package model

import "time"

// Role is the value stored in users.role and carried in the "role" claim
// of access tokens.
type Role string

const (
    RoleAuthor Role = "author"
    RolePublic Role = "public"
)

// User represents an application user record as stored in the
// `users` table.  Users are immutable once created apart from their
// credentials, which are managed outside of this service.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique display name, shown as a revision author.
//  Email        – unique login email (stored lower-cased).
//  PasswordHash – bcrypt hashed password.
//  Role         – author or public; only authors may manage posts.
//  CreatedAt    – timestamp of creation.
type User struct {
    ID           uint64    `json:"id"`       // users.id
    Username     string    `json:"username"` // users.username
    Email        string    `json:"-"`        // users.email
    PasswordHash string    `json:"-"`        // users.password_hash
    Role         Role      `json:"role"`     // users.role
    CreatedAt    time.Time `json:"-"`        // users.created_at
}
