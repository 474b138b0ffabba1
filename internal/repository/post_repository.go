// Package repository contains data access logic for posts.  This file is
// the post store: every write that touches more than one row, or that
// reads a post before changing it, runs inside a single transaction.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/cms-backend/internal/database"
	"github.com/iliyamo/cms-backend/internal/lifecycle"
	"github.com/iliyamo/cms-backend/internal/model"
	"github.com/iliyamo/cms-backend/internal/slug"
)

// MaxSearchResults caps the rows returned by Search.
const MaxSearchResults = 100

// ErrConcurrentChange is returned when a post changed status between being
// read and being written, e.g. the scheduler published it while an author
// was publishing it by hand.
var ErrConcurrentChange = fmt.Errorf("%w: post changed concurrently", lifecycle.ErrInvalidTransition)

const postColumns = `id, title, slug, content, status, author_id, scheduled_for, published_at, created_at, updated_at`

// PostRepo manages persistence for posts.
type PostRepo struct {
	db        *sql.DB
	dialect   database.Dialect
	revisions *RevisionRepo
}

// NewPostRepo constructs a PostRepo.  Revision snapshots are written
// through revisions inside the same transactions as post updates.
func NewPostRepo(db *sql.DB, d database.Dialect, revisions *RevisionRepo) *PostRepo {
	return &PostRepo{db: db, dialect: d, revisions: revisions}
}

// DB exposes the underlying sql.DB.
func (r *PostRepo) DB() *sql.DB {
	return r.db
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(s rowScanner) (*model.Post, error) {
	var (
		p                      model.Post
		status                 string
		scheduledFor, published sql.NullTime
	)
	if err := s.Scan(&p.ID, &p.Title, &p.Slug, &p.Content, &status, &p.AuthorID,
		&scheduledFor, &published, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = model.Status(status)
	p.ScheduledFor = timePtr(scheduledFor)
	p.PublishedAt = timePtr(published)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (r *PostRepo) queryPosts(ctx context.Context, q string, args ...interface{}) ([]model.Post, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveSlug returns a free slug for title, ignoring the current slug of
// excludingID (0 when creating).  The answer can be stale by the time it
// is written; the unique index on posts.slug has the final word.
func (r *PostRepo) ResolveSlug(ctx context.Context, title string, excludingID uint64) (string, error) {
	var s string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		s, err = r.resolveSlugTx(ctx, tx, title, excludingID)
		return err
	})
	return s, err
}

func (r *PostRepo) resolveSlugTx(ctx context.Context, tx *sql.Tx, title string, excludingID uint64) (string, error) {
	base := slug.Make(title)
	rows, err := tx.QueryContext(ctx,
		`SELECT slug FROM posts WHERE (slug = ? OR slug LIKE ? ESCAPE '!') AND id <> ?`,
		base, escapeLike(base)+"-%", excludingID)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	taken := map[string]bool{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return "", err
		}
		taken[s] = true
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return slug.Resolve(base, func(c string) bool { return taken[c] }), nil
}

// Create inserts a new draft post owned by authorID.
func (r *PostRepo) Create(ctx context.Context, authorID uint64, title, content string, now time.Time) (*model.Post, error) {
	now = dbTime(now)
	p := &model.Post{
		Title:     title,
		Content:   content,
		Status:    model.StatusDraft,
		AuthorID:  authorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		s, err := r.resolveSlugTx(ctx, tx, title, 0)
		if err != nil {
			return err
		}
		p.Slug = s
		res, err := tx.ExecContext(ctx,
			`INSERT INTO posts (title, slug, content, status, author_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.Title, p.Slug, p.Content, string(p.Status), p.AuthorID, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			if r.dialect.IsDuplicate(err) {
				return fmt.Errorf("%w: slug %q already taken", ErrConflict, p.Slug)
			}
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		p.ID = uint64(id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByIDAndAuthor returns a post of any status owned by authorID.  Posts
// owned by another author are reported as ErrPostNotFound.
func (r *PostRepo) GetByIDAndAuthor(ctx context.Context, id, authorID uint64) (*model.Post, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ? AND author_id = ?`, id, authorID)
	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return p, nil
}

// GetPublished returns a post only if it is published.
func (r *PostRepo) GetPublished(ctx context.Context, id uint64) (*model.Post, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ? AND status = ?`, id, string(model.StatusPublished))
	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListByAuthor returns one page of the author's posts, newest first.
func (r *PostRepo) ListByAuthor(ctx context.Context, authorID uint64, skip, limit int) ([]model.Post, error) {
	return r.queryPosts(ctx,
		`SELECT `+postColumns+` FROM posts WHERE author_id = ? ORDER BY id DESC LIMIT ? OFFSET ?`,
		authorID, limit, skip)
}

// ListPublished returns one page of published posts, most recently
// published first.
func (r *PostRepo) ListPublished(ctx context.Context, skip, limit int) ([]model.Post, error) {
	return r.queryPosts(ctx,
		`SELECT `+postColumns+` FROM posts WHERE status = ?
		 ORDER BY published_at DESC, id DESC LIMIT ? OFFSET ?`,
		string(model.StatusPublished), limit, skip)
}

// Search returns published posts whose title or content contains query,
// ignoring case (including non-ASCII letters).  Wildcard characters in query match literally.
func (r *PostRepo) Search(ctx context.Context, query string) ([]model.Post, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	return r.queryPosts(ctx,
		`SELECT `+postColumns+` FROM posts
		 WHERE status = ? AND (`+r.dialect.Lower("title")+` LIKE ? ESCAPE '!' OR `+r.dialect.Lower("content")+` LIKE ? ESCAPE '!')
		 ORDER BY published_at DESC, id DESC LIMIT ?`,
		string(model.StatusPublished), pattern, pattern, MaxSearchResults)
}

// lockByIDAndAuthorTx reads a post inside tx, taking a row lock where the
// dialect supports it.
func (r *PostRepo) lockByIDAndAuthorTx(ctx context.Context, tx *sql.Tx, id, authorID uint64) (*model.Post, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ? AND author_id = ?`+r.dialect.ForUpdate(), id, authorID)
	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return p, nil
}

// editTx snapshots p and then replaces its title and content, re-resolving
// the slug.  Both writes share tx.
func (r *PostRepo) editTx(ctx context.Context, tx *sql.Tx, p *model.Post, actorID uint64, title, content string, now time.Time) error {
	if _, err := r.revisions.SnapshotTx(ctx, tx, p, actorID, now); err != nil {
		return fmt.Errorf("snapshot revision: %w", err)
	}
	s, err := r.resolveSlugTx(ctx, tx, title, p.ID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET title = ?, content = ?, slug = ?, updated_at = ? WHERE id = ?`,
		title, content, s, now, p.ID); err != nil {
		if r.dialect.IsDuplicate(err) {
			return fmt.Errorf("%w: slug %q already taken", ErrConflict, s)
		}
		return err
	}
	p.Title = title
	p.Content = content
	p.Slug = s
	p.UpdatedAt = now
	return nil
}

// Update records a revision of the current title and content and then
// applies the new values, atomically.  Status is left unchanged.
func (r *PostRepo) Update(ctx context.Context, id, authorID uint64, title, content string, now time.Time) (*model.Post, error) {
	now = dbTime(now)
	var p *model.Post
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		if p, err = r.lockByIDAndAuthorTx(ctx, tx, id, authorID); err != nil {
			return err
		}
		return r.editTx(ctx, tx, p, authorID, title, content, now)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Restore copies the title and content of revisionID back onto the post.
// It is an update like any other, so the state being replaced is recorded
// as a new revision first.
func (r *PostRepo) Restore(ctx context.Context, id, revisionID, authorID uint64, now time.Time) (*model.Post, error) {
	now = dbTime(now)
	var p *model.Post
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		if p, err = r.lockByIDAndAuthorTx(ctx, tx, id, authorID); err != nil {
			return err
		}
		rev, err := r.revisions.GetByIDAndPostTx(ctx, tx, revisionID, id)
		if err != nil {
			return err
		}
		return r.editTx(ctx, tx, p, authorID, rev.Title, rev.Content, now)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the post and its revisions.
func (r *PostRepo) Delete(ctx context.Context, id, authorID uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := r.lockByIDAndAuthorTx(ctx, tx, id, authorID); err != nil {
			return err
		}
		if err := r.revisions.deleteByPostTx(ctx, tx, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
		return err
	})
}

// transitionTx writes the lifecycle fields of p, but only if the row still
// has status from.  A lost race surfaces as ErrConcurrentChange instead of
// a second write.
func (r *PostRepo) transitionTx(ctx context.Context, tx *sql.Tx, p *model.Post, from model.Status) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE posts SET status = ?, scheduled_for = ?, published_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(p.Status), nullTime(p.ScheduledFor), nullTime(p.PublishedAt), dbTime(p.UpdatedAt),
		p.ID, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConcurrentChange
	}
	return nil
}

// Publish publishes a draft or scheduled post owned by authorID.
func (r *PostRepo) Publish(ctx context.Context, id, authorID uint64, now time.Time) (*model.Post, error) {
	now = dbTime(now)
	var p *model.Post
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		if p, err = r.lockByIDAndAuthorTx(ctx, tx, id, authorID); err != nil {
			return err
		}
		from := p.Status
		if err := lifecycle.Publish(p, now); err != nil {
			return err
		}
		return r.transitionTx(ctx, tx, p, from)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Schedule sets a draft or scheduled post owned by authorID to be
// published at at.  The guard runs before anything is written.
func (r *PostRepo) Schedule(ctx context.Context, id, authorID uint64, at, now time.Time) (*model.Post, error) {
	now = dbTime(now)
	at = dbTime(at)
	var p *model.Post
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		if p, err = r.lockByIDAndAuthorTx(ctx, tx, id, authorID); err != nil {
			return err
		}
		from := p.Status
		if err := lifecycle.Schedule(p, at, now); err != nil {
			return err
		}
		return r.transitionTx(ctx, tx, p, from)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// PublishDue publishes, in one transaction, every scheduled post whose
// scheduled_for is at or before now, stamping published_at with now.  It
// returns the published posts.  When nothing is due nothing is written.
func (r *PostRepo) PublishDue(ctx context.Context, now time.Time) ([]model.Post, error) {
	now = dbTime(now)
	var published []model.Post
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+postColumns+` FROM posts WHERE status = ? AND scheduled_for <= ? ORDER BY id`+r.dialect.ForUpdate(),
			string(model.StatusScheduled), now)
		if err != nil {
			return err
		}
		var due []*model.Post
		for rows.Next() {
			p, err := scanPost(rows)
			if err != nil {
				rows.Close()
				return err
			}
			due = append(due, p)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}
		for _, p := range due {
			if !lifecycle.Due(p, now) {
				continue
			}
			if err := lifecycle.Publish(p, now); err != nil {
				return err
			}
			if err := r.transitionTx(ctx, tx, p, model.StatusScheduled); err != nil {
				return err
			}
			published = append(published, *p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return published, nil
}
