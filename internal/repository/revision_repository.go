package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cms-backend/internal/model"
)

// RevisionRepo records and reads post revisions.  Snapshots are only ever
// written from inside a post update transaction; the table is append-only.
type RevisionRepo struct {
	db *sql.DB
}

// NewRevisionRepo returns a RevisionRepo bound to db.
func NewRevisionRepo(db *sql.DB) *RevisionRepo { return &RevisionRepo{db: db} }

// SnapshotTx stores the current title and content of p, attributed to
// actorID.  It must be called with p as read inside tx and before the new
// values are written, so the snapshot is the pre-update state.  The caller
// commits or rolls back.
func (r *RevisionRepo) SnapshotTx(ctx context.Context, tx *sql.Tx, p *model.Post, actorID uint64, now time.Time) (*model.Revision, error) {
	rev := &model.Revision{
		PostID:    p.ID,
		Title:     p.Title,
		Content:   p.Content,
		AuthorID:  actorID,
		CreatedAt: dbTime(now),
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO post_revisions (post_id, title_snapshot, content_snapshot, revision_author_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rev.PostID, rev.Title, rev.Content, rev.AuthorID, rev.CreatedAt)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	rev.ID = uint64(id)
	return rev, nil
}

// GetByIDAndPostTx loads a revision that belongs to postID.  It returns
// ErrRevisionNotFound when the revision is missing or belongs to another
// post.
func (r *RevisionRepo) GetByIDAndPostTx(ctx context.Context, tx *sql.Tx, id, postID uint64) (*model.Revision, error) {
	var rev model.Revision
	err := tx.QueryRowContext(ctx,
		`SELECT id, post_id, title_snapshot, content_snapshot, revision_author_id, created_at
		 FROM post_revisions WHERE id = ? AND post_id = ?`, id, postID).
		Scan(&rev.ID, &rev.PostID, &rev.Title, &rev.Content, &rev.AuthorID, &rev.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRevisionNotFound
		}
		return nil, err
	}
	return &rev, nil
}

// ListByPost returns the history of postID oldest first, with each acting
// author resolved to a username ("System" when the user no longer exists).
func (r *RevisionRepo) ListByPost(ctx context.Context, postID uint64) ([]model.RevisionView, error) {
	const q = `SELECT r.id, r.post_id, r.title_snapshot, r.content_snapshot,
	                  COALESCE(u.username, 'System'), r.created_at
	           FROM post_revisions r
	           LEFT JOIN users u ON u.id = r.revision_author_id
	           WHERE r.post_id = ?
	           ORDER BY r.id ASC`
	rows, err := r.db.QueryContext(ctx, q, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.RevisionView{}
	for rows.Next() {
		var v model.RevisionView
		if err := rows.Scan(&v.RevisionID, &v.PostID, &v.TitleSnapshot, &v.ContentSnapshot, &v.RevisionAuthor, &v.RevisionTimestamp); err != nil {
			return nil, err
		}
		v.RevisionTimestamp = v.RevisionTimestamp.UTC()
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// deleteByPostTx removes every revision of postID.  Used when the post is
// deleted; the foreign key cascades on MySQL but SQLite only enforces it
// with foreign_keys enabled.
func (r *RevisionRepo) deleteByPostTx(ctx context.Context, tx *sql.Tx, postID uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM post_revisions WHERE post_id = ?`, postID)
	return err
}
