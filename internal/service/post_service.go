// Package service composes the post store, the read-through cache and the
// event publisher.  Every mutation commits first, then invalidates the
// cache, then publishes an event; the last two are best effort.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/cms-backend/internal/cache"
	"github.com/iliyamo/cms-backend/internal/model"
	"github.com/iliyamo/cms-backend/internal/queue"
	"github.com/iliyamo/cms-backend/internal/repository"
)

// ErrInvalidInput is returned for requests that fail validation before
// reaching the store.
var ErrInvalidInput = errors.New("invalid input")

// MaxTitleLength matches the width of posts.title.
const MaxTitleLength = 255

// PostService implements the authoring and public read operations.
type PostService struct {
	posts     *repository.PostRepo
	revisions *repository.RevisionRepo
	cache     *cache.PostCache
	events    queue.Publisher
	logger    *log.Logger
	now       func() time.Time
}

// NewPostService wires a PostService.  A nil cache disables caching and a
// nil publisher drops events.
func NewPostService(posts *repository.PostRepo, revisions *repository.RevisionRepo, c *cache.PostCache, events queue.Publisher, logger *log.Logger) *PostService {
	if c == nil {
		c = cache.NewPostCache(nil, 0, logger)
	}
	if events == nil {
		events = queue.NopPublisher{}
	}
	if logger == nil {
		logger = log.New("posts")
	}
	return &PostService{
		posts:     posts,
		revisions: revisions,
		cache:     c,
		events:    events,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source.  Tests use it to pin "now".
func (s *PostService) WithClock(now func() time.Time) *PostService {
	s.now = now
	return s
}

func validatePost(title, content string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", fmt.Errorf("%w: title longer than %d characters", ErrInvalidInput, MaxTitleLength)
	}
	return title, nil
}

// afterMutation runs the post-commit steps shared by every write.
// invalidatePost is false for creates, which have no cached copy yet.
func (s *PostService) afterMutation(ctx context.Context, typ string, p *model.Post, invalidatePost bool) {
	if invalidatePost {
		s.cache.InvalidatePost(ctx, p.ID)
	}
	s.cache.InvalidateLists(ctx)
	if err := s.events.Publish(ctx, queue.NewPostEvent(typ, p, s.now())); err != nil {
		s.logger.Warnf("publish %s for post %d: %v", typ, p.ID, err)
	}
}

// Create stores a new draft owned by authorID.
func (s *PostService) Create(ctx context.Context, authorID uint64, title, content string) (*model.Post, error) {
	title, err := validatePost(title, content)
	if err != nil {
		return nil, err
	}
	p, err := s.posts.Create(ctx, authorID, title, content, s.now())
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, queue.PostCreated, p, false)
	return p, nil
}

// Get returns a post of any status owned by authorID.
func (s *PostService) Get(ctx context.Context, id, authorID uint64) (*model.Post, error) {
	return s.posts.GetByIDAndAuthor(ctx, id, authorID)
}

// ListMine returns one page of the author's own posts.
func (s *PostService) ListMine(ctx context.Context, authorID uint64, skip, limit int) ([]model.Post, error) {
	return s.posts.ListByAuthor(ctx, authorID, skip, limit)
}

// Update replaces title and content, recording a revision of the previous
// values.
func (s *PostService) Update(ctx context.Context, id, authorID uint64, title, content string) (*model.Post, error) {
	title, err := validatePost(title, content)
	if err != nil {
		return nil, err
	}
	p, err := s.posts.Update(ctx, id, authorID, title, content, s.now())
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, queue.PostUpdated, p, true)
	return p, nil
}

// Delete removes the post and its revisions.
func (s *PostService) Delete(ctx context.Context, id, authorID uint64) error {
	if err := s.posts.Delete(ctx, id, authorID); err != nil {
		return err
	}
	s.afterMutation(ctx, queue.PostDeleted, &model.Post{ID: id, AuthorID: authorID}, true)
	return nil
}

// Publish publishes a draft or scheduled post now.
func (s *PostService) Publish(ctx context.Context, id, authorID uint64) (*model.Post, error) {
	p, err := s.posts.Publish(ctx, id, authorID, s.now())
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, queue.PostPublished, p, true)
	return p, nil
}

// Schedule sets the post to be published by the scheduler at at.
func (s *PostService) Schedule(ctx context.Context, id, authorID uint64, at time.Time) (*model.Post, error) {
	p, err := s.posts.Schedule(ctx, id, authorID, at, s.now())
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, queue.PostScheduled, p, true)
	return p, nil
}

// Revisions returns the history of a post owned by authorID, oldest first.
func (s *PostService) Revisions(ctx context.Context, id, authorID uint64) ([]model.RevisionView, error) {
	if _, err := s.posts.GetByIDAndAuthor(ctx, id, authorID); err != nil {
		return nil, err
	}
	return s.revisions.ListByPost(ctx, id)
}

// Restore copies a revision's title and content back onto the post.
func (s *PostService) Restore(ctx context.Context, id, revisionID, authorID uint64) (*model.Post, error) {
	p, err := s.posts.Restore(ctx, id, revisionID, authorID, s.now())
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, queue.PostRestored, p, true)
	return p, nil
}

// PublishedList returns one serialized page of published posts, from the
// cache when possible.  hit reports a cache hit.
func (s *PostService) PublishedList(ctx context.Context, skip, limit int) ([]byte, bool, error) {
	return s.cache.PublishedList(ctx, skip, limit, func(ctx context.Context) (interface{}, error) {
		return s.posts.ListPublished(ctx, skip, limit)
	})
}

// PublishedPost returns one serialized published post, from the cache when
// possible.  Unpublished and missing posts yield ErrPostNotFound and are
// never cached.
func (s *PostService) PublishedPost(ctx context.Context, id uint64) ([]byte, bool, error) {
	return s.cache.Post(ctx, id, func(ctx context.Context) (interface{}, error) {
		return s.posts.GetPublished(ctx, id)
	})
}

// Search returns published posts containing q in their title or content.
// Results are read from the store on every call.
func (s *PostService) Search(ctx context.Context, q string) ([]model.Post, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	return s.posts.Search(ctx, q)
}
