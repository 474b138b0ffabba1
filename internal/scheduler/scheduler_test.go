package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cms-backend/internal/cache"
	"github.com/iliyamo/cms-backend/internal/database"
	"github.com/iliyamo/cms-backend/internal/model"
	"github.com/iliyamo/cms-backend/internal/queue"
	"github.com/iliyamo/cms-backend/internal/repository"
)

var testNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type countingPublisher struct {
	mu     sync.Mutex
	events []queue.PostEvent
}

func (c *countingPublisher) Publish(_ context.Context, ev queue.PostEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

type fixture struct {
	posts    *repository.PostRepo
	mr       *miniredis.Miniredis
	pc       *cache.PostCache
	events   *countingPublisher
	authorID uint64
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(context.Background(), db, database.SQLite); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	u, err := repository.NewUserRepo(db, database.SQLite).
		Create(context.Background(), "admin", "admin@example.com", "admin123", model.RoleAuthor, 4)
	if err != nil {
		t.Fatalf("creating author: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return &fixture{
		posts:    repository.NewPostRepo(db, database.SQLite, repository.NewRevisionRepo(db)),
		mr:       mr,
		pc:       cache.NewPostCache(cache.NewRedisStore(rdb, ""), time.Hour, nil),
		events:   &countingPublisher{},
		authorID: u.ID,
	}
}

func (f *fixture) schedule(t *testing.T, title string, at time.Time) *model.Post {
	t.Helper()
	p, err := f.posts.Create(context.Background(), f.authorID, title, "body", testNow)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if p, err = f.posts.Schedule(context.Background(), p.ID, f.authorID, at, testNow); err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}
	return p
}

func TestTick_PublishesDuePosts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	due := f.schedule(t, "Soon", testNow.Add(time.Second))
	later := f.schedule(t, "Later", testNow.Add(time.Hour))
	f.mr.Set(cache.ListKey(0, 10), "[]")
	f.mr.Set(cache.ListKey(10, 10), "[]")

	tick := testNow.Add(2 * time.Second)
	s := New(f.posts, f.pc, f.events, time.Second, nil).WithClock(func() time.Time { return tick })
	n, err := s.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 post published, got %d", n)
	}

	got, err := f.posts.GetPublished(ctx, due.ID)
	if err != nil {
		t.Fatalf("expected due post to be published: %v", err)
	}
	if got.Status != model.StatusPublished || !got.PublishedAt.Equal(tick) {
		t.Errorf("expected published at tick time %v, got %+v", tick, got)
	}
	if _, err := f.posts.GetPublished(ctx, later.ID); !errors.Is(err, repository.ErrPostNotFound) {
		t.Errorf("expected later post to stay scheduled, got %v", err)
	}
	if f.mr.Exists(cache.ListKey(0, 10)) || f.mr.Exists(cache.ListKey(10, 10)) {
		t.Error("expected list cache to be empty after a publishing tick")
	}
	if len(f.events.events) != 1 || f.events.events[0].Type != queue.PostPublished || f.events.events[0].PostID != due.ID {
		t.Errorf("unexpected events %+v", f.events.events)
	}
}

func TestTick_NothingDueLeavesCacheAlone(t *testing.T) {
	f := setup(t)
	f.schedule(t, "Later", testNow.Add(time.Hour))
	f.mr.Set(cache.ListKey(0, 10), "[]")

	s := New(f.posts, f.pc, f.events, time.Second, nil).WithClock(func() time.Time { return testNow })
	n, err := s.Tick(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("Tick() = %d, %v", n, err)
	}
	if !f.mr.Exists(cache.ListKey(0, 10)) {
		t.Error("an empty tick must not invalidate the list cache")
	}
	if len(f.events.events) != 0 {
		t.Errorf("expected no events, got %d", len(f.events.events))
	}
}

type failingStore struct{ calls int }

func (f *failingStore) PublishDue(context.Context, time.Time) ([]model.Post, error) {
	f.calls++
	return nil, errors.New("database is down")
}

func TestTick_StoreFailure(t *testing.T) {
	store := &failingStore{}
	s := New(store, nil, nil, time.Second, nil)
	if _, err := s.Tick(context.Background()); err == nil {
		t.Fatal("expected the store error to surface from Tick")
	}
}

func TestRun_SurvivesFailuresUntilCancelled(t *testing.T) {
	store := &failingStore{}
	s := New(store, nil, nil, 10*time.Millisecond, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if store.calls < 2 {
		t.Errorf("expected repeated ticks despite failures, got %d", store.calls)
	}
}
