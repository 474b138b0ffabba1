package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cms-backend/internal/cache"
	"github.com/iliyamo/cms-backend/internal/config"
	"github.com/iliyamo/cms-backend/internal/database"
	"github.com/iliyamo/cms-backend/internal/handler"
	"github.com/iliyamo/cms-backend/internal/middleware"
	"github.com/iliyamo/cms-backend/internal/model"
	"github.com/iliyamo/cms-backend/internal/repository"
	"github.com/iliyamo/cms-backend/internal/scheduler"
	"github.com/iliyamo/cms-backend/internal/service"
)

const testSecret = "test-secret"

type app struct {
	e     *echo.Echo
	mr    *miniredis.Miniredis
	sched *scheduler.Scheduler
	posts *repository.PostRepo
	pc    *cache.PostCache
}

func setupApp(t *testing.T) *app {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	if err := database.Migrate(ctx, db, database.SQLite); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	users := repository.NewUserRepo(db, database.SQLite)
	for _, u := range []struct {
		name, email, pw string
		role            model.Role
	}{
		{"admin", "admin@example.com", "admin123", model.RoleAuthor},
		{"writer", "writer@example.com", "writer123", model.RoleAuthor},
		{"reader", "reader@example.com", "reader123", model.RolePublic},
	} {
		if _, err := users.Create(ctx, u.name, u.email, u.pw, u.role, 4); err != nil {
			t.Fatalf("creating %s: %v", u.name, err)
		}
	}

	revisions := repository.NewRevisionRepo(db)
	posts := repository.NewPostRepo(db, database.SQLite, revisions)
	pc := cache.NewPostCache(cache.NewRedisStore(rdb, ""), cache.DefaultTTL, nil)
	svc := service.NewPostService(posts, revisions, pc, nil, nil)
	auth := service.NewAuthService(users, testSecret, 15)

	e := echo.New()
	limiter := middleware.NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil)
	RegisterAll(e, Handlers{
		Health: &handler.HealthHandler{DB: db, Redis: rdb},
		Auth:   handler.NewAuthHandler(auth),
		Posts:  handler.NewPostHandler(svc),
		Public: handler.NewPublicHandler(svc),
	}, testSecret, limiter)

	return &app{e: e, mr: mr, sched: scheduler.New(posts, pc, nil, time.Second, nil), posts: posts, pc: pc}
}

func (a *app) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding body: %v", err)
		}
		rd = bytes.NewReader(bs)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *app) login(t *testing.T, email, pw string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": pw})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", email, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	decode(t, rec, &resp)
	if resp.Token == "" || resp.User.Username == "" {
		t.Fatalf("unexpected login response %s", rec.Body.String())
	}
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
}

func (a *app) createPost(t *testing.T, token, title, content string) model.Post {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/posts", token, map[string]string{"title": title, "content": content})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var p model.Post
	decode(t, rec, &p)
	return p
}

func expectCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func TestAuth(t *testing.T) {
	a := setupApp(t)
	token := a.login(t, "admin@example.com", "admin123")

	rec := a.do(t, http.MethodGet, "/auth/me", token, nil)
	expectCode(t, rec, http.StatusOK)
	var me model.User
	decode(t, rec, &me)
	if me.Username != "admin" || me.Role != model.RoleAuthor {
		t.Errorf("unexpected /auth/me %+v", me)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("password hash leaked in response")
	}

	expectCode(t, a.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "admin@example.com", "password": "wrong"}), http.StatusUnauthorized)
	expectCode(t, a.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "admin@example.com"}), http.StatusBadRequest)
	expectCode(t, a.do(t, http.MethodGet, "/auth/me", "", nil), http.StatusUnauthorized)
}

func TestAuthorRoutesRequireAuthorRole(t *testing.T) {
	a := setupApp(t)
	reader := a.login(t, "reader@example.com", "reader123")

	expectCode(t, a.do(t, http.MethodGet, "/posts", "", nil), http.StatusUnauthorized)
	expectCode(t, a.do(t, http.MethodGet, "/posts", "garbage", nil), http.StatusUnauthorized)
	expectCode(t, a.do(t, http.MethodPost, "/posts", reader, map[string]string{"title": "x"}), http.StatusForbidden)
}

func TestCreateUpdateDeleteAndRevisions(t *testing.T) {
	a := setupApp(t)
	token := a.login(t, "admin@example.com", "admin123")

	p := a.createPost(t, token, "Hello", "World")
	if !strings.HasPrefix(p.Slug, "hello") || p.Status != model.StatusDraft {
		t.Fatalf("unexpected created post %+v", p)
	}

	rec := a.do(t, http.MethodPut, fmt.Sprintf("/posts/%d", p.ID), token, map[string]string{"title": "Hello again", "content": "Universe"})
	expectCode(t, rec, http.StatusOK)
	var updated model.Post
	decode(t, rec, &updated)
	if updated.Title != "Hello again" || updated.Slug != "hello-again" {
		t.Errorf("unexpected updated post %+v", updated)
	}

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/posts/%d/revisions", p.ID), token, nil)
	expectCode(t, rec, http.StatusOK)
	var revs []model.RevisionView
	decode(t, rec, &revs)
	if len(revs) != 1 || revs[0].TitleSnapshot != "Hello" || revs[0].RevisionAuthor != "admin" {
		t.Fatalf("unexpected revisions %+v", revs)
	}

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/posts/%d/restore/%d", p.ID, revs[0].RevisionID), token, nil)
	expectCode(t, rec, http.StatusOK)
	var restored model.Post
	decode(t, rec, &restored)
	if restored.Title != "Hello" || restored.Content != "World" {
		t.Errorf("unexpected restored post %+v", restored)
	}
	expectCode(t, a.do(t, http.MethodPost, fmt.Sprintf("/posts/%d/restore/9999", p.ID), token, nil), http.StatusNotFound)

	rec = a.do(t, http.MethodGet, "/posts?skip=0&limit=5", token, nil)
	expectCode(t, rec, http.StatusOK)
	var mine []model.Post
	decode(t, rec, &mine)
	if len(mine) != 1 {
		t.Errorf("expected 1 post, got %d", len(mine))
	}
	expectCode(t, a.do(t, http.MethodGet, "/posts?limit=0", token, nil), http.StatusBadRequest)
	expectCode(t, a.do(t, http.MethodGet, "/posts?skip=-1", token, nil), http.StatusBadRequest)

	expectCode(t, a.do(t, http.MethodDelete, fmt.Sprintf("/posts/%d", p.ID), token, nil), http.StatusOK)
	expectCode(t, a.do(t, http.MethodGet, fmt.Sprintf("/posts/%d", p.ID), token, nil), http.StatusNotFound)
}

func TestListOwnPosts(t *testing.T) {
	a := setupApp(t)
	admin := a.login(t, "admin@example.com", "admin123")
	writer := a.login(t, "writer@example.com", "writer123")
	first := a.createPost(t, admin, "First", "a")
	second := a.createPost(t, admin, "Second", "b")
	a.createPost(t, writer, "Not yours", "c")

	rec := a.do(t, http.MethodGet, "/posts", admin, nil)
	expectCode(t, rec, http.StatusOK)
	var mine []model.Post
	decode(t, rec, &mine)
	if len(mine) != 2 || mine[0].ID != second.ID || mine[1].ID != first.ID {
		t.Fatalf("expected own posts newest first, got %+v", mine)
	}

	rec = a.do(t, http.MethodGet, "/posts?skip=1&limit=1", admin, nil)
	expectCode(t, rec, http.StatusOK)
	decode(t, rec, &mine)
	if len(mine) != 1 || mine[0].ID != first.ID {
		t.Errorf("expected second page to hold the first post, got %+v", mine)
	}

	for _, q := range []string{"skip=-1", "limit=0", "limit=101", "limit=x"} {
		expectCode(t, a.do(t, http.MethodGet, "/posts?"+q, admin, nil), http.StatusBadRequest)
	}
}

func TestOtherAuthorSeesNotFound(t *testing.T) {
	a := setupApp(t)
	admin := a.login(t, "admin@example.com", "admin123")
	writer := a.login(t, "writer@example.com", "writer123")
	p := a.createPost(t, admin, "Private", "x")

	path := fmt.Sprintf("/posts/%d", p.ID)
	expectCode(t, a.do(t, http.MethodGet, path, writer, nil), http.StatusNotFound)
	expectCode(t, a.do(t, http.MethodPut, path, writer, map[string]string{"title": "Mine now"}), http.StatusNotFound)
	expectCode(t, a.do(t, http.MethodPost, path+"/publish", writer, nil), http.StatusNotFound)
	expectCode(t, a.do(t, http.MethodGet, path+"/revisions", writer, nil), http.StatusNotFound)
	expectCode(t, a.do(t, http.MethodDelete, path, writer, nil), http.StatusNotFound)
	expectCode(t, a.do(t, http.MethodGet, path, admin, nil), http.StatusOK)
}

func TestPublishSearchCacheAndListing(t *testing.T) {
	a := setupApp(t)
	token := a.login(t, "admin@example.com", "admin123")
	p := a.createPost(t, token, "Searchable", "Find me")

	rec := a.do(t, http.MethodPost, fmt.Sprintf("/posts/%d/publish", p.ID), token, nil)
	expectCode(t, rec, http.StatusOK)
	var published model.Post
	decode(t, rec, &published)
	if published.Status != model.StatusPublished || published.PublishedAt == nil {
		t.Fatalf("unexpected published post %+v", published)
	}
	expectCode(t, a.do(t, http.MethodPost, fmt.Sprintf("/posts/%d/publish", p.ID), token, nil), http.StatusConflict)

	rec = a.do(t, http.MethodGet, "/posts/published", "", nil)
	expectCode(t, rec, http.StatusOK)
	if rec.Header().Get("X-Cache") != "MISS" {
		t.Errorf("expected first read to miss, got %q", rec.Header().Get("X-Cache"))
	}
	var list []model.Post
	decode(t, rec, &list)
	if len(list) != 1 || list[0].ID != p.ID {
		t.Fatalf("expected the post in the public list, got %+v", list)
	}
	if !a.mr.Exists(cache.ListKey(0, 10)) {
		t.Fatal("expected the list cache to be populated")
	}
	first := rec.Body.String()
	rec = a.do(t, http.MethodGet, "/posts/published", "", nil)
	if rec.Header().Get("X-Cache") != "HIT" || rec.Body.String() != first {
		t.Errorf("expected a byte-identical cache hit, got %q", rec.Header().Get("X-Cache"))
	}

	rec = a.do(t, http.MethodGet, "/search?q=Find", "", nil)
	expectCode(t, rec, http.StatusOK)
	var found []model.Post
	decode(t, rec, &found)
	if len(found) != 1 || found[0].ID != p.ID {
		t.Errorf("expected search to find the post, got %+v", found)
	}
	expectCode(t, a.do(t, http.MethodGet, "/search", "", nil), http.StatusBadRequest)

	single := fmt.Sprintf("/posts/published/%d", p.ID)
	expectCode(t, a.do(t, http.MethodGet, single, "", nil), http.StatusOK)
	if !a.mr.Exists(cache.PostKey(p.ID)) {
		t.Fatal("expected the post cache to be populated")
	}

	expectCode(t, a.do(t, http.MethodPut, fmt.Sprintf("/posts/%d", p.ID), token, map[string]string{"title": "Searchable", "content": "Updated"}), http.StatusOK)
	if a.mr.Exists(cache.PostKey(p.ID)) {
		t.Error("expected the post cache to be invalidated by the update")
	}
	if a.mr.Exists(cache.ListKey(0, 10)) {
		t.Error("expected the list cache to be invalidated by the update")
	}

	rec = a.do(t, http.MethodGet, single, "", nil)
	expectCode(t, rec, http.StatusOK)
	var fresh model.Post
	decode(t, rec, &fresh)
	if fresh.Content != "Updated" {
		t.Errorf("expected fresh content after invalidation, got %q", fresh.Content)
	}
}

func TestPublishedPost_DraftIsNotFound(t *testing.T) {
	a := setupApp(t)
	token := a.login(t, "admin@example.com", "admin123")
	p := a.createPost(t, token, "Draft", "x")
	expectCode(t, a.do(t, http.MethodGet, fmt.Sprintf("/posts/published/%d", p.ID), "", nil), http.StatusNotFound)
	expectCode(t, a.do(t, http.MethodGet, "/posts/published/abc", "", nil), http.StatusBadRequest)
}

func TestScheduleAndTick(t *testing.T) {
	a := setupApp(t)
	token := a.login(t, "admin@example.com", "admin123")
	p := a.createPost(t, token, "Later", "x")
	path := fmt.Sprintf("/posts/%d/schedule", p.ID)

	past := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)
	expectCode(t, a.do(t, http.MethodPost, path, token, map[string]string{"scheduled_for": past}), http.StatusBadRequest)
	expectCode(t, a.do(t, http.MethodPost, path, token, map[string]string{"scheduled_for": "tomorrow"}), http.StatusBadRequest)

	at := time.Now().Add(time.Second).UTC()
	rec := a.do(t, http.MethodPost, path, token, map[string]string{"scheduled_for": at.Format(time.RFC3339Nano)})
	expectCode(t, rec, http.StatusOK)
	var scheduled model.Post
	decode(t, rec, &scheduled)
	if scheduled.Status != model.StatusScheduled || scheduled.ScheduledFor == nil {
		t.Fatalf("unexpected scheduled post %+v", scheduled)
	}

	// Warm the list cache so the tick has something to invalidate.
	expectCode(t, a.do(t, http.MethodGet, "/posts/published", "", nil), http.StatusOK)

	tick := at.Add(time.Second)
	n, err := a.sched.WithClock(func() time.Time { return tick }).Tick(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("Tick() = %d, %v", n, err)
	}
	if a.mr.Exists(cache.ListKey(0, 10)) {
		t.Error("expected the list cache to be empty after the tick")
	}

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/posts/%d", p.ID), token, nil)
	expectCode(t, rec, http.StatusOK)
	var got model.Post
	decode(t, rec, &got)
	if got.Status != model.StatusPublished || got.PublishedAt == nil {
		t.Fatalf("expected the post to be published, got %+v", got)
	}
	if !got.PublishedAt.Equal(tick.Truncate(time.Microsecond)) {
		t.Errorf("expected published_at %v, got %v", tick, got.PublishedAt)
	}

	expectCode(t, a.do(t, http.MethodPost, path, token, map[string]string{"scheduled_for": time.Now().Add(time.Hour).Format(time.RFC3339)}), http.StatusConflict)
}

func TestDuplicateTitles(t *testing.T) {
	a := setupApp(t)
	token := a.login(t, "admin@example.com", "admin123")
	first := a.createPost(t, token, "Duplicate", "one")
	second := a.createPost(t, token, "Duplicate", "two")
	if first.Slug != "duplicate" || second.Slug != "duplicate-1" {
		t.Errorf("expected duplicate, duplicate-1; got %q, %q", first.Slug, second.Slug)
	}
}

func TestHealth(t *testing.T) {
	a := setupApp(t)
	rec := a.do(t, http.MethodGet, "/healthz", "", nil)
	expectCode(t, rec, http.StatusOK)
	var body map[string]string
	decode(t, rec, &body)
	if body["db"] != "ok" || body["cache"] != "ok" {
		t.Errorf("unexpected health %v", body)
	}
}

func TestOutOfRangeIDIsRejected(t *testing.T) {
	a := setupApp(t)
	admin := a.login(t, "admin@example.com", "admin123")
	expectCode(t, a.do(t, http.MethodGet, "/posts/published/18446744073709551615", "", nil), http.StatusBadRequest)
	expectCode(t, a.do(t, http.MethodGet, "/posts/9223372036854775808", admin, nil), http.StatusBadRequest)
	expectCode(t, a.do(t, http.MethodGet, "/posts/9223372036854775807", admin, nil), http.StatusNotFound)
}
