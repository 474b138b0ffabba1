package handler

import (
    "errors"
    "fmt"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cms-backend/internal/lifecycle"
    "github.com/iliyamo/cms-backend/internal/repository"
    "github.com/iliyamo/cms-backend/internal/service"
    "github.com/iliyamo/cms-backend/internal/utils"
)

func newContext(target string) (echo.Context, *httptest.ResponseRecorder) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, target, nil)
    rec := httptest.NewRecorder()
    return e.NewContext(req, rec), rec
}

func TestParsePagination(t *testing.T) {
    tests := []struct {
        query       string
        skip, limit int
        ok          bool
    }{
        {"", 0, DefaultLimit, true},
        {"?skip=20&limit=5", 20, 5, true},
        {"?limit=100", 0, 100, true},
        {"?limit=101", 0, 0, false},
        {"?limit=0", 0, 0, false},
        {"?skip=-1", 0, 0, false},
        {"?skip=abc", 0, 0, false},
    }
    for _, tt := range tests {
        c, _ := newContext("/posts" + tt.query)
        skip, limit, ok := parsePagination(c)
        if ok != tt.ok || skip != tt.skip || limit != tt.limit {
            t.Errorf("%q: got (%d, %d, %v), want (%d, %d, %v)", tt.query, skip, limit, ok, tt.skip, tt.limit, tt.ok)
        }
    }
}

func TestParseID(t *testing.T) {
    tests := []struct {
        raw  string
        want uint64
        ok   bool
    }{
        {"1", 1, true},
        {"9223372036854775807", 9223372036854775807, true},
        {"9223372036854775808", 0, false},
        {"18446744073709551615", 0, false},
        {"0", 0, false},
        {"-3", 0, false},
        {"abc", 0, false},
    }
    for _, tt := range tests {
        c, _ := newContext("/posts/" + tt.raw)
        c.SetParamNames("id")
        c.SetParamValues(tt.raw)
        id, ok := parseID(c, "id")
        if ok != tt.ok || id != tt.want {
            t.Errorf("%q: got (%d, %v), want (%d, %v)", tt.raw, id, ok, tt.want, tt.ok)
        }
    }
}

func TestParseScheduleTime(t *testing.T) {
    want := time.Date(2026, 10, 18, 12, 30, 0, 0, time.UTC)
    for _, s := range []string{"2026-10-18T12:30:00Z", "2026-10-18T14:30:00+02:00", "2026-10-18T12:30:00", " 2026-10-18 12:30:00 "} {
        got, ok := parseScheduleTime(s)
        if !ok || !got.Equal(want) {
            t.Errorf("parseScheduleTime(%q) = %v, %v", s, got, ok)
        }
    }
    if _, ok := parseScheduleTime("next tuesday"); ok {
        t.Error("expected garbage to be rejected")
    }
}

func TestWriteError(t *testing.T) {
    tests := []struct {
        err  error
        want int
    }{
        {repository.ErrPostNotFound, http.StatusNotFound},
        {repository.ErrRevisionNotFound, http.StatusNotFound},
        {lifecycle.ErrScheduleInPast, http.StatusBadRequest},
        {fmt.Errorf("%w: title is required", service.ErrInvalidInput), http.StatusBadRequest},
        {lifecycle.ErrAlreadyPublished, http.StatusConflict},
        {repository.ErrConcurrentChange, http.StatusConflict},
        {repository.ErrConflict, http.StatusConflict},
        {repository.ErrInvalidCredentials, http.StatusUnauthorized},
        {utils.ErrInvalidToken, http.StatusUnauthorized},
        {errors.New("disk on fire"), http.StatusInternalServerError},
    }
    for _, tt := range tests {
        c, rec := newContext("/")
        if err := writeError(c, tt.err); err != nil {
            t.Fatalf("writeError(%v) returned %v", tt.err, err)
        }
        if rec.Code != tt.want {
            t.Errorf("writeError(%v) = %d, want %d", tt.err, rec.Code, tt.want)
        }
    }
}
