package cache

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    "github.com/labstack/gommon/log"
)

// DefaultTTL is how long a cached post or list page lives.
const DefaultTTL = time.Hour

const (
    postNamespace = "post:"
    listNamespace = "list:"
)

// PostKey is the cache key of a single published post.
func PostKey(id uint64) string { return fmt.Sprintf("%s%d", postNamespace, id) }

// ListKey is the cache key of one page of the published list.
func ListKey(skip, limit int) string { return fmt.Sprintf("%s%d:%d", listNamespace, skip, limit) }

// Loader produces the value to serialize on a cache miss.
type Loader func(ctx context.Context) (interface{}, error)

// PostCache is the read-through cache for the public post endpoints.  A
// PostCache with a nil Store always calls the loader; store failures are
// logged and never surface to callers.
type PostCache struct {
    store  Store
    ttl    time.Duration
    logger *log.Logger
}

// NewPostCache returns a PostCache.  store may be nil to disable caching.
func NewPostCache(store Store, ttl time.Duration, logger *log.Logger) *PostCache {
    if ttl <= 0 {
        ttl = DefaultTTL
    }
    if logger == nil {
        logger = log.New("cache")
    }
    return &PostCache{store: store, ttl: ttl, logger: logger}
}

// Enabled reports whether a backing store is configured.
func (c *PostCache) Enabled() bool { return c != nil && c.store != nil }

// Post returns the serialized post id, loading and caching it on a miss.
// hit reports whether the payload came from the cache.
func (c *PostCache) Post(ctx context.Context, id uint64, load Loader) (payload []byte, hit bool, err error) {
    return c.readThrough(ctx, PostKey(id), load)
}

// PublishedList returns one serialized page of the published list.
func (c *PostCache) PublishedList(ctx context.Context, skip, limit int, load Loader) (payload []byte, hit bool, err error) {
    return c.readThrough(ctx, ListKey(skip, limit), load)
}

func (c *PostCache) readThrough(ctx context.Context, key string, load Loader) ([]byte, bool, error) {
    cacheable := c.Enabled()
    if cacheable {
        bs, err := c.store.Get(ctx, key)
        switch {
        case err == nil:
            return bs, true, nil
        case errors.Is(err, ErrMiss):
        default:
            // Unreachable cache: serve from the store and leave the key alone.
            c.logger.Warnf("get %s: %v", key, err)
            cacheable = false
        }
    }

    v, err := load(ctx)
    if err != nil {
        return nil, false, err
    }
    bs, err := json.Marshal(v)
    if err != nil {
        return nil, false, err
    }
    if cacheable {
        if err := c.store.Set(ctx, key, bs, c.ttl); err != nil {
            c.logger.Warnf("set %s: %v", key, err)
        }
    }
    return bs, false, nil
}

// InvalidatePost drops the cached copy of post id.
func (c *PostCache) InvalidatePost(ctx context.Context, id uint64) {
    if !c.Enabled() {
        return
    }
    if err := c.store.Delete(ctx, PostKey(id)); err != nil {
        c.logger.Warnf("invalidate post %d: %v", id, err)
    }
}

// InvalidateLists drops every cached page of the published list, whatever
// its skip and limit.
func (c *PostCache) InvalidateLists(ctx context.Context) {
    if !c.Enabled() {
        return
    }
    n, err := c.store.DeletePrefix(ctx, listNamespace)
    if err != nil {
        c.logger.Warnf("invalidate lists: %v", err)
        return
    }
    c.logger.Debugf("invalidated %d list pages", n)
}
