// Command scheduler publishes scheduled posts once they are due.  It shares
// the database and cache with the API server and is meant to run as a
// single instance next to it.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	glog "github.com/labstack/gommon/log"

	"github.com/iliyamo/cms-backend/internal/cache"
	"github.com/iliyamo/cms-backend/internal/config"
	"github.com/iliyamo/cms-backend/internal/database"
	"github.com/iliyamo/cms-backend/internal/queue"
	"github.com/iliyamo/cms-backend/internal/repository"
	"github.com/iliyamo/cms-backend/internal/scheduler"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := database.Connect(ctx, cfg, log.Printf)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var store cache.Store
	cacheCfg := config.LoadCacheConfig()
	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Printf("redis not reachable yet: %v", err)
	}
	defer rdb.Close()
	if cacheCfg.Enabled {
		store = cache.NewRedisStore(rdb, cacheCfg.Prefix)
	}

	var events queue.Publisher = queue.NopPublisher{}
	if ev := config.LoadEventsConfig(); ev.Enabled {
		events = queue.NewAMQPPublisher(ev.URL, ev.Queue, glog.New("events"))
	}

	logger := glog.New("scheduler")
	logger.SetLevel(glog.INFO)
	posts := repository.NewPostRepo(db, dialect, repository.NewRevisionRepo(db))
	s := scheduler.New(posts, cache.NewPostCache(store, cacheCfg.TTL, glog.New("cache")), events, cfg.SchedulerInterval, logger)
	s.Run(ctx)
}
