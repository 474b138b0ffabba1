package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	glog "github.com/labstack/gommon/log"

	"github.com/iliyamo/cms-backend/internal/cache"
	"github.com/iliyamo/cms-backend/internal/config"
	"github.com/iliyamo/cms-backend/internal/database"
	"github.com/iliyamo/cms-backend/internal/handler"
	"github.com/iliyamo/cms-backend/internal/middleware"
	"github.com/iliyamo/cms-backend/internal/queue"
	"github.com/iliyamo/cms-backend/internal/repository"
	"github.com/iliyamo/cms-backend/internal/router"
	"github.com/iliyamo/cms-backend/internal/service"
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

	// The client reconnects by itself; until redis answers, reads fall
	// back to the database and the limiter lets requests through.
	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Printf("redis not reachable yet: %v", err)
	}
	defer rdb.Close()

	cacheCfg := config.LoadCacheConfig()
	var store cache.Store
	if cacheCfg.Enabled {
		store = cache.NewRedisStore(rdb, cacheCfg.Prefix)
	}
	postCache := cache.NewPostCache(store, cacheCfg.TTL, glog.New("cache"))

	eventsCfg := config.LoadEventsConfig()
	var events queue.Publisher = queue.NopPublisher{}
	if eventsCfg.Enabled {
		events = queue.NewAMQPPublisher(eventsCfg.URL, eventsCfg.Queue, glog.New("events"))
		consumer := queue.NewAuditConsumer(eventsCfg.URL, eventsCfg.Queue, eventsCfg.LogDir, glog.New("audit-consumer"))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("audit consumer stopped: %v", err)
			}
		}()
	}

	users := repository.NewUserRepo(db, dialect)
	revisions := repository.NewRevisionRepo(db)
	posts := repository.NewPostRepo(db, dialect, revisions)
	postSvc := service.NewPostService(posts, revisions, postCache, events, glog.New("posts"))
	authSvc := service.NewAuthService(users, cfg.JWTSecret, cfg.AccessTTLMin)

	e := echo.New()
	e.HideBanner = true
	if cfg.Env != "prod" {
		e.Logger.SetLevel(glog.DEBUG)
	}
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.RegisterAll(e, router.Handlers{
		Health: &handler.HealthHandler{DB: db, Redis: rdb},
		Auth:   handler.NewAuthHandler(authSvc),
		Posts:  handler.NewPostHandler(postSvc),
		Public: handler.NewPublicHandler(postSvc),
	}, cfg.JWTSecret, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, db=%s)", addr, cfg.Env, dialect)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
