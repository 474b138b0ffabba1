// Command seed creates the initial author account.  Running it again is a
// no-op once the account exists.
package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/cms-backend/internal/config"
	"github.com/iliyamo/cms-backend/internal/database"
	"github.com/iliyamo/cms-backend/internal/model"
	"github.com/iliyamo/cms-backend/internal/repository"
)

func main() {
	cfg := config.Load()
	if cfg.Seed.Email == "" || cfg.Seed.Password == "" {
		log.Fatal("SEED_AUTHOR_EMAIL and SEED_AUTHOR_PASSWORD are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, dialect, err := database.Connect(ctx, cfg, log.Printf)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db, dialect)
	if _, err := users.GetByEmail(ctx, cfg.Seed.Email); err == nil {
		log.Printf("author %s already exists", cfg.Seed.Email)
		return
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		log.Fatalf("lookup: %v", err)
	}

	u, err := users.Create(ctx, cfg.Seed.Username, cfg.Seed.Email, cfg.Seed.Password, model.RoleAuthor, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("create author: %v", err)
	}
	log.Printf("created author %s (id=%d)", u.Username, u.ID)
}
