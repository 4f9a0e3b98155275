package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reelmatch/reelmatch/internal/repository"
	"github.com/reelmatch/reelmatch/internal/seed"
	"github.com/reelmatch/reelmatch/internal/store"
)

func main() {
	var (
		usersPath   = flag.String("users", "", "path to a u.user-format file")
		moviesPath  = flag.String("movies", "", "path to a u.item-format file")
		ratingsPath = flag.String("ratings", "", "path to a u.data-format file")
		dbURL       = flag.String("db", os.Getenv("DB_URL"), "postgres connection string (defaults to DB_URL)")
	)
	flag.Parse()

	if *dbURL == "" {
		log.Fatal("database URL is required: pass -db or set DB_URL")
	}
	if *usersPath == "" && *moviesPath == "" && *ratingsPath == "" {
		log.Fatal("nothing to do: pass at least one of -users, -movies, -ratings")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.New(os.Stdout, "[reelmatch-seed] ", log.LstdFlags)

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.New(dbCtx, *dbURL, store.Options{Logger: logger})
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer st.Close()

	loader := seed.NewLoader(repository.New(st), logger)

	// Users and movies must land before ratings so the foreign keys resolve.
	if *usersPath != "" {
		count := loadFile(ctx, logger, *usersPath, loader.LoadUsers)
		logger.Printf("seeded %d users", count)
	}
	if *moviesPath != "" {
		count := loadFile(ctx, logger, *moviesPath, loader.LoadMovies)
		logger.Printf("seeded %d movies", count)
	}
	if *ratingsPath != "" {
		count := loadFile(ctx, logger, *ratingsPath, loader.LoadRatings)
		logger.Printf("seeded %d ratings", count)
	}
}

func loadFile(ctx context.Context, logger *log.Logger, path string, load func(context.Context, io.Reader) (int64, error)) int64 {
	f, err := os.Open(path)
	if err != nil {
		logger.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	count, err := load(ctx, f)
	if err != nil {
		logger.Fatalf("load %s: %v", path, err)
	}
	return count
}
