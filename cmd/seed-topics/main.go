package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/funpr/verza-invest-ai/internal/domain"
	mongostore "github.com/funpr/verza-invest-ai/internal/store/mongo"
)

func main() {
	var (
		mongoURL = flag.String("mongo", os.Getenv("MONGO_URL"), "Mongo URL (or set MONGO_URL env)")
		database = flag.String("database", envOr("MONGO_DATABASE", "verza"), "Mongo database name")
		file     = flag.String("file", "seed/topics.json", "Topic seed file (JSON array)")
		dryRun   = flag.Bool("dry-run", false, "Dry run mode (don't write to Mongo)")
		verbose  = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *mongoURL == "" {
		log.Fatal("Mongo URL required (--mongo or MONGO_URL env)")
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Failed to read seed file: %v", err)
	}

	var topics []domain.Topic
	if err := json.Unmarshal(raw, &topics); err != nil {
		log.Fatalf("Failed to parse seed file: %v", err)
	}
	slog.Info("Loaded seed file", "file", *file, "topics", len(topics))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := mongostore.Connect(ctx, *mongoURL, *database)
	if err != nil {
		log.Fatalf("Failed to connect to Mongo: %v", err)
	}
	defer func() { _ = db.Close(ctx) }()

	store := mongostore.NewTopicStore(db)

	start := time.Now()
	var seeded int
	for _, topic := range topics {
		if topic.ID == 0 || topic.Title == "" {
			slog.Warn("Skipping invalid topic entry", "id", topic.ID)
			continue
		}
		if topic.Status == "" {
			topic.Status = domain.TopicStatusApproved
		}

		if !*dryRun {
			if err := store.Upsert(ctx, topic); err != nil {
				log.Fatalf("Failed to upsert topic %d: %v", topic.ID, err)
			}
		}
		slog.Debug("Seeded topic", "id", topic.ID, "title", topic.Title)
		seeded++
	}

	slog.Info("Seeding complete",
		"seeded", seeded,
		"skipped", len(topics)-seeded,
		"dry_run", *dryRun,
		"duration_ms", time.Since(start).Milliseconds())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
