package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"pairchat/backend/internal/archive"
	"pairchat/backend/internal/config"
	"pairchat/backend/internal/queue"
	"pairchat/backend/internal/realtime"
	"pairchat/backend/internal/room"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	store := realtime.NewRedisStore(rdb)
	ctx := context.Background()

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		fmt.Println("Commands: sweep-rooms | sweep-queue [minutes] | history <room_id>")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "sweep-rooms":
		svc := mustArchive(cfg)

		roomIDs, err := svc.ActiveRoomIDs()
		if err != nil {
			log.Fatalf("failed to list active rooms: %v", err)
		}

		reclaimed := 0
		for _, roomID := range roomIDs {
			done, err := room.Reclaim(ctx, store, roomID)
			if err != nil {
				log.Printf("skipping room %s: %v", roomID, err)
				continue
			}
			if !done {
				continue // still open
			}
			if err := svc.CloseRoom(roomID); err != nil {
				log.Printf("failed to close archive record for %s: %v", roomID, err)
			}
			reclaimed++
		}
		fmt.Printf("Reclaimed %d of %d active rooms.\n", reclaimed, len(roomIDs))

	case "sweep-queue":
		olderThan := config.StaleQueueEntryAge
		if len(os.Args) > 2 {
			minutes, err := strconv.Atoi(os.Args[2])
			if err != nil {
				log.Fatal("Invalid cutoff. Please provide minutes as an integer.")
			}
			olderThan = time.Duration(minutes) * time.Minute
		}

		removed, err := queue.NewManager(store).SweepStale(ctx, olderThan)
		if err != nil {
			log.Fatalf("queue sweep failed: %v", err)
		}
		fmt.Printf("Removed %d stale queue entries.\n", removed)

	case "history":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin history <room_id>")
			os.Exit(1)
		}
		svc := mustArchive(cfg)

		records, err := svc.RoomHistory(os.Args[2])
		if err != nil {
			log.Fatalf("failed to load history: %v", err)
		}
		for _, rec := range records {
			fmt.Printf("%s  %s: %s\n", rec.CreatedAt.Format(time.RFC3339), rec.SenderID, rec.Text)
		}

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func mustArchive(cfg *config.Config) *archive.Service {
	if cfg.PostgresDSN == "" {
		log.Fatal("this command needs a database; set DB_HOST and friends")
	}
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	return archive.NewService(db)
}
