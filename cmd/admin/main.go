package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"meetsync/backend/internal/config"
	"meetsync/backend/internal/storage"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const usage = `Usage: admin <command> [args]

Commands:
  reconcile                 close every active participant row and clear online sets
                            (run only while no signaling server is up)
  list-active <meeting>     show the active participants of a meeting (id or code)
  online <meeting_id>       show the user ids mirrored as online in Redis
  history <meeting>         print the chat history of a meeting (id or code)`

func main() {
	_ = godotenv.Load()
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		l.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		l.Fatal().Err(err).Msg("failed to connect database")
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer rdb.Close()

	s := storage.NewStorageService(db, rdb, cfg.EventChannel, l)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd := os.Args[1]; cmd {
	case "reconcile":
		closed, cleared, err := reconcile(ctx, s)
		if err != nil {
			l.Fatal().Err(err).Msg("reconcile failed")
		}
		fmt.Printf("Closed %d participant rows, cleared %d online sets.\n", closed, cleared)
	case "list-active":
		requireArg("list-active <meeting>")
		if err := listActive(ctx, s, os.Args[2]); err != nil {
			l.Fatal().Err(err).Msg("list-active failed")
		}
	case "online":
		requireArg("online <meeting_id>")
		ids, err := s.GetOnlineUserIDs(ctx, os.Args[2])
		if err != nil {
			l.Fatal().Err(err).Msg("online failed")
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	case "history":
		requireArg("history <meeting>")
		if err := printHistory(ctx, s, os.Args[2]); err != nil {
			l.Fatal().Err(err).Msg("history failed")
		}
	default:
		fmt.Printf("Unknown command %q\n\n%s\n", cmd, usage)
		os.Exit(1)
	}
}

func requireArg(form string) {
	if len(os.Args) != 3 {
		fmt.Println("Usage: admin " + form)
		os.Exit(1)
	}
}

func reconcile(ctx context.Context, s storage.Storage) (int64, int64, error) {
	closed, err := s.DeactivateAllParticipants(ctx, time.Now().UTC())
	if err != nil {
		return 0, 0, fmt.Errorf("close participants: %w", err)
	}
	cleared, err := s.ClearOnline(ctx)
	if err != nil {
		return closed, 0, fmt.Errorf("clear online sets: %w", err)
	}
	return closed, cleared, nil
}

// findMeeting accepts either a meeting id or a meeting code.
func findMeeting(ctx context.Context, s storage.Storage, ref string) (string, error) {
	meeting, err := s.FindMeeting(ctx, ref, "")
	if errors.Is(err, storage.ErrNotFound) {
		meeting, err = s.FindMeeting(ctx, "", ref)
	}
	if err != nil {
		return "", fmt.Errorf("meeting %s: %w", ref, err)
	}
	return meeting.ID, nil
}

func listActive(ctx context.Context, s storage.Storage, ref string) error {
	meetingID, err := findMeeting(ctx, s, ref)
	if err != nil {
		return err
	}
	participants, err := s.ListActiveParticipants(ctx, meetingID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER ID\tNAME\tROLE\tJOINED AT")
	for _, p := range participants {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.UserID, p.Name, p.Role, p.JoinedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func printHistory(ctx context.Context, s storage.Storage, ref string) error {
	meetingID, err := findMeeting(ctx, s, ref)
	if err != nil {
		return err
	}
	history, err := s.GetChatHistory(ctx, meetingID)
	if err != nil {
		return err
	}
	for _, m := range history {
		fmt.Printf("[%s] %s: %s\n", m.SentAt.Format(time.RFC3339), m.SenderName, m.Content)
	}
	return nil
}
