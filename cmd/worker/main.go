package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"campushub/internal/config"
	"campushub/internal/notify"
	"campushub/internal/queue"
	"campushub/internal/registry"
	"campushub/internal/store"
	"campushub/internal/user"
)

// Worker consumes queued registration notices and delivers organizer
// notifications through the channel policy.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "campushub:notifications")
	}

	// Transports are nil here: channels log deliveries until real SMTP and
	// push senders are plugged in.
	dispatcher := notify.NewDispatcher(cfg.NotifyTimeout,
		notify.NewEmailChannel(nil),
		notify.NewPushChannel(nil),
	)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != "registration" {
			continue
		}

		var notice registry.Notice
		if err := json.Unmarshal(msg.Body, &notice); err != nil {
			log.Printf("bad registration notice: %v", err)
			continue
		}

		// Organizer channel preference, written on profile save;
		// empty falls back to the dispatcher default.
		pref, err := redisClient.Client.HGet(ctx, user.ChannelPrefKey, notice.OrganizerID).Result()
		if err != nil {
			pref = ""
		}

		n := notify.Notification{
			Recipient: notice.OrganizerID,
			Channel:   pref,
			Subject:   fmt.Sprintf("New registration for %s", notice.EventName),
			Body: fmt.Sprintf("Student %s registered for %s at %s.",
				notice.StudentID, notice.EventName, notice.RegisteredAt.Format("2006-01-02 15:04")),
		}
		if err := dispatcher.Dispatch(ctx, n); err != nil {
			log.Printf("notification delivery failed for event %s: %v", notice.EventID, err)
			continue
		}
		log.Printf("organizer %s notified for event %s", notice.OrganizerID, notice.EventID)
	}

	log.Println("worker stopped")
}
